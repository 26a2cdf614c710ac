// Package main is the Driftline server: conversation store, realtime
// gateway, flow interpreter, and agent dashboard API in one binary with
// shared infrastructure.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/driftline/driftline/internal/bootstrap"
	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/common/tracing"
	"github.com/driftline/driftline/internal/flow/engine"
	gateways "github.com/driftline/driftline/internal/gateway/websocket"
	"github.com/driftline/driftline/internal/notify"
	"github.com/driftline/driftline/internal/orchestrator"
)

const defaultTenantID = "tenant-default"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting Driftline...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event bus: NATS when configured, in-process otherwise
	eventBus, busCleanup, err := provideEventBus(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize event bus", zap.Error(err))
	}
	defer busCleanup()

	// Storage
	_, repos, repoCleanup, err := provideRepositories(cfg)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer repoCleanup()

	// Domain services
	svcs := provideServices(cfg, repos, eventBus, log)

	// First-run seed data
	seededTenant, err := bootstrap.NewLoader(repos.Directory, svcs.Flows, log).Apply(ctx, cfg.Bootstrap.Path)
	if err != nil {
		log.Fatal("Failed to apply bootstrap seed", zap.Error(err))
	}
	defaultTenant := seededTenant
	if defaultTenant == "" {
		defaultTenant = defaultTenantID
	}

	// Realtime gateway and flow interpreter. The hub is the engine's and
	// the orchestrator's broadcast sink; the orchestrator is attached to
	// the gateway afterwards to close the cycle.
	gw := gateways.NewGateway(svcs.Conversations, svcs.Directory, log)
	eng := engine.NewEngine(repos.Flows, svcs.Conversations, svcs.Directory, svcs.AI, eventBus, gw.Hub, log)
	orch := orchestrator.New(svcs.Conversations, eng, gw.Hub, defaultTenant, log)
	gw.SetOrchestrator(orch)

	// Event fan-out: session updates to agent dashboards, webhook delivery
	relay := notify.NewAgentRelay(eventBus, svcs.Conversations, gw.Hub, log)
	if err := relay.Start(); err != nil {
		log.Fatal("Failed to start agent relay", zap.Error(err))
	}
	defer relay.Stop()

	webhooks := notify.NewWebhookDispatcher(eventBus, log)
	if err := webhooks.Start(); err != nil {
		log.Fatal("Failed to start webhook dispatcher", zap.Error(err))
	}
	defer webhooks.Stop()

	// Embedded MCP tool server
	mcpCleanup, err := provideMCPServer(ctx, cfg, svcs, orch, defaultTenant, log)
	if err != nil {
		log.Fatal("Failed to start MCP server", zap.Error(err))
	}
	if mcpCleanup != nil {
		defer mcpCleanup()
		log.Info("MCP tool server listening", zap.Int("port", cfg.MCP.Port))
	}

	// HTTP server
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := buildRouter(gw, svcs, orch, defaultTenant, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("websocket", "/ws"),
			zap.String("visitor_api", "/api"),
			zap.String("agent_api", "/api/agent"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
		}

		log.Info("Shutting down Driftline...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server error", zap.Error(err))
	}

	gw.Hub.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracing shutdown error", zap.Error(err))
	}

	log.Info("Driftline stopped")
}
