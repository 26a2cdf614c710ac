package main

import (
	"context"
	"fmt"

	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/mcpserver"
	"github.com/driftline/driftline/internal/orchestrator"
)

// provideMCPServer starts the embedded MCP tool server when enabled.
func provideMCPServer(ctx context.Context, cfg *config.Config, svcs *Services, orch *orchestrator.Orchestrator, defaultTenant string, log *logger.Logger) (func() error, error) {
	if !cfg.MCP.Enabled {
		return nil, nil
	}

	mcpCfg := mcpserver.Config{
		Port:          cfg.MCP.Port,
		DefaultTenant: defaultTenant,
	}
	deps := mcpserver.Deps{
		Convo: svcs.Conversations,
		Flows: svcs.Flows,
		Orch:  orch,
	}

	_, cleanup, err := mcpserver.Provide(ctx, mcpCfg, deps, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}
	return cleanup, nil
}
