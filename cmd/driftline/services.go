package main

import (
	"github.com/driftline/driftline/internal/ai"
	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/events/bus"

	convservice "github.com/driftline/driftline/internal/conversation/service"
	dirservice "github.com/driftline/driftline/internal/directory/service"
	flowservice "github.com/driftline/driftline/internal/flow/service"
)

// Services bundles the domain services built on the stores.
type Services struct {
	Conversations *convservice.Service
	Directory     *dirservice.Service
	Flows         *flowservice.Service
	AI            ai.Gateway
}

func provideServices(cfg *config.Config, repos *Repositories, eventBus bus.EventBus, log *logger.Logger) *Services {
	return &Services{
		Conversations: convservice.NewService(repos.Conversations, eventBus, log),
		Directory:     dirservice.NewService(repos.Directory, log),
		Flows:         flowservice.NewService(repos.Flows, log),
		AI:            ai.New(cfg.AI, log),
	}
}
