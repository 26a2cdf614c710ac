package main

import (
	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/events/bus"
)

func provideEventBus(cfg *config.Config, log *logger.Logger) (bus.EventBus, func() error, error) {
	provided, cleanup, err := events.Provide(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return provided.Bus, cleanup, nil
}
