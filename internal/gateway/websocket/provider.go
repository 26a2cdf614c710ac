package websocket

import (
	"github.com/driftline/driftline/internal/common/logger"
	convservice "github.com/driftline/driftline/internal/conversation/service"
	dirservice "github.com/driftline/driftline/internal/directory/service"
)

// Provide creates the realtime gateway.
func Provide(convo *convservice.Service, dir *dirservice.Service, log *logger.Logger) (*Gateway, error) {
	return NewGateway(convo, dir, log), nil
}
