// Package notify bridges the event bus to outbound side effects: pushing
// session updates to agent dashboards and dispatching flow webhooks.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/logger"
	convservice "github.com/driftline/driftline/internal/conversation/service"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/events/bus"
	ws "github.com/driftline/driftline/pkg/websocket"
)

// AgentNotifier is the hub surface the relay pushes through.
type AgentNotifier interface {
	EmitToAgents(tenantID, event string, data interface{})
}

// AgentRelay subscribes to conversation events and pushes session:updated
// to the tenant's connected agents so dashboard lists stay live without
// polling.
type AgentRelay struct {
	bus    bus.EventBus
	convo  *convservice.Service
	rt     AgentNotifier
	logger *logger.Logger

	sub bus.Subscription
}

// NewAgentRelay wires the relay; call Start to begin consuming.
func NewAgentRelay(eventBus bus.EventBus, convo *convservice.Service, rt AgentNotifier, log *logger.Logger) *AgentRelay {
	return &AgentRelay{
		bus:    eventBus,
		convo:  convo,
		rt:     rt,
		logger: log.WithFields(zap.String("component", "agent-relay")),
	}
}

// Start subscribes to every conversation-scoped subject.
func (r *AgentRelay) Start() error {
	sub, err := r.bus.Subscribe(events.BuildConversationWildcardSubject(), r.handle)
	if err != nil {
		return err
	}
	r.sub = sub
	return nil
}

// Stop tears the subscription down.
func (r *AgentRelay) Stop() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
}

func (r *AgentRelay) handle(ctx context.Context, event *bus.Event) error {
	// message:new reaches agents straight from the hub; relaying it again
	// would duplicate frames
	if event.Type == events.MessageCreated {
		return nil
	}
	sessionID, _ := event.Data["session_id"].(string)
	if sessionID == "" {
		return nil
	}

	summary, err := r.convo.GetSessionSummary(ctx, sessionID)
	if err != nil {
		r.logger.Warn("failed to load session for relay",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil
	}
	r.rt.EmitToAgents(summary.TenantID, ws.EventSessionUpdated, map[string]interface{}{
		"session": summary,
	})
	return nil
}
