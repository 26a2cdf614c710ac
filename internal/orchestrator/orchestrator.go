// Package orchestrator is the ingress for every visitor and agent event.
// It owns the persist-then-broadcast ordering, the closed-session
// retargeting, the pre-interpreter handover shortcut, and the dispatch of
// flow interpreter invocations.
package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/ai"
	"github.com/driftline/driftline/internal/common/logger"
	convmodels "github.com/driftline/driftline/internal/conversation/models"
	convservice "github.com/driftline/driftline/internal/conversation/service"
	flowmodels "github.com/driftline/driftline/internal/flow/models"
)

// Fixed copy for the handover shortcut, persisted twice: as an
// agent-sender line so the visitor sees it, and as the system audit line
// for the conversation timeline.
const transferMessage = "Conversation transferred to a human agent"

// Realtime is the slice of the websocket hub the orchestrator pushes
// through.
type Realtime interface {
	// EmitMessage fans a persisted message out to the session's watchers
	// and the tenant's agents, applying the visitor visibility filter.
	EmitMessage(session *convmodels.Session, msg *convmodels.Message)
	// EmitToClient targets one connected socket by client id. Unknown ids
	// are dropped.
	EmitToClient(clientID, event string, data interface{})
}

// FlowEngine is the interpreter surface the orchestrator dispatches to.
type FlowEngine interface {
	HandleOpenEvent(ctx context.Context, session *convmodels.Session, on flowmodels.TriggerOn) error
	HandleVisitorMessage(ctx context.Context, session *convmodels.Session, text string) error
	ResumeAfterCSAT(ctx context.Context, session *convmodels.Session) error
}

// Orchestrator sequences ingest: ensure session, persist, broadcast, then
// hand off to the interpreter on a fresh goroutine.
type Orchestrator struct {
	convo    *convservice.Service
	engine   FlowEngine
	rt       Realtime
	previews *linkPreviewer
	logger   *logger.Logger

	defaultTenant string

	// spawn runs interpreter invocations; tests replace it to run inline.
	spawn func(fn func())
}

// New wires the orchestrator. defaultTenant scopes unauthenticated widget
// traffic.
func New(convo *convservice.Service, engine FlowEngine, rt Realtime, defaultTenant string, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		convo:         convo,
		engine:        engine,
		rt:            rt,
		previews:      newLinkPreviewer(),
		logger:        log.WithFields(zap.String("component", "orchestrator")),
		defaultTenant: defaultTenant,
		spawn:         func(fn func()) { go fn() },
	}
}

// VisitorMessage is one inbound widget message (REST or WS).
type VisitorMessage struct {
	SessionID string
	VisitorID string
	Channel   string
	Text      string
}

// SessionSwitched is the payload pushed to the origin client when a
// closed session gets retargeted.
type SessionSwitched struct {
	SessionID         string `json:"sessionId"`
	PreviousSessionID string `json:"previousSessionId"`
}

// HandleVisitorMessage ingests a visitor message: retarget closed
// sessions, ensure the session, persist and broadcast the message, then
// either short-circuit to handover or dispatch the interpreter. clientID
// identifies the origin socket for session:switched pushes; REST callers
// pass "".
func (o *Orchestrator) HandleVisitorMessage(ctx context.Context, clientID string, req *VisitorMessage) (*convmodels.Session, *convmodels.Message, error) {
	session, err := o.resolveSession(ctx, clientID, req.SessionID, req.VisitorID, req.Channel)
	if err != nil {
		return nil, nil, err
	}

	msg, err := o.convo.AppendMessage(ctx, &convmodels.Message{
		SessionID: session.ID,
		Sender:    convmodels.SenderVisitor,
		Text:      req.Text,
	})
	if err != nil {
		return nil, nil, err
	}
	if msg != nil {
		o.rt.EmitMessage(session, msg)
	}

	if o.shortCircuitHandover(ctx, session, req.Text) {
		return session, msg, nil
	}

	text := req.Text
	detached := cloneSession(session)
	o.spawn(func() {
		if err := o.engine.HandleVisitorMessage(context.Background(), detached, text); err != nil {
			o.logger.WithSessionID(detached.ID).WithError(err).Error("flow dispatch failed")
		}
	})
	return session, msg, nil
}

// HandleWidgetOpened ensures the session and fires the widget_open
// trigger.
func (o *Orchestrator) HandleWidgetOpened(ctx context.Context, clientID, sessionID, visitorID string) (*convmodels.Session, error) {
	session, err := o.resolveSession(ctx, clientID, sessionID, visitorID, "")
	if err != nil {
		return nil, err
	}
	detached := cloneSession(session)
	o.spawn(func() {
		if err := o.engine.HandleOpenEvent(context.Background(), detached, flowmodels.TriggerWidgetOpen); err != nil {
			o.logger.WithSessionID(detached.ID).WithError(err).Error("widget_open dispatch failed")
		}
	})
	return session, nil
}

// EnsureSession resolves (and if needed creates or retargets) the
// session for a joining widget client without posting a message.
func (o *Orchestrator) EnsureSession(ctx context.Context, clientID, sessionID, visitorID string) (*convmodels.Session, error) {
	return o.resolveSession(ctx, clientID, sessionID, visitorID, "")
}

// AgentMessage is one message posted by an authenticated agent.
type AgentMessage struct {
	SessionID string
	AgentID   string
	Text      string
	Internal  bool
}

// HandleAgentMessage persists an agent (or internal team) message,
// enriches it with a link preview when the text carries a URL, and
// broadcasts it. Agent messages never reach the interpreter.
func (o *Orchestrator) HandleAgentMessage(ctx context.Context, req *AgentMessage) (*convmodels.Message, error) {
	session, err := o.convo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	sender := convmodels.SenderAgent
	if req.Internal {
		sender = convmodels.SenderTeam
	}
	msg := &convmodels.Message{
		SessionID: session.ID,
		Sender:    sender,
		Text:      req.Text,
	}
	if preview := o.previews.Enrich(ctx, req.Text); preview != nil {
		msg.Widget = &convmodels.Widget{
			Type:        convmodels.WidgetLinkPreview,
			LinkPreview: preview,
		}
	}
	msg, err = o.convo.AppendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	if msg != nil {
		o.rt.EmitMessage(session, msg)
	}
	return msg, nil
}

// HandleCSATSubmitted records the score and resumes a flow parked on the
// rating widget.
func (o *Orchestrator) HandleCSATSubmitted(ctx context.Context, sessionID string, score int, comment string) (*convmodels.CSATSurvey, error) {
	survey, err := o.convo.SubmitCSAT(ctx, sessionID, score, comment)
	if err != nil {
		return nil, err
	}
	session, err := o.convo.GetSession(ctx, sessionID)
	if err != nil {
		return survey, err
	}
	detached := cloneSession(session)
	o.spawn(func() {
		if err := o.engine.ResumeAfterCSAT(context.Background(), detached); err != nil {
			o.logger.WithSessionID(detached.ID).WithError(err).Error("csat resume failed")
		}
	})
	return survey, nil
}

// resolveSession ensures a live session for the request, allocating a
// replacement when the target is closed and notifying the origin client.
// A freshly created session fires the page_open trigger asynchronously.
func (o *Orchestrator) resolveSession(ctx context.Context, clientID, sessionID, visitorID, channel string) (*convmodels.Session, error) {
	session, created, err := o.convo.EnsureSession(ctx, o.defaultTenant, sessionID, visitorID, channel)
	if err != nil {
		return nil, err
	}

	if !created && session.Status == convmodels.StatusClosed {
		replacement, err := o.convo.RetargetSession(ctx, session)
		if err != nil {
			return nil, err
		}
		o.logger.Info("retargeted closed session",
			zap.String("previous_session_id", session.ID),
			zap.String("session_id", replacement.ID))
		if clientID != "" {
			o.rt.EmitToClient(clientID, "session:switched", &SessionSwitched{
				SessionID:         replacement.ID,
				PreviousSessionID: session.ID,
			})
		}
		session = replacement
		created = true
	}

	if created {
		o.firePageOpen(session)
	}
	return session, nil
}

func (o *Orchestrator) firePageOpen(session *convmodels.Session) {
	detached := cloneSession(session)
	o.spawn(func() {
		if err := o.engine.HandleOpenEvent(context.Background(), detached, flowmodels.TriggerPageOpen); err != nil {
			o.logger.WithSessionID(detached.ID).WithError(err).Error("page_open dispatch failed")
		}
	})
}

// cloneSession hands the interpreter goroutine its own copy. The engine
// mutates the session it is given (handover, status, whole-struct refresh)
// while the caller's copy is being serialized into the HTTP or WS
// response.
func cloneSession(s *convmodels.Session) *convmodels.Session {
	c := *s
	return &c
}

// shortCircuitHandover flips the session to human handover when the
// visitor text carries an explicit ask for a person, bypassing the
// interpreter entirely.
func (o *Orchestrator) shortCircuitHandover(ctx context.Context, session *convmodels.Session, text string) bool {
	if session.HandoverActive {
		// already with a human, nothing for the bot to do
		return true
	}
	if session.Status == convmodels.StatusClosed {
		return true
	}
	if !ai.DetectHandoverIntent(text) {
		return false
	}

	if _, _, err := o.convo.SetHandover(ctx, session.ID, true); err != nil {
		o.logger.Error("handover shortcut failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return false
	}
	session.HandoverActive = true

	o.postAndEmit(ctx, session, convmodels.SenderAgent, transferMessage)
	o.postAndEmit(ctx, session, convmodels.SenderSystem, transferMessage)
	return true
}

func (o *Orchestrator) postAndEmit(ctx context.Context, session *convmodels.Session, sender convmodels.Sender, text string) {
	msg, err := o.convo.AppendMessage(ctx, &convmodels.Message{
		SessionID: session.ID,
		Sender:    sender,
		Text:      text,
	})
	if err != nil {
		o.logger.Error("failed to persist message",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return
	}
	if msg != nil {
		o.rt.EmitMessage(session, msg)
	}
}

// CloseSession closes from the visitor side ("End chat" in the widget).
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) error {
	_, _, err := o.convo.SetStatus(ctx, sessionID, convmodels.StatusClosed)
	return err
}
