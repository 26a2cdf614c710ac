// Package engine interprets flow graphs against live sessions: it walks
// nodes, emits widget messages, pauses at interactive nodes by persisting
// cursors, and resumes when the visitor replies.
package engine

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/ai"
	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	convmodels "github.com/driftline/driftline/internal/conversation/models"
	convservice "github.com/driftline/driftline/internal/conversation/service"
	dirservice "github.com/driftline/driftline/internal/directory/service"
	"github.com/driftline/driftline/internal/events/bus"
	"github.com/driftline/driftline/internal/flow/models"
	flowrepo "github.com/driftline/driftline/internal/flow/repository"
)

const (
	// maxSteps bounds non-pausing node transitions per invocation.
	maxSteps = 24

	// delay clamp for message nodes and the wait-node cap
	minMessageDelay = 120 * time.Millisecond
	maxMessageDelay = 6000 * time.Millisecond
	maxWait         = 5 * time.Minute

	lockStripes = 64
)

// Cursor variable keys reserved for AI variable collection pauses.
const (
	collectFlowKey   = "__collect_flow"
	collectVarPrefix = "__collect."
)

// Emitter delivers engine output to connected clients. The websocket
// gateway implements it; tests record.
type Emitter interface {
	// EmitMessage broadcasts an already-persisted message to the
	// session's recipients.
	EmitMessage(session *convmodels.Session, msg *convmodels.Message)
	// BotTypingStart opens one bot typing interval for the session;
	// BotTypingStop closes it. Intervals nest.
	BotTypingStart(sessionID string)
	BotTypingStop(sessionID string)
}

// Engine is the flow interpreter. One instance serves all sessions;
// striped locks serialize execution per session.
type Engine struct {
	flows   flowrepo.Repository
	convo   *convservice.Service
	dir     *dirservice.Service
	gateway ai.Gateway
	bus     bus.EventBus
	emitter Emitter
	logger  *logger.Logger

	locks [lockStripes]sync.Mutex

	// sleep is swappable in tests
	sleep func(ctx context.Context, d time.Duration)
}

// NewEngine wires the interpreter.
func NewEngine(
	flows flowrepo.Repository,
	convo *convservice.Service,
	dir *dirservice.Service,
	gateway ai.Gateway,
	eventBus bus.EventBus,
	emitter Emitter,
	log *logger.Logger,
) *Engine {
	return &Engine{
		flows:   flows,
		convo:   convo,
		dir:     dir,
		gateway: gateway,
		bus:     eventBus,
		emitter: emitter,
		logger:  log.WithFields(zap.String("component", "flow-engine")),
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (e *Engine) lockSession(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	mu := &e.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}

// execution is the per-invocation state threaded through the walk.
type execution struct {
	flow        *models.Flow
	session     *convmodels.Session
	vars        map[string]string
	visitorText string
	steps       int
}

// stepResult is what a node handler reports back to the walker.
type stepResult struct {
	next   *models.Node // explicit branch; nil means follow the first edge
	paused bool         // cursor written, stop walking
	stop   bool         // terminal, clear cursor
}

// HandleOpenEvent processes a page_open or widget_open trigger for the
// session. Each (session, event) pair fires at most once.
func (e *Engine) HandleOpenEvent(ctx context.Context, session *convmodels.Session, on models.TriggerOn) error {
	mu := e.lockSession(session.ID)
	defer mu.Unlock()

	if session.HandoverActive || session.Status == convmodels.StatusClosed {
		return nil
	}
	flow, err := e.selectFlow(ctx, session)
	if err != nil || flow == nil {
		return err
	}
	trigger := flow.TriggerNode()
	if trigger == nil || trigger.Data.On != on {
		return nil
	}
	fresh, err := e.flows.MarkTriggerFired(ctx, session.ID, string(on))
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	e.logger.Debug("trigger fired",
		zap.String("session_id", session.ID),
		zap.String("flow_id", flow.ID),
		zap.String("trigger", string(on)))
	return e.startFlow(ctx, session, flow, "", nil)
}

// HandleVisitorMessage drives the bot reaction to a persisted visitor
// message: resume a paused flow, start a matching flow, or fall back to a
// one-shot AI reply. Sessions under human handover are left alone.
func (e *Engine) HandleVisitorMessage(ctx context.Context, session *convmodels.Session, text string) error {
	mu := e.lockSession(session.ID)
	defer mu.Unlock()

	if session.HandoverActive || session.Status == convmodels.StatusClosed {
		return nil
	}

	cursor, err := e.flows.GetCursor(ctx, session.TenantID, session.ID)
	if err == nil {
		handled, err := e.resume(ctx, session, cursor, text)
		if err != nil || handled {
			return err
		}
		// stale cursor was cleared, fall through to fresh dispatch
	} else if !apperr.IsNotFound(err) {
		return err
	}

	flow, err := e.selectFlow(ctx, session)
	if err != nil {
		return err
	}
	if flow != nil {
		matched, err := e.matchMessageTrigger(ctx, session, flow, text)
		if err != nil {
			return err
		}
		if matched {
			return e.startFlow(ctx, session, flow, text, nil)
		}
	}
	return e.aiFallback(ctx, session, flow, text)
}

// selectFlow returns the session's assigned flow when it is usable, else
// the tenant's first enabled flow, else nil.
func (e *Engine) selectFlow(ctx context.Context, session *convmodels.Session) (*models.Flow, error) {
	if session.FlowID != "" {
		flow, err := e.flows.GetFlow(ctx, session.FlowID)
		if err == nil && flow.TenantID == session.TenantID && flow.Enabled {
			return flow, nil
		}
		if err != nil && !apperr.IsNotFound(err) {
			return nil, err
		}
	}
	enabled, err := e.flows.ListEnabledFlows(ctx, session.TenantID)
	if err != nil {
		return nil, err
	}
	if len(enabled) == 0 {
		return nil, nil
	}
	return enabled[0], nil
}

// matchMessageTrigger reports whether the flow's trigger matches an
// inbound visitor message.
func (e *Engine) matchMessageTrigger(ctx context.Context, session *convmodels.Session, flow *models.Flow, text string) (bool, error) {
	trigger := flow.TriggerNode()
	if trigger == nil {
		return false, nil
	}
	switch trigger.Data.On {
	case models.TriggerAnyMessage:
	case models.TriggerFirstMessage:
		count, err := e.convo.CountVisitorMessages(ctx, session.ID)
		if err != nil {
			return false, err
		}
		// the incoming message is already persisted
		if count != 1 {
			return false, nil
		}
	default:
		return false, nil
	}
	return matchKeywords(trigger.Data.Keywords, text), nil
}

func matchKeywords(keywords []string, text string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// startFlow runs a flow from its trigger node with a fresh variable
// environment (seeded from the contact, then initialVars on top).
func (e *Engine) startFlow(ctx context.Context, session *convmodels.Session, flow *models.Flow, visitorText string, initialVars map[string]string) error {
	vars := map[string]string{}
	e.seedContactVars(ctx, session, vars)
	for k, v := range initialVars {
		if v != "" {
			vars[k] = v
		}
	}
	ex := &execution{flow: flow, session: session, vars: vars, visitorText: visitorText}
	trigger := flow.TriggerNode()
	if trigger == nil {
		return nil
	}
	return e.walk(ctx, ex, e.firstEdgeTarget(flow, trigger.ID))
}

// walk executes nodes until pause, terminal, or the step bound.
func (e *Engine) walk(ctx context.Context, ex *execution, node *models.Node) error {
	for node != nil {
		if ex.steps >= maxSteps {
			e.logger.Warn("flow step bound exceeded",
				zap.String("session_id", ex.session.ID),
				zap.String("flow_id", ex.flow.ID))
			break
		}
		res, err := e.execNode(ctx, ex, node)
		if err != nil {
			return err
		}
		if res.paused {
			return nil
		}
		if res.stop {
			break
		}
		ex.steps++
		if res.next != nil {
			node = res.next
		} else {
			node = e.firstEdgeTarget(ex.flow, node.ID)
		}
	}
	return e.clearCursor(ctx, ex.session)
}

func (e *Engine) firstEdgeTarget(flow *models.Flow, nodeID string) *models.Node {
	edges := flow.EdgesFrom(nodeID)
	if len(edges) == 0 {
		return nil
	}
	return flow.NodeByID(edges[0].Target)
}

// handleTarget resolves an edge by sourceHandle, falling back to the
// first outgoing edge.
func (e *Engine) handleTarget(flow *models.Flow, nodeID string, handles ...string) *models.Node {
	edges := flow.EdgesFrom(nodeID)
	for _, h := range handles {
		for _, edge := range edges {
			if edge.SourceHandle == h {
				return flow.NodeByID(edge.Target)
			}
		}
	}
	if len(edges) == 0 {
		return nil
	}
	return flow.NodeByID(edges[0].Target)
}

// pause persists the cursor at the given node with a snapshot of vars.
func (e *Engine) pause(ctx context.Context, ex *execution, node *models.Node, extra map[string]string) error {
	snapshot := make(map[string]string, len(ex.vars)+len(extra))
	for k, v := range ex.vars {
		snapshot[k] = v
	}
	for k, v := range extra {
		snapshot[k] = v
	}
	return e.flows.PutCursor(ctx, &models.FlowCursor{
		TenantID:  ex.session.TenantID,
		SessionID: ex.session.ID,
		FlowID:    ex.flow.ID,
		NodeID:    node.ID,
		NodeType:  node.Type,
		Variables: snapshot,
		Version:   models.CursorVersion,
	})
}

func (e *Engine) clearCursor(ctx context.Context, session *convmodels.Session) error {
	return e.flows.DeleteCursor(ctx, session.TenantID, session.ID)
}

// resume continues a paused flow with the visitor's reply. It reports
// handled=false after clearing a stale cursor so the caller re-dispatches
// the message as if no cursor existed.
func (e *Engine) resume(ctx context.Context, session *convmodels.Session, cursor *models.FlowCursor, reply string) (bool, error) {
	flow, err := e.flows.GetFlow(ctx, cursor.FlowID)
	if apperr.IsNotFound(err) || (err == nil && flow.TenantID != session.TenantID) {
		e.logger.Info("clearing stale flow cursor",
			zap.String("session_id", session.ID),
			zap.String("flow_id", cursor.FlowID))
		return false, e.clearCursor(ctx, session)
	}
	if err != nil {
		return false, err
	}
	node := flow.NodeByID(cursor.NodeID)
	if node == nil || cursor.Version != models.CursorVersion {
		return false, e.clearCursor(ctx, session)
	}

	vars := cursor.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	ex := &execution{flow: flow, session: session, vars: vars, visitorText: reply}

	// AI variable collection pauses resume through extraction regardless
	// of the node kind they were written at.
	if vars[collectFlowKey] != "" {
		return true, e.resumeCollection(ctx, ex, node, reply)
	}

	if err := e.clearCursor(ctx, session); err != nil {
		return true, err
	}

	switch node.Type {
	case models.NodeQuickInput:
		if name := node.Data.VariableName; name != "" {
			if trimmed := strings.TrimSpace(reply); trimmed != "" {
				ex.vars[name] = trimmed
			}
		}
		return true, e.walk(ctx, ex, e.firstEdgeTarget(flow, node.ID))

	case models.NodeInputForm:
		fields := make([]formFieldRef, 0, len(node.Data.Fields))
		for _, f := range node.Data.Fields {
			fields = append(fields, formFieldRef{Name: f.Name, Label: f.Label})
		}
		parseFormReply(reply, fields, ex.vars)
		return true, e.walk(ctx, ex, e.firstEdgeTarget(flow, node.ID))

	case models.NodeButtons:
		next := e.choiceTarget(flow, node.ID, node.Data.Buttons, "btn-", reply)
		return true, e.walk(ctx, ex, next)

	case models.NodeSelect:
		next := e.choiceTarget(flow, node.ID, node.Data.Options, "opt-", reply)
		return true, e.walk(ctx, ex, next)

	case models.NodeCSAT:
		// the score itself arrives via the CSAT endpoint
		return true, e.walk(ctx, ex, e.firstEdgeTarget(flow, node.ID))

	case models.NodeClose:
		if err := e.closeSession(ctx, session); err != nil {
			return true, err
		}
		return true, nil

	default:
		return true, e.walk(ctx, ex, e.firstEdgeTarget(flow, node.ID))
	}
}

// ResumeAfterCSAT continues a flow that paused on a rating widget once
// the score has arrived through the CSAT endpoint. Cursors parked on any
// other node kind are left alone so a racing visitor reply still resumes
// them normally.
func (e *Engine) ResumeAfterCSAT(ctx context.Context, session *convmodels.Session) error {
	mu := e.lockSession(session.ID)
	defer mu.Unlock()

	cursor, err := e.flows.GetCursor(ctx, session.TenantID, session.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if cursor.NodeType != models.NodeCSAT && cursor.NodeType != models.NodeClose {
		return nil
	}
	flow, err := e.flows.GetFlow(ctx, cursor.FlowID)
	if apperr.IsNotFound(err) || (err == nil && flow.TenantID != session.TenantID) {
		return e.clearCursor(ctx, session)
	}
	if err != nil {
		return err
	}
	node := flow.NodeByID(cursor.NodeID)
	if node == nil || cursor.Version != models.CursorVersion {
		return e.clearCursor(ctx, session)
	}
	if err := e.clearCursor(ctx, session); err != nil {
		return err
	}
	if node.Type == models.NodeClose {
		return e.closeSession(ctx, session)
	}
	vars := cursor.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	ex := &execution{flow: flow, session: session, vars: vars}
	return e.walk(ctx, ex, e.firstEdgeTarget(flow, node.ID))
}

// choiceTarget maps a visitor reply onto a buttons/select branch: the
// reply is compared case-folded against each choice's label and value and
// the hit index selects handle <prefix>N; no match falls back to the
// first edge.
func (e *Engine) choiceTarget(flow *models.Flow, nodeID string, choices []models.Choice, prefix, reply string) *models.Node {
	trimmed := strings.TrimSpace(reply)
	for i, c := range choices {
		if strings.EqualFold(trimmed, c.Label) || strings.EqualFold(trimmed, c.Value) {
			return e.handleTarget(flow, nodeID, prefix+strconv.Itoa(i))
		}
	}
	return e.firstEdgeTarget(flow, nodeID)
}

// sendAgentMessage persists a bot message and broadcasts it only after a
// successful persist.
func (e *Engine) sendAgentMessage(ctx context.Context, ex *execution, text string, suggestions []string, widget *convmodels.Widget) error {
	msg, err := e.convo.AppendMessage(ctx, &convmodels.Message{
		SessionID:   ex.session.ID,
		Sender:      convmodels.SenderAgent,
		Text:        text,
		Suggestions: suggestions,
		Widget:      widget,
	})
	if err != nil {
		e.logger.Error("failed to persist flow message",
			zap.String("session_id", ex.session.ID),
			zap.Error(err))
		return err
	}
	if msg != nil {
		e.emitter.EmitMessage(ex.session, msg)
	}
	return nil
}

// closeSession marks the session closed; the conversation service appends
// the system message and publishes the closure event.
func (e *Engine) closeSession(ctx context.Context, session *convmodels.Session) error {
	_, _, err := e.convo.SetStatus(ctx, session.ID, convmodels.StatusClosed)
	if err != nil {
		return err
	}
	session.Status = convmodels.StatusClosed
	return nil
}
