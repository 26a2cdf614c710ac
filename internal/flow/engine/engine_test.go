package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/ai"
	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	convmodels "github.com/driftline/driftline/internal/conversation/models"
	convrepo "github.com/driftline/driftline/internal/conversation/repository"
	convservice "github.com/driftline/driftline/internal/conversation/service"
	dirrepo "github.com/driftline/driftline/internal/directory/repository"
	dirservice "github.com/driftline/driftline/internal/directory/service"
	"github.com/driftline/driftline/internal/events/bus"
	"github.com/driftline/driftline/internal/flow/models"
	flowrepo "github.com/driftline/driftline/internal/flow/repository"
)

// recorder captures engine output in place of the websocket hub.
type recorder struct {
	mu       sync.Mutex
	messages []*convmodels.Message
	typingOn int
	typingOff int
}

func (r *recorder) EmitMessage(session *convmodels.Session, msg *convmodels.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) BotTypingStart(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typingOn++
}

func (r *recorder) BotTypingStop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typingOff++
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Text
	}
	return out
}

func (r *recorder) last() *convmodels.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return nil
	}
	return r.messages[len(r.messages)-1]
}

// scriptedGateway returns canned decisions and extractions in order.
type scriptedGateway struct {
	decisions []*ai.Decision
	extracts  []map[string]string
}

func (g *scriptedGateway) GenerateReply(ctx context.Context, req ai.ReplyRequest) (*ai.Decision, error) {
	if len(g.decisions) == 0 {
		return &ai.Decision{Reply: "canned reply"}, nil
	}
	d := g.decisions[0]
	g.decisions = g.decisions[1:]
	return d, nil
}

func (g *scriptedGateway) ExtractVariables(ctx context.Context, req ai.ExtractRequest) (map[string]string, error) {
	if len(g.extracts) == 0 {
		return map[string]string{}, nil
	}
	m := g.extracts[0]
	g.extracts = g.extracts[1:]
	return m, nil
}

type harness struct {
	engine *Engine
	flows  flowrepo.Repository
	convo  *convservice.Service
	dir    *dirservice.Service
	rec    *recorder
}

func newHarness(t *testing.T, gateway ai.Gateway) *harness {
	t.Helper()
	log := logger.Default()
	eventBus := bus.NewMemoryEventBus(log)
	flows := flowrepo.NewMemoryRepository()
	convo := convservice.NewService(convrepo.NewMemoryRepository(), eventBus, log)
	dir := dirservice.NewService(dirrepo.NewMemoryRepository(), log)
	rec := &recorder{}
	if gateway == nil {
		gateway = ai.NewStub()
	}
	eng := NewEngine(flows, convo, dir, gateway, eventBus, rec, log)
	eng.sleep = func(ctx context.Context, d time.Duration) {}
	return &harness{engine: eng, flows: flows, convo: convo, dir: dir, rec: rec}
}

func (h *harness) newSession(t *testing.T, id string) *convmodels.Session {
	t.Helper()
	session, _, err := h.convo.EnsureSession(context.Background(), "t1", id, "v-"+id, "widget")
	require.NoError(t, err)
	return session
}

// sendVisitor persists a visitor message then dispatches it, matching the
// orchestrator's persist-then-dispatch order.
func (h *harness) sendVisitor(t *testing.T, session *convmodels.Session, text string) {
	t.Helper()
	ctx := context.Background()
	_, err := h.convo.AppendMessage(ctx, &convmodels.Message{
		SessionID: session.ID,
		Sender:    convmodels.SenderVisitor,
		Text:      text,
	})
	require.NoError(t, err)
	require.NoError(t, h.engine.HandleVisitorMessage(ctx, session, text))
}

func (h *harness) addFlow(t *testing.T, flow *models.Flow) *models.Flow {
	t.Helper()
	flow.TenantID = "t1"
	flow.Enabled = true
	require.NoError(t, h.flows.CreateFlow(context.Background(), flow))
	return flow
}

func welcomeFlow() *models.Flow {
	return &models.Flow{
		Name: "welcome",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "hello", Type: models.NodeMessage, Data: models.NodeData{Text: "Hello!", Suggestions: []string{"Pricing", "Support"}}},
			{ID: "pick", Type: models.NodeButtons, Data: models.NodeData{
				Text:    "What can I help with?",
				Buttons: []models.Choice{{Label: "Pricing", Value: "pricing"}, {Label: "Support", Value: "support"}},
			}},
			{ID: "pricing", Type: models.NodeMessage, Data: models.NodeData{Text: "Our plans start at $10."}},
			{ID: "support", Type: models.NodeMessage, Data: models.NodeData{Text: "Let me get you to support."}},
		},
		Edges: []models.Edge{
			{Source: "t", Target: "hello"},
			{Source: "hello", Target: "pick"},
			{Source: "pick", Target: "pricing", SourceHandle: "btn-0"},
			{Source: "pick", Target: "support", SourceHandle: "btn-1"},
		},
	}
}

func TestWidgetOpenRunsWelcomeFlowOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, welcomeFlow())
	session := h.newSession(t, "s1")

	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))

	texts := h.rec.texts()
	require.Equal(t, []string{"Hello!", "What can I help with?"}, texts)
	assert.Equal(t, []string{"Pricing", "Support"}, h.rec.messages[0].Suggestions)
	require.NotNil(t, h.rec.last().Widget)
	assert.Equal(t, convmodels.WidgetButtons, h.rec.last().Widget.Type)

	// cursor parked at the buttons node
	cursor, err := h.flows.GetCursor(ctx, "t1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, "pick", cursor.NodeID)

	// reopening the widget must not re-run the trigger
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	assert.Len(t, h.rec.texts(), 2)
}

func TestOpenTriggerFiresOncePerSessionAcrossFlows(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, welcomeFlow())
	second := h.addFlow(t, welcomeFlow())
	session := h.newSession(t, "s1")

	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	require.Len(t, h.rec.texts(), 2)

	// pinning the session to another flow must not resurrect a spent
	// open trigger; the guard is per (session, event), not per flow
	session.FlowID = second.ID
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	assert.Len(t, h.rec.texts(), 2)
}

func TestButtonsResumeSelectsBranch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, welcomeFlow())
	session := h.newSession(t, "s1")
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))

	h.sendVisitor(t, session, "Pricing")

	assert.Equal(t, "Our plans start at $10.", h.rec.last().Text)
	_, err := h.flows.GetCursor(ctx, "t1", session.ID)
	assert.True(t, apperr.IsNotFound(err), "cursor should be cleared after terminal")
}

func TestButtonsResumeByValueCaseFolded(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, welcomeFlow())
	session := h.newSession(t, "s1")
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))

	h.sendVisitor(t, session, "SUPPORT")
	assert.Equal(t, "Let me get you to support.", h.rec.last().Text)
}

func TestButtonsResumeNoMatchFallsBackToFirstEdge(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, welcomeFlow())
	session := h.newSession(t, "s1")
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))

	h.sendVisitor(t, session, "something else entirely")
	assert.Equal(t, "Our plans start at $10.", h.rec.last().Text)
}

func TestQuickInputStoresVariable(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, &models.Flow{
		Name: "name-capture",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "ask", Type: models.NodeQuickInput, Data: models.NodeData{
				Text: "What's your name?", VariableName: "visitor_name",
			}},
			{ID: "greet", Type: models.NodeMessage, Data: models.NodeData{Text: "Nice to meet you, {{visitor_name}}!"}},
		},
		Edges: []models.Edge{
			{Source: "t", Target: "ask"},
			{Source: "ask", Target: "greet"},
		},
	})
	session := h.newSession(t, "s1")
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	require.Equal(t, convmodels.WidgetQuickInput, h.rec.last().Widget.Type)

	h.sendVisitor(t, session, "Ada")
	assert.Equal(t, "Nice to meet you, Ada!", h.rec.last().Text)
}

func TestInputFormResumeParsesLabeledPairs(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, &models.Flow{
		Name: "lead-form",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "form", Type: models.NodeInputForm, Data: models.NodeData{
				Text: "Tell us about yourself",
				Fields: []models.FormField{
					{Name: "full_name", Label: "Name"},
					{Name: "company", Label: "Company"},
				},
			}},
			{ID: "done", Type: models.NodeMessage, Data: models.NodeData{Text: "Thanks {{full_name}} from {{company}}!"}},
		},
		Edges: []models.Edge{
			{Source: "t", Target: "form"},
			{Source: "form", Target: "done"},
		},
	})
	session := h.newSession(t, "s1")
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))

	h.sendVisitor(t, session, "Name: Grace, Company: Acme")
	assert.Equal(t, "Thanks Grace from Acme!", h.rec.last().Text)
}

func TestFirstMessageTrigger(t *testing.T) {
	h := newHarness(t, nil)
	h.addFlow(t, &models.Flow{
		Name: "first-reply",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerFirstMessage}},
			{ID: "m", Type: models.NodeMessage, Data: models.NodeData{Text: "Welcome aboard!"}},
		},
		Edges: []models.Edge{{Source: "t", Target: "m"}},
	})
	session := h.newSession(t, "s1")

	h.sendVisitor(t, session, "hi there")
	require.Equal(t, []string{"Welcome aboard!"}, h.rec.texts())

	// second message no longer matches; stub gateway answers instead
	h.sendVisitor(t, session, "anyone home?")
	texts := h.rec.texts()
	require.Len(t, texts, 2)
	assert.NotEqual(t, "Welcome aboard!", texts[1])
}

func TestKeywordTriggerFilters(t *testing.T) {
	h := newHarness(t, nil)
	h.addFlow(t, &models.Flow{
		Name: "refunds",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{
				On: models.TriggerAnyMessage, Keywords: []string{"refund", "money back"},
			}},
			{ID: "m", Type: models.NodeMessage, Data: models.NodeData{Text: "Our refund policy is 30 days."}},
		},
		Edges: []models.Edge{{Source: "t", Target: "m"}},
	})
	session := h.newSession(t, "s1")

	h.sendVisitor(t, session, "I want my MONEY BACK")
	assert.Equal(t, "Our refund policy is 30 days.", h.rec.last().Text)

	h.sendVisitor(t, session, "what are your opening hours")
	assert.NotEqual(t, "Our refund policy is 30 days.", h.rec.last().Text)
}

func TestConditionBranching(t *testing.T) {
	h := newHarness(t, nil)
	h.addFlow(t, &models.Flow{
		Name: "router",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerAnyMessage}},
			{ID: "c", Type: models.NodeCondition, Data: models.NodeData{
				Rules:         []models.Rule{{Attribute: "message", Operator: "contains", Value: "urgent"}},
				LogicOperator: "and",
			}},
			{ID: "yes", Type: models.NodeMessage, Data: models.NodeData{Text: "Escalating right away."}},
			{ID: "no", Type: models.NodeMessage, Data: models.NodeData{Text: "We'll get back to you soon."}},
		},
		Edges: []models.Edge{
			{Source: "t", Target: "c"},
			{Source: "c", Target: "yes", SourceHandle: "true"},
			{Source: "c", Target: "no", SourceHandle: "false"},
		},
	})
	session := h.newSession(t, "s1")

	h.sendVisitor(t, session, "this is URGENT")
	assert.Equal(t, "Escalating right away.", h.rec.last().Text)

	h.sendVisitor(t, session, "no rush at all")
	assert.Equal(t, "We'll get back to you soon.", h.rec.last().Text)
}

func TestSubFlowWithBoundVariables(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sub := h.addFlow(t, &models.Flow{
		Name:           "order-lookup",
		InputVariables: []models.InputVariable{{Key: "order_number", Label: "Order number", Required: true}},
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerAnyMessage}},
			{ID: "m", Type: models.NodeMessage, Data: models.NodeData{Text: "Order {{order_number}} is on its way."}},
		},
		Edges: []models.Edge{{Source: "t", Target: "m"}},
	})
	parent := h.addFlow(t, &models.Flow{
		Name: "parent",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "call", Type: models.NodeStartFlow, Data: models.NodeData{
				FlowID:           sub.ID,
				VariableBindings: map[string]string{"order_number": "42"},
			}},
		},
		Edges: []models.Edge{{Source: "t", Target: "call"}},
	})
	session := h.newSession(t, "s1")
	session.FlowID = parent.ID

	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	assert.Equal(t, "Order 42 is on its way.", h.rec.last().Text)
}

func TestSubFlowAICollection(t *testing.T) {
	gw := &scriptedGateway{
		extracts: []map[string]string{
			{}, // first reply extracts nothing
			{"order_number": "1234"},
		},
	}
	h := newHarness(t, gw)
	ctx := context.Background()
	sub := h.addFlow(t, &models.Flow{
		Name:           "order-lookup",
		InputVariables: []models.InputVariable{{Key: "order_number", Label: "Order number", Required: true}},
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerAnyMessage}},
			{ID: "m", Type: models.NodeMessage, Data: models.NodeData{Text: "Order {{order_number}} found."}},
		},
		Edges: []models.Edge{{Source: "t", Target: "m"}},
	})
	parent := h.addFlow(t, &models.Flow{
		Name: "parent",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "call", Type: models.NodeStartFlow, Data: models.NodeData{
				FlowID:          sub.ID,
				AICollectInputs: true,
			}},
		},
		Edges: []models.Edge{{Source: "t", Target: "call"}},
	})
	session := h.newSession(t, "s1")
	session.FlowID = parent.ID

	// invocation pauses and asks for the missing variable
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	assert.Contains(t, h.rec.last().Text, "Order number")
	cursor, err := h.flows.GetCursor(ctx, "t1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, "call", cursor.NodeID)

	// unhelpful reply: extraction empty, re-ask and stay paused
	h.sendVisitor(t, session, "hello?")
	assert.Contains(t, h.rec.last().Text, "Order number")
	_, err = h.flows.GetCursor(ctx, "t1", session.ID)
	require.NoError(t, err)

	// useful reply: extraction fills the var, sub-flow runs
	h.sendVisitor(t, session, "it's order 1234")
	assert.Equal(t, "Order 1234 found.", h.rec.last().Text)
	_, err = h.flows.GetCursor(ctx, "t1", session.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAIDecisionHandoverStopsBot(t *testing.T) {
	gw := &scriptedGateway{decisions: []*ai.Decision{
		{Reply: "Let me get a colleague.", Handover: true},
	}}
	h := newHarness(t, gw)
	session := h.newSession(t, "s1")

	h.sendVisitor(t, session, "I want to talk to a human")
	assert.Equal(t, "Let me get a colleague.", h.rec.last().Text)
	assert.True(t, session.HandoverActive)

	// handed-over sessions get no bot replies
	h.sendVisitor(t, session, "hello?")
	assert.Len(t, h.rec.texts(), 1)
}

func TestAIDecisionCloseChat(t *testing.T) {
	gw := &scriptedGateway{decisions: []*ai.Decision{
		{Reply: "Glad I could help, bye!", CloseChat: true},
	}}
	h := newHarness(t, gw)
	ctx := context.Background()
	session := h.newSession(t, "s1")

	h.sendVisitor(t, session, "thanks, all good")
	got, err := h.convo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, convmodels.StatusClosed, got.Status)
}

func TestAIDecisionTriggerFlow(t *testing.T) {
	gw := &scriptedGateway{decisions: []*ai.Decision{
		{Reply: "Checking that for you.", TriggerFlow: &ai.TriggerFlow{
			Variables: map[string]string{"order_number": "777"},
		}},
	}}
	h := newHarness(t, gw)
	sub := h.addFlow(t, &models.Flow{
		Name:              "order-lookup",
		AITool:            true,
		AIToolDescription: "Look up an order",
		InputVariables:    []models.InputVariable{{Key: "order_number", Label: "Order number", Required: true}},
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerAnyMessage}},
			{ID: "m", Type: models.NodeMessage, Data: models.NodeData{Text: "Order {{order_number}} shipped."}},
		},
		Edges: []models.Edge{{Source: "t", Target: "m"}},
	})
	gw.decisions[0].TriggerFlow.FlowID = sub.ID
	session := h.newSession(t, "s1")
	// sub has an any_message trigger with no keywords; pin the session to
	// a non-matching flow so the AI fallback path is exercised
	noop := h.addFlow(t, &models.Flow{
		Name: "noop",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
		},
	})
	session.FlowID = noop.ID

	h.sendVisitor(t, session, "where is my order 777")
	texts := h.rec.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Checking that for you.", texts[0])
	assert.Equal(t, "Order 777 shipped.", texts[1])
}

func TestCloseConversationWithCSAT(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, &models.Flow{
		Name: "wrap-up",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "close", Type: models.NodeClose, Data: models.NodeData{AskCSAT: true}},
		},
		Edges: []models.Edge{{Source: "t", Target: "close"}},
	})
	session := h.newSession(t, "s1")

	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	require.NotNil(t, h.rec.last().Widget)
	assert.Equal(t, convmodels.WidgetCSAT, h.rec.last().Widget.Type)

	// session still open while waiting for the rating
	got, err := h.convo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, convmodels.StatusOpen, got.Status)

	// visitor reply resumes the close
	h.sendVisitor(t, session, "5 stars, great service")
	got, err = h.convo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, convmodels.StatusClosed, got.Status)
}

func TestStaleCursorCleared(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	session := h.newSession(t, "s1")
	require.NoError(t, h.flows.PutCursor(ctx, &models.FlowCursor{
		TenantID:  "t1",
		SessionID: session.ID,
		FlowID:    "deleted-flow",
		NodeID:    "gone",
		NodeType:  models.NodeButtons,
		Version:   models.CursorVersion,
	}))

	// stub gateway answers as if no cursor existed
	h.sendVisitor(t, session, "hello")
	assert.NotEmpty(t, h.rec.texts())
	_, err := h.flows.GetCursor(ctx, "t1", session.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestStepBoundStopsCycles(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, &models.Flow{
		Name: "loop",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "a", Type: models.NodeMessage, Data: models.NodeData{Text: "around"}},
			{ID: "b", Type: models.NodeMessage, Data: models.NodeData{Text: "we go"}},
		},
		Edges: []models.Edge{
			{Source: "t", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	})
	session := h.newSession(t, "s1")

	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	assert.LessOrEqual(t, len(h.rec.texts()), maxSteps)
	assert.GreaterOrEqual(t, len(h.rec.texts()), 2)
}

func TestMessageDelayWrapsTyping(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, &models.Flow{
		Name: "typed",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "m", Type: models.NodeMessage, Data: models.NodeData{Text: "slow reply", DelayMs: 500}},
		},
		Edges: []models.Edge{{Source: "t", Target: "m"}},
	})
	session := h.newSession(t, "s1")

	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	assert.Equal(t, 1, h.rec.typingOn)
	assert.Equal(t, 1, h.rec.typingOff)
	assert.Equal(t, []string{"slow reply"}, h.rec.texts())
}

func TestAssignNodeSetsHandover(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	team, err := h.dir.CreateTeam(ctx, "t1", "Billing")
	require.NoError(t, err)
	h.addFlow(t, &models.Flow{
		Name: "escalate",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "a", Type: models.NodeAssign, Data: models.NodeData{TeamName: "Billing"}},
		},
		Edges: []models.Edge{{Source: "t", Target: "a"}},
	})
	session := h.newSession(t, "s1")

	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	got, err := h.convo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, got.TeamID)
	assert.True(t, got.HandoverActive)
}

func TestSetAttributeInterpolatesAndStores(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.addFlow(t, &models.Flow{
		Name: "capture",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "ask", Type: models.NodeQuickInput, Data: models.NodeData{
				Text: "Work email?", VariableName: "work_email",
			}},
			{ID: "set", Type: models.NodeSetAttr, Data: models.NodeData{
				AttributeName: "email", AttributeValue: "{{work_email}}",
			}},
		},
		Edges: []models.Edge{
			{Source: "t", Target: "ask"},
			{Source: "ask", Target: "set"},
		},
	})
	session := h.newSession(t, "s1")
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))

	h.sendVisitor(t, session, "ada@example.com")

	got, err := h.convo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.ContactID)
	contact, err := h.convo.GetContact(ctx, got.ContactID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", contact.Email)
}

func TestContactVarsSeedFlowEnvironment(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	session := h.newSession(t, "s1")
	require.NoError(t, h.convo.SetContactField(ctx, session.ID, "name", "Grace"))
	fresh, err := h.convo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	*session = *fresh

	h.addFlow(t, &models.Flow{
		Name: "personal",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "m", Type: models.NodeMessage, Data: models.NodeData{Text: "Welcome back, {{contact.name}}!"}},
		},
		Edges: []models.Edge{{Source: "t", Target: "m"}},
	})
	require.NoError(t, h.engine.HandleOpenEvent(ctx, session, models.TriggerWidgetOpen))
	assert.Equal(t, "Welcome back, Grace!", h.rec.last().Text)
}
