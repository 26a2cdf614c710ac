package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/common/logger"
	convmodels "github.com/driftline/driftline/internal/conversation/models"
	ws "github.com/driftline/driftline/pkg/websocket"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(logger.Default())
}

// testClient builds a hub-registered client without a real connection;
// hub paths only touch the send queue.
func testClient(h *Hub, id string) *Client {
	c := &Client{ID: id, hub: h, send: make(chan []byte, 32), logger: h.logger}
	h.register(c)
	return c
}

func drain(t *testing.T, c *Client) []*ws.Message {
	t.Helper()
	var out []*ws.Message
	for {
		select {
		case frame := <-c.send:
			msg, err := ws.Decode(frame)
			require.NoError(t, err)
			out = append(out, msg)
		default:
			return out
		}
	}
}

func events(msgs []*ws.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Event)
	}
	return out
}

func TestEmitMessageVisibility(t *testing.T) {
	h := newTestHub(t)
	widget := testClient(h, "widget-1")
	agent := testClient(h, "agent-1")
	h.markAgent(agent, "a-1", "tenant-1")

	session := &convmodels.Session{ID: "s-1", TenantID: "tenant-1"}
	h.watchSession(widget, "s-1")

	h.EmitMessage(session, &convmodels.Message{SessionID: "s-1", Sender: convmodels.SenderAgent, Text: "hello"})
	assert.Equal(t, []string{ws.EventMessageNew}, events(drain(t, widget)))
	assert.Equal(t, []string{ws.EventMessageNew}, events(drain(t, agent)))

	// internal team message skips the widget socket
	h.EmitMessage(session, &convmodels.Message{SessionID: "s-1", Sender: convmodels.SenderTeam, Text: "internal"})
	assert.Empty(t, drain(t, widget))
	assert.Equal(t, []string{ws.EventMessageNew}, events(drain(t, agent)))
}

func TestEmitMessageTenantScoping(t *testing.T) {
	h := newTestHub(t)
	a1 := testClient(h, "agent-1")
	a2 := testClient(h, "agent-2")
	h.markAgent(a1, "a-1", "tenant-1")
	h.markAgent(a2, "a-2", "tenant-2")

	h.EmitMessage(&convmodels.Session{ID: "s-1", TenantID: "tenant-1"},
		&convmodels.Message{SessionID: "s-1", Sender: convmodels.SenderVisitor, Text: "hi"})

	assert.Len(t, drain(t, a1), 1)
	assert.Empty(t, drain(t, a2))
}

func TestEmitToClient(t *testing.T) {
	h := newTestHub(t)
	c1 := testClient(h, "c-1")
	c2 := testClient(h, "c-2")

	h.EmitToClient("c-1", ws.EventSessionSwitched, map[string]string{"sessionId": "s-2"})
	h.EmitToClient("ghost", ws.EventSessionSwitched, nil)

	msgs := drain(t, c1)
	require.Len(t, msgs, 1)
	assert.Equal(t, ws.EventSessionSwitched, msgs[0].Event)
	assert.Empty(t, drain(t, c2))
}

func TestWatchSessionSwitch(t *testing.T) {
	h := newTestHub(t)
	c := testClient(h, "c-1")

	h.watchSession(c, "s-1")
	h.watchSession(c, "s-2")

	h.EmitMessage(&convmodels.Session{ID: "s-1"}, &convmodels.Message{SessionID: "s-1", Sender: convmodels.SenderVisitor})
	assert.Empty(t, drain(t, c))

	h.EmitMessage(&convmodels.Session{ID: "s-2"}, &convmodels.Message{SessionID: "s-2", Sender: convmodels.SenderVisitor})
	assert.Len(t, drain(t, c), 1)
}

func typingPayload(t *testing.T, msg *ws.Message) TypingPayload {
	t.Helper()
	var p TypingPayload
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	return p
}

func TestBotTypingRefcount(t *testing.T) {
	h := newTestHub(t)
	widget := testClient(h, "widget-1")
	h.watchSession(widget, "s-1")

	h.BotTypingStart("s-1")
	h.BotTypingStart("s-1") // nested, no second emit
	msgs := drain(t, widget)
	require.Len(t, msgs, 1)
	assert.True(t, typingPayload(t, msgs[0]).Active)
	assert.True(t, h.TypingActive("s-1"))

	h.BotTypingStop("s-1")
	assert.Empty(t, drain(t, widget), "still one interval open")

	h.BotTypingStop("s-1")
	msgs = drain(t, widget)
	require.Len(t, msgs, 1)
	assert.False(t, typingPayload(t, msgs[0]).Active)
	assert.False(t, h.TypingActive("s-1"))

	// stop without start is a no-op
	h.BotTypingStop("s-1")
	assert.Empty(t, drain(t, widget))
}

func TestAgentTypingSingleSession(t *testing.T) {
	h := newTestHub(t)
	agent := testClient(h, "agent-1")
	h.markAgent(agent, "a-1", "tenant-1")
	widgetA := testClient(h, "widget-a")
	widgetB := testClient(h, "widget-b")
	h.watchSession(widgetA, "s-a")
	h.watchSession(widgetB, "s-b")

	h.AgentTyping(agent, "s-a", true)
	msgs := drain(t, widgetA)
	require.Len(t, msgs, 1)
	assert.True(t, typingPayload(t, msgs[0]).Active)

	// switching to s-b atomically clears s-a
	h.AgentTyping(agent, "s-b", true)

	offA := drain(t, widgetA)
	require.Len(t, offA, 1)
	pa := typingPayload(t, offA[0])
	assert.Equal(t, "s-a", pa.SessionID)
	assert.False(t, pa.Active)

	onB := drain(t, widgetB)
	require.Len(t, onB, 1)
	pb := typingPayload(t, onB[0])
	assert.Equal(t, "s-b", pb.SessionID)
	assert.True(t, pb.Active)

	h.AgentTyping(agent, "s-b", false)
	offB := drain(t, widgetB)
	require.Len(t, offB, 1)
	assert.False(t, typingPayload(t, offB[0]).Active)
}

func TestBotAndHumanTypingAggregate(t *testing.T) {
	h := newTestHub(t)
	agent := testClient(h, "agent-1")
	h.markAgent(agent, "a-1", "t-1")
	widget := testClient(h, "widget-1")
	h.watchSession(widget, "s-1")

	h.BotTypingStart("s-1")
	drain(t, widget)
	drain(t, agent)

	// human joins while bot active: aggregate already true, no emit
	h.AgentTyping(agent, "s-1", true)
	assert.Empty(t, drain(t, widget))

	// bot stops but human still typing: still no transition
	h.BotTypingStop("s-1")
	assert.Empty(t, drain(t, widget))

	h.AgentTyping(agent, "s-1", false)
	msgs := drain(t, widget)
	require.Len(t, msgs, 1)
	assert.False(t, typingPayload(t, msgs[0]).Active)
}

func TestUnregisterClearsTyping(t *testing.T) {
	h := newTestHub(t)
	agent := testClient(h, "agent-1")
	h.markAgent(agent, "a-1", "t-1")
	widget := testClient(h, "widget-1")
	h.watchSession(widget, "s-1")

	h.AgentTyping(agent, "s-1", true)
	drain(t, widget)

	h.unregister(agent)
	msgs := drain(t, widget)
	require.Len(t, msgs, 1)
	assert.False(t, typingPayload(t, msgs[0]).Active)
	assert.Equal(t, 1, h.ClientCount())
}

func TestVisitorTypingRelay(t *testing.T) {
	h := newTestHub(t)
	agent := testClient(h, "agent-1")
	h.markAgent(agent, "a-1", "t-1")
	widget := testClient(h, "widget-1")
	h.watchSession(widget, "s-1")

	h.VisitorTyping(widget, "s-1", "I was wonder", true)
	msgs := drain(t, agent)
	require.Len(t, msgs, 1)
	assert.Equal(t, ws.EventVisitorTyping, msgs[0].Event)
	var p VisitorTypingPayload
	require.NoError(t, json.Unmarshal(msgs[0].Data, &p))
	assert.Equal(t, "I was wonder", p.Text)
	assert.True(t, p.Active)

	// the widget's own socket never sees its typing relay
	assert.Empty(t, drain(t, widget))

	// disconnect emits the off relay
	h.unregister(widget)
	msgs = drain(t, agent)
	require.Len(t, msgs, 1)
	require.NoError(t, json.Unmarshal(msgs[0].Data, &p))
	assert.False(t, p.Active)
}
