package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/common/logger"
	convrepo "github.com/driftline/driftline/internal/conversation/repository"
	convservice "github.com/driftline/driftline/internal/conversation/service"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/events/bus"
	ws "github.com/driftline/driftline/pkg/websocket"
)

type notifierRecorder struct {
	mu     sync.Mutex
	events []string
	tenant string
}

func (n *notifierRecorder) EmitToAgents(tenantID, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tenant = tenantID
	n.events = append(n.events, event)
}

func TestAgentRelayPushesSessionUpdates(t *testing.T) {
	log := logger.Default()
	eventBus := bus.NewMemoryEventBus(log)
	convo := convservice.NewService(convrepo.NewMemoryRepository(), eventBus, log)
	rec := &notifierRecorder{}

	relay := NewAgentRelay(eventBus, convo, rec, log)
	require.NoError(t, relay.Start())
	defer relay.Stop()

	ctx := context.Background()
	session, _, err := convo.EnsureSession(ctx, "tenant-1", "", "v-1", "widget")
	require.NoError(t, err)

	// creation already relayed; a status change relays again
	_, _, err = convo.SetStatus(ctx, session.ID, "resolved")
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.GreaterOrEqual(t, len(rec.events), 2)
	for _, ev := range rec.events {
		assert.Equal(t, ws.EventSessionUpdated, ev)
	}
	assert.Equal(t, "tenant-1", rec.tenant)
}

func TestAgentRelaySkipsMessageEvents(t *testing.T) {
	log := logger.Default()
	eventBus := bus.NewMemoryEventBus(log)
	convo := convservice.NewService(convrepo.NewMemoryRepository(), eventBus, log)
	rec := &notifierRecorder{}

	relay := NewAgentRelay(eventBus, convo, rec, log)
	require.NoError(t, relay.Start())
	defer relay.Stop()

	event := bus.NewEvent(events.MessageCreated, "conversation-service", map[string]interface{}{
		"session_id": "s-1",
	})
	require.NoError(t, eventBus.Publish(context.Background(), events.BuildMessageCreatedSubject("s-1"), event))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.events)
}

func TestWebhookDispatcherDelivers(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodies <- string(buf)
		received <- r
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	log := logger.Default()
	eventBus := bus.NewMemoryEventBus(log)
	d := NewWebhookDispatcher(eventBus, log)
	require.NoError(t, d.Start())
	defer d.Stop()

	event := bus.NewEvent(events.WebhookDispatch, "flow-engine", map[string]interface{}{
		"session_id": "s-1",
		"url":        srv.URL + "/hook",
		"method":     "POST",
		"headers":    map[string]interface{}{"X-Signature": "abc"},
		"body":       `{"order":"42"}`,
	})
	require.NoError(t, eventBus.Publish(context.Background(), events.WebhookDispatch, event))

	select {
	case r := <-received:
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/hook", r.URL.Path)
		assert.Equal(t, "abc", r.Header.Get("X-Signature"))
		assert.Equal(t, `{"order":"42"}`, <-bodies)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestWebhookDispatcherIgnoresMissingURL(t *testing.T) {
	log := logger.Default()
	eventBus := bus.NewMemoryEventBus(log)
	d := NewWebhookDispatcher(eventBus, log)
	require.NoError(t, d.Start())
	defer d.Stop()

	event := bus.NewEvent(events.WebhookDispatch, "flow-engine", map[string]interface{}{
		"session_id": "s-1",
	})
	assert.NoError(t, eventBus.Publish(context.Background(), events.WebhookDispatch, event))
}
