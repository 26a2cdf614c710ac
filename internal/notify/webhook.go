package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/events/bus"
)

const webhookTimeout = 10 * time.Second

// WebhookDispatcher consumes flow.webhook.dispatch events and performs
// the outbound HTTP call. Delivery is fire-and-forget: failures are
// logged and dropped, never retried.
type WebhookDispatcher struct {
	bus    bus.EventBus
	client *http.Client
	logger *logger.Logger

	sub bus.Subscription
}

// NewWebhookDispatcher wires the dispatcher; call Start to begin
// consuming.
func NewWebhookDispatcher(eventBus bus.EventBus, log *logger.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		bus:    eventBus,
		client: &http.Client{Timeout: webhookTimeout},
		logger: log.WithFields(zap.String("component", "webhook-dispatcher")),
	}
}

// Start subscribes to the dispatch subject.
func (d *WebhookDispatcher) Start() error {
	sub, err := d.bus.Subscribe(events.WebhookDispatch, d.handle)
	if err != nil {
		return err
	}
	d.sub = sub
	return nil
}

// Stop tears the subscription down.
func (d *WebhookDispatcher) Stop() {
	if d.sub != nil {
		_ = d.sub.Unsubscribe()
	}
}

func (d *WebhookDispatcher) handle(_ context.Context, event *bus.Event) error {
	url, _ := event.Data["url"].(string)
	if url == "" {
		return nil
	}
	method, _ := event.Data["method"].(string)
	if method == "" {
		method = http.MethodPost
	}
	body, _ := event.Data["body"].(string)
	sessionID, _ := event.Data["session_id"].(string)

	// the bus handler runs on the publisher's goroutine; do the network
	// call detached
	go d.deliver(url, method, body, sessionID, event.Data["headers"])
	return nil
}

func (d *WebhookDispatcher) deliver(url, method, body, sessionID string, rawHeaders interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		d.logger.Warn("invalid webhook request",
			zap.String("session_id", sessionID),
			zap.String("url", url),
			zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := rawHeaders.(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("webhook delivery failed",
			zap.String("session_id", sessionID),
			zap.String("url", url),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	d.logger.Debug("webhook delivered",
		zap.String("session_id", sessionID),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode))
}
