package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"wablast/pkg/messaging/types"
)

type webhookHandler struct {
	handlers map[string]func(context.Context, string, json.RawMessage) error
	mu       sync.RWMutex
}

// NewWebhookHandler creates a webhook event router.
func NewWebhookHandler() types.WebhookHandler {
	return &webhookHandler{
		handlers: make(map[string]func(context.Context, string, json.RawMessage) error),
	}
}

func (wh *webhookHandler) Handle(ctx context.Context, event *types.WebhookEvent) error {
	if event.TenantID == "" {
		return fmt.Errorf("webhook event missing tenant ID")
	}

	wh.mu.RLock()
	handler, exists := wh.handlers[event.Event]
	wh.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for event type: %s", event.Event)
	}

	return handler(ctx, event.TenantID, event.Payload)
}

func (wh *webhookHandler) RegisterEventHandler(eventType string, handler func(context.Context, string, json.RawMessage) error) {
	wh.mu.Lock()
	defer wh.mu.Unlock()

	wh.handlers[eventType] = handler
}

// ParseWebhookEvent decodes the webhook envelope from a request body.
func ParseWebhookEvent(body []byte) (*types.WebhookEvent, error) {
	var event types.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook event: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("webhook event missing event type")
	}
	return &event, nil
}
