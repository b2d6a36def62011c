package types

import (
	"context"
	"encoding/json"
)

// Client is one authenticated connection handle to the messaging network.
// The gateway behind it is an opaque collaborator; lifecycle events arrive
// asynchronously via the webhook, not as return values here.
//
// A Client is not assumed safe for concurrent sends; callers serialize.
type Client interface {
	StartSession(ctx context.Context) error
	Logout(ctx context.Context) error
	SendText(ctx context.Context, recipient, body string) (*SendMessageResponse, error)
	SendMedia(ctx context.Context, recipient, mediaPath, caption string) (*SendMessageResponse, error)
}

// ClientFactory builds a Client bound to one tenant. The session registry
// uses it so tests can substitute fakes.
type ClientFactory func(tenantID string) Client

// WebhookHandler routes parsed webhook events to registered handlers.
type WebhookHandler interface {
	Handle(ctx context.Context, event *WebhookEvent) error
	RegisterEventHandler(eventType string, handler func(ctx context.Context, tenantID string, payload json.RawMessage) error)
}
