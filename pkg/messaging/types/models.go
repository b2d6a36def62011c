package types

import (
	"encoding/json"
	"time"
)

// ClientConfig configures one gateway client bound to a single tenant.
type ClientConfig struct {
	BaseURL  string
	APIKey   string
	TenantID string
	Timeout  time.Duration
}

// SendMessageResponse is the gateway's acknowledgement of an outbound send.
type SendMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Lifecycle and traffic events emitted by the external messaging network,
// delivered to us through the gateway webhook.
const (
	EventQRChallenge   = "qr-challenge"
	EventAuthenticated = "authenticated"
	EventReady         = "ready"
	EventAuthFailed    = "auth-failed"
	EventDisconnected  = "disconnected"
	EventMessage       = "message"
)

// WebhookEvent is the envelope the gateway posts to our webhook endpoint.
type WebhookEvent struct {
	TenantID string          `json:"tenantId"`
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
}

// QRChallengePayload carries the scannable authentication challenge issued
// while a session is pending.
type QRChallengePayload struct {
	Code string `json:"code"`
}

// ReasonPayload carries the reason for auth-failed and disconnected events.
type ReasonPayload struct {
	Reason string `json:"reason"`
}

// InboundMessagePayload is one message received on the tenant's connection.
type InboundMessagePayload struct {
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}
