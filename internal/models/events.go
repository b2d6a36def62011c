package models

import "time"

// Event names pushed to tenant-scoped subscribers.
const (
	EventChallenge      = "challenge"
	EventReady          = "ready"
	EventAuthFailed     = "auth-failed"
	EventDisconnected   = "disconnected"
	EventSendProgress   = "send-progress"
	EventInboundMessage = "inbound-message"
)

// ChallengeEvent carries the authentication challenge payload issued while a
// session is pending.
type ChallengeEvent struct {
	Challenge string `json:"challenge"`
}

// SessionClosedEvent carries the reason for auth-failed and disconnected events.
type SessionClosedEvent struct {
	Reason string `json:"reason"`
}

// SendProgressEvent is published after every send attempt, never batched.
// PercentComplete is computed 1-indexed and is monotonically non-decreasing,
// reaching exactly 100 on the final recipient.
type SendProgressEvent struct {
	CampaignID      string      `json:"campaignId"`
	Recipient       string      `json:"recipient"`
	Outcome         SendOutcome `json:"outcome"`
	Error           string      `json:"error,omitempty"`
	Processed       int         `json:"processed"`
	Total           int         `json:"total"`
	PercentComplete int         `json:"percentComplete"`
}

// InboundMessageEvent notifies subscribers after the auto responder has had
// its chance to handle an incoming message.
type InboundMessageEvent struct {
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}
