package models

import "time"

// SessionState tracks where a tenant session is in its lifecycle.
type SessionState string

const (
	SessionStatePending      SessionState = "pending"
	SessionStateReady        SessionState = "ready"
	SessionStateAuthFailed   SessionState = "auth_failed"
	SessionStateDisconnected SessionState = "disconnected"
)

// Terminal reports whether a session in this state can never become ready again.
func (s SessionState) Terminal() bool {
	return s == SessionStateAuthFailed || s == SessionStateDisconnected
}

// SessionStatus is the side-effect-free view of a session returned to callers.
type SessionStatus struct {
	State            SessionState `json:"state"`
	PendingChallenge string       `json:"pendingChallenge,omitempty"`
	Message          string       `json:"message,omitempty"`
}

// SessionMarker is the durable record that a session existed for a tenant.
// It is used to detect crash-recovery scenarios, not to restore the
// connection itself.
type SessionMarker struct {
	TenantID     string    `db:"tenant_id"`
	CreatedAt    time.Time `db:"created_at"`
	LastActiveAt time.Time `db:"last_active_at"`
}
