package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wablast/internal/broadcast"
	"wablast/internal/constants"
	apperrors "wablast/internal/errors"
	"wablast/internal/models"
	"wablast/internal/validation"
	"wablast/pkg/messaging/types"

	"github.com/sirupsen/logrus"
)

// SessionStore persists session markers so a restart can tell which tenants
// had live sessions before the crash.
type SessionStore interface {
	SaveSessionMarker(ctx context.Context, tenantID string, lastActiveAt time.Time) error
	DeleteSessionMarker(ctx context.Context, tenantID string) error
	GetSessionMarker(ctx context.Context, tenantID string) (*models.SessionMarker, error)
}

// session is the in-memory connection handle for one tenant. The gateway
// client inside it is not restored across restarts; only the marker is.
type session struct {
	tenantID   string
	client     types.Client
	state      models.SessionState
	challenge  string
	lastActive time.Time
	idleTimer  *time.Timer

	// sendMu serializes individual sends through this session. Campaigns
	// and the auto responder share one connection per tenant.
	sendMu sync.Mutex
}

// SessionRegistry owns the lifecycle of every tenant session: creation,
// webhook-driven state transitions, idle expiry and teardown.
//
// All operations are idempotent where the lifecycle allows it: initializing
// an already-live session returns its current status, and logging out a
// tenant with no session is a no-op.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session

	factory     types.ClientFactory
	store       SessionStore
	broadcaster broadcast.Broadcaster
	logger      *logrus.Logger

	idleTTL         time.Duration
	purgeGraceDelay time.Duration
	authDir         string
}

// RegistryOptions carries the tunables for a SessionRegistry. Zero values
// fall back to defaults.
type RegistryOptions struct {
	IdleTTL         time.Duration
	PurgeGraceDelay time.Duration
	AuthDir         string
}

func NewSessionRegistry(factory types.ClientFactory, store SessionStore, broadcaster broadcast.Broadcaster, logger *logrus.Logger, opts RegistryOptions) *SessionRegistry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = time.Duration(constants.DefaultSessionIdleTTLMinutes) * time.Minute
	}
	if opts.PurgeGraceDelay <= 0 {
		opts.PurgeGraceDelay = time.Duration(constants.DefaultAuthPurgeGraceDelaySec) * time.Second
	}
	return &SessionRegistry{
		sessions:        make(map[string]*session),
		factory:         factory,
		store:           store,
		broadcaster:     broadcaster,
		logger:          logger,
		idleTTL:         opts.IdleTTL,
		purgeGraceDelay: opts.PurgeGraceDelay,
		authDir:         opts.AuthDir,
	}
}

// InitOrGet starts a session for the tenant, or returns the current status
// when a live one already exists. A session in a terminal state is replaced
// by a fresh pending one.
func (r *SessionRegistry) InitOrGet(ctx context.Context, tenantID string) (*models.SessionStatus, error) {
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid tenant ID")
	}

	r.mu.Lock()
	if sess, exists := r.sessions[tenantID]; exists {
		if !r.expiredLocked(sess) && !sess.state.Terminal() {
			status := statusOf(sess)
			status.Message = "session already active"
			r.mu.Unlock()
			return status, nil
		}
		// Expired or terminal: tear down before starting over.
		r.removeLocked(sess)
		r.mu.Unlock()
		r.finishTeardown(ctx, sess)
		r.mu.Lock()
		// Another caller may have raced us to a fresh session.
		if raced, exists := r.sessions[tenantID]; exists {
			status := statusOf(raced)
			status.Message = "session already active"
			r.mu.Unlock()
			return status, nil
		}
	}

	sess := &session{
		tenantID:   tenantID,
		client:     r.factory(tenantID),
		state:      models.SessionStatePending,
		lastActive: time.Now(),
	}
	r.sessions[tenantID] = sess
	sess.idleTimer = time.AfterFunc(r.idleTTL, func() { r.expire(tenantID) })
	r.mu.Unlock()

	if err := sess.client.StartSession(ctx); err != nil {
		r.mu.Lock()
		r.removeLocked(sess)
		r.mu.Unlock()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMessagingAPI, "failed to start session").
			WithContext("tenant_id", tenantID)
	}

	if err := r.store.SaveSessionMarker(ctx, tenantID, sess.lastActive); err != nil {
		r.logger.WithError(err).WithField(LogFieldTenantID, tenantID).Warn("Failed to persist session marker")
	}

	r.logger.WithField(LogFieldTenantID, tenantID).Info("Session initialization started")
	return &models.SessionStatus{State: models.SessionStatePending, Message: "session initializing"}, nil
}

// Status reports the session state without side effects. It does not touch
// the idle timer and does not trigger expiry.
func (r *SessionRegistry) Status(tenantID string) (*models.SessionStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[tenantID]
	if !exists {
		return nil, apperrors.New(apperrors.ErrCodeSessionNotFound, "no session for tenant").
			WithContext("tenant_id", tenantID)
	}
	return statusOf(sess), nil
}

// PendingChallenge returns the current authentication challenge, or an error
// when the session is absent or past the challenge phase.
func (r *SessionRegistry) PendingChallenge(tenantID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[tenantID]
	if !exists {
		return "", apperrors.New(apperrors.ErrCodeSessionNotFound, "no session for tenant")
	}
	if sess.challenge == "" {
		return "", apperrors.New(apperrors.ErrCodeNotFound, "no pending challenge")
	}
	return sess.challenge, nil
}

// IsReady reports whether the tenant has a live, authenticated session.
// A session past its idle TTL is torn down here rather than reported live.
func (r *SessionRegistry) IsReady(tenantID string) bool {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		return false
	}
	if r.expiredLocked(sess) {
		r.removeLocked(sess)
		r.mu.Unlock()
		r.finishTeardown(context.Background(), sess)
		return false
	}
	ready := sess.state == models.SessionStateReady
	r.mu.Unlock()
	return ready
}

// Touch marks the session as active, pushing back its idle expiry.
func (r *SessionRegistry) Touch(tenantID string) {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		return
	}
	sess.lastActive = time.Now()
	if sess.idleTimer != nil {
		sess.idleTimer.Reset(r.idleTTL)
	}
	lastActive := sess.lastActive
	r.mu.Unlock()

	if err := r.store.SaveSessionMarker(context.Background(), tenantID, lastActive); err != nil {
		r.logger.WithError(err).WithField(LogFieldTenantID, tenantID).Debug("Failed to refresh session marker")
	}
}

// Send delivers one message through the tenant's session. Sends through the
// same session are strictly serialized. An empty mediaPath sends plain text.
func (r *SessionRegistry) Send(ctx context.Context, tenantID, recipient, body, mediaPath string) error {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists || sess.state != models.SessionStateReady {
		r.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeSessionNotReady, "session is not ready").
			WithContext("tenant_id", tenantID)
	}
	if r.expiredLocked(sess) {
		r.removeLocked(sess)
		r.mu.Unlock()
		r.finishTeardown(ctx, sess)
		return apperrors.New(apperrors.ErrCodeSessionNotReady, "session expired").
			WithContext("tenant_id", tenantID)
	}
	r.mu.Unlock()

	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()

	r.Touch(tenantID)

	var err error
	if mediaPath != "" {
		_, err = sess.client.SendMedia(ctx, recipient, mediaPath, body)
	} else {
		_, err = sess.client.SendText(ctx, recipient, body)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeMessagingAPI, "send failed").
			WithContext("tenant_id", tenantID)
	}
	return nil
}

// Logout tears the session down. Calling it for a tenant with no session is
// not an error.
func (r *SessionRegistry) Logout(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	r.removeLocked(sess)
	r.mu.Unlock()

	r.finishTeardown(ctx, sess)
	r.logger.WithField(LogFieldTenantID, tenantID).Info("Session logged out")
	return nil
}

// HandleChallenge processes a gateway challenge webhook. The challenge stays
// available until the session becomes ready.
func (r *SessionRegistry) HandleChallenge(ctx context.Context, tenantID, challenge string) error {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		r.logger.WithField(LogFieldTenantID, tenantID).Warn("Challenge for unknown session")
		return nil
	}
	sess.challenge = challenge
	sess.state = models.SessionStatePending
	sess.lastActive = time.Now()
	if sess.idleTimer != nil {
		sess.idleTimer.Reset(r.idleTTL)
	}
	r.mu.Unlock()

	r.broadcaster.Publish(tenantID, models.EventChallenge, models.ChallengeEvent{Challenge: challenge})
	r.logger.WithField(LogFieldTenantID, tenantID).Info("Session challenge received")
	return nil
}

// HandleReady transitions the session to ready once the gateway confirms
// authentication.
func (r *SessionRegistry) HandleReady(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		r.logger.WithField(LogFieldTenantID, tenantID).Warn("Ready event for unknown session")
		return nil
	}
	sess.state = models.SessionStateReady
	sess.challenge = ""
	sess.lastActive = time.Now()
	if sess.idleTimer != nil {
		sess.idleTimer.Reset(r.idleTTL)
	}
	lastActive := sess.lastActive
	r.mu.Unlock()

	if err := r.store.SaveSessionMarker(ctx, tenantID, lastActive); err != nil {
		r.logger.WithError(err).WithField(LogFieldTenantID, tenantID).Warn("Failed to persist session marker")
	}

	r.broadcaster.Publish(tenantID, models.EventReady, nil)
	r.logger.WithField(LogFieldTenantID, tenantID).Info("Session ready")
	return nil
}

// HandleAuthFailed handles a failed authentication. The session is torn down
// and its gateway auth state is purged so the next attempt starts clean.
func (r *SessionRegistry) HandleAuthFailed(ctx context.Context, tenantID, reason string) error {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	sess.state = models.SessionStateAuthFailed
	r.removeLocked(sess)
	r.mu.Unlock()

	r.broadcaster.Publish(tenantID, models.EventAuthFailed, models.SessionClosedEvent{Reason: reason})
	r.finishTeardown(ctx, sess)

	r.logger.WithFields(logrus.Fields{
		LogFieldTenantID: tenantID,
		"reason":         reason,
	}).Warn("Session authentication failed")
	return nil
}

// HandleDisconnected handles the gateway dropping the connection.
func (r *SessionRegistry) HandleDisconnected(ctx context.Context, tenantID, reason string) error {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		return nil
	}
	sess.state = models.SessionStateDisconnected
	r.removeLocked(sess)
	r.mu.Unlock()

	r.broadcaster.Publish(tenantID, models.EventDisconnected, models.SessionClosedEvent{Reason: reason})
	r.finishTeardown(ctx, sess)

	r.logger.WithFields(logrus.Fields{
		LogFieldTenantID: tenantID,
		"reason":         reason,
	}).Warn("Session disconnected")
	return nil
}

// ActiveTenants lists tenants with a registered session, live or not yet
// expired. Used by the health endpoint.
func (r *SessionRegistry) ActiveTenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenants := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		tenants = append(tenants, id)
	}
	return tenants
}

// expire is the idle timer callback.
func (r *SessionRegistry) expire(tenantID string) {
	r.mu.Lock()
	sess, exists := r.sessions[tenantID]
	if !exists {
		r.mu.Unlock()
		return
	}
	if !r.expiredLocked(sess) {
		// Touched after the timer fired but before we got the lock.
		sess.idleTimer.Reset(r.idleTTL)
		r.mu.Unlock()
		return
	}
	r.removeLocked(sess)
	r.mu.Unlock()

	r.broadcaster.Publish(tenantID, models.EventDisconnected, models.SessionClosedEvent{Reason: "idle timeout"})
	r.finishTeardown(context.Background(), sess)
	r.logger.WithField(LogFieldTenantID, tenantID).Info("Session expired after idle timeout")
}

func (r *SessionRegistry) expiredLocked(sess *session) bool {
	return time.Since(sess.lastActive) >= r.idleTTL
}

// removeLocked detaches the session from the registry and stops its timer.
// Callers hold r.mu and finish teardown outside the lock.
func (r *SessionRegistry) removeLocked(sess *session) {
	if sess.idleTimer != nil {
		sess.idleTimer.Stop()
	}
	delete(r.sessions, sess.tenantID)
}

// finishTeardown releases everything a removed session still holds: the
// gateway connection, the durable marker and the cached auth state on disk.
// Client logout is best effort; a dead gateway must not block teardown.
func (r *SessionRegistry) finishTeardown(ctx context.Context, sess *session) {
	if err := sess.client.Logout(ctx); err != nil {
		r.logger.WithError(err).WithField(LogFieldTenantID, sess.tenantID).Debug("Gateway logout failed during teardown")
	}

	if err := r.store.DeleteSessionMarker(ctx, sess.tenantID); err != nil {
		r.logger.WithError(err).WithField(LogFieldTenantID, sess.tenantID).Warn("Failed to delete session marker")
	}

	if r.authDir != "" {
		tenantID := sess.tenantID
		dir := filepath.Join(r.authDir, tenantID)
		// Delay gives the gateway time to flush its own state first.
		time.AfterFunc(r.purgeGraceDelay, func() {
			if err := os.RemoveAll(dir); err != nil {
				r.logger.WithError(err).WithField(LogFieldTenantID, tenantID).Warn("Failed to purge auth state")
			} else {
				r.logger.WithField(LogFieldTenantID, tenantID).Debug("Purged auth state")
			}
		})
	}
}

func statusOf(sess *session) *models.SessionStatus {
	return &models.SessionStatus{
		State:            sess.state,
		PendingChallenge: sess.challenge,
	}
}
