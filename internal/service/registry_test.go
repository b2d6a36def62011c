package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	apperrors "wablast/internal/errors"
	"wablast/internal/models"
	"wablast/pkg/messaging/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRegistry(client types.Client, store SessionStore, broadcaster *recordingBroadcaster, opts RegistryOptions) *SessionRegistry {
	factory := func(tenantID string) types.Client { return client }
	return NewSessionRegistry(factory, store, broadcaster, newTestLogger(), opts)
}

func permissiveSessionStore() *mockSessionStore {
	store := &mockSessionStore{}
	store.On("SaveSessionMarker", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	store.On("DeleteSessionMarker", mock.Anything, mock.Anything).Return(nil).Maybe()
	return store
}

func TestInitOrGet_StartsPendingSession(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	store := permissiveSessionStore()
	broadcaster := newRecordingBroadcaster()
	registry := newTestRegistry(client, store, broadcaster, RegistryOptions{})

	status, err := registry.InitOrGet(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatePending, status.State)

	client.AssertCalled(t, "StartSession", mock.Anything)
	store.AssertCalled(t, "SaveSessionMarker", mock.Anything, "acme", mock.Anything)
}

func TestInitOrGet_IdempotentWhileLive(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil).Once()
	store := permissiveSessionStore()
	registry := newTestRegistry(client, store, newRecordingBroadcaster(), RegistryOptions{})

	_, err := registry.InitOrGet(context.Background(), "acme")
	require.NoError(t, err)

	status, err := registry.InitOrGet(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatePending, status.State)
	assert.Equal(t, "session already active", status.Message)

	client.AssertNumberOfCalls(t, "StartSession", 1)
}

func TestInitOrGet_ConcurrentCallersShareOneSession(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	store := permissiveSessionStore()
	registry := newTestRegistry(client, store, newRecordingBroadcaster(), RegistryOptions{})

	const callers = 16
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			status, err := registry.InitOrGet(context.Background(), "acme")
			assert.NoError(t, err)
			assert.Equal(t, models.SessionStatePending, status.State)
		}()
	}
	wg.Wait()

	client.AssertNumberOfCalls(t, "StartSession", 1)
	assert.Equal(t, []string{"acme"}, registry.ActiveTenants())
}

func TestInitOrGet_StartFailureLeavesNoSession(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(fmt.Errorf("gateway unreachable"))
	store := permissiveSessionStore()
	registry := newTestRegistry(client, store, newRecordingBroadcaster(), RegistryOptions{})

	_, err := registry.InitOrGet(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMessagingAPI, apperrors.GetCode(err))

	_, err = registry.Status("acme")
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.GetCode(err))
}

func TestInitOrGet_RejectsInvalidTenant(t *testing.T) {
	registry := newTestRegistry(&mockClient{}, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{})

	_, err := registry.InitOrGet(context.Background(), "bad tenant id!")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func TestStatus_UnknownTenant(t *testing.T) {
	registry := newTestRegistry(&mockClient{}, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{})

	_, err := registry.Status("nobody")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.GetCode(err))
}

func TestChallengeThenReadyLifecycle(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	store := permissiveSessionStore()
	broadcaster := newRecordingBroadcaster()
	registry := newTestRegistry(client, store, broadcaster, RegistryOptions{})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)

	require.NoError(t, registry.HandleChallenge(ctx, "acme", "qr-payload"))

	status, err := registry.Status("acme")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatePending, status.State)
	assert.Equal(t, "qr-payload", status.PendingChallenge)

	challenge, err := registry.PendingChallenge("acme")
	require.NoError(t, err)
	assert.Equal(t, "qr-payload", challenge)

	require.NoError(t, registry.HandleReady(ctx, "acme"))

	status, err = registry.Status("acme")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateReady, status.State)
	assert.Empty(t, status.PendingChallenge)
	assert.True(t, registry.IsReady("acme"))

	_, err = registry.PendingChallenge("acme")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	names := []string{}
	for _, e := range broadcaster.Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, models.EventChallenge)
	assert.Contains(t, names, models.EventReady)
}

func TestSend_RequiresReadySession(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	registry := newTestRegistry(client, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{})
	ctx := context.Background()

	err := registry.Send(ctx, "acme", "4915100000001", "hi", "")
	assert.Equal(t, apperrors.ErrCodeSessionNotReady, apperrors.GetCode(err))

	_, err = registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)

	// Pending is not ready either.
	err = registry.Send(ctx, "acme", "4915100000001", "hi", "")
	assert.Equal(t, apperrors.ErrCodeSessionNotReady, apperrors.GetCode(err))
}

func TestSend_DeliversTextAndMedia(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("SendText", mock.Anything, "4915100000001", "hi").Return(&types.SendMessageResponse{MessageID: "m-1"}, nil)
	client.On("SendMedia", mock.Anything, "4915100000001", "/tmp/flyer.jpg", "caption").Return(&types.SendMessageResponse{MessageID: "m-2"}, nil)
	registry := newTestRegistry(client, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, registry.HandleReady(ctx, "acme"))

	require.NoError(t, registry.Send(ctx, "acme", "4915100000001", "hi", ""))
	require.NoError(t, registry.Send(ctx, "acme", "4915100000001", "caption", "/tmp/flyer.jpg"))

	client.AssertExpectations(t)
}

func TestLogout_IsIdempotent(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("Logout", mock.Anything).Return(nil)
	store := permissiveSessionStore()
	registry := newTestRegistry(client, store, newRecordingBroadcaster(), RegistryOptions{})
	ctx := context.Background()

	// No session yet: still no error.
	require.NoError(t, registry.Logout(ctx, "acme"))

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)

	require.NoError(t, registry.Logout(ctx, "acme"))
	require.NoError(t, registry.Logout(ctx, "acme"))

	client.AssertNumberOfCalls(t, "Logout", 1)
	store.AssertCalled(t, "DeleteSessionMarker", mock.Anything, "acme")

	_, err = registry.Status("acme")
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.GetCode(err))
}

func TestLogout_SurvivesGatewayFailure(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("Logout", mock.Anything).Return(fmt.Errorf("gateway down"))
	registry := newTestRegistry(client, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)

	require.NoError(t, registry.Logout(ctx, "acme"))
	assert.False(t, registry.IsReady("acme"))
}

func TestHandleAuthFailed_TearsDownAndBroadcasts(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("Logout", mock.Anything).Return(nil)
	broadcaster := newRecordingBroadcaster()
	registry := newTestRegistry(client, permissiveSessionStore(), broadcaster, RegistryOptions{})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)

	require.NoError(t, registry.HandleAuthFailed(ctx, "acme", "challenge rejected"))

	_, err = registry.Status("acme")
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.GetCode(err))

	events := broadcaster.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, models.EventAuthFailed, last.Name)
	assert.Equal(t, models.SessionClosedEvent{Reason: "challenge rejected"}, last.Payload)

	// Unknown tenant is a no-op.
	require.NoError(t, registry.HandleAuthFailed(ctx, "ghost", "whatever"))
}

func TestHandleDisconnected_TearsDown(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("Logout", mock.Anything).Return(nil)
	broadcaster := newRecordingBroadcaster()
	registry := newTestRegistry(client, permissiveSessionStore(), broadcaster, RegistryOptions{})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, registry.HandleReady(ctx, "acme"))
	require.True(t, registry.IsReady("acme"))

	require.NoError(t, registry.HandleDisconnected(ctx, "acme", "connection reset"))
	assert.False(t, registry.IsReady("acme"))

	events := broadcaster.Events()
	last := events[len(events)-1]
	assert.Equal(t, models.EventDisconnected, last.Name)
}

func TestIdleExpiry(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("Logout", mock.Anything).Return(nil)
	broadcaster := newRecordingBroadcaster()
	registry := newTestRegistry(client, permissiveSessionStore(), broadcaster, RegistryOptions{
		IdleTTL: 30 * time.Millisecond,
	})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, registry.HandleReady(ctx, "acme"))

	assert.Eventually(t, func() bool {
		_, err := registry.Status("acme")
		return apperrors.GetCode(err) == apperrors.ErrCodeSessionNotFound
	}, time.Second, 10*time.Millisecond)

	var sawIdleTimeout bool
	for _, e := range broadcaster.Events() {
		if e.Name == models.EventDisconnected {
			if payload, ok := e.Payload.(models.SessionClosedEvent); ok && payload.Reason == "idle timeout" {
				sawIdleTimeout = true
			}
		}
	}
	assert.True(t, sawIdleTimeout, "expected an idle timeout disconnect event")
}

func TestTouch_DefersExpiry(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("Logout", mock.Anything).Return(nil)
	registry := newTestRegistry(client, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{
		IdleTTL: 80 * time.Millisecond,
	})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, registry.HandleReady(ctx, "acme"))

	// Keep touching past the original TTL.
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		registry.Touch("acme")
	}
	assert.True(t, registry.IsReady("acme"))
}

func TestInitOrGet_ReplacesExpiredSession(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	client.On("Logout", mock.Anything).Return(nil)
	registry := newTestRegistry(client, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{
		IdleTTL: 30 * time.Millisecond,
	})
	ctx := context.Background()

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	status, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatePending, status.State)
	assert.NotEqual(t, "session already active", status.Message)
	client.AssertNumberOfCalls(t, "StartSession", 2)
}

func TestActiveTenants(t *testing.T) {
	client := &mockClient{}
	client.On("StartSession", mock.Anything).Return(nil)
	registry := newTestRegistry(client, permissiveSessionStore(), newRecordingBroadcaster(), RegistryOptions{})
	ctx := context.Background()

	assert.Empty(t, registry.ActiveTenants())

	_, err := registry.InitOrGet(ctx, "acme")
	require.NoError(t, err)
	_, err = registry.InitOrGet(ctx, "globex")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"acme", "globex"}, registry.ActiveTenants())
}
