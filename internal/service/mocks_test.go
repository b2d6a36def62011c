package service

import (
	"context"
	"sync"
	"time"

	"wablast/internal/models"
	"wablast/pkg/messaging/types"

	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) StartSession(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockClient) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockClient) SendText(ctx context.Context, recipient, body string) (*types.SendMessageResponse, error) {
	args := m.Called(ctx, recipient, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendMessageResponse), args.Error(1)
}

func (m *mockClient) SendMedia(ctx context.Context, recipient, mediaPath, caption string) (*types.SendMessageResponse, error) {
	args := m.Called(ctx, recipient, mediaPath, caption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendMessageResponse), args.Error(1)
}

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) SaveSessionMarker(ctx context.Context, tenantID string, lastActiveAt time.Time) error {
	args := m.Called(ctx, tenantID, lastActiveAt)
	return args.Error(0)
}

func (m *mockSessionStore) DeleteSessionMarker(ctx context.Context, tenantID string) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *mockSessionStore) GetSessionMarker(ctx context.Context, tenantID string) (*models.SessionMarker, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionMarker), args.Error(1)
}

// recordingBroadcaster captures published events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	TenantID string
	Name     string
	Payload  interface{}
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{}
}

func (b *recordingBroadcaster) Publish(tenantID, eventName string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{TenantID: tenantID, Name: eventName, Payload: payload})
}

func (b *recordingBroadcaster) Events() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]publishedEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *recordingBroadcaster) EventsNamed(name string) []publishedEvent {
	var out []publishedEvent
	for _, e := range b.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type mockCampaignStore struct {
	mock.Mock
}

func (m *mockCampaignStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCampaignStore) AppendCampaignLog(ctx context.Context, entry *models.CampaignLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockCampaignStore) CompleteCampaign(ctx context.Context, campaignID string) error {
	args := m.Called(ctx, campaignID)
	return args.Error(0)
}

func (m *mockCampaignStore) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Campaign), args.Error(1)
}

func (m *mockCampaignStore) ListCampaigns(ctx context.Context, tenantID string) ([]models.CampaignSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CampaignSummary), args.Error(1)
}

func (m *mockCampaignStore) GetCampaignLogs(ctx context.Context, campaignID string) ([]models.CampaignLogEntry, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CampaignLogEntry), args.Error(1)
}

type mockRecipientSource struct {
	mock.Mock
}

func (m *mockRecipientSource) Recipients(ctx context.Context, tenantID, groupID string) ([]string, error) {
	args := m.Called(ctx, tenantID, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockSessionGateway struct {
	mock.Mock
}

func (m *mockSessionGateway) IsReady(tenantID string) bool {
	args := m.Called(tenantID)
	return args.Bool(0)
}

func (m *mockSessionGateway) Touch(tenantID string) {
	m.Called(tenantID)
}

func (m *mockSessionGateway) Send(ctx context.Context, tenantID, recipient, body, mediaPath string) error {
	args := m.Called(ctx, tenantID, recipient, body, mediaPath)
	return args.Error(0)
}

type mockConversationStore struct {
	mock.Mock
}

func (m *mockConversationStore) AppendConversation(ctx context.Context, entry *models.ConversationEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockConversationStore) GetConversation(ctx context.Context, tenantID, contactID string) ([]models.ConversationEntry, error) {
	args := m.Called(ctx, tenantID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationEntry), args.Error(1)
}

type mockContactStore struct {
	mock.Mock
}

func (m *mockContactStore) CreateContactGroup(ctx context.Context, group *models.ContactGroup) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *mockContactStore) GetContactGroup(ctx context.Context, groupID string) (*models.ContactGroup, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContactGroup), args.Error(1)
}

func (m *mockContactStore) ListContactGroups(ctx context.Context, tenantID string) ([]models.ContactGroup, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ContactGroup), args.Error(1)
}

func (m *mockContactStore) AddContact(ctx context.Context, contact *models.Contact) (bool, error) {
	args := m.Called(ctx, contact)
	return args.Bool(0), args.Error(1)
}

func (m *mockContactStore) ListRecipients(ctx context.Context, groupID string) ([]string, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
