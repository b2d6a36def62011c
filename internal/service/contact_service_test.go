package service

import (
	"context"
	"strings"
	"testing"

	apperrors "wablast/internal/errors"
	"wablast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateGroup(t *testing.T) {
	store := &mockContactStore{}
	store.On("CreateContactGroup", mock.Anything, mock.MatchedBy(func(g *models.ContactGroup) bool {
		return g.TenantID == "acme" && g.Name == "newsletter" && g.ID != ""
	})).Return(nil)
	svc := NewContactService(store, newTestLogger())

	group, err := svc.CreateGroup(context.Background(), "acme", "  newsletter  ")
	require.NoError(t, err)
	assert.Equal(t, "newsletter", group.Name)
	store.AssertExpectations(t)
}

func TestCreateGroup_MissingFields(t *testing.T) {
	svc := NewContactService(&mockContactStore{}, newTestLogger())

	_, err := svc.CreateGroup(context.Background(), "acme", "")
	assert.Equal(t, apperrors.ErrCodeMissingFields, apperrors.GetCode(err))

	_, err = svc.CreateGroup(context.Background(), "", "newsletter")
	assert.Equal(t, apperrors.ErrCodeMissingFields, apperrors.GetCode(err))
}

func TestImportCSV(t *testing.T) {
	store := &mockContactStore{}
	store.On("GetContactGroup", mock.Anything, "group-1").Return(&models.ContactGroup{ID: "group-1", TenantID: "acme"}, nil)
	store.On("AddContact", mock.Anything, mock.MatchedBy(func(c *models.Contact) bool {
		return c.PhoneNumber == "4915100000001" && c.Name == "Alice"
	})).Return(true, nil)
	store.On("AddContact", mock.Anything, mock.MatchedBy(func(c *models.Contact) bool {
		return c.PhoneNumber == "4915100000002"
	})).Return(true, nil)
	svc := NewContactService(store, newTestLogger())

	csv := strings.Join([]string{
		"name,phone",
		"Alice,+4915100000001",
		"Bob,4915100000002",
		"Eve,not-a-number",
	}, "\n")

	result, err := svc.ImportCSV(context.Background(), "group-1", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestImportCSV_CountsDuplicatesAsSkipped(t *testing.T) {
	store := &mockContactStore{}
	store.On("GetContactGroup", mock.Anything, "group-1").Return(&models.ContactGroup{ID: "group-1", TenantID: "acme"}, nil)
	store.On("AddContact", mock.Anything, mock.Anything).Return(true, nil).Once()
	store.On("AddContact", mock.Anything, mock.Anything).Return(false, nil).Once()
	svc := NewContactService(store, newTestLogger())

	csv := "Alice,4915100000001\nAlso Alice,4915100000001\n"

	result, err := svc.ImportCSV(context.Background(), "group-1", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestImportCSV_BarePhoneColumn(t *testing.T) {
	store := &mockContactStore{}
	store.On("GetContactGroup", mock.Anything, "group-1").Return(&models.ContactGroup{ID: "group-1", TenantID: "acme"}, nil)
	store.On("AddContact", mock.Anything, mock.MatchedBy(func(c *models.Contact) bool {
		return c.PhoneNumber == "4915100000001" && c.Name == ""
	})).Return(true, nil)
	svc := NewContactService(store, newTestLogger())

	result, err := svc.ImportCSV(context.Background(), "group-1", strings.NewReader("4915100000001\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}

func TestImportCSV_UnknownGroup(t *testing.T) {
	store := &mockContactStore{}
	store.On("GetContactGroup", mock.Anything, "missing").Return(nil, nil)
	svc := NewContactService(store, newTestLogger())

	_, err := svc.ImportCSV(context.Background(), "missing", strings.NewReader("Alice,4915100000001\n"))
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestRecipients_EnforcesTenantOwnership(t *testing.T) {
	store := &mockContactStore{}
	store.On("GetContactGroup", mock.Anything, "group-1").Return(&models.ContactGroup{ID: "group-1", TenantID: "acme"}, nil)
	store.On("ListRecipients", mock.Anything, "group-1").Return([]string{"4915100000001"}, nil)
	svc := NewContactService(store, newTestLogger())

	recipients, err := svc.Recipients(context.Background(), "acme", "group-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"4915100000001"}, recipients)

	// Another tenant cannot read the group.
	_, err = svc.Recipients(context.Background(), "globex", "group-1")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestListGroups_Delegates(t *testing.T) {
	store := &mockContactStore{}
	store.On("ListContactGroups", mock.Anything, "acme").Return([]models.ContactGroup{
		{ID: "group-1", TenantID: "acme", Name: "newsletter"},
	}, nil)
	svc := NewContactService(store, newTestLogger())

	groups, err := svc.ListGroups(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "newsletter", groups[0].Name)
}
