package service

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"wablast/internal/constants"
	apperrors "wablast/internal/errors"
	"wablast/internal/models"
	"wablast/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContactStore persists contact groups and their members.
type ContactStore interface {
	CreateContactGroup(ctx context.Context, group *models.ContactGroup) error
	GetContactGroup(ctx context.Context, groupID string) (*models.ContactGroup, error)
	ListContactGroups(ctx context.Context, tenantID string) ([]models.ContactGroup, error)
	AddContact(ctx context.Context, contact *models.Contact) (bool, error)
	ListRecipients(ctx context.Context, groupID string) ([]string, error)
}

// ContactService manages recipient groups and their CSV imports.
type ContactService struct {
	store  ContactStore
	logger *logrus.Logger
}

func NewContactService(store ContactStore, logger *logrus.Logger) *ContactService {
	return &ContactService{store: store, logger: logger}
}

// CreateGroup creates an empty named group for the tenant.
func (s *ContactService) CreateGroup(ctx context.Context, tenantID, name string) (*models.ContactGroup, error) {
	if tenantID == "" || name == "" {
		return nil, apperrors.New(apperrors.ErrCodeMissingFields, "tenantId and name are required")
	}
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid tenant ID")
	}

	group := &models.ContactGroup{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateContactGroup(ctx, group); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to create contact group")
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldTenantID: tenantID,
		LogFieldGroupID:  group.ID,
	}).Info("Contact group created")
	return group, nil
}

// ListGroups returns the tenant's groups, newest first.
func (s *ContactService) ListGroups(ctx context.Context, tenantID string) ([]models.ContactGroup, error) {
	groups, err := s.store.ListContactGroups(ctx, tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to list contact groups")
	}
	return groups, nil
}

// ImportCSV reads name,phone rows into a group. Rows with an invalid phone
// number and duplicates already in the group are skipped and counted, never
// fatal. A header row is detected and ignored.
func (s *ContactService) ImportCSV(ctx context.Context, groupID string, r io.Reader) (*models.ImportResult, error) {
	group, err := s.store.GetContactGroup(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to load contact group")
	}
	if group == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "contact group not found").
			WithContext("group_id", groupID)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &models.ImportResult{}
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed CSV input")
		}

		row++
		if row > constants.MaxCSVRowsPerImport {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "CSV exceeds maximum row count").
				WithContext("max", constants.MaxCSVRowsPerImport)
		}

		name, phone := splitRow(record)
		if row == 1 && isHeaderRow(phone) {
			continue
		}
		if err := validation.ValidatePhoneNumber(phone); err != nil {
			result.Skipped++
			continue
		}

		inserted, err := s.store.AddContact(ctx, &models.Contact{
			GroupID:     groupID,
			Name:        name,
			PhoneNumber: validation.NormalizePhoneNumber(phone),
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to store contact")
		}
		if inserted {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldGroupID: groupID,
		"imported":      result.Imported,
		"skipped":       result.Skipped,
	}).Info("Contact import finished")
	return result, nil
}

// Recipients resolves the group to its phone numbers in insertion order. The
// tenant must own the group.
func (s *ContactService) Recipients(ctx context.Context, tenantID, groupID string) ([]string, error) {
	group, err := s.store.GetContactGroup(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to load contact group")
	}
	if group == nil || group.TenantID != tenantID {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "contact group not found").
			WithContext("group_id", groupID)
	}

	recipients, err := s.store.ListRecipients(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabase, "failed to list recipients")
	}
	return recipients, nil
}

// splitRow maps a CSV record to (name, phone). A single-column row is a bare
// phone number.
func splitRow(record []string) (string, string) {
	switch len(record) {
	case 0:
		return "", ""
	case 1:
		return "", strings.TrimSpace(record[0])
	default:
		return strings.TrimSpace(record[0]), strings.TrimSpace(record[1])
	}
}

func isHeaderRow(phone string) bool {
	lower := strings.ToLower(phone)
	return lower == "phone" || lower == "phone_number" || lower == "phonenumber" || lower == "number"
}
