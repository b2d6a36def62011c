package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"wablast/internal/models"
)

// CreateContactGroup persists a new named recipient list.
func (d *Database) CreateContactGroup(ctx context.Context, group *models.ContactGroup) error {
	query := `INSERT INTO contact_groups (id, tenant_id, name) VALUES (?, ?, ?)`

	return retryableWrite(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, group.ID, group.TenantID, group.Name)
		if err != nil {
			return fmt.Errorf("failed to create contact group: %w", err)
		}
		return nil
	}, "CreateContactGroup")
}

// GetContactGroup returns a group by id, or nil when absent.
func (d *Database) GetContactGroup(ctx context.Context, groupID string) (*models.ContactGroup, error) {
	query := `SELECT id, tenant_id, name, created_at FROM contact_groups WHERE id = ?`

	g := &models.ContactGroup{}
	err := d.db.QueryRowContext(ctx, query, groupID).Scan(&g.ID, &g.TenantID, &g.Name, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact group: %w", err)
	}

	return g, nil
}

// ListContactGroups returns a tenant's groups ordered by name.
func (d *Database) ListContactGroups(ctx context.Context, tenantID string) ([]models.ContactGroup, error) {
	query := `SELECT id, tenant_id, name, created_at FROM contact_groups WHERE tenant_id = ? ORDER BY name ASC`

	rows, err := d.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact groups: %w", err)
	}
	defer rows.Close()

	var groups []models.ContactGroup
	for rows.Next() {
		var g models.ContactGroup
		if err := rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact group: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// AddContact inserts one contact into a group. Returns false without error
// when the phone number already exists in the group.
func (d *Database) AddContact(ctx context.Context, contact *models.Contact) (bool, error) {
	encryptedPhone, err := d.encryptor.EncryptForLookupIfEnabled(contact.PhoneNumber)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt phone number: %w", err)
	}

	query := `INSERT OR IGNORE INTO contacts (group_id, name, phone_number) VALUES (?, ?, ?)`

	var inserted bool
	err = retryableWrite(ctx, func() error {
		res, err := d.db.ExecContext(ctx, query, contact.GroupID, contact.Name, encryptedPhone)
		if err != nil {
			return fmt.Errorf("failed to add contact: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted = n > 0
		return nil
	}, "AddContact")

	return inserted, err
}

// ListRecipients returns the deduplicated phone numbers of a group in
// insertion order. This is the recipient list a campaign consumes.
func (d *Database) ListRecipients(ctx context.Context, groupID string) ([]string, error) {
	query := `SELECT phone_number FROM contacts WHERE group_id = ? ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []string
	for rows.Next() {
		var stored string
		if err := rows.Scan(&stored); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}

		phone, err := d.encryptor.DecryptIfEnabled(stored)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
		}
		recipients = append(recipients, strings.TrimSpace(phone))
	}

	return recipients, rows.Err()
}
