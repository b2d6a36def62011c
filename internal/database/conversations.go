package database

import (
	"context"
	"fmt"

	"wablast/internal/models"
)

// AppendConversation records one auto-responder exchange in the durable
// per-contact log.
func (d *Database) AppendConversation(ctx context.Context, entry *models.ConversationEntry) error {
	encryptedContact, err := d.encryptor.EncryptForLookupIfEnabled(entry.ContactID)
	if err != nil {
		return fmt.Errorf("failed to encrypt contact ID: %w", err)
	}

	query := `
		INSERT INTO conversation_logs (tenant_id, contact_id, query, response)
		VALUES (?, ?, ?, ?)
	`

	return retryableWrite(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, entry.TenantID, encryptedContact, entry.Query, entry.Response)
		if err != nil {
			return fmt.Errorf("failed to append conversation: %w", err)
		}
		return nil
	}, "AppendConversation")
}

// GetConversation returns the exchange history for one contact, oldest first.
func (d *Database) GetConversation(ctx context.Context, tenantID, contactID string) ([]models.ConversationEntry, error) {
	encryptedContact, err := d.encryptor.EncryptForLookupIfEnabled(contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt contact ID: %w", err)
	}

	query := `
		SELECT id, tenant_id, contact_id, query, response, created_at
		FROM conversation_logs
		WHERE tenant_id = ? AND contact_id = ?
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, tenantID, encryptedContact)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer rows.Close()

	var entries []models.ConversationEntry
	for rows.Next() {
		var e models.ConversationEntry
		var storedContact string
		if err := rows.Scan(&e.ID, &e.TenantID, &storedContact, &e.Query, &e.Response, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation entry: %w", err)
		}

		e.ContactID, err = d.encryptor.DecryptIfEnabled(storedContact)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt contact ID: %w", err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
