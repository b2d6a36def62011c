package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wablast/internal/models"
)

// SaveSessionMarker upserts the durable "session exists" marker for a tenant
// and refreshes its last-active timestamp.
func (d *Database) SaveSessionMarker(ctx context.Context, tenantID string, lastActiveAt time.Time) error {
	query := `
		INSERT INTO session_markers (tenant_id, last_active_at)
		VALUES (?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET last_active_at = excluded.last_active_at
	`

	return retryableWrite(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, tenantID, lastActiveAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to save session marker: %w", err)
		}
		return nil
	}, "SaveSessionMarker")
}

// DeleteSessionMarker removes the marker during teardown. Deleting an absent
// marker is a no-op so teardown stays idempotent.
func (d *Database) DeleteSessionMarker(ctx context.Context, tenantID string) error {
	return retryableWrite(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `DELETE FROM session_markers WHERE tenant_id = ?`, tenantID)
		if err != nil {
			return fmt.Errorf("failed to delete session marker: %w", err)
		}
		return nil
	}, "DeleteSessionMarker")
}

// GetSessionMarker returns the marker for a tenant, or nil when absent.
func (d *Database) GetSessionMarker(ctx context.Context, tenantID string) (*models.SessionMarker, error) {
	query := `SELECT tenant_id, created_at, last_active_at FROM session_markers WHERE tenant_id = ?`

	m := &models.SessionMarker{}
	err := d.db.QueryRowContext(ctx, query, tenantID).Scan(&m.TenantID, &m.CreatedAt, &m.LastActiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session marker: %w", err)
	}

	return m, nil
}
