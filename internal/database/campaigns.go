package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wablast/internal/models"
)

// CreateCampaign persists a new campaign record with status running and an
// empty log.
func (d *Database) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, tenant_id, name, group_id, message, attachment_path,
			total_recipients, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return retryableWrite(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query,
			c.ID,
			c.TenantID,
			c.Name,
			c.GroupID,
			c.Message,
			c.AttachmentPath,
			c.TotalRecipients,
			c.Status,
			c.StartedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create campaign: %w", err)
		}
		return nil
	}, "CreateCampaign")
}

// AppendCampaignLog appends one send outcome. The log for a campaign only
// ever grows; the dispatch loop is the single writer for its campaign id.
func (d *Database) AppendCampaignLog(ctx context.Context, entry *models.CampaignLogEntry) error {
	encryptedRecipient, err := d.encryptor.EncryptForLookupIfEnabled(entry.Recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt recipient: %w", err)
	}

	query := `
		INSERT INTO campaign_logs (campaign_id, position, recipient, outcome, error_detail)
		VALUES (?, ?, ?, ?, ?)
	`

	return retryableWrite(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query,
			entry.CampaignID,
			entry.Position,
			encryptedRecipient,
			entry.Outcome,
			entry.ErrorDetail,
		)
		if err != nil {
			return fmt.Errorf("failed to append campaign log: %w", err)
		}
		return nil
	}, "AppendCampaignLog")
}

// CompleteCampaign marks the campaign completed. Called exactly once, after
// the final recipient has been processed.
func (d *Database) CompleteCampaign(ctx context.Context, campaignID string) error {
	query := `
		UPDATE campaigns
		SET status = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	return retryableWrite(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, models.CampaignStatusCompleted, time.Now().UTC(), campaignID)
		if err != nil {
			return fmt.Errorf("failed to complete campaign: %w", err)
		}
		return nil
	}, "CompleteCampaign")
}

// GetCampaign returns a campaign by id, or nil when absent.
func (d *Database) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	query := `
		SELECT id, tenant_id, name, group_id, message, attachment_path,
		       total_recipients, status, started_at, completed_at,
		       created_at, updated_at
		FROM campaigns
		WHERE id = ?
	`

	c := &models.Campaign{}
	err := d.db.QueryRowContext(ctx, query, campaignID).Scan(
		&c.ID,
		&c.TenantID,
		&c.Name,
		&c.GroupID,
		&c.Message,
		&c.AttachmentPath,
		&c.TotalRecipients,
		&c.Status,
		&c.StartedAt,
		&c.CompletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return c, nil
}

// ListCampaigns returns a tenant's campaigns with aggregated outcome counts,
// newest first.
func (d *Database) ListCampaigns(ctx context.Context, tenantID string) ([]models.CampaignSummary, error) {
	query := `
		SELECT c.id, c.tenant_id, c.name, c.group_id, c.message, c.attachment_path,
		       c.total_recipients, c.status, c.started_at, c.completed_at,
		       c.created_at, c.updated_at,
		       COALESCE(SUM(CASE WHEN l.outcome = 'success' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN l.outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM campaigns c
		LEFT JOIN campaign_logs l ON l.campaign_id = c.id
		WHERE c.tenant_id = ?
		GROUP BY c.id
		ORDER BY c.started_at DESC
	`

	rows, err := d.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var summaries []models.CampaignSummary
	for rows.Next() {
		var s models.CampaignSummary
		if err := rows.Scan(
			&s.ID,
			&s.TenantID,
			&s.Name,
			&s.GroupID,
			&s.Message,
			&s.AttachmentPath,
			&s.TotalRecipients,
			&s.Status,
			&s.StartedAt,
			&s.CompletedAt,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.Succeeded,
			&s.Failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan campaign summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// GetCampaignLogs returns the ordered log for one campaign.
func (d *Database) GetCampaignLogs(ctx context.Context, campaignID string) ([]models.CampaignLogEntry, error) {
	query := `
		SELECT id, campaign_id, position, recipient, outcome, error_detail, created_at
		FROM campaign_logs
		WHERE campaign_id = ?
		ORDER BY position ASC
	`

	rows, err := d.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign logs: %w", err)
	}
	defer rows.Close()

	var entries []models.CampaignLogEntry
	for rows.Next() {
		var e models.CampaignLogEntry
		var encryptedRecipient string
		if err := rows.Scan(
			&e.ID,
			&e.CampaignID,
			&e.Position,
			&encryptedRecipient,
			&e.Outcome,
			&e.ErrorDetail,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan campaign log: %w", err)
		}

		e.Recipient, err = d.encryptor.DecryptIfEnabled(encryptedRecipient)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
