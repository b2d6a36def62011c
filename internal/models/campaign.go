package models

import "time"

type CampaignStatus string

const (
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
)

type SendOutcome string

const (
	SendOutcomeSuccess SendOutcome = "success"
	SendOutcomeFailed  SendOutcome = "failed"
)

// Campaign is one bulk-send job. Logs are append-only while the status is
// running; once completed the log length equals TotalRecipients exactly.
type Campaign struct {
	ID              string         `json:"id" db:"id"`
	TenantID        string         `json:"tenantId" db:"tenant_id"`
	Name            string         `json:"name" db:"name"`
	GroupID         string         `json:"groupId" db:"group_id"`
	Message         string         `json:"message" db:"message"`
	AttachmentPath  *string        `json:"attachmentPath,omitempty" db:"attachment_path"`
	TotalRecipients int            `json:"totalRecipients" db:"total_recipients"`
	Status          CampaignStatus `json:"status" db:"status"`
	StartedAt       time.Time      `json:"startedAt" db:"started_at"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt" db:"updated_at"`
}

// CampaignLogEntry records the outcome of one send attempt. Position is the
// 1-indexed place of the recipient in the campaign's input order.
type CampaignLogEntry struct {
	ID          int64       `json:"id" db:"id"`
	CampaignID  string      `json:"campaignId" db:"campaign_id"`
	Position    int         `json:"position" db:"position"`
	Recipient   string      `json:"recipient" db:"recipient"`
	Outcome     SendOutcome `json:"outcome" db:"outcome"`
	ErrorDetail *string     `json:"errorDetail,omitempty" db:"error_detail"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
}

// CampaignRequest is a submission as received from the API layer.
type CampaignRequest struct {
	TenantID       string `json:"tenantId"`
	Name           string `json:"name"`
	GroupID        string `json:"groupId"`
	Message        string `json:"message"`
	MinDelaySec    int    `json:"minDelay"`
	MaxDelaySec    int    `json:"maxDelay"`
	AttachmentPath string `json:"attachmentPath,omitempty"`
}

// CampaignSummary joins a campaign with its aggregated log counts.
type CampaignSummary struct {
	Campaign
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
