package service

// Standard structured log field names. Use these exact names so logs stay
// greppable across services.
const (
	LogFieldTenantID   = "tenant_id"
	LogFieldCampaignID = "campaign_id"
	LogFieldGroupID    = "group_id"
	LogFieldRecipient  = "recipient"
	LogFieldContactID  = "contact_id"

	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldEvent     = "event"

	LogFieldCount      = "count"
	LogFieldPosition   = "position"
	LogFieldDurationMs = "duration_ms"

	LogFieldErrorCode = "error_code"
)
