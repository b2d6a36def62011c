package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"wablast/internal/constants"
	"wablast/internal/models"
	"wablast/internal/security"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing messaging gateway URL"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON config file, applies defaults and environment
// overrides, and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Messaging.APIBaseURL == "" {
		return ErrMissingGatewayURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Messaging.TimeoutSec <= 0 {
		c.Messaging.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Sessions.IdleTTLMinutes <= 0 {
		c.Sessions.IdleTTLMinutes = constants.DefaultSessionIdleTTLMinutes
	}
	if c.Sessions.AuthPurgeGraceDelaySec <= 0 {
		c.Sessions.AuthPurgeGraceDelaySec = constants.DefaultAuthPurgeGraceDelaySec
	}
	if c.Campaigns.MinDelaySec <= 0 {
		c.Campaigns.MinDelaySec = constants.DefaultMinSendDelaySec
	}
	if c.Campaigns.DelaySpreadSec <= 0 {
		c.Campaigns.DelaySpreadSec = constants.DefaultDelaySpreadSec
	}
	if c.Campaigns.MaxRecipients <= 0 {
		c.Campaigns.MaxRecipients = constants.DefaultMaxRecipients
	}
	if c.Campaigns.AttachmentDir == "" {
		c.Campaigns.AttachmentDir = constants.DefaultAttachmentDir
	}
	if c.RateLimit.RequestsPerSec <= 0 {
		c.RateLimit.RequestsPerSec = constants.DefaultRateLimitPerSec
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = constants.DefaultRateLimitBurst
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("WABLAST_GATEWAY_URL"); url != "" {
		c.Messaging.APIBaseURL = url
	}
	// Secrets belong in the environment, not the config file.
	if key := os.Getenv("WABLAST_GATEWAY_API_KEY"); key != "" {
		c.Messaging.APIKey = key
	}
	if secret := os.Getenv("WABLAST_WEBHOOK_SECRET"); secret != "" {
		c.Server.WebhookSecret = secret
	}
	if path := os.Getenv("WABLAST_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("WABLAST_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && parsed > 0 {
			c.Server.Port = parsed
		}
	}
	if level := os.Getenv("WABLAST_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
