package models

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Messaging MessagingConfig `json:"messaging"`
	Sessions  SessionsConfig  `json:"sessions"`
	Campaigns CampaignsConfig `json:"campaigns"`
	Bot       BotConfig       `json:"bot"`
	Tracing   TracingConfig   `json:"tracing"`
	RateLimit RateLimitConfig `json:"rateLimit"`
	LogLevel  string          `json:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int    `json:"port"`
	WebhookSecret string `json:"webhook_secret"`
}

// DatabaseConfig holds database related configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// MessagingConfig holds the external messaging gateway configuration
type MessagingConfig struct {
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`
	TimeoutSec int    `json:"timeoutSec"`
	AuthDir    string `json:"auth_dir"`
}

// SessionsConfig holds session lifecycle configuration
type SessionsConfig struct {
	IdleTTLMinutes         int `json:"idleTTLMinutes"`
	AuthPurgeGraceDelaySec int `json:"authPurgeGraceDelaySec"`
}

// CampaignsConfig holds campaign dispatch configuration
type CampaignsConfig struct {
	MinDelaySec    int    `json:"minDelaySec"`
	DelaySpreadSec int    `json:"delaySpreadSec"`
	MaxRecipients  int    `json:"maxRecipients"`
	AttachmentDir  string `json:"attachment_dir"`
}

// BotConfig holds auto responder configuration
type BotConfig struct {
	RulesPath string `json:"rules_path"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSec int `json:"requestsPerSec"`
	Burst          int `json:"burst"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
