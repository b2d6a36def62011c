package constants

// Default session lifecycle values
const (
	DefaultSessionIdleTTLMinutes   = 300
	DefaultAuthPurgeGraceDelaySec  = 5
	DefaultSessionStatusTimeoutSec = 5
)

// Default campaign dispatch values
const (
	DefaultMinSendDelaySec = 1
	DefaultDelaySpreadSec  = 45
	DefaultMaxRecipients   = 5000
	DefaultAttachmentDir   = "media"
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultServerPort            = 8089
)

// Default API rate limiting values
const (
	DefaultRateLimitPerSec        = 10
	DefaultRateLimitBurst         = 20
	DefaultRateLimitCleanupMinute = 3
)

// Default broadcast hub values
const (
	DefaultSubscriberBuffer  = 32
	ServerErrorChannelSize   = 1
	WebSocketWriteTimeoutSec = 10
)

// Encryption parameters
const (
	EncryptionSalt       = "wablast-contact-salt-v1"
	EncryptionLookupSalt = "wablast-lookup-salt-v1"
)

// Validation bounds
const (
	MinPhoneNumberLength  = 7
	MaxPhoneNumberLength  = 20
	MaxTenantIDLength     = 64
	MaxCampaignNameLength = 128
	MaxMessageLength      = 4096
	MaxCSVRowsPerImport   = 10000
)

// Default QR rendering values
const (
	DefaultQRCodeSizePx = 256
)
