package constants

// Default API and paging values
const (
	DefaultHTTPTimeoutSec            = 30
	DefaultPageSize                  = 30
	DefaultMaxDraftLength            = 4000
	DefaultCircuitBreakerMaxFailures = 5
	DefaultCircuitBreakerResetSec    = 30
)

// Default media configuration values
const (
	DefaultMaxImageSizeMB     = 10
	DefaultMaxDocumentSizeMB  = 25
	DefaultCacheMaxAgeHours   = 72
	DefaultDraftMaxAgeDays    = 30
	DefaultCleanupIntervalMin = 60
)

// Device registration defaults
const (
	DefaultPushPlatform        = "android"
	DefaultTokenRetryDelayMs   = 2000
	DefaultDiagnosticsAddr     = "127.0.0.1:8089"
	DefaultDatabaseRetryCount  = 3
	DefaultRetryBackoffMs      = 200
	DefaultMaxBackoffMs        = 5000
	DefaultGracefulShutdownSec = 10
)

// Content classification thresholds
const (
	// Raw base64 image content must be strictly longer than this.
	RawBase64MinLength = 100
)

// Privacy settings
const (
	DefaultTokenMaskLength = 6
	DefaultIDMaskLength    = 4
)

// Local encryption salts. Changing them invalidates stored state.
const (
	EncryptionSalt       = "jobchat-local-state-v1"
	EncryptionLookupSalt = "jobchat-lookup-v1"
)

// MinEncryptionSecretLength is the shortest accepted encryption secret
const MinEncryptionSecretLength = 32
