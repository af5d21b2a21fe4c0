package models

// Config holds the application configuration
type Config struct {
	API         APIConfig         `json:"api"`
	Chat        ChatConfig        `json:"chat"`
	Media       MediaConfig       `json:"media"`
	Push        PushConfig        `json:"push"`
	Database    DatabaseConfig    `json:"database"`
	Diagnostics DiagnosticsConfig `json:"diagnostics"`
	Tracing     TracingConfig     `json:"tracing"`
	Retry       RetryConfig       `json:"retry"`
	LogLevel    string            `json:"log_level"`
}

// APIConfig holds the remote marketplace API settings
type APIConfig struct {
	BaseURL        string               `json:"base_url"`
	AuthToken      string               `json:"auth_token"`
	UserID         string               `json:"user_id"`
	TimeoutSec     int                  `json:"timeout_sec"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxFailures     int `json:"max_failures"`
	ResetTimeoutSec int `json:"reset_timeout_sec"`
}

// ChatConfig holds chat paging and compose limits
type ChatConfig struct {
	PageSize       int `json:"page_size"`
	MaxDraftLength int `json:"max_draft_length"`
}

// MediaConfig holds attachment upload limits and the document cache location
type MediaConfig struct {
	CacheDir         string            `json:"cache_dir"`
	CacheMaxAgeHours int               `json:"cache_max_age_hours"`
	MaxSizeMB        MediaSizeLimits   `json:"maxSizeMB"`
	AllowedTypes     MediaAllowedTypes `json:"allowedTypes"`
}

// MediaSizeLimits defines upload size limits in MB
type MediaSizeLimits struct {
	Image    int `json:"image"`
	Document int `json:"document"`
}

// MediaAllowedTypes defines allowed file extensions per attachment kind
type MediaAllowedTypes struct {
	Image    []string `json:"image"`
	Document []string `json:"document"`
}

// PushConfig holds device registration settings
type PushConfig struct {
	Platform          string `json:"platform"`
	TokenRetryDelayMs int    `json:"token_retry_delay_ms"`
}

type DatabaseConfig struct {
	Path             string `json:"path"`
	EncryptionSecret string `json:"encryption_secret,omitempty"`
}

type DiagnosticsConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
	// AllowRemote permits a listen address outside the loopback interface
	AllowRemote bool `json:"allow_remote"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
