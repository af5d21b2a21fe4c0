package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"jobchat/internal/constants"
	"jobchat/internal/models"
	"jobchat/internal/security"

	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIURL   = models.ConfigError{Message: "missing API base URL"}
	ErrMissingMediaDir = models.ConfigError{Message: "missing media cache directory"}
)

// Environment variables that override the config file
const (
	EnvAPIURL           = "JOBCHAT_API_URL"
	EnvAPIToken         = "JOBCHAT_API_TOKEN"
	EnvUserID           = "JOBCHAT_USER_ID"
	EnvDBPath           = "JOBCHAT_DB_PATH"
	EnvMediaDir         = "JOBCHAT_MEDIA_DIR"
	EnvPushPlatform     = "JOBCHAT_PUSH_PLATFORM"
	EnvEncryptionSecret = "JOBCHAT_ENCRYPTION_SECRET"
	EnvEnvironment      = "JOBCHAT_ENV"
)

var supportedPlatforms = map[string]bool{"android": true, "ios": true}

// LoadConfig reads the JSON config at path. A .env file next to it is loaded
// first; variables already set in the environment win over it. Environment
// overrides are applied before defaults and validation.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("invalid config JSON: %v", err)}
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("failed to load %s: %v", path, err)}
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	// SECURITY: API tokens should come from the environment, not the file
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.AuthToken = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		c.API.UserID = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvMediaDir); v != "" {
		c.Media.CacheDir = v
	}
	if v := os.Getenv(EnvPushPlatform); v != "" {
		c.Push.Platform = v
	}
	if v := os.Getenv(EnvEncryptionSecret); v != "" {
		c.Database.EncryptionSecret = v
	}
}

func applyDefaults(c *models.Config) {
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.API.CircuitBreaker.MaxFailures <= 0 {
		c.API.CircuitBreaker.MaxFailures = constants.DefaultCircuitBreakerMaxFailures
	}
	if c.API.CircuitBreaker.ResetTimeoutSec <= 0 {
		c.API.CircuitBreaker.ResetTimeoutSec = constants.DefaultCircuitBreakerResetSec
	}

	if c.Chat.PageSize <= 0 {
		c.Chat.PageSize = constants.DefaultPageSize
	}
	if c.Chat.MaxDraftLength <= 0 {
		c.Chat.MaxDraftLength = constants.DefaultMaxDraftLength
	}

	if c.Media.MaxSizeMB.Image <= 0 {
		c.Media.MaxSizeMB.Image = constants.DefaultMaxImageSizeMB
	}
	if c.Media.MaxSizeMB.Document <= 0 {
		c.Media.MaxSizeMB.Document = constants.DefaultMaxDocumentSizeMB
	}
	if len(c.Media.AllowedTypes.Image) == 0 {
		c.Media.AllowedTypes.Image = constants.DefaultImageTypes
	}
	if len(c.Media.AllowedTypes.Document) == 0 {
		c.Media.AllowedTypes.Document = constants.DefaultDocumentTypes
	}
	if c.Media.CacheMaxAgeHours <= 0 {
		c.Media.CacheMaxAgeHours = constants.DefaultCacheMaxAgeHours
	}

	if c.Push.Platform == "" {
		c.Push.Platform = constants.DefaultPushPlatform
	}
	c.Push.Platform = strings.ToLower(c.Push.Platform)
	if c.Push.TokenRetryDelayMs <= 0 {
		c.Push.TokenRetryDelayMs = constants.DefaultTokenRetryDelayMs
	}

	if c.Diagnostics.ListenAddr == "" {
		c.Diagnostics.ListenAddr = constants.DefaultDiagnosticsAddr
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "jobchat"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryCount
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func validate(c *models.Config) error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ConfigError{Message: fmt.Sprintf("invalid API base URL: %s", c.API.BaseURL)}
	}
	if c.Media.CacheDir == "" {
		return ErrMissingMediaDir
	}
	if err := security.ValidateFilePath(c.Media.CacheDir); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid media cache directory: %v", err)}
	}
	if c.Database.Path != "" {
		if err := security.ValidateFilePath(c.Database.Path); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid database path: %v", err)}
		}
	}
	if secret := c.Database.EncryptionSecret; secret != "" && len(secret) < constants.MinEncryptionSecretLength {
		return models.ConfigError{Message: fmt.Sprintf("encryption secret must be at least %d characters long", constants.MinEncryptionSecretLength)}
	}
	if !supportedPlatforms[c.Push.Platform] {
		return models.ConfigError{Message: fmt.Sprintf("unsupported push platform: %s", c.Push.Platform)}
	}
	if c.Chat.PageSize > 200 {
		return models.ConfigError{Message: "chat page size must not exceed 200"}
	}
	if c.Diagnostics.Enabled && !c.Diagnostics.AllowRemote && !security.IsLoopbackAddr(c.Diagnostics.ListenAddr) {
		return models.ConfigError{Message: fmt.Sprintf("diagnostics listen address %s is not loopback; set diagnostics.allow_remote to expose it", c.Diagnostics.ListenAddr)}
	}
	if c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing sample rate must be between 0 and 1"}
	}
	return nil
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	if os.Getenv(EnvEnvironment) == "production" {
		if !strings.HasPrefix(c.API.BaseURL, "https://") {
			return models.ConfigError{Message: "API base URL must use https in production"}
		}
		if c.API.AuthToken == "" {
			return models.ConfigError{Message: "API auth token is required in production (set JOBCHAT_API_TOKEN environment variable)"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		return nil
	}

	if c.API.AuthToken == "" {
		fmt.Fprintf(os.Stderr, "WARNING: API auth token not set. Set %s environment variable.\n", EnvAPIToken)
	}
	return nil
}
