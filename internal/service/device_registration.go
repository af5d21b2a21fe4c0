package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"jobchat/internal/constants"
	"jobchat/internal/errors"
	"jobchat/internal/metrics"
	"jobchat/internal/models"
	"jobchat/internal/privacy"
	"jobchat/internal/retry"
	"jobchat/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgPermissionDenied      = "Notification permission was denied"
	msgTokenUnavailable      = "Push token unavailable after retry; the device has not produced a token yet"
	msgRegistered            = "Device registered for push notifications"
	msgAlreadyRegistered     = "Device already registered with this token"
	msgPushNotConfigured     = "Push notifications are not configured on the server; ask an operator to set up the push service credentials"
	msgUnexpectedRegistering = "Unexpected error during device registration"
)

// DeviceRegistrationService obtains the push token and registers it with the
// backend. Only one run is active at a time; the last outcome stays queryable.
type DeviceRegistrationService struct {
	platform   PushPlatform
	api        RegistrationAPI
	store      RegistrationStore
	retryDelay time.Duration
	metrics    *metrics.Registry
	logger     *logrus.Logger
	now        func() time.Time

	mu           sync.Mutex
	running      bool
	current      models.DeviceRegistration
	lastTerminal models.RegistrationStatus
}

func NewDeviceRegistrationService(platform PushPlatform, api RegistrationAPI, store RegistrationStore, config models.PushConfig, registry *metrics.Registry, logger *logrus.Logger) *DeviceRegistrationService {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	delayMs := config.TokenRetryDelayMs
	if delayMs <= 0 {
		delayMs = constants.DefaultTokenRetryDelayMs
	}
	name := config.Platform
	if platform != nil && platform.Platform() != "" {
		name = platform.Platform()
	}
	return &DeviceRegistrationService{
		platform:   platform,
		api:        api,
		store:      store,
		retryDelay: time.Duration(delayMs) * time.Millisecond,
		metrics:    registry,
		logger:     logger,
		now:        time.Now,
		current: models.DeviceRegistration{
			Platform: name,
			Status:   models.RegistrationIdle,
		},
	}
}

// Restore loads the last persisted outcome, so Unregister works after a
// restart. The restored token does not count as confirmed: the next Run
// registers it with the backend again.
func (s *DeviceRegistrationService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	reg, err := s.store.LoadRegistration(ctx)
	if err != nil {
		return err
	}
	if reg == nil {
		return nil
	}
	s.mu.Lock()
	s.current = *reg
	s.mu.Unlock()
	return nil
}

// Diagnostics returns the last known registration state
func (s *DeviceRegistrationService) Diagnostics() models.DeviceRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *DeviceRegistrationService) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Retry re-enters the flow from RequestingPermission. It is rejected with
// ErrRegistrationInProgress while a run is active.
func (s *DeviceRegistrationService) Retry(ctx context.Context) (models.DeviceRegistration, error) {
	return s.Run(ctx)
}

// Run executes one registration attempt and returns its terminal state.
// The returned error is non-nil only when another run is active; failures of
// the flow itself are reported through the returned status and message.
func (s *DeviceRegistrationService) Run(ctx context.Context) (reg models.DeviceRegistration, err error) {
	if !s.begin() {
		return s.Diagnostics(), errors.ErrRegistrationInProgress
	}
	defer s.end()

	ctx, span := tracing.StartSpan(ctx, "device.register")
	defer span.End()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField(LogFieldOperation, "device_register").
				Errorf("Recovered from panic during device registration: %v", r)
			reg = s.finish(ctx, models.RegistrationError, normalizeRegistrationMessage(fmt.Sprint(r)), "")
		}
		s.metrics.RecordTimer(metrics.RegistrationLatency, time.Since(start), nil)
		s.metrics.IncrementCounter(metrics.Registrations, map[string]string{"status": string(reg.Status)})
		span.SetAttributes(attribute.String("registration.status", string(reg.Status)))
	}()

	s.transition(models.RegistrationRequestingPermission, "", true)

	permission, err := s.platform.RequestPermission(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return s.finish(ctx, models.RegistrationError, normalizeRegistrationMessage(err.Error()), ""), nil
	}
	if permission != models.PermissionGranted {
		return s.finish(ctx, models.RegistrationPermissionDenied, msgPermissionDenied, ""), nil
	}

	token, err := s.acquireToken(ctx)
	if stderrors.Is(err, errors.ErrTokenUnavailable) {
		return s.finish(ctx, models.RegistrationTokenUnavailable, msgTokenUnavailable, ""), nil
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return s.finish(ctx, models.RegistrationError, normalizeRegistrationMessage(err.Error()), ""), nil
	}

	previous := s.Diagnostics()
	if previous.Token == token && s.lastRegisteredOK() {
		s.logger.WithField(LogFieldToken, privacy.MaskToken(token)).Debug("Skipping backend registration: token unchanged")
		return s.finish(ctx, models.RegistrationRegistered, msgAlreadyRegistered, token), nil
	}

	s.transition(models.RegistrationBackendRegistering, "", false)
	err = s.api.RegisterDeviceToken(ctx, models.DeviceTokenRequest{
		Token:    token,
		Platform: s.Diagnostics().Platform,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		if errors.GetCode(err) == errors.ErrCodeBackendRejected {
			return s.finish(ctx, models.RegistrationBackendRejected, backendMessage(err), ""), nil
		}
		if _, ok := errors.As(err); ok {
			return s.finish(ctx, models.RegistrationError, backendMessage(err), ""), nil
		}
		return s.finish(ctx, models.RegistrationError, normalizeRegistrationMessage(err.Error()), ""), nil
	}

	return s.finish(ctx, models.RegistrationRegistered, msgRegistered, token), nil
}

// acquireToken reads the push token, waiting retryDelay and trying exactly
// once more when the platform has none yet.
func (s *DeviceRegistrationService) acquireToken(ctx context.Context) (string, error) {
	var token string
	attempt := 0
	backoff := retry.NewBackoff(retry.FixedBackoffConfig(s.retryDelay, 2))

	err := backoff.RetryWithPredicate(ctx, func() error {
		attempt++
		t, err := s.platform.DeviceToken(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(t) == "" {
			s.logger.WithField(LogFieldAttempt, attempt).Warn("Push token not available yet")
			return errors.ErrTokenUnavailable
		}
		token = t
		return nil
	}, func(err error) bool {
		return stderrors.Is(err, errors.ErrTokenUnavailable)
	})
	return token, err
}

// Unregister removes the last accepted token from the backend. Without one it
// does nothing.
func (s *DeviceRegistrationService) Unregister(ctx context.Context) error {
	if !s.begin() {
		return errors.ErrRegistrationInProgress
	}
	defer s.end()

	current := s.Diagnostics()
	if current.Token == "" {
		s.logger.Debug("Skipping unregister: no registered token")
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "device.unregister")
	defer span.End()

	err := s.api.UnregisterDeviceToken(ctx, models.DeviceTokenRequest{
		Token:    current.Token,
		Platform: current.Platform,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.WithField(LogFieldToken, privacy.MaskToken(current.Token)).
			WithError(err).Warn("Failed to unregister device token")
		return err
	}

	s.mu.Lock()
	s.current = models.DeviceRegistration{
		Platform:  current.Platform,
		Status:    models.RegistrationIdle,
		UpdatedAt: s.now(),
	}
	s.lastTerminal = models.RegistrationIdle
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearRegistration(ctx); err != nil {
			s.logger.WithError(err).Warn("Failed to clear stored registration")
		}
	}
	s.logger.WithField(LogFieldToken, privacy.MaskToken(current.Token)).Info("Device unregistered")
	return nil
}

func (s *DeviceRegistrationService) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *DeviceRegistrationService) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// lastRegisteredOK is true when a run in this process ended Registered
func (s *DeviceRegistrationService) lastRegisteredOK() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTerminal == models.RegistrationRegistered
}

func (s *DeviceRegistrationService) transition(status models.RegistrationStatus, message string, newAttempt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newAttempt {
		s.current.Attempts++
	}
	s.current.Status = status
	s.current.Message = message
	s.current.UpdatedAt = s.now()
	s.logger.WithField(LogFieldStatus, status).Debug("Device registration state changed")
}

// finish records a terminal state. A non-empty token replaces the accepted
// token; otherwise the previously accepted one is kept for Unregister.
func (s *DeviceRegistrationService) finish(ctx context.Context, status models.RegistrationStatus, message, token string) models.DeviceRegistration {
	s.mu.Lock()
	s.current.Status = status
	s.current.Message = message
	s.current.UpdatedAt = s.now()
	if token != "" {
		s.current.Token = token
	}
	s.lastTerminal = status
	snapshot := s.current
	s.mu.Unlock()

	entry := s.logger.WithFields(logrus.Fields{
		LogFieldStatus:   status,
		LogFieldPlatform: snapshot.Platform,
		LogFieldAttempt:  snapshot.Attempts,
	})
	if status == models.RegistrationRegistered {
		entry.WithField(LogFieldToken, privacy.MaskToken(snapshot.Token)).Info(message)
	} else {
		entry.Warn(message)
	}

	if s.store != nil {
		if err := s.store.SaveRegistration(ctx, &snapshot); err != nil {
			s.logger.WithError(err).Warn("Failed to persist registration state")
		}
	}
	return snapshot
}

func backendMessage(err error) string {
	appErr, _ := errors.As(err)
	msg := appErr.UserMessage
	if msg == "" {
		msg = appErr.Message
	}
	return normalizeRegistrationMessage(msg)
}

// normalizeRegistrationMessage maps known failure text to operator-facing
// messages.
func normalizeRegistrationMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	switch {
	case strings.Contains(msg, constants.PushServiceNotConfiguredMarker):
		return msgPushNotConfigured
	case msg == "":
		return msgUnexpectedRegistering
	default:
		return msg
	}
}
