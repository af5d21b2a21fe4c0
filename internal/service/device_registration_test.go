package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"jobchat/internal/errors"
	"jobchat/internal/metrics"
	"jobchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type registrationFixture struct {
	platform *mockPushPlatform
	api      *mockRegistrationAPI
	store    *MemoryStore
	metrics  *metrics.Registry
	service  *DeviceRegistrationService
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	f := &registrationFixture{
		platform: new(mockPushPlatform),
		api:      new(mockRegistrationAPI),
		store:    NewMemoryStore(),
		metrics:  metrics.NewRegistry(),
	}
	f.platform.On("Platform").Return("ios").Maybe()
	f.service = NewDeviceRegistrationService(f.platform, f.api, f.store,
		models.PushConfig{Platform: "android", TokenRetryDelayMs: 1}, f.metrics, nil)
	return f
}

func TestDeviceRegistration_DefaultRetryDelay(t *testing.T) {
	platform := new(mockPushPlatform)
	platform.On("Platform").Return("")
	service := NewDeviceRegistrationService(platform, nil, nil, models.PushConfig{Platform: "android"}, nil, nil)

	assert.Equal(t, 2*time.Second, service.retryDelay)
	assert.Equal(t, "android", service.Diagnostics().Platform)
	assert.Equal(t, models.RegistrationIdle, service.Diagnostics().Status)
}

func TestDeviceRegistration_Registered(t *testing.T) {
	f := newRegistrationFixture(t)
	f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
	f.platform.On("DeviceToken", mock.Anything).Return("token-abc", nil)
	f.api.On("RegisterDeviceToken", mock.Anything, models.DeviceTokenRequest{Token: "token-abc", Platform: "ios"}).Return(nil)

	reg, err := f.service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationRegistered, reg.Status)
	assert.Equal(t, "token-abc", reg.Token)
	assert.Equal(t, 1, reg.Attempts)
	assert.Equal(t, reg, f.service.Diagnostics())

	stored, _ := f.store.LoadRegistration(context.Background())
	require.NotNil(t, stored)
	assert.Equal(t, models.RegistrationRegistered, stored.Status)
	assert.Equal(t, float64(1), f.metrics.CounterValue(metrics.Registrations, map[string]string{"status": "Registered"}))
	f.api.AssertExpectations(t)
}

func TestDeviceRegistration_PermissionDenied(t *testing.T) {
	f := newRegistrationFixture(t)
	f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionDenied, nil)

	reg, err := f.service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RegistrationPermissionDenied, reg.Status)
	assert.NotEmpty(t, reg.Message)
	f.platform.AssertNotCalled(t, "DeviceToken", mock.Anything)
	f.api.AssertNotCalled(t, "RegisterDeviceToken", mock.Anything, mock.Anything)
}

func TestDeviceRegistration_TokenRetriedExactlyOnce(t *testing.T) {
	t.Run("token arrives on retry", func(t *testing.T) {
		f := newRegistrationFixture(t)
		f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
		f.platform.On("DeviceToken", mock.Anything).Return("", nil).Once()
		f.platform.On("DeviceToken", mock.Anything).Return("late-token", nil).Once()
		f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).Return(nil)

		reg, err := f.service.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationRegistered, reg.Status)
		assert.Equal(t, "late-token", reg.Token)
		f.platform.AssertNumberOfCalls(t, "DeviceToken", 2)
	})

	t.Run("token never arrives", func(t *testing.T) {
		f := newRegistrationFixture(t)
		f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
		f.platform.On("DeviceToken", mock.Anything).Return("", nil)

		reg, err := f.service.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationTokenUnavailable, reg.Status)
		assert.NotEmpty(t, reg.Message)
		f.platform.AssertNumberOfCalls(t, "DeviceToken", 2)
		f.api.AssertNotCalled(t, "RegisterDeviceToken", mock.Anything, mock.Anything)
	})
}

func TestDeviceRegistration_Failures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(f *registrationFixture)
		wantStatus  models.RegistrationStatus
		wantMessage string
	}{
		{
			name: "backend rejection keeps server message",
			setup: func(f *registrationFixture) {
				f.platform.On("DeviceToken", mock.Anything).Return("tok", nil)
				f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).
					Return(errors.NewAPIError("/notifications/device-token", 400, "Invalid token format"))
			},
			wantStatus:  models.RegistrationBackendRejected,
			wantMessage: "Invalid token format",
		},
		{
			name: "push service not configured",
			setup: func(f *registrationFixture) {
				f.platform.On("DeviceToken", mock.Anything).Return("tok", nil)
				f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).
					Return(errors.NewAPIError("/notifications/device-token", 500,
						"The default FirebaseApp is not initialized in this process"))
			},
			wantStatus:  models.RegistrationError,
			wantMessage: msgPushNotConfigured,
		},
		{
			name: "transport failure is an error",
			setup: func(f *registrationFixture) {
				f.platform.On("DeviceToken", mock.Anything).Return("tok", nil)
				f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).
					Return(errors.NewNetworkError("/notifications/device-token", assert.AnError))
			},
			wantStatus:  models.RegistrationError,
			wantMessage: "Network error, please check your connection and try again",
		},
		{
			name: "server error is an error",
			setup: func(f *registrationFixture) {
				f.platform.On("DeviceToken", mock.Anything).Return("tok", nil)
				f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).
					Return(errors.NewAPIError("/notifications/device-token", 503, "maintenance"))
			},
			wantStatus:  models.RegistrationError,
			wantMessage: "maintenance",
		},
		{
			name: "platform error",
			setup: func(f *registrationFixture) {
				f.platform.On("DeviceToken", mock.Anything).Return("", fmt.Errorf("play services missing"))
			},
			wantStatus:  models.RegistrationError,
			wantMessage: "play services missing",
		},
		{
			name: "unexpected non api error",
			setup: func(f *registrationFixture) {
				f.platform.On("DeviceToken", mock.Anything).Return("tok", nil)
				f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).
					Return(fmt.Errorf("FirebaseApp is not initialized"))
			},
			wantStatus:  models.RegistrationError,
			wantMessage: msgPushNotConfigured,
		},
		{
			name: "panic in platform",
			setup: func(f *registrationFixture) {
				f.platform.On("DeviceToken", mock.Anything).Run(func(args mock.Arguments) {
					panic("native module crashed")
				}).Return("", nil)
			},
			wantStatus:  models.RegistrationError,
			wantMessage: "native module crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture(t)
			f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
			tt.setup(f)

			reg, err := f.service.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, reg.Status)
			assert.Equal(t, tt.wantMessage, reg.Message)
			assert.Empty(t, reg.Token)
			assert.False(t, f.service.InProgress())
		})
	}
}

func TestDeviceRegistration_RetryWithUnchangedTokenIsIdempotent(t *testing.T) {
	f := newRegistrationFixture(t)
	f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
	f.platform.On("DeviceToken", mock.Anything).Return("stable-token", nil)

	registered := map[string]int{}
	f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(1).(models.DeviceTokenRequest)
		registered[req.Token]++
	}).Return(nil)

	_, err := f.service.Run(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		reg, err := f.service.Retry(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationRegistered, reg.Status)
	}

	assert.Equal(t, map[string]int{"stable-token": 1}, registered)
	assert.Equal(t, 4, f.service.Diagnostics().Attempts)
}

func TestDeviceRegistration_RestoredTokenIsRegisteredAgain(t *testing.T) {
	f := newRegistrationFixture(t)
	require.NoError(t, f.store.SaveRegistration(context.Background(), &models.DeviceRegistration{
		Token: "token-abc", Platform: "ios", Status: models.RegistrationRegistered,
	}))
	require.NoError(t, f.service.Restore(context.Background()))

	f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
	f.platform.On("DeviceToken", mock.Anything).Return("token-abc", nil)
	f.api.On("RegisterDeviceToken", mock.Anything, models.DeviceTokenRequest{Token: "token-abc", Platform: "ios"}).Return(nil)

	reg, err := f.service.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRegistered, reg.Status)
	assert.Equal(t, msgRegistered, reg.Message)
	f.api.AssertNumberOfCalls(t, "RegisterDeviceToken", 1)

	reg, err = f.service.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, msgAlreadyRegistered, reg.Message)
	f.api.AssertNumberOfCalls(t, "RegisterDeviceToken", 1)
}

func TestDeviceRegistration_RetryAfterRejectionCallsBackend(t *testing.T) {
	f := newRegistrationFixture(t)
	f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
	f.platform.On("DeviceToken", mock.Anything).Return("tok", nil)
	f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).
		Return(errors.NewAPIError("/notifications/device-token", 503, "")).Once()
	f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).Return(nil).Once()

	reg, _ := f.service.Run(context.Background())
	assert.Equal(t, models.RegistrationBackendRejected, reg.Status)
	assert.Equal(t, "The server is unavailable, please try again", reg.Message)

	reg, _ = f.service.Retry(context.Background())
	assert.Equal(t, models.RegistrationRegistered, reg.Status)
	f.api.AssertNumberOfCalls(t, "RegisterDeviceToken", 2)
}

func TestDeviceRegistration_ConcurrentRunRejected(t *testing.T) {
	f := newRegistrationFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.platform.On("RequestPermission", mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return(models.PermissionDenied, nil).Once()

	done := make(chan models.DeviceRegistration, 1)
	go func() {
		reg, _ := f.service.Run(context.Background())
		done <- reg
	}()

	<-started
	assert.True(t, f.service.InProgress())
	reg, err := f.service.Retry(context.Background())
	assert.ErrorIs(t, err, errors.ErrRegistrationInProgress)
	assert.Equal(t, models.RegistrationRequestingPermission, reg.Status)
	assert.ErrorIs(t, f.service.Unregister(context.Background()), errors.ErrRegistrationInProgress)

	close(release)
	assert.Equal(t, models.RegistrationPermissionDenied, (<-done).Status)
	f.platform.AssertNumberOfCalls(t, "RequestPermission", 1)
}

func TestDeviceRegistration_Unregister(t *testing.T) {
	t.Run("no token is a no-op", func(t *testing.T) {
		f := newRegistrationFixture(t)
		require.NoError(t, f.service.Unregister(context.Background()))
		f.api.AssertNotCalled(t, "UnregisterDeviceToken", mock.Anything, mock.Anything)
	})

	t.Run("registered token is removed", func(t *testing.T) {
		f := newRegistrationFixture(t)
		f.platform.On("RequestPermission", mock.Anything).Return(models.PermissionGranted, nil)
		f.platform.On("DeviceToken", mock.Anything).Return("tok", nil)
		f.api.On("RegisterDeviceToken", mock.Anything, mock.Anything).Return(nil)
		f.api.On("UnregisterDeviceToken", mock.Anything, models.DeviceTokenRequest{Token: "tok", Platform: "ios"}).Return(nil)

		_, err := f.service.Run(context.Background())
		require.NoError(t, err)
		require.NoError(t, f.service.Unregister(context.Background()))

		assert.Equal(t, models.RegistrationIdle, f.service.Diagnostics().Status)
		assert.Empty(t, f.service.Diagnostics().Token)
		stored, _ := f.store.LoadRegistration(context.Background())
		assert.Nil(t, stored)

		require.NoError(t, f.service.Unregister(context.Background()))
		f.api.AssertNumberOfCalls(t, "UnregisterDeviceToken", 1)
	})

	t.Run("restored token is removed after restart", func(t *testing.T) {
		f := newRegistrationFixture(t)
		require.NoError(t, f.store.SaveRegistration(context.Background(), &models.DeviceRegistration{
			Token: "old", Platform: "android", Status: models.RegistrationRegistered,
		}))
		require.NoError(t, f.service.Restore(context.Background()))
		f.api.On("UnregisterDeviceToken", mock.Anything, models.DeviceTokenRequest{Token: "old", Platform: "android"}).Return(nil)

		require.NoError(t, f.service.Unregister(context.Background()))
		f.api.AssertExpectations(t)
	})

	t.Run("backend failure keeps token", func(t *testing.T) {
		f := newRegistrationFixture(t)
		require.NoError(t, f.store.SaveRegistration(context.Background(), &models.DeviceRegistration{
			Token: "old", Platform: "android", Status: models.RegistrationRegistered,
		}))
		require.NoError(t, f.service.Restore(context.Background()))
		f.api.On("UnregisterDeviceToken", mock.Anything, mock.Anything).
			Return(errors.NewNetworkError("/notifications/device-token", assert.AnError))

		require.Error(t, f.service.Unregister(context.Background()))
		assert.Equal(t, "old", f.service.Diagnostics().Token)
	})
}
