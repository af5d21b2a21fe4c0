package notification

import (
	"context"
	"errors"
	"testing"

	"jobchat/internal/metrics"
	"jobchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNavigator struct {
	mock.Mock
}

func (m *mockNavigator) NavigateTo(ctx context.Context, target models.NavigationTarget) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}

type mockMarker struct {
	mock.Mock
}

func (m *mockMarker) MarkNotificationRead(ctx context.Context, notificationID string) error {
	args := m.Called(ctx, notificationID)
	return args.Error(0)
}

func TestHandleTap_ChatThread(t *testing.T) {
	ctx := context.Background()
	nav := new(mockNavigator)
	marker := new(mockMarker)
	registry := metrics.NewRegistry()
	want := models.NavigationTarget{Kind: models.NavChatThread, ID: "c1"}
	nav.On("NavigateTo", ctx, want).Return(nil)

	h := NewHandler(nav, marker, registry, nil)
	got, err := h.HandleTap(ctx, models.PushPayload{ChatID: "c1", Type: "NEW_CHAT_MESSAGE"})

	require.NoError(t, err)
	assert.Equal(t, want, got)
	nav.AssertExpectations(t)
	marker.AssertNotCalled(t, "MarkNotificationRead", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, registry.CounterValue(metrics.PushRoutes, map[string]string{"target": "chat-thread"}))
}

func TestHandleTap_MarksNotificationRead(t *testing.T) {
	ctx := context.Background()
	nav := new(mockNavigator)
	marker := new(mockMarker)
	want := models.NavigationTarget{Kind: models.NavNotificationDetail, ID: "n1"}
	marker.On("MarkNotificationRead", ctx, "n1").Return(nil)
	nav.On("NavigateTo", ctx, want).Return(nil)

	h := NewHandler(nav, marker, nil, nil)
	got, err := h.HandleTap(ctx, models.PushPayload{NotificationID: "n1", RelatedID: "a1"})

	require.NoError(t, err)
	assert.Equal(t, want, got)
	marker.AssertExpectations(t)
	nav.AssertExpectations(t)
}

func TestHandleTap_MarkReadFailureStillNavigates(t *testing.T) {
	ctx := context.Background()
	nav := new(mockNavigator)
	marker := new(mockMarker)
	want := models.NavigationTarget{Kind: models.NavNotificationDetail, ID: "n2"}
	marker.On("MarkNotificationRead", ctx, "n2").Return(errors.New("offline"))
	nav.On("NavigateTo", ctx, want).Return(nil)

	h := NewHandler(nav, marker, nil, nil)
	_, err := h.HandleTap(ctx, models.PushPayload{NotificationID: "n2"})

	require.NoError(t, err)
	nav.AssertExpectations(t)
}

func TestHandleTap_NavigationError(t *testing.T) {
	ctx := context.Background()
	nav := new(mockNavigator)
	nav.On("NavigateTo", ctx, mock.Anything).Return(errors.New("no screen"))

	h := NewHandler(nav, nil, nil, nil)
	got, err := h.HandleTap(ctx, models.PushPayload{})

	assert.Error(t, err)
	assert.Equal(t, models.NavNotificationList, got.Kind)
}

func TestHandleRaw(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, nil, nil, nil)

	got, err := h.HandleRaw(ctx, map[string]any{"data": map[string]any{"jobId": float64(12)}})

	require.NoError(t, err)
	assert.Equal(t, models.NavigationTarget{Kind: models.NavJobDetail, ID: "12"}, got)
}
