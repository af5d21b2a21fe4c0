package notification

import (
	"context"

	"jobchat/internal/metrics"
	"jobchat/internal/models"
	"jobchat/internal/privacy"

	"github.com/sirupsen/logrus"
)

// Navigator opens a screen for a resolved target
type Navigator interface {
	NavigateTo(ctx context.Context, target models.NavigationTarget) error
}

// NotificationMarker marks a notification as read on the backend
type NotificationMarker interface {
	MarkNotificationRead(ctx context.Context, notificationID string) error
}

// Handler handles a tap on a delivered push notification
type Handler struct {
	navigator Navigator
	marker    NotificationMarker
	metrics   *metrics.Registry
	logger    *logrus.Logger
}

// NewHandler creates a tap handler. marker may be nil, in which case
// notifications are not marked read.
func NewHandler(navigator Navigator, marker NotificationMarker, registry *metrics.Registry, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Handler{
		navigator: navigator,
		marker:    marker,
		metrics:   registry,
		logger:    logger,
	}
}

// HandleTap routes the payload, marks the notification read when the
// notification rule matched, then navigates. Marking read is best effort.
func (h *Handler) HandleTap(ctx context.Context, payload models.PushPayload) (models.NavigationTarget, error) {
	target := Route(payload)
	h.metrics.IncrementCounter(metrics.PushRoutes, map[string]string{"target": string(target.Kind)})

	logger := h.logger.WithFields(logrus.Fields{
		"target":    target.Kind,
		"target_id": privacy.MaskID(target.ID),
		"type":      payload.Type,
	})
	logger.Debug("Routing push notification tap")

	if target.Kind == models.NavNotificationDetail && h.marker != nil {
		if err := h.marker.MarkNotificationRead(ctx, target.ID); err != nil {
			logger.WithError(err).Warn("Failed to mark notification read")
		}
	}

	if h.navigator == nil {
		return target, nil
	}
	if err := h.navigator.NavigateTo(ctx, target); err != nil {
		logger.WithError(err).Error("Navigation failed")
		return target, err
	}
	return target, nil
}

// HandleRaw parses an untyped data block and handles it as a tap
func (h *Handler) HandleRaw(ctx context.Context, raw map[string]any) (models.NavigationTarget, error) {
	return h.HandleTap(ctx, ParsePayload(raw))
}
