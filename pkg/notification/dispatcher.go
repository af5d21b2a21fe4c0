// Package notification turns inbound push payloads into in-app navigation.
package notification

import (
	"strings"

	"jobchat/internal/constants"
	"jobchat/internal/models"
)

// Route resolves a push payload to a navigation target. Rules are evaluated
// in order and the first match wins; a payload with no usable field falls
// through to the notification list.
func Route(p models.PushPayload) models.NavigationTarget {
	chatID := strings.TrimSpace(p.ChatID)
	notificationID := strings.TrimSpace(p.NotificationID)
	relatedID := strings.TrimSpace(p.RelatedID)
	jobID := strings.TrimSpace(p.JobID)
	pushType := strings.ToUpper(strings.TrimSpace(p.Type))
	relatedType := strings.ToUpper(strings.TrimSpace(p.RelatedType))

	switch {
	case chatID != "" && (pushType == constants.PushTypeNewChatMessage || relatedType == constants.PushRelatedTypeChat):
		return models.NavigationTarget{Kind: models.NavChatThread, ID: chatID}
	case notificationID != "":
		return models.NavigationTarget{Kind: models.NavNotificationDetail, ID: notificationID}
	case relatedID != "" && isApplicationType(pushType):
		return models.NavigationTarget{Kind: models.NavApplicationDetail, ID: relatedID}
	case relatedID != "" && isJobType(pushType):
		return models.NavigationTarget{Kind: models.NavJobDetail, ID: relatedID}
	case jobID != "":
		return models.NavigationTarget{Kind: models.NavJobDetail, ID: jobID}
	default:
		return models.NavigationTarget{Kind: models.NavNotificationList}
	}
}

func isApplicationType(t string) bool {
	return strings.Contains(t, "APPLICATION") || constants.InterviewPushTypes[t]
}

func isJobType(t string) bool {
	return strings.Contains(t, "JOB") || constants.JobModerationPushTypes[t]
}
