package models

// PushPayload is the data block of an inbound push notification. Every field
// is optional; empty string means absent.
type PushPayload struct {
	Type           string `json:"type,omitempty"`
	RelatedID      string `json:"relatedId,omitempty"`
	RelatedType    string `json:"relatedType,omitempty"`
	ChatID         string `json:"chatId,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
	JobID          string `json:"jobId,omitempty"`
}

type NavigationKind string

const (
	NavChatThread         NavigationKind = "chat-thread"
	NavNotificationDetail NavigationKind = "notification-detail"
	NavApplicationDetail  NavigationKind = "application-detail"
	NavJobDetail          NavigationKind = "job-detail"
	NavNotificationList   NavigationKind = "notification-list"
)

type NavigationTarget struct {
	Kind NavigationKind `json:"kind"`
	ID   string         `json:"id,omitempty"`
}

func (t NavigationTarget) String() string {
	if t.ID == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + "(" + t.ID + ")"
}
