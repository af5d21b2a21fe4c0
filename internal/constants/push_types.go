package constants

// Push notification type and related-type values sent by the backend
const (
	PushTypeNewChatMessage = "NEW_CHAT_MESSAGE"
	PushRelatedTypeChat    = "CHAT"
)

// Interview notifications open the application they belong to.
var InterviewPushTypes = map[string]bool{
	"INTERVIEW_SCHEDULED":   true,
	"INTERVIEW_RESCHEDULED": true,
	"INTERVIEW_CANCELLED":   true,
	"INTERVIEW_REMINDER":    true,
}

// Moderation outcomes for a posting open the job detail.
var JobModerationPushTypes = map[string]bool{
	"POSTING_APPROVED": true,
	"POSTING_REJECTED": true,
}

// Substring of the platform error raised when the push service has no
// credentials in this build.
const PushServiceNotConfiguredMarker = "FirebaseApp is not initialized"
