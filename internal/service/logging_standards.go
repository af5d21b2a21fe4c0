package service

// Logging Standards for jobchat
//
// Standard field names used by every service in this package. Push tokens and
// remote ids pass through internal/privacy before they reach a log line.
const (
	// Core identifiers
	LogFieldChatID         = "chat_id"
	LogFieldMessageID      = "message_id"
	LogFieldClientID       = "client_id"
	LogFieldUserID         = "user_id"
	LogFieldNotificationID = "notification_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldState     = "state"
	LogFieldStatus    = "status"

	// Message and attachment fields
	LogFieldMessageType    = "message_type"
	LogFieldAttachmentKind = "attachment_kind"
	LogFieldSource         = "source"
	LogFieldMimeType       = "mime_type"
	LogFieldFileName       = "file_name"
	LogFieldSize           = "size_bytes"
	LogFieldPage           = "page"
	LogFieldCount          = "count"

	// Device registration
	LogFieldPlatform = "platform"
	LogFieldToken    = "token"

	// Performance and errors
	LogFieldDuration  = "duration_ms"
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log Level Usage Guidelines
//
// DEBUG: state machine transitions, discarded updates after a session closed,
//   request/response details (masked).
// INFO: chat opened, message sent, device registered or unregistered.
// WARN: retryable failures, rejected concurrent submissions, fallback behavior.
// ERROR: failed sends and uploads after they are surfaced to the user,
//   unexpected registration errors.

// Standard Log Message Patterns
//
// Starting operations: "Starting [operation]"
// Completed operations: "[Operation] completed successfully"
// Failed operations: "Failed to [operation]"
// Skipping operations: "Skipping [operation]: [reason]"
