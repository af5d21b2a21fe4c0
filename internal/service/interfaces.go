package service

import (
	"context"
	"io"

	"jobchat/internal/models"
)

// ChatAPI is the part of the remote API the chat session uses
type ChatAPI interface {
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	GetMessages(ctx context.Context, chatID string, page, limit int) (*models.MessagePage, error)
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error)
	MarkChatRead(ctx context.Context, chatID string) error
}

// UploadAPI performs a single multipart upload
type UploadAPI interface {
	Upload(ctx context.Context, kind models.AttachmentKind, fileName, mimeType string, body io.Reader) (*models.AttachmentUploadResult, error)
}

// Uploader turns a picked attachment into a hosted URL
type Uploader interface {
	Upload(ctx context.Context, attachment models.Attachment) (*models.AttachmentUploadResult, error)
}

// RegistrationAPI registers push tokens with the backend
type RegistrationAPI interface {
	RegisterDeviceToken(ctx context.Context, req models.DeviceTokenRequest) error
	UnregisterDeviceToken(ctx context.Context, req models.DeviceTokenRequest) error
}

// PushPlatform is the OS push service. DeviceToken returns "" with a nil
// error when the platform has not produced a token yet.
type PushPlatform interface {
	RequestPermission(ctx context.Context) (models.PermissionStatus, error)
	DeviceToken(ctx context.Context) (string, error)
	Platform() string
}

// RegistrationStore keeps the last registration outcome across restarts
type RegistrationStore interface {
	LoadRegistration(ctx context.Context) (*models.DeviceRegistration, error)
	SaveRegistration(ctx context.Context, reg *models.DeviceRegistration) error
	ClearRegistration(ctx context.Context) error
}

// DraftStore persists unsent compose text per chat
type DraftStore interface {
	LoadDraft(ctx context.Context, chatID string) (string, error)
	SaveDraft(ctx context.Context, chatID, draft string) error
}
