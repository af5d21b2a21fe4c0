package service

import (
	"context"
	"io"

	"jobchat/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockChatAPI struct {
	mock.Mock
}

func (m *mockChatAPI) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *mockChatAPI) GetMessages(ctx context.Context, chatID string, page, limit int) (*models.MessagePage, error) {
	args := m.Called(ctx, chatID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessagePage), args.Error(1)
}

func (m *mockChatAPI) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockChatAPI) MarkChatRead(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, attachment models.Attachment) (*models.AttachmentUploadResult, error) {
	args := m.Called(ctx, attachment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttachmentUploadResult), args.Error(1)
}

type mockUploadAPI struct {
	mock.Mock
	received []byte
}

func (m *mockUploadAPI) Upload(ctx context.Context, kind models.AttachmentKind, fileName, mimeType string, body io.Reader) (*models.AttachmentUploadResult, error) {
	m.received, _ = io.ReadAll(body)
	args := m.Called(ctx, kind, fileName, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttachmentUploadResult), args.Error(1)
}

type mockRegistrationAPI struct {
	mock.Mock
}

func (m *mockRegistrationAPI) RegisterDeviceToken(ctx context.Context, req models.DeviceTokenRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockRegistrationAPI) UnregisterDeviceToken(ctx context.Context, req models.DeviceTokenRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type mockPushPlatform struct {
	mock.Mock
}

func (m *mockPushPlatform) RequestPermission(ctx context.Context) (models.PermissionStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.PermissionStatus), args.Error(1)
}

func (m *mockPushPlatform) DeviceToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockPushPlatform) Platform() string {
	args := m.Called()
	return args.String(0)
}
