package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jobchat/internal/errors"
	"jobchat/internal/models"
	"jobchat/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "secret", server.Client(), nil, nil)
}

func TestClient_GetChat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chats/c1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"c1","unreadCount":3,"employer":{"id":"e1","role":"EMPLOYER"}}`))
	})

	chat, err := client.GetChat(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", chat.ID)
	assert.Equal(t, 3, chat.UnreadCount)
	assert.Equal(t, "e1", chat.Employer.ID)
}

func TestClient_GetMessages(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantHasMore bool
	}{
		{"explicit has more", `{"messages":[{"id":"m1"}],"page":2,"hasMore":true}`, true},
		{"explicit last page", `{"messages":[{"id":"m1"},{"id":"m2"}],"hasMore":false}`, false},
		{"implicit full page", `{"messages":[{"id":"m1"},{"id":"m2"}]}`, true},
		{"implicit short page", `{"messages":[{"id":"m1"}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chats/c1/messages", r.URL.Path)
				assert.Equal(t, "2", r.URL.Query().Get("page"))
				assert.Equal(t, "2", r.URL.Query().Get("limit"))
				_, _ = w.Write([]byte(tt.body))
			})

			page, err := client.GetMessages(context.Background(), "c1", 2, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHasMore, page.HasMore)
			assert.Equal(t, 2, page.Page)
			assert.Equal(t, "m1", page.Messages[0].ID)
		})
	}
}

func TestClient_SendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "c1", req.ChatID)
		assert.Equal(t, "hello", req.Content)
		assert.Equal(t, models.MessageTypeText, req.MessageType)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"m9","chatId":"c1","content":"hello","messageType":"TEXT","createdAt":"2024-03-01T10:00:00Z"}`))
	})

	msg, err := client.SendMessage(context.Background(), models.SendMessageRequest{
		ChatID: "c1", Content: "hello", MessageType: models.MessageTypeText,
	})
	require.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
	assert.Equal(t, "2024-03-01T10:00:00Z", msg.CreatedAt)
}

func TestClient_Upload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uploads/document", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "cv.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.4", string(data))
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/cv.pdf"}`))
	})

	result, err := client.Upload(context.Background(), models.AttachmentDocument, "cv.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/cv.pdf", result.RemoteURL)
	assert.Equal(t, "application/pdf", result.MimeType)
}

func TestClient_UploadRejectsUnknownKind(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Upload(context.Background(), models.AttachmentKind("video"), "a.mp4", "video/mp4", strings.NewReader("x"))
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
}

func TestClient_DeviceTokenEndpoints(t *testing.T) {
	var methods []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/device-token", r.URL.Path)
		var req models.DeviceTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok", req.Token)
		assert.Equal(t, "ios", req.Platform)
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	req := models.DeviceTokenRequest{Token: "tok", Platform: "ios"}
	require.NoError(t, client.RegisterDeviceToken(context.Background(), req))
	require.NoError(t, client.UnregisterDeviceToken(context.Background(), req))
	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
}

func TestClient_MarkReadEndpoints(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
	})

	require.NoError(t, client.MarkChatRead(context.Background(), "c1"))
	require.NoError(t, client.MarkNotificationRead(context.Background(), "n1"))
	assert.Equal(t, []string{"POST /chats/c1/read", "PATCH /notifications/n1/read"}, calls)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      errors.ErrorCode
		wantRetryable bool
		wantUserMsg   string
	}{
		{"rejection with message", http.StatusBadRequest, `{"message":"Chat is closed"}`, errors.ErrCodeBackendRejected, false, "Chat is closed"},
		{"rejection with message list", http.StatusBadRequest, `{"message":["content should not be empty","bad type"]}`, errors.ErrCodeBackendRejected, false, "content should not be empty; bad type"},
		{"rejection without body", http.StatusForbidden, ``, errors.ErrCodeBackendRejected, false, "The request was rejected"},
		{"not found", http.StatusNotFound, `{"error":"missing"}`, errors.ErrCodeNotFound, false, "missing"},
		{"server error", http.StatusBadGateway, `oops`, errors.ErrCodeNetwork, true, "The server is unavailable, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetChat(context.Background(), "c1")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetCode(err))
			assert.Equal(t, tt.wantRetryable, errors.IsRetryable(err))
			assert.Equal(t, tt.wantUserMsg, errors.GetUserMessage(err))
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	client := NewClient(server.URL, "", nil, nil, nil)

	err := client.MarkChatRead(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNetwork, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestClient_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := client.GetChat(context.Background(), "c1")
	assert.Equal(t, errors.ErrCodeMalformedInput, errors.GetCode(err))
}

func TestClient_CircuitBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var hits int32
	status := int32(http.StatusBadRequest)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	t.Cleanup(server.Close)

	breaker := circuitbreaker.New("test", 2, time.Minute, nil)
	client := NewClient(server.URL, "", server.Client(), breaker, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = client.MarkChatRead(ctx, "c1")
	}
	assert.Equal(t, circuitbreaker.StateClosed, breaker.GetState())

	atomic.StoreInt32(&status, http.StatusServiceUnavailable)
	_ = client.MarkChatRead(ctx, "c1")
	_ = client.MarkChatRead(ctx, "c1")
	assert.Equal(t, circuitbreaker.StateOpen, breaker.GetState())

	before := atomic.LoadInt32(&hits)
	err := client.MarkChatRead(ctx, "c1")
	assert.Equal(t, before, atomic.LoadInt32(&hits))
	assert.Equal(t, errors.ErrCodeNetwork, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}
