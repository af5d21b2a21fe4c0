package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"jobchat/internal/constants"
	"jobchat/internal/errors"
	"jobchat/internal/models"
	"jobchat/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

// Client talks to the job marketplace REST API. Every call goes through the
// circuit breaker; only retryable failures count against it.
type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
	breaker   *circuitbreaker.CircuitBreaker
	logger    *logrus.Logger
}

func NewClient(baseURL, authToken string, httpClient *http.Client, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if breaker == nil {
		breaker = circuitbreaker.New("jobchat-api",
			uint32(constants.DefaultCircuitBreakerMaxFailures),
			time.Duration(constants.DefaultCircuitBreakerResetSec)*time.Second,
			logger)
	}
	breaker.WithFailurePredicate(errors.IsRetryable)

	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		authToken: authToken,
		client:    httpClient,
		breaker:   breaker,
		logger:    logger,
	}
}

// BreakerStats exposes the circuit breaker counters for diagnostics
func (c *Client) BreakerStats() circuitbreaker.Stats {
	return c.breaker.GetStats()
}

func (c *Client) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	path := "/chats/" + url.PathEscape(chatID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// messagePageResponse tolerates backends that omit hasMore
type messagePageResponse struct {
	Messages []models.Message `json:"messages"`
	Page     int              `json:"page"`
	HasMore  *bool            `json:"hasMore"`
}

// GetMessages fetches one page of history. Page 1 is the newest page; each
// page is ordered oldest first.
func (c *Client) GetMessages(ctx context.Context, chatID string, page, limit int) (*models.MessagePage, error) {
	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	query.Set("limit", fmt.Sprintf("%d", limit))
	path := "/chats/" + url.PathEscape(chatID) + "/messages?" + query.Encode()

	var resp messagePageResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	result := &models.MessagePage{Messages: resp.Messages, Page: resp.Page}
	if result.Page == 0 {
		result.Page = page
	}
	if resp.HasMore != nil {
		result.HasMore = *resp.HasMore
	} else {
		result.HasMore = len(resp.Messages) >= limit
	}
	return result, nil
}

func (c *Client) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	var msg models.Message
	if err := c.doJSON(ctx, http.MethodPost, "/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) MarkChatRead(ctx context.Context, chatID string) error {
	return c.doJSON(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/read", nil, nil)
}

// Upload sends body as a single multipart part named "file" and returns the
// hosted URL.
func (c *Client) Upload(ctx context.Context, kind models.AttachmentKind, fileName, mimeType string, body io.Reader) (*models.AttachmentUploadResult, error) {
	path := "/uploads/" + string(kind)
	if kind != models.AttachmentImage && kind != models.AttachmentDocument {
		return nil, errors.NewValidationError("kind", fmt.Sprintf("unknown attachment kind %q", kind))
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create multipart part")
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to read attachment")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to finish multipart body")
	}

	var result models.AttachmentUploadResult
	err = c.do(ctx, http.MethodPost, path, writer.FormDataContentType(), buf.Bytes(), &result)
	if err != nil {
		return nil, err
	}
	if result.MimeType == "" {
		result.MimeType = mimeType
	}
	return &result, nil
}

func (c *Client) RegisterDeviceToken(ctx context.Context, req models.DeviceTokenRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/device-token", req, nil)
}

func (c *Client) UnregisterDeviceToken(ctx context.Context, req models.DeviceTokenRequest) error {
	return c.doJSON(ctx, http.MethodDelete, "/notifications/device-token", req, nil)
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return c.doJSON(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to marshal request")
		}
	}
	return c.do(ctx, method, path, "application/json", body, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	endpoint := c.baseURL + path

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, endpoint, contentType, body, out)
	})
	if circuitbreaker.IsCircuitBreakerError(err) {
		return errors.WrapRetryable(err, errors.ErrCodeNetwork, "circuit open").
			WithContext("endpoint", path).
			WithUserMessage("The server is unavailable, please try again")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint, contentType string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).Debug("Sending API request")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewNetworkError(endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverMessage := extractServerMessage(respBody)
		c.logger.WithFields(logrus.Fields{
			"method":      method,
			"endpoint":    endpoint,
			"status_code": resp.StatusCode,
		}).Warn("API returned error status")
		return errors.NewAPIError(endpoint, resp.StatusCode, serverMessage)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeMalformedInput, "failed to decode response").
			WithContext("endpoint", endpoint)
	}
	return nil
}

// extractServerMessage reads {"message": "..."} or {"error": "..."} bodies.
// NestJS style array messages are joined.
func extractServerMessage(body []byte) string {
	var parsed struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if len(parsed.Message) > 0 {
		var single string
		if err := json.Unmarshal(parsed.Message, &single); err == nil {
			return strings.TrimSpace(single)
		}
		var many []string
		if err := json.Unmarshal(parsed.Message, &many); err == nil {
			return strings.TrimSpace(strings.Join(many, "; "))
		}
	}
	return strings.TrimSpace(parsed.Error)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
