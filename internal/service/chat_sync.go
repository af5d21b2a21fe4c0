package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"jobchat/internal/constants"
	"jobchat/internal/errors"
	"jobchat/internal/metrics"
	"jobchat/internal/models"
	"jobchat/internal/privacy"
	"jobchat/internal/timeline"
	"jobchat/internal/tracing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ComposerState is the compose-and-send state of one chat session
type ComposerState string

const (
	ComposerIdle      ComposerState = "Idle"
	ComposerComposing ComposerState = "Composing"
	ComposerUploading ComposerState = "Uploading"
	ComposerSending   ComposerState = "Sending"
	ComposerSent      ComposerState = "Sent"
	ComposerFailed    ComposerState = "Failed"
)

// IsPending reports whether an upload or send is in flight
func (s ComposerState) IsPending() bool {
	return s == ComposerUploading || s == ComposerSending
}

// ChatSyncClient opens chat sessions and owns the per-chat send gate, so two
// sessions on the same chat still cannot send concurrently.
type ChatSyncClient struct {
	api      ChatAPI
	uploader Uploader
	drafts   DraftStore
	config   models.ChatConfig
	userID   string
	metrics  *metrics.Registry
	logger   *logrus.Logger
	now      func() time.Time

	mu      sync.Mutex
	sending map[string]struct{}
}

func NewChatSyncClient(api ChatAPI, uploader Uploader, drafts DraftStore, config models.ChatConfig, userID string, registry *metrics.Registry, logger *logrus.Logger) *ChatSyncClient {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if config.PageSize <= 0 {
		config.PageSize = constants.DefaultPageSize
	}
	if config.MaxDraftLength <= 0 {
		config.MaxDraftLength = constants.DefaultMaxDraftLength
	}
	return &ChatSyncClient{
		api:      api,
		uploader: uploader,
		drafts:   drafts,
		config:   config,
		userID:   userID,
		metrics:  registry,
		logger:   logger,
		now:      time.Now,
		sending:  make(map[string]struct{}),
	}
}

func (c *ChatSyncClient) acquireSend(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.sending[chatID]; busy {
		return false
	}
	c.sending[chatID] = struct{}{}
	return true
}

func (c *ChatSyncClient) releaseSend(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sending, chatID)
}

// IsSending reports whether a send or upload is in flight for chatID
func (c *ChatSyncClient) IsSending(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.sending[chatID]
	return busy
}

// Open fetches the chat and its newest page of messages, marks the chat read
// and restores any saved draft.
func (c *ChatSyncClient) Open(ctx context.Context, chatID string) (*ChatSession, error) {
	return c.open(ctx, chatID, true)
}

// Peek is Open without marking the chat read; the unread count is left as the
// backend reported it.
func (c *ChatSyncClient) Peek(ctx context.Context, chatID string) (*ChatSession, error) {
	return c.open(ctx, chatID, false)
}

func (c *ChatSyncClient) open(ctx context.Context, chatID string, markRead bool) (*ChatSession, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.NewValidationError("chat_id", "chat id is required")
	}
	logger := c.logger.WithField(LogFieldChatID, privacy.MaskID(chatID))

	chat, err := c.api.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	page, err := c.api.GetMessages(ctx, chatID, 1, c.config.PageSize)
	if err != nil {
		return nil, err
	}
	c.metrics.IncrementCounter(metrics.PagesLoaded, nil)

	if markRead {
		if chat.UnreadCount > 0 {
			if err := c.api.MarkChatRead(ctx, chatID); err != nil {
				logger.WithError(err).Warn("Failed to mark chat read")
			}
		}
		chat.UnreadCount = 0
	}

	session := &ChatSession{
		client:   c,
		chatID:   chatID,
		chat:     *chat,
		messages: append([]models.Message(nil), page.Messages...),
		state:    ComposerIdle,
		nextPage: 2,
		hasMore:  page.HasMore,
		logger:   logger,
	}

	if c.drafts != nil {
		draft, err := c.drafts.LoadDraft(ctx, chatID)
		if err != nil {
			logger.WithError(err).Warn("Failed to restore draft")
		} else if draft != "" {
			session.draft = draft
			session.state = ComposerComposing
		}
	}

	logger.WithField(LogFieldCount, len(session.messages)).Info("Opened chat")
	return session, nil
}

// ChatSession is the live state of one open chat screen
type ChatSession struct {
	client *ChatSyncClient
	chatID string
	logger *logrus.Entry

	mu         sync.Mutex
	chat       models.Chat
	messages   []models.Message
	draft      string
	attachment *models.Attachment
	state      ComposerState
	lastErr    error
	loading    bool
	nextPage   int
	hasMore    bool
	closed     bool
}

func (s *ChatSession) ChatID() string { return s.chatID }

func (s *ChatSession) Chat() models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

// Messages returns a copy of the message list, oldest first
func (s *ChatSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Timeline renders the message list with date separators in loc
func (s *ChatSession) Timeline(loc *time.Location) []models.RenderItem {
	return timeline.NewBuilder(loc, s.client.now).Build(s.Messages())
}

func (s *ChatSession) State() ComposerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the error surfaced by the last failed submit, nil otherwise
func (s *ChatSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ChatSession) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *ChatSession) Attachment() *models.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachment == nil {
		return nil
	}
	a := *s.attachment
	return &a
}

func (s *ChatSession) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *ChatSession) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Close marks the screen as gone. In-flight operations still finish but their
// results are no longer applied to this session.
func (s *ChatSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// SetDraft replaces the compose text. The field is locked while a submission
// is in flight.
func (s *ChatSession) SetDraft(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errInvalidState("session is closed")
	}
	if s.state.IsPending() {
		s.mu.Unlock()
		return errors.ErrSendInProgress
	}
	s.draft = text
	s.touchLocked()
	s.mu.Unlock()

	s.persistDraft(ctx, text)
	return nil
}

// AttachImage stages a picked image for the next submit
func (s *ChatSession) AttachImage(localURI, mimeType string, source models.AttachmentSource) error {
	return s.attach(models.Attachment{
		Kind:     models.AttachmentImage,
		Source:   source,
		LocalURI: localURI,
		MimeType: mimeType,
	})
}

// AttachDocument stages a picked document for the next submit
func (s *ChatSession) AttachDocument(localURI, mimeType, fileName string) error {
	return s.attach(models.Attachment{
		Kind:     models.AttachmentDocument,
		Source:   models.SourceFilePicker,
		LocalURI: localURI,
		MimeType: mimeType,
		FileName: fileName,
	})
}

func (s *ChatSession) attach(a models.Attachment) error {
	if strings.TrimSpace(a.LocalURI) == "" {
		return errors.NewValidationError("uri", "attachment has no local file")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errInvalidState("session is closed")
	}
	if s.state.IsPending() {
		return errors.ErrSendInProgress
	}
	s.attachment = &a
	s.touchLocked()
	return nil
}

func (s *ChatSession) ClearAttachment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsPending() {
		return errors.ErrSendInProgress
	}
	s.attachment = nil
	return nil
}

// touchLocked moves a resting session into Composing
func (s *ChatSession) touchLocked() {
	if !s.state.IsPending() {
		s.state = ComposerComposing
		s.lastErr = nil
	}
}

// CanSend reports whether Submit would be accepted right now
func (s *ChatSession) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state.IsPending() || s.client.IsSending(s.chatID) {
		return false
	}
	return s.validateLocked() == nil
}

func (s *ChatSession) validateLocked() error {
	text := strings.TrimSpace(s.draft)
	if text == "" && s.attachment == nil {
		return errors.NewValidationError("message", "message is empty")
	}
	if utf8.RuneCountInString(text) > s.client.config.MaxDraftLength {
		return errors.NewValidationError("message", "message is too long")
	}
	return nil
}

// Submit sends the staged attachment (if any) and then the draft text. A
// second call while one is pending is rejected with ErrSendInProgress. On
// failure the draft is restored and the session moves to Failed.
func (s *ChatSession) Submit(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "chat.submit", attribute.String("chat.id", privacy.MaskID(s.chatID)))
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errInvalidState("session is closed")
	}
	if s.state.IsPending() || !s.client.acquireSend(s.chatID) {
		s.mu.Unlock()
		s.client.metrics.IncrementCounter(metrics.SendsRejected, nil)
		s.logger.Warn("Skipping submit: send already in progress")
		return errors.ErrSendInProgress
	}
	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		s.client.releaseSend(s.chatID)
		return err
	}

	snapshot := s.draft
	text := strings.TrimSpace(s.draft)
	var attachment *models.Attachment
	if s.attachment != nil {
		a := *s.attachment
		attachment = &a
	}
	s.draft = ""
	s.lastErr = nil
	if attachment != nil {
		s.state = ComposerUploading
	} else {
		s.state = ComposerSending
	}
	s.mu.Unlock()
	defer s.client.releaseSend(s.chatID)

	s.persistDraft(ctx, "")

	if attachment != nil {
		result, err := s.client.uploader.Upload(ctx, *attachment)
		if err != nil {
			s.fail(ctx, snapshot, err)
			return err
		}

		s.setState(ComposerSending)
		if err := s.send(ctx, result.RemoteURL, attachment.MessageType()); err != nil {
			s.fail(ctx, snapshot, err)
			return err
		}
		s.apply(func() { s.attachment = nil })
	}

	if text != "" {
		if err := s.send(ctx, text, models.MessageTypeText); err != nil {
			s.fail(ctx, snapshot, err)
			return err
		}
	}

	s.apply(func() { s.state = ComposerSent })
	return nil
}

// send posts one message with an optimistic local copy that is replaced by the
// server message on success and removed on failure.
func (s *ChatSession) send(ctx context.Context, content string, messageType models.MessageType) error {
	ctx, span := tracing.StartSpan(ctx, "chat.send", attribute.String("message.type", string(messageType)))
	defer span.End()

	clientID := uuid.NewString()
	s.apply(func() {
		s.messages = append(s.messages, models.Message{
			ChatID:      s.chatID,
			SenderID:    s.client.userID,
			Content:     content,
			MessageType: messageType,
			CreatedAt:   s.client.now().UTC().Format(time.RFC3339Nano),
			ClientID:    clientID,
			Pending:     true,
		})
	})

	start := time.Now()
	labels := map[string]string{"type": string(messageType)}
	sent, err := s.client.api.SendMessage(ctx, models.SendMessageRequest{
		ChatID:      s.chatID,
		Content:     content,
		MessageType: messageType,
	})
	s.client.metrics.RecordTimer(metrics.SendLatency, time.Since(start), labels)

	if err != nil {
		tracing.RecordError(ctx, err)
		s.client.metrics.IncrementCounter(metrics.MessagesFailed, labels)
		s.apply(func() { s.removeLocalLocked(clientID) })
		return err
	}

	s.client.metrics.IncrementCounter(metrics.MessagesSent, labels)
	s.apply(func() { s.confirmLocked(clientID, *sent) })
	s.logger.WithFields(logrus.Fields{
		LogFieldMessageID:   privacy.MaskID(sent.ID),
		LogFieldMessageType: messageType,
		LogFieldDuration:    time.Since(start).Milliseconds(),
	}).Info("Message sent successfully")
	return nil
}

func (s *ChatSession) confirmLocked(clientID string, sent models.Message) {
	idx := -1
	for i := range s.messages {
		if s.messages[i].ClientID == clientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if sent.CreatedAt == "" {
		sent.CreatedAt = s.messages[idx].CreatedAt
	}
	if sent.ChatID == "" {
		sent.ChatID = s.chatID
	}
	sent.ClientID = ""
	sent.Pending = false

	duplicate := false
	if sent.ID != "" {
		for i := range s.messages {
			if i != idx && s.messages[i].ID == sent.ID {
				duplicate = true
				break
			}
		}
	}
	if duplicate {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	} else {
		s.messages[idx] = sent
	}

	s.chat.LastMessage = sent.Content
	s.chat.LastMessageAt = sent.CreatedAt
}

func (s *ChatSession) removeLocalLocked(clientID string) {
	for i := range s.messages {
		if s.messages[i].ClientID == clientID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// fail restores the draft snapshot and keeps any staged attachment.
func (s *ChatSession) fail(ctx context.Context, snapshot string, err error) {
	tracing.RecordError(ctx, err)
	s.logger.WithFields(logrus.Fields{
		LogFieldErrorCode: errors.GetCode(err),
	}).WithError(err).Error("Failed to send message")

	applied := s.apply(func() {
		s.draft = snapshot
		s.state = ComposerFailed
		s.lastErr = err
	})
	if applied {
		s.persistDraft(ctx, snapshot)
	}
}

func (s *ChatSession) setState(state ComposerState) {
	s.apply(func() { s.state = state })
}

// apply runs fn under the session lock unless the session was closed
func (s *ChatSession) apply(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Debug("Skipping state update: session closed")
		return false
	}
	fn()
	return true
}

// LoadMore fetches the next older page and prepends it. Only one fetch may be
// in flight; a concurrent call gets ErrLoadInProgress.
func (s *ChatSession) LoadMore(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errInvalidState("session is closed")
	}
	if s.loading {
		s.mu.Unlock()
		return 0, errors.ErrLoadInProgress
	}
	if !s.hasMore {
		s.mu.Unlock()
		return 0, nil
	}
	s.loading = true
	page := s.nextPage
	s.mu.Unlock()

	result, err := s.client.api.GetMessages(ctx, s.chatID, page, s.client.config.PageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.logger.WithField(LogFieldPage, page).WithError(err).Warn("Failed to load older messages")
		return 0, err
	}
	if s.closed {
		s.logger.Debug("Skipping state update: session closed")
		return 0, nil
	}
	s.client.metrics.IncrementCounter(metrics.PagesLoaded, nil)

	seen := make(map[string]struct{}, len(s.messages))
	for _, m := range s.messages {
		if m.ID != "" {
			seen[m.ID] = struct{}{}
		}
	}
	older := make([]models.Message, 0, len(result.Messages))
	for _, m := range result.Messages {
		if _, dup := seen[m.ID]; dup && m.ID != "" {
			continue
		}
		seen[m.ID] = struct{}{}
		older = append(older, m)
	}

	s.messages = append(older, s.messages...)
	s.nextPage = page + 1
	s.hasMore = result.HasMore && len(result.Messages) > 0
	return len(older), nil
}

func (s *ChatSession) persistDraft(ctx context.Context, draft string) {
	if s.client.drafts == nil {
		return
	}
	if err := s.client.drafts.SaveDraft(ctx, s.chatID, draft); err != nil {
		s.logger.WithError(err).Warn("Failed to save draft")
	}
}

func errInvalidState(message string) *errors.AppError {
	return errors.New(errors.ErrCodeInvalidState, message)
}
