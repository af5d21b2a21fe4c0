package diagnostics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobchat/internal/content"
	"jobchat/internal/errors"
	"jobchat/internal/models"
	"jobchat/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ChatOpener opens a chat session. Peek must not mark the chat read.
type ChatOpener interface {
	Open(ctx context.Context, chatID string) (*service.ChatSession, error)
	Peek(ctx context.Context, chatID string) (*service.ChatSession, error)
}

// DocumentResolver turns a document message body into a URI a viewer can open
type DocumentResolver interface {
	Resolve(uri string) (string, error)
}

// TapHandler handles a raw push data block as a notification tap
type TapHandler interface {
	HandleRaw(ctx context.Context, raw map[string]any) (models.NavigationTarget, error)
}

type timelineItem struct {
	models.RenderItem
	Content *content.Descriptor `json:"content,omitempty"`
}

type timelineResponse struct {
	Chat    models.Chat    `json:"chat"`
	Items   []timelineItem `json:"items"`
	HasMore bool           `json:"hasMore"`
}

func (s *Server) handleTimeline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Chats == nil {
			s.writeError(w, http.StatusServiceUnavailable, errUnavailable("chat client"))
			return
		}
		chatID := mux.Vars(r)["chatID"]

		open := s.deps.Chats.Peek
		if markRead, _ := strconv.ParseBool(r.URL.Query().Get("markRead")); markRead {
			open = s.deps.Chats.Open
		}
		session, err := open(r.Context(), chatID)
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		defer session.Close()

		loc := time.Local
		if tz := r.URL.Query().Get("tz"); tz != "" {
			if l, err := time.LoadLocation(tz); err == nil {
				loc = l
			}
		}

		rendered := session.Timeline(loc)
		items := make([]timelineItem, 0, len(rendered))
		for _, item := range rendered {
			ti := timelineItem{RenderItem: item}
			if item.Message != nil {
				d := content.ClassifyMessage(*item.Message)
				ti.Content = &d
			}
			items = append(items, ti)
		}

		s.writeJSON(w, http.StatusOK, timelineResponse{
			Chat:    session.Chat(),
			Items:   items,
			HasMore: session.HasMore(),
		})
	}
}

type sendRequest struct {
	Text       string             `json:"text"`
	Attachment *models.Attachment `json:"attachment,omitempty"`
}

type sendResponse struct {
	State    service.ComposerState `json:"state"`
	Messages []models.Message      `json:"messages"`
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Chats == nil {
			s.writeError(w, http.StatusServiceUnavailable, errUnavailable("chat client"))
			return
		}
		var req sendRequest
		if err := s.decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}

		if a := req.Attachment; a != nil && !strings.HasPrefix(a.LocalURI, "data:") {
			s.writeError(w, http.StatusBadRequest,
				errors.NewValidationError("attachment", "only data URI attachments can be sent from diagnostics"))
			return
		}

		ctx := r.Context()
		session, err := s.deps.Chats.Open(ctx, mux.Vars(r)["chatID"])
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		defer session.Close()

		if err := session.SetDraft(ctx, req.Text); err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		if a := req.Attachment; a != nil {
			if a.Kind == models.AttachmentDocument {
				err = session.AttachDocument(a.LocalURI, a.MimeType, a.FileName)
			} else {
				source := a.Source
				if source == "" {
					source = models.SourceLibrary
				}
				err = session.AttachImage(a.LocalURI, a.MimeType, source)
			}
			if err != nil {
				s.writeError(w, statusFor(err), err)
				return
			}
		}

		if err := session.Submit(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				service.LogFieldChatID:    session.ChatID(),
				service.LogFieldErrorCode: errors.GetCode(err),
			}).Debug("Diagnostic send failed")
			s.writeError(w, statusFor(err), err)
			return
		}

		s.writeJSON(w, http.StatusOK, sendResponse{
			State:    session.State(),
			Messages: session.Messages(),
		})
	}
}

type resolveRequest struct {
	URI string `json:"uri"`
}

type resolveResponse struct {
	URI string `json:"uri"`
}

func (s *Server) handleResolveDocument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Documents == nil {
			s.writeError(w, http.StatusServiceUnavailable, errUnavailable("document cache"))
			return
		}
		var req resolveRequest
		if err := s.decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(req.URI) == "" {
			s.writeError(w, http.StatusBadRequest, errors.NewValidationError("uri", "uri is required"))
			return
		}

		resolved, err := s.deps.Documents.Resolve(req.URI)
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		s.writeJSON(w, http.StatusOK, resolveResponse{URI: resolved})
	}
}

// statusFor maps an error code to the HTTP status the diagnostics API answers with
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeValidationFailed, errors.ErrCodeMalformedInput:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeSendInProgress, errors.ErrCodeLoadInProgress,
		errors.ErrCodeRegistrationInProgress, errors.ErrCodeInvalidState:
		return http.StatusConflict
	case errors.ErrCodeBackendRejected, errors.ErrCodeUploadFailed:
		return http.StatusBadGateway
	case errors.ErrCodeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
