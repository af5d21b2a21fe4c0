// Package diagnostics serves a local HTTP surface for inspecting the client.
package diagnostics

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"jobchat/internal/errors"
	"jobchat/internal/metrics"
	"jobchat/internal/middleware"
	"jobchat/internal/models"
	"jobchat/internal/privacy"
	"jobchat/pkg/circuitbreaker"
	"jobchat/pkg/notification"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 64 * 1024

// Registration is the part of the device registration service the server needs
type Registration interface {
	Diagnostics() models.DeviceRegistration
	Retry(ctx context.Context) (models.DeviceRegistration, error)
}

// HealthChecker reports whether local storage is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter exposes the remote API circuit breaker
type BreakerReporter interface {
	BreakerStats() circuitbreaker.Stats
}

// Dependencies are the components the server reports on. Any may be nil;
// routes backed by a nil dependency answer 503.
type Dependencies struct {
	Registration Registration
	Store        HealthChecker
	API          BreakerReporter
	Chats        ChatOpener
	Documents    DocumentResolver
	Push         TapHandler
}

type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	deps    Dependencies
	metrics *metrics.Registry
	server  *http.Server
}

func NewServer(deps Dependencies, registry *metrics.Registry, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		deps:    deps,
		metrics: registry,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger, s.metrics))
	s.router.Use(middleware.RequireJSON())

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	registration := s.router.PathPrefix("/registration").Subrouter()
	registration.HandleFunc("", s.handleRegistration()).Methods(http.MethodGet)
	registration.HandleFunc("/retry", s.handleRegistrationRetry()).Methods(http.MethodPost)

	push := s.router.PathPrefix("/push").Subrouter()
	push.HandleFunc("/route", s.handlePushRoute()).Methods(http.MethodPost)
	push.HandleFunc("/tap", s.handlePushTap()).Methods(http.MethodPost)

	chats := s.router.PathPrefix("/chats/{chatID}").Subrouter()
	chats.HandleFunc("/timeline", s.handleTimeline()).Methods(http.MethodGet)
	chats.HandleFunc("/messages", s.handleSendMessage()).Methods(http.MethodPost)

	s.router.HandleFunc("/documents/resolve", s.handleResolveDocument()).Methods(http.MethodPost)
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("Starting diagnostics server on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status   string                `json:"status"`
	Database string                `json:"database"`
	API      *circuitbreaker.Stats `json:"api,omitempty"`
	APIState string                `json:"api_state,omitempty"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "memory"}
		code := http.StatusOK

		if s.deps.Store != nil {
			resp.Database = "ok"
			if err := s.deps.Store.HealthCheck(r.Context()); err != nil {
				s.logger.WithError(err).Warn("Database health check failed")
				resp.Status = "degraded"
				resp.Database = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}

		if s.deps.API != nil {
			stats := s.deps.API.BreakerStats()
			resp.API = &stats
			resp.APIState = stats.State.String()
			if stats.State == circuitbreaker.StateOpen && code == http.StatusOK {
				resp.Status = "degraded"
			}
		}

		s.writeJSON(w, code, resp)
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithField("endpoint", "/metrics").Debug("Serving metrics endpoint")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
	}
}

func (s *Server) handleRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Registration == nil {
			s.writeError(w, http.StatusServiceUnavailable, errUnavailable("registration"))
			return
		}
		s.writeJSON(w, http.StatusOK, maskRegistration(s.deps.Registration.Diagnostics()))
	}
}

func (s *Server) handleRegistrationRetry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Registration == nil {
			s.writeError(w, http.StatusServiceUnavailable, errUnavailable("registration"))
			return
		}
		// The run outlives a disconnecting caller.
		reg, err := s.deps.Registration.Retry(context.WithoutCancel(r.Context()))
		if err != nil {
			code := http.StatusInternalServerError
			if stderrors.Is(err, errors.ErrRegistrationInProgress) {
				code = http.StatusConflict
			}
			s.writeError(w, code, err)
			return
		}
		s.writeJSON(w, http.StatusOK, maskRegistration(reg))
	}
}

func (s *Server) handlePushRoute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := s.decodeBody(r, &raw); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}

		target := notification.Route(notification.ParsePayload(raw))
		s.metrics.IncrementCounter(metrics.PushRoutes, map[string]string{"target": string(target.Kind)})
		s.writeJSON(w, http.StatusOK, target)
	}
}

// handlePushTap replays a notification tap, including its side effects
func (s *Server) handlePushTap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Push == nil {
			s.writeError(w, http.StatusServiceUnavailable, errUnavailable("push handler"))
			return
		}
		var raw map[string]any
		if err := s.decodeBody(r, &raw); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}

		target, err := s.deps.Push.HandleRaw(r.Context(), raw)
		if err != nil {
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusOK, target)
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func (s *Server) decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMalformedInput, "failed to read body").
			WithUserMessage("The request body could not be read")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeMalformedInput, "invalid JSON payload").
			WithUserMessage("The request body is not valid JSON")
	}
	return nil
}

func errUnavailable(component string) *errors.AppError {
	return errors.New(errors.ErrCodeInternalError, component+" is not configured").
		WithUserMessage("This diagnostic is not available in the current configuration")
}

type errorResponse struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{
		Code:    errors.GetCode(err),
		Message: errors.GetUserMessage(err),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode diagnostics response")
	}
}

func maskRegistration(reg models.DeviceRegistration) models.DeviceRegistration {
	reg.Token = privacy.MaskToken(reg.Token)
	return reg
}
