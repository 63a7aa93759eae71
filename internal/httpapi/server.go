// Package httpapi exposes the service's HTTP surface: the telephony voice
// webhook, the media-stream websocket, the pending-call handoff API, and
// health/metrics endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	twclient "github.com/twilio/twilio-go/client"
	"go.uber.org/zap"

	"github.com/frontdesklabs/frontdesk/internal/config"
	"github.com/frontdesklabs/frontdesk/internal/observability"
	"github.com/frontdesklabs/frontdesk/internal/routing"
	"github.com/frontdesklabs/frontdesk/internal/session"
	"github.com/frontdesklabs/frontdesk/internal/transport"
)

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	engine     *routing.Engine
	pending    *session.PendingCalls
	calls      *session.Manager
	streamDeps transport.Deps
	metrics    *observability.Metrics
	validator  twclient.RequestValidator
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, log *zap.Logger, engine *routing.Engine, pending *session.PendingCalls, calls *session.Manager, streamDeps transport.Deps, metrics *observability.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		log:        log,
		engine:     engine,
		pending:    pending,
		calls:      calls,
		streamDeps: streamDeps,
		metrics:    metrics,
		validator:  twclient.NewRequestValidator(cfg.TwilioAuthToken),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The telephony provider's media streams are not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/twilio/voice", s.handleVoiceWebhook)
	r.Get("/twilio/media", s.handleMediaWS)

	r.Post("/v1/calls/pending", s.handleStagePendingCall)
	r.Get("/v1/calls/{sid}", s.handleGetCall)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.calls.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleMediaWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.CallEvents.WithLabelValues("ws_connected").Inc()
	}

	stream := transport.NewStream(conn, s.streamDeps)
	if err := stream.Run(r.Context()); err != nil && !errors.Is(err, transport.ErrNoPendingCall) {
		s.log.Warn("media stream ended with error", zap.Error(err))
	}

	// The stream's call-event hook owns the active-calls gauge; sessions
	// only exist between the start frame and teardown.
	if s.metrics != nil {
		s.metrics.CallEvents.WithLabelValues("ws_disconnected").Inc()
	}
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	sid := strings.TrimSpace(chi.URLParam(r, "sid"))
	if sid == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_sid", "missing call sid")
		return
	}
	call, err := s.calls.Get(sid)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, call)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
