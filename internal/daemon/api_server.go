package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sceneid/internal/api"
	"sceneid/internal/cascade"
	"sceneid/internal/config"
	"sceneid/internal/logging"
	"sceneid/internal/mediastore"
	"sceneid/internal/services"
)

// engine is the daemon surface the HTTP layer consumes.
type engine interface {
	Recognize(ctx context.Context, req api.RecognizeRequest) (cascade.Result, error)
	Status(ctx context.Context) api.DaemonStatus
	Health(ctx context.Context) api.HealthResponse
	RecentAudits(ctx context.Context, limit int) ([]mediastore.AuditEntry, error)
	ForceReset()
}

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	engine engine

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, eng engine, logger *slog.Logger) *apiServer {
	if cfg == nil || eng == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		engine: eng,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/recognize", srv.handleRecognize)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/audits", srv.handleAudits)
	mux.HandleFunc("/api/admin/reset", srv.requireToken(srv.handleReset))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Recognition requests can legitimately run for minutes; the write
		// timeout must outlast the request deadline.
		WriteTimeout: time.Duration(cfg.Recognition.RequestDeadlineSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.MediaRef) == "" {
		s.writeError(w, http.StatusBadRequest, "mediaRef is required")
		return
	}

	result, err := s.engine.Recognize(r.Context(), req)
	if err != nil {
		s.writeRecognizeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecognizeResponse{Result: api.FromResult(result)})
}

// writeRecognizeError maps admission failures onto HTTP semantics: a full
// queue is 503 with a Retry-After hint, a queue timeout is 504.
func (s *apiServer) writeRecognizeError(w http.ResponseWriter, err error) {
	payload := api.ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, services.ErrCapacityExceeded):
		status = http.StatusServiceUnavailable
		if after, ok := services.RetryAfter(err); ok && after > 0 {
			seconds := int(math.Ceil(after.Seconds()))
			payload.RetryAfterSeconds = seconds
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
	case errors.Is(err, services.ErrQueueTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	s.writeJSON(w, status, payload)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Status(r.Context()))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health := s.engine.Health(r.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *apiServer) handleAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.engine.RecentAudits(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuditListResponse{Entries: api.FromAuditEntries(entries)})
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.engine.ForceReset()
	s.writeJSON(w, http.StatusOK, api.ResetResponse{Reset: true})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
