package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"shiftsync/internal/config"
	appLog "shiftsync/internal/log"
	"shiftsync/internal/pipeline"
)

// Syncer is the daemon side the API reports on and triggers.
type Syncer interface {
	Last() (pipeline.Report, bool)
	Running() bool
	Trigger() bool
}

// Server exposes sync status and a manual trigger over HTTP.
type Server struct {
	cfg    *config.Config
	syncer Syncer
	router *mux.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, syncer Syncer) *Server {
	s := &Server{
		cfg:    cfg,
		syncer: syncer,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shiftsync", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, syncer Syncer) error {
	s := NewServer(cfg, syncer)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/shifts", s.handleShifts).Methods(http.MethodGet)
	api.HandleFunc("/shifts/{id}", s.handleShift).Methods(http.MethodGet)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	Running    bool       `json:"running"`
	LastStart  *time.Time `json:"last_started_at,omitempty"`
	LastFinish *time.Time `json:"last_finished_at,omitempty"`
	Shifts     int        `json:"shifts"`
	Created    int        `json:"created"`
	Duplicates int        `json:"duplicates"`
	Errors     int        `json:"errors"`
	LastError  string     `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Running: s.syncer.Running()}
	if rep, ok := s.syncer.Last(); ok {
		resp.LastStart = &rep.StartedAt
		resp.LastFinish = &rep.FinishedAt
		resp.Shifts = len(rep.Shifts)
		resp.Created = rep.Created
		resp.Duplicates = rep.Duplicates
		resp.Errors = rep.Errors
		resp.LastError = rep.Err
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleShifts returns the full report of the last finished run.
func (s *Server) handleShifts(w http.ResponseWriter, _ *http.Request) {
	rep, ok := s.syncer.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no sync has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rep, ok := s.syncer.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no sync has completed yet")
		return
	}
	for _, res := range rep.Results {
		if res.ID == id {
			writeJSON(w, http.StatusOK, res)
			return
		}
	}
	writeError(w, http.StatusNotFound, "shift not found")
}

func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	if !s.syncer.Trigger() {
		writeError(w, http.StatusConflict, "sync already running")
		return
	}
	appLog.Info("manual sync triggered")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
