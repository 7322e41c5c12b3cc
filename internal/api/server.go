package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/newsdesk-io/newsdesk/internal/logbuf"
	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// maxBodySize caps request bodies, chat history included.
const maxBodySize = 1 << 20

// LogQuerier abstracts log entry querying.
type LogQuerier interface {
	Query(f logbuf.Filter) []logbuf.Entry
}

// Service is what the API server needs from the desk. Implementations
// build a fresh conversation per call.
type Service interface {
	Query(ctx context.Context, query string, prior []protocol.ChatMessage) string
	Research(ctx context.Context, query string) string
	Descriptors() []tool.Descriptor
}

// RequestObserver records request outcomes per route pattern.
type RequestObserver interface {
	ObserveRequest(route string, code int, d time.Duration)
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // API key for Bearer auth
}

// Server is the newsdesk REST API server.
type Server struct {
	svc    Service
	cfg    Config
	logger *slog.Logger
	logs   LogQuerier
	obs    RequestObserver
	mux    *http.ServeMux
	srv    *http.Server
}

// NewServer creates a new API server. logs may be nil.
func NewServer(svc Service, cfg Config, logger *slog.Logger, logs LogQuerier) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		logs:   logs,
		mux:    http.NewServeMux(),
	}
	s.handle("GET /api/health", http.HandlerFunc(s.handleHealth))
	s.handle("POST /query", s.requireAuth(s.handlePostQuery))
	s.handle("GET /query", s.requireAuth(s.handleGetQuery))
	s.handle("POST /research", s.requireAuth(s.handleResearch))
	s.handle("GET /api/tools", s.requireAuth(s.handleListTools))
	s.handle("GET /api/logs", s.requireAuth(s.handleGetLogs))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Mount registers an extra handler that does its own auth, such as the
// article webhook. Call it before Start.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.handle(pattern, h)
}

// Observe reports every routed request to obs. Call it before Start.
func (s *Server) Observe(obs RequestObserver) {
	s.obs = obs
}

func (s *Server) handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, s.instrument(pattern, h))
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.obs == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.obs.ObserveRequest(route, sw.code, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query       string                 `json:"query"`
	ChatHistory []protocol.ChatMessage `json:"chat_history"`
}

type queryResponse struct {
	Response string `json:"response"`
}

func (s *Server) handlePostQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	s.logger.Info("query", "chars", len(req.Query), "history", len(req.ChatHistory))
	writeJSON(w, http.StatusOK, queryResponse{Response: s.svc.Query(r.Context(), req.Query, req.ChatHistory)})
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	s.logger.Info("query", "chars", len(q), "history", 0)
	writeJSON(w, http.StatusOK, queryResponse{Response: s.svc.Query(r.Context(), q, nil)})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	s.logger.Info("research", "chars", len(req.Query))
	writeJSON(w, http.StatusOK, queryResponse{Response: s.svc.Research(r.Context(), req.Query)})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	descs := s.svc.Descriptors()
	if descs == nil {
		descs = []tool.Descriptor{}
	}
	writeJSON(w, http.StatusOK, descs)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}
	f, err := logbuf.ParseFilter(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.logs.Query(f))
}

// --- Helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
