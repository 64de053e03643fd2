package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/resume-editor/internal/compiler"
	"github.com/jonathan/resume-editor/internal/config"
	"github.com/jonathan/resume-editor/internal/editor"
	"github.com/jonathan/resume-editor/internal/history"
	"github.com/jonathan/resume-editor/internal/ledger"
	"github.com/jonathan/resume-editor/internal/server/middleware"
	"github.com/jonathan/resume-editor/internal/server/ratelimit"
)

// shutdownTimeout bounds graceful shutdown; an update holding the editor lock
// may need the full compile timeout to finish.
const shutdownTimeout = 45 * time.Second

// Editor is the document service behind the routes.
type Editor interface {
	Update(ctx context.Context, req editor.UpdateRequest, observe editor.Observer) (*editor.UpdateResult, error)
	Save(ctx context.Context, latex string) error
	Preview(ctx context.Context, latex string) (*compiler.Preview, error)
	Commit(ctx context.Context, message string) (*history.CommitResult, error)
	History(ctx context.Context, n int) ([]history.Revision, error)
	Document(ctx context.Context) (string, error)
	Artifact(ctx context.Context) (io.ReadCloser, error)
	PDFURL() string
}

// SpendReporter reports today's spend.
type SpendReporter interface {
	Status(ctx context.Context) (*ledger.Status, error)
}

// Stopper shuts the instance down on request.
type Stopper interface {
	Stop(ctx context.Context) error
}

// ActivityTracker records that a request arrived.
type ActivityTracker interface {
	Touch()
}

// Config holds server configuration
type Config struct {
	Port        int
	CORSOrigins []string
	// JWT enables bearer auth on mutating routes when set.
	JWT       *config.JWTConfig
	RateLimit *ratelimit.Config
}

// Deps are the collaborators behind the routes. Spend, Stopper and Activity
// are optional.
type Deps struct {
	Editor   Editor
	Spend    SpendReporter
	Stopper  Stopper
	Activity ActivityTracker
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	editor      Editor
	spend       SpendReporter
	stopper     Stopper
	activity    ActivityTracker
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	corsOrigins []string
	validate    *validator.Validate
	logger      *slog.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Editor == nil {
		return nil, errors.New("server: editor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		editor:      deps.Editor,
		spend:       deps.Spend,
		stopper:     deps.Stopper,
		activity:    deps.Activity,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		corsOrigins: cfg.CORSOrigins,
		validate:    newValidator(),
		logger:      logger.With("component", "server"),
	}
	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      300 * time.Second, // model call plus compile
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain:
// rate limit, logging, activity, CORS, then optional auth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /resume", s.handleGetResume)
	mux.HandleFunc("GET /pdf", s.handleGetPDF)
	mux.HandleFunc("POST /update", s.handleUpdate)
	mux.HandleFunc("POST /update/stream", s.handleUpdateStream)
	mux.HandleFunc("POST /save", s.handleSave)
	mux.HandleFunc("POST /preview", s.handlePreview)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("POST /commit", s.handleCommit)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("GET /spend", s.handleSpend)

	var h http.Handler = mux
	if s.jwtService != nil {
		h = middleware.MutatingOnly(middleware.AuthMiddleware(s.jwtService.AsTokenValidator()))(h)
	}
	h = s.withCORS(h)
	h = s.withActivity(h)
	h = s.withLogging(h)
	h = ratelimit.Middleware(s.rateLimiter, s.logger)(h)
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.rateLimiter.Stop()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	defer s.rateLimiter.Stop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers for allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.corsOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.corsOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withActivity records every request for the idle monitor.
func (s *Server) withActivity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.activity != nil {
			s.activity.Touch()
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes err with the status HTTPStatus assigns it.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.jsonResponse(w, status, NewErrorResponse(err))
}
