// Package http adapts the feedback service and config store onto an HTTP
// surface: chi routing, network access control, per-endpoint-class rate
// limiting, and the JSON/multipart wire contract of §4.5.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/middleware"
	"github.com/quietloop/ai-intervention-agent/internal/service"
)

// Server owns the chi router and the underlying net/http.Server.
type Server struct {
	mux            *chi.Mux
	store          *config.Store
	feedback       *service.FeedbackService
	http           *http.Server
	log            *slog.Logger
	startedAt      time.Time
	stopRateLimits []func()
}

// NewServer builds the router and wires every handler to the feedback
// service and config store. It does not start listening; call Start for
// that.
func NewServer(store *config.Store, feedback *service.FeedbackService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{store: store, feedback: feedback, log: log, startedAt: time.Now()}
	s.mux = s.routes()
	return s
}

// Start binds and serves on addr until the process is told to stop. It
// blocks until the listener exits; callers typically run it in its own
// goroutine and call Shutdown to stop it.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("http server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline, then
// stops the rate limiters' background bucket-cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, stop := range s.stopRateLimits {
		stop()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the router directly, for tests that drive it with
// httptest without going through a real listener.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	readLimiter := middleware.NewRateLimiter(6.0, 20)
	submitLimiter := middleware.NewRateLimiter(5.0/60.0, 5)
	testNotifyLimiter := middleware.NewRateLimiter(2.0/60.0, 2)

	const cleanupInterval, maxIdle = 10 * time.Minute, 30 * time.Minute
	s.stopRateLimits = []func(){
		readLimiter.StartCleanup(cleanupInterval, maxIdle),
		submitLimiter.StartCleanup(cleanupInterval, maxIdle),
		testNotifyLimiter.StartCleanup(cleanupInterval, maxIdle),
	}

	r.Use(SecurityHeaders)
	r.Use(CORS("*"))
	r.Use(Logger)
	r.Use(middleware.RequestID)
	r.Use(s.aclMiddleware)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(readLimiter.Handler)
		r.Get("/api/config", s.handleGetConfig)
		r.Get("/api/tasks", s.handleListTasks)
		r.Get("/api/tasks/{id}", s.handleGetTask)
		r.Get("/api/get-notification-config", s.handleGetNotificationConfig)
		r.Get("/api/get-feedback-prompts", s.handleGetFeedbackPrompts)
	})

	r.Group(func(r chi.Router) {
		r.Use(submitLimiter.Handler)
		r.Post("/api/submit", s.handleSubmit)
		r.Post("/api/tasks/{id}/submit", s.handleSubmitTask)
		r.Post("/api/tasks/{id}/activate", s.handleActivateTask)
		r.Post("/api/close", s.handleClose)
		r.Post("/api/update-notification-config", s.handleUpdateNotificationConfig)
	})

	r.Group(func(r chi.Router) {
		r.Use(testNotifyLimiter.Handler)
		r.Post("/api/test-bark", s.handleTestBark)
	})

	return r
}

// aclMiddleware rebuilds the ACL from the current config snapshot on every
// request, the same live-config discipline the notification dispatcher
// follows, so flipping enable_access_control in the UI takes effect
// immediately rather than only after a restart.
func (s *Server) aclMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sec := s.store.Snapshot().NetworkSecurity
		acl := middleware.NewACL(sec.EnableAccessControl, sec.AllowedNetworks, sec.BlockedIPs)
		acl.Handler(next).ServeHTTP(w, r)
	})
}
