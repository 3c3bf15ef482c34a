package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/atomickids/internal/handler"
	"github.com/dukerupert/atomickids/internal/middleware"
	"github.com/dukerupert/atomickids/internal/store"
	"github.com/dukerupert/atomickids/internal/streak"
	ws "github.com/dukerupert/atomickids/internal/websocket"
)

// Options carries the pieces main builds before the server: the reset
// trigger may run against a different database than the CRUD API.
type Options struct {
	Trigger       handler.Trigger
	Planner       handler.Planner
	Completer     *streak.Completer
	JobTokenHash  string
	JobRateLimit  int
	JobRateWindow time.Duration
	TrustProxy    bool
	WSOrigins     []string
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	childH      *handler.ChildHandler
	taskH       *handler.TaskHandler
	rewardH     *handler.RewardHandler
	jobH        *handler.JobHandler
	rateLimiter *middleware.RateLimiter
	opts        Options
	logger      *slog.Logger
}

func New(db *sql.DB, hub *ws.Hub, opts Options, logger *slog.Logger) *Server {
	childStore := store.NewChildStore(db)
	taskStore := store.NewTaskStore(db)
	rewardStore := store.NewRewardStore(db)

	if opts.JobRateLimit <= 0 {
		opts.JobRateLimit = 6
	}
	if opts.JobRateWindow <= 0 {
		opts.JobRateWindow = time.Minute
	}

	return &Server{
		db:          db,
		hub:         hub,
		childH:      handler.NewChildHandler(childStore, taskStore, rewardStore, hub, logger.With("component", "child")),
		taskH:       handler.NewTaskHandler(taskStore, childStore, opts.Completer, hub, logger.With("component", "task")),
		rewardH:     handler.NewRewardHandler(rewardStore, logger.With("component", "reward")),
		jobH:        handler.NewJobHandler(opts.Trigger, opts.Planner, logger.With("component", "job")),
		rateLimiter: middleware.NewRateLimiter(),
		opts:        opts,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Router registers every route on one mux so the request metrics see the
// full route pattern.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Job routes carry their own bearer token instead of an account
	rl := middleware.RateLimit(s.rateLimiter, middleware.ClientIP(s.opts.TrustProxy), s.opts.JobRateLimit, s.opts.JobRateWindow)
	guard := middleware.RequireJobToken(s.opts.JobTokenHash)
	job := func(h http.HandlerFunc) http.Handler { return rl(guard(h)) }
	mux.Handle("POST /api/jobs/daily-reset", job(s.jobH.DailyReset))
	mux.Handle("GET /api/jobs/daily-reset/preview", job(s.jobH.Preview))

	s.registerAccountRoutes(mux)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) registerAccountRoutes(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.RequireAccount(h))
	}

	// Children
	handle("GET /api/children", s.childH.List)
	handle("POST /api/children", s.childH.Create)
	handle("PUT /api/children/{id}", s.childH.Update)
	handle("DELETE /api/children/{id}", s.childH.Delete)
	handle("PUT /api/children/sort", s.childH.UpdateSortOrder)
	handle("PUT /api/children/{id}/character", s.childH.SelectCharacter)
	handle("GET /api/children/{id}/rewards", s.childH.Rewards)

	// Tasks
	handle("GET /api/tasks", s.taskH.List)
	handle("POST /api/tasks", s.taskH.Create)
	handle("PUT /api/tasks/{id}", s.taskH.Update)
	handle("DELETE /api/tasks/{id}", s.taskH.Delete)
	handle("PUT /api/tasks/sort", s.taskH.UpdateSortOrder)
	handle("POST /api/tasks/{id}/complete", s.taskH.Complete)
	handle("DELETE /api/tasks/{id}/complete", s.taskH.Uncomplete)

	// Rewards
	handle("GET /api/rewards", s.rewardH.List)

	// WebSocket
	handle("GET /ws", ws.HandleWebSocket(s.hub, s.opts.WSOrigins, s.logger.With("component", "websocket")))
}
