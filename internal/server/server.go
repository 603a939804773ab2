package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/jlucaspains/sprintlens/internal/cache"
	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/metrics"
	"github.com/jlucaspains/sprintlens/internal/models"
)

const warmTimeout = 10 * time.Minute

// Reports is the report surface served over HTTP.
type Reports interface {
	Project() string
	Issues(ctx context.Context) ([]metrics.IssueRow, error)
	Sprints(ctx context.Context) (*metrics.SprintDateAnalysis, error)
	Burndown(ctx context.Context, sprint string) (*metrics.Burndown, error)
	Deliveries(ctx context.Context, filter metrics.DeliveryFilter) (*metrics.DeliveryStats, error)
	Performance(ctx context.Context, filter, sprint string) (string, []metrics.DeveloperSummary, error)
	ProjectMetrics(ctx context.Context, filter string) (*metrics.ProjectMetrics, error)
	Overview(ctx context.Context, filter metrics.OverviewFilter) (*metrics.Overview, error)
	Transitions(ctx context.Context, filter string) (*models.TransitionTable, error)
	Refresh()
	Warm(ctx context.Context) error
	Timings() []cache.Timing
}

// Server exposes the computed tables as JSON and optionally re-warms the
// cache on a cron schedule.
type Server struct {
	config  *config.ServerConfig
	reports Reports
	logger  *slog.Logger
	router  *gin.Engine
	cron    *cron.Cron
}

func NewServer(cfg *config.ServerConfig, reports Reports, logger *slog.Logger) (*Server, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		config:  cfg,
		reports: reports,
		logger:  logger,
	}
	s.router = s.setupRouter()

	if cfg.RefreshCron != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.RefreshCron, s.warm); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
		}
	}

	return s, nil
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cron != nil {
		s.cron.Start()
		defer s.cron.Stop()
		s.logger.Info("Scheduled cache refresh", "schedule", s.config.RefreshCron)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving dashboard API", "addr", s.config.Addr, "project", s.reports.Project())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down dashboard API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	s.logger.Info("Refreshing cache on schedule")
	if err := s.reports.Warm(ctx); err != nil {
		s.logger.Error("Scheduled refresh failed", "error", err)
	}
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Info("http",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "project": s.reports.Project()})
	})

	api := router.Group("/api")
	api.GET("/issues", s.issues)
	api.GET("/overview", s.overview)
	api.GET("/sprints", s.sprints)
	api.GET("/burndown", s.burndown)
	api.GET("/deliveries", s.deliveries)
	api.GET("/performance", s.performance)
	api.GET("/project", s.project)
	api.GET("/transitions", s.transitions)
	api.POST("/refresh", s.refresh)
	api.GET("/timings", s.timings)

	return router
}
