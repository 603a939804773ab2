package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/cache"
	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/metrics"
	"github.com/jlucaspains/sprintlens/internal/models"
)

// Fetcher is the ingestion surface the reports are computed from.
type Fetcher interface {
	FetchAllIssues(ctx context.Context) ([]*models.Issue, error)
	ListSprints(ctx context.Context, filter string) ([]models.Sprint, error)
	ActiveSprint(ctx context.Context, marker string) (*models.Sprint, error)
	FetchSprintIssues(ctx context.Context, sprintID int) ([]*models.Issue, error)
	FetchIssuesWithTransitions(ctx context.Context, filter string) (*models.TransitionTable, error)
}

// Service computes the dashboard tables of one project. Upstream fetches are
// cached, timed and run one at a time; the metrics are recomputed on every
// call.
type Service struct {
	mu           sync.Mutex
	project      string
	fetcher      Fetcher
	calc         *metrics.Calculator
	store        cache.Cache
	ttl          time.Duration
	timings      *cache.Recorder
	sprintFilter string
	sprintMarker string
	logger       *slog.Logger
}

func NewService(
	project string,
	fetcher Fetcher,
	calc *metrics.Calculator,
	store cache.Cache,
	timings *cache.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		project:      project,
		fetcher:      fetcher,
		calc:         calc,
		store:        store,
		ttl:          cfg.Cache.TTL,
		timings:      timings,
		sprintFilter: cfg.Jira.SprintFilter,
		sprintMarker: cfg.Metrics.ActiveSprintMarker,
		logger:       logger,
	}
}

// Project returns the name of the configured project being reported on.
func (s *Service) Project() string {
	return s.project
}

func fetch[T any](ctx context.Context, s *Service, name string, args []any, f func(context.Context) (T, error)) (T, error) {
	key := cache.Key(name, append([]any{s.project}, args...)...)
	return cache.CachedFetch(ctx, s.store, key, s.ttl, func(ctx context.Context) (T, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.logger.Debug("Fetching from Jira", "operation", name, "project", s.project)
		return cache.TimedFetch(ctx, s.timings, name, f)
	})
}

func (s *Service) allIssues(ctx context.Context) ([]*models.Issue, error) {
	return fetch(ctx, s, "fetch_all_issues", nil, s.fetcher.FetchAllIssues)
}

func (s *Service) sprints(ctx context.Context) ([]models.Sprint, error) {
	return fetch(ctx, s, "list_sprints", nil, func(ctx context.Context) ([]models.Sprint, error) {
		return s.fetcher.ListSprints(ctx, "")
	})
}

func (s *Service) sprintIssues(ctx context.Context, sprintID int) ([]*models.Issue, error) {
	return fetch(ctx, s, "fetch_sprint_issues", []any{sprintID}, func(ctx context.Context) ([]*models.Issue, error) {
		return s.fetcher.FetchSprintIssues(ctx, sprintID)
	})
}

// Transitions returns the transitions-enriched table of the sprints matching
// filter, or of the configured sprint filter when empty.
func (s *Service) Transitions(ctx context.Context, filter string) (*models.TransitionTable, error) {
	if filter == "" {
		filter = s.sprintFilter
	}
	return fetch(ctx, s, "fetch_issues_with_transitions", []any{filter}, func(ctx context.Context) (*models.TransitionTable, error) {
		return s.fetcher.FetchIssuesWithTransitions(ctx, filter)
	})
}

// Issues returns the full issue table.
func (s *Service) Issues(ctx context.Context) ([]metrics.IssueRow, error) {
	issues, err := s.allIssues(ctx)
	if err != nil {
		return nil, err
	}
	return s.calc.IssueTable(issues), nil
}

// Sprints returns the sprint date analysis.
func (s *Service) Sprints(ctx context.Context) (*metrics.SprintDateAnalysis, error) {
	sprints, err := s.sprints(ctx)
	if err != nil {
		return nil, err
	}
	return s.calc.SprintDates(sprints), nil
}

// Burndown returns the burndown of the named sprint, or of the active sprint
// when name is empty.
func (s *Service) Burndown(ctx context.Context, name string) (*metrics.Burndown, error) {
	sprint, err := s.findSprint(ctx, name)
	if err != nil {
		return nil, err
	}

	issues, err := s.sprintIssues(ctx, sprint.ID)
	if err != nil {
		return nil, err
	}
	return s.calc.Burndown(issues, *sprint), nil
}

func (s *Service) findSprint(ctx context.Context, name string) (*models.Sprint, error) {
	if name == "" {
		return fetch(ctx, s, "active_sprint", []any{s.sprintMarker}, func(ctx context.Context) (*models.Sprint, error) {
			return s.fetcher.ActiveSprint(ctx, s.sprintMarker)
		})
	}

	sprints, err := s.sprints(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sprints {
		if strings.EqualFold(sprints[i].Name, name) {
			return &sprints[i], nil
		}
	}
	return nil, apperrors.NotFound("sprint %q", name)
}

// Deliveries returns the delivery analysis of the rows matching filter.
func (s *Service) Deliveries(ctx context.Context, filter metrics.DeliveryFilter) (*metrics.DeliveryStats, error) {
	issues, err := s.allIssues(ctx)
	if err != nil {
		return nil, err
	}
	rows := metrics.FilterDeliveries(s.calc.Deliveries(issues), filter)
	return s.calc.DeliveryStats(rows), nil
}

// Performance returns the developer time accounting of sprint. An empty
// sprint selects the most recent one.
func (s *Service) Performance(ctx context.Context, filter, sprint string) (string, []metrics.DeveloperSummary, error) {
	table, err := s.Transitions(ctx, filter)
	if err != nil {
		return "", nil, err
	}

	if sprint == "" {
		names := metrics.SprintNames(table.Rows)
		if len(names) == 0 {
			return "", []metrics.DeveloperSummary{}, nil
		}
		sprint = names[0]
	}
	return sprint, s.calc.DeveloperTime(table.Rows, sprint), nil
}

// ProjectMetrics returns the project-wide flow metrics.
func (s *Service) ProjectMetrics(ctx context.Context, filter string) (*metrics.ProjectMetrics, error) {
	table, err := s.Transitions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.calc.Project(table), nil
}

// Overview returns the issue count per type.
func (s *Service) Overview(ctx context.Context, filter metrics.OverviewFilter) (*metrics.Overview, error) {
	rows, err := s.Issues(ctx)
	if err != nil {
		return nil, err
	}
	return s.calc.Overview(rows, filter), nil
}

// Refresh drops every cached fetch so the next call reads Jira again.
func (s *Service) Refresh() {
	s.store.Invalidate()
	s.logger.Info("Cache invalidated", "project", s.project)
}

// Warm refreshes and repopulates the cache with the fetches every report
// depends on.
func (s *Service) Warm(ctx context.Context) error {
	s.Refresh()

	if _, err := s.allIssues(ctx); err != nil {
		return fmt.Errorf("failed to warm issues: %w", err)
	}
	if _, err := s.sprints(ctx); err != nil {
		return fmt.Errorf("failed to warm sprints: %w", err)
	}
	if _, err := s.Transitions(ctx, ""); err != nil {
		return fmt.Errorf("failed to warm transitions: %w", err)
	}

	s.logger.Info("Cache warmed", "project", s.project)
	return nil
}

// Timings returns the last duration of every upstream fetch.
func (s *Service) Timings() []cache.Timing {
	return s.timings.Timings()
}
