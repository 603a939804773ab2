package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/cache"
	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/metrics"
	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchAllIssues(ctx context.Context) ([]*models.Issue, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Issue), args.Error(1)
}

func (m *mockFetcher) ListSprints(ctx context.Context, filter string) ([]models.Sprint, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Sprint), args.Error(1)
}

func (m *mockFetcher) ActiveSprint(ctx context.Context, marker string) (*models.Sprint, error) {
	args := m.Called(ctx, marker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sprint), args.Error(1)
}

func (m *mockFetcher) FetchSprintIssues(ctx context.Context, sprintID int) ([]*models.Issue, error) {
	args := m.Called(ctx, sprintID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Issue), args.Error(1)
}

func (m *mockFetcher) FetchIssuesWithTransitions(ctx context.Context, filter string) (*models.TransitionTable, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransitionTable), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Jira: config.JiraConfig{SprintFilter: "Sprint"},
		Metrics: config.MetricsConfig{
			HoursPerDay:         7,
			BurndownHoursPerDay: 8,
			DoneStatuses:        []string{"DONE"},
			DoneCategory:        "Done",
			DeliveredTerms:      []string{"concluído"},
			ExtraWorkMarker:     "extra",
			DevelopmentStatus:   "EM DESENVOLVIMENTO",
			UnassignedLabel:     "Não atribuído",
			TimeZone:            "UTC",
			ActiveSprintMarker:  "Sprint",
		},
		Cache: config.CacheConfig{Enabled: true, TTL: time.Minute},
	}
}

func newTestService(t *testing.T, fetcher Fetcher) *Service {
	t.Helper()
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calendar, err := worktime.NewCalendar("")
	require.NoError(t, err)

	calc := metrics.NewCalculator(&cfg.Metrics, calendar, logger)
	return NewService("demo", fetcher, calc, cache.NewMemory(time.Minute), cache.NewRecorder(), cfg, logger)
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC)
}

func TestService_Issues(t *testing.T) {
	issues := []*models.Issue{
		{Key: "P-1", Type: "Tarefa", Status: "Concluído", Assignee: "Ana Lima", Created: day(3), Updated: day(5)},
		{Key: "P-2", Type: "Bug", Status: "A Fazer", Assignee: "Caio Reis", Created: day(4), Updated: day(4)},
	}

	t.Run("cached fetch is reused across reports", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.On("FetchAllIssues", mock.Anything).Return(issues, nil).Once()
		service := newTestService(t, fetcher)

		rows, err := service.Issues(context.Background())
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		stats, err := service.Deliveries(context.Background(), metrics.DeliveryFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)

		overview, err := service.Overview(context.Background(), metrics.OverviewFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, overview.Total)

		fetcher.AssertNumberOfCalls(t, "FetchAllIssues", 1)

		timings := service.Timings()
		require.Len(t, timings, 1)
		assert.Equal(t, "fetch_all_issues", timings[0].Name)
		assert.False(t, timings[0].Failed)
	})

	t.Run("refresh fetches again", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.On("FetchAllIssues", mock.Anything).Return(issues, nil).Twice()
		service := newTestService(t, fetcher)

		_, err := service.Issues(context.Background())
		require.NoError(t, err)
		service.Refresh()
		_, err = service.Issues(context.Background())
		require.NoError(t, err)

		fetcher.AssertNumberOfCalls(t, "FetchAllIssues", 2)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		fetcher := &mockFetcher{}
		requestErr := &apperrors.RequestError{Method: "GET", URL: "/search", StatusCode: 500}
		fetcher.On("FetchAllIssues", mock.Anything).Return(nil, requestErr).Once()
		fetcher.On("FetchAllIssues", mock.Anything).Return(issues, nil).Once()
		service := newTestService(t, fetcher)

		_, err := service.Issues(context.Background())
		var target *apperrors.RequestError
		require.True(t, errors.As(err, &target))
		assert.True(t, service.Timings()[0].Failed)

		rows, err := service.Issues(context.Background())
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func TestService_Burndown(t *testing.T) {
	active := &models.Sprint{ID: 7, Name: "Sprint 7", State: models.SprintActive, Start: day(3), End: day(7)}

	t.Run("active sprint", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.On("ActiveSprint", mock.Anything, "Sprint").Return(active, nil).Once()
		fetcher.On("FetchSprintIssues", mock.Anything, 7).Return([]*models.Issue{
			{Key: "P-1", Status: "Done", EstimateHours: 8, Updated: day(4)},
			{Key: "P-2", Status: "A Fazer", EstimateHours: 8},
		}, nil).Once()
		service := newTestService(t, fetcher)

		burndown, err := service.Burndown(context.Background(), "")

		require.NoError(t, err)
		assert.Equal(t, "Sprint 7", burndown.Sprint)
		assert.Equal(t, 16.0, burndown.TotalEstimate)
		require.Len(t, burndown.Series, 5)
		assert.Equal(t, 8.0, burndown.Series[4].Remaining)
		fetcher.AssertExpectations(t)
	})

	t.Run("named sprint", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.On("ListSprints", mock.Anything, "").Return([]models.Sprint{*active, {ID: 6, Name: "Sprint 6", State: models.SprintClosed, Start: day(1), End: day(2)}}, nil).Once()
		fetcher.On("FetchSprintIssues", mock.Anything, 6).Return([]*models.Issue{}, nil).Once()
		service := newTestService(t, fetcher)

		burndown, err := service.Burndown(context.Background(), "sprint 6")

		require.NoError(t, err)
		assert.Equal(t, "Sprint 6", burndown.Sprint)
		assert.Len(t, burndown.Series, 2)
	})

	t.Run("unknown sprint", func(t *testing.T) {
		fetcher := &mockFetcher{}
		fetcher.On("ListSprints", mock.Anything, "").Return([]models.Sprint{*active}, nil).Once()
		service := newTestService(t, fetcher)

		_, err := service.Burndown(context.Background(), "Sprint 99")

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestService_Performance(t *testing.T) {
	table := &models.TransitionTable{
		StatusColumns: []string{"EM DESENVOLVIMENTO"},
		Rows: []models.TransitionRow{
			{Sprint: "Sprint 1", Key: "P-1", Developer: "Ana Lima", EstimateHours: 4, SpentHours: 4, StatusHours: models.StatusTimeMap{"EM DESENVOLVIMENTO": 7}},
			{Sprint: "Sprint 2", Key: "P-2", Developer: "Ana Lima", EstimateHours: 8, SpentHours: 4, Created: day(3), Resolved: day(5), StatusHours: models.StatusTimeMap{}},
		},
	}

	fetcher := &mockFetcher{}
	fetcher.On("FetchIssuesWithTransitions", mock.Anything, "Sprint").Return(table, nil).Once()
	service := newTestService(t, fetcher)

	t.Run("defaults to the most recent sprint", func(t *testing.T) {
		sprint, summary, err := service.Performance(context.Background(), "", "")

		require.NoError(t, err)
		assert.Equal(t, "Sprint 2", sprint)
		require.Len(t, summary, 1)
		assert.Equal(t, 50.0, summary[0].Accuracy)
	})

	t.Run("project metrics share the cached table", func(t *testing.T) {
		project, err := service.ProjectMetrics(context.Background(), "")

		require.NoError(t, err)
		require.Len(t, project.Flow, 1)
		assert.Equal(t, 2, project.Flow[0].LeadDays)
		fetcher.AssertNumberOfCalls(t, "FetchIssuesWithTransitions", 1)
	})
}

func TestService_Warm(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("FetchAllIssues", mock.Anything).Return([]*models.Issue{}, nil).Once()
	fetcher.On("ListSprints", mock.Anything, "").Return([]models.Sprint{}, nil).Once()
	fetcher.On("FetchIssuesWithTransitions", mock.Anything, "Sprint").Return(nil, errors.New("boom")).Once()
	service := newTestService(t, fetcher)

	err := service.Warm(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to warm transitions")

	analysis, err := service.Sprints(context.Background())
	require.NoError(t, err)
	assert.Empty(t, analysis.Rows)
	fetcher.AssertExpectations(t)
}
