package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/identity"
	"github.com/jlucaspains/sprintlens/internal/jira"
	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/timeline"
)

// Expansions requested from the search endpoint. Descriptions are only
// returned as HTML under renderedFields.
const (
	expandRendered = "renderedFields"
	expandHistory  = "changelog,renderedFields"
)

// Source is the subset of the Jira API the engine reads from
type Source interface {
	timeline.HistorySource
	GetBoard(ctx context.Context, boardID int) (*models.Board, error)
	ListSprints(ctx context.Context, boardID int) ([]models.RawSprint, error)
	SearchIssues(ctx context.Context, req jira.SearchRequest) (*models.SearchPage, error)
}

// Sleeper waits between pages. It returns early with ctx.Err() on cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Engine struct {
	source  Source
	mapper  *Mapper
	deriver *timeline.Deriver
	config  *config.JiraConfig
	boardID int
	logger  *slog.Logger
	sleep   Sleeper
	now     func() time.Time
	report  *models.IngestReport
}

func NewEngine(
	source Source,
	mapper *Mapper,
	deriver *timeline.Deriver,
	config *config.JiraConfig,
	boardID int,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		source:  source,
		mapper:  mapper,
		deriver: deriver,
		config:  config,
		boardID: boardID,
		logger:  logger,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// WithSleeper replaces the delay applied between search pages.
func (e *Engine) WithSleeper(sleep Sleeper) *Engine {
	e.sleep = sleep
	return e
}

// WithClock replaces the clock used for open intervals.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Report returns the report of the last run, or nil.
func (e *Engine) Report() *models.IngestReport {
	return e.report
}

func (e *Engine) startReport(operation string) {
	e.report = &models.IngestReport{
		ID:        uuid.NewString(),
		Operation: operation,
		StartTime: e.now(),
		Errors:    []string{},
	}
}

func (e *Engine) finishReport() {
	endTime := e.now()
	e.report.EndTime = &endTime
}

// FetchAllRaw returns every issue of the board's project. Any failure aborts
// the whole fetch and no partial result is returned.
func (e *Engine) FetchAllRaw(ctx context.Context) ([]models.RawIssue, error) {
	e.startReport("all_issues")
	defer e.finishReport()

	board, err := e.source.GetBoard(ctx, e.boardID)
	if err != nil {
		return nil, err
	}

	projectID := board.Location.ProjectID.String()
	if projectID == "" {
		return nil, apperrors.NotFound("project of board %d", e.boardID)
	}

	e.logger.Info("Fetching all issues", "board", e.boardID, "project", projectID)

	req := jira.SearchRequest{
		JQL:        fmt.Sprintf("project = %q ORDER BY created DESC", projectID),
		MaxResults: e.config.PageSize,
		Expand:     expandRendered,
	}

	var issues []models.RawIssue
	for {
		page, err := e.source.SearchIssues(ctx, req)
		if err != nil {
			return nil, err
		}
		e.report.Pages++
		issues = append(issues, page.Issues...)

		if page.Last() || page.NextPageToken == "" {
			break
		}
		req.NextPageToken = page.NextPageToken

		if err := e.sleep(ctx, e.config.PageDelay); err != nil {
			return nil, err
		}
	}

	e.report.TotalIssues = len(issues)
	e.logger.Info("Fetched all issues", "count", len(issues), "pages", e.report.Pages)
	return issues, nil
}

// FetchAllIssues returns every issue of the board's project, normalized.
func (e *Engine) FetchAllIssues(ctx context.Context) ([]*models.Issue, error) {
	raws, err := e.FetchAllRaw(ctx)
	if err != nil {
		return nil, err
	}
	return e.mapper.MapIssues(raws), nil
}

// ListSprints returns the board sprints whose name contains filter, ignoring
// case. An empty filter keeps every sprint.
func (e *Engine) ListSprints(ctx context.Context, filter string) ([]models.Sprint, error) {
	raws, err := e.source.ListSprints(ctx, e.boardID)
	if err != nil {
		return nil, err
	}

	filter = strings.ToLower(filter)
	sprints := make([]models.Sprint, 0, len(raws))
	for _, raw := range raws {
		if filter != "" && !strings.Contains(strings.ToLower(raw.Name), filter) {
			continue
		}
		sprints = append(sprints, raw.ToSprint())
	}
	return sprints, nil
}

// ActiveSprint returns the active sprint whose name contains marker.
func (e *Engine) ActiveSprint(ctx context.Context, marker string) (*models.Sprint, error) {
	raws, err := e.source.ListSprints(ctx, e.boardID)
	if err != nil {
		return nil, err
	}

	for _, raw := range raws {
		if models.SprintState(raw.State) == models.SprintActive && strings.Contains(raw.Name, marker) {
			sprint := raw.ToSprint()
			return &sprint, nil
		}
	}
	return nil, apperrors.NotFound("active sprint on board %d", e.boardID)
}

// FetchSprintRaw returns the first page of a sprint's issues.
func (e *Engine) FetchSprintRaw(ctx context.Context, sprintID int, expand string) ([]models.RawIssue, error) {
	page, err := e.source.SearchIssues(ctx, jira.SearchRequest{
		JQL:        fmt.Sprintf("sprint = %d ORDER BY created DESC", sprintID),
		MaxResults: e.config.PageSize,
		Expand:     expand,
	})
	if err != nil {
		return nil, err
	}
	return page.Issues, nil
}

// FetchSprintIssues returns the normalized issues of one sprint.
func (e *Engine) FetchSprintIssues(ctx context.Context, sprintID int) ([]*models.Issue, error) {
	raws, err := e.FetchSprintRaw(ctx, sprintID, expandRendered)
	if err != nil {
		return nil, err
	}
	return e.mapper.MapIssues(raws), nil
}

// FetchIssuesWithTransitions lists the sprints matching filter and returns
// one row per sprint issue, enriched with the hours it spent in each status.
// Issues whose history cannot be fetched keep empty status columns.
func (e *Engine) FetchIssuesWithTransitions(ctx context.Context, filter string) (*models.TransitionTable, error) {
	sprints, err := e.ListSprints(ctx, filter)
	if err != nil {
		return nil, err
	}

	e.startReport("issues_with_transitions")
	defer e.finishReport()
	e.report.Sprints = len(sprints)

	e.logger.Info("Fetching sprint issues with transitions", "board", e.boardID, "sprints", len(sprints), "filter", filter)

	table := &models.TransitionTable{Rows: []models.TransitionRow{}, StatusColumns: []string{}}
	now := e.now()

	for _, sprint := range sprints {
		raws, err := e.FetchSprintRaw(ctx, sprint.ID, expandHistory)
		if err != nil {
			return nil, err
		}
		e.report.Pages++

		for _, issue := range e.mapper.MapIssues(raws) {
			hours, transitions, err := e.statusHours(ctx, issue, now)
			if err != nil {
				if ctxErr := contextError(ctx, err); ctxErr != nil {
					return nil, ctxErr
				}
				var fetchErr *apperrors.FetchError
				if !errors.As(err, &fetchErr) {
					return nil, err
				}
				e.logger.Warn("Skipping transition enrichment", "issue", issue.Key, "error", err)
				e.report.SkippedCount++
				e.report.Errors = append(e.report.Errors, err.Error())
			} else {
				e.report.EnrichedCount++
			}

			row := e.mapper.MapTransitionRow(sprint.Name, issue, hours)
			row.Transitions = transitions
			table.Rows = append(table.Rows, row)
		}
	}

	e.report.TotalIssues = len(table.Rows)
	e.resolveDevelopers(table.Rows)
	table.StatusColumns = statusColumns(table.Rows)

	e.logger.Info("Fetched sprint issues",
		"rows", len(table.Rows),
		"enriched", e.report.EnrichedCount,
		"skipped", e.report.SkippedCount)

	return table, nil
}

func (e *Engine) statusHours(ctx context.Context, issue *models.Issue, now time.Time) (models.StatusTimeMap, []models.StatusTransition, error) {
	transitions, err := timeline.FetchTransitions(ctx, e.source, issue.Key)
	if err != nil {
		return nil, nil, err
	}
	end := timeline.EndOf(issue.Resolved, now)
	return e.deriver.StatusTimeMap(issue.Created, issue.Status, transitions, end), transitions, nil
}

// contextError reports a cancellation or deadline behind err. Those abort
// the whole fetch instead of skipping one issue.
func contextError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ctx.Err()
}

// resolveDevelopers fills the canonical developer name of every row
func (e *Engine) resolveDevelopers(rows []models.TransitionRow) {
	names := identity.NewNormalizer(e.mapper.metrics.UnassignedLabel)
	mapping := identity.BuildLatestIdentityMap(names, rows,
		func(r models.TransitionRow) string { return r.OriginalAssignee },
		func(r models.TransitionRow) time.Time { return r.Updated },
	)
	resolver := identity.NewResolver(names, mapping)

	for i := range rows {
		rows[i].Developer = resolver.Resolve(rows[i].OriginalAssignee)
	}
}

func statusColumns(rows []models.TransitionRow) []string {
	seen := map[string]bool{}
	columns := []string{}
	for _, row := range rows {
		for status := range row.StatusHours {
			if !seen[status] {
				seen[status] = true
				columns = append(columns, status)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func (e *Engine) SaveReport(filePath string) error {
	if e.report == nil {
		return fmt.Errorf("no ingestion report available")
	}

	if filePath == "" {
		filePath = fmt.Sprintf("ingest_report_%s.json", e.report.StartTime.Format("20060102_150405"))
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(e.report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	e.logger.Info("Ingestion report saved", "path", filePath)
	return nil
}
