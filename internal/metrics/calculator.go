package metrics

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

var sprintNumberPattern = regexp.MustCompile(`\d+`)

// Calculator derives report tables from ingested issues. Every vocabulary it
// matches against comes from the metrics configuration.
type Calculator struct {
	config   *config.MetricsConfig
	calendar *worktime.Calendar
	loc      *time.Location
	logger   *slog.Logger
}

func NewCalculator(cfg *config.MetricsConfig, calendar *worktime.Calendar, logger *slog.Logger) *Calculator {
	return &Calculator{
		config:   cfg,
		calendar: calendar,
		loc:      cfg.Location(),
		logger:   logger,
	}
}

// day truncates t to its civil date in the reporting time zone.
func (c *Calculator) day(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// isDone reports whether an issue counts as completed for the burndown.
func (c *Calculator) isDone(issue *models.Issue) bool {
	status := strings.ToUpper(issue.Status)
	for _, done := range c.config.DoneStatuses {
		if status == strings.ToUpper(done) {
			return true
		}
	}
	return issue.StatusCategory == c.config.DoneCategory
}

// isDelivered reports whether an issue counts as a delivery.
func (c *Calculator) isDelivered(status, category string) bool {
	if c.config.DoneCategory != "" && strings.Contains(strings.ToLower(category), strings.ToLower(c.config.DoneCategory)) {
		return true
	}

	status = strings.ToLower(status)
	for _, term := range c.config.DeliveredTerms {
		if term != "" && strings.Contains(status, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func (c *Calculator) isExtra(summary string) bool {
	marker := strings.ToLower(c.config.ExtraWorkMarker)
	return marker != "" && strings.Contains(strings.ToLower(summary), marker)
}

func (c *Calculator) isExcluded(developer string) bool {
	for _, excluded := range c.config.ExcludedDevelopers {
		if strings.EqualFold(strings.TrimSpace(excluded), developer) {
			return true
		}
	}
	return false
}

// developmentHours returns the hours a row spent in the development status,
// matched ignoring case.
func (c *Calculator) developmentHours(row *models.TransitionRow) (float64, bool) {
	for status, hours := range row.StatusHours {
		if strings.EqualFold(status, c.config.DevelopmentStatus) {
			return hours, true
		}
	}
	return 0, false
}

// SprintNumber extracts the first number of a sprint name, or 0.
func SprintNumber(name string) int {
	match := sprintNumberPattern.FindString(name)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// wholeDays is the number of complete 24h periods between two instants,
// rounded down so that a negative span of a few hours counts as -1.
func wholeDays(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
