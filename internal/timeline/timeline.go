package timeline

import (
	"context"
	"sort"
	"time"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

// HistorySource returns an issue with its changelog expanded.
type HistorySource interface {
	GetIssueWithChangelog(ctx context.Context, key string) (*models.RawIssue, error)
}

// FetchTransitions loads the issue history and returns its status changes
// ordered by timestamp. Any failure is reported as *apperrors.FetchError.
func FetchTransitions(ctx context.Context, source HistorySource, key string) ([]models.StatusTransition, error) {
	issue, err := source.GetIssueWithChangelog(ctx, key)
	if err != nil {
		return nil, &apperrors.FetchError{IssueKey: key, Err: err}
	}

	return SortTransitions(issue.StatusTransitions()), nil
}

// SortTransitions orders transitions by timestamp, keeping changelog order
// for equal timestamps.
func SortTransitions(transitions []models.StatusTransition) []models.StatusTransition {
	sorted := make([]models.StatusTransition, len(transitions))
	copy(sorted, transitions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})
	return sorted
}

// Deriver turns ordered transitions into per-status working hours.
type Deriver struct {
	HoursPerDay float64
	Location    *time.Location
}

func NewDeriver(hoursPerDay float64, loc *time.Location) *Deriver {
	if hoursPerDay <= 0 {
		hoursPerDay = worktime.DefaultHoursPerDay
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Deriver{HoursPerDay: hoursPerDay, Location: loc}
}

// StatusTimeMap credits each status with the working hours the issue spent
// in it between createdAt and end. end is the resolution time for resolved
// issues and "now" otherwise.
//
// Every interval but the last covers the business days of [from, to); the
// last one is closed. The values therefore always add up to
// WorkingHoursBetween(createdAt, end) when transitions lie inside that range.
func (d *Deriver) StatusTimeMap(createdAt time.Time, currentStatus string, transitions []models.StatusTransition, end time.Time) models.StatusTimeMap {
	result := models.StatusTimeMap{}
	created := createdAt.In(d.Location)
	end = end.In(d.Location)

	if len(transitions) == 0 {
		if currentStatus != "" {
			result[currentStatus] = worktime.WorkingHoursBetween(created, end, d.HoursPerDay)
		}
		return result
	}

	first := transitions[0]
	result[first.From] += d.halfOpen(created, first.At.In(d.Location))

	status, since := first.To, first.At.In(d.Location)
	for _, next := range transitions[1:] {
		at := next.At.In(d.Location)
		result[status] += d.halfOpen(since, at)
		status, since = next.To, at
	}

	result[status] += worktime.WorkingHoursBetween(since, end, d.HoursPerDay)

	for name, hours := range result {
		result[name] = worktime.Round(hours)
	}
	return result
}

func (d *Deriver) halfOpen(from, to time.Time) float64 {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return float64(worktime.BusinessDaysBefore(from, to)) * d.HoursPerDay
}

// EndOf returns the instant the open-ended last interval should stop at.
func EndOf(resolved, now time.Time) time.Time {
	if !resolved.IsZero() {
		return resolved
	}
	return now
}

// StatusAt returns the status an issue had at instant at, given the status
// it was created with. Empty when the issue did not exist yet.
func StatusAt(created time.Time, initial string, transitions []models.StatusTransition, at time.Time) string {
	if created.After(at) {
		return ""
	}

	status := initial
	for _, tr := range transitions {
		if tr.At.After(at) {
			break
		}
		status = tr.To
	}
	return status
}

// InitialStatus is the status an issue was created with: the "from" of its
// first transition, or its current status when it never moved.
func InitialStatus(currentStatus string, transitions []models.StatusTransition) string {
	if len(transitions) > 0 {
		return transitions[0].From
	}
	return currentStatus
}
