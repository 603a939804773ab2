package metrics

import (
	"time"

	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

// BurndownPoint is one calendar day of the sprint.
type BurndownPoint struct {
	Date       time.Time `json:"date"`
	Ideal      float64   `json:"ideal"`
	Remaining  float64   `json:"remaining"`
	RolledOver float64   `json:"rolled_over"`
}

// Burndown is the remaining-work series of a sprint plus its summary.
type Burndown struct {
	Sprint         string             `json:"sprint"`
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
	Activities     int                `json:"activities"`
	Extras         int                `json:"extras"`
	TotalEstimate  float64            `json:"total_estimate"`
	Completed      float64            `json:"completed"`
	RemainingHours float64            `json:"remaining_hours"`
	WorkingDays    int                `json:"working_days"`
	AvailableHours float64            `json:"available_hours"`
	Holidays       []worktime.Holiday `json:"holidays,omitempty"`
	Series         []BurndownPoint    `json:"series"`
}

// Burndown builds the daily remaining-work series between the sprint start
// and end dates, inclusive. Issues whose summary carries the extra-work marker
// are left out. A completed issue's estimate is credited from its last update
// date onward. Any over-completion is zeroed and carried over to later days.
func (c *Calculator) Burndown(issues []*models.Issue, sprint models.Sprint) *Burndown {
	start, end := c.day(sprint.Start), c.day(sprint.End)

	result := &Burndown{
		Sprint: sprint.Name,
		Start:  sprint.Start,
		End:    sprint.End,
		Series: []BurndownPoint{},
	}

	if working, ok := c.calendar.WorkingDaysBetween(start, end); ok {
		result.WorkingDays = working.Count
		result.Holidays = working.Holidays
		result.AvailableHours = float64(working.Count) * c.config.BurndownHoursPerDay
	}

	n := worktime.DaysInclusive(start, end)
	if n <= 0 {
		return result
	}

	reduction := make([]float64, n)
	for _, issue := range issues {
		if c.isExtra(issue.Summary) {
			result.Extras++
			continue
		}
		result.Activities++
		result.TotalEstimate += issue.EstimateHours

		if !c.isDone(issue) {
			continue
		}
		result.Completed += issue.EstimateHours

		updated := c.day(issue.Updated)
		for i := 0; i < n; i++ {
			if !start.AddDate(0, 0, i).Before(updated) {
				reduction[i] += issue.EstimateHours
			}
		}
	}

	rolledOver := 0.0
	for i := 0; i < n; i++ {
		remaining := result.TotalEstimate - reduction[i] - rolledOver
		point := BurndownPoint{
			Date:       start.AddDate(0, 0, i),
			Ideal:      idealRemaining(result.TotalEstimate, i, n),
			RolledOver: rolledOver,
		}
		if remaining < 0 {
			rolledOver += -remaining
			remaining = 0
		}
		point.Remaining = worktime.Round(remaining)
		result.Series = append(result.Series, point)
	}

	result.TotalEstimate = worktime.Round(result.TotalEstimate)
	result.Completed = worktime.Round(result.Completed)
	result.RemainingHours = worktime.Round(result.TotalEstimate - result.Completed)

	c.logger.Debug("Built burndown", "sprint", sprint.Name, "days", n, "total", result.TotalEstimate)
	return result
}

// idealRemaining interpolates linearly from total on day 0 to 0 on the last day.
func idealRemaining(total float64, i, n int) float64 {
	if n <= 1 {
		return total
	}
	return worktime.Round(total * (1 - float64(i)/float64(n-1)))
}
