package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/jlucaspains/sprintlens/internal/models"
)

// Sprint status labels shown in the date analysis table.
const (
	SprintLabelClosed  = "Fechada"
	SprintLabelActive  = "Ativa"
	SprintLabelPlanned = "Planejada"
)

// SprintDateRow is one sprint of the date analysis table. Nil counters are
// not applicable to the sprint state.
type SprintDateRow struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Start       time.Time `json:"start,omitempty"`
	End         time.Time `json:"end,omitempty"`
	Completed   time.Time `json:"completed,omitempty"`
	DelayDays   *int      `json:"delay_days"`
	WorkingDays *int      `json:"working_days"`
	TotalDays   *int      `json:"total_days"`
}

// SprintDateTotals sums the counters of the table.
type SprintDateTotals struct {
	DelayDays   int `json:"delay_days"`
	WorkingDays int `json:"working_days"`
	TotalDays   int `json:"total_days"`
}

// SprintDateAnalysis is the sprint date table plus its totals.
type SprintDateAnalysis struct {
	Rows   []SprintDateRow  `json:"rows"`
	Totals SprintDateTotals `json:"totals"`
}

// SprintDates analyzes the sprints whose name carries the sprint marker,
// ordered by sprint number, most recent first.
func (c *Calculator) SprintDates(sprints []models.Sprint) *SprintDateAnalysis {
	analysis := &SprintDateAnalysis{Rows: []SprintDateRow{}}

	for _, sprint := range sprints {
		if c.config.ActiveSprintMarker != "" && !strings.Contains(sprint.Name, c.config.ActiveSprintMarker) {
			continue
		}

		row := SprintDateRow{
			ID:        sprint.ID,
			Name:      sprint.Name,
			Status:    sprintLabel(sprint.State),
			Start:     sprint.Start,
			End:       sprint.End,
			Completed: sprint.CompleteDate,
		}

		hasDates := !sprint.Start.IsZero() && !sprint.End.IsZero()

		if hasDates && (sprint.State == models.SprintClosed || sprint.State == models.SprintActive) {
			total := wholeDays(c.day(sprint.Start), c.day(sprint.End)) + 1
			row.TotalDays = &total
			analysis.Totals.TotalDays += total
		}

		if hasDates && !sprint.CompleteDate.IsZero() {
			if working, ok := c.calendar.WorkingDaysBetween(c.day(sprint.Start), c.day(sprint.CompleteDate)); ok {
				row.WorkingDays = &working.Count
				analysis.Totals.WorkingDays += working.Count
			}
		}

		if sprint.State == models.SprintClosed && !sprint.CompleteDate.IsZero() && !sprint.End.IsZero() {
			delay := 0
			if sprint.CompleteDate.After(sprint.End) {
				delay = wholeDays(sprint.End, sprint.CompleteDate)
			}
			row.DelayDays = &delay
			analysis.Totals.DelayDays += delay
		}

		analysis.Rows = append(analysis.Rows, row)
	}

	sort.SliceStable(analysis.Rows, func(i, j int) bool {
		return SprintNumber(analysis.Rows[i].Name) > SprintNumber(analysis.Rows[j].Name)
	})

	return analysis
}

func sprintLabel(state models.SprintState) string {
	switch state {
	case models.SprintClosed:
		return SprintLabelClosed
	case models.SprintActive:
		return SprintLabelActive
	default:
		return SprintLabelPlanned
	}
}
