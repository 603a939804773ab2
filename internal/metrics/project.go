package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/timeline"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

// FlowRow carries the lead and cycle time of one resolved issue.
type FlowRow struct {
	Key         string    `json:"key"`
	Sprint      string    `json:"sprint"`
	Type        string    `json:"type"`
	Developer   string    `json:"developer"`
	Created     time.Time `json:"created"`
	DeliveredAt time.Time `json:"delivered_at"`
	LeadDays    int       `json:"lead_days"`
	CycleDays   float64   `json:"cycle_days"`
	// CycleFromStatus is false when the cycle time fell back to the lead time.
	CycleFromStatus bool `json:"cycle_from_status"`
}

// LeadCycleTimes computes flow times of the resolved rows. Lead time is the
// whole number of days between creation and resolution. Cycle time is the
// development-status hours divided by the daily hours when the row has that
// status, and the lead time otherwise.
func (c *Calculator) LeadCycleTimes(rows []models.TransitionRow) []FlowRow {
	result := []FlowRow{}
	fallbacks := 0

	for i := range rows {
		row := &rows[i]
		if row.Created.IsZero() || row.Resolved.IsZero() {
			continue
		}

		flow := FlowRow{
			Key:         row.Key,
			Sprint:      row.Sprint,
			Type:        row.Type,
			Developer:   row.Developer,
			Created:     row.Created,
			DeliveredAt: row.Resolved,
			LeadDays:    wholeDays(row.Created, row.Resolved),
		}

		if hours, ok := c.developmentHours(row); ok {
			flow.CycleDays = worktime.Round(hours / c.config.HoursPerDay)
			flow.CycleFromStatus = true
		} else {
			flow.CycleDays = float64(flow.LeadDays)
			fallbacks++
		}

		result = append(result, flow)
	}

	if fallbacks > 0 {
		c.logger.Debug("Cycle time fell back to lead time", "rows", fallbacks, "status", c.config.DevelopmentStatus)
	}
	return result
}

// MonthCount is the number of deliveries in a calendar month.
type MonthCount struct {
	Month time.Time `json:"month"`
	Count int       `json:"count"`
}

// SprintCount is the number of deliveries of a numbered sprint.
type SprintCount struct {
	Number int    `json:"number"`
	Sprint string `json:"sprint"`
	Count  int    `json:"count"`
}

// HeatmapCell counts deliveries per weekday and sprint.
type HeatmapCell struct {
	Weekday time.Weekday `json:"weekday"`
	Sprint  string       `json:"sprint"`
	Count   int          `json:"count"`
}

// CFDPoint is one day of a cumulative flow diagram.
type CFDPoint struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// ProjectMetrics gathers the project-wide delivery metrics.
type ProjectMetrics struct {
	Flow              []FlowRow     `json:"flow"`
	MonthlyThroughput []MonthCount  `json:"monthly_throughput"`
	SprintThroughput  []SprintCount `json:"sprint_throughput"`
	AveragePerDay     float64       `json:"average_per_day"`
	ByType            []Count       `json:"by_type"`
	Heatmap           []HeatmapCell `json:"heatmap"`
	StatusColumns     []string      `json:"status_columns"`
	StatusHoursCFD    []CFDPoint    `json:"status_hours_cfd"`
	PopulationCFD     []CFDPoint    `json:"population_cfd"`
}

// Project computes every project metric from the transitions table.
func (c *Calculator) Project(table *models.TransitionTable) *ProjectMetrics {
	flow := c.LeadCycleTimes(table.Rows)

	result := &ProjectMetrics{
		Flow:              flow,
		MonthlyThroughput: c.MonthlyThroughput(flow),
		SprintThroughput:  c.SprintThroughput(flow),
		AveragePerDay:     c.AveragePerDay(flow),
		ByType:            typeCounts(flow),
		Heatmap:           c.Heatmap(flow),
		StatusColumns:     table.StatusColumns,
		StatusHoursCFD:    c.StatusHoursCFD(table),
		PopulationCFD:     c.PopulationCFD(table.Rows),
	}
	return result
}

// MonthlyThroughput counts deliveries per calendar month.
func (c *Calculator) MonthlyThroughput(flow []FlowRow) []MonthCount {
	tally := map[time.Time]int{}
	for _, row := range flow {
		day := c.day(row.DeliveredAt)
		month := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		tally[month]++
	}

	result := make([]MonthCount, 0, len(tally))
	for month, count := range tally {
		result = append(result, MonthCount{Month: month, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month.Before(result[j].Month)
	})
	return result
}

// SprintThroughput counts deliveries of the sprints whose name carries the
// sprint marker, ordered by sprint number.
func (c *Calculator) SprintThroughput(flow []FlowRow) []SprintCount {
	marker := strings.ToLower(c.config.ActiveSprintMarker)
	tally := map[string]int{}
	for _, row := range flow {
		if marker != "" && !strings.Contains(strings.ToLower(row.Sprint), marker) {
			continue
		}
		tally[row.Sprint]++
	}

	result := make([]SprintCount, 0, len(tally))
	for sprint, count := range tally {
		result = append(result, SprintCount{Number: SprintNumber(sprint), Sprint: sprint, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Number != result[j].Number {
			return result[i].Number < result[j].Number
		}
		return result[i].Sprint < result[j].Sprint
	})
	return result
}

// AveragePerDay divides deliveries by the inclusive day span between the
// first and last delivery.
func (c *Calculator) AveragePerDay(flow []FlowRow) float64 {
	if len(flow) == 0 {
		return 0
	}

	first, last := flow[0].DeliveredAt, flow[0].DeliveredAt
	for _, row := range flow[1:] {
		if row.DeliveredAt.Before(first) {
			first = row.DeliveredAt
		}
		if row.DeliveredAt.After(last) {
			last = row.DeliveredAt
		}
	}

	return worktime.Round(float64(len(flow)) / float64(wholeDays(first, last)+1))
}

// Heatmap counts deliveries per weekday and sprint.
func (c *Calculator) Heatmap(flow []FlowRow) []HeatmapCell {
	type cellKey struct {
		weekday time.Weekday
		sprint  string
	}
	tally := map[cellKey]int{}
	for _, row := range flow {
		tally[cellKey{weekday: row.DeliveredAt.In(c.loc).Weekday(), sprint: row.Sprint}]++
	}

	result := make([]HeatmapCell, 0, len(tally))
	for key, count := range tally {
		result = append(result, HeatmapCell{Weekday: key.weekday, Sprint: key.sprint, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Weekday != result[j].Weekday {
			return result[i].Weekday < result[j].Weekday
		}
		return result[i].Sprint < result[j].Sprint
	})
	return result
}

// StatusHoursCFD sums the status-time columns of the rows grouped by the day
// of their last update.
func (c *Calculator) StatusHoursCFD(table *models.TransitionTable) []CFDPoint {
	byDay := map[time.Time]map[string]float64{}
	for _, row := range table.Rows {
		if row.Updated.IsZero() {
			continue
		}
		day := c.day(row.Updated)
		if byDay[day] == nil {
			byDay[day] = map[string]float64{}
			for _, status := range table.StatusColumns {
				byDay[day][status] = 0
			}
		}
		for status, hours := range row.StatusHours {
			byDay[day][status] += hours
		}
	}

	result := make([]CFDPoint, 0, len(byDay))
	for day, values := range byDay {
		for status, hours := range values {
			values[status] = worktime.Round(hours)
		}
		result = append(result, CFDPoint{Date: day, Values: values})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

// PopulationCFD counts, for every day between the first creation and the last
// update, how many enriched issues sat in each status at the end of that day.
func (c *Calculator) PopulationCFD(rows []models.TransitionRow) []CFDPoint {
	var first, last time.Time
	for _, row := range rows {
		if !row.Enriched || row.Created.IsZero() {
			continue
		}
		if first.IsZero() || row.Created.Before(first) {
			first = row.Created
		}
		for _, at := range []time.Time{row.Updated, row.Resolved} {
			if at.After(last) {
				last = at
			}
		}
	}
	if first.IsZero() || last.Before(first) {
		return []CFDPoint{}
	}

	start, end := c.day(first), c.day(last)
	result := []CFDPoint{}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, c.loc)
		point := CFDPoint{Date: day, Values: map[string]float64{}}

		for _, row := range rows {
			if !row.Enriched {
				continue
			}
			initial := timeline.InitialStatus(row.Status, row.Transitions)
			if status := timeline.StatusAt(row.Created, initial, row.Transitions, dayEnd); status != "" {
				point.Values[status]++
			}
		}
		result = append(result, point)
	}
	return result
}

func typeCounts(flow []FlowRow) []Count {
	tally := map[string]int{}
	for _, row := range flow {
		tally[row.Type]++
	}
	return sortedCounts(tally, false)
}
