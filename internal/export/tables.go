package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jlucaspains/sprintlens/internal/cache"
	"github.com/jlucaspains/sprintlens/internal/metrics"
	"github.com/jlucaspains/sprintlens/internal/models"
)

const dateLayout = "2006-01-02"

// IssuesTable renders the full issue table.
func IssuesTable(rows []metrics.IssueRow) *Table {
	table := &Table{
		Title: "Issues",
		Headers: []string{"Key", "Summary", "Type", "Status", "Category", "Priority", "Assignee", "Developer",
			"Sprint", "Epic", "Created", "Updated", "Resolved", "Estimate (h)", "Spent (h)", "Bugs"},
		Rows:  [][]string{},
		Value: rows,
	}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			row.Key, row.Summary, row.Type, row.Status, row.StatusCategory, row.Priority,
			row.OriginalAssignee, row.Developer, row.Sprint, row.Epic,
			formatDate(row.Created), formatDate(row.Updated), formatDate(row.Resolved),
			formatHours(row.EstimateHours), formatHours(row.SpentHours), strconv.Itoa(row.BugCount),
		})
	}
	return table
}

// SprintDatesTable renders the sprint date analysis followed by a totals row.
func SprintDatesTable(analysis *metrics.SprintDateAnalysis) *Table {
	table := &Table{
		Title:   "Sprints",
		Headers: []string{"ID", "Sprint", "Status", "Start", "End", "Completed", "Delay (days)", "Working days", "Total days"},
		Rows:    [][]string{},
		Value:   analysis,
	}
	for _, row := range analysis.Rows {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(row.ID), row.Name, row.Status,
			formatDate(row.Start), formatDate(row.End), formatDate(row.Completed),
			formatOptional(row.DelayDays), formatOptional(row.WorkingDays), formatOptional(row.TotalDays),
		})
	}
	if len(analysis.Rows) > 0 {
		table.Rows = append(table.Rows, []string{
			"", "Total", "", "", "", "",
			strconv.Itoa(analysis.Totals.DelayDays),
			strconv.Itoa(analysis.Totals.WorkingDays),
			strconv.Itoa(analysis.Totals.TotalDays),
		})
	}
	return table
}

// BurndownTable renders the daily burndown series.
func BurndownTable(burndown *metrics.Burndown) *Table {
	table := &Table{
		Title: fmt.Sprintf("Burndown %s (%s - %s): %d activities, %d extras, %s h estimated, %s h available",
			burndown.Sprint, formatDate(burndown.Start), formatDate(burndown.End),
			burndown.Activities, burndown.Extras,
			formatHours(burndown.TotalEstimate), formatHours(burndown.AvailableHours)),
		Headers: []string{"Date", "Ideal", "Remaining", "Rolled over"},
		Rows:    [][]string{},
		Value:   burndown,
	}
	for _, point := range burndown.Series {
		table.Rows = append(table.Rows, []string{
			formatDate(point.Date), formatHours(point.Ideal), formatHours(point.Remaining), formatHours(point.RolledOver),
		})
	}
	return table
}

// DeliveriesTable renders delivery rows.
func DeliveriesTable(stats *metrics.DeliveryStats) *Table {
	table := &Table{
		Title: fmt.Sprintf("Deliveries: %d total, %d developers, %d per developer, %d per day, %d bugs",
			stats.Total, stats.ActiveDevelopers, stats.PerDeveloperAvg, stats.PerDay, stats.TotalBugs),
		Headers: []string{"Key", "Summary", "Type", "Developer", "Sprint", "Status", "Delivered", "Created", "Lead (days)", "Bugs"},
		Rows:    [][]string{},
		Value:   stats,
	}
	for _, row := range stats.Details {
		table.Rows = append(table.Rows, []string{
			row.Key, row.Summary, row.Type, row.Developer, row.Sprint, row.Status,
			formatDate(row.DeliveredAt), formatDate(row.Created), formatOptional(row.LeadDays),
			strconv.Itoa(row.BugCount),
		})
	}
	return table
}

// PerformanceTable renders the per-developer time accounting of a sprint.
func PerformanceTable(sprint string, summary []metrics.DeveloperSummary) *Table {
	title := "Developer performance"
	if sprint != "" {
		title += " - " + sprint
	}
	table := &Table{
		Title:   title,
		Headers: []string{"Developer", "Issues", "Estimate (h)", "Spent (h)", "Development (h)", "Accuracy (%)", "Avg per issue (h)"},
		Rows:    [][]string{},
		Value:   summary,
	}
	for _, row := range summary {
		table.Rows = append(table.Rows, []string{
			row.Developer, strconv.Itoa(row.Issues), formatHours(row.Estimate), formatHours(row.Spent),
			formatHours(row.Development), formatHours(row.Accuracy), formatHours(row.AvgPerIssue),
		})
	}
	return table
}

// ProjectTable renders the lead and cycle time rows of the project metrics.
func ProjectTable(project *metrics.ProjectMetrics) *Table {
	table := &Table{
		Title:   fmt.Sprintf("Project metrics: %d deliveries, %s per day", len(project.Flow), formatHours(project.AveragePerDay)),
		Headers: []string{"Key", "Sprint", "Type", "Developer", "Created", "Delivered", "Lead (days)", "Cycle (days)"},
		Rows:    [][]string{},
		Value:   project,
	}
	for _, row := range project.Flow {
		table.Rows = append(table.Rows, []string{
			row.Key, row.Sprint, row.Type, row.Developer, formatDate(row.Created), formatDate(row.DeliveredAt),
			strconv.Itoa(row.LeadDays), formatHours(row.CycleDays),
		})
	}
	return table
}

// TransitionsTable renders the enriched issue table with one column per
// status. Statuses an issue never visited are left blank.
func TransitionsTable(transitions *models.TransitionTable) *Table {
	headers := []string{"Sprint", "Key", "Type", "Status", "Developer", "Created", "Resolved"}
	headers = append(headers, transitions.StatusColumns...)

	table := &Table{
		Title:   "Issues with transitions",
		Headers: headers,
		Rows:    [][]string{},
		Value:   transitions,
	}
	for i := range transitions.Rows {
		row := &transitions.Rows[i]
		line := []string{row.Sprint, row.Key, row.Type, row.Status, row.Developer, formatDate(row.Created), formatDate(row.Resolved)}
		for _, status := range transitions.StatusColumns {
			if hours, ok := row.Hours(status); ok {
				line = append(line, formatHours(hours))
			} else {
				line = append(line, "")
			}
		}
		table.Rows = append(table.Rows, line)
	}
	return table
}

// OverviewTable renders the issue count per type.
func OverviewTable(overview *metrics.Overview) *Table {
	table := &Table{
		Title:   fmt.Sprintf("Overview: %d issues", overview.Total),
		Headers: []string{"Type", "Count"},
		Rows:    [][]string{},
		Value:   overview,
	}
	for _, count := range overview.ByType {
		table.Rows = append(table.Rows, []string{count.Label, strconv.Itoa(count.Count)})
	}
	return table
}

// TimingsTable renders the last duration of every recorded fetch.
func TimingsTable(timings []cache.Timing) *Table {
	table := &Table{
		Title:   "Timings",
		Headers: []string{"Operation", "Started", "Seconds", "Failed"},
		Rows:    [][]string{},
		Value:   timings,
	}
	for _, timing := range timings {
		table.Rows = append(table.Rows, []string{
			timing.Name, timing.Started.Format(time.RFC3339),
			strconv.FormatFloat(timing.Seconds(), 'f', 3, 64), strconv.FormatBool(timing.Failed),
		})
	}
	return table
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64)
}

func formatOptional(value *int) string {
	if value == nil {
		return "-"
	}
	return strconv.Itoa(*value)
}
