package metrics

import (
	"sort"

	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

// DeveloperSummary is the time accounting of one developer in a sprint.
type DeveloperSummary struct {
	Developer   string  `json:"developer"`
	Estimate    float64 `json:"estimate"`
	Spent       float64 `json:"spent"`
	Development float64 `json:"development"`
	Issues      int     `json:"issues"`
	Accuracy    float64 `json:"accuracy"`
	AvgPerIssue float64 `json:"avg_per_issue"`
}

// DeveloperTime groups the rows of sprint by canonical developer. An empty
// sprint keeps every row. Accuracy is spent over estimate in percent, with a
// zero estimate counted as one hour.
func (c *Calculator) DeveloperTime(rows []models.TransitionRow, sprint string) []DeveloperSummary {
	byDev := map[string]*DeveloperSummary{}
	order := []string{}

	for i := range rows {
		row := &rows[i]
		if sprint != "" && row.Sprint != sprint {
			continue
		}

		developer := row.Developer
		if developer == "" {
			developer = c.config.UnassignedLabel
		}
		if c.isExcluded(developer) {
			continue
		}

		summary, ok := byDev[developer]
		if !ok {
			summary = &DeveloperSummary{Developer: developer}
			byDev[developer] = summary
			order = append(order, developer)
		}

		summary.Estimate += row.EstimateHours
		summary.Spent += row.SpentHours
		if hours, ok := c.developmentHours(row); ok {
			summary.Development += hours
		}
		summary.Issues++
	}

	result := make([]DeveloperSummary, 0, len(order))
	for _, developer := range order {
		s := byDev[developer]
		estimate := s.Estimate
		if estimate == 0 {
			estimate = 1
		}
		s.Accuracy = worktime.Round(s.Spent / estimate * 100)
		s.AvgPerIssue = worktime.Round(s.Spent / float64(s.Issues))
		s.Estimate = worktime.Round(s.Estimate)
		s.Spent = worktime.Round(s.Spent)
		s.Development = worktime.Round(s.Development)
		result = append(result, *s)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Developer < result[j].Developer
	})
	return result
}

// SprintNames returns the distinct sprints of rows, most recent number first.
func SprintNames(rows []models.TransitionRow) []string {
	seen := map[string]bool{}
	names := []string{}
	for _, row := range rows {
		if row.Sprint != "" && !seen[row.Sprint] {
			seen[row.Sprint] = true
			names = append(names, row.Sprint)
		}
	}
	SortSprintsByNumber(names)
	return names
}

// SortSprintsByNumber orders sprint names by their number, descending.
func SortSprintsByNumber(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := SprintNumber(names[i]), SprintNumber(names[j])
		if ni != nj {
			return ni > nj
		}
		return names[i] < names[j]
	})
}
