package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/jlucaspains/sprintlens/internal/identity"
	"github.com/jlucaspains/sprintlens/internal/models"
)

// IssueRow is one line of the full issue table.
type IssueRow struct {
	Key              string    `json:"key"`
	Summary          string    `json:"summary"`
	Type             string    `json:"type"`
	Status           string    `json:"status"`
	StatusCategory   string    `json:"status_category"`
	Priority         string    `json:"priority"`
	OriginalAssignee string    `json:"original_assignee"`
	Developer        string    `json:"developer"`
	Sprint           string    `json:"sprint"`
	Epic             string    `json:"epic"`
	Created          time.Time `json:"created"`
	Updated          time.Time `json:"updated"`
	Resolved         time.Time `json:"resolved,omitempty"`
	EstimateHours    float64   `json:"estimate_hours"`
	SpentHours       float64   `json:"spent_hours"`
	BugCount         int       `json:"bug_count"`
	Description      string    `json:"description,omitempty"`
}

// IssueTable flattens issues into table rows. The developer column is the
// canonical name resolved over the update timestamps.
func (c *Calculator) IssueTable(issues []*models.Issue) []IssueRow {
	rows := make([]IssueRow, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, IssueRow{
			Key:              issue.Key,
			Summary:          issue.Summary,
			Type:             issue.Type,
			Status:           issue.Status,
			StatusCategory:   issue.StatusCategory,
			Priority:         issue.Priority,
			OriginalAssignee: issue.Assignee,
			Sprint:           issue.SprintName(c.config.UnassignedLabel),
			Epic:             issue.EpicName(),
			Created:          issue.Created,
			Updated:          issue.Updated,
			Resolved:         issue.Resolved,
			EstimateHours:    issue.EstimateHours,
			SpentHours:       issue.SpentHours,
			BugCount:         issue.BugCount,
			Description:      issue.Description,
		})
	}

	names := identity.NewNormalizer(c.config.UnassignedLabel)
	resolver := identity.NewResolver(names, identity.BuildLatestIdentityMap(names, rows,
		func(r IssueRow) string { return r.OriginalAssignee },
		func(r IssueRow) time.Time { return r.Updated },
	))
	for i := range rows {
		rows[i].Developer = resolver.Resolve(rows[i].OriginalAssignee)
	}
	return rows
}

// BugType is the pseudo issue type holding the bug subtask count.
const BugType = "Bug"

// SubtaskType is hidden from the overview unless requested.
const SubtaskType = "Subtask"

var typeOrder = []string{"Épico", "História", "Melhoria", "Correção", "Problema", "Tarefa", SubtaskType, BugType}

// OverviewFilter narrows the overview. Empty fields match everything.
type OverviewFilter struct {
	Developer    string
	Sprint       string
	ShowSubtasks bool
	ShowBugs     bool
}

// Overview is the issue count per type plus the filter choices.
type Overview struct {
	Total      int      `json:"total"`
	ByType     []Count  `json:"by_type"`
	Developers []string `json:"developers"`
	Sprints    []string `json:"sprints"`
}

// Overview counts issue rows per type in the fixed type order. Unknown types
// follow in name order. Excluded developers never show up in the developer
// choices.
func (c *Calculator) Overview(rows []IssueRow, filter OverviewFilter) *Overview {
	overview := &Overview{ByType: []Count{}, Developers: []string{}, Sprints: []string{}}

	developers := map[string]bool{}
	sprints := map[string]bool{}
	tally := map[string]int{}
	bugs := 0

	for _, row := range rows {
		if !c.isExcluded(row.Developer) {
			developers[row.Developer] = true
		}
		sprints[row.Sprint] = true

		if filter.Developer != "" && row.Developer != filter.Developer {
			continue
		}
		if filter.Sprint != "" && row.Sprint != filter.Sprint {
			continue
		}
		if !filter.ShowSubtasks && strings.EqualFold(row.Type, SubtaskType) {
			continue
		}

		tally[row.Type]++
		bugs += row.BugCount
		overview.Total++
	}

	if filter.ShowBugs && bugs > 0 {
		tally[BugType] += bugs
	}

	for issueType, count := range tally {
		overview.ByType = append(overview.ByType, Count{Label: issueType, Count: count})
	}
	sort.Slice(overview.ByType, func(i, j int) bool {
		ri, rj := typeRank(overview.ByType[i].Label), typeRank(overview.ByType[j].Label)
		if ri != rj {
			return ri < rj
		}
		return overview.ByType[i].Label < overview.ByType[j].Label
	})

	for developer := range developers {
		overview.Developers = append(overview.Developers, developer)
	}
	sort.Strings(overview.Developers)

	for sprint := range sprints {
		overview.Sprints = append(overview.Sprints, sprint)
	}
	SortSprintsByNumber(overview.Sprints)

	return overview
}

func typeRank(issueType string) int {
	for i, known := range typeOrder {
		if strings.EqualFold(known, issueType) {
			return i
		}
	}
	return len(typeOrder)
}
