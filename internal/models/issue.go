package models

import (
	"time"
)

// Issue is the normalized, immutable view of a Jira issue.
type Issue struct {
	Key            string      `json:"key"`
	Type           string      `json:"type"`
	Status         string      `json:"status"`
	StatusCategory string      `json:"status_category"`
	Priority       string      `json:"priority"`
	Assignee       string      `json:"assignee"`
	Summary        string      `json:"summary"`
	Description    string      `json:"description,omitempty"`
	Created        time.Time   `json:"created"`
	Updated        time.Time   `json:"updated"`
	Resolved       time.Time   `json:"resolved,omitempty"`
	EstimateHours  float64     `json:"estimate_hours"`
	SpentHours     float64     `json:"spent_hours"`
	Subtasks       []Subtask   `json:"subtasks,omitempty"`
	Sprints        []SprintRef `json:"sprints,omitempty"`
	Parent         *ParentRef  `json:"parent,omitempty"`
	BugCount       int         `json:"bug_count"`
}

// Subtask is a reference to a child issue.
type Subtask struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
	Status  string `json:"status,omitempty"`
}

// SprintRef is a sprint association carried on an issue.
type SprintRef struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

// ParentRef is the parent issue or epic.
type ParentRef struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

// SprintName returns the first associated sprint name or fallback.
func (i *Issue) SprintName(fallback string) string {
	if len(i.Sprints) > 0 && i.Sprints[0].Name != "" {
		return i.Sprints[0].Name
	}
	return fallback
}

// EpicName returns the parent summary or "-".
func (i *Issue) EpicName() string {
	if i.Parent != nil && i.Parent.Summary != "" {
		return i.Parent.Summary
	}
	return "-"
}

// StatusTransition is one status change of an issue.
type StatusTransition struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// StatusTimeMap maps a status name to the working hours spent in it.
type StatusTimeMap map[string]float64

// Total sums every status.
func (m StatusTimeMap) Total() float64 {
	total := 0.0
	for _, hours := range m {
		total += hours
	}
	return total
}

// SprintState is the lifecycle state of a sprint.
type SprintState string

const (
	SprintFuture SprintState = "future"
	SprintActive SprintState = "active"
	SprintClosed SprintState = "closed"
)

// Sprint is a normalized board sprint.
type Sprint struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	State        SprintState `json:"state"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	CompleteDate time.Time   `json:"complete_date,omitempty"`
	Goal         string      `json:"goal,omitempty"`
}

// ToSprint converts the API payload.
func (rs RawSprint) ToSprint() Sprint {
	return Sprint{
		ID:           rs.ID,
		Name:         rs.Name,
		State:        SprintState(rs.State),
		Start:        ParseTime(rs.StartDate),
		End:          ParseTime(rs.EndDate),
		CompleteDate: ParseTime(rs.CompleteDate),
		Goal:         rs.Goal,
	}
}

// TransitionRow is one issue of a sprint enriched with its status-time map.
type TransitionRow struct {
	Sprint           string             `json:"sprint"`
	Key              string             `json:"key"`
	Epic             string             `json:"epic"`
	Type             string             `json:"type"`
	Status           string             `json:"status"`
	StatusCategory   string             `json:"status_category"`
	Priority         string             `json:"priority"`
	Summary          string             `json:"summary"`
	OriginalAssignee string             `json:"original_assignee"`
	Developer        string             `json:"developer,omitempty"`
	Created          time.Time          `json:"created"`
	Updated          time.Time          `json:"updated"`
	Resolved         time.Time          `json:"resolved,omitempty"`
	EstimateHours    float64            `json:"estimate_hours"`
	SpentHours       float64            `json:"spent_hours"`
	BugCount         int                `json:"bug_count"`
	StatusHours      StatusTimeMap      `json:"status_hours"`
	Transitions      []StatusTransition `json:"transitions,omitempty"`
	Enriched         bool               `json:"enriched"`
}

// TransitionTable is the transitions-enriched issue table. StatusColumns is
// the sorted set of every status seen across all rows.
type TransitionTable struct {
	Rows          []TransitionRow `json:"rows"`
	StatusColumns []string        `json:"status_columns"`
}

// Hours returns the hours row spent in status and whether the issue ever
// visited it.
func (r *TransitionRow) Hours(status string) (float64, bool) {
	hours, ok := r.StatusHours[status]
	return hours, ok
}
