package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RawIssue is a Jira issue as returned by search or issue detail endpoints.
// Every field is optional; use the getters to read it.
type RawIssue struct {
	ID             string                 `json:"id"`
	Key            string                 `json:"key"`
	Fields         map[string]interface{} `json:"fields"`
	RenderedFields map[string]interface{} `json:"renderedFields,omitempty"`
	Changelog      *Changelog             `json:"changelog,omitempty"`
}

// Changelog holds the audit history of an issue.
type Changelog struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Histories  []History `json:"histories"`
}

// History is one changelog entry; it may change several fields at once.
type History struct {
	ID      string        `json:"id"`
	Created string        `json:"created"`
	Items   []HistoryItem `json:"items"`
}

// HistoryItem describes a single field change.
type HistoryItem struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype,omitempty"`
	From       string `json:"from,omitempty"`
	FromString string `json:"fromString"`
	To         string `json:"to,omitempty"`
	ToString   string `json:"toString"`
}

// SearchPage is one page of the enhanced JQL search endpoint.
type SearchPage struct {
	Issues        []RawIssue `json:"issues"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
	IsLast        *bool      `json:"isLast,omitempty"`
}

// Last reports whether no further page exists. A missing flag means last.
func (p *SearchPage) Last() bool {
	return p.IsLast == nil || *p.IsLast
}

// Board is a Jira Software board.
type Board struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Location BoardLocation `json:"location"`
}

// BoardLocation links a board to its project.
type BoardLocation struct {
	ProjectID   json.Number `json:"projectId"`
	ProjectKey  string      `json:"projectKey"`
	ProjectName string      `json:"projectName"`
}

// RawSprint is a sprint as returned by the agile API.
type RawSprint struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	State        string `json:"state"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	CompleteDate string `json:"completeDate,omitempty"`
	Goal         string `json:"goal,omitempty"`
}

// SprintPage is one page of the board sprint listing.
type SprintPage struct {
	MaxResults int         `json:"maxResults"`
	StartAt    int         `json:"startAt"`
	IsLast     bool        `json:"isLast"`
	Values     []RawSprint `json:"values"`
}

// GetSummary returns the summary of the issue
func (ri *RawIssue) GetSummary() string {
	return getString(ri.Fields, "summary")
}

// GetIssueType returns the issue type name
func (ri *RawIssue) GetIssueType() string {
	return getNestedString(ri.Fields, "issuetype", "name")
}

// GetStatus returns the current status name
func (ri *RawIssue) GetStatus() string {
	return getNestedString(ri.Fields, "status", "name")
}

// GetStatusCategory returns the status category name (To Do, In Progress, Done)
func (ri *RawIssue) GetStatusCategory() string {
	if status, ok := ri.Fields["status"].(map[string]interface{}); ok {
		return getNestedString(status, "statusCategory", "name")
	}
	return ""
}

// GetPriority returns the priority name
func (ri *RawIssue) GetPriority() string {
	return getNestedString(ri.Fields, "priority", "name")
}

// GetAssignee returns the assignee display name
func (ri *RawIssue) GetAssignee() string {
	return getNestedString(ri.Fields, "assignee", "displayName")
}

// GetCreated returns the creation timestamp
func (ri *RawIssue) GetCreated() time.Time {
	return ParseTime(getString(ri.Fields, "created"))
}

// GetUpdated returns the last update timestamp
func (ri *RawIssue) GetUpdated() time.Time {
	return ParseTime(getString(ri.Fields, "updated"))
}

// GetResolutionDate returns the resolution timestamp, zero when unresolved
func (ri *RawIssue) GetResolutionDate() time.Time {
	return ParseTime(getString(ri.Fields, "resolutiondate"))
}

// GetOriginalEstimate returns the time tracking estimate string, e.g. "2d 4h"
func (ri *RawIssue) GetOriginalEstimate() string {
	return getNestedString(ri.Fields, "timetracking", "originalEstimate")
}

// GetTimeSpent returns the logged time string
func (ri *RawIssue) GetTimeSpent() string {
	return getNestedString(ri.Fields, "timetracking", "timeSpent")
}

// GetRenderedDescription returns the HTML description when renderedFields was expanded
func (ri *RawIssue) GetRenderedDescription() string {
	return getString(ri.RenderedFields, "description")
}

// GetParent returns the parent (epic) reference
func (ri *RawIssue) GetParent() *ParentRef {
	parent, ok := ri.Fields["parent"].(map[string]interface{})
	if !ok {
		return nil
	}
	ref := &ParentRef{Key: getString(parent, "key")}
	if fields, ok := parent["fields"].(map[string]interface{}); ok {
		ref.Summary = getString(fields, "summary")
	}
	return ref
}

// GetSubtasks returns the subtasks references
func (ri *RawIssue) GetSubtasks() []Subtask {
	items, ok := ri.Fields["subtasks"].([]interface{})
	if !ok {
		return []Subtask{}
	}

	subtasks := make([]Subtask, 0, len(items))
	for _, item := range items {
		sub, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		st := Subtask{Key: getString(sub, "key")}
		if fields, ok := sub["fields"].(map[string]interface{}); ok {
			st.Summary = getString(fields, "summary")
			st.Status = getNestedString(fields, "status", "name")
		}
		subtasks = append(subtasks, st)
	}
	return subtasks
}

// GetSprints reads the sprint custom field, which may be a list or a single object
func (ri *RawIssue) GetSprints(field string) []SprintRef {
	if field == "" {
		field = "sprint"
	}

	var values []interface{}
	switch v := ri.Fields[field].(type) {
	case []interface{}:
		values = v
	case map[string]interface{}:
		values = []interface{}{v}
	}

	refs := make([]SprintRef, 0, len(values))
	for _, value := range values {
		sprint, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		refs = append(refs, SprintRef{
			ID:    getInt(sprint, "id"),
			Name:  getString(sprint, "name"),
			State: getString(sprint, "state"),
		})
	}
	return refs
}

// StatusTransitions returns every status change recorded in the changelog,
// in changelog order.
func (ri *RawIssue) StatusTransitions() []StatusTransition {
	transitions := []StatusTransition{}
	if ri.Changelog == nil {
		return transitions
	}

	for _, history := range ri.Changelog.Histories {
		at := ParseTime(history.Created)
		if at.IsZero() {
			continue
		}
		for _, item := range history.Items {
			if item.Field != "status" {
				continue
			}
			transitions = append(transitions, StatusTransition{
				From: item.FromString,
				To:   item.ToString,
				At:   at,
			})
		}
	}
	return transitions
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// ParseTime parses the timestamp formats used by the Jira REST APIs. It
// returns the zero time for empty or malformed input.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Helper function to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getNestedString(m map[string]interface{}, key, nested string) string {
	if m == nil {
		return ""
	}
	if inner, ok := m[key].(map[string]interface{}); ok {
		return getString(inner, nested)
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}
