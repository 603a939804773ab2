package ingest

import (
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

// PriorityUndefined is shown for issues without a priority
const PriorityUndefined = "Prioridade não definida"

var priorityLabels = map[string]string{
	"Highest": "Muito Alta",
	"High":    "Alta",
	"Medium":  "Média",
	"Low":     "Baixa",
	"Lowest":  "Muito Baixa",
}

// Mapper handles the mapping between raw Jira payloads and report rows
type Mapper struct {
	metrics     *config.MetricsConfig
	sprintField string
	logger      *slog.Logger
}

func NewMapper(metrics *config.MetricsConfig, sprintField string, logger *slog.Logger) *Mapper {
	return &Mapper{
		metrics:     metrics,
		sprintField: sprintField,
		logger:      logger,
	}
}

func (m *Mapper) MapIssue(raw *models.RawIssue) *models.Issue {
	subtasks := raw.GetSubtasks()

	return &models.Issue{
		Key:            raw.Key,
		Type:           raw.GetIssueType(),
		Status:         raw.GetStatus(),
		StatusCategory: raw.GetStatusCategory(),
		Priority:       TranslatePriority(raw.GetPriority()),
		Assignee:       m.mapAssignee(raw.GetAssignee()),
		Summary:        raw.GetSummary(),
		Description:    m.cleanHtmlContent(raw.GetRenderedDescription()),
		Created:        raw.GetCreated(),
		Updated:        raw.GetUpdated(),
		Resolved:       raw.GetResolutionDate(),
		EstimateHours:  worktime.ParseDuration(raw.GetOriginalEstimate()),
		SpentHours:     worktime.ParseDuration(raw.GetTimeSpent()),
		Subtasks:       subtasks,
		Sprints:        raw.GetSprints(m.sprintField),
		Parent:         raw.GetParent(),
		BugCount:       m.countBugs(subtasks),
	}
}

func (m *Mapper) MapIssues(raws []models.RawIssue) []*models.Issue {
	issues := make([]*models.Issue, 0, len(raws))
	for i := range raws {
		issues = append(issues, m.MapIssue(&raws[i]))
	}
	return issues
}

// MapTransitionRow builds the enriched row of an issue listed in sprint.
// A nil hours map means the history could not be fetched.
func (m *Mapper) MapTransitionRow(sprint string, issue *models.Issue, hours models.StatusTimeMap) models.TransitionRow {
	row := models.TransitionRow{
		Sprint:           sprint,
		Key:              issue.Key,
		Epic:             issue.EpicName(),
		Type:             issue.Type,
		Status:           issue.Status,
		StatusCategory:   issue.StatusCategory,
		Priority:         issue.Priority,
		Summary:          issue.Summary,
		OriginalAssignee: issue.Assignee,
		Created:          issue.Created,
		Updated:          issue.Updated,
		Resolved:         issue.Resolved,
		EstimateHours:    issue.EstimateHours,
		SpentHours:       issue.SpentHours,
		BugCount:         issue.BugCount,
		StatusHours:      models.StatusTimeMap{},
	}

	if hours != nil {
		row.StatusHours = hours
		row.Enriched = true
	}
	return row
}

// TranslatePriority returns the localized priority label
func TranslatePriority(priority string) string {
	if priority == "" {
		return PriorityUndefined
	}
	if label, ok := priorityLabels[priority]; ok {
		return label
	}
	return priority
}

func (m *Mapper) mapAssignee(name string) string {
	if strings.TrimSpace(name) == "" {
		return m.metrics.UnassignedLabel
	}
	return name
}

// countBugs counts subtasks whose summary mentions one of the bug markers
func (m *Mapper) countBugs(subtasks []models.Subtask) int {
	count := 0
	for _, subtask := range subtasks {
		summary := strings.ToLower(subtask.Summary)
		for _, marker := range m.metrics.BugMarkers {
			if marker != "" && strings.Contains(summary, strings.ToLower(marker)) {
				count++
				break
			}
		}
	}
	return count
}

func (m *Mapper) cleanHtmlContent(content string) string {
	if content == "" {
		return ""
	}

	content, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		m.logger.Error("Failed to convert HTML to Markdown", "error", err)
		return ""
	}

	return strings.TrimSpace(content)
}
