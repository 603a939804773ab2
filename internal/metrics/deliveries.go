package metrics

import (
	"sort"
	"time"

	"github.com/jlucaspains/sprintlens/internal/identity"
	"github.com/jlucaspains/sprintlens/internal/models"
)

// DeliveryRow is one delivered issue in one of its sprints.
type DeliveryRow struct {
	Key              string    `json:"key"`
	Summary          string    `json:"summary"`
	Type             string    `json:"type"`
	OriginalAssignee string    `json:"original_assignee"`
	Developer        string    `json:"developer"`
	Sprint           string    `json:"sprint"`
	Status           string    `json:"status"`
	DeliveredAt      time.Time `json:"delivered_at"`
	Created          time.Time `json:"created"`
	LeadDays         *int      `json:"lead_days"`
	BugCount         int       `json:"bug_count"`
}

// Deliveries returns one row per delivered issue and associated sprint.
// Issues without a sprint get a single row under the unassigned label. The
// developer column is resolved through the identity map built on delivery
// dates.
func (c *Calculator) Deliveries(issues []*models.Issue) []DeliveryRow {
	rows := []DeliveryRow{}

	for _, issue := range issues {
		if !c.isDelivered(issue.Status, issue.StatusCategory) {
			continue
		}

		deliveredAt := issue.Resolved
		if deliveredAt.IsZero() {
			deliveredAt = issue.Updated
		}

		var lead *int
		if !issue.Created.IsZero() && !deliveredAt.IsZero() {
			days := wholeDays(issue.Created, deliveredAt)
			lead = &days
		}

		sprints := make([]string, 0, len(issue.Sprints))
		for _, sprint := range issue.Sprints {
			name := sprint.Name
			if name == "" {
				name = c.config.UnassignedLabel
			}
			sprints = append(sprints, name)
		}
		if len(sprints) == 0 {
			sprints = []string{c.config.UnassignedLabel}
		}

		for _, sprint := range sprints {
			rows = append(rows, DeliveryRow{
				Key:              issue.Key,
				Summary:          issue.Summary,
				Type:             issue.Type,
				OriginalAssignee: issue.Assignee,
				Sprint:           sprint,
				Status:           issue.Status,
				DeliveredAt:      deliveredAt,
				Created:          issue.Created,
				LeadDays:         lead,
				BugCount:         issue.BugCount,
			})
		}
	}

	names := identity.NewNormalizer(c.config.UnassignedLabel)
	resolver := identity.NewResolver(names, identity.BuildLatestIdentityMap(names, rows,
		func(r DeliveryRow) string { return r.OriginalAssignee },
		func(r DeliveryRow) time.Time { return r.DeliveredAt },
	))
	for i := range rows {
		rows[i].Developer = resolver.Resolve(rows[i].OriginalAssignee)
	}

	return rows
}

// DeliveryFilter narrows delivery rows. Empty fields match everything.
type DeliveryFilter struct {
	Sprint     string
	Developers []string
	Types      []string
}

func (f DeliveryFilter) matches(row DeliveryRow) bool {
	if f.Sprint != "" && row.Sprint != f.Sprint {
		return false
	}
	if len(f.Developers) > 0 && !contains(f.Developers, row.Developer) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, row.Type) {
		return false
	}
	return true
}

// FilterDeliveries keeps the rows matching filter.
func FilterDeliveries(rows []DeliveryRow, filter DeliveryFilter) []DeliveryRow {
	result := []DeliveryRow{}
	for _, row := range rows {
		if filter.matches(row) {
			result = append(result, row)
		}
	}
	return result
}

// DeliveryStats summarizes delivery rows.
type DeliveryStats struct {
	Total             int                `json:"total"`
	ActiveDevelopers  int                `json:"active_developers"`
	PerDeveloperAvg   int                `json:"per_developer_avg"`
	PerDay            int                `json:"per_day"`
	TotalBugs         int                `json:"total_bugs"`
	ByDeveloper       []Count            `json:"by_developer"`
	BugsByDeveloper   []Count            `json:"bugs_by_developer"`
	ByTypeByDeveloper map[string][]Count `json:"by_type_by_developer"`
	Timeline          []DatedCount       `json:"timeline"`
	Sprints           []string           `json:"sprints"`
	Details           []DeliveryRow      `json:"details"`
}

// Count is a labeled tally.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DatedCount is a tally for one calendar day.
type DatedCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// DeliveryStats computes the delivery summary of rows. Averages are
// truncated to whole numbers.
func (c *Calculator) DeliveryStats(rows []DeliveryRow) *DeliveryStats {
	stats := &DeliveryStats{
		Total:             len(rows),
		ByDeveloper:       []Count{},
		BugsByDeveloper:   []Count{},
		ByTypeByDeveloper: map[string][]Count{},
		Timeline:          []DatedCount{},
		Sprints:           []string{},
		Details:           rows,
	}
	if len(rows) == 0 {
		return stats
	}

	perDev := map[string]int{}
	bugsPerDev := map[string]int{}
	perType := map[string]map[string]int{}
	perDay := map[time.Time]int{}
	sprints := map[string]bool{}
	var first, last time.Time

	for _, row := range rows {
		perDev[row.Developer]++
		bugsPerDev[row.Developer] += row.BugCount
		stats.TotalBugs += row.BugCount
		sprints[row.Sprint] = true

		if perType[row.Type] == nil {
			perType[row.Type] = map[string]int{}
		}
		perType[row.Type][row.Developer]++

		if row.DeliveredAt.IsZero() {
			continue
		}
		perDay[c.day(row.DeliveredAt)]++
		if first.IsZero() || row.DeliveredAt.Before(first) {
			first = row.DeliveredAt
		}
		if row.DeliveredAt.After(last) {
			last = row.DeliveredAt
		}
	}

	stats.ActiveDevelopers = len(perDev)
	stats.PerDeveloperAvg = stats.Total / stats.ActiveDevelopers
	if !first.IsZero() {
		span := wholeDays(first, last) + 1
		stats.PerDay = stats.Total / span
	}

	stats.ByDeveloper = sortedCounts(perDev, false)
	stats.BugsByDeveloper = sortedCounts(bugsPerDev, true)
	for issueType, devs := range perType {
		stats.ByTypeByDeveloper[issueType] = sortedCounts(devs, false)
	}

	for day, count := range perDay {
		stats.Timeline = append(stats.Timeline, DatedCount{Date: day, Count: count})
	}
	sort.Slice(stats.Timeline, func(i, j int) bool {
		return stats.Timeline[i].Date.Before(stats.Timeline[j].Date)
	})

	for sprint := range sprints {
		stats.Sprints = append(stats.Sprints, sprint)
	}
	sort.Strings(stats.Sprints)

	return stats
}

// sortedCounts orders tallies by count descending, then label. Zero counts
// are dropped when skipZero is set.
func sortedCounts(tally map[string]int, skipZero bool) []Count {
	result := make([]Count, 0, len(tally))
	for label, count := range tally {
		if skipZero && count == 0 {
			continue
		}
		result = append(result, Count{Label: label, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Label < result[j].Label
	})
	return result
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
