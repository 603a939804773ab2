package models

import (
	"time"
)

// IngestReport summarizes one ingestion run
type IngestReport struct {
	ID            string     `json:"id"`
	Operation     string     `json:"operation"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Pages         int        `json:"pages"`
	TotalIssues   int        `json:"total_issues"`
	Sprints       int        `json:"sprints"`
	EnrichedCount int        `json:"enriched_count"`
	SkippedCount  int        `json:"skipped_count"`
	Errors        []string   `json:"errors,omitempty"`
}

// Duration returns the elapsed time of a finished run
func (r *IngestReport) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
