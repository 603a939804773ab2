package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlucaspains/sprintlens/internal/metrics"
	"github.com/jlucaspains/sprintlens/internal/models"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"", FormatText, false},
		{"TEXT", FormatText, false},
		{"csv", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"xlsx", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			format, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format)
		})
	}
}

func testTransitions() *models.TransitionTable {
	return &models.TransitionTable{
		StatusColumns: []string{"Done", "To Do"},
		Rows: []models.TransitionRow{
			{
				Sprint: "Sprint 1", Key: "P-1", Type: "Tarefa", Status: "Done", Developer: "Ana Lima",
				Created:     time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
				Resolved:    time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
				StatusHours: models.StatusTimeMap{"To Do": 7, "Done": 3.5},
			},
			{
				Sprint: "Sprint 1", Key: "P-2", Type: "Bug", Status: "To Do", Developer: "Caio Reis",
				Created:     time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
				StatusHours: models.StatusTimeMap{"To Do": 14},
			},
		},
	}
}

func TestWrite(t *testing.T) {
	table := TransitionsTable(testTransitions())

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatText, table))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 5)
		assert.Equal(t, "Issues with transitions", lines[0])
		assert.Contains(t, lines[2], "Sprint")
		assert.Contains(t, lines[2], "To Do")
		assert.Contains(t, lines[3], "P-1")
		assert.Contains(t, lines[3], "2025-03-05")
	})

	t.Run("csv leaves unvisited statuses blank", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatCSV, table))

		assert.Equal(t,
			"Sprint,Key,Type,Status,Developer,Created,Resolved,Done,To Do\n"+
				"Sprint 1,P-1,Tarefa,Done,Ana Lima,2025-03-03,2025-03-05,3.5,7\n"+
				"Sprint 1,P-2,Bug,To Do,Caio Reis,2025-03-04,,,14\n",
			buf.String())
	})

	t.Run("json keeps the typed value", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatJSON, table))

		var decoded models.TransitionTable
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Len(t, decoded.Rows, 2)
		assert.Equal(t, []string{"Done", "To Do"}, decoded.StatusColumns)
	})

	t.Run("empty text table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatText, OverviewTable(&metrics.Overview{})))
		assert.Contains(t, buf.String(), "No data found")
	})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sprints.csv")
	days := 3
	analysis := &metrics.SprintDateAnalysis{
		Rows:   []metrics.SprintDateRow{{ID: 1, Name: "Sprint 1", Status: metrics.SprintLabelClosed, DelayDays: &days}},
		Totals: metrics.SprintDateTotals{DelayDays: 3},
	}

	require.NoError(t, WriteFile(path, FormatCSV, SprintDatesTable(analysis)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1,Sprint 1,Fechada,,,,3,-,-", lines[1])
	assert.Equal(t, ",Total,,,,,3,0,0", lines[2])
}

func TestBurndownTable(t *testing.T) {
	burndown := &metrics.Burndown{
		Sprint:        "Sprint 7",
		Activities:    3,
		TotalEstimate: 32,
		Series: []metrics.BurndownPoint{
			{Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Ideal: 32, Remaining: 32},
			{Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Ideal: 0, Remaining: 0},
		},
	}

	table := BurndownTable(burndown)

	assert.Contains(t, table.Title, "Sprint 7")
	assert.Equal(t, [][]string{{"2025-03-03", "32", "32", "0"}, {"2025-03-04", "0", "0", "0"}}, table.Rows)
}
