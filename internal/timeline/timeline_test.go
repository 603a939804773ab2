package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

type mockHistorySource struct {
	mock.Mock
}

func (m *mockHistorySource) GetIssueWithChangelog(ctx context.Context, key string) (*models.RawIssue, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawIssue), args.Error(1)
}

// 2025-03-03 is a Monday.
func at(d int, hour int) time.Time {
	return time.Date(2025, time.March, d, hour, 0, 0, 0, time.UTC)
}

func TestFetchTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("returns sorted status transitions", func(t *testing.T) {
		source := &mockHistorySource{}
		source.On("GetIssueWithChangelog", ctx, "APP-1").Return(&models.RawIssue{
			Key: "APP-1",
			Changelog: &models.Changelog{Histories: []models.History{
				{Created: "2025-03-05T10:00:00.000+0000", Items: []models.HistoryItem{
					{Field: "status", FromString: "Em Desenvolvimento", ToString: "Done"},
				}},
				{Created: "2025-03-03T10:00:00.000+0000", Items: []models.HistoryItem{
					{Field: "priority", FromString: "Low", ToString: "High"},
					{Field: "status", FromString: "A Fazer", ToString: "Em Desenvolvimento"},
				}},
			}},
		}, nil)

		transitions, err := FetchTransitions(ctx, source, "APP-1")

		require.NoError(t, err)
		require.Len(t, transitions, 2)
		assert.Equal(t, "A Fazer", transitions[0].From)
		assert.Equal(t, "Done", transitions[1].To)
		assert.True(t, transitions[0].At.Before(transitions[1].At))
		source.AssertExpectations(t)
	})

	t.Run("wraps failures in a fetch error", func(t *testing.T) {
		source := &mockHistorySource{}
		upstream := &apperrors.RequestError{StatusCode: 404, Body: "not found"}
		source.On("GetIssueWithChangelog", ctx, "APP-2").Return(nil, upstream)

		_, err := FetchTransitions(ctx, source, "APP-2")

		var fetchErr *apperrors.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "APP-2", fetchErr.IssueKey)
		assert.Equal(t, 404, apperrors.StatusCode(err))
	})
}

func TestDeriver_StatusTimeMap(t *testing.T) {
	deriver := NewDeriver(worktime.DefaultHoursPerDay, time.UTC)

	t.Run("no transitions credits current status", func(t *testing.T) {
		created := at(3, 9)
		now := at(7, 18)

		result := deriver.StatusTimeMap(created, "A Fazer", nil, now)

		assert.Equal(t, models.StatusTimeMap{"A Fazer": worktime.WorkingHoursBetween(created, now, 7)}, result)
		assert.Equal(t, 35.0, result["A Fazer"])
	})

	t.Run("walks transitions and the open interval", func(t *testing.T) {
		created := at(3, 9)
		transitions := []models.StatusTransition{
			{From: "A Fazer", To: "Em Desenvolvimento", At: at(4, 10)},
			{From: "Em Desenvolvimento", To: "Em Revisão", At: at(6, 15)},
		}

		result := deriver.StatusTimeMap(created, "Em Revisão", transitions, at(7, 12))

		assert.Equal(t, models.StatusTimeMap{
			"A Fazer":            7,
			"Em Desenvolvimento": 14,
			"Em Revisão":         14,
		}, result)
	})

	t.Run("revisited status accumulates", func(t *testing.T) {
		created := at(3, 9)
		transitions := []models.StatusTransition{
			{From: "A Fazer", To: "Em Desenvolvimento", At: at(4, 9)},
			{From: "Em Desenvolvimento", To: "Teste", At: at(5, 9)},
			{From: "Teste", To: "Em Desenvolvimento", At: at(6, 9)},
		}

		result := deriver.StatusTimeMap(created, "Em Desenvolvimento", transitions, at(7, 9))

		assert.Equal(t, 7.0, result["A Fazer"])
		assert.Equal(t, 7.0, result["Teste"])
		assert.Equal(t, 21.0, result["Em Desenvolvimento"])
	})

	t.Run("transition at creation keeps the initial status with zero hours", func(t *testing.T) {
		created := at(3, 9)
		transitions := []models.StatusTransition{
			{From: "Backlog", To: "A Fazer", At: created},
		}

		result := deriver.StatusTimeMap(created, "A Fazer", transitions, at(3, 17))

		assert.Equal(t, models.StatusTimeMap{"Backlog": 0, "A Fazer": 7}, result)
	})

	t.Run("closed issue conserves total working hours", func(t *testing.T) {
		created := at(3, 9)
		resolved := time.Date(2025, time.March, 18, 16, 0, 0, 0, time.UTC)
		transitions := []models.StatusTransition{
			{From: "A Fazer", To: "Em Desenvolvimento", At: at(5, 11)},
			{From: "Em Desenvolvimento", To: "Em Revisão", At: at(8, 10)},
			{From: "Em Revisão", To: "Em Desenvolvimento", At: at(11, 14)},
			{From: "Em Desenvolvimento", To: "Em Desenvolvimento", At: at(11, 15)},
			{From: "Em Desenvolvimento", To: "Done", At: at(17, 10)},
		}

		result := deriver.StatusTimeMap(created, "Done", transitions, EndOf(resolved, at(31, 0)))

		assert.InDelta(t, worktime.WorkingHoursBetween(created, resolved, 7), result.Total(), 0.01)
		assert.ElementsMatch(t, []string{"A Fazer", "Em Desenvolvimento", "Em Revisão", "Done"}, keys(result))
		for _, hours := range result {
			assert.GreaterOrEqual(t, hours, 0.0)
		}
	})
}

func TestStatusAt(t *testing.T) {
	created := at(3, 9)
	transitions := []models.StatusTransition{
		{From: "A Fazer", To: "Em Desenvolvimento", At: at(4, 10)},
		{From: "Em Desenvolvimento", To: "Done", At: at(6, 10)},
	}
	initial := InitialStatus("Done", transitions)

	assert.Equal(t, "", StatusAt(created, initial, transitions, at(2, 23)))
	assert.Equal(t, "A Fazer", StatusAt(created, initial, transitions, at(3, 23)))
	assert.Equal(t, "Em Desenvolvimento", StatusAt(created, initial, transitions, at(5, 23)))
	assert.Equal(t, "Done", StatusAt(created, initial, transitions, at(6, 23)))
	assert.Equal(t, "Done", InitialStatus("Done", nil))
}

func keys(m models.StatusTimeMap) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	return result
}
