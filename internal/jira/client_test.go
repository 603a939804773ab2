package jira

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(&config.ProjectConfig{
		BaseURL:  server.URL + "/",
		BoardID:  42,
		Email:    "user@example.com",
		APIToken: "secret",
	}, 0, logger)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("requires base url", func(t *testing.T) {
		_, err := NewClient(&config.ProjectConfig{Email: "a", APIToken: "b"}, 0, logger)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewClient(&config.ProjectConfig{BaseURL: "https://x", Email: "a"}, 0, logger)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("personal access token is sent as bearer", func(t *testing.T) {
		var header string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"id": 1}`))
		}))
		defer server.Close()

		client, err := NewClient(&config.ProjectConfig{BaseURL: server.URL, PersonalAccessToken: "pat123"}, 0, logger)
		require.NoError(t, err)

		_, err = client.GetBoard(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Bearer pat123", header)
	})
}

func TestClient_GetBoard(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/agile/1.0/board/42", r.URL.Path)
		assert.Equal(t, "Basic dXNlckBleGFtcGxlLmNvbTpzZWNyZXQ=", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id": 42, "name": "PAY board", "location": {"projectId": 10000, "projectKey": "PAY"}}`))
	})

	board, err := client.GetBoard(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, "PAY board", board.Name)
	assert.Equal(t, "10000", board.Location.ProjectID.String())
	assert.Equal(t, "PAY", board.Location.ProjectKey)
}

func TestClient_ListSprints(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/rest/agile/1.0/board/42/sprint", r.URL.Path)
		switch r.URL.Query().Get("startAt") {
		case "0":
			_, _ = w.Write([]byte(`{"isLast": false, "values": [{"id": 1, "name": "Sprint 1", "state": "closed"}, {"id": 2, "name": "Sprint 2", "state": "active"}]}`))
		case "2":
			_, _ = w.Write([]byte(`{"isLast": true, "values": [{"id": 3, "name": "Sprint 3", "state": "future"}]}`))
		default:
			t.Errorf("unexpected startAt %q", r.URL.Query().Get("startAt"))
		}
	})

	sprints, err := client.ListSprints(context.Background(), 42)

	require.NoError(t, err)
	require.Len(t, sprints, 3)
	assert.Equal(t, "Sprint 3", sprints[2].Name)
	assert.Equal(t, 2, calls)
}

func TestClient_SearchIssues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/rest/api/3/search/jql", r.URL.Path)
		assert.Equal(t, `project = "10000" ORDER BY created DESC`, q.Get("jql"))
		assert.Equal(t, "*all,-comment", q.Get("fields"))
		assert.Equal(t, "100", q.Get("maxResults"))
		assert.Equal(t, "warn", q.Get("validateQuery"))
		assert.Equal(t, "tok-1", q.Get("nextPageToken"))
		_, _ = w.Write([]byte(`{"issues": [{"key": "PAY-1", "fields": {"summary": "a"}}], "nextPageToken": "tok-2", "isLast": false}`))
	})

	page, err := client.SearchIssues(context.Background(), SearchRequest{
		JQL:           `project = "10000" ORDER BY created DESC`,
		NextPageToken: "tok-1",
	})

	require.NoError(t, err)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, "PAY-1", page.Issues[0].Key)
	assert.Equal(t, "tok-2", page.NextPageToken)
	assert.False(t, page.Last())
}

func TestClient_GetIssueWithChangelog(t *testing.T) {
	t.Run("expands the changelog", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/api/3/issue/PAY-7", r.URL.Path)
			assert.Equal(t, "changelog", r.URL.Query().Get("expand"))
			_, _ = w.Write([]byte(`{"key": "PAY-7", "fields": {}, "changelog": {"histories": [
				{"created": "2025-03-04T10:00:00.000-0300", "items": [{"field": "status", "fromString": "A Fazer", "toString": "Done"}]}
			]}}`))
		})

		issue, err := client.GetIssueWithChangelog(context.Background(), "PAY-7")

		require.NoError(t, err)
		require.Len(t, issue.StatusTransitions(), 1)
	})

	t.Run("non success status returns request error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorMessages": ["Issue does not exist"]}`))
		})

		_, err := client.GetIssueWithChangelog(context.Background(), "PAY-404")

		var reqErr *apperrors.RequestError
		require.True(t, errors.As(err, &reqErr))
		assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
		assert.Contains(t, reqErr.Body, "Issue does not exist")
	})

	t.Run("empty key fails without a request", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.GetIssueWithChangelog(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestClient_TestConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := client.TestConnection(context.Background(), 42)

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusCode(err))
}
