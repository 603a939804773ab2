package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/models"
)

const (
	searchPath       = "/rest/api/3/search/jql"
	issuePath        = "/rest/api/3/issue/"
	boardPath        = "/rest/agile/1.0/board/"
	defaultFields    = "*all,-comment"
	defaultPageSize  = 100
	sprintPageSize   = 50
	maxErrorBodySize = 4096
)

// Client is a thin Jira Cloud/Data Center REST client.
type Client struct {
	baseURL string
	auth    string
	http    *http.Client
	logger  *slog.Logger
}

// SearchRequest describes one call to the enhanced JQL search endpoint.
type SearchRequest struct {
	JQL           string
	Fields        string
	MaxResults    int
	NextPageToken string
	Expand        string
}

func NewClient(cfg *config.ProjectConfig, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperrors.Configuration("jira base url is required")
	}

	if cfg.PersonalAccessToken == "" && cfg.AuthorizationHeader() == "" {
		return nil, apperrors.Configuration("jira credentials are required")
	}

	var hc *http.Client
	if cfg.PersonalAccessToken != "" {
		// Data Center personal access tokens are sent as bearer tokens
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.PersonalAccessToken},
		)
		hc = oauth2.NewClient(context.Background(), ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = timeout

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		auth:    cfg.AuthorizationHeader(),
		http:    hc,
		logger:  logger,
	}, nil
}

// TestConnection checks that the board can be read with the configured credentials.
func (c *Client) TestConnection(ctx context.Context, boardID int) error {
	c.logger.Info("Testing Jira connection...", "board", boardID)

	if _, err := c.GetBoard(ctx, boardID); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	c.logger.Info("Jira connection successful")
	return nil
}

// GetBoard returns the board and the project it is located in.
func (c *Client) GetBoard(ctx context.Context, boardID int) (*models.Board, error) {
	var board models.Board
	if err := c.getJSON(ctx, boardPath+strconv.Itoa(boardID), nil, &board); err != nil {
		return nil, fmt.Errorf("failed to get board %d: %w", boardID, err)
	}
	return &board, nil
}

// ListSprints returns every sprint of the board, following startAt pagination.
func (c *Client) ListSprints(ctx context.Context, boardID int) ([]models.RawSprint, error) {
	var sprints []models.RawSprint
	startAt := 0

	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(sprintPageSize))

		var page models.SprintPage
		if err := c.getJSON(ctx, boardPath+strconv.Itoa(boardID)+"/sprint", q, &page); err != nil {
			return nil, fmt.Errorf("failed to list sprints of board %d: %w", boardID, err)
		}

		sprints = append(sprints, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			break
		}
		startAt += len(page.Values)
	}

	c.logger.Debug("Listed sprints", "board", boardID, "count", len(sprints))
	return sprints, nil
}

// SearchIssues returns one page of the JQL search.
func (c *Client) SearchIssues(ctx context.Context, req SearchRequest) (*models.SearchPage, error) {
	fields := req.Fields
	if fields == "" {
		fields = defaultFields
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultPageSize
	}

	q := url.Values{}
	q.Set("jql", req.JQL)
	q.Set("fields", fields)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("validateQuery", "warn")
	if req.NextPageToken != "" {
		q.Set("nextPageToken", req.NextPageToken)
	}
	if req.Expand != "" {
		q.Set("expand", req.Expand)
	}

	var page models.SearchPage
	if err := c.getJSON(ctx, searchPath, q, &page); err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	c.logger.Debug("Fetched search page", "jql", req.JQL, "issues", len(page.Issues), "last", page.Last())
	return &page, nil
}

// GetIssueWithChangelog returns a single issue with its history expanded.
func (c *Client) GetIssueWithChangelog(ctx context.Context, key string) (*models.RawIssue, error) {
	if key == "" {
		return nil, fmt.Errorf("empty issue key")
	}

	q := url.Values{}
	q.Set("expand", "changelog")

	var issue models.RawIssue
	if err := c.getJSON(ctx, issuePath+url.PathEscape(key), q, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &apperrors.RequestError{
			Method:     http.MethodGet,
			URL:        path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
