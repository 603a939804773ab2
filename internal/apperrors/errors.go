package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error") // missing project, credentials or board
	ErrNotFound      = errors.New("resource not found")  // unresolved cross reference
)

// RequestError is returned for every non-success response from the Jira API.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("jira api %s %s: status=%d body=%s", e.Method, e.URL, e.StatusCode, e.Body)
}

// FetchError marks a failed per-issue detail request. Ingestion treats it as
// a skip for enrichment only.
type FetchError struct {
	IssueKey string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch history for issue %s: %v", e.IssueKey, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NotFound wraps ErrNotFound with a description of what could not be resolved.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Configuration wraps ErrConfiguration with the offending setting.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
