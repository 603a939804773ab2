package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
	"github.com/jlucaspains/sprintlens/internal/metrics"
)

func (s *Server) issues(c *gin.Context) {
	rows, err := s.reports.Issues(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "rows": rows})
}

func (s *Server) overview(c *gin.Context) {
	filter := metrics.OverviewFilter{
		Developer:    c.Query("developer"),
		Sprint:       c.Query("sprint"),
		ShowSubtasks: queryBool(c, "subtasks"),
		ShowBugs:     queryBool(c, "bugs"),
	}

	overview, err := s.reports.Overview(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) sprints(c *gin.Context) {
	analysis, err := s.reports.Sprints(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) burndown(c *gin.Context) {
	burndown, err := s.reports.Burndown(c.Request.Context(), c.Query("sprint"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, burndown)
}

func (s *Server) deliveries(c *gin.Context) {
	filter := metrics.DeliveryFilter{
		Sprint:     c.Query("sprint"),
		Developers: c.QueryArray("developer"),
		Types:      c.QueryArray("type"),
	}

	stats, err := s.reports.Deliveries(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) performance(c *gin.Context) {
	sprint, summary, err := s.reports.Performance(c.Request.Context(), c.Query("filter"), c.Query("sprint"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sprint": sprint, "developers": summary})
}

func (s *Server) project(c *gin.Context) {
	project, err := s.reports.ProjectMetrics(c.Request.Context(), c.Query("filter"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) transitions(c *gin.Context) {
	table, err := s.reports.Transitions(c.Request.Context(), c.Query("filter"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func (s *Server) refresh(c *gin.Context) {
	s.reports.Refresh()
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (s *Server) timings(c *gin.Context) {
	c.JSON(http.StatusOK, s.reports.Timings())
}

// fail maps the error taxonomy onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConfiguration):
		status = http.StatusBadRequest
	case apperrors.StatusCode(err) != 0:
		status = http.StatusBadGateway
	}

	s.logger.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
	c.JSON(status, gin.H{"error": err.Error(), "upstream_status": apperrors.StatusCode(err)})
}

func queryBool(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(c.Query(name))
	return err == nil && value
}
