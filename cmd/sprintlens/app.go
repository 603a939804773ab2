package main

import (
	"fmt"
	"log/slog"

	"github.com/jlucaspains/sprintlens/internal/cache"
	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/ingest"
	"github.com/jlucaspains/sprintlens/internal/jira"
	"github.com/jlucaspains/sprintlens/internal/metrics"
	"github.com/jlucaspains/sprintlens/internal/report"
	"github.com/jlucaspains/sprintlens/internal/timeline"
	"github.com/jlucaspains/sprintlens/internal/worktime"
)

// app wires the components for one configured project.
type app struct {
	config  *config.Config
	engine  *ingest.Engine
	reports *report.Service
}

func newApp(configPath, project string, logger *slog.Logger) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if project == "" {
		project = cfg.Jira.DefaultProject
	}
	projectConfig, err := cfg.Project(project)
	if err != nil {
		return nil, err
	}
	if project == "" {
		project = cfg.ProjectNames()[0]
	}

	logger.Info("Jira", "project", project, "url", projectConfig.BaseURL, "board", projectConfig.BoardID)

	client, err := jira.NewClient(projectConfig, cfg.Jira.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}

	calendar, err := worktime.NewCalendar(cfg.Metrics.HolidayRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to load holiday calendar: %w", err)
	}

	mapper := ingest.NewMapper(&cfg.Metrics, projectConfig.SprintField, logger)
	deriver := timeline.NewDeriver(cfg.Metrics.HoursPerDay, cfg.Metrics.Location())
	engine := ingest.NewEngine(client, mapper, deriver, &cfg.Jira, projectConfig.BoardID, logger)
	calc := metrics.NewCalculator(&cfg.Metrics, calendar, logger)

	var store cache.Cache = cache.Disabled{}
	if cfg.Cache.Enabled {
		store = cache.NewMemory(cfg.Cache.TTL)
	}

	return &app{
		config:  cfg,
		engine:  engine,
		reports: report.NewService(project, engine, calc, store, cache.NewRecorder(), cfg, logger),
	}, nil
}
