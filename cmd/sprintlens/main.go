package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jlucaspains/sprintlens/internal/config"
	"github.com/jlucaspains/sprintlens/internal/export"
	"github.com/jlucaspains/sprintlens/internal/jira"
	"github.com/jlucaspains/sprintlens/internal/metrics"
	"github.com/jlucaspains/sprintlens/internal/models"
	"github.com/jlucaspains/sprintlens/internal/server"
)

var (
	// Version information - set by build flags
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	// CLI flags
	configFile   string
	projectName  string
	verbose      bool
	outputFormat string
	outputFile   string
	refresh      bool
	showTimings  bool
	reportFile   string
	sprintName   string
	sprintFilter string
	developers   []string
	issueTypes   []string
	showSubtasks bool
	showBugs     bool
	listenAddr   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sprintlens",
	Short: "Sprint and delivery metrics from Jira",
	Long: `A command-line tool that reads issues and sprints from a Jira board and
derives sprint and delivery metrics from them.

It paginates through the Jira search API, reconstructs how long every issue
spent in each status from its changelog, reconciles developer names and
computes burndown, throughput, lead time, cycle time and per-developer
summaries. Results are printed as text, CSV or JSON, or served over HTTP.`,
	SilenceUsage: true,
}

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List every issue of the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			rows, err := a.reports.Issues(ctx)
			if err != nil {
				return nil, err
			}
			return export.IssuesTable(rows), nil
		})
	},
}

var sprintsCmd = &cobra.Command{
	Use:   "sprints",
	Short: "Analyze sprint dates, delays and working days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			analysis, err := a.reports.Sprints(ctx)
			if err != nil {
				return nil, err
			}
			return export.SprintDatesTable(analysis), nil
		})
	},
}

var burndownCmd = &cobra.Command{
	Use:   "burndown",
	Short: "Show the burndown of the active sprint or of --sprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			burndown, err := a.reports.Burndown(ctx, sprintName)
			if err != nil {
				return nil, err
			}
			return export.BurndownTable(burndown), nil
		})
	},
}

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Analyze delivered issues per developer, type and day",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			stats, err := a.reports.Deliveries(ctx, metrics.DeliveryFilter{
				Sprint:     sprintName,
				Developers: developers,
				Types:      issueTypes,
			})
			if err != nil {
				return nil, err
			}
			return export.DeliveriesTable(stats), nil
		})
	},
}

var performanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Summarize estimated, spent and development hours per developer",
	Long: `Summarize the time accounting of every developer in a sprint.

Issues are read from the sprints matching --filter together with their status
history. The most recent sprint is used unless --sprint is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			sprint, summary, err := a.reports.Performance(ctx, sprintFilter, sprintName)
			if err != nil {
				return nil, err
			}
			return export.PerformanceTable(sprint, summary), nil
		})
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Compute throughput, lead time, cycle time and cumulative flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			project, err := a.reports.ProjectMetrics(ctx, sprintFilter)
			if err != nil {
				return nil, err
			}
			return export.ProjectTable(project), nil
		})
	},
}

var transitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "List sprint issues with the hours spent in each status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			table, err := a.reports.Transitions(ctx, sprintFilter)
			if err != nil {
				return nil, err
			}
			return export.TransitionsTable(table), nil
		})
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Count issues per type",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(func(ctx context.Context, a *app) (*export.Table, error) {
			developer := ""
			if len(developers) > 0 {
				developer = developers[0]
			}
			overview, err := a.reports.Overview(ctx, metrics.OverviewFilter{
				Developer:    developer,
				Sprint:       sprintName,
				ShowSubtasks: showSubtasks,
				ShowBugs:     showBugs,
			})
			if err != nil {
				return nil, err
			}
			return export.OverviewTable(overview), nil
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the computed tables as a JSON API",
	RunE:  runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing configuration files and settings.",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Long:  "Create a new configuration file with default settings and examples.",
	RunE:  initConfig,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and connections",
	Long:  "Validate the configuration file and test the connection to every configured Jira board.",
	RunE:  validateConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version, commit, and build time of the application.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sprintlens version %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Built: %s\n", BuildTime)
	},
}

func init() {
	// Root command flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "Configured project to report on (default: jira.default_project)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	reportCmds := []*cobra.Command{issuesCmd, sprintsCmd, burndownCmd, deliveriesCmd, performanceCmd, projectCmd, transitionsCmd, overviewCmd}
	for _, cmd := range reportCmds {
		cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text, csv or json")
		cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the table to a file instead of stdout")
		cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore cached results and read Jira again")
		cmd.Flags().BoolVar(&showTimings, "timings", false, "Print how long every Jira fetch took")
		cmd.Flags().StringVar(&reportFile, "report", "", "Output file for the ingestion report")
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{burndownCmd, deliveriesCmd, performanceCmd, overviewCmd} {
		cmd.Flags().StringVarP(&sprintName, "sprint", "s", "", "Sprint name")
	}
	for _, cmd := range []*cobra.Command{performanceCmd, projectCmd, transitionsCmd} {
		cmd.Flags().StringVar(&sprintFilter, "filter", "", "Sprint name filter (default: jira.sprint_filter)")
	}
	deliveriesCmd.Flags().StringSliceVarP(&developers, "developer", "d", nil, "Developers to include")
	deliveriesCmd.Flags().StringSliceVarP(&issueTypes, "type", "t", nil, "Issue types to include")
	overviewCmd.Flags().StringSliceVarP(&developers, "developer", "d", nil, "Developer to count issues for")
	overviewCmd.Flags().BoolVar(&showSubtasks, "subtasks", false, "Include subtasks")
	overviewCmd.Flags().BoolVar(&showBugs, "bugs", false, "Include the bug subtask count")

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default: server.addr)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
	configCmd.AddCommand(configInitCmd)
}

type reportFunc func(ctx context.Context, a *app) (*export.Table, error)

func runReport(build reportFunc) error {
	logger := setupLogger()

	format, err := export.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	a, err := newApp(configFile, projectName, logger)
	if err != nil {
		return err
	}

	if refresh {
		a.reports.Refresh()
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	table, err := build(ctx, a)
	if err != nil {
		return err
	}

	if len(table.Rows) == 0 {
		logger.Info("No data found", "project", a.reports.Project())
	}

	if outputFile != "" {
		if err := export.WriteFile(outputFile, format, table); err != nil {
			return err
		}
		logger.Info("✓ Table written", "path", outputFile, "rows", len(table.Rows))
	} else if err := export.Write(os.Stdout, format, table); err != nil {
		return err
	}

	if report := a.engine.Report(); report != nil {
		printIngestSummary(report, logger)
		if reportFile != "" {
			if err := a.engine.SaveReport(reportFile); err != nil {
				logger.Warn("Failed to save report", "error", err)
			}
		}
	}

	if showTimings {
		return export.Write(os.Stderr, export.FormatText, export.TimingsTable(a.reports.Timings()))
	}
	return nil
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	a, err := newApp(configFile, projectName, logger)
	if err != nil {
		return err
	}

	serverConfig := a.config.Server
	if listenAddr != "" {
		serverConfig.Addr = listenAddr
	}

	srv, err := server.NewServer(&serverConfig, a.reports, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	return srv.Run(ctx)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	// Load configuration
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info("Configuration file is valid")

	ctx := context.Background()
	for _, name := range cfg.ProjectNames() {
		project, err := cfg.Project(name)
		if err != nil {
			return err
		}

		client, err := jira.NewClient(project, cfg.Jira.Timeout, logger)
		if err != nil {
			return fmt.Errorf("failed to create Jira client for %s: %w", name, err)
		}
		if err := client.TestConnection(ctx, project.BoardID); err != nil {
			return fmt.Errorf("jira connection failed for %s: %w", name, err)
		}
		logger.Info("✓ Connection successful", "project", name, "board", project.BoardID)
	}

	logger.Info("✓ Configuration is valid and ready for reporting")

	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	configPath := configFile
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		logger.Warn("Configuration file already exists", "path", configPath)
		fmt.Print("Do you want to overwrite it? (y/N): ")
		var response string
		_, err := fmt.Scanln(&response)

		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if response != "y" && response != "Y" {
			logger.Info("Configuration initialization cancelled")
			return nil
		}
	}

	if err := config.SaveConfig(createDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	logger.Info("✓ Configuration file created", "path", configPath)
	logger.Info("Please edit the configuration file with your Jira site, board and credentials")

	return nil
}

func createDefaultConfig() *config.Config {
	return &config.Config{
		Jira: config.JiraConfig{
			DefaultProject: "main",
			Projects: map[string]config.ProjectConfig{
				"main": {
					BaseURL:  "https://your-site.atlassian.net",
					BoardID:  1,
					Email:    "you@example.com",
					APIToken: "your-api-token",
				},
			},
			SprintFilter: "Sprint",
			PageSize:     100,
			PageDelay:    120 * time.Millisecond,
		},
		Metrics: config.MetricsConfig{
			HoursPerDay:         7,
			BurndownHoursPerDay: 8,
			DoneStatuses:        []string{"DONE", "APROVADO", "CONCLUIDO", "FINALIZADO"},
			DoneCategory:        "Done",
			DeliveredTerms:      []string{"concluído", "fechado", "aprovado", "resolvido"},
			ExtraWorkMarker:     "extra",
			DevelopmentStatus:   "EM DESENVOLVIMENTO",
			UnassignedLabel:     "Não atribuído",
			BugMarkers:          []string{"bug", "defeito", "comportamento"},
			HolidayRegion:       "BR-SP",
			TimeZone:            "America/Sao_Paulo",
			ActiveSprintMarker:  "Sprint",
			ExcludedDevelopers:  []string{},
		},
		Cache: config.CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Server: config.ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
	}
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{}

	if verbose {
		opts.Level = slog.LevelDebug
	} else {
		opts.Level = slog.LevelInfo
	}

	// stdout carries the rendered tables
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)

	return logger
}

func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Warn("Received interrupt signal, shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func printIngestSummary(report *models.IngestReport, logger *slog.Logger) {
	logger.Info("=== Ingestion Summary ===")
	logger.Info("Ingestion results",
		"operation", report.Operation,
		"pages", report.Pages,
		"issues", report.TotalIssues,
		"sprints", report.Sprints,
		"enriched", report.EnrichedCount,
		"skipped", report.SkippedCount,
		"duration", report.Duration())

	if len(report.Errors) > 0 {
		logger.Warn("Errors encountered:")
		for _, err := range report.Errors {
			logger.Warn("Error", "message", err)
		}
	}
}
