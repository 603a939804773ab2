package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jlucaspains/sprintlens/internal/apperrors"
)

// Config represents the application configuration
type Config struct {
	Jira    JiraConfig    `mapstructure:"jira" yaml:"jira"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// JiraConfig contains the Jira projects and request settings
type JiraConfig struct {
	DefaultProject string                   `mapstructure:"default_project" yaml:"default_project"`
	Projects       map[string]ProjectConfig `mapstructure:"projects"`
	SprintFilter   string                   `mapstructure:"sprint_filter" yaml:"sprint_filter"`
	PageSize       int                      `mapstructure:"page_size" yaml:"page_size"`
	PageDelay      time.Duration            `mapstructure:"page_delay" yaml:"page_delay"`
	Timeout        time.Duration            `mapstructure:"timeout"`
}

// ProjectConfig contains the connection settings of one Jira board
type ProjectConfig struct {
	BaseURL             string `mapstructure:"base_url" yaml:"base_url"`
	BoardID             int    `mapstructure:"board_id" yaml:"board_id"`
	Email               string `mapstructure:"email"`
	APIToken            string `mapstructure:"api_token" yaml:"api_token"`
	PersonalAccessToken string `mapstructure:"personal_access_token" yaml:"personal_access_token"` // Jira Data Center
	SprintField         string `mapstructure:"sprint_field" yaml:"sprint_field"`
}

// MetricsConfig holds every policy the metrics depend on
type MetricsConfig struct {
	HoursPerDay         float64  `mapstructure:"hours_per_day" yaml:"hours_per_day"`
	BurndownHoursPerDay float64  `mapstructure:"burndown_hours_per_day" yaml:"burndown_hours_per_day"`
	DoneStatuses        []string `mapstructure:"done_statuses" yaml:"done_statuses"`
	DoneCategory        string   `mapstructure:"done_category" yaml:"done_category"`
	DeliveredTerms      []string `mapstructure:"delivered_terms" yaml:"delivered_terms"`
	ExtraWorkMarker     string   `mapstructure:"extra_work_marker" yaml:"extra_work_marker"`
	DevelopmentStatus   string   `mapstructure:"development_status" yaml:"development_status"`
	UnassignedLabel     string   `mapstructure:"unassigned_label" yaml:"unassigned_label"`
	BugMarkers          []string `mapstructure:"bug_markers" yaml:"bug_markers"`
	HolidayRegion       string   `mapstructure:"holiday_region" yaml:"holiday_region"`
	TimeZone            string   `mapstructure:"time_zone" yaml:"time_zone"`
	ActiveSprintMarker  string   `mapstructure:"active_sprint_marker" yaml:"active_sprint_marker"`
	ExcludedDevelopers  []string `mapstructure:"excluded_developers" yaml:"excluded_developers"`
}

// CacheConfig controls the in-process result cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ServerConfig controls the HTTP dashboard API
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	RefreshCron string `mapstructure:"refresh_cron" yaml:"refresh_cron"`
	Mode        string `mapstructure:"mode"`
}

// LoadConfig loads configuration from a .env file, the config file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is fine; credentials may come from the real environment.
	_ = godotenv.Load()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("$HOME/.sprintlens")
	}

	viper.SetEnvPrefix("SPRINTLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("jira.sprint_filter", "Sprint")
	viper.SetDefault("jira.page_size", 100)
	viper.SetDefault("jira.page_delay", 120*time.Millisecond)
	viper.SetDefault("jira.timeout", 0)

	viper.SetDefault("metrics.hours_per_day", 7)
	viper.SetDefault("metrics.burndown_hours_per_day", 8)
	viper.SetDefault("metrics.done_statuses", []string{"DONE", "APROVADO", "CONCLUIDO", "FINALIZADO"})
	viper.SetDefault("metrics.done_category", "Done")
	viper.SetDefault("metrics.delivered_terms", []string{"concluído", "fechado", "aprovado", "resolvido"})
	viper.SetDefault("metrics.extra_work_marker", "extra")
	viper.SetDefault("metrics.development_status", "EM DESENVOLVIMENTO")
	viper.SetDefault("metrics.unassigned_label", "Não atribuído")
	viper.SetDefault("metrics.bug_markers", []string{"bug", "defeito", "comportamento"})
	viper.SetDefault("metrics.holiday_region", "BR-SP")
	viper.SetDefault("metrics.time_zone", "America/Sao_Paulo")
	viper.SetDefault("metrics.active_sprint_marker", "Sprint")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", 10*time.Minute)

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.mode", "release")
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if len(config.Jira.Projects) == 0 {
		return apperrors.Configuration("jira.projects must contain at least one project")
	}

	if config.Jira.DefaultProject != "" {
		if _, ok := config.Jira.Projects[config.Jira.DefaultProject]; !ok {
			return apperrors.Configuration("jira.default_project %q is not configured", config.Jira.DefaultProject)
		}
	}

	if config.Jira.PageSize <= 0 {
		return apperrors.Configuration("jira.page_size must be greater than 0")
	}

	if config.Metrics.HoursPerDay <= 0 || config.Metrics.BurndownHoursPerDay <= 0 {
		return apperrors.Configuration("metrics hours per day must be greater than 0")
	}

	if _, err := time.LoadLocation(config.Metrics.TimeZone); err != nil {
		return apperrors.Configuration("metrics.time_zone: %v", err)
	}

	return nil
}

// ProjectNames returns the configured project names, sorted
func (c *Config) ProjectNames() []string {
	names := make([]string, 0, len(c.Jira.Projects))
	for name := range c.Jira.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project selects a project by name, falling back to the default project or
// the only configured one. Credentials are validated before any network call.
func (c *Config) Project(name string) (*ProjectConfig, error) {
	if name == "" {
		name = c.Jira.DefaultProject
	}
	if name == "" && len(c.Jira.Projects) == 1 {
		name = c.ProjectNames()[0]
	}
	if name == "" {
		return nil, apperrors.Configuration("no project selected, choose one of %s", strings.Join(c.ProjectNames(), ", "))
	}

	project, ok := c.Jira.Projects[name]
	if !ok {
		return nil, apperrors.Configuration("project %q is not configured", name)
	}

	if err := project.Validate(name); err != nil {
		return nil, err
	}
	return &project, nil
}

// Validate checks that a project can be used to reach Jira
func (p *ProjectConfig) Validate(name string) error {
	if p.BaseURL == "" {
		return apperrors.Configuration("jira.projects.%s.base_url is required", name)
	}

	if p.BoardID <= 0 {
		return apperrors.Configuration("jira.projects.%s.board_id must be greater than 0", name)
	}

	if p.PersonalAccessToken == "" && (p.Email == "" || p.APIToken == "") {
		return apperrors.Configuration("credentials (email and api_token, or personal_access_token) not found for project %s", name)
	}

	return nil
}

// AuthorizationHeader builds the Basic header from the email/token pair
func (p *ProjectConfig) AuthorizationHeader() string {
	if p.Email == "" || p.APIToken == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(p.Email+":"+p.APIToken))
}

// Location returns the configured reporting time zone
func (m *MetricsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(m.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SaveConfig saves the current configuration to a file
func SaveConfig(config *Config, configPath string) error {
	viper.Set("jira", config.Jira)
	viper.Set("metrics", config.Metrics)
	viper.Set("cache", config.Cache)
	viper.Set("server", config.Server)

	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return viper.WriteConfigAs(configPath)
}
