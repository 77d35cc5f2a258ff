package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const EnvConfigFile = "LEICA_CONFIG_FILE"

type Config struct {
	Workflow WorkflowConfig `yaml:"workflow"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Jobs     JobsConfig     `yaml:"jobs"`
	OSS      OSSConfig      `yaml:"oss"`
	Search   SearchConfig   `yaml:"search"`
	Tracing  TracingConfig  `yaml:"tracing"`
	// SystemToken, when set, authenticates the identity provider as the system.
	SystemToken string `yaml:"system_token"`
	// MachineID feeds the id generator, 0 derives it from the private IPv4 address.
	MachineID uint16 `yaml:"machine_id"`
	LogLevel  string `yaml:"log_level"`
}

type WorkflowConfig struct {
	// SchedulingLeadDays is the minimum distance between now and a proposed
	// shoot time for actors outside the internal group.
	SchedulingLeadDays int `yaml:"scheduling_lead_days"`
	// CancellationWindowDays: customers may cancel only when the shoot is farther away.
	CancellationWindowDays int `yaml:"cancellation_window_days"`
	DeliveryAcceptDays     int `yaml:"delivery_accept_days"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Args   string `yaml:"args"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type JobsConfig struct {
	Enabled            bool   `yaml:"enabled"`
	ReadyForUploadCron string `yaml:"ready_for_upload_cron"`
	AutoAcceptCron     string `yaml:"auto_accept_cron"`
	IndexSyncCron      string `yaml:"index_sync_cron"`
}

type OSSConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

// SearchConfig.URL empty disables the order index.
type SearchConfig struct {
	URL string `yaml:"url"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		Workflow: WorkflowConfig{SchedulingLeadDays: 2, CancellationWindowDays: 1, DeliveryAcceptDays: 7},
		Database: DatabaseConfig{Driver: "sqlite3", Args: "file:leica.db?cache=shared"},
		HTTP:     HTTPConfig{Addr: ":80"},
		Jobs: JobsConfig{
			Enabled:            true,
			ReadyForUploadCron: "*/10 * * * *",
			AutoAcceptCron:     "0 3 * * *",
			IndexSyncCron:      "30 2 * * *",
		},
		OSS:      OSSConfig{Bucket: "leica"},
		LogLevel: "info",
	}
}

// Load applies, in order: defaults, the yaml file named by LEICA_CONFIG_FILE,
// environment overrides.
func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"DB_DRIVER_TYPE":                   &c.Database.Driver,
		"DB_DRIVER_ARGS":                   &c.Database.Args,
		"LEICA_HTTP_ADDR":                  &c.HTTP.Addr,
		"LEICA_LOG_LEVEL":                  &c.LogLevel,
		"LEICA_JOBS_READY_FOR_UPLOAD_CRON": &c.Jobs.ReadyForUploadCron,
		"LEICA_JOBS_AUTO_ACCEPT_CRON":      &c.Jobs.AutoAcceptCron,
		"LEICA_JOBS_INDEX_SYNC_CRON":       &c.Jobs.IndexSyncCron,
		"OSS_ENDPOINT":                     &c.OSS.Endpoint,
		"OSS_ACCESS_KEY":                   &c.OSS.AccessKey,
		"OSS_SECRET_KEY":                   &c.OSS.SecretKey,
		"OSS_BUCKET":                       &c.OSS.Bucket,
		"ELASTICSEARCH_URL":                &c.Search.URL,
		"LEICA_SYSTEM_TOKEN":               &c.SystemToken,
	}
	for key, target := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*target = os.ExpandEnv(v)
		}
	}

	ints := map[string]*int{
		"LEICA_WORKFLOW_SCHEDULING_LEAD_DAYS":     &c.Workflow.SchedulingLeadDays,
		"LEICA_WORKFLOW_CANCELLATION_WINDOW_DAYS": &c.Workflow.CancellationWindowDays,
		"LEICA_WORKFLOW_DELIVERY_ACCEPT_DAYS":     &c.Workflow.DeliveryAcceptDays,
	}
	for key, target := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*target = n
		}
	}

	if v, ok := lookup("LEICA_MACHINE_ID"); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return fmt.Errorf("LEICA_MACHINE_ID: %w", err)
		}
		c.MachineID = uint16(n)
	}

	bools := map[string]*bool{
		"LEICA_JOBS_ENABLED":    &c.Jobs.Enabled,
		"LEICA_TRACING_ENABLED": &c.Tracing.Enabled,
	}
	for key, target := range bools {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*target = b
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Workflow.SchedulingLeadDays < 0 || c.Workflow.CancellationWindowDays < 0 || c.Workflow.DeliveryAcceptDays < 0 {
		return fmt.Errorf("workflow day settings must not be negative")
	}
	if c.SystemToken != "" && len(c.SystemToken) < 16 {
		return fmt.Errorf("system token must have at least 16 characters")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	return nil
}
