package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/finboard/finboard/internal/model"
)

// Unmatched-row policies.
const (
	UnmatchedInclude = "include"
	UnmatchedDrop    = "drop"
)

// Environment variables that override the file.
const (
	EnvAPIURL   = "FINBOARD_API_URL"
	EnvAPIToken = "FINBOARD_API_TOKEN"
	EnvLogLevel = "FINBOARD_LOG_LEVEL"
)

// FileName is the default config file name.
const FileName = "finboard.yaml"

// Config represents the top-level finboard.yaml configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Import ImportConfig `yaml:"import"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// APIConfig locates the finance backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// ImportConfig holds the defaults of an import run.
type ImportConfig struct {
	PageSize                int    `yaml:"page_size"`
	PaymentTypeID           int    `yaml:"payment_type_id"` // 0 = unknown partition
	BudgetItemID            int    `yaml:"budget_item_id,omitempty"`
	UpdateTaxesOnUpsert     bool   `yaml:"update_taxes_on_upsert"`
	AllowNegativeAdjustment bool   `yaml:"allow_negative_adjustment"`
	UnmatchedRows           string `yaml:"unmatched_rows"` // include | drop
	MaxRetries              int    `yaml:"max_retries"`
	ImportDir               string `yaml:"import_dir"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level     string `yaml:"level"`
	ImportLog string `yaml:"import_log"`
}

// ServerConfig configures the reference backend started by `finboard serve`.
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	PreviewTTL time.Duration `yaml:"preview_ttl"`
	Sweep      string        `yaml:"sweep"` // cron spec for expiring previews
}

// CommitOptions returns the batch defaults sent with every commit.
func (c ImportConfig) CommitOptions() model.CommitOptions {
	return model.CommitOptions{
		PaymentTypeID:           c.PaymentTypeID,
		BudgetItemID:            c.BudgetItemID,
		UpdateTaxesOnUpsert:     c.UpdateTaxesOnUpsert,
		AllowNegativeAdjustment: c.AllowNegativeAdjustment,
	}
}

// Load reads a finboard.yaml file from disk. Fields missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api/",
			Timeout: 30 * time.Second,
		},
		Import: ImportConfig{
			PageSize:      50,
			UnmatchedRows: UnmatchedInclude,
			MaxRetries:    3,
			ImportDir:     "import",
		},
		Log: LogConfig{
			Level:     "info",
			ImportLog: "logs/import-log.csv",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			PreviewTTL: time.Hour,
			Sweep:      "@every 5m",
		},
	}
}

// ApplyEnv overlays environment settings onto cfg. Values come from envFile
// (a dotenv file, skipped when missing) and the process environment, which
// takes precedence.
func ApplyEnv(cfg *Config, envFile string) error {
	vals := map[string]string{}
	if envFile != "" {
		fileVals, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", envFile, err)
		}
		for k, v := range fileVals {
			vals[k] = v
		}
	}
	for _, k := range []string{EnvAPIURL, EnvAPIToken, EnvLogLevel} {
		if v, ok := os.LookupEnv(k); ok {
			vals[k] = v
		}
	}

	if v := vals[EnvAPIURL]; v != "" {
		cfg.API.BaseURL = v
	}
	if v := vals[EnvAPIToken]; v != "" {
		cfg.API.Token = v
	}
	if v := vals[EnvLogLevel]; v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("api.timeout must not be negative"))
	}
	if c.Import.PageSize <= 0 || c.Import.PageSize > 500 {
		errs = append(errs, fmt.Errorf("import.page_size %d out of range 1..500", c.Import.PageSize))
	}
	if c.Import.PaymentTypeID < 0 {
		errs = append(errs, errors.New("import.payment_type_id must not be negative"))
	}
	switch strings.ToLower(c.Import.UnmatchedRows) {
	case UnmatchedInclude, UnmatchedDrop:
	default:
		errs = append(errs, fmt.Errorf("import.unmatched_rows %q must be %q or %q",
			c.Import.UnmatchedRows, UnmatchedInclude, UnmatchedDrop))
	}
	if c.Import.MaxRetries < 0 {
		errs = append(errs, errors.New("import.max_retries must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}
