package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/semlayer/semlayer/internal/constants"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "config.yaml"

// ErrMissingCredentials is returned when no SQL Server login is configured.
var ErrMissingCredentials = errors.New("SQL Server credentials not found; set SQL_SERVER_USERNAME and SQL_SERVER_PASSWORD or add them to the config file")

type SQLServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port" validate:"gte=1,lte=65535"`
	Database               string `yaml:"database"`
	Username               string `yaml:"username,omitempty"`
	Password               string `yaml:"password,omitempty"`
	Schema                 string `yaml:"schema" validate:"required"`
	Encrypt                string `yaml:"encrypt,omitempty" validate:"omitempty,oneof=true false disable strict"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate"`
	AppName                string `yaml:"app_name,omitempty"`
	ConnectTimeoutSeconds  int    `yaml:"connect_timeout_seconds" validate:"gte=0"`
}

type DuckDBConfig struct {
	DatabasePath string   `yaml:"database_path" validate:"required"`
	MemoryLimit  string   `yaml:"memory_limit"`
	Threads      int      `yaml:"threads" validate:"gte=1"`
	Extensions   []string `yaml:"extensions"`
}

// DateFilter restricts an extracted table to the last Days days of Column.
type DateFilter struct {
	Column string `yaml:"column" validate:"required"`
	Days   int    `yaml:"days" validate:"gte=1"`
}

type SyncConfig struct {
	Tables          []string              `yaml:"tables,omitempty"`
	BatchSize       int                   `yaml:"batch_size" validate:"gte=1"`
	ActivityLogDays int                   `yaml:"activity_log_days" validate:"gte=0"`
	DateFilters     map[string]DateFilter `yaml:"date_filters,omitempty" validate:"dive"`
}

type ModelsConfig struct {
	Dir    string   `yaml:"dir" validate:"required"`
	Layers []string `yaml:"layers" validate:"min=1,dive,required"`
}

type DashboardConfig struct {
	Addr            string `yaml:"addr" validate:"required"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" validate:"gte=0"`
	RowLimit        int    `yaml:"row_limit" validate:"gte=1,lte=100000"`
	AllowAdhocSQL   bool   `yaml:"allow_adhoc_sql"`
}

type LLMConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider" validate:"required"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

type Config struct {
	SQLServer SQLServerConfig `yaml:"sql_server"`
	DuckDB    DuckDBConfig    `yaml:"duckdb"`
	Sync      SyncConfig      `yaml:"sync"`
	Models    ModelsConfig    `yaml:"models"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	LLM       LLMConfig       `yaml:"llm"`

	path string
}

var validate = validator.New()

// Default returns a config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		SQLServer: SQLServerConfig{
			Host:                  "localhost",
			Port:                  1433,
			Schema:                "dbo",
			AppName:               "semlayer",
			ConnectTimeoutSeconds: 30,
		},
		DuckDB: DuckDBConfig{
			DatabasePath: "hrmsdb.duckdb",
			MemoryLimit:  "4GB",
			Threads:      4,
			Extensions:   []string{"fts", "excel", "vss", "httpfs"},
		},
		Sync: SyncConfig{
			BatchSize:       10000,
			ActivityLogDays: 30,
		},
		Models: ModelsConfig{
			Dir:    "models",
			Layers: []string{"staging", "business", "metrics"},
		},
		Dashboard: DashboardConfig{
			Addr:            "127.0.0.1:8501",
			CacheTTLSeconds: 300,
			RowLimit:        500,
			AllowAdhocSQL:   true,
		},
		LLM: LLMConfig{
			Enabled:        true,
			Provider:       string(constants.ProviderOllama),
			TimeoutSeconds: 120,
		},
	}
}

// Load reads the config file at path, layering .env and environment
// overrides on top. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// .env values win over the inherited environment
	if err := godotenv.Overload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SEMLAYER_DUCKDB_PATH"); v != "" {
		c.DuckDB.DatabasePath = v
	}
	if v := os.Getenv("SQL_SERVER_HOST"); v != "" {
		c.SQLServer.Host = v
	}
	if v := os.Getenv("SQL_SERVER_DATABASE"); v != "" {
		c.SQLServer.Database = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && c.LLM.Provider == string(constants.ProviderOllama) {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			v = "http://" + v
		}
		c.LLM.BaseURL = v
	}
}

// applyProviderDefaults fills the model and base URL the provider ships with.
func (c *Config) applyProviderDefaults() {
	provider := constants.Provider(strings.ToLower(c.LLM.Provider))
	if c.LLM.Model == "" {
		c.LLM.Model = constants.GetDefaultModel(provider)
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = constants.GetDefaultBaseURL(provider)
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !constants.IsKnownProvider(c.LLM.Provider) {
		return fmt.Errorf("invalid config: unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Credentials returns the SQL Server login, preferring the environment.
func (c *Config) Credentials() (string, string, error) {
	username := os.Getenv("SQL_SERVER_USERNAME")
	if username == "" {
		username = c.SQLServer.Username
	}
	password := os.Getenv("SQL_SERVER_PASSWORD")
	if password == "" {
		password = c.SQLServer.Password
	}
	if username == "" || password == "" {
		return "", "", ErrMissingCredentials
	}
	return username, password, nil
}

// GetAPIKey returns the API key for an LLM provider, falling back to its
// conventional environment variable.
func (c *Config) GetAPIKey(provider string) string {
	if c.LLM.APIKey != "" && strings.EqualFold(c.LLM.Provider, provider) {
		return c.LLM.APIKey
	}
	info := constants.GetProviderInfo(constants.Provider(provider))
	if info == nil || info.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(info.APIKeyEnv)
}

// CacheTTL returns the dashboard query cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Dashboard.CacheTTLSeconds) * time.Second
}

// LLMTimeout returns the per-request model timeout; zero means none.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// WriteDefault writes a default config file to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	cfg := Default()
	cfg.applyProviderDefaults()
	cfg.SQLServer.Database = "HRMS"
	cfg.Sync.Tables = []string{"Activity_Log", "CRMC_PayrollFile"}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
