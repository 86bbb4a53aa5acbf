package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so no stray .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SQL_SERVER_USERNAME", "SQL_SERVER_PASSWORD", "SQL_SERVER_HOST", "SQL_SERVER_DATABASE",
		"SEMLAYER_DUCKDB_PATH", "OLLAMA_HOST", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	chdir(t)
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPath, cfg.Path())
	assert.Equal(t, "hrmsdb.duckdb", cfg.DuckDB.DatabasePath)
	assert.Equal(t, "4GB", cfg.DuckDB.MemoryLimit)
	assert.Equal(t, 4, cfg.DuckDB.Threads)
	assert.Equal(t, []string{"fts", "excel", "vss", "httpfs"}, cfg.DuckDB.Extensions)
	assert.Equal(t, 10000, cfg.Sync.BatchSize)
	assert.Equal(t, 30, cfg.Sync.ActivityLogDays)
	assert.Equal(t, "dbo", cfg.SQLServer.Schema)
	assert.Equal(t, "models", cfg.Models.Dir)
	assert.Equal(t, []string{"staging", "business", "metrics"}, cfg.Models.Layers)
	assert.Equal(t, "127.0.0.1:8501", cfg.Dashboard.Addr)
	assert.Equal(t, 300.0, cfg.CacheTTL().Seconds())
	assert.Equal(t, 500, cfg.Dashboard.RowLimit)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)

	path := filepath.Join(dir, "semlayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sql_server:
  host: sql01
  database: HRMS
duckdb:
  database_path: data/hr.duckdb
  extensions: []
sync:
  tables: [Activity_Log, "CRMC_PayrollFile"]
  date_filters:
    CRMC_PayrollFile:
      column: PayDate
      days: 365
llm:
  provider: gemini
  model: gemini-2.5-pro
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sql01", cfg.SQLServer.Host)
	assert.Equal(t, 1433, cfg.SQLServer.Port)
	assert.Equal(t, "data/hr.duckdb", cfg.DuckDB.DatabasePath)
	assert.Empty(t, cfg.DuckDB.Extensions)
	assert.Equal(t, []string{"Activity_Log", "CRMC_PayrollFile"}, cfg.Sync.Tables)
	assert.Equal(t, DateFilter{Column: "PayDate", Days: 365}, cfg.Sync.DateFilters["CRMC_PayrollFile"])
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.BaseURL)
}

func TestLoadProviderDefaults(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t)
	clearEnv(t)
	t.Setenv("SEMLAYER_DUCKDB_PATH", "/tmp/other.duckdb")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.duckdb", cfg.DuckDB.DatabasePath)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
}

func TestLoadDotEnvOverridesEnvironment(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)
	t.Setenv("SQL_SERVER_USERNAME", "from-env")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SQL_SERVER_USERNAME=from-dotenv\nSQL_SERVER_PASSWORD=secret\n"), 0600))

	cfg, err := Load("")
	require.NoError(t, err)

	user, pass, err := cfg.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", user)
	assert.Equal(t, "secret", pass)
}

func TestCredentials(t *testing.T) {
	chdir(t)
	clearEnv(t)

	cfg := Default()
	_, _, err := cfg.Credentials()
	assert.ErrorIs(t, err, ErrMissingCredentials)

	cfg.SQLServer.Username = "file-user"
	cfg.SQLServer.Password = "file-pass"
	user, pass, err := cfg.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "file-user", user)
	assert.Equal(t, "file-pass", pass)

	t.Setenv("SQL_SERVER_USERNAME", "env-user")
	user, _, err = cfg.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "env-user", user)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.SQLServer.Port = 70000 }},
		{"zero batch", func(c *Config) { c.Sync.BatchSize = 0 }},
		{"zero threads", func(c *Config) { c.DuckDB.Threads = 0 }},
		{"empty database path", func(c *Config) { c.DuckDB.DatabasePath = "" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llamafile" }},
		{"no layers", func(c *Config) { c.Models.Layers = nil }},
		{"filter without column", func(c *Config) {
			c.Sync.DateFilters = map[string]DateFilter{"t": {Days: 3}}
		}},
	}

	assert.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetAPIKey(t *testing.T) {
	chdir(t)
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := Default()
	assert.Equal(t, "sk-env", cfg.GetAPIKey("openai"))
	assert.Equal(t, "", cfg.GetAPIKey("ollama"))

	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-file"
	assert.Equal(t, "sk-file", cfg.GetAPIKey("openai"))
	assert.Equal(t, "", cfg.GetAPIKey("anthropic"))
}

func TestWriteDefault(t *testing.T) {
	dir := chdir(t)
	clearEnv(t)
	path := filepath.Join(dir, "conf", "config.yaml")

	require.NoError(t, WriteDefault(path))
	assert.Error(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "HRMS", cfg.SQLServer.Database)
	assert.Equal(t, []string{"Activity_Log", "CRMC_PayrollFile"}, cfg.Sync.Tables)
}
