package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDatabase, EnvTenant, EnvLogLevel, EnvLogFile} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	orig := dotEnvFile
	dotEnvFile = filepath.Join(t.TempDir(), "missing.env")
	t.Cleanup(func() { dotEnvFile = orig })
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "fieldsync.db", c.DatabasePath)
	assert.Equal(t, 500, c.BatchThreshold)
	assert.Equal(t, 100, c.DirectBatchSize)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, 3, c.MaxRetries)
}

func TestLoad_JSONFile(t *testing.T) {
	isolateEnv(t)

	body, err := json.Marshal(map[string]any{
		"database_path":   "agent.db",
		"default_tenant":  "main",
		"request_timeout": "10s",
		"batch_threshold": 50,
		"tenants": []map[string]any{
			{"id": "main", "base_url": "http://srv", "username": "agent", "password": "pw"},
		},
	})
	require.NoError(t, err)

	cfg, err := Load(writeTemp(t, "cfg.json", string(body)))
	require.NoError(t, err)

	assert.Equal(t, "agent.db", cfg.DatabasePath)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 50, cfg.BatchThreshold)
	assert.Equal(t, 100, cfg.DirectBatchSize, "untouched values keep defaults")

	tc, err := cfg.Tenant("")
	require.NoError(t, err)
	want := TenantConfig{ID: "main", Format: FormatHTTP, BaseURL: "http://srv", UserID: "agent", Username: "agent", Password: "pw"}
	assert.Empty(t, cmp.Diff(want, tc))
}

func TestLoad_YAMLFile(t *testing.T) {
	isolateEnv(t)

	path := writeTemp(t, "cfg.yaml", `
database_path: y.db
retry_base_delay: 50ms
tenants:
  - id: legacy
    format: dir
    exchange_dir: /tmp/exchange
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "y.db", cfg.DatabasePath)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryBaseDelay)
	require.NoError(t, cfg.Validate())

	tc, err := cfg.Tenant("legacy")
	require.NoError(t, err)
	assert.Equal(t, FormatDir, tc.Format)
}

func TestLoad_InvalidFile(t *testing.T) {
	isolateEnv(t)

	_, err := Load(writeTemp(t, "bad.json", `{ not json`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoad_EnvironmentAndDotEnv(t *testing.T) {
	isolateEnv(t)
	dotEnvFile = writeTemp(t, ".env", "FIELDSYNC_LOG_LEVEL=debug\nFIELDSYNC_DB=from-dotenv.db\n")
	t.Setenv(EnvDatabase, "from-env.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DatabasePath, "process environment wins over .env")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestOverrides_Apply(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	var o Overrides
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &o)
	require.NoError(t, fs.Parse([]string{"--db", "cli.db", "-t", "second"}))
	o.Apply(cfg)

	assert.Equal(t, "cli.db", cfg.DatabasePath)
	assert.Equal(t, "second", cfg.DefaultTenant)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.Tenants = []TenantConfig{
		{ID: "a", BaseURL: "http://a"},
		{ID: "a", BaseURL: "http://b"},
		{ID: "f", Format: FormatFTP},
		{ID: "x", Format: "carrier-pigeon"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate tenant "a"`)
	assert.Contains(t, err.Error(), "ftp_addr is required")
	assert.Contains(t, err.Error(), "unknown format")
}

func TestTenant_Unknown(t *testing.T) {
	cfg := &Config{Tenants: []TenantConfig{{ID: "a"}, {ID: "b"}}}
	_, err := cfg.Tenant("")
	require.Error(t, err)
	_, err = cfg.Tenant("c")
	require.Error(t, err)
}
