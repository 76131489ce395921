package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, StoragePostgres, c.Storage)
	assert.Equal(t, 30*time.Minute, c.TokenValidity)
	assert.Equal(t, 500, c.PageSize)
	require.NoError(t, c.Validate())
}

func TestParseFlags(t *testing.T) {
	c := defaults()
	err := parseFlags(c, []string{
		"-a", "127.0.0.1:9090", "-m", "memory", "-d", "db", "-s", "secret", "-t", "5", "-n", "50",
		"-f", "seed.json", "-l", "debug", "-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1",
		"-e", "http://endpoint", "-x", "ignored",
	})
	require.NoError(t, err)

	want := &Config{
		Addr: "127.0.0.1:9090", Storage: StorageMemory, DatabaseDSN: "db", SecretKey: "secret",
		TokenValidity: 5 * time.Minute, PageSize: 50, SeedFile: "seed.json", LogLevel: "debug",
		S3User: "user", S3Password: "password", S3Bucket: "bucket", S3Region: "us-west-1", S3BaseEndpoint: "http://endpoint",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	require.Error(t, parseFlags(defaults(), []string{"-n", "many"}))
}

func TestLoadConfig_Precedence(t *testing.T) {
	t.Setenv(flagx.ConfigFileEnv, "")
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"addr": ":9000", "storage": "memory", "token_validity": "2m", "page_size": 10, "s3_bucket": "docs"
	}`), 0o600))

	c, err := LoadConfig([]string{"-c", path, "-n", "20"})
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, StorageMemory, c.Storage)
	assert.Equal(t, 2*time.Minute, c.TokenValidity)
	assert.Equal(t, 20, c.PageSize, "flags win over the file")
	assert.Equal(t, "docs", c.S3Bucket)
	assert.Equal(t, "secretKey", c.SecretKey, "unset fields keep defaults")
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv(flagx.ConfigFileEnv, "")
	dir := t.TempDir()

	_, err := LoadConfig([]string{"-c", filepath.Join(dir, "missing.json")})
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	_, err = LoadConfig([]string{"-c", bad})
	require.Error(t, err)

	_, err = LoadConfig([]string{"-m", "redis"})
	require.ErrorContains(t, err, "storage")

	_, err = LoadConfig([]string{"-n", "0"})
	require.ErrorContains(t, err, "page size")
}
