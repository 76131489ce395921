package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	dir      string
	exchange string
	config   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	for _, k := range []string{config.EnvDatabase, config.EnvTenant, config.EnvLogLevel, config.EnvLogFile} {
		t.Setenv(k, "")
	}
	old := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = old })

	dir := t.TempDir()
	e := &env{dir: dir, exchange: filepath.Join(dir, "exchange"), config: filepath.Join(dir, "fieldsync.yaml")}
	require.NoError(t, os.MkdirAll(filepath.Join(e.exchange, "in"), 0o755))

	yaml := fmt.Sprintf(`database_path: %s
log_level: error
tenants:
  - id: shop
    format: dir
    exchange_dir: %s
`, filepath.Join(dir, "local.db"), e.exchange)
	require.NoError(t, os.WriteFile(e.config, []byte(yaml), 0o600))
	return e
}

func (e *env) put(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.exchange, "in", name), []byte(body), 0o644))
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"-c", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncAndStatus(t *testing.T) {
	e := newEnv(t)
	e.put(t, "goods.json", `{"data":[{"guid":"g1","description":"Tea"},{"guid":"g2","description":"Milk"}]}`)
	e.put(t, "clients.json", `{"data":[{"guid":"c1","description":"Corner shop"}]}`)

	out, err := e.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "never synchronized")

	out, err = e.run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "tenant")
	assert.Regexp(t, `goods\s+2`, out)
	assert.Regexp(t, `clients\s+1`, out)

	out, err = e.run(t, "status")
	require.NoError(t, err)
	assert.Regexp(t, `goods\s+2`, out)
	assert.Contains(t, out, "last session")
	assert.Regexp(t, `pending documents\s+0`, out)
}

func TestSend(t *testing.T) {
	e := newEnv(t)
	e.put(t, "goods.json", `{"data":[{"guid":"g1"}]}`)

	out, err := e.run(t, "send")
	require.NoError(t, err)
	assert.Contains(t, out, "SEND_ONLY")
	assert.NotContains(t, out, "goods")
}

func TestConfirmUnsupportedByExchange(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "confirm", "o1", "7")
	require.ErrorIs(t, err, common.ErrUnsupported)

	_, err = e.run(t, "confirm", "--kind", "invoice", "o1", "7")
	require.Error(t, err)

	_, err = e.run(t, "confirm", "o1")
	require.Error(t, err)
}

func TestContentNotFound(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "content", "c1", "D1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestMigrateTenant(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "migrate-tenant")
	require.NoError(t, err)
	assert.Equal(t, "0 rows assigned to shop\n", out)
}

func TestUnknownTenant(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "--tenant", "other", "status")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.config, []byte("tenants:\n  - id: x\n    format: carrier-pigeon\n"), 0o600))
	_, err := e.run(t, "status")
	require.ErrorContains(t, err, "invalid config")
}

func TestHelpNeedsNoConfig(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"help"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "migrate-tenant")
}
