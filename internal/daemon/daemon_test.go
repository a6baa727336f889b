package daemon

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telesto-labs/chime/internal/ipc"
	"github.com/telesto-labs/chime/internal/model"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	content := "scheduler:\n  interval_sec: 10\npolicies:\n  - name: urgent\n    tiers:\n      - offset: 5m\n        actions: [message]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Scheduler.IntervalSec)
	// Untouched fields keep their defaults.
	assert.Equal(t, model.DefaultConfig().Dispatch.MaxConcurrent, cfg.Dispatch.MaxConcurrent)
	require.Len(t, cfg.Policies, 1)
	assert.Equal(t, "urgent", cfg.Policies[0].Name)
}

func TestLoadConfigBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("scheduler: ["), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func newTestDaemon(t *testing.T, cfg model.Config) (*Daemon, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	d, err := newDaemon(t.TempDir(), cfg, &buf, io.NopCloser(nil))
	require.NoError(t, err)
	return d, &buf
}

func TestNewDaemonWiresComponents(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Policies = []model.PolicyConfig{{
		Name: "gentle",
		Tiers: []model.TierConfig{
			{Offset: "1h", Period: "5m", Actions: []string{"message"}},
		},
	}}
	d, _ := newTestDaemon(t, cfg)
	defer d.cleanup()

	assert.Contains(t, d.registry.Names(), "default")
	assert.Contains(t, d.registry.Names(), "gentle")
	assert.DirExists(t, d.provider.Dir())

	handlers := d.dispatcher.Handlers()
	assert.Contains(t, handlers, "message")
	assert.Contains(t, handlers, "popup-window")
}

func TestNewDaemonRejectsBadPolicy(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Policies = []model.PolicyConfig{{
		Name: "bad",
		Tiers: []model.TierConfig{
			{Offset: "1h", Actions: []string{"message"}},
			{Offset: "5m", Actions: []string{"message"}},
		},
	}}
	var buf bytes.Buffer
	_, err := newDaemon(t.TempDir(), cfg, &buf, io.NopCloser(nil))
	assert.Error(t, err)
}

func TestDaemonIPCOps(t *testing.T) {
	d, _ := newTestDaemon(t, model.DefaultConfig())
	defer d.cleanup()

	d.registerOps()
	require.NoError(t, d.server.Start())
	defer d.server.Stop()

	client := ipc.NewClient(filepath.Join(d.chimeDir, ipc.DefaultSocketName))

	resp, err := client.SendOp("ping", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	resp, err = client.SendOp("tick", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	resp, err = client.SendOp("action", actionParams{DispatchID: "nope", Key: "done"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ipc.ErrCodeNotFound, resp.Error.Code)

	resp, err = client.SendOp("close", closeParams{DispatchID: "nope"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}
