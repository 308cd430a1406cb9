package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/chorus/internal/config"
	"github.com/nupi-ai/chorus/internal/models"
)

func TestDaemonWiresCollaboratorsIntoCore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfg := filepath.Join(dir, "config.yaml")
	body := `
output:
  silence: false
devices:
  pair_store: ` + filepath.Join(dir, "pairs.db") + `
backends:
  - name: local
    schemes: [file, local]
    playback: true
  - name: stream
    schemes: [http]
    playback: true
services:
  - name: web
    public: true
    enabled: true
device_managers:
  - types: [dummy, bt]
`
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))

	settings, err := config.Load(cfg, "test")
	require.NoError(t, err)
	paths, err := config.EnsureInstanceDirs("test")
	require.NoError(t, err)

	ctx := context.Background()
	d, err := newDaemon(ctx, settings, paths)
	require.NoError(t, err)
	require.NoError(t, d.host.Start(ctx))

	assert.Equal(t, []string{"pipeline", "backend/local", "backend/stream", "service/web", "device/0", "core"}, d.host.Names())

	schemes, err := d.core.URISchemes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"file", "http", "local"}, schemes)
	assert.Equal(t, []string{"web"}, d.core.Service.Public())
	assert.Equal(t, models.ServiceStarted, mustState(t, d, "web"))
	assert.True(t, d.core.Output().HasDrain())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.host.Stop(stopCtx))
	d.close()
	assert.FileExists(t, filepath.Join(dir, "pairs.db"))
}

func mustState(t *testing.T, d *daemon, name string) models.ServiceState {
	t.Helper()
	state, err := d.core.Service.State(context.Background(), name)
	require.NoError(t, err)
	return state
}

func TestDaemonRejectsUnknownCorePolicy(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	settings, err := config.Load("", "test")
	require.NoError(t, err)
	settings.Events.CorePolicy = "block"

	_, err = newDaemon(context.Background(), settings, config.GetInstancePaths("test"))
	require.ErrorContains(t, err, "unknown delivery strategy")
}
