package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/service"
	"github.com/asydsolutions/sentinel/internal/statestore"
)

func TestEngine_ControlStartsAndStopsARealProcess(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "svc.pid")
	sentinel := filepath.Join(dir, "running")

	svc := &service.Service{
		Name:    "sleeper",
		Type:    service.TypeProcess,
		PidFile: pidFile,
		Start: &service.Command{
			Argv:    []string{"sh", "-c", "touch " + sentinel + "; echo $$ > " + pidFile + "; exec sleep 30"},
			Timeout: 2 * time.Second,
		},
		Stop: &service.Command{
			Argv:    []string{"sh", "-c", "kill $(cat " + pidFile + ")"},
			Timeout: 2 * time.Second,
		},
	}

	e := New([]*service.Service{svc}, nil, time.Second, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, e.Dispatcher.Control(ctx, "sleeper", service.ActionStart))
	_, err := os.Stat(sentinel)
	assert.NoError(t, err, "start command should have run")
	assert.Equal(t, service.MonitorYes, svc.Monitor)

	require.NoError(t, e.Dispatcher.Control(ctx, "sleeper", service.ActionStop))
	assert.Equal(t, service.MonitorNot, svc.Monitor)
}

func TestEngine_CyclePersistsStateWhenStoreConfigured(t *testing.T) {
	dir := t.TempDir()
	store, err := statestore.Open(context.Background(), statestore.Config{Path: filepath.Join(dir, "state.db")}, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	svc := &service.Service{Name: "svc", Monitor: service.MonitorYes}
	e := New([]*service.Service{svc}, store, time.Second, zerolog.Nop())
	e.Cycle(context.Background())

	reloaded := &service.Service{Name: "svc", Monitor: service.MonitorInit}
	require.NoError(t, store.Load(context.Background(), depgraph.NewTable([]*service.Service{reloaded})))
	assert.Equal(t, service.MonitorYes, reloaded.Monitor)
}

func TestResolverFor_NonProcessServiceAlwaysConverges(t *testing.T) {
	s := &service.Service{Name: "fs-check", Type: service.TypeFilesystem}
	_, running := resolverFor(s)()
	assert.True(t, running)
}
