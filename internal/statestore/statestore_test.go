package statestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/service"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), Config{Path: filepath.Join(dir, "state.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	a := &service.Service{Name: "a", Monitor: service.MonitorYes}
	a.Budget = service.RestartBudget{Limit: 2, Window: 4}
	a.Budget.RecordCycle(true)
	a.Budget.RecordCycle(false)
	b := &service.Service{Name: "b", Monitor: service.MonitorNot}

	tbl := depgraph.NewTable([]*service.Service{a, b})
	s := openTestStore(t)

	require.NoError(t, s.Save(context.Background(), tbl))

	a2 := &service.Service{Name: "a", Monitor: service.MonitorInit}
	a2.Budget = service.RestartBudget{Limit: 2, Window: 4}
	b2 := &service.Service{Name: "b", Monitor: service.MonitorInit}
	tbl2 := depgraph.NewTable([]*service.Service{a2, b2})

	require.NoError(t, s.Load(context.Background(), tbl2))

	assert.Equal(t, service.MonitorYes, a2.Monitor)
	assert.Equal(t, service.MonitorNot, b2.Monitor)
	assert.Equal(t, []bool{true, false}, a2.Budget.Snapshot()[:2])
}

func TestLoad_UnknownPersistedServiceIsDropped(t *testing.T) {
	a := &service.Service{Name: "a", Monitor: service.MonitorYes}
	tbl := depgraph.NewTable([]*service.Service{a})
	s := openTestStore(t)
	require.NoError(t, s.Save(context.Background(), tbl))

	onlyB := &service.Service{Name: "b", Monitor: service.MonitorInit}
	tbl2 := depgraph.NewTable([]*service.Service{onlyB})

	require.NoError(t, s.Load(context.Background(), tbl2))
	assert.Equal(t, service.MonitorInit, onlyB.Monitor, "unrelated service is untouched")
}

func TestLoad_MissingConfiguredServiceKeepsItsMonitor(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save(context.Background(), depgraph.NewTable(nil)))

	fresh := &service.Service{Name: "new", Monitor: service.MonitorInit}
	tbl := depgraph.NewTable([]*service.Service{fresh})
	require.NoError(t, s.Load(context.Background(), tbl))
	assert.Equal(t, service.MonitorInit, fresh.Monitor)
}

func TestLoad_CorruptPayloadAbortsLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	s, err := Open(context.Background(), Config{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO service_state (name, payload, updated_at) VALUES (?, ?, datetime('now'))`,
		"bad", []byte("not msgpack"))
	require.NoError(t, err)

	tbl := depgraph.NewTable([]*service.Service{{Name: "bad"}})
	err = s.Load(context.Background(), tbl)
	assert.Error(t, err)
}

func TestSave_RewritesRatherThanAccumulates(t *testing.T) {
	a := &service.Service{Name: "a", Monitor: service.MonitorYes}
	tbl := depgraph.NewTable([]*service.Service{a})
	s := openTestStore(t)

	require.NoError(t, s.Save(context.Background(), tbl))
	require.NoError(t, s.Save(context.Background(), depgraph.NewTable([]*service.Service{a})))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM service_state`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested", "dir", "state.db")
	s, err := Open(context.Background(), Config{Path: nested}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Dir(nested))
	assert.NoError(t, err)
}
