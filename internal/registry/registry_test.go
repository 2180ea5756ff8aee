package registry

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/queuectl/internal/layout"
)

func newTestRegistry(t *testing.T) (*Registry, layout.Paths) {
	t.Helper()
	paths := layout.FromRoot(t.TempDir())
	require.NoError(t, paths.EnsureDirs())
	return New(paths), paths
}

func TestRequestStopCreatesControlFileWhenMissing(t *testing.T) {
	r, paths := newTestRegistry(t)
	require.NoError(t, r.RequestStop("w1"))

	data, err := os.ReadFile(paths.ControlFile("w1"))
	require.NoError(t, err)
	var c Control
	require.NoError(t, json.Unmarshal(data, &c))
	assert.True(t, c.Stop)
	assert.Equal(t, "w1", c.ID)
}

func TestShouldStopTreatsMalformedFileAsFalse(t *testing.T) {
	_, paths := newTestRegistry(t)
	path := paths.ControlFile("w1")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	assert.False(t, ShouldStop(path))
}

func TestShouldStopMissingFileIsFalse(t *testing.T) {
	_, paths := newTestRegistry(t)
	assert.False(t, ShouldStop(paths.ControlFile("ghost")))
}

func TestSweepDropsDeadPIDs(t *testing.T) {
	r, paths := newTestRegistry(t)

	alive := os.Getpid()
	entries := []Entry{
		{ID: "alive", PID: alive, StartedAt: "2024-01-01T00:00:00Z"},
		{ID: "dead", PID: unusedPID(t), StartedAt: "2024-01-01T00:00:00Z"},
	}
	require.NoError(t, atomicWriteJSON(paths.RegistryFile(), entries))

	require.NoError(t, r.Sweep())

	listed, err := r.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "alive", listed[0].ID)
	assert.True(t, listed[0].Alive)
}

func TestWaitForStopReturnsSurvivorsOnTimeout(t *testing.T) {
	r, paths := newTestRegistry(t)
	entries := []Entry{{ID: "stuck", PID: os.Getpid(), StartedAt: "2024-01-01T00:00:00Z"}}
	require.NoError(t, atomicWriteJSON(paths.RegistryFile(), entries))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	survivors := r.WaitForStop(ctx, []string{"stuck"}, 10*time.Millisecond)
	assert.Equal(t, []string{"stuck"}, survivors)
}

func TestAtomicWriteJSONIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, atomicWriteJSON(path, []Entry{{ID: "a", PID: 1, StartedAt: "x"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful write")
}

// unusedPID starts and immediately waits on a short-lived child process, so
// the returned pid belongs to a process that has already exited. Nothing
// stops the OS from reusing that pid before the test calls pidAlive on it.
func unusedPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}
