package service

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/termlink/internal/detector"
	"github.com/loykin/termlink/internal/pidstore"
)

func testSequencer(t *testing.T) (*Sequencer, *pidstore.Store) {
	t.Helper()
	store := pidstore.New(filepath.Join(t.TempDir(), "pids"))
	seq := NewSequencer(store, nil)
	seq.findBySignature = func(string) []int { return nil }
	return seq, store
}

func startSleeper(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sleep", "300")
	require.NoError(t, cmd.Start())
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd.Process.Pid
}

func TestStopAllIdempotentWhenNothingRunning(t *testing.T) {
	seq, store := testSequencer(t)

	// Twice in a row, nothing tracked: must not panic or leave entries.
	seq.StopAll(context.Background())
	seq.StopAll(context.Background())

	for _, d := range seq.services {
		_, ok := store.Read(d.Name)
		assert.False(t, ok)
	}
	_, ok := store.Read(pidstore.DaemonEntry)
	assert.False(t, ok)
}

func TestStopAllTerminatesTrackedServices(t *testing.T) {
	seq, store := testSequencer(t)

	pid := startSleeper(t)
	require.NoError(t, store.Write(VoiceBridge, pid))

	seq.StopAll(context.Background())

	require.Eventually(t, func() bool { return !detector.PIDAlive(pid) },
		2*time.Second, 20*time.Millisecond)
	_, ok := store.Read(VoiceBridge)
	assert.False(t, ok)
}

func TestStopAllKillsDaemonFirst(t *testing.T) {
	seq, store := testSequencer(t)

	daemonPID := startSleeper(t)
	require.NoError(t, store.Write(pidstore.DaemonEntry, daemonPID))

	seq.StopAll(context.Background())

	require.Eventually(t, func() bool { return !detector.PIDAlive(daemonPID) },
		2*time.Second, 20*time.Millisecond)
	_, ok := store.Read(pidstore.DaemonEntry)
	assert.False(t, ok)
}

func TestStopAllToleratesStaleEntries(t *testing.T) {
	seq, store := testSequencer(t)

	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	deadPID := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	require.NoError(t, store.Write(TerminalBridge, deadPID))
	require.NoError(t, store.Write(pidstore.DaemonEntry, deadPID))

	seq.StopAll(context.Background())

	_, ok := store.Read(TerminalBridge)
	assert.False(t, ok)
	_, ok = store.Read(pidstore.DaemonEntry)
	assert.False(t, ok)
}

func TestSweepRunsTwicePerSignature(t *testing.T) {
	seq, _ := testSequencer(t)

	calls := make(map[string]int)
	seq.findBySignature = func(sig string) []int {
		calls[sig]++
		return nil
	}

	seq.StopAll(context.Background())

	for _, d := range seq.services {
		assert.Equal(t, 2, calls[d.Recipe.Signature], "signature %s", d.Recipe.Signature)
	}
}

func TestSweepSkipsOwnPID(t *testing.T) {
	seq, _ := testSequencer(t)

	// Report our own pid as a match; the sweep must not kill the caller.
	seq.findBySignature = func(string) []int { return []int{os.Getpid()} }
	seq.StopAll(context.Background())
	// Reaching this line is the assertion.
}
