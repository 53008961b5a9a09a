package service

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/termlink/internal/detector"
	"github.com/loykin/termlink/internal/logger"
	"github.com/loykin/termlink/internal/netid"
	"github.com/loykin/termlink/internal/pidstore"
)

func fakeResolver(ip, dns string) *netid.Resolver {
	return netid.NewWithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		switch args[0] {
		case "ip":
			if ip == "" {
				return nil, errors.New("exit status 1")
			}
			return []byte(ip + "\n"), nil
		case "status":
			return []byte(`{"Self":{"DNSName":"` + dns + `"}}`), nil
		}
		return nil, errors.New("unexpected args")
	})
}

func testRegistry(t *testing.T, ip, dns string) (*Registry, *pidstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store := pidstore.New(filepath.Join(dir, "pids"))
	r := NewRegistry(store, logger.Config{Dir: filepath.Join(dir, "logs")}, fakeResolver(ip, dns), nil)
	return r, store
}

func TestReconcileTerminatesTrackedLiveInstance(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "")

	cmd := exec.Command("sleep", "300")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	defer func() { _ = cmd.Process.Kill() }()

	require.NoError(t, store.Write(SleepInhibitor, pid))

	r.Reconcile()

	// The previous instance received SIGTERM and its entry is cleared.
	require.Eventually(t, func() bool { return !detector.PIDAlive(pid) },
		2*time.Second, 20*time.Millisecond, "tracked process must receive a termination signal")
	_, ok := store.Read(SleepInhibitor)
	assert.False(t, ok)
}

func TestReconcileClearsStaleEntriesSilently(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "")

	// Stale: a pid that no longer exists.
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	deadPID := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	require.NoError(t, store.Write(TerminalBridge, deadPID))

	r.Reconcile()
	_, ok := store.Read(TerminalBridge)
	assert.False(t, ok, "stale record is cleared, never surfaced as an error")
}

func TestReconcileKillsPreviousDaemon(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "")

	daemonPID := startSleeper(t)
	require.NoError(t, store.Write(pidstore.DaemonEntry, daemonPID))

	r.Reconcile()

	require.Eventually(t, func() bool { return !detector.PIDAlive(daemonPID) },
		2*time.Second, 20*time.Millisecond,
		"a second start must not leave the old supervisor's watchdog running")
	_, ok := store.Read(pidstore.DaemonEntry)
	assert.False(t, ok, "the old daemon record is cleared")
}

func TestReconcileKeepsOwnDaemonRecord(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "")
	require.NoError(t, store.Write(pidstore.DaemonEntry, os.Getpid()))

	r.Reconcile()

	pid, ok := store.Read(pidstore.DaemonEntry)
	require.True(t, ok, "a daemonized child must stay reachable by stop")
	assert.Equal(t, os.Getpid(), pid)
}

func TestStartAllFailsWithoutAddress(t *testing.T) {
	r, store := testRegistry(t, "", "")
	err := r.StartAll(context.Background())
	require.ErrorIs(t, err, netid.ErrNoAddress)

	// Nothing was launched or recorded.
	for _, d := range r.Services() {
		_, ok := store.Read(d.Name)
		assert.False(t, ok)
	}
}

func TestStatusStoppedWhenNothingTracked(t *testing.T) {
	r, _ := testRegistry(t, "", "")
	h := r.Status()
	assert.Equal(t, Stopped, h.Aggregate())
	assert.False(t, h.AnyAlive())
	assert.Equal(t, "", h.Host)
}

func TestStatusRunningWhenAllAliveAndResolved(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "mymac.example.ts.net.")
	for _, d := range r.Services() {
		require.NoError(t, store.Write(d.Name, os.Getpid()))
	}
	h := r.Status()
	assert.Equal(t, Running, h.Aggregate())
	assert.Empty(t, h.Down())
	assert.Equal(t, "mymac.example.ts.net", h.Host, "DNS name preferred over IP")
}

func TestStatusDegradedNamesDeadService(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "")
	require.NoError(t, store.Write(SleepInhibitor, os.Getpid()))
	require.NoError(t, store.Write(VoiceBridge, os.Getpid()))
	// Terminal bridge: no pid entry and nothing listening on its port.

	h := r.Status()
	assert.Equal(t, Degraded, h.Aggregate())
	assert.Equal(t, []string{TerminalBridge}, h.Down())
}

func TestStatusDegradedWhenIdentityUnresolved(t *testing.T) {
	r, store := testRegistry(t, "", "")
	for _, d := range r.Services() {
		require.NoError(t, store.Write(d.Name, os.Getpid()))
	}
	h := r.Status()
	assert.Equal(t, Degraded, h.Aggregate(), "all alive without identity is Degraded, not Running")
}

func TestStatusNeverMutates(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "")
	require.NoError(t, store.Write(VoiceBridge, os.Getpid()))
	for i := 0; i < 3; i++ {
		_ = r.Status()
	}
	pid, ok := store.Read(VoiceBridge)
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
}

func TestProbePortIgnoresTrackedPID(t *testing.T) {
	r, store := testRegistry(t, "127.0.0.1", "")
	// Live pid recorded for the terminal bridge, nothing serving its port:
	// a hung bridge looks exactly like this.
	require.NoError(t, store.Write(TerminalBridge, os.Getpid()))

	assert.False(t, r.ProbePort(TerminalBridge), "a live pid must not mask an unresponsive port")

	// The aggregate view still counts the live pid.
	for _, sh := range r.Status().Services {
		if sh.Name == TerminalBridge {
			assert.True(t, sh.Alive)
		}
	}
}

func TestProbePortWithoutIdentityOrPort(t *testing.T) {
	r, _ := testRegistry(t, "", "")
	assert.False(t, r.ProbePort(TerminalBridge), "unresolved identity probes dead")

	r2, _ := testRegistry(t, "127.0.0.1", "")
	assert.False(t, r2.ProbePort(SleepInhibitor), "portless service has no port signal")
	assert.False(t, r2.ProbePort("unknown"))
}

func TestDescriptorsLaunchOrder(t *testing.T) {
	ds := Descriptors()
	require.Len(t, ds, 3)
	assert.Equal(t, SleepInhibitor, ds[0].Name)
	assert.Equal(t, TerminalBridge, ds[1].Name)
	assert.Equal(t, VoiceBridge, ds[2].Name)
	assert.True(t, ds[1].Recipe.ReforkExpected)
	assert.True(t, ds[1].LoadBearing())
	assert.False(t, ds[0].LoadBearing())
}

func TestLookup(t *testing.T) {
	d, ok := Lookup(TerminalBridge)
	require.True(t, ok)
	assert.Equal(t, TerminalPort, d.Recipe.Port)
	_, ok = Lookup("unknown")
	assert.False(t, ok)
}
