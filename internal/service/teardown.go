package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/loykin/termlink/internal/detector"
	"github.com/loykin/termlink/internal/history"
	"github.com/loykin/termlink/internal/metrics"
	"github.com/loykin/termlink/internal/pidstore"
)

// sweepDelay separates the two sweep passes so a process respawned by a
// dying supervisor is caught on the second pass.
const sweepDelay = 500 * time.Millisecond

// Sequencer stops everything, idempotently: the background supervisor
// first (forcefully, so it cannot race a restart against this shutdown),
// then each tracked service (gracefully), then a best-effort sweep by
// command signature. Sub-step failures are logged and never abort the
// remaining steps.
type Sequencer struct {
	store    *pidstore.Store
	hist     history.Sink
	services []Descriptor
	// findBySignature enumerates pids matching an executable name.
	// Injectable for tests.
	findBySignature func(signature string) []int
}

func NewSequencer(store *pidstore.Store, hist history.Sink) *Sequencer {
	return &Sequencer{
		store:           store,
		hist:            hist,
		services:        Descriptors(),
		findBySignature: findBySignature,
	}
}

// alreadyGone reports whether a kill error means the process is effectively
// stopped for our purposes (missing, or owned by someone else).
func alreadyGone(err error) bool {
	return errors.Is(err, syscall.ESRCH) || errors.Is(err, syscall.EPERM) || errors.Is(err, os.ErrProcessDone)
}

// StopAll runs the full teardown. Safe to call with nothing running and
// safe to call repeatedly; it always runs to completion across all steps.
func (s *Sequencer) StopAll(ctx context.Context) {
	s.stopDaemon()
	for _, d := range s.services {
		s.stopService(ctx, d)
	}
	s.sweep()
	select {
	case <-time.After(sweepDelay):
	case <-ctx.Done():
	}
	s.sweep()
}

// stopDaemon kills any recorded background supervisor instance with
// SIGKILL. Graceful would let its watchdog squeeze in one more restart.
func (s *Sequencer) stopDaemon() {
	pid, ok := s.store.Read(pidstore.DaemonEntry)
	if !ok {
		return
	}
	if pid != os.Getpid() && detector.PIDAlive(pid) {
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !alreadyGone(err) {
			slog.Warn("could not kill background supervisor", "pid", pid, "error", err)
		} else {
			slog.Info("background supervisor stopped", "pid", pid)
		}
	}
	s.store.Remove(pidstore.DaemonEntry)
}

func (s *Sequencer) stopService(ctx context.Context, d Descriptor) {
	pid, ok := s.store.Read(d.Name)
	if ok && detector.PIDAlive(pid) {
		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !alreadyGone(err) {
			slog.Warn("could not terminate service", "service", d.Name, "pid", pid, "error", err)
		} else {
			slog.Info("service stopped", "service", d.Name, "pid", pid)
		}
		metrics.IncStop(d.Name)
		if s.hist != nil {
			_ = s.hist.Send(ctx, history.Event{Service: d.Name, PID: pid, Kind: history.EventStop, Detail: "teardown"})
		}
	} else {
		slog.Debug("service was not running", "service", d.Name)
	}
	s.store.Remove(d.Name)
}

// sweep force-kills any process matching a service's signature. Needed
// because a refork-expected launch may have spawned a process whose pid was
// never captured. Inherently racy; run twice by StopAll as mitigation.
func (s *Sequencer) sweep() {
	self := os.Getpid()
	for _, d := range s.services {
		for _, pid := range s.findBySignature(d.Recipe.Signature) {
			if pid == self {
				continue
			}
			if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !alreadyGone(err) {
				slog.Warn("sweep kill failed", "service", d.Name, "pid", pid, "error", err)
			} else {
				slog.Debug("swept stray process", "service", d.Name, "pid", pid)
			}
		}
	}
}
