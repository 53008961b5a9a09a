// Package watchdog supervises the one load-bearing process: the terminal
// bridge. As long as it has not been told to stop it restarts the bridge
// indefinitely; a flaky bridge keeps coming back rather than requiring
// manual intervention. The unbounded retry policy is a documented risk: a
// persistently crashing binary loops forever, observable through the
// restart counter and the per-service log.
package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/termlink/internal/history"
	"github.com/loykin/termlink/internal/metrics"
)

const (
	// DefaultPollInterval is how often the tracked port is probed.
	DefaultPollInterval = 10 * time.Second
	// DefaultCooldown is the pause before a relaunch, avoiding a
	// crash-restart tight loop.
	DefaultCooldown = 5 * time.Second
)

// Prober reports whether the supervised service is still serving.
type Prober func() bool

// Relauncher starts a fresh instance and returns its effective pid. The
// implementation records the pid in the PID Store before returning.
type Relauncher func(ctx context.Context) (int, error)

// Watchdog polls one service and restarts it with a fixed cooldown on
// failure until its context is cancelled.
type Watchdog struct {
	Service      string
	PollInterval time.Duration
	Cooldown     time.Duration
	Probe        Prober
	Relaunch     Relauncher
	Hist         history.Sink // nil disables the audit trail
}

func New(service string, probe Prober, relaunch Relauncher) *Watchdog {
	return &Watchdog{
		Service:      service,
		PollInterval: DefaultPollInterval,
		Cooldown:     DefaultCooldown,
		Probe:        probe,
		Relaunch:     relaunch,
	}
}

// sleep waits for d or until ctx is cancelled; returns false on cancel.
// Every wait in the loop goes through here so a stop request is observed
// within one interval, never after additional cycles.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run blocks until ctx is cancelled. Once cancellation is observed no
// further restart cycle is initiated; an in-flight relaunch is allowed to
// finish but the loop exits immediately after.
func (w *Watchdog) Run(ctx context.Context) {
	slog.Info("watchdog running", "service", w.Service, "interval", w.PollInterval)
	for {
		if !sleep(ctx, w.PollInterval) {
			break
		}
		alive := w.Probe()
		metrics.SetAlive(w.Service, alive)
		if alive {
			continue
		}

		slog.Warn("service unresponsive, restarting after cooldown",
			"service", w.Service, "cooldown", w.Cooldown)
		if !sleep(ctx, w.Cooldown) {
			break
		}

		pid, err := w.Relaunch(ctx)
		if err != nil {
			slog.Error("relaunch failed", "service", w.Service, "error", err)
			continue
		}
		slog.Info("service relaunched", "service", w.Service, "pid", pid)
		metrics.IncRestart(w.Service)
		if w.Hist != nil {
			_ = w.Hist.Send(ctx, history.Event{
				Service: w.Service, PID: pid, Kind: history.EventRestart, Detail: "port probe failed",
			})
		}
	}
	slog.Info("watchdog stopped", "service", w.Service)
}
