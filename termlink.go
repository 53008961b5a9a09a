// Package termlink exposes a local terminal session and a voice-command
// bridge over a private mesh network by supervising a fixed trio of
// external services.
package termlink

import (
	"context"
	"log/slog"

	"github.com/loykin/termlink/internal/config"
	"github.com/loykin/termlink/internal/history"
	"github.com/loykin/termlink/internal/metrics"
	"github.com/loykin/termlink/internal/netid"
	"github.com/loykin/termlink/internal/pidstore"
	"github.com/loykin/termlink/internal/service"
	"github.com/loykin/termlink/internal/tmux"
	"github.com/loykin/termlink/internal/watchdog"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.

type Config = config.Config

type Health = service.Health

type HistoryEvent = history.Event

// LoadConfig reads the user config at path ("" for the default location).
func LoadConfig(path string) *Config { return config.Load(path) }

// Supervisor owns the state directory and the service registry; it is the
// single context value passed to every component — there are no ambient
// globals.
type Supervisor struct {
	cfg       *Config
	store     *pidstore.Store
	resolver  *netid.Resolver
	registry  *service.Registry
	sequencer *service.Sequencer
	hist      history.Sink
}

// New builds a supervisor from cfg. A history sink that cannot be opened
// degrades to no audit trail rather than failing construction.
func New(cfg *Config) *Supervisor {
	store := pidstore.New(cfg.PIDDir())
	resolver := netid.New()

	var hist history.Sink
	if sink, err := history.NewSQLite(cfg.HistoryPath()); err != nil {
		slog.Warn("history disabled", "path", cfg.HistoryPath(), "error", err)
	} else {
		hist = sink
	}

	return &Supervisor{
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		registry:  service.NewRegistry(store, cfg.Log, resolver, hist),
		sequencer: service.NewSequencer(store, hist),
		hist:      hist,
	}
}

// Close releases the history sink.
func (s *Supervisor) Close() {
	if s.hist != nil {
		_ = s.hist.Close()
	}
}

// Host returns the resolved mesh identity, "" when not connected.
func (s *Supervisor) Host() string { return s.resolver.Host() }

// StartAll reconciles previous instances and launches every service.
// Fatal when no mesh address is resolvable.
func (s *Supervisor) StartAll(ctx context.Context) error {
	if err := s.cfg.EnsureDirs(); err != nil {
		return err
	}
	return s.registry.StartAll(ctx)
}

// RunWatchdog supervises the terminal bridge until ctx is cancelled, then
// tears everything down. It blocks.
func (s *Supervisor) RunWatchdog(ctx context.Context) {
	d, _ := service.Lookup(service.TerminalBridge)
	w := watchdog.New(d.Name,
		func() bool {
			return s.registry.ProbePort(d.Name)
		},
		func(ctx context.Context) (int, error) {
			ip, err := s.resolver.RequireIPv4()
			if err != nil {
				return 0, err
			}
			return s.registry.Launcher().Launch(ctx, d, ip, s.attachScriptPath())
		},
	)
	w.Hist = s.hist
	w.Run(ctx)
	// Stopped state: the watchdog exit hands control to the sequencer.
	s.StopAll(context.Background())
}

func (s *Supervisor) attachScriptPath() string {
	// Written by StartAll; the relaunch path reuses it.
	return tmux.AttachScriptPath(s.store.Dir())
}

// StopAll runs the teardown sequencer. Idempotent; never returns an error.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.sequencer.StopAll(ctx)
}

// Status computes aggregate health without mutating anything.
func (s *Supervisor) Status() Health { return s.registry.Status() }

// History returns the most recent supervision events, newest first.
func (s *Supervisor) History(ctx context.Context, limit int) ([]HistoryEvent, error) {
	if s.hist == nil {
		return nil, nil
	}
	return s.hist.Recent(ctx, limit)
}

// RecordDaemon tracks the pid of a background supervisor instance.
func (s *Supervisor) RecordDaemon(pid int) error {
	return s.store.Write(pidstore.DaemonEntry, pid)
}

// Metrics helpers (public facade)

func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics exposes /metrics on addr; blocks in the caller goroutine.
func ServeMetrics(addr string) error { return metrics.Serve(addr) }
