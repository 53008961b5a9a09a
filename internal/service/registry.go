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
	"github.com/loykin/termlink/internal/logger"
	"github.com/loykin/termlink/internal/metrics"
	"github.com/loykin/termlink/internal/netid"
	"github.com/loykin/termlink/internal/pidstore"
	"github.com/loykin/termlink/internal/tmux"
)

// settleDelay separates reconciliation kills from the new launches so a
// terminated instance has released its port.
const settleDelay = time.Second

// Registry owns the fixed service set: launching them in order, probing
// their health, and stopping them through the Sequencer.
type Registry struct {
	store    *pidstore.Store
	launcher *Launcher
	resolver *netid.Resolver
	hist     history.Sink // nil disables the audit trail
	services []Descriptor
}

func NewRegistry(store *pidstore.Store, logs logger.Config, resolver *netid.Resolver, hist history.Sink) *Registry {
	return &Registry{
		store:    store,
		launcher: NewLauncher(store, logs),
		resolver: resolver,
		hist:     hist,
		services: Descriptors(),
	}
}

// Store exposes the backing PID Store.
func (r *Registry) Store() *pidstore.Store { return r.store }

// Launcher exposes the process launcher (the watchdog relaunches with it).
func (r *Registry) Launcher() *Launcher { return r.launcher }

// Services returns the registry entries in launch order.
func (r *Registry) Services() []Descriptor { return r.services }

func (r *Registry) record(ctx context.Context, kind history.EventKind, name string, pid int, detail string) {
	if r.hist == nil {
		return
	}
	if err := r.hist.Send(ctx, history.Event{Service: name, PID: pid, Kind: kind, Detail: detail}); err != nil {
		slog.Debug("history write failed", "service", name, "error", err)
	}
}

// Reconcile terminates and clears every previously tracked live instance —
// the background supervisor first, then each service — guaranteeing at most
// one live instance per service before new launches begin. Stale records
// are silently cleared.
func (r *Registry) Reconcile() {
	// SIGKILL, not SIGTERM: a graceful stop would let the old supervisor's
	// watchdog race one more relaunch against this start. A daemonized
	// child finds its own pid here and must stay reachable by stop.
	if pid, ok := r.store.Read(pidstore.DaemonEntry); ok && pid != os.Getpid() {
		if detector.PIDAlive(pid) {
			slog.Info("terminating previous background supervisor", "pid", pid)
			if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) && !errors.Is(err, syscall.EPERM) {
				slog.Warn("could not kill previous background supervisor", "pid", pid, "error", err)
			}
		}
		r.store.Remove(pidstore.DaemonEntry)
	}
	for _, d := range r.services {
		pid, ok := r.store.Read(d.Name)
		if ok && detector.PIDAlive(pid) {
			slog.Info("terminating previous instance", "service", d.Name, "pid", pid)
			if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) && !errors.Is(err, syscall.EPERM) {
				slog.Warn("could not signal previous instance", "service", d.Name, "pid", pid, "error", err)
			}
		}
		r.store.Remove(d.Name)
	}
}

// StartAll reconciles stale instances, ensures the tmux session, and
// launches every service in registry order. It fails fast when no mesh
// address is resolvable; individual launch failures are collected and the
// remaining services still start.
func (r *Registry) StartAll(ctx context.Context) error {
	ip, err := r.resolver.RequireIPv4()
	if err != nil {
		return err
	}
	if err := r.store.EnsureDir(); err != nil {
		return err
	}

	r.Reconcile()
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := tmux.EnsureSession(); err != nil {
		return err
	}
	attachScript, err := tmux.WriteAttachScript(r.store.Dir())
	if err != nil {
		return err
	}

	var errs []error
	for _, d := range r.services {
		pid, err := r.launcher.Launch(ctx, d, ip, attachScript)
		if err != nil {
			slog.Error("launch failed", "service", d.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Info("service running", "service", d.Name, "pid", pid)
		metrics.IncStart(d.Name)
		r.record(ctx, history.EventStart, d.Name, pid, "")
	}
	return errors.Join(errs...)
}

// probe returns liveness for one descriptor: pid OR port for
// refork-expected recipes, pid alone otherwise.
func (r *Registry) probe(d Descriptor) bool {
	pid, ok := r.store.Read(d.Name)
	if ok && detector.PIDAlive(pid) {
		return true
	}
	if d.Recipe.ReforkExpected && d.Recipe.Port > 0 {
		ip := r.resolver.IPv4()
		if ip == "" {
			return false
		}
		alive, _ := detector.PortDetector{Host: ip, Port: d.Recipe.Port}.Alive()
		return alive
	}
	return false
}

// ProbePort reports whether the named service answers on its TCP port,
// ignoring any tracked pid. The watchdog restarts on this signal alone so
// a hung process that still exists gets restarted too; the pid-OR-port
// view stays confined to Status.
func (r *Registry) ProbePort(name string) bool {
	d, ok := Lookup(name)
	if !ok || d.Recipe.Port == 0 {
		return false
	}
	ip := r.resolver.IPv4()
	if ip == "" {
		return false
	}
	alive, _ := detector.PortDetector{Host: ip, Port: d.Recipe.Port}.Alive()
	return alive
}

// Status computes aggregate health. It never mutates state, launches, or
// kills anything, and is safe to call concurrently.
func (r *Registry) Status() Health {
	h := Health{
		IP:      r.resolver.IPv4(),
		DNSName: r.resolver.DNSName(),
	}
	if h.DNSName != "" {
		h.Host = h.DNSName
	} else {
		h.Host = h.IP
	}
	for _, d := range r.services {
		h.Services = append(h.Services, ServiceHealth{Name: d.Name, Alive: r.probe(d)})
	}
	return h
}
