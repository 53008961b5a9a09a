package service

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/loykin/termlink/internal/logger"
	"github.com/loykin/termlink/internal/pidstore"
)

// reforkWait bounds how long the launcher waits for a refork-expected child
// to exit and for its detached descendant to bind the service port.
const reforkWait = 2 * time.Second

// Launcher starts one of the fixed external programs and determines the
// effective pid to track.
type Launcher struct {
	store *pidstore.Store
	logs  logger.Config
	// portOwner queries the OS for the pid bound to a TCP port. Injectable
	// so refork reconciliation is testable without lsof.
	portOwner func(ctx context.Context, port int) (int, error)
	wait      time.Duration
}

func NewLauncher(store *pidstore.Store, logs logger.Config) *Launcher {
	return &Launcher{store: store, logs: logs, portOwner: lsofPortOwner, wait: reforkWait}
}

func resolveBinary(r Recipe) string {
	if p, err := exec.LookPath(r.Binary); err == nil {
		return p
	}
	return r.Fallback
}

// Launch spawns the service with stdout and stderr appended to its log
// file, resolves the effective pid (reconciling refork-expected recipes
// against the port owner), records it in the PID Store, and returns it.
//
// A refork reconciliation that finds no port owner is degraded, not fatal:
// the original handle's pid stays recorded and the next liveness check
// reports it dead.
func (l *Launcher) Launch(ctx context.Context, d Descriptor, addr, attachScript string) (int, error) {
	bin := resolveBinary(d.Recipe)
	args := d.Recipe.Args(addr, attachScript)

	w, err := l.logs.Writer(d.Name)
	if err != nil {
		return 0, fmt.Errorf("open log for %s: %w", d.Name, err)
	}

	// #nosec G204 -- fixed recipes, argv built from the resolved address
	cmd := exec.Command(bin, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("launch %s: %w", d.Name, err)
	}
	pid := cmd.Process.Pid

	// Reap the direct handle whenever it exits so it never lingers as a
	// zombie; the log writer closes with it.
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		_ = w.Close()
		close(exited)
	}()

	if d.Recipe.ReforkExpected {
		pid = l.reconcileRefork(ctx, d, pid, exited)
	}

	if err := l.store.Write(d.Name, pid); err != nil {
		return pid, fmt.Errorf("record pid for %s: %w", d.Name, err)
	}
	return pid, nil
}

// reconcileRefork waits (bounded) for the direct child to exit, then adopts
// whichever pid is now bound to the service port. When nothing binds within
// the window, the original pid is kept.
func (l *Launcher) reconcileRefork(ctx context.Context, d Descriptor, origPID int, exited <-chan struct{}) int {
	select {
	case <-exited:
	case <-time.After(l.wait):
		// Child is still running; it may serve the port itself.
	case <-ctx.Done():
		return origPID
	}

	pollDeadline := time.Now().Add(l.wait)
	for time.Now().Before(pollDeadline) {
		if ctx.Err() != nil {
			break
		}
		ownerCtx, cancel := context.WithTimeout(ctx, l.wait)
		pid, err := l.portOwner(ownerCtx, d.Recipe.Port)
		cancel()
		if err == nil && pid > 0 {
			if pid != origPID {
				slog.Debug("adopted reforked pid", "service", d.Name, "orig", origPID, "pid", pid)
			}
			return pid
		}
		time.Sleep(100 * time.Millisecond)
	}

	slog.Warn("no process bound to service port after launch; keeping original pid",
		"service", d.Name, "port", d.Recipe.Port, "pid", origPID)
	return origPID
}
