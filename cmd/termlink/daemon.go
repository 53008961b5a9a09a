package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/loykin/termlink"
	"github.com/loykin/termlink/internal/pidstore"
)

// daemonize re-executes this binary in the background (same args minus the
// daemon flag), records its pid under the synthetic daemon store entry, and
// returns so the foreground invocation exits immediately. A second start
// while a daemon is active is handled by the reconciliation-before-start
// policy inside the child, not here.
func daemonize(cfg *termlink.Config) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	var newArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "--daemon" || arg == "-d" {
			continue
		}
		newArgs = append(newArgs, arg)
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	logPath := filepath.Join(cfg.LogDir(), "daemon.log")
	logF, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path derived from state dir
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer func() { _ = logF.Close() }()

	// #nosec G204 -- re-exec of our own binary
	cmd := exec.Command(executable, newArgs...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = logF
	cmd.Stderr = logF

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start background supervisor: %w", err)
	}

	store := pidstore.New(cfg.PIDDir())
	if err := store.Write(pidstore.DaemonEntry, cmd.Process.Pid); err != nil {
		return fmt.Errorf("record daemon pid: %w", err)
	}

	fmt.Printf("Daemonized (PID: %d), logging to %s\n", cmd.Process.Pid, logPath)
	return nil
}
