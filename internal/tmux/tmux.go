// Package tmux is a thin idempotent wrapper over the tmux binary for the
// one persistent session the terminal bridge attaches to.
package tmux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// SessionName is the single multiplexed session served over HTTP.
const SessionName = "main"

// FallbackBinary is used when tmux is not on PATH.
const FallbackBinary = "/opt/homebrew/bin/tmux"

const commandTimeout = 5 * time.Second

func findBinary() string {
	if p, err := exec.LookPath("tmux"); err == nil {
		return p
	}
	return FallbackBinary
}

// cleanEnv returns the current environment without an inherited TMUX socket
// (so the session can be created from inside another session) and with a
// UTF-8 locale so the web terminal renders glyphs correctly.
func cleanEnv() []string {
	env := make([]string, 0, len(os.Environ())+2)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "TMUX=") || strings.HasPrefix(kv, "LANG=") || strings.HasPrefix(kv, "LC_ALL=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "LANG=en_US.UTF-8", "LC_ALL=en_US.UTF-8")
}

func run(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	// #nosec G204 -- fixed binary, fixed session target
	cmd := exec.CommandContext(ctx, findBinary(), args...)
	cmd.Env = cleanEnv()
	return cmd.Run()
}

// EnsureSession creates the session if it does not already exist. Calling it
// with the session present is a no-op.
func EnsureSession() error {
	if run("has-session", "-t", SessionName) == nil {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}
	if err := run("new-session", "-d", "-s", SessionName, "-c", home); err != nil {
		return fmt.Errorf("create tmux session %s: %w", SessionName, err)
	}
	return nil
}

// AttachScriptPath returns where WriteAttachScript places the script.
func AttachScriptPath(dir string) string {
	return filepath.Join(dir, "tmux-attach.sh")
}

// WriteAttachScript writes the small exec script the terminal bridge runs
// for each connection: attach to the session, creating it when absent.
// Returns the script path.
func WriteAttachScript(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := AttachScriptPath(dir)
	script := fmt.Sprintf(`#!/bin/bash
export LANG="en_US.UTF-8"
export LC_ALL="en_US.UTF-8"
exec %q new-session -A -s %s -c "$HOME"
`, findBinary(), SessionName)
	if err := os.WriteFile(path, []byte(script), 0o750); err != nil { // #nosec G306 -- must be executable
		return "", err
	}
	return path, nil
}
