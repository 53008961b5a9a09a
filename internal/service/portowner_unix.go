//go:build !windows

package service

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// lsofPortOwner returns the pid of the process listening on the TCP port.
// Returns 0 when no listener is found.
func lsofPortOwner(ctx context.Context, port int) (int, error) {
	// #nosec G204 -- port is an integer from a fixed recipe
	out, err := exec.CommandContext(ctx, "lsof", "-ti", fmt.Sprintf("tcp:%d", port), "-sTCP:LISTEN").Output()
	if err != nil {
		// lsof exits 1 when nothing matches.
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			return 0, nil
		}
		return 0, err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}
