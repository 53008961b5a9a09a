// Package netid resolves the machine's identity on the private mesh
// network by shelling out to the tailscale CLI. Every invocation carries a
// short timeout; a resolver never blocks indefinitely.
package netid

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"
)

const commandTimeout = 5 * time.Second

// FallbackBinary is used when the CLI is not on PATH.
const FallbackBinary = "/usr/local/bin/tailscale"

// ErrNoAddress is returned when no mesh IPv4 address is resolvable.
// `start` treats this as fatal; `status` shows it as "Not connected".
var ErrNoAddress = errors.New("no mesh network address available. Start the VPN and try again")

// Resolver wraps the mesh CLI. The run function is injectable for tests.
type Resolver struct {
	binary string
	run    func(ctx context.Context, binary string, args ...string) ([]byte, error)
}

func New() *Resolver {
	return &Resolver{binary: findBinary(), run: runCommand}
}

// NewWithRunner builds a resolver with a custom command runner.
func NewWithRunner(run func(ctx context.Context, binary string, args ...string) ([]byte, error)) *Resolver {
	return &Resolver{binary: findBinary(), run: run}
}

func findBinary() string {
	if p, err := exec.LookPath("tailscale"); err == nil {
		return p
	}
	return FallbackBinary
}

func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	// #nosec G204 -- binary is resolved from PATH or a fixed install location
	return exec.CommandContext(ctx, binary, args...).Output()
}

// IPv4 returns the mesh IPv4 address, or "" when not connected.
func (r *Resolver) IPv4() string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := r.run(ctx, r.binary, "ip", "-4")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

type statusSelf struct {
	Self struct {
		DNSName string `json:"DNSName"`
	} `json:"Self"`
}

// DNSName returns the mesh DNS name without its trailing dot, or "" when
// unavailable.
func (r *Resolver) DNSName() string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := r.run(ctx, r.binary, "status", "--json")
	if err != nil {
		return ""
	}
	var st statusSelf
	if err := json.Unmarshal(out, &st); err != nil {
		return ""
	}
	return strings.TrimSuffix(st.Self.DNSName, ".")
}

// Host returns the DNS name with IPv4 fallback, or "" when neither resolves.
func (r *Resolver) Host() string {
	if dns := r.DNSName(); dns != "" {
		return dns
	}
	return r.IPv4()
}

// RequireIPv4 returns the mesh IPv4 address or ErrNoAddress. Services must
// bind to a reachable interface, so launching without an address is refused.
func (r *Resolver) RequireIPv4() (string, error) {
	ip := r.IPv4()
	if ip == "" {
		return "", ErrNoAddress
	}
	return ip, nil
}
