// Package service defines the fixed set of supervised services and the
// machinery to launch, reconcile, and tear them down.
package service

import "fmt"

// The registry is fixed: three named services, launched in slice order so
// the sleep inhibitor is up first and the terminal bridge can attach to the
// tmux session before the voice bridge starts referring to it.
const (
	SleepInhibitor = "caffeinate"
	TerminalBridge = "ttyd"
	VoiceBridge    = "voice-bridge"
)

const (
	// TerminalPort is where ttyd serves the terminal session.
	TerminalPort = 7681
	// VoicePort is where the voice bridge listens.
	VoicePort = 8080
)

// Recipe describes how one external program is launched and recognized.
type Recipe struct {
	// Binary is looked up on PATH; Fallback is the fixed install location
	// used when the lookup fails.
	Binary   string
	Fallback string
	// Args builds argv from the resolved mesh address and the tmux attach
	// script path (ignored by recipes that do not need them).
	Args func(addr, attachScript string) []string
	// ReforkExpected marks launches whose direct child exits quickly after
	// detaching a long-lived descendant; the launcher re-derives the pid
	// from Port after such a launch.
	ReforkExpected bool
	// Port is the TCP port the service binds, 0 for none. For
	// refork-expected services liveness is pid OR port; otherwise pid only.
	Port int
	// Signature is the executable name matched by the teardown sweep.
	Signature string
}

// Descriptor is one immutable registry entry. Identity is the name.
type Descriptor struct {
	Name   string
	Recipe Recipe
}

// LoadBearing reports whether this service's health carries the whole
// system; its crash triggers the watchdog restart path.
func (d Descriptor) LoadBearing() bool { return d.Name == TerminalBridge }

var ttydThemeArgs = []string{
	"--writable",
	"-t", "fontSize=14",
	"-t", "lineHeight=1.2",
	"-t", "cursorBlink=true",
	"-t", "cursorStyle=block",
	"-t", "scrollback=10000",
	"-t", `fontFamily="Menlo, Monaco, Consolas, monospace, Apple Color Emoji, Segoe UI Emoji"`,
}

// Descriptors returns the fixed registry in launch order.
func Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name: SleepInhibitor,
			Recipe: Recipe{
				Binary:   "caffeinate",
				Fallback: "/usr/bin/caffeinate",
				Args: func(_, _ string) []string {
					return []string{"-d", "-i", "-s"}
				},
				Signature: "caffeinate",
			},
		},
		{
			Name: TerminalBridge,
			Recipe: Recipe{
				Binary:   "ttyd",
				Fallback: "/usr/local/bin/ttyd",
				Args: func(addr, attachScript string) []string {
					args := []string{"--port", fmt.Sprintf("%d", TerminalPort), "--interface", addr}
					args = append(args, ttydThemeArgs...)
					return append(args, attachScript)
				},
				ReforkExpected: true,
				Port:           TerminalPort,
				Signature:      "ttyd",
			},
		},
		{
			Name: VoiceBridge,
			Recipe: Recipe{
				Binary:   "termlink-voice",
				Fallback: "/usr/local/bin/termlink-voice",
				Args: func(addr, _ string) []string {
					return []string{"--listen", fmt.Sprintf("%s:%d", addr, VoicePort)}
				},
				Port:      VoicePort,
				Signature: "termlink-voice",
			},
		},
	}
}

// Lookup returns the descriptor for name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range Descriptors() {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
