package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

type doctorCheck struct {
	binary string
	hint   string
}

var doctorChecks = []doctorCheck{
	{"tmux", "brew install tmux"},
	{"ttyd", "brew install ttyd"},
	{"tailscale", "install from https://tailscale.com"},
	{"caffeinate", "part of macOS; on Linux use systemd-inhibit"},
	{"termlink-voice", "install the termlink voice bridge"},
	{"lsof", "part of the base system"},
}

func createDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check required external binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			missing := 0
			for _, c := range doctorChecks {
				path, err := exec.LookPath(c.binary)
				if err != nil {
					fmt.Printf("  \033[31m✗\033[0m %s — %s\n", c.binary, c.hint)
					missing++
					continue
				}
				fmt.Printf("  \033[32m✓\033[0m %s (%s)\n", c.binary, path)
			}
			if missing > 0 {
				return fmt.Errorf("%d required dependencies missing", missing)
			}
			fmt.Println()
			fmt.Println("All dependencies satisfied.")
			return nil
		},
	}
}
