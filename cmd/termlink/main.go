package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/termlink"
	"github.com/loykin/termlink/internal/logger"
	"github.com/loykin/termlink/internal/service"
)

const version = "0.3.0"

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	Debug      bool
}

// StartFlags holds flags for the start command.
type StartFlags struct {
	Daemon        bool
	MetricsListen string
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Limit int
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "termlink",
		Short: "Remote terminal session supervisor",
		Long: `Termlink exposes a local terminal session and a voice-command bridge
over your private mesh network, keeping the machine awake while they run.

Examples:
  termlink start            # launch services and supervise in the foreground
  termlink start --daemon   # launch and supervise in the background
  termlink status           # show identity and per-service health
  termlink stop             # tear everything down`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(globalFlags.Debug)
		},
	}

	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to config file (optional)")
	root.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "enable debug logging")

	root.AddCommand(
		createStartCommand(globalFlags),
		createStopCommand(globalFlags),
		createStatusCommand(globalFlags),
		createDoctorCommand(),
		createHistoryCommand(globalFlags),
		createAutostartCommand(globalFlags),
	)
	return root
}

func createAutostartCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "autostart [on|off]",
		Short: "Show or set automatic service start",
		Long: `Show or persist the auto_start flag. Presentation layers poll it to
decide whether to start services on their own launch; the supervisor itself
only stores it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := termlink.LoadConfig(globalFlags.ConfigPath)
			if len(args) == 0 {
				state := "off"
				if cfg.AutoStart {
					state = "on"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "auto_start: %s\n", state)
				return nil
			}
			switch args[0] {
			case "on":
				cfg.AutoStart = true
			case "off":
				cfg.AutoStart = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			return cfg.Save(globalFlags.ConfigPath)
		},
	}
}

func createStartCommand(globalFlags *GlobalFlags) *cobra.Command {
	startFlags := &StartFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start all services and supervise the terminal bridge",
		Long: `Start the sleep inhibitor, the terminal bridge, and the voice bridge,
then keep supervising the terminal bridge until interrupted.

Requires a resolvable mesh network address; start fails otherwise.

Examples:
  termlink start
  termlink start --daemon
  termlink start --metrics-listen=127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(globalFlags, startFlags)
		},
	}
	cmd.Flags().BoolVarP(&startFlags.Daemon, "daemon", "d", false, "run in background")
	cmd.Flags().StringVar(&startFlags.MetricsListen, "metrics-listen", "", "expose Prometheus metrics on this address while supervising")
	return cmd
}

func runStart(globalFlags *GlobalFlags, startFlags *StartFlags) error {
	cfg := termlink.LoadConfig(globalFlags.ConfigPath)

	if startFlags.Daemon {
		return daemonize(cfg)
	}

	sup := termlink.New(cfg)
	defer sup.Close()

	if err := termlink.RegisterMetricsDefault(); err != nil {
		slog.Debug("metrics registration skipped", "error", err)
	}
	if startFlags.MetricsListen != "" {
		go func() {
			if err := termlink.ServeMetrics(startFlags.MetricsListen); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.StartAll(ctx); err != nil {
		return err
	}

	if host := sup.Host(); host != "" {
		fmt.Println()
		fmt.Println("=== Remote terminal ready ===")
		fmt.Printf("Terminal:  http://%s:%d\n", host, service.TerminalPort)
		fmt.Printf("Voice UI:  http://%s:%d\n", host, service.VoicePort)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop.")
	}

	sup.RunWatchdog(ctx)
	return nil
}

func createStopCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop all services",
		Long: `Stop the background supervisor and every tracked service. Exits 0
whether or not anything was running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := termlink.LoadConfig(globalFlags.ConfigPath)
			sup := termlink.New(cfg)
			defer sup.Close()

			fmt.Println("Stopping services...")
			sup.StopAll(cmd.Context())
			fmt.Println()
			fmt.Printf("Services stopped. tmux session %q is still alive.\n", "main")
			fmt.Println("To kill it too: tmux kill-session -t main")
			return nil
		},
	}
}

const (
	glyphAlive = "\033[32m●\033[0m"
	glyphDead  = "\033[31m○\033[0m"
)

func createStatusCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show network identity and per-service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := termlink.LoadConfig(globalFlags.ConfigPath)
			sup := termlink.New(cfg)
			defer sup.Close()

			h := sup.Status()
			printStatus(cmd.OutOrStdout(), h)
			return nil // status is informational, always exit 0
		},
	}
}

func printStatus(w io.Writer, h termlink.Health) {
	ip := h.IP
	if ip == "" {
		ip = "Not connected"
	}
	dns := h.DNSName
	if dns == "" {
		dns = "Not available"
	}
	_, _ = fmt.Fprintf(w, "Mesh IP:   %s\n", ip)
	_, _ = fmt.Fprintf(w, "DNS name:  %s\n\n", dns)

	for _, s := range h.Services {
		glyph := glyphDead
		if s.Alive {
			glyph = glyphAlive
		}
		_, _ = fmt.Fprintf(w, "  %s %s\n", glyph, s.Name)
	}

	agg := h.Aggregate()
	switch agg {
	case service.Degraded:
		_, _ = fmt.Fprintf(w, "\nStatus: %s (%s down)\n", agg, joinNames(h.Down()))
	default:
		_, _ = fmt.Fprintf(w, "\nStatus: %s\n", agg)
	}

	if h.Host != "" && h.AnyAlive() {
		_, _ = fmt.Fprintf(w, "\n  Voice UI:  http://%s:%d\n", h.Host, service.VoicePort)
		_, _ = fmt.Fprintf(w, "  Terminal:  http://%s:%d\n", h.Host, service.TerminalPort)
	}
}

func joinNames(names []string) string { return strings.Join(names, ", ") }

func createHistoryCommand(globalFlags *GlobalFlags) *cobra.Command {
	historyFlags := &HistoryFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent supervision events",
		Long: `Show the most recent launch, relaunch, and stop events recorded by the
supervisor, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := termlink.LoadConfig(globalFlags.ConfigPath)
			sup := termlink.New(cfg)
			defer sup.Close()

			events, err := sup.History(cmd.Context(), historyFlags.Limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events recorded.")
				return nil
			}
			for _, e := range events {
				detail := ""
				if e.Detail != "" {
					detail = "  (" + e.Detail + ")"
				}
				fmt.Printf("%s  %-12s %-8s pid=%d%s\n",
					e.OccurredAt.Local().Format("2006-01-02 15:04:05"), e.Service, e.Kind, e.PID, detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "maximum number of events to show")
	return cmd
}
