// Command primus is a terminal harness for the Primus dialogue engine. It
// reads user turns from stdin, prints replies, and prints proactive messages
// from the autonomy loop as they arrive.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/Primus/common/version"
	"github.com/bdobrica/Primus/internal/primus/app"
	"github.com/bdobrica/Primus/internal/primus/observability"
)

var (
	profilePath string
	dbPath      string
	logLevel    string
	httpAddr    string
	noAutonomy  bool
)

var rootCmd = &cobra.Command{
	Use:   "primus",
	Short: "Primus dialogue engine",
	Long: `Primus keeps a conversation going: it recalls relevant memories, tracks a
slowly drifting disposition, learns stated preferences, and, with consent,
checks in on its own.

Without a subcommand it starts an interactive chat on stdin. Lines starting
with "/" are commands; type /help for the list.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one autonomy check and print the outcome",
	RunE:  runTick,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the stored engine state as JSON",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "primus %s\n", version.Info())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "Engine profile YAML (overrides "+app.EnvProfile+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides "+app.EnvDBPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides "+app.EnvLogLevel+")")
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "Serve /health and /status on this address (overrides "+app.EnvHTTPAddr+")")
	rootCmd.Flags().BoolVar(&noAutonomy, "no-autonomy", false, "Do not run the background autonomy loop")

	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (*app.Config, *slog.Logger, error) {
	if profilePath != "" {
		os.Setenv(app.EnvProfile, profilePath)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if noAutonomy {
		cfg.Profile.Autonomy.Enabled = false
	}
	return cfg, observability.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Primus %s. Type /help for commands.\n", version.Version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return newREPL(a, cmd.InOrStdin(), cmd.OutOrStdout()).run(gctx)
	})
	return g.Wait()
}

func runTick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Tick(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Skipped() {
		fmt.Fprintf(out, "skipped: %s\n", res.Skip)
		return nil
	}
	fmt.Fprintf(out, "%s: %s (%s, reward %.2f)\n", res.Plan.Action, res.Plan.Reason, res.Result, res.Reward.Value)
	a.DeliverPending(ctx)
	select {
	case msg := <-a.Messages():
		fmt.Fprintln(out, msg.Text)
	default:
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(a.Snapshot(ctx))
}
