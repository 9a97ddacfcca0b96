// Command ember turns imported chats into a memory graph and a fill-in-the-blank
// recall game in the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/ember/pkg/config"
	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// reportMetrics writes the run's timings and counters to the debug log.
func reportMetrics() {
	if !metrics.Enabled() || !debug.Enabled() {
		return
	}
	debug.Section("metrics")
	for _, st := range metrics.AllTimingStats() {
		debug.Log("%s: %d calls, avg %.2fms, max %.2fms", st.Name, st.Count, st.AvgMs, st.MaxMs)
	}
	for _, c := range metrics.AllCounters() {
		if v := c.Value(); v > 0 {
			debug.Log("%s: %d", c.Name(), v)
		}
	}
}

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	dataDir    string
	debugLog   string
	envFile    string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	var chat string

	cmd := &cobra.Command{
		Use:   "ember",
		Short: "Relive your chats as a memory graph and a recall game",
		Long: `ember builds a graph of the people, places and things mentioned in an
imported chat and turns each remembered scene into a fill-in-the-blank round.

Run without a subcommand to open the terminal UI.

Examples:
  ember --chat "Lisbon trip"
  ember process --chat "Lisbon trip" --count 5
  ember export --chat "Lisbon trip" --out graph.png`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			reportMetrics()
			debug.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts, chat)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/ember/config.yaml)")
	pf.StringVar(&opts.dataDir, "data-dir", "", "Override the data directory")
	pf.StringVar(&opts.debugLog, "debug-log", "", "Write debug logs to this file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Load API settings from this dotenv file if it exists")
	cmd.Flags().StringVar(&chat, "chat", "", "Open this chat instead of asking")

	cmd.AddCommand(
		newChatsCmd(opts),
		newImportCmd(opts),
		newProcessCmd(opts),
		newExportCmd(opts),
		newMemoriesCmd(opts),
		newDeleteCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the dotenv file, the config and the flag overrides. A missing
// dotenv file is fine; real environment variables are never overwritten.
func (o *options) load() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			debug.Log("env: %s: %v", o.envFile, err)
		}
	}
	if o.debugLog != "" {
		if err := debug.LogToFile(o.debugLog); err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		debug.SetEnabled(true)
	}

	if o.configPath == "" {
		o.configPath = config.ConfigPath()
	}
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFrom(o.configPath); err != nil {
			return err
		}
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	o.cfg = cfg
	return nil
}

func (o *options) open() (*app, error) {
	return openApp(o.cfg, o.configPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ember %s\n", version.String())
		},
	}
}
