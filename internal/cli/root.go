// Package cli implements the dd2db command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dd2db/internal/config"
	"github.com/JonMunkholm/dd2db/internal/logging"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

var (
	version = "dev"
	commit  = "none"
)

// app carries state shared by the commands of one invocation.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	cfg     *config.Config
	reg     *schema.Registry
	log     *slog.Logger
	logSink io.Closer
}

// Execute runs the CLI and returns the process exit status.
func Execute() int {
	a := &app{}
	defer a.close()

	rootCmd := newRootCmd(a)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dd2db",
		Short: "Discogs data dump to database tool",
		Long: "Convert the monthly Discogs XML dumps into normalized CSV files and " +
			"load them into PostgreSQL or SQLite.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Write logs to this file instead of stderr")

	discogsCmd := &cobra.Command{
		Use:   "discogs",
		Short: "Work with Discogs dump files",
	}
	discogsCmd.AddCommand(newExportCmd(a))

	rootCmd.AddCommand(discogsCmd)
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newPostgresCmd(a))
	rootCmd.AddCommand(newSQLiteCmd(a))
	rootCmd.AddCommand(newTablesCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads defaults, the config file and the environment, then
// applies the root flags that were set.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = a.logFile
	}

	a.cfg = cfg
	a.reg = schema.Default()
	return nil
}

// prepare validates the configuration once command flags are applied and
// sets up logging.
func (a *app) prepare(cmd *cobra.Command) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	level := a.cfg.Logging.Level
	if a.cfg.Export.Debug {
		level = "debug"
	}

	var w io.Writer = cmd.ErrOrStderr()
	if path := a.cfg.Logging.File; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logSink = f
		w = f
	}

	a.log = logging.Setup(level, a.cfg.Logging.Format, w)
	a.log.Debug("configuration loaded", "config", a.cfg.String())
	return nil
}

func (a *app) close() {
	if a.logSink != nil {
		a.logSink.Close()
		a.logSink = nil
	}
}
