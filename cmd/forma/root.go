// ABOUTME: Root Cobra command for the forma CLI.
// ABOUTME: Boots the app in PersistentPreRunE and closes it in PersistentPostRunE.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harperreed/forma/internal/app"
	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/config"
)

// Command annotations controlling the boot sequence.
const (
	// annotationNoApp marks commands that manage storage themselves.
	annotationNoApp = "forma/no-app"
	// annotationMemorySession keeps the session in memory for the process.
	annotationMemorySession = "forma/memory-session"
	// annotationSkipSeed leaves seeding to the command.
	annotationSkipSeed = "forma/skip-seed"
)

var (
	verbose    bool
	configPath string

	logger      *zap.Logger
	cfg         *config.Config
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "forma",
	Short: "Local-first fitness coaching for trainers and clients",
	Long: `Forma keeps a trainer's clients, sessions, plans, progress and messages
in a local store.

QUICK START:

  $ forma login maya@forma.demo --password demo123   # demo trainer
  $ forma dashboard                                   # today at a glance
  $ forma schedule add usr_client001 2024-03-01 07:00 --title "Technique"
  $ forma progress add weight-kg 82.4                 # as a client

ROLES:

  Trainers see every client, book sessions and write plans.
  Clients see their own sessions, plans and progress.

STORAGE:

  Data lives under ~/.local/share/forma (sqlite by default). Choose another
  engine with 'backend' in ~/.config/forma/config.yaml or FORMA_BACKEND:
  sqlite, badger, charm, flat, memory.

MCP INTEGRATION:

  Run 'forma mcp' to start the Model Context Protocol server:

  {
    "mcpServers": {
      "forma": { "command": "forma", "args": ["mcp"] }
    }
  }`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		if logger, err = newLogger(verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if cfg, err = config.LoadFrom(configPath); err != nil {
			return err
		}
		if cmd.Annotations[annotationNoApp] != "" {
			return nil
		}

		opts := app.Options{
			Config:   cfg,
			Logger:   logger,
			SkipSeed: cmd.Annotations[annotationSkipSeed] != "",
		}
		if cmd.Annotations[annotationMemorySession] != "" {
			opts.Sessions = auth.NewMemorySessionStore()
		}
		application, err = app.Open(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("failed to open forma: %w", err)
		}
		if application.Store.Fallback() {
			warn(cmd, "Using fallback storage at %s", cfg.FlatDir())
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

// closeApp releases the store and flushes the logger. Safe to call twice.
func closeApp() error {
	var err error
	if application != nil {
		err = application.Close()
		application = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
	return err
}

// newLogger builds the CLI logger: warnings to stderr, everything with --verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config.Build()
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	// PersistentPostRunE is skipped when a command fails.
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/forma/config.yaml)")

	if os.Getenv("NO_COLOR") != "" {
		disableColor()
	}
}
