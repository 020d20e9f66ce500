package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentic-research/folio/internal/config"
	"github.com/agentic-research/folio/internal/logging"
	"github.com/agentic-research/folio/internal/presets"
	"github.com/agentic-research/folio/internal/project"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg  *config.Config
	logs *logging.Log
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to HCL configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

var rootCmd = &cobra.Command{
	Use:           "folio",
	Short:         "Folio: hierarchical template-driven layout documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, !cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = zerolog.DebugLevel.String()
		}
		b := logging.New().ToWriter(cmd.ErrOrStderr()).Console(true).Level(level)
		if cfg.LogFile != "" {
			b = b.ToFile(cfg.LogFile)
		}
		logs, err = b.Make()
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logs == nil {
			return nil
		}
		return logs.Close()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openProject returns a project store rooted at the directory of path and
// the file name inside it.
func openProject(path string) (*project.Store, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return project.New(osfs.New(filepath.Dir(abs)), logs.Logger), filepath.Base(abs), nil
}

func openPresets(ctx context.Context) (*presets.Store, error) {
	return presets.Open(ctx, cfg.PresetsDB, logs.Logger)
}
