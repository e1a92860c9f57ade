// Command ragtoxiv answers questions about recent arXiv announcements, either
// in a local session or as a Mastodon reply bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/config"
	"github.com/csheth/ragtoxiv/internal/logging"
)

var version = "dev"

var (
	// Global flags
	configPath string
	verbose    bool
	dataDir    string
	mode       string
	maxFiles   int
	category   string
	model      string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragtoxiv",
	Short: "Answer questions about recent arXiv papers",
	Long: `ragtoxiv keeps dated per-category snapshots of the arXiv announcement feed
and answers questions about them with a language model.

Run it interactively with "cli", or as a Mastodon reply bot with "once" or "daemon".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New(logging.Options{
			Format:  cfg.Log.Format,
			Verbose: cfg.Log.Verbose,
		})
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded",
			zap.String("data_dir", cfg.DataDir),
			zap.String("category", cfg.Session.Category),
			zap.String("mode", cfg.Session.Mode),
			zap.Int("max_files", cfg.Session.MaxFiles))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig reads the config file and layers command-line flags on top. The
// file is only mandatory when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	loaded, err := config.Load(configPath, flags.Changed("config"))
	if err != nil {
		return nil, err
	}
	if flags.Changed("data-dir") {
		loaded.DataDir = dataDir
	}
	if flags.Changed("mode") {
		loaded.Session.Mode = mode
	}
	if flags.Changed("files") {
		loaded.Session.MaxFiles = maxFiles
	}
	if flags.Changed("category") {
		loaded.Session.Category = category
	}
	if flags.Changed("model") {
		loaded.LLM.Model = model
	}
	if verbose {
		loaded.Log.Verbose = true
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the snapshot files")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "Context mode: title, first_sentence or full_abstract")
	rootCmd.PersistentFlags().IntVar(&maxFiles, "files", 0, "Number of recent snapshots to load per question")
	rootCmd.PersistentFlags().StringVar(&category, "category", "", "Default arXiv category, for example cs.LG")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model name passed to the LLM provider")

	cliCmd.Flags().Bool("tui", false, "Use the full-screen terminal interface")
	cliCmd.Flags().Bool("no-alt-screen", false, "Disable the alternate screen buffer in --tui mode")

	onceCmd.Flags().Bool("dry-run", false, "Compose replies without posting or recording them")
	daemonCmd.Flags().Bool("dry-run", false, "Compose replies without posting or recording them")

	fetchCmd.Flags().Bool("dry-run", false, "Fetch and summarise without writing snapshot files")

	snapshotsPruneCmd.Flags().Int("older-than", 0, "Delete snapshots dated more than N days ago")
	snapshotsPruneCmd.Flags().Int("keep", 0, "Keep the N most recent snapshots per category")
	snapshotsPruneCmd.Flags().Bool("skip-empty", false, "Leave empty snapshots alone and do not count them toward --keep")
	snapshotsPruneCmd.Flags().Bool("dry-run", false, "Report what would be deleted")
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsPruneCmd)

	rootCmd.AddCommand(
		cliCmd,
		onceCmd,
		daemonCmd,
		fetchCmd,
		snapshotsCmd,
		versionCmd,
	)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// The version command needs neither configuration nor a logger.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ragtoxiv %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
