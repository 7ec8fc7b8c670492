// Package commands implements the CLI commands for dirsnap.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jtarrant/dirsnap/internal/config"
	"github.com/jtarrant/dirsnap/internal/engine"
	"github.com/jtarrant/dirsnap/internal/errors"
	"github.com/jtarrant/dirsnap/internal/logging"
)

// version is set at build time via ldflags.
// Default to a development version for local builds.
const version = "0.1.0"

// section holds the value of the -s/--section flag.
var section string

// rulesFile holds the value of the --rules flag.
var rulesFile string

// Run mode flags; they compose independently.
var (
	compress         bool
	incremental      bool
	dryRun           bool
	verify           bool
	checkPermissions bool
	workers          int
)

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "",
		"rules file (default: $DIRSNAP_RULES, then $XDG_CONFIG_HOME/dirsnap/rules.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")

	rootCmd.Flags().StringVarP(&section, "section", "s", config.DefaultSection,
		"rules section to apply")
	rootCmd.Flags().BoolVar(&compress, "compress", false,
		"fold each finished backup into a tar.gz archive")
	rootCmd.Flags().BoolVar(&incremental, "incremental", false,
		"copy only entries changed since the last recorded run")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"report what would be copied without writing anything")
	rootCmd.Flags().BoolVar(&verify, "verify", false,
		"compare SHA-256 digests of source and copy after each file")
	rootCmd.Flags().BoolVar(&checkPermissions, "check-permissions", false,
		"probe readability of every entry before copying it")
	rootCmd.Flags().IntVarP(&workers, "workers", "j", 0,
		"copy worker count (default: number of CPUs)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("dirsnap version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

var rootCmd = &cobra.Command{
	Use:   "dirsnap <source_dir>... <target_dir>",
	Short: "Selective directory backups with exclusion rules",
	Long: `dirsnap copies directory trees into timestamped backup directories,
skipping the build artifacts and caches your rules file excludes.

Each source directory becomes <target>/<basename>_<timestamp>. Exclusion
rules come from a named section of the rules file, so one config serves
python projects, rust projects and everything else.

Runs can be incremental (copy only what changed since the last run),
verified (SHA-256 digest comparison of every copy) and compressed
(the finished tree folded into a tar.gz archive).`,
	Example: `  # Back up one project using the default rules section
  dirsnap ~/code/myproject ~/backups

  # Python project: skip .venv, __pycache__, *.pyc
  dirsnap -s python ~/code/api ~/backups

  # Several projects in one invocation
  dirsnap -s node ~/code/web ~/code/docs ~/backups

  # Incremental, verified, compressed
  dirsnap --incremental --verify --compress ~/code/api ~/backups

  # Preview without writing
  dirsnap --dry-run -s rust ~/code/svc ~/backups

  See Also: dirsnap sections, dirsnap init`,
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) < 2 {
			return errors.NewUserError(
				errors.Newf("expected <source_dir>... <target_dir>, got %d argument(s)", len(args)),
				"Run: dirsnap --help")
		}
		return nil
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if quiet && verbosity > 0 {
			return errors.NewUserError(nil, "cannot use --quiet and --verbose together")
		}
		return nil
	},
	RunE: runRoot,
}

// newLogger builds the pipeline logger from the verbosity flags. The summary
// report is printed separately, so the default level stays at Warn.
func newLogger(cmd *cobra.Command) *slog.Logger {
	if quiet {
		return logging.NewDiscard()
	}

	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}

	return logging.New(logging.Config{
		Level:  level,
		Format: logging.Format(logFormat),
		Output: cmd.ErrOrStderr(),
	})
}

// rulesPath resolves the effective rules file location.
func rulesPath() string {
	if rulesFile != "" {
		return rulesFile
	}
	return config.DefaultPath()
}

func runRoot(cmd *cobra.Command, args []string) error {
	sources := args[:len(args)-1]
	target := args[len(args)-1]

	path := rulesPath()
	set, err := config.Load(path, section)
	if err != nil {
		if errors.Is(err, errors.ErrSectionNotFound) {
			return errors.NewUserError(err,
				fmt.Sprintf("Run: dirsnap sections --rules %s (lists available sections)", path))
		}
		if errors.Is(err, errors.ErrBadPattern) {
			return errors.NewUserError(err,
				fmt.Sprintf("Fix the malformed pattern in %s", path))
		}
		return errors.NewConfigError(err)
	}

	runner := engine.New(set, newLogger(cmd), engine.Options{
		Workers:          workers,
		Compress:         compress,
		Incremental:      incremental,
		DryRun:           dryRun,
		Verify:           verify,
		CheckPermissions: checkPermissions,
	})

	out := cmd.OutOrStdout()
	var fatal []error
	partial := false

	// Sources run sequentially; one failing source never blocks the rest.
	for _, src := range sources {
		summary, err := runner.Run(cmd.Context(), src, target)
		if summary != nil {
			summary.Print(out)
			if !summary.OK() {
				partial = true
			}
		}
		if err != nil {
			if len(sources) == 1 {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", src, err)
			fatal = append(fatal, err)
		}
	}

	switch {
	case len(fatal) > 0:
		// The aggregate exit code follows the first fatal error.
		return errors.NewExitError(
			errors.Newf("%d of %d backups failed", len(fatal), len(sources)),
			errors.CodeFor(fatal[0]))
	case partial:
		return errors.NewExitError(
			errors.New("backup completed with per-file failures"),
			errors.ExitPartial)
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
