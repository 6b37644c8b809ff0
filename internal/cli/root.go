// Package cli implements the webscenario command tree.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/v0xg/webscenario/internal/ai"
	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Config  string

	version string
	deps    deps
}

// deps are the outside-world hooks commands use; tests replace them.
type deps struct {
	launch   func(ctx context.Context, opts browser.Options) (browser.Driver, error)
	provider func(name, model string) (ai.Provider, error)
	lookup   func(string) (string, bool)
	dotenv   func() error
}

func defaultDeps() deps {
	return deps{
		launch:   browser.Launch,
		provider: ai.NewProvider,
		lookup:   os.LookupEnv,
		dotenv:   func() error { return config.LoadDotEnv() },
	}
}

// NewRootCommand creates the root command for the webscenario CLI.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, defaultDeps())
}

func newRootCommand(version string, d deps) *cobra.Command {
	opts := &RootOptions{version: version, deps: d}

	cmd := &cobra.Command{
		Use:   "webscenario",
		Short: "Run declarative end-to-end UI scenarios against a web app",
		Long: `webscenario drives a real browser through YAML scenario suites: navigate,
click and fill by role, text or CSS, and assert on title, text and
visibility, with auto-waiting at every step.

Example:
  webscenario run suites/ --base-url https://dbis-uibk.github.io`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.deps.dotenv(); err != nil {
				return WrapExitError(ExitCommandError, "failed to load .env", err)
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default: ./"+config.DefaultFile+" if present)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))

	return cmd
}

func usageError(err error) error {
	return WrapExitError(ExitCommandError, "invalid usage", err)
}

// usageArgs makes positional argument errors exit like flag errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// logger writes structured diagnostics to w: warnings by default, everything
// with --verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves the file and environment layers. Flags are applied by
// each command.
func (o *RootOptions) loadConfig() (config.Config, error) {
	path, required := config.DefaultFile, false
	if o.Config != "" {
		path, required = o.Config, true
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.ApplyEnv(o.deps.lookup); err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}
