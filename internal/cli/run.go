package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/config"
	"github.com/v0xg/webscenario/internal/metrics"
	"github.com/v0xg/webscenario/internal/recorder"
	"github.com/v0xg/webscenario/internal/report"
	"github.com/v0xg/webscenario/internal/runner"
	"github.com/v0xg/webscenario/internal/scenario"
	"github.com/v0xg/webscenario/internal/session"
	"github.com/v0xg/webscenario/internal/store"
	"github.com/v0xg/webscenario/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	BaseURL     string
	TimeoutMs   int
	PollMs      int
	Workers     int
	Retries     int
	Reporter    string
	Output      string
	Grep        string
	Driver      string
	Headed      bool
	Screenshots bool
	History     string
	MetricsOut  string
	TraceOut    string
	RecordDir   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "run <suite-file-or-dir>...",
		Short: "Run scenario suites",
		Long: `Run every scenario in the given suite files and directories.

Settings come from webscenario.yaml, then WEBSCENARIO_* environment
variables (a .env file is loaded first), then flags.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed or errored
  2 - Command error (invalid config, unreadable suite, browser cannot launch)

Examples:
  webscenario run suites/relax --base-url https://dbis-uibk.github.io
  webscenario run suites --workers 4 --retries 1 --reporter html --output report.html
  webscenario run suites --grep "get*" --record-dir recordings`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			return runSuites(cmd.Context(), opts, cfg, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.BaseURL, "base-url", def.BaseURL, "base URL relative navigations resolve against")
	f.IntVar(&opts.TimeoutMs, "timeout-ms", def.TimeoutMs, "timeout for every wait point (ms)")
	f.IntVar(&opts.PollMs, "poll-ms", def.PollMs, "polling interval (ms)")
	f.IntVar(&opts.Workers, "workers", def.Workers, "scenarios run in parallel")
	f.IntVar(&opts.Retries, "retries", def.Retries, "extra attempts for a failed scenario")
	f.StringVar(&opts.Reporter, "reporter", def.Reporter, "report format (html|json|list|markdown)")
	f.StringVarP(&opts.Output, "output", "o", def.Output, "write the report to this file instead of stdout")
	f.StringVar(&opts.Grep, "grep", "", "only run scenarios whose name matches this glob")
	f.StringVar(&opts.Driver, "driver", def.Driver, "browser driver (rod|playwright)")
	f.BoolVar(&opts.Headed, "headed", !def.Headless, "show the browser window")
	f.BoolVar(&opts.Screenshots, "screenshots", def.Screenshots, "capture a screenshot when a scenario does not pass")
	f.StringVar(&opts.History, "history", def.History, "record results in this SQLite database")
	f.StringVar(&opts.MetricsOut, "metrics-out", def.MetricsOut, "write Prometheus metrics to this textfile")
	f.StringVar(&opts.TraceOut, "trace-out", def.TraceOut, "write OpenTelemetry spans to this file")
	f.StringVar(&opts.RecordDir, "record-dir", def.RecordDir, "record every attempt as a GIF under this directory")

	return cmd
}

// resolve layers changed flags over the file and environment settings.
func (o *RunOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("base-url") {
		cfg.BaseURL = o.BaseURL
	}
	if changed("timeout-ms") {
		cfg.TimeoutMs = o.TimeoutMs
	}
	if changed("poll-ms") {
		cfg.PollMs = o.PollMs
	}
	if changed("workers") {
		cfg.Workers = o.Workers
	}
	if changed("retries") {
		cfg.Retries = o.Retries
	}
	if changed("reporter") {
		cfg.Reporter = o.Reporter
	}
	if changed("output") {
		cfg.Output = o.Output
	}
	if changed("driver") {
		cfg.Driver = o.Driver
	}
	if changed("headed") {
		cfg.Headless = !o.Headed
	}
	if changed("screenshots") {
		cfg.Screenshots = o.Screenshots
	}
	if changed("history") {
		cfg.History = o.History
	}
	if changed("metrics-out") {
		cfg.MetricsOut = o.MetricsOut
	}
	if changed("trace-out") {
		cfg.TraceOut = o.TraceOut
	}
	if changed("record-dir") {
		cfg.RecordDir = o.RecordDir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid settings", err)
	}
	return cfg, nil
}

func runSuites(ctx context.Context, opts *RunOptions, cfg config.Config, paths []string, stdout, stderr io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger(stderr)

	suites, err := scenario.LoadAll(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suites", err)
	}
	total := 0
	for _, s := range suites {
		total += len(s.Scenarios)
	}
	fmt.Fprintf(stderr, "→ Loaded %d suites (%d scenarios)\n", len(suites), total)

	reporter, err := report.New(cfg.Reporter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid reporter", err)
	}

	if cfg.TraceOut != "" {
		tp, err := telemetry.Setup(cfg.TraceOut, opts.version)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to set up tracing", err)
		}
		defer func() {
			if serr := tp.Shutdown(context.WithoutCancel(ctx)); serr != nil {
				logger.Warn("trace shutdown failed", "error", serr)
			}
		}()
	}

	fmt.Fprintf(stderr, "→ Launching %s browser... ", cfg.Driver)
	driver, err := opts.deps.launch(ctx, browser.Options{
		Driver:     cfg.Driver,
		Headless:   cfg.Headless,
		Width:      cfg.Width,
		Height:     cfg.Height,
		ProfileDir: cfg.ProfileDir,
	})
	if err != nil {
		fmt.Fprintln(stderr, "failed")
		return WrapExitError(ExitCommandError, "browser cannot launch", err)
	}
	fmt.Fprintln(stderr, "done")

	sessions, err := session.NewManager(driver, cfg.BaseURL, logger)
	if err != nil {
		driver.Close()
		return WrapExitError(ExitCommandError, "invalid base url", err)
	}
	defer func() {
		if cerr := sessions.Close(); cerr != nil {
			logger.Warn("browser shutdown failed", "error", cerr)
		}
	}()

	m := metrics.New()
	runOpts := runner.Options{
		Workers:           cfg.Workers,
		Retries:           cfg.Retries,
		Timeout:           cfg.Timeout(),
		Interval:          cfg.Poll(),
		NavigationTimeout: cfg.NavigationTimeout(),
		Grep:              opts.Grep,
		Screenshots:       cfg.Screenshots,
		Metrics:           m,
		Logger:            logger,
		OnResult: func(r runner.Result) {
			fmt.Fprintf(stderr, "  %s %s › %s (%s)\n", stateSymbol(r.State), r.Suite, r.Name, r.Duration.Round(time.Millisecond))
		},
	}
	if cfg.RecordDir != "" {
		dir := cfg.RecordDir
		runOpts.Recorder = func(suite, sc string, attempt int) runner.Recorder {
			return recorder.New(recorder.Options{Dir: dir}, suite, sc, attempt)
		}
	}

	fmt.Fprintf(stderr, "→ Running with %d workers...\n", cfg.Workers)
	summary, err := runner.New(sessions, runOpts).Run(ctx, suites)
	if err != nil {
		if errors.Is(err, runner.ErrNoScenarios) {
			return WrapExitError(ExitCommandError, "nothing to run", err)
		}
		return WrapExitError(ExitCommandError, "run failed", err)
	}

	if err := writeReport(reporter, summary, cfg.Output, stdout); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if cfg.Output != "" {
		fmt.Fprintf(stderr, "→ Report written to %s\n", cfg.Output)
	}

	if cfg.History != "" {
		if err := saveHistory(ctx, cfg.History, summary); err != nil {
			logger.Warn("history not saved", "path", cfg.History, "error", err)
		}
	}
	if cfg.MetricsOut != "" {
		if err := m.WriteTextfile(cfg.MetricsOut); err != nil {
			logger.Warn("metrics not written", "path", cfg.MetricsOut, "error", err)
		}
	}

	if !summary.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios did not pass",
			len(summary.Results)-summary.Count(runner.Passed), len(summary.Results)))
	}
	return nil
}

func writeReport(r report.Reporter, s *runner.Summary, path string, stdout io.Writer) error {
	if path == "" {
		return r.Report(stdout, s)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Report(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func saveHistory(ctx context.Context, path string, s *runner.Summary) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveRun(ctx, s)
}

func stateSymbol(s runner.State) string {
	switch s {
	case runner.Passed:
		return "✓"
	case runner.Failed:
		return "✗"
	default:
		return "!"
	}
}
