package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/v0xg/webscenario/internal/ai"
	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/crawler"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Output   string
	Provider string
	Model    string
	Driver   string
	Headed   bool
	Profile  string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <url> <prompt>",
		Short: "Draft a suite for a page using AI",
		Long: `generate crawls a page, sends its interactive elements and your prompt to
an LLM, and writes a one-scenario suite you can review and run.

Example:
  webscenario generate "https://dbis-uibk.github.io/relax" "open the calculator, join R and S, check the result" -o suites/relax/join.yaml`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the suite to this file instead of stdout")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "AI provider: claude, openai (default: from config or claude)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Specific model override")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "browser driver (rod|playwright)")
	cmd.Flags().BoolVar(&opts.Headed, "headed", false, "show the browser window")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")

	return cmd
}

func generate(cmd *cobra.Command, opts *GenerateOptions, url, prompt string) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	logger := opts.logger(stderr)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Provider != "" {
		cfg.Provider = opts.Provider
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	if cmd.Flags().Changed("headed") {
		cfg.Headless = !opts.Headed
	}
	if opts.Profile != "" {
		cfg.ProfileDir = opts.Profile
	}
	logger.Debug("generate", "url", url, "provider", cfg.Provider, "model", cfg.Model)

	provider, err := opts.deps.provider(cfg.Provider, cfg.Model)
	if err != nil {
		return WrapExitError(ExitCommandError, "AI provider init failed", err)
	}

	driver, err := opts.deps.launch(ctx, browser.Options{
		Driver:     cfg.Driver,
		Headless:   cfg.Headless,
		Width:      cfg.Width,
		Height:     cfg.Height,
		ProfileDir: cfg.ProfileDir,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "browser cannot launch", err)
	}
	defer driver.Close()

	page, err := driver.NewPage(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "browser cannot open a page", err)
	}
	defer page.Close()

	fmt.Fprintf(stderr, "→ Crawling %s... ", url)
	pageMap, err := crawler.Crawl(ctx, page, url, crawler.Options{})
	if err != nil {
		fmt.Fprintln(stderr, "failed")
		return WrapExitError(ExitFailure, "crawl failed", err)
	}
	fmt.Fprintf(stderr, "done (found %d interactive elements)\n", len(pageMap.Elements))

	fmt.Fprintf(stderr, "→ Generating scenario via %s... ", provider.Name())
	suite, err := ai.NewGenerator(provider).GenerateSuite(ctx, pageMap, prompt)
	if err != nil {
		fmt.Fprintln(stderr, "failed")
		return WrapExitError(ExitFailure, "scenario generation failed", err)
	}
	fmt.Fprintf(stderr, "done (%d steps)\n", len(suite.Scenarios[0].Steps))

	data, err := ai.EncodeSuite(suite)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode suite", err)
	}
	if opts.Output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write suite", err)
	}
	fmt.Fprintf(stderr, "✓ Suite written to %s\n", opts.Output)
	return nil
}
