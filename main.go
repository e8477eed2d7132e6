// methodmap reconciles the source and compiled views of a codebase's methods
// into a method mapping, a call graph and test pairings.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phobologic/methodmap/internal/config"
	"github.com/phobologic/methodmap/internal/discover"
	"github.com/phobologic/methodmap/internal/ingest"
	"github.com/phobologic/methodmap/internal/reconcile"
	"github.com/phobologic/methodmap/internal/report"
	"github.com/phobologic/methodmap/internal/telemetry"
	"github.com/phobologic/methodmap/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath       string
	outDir           string
	format           string
	workers          int
	top              int
	metricsFile      string
	tracePath        string
	logLevel         string
	respectGitignore bool
	quiet            bool
	showVersion      bool
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "methodmap [flags] [snapshot-root]",
		Short: "Reconcile source and compiled method records",
		Long: `methodmap reads the record documents that the source and compiled extractors
wrote under a snapshot root and produces:

  mapping.json    methods found in both views, and in only one of them
  callgraph.json  caller -> callee graph of the compiled view, with PageRank
  pairings.json   production methods paired with the tests that call them

A run summary is printed to stdout. snapshot-root defaults to the current
directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				_, _ = fmt.Fprintf(stdout, "methodmap %s\n", version)
				return nil
			}
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return analyze(cmd, root, opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file (default "+config.DefaultFile+" if present)")
	f.StringVarP(&opts.outDir, "out", "o", "", "directory for output documents")
	f.StringVarP(&opts.format, "format", "f", "", "summary format: toon or json")
	f.IntVarP(&opts.workers, "workers", "w", 0, "concurrent file loaders (0 = GOMAXPROCS)")
	f.IntVarP(&opts.top, "top", "n", 0, "number of top-ranked methods in the summary")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	f.StringVar(&opts.tracePath, "trace", "", "write trace spans as JSON to this file")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.BoolVar(&opts.respectGitignore, "respect-gitignore", false, "skip record documents ignored by git")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress log output")
	f.BoolVarP(&opts.showVersion, "version", "V", false, "show version and exit")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

// loadConfig layers changed flags over the config file and environment.
func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir = opts.outDir
	}
	if flags.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if flags.Changed("workers") {
		cfg.Input.Workers = opts.workers
	}
	if flags.Changed("top") {
		cfg.Output.Top = opts.top
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("respect-gitignore") {
		cfg.Input.RespectGitignore = opts.respectGitignore
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func analyze(cmd *cobra.Command, root string, opts options, stdout, stderr io.Writer) (err error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := telemetry.Discard()
	if !opts.quiet {
		logger, err = telemetry.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
	}
	logger = logger.With(slog.String("run", runID))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var traceOut io.Writer
	if opts.tracePath != "" {
		tf, err := os.Create(opts.tracePath)
		if err != nil {
			return fmt.Errorf("creating trace file: %w", err)
		}
		defer tf.Close()
		traceOut = tf
	}
	tracing, err := telemetry.SetupTracing(traceOut)
	if err != nil {
		return err
	}
	defer func() {
		if serr := tracing.Shutdown(context.Background()); serr != nil && err == nil {
			err = fmt.Errorf("flushing traces: %w", serr)
		}
	}()
	metrics := telemetry.NewMetrics()

	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	// Discover record documents
	files, skipped, err := discover.Files(root, discover.Patterns{
		SourceSuffix:   cfg.Input.SourceSuffix,
		CompiledSuffix: cfg.Input.CompiledSuffix,
		RespectIgnore:  cfg.Input.RespectGitignore,
	})
	if err != nil {
		return err
	}
	for _, d := range skipped {
		logger.Warn("skipping input",
			slog.String("file", d.File),
			slog.String("reason", d.Message))
	}
	metrics.Diagnostics.Add(float64(len(skipped)))
	if len(files) == 0 {
		logger.Warn("no record documents found",
			slog.String("root", root),
			slog.String("source_suffix", cfg.Input.SourceSuffix),
			slog.String("compiled_suffix", cfg.Input.CompiledSuffix))
	}

	// Load records
	loaded, err := ingest.Load(ctx, root, files, ingest.Options{
		MaxFileSize: cfg.Input.MaxFileSize,
		Workers:     cfg.Input.Workers,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}
	loaded.Diagnostics = append(skipped, loaded.Diagnostics...)

	// Reconcile
	res, err := reconcile.Run(ctx, reconcile.Input{Source: loaded.Source, Compiled: loaded.Compiled}, reconcile.Options{
		ObjectTypes: cfg.Resolve.ObjectTypes,
		TestMarkers: cfg.Pairing.TestMarkers,
		Top:         cfg.Output.Top,
		Logger:      logger,
		Tracer:      tracing.Tracer,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}

	// Write documents
	docs := []struct {
		name string
		doc  any
	}{
		{cfg.Output.MappingFile, report.NewMapping(res.Mapping)},
		{cfg.Output.GraphFile, report.NewCallGraph(res.Graph, res.Ranks)},
		{cfg.Output.PairingFile, report.NewPairings(res.Pairings)},
	}
	summary := report.NewSummary(runID, root, loaded, res)
	for _, d := range docs {
		path := filepath.Join(cfg.Output.Dir, d.name)
		if err := report.WriteJSON(path, d.doc); err != nil {
			return err
		}
		summary.Outputs = append(summary.Outputs, path)
	}

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}

	switch cfg.Output.Format {
	case "json":
		return report.Encode(stdout, summary)
	case "toon":
		_, _ = fmt.Fprintln(stdout, toon.Encode(summary))
		return nil
	}
	return fmt.Errorf("%w %q", config.ErrUnknownFormat, cfg.Output.Format)
}
