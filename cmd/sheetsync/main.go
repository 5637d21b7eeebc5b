package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/app"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/pipeline"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/sink"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/source"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/transform"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/watch"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		sourceKind    = flag.String("source-kind", "doc", "doc|pdf|drive-pdf|sheet|xlsx|text")
		src           = flag.String("source", "", "document id, file path, or Drive/Sheets name (required)")
		worksheet     = flag.String("worksheet", "", "source worksheet for sheet/xlsx sources (default: first)")
		destKind      = flag.String("dest-kind", "sheet", "sheet|xlsx")
		dest          = flag.String("dest", "", "destination spreadsheet name or workbook path")
		destWorksheet = flag.String("dest-worksheet", "", "destination worksheet (default: first)")
		filterField   = flag.String("filter-field", "", "keep only records whose field equals -filter-equals")
		filterEquals  = flag.String("filter-equals", "", "value required in -filter-field")
		annotateField = flag.String("annotate-field", constants.ColumnObservation, "column set on kept records")
		annotateValue = flag.String("annotate-value", constants.AutomationObservation, "value written to -annotate-field")
		useDefault    = flag.Bool("transform", false, "apply the default rule (Status == Aprovado)")
		patterns      = flag.String("patterns", "", "YAML pattern file (overrides PATTERNS_FILE)")
		dryRun        = flag.Bool("dry-run", false, "extract and print the table without writing")
		inmem         = flag.Bool("inmem", false, "use in-memory SQLite run history")
		watchDir      = flag.String("watch", "", "watch a directory and run one job per new PDF")
	)
	flag.Parse()

	if *src == "" && *watchDir == "" {
		printError("Error: -source or -watch is required\n")
		os.Exit(1)
	}
	if *dest == "" && !*dryRun {
		printError("Error: -dest is required unless -dry-run is set\n")
		os.Exit(1)
	}
	kind, ok := constants.ParseSourceKind(*sourceKind)
	if !ok {
		printError("Error: unknown -source-kind %q\n", *sourceKind)
		os.Exit(1)
	}
	sinkKind, ok := constants.ParseSinkKind(*destKind)
	if !ok {
		printError("Error: unknown -dest-kind %q\n", *destKind)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{InMemory: *inmem, PatternsFile: *patterns}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var rule *transform.Rule
	switch {
	case *filterField != "":
		rule = &transform.Rule{Field: *filterField, Equals: *filterEquals, AnnotateField: *annotateField, AnnotateValue: *annotateValue}
	case *useDefault:
		r := transform.DefaultRule()
		rule = &r
	}

	job := pipeline.Job{
		Source:      source.Ref{Kind: kind, Location: *src, Worksheet: *worksheet},
		Destination: sink.Destination{Kind: sinkKind, Name: *dest, Worksheet: *destWorksheet},
		Rule:        rule,
		DryRun:      *dryRun,
	}

	if *watchDir != "" {
		os.Exit(runWatch(ctx, a.Processor, job, *watchDir, cfg, logger))
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()
	out, err := a.Processor.Run(runCtx, job)
	if err != nil {
		logger.Error("transfer failed", "run_id", out.RunID, "error", err)
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	for _, w := range out.Warnings {
		printError("warning: %s\n", w)
	}
	if *dryRun {
		printTable(out.Table.Values())
	}
	fmt.Printf("Transfer complete!\n")
	fmt.Printf("- Run: %s\n", out.RunID)
	fmt.Printf("- Rows: %d\n", out.Table.Len())
	fmt.Printf("- Written: %v\n", out.Written)
	fmt.Printf("- Warnings: %d\n", len(out.Warnings))
}

// runWatch runs one job per PDF that appears under dir, one at a time.
func runWatch(ctx context.Context, proc *pipeline.Processor, tmpl pipeline.Job, dir string, cfg *common.Config, logger *slog.Logger) int {
	events, errs, err := watch.Start(ctx, watch.Config{
		Roots:       []string{dir},
		Exts:        watch.Exts("pdf"),
		InitialScan: true,
		Debounce:    cfg.WatchDebounce,
		SkipHidden:  true,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to start watcher", "dir", dir, "error", err)
		return 1
	}
	logger.Info("watching directory", "dir", dir, "destination", tmpl.Destination.String())

	failures := 0
	for {
		select {
		case path, ok := <-events:
			if !ok {
				logger.Info("watcher stopped", "failures", failures)
				return 0
			}
			job := tmpl
			job.Source = source.Ref{Kind: constants.SourcePDF, Location: path}
			runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
			out, err := proc.Run(runCtx, job)
			cancel()
			if err != nil {
				failures++
				logger.Error("transfer failed", "path", path, "run_id", out.RunID, "error", err)
				continue
			}
			logger.Info("transfer complete", "path", path, "run_id", out.RunID, "rows", out.Table.Len(), "written", out.Written)
		case err, ok := <-errs:
			if ok {
				logger.Warn("watcher error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}

func printTable(values [][]string) {
	for _, row := range values {
		fmt.Println(strings.Join(row, "\t"))
	}
}
