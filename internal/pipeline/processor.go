// Package pipeline runs one transfer: read a source, turn it into a table,
// and replace the destination with it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/extract"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/repository"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/sink"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/source"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/transform"
)

const (
	finishTimeout = 5 * time.Second
	maxSheetTitle = 100 // Google Sheets limit on worksheet names
)

// Job is one transfer request.
type Job struct {
	Source      source.Ref
	Destination sink.Destination
	Rule        *transform.Rule // nil keeps every record
	DryRun      bool
}

// Outcome describes a finished run.
type Outcome struct {
	RunID    uuid.UUID
	Table    *record.Table
	Warnings []string
	Written  bool
	Duration time.Duration
}

// Processor coordinates reading, extraction, transformation and writing.
type Processor struct {
	Sources   *source.Registry
	Sinks     *sink.Registry
	Extractor *extract.Extractor
	Runs      repository.RunRepository // optional
	Logger    *slog.Logger
}

func NewProcessor(sources *source.Registry, sinks *sink.Registry, ex *extract.Extractor, runs repository.RunRepository, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if ex == nil {
		ex = extract.Default(logger)
	}
	return &Processor{Sources: sources, Sinks: sinks, Extractor: ex, Runs: runs, Logger: logger}
}

// Run executes job. The destination is only touched after the table has been
// fully built; any earlier failure leaves it as it was.
func (p *Processor) Run(ctx context.Context, job Job) (Outcome, error) {
	start := time.Now()
	out := Outcome{}

	if err := validateJob(job); err != nil {
		p.Logger.Warn("pipeline.invalid", "err", err)
		return out, err
	}

	if p.Runs != nil {
		run, err := p.Runs.Start(ctx, repository.NewRun{
			SourceKind:     string(job.Source.Kind),
			SourceLocation: job.Source.Location,
			Destination:    job.Destination.String(),
		})
		if err != nil {
			return out, fmt.Errorf("start run: %w", err)
		}
		out.RunID = run.ID
		ctx = common.WithRunID(ctx, run.ID.String())
	}
	log := p.Logger.With("run_id", out.RunID, "source", job.Source.String())

	table, warnings, err := p.build(ctx, job, log)
	out.Warnings = warnings
	if err != nil {
		p.fail(ctx, out.RunID, err, log)
		out.Duration = time.Since(start)
		return out, err
	}
	out.Table = table

	status := constants.RunStatusExtracted
	if !job.DryRun {
		w, err := p.Sinks.Get(job.Destination.Kind)
		if err != nil {
			p.fail(ctx, out.RunID, err, log)
			out.Duration = time.Since(start)
			return out, err
		}
		res, err := w.Write(ctx, job.Destination, table)
		if err != nil {
			err = fmt.Errorf("write %s: %w", job.Destination, err)
			p.fail(ctx, out.RunID, err, log)
			out.Duration = time.Since(start)
			return out, err
		}
		out.Written = true
		status = constants.RunStatusWritten
		log.Info("pipeline.write.ok", "destination", job.Destination.String(), "worksheet", res.Worksheet, "rows", res.Rows, "cells", res.Cells)
	}

	if p.Runs != nil {
		fctx, cancel := finishContext(ctx)
		err := p.Runs.FinishSuccess(fctx, out.RunID, status, table.Len(), out.Warnings)
		cancel()
		if err != nil {
			log.Error("pipeline.run.finish_failed", "err", err)
		}
	}
	out.Duration = time.Since(start)
	log.Info("pipeline.ok", "status", status, "rows", table.Len(), "warnings", len(out.Warnings), "duration_ms", out.Duration.Milliseconds())
	return out, nil
}

// build reads the source and produces the final table.
func (p *Processor) build(ctx context.Context, job Job, log *slog.Logger) (*record.Table, []string, error) {
	var (
		table    *record.Table
		warnings []string
	)

	if job.Source.Kind.IsTextual() {
		tr, err := p.Sources.Text(job.Source.Kind)
		if err != nil {
			return nil, nil, err
		}
		text, err := tr.ReadText(ctx, job.Source)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", job.Source, err)
		}
		warnings = append(warnings, text.Warnings...)
		log.Info("pipeline.read.ok", "method", text.Method, "pages", text.Pages, "chars", len(text.Text), "duration_ms", text.Duration.Milliseconds())

		res, err := p.Extractor.Extract(text.Text)
		if err != nil {
			return nil, warnings, fmt.Errorf("extract %s: %w", job.Source, err)
		}
		warnings = append(warnings, res.Warnings...)
		table = res.Table
		log.Info("pipeline.extract.ok", "rows", table.Len())
	} else {
		tr, err := p.Sources.Table(job.Source.Kind)
		if err != nil {
			return nil, nil, err
		}
		table, err = tr.ReadTable(ctx, job.Source)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", job.Source, err)
		}
		log.Info("pipeline.read.ok", "rows", table.Len(), "columns", len(table.Header))
	}

	if job.Rule != nil {
		filtered, err := transform.Apply(table, *job.Rule)
		if err != nil {
			return nil, warnings, fmt.Errorf("transform: %w", err)
		}
		log.Info("pipeline.transform.ok", "field", job.Rule.Field, "kept", filtered.Len(), "of", table.Len())
		table = filtered
	}
	return table, warnings, nil
}

func (p *Processor) fail(ctx context.Context, runID uuid.UUID, cause error, log *slog.Logger) {
	log.Error("pipeline.failed", "err", cause)
	if p.Runs == nil || runID == uuid.Nil {
		return
	}
	fctx, cancel := finishContext(ctx)
	defer cancel()
	if err := p.Runs.FinishFailure(fctx, runID, cause.Error()); err != nil {
		log.Error("pipeline.run.finish_failed", "err", err)
	}
}

// finishContext outlives a cancelled or timed-out run so its record is still closed.
func finishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}

func validateJob(job Job) error {
	v := common.NewValidator().
		Field("source", job.Source.Location, common.Required).
		Field("source_kind", string(job.Source.Kind), common.OneOf(sourceKinds()...)).
		Field("worksheet", job.Source.Worksheet, common.MaxLength(maxSheetTitle))
	if !job.DryRun {
		v.Field("destination", job.Destination.Name, common.Required).
			Field("destination_kind", string(job.Destination.Kind), common.OneOf(string(constants.SinkSheet), string(constants.SinkXLSX))).
			Field("destination_worksheet", job.Destination.Worksheet, common.MaxLength(maxSheetTitle))
	}
	if job.Rule != nil {
		v.Field("filter_field", job.Rule.Field, common.Required).
			Field("annotate_field", job.Rule.AnnotateField, common.Required)
	}
	return v.Error()
}

func sourceKinds() []string {
	kinds := constants.AllSourceKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// IsInvalid reports whether err is a caller mistake rather than a failure.
func IsInvalid(err error) bool {
	return errors.Is(err, common.ErrValidation) ||
		errors.Is(err, source.ErrUnsupportedSource) ||
		errors.Is(err, sink.ErrUnsupportedSink) ||
		errors.Is(err, transform.ErrInvalidRule) ||
		errors.Is(err, extract.ErrInvalidPattern)
}
