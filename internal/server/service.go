// Package server exposes the transfer pipeline over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/extract"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/pipeline"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/repository"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/sink"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/source"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/transform"
)

const maxListRuns = 200

// Runner runs one pipeline job.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error)
}

// TransferService implements TransferServer on top of a pipeline Runner.
type TransferService struct {
	runner  Runner
	runs    repository.RunRepository // optional
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewTransferService(runner Runner, runs repository.RunRepository, timeout time.Duration, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferService{
		runner:  runner,
		runs:    runs,
		timeout: timeout,
		logger:  logger,
		locks:   make(map[string]chan struct{}),
	}
}

// Run implements TransferServer.
func (s *TransferService) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	job, err := jobFromRequest(req)
	if err != nil {
		s.logger.Warn("transfer.run.invalid", "error", err)
		return nil, common.InvalidArgumentError(err.Error())
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if !job.DryRun {
		unlock, err := s.lock(ctx, job.Destination.String())
		if err != nil {
			s.logger.Warn("transfer.run.lock_abandoned", "destination", job.Destination.String(), "error", err)
			return nil, toStatus(err)
		}
		defer unlock()
	}

	s.logger.Info("transfer.run.start", "source", job.Source.String(), "destination", job.Destination.String(), "dry_run", job.DryRun)
	out, err := s.runner.Run(ctx, job)
	if err != nil {
		s.logger.Error("transfer.run.failed", "run_id", out.RunID, "error", err)
		return nil, toStatus(err)
	}

	resp := map[string]any{
		"run_id":   out.RunID.String(),
		"rows":     out.Table.Len(),
		"written":  out.Written,
		"warnings": stringList(out.Warnings),
		"header":   stringList(out.Table.Header),
	}
	if job.DryRun {
		rows := make([]any, 0, out.Table.Len())
		if values := out.Table.Values(); len(values) > 1 {
			for _, row := range values[1:] {
				rows = append(rows, stringList(row))
			}
		}
		resp["values"] = rows
	}
	return structpb.NewStruct(resp)
}

// ListRuns implements TransferServer.
func (s *TransferService) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.Unimplemented, "run history is disabled")
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	if limit < 0 || limit > maxListRuns {
		return nil, common.InvalidArgumentErrorf("limit must be between 0 and %d", maxListRuns)
	}

	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("transfer.list_runs.failed", "error", err)
		return nil, common.InternalError("list runs failed")
	}
	items := make([]any, 0, len(runs))
	for _, r := range runs {
		item := map[string]any{
			"id":              r.ID.String(),
			"source_kind":     r.SourceKind,
			"source_location": r.SourceLocation,
			"destination":     r.Destination,
			"status":          string(r.Status),
			"rows":            r.Rows,
			"warnings":        stringList(r.Warnings),
			"error_message":   r.ErrorMessage,
			"started_at":      r.StartedAt.UTC().Format(time.RFC3339Nano),
		}
		if r.FinishedAt != nil {
			item["finished_at"] = r.FinishedAt.UTC().Format(time.RFC3339Nano)
		}
		items = append(items, item)
	}
	return structpb.NewStruct(map[string]any{"runs": items})
}

// lock serializes runs that write to the same destination. Waiting gives up
// when ctx is done.
func (s *TransferService) lock(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	sem, ok := s.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[key] = sem
	}
	s.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func jobFromRequest(req *structpb.Struct) (pipeline.Job, error) {
	f := req.GetFields()
	str := func(name string) string { return strings.TrimSpace(f[name].GetStringValue()) }

	kind, ok := constants.ParseSourceKind(str("source_kind"))
	if !ok {
		return pipeline.Job{}, fmt.Errorf("unknown source_kind %q", str("source_kind"))
	}
	destKind, ok := constants.ParseSinkKind(str("destination_kind"))
	if !ok {
		return pipeline.Job{}, fmt.Errorf("unknown destination_kind %q", str("destination_kind"))
	}

	job := pipeline.Job{
		Source:      source.Ref{Kind: kind, Location: str("source"), Worksheet: str("worksheet")},
		Destination: sink.Destination{Kind: destKind, Name: str("destination"), Worksheet: str("destination_worksheet")},
		DryRun:      f["dry_run"].GetBoolValue(),
	}
	if field := str("filter_field"); field != "" {
		rule := transform.Rule{
			Field:         field,
			Equals:        f["filter_equals"].GetStringValue(),
			AnnotateField: str("annotate_field"),
			AnnotateValue: f["annotate_value"].GetStringValue(),
		}
		job.Rule = &rule
	}
	return job, nil
}

// toStatus maps pipeline errors to gRPC status codes.
func toStatus(err error) error {
	msg := err.Error()
	switch {
	case pipeline.IsInvalid(err):
		return common.InvalidArgumentError(msg)
	case errors.Is(err, source.ErrSourceNotFound),
		errors.Is(err, sink.ErrDestinationNotFound),
		errors.Is(err, repository.ErrRunNotFound):
		return common.NotFoundError(msg)
	case errors.Is(err, extract.ErrShapeMismatch),
		errors.Is(err, transform.ErrFieldNotFound),
		errors.Is(err, sink.ErrEmptyTable):
		return common.FailedPreconditionError(msg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, msg)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msg)
	}
	return common.InternalError(msg)
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
