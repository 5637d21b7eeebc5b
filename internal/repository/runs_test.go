package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
)

func openTestRepo(t *testing.T) (*DB, RunRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{SQLitePath: ":memory:"}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(db.Close)
	repo := NewRunRepository(db, logger)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db, repo
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	_, repo := openTestRepo(t)

	run, err := repo.Start(ctx, NewRun{SourceKind: "doc", SourceLocation: "Pedidos", Destination: "Relatorio"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.Status != constants.RunStatusRunning {
		t.Fatalf("status = %s, want RUNNING", run.Status)
	}

	warnings := []string{"row 2: amount \"abc\" is malformed"}
	if err := repo.FinishSuccess(ctx, run.ID, constants.RunStatusWritten, 3, warnings); err != nil {
		t.Fatalf("FinishSuccess: %v", err)
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != constants.RunStatusWritten || got.Rows != 3 {
		t.Errorf("got status=%s rows=%d, want WRITTEN/3", got.Status, got.Rows)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != warnings[0] {
		t.Errorf("warnings = %v, want %v", got.Warnings, warnings)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if got.SourceLocation != "Pedidos" || got.Destination != "Relatorio" {
		t.Errorf("unexpected run: %+v", got)
	}
}

func TestFinishFailure(t *testing.T) {
	ctx := context.Background()
	_, repo := openTestRepo(t)

	run, err := repo.Start(ctx, NewRun{SourceKind: "pdf", SourceLocation: "a.pdf", Destination: "out.xlsx"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := repo.FinishFailure(ctx, run.ID, "shape mismatch"); err != nil {
		t.Fatalf("FinishFailure: %v", err)
	}
	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != constants.RunStatusFailed || got.ErrorMessage != "shape mismatch" {
		t.Errorf("got %s %q", got.Status, got.ErrorMessage)
	}
	if len(got.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", got.Warnings)
	}
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	_, repo := openTestRepo(t)
	id := uuid.New()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"get", func() error { _, err := repo.Get(ctx, id); return err }},
		{"finish success", func() error { return repo.FinishSuccess(ctx, id, constants.RunStatusWritten, 1, nil) }},
		{"finish failure", func() error { return repo.FinishFailure(ctx, id, "boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("err = %v, want ErrRunNotFound", err)
			}
		})
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestRepo(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	repo := &runRepo{drv: db.Driver, dialect: db.Dialect, log: logger, now: func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}}

	var ids []uuid.UUID
	for _, loc := range []string{"first", "second", "third"} {
		run, err := repo.Start(ctx, NewRun{SourceKind: "text", SourceLocation: loc, Destination: "d"})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("order = %s,%s; want third,second", runs[0].SourceLocation, runs[1].SourceLocation)
	}
}

func TestHealthCheck(t *testing.T) {
	db, _ := openTestRepo(t)
	if err := db.HealthCheck(context.Background(), time.Second); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
