package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/extract"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/pipeline"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/repository"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/sink"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/source"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/transform"
)

type fakeRunner struct {
	err    error
	gotJob pipeline.Job
}

func (f *fakeRunner) Run(_ context.Context, job pipeline.Job) (pipeline.Outcome, error) {
	f.gotJob = job
	if f.err != nil {
		return pipeline.Outcome{}, f.err
	}
	t := record.New("Cliente", "Valor", "Status")
	t.Append("Ana", "150,00", "Aprovado")
	return pipeline.Outcome{Table: t, Written: !job.DryRun, Warnings: []string{"w1"}}, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dial(t *testing.T, svc TransferServer) *TransferClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterTransferServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewTransferClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestRunBuildsJob(t *testing.T) {
	runner := &fakeRunner{}
	client := dial(t, NewTransferService(runner, nil, time.Second, quietLogger()))

	resp, err := client.Run(context.Background(), mustStruct(t, map[string]any{
		"source_kind":    "doc",
		"source":         "doc-1",
		"destination":    "Destino",
		"filter_field":   "Status",
		"filter_equals":  "Aprovado",
		"annotate_field": "Observacao",
		"annotate_value": "ok",
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	job := runner.gotJob
	if job.Source.Kind != constants.SourceDoc || job.Source.Location != "doc-1" {
		t.Errorf("source = %+v", job.Source)
	}
	if job.Destination.Kind != constants.SinkSheet || job.Destination.Name != "Destino" {
		t.Errorf("destination = %+v", job.Destination)
	}
	want := transform.Rule{Field: "Status", Equals: "Aprovado", AnnotateField: "Observacao", AnnotateValue: "ok"}
	if job.Rule == nil || *job.Rule != want {
		t.Errorf("rule = %+v", job.Rule)
	}

	f := resp.GetFields()
	if f["rows"].GetNumberValue() != 1 || !f["written"].GetBoolValue() {
		t.Errorf("resp = %v", resp)
	}
	if h := f["header"].GetListValue().GetValues(); len(h) != 3 || h[0].GetStringValue() != "Cliente" {
		t.Errorf("header = %v", h)
	}
	if _, ok := f["values"]; ok {
		t.Error("values returned for a non dry run")
	}
}

func TestRunDryRunReturnsValues(t *testing.T) {
	client := dial(t, NewTransferService(&fakeRunner{}, nil, 0, quietLogger()))
	resp, err := client.Run(context.Background(), mustStruct(t, map[string]any{
		"source_kind": "text", "source": "orders.txt", "dry_run": true,
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rows := resp.GetFields()["values"].GetListValue().GetValues()
	if len(rows) != 1 || rows[0].GetListValue().GetValues()[0].GetStringValue() != "Ana" {
		t.Errorf("values = %v", rows)
	}
}

func TestRunErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", fmt.Errorf("%w: source is required", common.ErrValidation), codes.InvalidArgument},
		{"unsupported", source.ErrUnsupportedSource, codes.InvalidArgument},
		{"source missing", fmt.Errorf("read: %w", source.ErrSourceNotFound), codes.NotFound},
		{"destination missing", sink.ErrDestinationNotFound, codes.NotFound},
		{"shape", &extract.ShapeMismatchError{Counts: []extract.ColumnCount{{Name: "customer", Count: 2}, {Name: "status", Count: 3}}}, codes.FailedPrecondition},
		{"field", &transform.FieldNotFoundError{Field: "Status"}, codes.FailedPrecondition},
		{"other", fmt.Errorf("sheets api exploded"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := dial(t, NewTransferService(&fakeRunner{err: tt.err}, nil, 0, quietLogger()))
			_, err := client.Run(context.Background(), mustStruct(t, map[string]any{
				"source_kind": "doc", "source": "d", "destination": "x",
			}))
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestRunRejectsUnknownKind(t *testing.T) {
	runner := &fakeRunner{}
	client := dial(t, NewTransferService(runner, nil, 0, quietLogger()))
	_, err := client.Run(context.Background(), mustStruct(t, map[string]any{"source_kind": "fax", "source": "x"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

type countingRunner struct {
	active, peak atomic.Int32
}

func (c *countingRunner) Run(_ context.Context, job pipeline.Job) (pipeline.Outcome, error) {
	n := c.active.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	c.active.Add(-1)
	return pipeline.Outcome{Table: record.New("a")}, nil
}

func TestRunSerializesSameDestination(t *testing.T) {
	runner := &countingRunner{}
	svc := NewTransferService(runner, nil, 0, quietLogger())
	req := mustStruct(t, map[string]any{"source_kind": "doc", "source": "d", "destination": "Destino"})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Run(context.Background(), req); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()
	if p := runner.peak.Load(); p != 1 {
		t.Errorf("peak concurrency = %d, want 1", p)
	}
}

type holdingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (h *holdingRunner) Run(context.Context, pipeline.Job) (pipeline.Outcome, error) {
	h.started <- struct{}{}
	<-h.release
	return pipeline.Outcome{Table: record.New("a")}, nil
}

func TestRunWaitingForDestinationHonoursContext(t *testing.T) {
	runner := &holdingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewTransferService(runner, nil, 0, quietLogger())
	req := mustStruct(t, map[string]any{"source_kind": "doc", "source": "d", "destination": "Destino"})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), req)
		done <- err
	}()
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.Run(ctx, req)
	if status.Code(err) != codes.DeadlineExceeded {
		t.Fatalf("queued run err = %v, want DeadlineExceeded", err)
	}

	close(runner.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The destination is free again once the first run returns.
	other := &holdingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	close(other.release)
	svc.runner = other
	if _, err := svc.Run(context.Background(), req); err != nil {
		t.Fatalf("follow-up run: %v", err)
	}
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	logger := quietLogger()
	db, runs, err := ConnectDB(ctx, common.DatabaseConfig{}, true, logger)
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	t.Cleanup(db.Close)

	run, err := runs.Start(ctx, repository.NewRun{SourceKind: "doc", SourceLocation: "doc-1", Destination: "sheet:Destino"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := runs.FinishFailure(ctx, run.ID, "boom"); err != nil {
		t.Fatalf("FinishFailure: %v", err)
	}

	client := dial(t, NewTransferService(&fakeRunner{}, runs, 0, logger))
	resp, err := client.ListRuns(ctx, mustStruct(t, map[string]any{"limit": 10}))
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	items := resp.GetFields()["runs"].GetListValue().GetValues()
	if len(items) != 1 {
		t.Fatalf("runs = %d, want 1", len(items))
	}
	item := items[0].GetStructValue().GetFields()
	if item["id"].GetStringValue() != run.ID.String() || item["status"].GetStringValue() != "FAILED" {
		t.Errorf("item = %v", item)
	}

	if _, err := client.ListRuns(ctx, mustStruct(t, map[string]any{"limit": 5000})); status.Code(err) != codes.InvalidArgument {
		t.Errorf("large limit err = %v", err)
	}
}

func TestListRunsWithoutHistory(t *testing.T) {
	client := dial(t, NewTransferService(&fakeRunner{}, nil, 0, quietLogger()))
	_, err := client.ListRuns(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("err = %v, want Unimplemented", err)
	}
}
