package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/repository"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/server"
)

func main() {
	var (
		limit = flag.Int("limit", 20, "number of runs to list")
		runID = flag.String("run", "", "show a single run by id")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		log.Printf("using SQLite run history at %s (set DB_URL for PostgreSQL)", cfg.Database.SQLitePath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, runs, err := server.ConnectDB(ctx, cfg.Database, false, nil)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer db.Close()

	// Health check
	if err := server.PingDB(ctx, db, 1*time.Second); err != nil {
		log.Fatalf("DB health: FAIL (%v)", err)
	}
	log.Println("DB health: OK")

	if *runID != "" {
		if err := common.NewValidator().Field("run", *runID, common.UUID).Error(); err != nil {
			log.Fatalf("invalid -run: %v", err)
		}
		r, err := runs.Get(ctx, uuid.MustParse(*runID))
		if err != nil {
			log.Fatalf("get run: %v", err)
		}
		printRun(r)
		for _, w := range r.Warnings {
			log.Printf("    warning: %s", w)
		}
		return
	}

	list, err := runs.ListRecent(ctx, *limit)
	if err != nil {
		log.Fatalf("listing runs: %v", err)
	}
	log.Printf("runs count: %d", len(list))
	for _, r := range list {
		printRun(r)
	}
}

func printRun(r *repository.Run) {
	finished := "-"
	if r.FinishedAt != nil {
		finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
	}
	line := []string{
		r.StartedAt.Local().Format(time.DateTime),
		r.ID.String(),
		string(r.Status),
		r.SourceKind + ":" + r.SourceLocation,
		"-> " + r.Destination,
	}
	log.Printf("- %s rows=%d warnings=%d took=%s", strings.Join(line, " "), r.Rows, len(r.Warnings), finished)
	if r.ErrorMessage != "" {
		log.Printf("    error: %s", r.ErrorMessage)
	}
}
