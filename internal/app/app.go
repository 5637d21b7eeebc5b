// Package app wires configuration into a ready-to-run pipeline Processor.
package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/extract"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/pipeline"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/repository"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/server"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/sink"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/source"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/workspace"
)

type Options struct {
	InMemory     bool   // throwaway SQLite run history
	NoHistory    bool   // skip the run-history database entirely
	PatternsFile string // overrides cfg.Extract.PatternsFile
}

// App holds everything a command needs to run transfers.
type App struct {
	Processor *pipeline.Processor
	Runs      repository.RunRepository
	DB        *repository.DB
	Session   *workspace.Session // nil when no Google credentials are available
}

// Build loads patterns, opens the Google session and the run-history database,
// and registers every reader and writer that can be served.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	patternsFile := cfg.Extract.PatternsFile
	if opts.PatternsFile != "" {
		patternsFile = opts.PatternsFile
	}
	set, err := extract.LoadPatterns(patternsFile)
	if err != nil {
		return nil, err
	}
	ex, err := extract.New(set, logger)
	if err != nil {
		return nil, err
	}

	a := &App{}
	sources := source.NewRegistry()
	sinks := sink.NewRegistry()

	sources.RegisterText(constants.SourcePDF, source.NewPDFReader(source.PDFConfig{
		Method:    cfg.Extract.PDFTextMethod,
		Pdftotext: cfg.Extract.Pdftotext,
	}, logger))
	sources.RegisterText(constants.SourceText, source.FileReader{})
	sources.RegisterTable(constants.SourceXLSX, source.NewXLSXReader(logger))
	sinks.Register(constants.SinkXLSX, sink.NewXLSXWriter(logger))

	session, err := workspace.NewSession(ctx, workspace.Config{CredentialsFile: cfg.Google.CredentialsFile}, logger)
	switch {
	case err == nil:
		a.Session = session
		sources.RegisterText(constants.SourceDoc, source.NewDocsReader(session, logger))
		sources.RegisterText(constants.SourceDrivePDF, source.NewDrivePDFReader(session, 0, logger))
		sources.RegisterTable(constants.SourceSheet, source.NewSheetsReader(session, logger))
		sinks.Register(constants.SinkSheet, sink.NewSheetsWriter(session, logger))
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("app.google.disabled", "credentials", cfg.Google.CredentialsFile, "reason", "file not found")
	default:
		return nil, err
	}

	if !opts.NoHistory {
		db, runs, err := server.ConnectDB(ctx, cfg.Database, opts.InMemory, logger)
		if err != nil {
			return nil, err
		}
		a.DB, a.Runs = db, runs
	}

	a.Processor = pipeline.NewProcessor(sources, sinks, ex, a.Runs, logger)
	return a, nil
}

// Close releases the database.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
