package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/workspace"
)

// SpreadsheetEditor is the slice of the Sheets/Drive API the writer needs.
type SpreadsheetEditor interface {
	FindFile(ctx context.Context, name, mimeType string) (string, error)
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	ClearValues(ctx context.Context, spreadsheetID, rng string) error
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

// SheetsWriter clears a worksheet and writes the table from A1 as if typed by a user.
type SheetsWriter struct {
	api    SpreadsheetEditor
	logger *slog.Logger
}

func NewSheetsWriter(api SpreadsheetEditor, logger *slog.Logger) *SheetsWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsWriter{api: api, logger: logger}
}

func (w *SheetsWriter) Write(ctx context.Context, dest Destination, table *record.Table) (WriteResult, error) {
	start := time.Now()
	values, err := checkTable(table)
	if err != nil {
		return WriteResult{}, err
	}

	id, err := w.api.FindFile(ctx, dest.Name, workspace.MimeSpreadsheet)
	if err != nil {
		return WriteResult{}, mapWorkspaceErr(err, dest)
	}
	titles, err := w.api.SheetTitles(ctx, id)
	if err != nil {
		return WriteResult{}, mapWorkspaceErr(err, dest)
	}
	title, err := pickWorksheet(titles, dest.Worksheet)
	if err != nil {
		return WriteResult{}, err
	}

	sheetRange := workspace.QuoteSheet(title)
	if err := w.api.ClearValues(ctx, id, sheetRange); err != nil {
		return WriteResult{}, fmt.Errorf("clear %s: %w", dest, mapWorkspaceErr(err, dest))
	}
	if err := w.api.UpdateValues(ctx, id, sheetRange+"!A1", toCells(values)); err != nil {
		return WriteResult{}, fmt.Errorf("update %s: %w", dest, mapWorkspaceErr(err, dest))
	}

	res := WriteResult{Worksheet: title, Rows: len(values) - 1, Cells: len(values) * len(values[0])}
	w.logger.Info("sheet.write.ok",
		"run_id", common.RunIDFromContext(ctx),
		"destination", dest.Name,
		"worksheet", title,
		"rows", res.Rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func toCells(values [][]string) [][]interface{} {
	out := make([][]interface{}, len(values))
	for i, row := range values {
		out[i] = make([]interface{}, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}

func pickWorksheet(titles []string, want string) (string, error) {
	if len(titles) == 0 {
		return "", fmt.Errorf("%w: spreadsheet has no worksheets", ErrDestinationNotFound)
	}
	if want == "" {
		return titles[0], nil
	}
	for _, t := range titles {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: worksheet %q", ErrDestinationNotFound, want)
}

func mapWorkspaceErr(err error, dest Destination) error {
	if errors.Is(err, workspace.ErrNotFound) {
		return fmt.Errorf("%w: %s: %v", ErrDestinationNotFound, dest.Name, err)
	}
	return err
}
