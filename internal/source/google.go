package source

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

// DocumentTexter returns the flattened body text of a Google Docs document.
type DocumentTexter interface {
	DocumentText(ctx context.Context, documentID string) (string, error)
}

// DriveFiles finds and downloads Drive files by name.
type DriveFiles interface {
	FindFile(ctx context.Context, name, mimeType string) (string, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// SpreadsheetValues reads worksheets of a spreadsheet found by name.
type SpreadsheetValues interface {
	FindFile(ctx context.Context, name, mimeType string) (string, error)
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
}

// DocsReader reads a Google Docs document by id.
type DocsReader struct {
	api    DocumentTexter
	logger *slog.Logger
}

func NewDocsReader(api DocumentTexter, logger *slog.Logger) *DocsReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocsReader{api: api, logger: logger}
}

func (d *DocsReader) ReadText(ctx context.Context, ref Ref) (TextResult, error) {
	start := time.Now()
	d.logger.Info("reading google doc", "run_id", common.RunIDFromContext(ctx), "document_id", ref.Location)
	text, err := d.api.DocumentText(ctx, ref.Location)
	if err != nil {
		return TextResult{}, mapWorkspaceErr(err)
	}
	return TextResult{Text: text, Pages: 1, Method: "docs-api", Duration: time.Since(start)}, nil
}

// DrivePDFReader finds a PDF on Drive by file name and reads it natively.
type DrivePDFReader struct {
	api      DriveFiles
	maxPages int
	logger   *slog.Logger
}

func NewDrivePDFReader(api DriveFiles, maxPages int, logger *slog.Logger) *DrivePDFReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DrivePDFReader{api: api, maxPages: maxPages, logger: logger}
}

func (d *DrivePDFReader) ReadText(ctx context.Context, ref Ref) (TextResult, error) {
	start := time.Now()
	d.logger.Info("looking up pdf on drive", "run_id", common.RunIDFromContext(ctx), "name", ref.Location)
	id, err := d.api.FindFile(ctx, ref.Location, workspace.MimePDF)
	if err != nil {
		return TextResult{}, mapWorkspaceErr(err)
	}
	data, err := d.api.Download(ctx, id)
	if err != nil {
		return TextResult{}, mapWorkspaceErr(err)
	}
	res, err := PDFBytesText(data, d.maxPages)
	if err != nil {
		return res, fmt.Errorf("%s: %w", ref.Location, err)
	}
	res.Duration = time.Since(start)
	d.logger.Debug("drive pdf read", "run_id", common.RunIDFromContext(ctx), "name", ref.Location, "file_id", id, "pages", res.Pages, "bytes", len(data))
	return res, nil
}

// SheetsReader reads a worksheet of a spreadsheet found by name. The first
// row is the header.
type SheetsReader struct {
	api    SpreadsheetValues
	logger *slog.Logger
}

func NewSheetsReader(api SpreadsheetValues, logger *slog.Logger) *SheetsReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsReader{api: api, logger: logger}
}

func (s *SheetsReader) ReadTable(ctx context.Context, ref Ref) (*record.Table, error) {
	s.logger.Info("reading google sheet", "run_id", common.RunIDFromContext(ctx), "name", ref.Location, "worksheet", ref.Worksheet)
	id, err := s.api.FindFile(ctx, ref.Location, workspace.MimeSpreadsheet)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	titles, err := s.api.SheetTitles(ctx, id)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	title, err := pickWorksheet(titles, ref.Worksheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.Location, err)
	}
	cells, err := s.api.GetValues(ctx, id, workspace.QuoteSheet(title))
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	t, err := record.FromCells(cells)
	if err != nil {
		return nil, fmt.Errorf("%s!%s: %w", ref.Location, title, err)
	}
	s.logger.Debug("google sheet read", "run_id", common.RunIDFromContext(ctx), "name", ref.Location, "worksheet", title, "rows", t.Len())
	return t, nil
}

func pickWorksheet(titles []string, want string) (string, error) {
	if len(titles) == 0 {
		return "", fmt.Errorf("%w: spreadsheet has no worksheets", ErrSourceNotFound)
	}
	if want == "" {
		return titles[0], nil
	}
	for _, t := range titles {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: worksheet %q", ErrSourceNotFound, want)
}

func mapWorkspaceErr(err error) error {
	if errors.Is(err, workspace.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}
	return err
}
