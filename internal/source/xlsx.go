package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
)

// XLSXReader reads one sheet of a local workbook; the first row is the header.
type XLSXReader struct {
	logger *slog.Logger
}

func NewXLSXReader(logger *slog.Logger) *XLSXReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXReader{logger: logger}
}

func (x *XLSXReader) ReadTable(ctx context.Context, ref Ref) (*record.Table, error) {
	if _, err := os.Stat(ref.Location); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, ref.Location)
	}
	f, err := excelize.OpenFile(ref.Location)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheet, err := pickWorksheet(f.GetSheetList(), ref.Worksheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.Location, err)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	t, err := record.FromValues(rows)
	if err != nil {
		return nil, fmt.Errorf("%s!%s: %w", ref.Location, sheet, err)
	}
	x.logger.Debug("xlsx read", "run_id", common.RunIDFromContext(ctx), "path", ref.Location, "sheet", sheet, "rows", t.Len())
	return t, nil
}
