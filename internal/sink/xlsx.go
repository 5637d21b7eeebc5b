package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
)

const defaultSheet = "Sheet1"

// XLSXWriter replaces one sheet of a local workbook, creating the workbook
// (and the sheet) when missing. Other sheets are left alone.
type XLSXWriter struct {
	logger *slog.Logger
}

func NewXLSXWriter(logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{logger: logger}
}

func (x *XLSXWriter) Write(ctx context.Context, dest Destination, table *record.Table) (WriteResult, error) {
	start := time.Now()
	values, err := checkTable(table)
	if err != nil {
		return WriteResult{}, err
	}

	f, existed, err := openOrCreate(dest.Name)
	if err != nil {
		return WriteResult{}, err
	}
	defer f.Close()

	sheet, err := prepareSheet(f, existed, dest.Worksheet)
	if err != nil {
		return WriteResult{}, err
	}

	widths := make([]int, len(values[0]))
	for i, row := range values {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
			if n := utf8.RuneCountInString(v); n > widths[j] {
				widths[j] = n
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return WriteResult{}, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	// Widen columns to fit their longest value, within reason.
	for j, w := range widths {
		col, _ := excelize.ColumnNumberToName(j + 1)
		_ = f.SetColWidth(sheet, col, col, float64(min(max(w+2, 10), 60)))
	}

	if existed {
		err = f.Save()
	} else {
		err = f.SaveAs(dest.Name)
	}
	if err != nil {
		return WriteResult{}, fmt.Errorf("xlsx write: %w", err)
	}

	res := WriteResult{Worksheet: sheet, Rows: len(values) - 1, Cells: len(values) * len(values[0])}
	x.logger.Info("xlsx.write.ok",
		"run_id", common.RunIDFromContext(ctx),
		"path", dest.Name,
		"sheet", sheet,
		"rows", res.Rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func openOrCreate(path string) (*excelize.File, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return excelize.NewFile(), false, nil
		}
		return nil, false, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, true, fmt.Errorf("opening XLSX: %w", err)
	}
	return f, true, nil
}

// prepareSheet returns the target sheet name with all of its rows removed.
func prepareSheet(f *excelize.File, existed bool, want string) (string, error) {
	if !existed {
		if want != "" && want != defaultSheet {
			if err := f.SetSheetName(defaultSheet, want); err != nil {
				return "", err
			}
			return want, nil
		}
		return defaultSheet, nil
	}

	sheets := f.GetSheetList()
	sheet := want
	if sheet == "" {
		sheet = sheets[0]
	}
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return "", err
		}
		return sheet, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	for r := len(rows); r >= 1; r-- {
		if err := f.RemoveRow(sheet, r); err != nil {
			return "", fmt.Errorf("clear sheet %s: %w", sheet, err)
		}
	}
	return sheet, nil
}
