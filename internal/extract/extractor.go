// Package extract turns raw document text into a record table by applying a
// fixed set of label patterns and joining their matches by position.
package extract

import (
	"fmt"
	"log/slog"

	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
)

// ExtractedColumn holds every capture of one pattern, in document order.
type ExtractedColumn struct {
	Name   string
	Column string
	Values []string
}

// Result is the outcome of one extraction.
type Result struct {
	Table    *record.Table
	Counts   map[string]int
	Warnings []string
}

// Extractor applies a compiled PatternSet. It is safe for concurrent use.
type Extractor struct {
	patterns []compiledPattern
	header   []string
	logger   *slog.Logger
}

// New compiles set and returns an Extractor.
func New(set PatternSet, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiled, err := set.compile()
	if err != nil {
		return nil, err
	}
	return &Extractor{patterns: compiled, header: set.Header(), logger: logger}, nil
}

// Default returns an Extractor for DefaultPatterns.
func Default(logger *slog.Logger) *Extractor {
	e, err := New(DefaultPatterns(), logger)
	if err != nil {
		panic(fmt.Sprintf("extract: default patterns: %v", err))
	}
	return e
}

// Header returns the column names produced by Extract.
func (e *Extractor) Header() []string {
	out := make([]string, len(e.header))
	copy(out, e.header)
	return out
}

// Columns applies every pattern over the whole text.
func (e *Extractor) Columns(text string) []ExtractedColumn {
	cols := make([]ExtractedColumn, 0, len(e.patterns))
	for _, p := range e.patterns {
		matches := p.re.FindAllStringSubmatch(text, -1)
		values := make([]string, 0, len(matches))
		for _, m := range matches {
			values = append(values, m[1])
		}
		cols = append(cols, ExtractedColumn{Name: p.Name, Column: p.Column, Values: values})
	}
	return cols
}

// Extract builds a table from text. Columns are joined by index; if they do
// not all have the same length the call fails with *ShapeMismatchError and no
// table is returned.
func (e *Extractor) Extract(text string) (Result, error) {
	cols := e.Columns(text)

	counts := make(map[string]int, len(cols))
	shape := make([]ColumnCount, 0, len(cols))
	n := -1
	mismatch := false
	for _, c := range cols {
		counts[c.Name] = len(c.Values)
		shape = append(shape, ColumnCount{Name: c.Name, Count: len(c.Values)})
		if len(c.Values) == 0 {
			e.logger.Debug("extract.pattern.empty", "pattern", c.Name, "error", ErrPatternNotFound)
		}
		if n == -1 {
			n = len(c.Values)
		} else if len(c.Values) != n {
			mismatch = true
		}
	}
	if mismatch {
		err := &ShapeMismatchError{Counts: shape}
		e.logger.Debug("extract.shape_mismatch", "counts", counts)
		return Result{Counts: counts}, err
	}

	table := record.New(e.header...)
	for i := 0; i < n; i++ {
		rec := make(record.Record, len(cols))
		for _, c := range cols {
			rec[c.Column] = c.Values[i]
		}
		table.Records = append(table.Records, rec)
	}

	var warns []string
	for pi, p := range e.patterns {
		if p.check == nil {
			continue
		}
		for i, v := range cols[pi].Values {
			if !p.check.MatchString(v) {
				warns = append(warns, fmt.Sprintf("%s[%d]: %q does not match %s", p.Name, i, v, p.Check))
			}
		}
	}
	for _, w := range warns {
		e.logger.Warn("extract.malformed_value", "detail", w)
	}

	e.logger.Debug("extract.ok", "rows", table.Len(), "columns", len(e.header), "warnings", len(warns))
	return Result{Table: table, Counts: counts, Warnings: warns}, nil
}
