// Package source reads the input of a run: raw text from documents and PDFs,
// or ready-made tables from spreadsheets and workbooks.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
)

var (
	// ErrSourceNotFound is returned when the named document, file or worksheet does not exist.
	ErrSourceNotFound = errors.New("source: not found")

	// ErrUnsupportedSource is returned for a kind no reader is registered for.
	ErrUnsupportedSource = errors.New("source: unsupported kind")
)

// Ref names one input.
type Ref struct {
	Kind      constants.SourceKind
	Location  string // document id, file path or Drive/Sheets name
	Worksheet string // tabular sources only; empty means the first sheet
}

func (r Ref) String() string {
	if r.Worksheet != "" {
		return fmt.Sprintf("%s:%s!%s", r.Kind, r.Location, r.Worksheet)
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.Location)
}

// TextResult is the raw text of one document.
type TextResult struct {
	Text     string
	Pages    int
	Method   string // "docs-api" | "pdf-native" | "pdftotext" | "file"
	Duration time.Duration
	Warnings []string
}

// TextReader is a source of raw text.
type TextReader interface {
	ReadText(ctx context.Context, ref Ref) (TextResult, error)
}

// TableReader is a source of already tabulated records.
type TableReader interface {
	ReadTable(ctx context.Context, ref Ref) (*record.Table, error)
}

// Registry maps source kinds to readers.
type Registry struct {
	text  map[constants.SourceKind]TextReader
	table map[constants.SourceKind]TableReader
}

func NewRegistry() *Registry {
	return &Registry{
		text:  make(map[constants.SourceKind]TextReader),
		table: make(map[constants.SourceKind]TableReader),
	}
}

func (r *Registry) RegisterText(kind constants.SourceKind, tr TextReader) {
	r.text[kind] = tr
}

func (r *Registry) RegisterTable(kind constants.SourceKind, tr TableReader) {
	r.table[kind] = tr
}

func (r *Registry) Text(kind constants.SourceKind) (TextReader, error) {
	tr, ok := r.text[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no text reader for %q", ErrUnsupportedSource, kind)
	}
	return tr, nil
}

func (r *Registry) Table(kind constants.SourceKind) (TableReader, error) {
	tr, ok := r.table[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no table reader for %q", ErrUnsupportedSource, kind)
	}
	return tr, nil
}
