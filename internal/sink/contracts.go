// Package sink replaces the contents of a destination sheet with a table.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
)

var (
	// ErrDestinationNotFound is returned when the destination spreadsheet does not exist.
	ErrDestinationNotFound = errors.New("sink: destination not found")

	// ErrEmptyTable is returned for a table without a header; nothing is written.
	ErrEmptyTable = errors.New("sink: table has no header")

	// ErrUnsupportedSink is returned for a kind no writer is registered for.
	ErrUnsupportedSink = errors.New("sink: unsupported kind")
)

// Destination names one output.
type Destination struct {
	Kind      constants.SinkKind
	Name      string // spreadsheet name or workbook path
	Worksheet string // empty means the first worksheet
}

func (d Destination) String() string {
	if d.Worksheet != "" {
		return fmt.Sprintf("%s:%s!%s", d.Kind, d.Name, d.Worksheet)
	}
	return fmt.Sprintf("%s:%s", d.Kind, d.Name)
}

// WriteResult describes what was written.
type WriteResult struct {
	Worksheet string
	Rows      int // data rows, header excluded
	Cells     int
}

// Writer fully replaces the destination with table, header first, from A1.
type Writer interface {
	Write(ctx context.Context, dest Destination, table *record.Table) (WriteResult, error)
}

// Registry maps sink kinds to writers.
type Registry struct {
	writers map[constants.SinkKind]Writer
}

func NewRegistry() *Registry {
	return &Registry{writers: make(map[constants.SinkKind]Writer)}
}

func (r *Registry) Register(kind constants.SinkKind, w Writer) {
	r.writers[kind] = w
}

func (r *Registry) Get(kind constants.SinkKind) (Writer, error) {
	w, ok := r.writers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSink, kind)
	}
	return w, nil
}

func checkTable(table *record.Table) ([][]string, error) {
	values := table.Values()
	if len(values) == 0 {
		return nil, ErrEmptyTable
	}
	return values, nil
}
