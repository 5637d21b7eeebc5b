// Package record holds the tabular model shared by extraction, transformation
// and the sheet readers/writers.
package record

import (
	"errors"
	"fmt"
)

// ErrDuplicateHeader is returned when a header row names the same column twice.
var ErrDuplicateHeader = errors.New("record: duplicate header column")

// Record is one logical row keyed by column name. Values are carried verbatim.
type Record map[string]string

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered list of records with a fixed column header.
type Table struct {
	Header  []string
	Records []Record
}

// New returns an empty table with the given header.
func New(header ...string) *Table {
	h := make([]string, len(header))
	copy(h, header)
	return &Table{Header: h}
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Append adds a record built from values in header order.
func (t *Table) Append(values ...string) {
	rec := make(Record, len(t.Header))
	for i, col := range t.Header {
		if i < len(values) {
			rec[col] = values[i]
		} else {
			rec[col] = ""
		}
	}
	t.Records = append(t.Records, rec)
}

// HasColumn reports whether name is part of the header or of any record.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	for _, r := range t.Records {
		if _, ok := r[name]; ok {
			return true
		}
	}
	return false
}

// Column returns the values of one column in record order.
func (t *Table) Column(name string) []string {
	out := make([]string, 0, len(t.Records))
	for _, r := range t.Records {
		out = append(out, r[name])
	}
	return out
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := New(t.Header...)
	out.Records = make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		out.Records = append(out.Records, r.Clone())
	}
	return out
}

// Values renders the table as a header row followed by one row per record,
// cells in header order. Missing cells become "".
func (t *Table) Values() [][]string {
	if t == nil || len(t.Header) == 0 {
		return nil
	}
	out := make([][]string, 0, len(t.Records)+1)
	header := make([]string, len(t.Header))
	copy(header, t.Header)
	out = append(out, header)
	for _, r := range t.Records {
		row := make([]string, len(t.Header))
		for i, col := range t.Header {
			row[i] = r[col]
		}
		out = append(out, row)
	}
	return out
}

// FromValues rebuilds a table from header+rows. Short rows are padded and cells
// past the header are dropped. Every row is kept, empty ones included, so
// FromValues(t.Values()) has as many records as t.
func FromValues(values [][]string) (*Table, error) {
	if len(values) == 0 {
		return &Table{}, nil
	}
	header := make([]string, len(values[0]))
	seen := make(map[string]struct{}, len(header))
	for i, h := range values[0] {
		if h != "" {
			if _, dup := seen[h]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateHeader, h)
			}
			seen[h] = struct{}{}
		}
		header[i] = h
	}
	t := New(header...)
	for _, row := range values[1:] {
		t.Append(row...)
	}
	return t, nil
}

// FromCells is FromValues for cell values of any type, as returned by the
// Sheets API. Non-string cells are formatted with %v.
func FromCells(cells [][]interface{}) (*Table, error) {
	values := make([][]string, len(cells))
	for i, row := range cells {
		values[i] = make([]string, len(row))
		for j, c := range row {
			switch v := c.(type) {
			case nil:
			case string:
				values[i][j] = v
			default:
				values[i][j] = fmt.Sprintf("%v", v)
			}
		}
	}
	return FromValues(values)
}
