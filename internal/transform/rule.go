// Package transform filters and annotates tables that already have columns,
// such as rows read back from a spreadsheet.
package transform

import (
	"errors"
	"fmt"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
	"github.com/renanrgarcia/google-sheets-text-automation/internal/record"
)

var (
	// ErrFieldNotFound is returned when the rule's filter column does not exist.
	ErrFieldNotFound = errors.New("transform: field not found")

	// ErrInvalidRule is returned for a rule without an annotation column.
	ErrInvalidRule = errors.New("transform: invalid rule")
)

// FieldNotFoundError carries the missing column and the header it was looked up in.
type FieldNotFoundError struct {
	Field  string
	Header []string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q not in %q", ErrFieldNotFound, e.Field, e.Header)
}

func (e *FieldNotFoundError) Unwrap() error { return ErrFieldNotFound }

// Rule keeps records where Field == Equals and sets AnnotateField to
// AnnotateValue on each of them.
type Rule struct {
	Field         string
	Equals        string
	AnnotateField string
	AnnotateValue string
}

// DefaultRule keeps approved orders and marks them as processed.
func DefaultRule() Rule {
	return Rule{
		Field:         constants.ColumnStatus,
		Equals:        constants.StatusApproved,
		AnnotateField: constants.ColumnObservation,
		AnnotateValue: constants.AutomationObservation,
	}
}

// Apply returns a new table with the matching records, annotated. The input
// is not modified and record order is preserved.
func Apply(table *record.Table, rule Rule) (*record.Table, error) {
	if rule.AnnotateField == "" {
		return nil, fmt.Errorf("%w: annotation field is required", ErrInvalidRule)
	}
	if table == nil {
		table = &record.Table{}
	}
	if !table.HasColumn(rule.Field) {
		return nil, &FieldNotFoundError{Field: rule.Field, Header: table.Header}
	}

	out := record.New(table.Header...)
	if !inHeader(table.Header, rule.AnnotateField) {
		out.Header = append(out.Header, rule.AnnotateField)
	}
	for _, rec := range table.Records {
		if v, ok := rec[rule.Field]; !ok || v != rule.Equals {
			continue
		}
		kept := rec.Clone()
		kept[rule.AnnotateField] = rule.AnnotateValue
		out.Records = append(out.Records, kept)
	}
	return out, nil
}

func inHeader(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
