package extract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPatternNotFound describes a pattern with zero matches. Extract does not
	// return it on its own; an empty column only matters through ErrShapeMismatch.
	ErrPatternNotFound = errors.New("extract: pattern not found")

	// ErrShapeMismatch is returned when the extracted columns differ in length.
	ErrShapeMismatch = errors.New("extract: columns have unequal lengths")

	// ErrInvalidPattern is returned for a pattern set that cannot be compiled.
	ErrInvalidPattern = errors.New("extract: invalid pattern")
)

// ColumnCount is the number of matches one pattern produced.
type ColumnCount struct {
	Name  string
	Count int
}

// ShapeMismatchError lists the per-pattern match counts of a failed join.
type ShapeMismatchError struct {
	Counts []ColumnCount
}

func (e *ShapeMismatchError) Error() string {
	parts := make([]string, 0, len(e.Counts))
	for _, c := range e.Counts {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Name, c.Count))
	}
	return fmt.Sprintf("%v (%s)", ErrShapeMismatch, strings.Join(parts, ", "))
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// Missing returns the patterns that matched nothing.
func (e *ShapeMismatchError) Missing() []string {
	var out []string
	for _, c := range e.Counts {
		if c.Count == 0 {
			out = append(out, c.Name)
		}
	}
	return out
}
