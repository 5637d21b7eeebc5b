package extract

import (
	"fmt"
	"regexp"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
)

// FieldPattern locates one field in raw text: a literal label at the start of
// a line followed by a capture rule with exactly one group.
type FieldPattern struct {
	Name    string `yaml:"name" json:"name"`
	Column  string `yaml:"column" json:"column"`
	Label   string `yaml:"label" json:"label"`
	Capture string `yaml:"capture" json:"capture"`
	// Check is optional. Values failing it are reported as warnings.
	Check string `yaml:"check,omitempty" json:"check,omitempty"`
}

// PatternSet is the ordered list of fields that make up one record.
type PatternSet struct {
	Fields []FieldPattern `yaml:"fields" json:"fields"`
}

// DefaultPatterns is the order layout: customer, amount, status.
func DefaultPatterns() PatternSet {
	return PatternSet{Fields: []FieldPattern{
		{Name: "customer", Column: constants.ColumnCustomer, Label: "Nome do Cliente: ", Capture: `([^\r\n]*)`},
		{Name: "amount", Column: constants.ColumnAmount, Label: "Valor do Pedido: ", Capture: `R\$ ([\d,.]+)`, Check: `^\d+([.,]\d+)*$`},
		{Name: "status", Column: constants.ColumnStatus, Label: "Status: ", Capture: `([^\r\n]*)`},
	}}
}

// Header returns the column names in pattern order.
func (s PatternSet) Header() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Column
	}
	return out
}

type compiledPattern struct {
	FieldPattern
	re    *regexp.Regexp
	check *regexp.Regexp
}

func (s PatternSet) compile() ([]compiledPattern, error) {
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidPattern)
	}
	names := map[string]struct{}{}
	columns := map[string]struct{}{}
	out := make([]compiledPattern, 0, len(s.Fields))
	for i, f := range s.Fields {
		switch {
		case f.Name == "":
			return nil, fmt.Errorf("%w: field %d has no name", ErrInvalidPattern, i)
		case f.Column == "":
			return nil, fmt.Errorf("%w: %s: column is required", ErrInvalidPattern, f.Name)
		case f.Label == "":
			return nil, fmt.Errorf("%w: %s: label is required", ErrInvalidPattern, f.Name)
		}
		if _, dup := names[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidPattern, f.Name)
		}
		if _, dup := columns[f.Column]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidPattern, f.Column)
		}
		names[f.Name] = struct{}{}
		columns[f.Column] = struct{}{}

		capture := f.Capture
		if capture == "" {
			capture = `([^\r\n]*)`
		}
		re, err := regexp.Compile(`(?m)^[ \t]*` + regexp.QuoteMeta(f.Label) + capture)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, f.Name, err)
		}
		if n := re.NumSubexp(); n != 1 {
			return nil, fmt.Errorf("%w: %s: capture must have exactly one group, has %d", ErrInvalidPattern, f.Name, n)
		}
		cp := compiledPattern{FieldPattern: f, re: re}
		if f.Check != "" {
			if cp.check, err = regexp.Compile(f.Check); err != nil {
				return nil, fmt.Errorf("%w: %s: check: %v", ErrInvalidPattern, f.Name, err)
			}
		}
		out = append(out, cp)
	}
	return out, nil
}
