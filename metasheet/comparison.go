package metasheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	// ComparisonPrefix marks comparison columns. The check is case-sensitive.
	ComparisonPrefix = "comp_"

	// comparisonStem is compared, lowercased, against the first four
	// characters of a column name to decide whether it is a metadata column.
	comparisonStem = "comp"
)

// Membership is a sample's role within one comparison.
type Membership byte

const (
	Unused Membership = iota
	Control
	Treatment
)

func (m Membership) String() string {
	switch m {
	case Control:
		return "control"
	case Treatment:
		return "treatment"
	}

	return "unused"
}

var ErrInvalidMembership = errors.New("comparison values must be empty, 1 (control) or 2 (treatment)")

// ParseMembership classifies a comparison cell. Empty cells (and the "NA"
// style spellings spreadsheets emit for them) are Unused, 1 is Control and 2
// is Treatment. Numeric spellings such as "1.0" are accepted. Anything else
// returns Unused along with ErrInvalidMembership.
func ParseMembership(value string) (Membership, error) {
	v := strings.TrimSpace(value)
	switch strings.ToLower(v) {
	case "", "na", "nan":
		return Unused, nil
	}

	if !isDecimal(v) {
		return Unused, fmt.Errorf("%q: %w", value, ErrInvalidMembership)
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return Unused, fmt.Errorf("%q: %w", value, ErrInvalidMembership)
	}

	switch f {
	case 1:
		return Control, nil
	case 2:
		return Treatment, nil
	}

	return Unused, fmt.Errorf("%q: %w", value, ErrInvalidMembership)
}

// isDecimal reports whether v is a plain decimal number such as "2" or
// "1.0". ParseFloat alone would also take hex floats, exponents and "inf".
func isDecimal(v string) bool {
	digits := 0
	dot := false
	for i, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && !dot:
			dot = true
		case (r == '+' || r == '-') && i == 0:
		default:
			return false
		}
	}

	return digits > 0
}

// Comparison is a named control-vs-treatment grouping. Both lists are in
// sheet row order.
type Comparison struct {
	Name      string   `yaml:"-"`
	Control   []string `yaml:"control"`
	Treatment []string `yaml:"treat"`
}

// IsComparisonColumn reports whether column names a comparison.
func IsComparisonColumn(column string) bool {
	return strings.HasPrefix(column, ComparisonPrefix)
}

// IsMetaColumn reports whether column is a plain metadata column: its first
// four characters, lowercased, are not "comp". This is deliberately looser
// than IsComparisonColumn, so "Comp_x" and "Compound" are neither.
func IsMetaColumn(column string) bool {
	stem := []rune(strings.ToLower(column))
	if len(stem) > len(comparisonStem) {
		stem = stem[:len(comparisonStem)]
	}

	return string(stem) != comparisonStem
}

// Comparisons returns the comparison names in column order and, for each,
// the samples in its control and treatment groups. Cells outside the
// {empty, 1, 2} domain leave the sample out of both groups and are logged.
func (s *Sheet) Comparisons() ([]string, map[string]Comparison) {
	names := make([]string, 0)
	comps := make(map[string]Comparison)

	for _, column := range s.Columns {
		if !IsComparisonColumn(column) {
			continue
		}

		comp := Comparison{
			Name:      strings.TrimPrefix(column, ComparisonPrefix),
			Control:   []string{},
			Treatment: []string{},
		}

		values, _ := s.Column(column)
		for row, value := range values {
			membership, err := ParseMembership(value)
			if err != nil {
				log.Warnf("Comparison %s, sample %s: %v; leaving the sample out of both groups", column, s.Samples[row], err)
			}

			switch membership {
			case Control:
				comp.Control = append(comp.Control, s.Samples[row])
			case Treatment:
				comp.Treatment = append(comp.Treatment, s.Samples[row])
			}
		}

		names = append(names, comp.Name)
		comps[comp.Name] = comp
	}

	return names, comps
}

// MetaColumns returns the metadata column names in their original order.
func (s *Sheet) MetaColumns() []string {
	out := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		if IsMetaColumn(column) {
			out = append(out, column)
		}
	}

	return out
}
