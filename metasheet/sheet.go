// Package metasheet parses the sample metasheet that drives pipeline
// configuration: a comma-separated table keyed by sample name whose columns
// are either metadata attributes or comp_-prefixed comparison flags.
package metasheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/carbocation/metaprep"
	"github.com/carbocation/pfx"
	log "github.com/sirupsen/logrus"
)

const (
	// Delim is the only delimiter the metasheet is parsed with.
	Delim = ','

	// Comment marks lines that are skipped entirely.
	Comment = '#'
)

// Sheet is the parsed metasheet. Rows are keyed by the value of the first
// column; Columns excludes that key column.
type Sheet struct {
	// IndexName is the header of the first (sample name) column.
	IndexName string
	Columns   []string
	Samples   []string

	cells    [][]string
	colIndex map[string]int
}

// ReadSheet parses a metasheet. Rows shorter than the header are padded with
// empty cells; longer rows, duplicate sample names, duplicate column names
// and empty sample names are errors.
func ReadSheet(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delim
	cr.Comment = Comment
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("metasheet has no header row")
	} else if err != nil {
		return nil, fmt.Errorf("Header parsing error: %w", err)
	}

	if len(header) < 1 {
		return nil, fmt.Errorf("metasheet header is empty")
	}

	sheet := &Sheet{
		IndexName: header[0],
		Columns:   append([]string{}, header[1:]...),
		colIndex:  make(map[string]int, len(header)-1),
	}

	for i, col := range sheet.Columns {
		if _, exists := sheet.colIndex[col]; exists {
			return nil, fmt.Errorf("metasheet column %q appears more than once", col)
		}
		sheet.colIndex[col] = i
	}

	seen := make(map[string]struct{})
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)

		sample := strings.TrimSpace(row[0])
		if sample == "" {
			return nil, fmt.Errorf("metasheet line %d: empty sample name", line)
		}
		if _, exists := seen[sample]; exists {
			return nil, fmt.Errorf("metasheet line %d: sample %q appears more than once", line, sample)
		}
		seen[sample] = struct{}{}

		if x := len(row) - 1; x > len(sheet.Columns) {
			return nil, fmt.Errorf("metasheet line %d: sample %q has %d values but the header names %d columns", line, sample, x, len(sheet.Columns))
		}

		cells := make([]string, len(sheet.Columns))
		copy(cells, row[1:])

		sheet.Samples = append(sheet.Samples, sample)
		sheet.cells = append(sheet.cells, cells)
	}

	return sheet, nil
}

// LoadSheet reads the metasheet at path. It does not sanitize the file first;
// see Sanitize.
func LoadSheet(store *metaprep.Store, path string) (*Sheet, error) {
	content, err := store.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// Tab or semicolon separated sheets parse as one wide column, which then
	// quietly yields no comparisons. Say so.
	switch delim := metaprep.DetermineDelimiterBytes(content); delim {
	case '\t', ';', '|':
		log.Warnf("%s looks %q-delimited, but metasheets are parsed as comma-separated", path, string(delim))
	}

	sheet, err := ReadSheet(bytes.NewReader(content))
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return sheet, nil
}

// Value returns the cell for sample and column.
func (s *Sheet) Value(sample, column string) (string, bool) {
	col, exists := s.colIndex[column]
	if !exists {
		return "", false
	}

	for row, name := range s.Samples {
		if name == sample {
			return s.cells[row][col], true
		}
	}

	return "", false
}

// Column returns the cells of column in row order.
func (s *Sheet) Column(column string) ([]string, bool) {
	col, exists := s.colIndex[column]
	if !exists {
		return nil, false
	}

	out := make([]string, len(s.cells))
	for row := range s.cells {
		out[row] = s.cells[row][col]
	}

	return out, true
}
