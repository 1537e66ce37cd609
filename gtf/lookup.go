package gtf

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

// Lookup maps an existing gene_id value to its replacement.
type Lookup map[string]string

// ParseLookup reads a two-column table of old id and new id. The delimiter
// is detected; lines starting with '#' are skipped. Columns past the second
// are ignored. When an id is listed twice, the first mapping is kept.
func ParseLookup(content []byte) (Lookup, error) {
	cr := csv.NewReader(bytes.NewReader(content))
	cr.Comma = lookupDelimiter(content)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	out := make(Lookup)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		line, _ := cr.FieldPos(0)

		if x := len(row); x < 2 {
			return nil, fmt.Errorf("lookup line %d: expected 2 columns, found %d", line, x)
		}

		from, to := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if from == "" {
			return nil, fmt.Errorf("lookup line %d: empty id", line)
		}

		if prior, exists := out[from]; exists {
			if prior != to {
				log.Warnf("Lookup line %d: %s already maps to %s; ignoring %s", line, from, prior, to)
			}
			continue
		}
		out[from] = to
	}

	return out, nil
}

// lookupDelimiter picks the column delimiter. Identifiers are full of '_' and
// '.', which the detector can mistake for delimiters, so only the usual
// candidates are trusted.
func lookupDelimiter(content []byte) rune {
	switch delim := metaprep.DetermineDelimiterBytes(content); delim {
	case '\t', ',', ';', '|', ' ':
		return delim
	}

	if bytes.ContainsRune(content, '\t') {
		return '\t'
	}

	return ','
}

// LoadLookup reads a lookup table from a local or gs:// path. Compressed
// tables are decompressed transparently.
func LoadLookup(store *metaprep.Store, path string) (Lookup, error) {
	content, err := readAll(store, path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	lookup, err := ParseLookup(content)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return lookup, nil
}

func readAll(store *metaprep.Store, path string) ([]byte, error) {
	rc, err := Open(store, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Open opens a local or gs:// file, decompressing it if needed. Closing the
// result closes the underlying file.
func Open(store *metaprep.Store, path string) (io.ReadCloser, error) {
	f, err := store.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rc, dt, err := metaprep.MaybeDecompress(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	if dt != metaprep.DataTypeNoCompression {
		log.Printf("Reading %s as %s", path, dt)
	}

	return &closeBoth{ReadCloser: rc, file: f}, nil
}

type closeBoth struct {
	io.ReadCloser
	file io.Closer
}

func (c *closeBoth) Close() error {
	err := c.ReadCloser.Close()
	if ferr := c.file.Close(); err == nil {
		err = ferr
	}

	return err
}
