package gtf

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// UnmappedIDError is returned when a record's gene_id is not in the lookup.
type UnmappedIDError struct {
	// Line is 1-based and counts comment lines.
	Line int
	ID   string
}

func (e *UnmappedIDError) Error() string {
	return fmt.Sprintf("GTF line %d: gene_id %q is not in the lookup table", e.Line, e.ID)
}

type Options struct {
	// KeepUnmapped passes records whose gene_id is not in the lookup through
	// unchanged instead of failing.
	KeepUnmapped bool
}

// Stats summarizes a Rewrite.
type Stats struct {
	Records   int
	Rewritten int
	Comments  int
	NoGeneID  int
	Unmapped  int
}

// RewriteLine rewrites a single record, which must not be a comment and must
// not carry its line ending. The record is trimmed and its attribute field
// rebuilt with the mapped gene_id first and every other gene_id removed. It
// reports whether the line carried a gene_id. An unmapped id is returned as
// an *UnmappedIDError with Line unset.
func RewriteLine(line string, lookup Lookup) (string, bool, error) {
	fields := strings.Split(strings.TrimSpace(line), Delim)
	last := len(fields) - 1

	attributes := ParseAttributes(strings.TrimSpace(fields[last]))

	id, found := GeneID(attributes)
	if !found {
		return strings.Join(fields, Delim), false, nil
	}

	mapped, exists := lookup[id]
	if !exists {
		return "", true, &UnmappedIDError{ID: id}
	}

	out := make([]string, 0, len(attributes))
	out = append(out, fmt.Sprintf("%s \"%s\"", GeneIDKey, mapped))
	for _, a := range attributes {
		if a.IsGeneID() {
			continue
		}
		// The entry that used to lead the field gets the separating space the
		// others already carry.
		raw := a.Raw
		if raw != "" && !strings.HasPrefix(raw, " ") {
			raw = " " + raw
		}
		out = append(out, raw)
	}

	fields[last] = strings.Join(out, AttributeDelim)

	return strings.Join(fields, Delim), true, nil
}

// Rewrite copies the GTF records from r to w with their gene_id replaced via
// lookup. Comment lines are dropped. Records without a gene_id are copied
// through trimmed.
func Rewrite(r io.Reader, w io.Writer, lookup Lookup, opts Options) (Stats, error) {
	var stats Stats

	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	for i := 1; ; i++ {
		line, err := br.ReadString('\n')
		if err == io.EOF && line == "" {
			break
		} else if err != nil && err != io.EOF {
			return stats, fmt.Errorf("GTF line %d error %s: %s", i, err, line)
		}

		lineCandidate := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(lineCandidate, "#") {
			stats.Comments++
			continue
		}
		if strings.TrimSpace(lineCandidate) == "" {
			continue
		}

		stats.Records++

		out, hasID, rerr := RewriteLine(lineCandidate, lookup)
		if unmapped, ok := rerr.(*UnmappedIDError); ok {
			unmapped.Line = i
			stats.Unmapped++
			if !opts.KeepUnmapped {
				return stats, unmapped
			}
			out = strings.TrimSpace(lineCandidate)
		} else if rerr != nil {
			return stats, fmt.Errorf("GTF line %d: %w", i, rerr)
		} else if !hasID {
			stats.NoGeneID++
		} else {
			stats.Rewritten++
		}

		if _, err := bw.WriteString(out + "\n"); err != nil {
			return stats, err
		}

		if err == io.EOF {
			break
		}
	}

	return stats, bw.Flush()
}
