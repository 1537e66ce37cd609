// Package gtf rewrites the gene_id attribute of GTF annotation records using a
// lookup table, so that annotations keyed by transcript accession can be
// reported by gene.
package gtf

import (
	"strings"
)

const (
	// Delim separates the nine GTF fields.
	Delim = "\t"

	// AttributeDelim separates the entries of the attribute field.
	AttributeDelim = ";"

	// GeneIDKey is the attribute that gets rewritten.
	GeneIDKey = "gene_id"
)

// Attribute is one entry of a GTF attribute field. Raw is the entry exactly
// as it appeared between semicolons, so that entries which are not rewritten
// are written back untouched. Blank entries, such as the one after a trailing
// semicolon, have an empty Key.
type Attribute struct {
	Key   string
	Value string
	Raw   string
}

// ParseAttributes splits a GTF attribute field on semicolons. Each entry's key
// is its first word and its value is the remainder with the quotes removed.
func ParseAttributes(field string) []Attribute {
	entries := strings.Split(field, AttributeDelim)
	out := make([]Attribute, len(entries))

	for i, entry := range entries {
		out[i].Raw = entry

		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}

		if sep := strings.IndexAny(trimmed, " \t"); sep >= 0 {
			out[i].Key = trimmed[:sep]
			out[i].Value = strings.Trim(strings.TrimSpace(trimmed[sep+1:]), "\"")
		} else {
			out[i].Key = trimmed
		}
	}

	return out
}

// IsGeneID is true for gene_id entries only. Keys that merely start with
// gene_id, such as gene_id_version, do not count.
func (a Attribute) IsGeneID() bool {
	return a.Key == GeneIDKey
}

// GeneID returns the value of the first gene_id entry that has one.
func GeneID(attributes []Attribute) (string, bool) {
	for _, a := range attributes {
		if a.IsGeneID() {
			return a.Value, a.Value != ""
		}
	}

	return "", false
}
