package metasheet

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/carbocation/metaprep"
	"github.com/carbocation/pfx"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

// invalidChars converts dos line endings to unix and swaps out characters
// that break downstream rule names and file paths. "\r\n" is listed first so
// that it wins over the bare "\r" at the same position.
var invalidChars = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"(", ".",
	")", ".",
	" ", "_",
	"/", ".",
	"$", "",
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// SanitizeBytes returns content with its text encoding normalized to UTF-8 and
// the invalid characters replaced. Applying it to its own output is a no-op.
func SanitizeBytes(content []byte) []byte {
	return []byte(invalidChars.Replace(string(normalizeEncoding(content))))
}

// normalizeEncoding decodes content to UTF-8 when it carries a byte order mark
// or is not valid UTF-8 (typically a Windows-1252 or UTF-16 spreadsheet
// export). Valid UTF-8 without a BOM is returned unchanged.
func normalizeEncoding(content []byte) []byte {
	if utf8.Valid(content) && !bytes.HasPrefix(content, utf8BOM) {
		return content
	}

	enc, name, _ := charset.DetermineEncoding(content, "text/csv")
	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		log.Warnf("Could not decode metasheet as %s, leaving its encoding alone: %v", name, err)
		return content
	}

	// Some decoders keep the byte order mark as U+FEFF.
	decoded = bytes.TrimPrefix(decoded, utf8BOM)

	if !bytes.Equal(decoded, content) {
		log.Printf("Converted metasheet text encoding from %s to utf-8", name)
	}

	return decoded
}

// Sanitize rewrites the sheet at path in place if SanitizeBytes changes it.
// It reports whether a rewrite happened.
func Sanitize(store *metaprep.Store, path string) (bool, error) {
	raw, err := store.ReadFile(path)
	if err != nil {
		return false, pfx.Err(err)
	}

	clean := SanitizeBytes(raw)

	// Did the contents change? If so, rewrite the metasheet.
	if bytes.Equal(raw, clean) {
		return false, nil
	}

	if err := store.WriteFile(path, clean); err != nil {
		return false, pfx.Err(err)
	}

	return true, nil
}
