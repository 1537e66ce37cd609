package metaprep

import (
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// DetermineDelimiterBytes is DetermineDelimiter for content that has already
// been read into memory. Lines beginning with '#' are ignored so that comment
// text does not sway the vote.
func DetermineDelimiterBytes(content []byte) rune {
	var body bytes.Buffer
	for _, line := range bytes.SplitAfter(content, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("#")) {
			continue
		}
		body.Write(line)
	}

	return DetermineDelimiter(&body)
}
