package metasheet

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/carbocation/metaprep"
	"github.com/carbocation/metaprep/pipeconfig"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"
)

// KeyMetasheet is the run configuration key naming the metasheet file.
const KeyMetasheet = "metasheet"

// Keys written to the run configuration by Metadata.Fragment.
const (
	KeyComparisons = "comparisons"
	KeyComps       = "comps"
	KeyMetaCols    = "metacols"
	KeyFileInfo    = "file_info"
	KeySampleList  = "ordered_sample_list"
	KeySamples     = "samples"
)

// Metadata is everything the pipeline needs from the metasheet.
type Metadata struct {
	Comparisons []string
	Comps       map[string]Comparison
	MetaCols    []string
	Samples     []string
	Files       FileInfo
	Mode        Mode
}

// Build sanitizes the metasheet at path in place, parses it, and resolves
// each sample's files using the samples section of the run configuration.
func Build(store *metaprep.Store, path string, samples pipeconfig.Config, opts Options) (*Metadata, error) {
	changed, err := Sanitize(store, path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if changed {
		log.Printf("Rewrote %s with unix line endings and invalid characters replaced", path)
	}

	sheet, err := LoadSheet(store, path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return FromSheet(sheet, samples, store, opts)
}

// FromSheet derives Metadata from an already parsed sheet.
func FromSheet(sheet *Sheet, samples pipeconfig.Config, globber Globber, opts Options) (*Metadata, error) {
	names, comps := sheet.Comparisons()

	files, mode, err := Resolve(sheet, samples, globber, opts)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &Metadata{
		Comparisons: names,
		Comps:       comps,
		MetaCols:    sheet.MetaColumns(),
		Samples:     append([]string{}, sheet.Samples...),
		Files:       files,
		Mode:        mode,
	}, nil
}

// Fragment returns the configuration keys derived from the metasheet. In
// prefix mode the samples section is also replaced by the resolved files, so
// that rules reading either key see the same paths.
func (m *Metadata) Fragment() pipeconfig.Config {
	comps := pipeconfig.NewBuilder()
	for _, name := range m.Comparisons {
		comps.Set(name, m.Comps[name])
	}

	files := pipeconfig.NewBuilder()
	for _, sample := range m.Samples {
		files.Set(sample, m.Files[sample])
	}
	fileInfo := files.Config()

	b := pipeconfig.NewBuilder().
		Set(KeyComparisons, m.Comparisons).
		Set(KeyComps, comps.Config()).
		Set(KeyMetaCols, m.MetaCols).
		Set(KeyFileInfo, fileInfo).
		Set(KeySampleList, m.Samples)

	if m.Mode == PrefixMode {
		b.Set(KeySamples, fileInfo)
	}

	return b.Config()
}

// ManifestRow is one line of the per-sample FASTQ manifest. The column names
// match the sample list consumed by the downstream pipeline drivers.
type ManifestRow struct {
	SampleID string `csv:"sampleID"`
	Fq1      string `csv:"fq1"`
	Fq2      string `csv:"fq2"`
}

// Manifest lists each sample's read 1 and read 2 files in sheet order.
// Single-end samples leave Fq2 empty.
func (m *Metadata) Manifest() ([]*ManifestRow, error) {
	rows := make([]*ManifestRow, 0, len(m.Samples))
	for _, sample := range m.Samples {
		files := m.Files[sample]
		if x := len(files); x > 2 {
			return nil, fmt.Errorf("sample %s has %d file entries; a manifest row holds at most 2", sample, x)
		}

		row := &ManifestRow{SampleID: sample}
		if len(files) > 0 {
			row.Fq1 = files[0]
		}
		if len(files) > 1 {
			row.Fq2 = files[1]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// WriteManifest writes the manifest to w as tab-delimited text with a header.
func (m *Metadata) WriteManifest(w io.Writer) error {
	rows, err := m.Manifest()
	if err != nil {
		return pfx.Err(err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}

	cw.Flush()
	return cw.Error()
}
