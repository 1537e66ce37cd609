package metasheet

import (
	"fmt"
	"strings"

	"github.com/carbocation/metaprep/pipeconfig"
	log "github.com/sirupsen/logrus"
)

// PathPrefixKey, when present in the samples configuration, switches file
// resolution from explicit mode to prefix mode.
const PathPrefixKey = "fastq_path_prefix"

// Globber finds the paths matching a glob pattern. *metaprep.Store satisfies
// it for both local and gs:// patterns.
type Globber interface {
	Glob(pattern string) ([]string, error)
}

// Mode is the file resolution strategy that was applied.
type Mode byte

const (
	ExplicitMode Mode = iota
	PrefixMode
)

func (m Mode) String() string {
	if m == PrefixMode {
		return "prefix"
	}

	return "explicit"
}

// FileInfo maps each sample to its FASTQ path strings: one entry for
// single-end data, two (read 1, read 2) for paired-end. An entry may itself be
// a comma-joined list of lanes.
type FileInfo map[string][]string

// MissingSampleError is returned in explicit mode when a metasheet sample has
// no entry in the samples configuration.
type MissingSampleError struct {
	Sample string
}

func (e *MissingSampleError) Error() string {
	return fmt.Sprintf("sample %q is listed in the metasheet but has no entry under samples in the config", e.Sample)
}

// NoFilesError is returned in prefix mode, when Options.RequireFiles is set,
// for a sample whose glob matched nothing.
type NoFilesError struct {
	Sample  string
	Pattern string
}

func (e *NoFilesError) Error() string {
	return fmt.Sprintf("sample %q: no files match %s", e.Sample, e.Pattern)
}

// Options adjusts Resolve and Build.
type Options struct {
	// RequireFiles makes a prefix-mode sample with no matching files an error
	// instead of a warning with an empty file list.
	RequireFiles bool
}

// SamplePattern is the prefix-mode glob for one sample:
// {prefix}{sample}/{sample}*.fastq.*
func SamplePattern(prefix, sample string) string {
	return strings.Join([]string{prefix + sample, sample + "*.fastq.*"}, "/")
}

// Resolve maps every metasheet sample to its files. If samples contains
// PathPrefixKey the files are found by globbing, otherwise each sample must
// be listed explicitly in samples.
func Resolve(sheet *Sheet, samples pipeconfig.Config, globber Globber, opts Options) (FileInfo, Mode, error) {
	if samples.Has(PathPrefixKey) {
		files, err := resolvePrefix(sheet, samples, globber, opts)
		return files, PrefixMode, err
	}

	files, err := resolveExplicit(sheet, samples)
	return files, ExplicitMode, err
}

func resolveExplicit(sheet *Sheet, samples pipeconfig.Config) (FileInfo, error) {
	out := make(FileInfo, len(sheet.Samples))
	for _, sample := range sheet.Samples {
		v, exists := samples.Get(sample)
		if !exists {
			return nil, &MissingSampleError{Sample: sample}
		}

		files, err := pipeconfig.StringList(v)
		if err != nil {
			return nil, fmt.Errorf("samples.%s: %w", sample, err)
		}
		out[sample] = files
	}

	return out, nil
}

func resolvePrefix(sheet *Sheet, samples pipeconfig.Config, globber Globber, opts Options) (FileInfo, error) {
	prefix, ok := samples.String(PathPrefixKey)
	if !ok {
		return nil, fmt.Errorf("samples.%s must be a path", PathPrefixKey)
	}

	if samples.Len() > 1 {
		log.Warnf("Additional entries in the config file for samples other than `%s`. Will extract the sample names from the metasheet and search for the respective files specified in the `%s`.", PathPrefixKey, PathPrefixKey)
	}

	out := make(FileInfo, len(sheet.Samples))
	for _, sample := range sheet.Samples {
		pattern := SamplePattern(prefix, sample)

		matches, err := globber.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", sample, err)
		}

		if len(matches) == 0 {
			if opts.RequireFiles {
				return nil, &NoFilesError{Sample: sample, Pattern: pattern}
			}
			log.Warnf("Sample %s: no files match %s; its file list will be empty", sample, pattern)
		}

		out[sample] = PairLanes(matches)
	}

	return out, nil
}

// PairLanes collapses more than two FASTQ files into a read 1 and a read 2
// entry, each a comma-joined list of the paths containing "R1" and "R2"
// respectively. Lane order within each entry is the order of files, which
// Resolve sorts lexically; lanes are not otherwise checked. Two or fewer
// files are returned as-is.
func PairLanes(files []string) []string {
	if len(files) <= 2 {
		out := make([]string, len(files))
		copy(out, files)
		return out
	}

	var left, right []string
	for _, file := range files {
		if strings.Contains(file, "R1") {
			left = append(left, file)
		}
		if strings.Contains(file, "R2") {
			right = append(right, file)
		}
	}

	return []string{strings.Join(left, ","), strings.Join(right, ",")}
}
