// metasheet sanitizes a pipeline metasheet in place and prints what the
// pipeline will make of it: the comparisons and their groups, or with
// -manifest a tab-delimited list of each sample's FASTQ files.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/metaprep"
	_ "github.com/carbocation/metaprep/compileinfoprint"
	"github.com/carbocation/metaprep/metasheet"
	"github.com/carbocation/metaprep/pipeconfig"
	log "github.com/sirupsen/logrus"
)

var (
	STDOUT = bufio.NewWriterSize(os.Stdout, 4096)
)

func main() {
	defer STDOUT.Flush()

	var sheetPath, configPath string
	var manifest, requireFiles bool
	flag.StringVar(&sheetPath, "sheet", "", "Path to the metasheet CSV. May be local or gs://")
	flag.StringVar(&configPath, "config", "", "(Optional) Path to the run configuration YAML whose samples section locates the FASTQ files. Required for -manifest.")
	flag.BoolVar(&manifest, "manifest", false, "Print a sampleID/fq1/fq2 manifest instead of the comparison summary.")
	flag.BoolVar(&requireFiles, "require-files", false, "Fail if a sample matches no FASTQ files under fastq_path_prefix, instead of warning.")
	flag.Parse()

	if sheetPath == "" || (manifest && configPath == "") {
		flag.PrintDefaults()
		os.Exit(1)
	}

	store, err := metaprep.NewStore(context.Background(), []string{sheetPath, configPath})
	if err != nil {
		log.Fatalln(err)
	}
	defer store.Close()

	if configPath == "" {
		if err := summarizeSheet(store, sheetPath); err != nil {
			log.Fatalln(err)
		}
		return
	}

	cfg, err := pipeconfig.Load(store, configPath)
	if err != nil {
		log.Fatalln(err)
	}
	samples, _ := cfg.Map(metasheet.KeySamples)
	prefix, _ := samples.String(metasheet.PathPrefixKey)
	if err := store.Connect([]string{prefix}); err != nil {
		log.Fatalln(err)
	}

	meta, err := metasheet.Build(store, sheetPath, samples, metasheet.Options{RequireFiles: requireFiles})
	if err != nil {
		log.Fatalln(err)
	}

	if manifest {
		if err := meta.WriteManifest(STDOUT); err != nil {
			log.Fatalln(err)
		}
		return
	}

	printSummary(meta.Comparisons, meta.Comps, meta.MetaCols)
	for _, sample := range meta.Samples {
		fmt.Fprintf(STDOUT, "sample\t%s\t%s\n", sample, strings.Join(meta.Files[sample], " "))
	}
}

func summarizeSheet(store *metaprep.Store, sheetPath string) error {
	changed, err := metasheet.Sanitize(store, sheetPath)
	if err != nil {
		return err
	}
	if changed {
		log.Println("Rewrote", sheetPath)
	}

	sheet, err := metasheet.LoadSheet(store, sheetPath)
	if err != nil {
		return err
	}

	names, comps := sheet.Comparisons()
	printSummary(names, comps, sheet.MetaColumns())

	return nil
}

func printSummary(names []string, comps map[string]metasheet.Comparison, metaCols []string) {
	fmt.Fprintf(STDOUT, "metacols\t%s\n", strings.Join(metaCols, ","))
	for _, name := range names {
		comp := comps[name]
		fmt.Fprintf(STDOUT, "comparison\t%s\tcontrol=%s\ttreat=%s\n", name, strings.Join(comp.Control, ","), strings.Join(comp.Treatment, ","))
	}
}
