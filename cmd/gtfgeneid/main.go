// gtfgeneid replaces the gene_id of every record in a GTF file using a
// two-column lookup table, printing the rewritten GTF to stdout
package main

import (
	"bufio"
	"context"
	"flag"
	"os"

	"github.com/carbocation/metaprep"
	_ "github.com/carbocation/metaprep/compileinfoprint"
	"github.com/carbocation/metaprep/gtf"
	log "github.com/sirupsen/logrus"
)

var (
	STDOUT = bufio.NewWriterSize(os.Stdout, 4096)
)

func main() {
	defer STDOUT.Flush()

	var gtfPath, lookupPath string
	var keepUnmapped bool
	flag.StringVar(&gtfPath, "gtf", "", "Path to the gtf file to rewrite. May be compressed, local or gs://")
	flag.StringVar(&lookupPath, "lookup", "", "Path to the two-column table mapping the current gene_id to its replacement.")
	flag.BoolVar(&keepUnmapped, "keep-unmapped", false, "Pass through records whose gene_id is not in the lookup, instead of failing.")
	flag.Parse()

	if gtfPath == "" || lookupPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	store, err := metaprep.NewStore(context.Background(), []string{gtfPath, lookupPath})
	if err != nil {
		log.Fatalln(err)
	}
	defer store.Close()

	if err := run(store, gtfPath, lookupPath, gtf.Options{KeepUnmapped: keepUnmapped}); err != nil {
		log.Fatalln(err)
	}
}

func run(store *metaprep.Store, gtfPath, lookupPath string, opts gtf.Options) error {
	lookup, err := gtf.LoadLookup(store, lookupPath)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d ids from %s", len(lookup), lookupPath)

	f, err := gtf.Open(store, gtfPath)
	if err != nil {
		return err
	}
	defer f.Close()

	stats, err := gtf.Rewrite(f, STDOUT, lookup, opts)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"records":   stats.Records,
		"rewritten": stats.Rewritten,
		"no_gene":   stats.NoGeneID,
		"unmapped":  stats.Unmapped,
		"comments":  stats.Comments,
	}).Info("Rewrote ", gtfPath)

	return nil
}
