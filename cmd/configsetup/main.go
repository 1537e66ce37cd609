// configsetup prepares the run configuration for the RNA-seq pipeline: it
// merges the reference defaults for the chosen assembly, fills in tool paths,
// and adds the comparisons and sample files described by the metasheet.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/carbocation/metaprep"
	_ "github.com/carbocation/metaprep/compileinfoprint"
	"github.com/carbocation/metaprep/execpaths"
	"github.com/carbocation/metaprep/metasheet"
	"github.com/carbocation/metaprep/pipeconfig"
	"github.com/carbocation/metaprep/refconfig"
	"github.com/carbocation/pfx"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var (
	STDOUT = bufio.NewWriterSize(os.Stdout, 4096)
)

const DefaultMetasheet = "metasheet.csv"

func main() {
	defer STDOUT.Flush()

	var configPath, outPath, credentials, condaRoot string
	var requireFiles, skipMetasheet bool
	flag.StringVar(&configPath, "config", "", "Path to the run configuration YAML. May be local or gs://")
	flag.StringVar(&outPath, "out", "", "Path to write the prepared configuration. If empty, it is printed to stdout.")
	flag.StringVar(&credentials, "credentials", "", "(Optional) Path to a service account JSON key for gs:// paths. If empty, application default credentials are used.")
	flag.StringVar(&condaRoot, "conda-root", "", fmt.Sprintf("(Optional) Root of the conda installation. If empty, $%s or `conda info --root` is used.", execpaths.EnvCondaRoot))
	flag.BoolVar(&requireFiles, "require-files", false, "Fail if a sample matches no FASTQ files under fastq_path_prefix, instead of warning.")
	flag.BoolVar(&skipMetasheet, "skip-metasheet", false, "Only merge the reference and tool paths; do not read the metasheet.")
	flag.Parse()

	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var opts []option.ClientOption
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	ctx := context.Background()
	store, err := metaprep.NewStore(ctx, []string{configPath, outPath}, opts...)
	if err != nil {
		log.Fatalln(err)
	}
	defer store.Close()

	cfg, err := run(ctx, store, opts, configPath, condaRoot, metasheet.Options{RequireFiles: requireFiles}, skipMetasheet)
	if err != nil {
		log.Fatalln(err)
	}

	if outPath == "" {
		out, err := pipeconfig.Marshal(cfg)
		if err != nil {
			log.Fatalln(err)
		}
		if _, err := STDOUT.Write(out); err != nil {
			log.Fatalln(err)
		}
		return
	}

	if err := pipeconfig.Save(store, outPath, cfg); err != nil {
		log.Fatalln(err)
	}
	log.Println("Wrote", outPath)
}

func run(ctx context.Context, store *metaprep.Store, opts []option.ClientOption, configPath, condaRoot string, sheetOpts metasheet.Options, skipMetasheet bool) (pipeconfig.Config, error) {
	cfg, err := pipeconfig.Load(store, configPath)
	if err != nil {
		return cfg, pfx.Err(err)
	}
	log.Printf("Loaded %d keys from %s", cfg.Len(), configPath)

	sheetPath := DefaultMetasheet
	if p, ok := cfg.String(metasheet.KeyMetasheet); ok && p != "" {
		sheetPath = p
	}
	samples, _ := cfg.Map(metasheet.KeySamples)
	prefix, _ := samples.String(metasheet.PathPrefixKey)
	refPath, _ := cfg.String(refconfig.KeyRef)

	// Paths named inside the configuration may need a client too.
	if err := store.Connect([]string{refPath, sheetPath, prefix}, opts...); err != nil {
		return cfg, pfx.Err(err)
	}

	cfg, err = refconfig.Update(cfg, store)
	if err != nil {
		return cfg, pfx.Err(err)
	}

	if condaRoot == "" {
		if condaRoot, err = execpaths.CondaRoot(ctx); err != nil {
			return cfg, pfx.Err(err)
		}
	}
	cfg = cfg.With(execpaths.Resolve(cfg, condaRoot))

	if missing := execpaths.MissingTools(cfg); len(missing) > 0 {
		for _, key := range missing {
			v, _ := cfg.String(key)
			log.Warnf("%s (%s) was not found; rules that need it will fail", key, v)
		}
	}

	if skipMetasheet {
		return cfg, nil
	}

	meta, err := metasheet.Build(store, sheetPath, samples, sheetOpts)
	if err != nil {
		return cfg, pfx.Err(err)
	}
	log.Printf("%s: %d samples, %d comparisons, %d metadata columns (%s mode)", sheetPath, len(meta.Samples), len(meta.Comparisons), len(meta.MetaCols), meta.Mode)

	return cfg.With(meta.Fragment()), nil
}
