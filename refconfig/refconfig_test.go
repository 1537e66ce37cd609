package refconfig

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/carbocation/metaprep/pipeconfig"
)

const testReference = `
hg19:
  gtf: ./ref_files/hg19/refseqGenes.gtf
  star_index: ./ref_files/hg19/STAR
  user_value: ref_default
  RPKM_threshold: 1
hg38:
  gtf: ./ref_files/hg38/refseqGenes.gtf
empty:
`

func mustParse(t *testing.T, doc string) pipeconfig.Config {
	t.Helper()

	c, err := pipeconfig.Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}

	return c
}

func TestMergeDoesNotClobber(t *testing.T) {
	ref, err := ParseReference([]byte(testReference))
	if err != nil {
		t.Fatal(err)
	}

	cfg := mustParse(t, "assembly: hg19\nuser_value: mine\nstar_index: \"\"\n")

	merged, err := Merge(cfg, ref)
	if err != nil {
		t.Fatal(err)
	}

	for key, expected := range map[string]string{
		"user_value": "mine",
		"star_index": "",
		"gtf":        "./ref_files/hg19/refseqGenes.gtf",
	} {
		if got, _ := merged.String(key); got != expected {
			t.Fatalf("%s: got %q, expected %q", key, got, expected)
		}
	}

	expectedKeys := []string{"assembly", "user_value", "star_index", "gtf", "RPKM_threshold"}
	if !reflect.DeepEqual(merged.Keys(), expectedKeys) {
		t.Fatalf("got keys %v, expected %v", merged.Keys(), expectedKeys)
	}

	// The input is untouched
	if cfg.Has("gtf") {
		t.Fatal("Merge modified its input")
	}
}

func TestMergeErrors(t *testing.T) {
	ref, err := ParseReference([]byte(testReference))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Merge(mustParse(t, "ref: ref.yaml\n"), ref); !errors.Is(err, ErrNoAssembly) {
		t.Fatalf("expected ErrNoAssembly, got %v", err)
	}

	if _, err := Merge(mustParse(t, "assembly: mm10\n"), ref); !errors.Is(err, ErrUnknownAssembly) {
		t.Fatalf("expected ErrUnknownAssembly, got %v", err)
	}

	// An assembly with no defaults merges to the input
	merged, err := Merge(mustParse(t, "assembly: empty\n"), ref)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Len() != 1 {
		t.Fatalf("got %v", merged.Keys())
	}
}

func TestParseReferenceRejectsScalarAssembly(t *testing.T) {
	if _, err := ParseReference([]byte("hg19: /ref/hg19\n")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestReferenceAssemblies(t *testing.T) {
	ref, err := ParseReference([]byte(testReference))
	if err != nil {
		t.Fatal(err)
	}

	if got := ref.Assemblies(); !reflect.DeepEqual(got, []string{"hg19", "hg38", "empty"}) {
		t.Fatalf("got %v", got)
	}
}

func TestStringify(t *testing.T) {
	cfg := mustParse(t, "RPKM_threshold: 1.0\nnumgenes_plots: 250\nfilter_mirna: false\nother: 3\n")

	out := Stringify(cfg)

	for key, expected := range map[string]string{
		"RPKM_threshold": "1.0",
		"numgenes_plots": "250",
		"filter_mirna":   "False",
	} {
		v, _ := out.Get(key)
		if s, ok := v.(string); !ok || s != expected {
			t.Fatalf("%s: got %#v, expected %q", key, v, expected)
		}
	}

	if v, _ := out.Get("other"); v != 3 {
		t.Fatalf("untouched key changed: %#v", v)
	}
	if out.Has("num_kmeans_clust") {
		t.Fatal("absent keys should stay absent")
	}
}

func TestUpdate(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.yaml")
	if err := os.WriteFile(refPath, []byte(testReference), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := pipeconfig.NewBuilder().
		Set(KeyRef, refPath).
		Set(KeyAssembly, "hg19").
		Set("user_value", "mine").
		Config()

	out, err := Update(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got, _ := out.String(KeyConfigFile); got != ConfigFileValue {
		t.Fatalf("got %q", got)
	}
	if got, _ := out.String("user_value"); got != "mine" {
		t.Fatalf("got %q", got)
	}
	if v, _ := out.Get("RPKM_threshold"); v != "1" {
		t.Fatalf("RPKM_threshold from the reference should be a string, got %#v", v)
	}
}

func TestUpdateMissingReference(t *testing.T) {
	cfg := pipeconfig.NewBuilder().
		Set(KeyRef, filepath.Join(t.TempDir(), "nope.yaml")).
		Set(KeyAssembly, "hg19").
		Config()

	if _, err := Update(cfg, nil); err == nil {
		t.Fatal("expected an error for a missing reference file")
	}
}
