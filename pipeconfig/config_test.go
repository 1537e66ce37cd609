package pipeconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const runConfigYAML = `
metasheet: metasheet.csv
ref: ref.yaml
assembly: hg19
RPKM_threshold: 1.0
numgenes_plots: 50
filter_mirna: false
picard_path: ""
samples:
  S2:
    - /data/S2_R1.fastq.gz
    - /data/S2_R2.fastq.gz
  S1: /data/S1.fastq.gz
`

func TestParsePreservesOrder(t *testing.T) {
	c, err := Parse([]byte(runConfigYAML))
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{"metasheet", "ref", "assembly", "RPKM_threshold", "numgenes_plots", "filter_mirna", "picard_path", "samples"}
	if !reflect.DeepEqual(c.Keys(), expected) {
		t.Fatalf("got %v, expected %v", c.Keys(), expected)
	}

	samples, ok := c.Map("samples")
	if !ok {
		t.Fatal("expected samples to decode as a mapping")
	}
	if !reflect.DeepEqual(samples.Keys(), []string{"S2", "S1"}) {
		t.Fatalf("got sample order %v", samples.Keys())
	}

	v, _ := samples.Get("S2")
	reads, err := StringList(v)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(reads, []string{"/data/S2_R1.fastq.gz", "/data/S2_R2.fastq.gz"}) {
		t.Fatalf("got %v", reads)
	}
}

func TestStringFormatting(t *testing.T) {
	c, err := Parse([]byte(runConfigYAML))
	if err != nil {
		t.Fatal(err)
	}

	for key, expected := range map[string]string{
		"RPKM_threshold": "1.0",
		"numgenes_plots": "50",
		"filter_mirna":   "False",
		"assembly":       "hg19",
		"picard_path":    "",
	} {
		got, ok := c.String(key)
		if !ok {
			t.Fatalf("%s: expected a scalar", key)
		}
		if got != expected {
			t.Fatalf("%s: got %q, expected %q", key, got, expected)
		}
	}

	if _, ok := c.String("samples"); ok {
		t.Fatal("a mapping should not format as a scalar")
	}
	if !c.IsEmpty("picard_path") || !c.IsEmpty("missing") || c.IsEmpty("assembly") {
		t.Fatal("IsEmpty mismatch")
	}
	if !c.IsEmpty("filter_mirna") || c.IsEmpty("numgenes_plots") {
		t.Fatal("IsEmpty should follow truthiness for booleans and numbers")
	}
}

func TestWithAndWithDefaultsDoNotMutate(t *testing.T) {
	base := NewBuilder().Set("k", "user_value").Set("a", 1).Config()
	fragment := NewBuilder().Set("k", "ref_value").Set("b", 2).Config()

	merged := base.WithDefaults(fragment)
	if v, _ := merged.String("k"); v != "user_value" {
		t.Fatalf("WithDefaults clobbered k: %q", v)
	}
	if !reflect.DeepEqual(merged.Keys(), []string{"k", "a", "b"}) {
		t.Fatalf("got %v", merged.Keys())
	}

	overlaid := base.With(fragment)
	if v, _ := overlaid.String("k"); v != "ref_value" {
		t.Fatalf("With did not override k: %q", v)
	}

	// Inputs are unchanged
	if base.Len() != 2 || base.Has("b") {
		t.Fatalf("base was mutated: %v", base.Keys())
	}
	if v, _ := base.String("k"); v != "user_value" {
		t.Fatalf("base was mutated: %q", v)
	}
	if fragment.Len() != 2 {
		t.Fatalf("fragment was mutated: %v", fragment.Keys())
	}
}

func TestBuilderSnapshots(t *testing.T) {
	b := NewBuilder().Set("x", 1)
	first := b.Config()
	b.Set("y", 2)

	if first.Has("y") {
		t.Fatal("a returned Config must not observe later builder changes")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	c, err := Parse([]byte(runConfigYAML))
	if err != nil {
		t.Fatal(err)
	}
	c = c.Set("comparisons", []string{"AvsB"})

	out, err := Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "metasheet: metasheet.csv\n") {
		t.Fatalf("unexpected document start:\n%s", out)
	}

	again, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again.Keys(), c.Keys()) {
		t.Fatalf("got %v, expected %v", again.Keys(), c.Keys())
	}
	v, _ := again.Get("comparisons")
	comps, err := StringList(v)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(comps, []string{"AvsB"}) {
		t.Fatalf("got %v", comps)
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(runConfigYAML), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(nil, p)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.yaml")
	if err := Save(nil, out, c.Set("token", "summary_reports")); err != nil {
		t.Fatal(err)
	}

	saved, err := Load(nil, out)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := saved.String("token"); v != "summary_reports" {
		t.Fatalf("got %q", v)
	}
}

func TestParseRejectsNonMapping(t *testing.T) {
	if _, err := Parse([]byte("- a\n- b\n")); err == nil {
		t.Fatal("expected an error for a top-level sequence")
	}

	c, err := Parse([]byte("  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty config, got %v", c.Keys())
	}
}

func TestStringList(t *testing.T) {
	for _, v := range []struct {
		In       interface{}
		Expected []string
		Err      bool
	}{
		{nil, []string{}, false},
		{"a.fastq.gz", []string{"a.fastq.gz"}, false},
		{[]interface{}{"a", "b"}, []string{"a", "b"}, false},
		{[]interface{}{"a", []interface{}{"b"}}, nil, true},
		{Config{}, nil, true},
	} {
		got, err := StringList(v.In)
		if (err != nil) != v.Err {
			t.Fatalf("%v: unexpected error state %v", v.In, err)
		}
		if !v.Err && !reflect.DeepEqual(got, v.Expected) {
			t.Fatalf("%v: got %v, expected %v", v.In, got, v.Expected)
		}
	}
}
