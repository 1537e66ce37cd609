package gtf

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var testLookup = Lookup{
	"NM_001195025": "ZNF101",
	"NR_024540":    "WASH7P",
}

func TestParseAttributes(t *testing.T) {
	attrs := ParseAttributes(`gene_id "NM_001195025"; transcript_id "NM_001195025"; gene_id_version "2"; note "two words";`)

	expected := []Attribute{
		{Key: "gene_id", Value: "NM_001195025", Raw: `gene_id "NM_001195025"`},
		{Key: "transcript_id", Value: "NM_001195025", Raw: ` transcript_id "NM_001195025"`},
		{Key: "gene_id_version", Value: "2", Raw: ` gene_id_version "2"`},
		{Key: "note", Value: "two words", Raw: ` note "two words"`},
		{Raw: ""},
	}
	if !reflect.DeepEqual(attrs, expected) {
		t.Fatalf("got %+v", attrs)
	}

	if !attrs[0].IsGeneID() || attrs[2].IsGeneID() || attrs[4].IsGeneID() {
		t.Fatal("only the exact gene_id key is a gene id")
	}
}

func TestGeneID(t *testing.T) {
	for _, v := range []struct {
		Field    string
		Expected string
		Found    bool
	}{
		{`transcript_id "T1"; gene_id "G1"; gene_id "G2";`, "G1", true},
		{`gene_id_version "2"; transcript_id "T1";`, "", false},
		{`gene_id; transcript_id "T1";`, "", false},
		{``, "", false},
	} {
		id, found := GeneID(ParseAttributes(v.Field))
		if id != v.Expected || found != v.Found {
			t.Fatalf("%q: got %q %v, expected %q %v", v.Field, id, found, v.Expected, v.Found)
		}
	}
}

func TestRewriteLine(t *testing.T) {
	for _, v := range []struct {
		In       string
		Expected string
		HasID    bool
	}{
		{
			"chr19\tunknown\texon\t100\t200\t.\t+\t.\tgene_id \"NM_001195025\"; transcript_id \"NM_001195025\";",
			"chr19\tunknown\texon\t100\t200\t.\t+\t.\tgene_id \"ZNF101\"; transcript_id \"NM_001195025\";",
			true,
		},
		{
			// gene_id not first, plus a duplicate
			"chr1\tx\texon\t1\t2\t.\t-\t.\ttranscript_id \"NR_024540\"; gene_id \"NR_024540\"; gene_id \"other\"; gene_id_version \"2\";",
			"chr1\tx\texon\t1\t2\t.\t-\t.\tgene_id \"WASH7P\"; transcript_id \"NR_024540\"; gene_id_version \"2\";",
			true,
		},
		{
			"chr1\tx\texon\t1\t2\t.\t-\t.\ttranscript_id \"NR_024540\";  ",
			"chr1\tx\texon\t1\t2\t.\t-\t.\ttranscript_id \"NR_024540\";",
			false,
		},
	} {
		got, hasID, err := RewriteLine(v.In, testLookup)
		if err != nil {
			t.Fatal(err)
		}
		if hasID != v.HasID {
			t.Fatalf("%q: hasID %v, expected %v", v.In, hasID, v.HasID)
		}
		if got != v.Expected {
			t.Fatalf("\ngot      %q\nexpected %q", got, v.Expected)
		}
	}
}

func TestRewrite(t *testing.T) {
	in := strings.Join([]string{
		"#!genome-build GRCh37",
		"chr19\tunknown\texon\t100\t200\t.\t+\t.\tgene_id \"NM_001195025\"; transcript_id \"NM_001195025\";",
		"",
		"chr1\tunknown\tCDS\t1\t2\t.\t-\t0\tgene_id \"NR_024540\"; transcript_id \"NR_024540\";\r",
		"chr1\tunknown\tgene\t1\t9\t.\t-\t.\tgene_name \"WASH7P\";",
	}, "\n")

	var out bytes.Buffer
	stats, err := Rewrite(strings.NewReader(in), &out, testLookup, Options{})
	if err != nil {
		t.Fatal(err)
	}

	expected := strings.Join([]string{
		"chr19\tunknown\texon\t100\t200\t.\t+\t.\tgene_id \"ZNF101\"; transcript_id \"NM_001195025\";",
		"chr1\tunknown\tCDS\t1\t2\t.\t-\t0\tgene_id \"WASH7P\"; transcript_id \"NR_024540\";",
		"chr1\tunknown\tgene\t1\t9\t.\t-\t.\tgene_name \"WASH7P\";",
	}, "\n") + "\n"
	if out.String() != expected {
		t.Fatalf("\ngot:\n%s\nexpected:\n%s", out.String(), expected)
	}

	expectedStats := Stats{Records: 3, Rewritten: 2, Comments: 1, NoGeneID: 1}
	if stats != expectedStats {
		t.Fatalf("got %+v, expected %+v", stats, expectedStats)
	}
}

func TestRewriteUnmapped(t *testing.T) {
	in := "#header\nchr1\tx\texon\t1\t2\t.\t+\t.\tgene_id \"NM_999\"; transcript_id \"NM_999\";\n"

	_, err := Rewrite(strings.NewReader(in), &bytes.Buffer{}, testLookup, Options{})

	var unmapped *UnmappedIDError
	if !errors.As(err, &unmapped) {
		t.Fatalf("expected an UnmappedIDError, got %v", err)
	}
	if unmapped.ID != "NM_999" || unmapped.Line != 2 {
		t.Fatalf("got %+v", unmapped)
	}

	var out bytes.Buffer
	stats, err := Rewrite(strings.NewReader(in), &out, testLookup, Options{KeepUnmapped: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Unmapped != 1 || stats.Rewritten != 0 {
		t.Fatalf("got %+v", stats)
	}
	if out.String() != "chr1\tx\texon\t1\t2\t.\t+\t.\tgene_id \"NM_999\"; transcript_id \"NM_999\";\n" {
		t.Fatalf("unmapped record should pass through, got %q", out.String())
	}
}

func TestParseLookup(t *testing.T) {
	for name, content := range map[string]string{
		"tab":   "# refseq\tsymbol\nNM_001195025\tZNF101\nNR_024540\tWASH7P\nNR_024540\tDUPLICATE\n",
		"comma": "NM_001195025,ZNF101,extra\nNR_024540,WASH7P\n",
	} {
		lookup, err := ParseLookup([]byte(content))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !reflect.DeepEqual(lookup, testLookup) {
			t.Fatalf("%s: got %v", name, lookup)
		}
	}

	if _, err := ParseLookup([]byte("NM_001195025\n")); err == nil {
		t.Fatal("expected an error for a one-column table")
	}
}

func TestLoadLookupGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.tsv.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte("NM_001195025\tZNF101\nNR_024540\tWASH7P\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	lookup, err := LoadLookup(nil, path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(lookup, testLookup) {
		t.Fatalf("got %v", lookup)
	}
}
