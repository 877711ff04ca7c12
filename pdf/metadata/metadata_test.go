package metadata

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/georgepadayatti/pdfstitch/internal/testpdf"
	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
	"github.com/georgepadayatti/pdfstitch/pdf/reader"
)

func TestDocumentInfoEntries(t *testing.T) {
	created := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	meta := &DocumentInfo{
		Title:    "Test Document",
		Keywords: []string{"test", "document"},
		Producer: "Test Producer",
		Created:  &created,
	}

	want := []InfoDictEntry{
		{Key: "Title", Value: "Test Document"},
		{Key: "Keywords", Value: "test, document"},
		{Key: "Producer", Value: "Test Producer"},
		{Key: "CreationDate", Value: "D:20261014093000+00'00'"},
	}
	if diff := cmp.Diff(want, meta.Entries()); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentInfoDict(t *testing.T) {
	meta := &DocumentInfo{Author: "Zoë", Producer: "pdfstitch"}
	dict := meta.Dict()

	if len(dict.Keys()) != 2 {
		t.Errorf("Keys = %v, want Author and Producer", dict.Keys())
	}
	author, ok := dict.Get("Author").(*generic.StringObject)
	if !ok || author.Text() != "Zoë" {
		t.Errorf("Author = %v", dict.Get("Author"))
	}
}

func TestDocumentInfoEmpty(t *testing.T) {
	if entries := (&DocumentInfo{}).Entries(); len(entries) != 0 {
		t.Errorf("Entries = %v, want none", entries)
	}
}

func TestFormatPDFDate(t *testing.T) {
	tests := []struct {
		offset   int
		expected string
	}{
		{3600, "D:20240115103045+01'00'"},
		{-(5*3600 + 30*60), "D:20240115103045-05'30'"},
		{0, "D:20240115103045+00'00'"},
	}

	for _, tt := range tests {
		loc := time.FixedZone("Test", tt.offset)
		result := FormatPDFDate(time.Date(2024, 1, 15, 10, 30, 45, 0, loc))
		if result != tt.expected {
			t.Errorf("FormatPDFDate (offset %d) = %s, want %s", tt.offset, result, tt.expected)
		}
	}
}

func TestParsePDFDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "D:20240115103045+01'00'", want: time.Date(2024, 1, 15, 9, 30, 45, 0, time.UTC)},
		{input: "D:20240115103045Z", want: time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{input: "D:20240115103045", want: time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{input: "D:20240115", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{input: "D:2024", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{input: "invalid", wantErr: true},
		{input: "20240115", wantErr: true}, // Missing D: prefix
	}

	for _, tt := range tests {
		result, err := ParsePDFDate(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePDFDate(%s) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePDFDate(%s) unexpected error: %v", tt.input, err)
			continue
		}
		if !result.Equal(tt.want) {
			t.Errorf("ParsePDFDate(%s) = %v, want %v", tt.input, result, tt.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	loc := time.FixedZone("Test", 2*3600)
	original := time.Date(2026, 10, 14, 18, 5, 9, 0, loc)

	parsed, err := ParsePDFDate(FormatPDFDate(original))
	if err != nil {
		t.Fatalf("ParsePDFDate failed: %v", err)
	}
	if !parsed.Equal(original) {
		t.Errorf("round trip = %v, want %v", parsed, original)
	}
}

func TestReadInfo(t *testing.T) {
	data := testpdf.Pages("a").
		Object(20, "<< /Title (Scan) /Producer 21 0 R /Keywords (duplex, scan,) /CreationDate (D:20261014093000+02'00') /ModDate (yesterday) /Author 7 >>").
		Object(21, "(scanner)").
		Build("/Root 1 0 R /Info 20 0 R")

	doc, err := reader.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	info, err := ReadInfo(doc)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}

	created := time.Date(2026, 10, 14, 7, 30, 0, 0, time.UTC)
	if info.Created == nil || !info.Created.Equal(created) {
		t.Errorf("Created = %v, want %v", info.Created, created)
	}
	info.Created = nil

	want := &DocumentInfo{
		Title:    "Scan",
		Producer: "scanner",
		Keywords: []string{"duplex", "scan"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("ReadInfo mismatch (-want +got):\n%s", diff)
	}
}

func TestReadInfoMissing(t *testing.T) {
	doc, err := reader.Parse(testpdf.PagesPDF("a"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	info, err := ReadInfo(doc)
	if err != nil || info != nil {
		t.Errorf("ReadInfo = %v, %v; want nil, nil", info, err)
	}
}

func TestReadInfoBuiltDocument(t *testing.T) {
	doc := document.New()
	meta := &DocumentInfo{Title: "Stitched", Producer: "pdfstitch"}
	ref, err := doc.Add(meta.Dict())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	trailer := generic.NewTrailer()
	trailer.Set("Info", ref)
	if err := doc.SetTrailer(trailer); err != nil {
		t.Fatalf("SetTrailer failed: %v", err)
	}

	info, err := ReadInfo(doc)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if diff := cmp.Diff(meta, info); diff != "" {
		t.Errorf("ReadInfo mismatch (-want +got):\n%s", diff)
	}
}
