package pages

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/georgepadayatti/pdfstitch/internal/testpdf"
	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
	"github.com/georgepadayatti/pdfstitch/pdf/reader"
)

func parse(t *testing.T, data []byte) *document.Document {
	t.Helper()
	doc, err := reader.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func markers(t *testing.T, pages []*Page) []string {
	t.Helper()
	var out []string
	for _, p := range pages {
		content, err := p.Content()
		if err != nil {
			t.Fatalf("Content of page %d failed: %v", p.Index(), err)
		}
		out = append(out, testpdf.Marker(content))
	}
	return out
}

func TestExtractFlat(t *testing.T) {
	doc := parse(t, testpdf.PagesPDF("a", "b", "c"))

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, markers(t, pages)); diff != "" {
		t.Errorf("Markers mismatch (-want +got):\n%s", diff)
	}

	for i, p := range pages {
		if p.Index() != i {
			t.Errorf("Page %d Index = %d", i, p.Index())
		}
		if want := generic.NewReference(4+2*i, 0); p.Ref() != want {
			t.Errorf("Page %d Ref = %s, want %s", i, p.Ref(), want)
		}
		if p.Document() != doc {
			t.Errorf("Page %d Document mismatch", i)
		}
	}
}

func TestExtractNestedInheritance(t *testing.T) {
	doc := parse(t, testpdf.Nested("1", "2", "3", "4").Build("/Root 1 0 R"))

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4"}, markers(t, pages)); diff != "" {
		t.Errorf("Markers mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		page     int
		mediaBox generic.Rectangle
		rotate   int
	}{
		{0, generic.Rectangle{URX: 595, URY: 842}, 0},
		{1, generic.Rectangle{URX: 595, URY: 842}, 0},
		{2, generic.Rectangle{URX: 612, URY: 792}, 90},
		{3, generic.Rectangle{URX: 612, URY: 792}, 90},
	}
	for _, tt := range tests {
		p := pages[tt.page]
		box, err := p.MediaBox()
		if err != nil {
			t.Fatalf("MediaBox of page %d failed: %v", tt.page, err)
		}
		if *box != tt.mediaBox {
			t.Errorf("Page %d MediaBox = %+v, want %+v", tt.page, *box, tt.mediaBox)
		}
		crop, err := p.CropBox()
		if err != nil {
			t.Fatalf("CropBox failed: %v", err)
		}
		if *crop != tt.mediaBox {
			t.Errorf("Page %d CropBox = %+v, want media box", tt.page, *crop)
		}
		if p.Rotate() != tt.rotate {
			t.Errorf("Page %d Rotate = %d, want %d", tt.page, p.Rotate(), tt.rotate)
		}

		res, err := p.Resources()
		if err != nil {
			t.Fatalf("Resources failed: %v", err)
		}
		if res == nil || res.GetDict("Font") == nil {
			t.Errorf("Page %d has no inherited font resources", tt.page)
		}
		if p.Dict().Has("Resources") {
			t.Errorf("Page %d dictionary was modified", tt.page)
		}
	}
}

func TestLeafOverridesAncestor(t *testing.T) {
	b := testpdf.Nested("x", "y")
	b.Object(6, "<< /Type /Page /Parent 4 0 R /Contents 7 0 R /MediaBox [0 0 100 200] /Rotate -90 >>")
	doc := parse(t, b.Build("/Root 1 0 R"))

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	box, err := pages[0].MediaBox()
	if err != nil {
		t.Fatalf("MediaBox failed: %v", err)
	}
	if *box != (generic.Rectangle{URX: 100, URY: 200}) {
		t.Errorf("MediaBox = %+v", *box)
	}
	if pages[0].Rotate() != 270 {
		t.Errorf("Rotate = %d, want 270", pages[0].Rotate())
	}
}

func TestDefaultMediaBox(t *testing.T) {
	b := testpdf.New()
	b.Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Object(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.Object(3, "<< /Type /Page /Parent 2 0 R /Rotate 45 >>")
	doc := parse(t, b.Build("/Root 1 0 R"))

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	box, err := pages[0].MediaBox()
	if err != nil {
		t.Fatalf("MediaBox failed: %v", err)
	}
	if *box != LetterMediaBox {
		t.Errorf("MediaBox = %+v, want US Letter", *box)
	}
	if pages[0].Rotate() != 0 {
		t.Errorf("Rotate = %d, want 0 for a non-multiple of 90", pages[0].Rotate())
	}

	streams, err := pages[0].ContentStreams()
	if err != nil {
		t.Fatalf("ContentStreams failed: %v", err)
	}
	if len(streams) != 0 {
		t.Errorf("ContentStreams = %d, want none", len(streams))
	}
}

func TestMissingType(t *testing.T) {
	b := testpdf.New()
	b.Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Object(2, "<< /Kids [3 0 R 4 0 R] /Count 2 >>")
	b.Object(3, "<< /Parent 2 0 R >>")
	b.Object(4, "<< /Kids [5 0 R] /Count 1 /Parent 2 0 R >>")
	b.Object(5, "<< /Parent 4 0 R >>")
	doc := parse(t, b.Build("/Root 1 0 R"))

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	var refs []int
	for _, p := range pages {
		refs = append(refs, p.Ref().ObjectNumber)
	}
	if diff := cmp.Diff([]int{3, 5}, refs); diff != "" {
		t.Errorf("Page refs mismatch (-want +got):\n%s", diff)
	}
}

func TestMultipleContentStreams(t *testing.T) {
	b := testpdf.New()
	b.Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Object(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.Object(3, "<< /Type /Page /Parent 2 0 R /Contents [4 0 R 5 0 R] >>")
	b.FlateStream(4, "", []byte("q"))
	b.Stream(5, "", []byte("Q"))
	doc := parse(t, b.Build("/Root 1 0 R"))

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	content, err := pages[0].Content()
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if string(content) != "q\nQ" {
		t.Errorf("Content = %q, want %q", content, "q\nQ")
	}
}

func TestExtractXRefStream(t *testing.T) {
	data := testpdf.Pages("p1", "p2").BuildXRefStream("/Root 1 0 R", 1, 2, 3, 4, 6)
	doc := parse(t, data)

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, markers(t, pages)); diff != "" {
		t.Errorf("Markers mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name    string
		build   func() []byte
		wantErr error
	}{
		{
			name: "count mismatch",
			build: func() []byte {
				b := testpdf.Pages("a", "b")
				b.Object(2, "<< /Type /Pages /Kids [4 0 R 6 0 R] /Count 3 >>")
				return b.Build("/Root 1 0 R")
			},
			wantErr: ErrPageCountMismatch,
		},
		{
			name: "cycle",
			build: func() []byte {
				b := testpdf.New()
				b.Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
				b.Object(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
				b.Object(3, "<< /Type /Pages /Parent 2 0 R /Kids [2 0 R] /Count 1 >>")
				return b.Build("/Root 1 0 R")
			},
			wantErr: ErrPageTreeCycle,
		},
		{
			name: "pages not a dictionary",
			build: func() []byte {
				b := testpdf.New()
				b.Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
				b.Object(2, "[1 2 3]")
				return b.Build("/Root 1 0 R")
			},
			wantErr: ErrInvalidPageTree,
		},
		{
			name: "no count",
			build: func() []byte {
				b := testpdf.Pages("a")
				b.Object(2, "<< /Type /Pages /Kids [4 0 R] >>")
				return b.Build("/Root 1 0 R")
			},
			wantErr: ErrInvalidPageTree,
		},
		{
			name: "unknown node type",
			build: func() []byte {
				b := testpdf.Pages("a")
				b.Object(4, "<< /Type /Annot >>")
				return b.Build("/Root 1 0 R")
			},
			wantErr: ErrInvalidPageTree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.build())
			_, err := Extract(doc)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Extract error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCountMismatchError(t *testing.T) {
	b := testpdf.Pages("a", "b")
	b.Object(2, "<< /Type /Pages /Kids [4 0 R 6 0 R] /Count 5 >>")
	doc := parse(t, b.Build("/Root 1 0 R"))

	_, err := Extract(doc)
	var mismatch *CountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Extract error = %v, want *CountMismatchError", err)
	}
	if mismatch.Declared != 5 || mismatch.Found != 2 {
		t.Errorf("CountMismatchError = %+v", mismatch)
	}
	if mismatch.Error() != "page tree declares 5 pages but contains 2" {
		t.Errorf("Error() = %q", mismatch.Error())
	}
}

func TestFreeKidSkipped(t *testing.T) {
	b := testpdf.Pages("a")
	b.Object(2, "<< /Type /Pages /Kids [4 0 R 40 0 R] /Count 1 >>")
	doc := parse(t, b.Build("/Root 1 0 R"))

	pages, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("len(pages) = %d, want 1", len(pages))
	}
}
