// Package testpdf builds small PDF files byte by byte for tests, with
// cross-reference offsets computed from the actual layout.
package testpdf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Builder collects numbered object bodies and lays them out as a file.
type Builder struct {
	Version string
	objects map[int]string
}

// New returns an empty builder for a PDF 1.7 file.
func New() *Builder {
	return &Builder{Version: "1.7", objects: make(map[int]string)}
}

// Object sets the body of object num, written between "num 0 obj" and "endobj".
func (b *Builder) Object(num int, body string) *Builder {
	b.objects[num] = body
	return b
}

// Stream sets object num to a stream with a direct /Length. entries are
// extra dictionary entries such as "/Filter /FlateDecode".
func (b *Builder) Stream(num int, entries string, data []byte) *Builder {
	return b.Object(num, streamBody(entries, data))
}

// FlateStream sets object num to a FlateDecode stream of data.
func (b *Builder) FlateStream(num int, entries string, data []byte) *Builder {
	return b.Stream(num, strings.TrimSpace("/Filter /FlateDecode "+entries), Deflate(data))
}

// Max returns the highest object number set.
func (b *Builder) Max() int {
	highest := 0
	for num := range b.objects {
		if num > highest {
			highest = num
		}
	}
	return highest
}

func (b *Builder) numbers() []int {
	nums := make([]int, 0, len(b.objects))
	for num := range b.objects {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums
}

func streamBody(entries string, data []byte) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< /Length %d", len(data))
	if entries != "" {
		buf.WriteString(" " + entries)
	}
	buf.WriteString(" >>\nstream\n")
	buf.Write(data)
	buf.WriteString("\nendstream")
	return buf.String()
}

func writeObject(buf *bytes.Buffer, num int, body string) {
	fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *Builder) header() *bytes.Buffer {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.Version)
	return &buf
}

// Build lays out the objects with a classic xref table. trailer holds the
// trailer entries other than /Size, e.g. "/Root 1 0 R".
func (b *Builder) Build(trailer string) []byte {
	buf := b.header()
	size := b.Max() + 1
	offsets := make([]int, size)

	for _, num := range b.numbers() {
		offsets[num] = buf.Len()
		writeObject(buf, num, b.objects[num])
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n", size)
	for num := 0; num < size; num++ {
		if _, ok := b.objects[num]; ok {
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[num], 0)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, trailer, xrefOffset)
	return buf.Bytes()
}

// BuildXRefStream lays out the objects with a compressed cross-reference
// stream. Objects listed in packed go into one object stream; they must not
// be streams themselves.
func (b *Builder) BuildXRefStream(trailer string, packed ...int) []byte {
	buf := b.header()
	objStmNum := b.Max() + 1
	xrefNum := objStmNum + 1
	size := xrefNum + 1

	isPacked := make(map[int]int, len(packed))
	for i, num := range packed {
		isPacked[num] = i
	}

	offsets := make([]int, size)
	for _, num := range b.numbers() {
		if _, ok := isPacked[num]; ok {
			continue
		}
		offsets[num] = buf.Len()
		writeObject(buf, num, b.objects[num])
	}

	if len(packed) > 0 {
		var index, bodies bytes.Buffer
		for _, num := range packed {
			fmt.Fprintf(&index, "%d %d ", num, bodies.Len())
			bodies.WriteString(b.objects[num])
			bodies.WriteString("\n")
		}
		data := append(index.Bytes(), bodies.Bytes()...)
		offsets[objStmNum] = buf.Len()
		writeObject(buf, objStmNum, streamBody(
			fmt.Sprintf("/Type /ObjStm /N %d /First %d /Filter /FlateDecode", len(packed), index.Len()),
			Deflate(data)))
	}

	offsets[xrefNum] = buf.Len()
	var rows bytes.Buffer
	for num := 0; num < size; num++ {
		_, defined := b.objects[num]
		idx, inStream := isPacked[num]
		switch {
		case inStream:
			writeRow(&rows, 2, objStmNum, idx)
		case defined, num == xrefNum, num == objStmNum && len(packed) > 0:
			writeRow(&rows, 1, offsets[num], 0)
		default:
			writeRow(&rows, 0, 0, 65535)
		}
	}
	writeObject(buf, xrefNum, streamBody(
		fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Filter /FlateDecode %s", size, trailer),
		Deflate(rows.Bytes())))

	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", offsets[xrefNum])
	return buf.Bytes()
}

func writeRow(buf *bytes.Buffer, typ byte, field2, field3 int) {
	buf.WriteByte(typ)
	binary.Write(buf, binary.BigEndian, uint32(field2))
	binary.Write(buf, binary.BigEndian, uint16(field3))
}

var startxrefRegex = regexp.MustCompile(`startxref\s+(\d+)`)

// Append writes the builder's objects as an incremental update of base.
// trailer holds entries other than /Size and /Prev.
func (b *Builder) Append(base []byte, trailer string) []byte {
	matches := startxrefRegex.FindAllSubmatch(base, -1)
	if len(matches) == 0 {
		panic("testpdf: base has no startxref")
	}
	prev := string(matches[len(matches)-1][1])

	var buf bytes.Buffer
	buf.Write(base)
	nums := b.numbers()
	offsets := make(map[int]int, len(nums))
	for _, num := range nums {
		offsets[num] = buf.Len()
		writeObject(&buf, num, b.objects[num])
	}

	size := b.Max() + 1
	if baseSize := sizeOf(base); baseSize > size {
		size = baseSize
	}

	xrefOffset := buf.Len()
	buf.WriteString("xref\n")
	for _, num := range nums {
		fmt.Fprintf(&buf, "%d 1\n%010d %05d n \n", num, offsets[num], 0)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Prev %s %s >>\nstartxref\n%d\n%%%%EOF\n", size, prev, trailer, xrefOffset)
	return buf.Bytes()
}

var sizeRegex = regexp.MustCompile(`/Size\s+(\d+)`)

func sizeOf(data []byte) int {
	matches := sizeRegex.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return 0
	}
	var n int
	fmt.Sscanf(string(matches[len(matches)-1][1]), "%d", &n)
	return n
}

// Deflate compresses data with zlib.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// Content returns a page content stream that shows marker.
func Content(marker string) []byte {
	return []byte(fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", marker))
}

var markerRegex = regexp.MustCompile(`\(([^)]*)\) Tj`)

// Marker extracts the marker shown by a content stream built with Content.
func Marker(content []byte) string {
	m := markerRegex.FindSubmatch(content)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// Font is the body of the shared font object used by the page builders.
const Font = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"

// Pages returns a builder for a document with one page per marker under a
// single page tree node. Object 1 is the catalog, 2 the page tree, 3 a font
// shared by every page; page i is object 4+2i with its content at 5+2i.
func Pages(markers ...string) *Builder {
	b := New()
	b.Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Object(3, Font)

	kids := make([]string, len(markers))
	for i, marker := range markers {
		page, content := 4+2*i, 5+2*i
		kids[i] = fmt.Sprintf("%d 0 R", page)
		b.Object(page, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			content))
		b.Stream(content, "", Content(marker))
	}
	b.Object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(markers)))
	return b
}

// PagesPDF returns the file built by Pages with a classic xref table.
func PagesPDF(markers ...string) []byte {
	return Pages(markers...).Build("/Root 1 0 R")
}

// Nested returns a builder for a two-level page tree. The root node (2)
// carries the shared Resources and an A4 MediaBox; the first half of the
// pages hang off node 4, the second half off node 5, which overrides
// MediaBox with US Letter and sets Rotate 90. Leaves define none of the
// inheritable attributes. Page i is object 6+2i with its content at 7+2i.
func Nested(markers ...string) *Builder {
	b := New()
	b.Object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Object(3, Font)

	half := (len(markers) + 1) / 2
	var first, second []string
	for i, marker := range markers {
		page, content := 6+2*i, 7+2*i
		parent := 4
		if i >= half {
			parent = 5
		}
		b.Object(page, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /Contents %d 0 R >>", parent, content))
		b.Stream(content, "", Content(marker))
		if parent == 4 {
			first = append(first, fmt.Sprintf("%d 0 R", page))
		} else {
			second = append(second, fmt.Sprintf("%d 0 R", page))
		}
	}

	b.Object(2, fmt.Sprintf(
		"<< /Type /Pages /Kids [4 0 R 5 0 R] /Count %d /Resources << /Font << /F1 3 0 R >> >> /MediaBox [0 0 595 842] >>",
		len(markers)))
	b.Object(4, fmt.Sprintf("<< /Type /Pages /Parent 2 0 R /Kids [%s] /Count %d >>", strings.Join(first, " "), len(first)))
	b.Object(5, fmt.Sprintf("<< /Type /Pages /Parent 2 0 R /Kids [%s] /Count %d /Rotate 90 /MediaBox [0 0 612 792] >>",
		strings.Join(second, " "), len(second)))
	return b
}

// BuildHybrid lays out a hybrid-reference file: a classic xref table in
// which the packed objects are marked free, plus a hidden xref stream named
// by /XRefStm that locates them inside an object stream.
func (b *Builder) BuildHybrid(trailer string, packed ...int) []byte {
	buf := b.header()
	objStmNum := b.Max() + 1
	xrefNum := objStmNum + 1
	size := xrefNum + 1

	isPacked := make(map[int]int, len(packed))
	for i, num := range packed {
		isPacked[num] = i
	}

	offsets := make([]int, size)
	for _, num := range b.numbers() {
		if _, ok := isPacked[num]; ok {
			continue
		}
		offsets[num] = buf.Len()
		writeObject(buf, num, b.objects[num])
	}

	var index, bodies, rows bytes.Buffer
	var ranges []string
	for i, num := range packed {
		fmt.Fprintf(&index, "%d %d ", num, bodies.Len())
		bodies.WriteString(b.objects[num])
		bodies.WriteString("\n")
		writeRow(&rows, 2, objStmNum, i)
		ranges = append(ranges, fmt.Sprintf("%d 1", num))
	}
	offsets[objStmNum] = buf.Len()
	writeObject(buf, objStmNum, streamBody(
		fmt.Sprintf("/Type /ObjStm /N %d /First %d", len(packed), index.Len()),
		append(index.Bytes(), bodies.Bytes()...)))

	offsets[xrefNum] = buf.Len()
	writeObject(buf, xrefNum, streamBody(
		fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Index [%s]", size, strings.Join(ranges, " ")),
		rows.Bytes()))

	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n", size)
	for num := 0; num < size; num++ {
		_, defined := b.objects[num]
		_, inStream := isPacked[num]
		if (defined && !inStream) || num == objStmNum || num == xrefNum {
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[num], 0)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /XRefStm %d %s >>\nstartxref\n%d\n%%%%EOF\n",
		size, offsets[xrefNum], trailer, xrefOffset)
	return buf.Bytes()
}
