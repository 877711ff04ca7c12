// Package reader parses PDF files into lazily loaded documents.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

var headerRegex = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// trailerKeys are the entries carried from a section trailer into the
// document trailer.
var trailerKeys = []string{"Size", "Root", "Info", "ID", "Encrypt"}

type options struct {
	strict bool
}

// Option configures Parse.
type Option func(*options)

// WithStrict makes references to free or missing objects an error instead
// of resolving them to null.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// ParseReader reads all of r and parses it.
func ParseReader(r io.Reader, opts ...Option) (*document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF data: %w", err)
	}
	return Parse(data, opts...)
}

// Parse parses a complete PDF file. Only the cross-reference data and the
// catalog are read up front; every other object is loaded on first use.
func Parse(data []byte, opts ...Option) (*document.Document, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fr := &fileReader{
		data:       data,
		strict:     o.strict,
		xref:       newXRefTable(),
		objStreams: make(map[int]*objectStream),
		loading:    make(map[int]bool),
	}

	version, err := fr.parseHeader()
	if err != nil {
		return nil, err
	}

	start, err := fr.findStartXRef()
	if err != nil {
		return nil, err
	}

	trailer, err := fr.parseXRefChain(start)
	if err != nil {
		return nil, err
	}

	if trailer.Has("Encrypt") {
		return nil, &ParseError{Kind: Encrypted, Offset: -1}
	}
	root := trailer.GetRoot()
	if root == nil {
		return nil, newParseError(MalformedTrailer, -1, "trailer has no /Root reference")
	}

	size := int(trailer.GetSize())
	for num := range fr.xref.Entries {
		if num >= size {
			size = num + 1
		}
	}

	doc := document.NewWithLoader(fr, trailer, size)
	doc.SetVersion(version)
	fr.doc = doc

	catalog, err := doc.Resolve(*root)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, newParseError(MalformedTrailer, -1, "/Root %s: %w", *root, err)
	}
	catalogDict, ok := catalog.(*generic.DictionaryObject)
	if !ok {
		return nil, newParseError(MalformedTrailer, -1, "/Root %s is %T, not a dictionary", *root, catalog)
	}
	if v, ok := catalogDict.Get("Version").(generic.NameObject); ok && newerVersion(string(v), version) {
		doc.SetVersion(string(v))
	}

	return doc, nil
}

// fileReader implements document.Loader over the raw file bytes.
type fileReader struct {
	data   []byte
	strict bool
	xref   *XRefTable
	doc    *document.Document

	objStreams map[int]*objectStream
	// loading guards against objects whose loading depends on themselves.
	loading map[int]bool
}

func (r *fileReader) parseHeader() (string, error) {
	window := r.data[:min(headerWindow, len(r.data))]
	match := headerRegex.FindSubmatch(window)
	if match == nil {
		return "", newParseError(MalformedHeader, 0, "missing %%PDF- header")
	}
	return string(match[1]), nil
}

func (r *fileReader) findStartXRef() (int64, error) {
	pos := bytes.LastIndex(r.data, []byte("startxref"))
	if pos == -1 {
		return 0, newParseError(MalformedTrailer, -1, "no startxref keyword")
	}

	digits, _ := readDigits(r.data, skipSpace(r.data, int64(pos+len("startxref"))))
	if digits == "" {
		return 0, newParseError(MalformedTrailer, int64(pos), "startxref without offset")
	}
	offset, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, newParseError(MalformedTrailer, int64(pos), "invalid startxref offset: %w", err)
	}
	return offset, nil
}

// parseXRefChain reads every section reachable through /Prev from the
// newest one, merging entries so that newer sections win, and returns the
// document trailer.
func (r *fileReader) parseXRefChain(offset int64) (*generic.TrailerDictionary, error) {
	trailer := generic.NewTrailer()
	visited := make(map[int64]bool)

	for {
		if visited[offset] {
			return nil, newParseError(UnresolvableXRef, offset, "cross-reference chain loops")
		}
		visited[offset] = true

		entries, sectionTrailer, err := r.parseSection(offset)
		if err != nil {
			return nil, err
		}
		r.xref.Sections = append(r.xref.Sections, offset)
		r.xref.mergeOlder(entries)

		for _, key := range trailerKeys {
			if !trailer.Has(key) && sectionTrailer.Has(key) {
				trailer.Set(key, sectionTrailer.Get(key))
			}
		}

		prev, ok := sectionTrailer.GetInt("Prev")
		if !ok {
			return trailer, nil
		}
		offset = prev
	}
}

// parseSection reads the classic table or xref stream at offset.
func (r *fileReader) parseSection(offset int64) (map[int]XRefEntry, *generic.DictionaryObject, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, nil, newParseError(UnresolvableXRef, offset, "cross-reference offset out of bounds")
	}

	pos := skipSpace(r.data, offset)
	if bytes.HasPrefix(r.data[pos:], []byte("xref")) {
		entries, trailer, err := parseXRefTable(r.data, pos)
		if err != nil {
			return nil, nil, err
		}

		// Hybrid files keep compressed objects in a hidden xref stream.
		if stmOffset, ok := trailer.GetInt("XRefStm"); ok {
			hidden, _, err := r.parseStreamSection(stmOffset)
			if err != nil {
				return nil, nil, err
			}
			for num, entry := range hidden {
				if existing, ok := entries[num]; !ok || existing.Type == XRefTypeFree {
					entries[num] = entry
				}
			}
		}
		return entries, trailer, nil
	}

	return r.parseStreamSection(pos)
}

func (r *fileReader) parseStreamSection(offset int64) (map[int]XRefEntry, *generic.DictionaryObject, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, nil, newParseError(UnresolvableXRef, offset, "xref stream offset out of bounds")
	}

	parser := generic.NewParserFromBytes(r.data)
	parser.SetPos(offset)
	obj, err := parser.ParseIndirectObject()
	if err != nil {
		if errors.Is(err, generic.ErrTruncatedStream) {
			return nil, nil, &ParseError{Kind: TruncatedStream, Offset: offset, Err: err}
		}
		return nil, nil, newParseError(UnresolvableXRef, offset, "no xref table or stream: %w", err)
	}

	stream, ok := obj.Object.(*generic.StreamObject)
	if !ok || stream.Dictionary.GetName("Type") != "XRef" {
		return nil, nil, newParseError(UnresolvableXRef, offset, "object %d is not an xref stream", obj.ObjectNumber)
	}

	entries, err := parseXRefStream(stream, offset)
	if err != nil {
		return nil, nil, err
	}
	return entries, stream.Dictionary, nil
}

// Load implements document.Loader.
func (r *fileReader) Load(ref generic.Reference) (generic.PdfObject, error) {
	entry, ok := r.xref.Lookup(ref.ObjectNumber)
	if !ok || entry.Type == XRefTypeFree {
		return r.missing(ref, "not in use")
	}

	if r.loading[ref.ObjectNumber] {
		return nil, newParseError(UnresolvableXRef, -1, "object %s depends on itself", ref)
	}
	r.loading[ref.ObjectNumber] = true
	defer delete(r.loading, ref.ObjectNumber)

	switch entry.Type {
	case XRefTypeInObjStream:
		if ref.GenerationNumber != 0 {
			return r.missing(ref, "generation mismatch")
		}
		return r.loadFromStream(ref.ObjectNumber, entry)
	default:
		if entry.Generation != ref.GenerationNumber {
			return r.missing(ref, "generation mismatch")
		}
		return r.loadAtOffset(ref, entry.Offset)
	}
}

func (r *fileReader) missing(ref generic.Reference, reason string) (generic.PdfObject, error) {
	if r.strict {
		return nil, fmt.Errorf("%w: %s %s", document.ErrObjectNotFound, ref, reason)
	}
	return generic.NullObject{}, nil
}

func (r *fileReader) loadAtOffset(ref generic.Reference, offset int64) (generic.PdfObject, error) {
	obj, err := r.parseObjectAt(offset)
	if err == nil && obj.Reference() == ref {
		return obj.Object, nil
	}
	var pe *ParseError
	if errors.As(err, &pe) && pe.Kind == TruncatedStream {
		return nil, err
	}

	// Tolerate stale offsets by locating the object header in the file.
	if !r.strict {
		if found := r.findObjectHeader(ref); found >= 0 && found != offset {
			if obj, err := r.parseObjectAt(found); err == nil && obj.Reference() == ref {
				return obj.Object, nil
			}
		}
	}

	if err != nil {
		return nil, err
	}
	return nil, newParseError(UnresolvableXRef, offset, "expected object %s, found %s", ref, obj.Reference())
}

func (r *fileReader) parseObjectAt(offset int64) (*generic.IndirectObject, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, newParseError(UnresolvableXRef, offset, "object offset out of bounds")
	}

	parser := generic.NewParserFromBytes(r.data)
	parser.SetPos(offset)
	parser.ResolveLength = r.resolveLength

	obj, err := parser.ParseIndirectObject()
	if err != nil {
		if errors.Is(err, generic.ErrTruncatedStream) {
			return nil, &ParseError{Kind: TruncatedStream, Offset: offset, Err: err}
		}
		return nil, newParseError(UnresolvableXRef, offset, "%w", err)
	}
	return obj, nil
}

// findObjectHeader returns the offset of the last "N G obj" header for ref,
// or -1.
func (r *fileReader) findObjectHeader(ref generic.Reference) int64 {
	pattern := regexp.MustCompile(fmt.Sprintf(`(?:^|[\s])(%d\s+%d\s+obj)\b`, ref.ObjectNumber, ref.GenerationNumber))
	matches := pattern.FindAllSubmatchIndex(r.data, -1)
	if len(matches) == 0 {
		return -1
	}
	return int64(matches[len(matches)-1][2])
}

func (r *fileReader) resolveLength(ref generic.Reference) (int64, bool) {
	if r.doc == nil || r.loading[ref.ObjectNumber] {
		return 0, false
	}
	obj, err := r.doc.Resolve(ref)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(generic.IntegerObject)
	return int64(n), ok
}

func (r *fileReader) loadFromStream(objNum int, entry XRefEntry) (generic.PdfObject, error) {
	os, err := r.objectStream(entry.StreamNumber)
	if err != nil {
		return nil, err
	}
	obj, err := os.object(entry.Index, objNum)
	if err != nil {
		return nil, newParseError(UnresolvableXRef, -1, "object %d in stream %d: %w", objNum, entry.StreamNumber, err)
	}
	return obj, nil
}

func (r *fileReader) objectStream(streamNum int) (*objectStream, error) {
	if os, ok := r.objStreams[streamNum]; ok {
		return os, nil
	}

	entry, ok := r.xref.Lookup(streamNum)
	if !ok || entry.Type != XRefTypeStandard {
		return nil, newParseError(UnresolvableXRef, -1, "object stream %d is not a top-level object", streamNum)
	}
	obj, err := r.doc.Resolve(generic.NewReference(streamNum, entry.Generation))
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*generic.StreamObject)
	if !ok {
		return nil, newParseError(UnresolvableXRef, entry.Offset, "object stream %d is %T", streamNum, obj)
	}

	os, err := parseObjectStream(stream)
	if err != nil {
		return nil, newParseError(UnresolvableXRef, entry.Offset, "object stream %d: %w", streamNum, err)
	}
	r.objStreams[streamNum] = os
	return os, nil
}

// newerVersion reports whether version a is later than b.
func newerVersion(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa > fb
}
