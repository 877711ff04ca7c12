// Package writer serializes a document as a complete PDF file with a
// classic cross-reference table.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"golang.org/x/crypto/sha3"

	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/filters"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// Common errors
var (
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrInvalidVersion      = errors.New("invalid PDF version")
)

// ErrorKind classifies a WriteError.
type ErrorKind int

const (
	// UnresolvedReference means a reachable reference has no object.
	UnresolvedReference ErrorKind = iota + 1
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case UnresolvedReference:
		return "UnresolvedReference"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// WriteError reports a document that cannot be serialized.
type WriteError struct {
	Kind             ErrorKind
	ObjectNumber     int
	GenerationNumber int
	Err              error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	msg := fmt.Sprintf("unresolved reference %d %d R", e.ObjectNumber, e.GenerationNumber)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the resolution error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *WriteError) Is(target error) bool {
	return e.Kind == UnresolvedReference && target == ErrUnresolvedReference
}

var versionRegex = regexp.MustCompile(`^\d\.\d$`)

type options struct {
	version  string
	compress bool
	fileID   []byte
}

// Option configures the writer.
type Option func(*options)

// WithVersion sets the header version, "1.7" unless the document says otherwise.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithCompression flate-encodes streams that carry no filter.
func WithCompression(compress bool) Option {
	return func(o *options) {
		o.compress = compress
	}
}

// WithFileID sets both halves of the trailer /ID.
func WithFileID(id []byte) Option {
	return func(o *options) {
		o.fileID = bytes.Clone(id)
	}
}

// Write freezes doc and returns its serialization.
func Write(doc *document.Document, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := WriteTo(&buf, doc, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo freezes doc and writes its serialization to w. Nothing is
// written if any reachable reference fails to resolve.
func WriteTo(w io.Writer, doc *document.Document, opts ...Option) (int64, error) {
	o := options{version: doc.Version()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.version == "" {
		o.version = "1.7"
	}
	if !versionRegex.MatchString(o.version) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, o.version)
	}

	doc.Freeze()
	p, err := plan(doc)
	if err != nil {
		return 0, err
	}

	data, err := p.serialize(o)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// layout is the output numbering of a document: objects reachable from the
// trailer numbered 1..n in breadth-first order.
type layout struct {
	trailer *generic.TrailerDictionary
	numbers map[generic.Reference]int
	objects []generic.PdfObject
}

func plan(doc *document.Document) (*layout, error) {
	trailer := doc.Trailer()
	root := trailer.GetRoot()
	if root == nil {
		return nil, document.ErrNoRoot
	}

	l := &layout{trailer: trailer, numbers: make(map[generic.Reference]int)}
	start := generic.ArrayObject{*root}
	if info := trailer.Get("Info"); info != nil {
		start = append(start, info)
	}

	err := generic.Walk(start, doc, func(ref generic.Reference, obj generic.PdfObject) error {
		if generic.IsNull(obj) {
			return nil
		}
		l.objects = append(l.objects, obj)
		l.numbers[ref] = len(l.objects)
		return nil
	})

	var resolveErr *generic.ResolveError
	if errors.As(err, &resolveErr) {
		return nil, &WriteError{
			Kind:             UnresolvedReference,
			ObjectNumber:     resolveErr.Ref.ObjectNumber,
			GenerationNumber: resolveErr.Ref.GenerationNumber,
			Err:              resolveErr.Err,
		}
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// remap rewrites a reference into the output numbering. References that
// resolved to null have no number and become a direct null.
func (l *layout) remap(ref generic.Reference) generic.PdfObject {
	if n, ok := l.numbers[ref]; ok {
		return generic.NewReference(n, 0)
	}
	return generic.NullObject{}
}

func (l *layout) serialize(o options) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", o.version)
	// Binary comment so transfer tools treat the file as binary
	buf.Write([]byte{0x25, 0xE2, 0xE3, 0xCF, 0xD3, 0x0A})

	offsets := make([]int, len(l.objects)+1)
	for i, obj := range l.objects {
		num := i + 1
		out := generic.MapReferences(obj, l.remap)
		if stream, ok := out.(*generic.StreamObject); ok && o.compress {
			if err := compress(stream); err != nil {
				return nil, fmt.Errorf("compressing object %d: %w", num, err)
			}
		}

		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", num)
		if err := out.Write(&buf); err != nil {
			return nil, fmt.Errorf("writing object %d: %w", num, err)
		}
		buf.WriteString("\nendobj\n")
	}

	id := o.fileID
	if id == nil {
		sum := sha3.Sum256(buf.Bytes())
		id = sum[:16]
	}

	size := len(l.objects) + 1
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < size; num++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[num], 0)
	}

	trailer := generic.NewDictionary()
	trailer.Set("Size", generic.IntegerObject(size))
	trailer.Set("Root", l.remap(*l.trailer.GetRoot()))
	if info := l.trailer.Get("Info"); info != nil {
		if mapped := generic.MapReferences(info, l.remap); !generic.IsNull(mapped) {
			trailer.Set("Info", mapped)
		}
	}
	trailer.Set("ID", generic.ArrayObject{
		generic.NewHexString(id),
		generic.NewHexString(id),
	})

	buf.WriteString("trailer\n")
	if err := trailer.Write(&buf); err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

// compress flate-encodes an unfiltered stream in place.
func compress(stream *generic.StreamObject) error {
	if len(stream.Filters()) > 0 {
		return nil
	}
	flate, err := filters.GetFilter("FlateDecode")
	if err != nil {
		return err
	}
	encoded, err := flate.Encode(stream.Data, nil)
	if err != nil {
		return err
	}
	stream.Decoded = stream.Data
	stream.Data = encoded
	stream.Dictionary.Set("Filter", generic.NameObject("FlateDecode"))
	stream.Dictionary.Delete("DecodeParms")
	return nil
}
