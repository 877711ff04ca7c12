// Package document provides the in-memory PDF document: an arena of
// indirect objects keyed by reference, the trailer, and an optional lazy
// loader that materializes objects from a source file on first access.
package document

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// Common errors
var (
	ErrFrozen         = errors.New("document is frozen")
	ErrObjectNotFound = errors.New("object not found")
	ErrNoRoot         = errors.New("trailer has no /Root")
)

var lastID atomic.Uint64

// Loader materializes an object that is not yet in the arena. A loader
// returns generic.NullObject for a reference it knows to be free, and an
// error wrapping ErrObjectNotFound when it cannot produce the object.
type Loader interface {
	Load(ref generic.Reference) (generic.PdfObject, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ref generic.Reference) (generic.PdfObject, error)

// Load implements Loader.
func (f LoaderFunc) Load(ref generic.Reference) (generic.PdfObject, error) {
	return f(ref)
}

// Document is a PDF object graph. It is not safe for concurrent use.
type Document struct {
	id      uint64
	version string

	objects map[generic.Reference]generic.PdfObject
	loader  Loader
	trailer *generic.TrailerDictionary

	nextNumber int
	frozen     bool
}

// New creates an empty document.
func New() *Document {
	return &Document{
		id:         lastID.Add(1),
		version:    "1.7",
		objects:    make(map[generic.Reference]generic.PdfObject),
		trailer:    generic.NewTrailer(),
		nextNumber: 1,
	}
}

// NewWithLoader creates a document backed by a lazy loader. Object numbers
// handed out by Add and Reserve start at size so they never collide with
// objects the loader can produce.
func NewWithLoader(loader Loader, trailer *generic.TrailerDictionary, size int) *Document {
	doc := New()
	doc.loader = loader
	if trailer != nil {
		doc.trailer = trailer
	}
	if size > doc.nextNumber {
		doc.nextNumber = size
	}
	return doc
}

// ID returns an identity unique to this document within the process.
func (d *Document) ID() uint64 {
	return d.id
}

// Version returns the PDF version, e.g. "1.7".
func (d *Document) Version() string {
	return d.version
}

// SetVersion records the PDF version.
func (d *Document) SetVersion(v string) {
	d.version = v
}

// Trailer returns the trailer dictionary.
func (d *Document) Trailer() *generic.TrailerDictionary {
	return d.trailer
}

// SetTrailer replaces the trailer dictionary.
func (d *Document) SetTrailer(t *generic.TrailerDictionary) error {
	if d.frozen {
		return ErrFrozen
	}
	d.trailer = t
	return nil
}

// Reserve allocates a fresh reference with no object behind it yet.
// The caller is expected to Set it before the document is written.
func (d *Document) Reserve() (generic.Reference, error) {
	if d.frozen {
		return generic.Reference{}, ErrFrozen
	}
	ref := generic.NewReference(d.nextNumber, 0)
	d.nextNumber++
	d.objects[ref] = nil
	return ref, nil
}

// Add stores obj under a fresh reference.
func (d *Document) Add(obj generic.PdfObject) (generic.Reference, error) {
	ref, err := d.Reserve()
	if err != nil {
		return ref, err
	}
	d.objects[ref] = obj
	return ref, nil
}

// Set stores obj under ref, replacing any previous value.
func (d *Document) Set(ref generic.Reference, obj generic.PdfObject) error {
	if d.frozen {
		return ErrFrozen
	}
	d.objects[ref] = obj
	if ref.ObjectNumber >= d.nextNumber {
		d.nextNumber = ref.ObjectNumber + 1
	}
	return nil
}

// Resolve returns the object behind ref, loading and caching it if needed.
func (d *Document) Resolve(ref generic.Reference) (generic.PdfObject, error) {
	if obj, ok := d.objects[ref]; ok {
		if obj == nil {
			return nil, fmt.Errorf("%w: %s reserved but never set", ErrObjectNotFound, ref)
		}
		return obj, nil
	}
	if d.loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}

	obj, err := d.loader.Load(ref)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		obj = generic.NullObject{}
	}
	// Caching is allowed on a frozen document.
	d.objects[ref] = obj
	return obj, nil
}

// ResolveObject follows obj if it is a reference and returns it unchanged
// otherwise.
func (d *Document) ResolveObject(obj generic.PdfObject) (generic.PdfObject, error) {
	if ref, ok := obj.(generic.Reference); ok {
		return d.Resolve(ref)
	}
	return obj, nil
}

// ResolveDict resolves obj and returns it as a dictionary, or nil if it is
// anything else.
func (d *Document) ResolveDict(obj generic.PdfObject) (*generic.DictionaryObject, error) {
	resolved, err := d.ResolveObject(obj)
	if err != nil {
		return nil, err
	}
	dict, _ := resolved.(*generic.DictionaryObject)
	return dict, nil
}

// Catalog returns the document catalog referenced by the trailer.
func (d *Document) Catalog() (*generic.DictionaryObject, error) {
	root := d.trailer.GetRoot()
	if root == nil {
		return nil, ErrNoRoot
	}
	catalog, err := d.ResolveDict(*root)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: %s is not a dictionary", ErrNoRoot, *root)
	}
	return catalog, nil
}

// Loaded returns the references currently held in the arena, in object
// number order.
func (d *Document) Loaded() []generic.Reference {
	refs := make([]generic.Reference, 0, len(d.objects))
	for ref, obj := range d.objects {
		if obj != nil {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ObjectNumber != refs[j].ObjectNumber {
			return refs[i].ObjectNumber < refs[j].ObjectNumber
		}
		return refs[i].GenerationNumber < refs[j].GenerationNumber
	})
	return refs
}

// Freeze makes the document read-only.
func (d *Document) Freeze() {
	d.frozen = true
}

// Frozen reports whether Freeze has been called.
func (d *Document) Frozen() bool {
	return d.frozen
}
