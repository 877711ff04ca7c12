// Package assemble builds a new document from the pages of two source
// documents, emitted in the order chosen by a Policy.
package assemble

import (
	"errors"
	"fmt"

	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/extensions"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
	"github.com/georgepadayatti/pdfstitch/pdf/metadata"
	"github.com/georgepadayatti/pdfstitch/pdf/pages"
)

// Common errors
var (
	ErrPageCountMismatch = errors.New("page count mismatch")
	ErrUnknownPolicy     = errors.New("unknown assembly policy")
	ErrInvalidSlot       = errors.New("policy produced an invalid slot")
)

// DefaultProducer is written to the output /Info dictionary.
const DefaultProducer = "pdfstitch"

// ErrorKind classifies an AssemblyError.
type ErrorKind int

const (
	// PageCountMismatch means the two sequences differ in length.
	PageCountMismatch ErrorKind = iota + 1
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case PageCountMismatch:
		return "PageCountMismatch"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// AssemblyError reports a precondition failure of Assemble.
type AssemblyError struct {
	Kind ErrorKind
	LenA int
	LenB int
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	return fmt.Sprintf("page count mismatch: first sequence has %d pages, second has %d", e.LenA, e.LenB)
}

// Is matches the sentinel of the error's kind.
func (e *AssemblyError) Is(target error) bool {
	return e.Kind == PageCountMismatch && target == ErrPageCountMismatch
}

type options struct {
	info metadata.DocumentInfo
}

// Option configures Assemble.
type Option func(*options)

// WithProducer sets the /Producer entry of the output /Info dictionary.
func WithProducer(producer string) Option {
	return func(o *options) {
		o.info.Producer = producer
	}
}

// WithInfo sets the output /Info dictionary. An empty Producer keeps the
// current one.
func WithInfo(info metadata.DocumentInfo) Option {
	return func(o *options) {
		producer := o.info.Producer
		o.info = info
		if o.info.Producer == "" {
			o.info.Producer = producer
		}
	}
}

// Assemble returns a new document holding copies of the pages of a and b
// in the order given by policy (ReverseInterleave if nil). Both sequences
// must have the same length. The source documents are not modified.
func Assemble(a, b []*pages.Page, policy Policy, opts ...Option) (*document.Document, error) {
	if len(a) != len(b) {
		return nil, &AssemblyError{Kind: PageCountMismatch, LenA: len(a), LenB: len(b)}
	}
	if policy == nil {
		policy = ReverseInterleave
	}
	o := options{info: metadata.DocumentInfo{Producer: DefaultProducer}}
	for _, opt := range opts {
		opt(&o)
	}

	n := len(a)
	slots := policy.Order(n)
	emitted := make([]*pages.Page, len(slots))
	for i, slot := range slots {
		seq := a
		if slot.Side == SideB {
			seq = b
		}
		if slot.Index < 0 || slot.Index >= n {
			return nil, fmt.Errorf("%w: %s[%d] with %d pages", ErrInvalidSlot, slot.Side, slot.Index, n)
		}
		emitted[i] = seq[slot.Index]
	}

	out := document.New()
	c := newCopier(out)

	treeRef, err := out.Reserve()
	if err != nil {
		return nil, err
	}

	// Reserve the emitted pages first so links between them land on the copies.
	pageRefs := make([]generic.Reference, len(emitted))
	for i, p := range emitted {
		ref, err := out.Reserve()
		if err != nil {
			return nil, err
		}
		pageRefs[i] = ref
		c.claim(p, ref)
	}

	kids := make(generic.ArrayObject, len(emitted))
	for i, p := range emitted {
		dict, err := c.copyPage(p, treeRef)
		if err != nil {
			return nil, fmt.Errorf("copying page %d of %s: %w", p.Index()+1, slots[i].Side, err)
		}
		if err := out.Set(pageRefs[i], dict); err != nil {
			return nil, err
		}
		kids[i] = pageRefs[i]
	}

	tree := generic.NewDictionary()
	tree.Set("Type", generic.NameObject("Pages"))
	tree.Set("Kids", kids)
	tree.Set("Count", generic.IntegerObject(len(kids)))
	if err := out.Set(treeRef, tree); err != nil {
		return nil, err
	}

	catalog := generic.NewDictionary()
	catalog.Set("Type", generic.NameObject("Catalog"))
	catalog.Set("Pages", treeRef)
	exts, err := sourceExtensions(emitted)
	if err != nil {
		return nil, err
	}
	if exts.Len() > 0 {
		catalog.Set("Extensions", exts.AsPdfObject())
	}
	catalogRef, err := out.Add(catalog)
	if err != nil {
		return nil, err
	}

	infoRef, err := out.Add(o.info.Dict())
	if err != nil {
		return nil, err
	}

	trailer := generic.NewTrailer()
	trailer.Set("Root", catalogRef)
	trailer.Set("Info", infoRef)
	if err := out.SetTrailer(trailer); err != nil {
		return nil, err
	}

	out.SetVersion(highestVersion(out.Version(), emitted))
	return out, nil
}

// sourceExtensions merges the developer extensions of every source document.
func sourceExtensions(emitted []*pages.Page) (*extensions.Registry, error) {
	merged := extensions.NewRegistry()
	seen := make(map[uint64]bool)
	for _, p := range emitted {
		doc := p.Document()
		if seen[doc.ID()] {
			continue
		}
		seen[doc.ID()] = true
		exts, err := extensions.Read(doc)
		if err != nil {
			return nil, fmt.Errorf("reading extensions: %w", err)
		}
		merged.Merge(exts)
	}
	return merged, nil
}

func highestVersion(base string, emitted []*pages.Page) string {
	best := base
	for _, p := range emitted {
		// Versions are "1.x" or "2.0", so byte order is version order.
		if v := p.Document().Version(); v > best {
			best = v
		}
	}
	return best
}
