// Package pages flattens a document's page tree into page handles with
// their inherited attributes resolved.
package pages

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/filters"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// Common errors
var (
	ErrInvalidPageTree   = errors.New("invalid page tree")
	ErrPageTreeCycle     = errors.New("page tree contains a cycle")
	ErrPageCountMismatch = errors.New("page count does not match /Count")
)

// Inheritable lists the page attributes a leaf may take from its ancestors.
var Inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// LetterMediaBox is used when no node of the tree defines a MediaBox.
var LetterMediaBox = generic.Rectangle{LLX: 0, LLY: 0, URX: 612, URY: 792}

// CountMismatchError reports a page tree whose root /Count disagrees with
// the number of leaves found.
type CountMismatchError struct {
	Declared int
	Found    int
}

// Error implements the error interface.
func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("page tree declares %d pages but contains %d", e.Declared, e.Found)
}

// Unwrap returns ErrPageCountMismatch.
func (e *CountMismatchError) Unwrap() error {
	return ErrPageCountMismatch
}

// Page is a leaf of the page tree.
type Page struct {
	index     int
	ref       generic.Reference
	dict      *generic.DictionaryObject
	doc       *document.Document
	inherited map[string]generic.PdfObject
}

// Index returns the page's zero-based position in document order.
func (p *Page) Index() int {
	return p.index
}

// Ref returns the page's reference. It is zero for a page dictionary placed
// directly in a /Kids array.
func (p *Page) Ref() generic.Reference {
	return p.ref
}

// Dict returns the page dictionary as it appears in the source document.
func (p *Page) Dict() *generic.DictionaryObject {
	return p.dict
}

// Document returns the document the page belongs to.
func (p *Page) Document() *document.Document {
	return p.doc
}

// Attribute returns the effective value of an inheritable attribute, taken
// from the page itself or its nearest ancestor, unresolved. It returns nil
// if no node defines it.
func (p *Page) Attribute(key string) generic.PdfObject {
	return p.inherited[key]
}

// Resources returns the effective resource dictionary, or nil if none.
func (p *Page) Resources() (*generic.DictionaryObject, error) {
	obj := p.Attribute("Resources")
	if obj == nil {
		return nil, nil
	}
	return p.doc.ResolveDict(obj)
}

// MediaBox returns the effective media box, US Letter if none is defined.
func (p *Page) MediaBox() (*generic.Rectangle, error) {
	rect, err := p.box("MediaBox")
	if err != nil || rect != nil {
		return rect, err
	}
	letter := LetterMediaBox
	return &letter, nil
}

// CropBox returns the effective crop box, defaulting to the media box.
func (p *Page) CropBox() (*generic.Rectangle, error) {
	rect, err := p.box("CropBox")
	if err != nil || rect != nil {
		return rect, err
	}
	return p.MediaBox()
}

func (p *Page) box(key string) (*generic.Rectangle, error) {
	obj := p.Attribute(key)
	if obj == nil {
		return nil, nil
	}
	resolved, err := p.doc.ResolveObject(obj)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", key, err)
	}
	if generic.IsNull(resolved) {
		return nil, nil
	}
	rect, err := generic.ParseRectangle(resolved)
	if err != nil {
		return nil, fmt.Errorf("page %d %s: %w", p.index+1, key, err)
	}
	return rect, nil
}

// Rotate returns the effective rotation normalized to 0, 90, 180 or 270.
// Values that are not multiples of 90 are treated as 0.
func (p *Page) Rotate() int {
	resolved, err := p.doc.ResolveObject(p.Attribute("Rotate"))
	if err != nil {
		return 0
	}
	n, ok := resolved.(generic.IntegerObject)
	if !ok || n%90 != 0 {
		return 0
	}
	return int((n%360 + 360) % 360)
}

// ContentStreams returns the page's content streams in order.
func (p *Page) ContentStreams() ([]*generic.StreamObject, error) {
	contents, err := p.doc.ResolveObject(p.dict.Get("Contents"))
	if err != nil {
		return nil, fmt.Errorf("resolving Contents: %w", err)
	}

	var items generic.ArrayObject
	switch v := contents.(type) {
	case nil, generic.NullObject:
		return nil, nil
	case *generic.StreamObject:
		return []*generic.StreamObject{v}, nil
	case generic.ArrayObject:
		items = v
	default:
		return nil, fmt.Errorf("%w: page %d /Contents is %T", ErrInvalidPageTree, p.index+1, contents)
	}

	streams := make([]*generic.StreamObject, 0, len(items))
	for i, item := range items {
		resolved, err := p.doc.ResolveObject(item)
		if err != nil {
			return nil, fmt.Errorf("resolving Contents[%d]: %w", i, err)
		}
		if stream, ok := resolved.(*generic.StreamObject); ok {
			streams = append(streams, stream)
		}
	}
	return streams, nil
}

// Content returns the decoded content of the page. Multiple streams are
// joined with a newline, which keeps tokens at stream boundaries apart.
func (p *Page) Content() ([]byte, error) {
	streams, err := p.ContentStreams()
	if err != nil {
		return nil, err
	}
	parts := make([][]byte, 0, len(streams))
	for _, stream := range streams {
		data, err := filters.DecodeStream(stream)
		if err != nil {
			return nil, fmt.Errorf("page %d content: %w", p.index+1, err)
		}
		parts = append(parts, data)
	}
	return bytes.Join(parts, []byte("\n")), nil
}

type walker struct {
	doc   *document.Document
	pages []*Page
}

// Extract returns the pages of doc in document order.
func Extract(doc *document.Document) ([]*Page, error) {
	catalog, err := doc.Catalog()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPageTree, err)
	}

	rootObj := catalog.Get("Pages")
	root, err := doc.ResolveDict(rootObj)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: catalog /Pages is not a dictionary", ErrInvalidPageTree)
	}

	declared, ok := root.GetInt("Count")
	if !ok {
		resolved, err := doc.ResolveObject(root.Get("Count"))
		if err != nil {
			return nil, err
		}
		n, isInt := resolved.(generic.IntegerObject)
		if !isInt {
			return nil, fmt.Errorf("%w: root node has no /Count", ErrInvalidPageTree)
		}
		declared = int64(n)
	}

	w := &walker{doc: doc}
	rootRef, _ := rootObj.(generic.Reference)
	ancestors := make(map[generic.Reference]bool)
	if err := w.walk(rootRef, root, nil, ancestors); err != nil {
		return nil, err
	}

	if int(declared) != len(w.pages) {
		return nil, &CountMismatchError{Declared: int(declared), Found: len(w.pages)}
	}
	return w.pages, nil
}

func (w *walker) walk(ref generic.Reference, node *generic.DictionaryObject, inherited map[string]generic.PdfObject, ancestors map[generic.Reference]bool) error {
	nodeType := node.GetName("Type")
	if nodeType == "" {
		nodeType = "Page"
		if node.Has("Kids") {
			nodeType = "Pages"
		}
	}

	switch nodeType {
	case "Page":
		attrs := make(map[string]generic.PdfObject, len(Inheritable))
		for _, key := range Inheritable {
			if v := node.Get(key); v != nil {
				attrs[key] = v
			} else if v, ok := inherited[key]; ok {
				attrs[key] = v
			}
		}
		w.pages = append(w.pages, &Page{
			index:     len(w.pages),
			ref:       ref,
			dict:      node,
			doc:       w.doc,
			inherited: attrs,
		})
		return nil

	case "Pages":
		if !ref.IsZero() {
			ancestors[ref] = true
			defer delete(ancestors, ref)
		}

		scope := make(map[string]generic.PdfObject, len(Inheritable))
		for key, v := range inherited {
			scope[key] = v
		}
		for _, key := range Inheritable {
			if v := node.Get(key); v != nil {
				scope[key] = v
			}
		}

		kidsObj, err := w.doc.ResolveObject(node.Get("Kids"))
		if err != nil {
			return err
		}
		kids, ok := kidsObj.(generic.ArrayObject)
		if !ok {
			return fmt.Errorf("%w: /Kids of %s is %T", ErrInvalidPageTree, ref, kidsObj)
		}

		for i, kid := range kids {
			kidRef, _ := kid.(generic.Reference)
			if !kidRef.IsZero() && ancestors[kidRef] {
				return fmt.Errorf("%w: %s is its own ancestor", ErrPageTreeCycle, kidRef)
			}
			resolved, err := w.doc.ResolveObject(kid)
			if err != nil {
				return err
			}
			if generic.IsNull(resolved) {
				continue
			}
			kidDict, ok := resolved.(*generic.DictionaryObject)
			if !ok {
				return fmt.Errorf("%w: kid %d of %s is %T", ErrInvalidPageTree, i, ref, resolved)
			}
			if err := w.walk(kidRef, kidDict, scope, ancestors); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: node %s has /Type /%s", ErrInvalidPageTree, ref, nodeType)
}
