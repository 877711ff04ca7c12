package assemble

import (
	"bytes"

	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
	"github.com/georgepadayatti/pdfstitch/pdf/pages"
)

// sourceKey identifies an object across every source document.
type sourceKey struct {
	doc uint64
	ref generic.Reference
}

// copier moves object graphs from source documents into out. Each source
// object is copied at most once per Assemble call.
type copier struct {
	out  *document.Document
	refs map[sourceKey]generic.Reference
}

func newCopier(out *document.Document) *copier {
	return &copier{out: out, refs: make(map[sourceKey]generic.Reference)}
}

// claim maps an emitted page to its output reference. A page emitted more
// than once keeps its first mapping.
func (c *copier) claim(p *pages.Page, ref generic.Reference) {
	if p.Ref().IsZero() {
		return
	}
	key := sourceKey{p.Document().ID(), p.Ref()}
	if _, ok := c.refs[key]; !ok {
		c.refs[key] = ref
	}
}

// copyPage copies a page dictionary with its inherited attributes made
// explicit and Parent pointing at tree.
func (c *copier) copyPage(p *pages.Page, tree generic.Reference) (*generic.DictionaryObject, error) {
	doc := p.Document()
	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("Page"))

	for _, key := range p.Dict().Keys() {
		switch key {
		case "Type", "Parent", "B":
			continue
		}
		if isInheritable(key) {
			continue
		}
		value, err := c.copyValue(doc, p.Dict().Get(key))
		if err != nil {
			return nil, err
		}
		dict.Set(key, value)
	}

	for _, key := range pages.Inheritable {
		attr := p.Attribute(key)
		if attr == nil {
			continue
		}
		value, err := c.copyValue(doc, attr)
		if err != nil {
			return nil, err
		}
		dict.Set(key, value)
	}

	dict.Set("Parent", tree)
	return dict, nil
}

func isInheritable(key string) bool {
	for _, k := range pages.Inheritable {
		if k == key {
			return true
		}
	}
	return false
}

// copyValue returns a deep copy of a direct object with its references
// rewritten into the output numbering space.
func (c *copier) copyValue(doc *document.Document, obj generic.PdfObject) (generic.PdfObject, error) {
	switch v := obj.(type) {
	case nil:
		return generic.NullObject{}, nil
	case generic.Reference:
		return c.copyRef(doc, v)
	case generic.ArrayObject:
		out := make(generic.ArrayObject, len(v))
		for i, item := range v {
			copied, err := c.copyValue(doc, item)
			if err != nil {
				return nil, err
			}
			out[i] = copied
		}
		return out, nil
	case *generic.DictionaryObject:
		return c.copyDict(doc, v, "")
	case *generic.StreamObject:
		dict, err := c.copyDict(doc, v.Dictionary, "Length")
		if err != nil {
			return nil, err
		}
		dict.Set("Length", generic.IntegerObject(len(v.Data)))
		return &generic.StreamObject{
			Dictionary: dict,
			Data:       bytes.Clone(v.Data),
			Decoded:    bytes.Clone(v.Decoded),
		}, nil
	default:
		return v.Clone(), nil
	}
}

func (c *copier) copyDict(doc *document.Document, d *generic.DictionaryObject, skip string) (*generic.DictionaryObject, error) {
	out := generic.NewDictionary()
	if d == nil {
		return out, nil
	}
	for _, key := range d.Keys() {
		if key == skip {
			continue
		}
		value, err := c.copyValue(doc, d.Get(key))
		if err != nil {
			return nil, err
		}
		out.Set(key, value)
	}
	return out, nil
}

// copyRef returns the output reference for a source reference, copying the
// object behind it on first use. The output number is reserved before the
// object is copied, so cycles close on the reserved reference.
func (c *copier) copyRef(doc *document.Document, ref generic.Reference) (generic.PdfObject, error) {
	key := sourceKey{doc.ID(), ref}
	if out, ok := c.refs[key]; ok {
		return out, nil
	}

	obj, err := doc.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if generic.IsNull(obj) || isPageTreeNode(obj) {
		return generic.NullObject{}, nil
	}

	out, err := c.out.Reserve()
	if err != nil {
		return nil, err
	}
	c.refs[key] = out

	copied, err := c.copyValue(doc, obj)
	if err != nil {
		return nil, err
	}
	if err := c.out.Set(out, copied); err != nil {
		return nil, err
	}
	return out, nil
}

// isPageTreeNode reports whether obj is a page or page tree node. Such nodes
// reached from a page that is not emitted would drag in the source tree.
func isPageTreeNode(obj generic.PdfObject) bool {
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return false
	}
	switch dict.GetName("Type") {
	case "Page", "Pages":
		return true
	}
	return false
}
