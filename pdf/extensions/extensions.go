// Package extensions reads and merges the developer extensions declared in
// a document catalog's /Extensions dictionary.
package extensions

import (
	"fmt"
	"sort"

	"github.com/georgepadayatti/pdfstitch/pdf/document"
	"github.com/georgepadayatti/pdfstitch/pdf/generic"
)

// DeveloperExtension represents a PDF developer extension designation.
type DeveloperExtension struct {
	// PrefixName is the registered developer prefix.
	PrefixName string

	// BaseVersion is the base version onto which the extension applies.
	BaseVersion string

	// ExtensionLevel is the extension level number.
	ExtensionLevel int

	// URL is an optional URL linking to the extension's documentation.
	URL string

	// ExtensionRevision is optional extra revision information.
	ExtensionRevision string
}

// AsPdfObject formats the extension as a /DeveloperExtensions dictionary.
func (e DeveloperExtension) AsPdfObject() *generic.DictionaryObject {
	result := generic.NewDictionary()
	result.Set("Type", generic.NameObject("DeveloperExtensions"))
	result.Set("BaseVersion", generic.NameObject(e.BaseVersion))
	result.Set("ExtensionLevel", generic.IntegerObject(e.ExtensionLevel))

	if e.URL != "" {
		result.Set("URL", generic.NewTextString(e.URL))
	}
	if e.ExtensionRevision != "" {
		result.Set("ExtensionRevision", generic.NewTextString(e.ExtensionRevision))
	}

	return result
}

// Registry holds extensions by prefix. Within a prefix there is at most one
// extension per base version, the one with the highest level.
type Registry struct {
	extensions map[string][]DeveloperExtension
	multi      map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extensions: make(map[string][]DeveloperExtension),
		multi:      make(map[string]bool),
	}
}

// Register adds ext, replacing an extension of the same prefix and base
// version with a lower level.
func (r *Registry) Register(ext DeveloperExtension) {
	existing := r.extensions[ext.PrefixName]
	for i, e := range existing {
		if e.BaseVersion == ext.BaseVersion {
			if ext.ExtensionLevel > e.ExtensionLevel {
				existing[i] = ext
			}
			return
		}
	}
	r.extensions[ext.PrefixName] = append(existing, ext)
}

// Merge registers every extension of other.
func (r *Registry) Merge(other *Registry) {
	for _, prefix := range other.Prefixes() {
		if other.multi[prefix] {
			r.multi[prefix] = true
		}
		for _, ext := range other.extensions[prefix] {
			r.Register(ext)
		}
	}
}

// Get returns the extensions registered under prefix.
func (r *Registry) Get(prefix string) []DeveloperExtension {
	return r.extensions[prefix]
}

// Prefixes returns the registered prefixes in sorted order.
func (r *Registry) Prefixes() []string {
	prefixes := make([]string, 0, len(r.extensions))
	for prefix := range r.extensions {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Len returns the number of registered prefixes.
func (r *Registry) Len() int {
	return len(r.extensions)
}

// AsPdfObject converts the registry to an /Extensions dictionary. A prefix
// with one extension is written single-valued unless it was read as an array.
func (r *Registry) AsPdfObject() *generic.DictionaryObject {
	result := generic.NewDictionary()
	result.Set("Type", generic.NameObject("Extensions"))

	for _, prefix := range r.Prefixes() {
		exts := r.extensions[prefix]
		if len(exts) == 1 && !r.multi[prefix] {
			result.Set(prefix, exts[0].AsPdfObject())
			continue
		}
		arr := make(generic.ArrayObject, 0, len(exts))
		for _, ext := range exts {
			arr = append(arr, ext.AsPdfObject())
		}
		result.Set(prefix, arr)
	}

	return result
}

// Read parses the /Extensions dictionary of doc's catalog. A document
// without one yields an empty registry.
func Read(doc *document.Document) (*Registry, error) {
	registry := NewRegistry()

	catalog, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	dict, err := doc.ResolveDict(catalog.Get("Extensions"))
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return registry, nil
	}

	for _, key := range dict.Keys() {
		if key == "Type" {
			continue
		}
		value, err := doc.ResolveObject(dict.Get(key))
		if err != nil {
			return nil, fmt.Errorf("extension %s: %w", key, err)
		}

		switch v := value.(type) {
		case *generic.DictionaryObject:
			registry.Register(parseExtensionDict(key, v))
		case generic.ArrayObject:
			registry.multi[key] = true
			for _, item := range v {
				extDict, err := doc.ResolveDict(item)
				if err != nil {
					return nil, fmt.Errorf("extension %s: %w", key, err)
				}
				if extDict != nil {
					registry.Register(parseExtensionDict(key, extDict))
				}
			}
		}
	}

	return registry, nil
}

func parseExtensionDict(prefix string, dict *generic.DictionaryObject) DeveloperExtension {
	ext := DeveloperExtension{PrefixName: prefix, BaseVersion: dict.GetName("BaseVersion")}

	if level, ok := dict.GetInt("ExtensionLevel"); ok {
		ext.ExtensionLevel = int(level)
	}
	if s, ok := dict.Get("URL").(*generic.StringObject); ok {
		ext.URL = s.Text()
	}
	if s, ok := dict.Get("ExtensionRevision").(*generic.StringObject); ok {
		ext.ExtensionRevision = s.Text()
	}

	return ext
}
