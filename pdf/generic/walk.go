package generic

import (
	"bytes"
	"fmt"
)

// ResolveError reports a reference that could not be resolved during a walk.
type ResolveError struct {
	Ref Reference
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %v", e.Ref, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// References returns the references held directly by obj, in encounter order.
// Direct arrays, dictionaries and stream dictionaries are descended into;
// references are not followed.
func References(obj PdfObject) []Reference {
	var refs []Reference
	collectReferences(obj, &refs)
	return refs
}

func collectReferences(obj PdfObject, refs *[]Reference) {
	switch v := obj.(type) {
	case Reference:
		*refs = append(*refs, v)
	case ArrayObject:
		for _, item := range v {
			collectReferences(item, refs)
		}
	case *DictionaryObject:
		for _, key := range v.Keys() {
			collectReferences(v.Get(key), refs)
		}
	case *StreamObject:
		if v.Dictionary != nil {
			collectReferences(v.Dictionary, refs)
		}
	case *IndirectObject:
		collectReferences(v.Object, refs)
	}
}

// Walk visits every indirect object reachable from root, breadth first.
// Each unique reference is resolved and visited at most once, so cyclic
// graphs terminate. A nil resolver visits nothing beyond root's direct structure.
// Returning an error from visit stops the walk.
func Walk(root PdfObject, r Resolver, visit func(ref Reference, obj PdfObject) error) error {
	if r == nil {
		return nil
	}
	seen := make(map[Reference]bool)
	queue := References(root)
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if seen[ref] {
			continue
		}
		seen[ref] = true

		obj, err := r.Resolve(ref)
		if err != nil {
			return &ResolveError{Ref: ref, Err: err}
		}
		if err := visit(ref, obj); err != nil {
			return err
		}
		for _, next := range References(obj) {
			if !seen[next] {
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// MapReferences returns a deep copy of obj in which every reference is
// replaced by fn(ref). Referenced objects themselves are not visited.
func MapReferences(obj PdfObject, fn func(Reference) PdfObject) PdfObject {
	switch v := obj.(type) {
	case Reference:
		return fn(v)
	case ArrayObject:
		out := make(ArrayObject, len(v))
		for i, item := range v {
			out[i] = MapReferences(item, fn)
		}
		return out
	case *DictionaryObject:
		out := NewDictionary()
		for _, key := range v.Keys() {
			out.Set(key, MapReferences(v.Get(key), fn))
		}
		return out
	case *StreamObject:
		var dict *DictionaryObject
		if v.Dictionary != nil {
			dict = MapReferences(v.Dictionary, fn).(*DictionaryObject)
		}
		return &StreamObject{
			Dictionary: dict,
			Data:       bytes.Clone(v.Data),
			Decoded:    bytes.Clone(v.Decoded),
		}
	case nil:
		return NullObject{}
	default:
		return v.Clone()
	}
}
