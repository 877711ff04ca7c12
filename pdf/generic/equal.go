package generic

import "bytes"

// Equal reports whether a and b are structurally equal. References compare
// by object and generation number and are never followed, so comparing
// objects from cyclic graphs always terminates. Integers and reals compare
// by numeric value; nil equals null.
func Equal(a, b PdfObject) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	switch x := a.(type) {
	case Reference:
		y, ok := b.(Reference)
		return ok && x == y
	case BooleanObject:
		y, ok := b.(BooleanObject)
		return ok && x == y
	case IntegerObject, RealObject:
		xv, _ := NumberValue(x)
		yv, ok := NumberValue(b)
		return ok && xv == yv
	case NameObject:
		y, ok := b.(NameObject)
		return ok && x == y
	case *StringObject:
		y, ok := b.(*StringObject)
		return ok && bytes.Equal(x.Value, y.Value)
	case ArrayObject:
		y, ok := b.(ArrayObject)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *DictionaryObject:
		y, ok := b.(*DictionaryObject)
		return ok && dictEqual(x, y, "")
	case *StreamObject:
		y, ok := b.(*StreamObject)
		if !ok || !bytes.Equal(x.Data, y.Data) {
			return false
		}
		// Length is derived from Data when written.
		return dictEqual(orEmpty(x.Dictionary), orEmpty(y.Dictionary), "Length")
	case *IndirectObject:
		y, ok := b.(*IndirectObject)
		return ok && x.Reference() == y.Reference() && Equal(x.Object, y.Object)
	}
	return false
}

func dictEqual(x, y *DictionaryObject, ignore string) bool {
	count := 0
	for _, key := range x.Keys() {
		if key == ignore {
			continue
		}
		count++
		if !y.Has(key) || !Equal(x.Get(key), y.Get(key)) {
			return false
		}
	}
	other := y.Len()
	if ignore != "" && y.Has(ignore) {
		other--
	}
	return count == other
}

func orEmpty(d *DictionaryObject) *DictionaryObject {
	if d == nil {
		return NewDictionary()
	}
	return d
}
