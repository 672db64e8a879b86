// Package variant implements the typed value tree that carries
// configuration, RPC payloads, resume data, and tracker responses
// throughout the engine, along with JSON and bencode codecs for it.
package variant

import (
	"fmt"
	"math"

	"github.com/tearfur/transmission/internal/quark"
)

// Kind enumerates the variant alternatives.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindVector
	KindMap
)

// Value is a recursive sum type holding any RPC/resume/tracker payload.
//
// A Map's keys are quark ids; iteration order is insertion order and
// duplicate keys are not permitted (Set is insert-or-assign).
type Value struct {
	kind Kind
	b    bool
	i    int64
	d    float64
	s    string

	vec []Value

	// keys/vals are parallel slices preserving insertion order; index maps
	// a key's quark id to its position in keys/vals for O(1) lookup.
	keys  []quark.ID
	vals  []Value
	index map[quark.ID]int
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a bool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an int64 value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Double returns a double value.
func Double(d float64) Value { return Value{kind: KindDouble, d: d} }

// String returns a string value. The bytes are copied into the value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Vector returns a vector value wrapping elems.
func Vector(elems ...Value) Value {
	return Value{kind: KindVector, vec: elems}
}

// NewVector returns an empty vector with room for n elements.
func NewVector(n int) Value {
	return Value{kind: KindVector, vec: make([]Value, 0, n)}
}

// NewMap returns an empty map.
func NewMap() Value {
	return Value{kind: KindMap, index: make(map[quark.ID]int)}
}

// Kind reports the alternative held by v.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindDouble:
		return int64(v.d), true
	}
	return 0, false
}

func (v Value) Double() (float64, bool) {
	switch v.kind {
	case KindDouble:
		return v.d, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) Vec() ([]Value, bool) {
	if v.kind != KindVector {
		return nil, false
	}
	return v.vec, true
}

// Append appends elem to a vector value in place. v must be KindVector.
func (v *Value) Append(elem Value) {
	v.vec = append(v.vec, elem)
}

// Get looks up key in a map value.
func (v Value) Get(key quark.ID) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	i, ok := v.index[key]
	if !ok {
		return Value{}, false
	}
	return v.vals[i], true
}

// GetByName is a convenience wrapper around Get that looks name up
// without interning it; a name that was never interned is reported absent.
func (v Value) GetByName(name string) (Value, bool) {
	id, ok := quark.Lookup(name)
	if !ok {
		return Value{}, false
	}
	return v.Get(id)
}

// Set inserts or assigns key -> val in a map value. v must be KindMap.
func (v *Value) Set(key quark.ID, val Value) {
	if v.index == nil {
		v.index = make(map[quark.ID]int)
	}
	if i, ok := v.index[key]; ok {
		v.vals[i] = val
		return
	}
	v.index[key] = len(v.keys)
	v.keys = append(v.keys, key)
	v.vals = append(v.vals, val)
}

// SetByName is a convenience wrapper around Set that interns name.
func (v *Value) SetByName(name string, val Value) {
	v.Set(quark.Intern(name), val)
}

// Keys returns the map's keys in insertion order.
func (v Value) Keys() []quark.ID {
	return v.keys
}

// Len returns the number of elements in a vector or map.
func (v Value) Len() int {
	switch v.kind {
	case KindVector:
		return len(v.vec)
	case KindMap:
		return len(v.keys)
	}
	return 0
}

// Equal reports whether a and b hold the same value tree. Map key
// order is ignored; vector element order is significant.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindDouble:
		if math.IsNaN(a.d) && math.IsNaN(b.d) {
			return true
		}
		return a.d == b.d
	case KindString:
		return a.s == b.s
	case KindVector:
		if len(a.vec) != len(b.vec) {
			return false
		}
		for i := range a.vec {
			if !Equal(a.vec[i], b.vec[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.Get(k)
			if !ok {
				return false
			}
			av, _ := a.Get(k)
			if !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	return fmt.Sprintf("variant(%v)", v.kind)
}
