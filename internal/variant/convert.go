package variant

import (
	"fmt"
	"reflect"

	"github.com/tearfur/transmission/internal/quark"
)

// FromGo converts common Go values (bool, ints, floats, string, []byte,
// slices, and map[string]any) into a Value tree. It panics on
// unsupported types, since callers control what they pass in; this
// mirrors the teacher's try_emplace idiom of building response maps from
// known-shape Go data.
func FromGo(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint32:
		return Int(int64(x))
	case uint64:
		return Int(int64(x))
	case float32:
		return Double(float64(x))
	case float64:
		return Double(x)
	case string:
		return String(x)
	case []byte:
		return String(string(x))
	case []string:
		vec := NewVector(len(x))
		for _, s := range x {
			vec.Append(String(s))
		}
		return vec
	case []int64:
		vec := NewVector(len(x))
		for _, n := range x {
			vec.Append(Int(n))
		}
		return vec
	case map[string]any:
		m := NewMap()
		for k, val := range x {
			m.SetByName(k, FromGo(val))
		}
		return m
	case []any:
		vec := NewVector(len(x))
		for _, e := range x {
			vec.Append(FromGo(e))
		}
		return vec
	case Value:
		return x
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			vec := NewVector(rv.Len())
			for i := 0; i < rv.Len(); i++ {
				vec.Append(FromGo(rv.Index(i).Interface()))
			}
			return vec
		}
		panic(fmt.Sprintf("variant: FromGo: unsupported type %T", v))
	}
}

// Builder accumulates a map value key by key, the way RPC handlers build
// response args; Put and PutValue insert or assign, so a repeated key
// keeps its last value.
type Builder struct {
	v Value
}

// NewBuilder returns a Builder wrapping a fresh empty map.
func NewBuilder() *Builder {
	return &Builder{v: NewMap()}
}

// Put inserts key -> FromGo(val), overwriting any previous value for key.
func (b *Builder) Put(key string, val any) *Builder {
	b.v.SetByName(key, FromGo(val))
	return b
}

// PutValue inserts a pre-built Value.
func (b *Builder) PutValue(key quark.ID, val Value) *Builder {
	b.v.Set(key, val)
	return b
}

// Value returns the accumulated map.
func (b *Builder) Value() Value {
	return b.v
}
