package variant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tearfur/transmission/internal/quark"
)

func TestRoundTripJSON(t *testing.T) {
	m := NewMap()
	m.SetByName("id", Int(7))
	m.SetByName("name", String("ubuntu.iso"))
	m.SetByName("done", Bool(true))
	m.SetByName("ratio", Double(1.5))
	m.SetByName("files", Vector(String("a"), String("b")))

	encoded := EncodeJSON(m)
	decoded, err := DecodeJSON(encoded)
	require.NoError(t, err)
	require.True(t, Equal(m, decoded))
}

func TestRoundTripBencode(t *testing.T) {
	m := NewMap()
	m.SetByName("zeta", Int(1))
	m.SetByName("alpha", String("first"))
	m.SetByName("list", Vector(Int(1), Int(2), Int(3)))

	encoded := EncodeBencode(m)
	decoded, err := DecodeBencode(encoded)
	require.NoError(t, err)
	require.True(t, Equal(m, decoded))
}

func TestBencodeDictKeysAreByteLexOrdered(t *testing.T) {
	m := NewMap()
	m.SetByName("zeta", Int(1))
	m.SetByName("alpha", Int(2))
	m.SetByName("mid", Int(3))

	got := string(EncodeBencode(m))
	want := "d5:alphai2e3:midi3e4:zetai1ee"
	require.Equal(t, want, got)
}

func TestJSONNonFiniteDoubleEncodesAsNull(t *testing.T) {
	v := Double(posInf())
	require.Equal(t, "null", string(EncodeJSON(v)))
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}

func TestMapInsertOrAssign(t *testing.T) {
	m := NewMap()
	id := quark.Intern("k")
	m.Set(id, Int(1))
	m.Set(id, Int(2))
	require.Equal(t, 1, m.Len())
	v, ok := m.Get(id)
	require.True(t, ok)
	n, _ := v.Int()
	require.Equal(t, int64(2), n)
}

func TestBencodeStringDecodePreservesRawBytes(t *testing.T) {
	raw := []byte{0xff, 0x00, 0x01}
	v := String(string(raw))
	encoded := EncodeBencode(v)
	decoded, err := DecodeBencode(encoded)
	require.NoError(t, err)
	s, ok := decoded.Str()
	require.True(t, ok)
	require.Equal(t, raw, []byte(s))
}
