package variant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromGoScalars(t *testing.T) {
	require.Equal(t, KindNull, FromGo(nil).Kind())
	require.Equal(t, KindBool, FromGo(true).Kind())

	n, ok := FromGo(42).Int()
	require.True(t, ok)
	require.Equal(t, int64(42), n)

	s, ok := FromGo("x").Str()
	require.True(t, ok)
	require.Equal(t, "x", s)
}

func TestFromGoStringSlice(t *testing.T) {
	v := FromGo([]string{"a", "b"})
	vec, ok := v.Vec()
	require.True(t, ok)
	require.Len(t, vec, 2)
	s0, _ := vec[0].Str()
	require.Equal(t, "a", s0)
}

func TestFromGoPanicsOnUnsupportedType(t *testing.T) {
	require.Panics(t, func() {
		FromGo(make(chan int))
	})
}

func TestBuilderPutOverwrites(t *testing.T) {
	b := NewBuilder().Put("k", 1).Put("k", 2)
	v := b.Value()
	got, ok := v.GetByName("k")
	require.True(t, ok)
	n, _ := got.Int()
	require.Equal(t, int64(2), n)
}
