package bitfield

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetClearTest(t *testing.T) {
	bf := New(10)
	require.Equal(t, uint32(10), bf.Len())
	require.False(t, bf.Test(3))

	bf.Set(3)
	require.True(t, bf.Test(3))
	require.Equal(t, uint32(1), bf.Count())

	bf.Clear(3)
	require.False(t, bf.Test(3))
	require.Equal(t, uint32(0), bf.Count())
}

func TestOutOfRangeIsNoop(t *testing.T) {
	bf := New(4)
	bf.Set(100)
	require.False(t, bf.Test(100))
	require.Equal(t, uint32(0), bf.Count())
}

func TestAll(t *testing.T) {
	bf := New(3)
	require.False(t, bf.All())
	bf.Set(0)
	bf.Set(1)
	bf.Set(2)
	require.True(t, bf.All())
}

func TestNewBytesRejectsWrongLength(t *testing.T) {
	_, err := NewBytes([]byte{0x00}, 16)
	require.Error(t, err)
}

func TestNewBytesRejectsNonZeroPadding(t *testing.T) {
	// 5 bits needs 1 byte; the low 3 bits are padding and must be zero.
	_, err := NewBytes([]byte{0xff}, 5)
	require.Error(t, err)

	bf, err := NewBytes([]byte{0xf8}, 5)
	require.NoError(t, err)
	require.True(t, bf.Test(0))
	require.True(t, bf.Test(4))
}

func TestCopyIsIndependent(t *testing.T) {
	bf := New(8)
	bf.Set(1)
	cp := bf.Copy()
	cp.Set(2)
	require.False(t, bf.Test(2))
	require.True(t, cp.Test(1))
}
