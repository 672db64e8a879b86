package piece

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSplitsIntoFullBlocks(t *testing.T) {
	p := New(0, 2*BlockSize, [20]byte{1})
	require.Len(t, p.Blocks, 2)
	require.Equal(t, Block{Index: 0, Begin: 0, Length: BlockSize}, p.Blocks[0])
	require.Equal(t, Block{Index: 1, Begin: BlockSize, Length: BlockSize}, p.Blocks[1])
}

func TestNewTrailingShortBlock(t *testing.T) {
	length := uint32(BlockSize + 100)
	p := New(3, length, [20]byte{})
	require.Len(t, p.Blocks, 2)
	require.Equal(t, uint32(100), p.Blocks[1].Length)
	require.Equal(t, uint32(BlockSize), p.Blocks[1].Begin)
}

func TestNewSinglePartialBlock(t *testing.T) {
	p := New(0, 10, [20]byte{})
	require.Len(t, p.Blocks, 1)
	require.Equal(t, uint32(10), p.Blocks[0].Length)
}
