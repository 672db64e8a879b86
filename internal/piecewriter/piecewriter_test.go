package piecewriter

import (
	"crypto/sha1"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tearfur/transmission/internal/piece"
	"github.com/tearfur/transmission/internal/piececache"
)

type memStorage struct {
	buf []byte
}

func (m *memStorage) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.buf[off:]), nil
}

func (m *memStorage) WriteAt(p []byte, off int64) (int, error) {
	if need := int(off) + len(p); need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	return copy(m.buf[off:], p), nil
}

func (m *memStorage) Close() error { return nil }

func TestRunWritesMatchingPiece(t *testing.T) {
	data := []byte("the quick brown fox")
	pi := piece.New(0, uint32(len(data)), sha1.Sum(data))
	cache := piececache.New(&memStorage{buf: make([]byte, len(data))}, int64(len(data)))
	resultC := make(chan *PieceWriter, 1)

	w := New(pi, data)
	w.Run(0, cache, resultC)

	got := <-resultC
	require.NoError(t, got.Error)
}

func TestRunReportsHashMismatch(t *testing.T) {
	data := []byte("the quick brown fox")
	var wrongHash [20]byte
	pi := piece.New(0, uint32(len(data)), wrongHash)
	cache := piececache.New(&memStorage{buf: make([]byte, len(data))}, int64(len(data)))
	resultC := make(chan *PieceWriter, 1)

	w := New(pi, data)
	w.Run(0, cache, resultC)

	got := <-resultC
	require.True(t, errors.Is(got.Error, ErrHashMismatch))
}
