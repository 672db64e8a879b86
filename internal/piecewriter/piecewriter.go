// Package piecewriter takes a fully-downloaded piece's assembled bytes,
// re-verifies its hash, and writes it through the piece cache, running
// in its own goroutine so a slow disk never blocks the torrent's event
// loop. Named after the pieceWriterResultC field already present in the
// teacher's torrent struct.
package piecewriter

import (
	"crypto/sha1"
	"errors"

	"github.com/tearfur/transmission/internal/piece"
	"github.com/tearfur/transmission/internal/piececache"
)

// ErrHashMismatch is returned when a fully-downloaded piece's data does not
// match the hash in the torrent's info dict. Callers must handle it
// distinctly from storage errors: a single bad piece is discarded and
// re-requested, it never fails the torrent.
var ErrHashMismatch = errors.New("piecewriter: piece hash mismatch")

// PieceWriter verifies and writes one completed piece.
type PieceWriter struct {
	Piece *piece.Piece
	Data  []byte
	Error error
}

// New returns a PieceWriter for pi's assembled data.
func New(pi *piece.Piece, data []byte) *PieceWriter {
	return &PieceWriter{Piece: pi, Data: data}
}

// Run hashes Data, and on a match writes it at offset through cache;
// either way it must be followed by sending the receiver on the
// session's pieceWriterResultC.
func (w *PieceWriter) Run(offset int64, cache *piececache.Cache, resultC chan *PieceWriter) {
	sum := sha1.Sum(w.Data)
	if sum != w.Piece.Hash {
		w.Error = ErrHashMismatch
		resultC <- w
		return
	}
	if err := cache.Write(offset, w.Data); err != nil {
		w.Error = err
		resultC <- w
		return
	}
	resultC <- w
}
