// Package verifier hashes a torrent's on-disk pieces against the
// metainfo's expected SHA-1 hashes, used both for the initial "resume
// from existing data" check and for io-error recovery rechecks. It
// reports incremental progress and a final result the same way
// allocator does, so session's event loop never blocks on disk I/O.
package verifier

import (
	"crypto/sha1"

	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/piece"
	"github.com/tearfur/transmission/internal/storage"
)

// Progress reports incremental verification progress.
type Progress struct {
	Checked uint32
}

// Verifier checks every piece of a torrent against its expected hash.
type Verifier struct {
	Pieces []*piece.Piece
	Storage storage.Storage

	ProgressC chan Progress
	ResultC   chan *Result
	stopC     chan struct{}
}

// Result is the outcome of a full verification pass.
type Result struct {
	Bitfield *bitfield.Bitfield
	Error    error
}

// New returns a Verifier for pieces backed by st.
func New(pieces []*piece.Piece, st storage.Storage) *Verifier {
	return &Verifier{
		Pieces:    pieces,
		Storage:   st,
		ProgressC: make(chan Progress),
		ResultC:   make(chan *Result, 1),
		stopC:     make(chan struct{}),
	}
}

// Stop aborts an in-progress verification run.
func (v *Verifier) Stop() { close(v.stopC) }

// Run hashes every piece, sending a Progress update after each and a
// final Result on ResultC.
func (v *Verifier) Run() {
	bf := bitfield.New(uint32(len(v.Pieces)))
	buf := make([]byte, 0)
	for i, p := range v.Pieces {
		select {
		case <-v.stopC:
			v.ResultC <- &Result{Error: errStopped}
			return
		default:
		}
		if cap(buf) < int(p.Length) {
			buf = make([]byte, p.Length)
		}
		data := buf[:p.Length]
		n, err := v.Storage.ReadAt(data, offsetOf(v.Pieces, i))
		if err != nil && uint32(n) != p.Length {
			// Missing/short data on disk just means the piece isn't
			// downloaded yet, not a fatal error.
			bf.Clear(p.Index)
		} else {
			sum := sha1.Sum(data)
			if sum == p.Hash {
				bf.Set(p.Index)
			} else {
				bf.Clear(p.Index)
			}
		}
		select {
		case v.ProgressC <- Progress{Checked: uint32(i + 1)}:
		case <-v.stopC:
			v.ResultC <- &Result{Error: errStopped}
			return
		}
	}
	v.ResultC <- &Result{Bitfield: bf}
}

func offsetOf(pieces []*piece.Piece, i int) int64 {
	var off int64
	for j := 0; j < i; j++ {
		off += int64(pieces[j].Length)
	}
	return off
}

var errStopped = stoppedError{}

type stoppedError struct{}

func (stoppedError) Error() string { return "verifier: stopped" }
