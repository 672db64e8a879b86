// Package piecedownloader drives downloading all blocks of one piece
// from one peer, queuing a bounded number of outstanding block requests
// and reassembling the blocks into the piece's bytes once all arrive.
// Adapted directly from the teacher engine's component of the same name.
package piecedownloader

import (
	"bytes"
	"errors"

	"github.com/tearfur/transmission/internal/peer"
	"github.com/tearfur/transmission/internal/piece"
)

// maxQueuedBlocks bounds how many block requests we keep outstanding to
// a single peer for a single piece, so one slow peer can't starve our
// request pipeline for every other piece in flight to it.
const maxQueuedBlocks = 10

// PieceDownloader downloads all blocks of Piece from Peer.
type PieceDownloader struct {
	Piece   *piece.Piece
	Peer    *peer.Peer
	blocks  []block
	limiter chan struct{}

	PieceC   chan peer.Piece
	RejectC  chan peer.Request
	ChokeC   chan struct{}
	UnchokeC chan struct{}
	DoneC    chan []byte
	ErrC     chan error
}

type block struct {
	*piece.Block
	requested bool
	data      []byte
}

// New returns a downloader for pi from pe.
func New(pi *piece.Piece, pe *peer.Peer) *PieceDownloader {
	blocks := make([]block, len(pi.Blocks))
	for i := range blocks {
		blocks[i] = block{Block: &pi.Blocks[i]}
	}
	return &PieceDownloader{
		Piece:    pi,
		Peer:     pe,
		blocks:   blocks,
		limiter:  make(chan struct{}, maxQueuedBlocks),
		PieceC:   make(chan peer.Piece),
		RejectC:  make(chan peer.Request),
		ChokeC:   make(chan struct{}),
		UnchokeC: make(chan struct{}),
		DoneC:    make(chan []byte, 1),
		ErrC:     make(chan error, 1),
	}
}

// Run drives the request/response loop until the piece completes, an
// unrecoverable error occurs, or stopC fires.
func (d *PieceDownloader) Run(stopC chan struct{}) {
	for {
		select {
		case d.limiter <- struct{}{}:
			b := d.nextBlock()
			if b == nil {
				d.limiter = nil
				break
			}
			if err := d.Peer.SendRequest(d.Piece.Index, b.Begin, b.Length); err != nil {
				d.ErrC <- err
				return
			}
		case p := <-d.PieceC:
			b := &d.blocks[p.Block.Index]
			if b.requested && b.data == nil && d.limiter != nil {
				<-d.limiter
			}
			b.data = p.Data
			if d.allDone() {
				d.DoneC <- d.assembleBlocks().Bytes()
				return
			}
		case req := <-d.RejectC:
			b := &d.blocks[req.Begin/piece.BlockSize]
			if !b.requested {
				d.Peer.Close()
				d.ErrC <- errors.New("piecedownloader: received invalid reject message")
				return
			}
			b.requested = false
		case <-d.ChokeC:
			for i := range d.blocks {
				if d.blocks[i].data == nil && d.blocks[i].requested {
					d.blocks[i].requested = false
				}
			}
			d.limiter = nil
		case <-d.UnchokeC:
			d.limiter = make(chan struct{}, maxQueuedBlocks)
		case <-stopC:
			return
		}
	}
}

func (d *PieceDownloader) nextBlock() *block {
	for i := range d.blocks {
		if !d.blocks[i].requested {
			d.blocks[i].requested = true
			return &d.blocks[i]
		}
	}
	return nil
}

func (d *PieceDownloader) allDone() bool {
	for i := range d.blocks {
		if d.blocks[i].data == nil {
			return false
		}
	}
	return true
}

func (d *PieceDownloader) assembleBlocks() *bytes.Buffer {
	buf := bytes.NewBuffer(make([]byte, 0, d.Piece.Length))
	for i := range d.blocks {
		buf.Write(d.blocks[i].data)
	}
	return buf
}
