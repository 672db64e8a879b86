// Package piecepicker selects which piece to request next from which
// peer, implementing rarest-first selection with a sequential-download
// override and an endgame mode once only a few pieces remain.
package piecepicker

import (
	"math/rand"
	"sort"

	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/piece"
)

// PiecePicker tracks, for each piece, how many connected peers have it,
// and decides what to request next.
type PiecePicker struct {
	pieces     []*piece.Piece
	have       *bitfield.Bitfield // pieces we already have
	requesting *bitfield.Bitfield // pieces a downloader is already working on
	counts     []int              // availability per piece index

	// Sequential, when true, picks the lowest-index missing piece
	// instead of the rarest one (spec §4.2's sequential-download mode).
	Sequential bool
}

// New returns a picker for pieces, with have marking pieces already on
// disk.
func New(pieces []*piece.Piece, have *bitfield.Bitfield) *PiecePicker {
	return &PiecePicker{
		pieces:     pieces,
		have:       have,
		requesting: bitfield.New(uint32(len(pieces))),
		counts:     make([]int, len(pieces)),
	}
}

// HandleHave increments the availability count for index, called when a
// peer announces it via Have, Bitfield, or HaveAll.
func (p *PiecePicker) HandleHave(index uint32) {
	p.counts[index]++
}

// HandleUnhave decrements the availability count, called when a peer
// disconnects.
func (p *PiecePicker) HandleUnhave(index uint32) {
	if p.counts[index] > 0 {
		p.counts[index]--
	}
}

// candidate is a piece we might request next.
type candidate struct {
	index uint32
	count int
}

// Pick returns the next piece to request from peerBitfield, or nil if
// peerBitfield has nothing we both need and aren't already requesting.
// endgame, when true, ignores the requesting set so the same piece can
// be requested from multiple peers near the end of a download.
func (p *PiecePicker) Pick(peerBitfield *bitfield.Bitfield, endgame bool) *piece.Piece {
	var candidates []candidate
	for _, pc := range p.pieces {
		idx := pc.Index
		if p.have.Test(idx) {
			continue
		}
		if !endgame && p.requesting.Test(idx) {
			continue
		}
		if !peerBitfield.Test(idx) {
			continue
		}
		candidates = append(candidates, candidate{index: idx, count: p.counts[idx]})
	}
	if len(candidates) == 0 {
		return nil
	}

	if p.Sequential {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].index < candidates[j].index })
		return p.pieceAt(candidates[0].index)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].count < candidates[j].count })
	// Break ties among the rarest pieces randomly so peers don't all
	// converge on the exact same next piece.
	rarest := candidates[0].count
	var tied []candidate
	for _, c := range candidates {
		if c.count != rarest {
			break
		}
		tied = append(tied, c)
	}
	chosen := tied[rand.Intn(len(tied))]
	return p.pieceAt(chosen.index)
}

// MarkRequesting records that a downloader has started requesting index.
func (p *PiecePicker) MarkRequesting(index uint32) { p.requesting.Set(index) }

// UnmarkRequesting releases index back to the pool, called when a
// downloader fails or is cancelled.
func (p *PiecePicker) UnmarkRequesting(index uint32) { p.requesting.Clear(index) }

func (p *PiecePicker) pieceAt(index uint32) *piece.Piece {
	for _, pc := range p.pieces {
		if pc.Index == index {
			return pc
		}
	}
	return nil
}

// RemainingCount returns how many pieces we still need, used to decide
// whether to enter endgame mode.
func (p *PiecePicker) RemainingCount() int {
	n := 0
	for _, pc := range p.pieces {
		if !p.have.Test(pc.Index) {
			n++
		}
	}
	return n
}
