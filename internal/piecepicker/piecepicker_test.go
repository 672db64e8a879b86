package piecepicker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/piece"
)

func makePieces(n int) []*piece.Piece {
	pieces := make([]*piece.Piece, n)
	for i := range pieces {
		pieces[i] = piece.New(uint32(i), 16*1024, [20]byte{byte(i)})
	}
	return pieces
}

func TestPickSkipsHaveAndMissingFromPeer(t *testing.T) {
	pieces := makePieces(4)
	have := bitfield.New(4)
	have.Set(0)
	p := New(pieces, have)

	peerBF := bitfield.New(4)
	peerBF.Set(1)
	// index 2 and 3 not advertised by this peer.

	got := p.Pick(peerBF, false)
	require.NotNil(t, got)
	require.Equal(t, uint32(1), got.Index)
}

func TestPickReturnsNilWhenNothingWanted(t *testing.T) {
	pieces := makePieces(2)
	have := bitfield.New(2)
	have.Set(0)
	have.Set(1)
	p := New(pieces, have)

	peerBF := bitfield.New(2)
	peerBF.Set(0)
	peerBF.Set(1)
	require.Nil(t, p.Pick(peerBF, false))
}

func TestPickRarestFirst(t *testing.T) {
	pieces := makePieces(3)
	have := bitfield.New(3)
	p := New(pieces, have)

	p.HandleHave(0)
	p.HandleHave(0)
	p.HandleHave(1)

	peerBF := bitfield.New(3)
	peerBF.Set(0)
	peerBF.Set(1)
	peerBF.Set(2)

	got := p.Pick(peerBF, false)
	require.NotNil(t, got)
	require.Equal(t, uint32(2), got.Index)
}

func TestSequentialPicksLowestIndex(t *testing.T) {
	pieces := makePieces(3)
	have := bitfield.New(3)
	p := New(pieces, have)
	p.Sequential = true

	p.HandleHave(2) // would be rarest-first winner if not sequential

	peerBF := bitfield.New(3)
	peerBF.Set(0)
	peerBF.Set(1)
	peerBF.Set(2)

	got := p.Pick(peerBF, false)
	require.Equal(t, uint32(0), got.Index)
}

func TestRequestingExcludedUnlessEndgame(t *testing.T) {
	pieces := makePieces(2)
	have := bitfield.New(2)
	p := New(pieces, have)
	p.MarkRequesting(0)

	peerBF := bitfield.New(2)
	peerBF.Set(0)
	peerBF.Set(1)

	got := p.Pick(peerBF, false)
	require.Equal(t, uint32(1), got.Index)

	// In endgame mode, the already-requested piece is a valid candidate
	// again; with only piece 0 advertised, Pick must return it.
	soloBF := bitfield.New(2)
	soloBF.Set(0)
	got = p.Pick(soloBF, true)
	require.Equal(t, uint32(0), got.Index)
}

func TestUnmarkRequestingReleasesPiece(t *testing.T) {
	pieces := makePieces(1)
	have := bitfield.New(1)
	p := New(pieces, have)
	p.MarkRequesting(0)

	peerBF := bitfield.New(1)
	peerBF.Set(0)
	require.Nil(t, p.Pick(peerBF, false))

	p.UnmarkRequesting(0)
	require.NotNil(t, p.Pick(peerBF, false))
}

func TestRemainingCount(t *testing.T) {
	pieces := makePieces(3)
	have := bitfield.New(3)
	have.Set(1)
	p := New(pieces, have)
	require.Equal(t, 2, p.RemainingCount())
}

func TestHandleUnhaveNeverGoesNegative(t *testing.T) {
	pieces := makePieces(1)
	have := bitfield.New(1)
	p := New(pieces, have)
	p.HandleUnhave(0)
	require.Equal(t, 0, p.counts[0])
}
