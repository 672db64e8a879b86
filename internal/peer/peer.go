// Package peer layers per-peer session state on top of internal/peerconn:
// the four interest/choke booleans, the peer's advertised bitfield,
// outstanding block requests in each direction, and rolling rate
// estimates. This is the peer.Peer every downloader/uploader component
// in the engine holds a reference to.
package peer

import (
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/peerconn"
	"github.com/tearfur/transmission/internal/peerprotocol"
	"github.com/tearfur/transmission/internal/piece"
)

// Request is a block request outstanding against a peer.
type Request struct {
	Piece *piece.Piece
	Begin uint32
	Length uint32
}

// Piece is a decoded, completed block arriving from a peer.
type Piece struct {
	Block *piece.Block
	Data  []byte
}

// Peer wraps one negotiated connection with the bookkeeping every
// higher-level component (piecedownloader, piecepicker, the choking
// algorithm) needs.
type Peer struct {
	*peerconn.Conn

	mu sync.Mutex

	amChoking      bool
	amInterested   bool
	peerChoking    bool
	peerInterested bool

	bitfield *bitfield.Bitfield

	outgoingRequests map[[3]uint32]struct{} // key: index, begin, length
	incomingRequests map[[3]uint32]struct{}

	downloadRate metrics.EWMA
	uploadRate   metrics.EWMA

	optimisticUnchokeSince time.Time

	// ExtensionHandshake is the peer's BEP 10 handshake, once received;
	// nil until then. infodownloader reads MetadataSize and the M table
	// to learn the peer's ut_metadata message id.
	ExtensionHandshake *peerprotocol.ExtensionHandshake
}

// SetExtensionHandshake records the peer's BEP 10 handshake payload.
func (p *Peer) SetExtensionHandshake(h peerprotocol.ExtensionHandshake) {
	p.mu.Lock()
	p.ExtensionHandshake = &h
	p.mu.Unlock()
}

// New wraps conn (already past handshake) in a Peer. numPieces sizes the
// peer's bitfield before any Bitfield/Have message updates it.
func New(conn *peerconn.Conn, numPieces uint32) *Peer {
	return &Peer{
		Conn:             conn,
		amChoking:        true,
		peerChoking:      true,
		bitfield:         bitfield.New(numPieces),
		outgoingRequests: make(map[[3]uint32]struct{}),
		incomingRequests: make(map[[3]uint32]struct{}),
		downloadRate:     metrics.NewEWMA1(),
		uploadRate:       metrics.NewEWMA1(),
	}
}

func (p *Peer) AmChoking() bool      { p.mu.Lock(); defer p.mu.Unlock(); return p.amChoking }
func (p *Peer) AmInterested() bool   { p.mu.Lock(); defer p.mu.Unlock(); return p.amInterested }
func (p *Peer) PeerChoking() bool    { p.mu.Lock(); defer p.mu.Unlock(); return p.peerChoking }
func (p *Peer) PeerInterested() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.peerInterested }

// Bitfield returns the peer's advertised piece set.
func (p *Peer) Bitfield() *bitfield.Bitfield { p.mu.Lock(); defer p.mu.Unlock(); return p.bitfield }

// SetBitfield replaces the peer's advertised piece set wholesale, called
// on a Bitfield or HaveAll message.
func (p *Peer) SetBitfield(bf *bitfield.Bitfield) {
	p.mu.Lock()
	p.bitfield = bf
	p.mu.Unlock()
}

// HavePiece records a single Have message.
func (p *Peer) HavePiece(index uint32) {
	p.mu.Lock()
	p.bitfield.Set(index)
	p.mu.Unlock()
}

// Choke sends a choke message if we are not already choking the peer.
func (p *Peer) Choke() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.amChoking {
		return
	}
	p.amChoking = true
	p.SendMessage(peerprotocol.NewChokeMessage())
}

// Unchoke sends an unchoke message if we are currently choking the peer.
func (p *Peer) Unchoke() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.amChoking {
		return
	}
	p.amChoking = false
	p.SendMessage(peerprotocol.NewUnchokeMessage())
}

// SetInterested sends interested/not-interested if the state changes.
func (p *Peer) SetInterested(interested bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if interested == p.amInterested {
		return
	}
	p.amInterested = interested
	if interested {
		p.SendMessage(peerprotocol.NewInterestedMessage())
	} else {
		p.SendMessage(peerprotocol.NewNotInterestedMessage())
	}
}

// HandlePeerChoke updates state from a received Choke message.
func (p *Peer) HandlePeerChoke() {
	p.mu.Lock()
	p.peerChoking = true
	p.outgoingRequests = make(map[[3]uint32]struct{})
	p.mu.Unlock()
}

// HandlePeerUnchoke updates state from a received Unchoke message.
func (p *Peer) HandlePeerUnchoke() { p.mu.Lock(); p.peerChoking = false; p.mu.Unlock() }

// HandlePeerInterested updates state from a received Interested message.
func (p *Peer) HandlePeerInterested() { p.mu.Lock(); p.peerInterested = true; p.mu.Unlock() }

// HandlePeerNotInterested updates state from a received NotInterested message.
func (p *Peer) HandlePeerNotInterested() { p.mu.Lock(); p.peerInterested = false; p.mu.Unlock() }

// SendRequest sends a Request message and records it as outstanding.
func (p *Peer) SendRequest(index, begin, length uint32) error {
	p.mu.Lock()
	p.outgoingRequests[[3]uint32{index, begin, length}] = struct{}{}
	p.mu.Unlock()
	p.SendMessage(peerprotocol.RequestMessage{Index: index, Begin: begin, Length: length})
	return nil
}

// CancelRequest sends a Cancel message and drops the outstanding entry.
func (p *Peer) CancelRequest(index, begin, length uint32) {
	p.mu.Lock()
	delete(p.outgoingRequests, [3]uint32{index, begin, length})
	p.mu.Unlock()
	p.SendMessage(peerprotocol.CancelMessage{Index: index, Begin: begin, Length: length})
}

// HandlePiece records a completed block, removing it from the
// outstanding set, and ticks the download rate estimator.
func (p *Peer) HandlePiece(index, begin uint32, length int) {
	p.mu.Lock()
	delete(p.outgoingRequests, [3]uint32{index, begin, uint32(length)})
	p.downloadRate.Update(int64(length))
	p.mu.Unlock()
}

// OutstandingRequests reports how many block requests we have in flight
// to this peer.
func (p *Peer) OutstandingRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outgoingRequests)
}

// DownloadRate returns the current EWMA of bytes/sec downloaded from
// this peer; Tick must be called periodically (by the session timer
// loop) for the estimate to decay correctly.
func (p *Peer) DownloadRate() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloadRate.Tick()
	return int64(p.downloadRate.Rate())
}

// UploadRate returns the current EWMA of bytes/sec uploaded to this peer.
func (p *Peer) UploadRate() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploadRate.Tick()
	return int64(p.uploadRate.Rate())
}

// RecordUpload ticks the upload rate estimator by n bytes sent.
func (p *Peer) RecordUpload(n int) {
	p.mu.Lock()
	p.uploadRate.Update(int64(n))
	p.mu.Unlock()
}
