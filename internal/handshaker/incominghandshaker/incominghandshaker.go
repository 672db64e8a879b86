// Package incominghandshaker drives the handshake phase of one accepted
// connection to completion in its own goroutine, reporting the outcome
// back on a result channel — the same "handshaker owns the raw conn
// until it resolves to a peer or an error" shape the teacher uses to keep
// session/torrent.go's event loop from ever blocking on network I/O.
package incominghandshaker

import (
	"net"
	"time"

	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/btconn"
	"github.com/tearfur/transmission/internal/config"
)

// IncomingHandshaker negotiates one accepted connection.
type IncomingHandshaker struct {
	Conn       net.Conn
	PeerID     [20]byte
	InfoHash   [20]byte
	Extensions *bitfield.Bitfield
	Error      error

	conn net.Conn
}

// New wraps an accepted net.Conn, ready for Run.
func New(conn net.Conn) *IncomingHandshaker {
	return &IncomingHandshaker{conn: conn}
}

// Run performs the MSE-or-plaintext negotiation and the plaintext
// handshake, then posts the receiver onto resultC. ourID is our peer id;
// knownInfoHashes lists torrents currently served, used both to resolve
// an MSE-masked SKEY and to validate the plaintext handshake's info
// hash; mode is this session's encryption policy for incoming
// connections.
func (h *IncomingHandshaker) Run(
	ourID [20]byte,
	knownInfoHashes func() [][20]byte,
	mode config.EncryptionMode,
	resultC chan *IncomingHandshaker,
	timeout time.Duration,
) {
	h.conn.SetDeadline(time.Now().Add(timeout))
	defer h.conn.SetDeadline(time.Time{})

	result, err := btconn.AcceptIncoming(h.conn, knownInfoHashes, mode, ourID)
	if err != nil {
		h.Error = err
		h.Conn = h.conn
		resultC <- h
		return
	}

	h.Conn = result.Conn
	h.PeerID = result.Handshake.PeerID
	h.InfoHash = result.Handshake.InfoHash
	h.Extensions = reservedToBitfield(result.Handshake.Reserved)
	resultC <- h
}

func reservedToBitfield(reserved [8]byte) *bitfield.Bitfield {
	bf, _ := bitfield.NewBytes(reserved[:], 64)
	return bf
}
