// Package outgoinghandshaker dials a candidate peer address and drives
// its handshake to completion in its own goroutine, mirroring
// incominghandshaker's "own the conn until resolved" shape for the dial
// side.
package outgoinghandshaker

import (
	"net"
	"time"

	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/btconn"
	"github.com/tearfur/transmission/internal/config"
)

// OutgoingHandshaker dials and negotiates one outgoing connection.
type OutgoingHandshaker struct {
	Addr       *net.TCPAddr
	Conn       net.Conn
	PeerID     [20]byte
	Extensions *bitfield.Bitfield
	Error      error
}

// New prepares a handshaker for addr, ready for Run.
func New(addr *net.TCPAddr) *OutgoingHandshaker {
	return &OutgoingHandshaker{Addr: addr}
}

// DialFunc opens an outgoing connection. net.DialTimeout satisfies it
// directly; a transport.UTPSocket's Dial has a different signature and is
// adapted by the session (Session.dialFunc), letting Run stay agnostic to
// which transport carries the handshake.
type DialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// Run dials addr using dial (net.DialTimeout's signature; pass nil to
// dial plain TCP), negotiates encryption per mode, completes the
// plaintext handshake verifying infoHash, then posts the receiver onto
// resultC.
func (h *OutgoingHandshaker) Run(
	connectTimeout, handshakeTimeout time.Duration,
	ourID, infoHash [20]byte,
	mode config.EncryptionMode,
	resultC chan *OutgoingHandshaker,
	dial DialFunc,
) {
	if dial == nil {
		dial = net.DialTimeout
	}
	conn, err := dial("tcp", h.Addr.String(), connectTimeout)
	if err != nil {
		h.Error = err
		resultC <- h
		return
	}
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	result, err := btconn.DialOutgoing(conn, infoHash, mode, ourID)
	if err != nil {
		h.Error = err
		h.Conn = conn
		resultC <- h
		return
	}

	h.Conn = result.Conn
	h.PeerID = result.Handshake.PeerID
	h.Extensions, _ = bitfield.NewBytes(result.Handshake.Reserved[:], 64)
	resultC <- h
}
