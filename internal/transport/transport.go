// Package transport abstracts the two socket kinds a peer connection can
// ride on: plain TCP and µTP (BEP 29). The dialer in
// internal/handshaker/outgoinghandshaker, the listener in
// internal/acceptor and internal/btconn all work on a plain net.Conn;
// once the handshake is done, session.startPeer wraps the connection in a
// Transport (NewTCP, for either socket kind), so internal/peerconn stays
// agnostic to which one carried a given connection.
package transport

import (
	"net"

	"go.uber.org/atomic"
)

// OpenSockets is the process-wide count of currently open peer sockets,
// TCP and µTP combined, used to enforce Config.MaxPeerAccept against
// real file-descriptor/socket pressure rather than just peer bookkeeping.
var OpenSockets atomic.Int64

// Transport is a bidirectional, addressable connection to a remote peer.
// It is satisfied by both a TCP net.Conn and a µTP socket. Recv/Send are
// the named operations of the contract; they are plain aliases of
// Read/Write so a Transport also satisfies io.Reader/io.Writer, which
// internal/peerprotocol's codec is written against.
type Transport interface {
	net.Conn
	Recv(p []byte) (int, error)
	Send(p []byte) (int, error)
	// SetEnabled is a no-op for TCP transports. For µTP, SetEnabled(true)
	// clears any read deadline on the shared UDP socket and
	// SetEnabled(false) does nothing; neither call pauses or resumes
	// accepting connections.
	SetEnabled(bool)
}
