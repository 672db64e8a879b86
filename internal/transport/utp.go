package transport

import (
	"net"
	"time"

	utp "github.com/anacrolix/go-libutp"
)

// UTPTransport wraps a µTP (BEP 29) socket connection so it satisfies
// Transport. µTP multiplexes many peer connections over one UDP socket,
// so enabling/disabling accept on that shared socket is meaningful here
// in a way it isn't for TCP.
type UTPTransport struct {
	net.Conn
	sock *utp.Socket
}

// UTPSocket owns the shared UDP socket that all µTP connections for a
// session are multiplexed over. One is created per listen address.
type UTPSocket struct {
	sock *utp.Socket
}

// ListenUTP opens the shared µTP socket for addr (e.g. ":51413").
func ListenUTP(addr string) (*UTPSocket, error) {
	sock, err := utp.NewSocket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UTPSocket{sock: sock}, nil
}

// Accept blocks until an incoming µTP connection arrives. The returned
// connection is not yet counted against OpenSockets: it still has to go
// through the plaintext handshake before session.startPeer wraps it
// (transport.NewTCP, despite the name, wraps any net.Conn) into the
// long-lived peer Transport that owns the socket-count slot.
func (s *UTPSocket) Accept() (*UTPTransport, error) {
	conn, err := s.sock.Accept()
	if err != nil {
		return nil, err
	}
	return &UTPTransport{Conn: conn, sock: s.sock}, nil
}

// Dial opens an outgoing µTP connection to addr over the shared socket.
// See Accept for why this does not touch OpenSockets.
func (s *UTPSocket) Dial(addr string, timeout time.Duration) (*UTPTransport, error) {
	conn, err := s.sock.DialTimeout(addr, timeout)
	if err != nil {
		return nil, err
	}
	return &UTPTransport{Conn: conn, sock: s.sock}, nil
}

// Close shuts down the shared socket, closing every connection on it.
func (s *UTPSocket) Close() error { return s.sock.Close() }

// Recv reads from the underlying µTP connection.
func (t *UTPTransport) Recv(p []byte) (int, error) { return t.Conn.Read(p) }

// Send writes to the underlying µTP connection.
func (t *UTPTransport) Send(p []byte) (int, error) { return t.Conn.Write(p) }

// SetEnabled(true) clears any read deadline on the shared socket;
// SetEnabled(false) does nothing. It does not pause or resume accepting
// incoming connections (spec §4.3, PeerTransport config).
func (t *UTPTransport) SetEnabled(enabled bool) {
	if enabled {
		t.sock.SetReadDeadline(time.Time{})
	}
}

// Close closes this individual µTP connection; the shared socket itself
// is unaffected. OpenSockets is not touched here: a handshake failure
// closes the connection before it was ever counted, and a successful
// handshake discards this wrapper in favor of the one session.startPeer
// builds, which owns the slot instead.
func (t *UTPTransport) Close() error {
	return t.Conn.Close()
}
