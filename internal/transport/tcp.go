package transport

import (
	"net"
	"time"
)

// TCPTransport wraps a plain net.Conn so it satisfies Transport.
type TCPTransport struct {
	net.Conn
}

// NewTCP wraps an already-established TCP connection.
func NewTCP(conn net.Conn) *TCPTransport {
	OpenSockets.Inc()
	return &TCPTransport{Conn: conn}
}

// DialTCP opens a new outgoing TCP connection, counted against
// OpenSockets for as long as it stays open.
func DialTCP(network, addr string, timeout time.Duration) (*TCPTransport, error) {
	conn, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewTCP(conn), nil
}

// Recv reads from the underlying connection.
func (t *TCPTransport) Recv(p []byte) (int, error) { return t.Conn.Read(p) }

// Send writes to the underlying connection.
func (t *TCPTransport) Send(p []byte) (int, error) { return t.Conn.Write(p) }

// SetEnabled is a no-op for TCP; there is no shared listener state to
// toggle per-connection.
func (t *TCPTransport) SetEnabled(bool) {}

// Close closes the underlying connection and releases its OpenSockets slot.
func (t *TCPTransport) Close() error {
	OpenSockets.Dec()
	return t.Conn.Close()
}
