// Package peerconn drives the read and write pumps for one peer wire
// connection: a reader goroutine decoding peerprotocol messages onto a
// channel, and a writer goroutine serializing outgoing messages (and
// piece blocks) with periodic keep-alives.
package peerconn

import (
	"errors"
	"net"

	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/peerprotocol"
	"github.com/tearfur/transmission/internal/transport"
)

var (
	errUnexpectedFastMessage      = errors.New("peerconn: fast extension message from peer that did not negotiate it")
	errUnexpectedExtensionMessage = errors.New("peerconn: extension message from peer that did not negotiate the extension protocol")
)

// Conn is a negotiated peer connection ready to exchange post-handshake
// messages.
type Conn struct {
	transport         transport.Transport
	id                [20]byte
	FastExtension     bool
	ExtensionProtocol bool
	reader            *reader
	writer            *writer
	log               logger.Logger
	closeC            chan struct{}
	closedC           chan struct{}
}

// New wraps t, already past the BitTorrent handshake, as a Conn able to
// exchange the steady-state message stream. fastExtension and
// extensionProtocol come from the bits both sides advertised in their
// handshakes (the intersection, not just ours).
func New(t transport.Transport, id [20]byte, fastExtension, extensionProtocol bool, l logger.Logger) *Conn {
	return &Conn{
		transport:         t,
		id:                id,
		FastExtension:     fastExtension,
		ExtensionProtocol: extensionProtocol,
		reader:            newReader(t, fastExtension, extensionProtocol, l),
		writer:            newWriter(t, l),
		log:               l,
		closeC:            make(chan struct{}),
		closedC:           make(chan struct{}),
	}
}

// ID returns the remote peer id exchanged in the handshake.
func (c *Conn) ID() [20]byte { return c.id }

// String returns the remote address for logging.
func (c *Conn) String() string { return c.transport.RemoteAddr().String() }

// Addr returns the remote peer's TCP address, used for PEX bookkeeping
// and BEP 24's "yourip" field; nil if the transport's remote address
// isn't a *net.TCPAddr (e.g. a test pipe).
func (c *Conn) Addr() *net.TCPAddr {
	addr, _ := c.transport.RemoteAddr().(*net.TCPAddr)
	return addr
}

// IP returns the remote peer's IP as a string, used to dedupe connected
// peers by address.
func (c *Conn) IP() string {
	if addr := c.Addr(); addr != nil {
		return addr.IP.String()
	}
	return c.transport.RemoteAddr().String()
}

// CloseConn closes the underlying transport directly, used when a
// connection must be dropped before Run has ever been started (e.g. a
// duplicate peer id detected right after handshake).
func (c *Conn) CloseConn() { c.transport.Close() }

// Done returns a channel closed once Run has torn down both pumps and
// the transport, so a message-pump goroutine reading Messages() knows
// when to stop.
func (c *Conn) Done() <-chan struct{} { return c.closedC }

// Messages returns the channel of decoded incoming messages. It yields
// peerprotocol.*Message values and peerconn.Piece for Piece messages.
func (c *Conn) Messages() <-chan interface{} { return c.reader.Messages() }

// SendMessage queues msg for the writer pump.
func (c *Conn) SendMessage(msg peerprotocol.Message) {
	c.writer.SendMessage(msg, c.closeC)
}

// SendPiece queues a piece header and its block for the writer pump.
func (c *Conn) SendPiece(header peerprotocol.PieceMessage, block []byte) {
	c.writer.SendPiece(header, block, c.closeC)
}

// Logger returns the logger passed to New; Conn does not add the remote
// address or any other per-connection tag to it.
func (c *Conn) Logger() logger.Logger { return c.log }

// Close stops both pumps and closes the underlying transport, blocking
// until both have returned.
func (c *Conn) Close() {
	close(c.closeC)
	<-c.closedC
}

// Run starts the reader and writer pumps and blocks until one of them
// exits or Close is called, then tears down the other and the transport.
func (c *Conn) Run() {
	defer close(c.closedC)

	readerDone := make(chan struct{})
	go func() {
		c.reader.run(c.closeC)
		close(readerDone)
	}()

	writerDone := make(chan struct{})
	go func() {
		c.writer.run(c.closeC)
		close(writerDone)
	}()

	select {
	case <-c.closeC:
		c.transport.Close()
		<-readerDone
		<-writerDone
	case <-readerDone:
		c.transport.Close()
		<-writerDone
	case <-writerDone:
		c.transport.Close()
		<-readerDone
	}
}
