// Package btconn dials and accepts BitTorrent connections, handling the
// optional MSE/PE encryption negotiation (internal/mse) that precedes the
// plaintext 68-byte handshake (internal/peerprotocol), generalized from
// the teacher's rwConn wrapper which only ever wrapped a plaintext pair.
package btconn

import (
	"crypto/rc4"
	"errors"
	"io"
	"net"

	"github.com/tearfur/transmission/internal/config"
	"github.com/tearfur/transmission/internal/peerprotocol"
)

var (
	ErrInvalidInfoHash = errors.New("btconn: invalid info hash")
	ErrOwnConnection   = errors.New("btconn: dropped own connection")
	ErrNotEncrypted    = errors.New("btconn: connection is not encrypted but encryption is required")
)

// readWriter composes a possibly-distinct reader and writer (RC4
// encrypt/decrypt streams) behind one io.ReadWriter.
type readWriter struct {
	io.Reader
	io.Writer
}

// rwConn layers rw (plaintext or RC4-decoded) over a net.Conn so the rest
// of the stack can keep treating the connection as a plain net.Conn while
// the actual bytes on the wire may be obfuscated.
type rwConn struct {
	rw io.ReadWriter
	net.Conn
}

func (c *rwConn) Read(p []byte) (int, error)  { return c.rw.Read(p) }
func (c *rwConn) Write(p []byte) (int, error) { return c.rw.Write(p) }

// Result is a negotiated connection ready for peerconn.New.
type Result struct {
	Conn              net.Conn
	Handshake         peerprotocol.Handshake
	Encrypted         bool
	FastExtension     bool
	ExtensionProtocol bool
}

// DialOutgoing completes the outgoing handshake sequence on conn: an MSE
// negotiation (unless mode is "tolerated", which always starts
// plaintext) followed by the plaintext handshake, and verifies the
// remote's info hash. The remote's peer id is not known in advance (for
// peers sourced from DHT/PEX we only have an address) and is reported
// back via Result.Handshake.PeerID.
func DialOutgoing(conn net.Conn, infoHash [20]byte, mode config.EncryptionMode, ourID [20]byte) (*Result, error) {
	var stream io.ReadWriter = conn
	encrypted := false

	if mode != config.EncryptionTolerated {
		rw, err := negotiateOutgoingMSE(conn, infoHash[:])
		if err != nil {
			if mode == config.EncryptionRequired {
				return nil, err
			}
			stream = conn // preferred-but-failed: fall back to plaintext
		} else {
			stream = rw
			encrypted = true
		}
	}

	hs := peerprotocol.NewHandshake(infoHash, ourID)
	if err := hs.Write(stream); err != nil {
		return nil, err
	}
	theirs, err := peerprotocol.ReadHandshake(stream)
	if err != nil {
		return nil, err
	}
	if theirs.InfoHash != infoHash {
		return nil, ErrInvalidInfoHash
	}
	if theirs.PeerID == ourID {
		return nil, ErrOwnConnection
	}
	if mode == config.EncryptionRequired && !encrypted {
		return nil, ErrNotEncrypted
	}

	return &Result{
		Conn:              &rwConn{rw: stream, Conn: conn},
		Handshake:         theirs,
		Encrypted:         encrypted,
		FastExtension:     theirs.FastExtension(),
		ExtensionProtocol: theirs.ExtensionProtocol(),
	}, nil
}

// AcceptIncoming completes the incoming handshake sequence: it peeks the
// first byte to distinguish a plaintext handshake from an MSE
// negotiation, then dispatches accordingly. knownInfoHashes lists the
// info hashes of torrents currently served (MSE hides the info hash
// inside the negotiation, so the responder must recover it by trial);
// hasInfoHash re-checks the plaintext handshake's info hash the same way.
func AcceptIncoming(conn net.Conn, knownInfoHashes func() [][20]byte, mode config.EncryptionMode, ourID [20]byte) (*Result, error) {
	var first [1]byte
	if _, err := io.ReadFull(conn, first[:]); err != nil {
		return nil, err
	}

	hasInfoHash := func(ih [20]byte) bool {
		for _, candidate := range knownInfoHashes() {
			if candidate == ih {
				return true
			}
		}
		return false
	}

	var stream io.ReadWriter
	encrypted := false
	if first[0] == byte(len(peerprotocol.Pstr)) {
		if mode == config.EncryptionRequired {
			return nil, ErrNotEncrypted
		}
		stream = &prefixedReader{prefix: first[:], r: conn, w: conn}
	} else {
		rw, _, err := negotiateIncomingMSE(conn, first[0], knownInfoHashes)
		if err != nil {
			return nil, err
		}
		stream = rw
		encrypted = true
	}

	hs, err := peerprotocol.ReadHandshake(stream)
	if err != nil {
		return nil, err
	}
	if !hasInfoHash(hs.InfoHash) {
		return nil, ErrInvalidInfoHash
	}
	if hs.PeerID == ourID {
		return nil, ErrOwnConnection
	}
	reply := peerprotocol.NewHandshake(hs.InfoHash, ourID)
	if err := reply.Write(stream); err != nil {
		return nil, err
	}

	return &Result{
		Conn:              &rwConn{rw: stream, Conn: conn},
		Handshake:         hs,
		Encrypted:         encrypted,
		FastExtension:     hs.FastExtension(),
		ExtensionProtocol: hs.ExtensionProtocol(),
	}, nil
}

// prefixedReader re-prepends a byte already consumed while peeking the
// stream type, so the handshake parser sees an unbroken stream.
type prefixedReader struct {
	prefix []byte
	r      io.Reader
	w      io.Writer
}

func (p *prefixedReader) Read(b []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(b, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.r.Read(b)
}

func (p *prefixedReader) Write(b []byte) (int, error) { return p.w.Write(b) }

func rc4Stream(conn net.Conn, encryptKey, decryptKey *rc4.Cipher) io.ReadWriter {
	return &readWriter{
		Reader: &rc4Reader{c: decryptKey, r: conn},
		Writer: &rc4Writer{c: encryptKey, w: conn},
	}
}

type rc4Reader struct {
	c *rc4.Cipher
	r io.Reader
}

func (r *rc4Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.c.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

type rc4Writer struct {
	c *rc4.Cipher
	w io.Writer
}

func (w *rc4Writer) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	w.c.XORKeyStream(out, p)
	return w.w.Write(out)
}
