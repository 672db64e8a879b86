// Package peerprotocol implements the BitTorrent wire protocol message set
// (BEP 3), the fast extension (BEP 6), and the extension protocol (BEP 10)
// including ut_metadata (BEP 9) and ut_pex (BEP 11).
package peerprotocol

import (
	"errors"
	"io"
)

// Pstr is the protocol string sent in the handshake.
const Pstr = "BitTorrent protocol"

// HandshakeLength is the fixed size of the handshake message on the wire:
// 1 (pstrlen) + 19 (pstr) + 8 (reserved) + 20 (info hash) + 20 (peer id).
const HandshakeLength = 1 + len(Pstr) + 8 + 20 + 20

// Handshake is the 68-byte message exchanged first on every connection.
type Handshake struct {
	Reserved [8]byte
	InfoHash [20]byte
	PeerID   [20]byte
}

// FastExtensionBit and ExtensionProtocolBit are bit positions within the
// reserved field, counted from the most significant bit of the first byte
// (bit 0) to the least significant bit of the last byte (bit 63).
const (
	ExtensionProtocolBit = 43
	FastExtensionBit     = 61
)

func setReservedBit(reserved *[8]byte, bit uint) {
	reserved[bit/8] |= 1 << (7 - bit%8)
}

func testReservedBit(reserved [8]byte, bit uint) bool {
	return reserved[bit/8]&(1<<(7-bit%8)) != 0
}

// NewHandshake builds a handshake advertising the fast extension and the
// extension protocol, the only two reserved bits this engine sets.
func NewHandshake(infoHash, peerID [20]byte) Handshake {
	h := Handshake{InfoHash: infoHash, PeerID: peerID}
	setReservedBit(&h.Reserved, FastExtensionBit)
	setReservedBit(&h.Reserved, ExtensionProtocolBit)
	return h
}

// FastExtension reports whether the peer advertised BEP 6 support.
func (h Handshake) FastExtension() bool {
	return testReservedBit(h.Reserved, FastExtensionBit)
}

// ExtensionProtocol reports whether the peer advertised BEP 10 support.
func (h Handshake) ExtensionProtocol() bool {
	return testReservedBit(h.Reserved, ExtensionProtocolBit)
}

// Write serializes the handshake to w.
func (h Handshake) Write(w io.Writer) error {
	buf := make([]byte, 0, HandshakeLength)
	buf = append(buf, byte(len(Pstr)))
	buf = append(buf, Pstr...)
	buf = append(buf, h.Reserved[:]...)
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	_, err := w.Write(buf)
	return err
}

// ReadHandshake reads and validates a handshake from r.
func ReadHandshake(r io.Reader) (Handshake, error) {
	var h Handshake
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return h, err
	}
	if int(lenBuf[0]) != len(Pstr) {
		return h, errors.New("peerprotocol: invalid pstrlen in handshake")
	}
	pstr := make([]byte, lenBuf[0])
	if _, err := io.ReadFull(r, pstr); err != nil {
		return h, err
	}
	if string(pstr) != Pstr {
		return h, errors.New("peerprotocol: unsupported protocol string in handshake")
	}
	if _, err := io.ReadFull(r, h.Reserved[:]); err != nil {
		return h, err
	}
	if _, err := io.ReadFull(r, h.InfoHash[:]); err != nil {
		return h, err
	}
	if _, err := io.ReadFull(r, h.PeerID[:]); err != nil {
		return h, err
	}
	return h, nil
}
