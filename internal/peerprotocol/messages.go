package peerprotocol

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// MessageID is the single-byte tag identifying a peer wire message.
type MessageID byte

const (
	Choke MessageID = iota
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	Piece
	Cancel
	Port

	// Fast extension (BEP 6).
	Suggest     MessageID = 13
	HaveAll     MessageID = 14
	HaveNone    MessageID = 15
	Reject      MessageID = 16
	AllowedFast MessageID = 17

	// Extension protocol (BEP 10).
	Extension MessageID = 20
)

// ErrUnknownMessage is returned by peerconn's message decoder when an
// unrecognized message tag is encountered; callers treat this as a
// protocol violation (spec §4.6/§7).
var ErrUnknownMessage = errors.New("peerprotocol: unknown message id")

// MaxMessageLength bounds a single message's declared length so a peer
// cannot force unbounded buffering; the request/piece block size used
// throughout this engine is 16 KiB, so pieces top out well under this.
const MaxMessageLength = 1 << 20

// Message is the common interface for all wire messages we send.
type Message interface {
	ID() MessageID
	Encode() []byte
}

type simple struct{ id MessageID }

func (m simple) ID() MessageID  { return m.id }
func (m simple) Encode() []byte { return nil }

type (
	ChokeMessage         struct{ simple }
	UnchokeMessage       struct{ simple }
	InterestedMessage    struct{ simple }
	NotInterestedMessage struct{ simple }
	HaveAllMessage       struct{ simple }
	HaveNoneMessage      struct{ simple }
)

func NewChokeMessage() ChokeMessage                 { return ChokeMessage{simple{Choke}} }
func NewUnchokeMessage() UnchokeMessage             { return UnchokeMessage{simple{Unchoke}} }
func NewInterestedMessage() InterestedMessage       { return InterestedMessage{simple{Interested}} }
func NewNotInterestedMessage() NotInterestedMessage { return NotInterestedMessage{simple{NotInterested}} }
func NewHaveAllMessage() HaveAllMessage             { return HaveAllMessage{simple{HaveAll}} }
func NewHaveNoneMessage() HaveNoneMessage           { return HaveNoneMessage{simple{HaveNone}} }

// HaveMessage announces that we now have piece Index.
type HaveMessage struct{ Index uint32 }

func (m HaveMessage) ID() MessageID { return Have }
func (m HaveMessage) Encode() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, m.Index)
	return b
}

// BitfieldMessage carries the sender's full piece bitfield.
type BitfieldMessage struct{ Data []byte }

func (m BitfieldMessage) ID() MessageID  { return Bitfield }
func (m BitfieldMessage) Encode() []byte { return m.Data }

// RequestMessage asks for a block within a piece.
type RequestMessage struct {
	Index, Begin, Length uint32
}

func (m RequestMessage) ID() MessageID { return Request }
func (m RequestMessage) Encode() []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	binary.BigEndian.PutUint32(b[8:12], m.Length)
	return b
}

// CancelMessage cancels a previously sent RequestMessage.
type CancelMessage struct {
	Index, Begin, Length uint32
}

func (m CancelMessage) ID() MessageID  { return Cancel }
func (m CancelMessage) Encode() []byte { return RequestMessage(m).Encode() }

// RejectMessage is the fast-extension reply to a request we will not
// honor (BEP 6).
type RejectMessage struct {
	Index, Begin, Length uint32
}

func (m RejectMessage) ID() MessageID  { return Reject }
func (m RejectMessage) Encode() []byte { return RequestMessage(m).Encode() }

// AllowedFastMessage grants the peer permission to request Index even
// while choked (BEP 6).
type AllowedFastMessage struct{ Index uint32 }

func (m AllowedFastMessage) ID() MessageID  { return AllowedFast }
func (m AllowedFastMessage) Encode() []byte { return HaveMessage{m.Index}.Encode() }

// SuggestMessage suggests a piece the peer might want to request (BEP 6).
type SuggestMessage struct{ Index uint32 }

func (m SuggestMessage) ID() MessageID  { return Suggest }
func (m SuggestMessage) Encode() []byte { return HaveMessage{m.Index}.Encode() }

// PortMessage advertises our DHT node port (BEP 5).
type PortMessage struct{ Port uint16 }

func (m PortMessage) ID() MessageID { return Port }
func (m PortMessage) Encode() []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, m.Port)
	return b
}

// PieceMessage is the header of a piece message; the block payload
// follows separately on the wire via peerconn's writer (pieceFrame) so
// it never has to be copied into this struct.
type PieceMessage struct {
	Index, Begin uint32
}

func (m PieceMessage) ID() MessageID { return Piece }
func (m PieceMessage) Encode() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], m.Index)
	binary.BigEndian.PutUint32(b[4:8], m.Begin)
	return b
}

// Extension message sub-ids we negotiate via the BEP 10 handshake.
const (
	ExtensionIDHandshake byte = 0
)

const (
	ExtensionKeyMetadata = "ut_metadata"
	ExtensionKeyPEX      = "ut_pex"
)

// ExtensionMessage wraps a BEP 10 extended message: a sub-protocol id
// followed by a bencoded (or, for ut_metadata piece transfers, bencode +
// raw trailer) payload.
type ExtensionMessage struct {
	ExtendedMessageID byte
	Payload           []byte
}

func (m ExtensionMessage) ID() MessageID { return Extension }
func (m ExtensionMessage) Encode() []byte {
	b := make([]byte, 1+len(m.Payload))
	b[0] = m.ExtendedMessageID
	copy(b[1:], m.Payload)
	return b
}

// ReadMessage reads one length-prefixed message from r. A zero-length
// message is a keep-alive and is reported via ok=false with a nil error.
func ReadMessage(r io.Reader) (id MessageID, payload []byte, ok bool, err error) {
	var lenBuf [4]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, false, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return 0, nil, false, nil // keep-alive
	}
	if length > MaxMessageLength {
		return 0, nil, false, errors.New("peerprotocol: message too large")
	}
	buf := make([]byte, length)
	if _, err = io.ReadFull(r, buf); err != nil {
		return 0, nil, false, err
	}
	return MessageID(buf[0]), buf[1:], true, nil
}

// WriteMessage writes the length-prefixed encoding of msg to w.
func WriteMessage(w io.Writer, msg Message) error {
	payload := msg.Encode()
	out := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(1+len(payload)))
	out[4] = byte(msg.ID())
	copy(out[5:], payload)
	_, err := w.Write(out)
	return err
}

// WriteKeepAlive writes the zero-length keep-alive message.
func WriteKeepAlive(w io.Writer) error {
	_, err := w.Write([]byte{0, 0, 0, 0})
	return err
}

// AddrFromCompact decodes a 6-byte (IPv4) compact peer address as used in
// tracker responses and ut_pex messages.
func AddrFromCompact(b []byte) *net.TCPAddr {
	if len(b) != 6 {
		return nil
	}
	return &net.TCPAddr{
		IP:   net.IP(append([]byte(nil), b[:4]...)),
		Port: int(binary.BigEndian.Uint16(b[4:6])),
	}
}

// CompactFromAddr encodes addr as a 6-byte compact peer address.
func CompactFromAddr(addr *net.TCPAddr) []byte {
	b := make([]byte, 6)
	ip4 := addr.IP.To4()
	copy(b[:4], ip4)
	binary.BigEndian.PutUint16(b[4:6], uint16(addr.Port))
	return b
}
