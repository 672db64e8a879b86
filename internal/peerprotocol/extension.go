package peerprotocol

import (
	"bytes"
	"net"

	"github.com/zeebo/bencode"
)

// ExtensionHandshake is the payload of the BEP 10 handshake message
// (extended message id 0), negotiating which sub-protocols (ut_metadata,
// ut_pex) the peer supports and at which message ids.
type ExtensionHandshake struct {
	M            map[string]byte `bencode:"m"`
	MetadataSize uint32          `bencode:"metadata_size,omitempty"`
	Version      string          `bencode:"v,omitempty"`
	YourIP       []byte          `bencode:"yourip,omitempty"`
	Reqq         int             `bencode:"reqq,omitempty"`
}

// NewExtensionHandshake builds the handshake this client sends, offering
// ut_metadata and ut_pex and reporting the peer's apparent public IP per
// BEP 24.
func NewExtensionHandshake(metadataSize uint32, version string, yourIP net.IP) ExtensionHandshake {
	h := ExtensionHandshake{
		M: map[string]byte{
			ExtensionKeyMetadata: 1,
			ExtensionKeyPEX:      2,
		},
		MetadataSize: metadataSize,
		Version:      version,
		Reqq:         250,
	}
	if ip4 := yourIP.To4(); ip4 != nil {
		h.YourIP = ip4
	}
	return h
}

// ExtensionMetadataMessageType enumerates ut_metadata sub-message types.
type ExtensionMetadataMessageType int

const (
	ExtensionMetadataMessageTypeRequest ExtensionMetadataMessageType = iota
	ExtensionMetadataMessageTypeData
	ExtensionMetadataMessageTypeReject
)

// ExtensionMetadataMessage is the bencoded portion of a ut_metadata
// message; for Data messages the actual metadata bytes follow the
// bencoded dict as a raw trailer on the wire.
type ExtensionMetadataMessage struct {
	Type      ExtensionMetadataMessageType `bencode:"msg_type"`
	Piece     uint32                       `bencode:"piece"`
	TotalSize uint32                       `bencode:"total_size,omitempty"`
}

// ExtensionPEXMessage is the bencoded ut_pex message: compact peer lists
// added/dropped since the previous message. Only the IPv4 lists are
// decoded; the IPv6 keys (added6, dropped6) are ignored.
type ExtensionPEXMessage struct {
	Added      []byte `bencode:"added"`
	AddedFlags []byte `bencode:"added.f,omitempty"`
	Dropped    []byte `bencode:"dropped,omitempty"`
}

// EncodeExtensionHandshake bencodes h for use as an ExtensionMessage payload.
func EncodeExtensionHandshake(h ExtensionHandshake) ([]byte, error) {
	return bencode.EncodeBytes(h)
}

// DecodeExtensionHandshake parses the payload of an extended handshake
// message (extended message id 0).
func DecodeExtensionHandshake(payload []byte) (ExtensionHandshake, error) {
	var h ExtensionHandshake
	err := bencode.NewDecoder(bytes.NewReader(payload)).Decode(&h)
	return h, err
}

// EncodeExtensionMetadataMessage bencodes msg; the caller appends any raw
// metadata piece bytes (for Data messages) after the returned bytes.
func EncodeExtensionMetadataMessage(msg ExtensionMetadataMessage) ([]byte, error) {
	return bencode.EncodeBytes(msg)
}

// DecodeExtensionMetadataMessage parses the bencoded prefix of a
// ut_metadata message payload, returning the dict plus however many
// trailing bytes followed it (the metadata piece itself, for Data
// messages).
func DecodeExtensionMetadataMessage(payload []byte) (ExtensionMetadataMessage, []byte, error) {
	var msg ExtensionMetadataMessage
	r := bytes.NewReader(payload)
	dec := bencode.NewDecoder(r)
	if err := dec.Decode(&msg); err != nil {
		return msg, nil, err
	}
	rest := payload[len(payload)-r.Len():]
	return msg, rest, nil
}
