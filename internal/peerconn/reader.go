package peerconn

import (
	"encoding/binary"
	"io"

	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/peerprotocol"
)

// Piece is the decoded form of a PieceMessage: the header plus the block
// bytes that followed it on the wire.
type Piece struct {
	peerprotocol.PieceMessage
	Data []byte
}

// reader pumps decoded messages off a connection onto a channel until the
// connection errors or is closed, mirroring the read-loop-feeds-a-channel
// shape the original engine uses for one goroutine per direction.
type reader struct {
	conn               io.Reader
	fastExtension      bool
	extensionProtocol  bool
	log                logger.Logger
	messages           chan interface{}
}

func newReader(conn io.Reader, fastExtension, extensionProtocol bool, l logger.Logger) *reader {
	return &reader{
		conn:              conn,
		fastExtension:     fastExtension,
		extensionProtocol: extensionProtocol,
		log:               l,
		messages:          make(chan interface{}),
	}
}

func (r *reader) Messages() <-chan interface{} { return r.messages }

// run decodes messages until closeC fires or the connection errors. It
// never closes r.messages, and neither does Conn; receivers learn that
// the connection ended from Conn.Done instead.
func (r *reader) run(closeC chan struct{}) {
	for {
		id, payload, ok, err := peerprotocol.ReadMessage(r.conn)
		if err != nil {
			r.log.Debugln("peer read error:", err)
			return
		}
		if !ok {
			continue // keep-alive
		}
		msg, err := decode(id, payload, r.fastExtension, r.extensionProtocol)
		if err != nil {
			r.log.Debugln("peer message decode error:", err)
			return
		}
		select {
		case r.messages <- msg:
		case <-closeC:
			return
		}
	}
}

func decode(id peerprotocol.MessageID, payload []byte, fastExtension, extensionProtocol bool) (interface{}, error) {
	switch id {
	case peerprotocol.Choke:
		return peerprotocol.NewChokeMessage(), nil
	case peerprotocol.Unchoke:
		return peerprotocol.NewUnchokeMessage(), nil
	case peerprotocol.Interested:
		return peerprotocol.NewInterestedMessage(), nil
	case peerprotocol.NotInterested:
		return peerprotocol.NewNotInterestedMessage(), nil
	case peerprotocol.Have:
		return peerprotocol.HaveMessage{Index: binary.BigEndian.Uint32(payload)}, nil
	case peerprotocol.Bitfield:
		return peerprotocol.BitfieldMessage{Data: payload}, nil
	case peerprotocol.Request:
		return peerprotocol.RequestMessage{
			Index:  binary.BigEndian.Uint32(payload[0:4]),
			Begin:  binary.BigEndian.Uint32(payload[4:8]),
			Length: binary.BigEndian.Uint32(payload[8:12]),
		}, nil
	case peerprotocol.Cancel:
		return peerprotocol.CancelMessage{
			Index:  binary.BigEndian.Uint32(payload[0:4]),
			Begin:  binary.BigEndian.Uint32(payload[4:8]),
			Length: binary.BigEndian.Uint32(payload[8:12]),
		}, nil
	case peerprotocol.Piece:
		return Piece{
			PieceMessage: peerprotocol.PieceMessage{
				Index: binary.BigEndian.Uint32(payload[0:4]),
				Begin: binary.BigEndian.Uint32(payload[4:8]),
			},
			Data: payload[8:],
		}, nil
	case peerprotocol.Port:
		return peerprotocol.PortMessage{Port: binary.BigEndian.Uint16(payload)}, nil
	case peerprotocol.HaveAll:
		if !fastExtension {
			return nil, errUnexpectedFastMessage
		}
		return peerprotocol.NewHaveAllMessage(), nil
	case peerprotocol.HaveNone:
		if !fastExtension {
			return nil, errUnexpectedFastMessage
		}
		return peerprotocol.NewHaveNoneMessage(), nil
	case peerprotocol.Reject:
		if !fastExtension {
			return nil, errUnexpectedFastMessage
		}
		return peerprotocol.RejectMessage{
			Index:  binary.BigEndian.Uint32(payload[0:4]),
			Begin:  binary.BigEndian.Uint32(payload[4:8]),
			Length: binary.BigEndian.Uint32(payload[8:12]),
		}, nil
	case peerprotocol.AllowedFast:
		if !fastExtension {
			return nil, errUnexpectedFastMessage
		}
		return peerprotocol.AllowedFastMessage{Index: binary.BigEndian.Uint32(payload)}, nil
	case peerprotocol.Suggest:
		if !fastExtension {
			return nil, errUnexpectedFastMessage
		}
		return peerprotocol.SuggestMessage{Index: binary.BigEndian.Uint32(payload)}, nil
	case peerprotocol.Extension:
		if !extensionProtocol {
			return nil, errUnexpectedExtensionMessage
		}
		return peerprotocol.ExtensionMessage{ExtendedMessageID: payload[0], Payload: payload[1:]}, nil
	default:
		return nil, peerprotocol.ErrUnknownMessage
	}
}
