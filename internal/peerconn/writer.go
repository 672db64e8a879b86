package peerconn

import (
	"io"
	"time"

	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/peerprotocol"
)

// keepAliveInterval matches the two-minute keep-alive interval most
// BitTorrent clients expect.
const keepAliveInterval = 2 * time.Minute

// outgoing is queued onto the writer; msg is nil for a keep-alive.
type outgoing struct {
	msg  peerprotocol.Message
	data []byte // appended verbatim after msg's encoding, used for piece blocks
}

type writer struct {
	conn   io.Writer
	log    logger.Logger
	sendC  chan outgoing
}

func newWriter(conn io.Writer, l logger.Logger) *writer {
	return &writer{conn: conn, log: l, sendC: make(chan outgoing)}
}

// SendMessage queues msg for writing. It blocks until the writer's pump
// accepts it or closeC fires, so a stalled peer applies backpressure
// instead of letting queued messages grow without bound.
func (w *writer) SendMessage(msg peerprotocol.Message, closeC chan struct{}) {
	select {
	case w.sendC <- outgoing{msg: msg}:
	case <-closeC:
	}
}

// SendPiece queues a PieceMessage header followed by the raw block bytes.
func (w *writer) SendPiece(msg peerprotocol.PieceMessage, block []byte, closeC chan struct{}) {
	select {
	case w.sendC <- outgoing{msg: msg, data: block}:
	case <-closeC:
	}
}

func (w *writer) run(closeC chan struct{}) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case out := <-w.sendC:
			if err := w.write(out); err != nil {
				w.log.Debugln("peer write error:", err)
				return
			}
		case <-ticker.C:
			if err := peerprotocol.WriteKeepAlive(w.conn); err != nil {
				w.log.Debugln("peer keep-alive error:", err)
				return
			}
		case <-closeC:
			return
		}
	}
}

func (w *writer) write(out outgoing) error {
	if len(out.data) == 0 {
		return peerprotocol.WriteMessage(w.conn, out.msg)
	}
	// PieceMessage with a trailing block: write header and block as one
	// length-prefixed frame without copying the block into a new buffer.
	full := pieceFrame{header: out.msg.Encode(), id: out.msg.ID(), block: out.data}
	return full.writeTo(w.conn)
}
