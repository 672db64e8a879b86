package peerconn

import (
	"encoding/binary"
	"io"

	"github.com/tearfur/transmission/internal/peerprotocol"
)

// pieceFrame writes a Piece message (8-byte header + block) as a single
// length-prefixed frame without copying header and block into one buffer
// first, since blocks run up to 16 KiB and this write happens per-block.
type pieceFrame struct {
	header []byte
	id     peerprotocol.MessageID
	block  []byte
}

func (f pieceFrame) writeTo(w io.Writer) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(1+len(f.header)+len(f.block)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(f.id)}); err != nil {
		return err
	}
	if _, err := w.Write(f.header); err != nil {
		return err
	}
	_, err := w.Write(f.block)
	return err
}
