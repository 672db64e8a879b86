// Package infodownloader fetches a torrent's info dictionary from a peer
// piece by piece over the ut_metadata extension (BEP 9), the mechanism a
// magnet link needs before piece verification or download can begin.
package infodownloader

import (
	"fmt"

	"github.com/tearfur/transmission/internal/peer"
	"github.com/tearfur/transmission/internal/peerprotocol"
)

const blockSize = 16 * 1024

// InfoDownloader downloads every block of a peer's advertised metadata
// and assembles it into Bytes, ready for a metainfo.Info hash check.
type InfoDownloader struct {
	Peer  *peer.Peer
	Bytes []byte

	blocks         []block
	requested      map[uint32]struct{}
	nextBlockIndex uint32
}

type block struct {
	size uint32
}

// New prepares a downloader for pe, which must already have completed its
// BEP 10 extension handshake advertising a metadata size.
func New(pe *peer.Peer) *InfoDownloader {
	d := &InfoDownloader{
		Peer:      pe,
		Bytes:     make([]byte, pe.ExtensionHandshake.MetadataSize),
		requested: make(map[uint32]struct{}),
	}
	d.blocks = d.createBlocks()
	return d
}

// GotBlock records a metadata piece received via an ut_metadata Data
// message.
func (d *InfoDownloader) GotBlock(index uint32, data []byte) error {
	if index >= uint32(len(d.blocks)) {
		return fmt.Errorf("infodownloader: invalid piece index %d", index)
	}
	if _, ok := d.requested[index]; !ok {
		return fmt.Errorf("infodownloader: unrequested piece index %d", index)
	}
	b := &d.blocks[index]
	if uint32(len(data)) != b.size {
		return fmt.Errorf("infodownloader: invalid piece size %d for index %d", len(data), index)
	}
	delete(d.requested, index)
	begin := index * blockSize
	copy(d.Bytes[begin:begin+b.size], data)
	return nil
}

func (d *InfoDownloader) createBlocks() []block {
	metadataSize := uint32(len(d.Bytes))
	numBlocks := metadataSize / blockSize
	mod := metadataSize % blockSize
	if mod != 0 {
		numBlocks++
	}
	blocks := make([]block, numBlocks)
	for i := range blocks {
		blocks[i] = block{size: blockSize}
	}
	if mod != 0 && len(blocks) > 0 {
		blocks[len(blocks)-1].size = mod
	}
	return blocks
}

// RequestBlocks sends ut_metadata requests until queueLength are
// outstanding or every block has been requested.
func (d *InfoDownloader) RequestBlocks(queueLength int) error {
	extendedID, ok := d.Peer.ExtensionHandshake.M[peerprotocol.ExtensionKeyMetadata]
	if !ok {
		return fmt.Errorf("infodownloader: peer does not support ut_metadata")
	}
	for ; d.nextBlockIndex < uint32(len(d.blocks)) && len(d.requested) < queueLength; d.nextBlockIndex++ {
		payload, err := peerprotocol.EncodeExtensionMetadataMessage(peerprotocol.ExtensionMetadataMessage{
			Type:  peerprotocol.ExtensionMetadataMessageTypeRequest,
			Piece: d.nextBlockIndex,
		})
		if err != nil {
			return err
		}
		d.Peer.SendMessage(peerprotocol.ExtensionMessage{ExtendedMessageID: extendedID, Payload: payload})
		d.requested[d.nextBlockIndex] = struct{}{}
	}
	return nil
}

// Done reports whether every block has been requested and received.
func (d *InfoDownloader) Done() bool {
	return d.nextBlockIndex == uint32(len(d.blocks)) && len(d.requested) == 0
}
