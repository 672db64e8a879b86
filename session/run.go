package session

import (
	"bytes"
	"errors"
	"net"
	"time"

	"github.com/zeebo/bencode"

	"github.com/tearfur/transmission/internal/addrlist"
	"github.com/tearfur/transmission/internal/allocator"
	"github.com/tearfur/transmission/internal/announcer"
	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/handshaker/outgoinghandshaker"
	"github.com/tearfur/transmission/internal/infodownloader"
	"github.com/tearfur/transmission/internal/metainfo"
	"github.com/tearfur/transmission/internal/peer"
	"github.com/tearfur/transmission/internal/peerconn"
	"github.com/tearfur/transmission/internal/peerprotocol"
	"github.com/tearfur/transmission/internal/piece"
	"github.com/tearfur/transmission/internal/piecedownloader"
	"github.com/tearfur/transmission/internal/piecewriter"
	"github.com/tearfur/transmission/internal/tracker"
	"github.com/tearfur/transmission/internal/transport"
	"github.com/tearfur/transmission/internal/verifier"
)

// runOnce services exactly one event off the torrent's select loop,
// returning true once the torrent has fully closed and run() should
// stop looping.
func (t *torrent) runOnce() bool {
	select {
	case doneC := <-t.closeC:
		t.closeTorrent()
		close(doneC)
		return true

	case <-t.startCommandC:
		t.start()
	case <-t.stopCommandC:
		t.stop(nil)

	case req := <-t.statsCommandC:
		req.Response <- t.stats()
	case req := <-t.trackersCommandC:
		req.Response <- t.trackerStats()
	case req := <-t.peersCommandC:
		req.Response <- t.peerStats()

	case fn := <-t.applyC:
		fn(t)

	case addrs := <-t.addPeersCommandC:
		t.addrList.Push(addrs, addrlist.Manual)
		t.dialAddresses()

	case ip := <-t.incomingPeerC:
		t.startPeer(ip.conn, ip.id, ip.extensions, false)
	case h := <-t.outgoingHandshakerResultC:
		t.handleOutgoingHandshakeResult(h)

	case m := <-t.messages:
		t.handlePeerMessage(m)
	case m := <-t.pieceMessages:
		t.handlePieceMessage(m)
	case pe := <-t.peerDisconnectedC:
		t.closePeer(pe)

	case r := <-t.pieceDownloaderResult:
		t.handlePieceDownloaderResult(r)

	case d := <-t.infoDownloaderResultC:
		t.handleInfoDownloaderResult(d)

	case addrs := <-t.addrsFromTrackers:
		t.addrList.Push(addrs, addrlist.Tracker)
		t.dialAddresses()
	case addrs := <-t.dhtPeersC:
		t.addrList.Push(addrs, addrlist.DHT)
		t.dialAddresses()
	case req := <-t.announcerRequestC:
		req.Response <- announcer.Response{Torrent: t.announceTorrent()}

	case p := <-t.allocatorProgressC:
		t.bytesAllocated = p.AllocatedSize
	case r := <-t.allocatorResultC:
		t.handleAllocatorResult(r)

	case p := <-t.verifierProgressC:
		t.checkedPieces = p.Checked
	case r := <-t.verifierResultC:
		t.handleVerifierResult(r)

	case w := <-t.pieceWriterResultC:
		t.handlePieceWriterResult(w)

	case <-t.unchokeTimerC:
		t.tickUnchoke()
	case <-t.optimisticUnchokeTimerC:
		t.tickOptimisticUnchoke()
	case <-t.speedCounterTickerC:
		// EWMA decay happens lazily inside peer.Peer's rate getters; this
		// tick just keeps the loop waking up for stats snapshots.
	case <-t.statsWriteTickerC:
		t.writeResumeStats()
	case <-t.resumeWriteTimerC:
		t.writeResumeBitfield()
		t.resumeWriteTimer = nil
		t.resumeWriteTimerC = nil

	case err := <-t.errC:
		t.stop(err)
	}
	return false
}

func (t *torrent) start() {
	if t.info == nil {
		t.dialAddresses()
		return
	}
	if t.verifier != nil || t.allocator != nil {
		return // already starting up
	}
	if t.bitfield != nil && t.bitfield.All() {
		t.onTorrentComplete()
	}
	t.startVerifier()
	t.startAnnouncers()
	t.dialAddresses()
}

func (t *torrent) stop(err error) {
	t.lastError = err
	if t.verifier != nil {
		t.verifier.Stop()
		t.verifier = nil
	}
	if t.allocator != nil {
		t.allocator.Stop()
		t.allocator = nil
	}
	for pe := range t.peers {
		pe.Close()
	}
	for h := range t.outgoingHandshakers {
		h.Conn.Close()
	}
	for _, a := range t.announcers {
		a.Close()
	}
	t.announcers = nil
	if t.dhtAnnouncer != nil {
		t.dhtAnnouncer.Close()
	}
	t.pieceCache.Flush()
	if t.resume != nil {
		t.writeResumeStats()
		t.writeResumeBitfield()
	}
}

func (t *torrent) startVerifier() {
	if t.bitfield != nil && t.bitfield.Count() > 0 {
		return // resumed from a saved bitfield, trust it instead of rehashing
	}
	t.verifier = verifier.New(t.pieces, t.storage)
	t.verifierProgressC = t.verifier.ProgressC
	t.verifierResultC = t.verifier.ResultC
	go t.verifier.Run()
}

func (t *torrent) handleVerifierResult(r *verifier.Result) {
	t.verifier = nil
	if r.Error != nil {
		t.errC <- r.Error
		return
	}
	t.bitfield = r.Bitfield
	if t.bitfield.All() {
		t.onTorrentComplete()
	}
}

func (t *torrent) startAllocator() {
	if t.allocator != nil {
		return
	}
	dir := t.storage.(interface{ Dest() string }).Dest()
	t.allocator = allocator.New(t.info, dir)
	t.allocatorProgressC = t.allocator.ProgressC
	t.allocatorResultC = t.allocator.ResultC
	go t.allocator.Run()
}

func (t *torrent) handleAllocatorResult(r *allocator.Result) {
	t.allocator = nil
	if r.Error != nil {
		t.errC <- r.Error
	}
}

func (t *torrent) startAnnouncers() {
	if len(t.announcers) > 0 {
		return
	}
	for _, tr := range t.trackers {
		a := announcer.NewPeriodicalAnnouncer(tr, t.announcerRequestC, t.log)
		t.announcers = append(t.announcers, a)
		go t.pumpAnnouncerPeers(a)
	}
	if t.dhtAnnouncer != nil {
		go t.pumpDHTPeers()
	}
}

func (t *torrent) pumpAnnouncerPeers(a *announcer.PeriodicalAnnouncer) {
	for addrs := range a.PeersC {
		select {
		case t.addrsFromTrackers <- addrs:
		case <-t.closeC:
			return
		}
	}
}

func (t *torrent) pumpDHTPeers() {
	for addrs := range t.dhtAnnouncer.PeersC {
		select {
		case t.dhtPeersC <- addrs:
		case <-t.closeC:
			return
		}
	}
}

func (t *torrent) announceTorrent() tracker.Torrent {
	return tracker.Torrent{
		BytesUploaded:   t.resumerStats.BytesUploaded,
		BytesDownloaded: t.resumerStats.BytesDownloaded,
		BytesLeft:       t.bytesLeft(),
		InfoHash:        t.infoHash,
		PeerID:          t.peerID,
		Port:            t.port,
	}
}

func (t *torrent) bytesLeft() int64 {
	if t.info == nil {
		return 0
	}
	left := t.info.TotalLength
	if t.bitfield != nil {
		for i := uint32(0); i < t.bitfield.Len(); i++ {
			if t.bitfield.Test(i) {
				left -= int64(t.info.PieceLengthFor(i))
			}
		}
	}
	return left
}

func (t *torrent) dialAddresses() {
	for len(t.peers)+len(t.outgoingHandshakers) < t.config.MaxPeerDial {
		addr := t.addrList.Pop()
		if addr == nil {
			return
		}
		if _, ok := t.connectedPeerIPs[addr.IP.String()]; ok {
			continue
		}
		h := outgoinghandshaker.New(addr)
		t.outgoingHandshakers[h] = struct{}{}
		go h.Run(
			t.config.PeerConnectTimeout,
			t.config.PeerHandshakeTimeout,
			t.peerID,
			t.infoHash,
			t.config.Encryption.Mode,
			t.outgoingHandshakerResultC,
			t.dial,
		)
	}
}

func (t *torrent) handleOutgoingHandshakeResult(h *outgoinghandshaker.OutgoingHandshaker) {
	delete(t.outgoingHandshakers, h)
	if h.Error != nil {
		return
	}
	t.startPeer(h.Conn, h.PeerID, h.Extensions, true)
}

func (t *torrent) startPeer(conn net.Conn, id [20]byte, extensions *bitfield.Bitfield, outgoing bool) {
	if _, ok := t.peerIDs[id]; ok {
		conn.Close()
		return
	}
	if len(t.peers) >= t.config.MaxPeerAccept {
		conn.Close()
		return
	}
	if transport.OpenSockets.Load() >= int64(t.config.MaxPeerAccept) {
		conn.Close()
		return
	}

	fastExt := extensions.Test(61)
	extProto := extensions.Test(43)

	// btconn's handshake layer (MSE negotiation, if any) always returns a
	// plain net.Conn regardless of whether the bytes underneath travel
	// over TCP or µTP, so the same generic wrapper covers both.
	tr := transport.NewTCP(conn)
	var numPieces uint32
	if t.info != nil {
		numPieces = t.info.NumPieces
	}
	pc := peerconn.New(tr, id, fastExt, extProto, t.log)
	pe := peer.New(pc, numPieces)

	t.peerIDs[id] = struct{}{}
	t.peers[pe] = struct{}{}
	if outgoing {
		t.outgoingPeers[pe] = struct{}{}
	} else {
		t.incomingPeers[pe] = struct{}{}
	}
	if addr := pe.Addr(); addr != nil {
		t.connectedPeerIPs[addr.IP.String()] = struct{}{}
	}

	go pe.Run()
	go t.pumpPeerMessages(pe)

	if extProto {
		var metadataSize uint32
		if t.info != nil {
			metadataSize = t.info.InfoSize
		}
		var yourIP net.IP
		if addr := pe.Addr(); addr != nil {
			yourIP = addr.IP
		}
		h := peerprotocol.NewExtensionHandshake(metadataSize, t.config.ExtensionHandshakeClientVersion, yourIP)
		payload, err := peerprotocol.EncodeExtensionHandshake(h)
		if err == nil {
			pe.SendMessage(peerprotocol.ExtensionMessage{ExtendedMessageID: 0, Payload: payload})
		}
	}
	t.sendFirstMessage(pe)
}

func (t *torrent) sendFirstMessage(pe *peer.Peer) {
	if t.bitfield == nil {
		return
	}
	switch {
	case pe.FastExtension && t.bitfield.All():
		pe.SendMessage(peerprotocol.NewHaveAllMessage())
	case pe.FastExtension && t.bitfield.Count() == 0:
		pe.SendMessage(peerprotocol.NewHaveNoneMessage())
	case t.bitfield.Count() > 0:
		pe.SendMessage(peerprotocol.BitfieldMessage{Data: t.bitfield.Bytes()})
	}
}

// pumpPeerMessages forwards one connection's decoded messages onto the
// torrent's shared channels until the connection closes, then reports
// the disconnect. It is the only goroutine, besides the event loop
// itself, that ever touches a *peer.Peer's Messages()/Done() channels.
func (t *torrent) pumpPeerMessages(pe *peer.Peer) {
	for {
		select {
		case msg, ok := <-pe.Messages():
			if !ok {
				continue
			}
			if pm, ok := msg.(peerconn.Piece); ok {
				select {
				case t.pieceMessages <- pieceMessage{Peer: pe, Piece: pm}:
				case <-pe.Done():
					t.peerDisconnectedC <- pe
					return
				}
				continue
			}
			select {
			case t.messages <- peerMessage{Peer: pe, Message: msg}:
			case <-pe.Done():
				t.peerDisconnectedC <- pe
				return
			}
		case <-pe.Done():
			t.peerDisconnectedC <- pe
			return
		}
	}
}

func (t *torrent) closePeer(pe *peer.Peer) {
	if _, ok := t.peers[pe]; !ok {
		return
	}
	delete(t.peers, pe)
	delete(t.incomingPeers, pe)
	delete(t.outgoingPeers, pe)
	delete(t.peerIDs, pe.ID())
	if addr := pe.Addr(); addr != nil {
		delete(t.connectedPeerIPs, addr.IP.String())
	}
	if stopC, ok := t.pieceDownloaderStopC[pe]; ok {
		close(stopC)
		delete(t.pieceDownloaderStopC, pe)
	}
	if d, ok := t.pieceDownloaders[pe]; ok {
		t.piecePicker.UnmarkRequesting(d.Piece.Index)
		delete(t.pieceDownloaders, pe)
	}
	delete(t.infoDownloaders, pe)
	if t.piecePicker != nil {
		bf := pe.Bitfield()
		for i := uint32(0); i < bf.Len(); i++ {
			if bf.Test(i) {
				t.piecePicker.HandleUnhave(i)
			}
		}
	}
	for i := range t.optimisticUnchokedPeers {
		if t.optimisticUnchokedPeers[i] == pe {
			t.optimisticUnchokedPeers = append(t.optimisticUnchokedPeers[:i], t.optimisticUnchokedPeers[i+1:]...)
			break
		}
	}
}

func (t *torrent) handlePeerMessage(m peerMessage) {
	pe := m.Peer
	if _, ok := t.peers[pe]; !ok {
		return
	}
	switch msg := m.Message.(type) {
	case peerprotocol.ChokeMessage:
		pe.HandlePeerChoke()
		if d, ok := t.pieceDownloaders[pe]; ok {
			d.ChokeC <- struct{}{}
		}
	case peerprotocol.UnchokeMessage:
		pe.HandlePeerUnchoke()
		if d, ok := t.pieceDownloaders[pe]; ok {
			d.UnchokeC <- struct{}{}
		}
		t.pickPieceFor(pe)
	case peerprotocol.InterestedMessage:
		pe.HandlePeerInterested()
	case peerprotocol.NotInterestedMessage:
		pe.HandlePeerNotInterested()
	case peerprotocol.HaveMessage:
		pe.HavePiece(msg.Index)
		if t.piecePicker != nil {
			t.piecePicker.HandleHave(msg.Index)
		}
		t.checkInterest(pe)
		t.pickPieceFor(pe)
	case peerprotocol.BitfieldMessage:
		if t.info == nil {
			break
		}
		bf, err := bitfield.NewBytes(msg.Data, t.info.NumPieces)
		if err != nil {
			pe.Close()
			break
		}
		t.applyPeerBitfield(pe, bf)
	case peerprotocol.HaveAllMessage:
		if t.info == nil {
			break
		}
		t.applyPeerBitfield(pe, fullBitfield(t.info.NumPieces))
	case peerprotocol.HaveNoneMessage:
		t.checkInterest(pe)
	case peerprotocol.RequestMessage:
		t.servePieceRequest(pe, msg)
	case peerprotocol.CancelMessage:
		// Best effort; a reply already queued for send may still go out.
	case peerprotocol.RejectMessage:
		if d, ok := t.pieceDownloaders[pe]; ok {
			d.RejectC <- peer.Request{Begin: msg.Begin, Length: msg.Length}
		}
	case peerprotocol.PortMessage:
		// The shared session-wide DHT node already listens; nothing
		// torrent-specific to record from a peer's advertised port.
	case peerprotocol.ExtensionMessage:
		t.handleExtensionMessage(pe, msg)
	}
}

func fullBitfield(n uint32) *bitfield.Bitfield {
	bf := bitfield.New(n)
	for i := uint32(0); i < n; i++ {
		bf.Set(i)
	}
	return bf
}

func (t *torrent) applyPeerBitfield(pe *peer.Peer, bf *bitfield.Bitfield) {
	pe.SetBitfield(bf)
	if t.piecePicker != nil {
		for i := uint32(0); i < bf.Len(); i++ {
			if bf.Test(i) {
				t.piecePicker.HandleHave(i)
			}
		}
	}
	t.checkInterest(pe)
	t.pickPieceFor(pe)
}

func (t *torrent) checkInterest(pe *peer.Peer) {
	if t.bitfield == nil {
		return
	}
	bf := pe.Bitfield()
	interested := false
	for i := uint32(0); i < bf.Len(); i++ {
		if bf.Test(i) && !t.bitfield.Test(i) {
			interested = true
			break
		}
	}
	pe.SetInterested(interested)
}

func (t *torrent) pickPieceFor(pe *peer.Peer) {
	if t.piecePicker == nil || t.completed {
		return
	}
	if _, ok := t.pieceDownloaders[pe]; ok {
		return
	}
	if pe.PeerChoking() {
		return
	}
	endgame := t.piecePicker.RemainingCount() <= 4
	pi := t.piecePicker.Pick(pe.Bitfield(), endgame)
	if pi == nil {
		return
	}
	t.piecePicker.MarkRequesting(pi.Index)

	d := piecedownloader.New(pi, pe)
	stopC := make(chan struct{})
	t.pieceDownloaders[pe] = d
	t.pieceDownloaderStopC[pe] = stopC
	go t.runPieceDownloader(pe, pi, d, stopC)
}

func (t *torrent) runPieceDownloader(pe *peer.Peer, pi *piece.Piece, d *piecedownloader.PieceDownloader, stopC chan struct{}) {
	go d.Run(stopC)
	select {
	case data := <-d.DoneC:
		t.pieceDownloaderResult <- pieceDownloaderResult{Peer: pe, Piece: pi, Data: data}
	case err := <-d.ErrC:
		t.pieceDownloaderResult <- pieceDownloaderResult{Peer: pe, Piece: pi, Err: err}
	case <-stopC:
	}
}

func (t *torrent) handlePieceDownloaderResult(r pieceDownloaderResult) {
	if t.pieceDownloaders[r.Peer] == nil {
		return // downloader was already torn down by closePeer
	}
	delete(t.pieceDownloaders, r.Peer)
	delete(t.pieceDownloaderStopC, r.Peer)

	if r.Err != nil {
		t.piecePicker.UnmarkRequesting(r.Piece.Index)
		return
	}

	offset := pieceOffset(t.info, r.Piece.Index)
	w := piecewriter.New(r.Piece, r.Data)
	go w.Run(offset, t.pieceCache, t.pieceWriterResultC)
}

func pieceOffset(info *metainfo.Info, index uint32) int64 {
	return int64(index) * int64(info.PieceLength)
}

func (t *torrent) servePieceRequest(pe *peer.Peer, msg peerprotocol.RequestMessage) {
	if t.info == nil || t.bitfield == nil || !t.bitfield.Test(msg.Index) {
		return
	}
	if pe.AmChoking() {
		return
	}
	offset := pieceOffset(t.info, msg.Index) + int64(msg.Begin)
	data, err := t.pieceCache.Read(offset, int(msg.Length))
	if err != nil {
		return
	}
	pe.SendPiece(peerprotocol.PieceMessage{Index: msg.Index, Begin: msg.Begin}, data)
	pe.RecordUpload(len(data))
}

func (t *torrent) handleExtensionMessage(pe *peer.Peer, msg peerprotocol.ExtensionMessage) {
	if msg.ExtendedMessageID == 0 {
		h, err := peerprotocol.DecodeExtensionHandshake(msg.Payload)
		if err != nil {
			return
		}
		pe.SetExtensionHandshake(h)
		if t.info == nil {
			if _, ok := h.M[peerprotocol.ExtensionKeyMetadata]; ok {
				if _, exists := t.infoDownloaders[pe]; !exists {
					d := infodownloader.New(pe)
					t.infoDownloaders[pe] = d
					if err := d.RequestBlocks(5); err == nil {
						go func() { t.infoDownloaderResultC <- d }()
					} else {
						delete(t.infoDownloaders, pe)
					}
				}
			}
		}
		return
	}

	if pe.ExtensionHandshake == nil {
		return
	}
	switch msg.ExtendedMessageID {
	case pe.ExtensionHandshake.M[peerprotocol.ExtensionKeyMetadata]:
		t.handleMetadataMessage(pe, msg.Payload)
	case pe.ExtensionHandshake.M[peerprotocol.ExtensionKeyPEX]:
		t.handlePEXMessage(msg.Payload)
	}
}

func (t *torrent) handleMetadataMessage(pe *peer.Peer, payload []byte) {
	m, rest, err := peerprotocol.DecodeExtensionMetadataMessage(payload)
	if err != nil {
		return
	}
	switch m.Type {
	case peerprotocol.ExtensionMetadataMessageTypeData:
		if d, ok := t.infoDownloaders[pe]; ok {
			if d.GotBlock(m.Piece, rest) == nil && d.Done() {
				go func() { t.infoDownloaderResultC <- d }()
			} else {
				d.RequestBlocks(5)
			}
		}
	case peerprotocol.ExtensionMetadataMessageTypeRequest:
		t.replyMetadataRequest(pe, m.Piece)
	case peerprotocol.ExtensionMetadataMessageTypeReject:
		delete(t.infoDownloaders, pe)
	}
}

func (t *torrent) replyMetadataRequest(pe *peer.Peer, index uint32) {
	if t.info == nil || pe.ExtensionHandshake == nil {
		return
	}
	const blockSize = 16 * 1024
	begin := index * blockSize
	if int64(begin) >= int64(len(t.info.Bytes)) {
		return
	}
	end := begin + blockSize
	if end > uint32(len(t.info.Bytes)) {
		end = uint32(len(t.info.Bytes))
	}
	header, err := peerprotocol.EncodeExtensionMetadataMessage(peerprotocol.ExtensionMetadataMessage{
		Type:      peerprotocol.ExtensionMetadataMessageTypeData,
		Piece:     index,
		TotalSize: uint32(len(t.info.Bytes)),
	})
	if err != nil {
		return
	}
	payload := append(header, t.info.Bytes[begin:end]...)
	extID := pe.ExtensionHandshake.M[peerprotocol.ExtensionKeyMetadata]
	pe.SendMessage(peerprotocol.ExtensionMessage{ExtendedMessageID: extID, Payload: payload})
}

func (t *torrent) handlePEXMessage(payload []byte) {
	var m peerprotocol.ExtensionPEXMessage
	if err := bencode.NewDecoder(bytes.NewReader(payload)).Decode(&m); err != nil {
		return
	}
	var addrs []*net.TCPAddr
	for i := 0; i+6 <= len(m.Added); i += 6 {
		if a := peerprotocol.AddrFromCompact(m.Added[i : i+6]); a != nil {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) > 0 {
		t.addrList.Push(addrs, addrlist.PEX)
		t.dialAddresses()
	}
}

func (t *torrent) handleInfoDownloaderResult(d *infodownloader.InfoDownloader) {
	delete(t.infoDownloaders, d.Peer)
	if !d.Done() {
		return
	}
	info, err := metainfo.NewInfo(d.Bytes)
	if err != nil || info.Hash != t.infoHash {
		return // bad metadata from this peer; keep waiting on others
	}
	t.info = info
	if err := t.preparePieces(); err != nil {
		t.errC <- err
		return
	}
	t.startAllocator()
	t.startAnnouncers()
	t.dialAddresses()
}

func (t *torrent) handlePieceMessage(m pieceMessage) {
	pe := m.Peer
	d, ok := t.pieceDownloaders[pe]
	if !ok {
		return
	}
	pe.HandlePiece(m.Piece.Index, m.Piece.Begin, len(m.Piece.Data))
	blockIndex := m.Piece.Begin / piece.BlockSize
	if blockIndex >= uint32(len(d.Piece.Blocks)) {
		return
	}
	block := &d.Piece.Blocks[blockIndex]
	select {
	case d.PieceC <- peer.Piece{Block: block, Data: m.Piece.Data}:
	case <-t.pieceDownloaderStopC[pe]:
	}
}

func (t *torrent) handlePieceWriterResult(w *piecewriter.PieceWriter) {
	if w.Error != nil {
		if errors.Is(w.Error, piecewriter.ErrHashMismatch) {
			t.resumerStats.BytesWasted += int64(w.Piece.Length)
			t.piecePicker.UnmarkRequesting(w.Piece.Index)
			return
		}
		t.errC <- w.Error
		return
	}
	t.bitfield.Set(w.Piece.Index)
	t.resumerStats.BytesDownloaded += int64(len(w.Data))
	t.scheduleResumeWrite()
	// Peers with an in-flight request for this piece from another source are
	// not sent a separate cancel; the whole-piece-per-peer picker means each
	// piece has at most one downloader, so there is nothing to cancel.
	for pe := range t.peers {
		pe.SendMessage(peerprotocol.HaveMessage{Index: w.Piece.Index})
	}
	if t.bitfield.All() {
		t.onTorrentComplete()
	}
}

func (t *torrent) onTorrentComplete() {
	if t.completed {
		return
	}
	t.completed = true
	t.seedStartedAt = time.Now()
	t.addrList.Reset()
	close(t.completeC)
	if t.dhtAnnouncer != nil {
		t.dhtAnnouncer.NeedMorePeers(false)
	}
}

func (t *torrent) scheduleResumeWrite() {
	if t.resumeWriteTimer != nil {
		return
	}
	t.resumeWriteTimer = time.NewTimer(t.config.BitfieldWriteInterval)
	t.resumeWriteTimerC = t.resumeWriteTimer.C
}

func (t *torrent) writeResumeBitfield() {
	if t.resume == nil || t.bitfield == nil {
		return
	}
	t.resume.WriteBitfield(t.bitfield.Bytes())
}

func (t *torrent) writeResumeStats() {
	if t.resume == nil {
		return
	}
	t.resume.WriteStats(t.resumerStats)
}
