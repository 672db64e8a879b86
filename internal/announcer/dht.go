package announcer

import (
	"encoding/hex"
	"net"

	"github.com/nictuku/dht"

	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/peerprotocol"
)

// DHTAnnouncer announces a torrent's info hash on the Mainline DHT (BEP
// 5) and forwards discovered peers, driven by the session-wide
// *dht.DHT node.
type DHTAnnouncer struct {
	node     *dht.DHT
	infoHash dht.InfoHash
	PeersC   chan []*net.TCPAddr
	closeC   chan struct{}
	doneC    chan struct{}
	log      logger.Logger
}

// NewDHTAnnouncer starts announcing infoHash on node.
func NewDHTAnnouncer(node *dht.DHT, infoHash [20]byte, l logger.Logger) *DHTAnnouncer {
	ih, err := dht.DecodeInfoHash(hex.EncodeToString(infoHash[:]))
	a := &DHTAnnouncer{
		node:     node,
		infoHash: ih,
		PeersC:   make(chan []*net.TCPAddr),
		closeC:   make(chan struct{}),
		doneC:    make(chan struct{}),
		log:      l,
	}
	if err != nil {
		l.Errorln("dht: invalid info hash:", err)
		close(a.doneC)
		return a
	}
	go a.run()
	return a
}

// NeedMorePeers(true) asks the DHT node for peers of this torrent's info
// hash. NeedMorePeers(false) does nothing: it does not cancel a request
// already made, and results that arrive later are still forwarded.
func (a *DHTAnnouncer) NeedMorePeers(need bool) {
	if need {
		a.node.PeersRequest(string(a.infoHash), true)
	}
}

func (a *DHTAnnouncer) run() {
	defer close(a.doneC)
	peersC := a.node.PeersRequestResults
	for {
		select {
		case results := <-peersC:
			for ih, peersForHash := range results {
				if ih != a.infoHash {
					continue
				}
				var addrs []*net.TCPAddr
				for _, compact := range peersForHash {
					if len(compact) != 6 {
						continue
					}
					if addr := peerprotocol.AddrFromCompact([]byte(compact)); addr != nil {
						addrs = append(addrs, addr)
					}
				}
				if len(addrs) > 0 {
					select {
					case a.PeersC <- addrs:
					case <-a.closeC:
						return
					}
				}
			}
		case <-a.closeC:
			return
		}
	}
}

// Close stops this torrent's DHT announce loop. The shared *dht.DHT node
// itself is owned and closed by the session.
func (a *DHTAnnouncer) Close() {
	select {
	case <-a.doneC:
	default:
		close(a.closeC)
		<-a.doneC
	}
}
