package session

import (
	"math/rand"
	"sort"

	"github.com/tearfur/transmission/internal/peer"
)

// tickUnchoke re-ranks interested peers by their rate in the direction
// that matters (upload rate once we're seeding, download rate while
// still downloading) and unchokes the top Config.UnchokedPeers of them,
// adapted from the teacher's per-period byte-counter ranking to use
// peer.Peer's EWMA rate estimators instead.
func (t *torrent) tickUnchoke() {
	isOptimistic := func(pe *peer.Peer) bool {
		for _, o := range t.optimisticUnchokedPeers {
			if o == pe {
				return true
			}
		}
		return false
	}

	var peers []*peer.Peer
	for pe := range t.peers {
		if pe.PeerInterested() && !isOptimistic(pe) {
			peers = append(peers, pe)
		}
	}

	if t.completed {
		sort.Slice(peers, func(i, j int) bool { return peers[i].UploadRate() > peers[j].UploadRate() })
	} else {
		sort.Slice(peers, func(i, j int) bool { return peers[i].DownloadRate() > peers[j].DownloadRate() })
	}

	var unchoked int
	for _, pe := range peers {
		if unchoked < t.config.UnchokedPeers {
			pe.Unchoke()
			unchoked++
		} else {
			pe.Choke()
		}
	}
}

// tickOptimisticUnchoke periodically unchokes a random choked, interested
// peer regardless of its rate, giving new peers a chance to prove
// themselves before the rate-based ranking in tickUnchoke ever sees them.
func (t *torrent) tickOptimisticUnchoke() {
	for _, pe := range t.optimisticUnchokedPeers {
		pe.Choke()
	}
	t.optimisticUnchokedPeers = t.optimisticUnchokedPeers[:0]

	var candidates []*peer.Peer
	for pe := range t.peers {
		if pe.PeerInterested() && pe.AmChoking() {
			candidates = append(candidates, pe)
		}
	}

	for i := 0; i < t.config.OptimisticUnchokedPeers && len(candidates) > 0; i++ {
		idx := rand.Intn(len(candidates))
		pe := candidates[idx]
		candidates = append(candidates[:idx], candidates[idx+1:]...)
		pe.Unchoke()
		t.optimisticUnchokedPeers = append(t.optimisticUnchokedPeers, pe)
	}
}
