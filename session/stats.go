package session

import (
	"time"

	"github.com/tearfur/transmission/internal/peer"
)

// Stats is a torrent's point-in-time snapshot, the shape torrent-get's
// "table"/object field projection reads from.
type Stats struct {
	Status             Status
	Error              string
	BytesTotal         int64
	BytesCompleted     int64
	BytesLeft          int64
	BytesDownloaded    int64
	BytesUploaded      int64
	BytesWasted        int64
	PeersConnected     int
	PeersSendingToUs   int
	PeersGettingFromUs int
	SeedersConnected   int
	LeechersConnected  int
	DownloadSpeed      int64
	UploadSpeed        int64
	SeedRatio          float64
	QueuePosition      int64
	AddedAt            time.Time
}

// TrackerStats is one tracker's announce state, the torrent-get
// "trackerStats" field's element shape.
type TrackerStats struct {
	URL            string
	LastAnnounce   time.Time
	LastAnnounceOK bool
	NextAnnounce   time.Time
}

// PeerStats is one connected peer's state, the torrent-get "peers" field's
// element shape.
type PeerStats struct {
	Address      string
	ClientName   string
	Progress     float64
	RateToClient int64
	RateToPeer   int64
	IsUploading  bool
	IsDownloading bool
}

func (t *torrent) status() Status {
	switch {
	case t.lastError != nil && t.lastError != errClosed:
		return Error
	case t.verifier != nil:
		return Verifying
	case t.allocator != nil:
		return Allocating
	case t.info == nil:
		if len(t.peers) > 0 || len(t.outgoingHandshakers) > 0 {
			return DownloadingMetadata
		}
		return Stopped
	case t.bitfield == nil:
		return Stopped
	case t.bitfield.All():
		return Seeding
	case len(t.announcers) > 0 || len(t.peers) > 0:
		return Downloading
	default:
		return Stopped
	}
}

func (t *torrent) stats() Stats {
	s := Stats{
		Status:          t.status(),
		BytesDownloaded: t.resumerStats.BytesDownloaded,
		BytesUploaded:   t.resumerStats.BytesUploaded,
		BytesWasted:     t.resumerStats.BytesWasted,
		PeersConnected:  len(t.peers),
		QueuePosition:   t.queuePosition,
		SeedRatio:       t.config.SeedRatioLimit,
	}
	if t.lastError != nil && t.lastError != errClosed {
		s.Error = t.lastError.Error()
	}
	if t.info != nil {
		s.BytesTotal = t.info.TotalLength
		s.BytesLeft = t.bytesLeft()
		s.BytesCompleted = s.BytesTotal - s.BytesLeft
	}
	var down, up int64
	for pe := range t.peers {
		d, u := pe.DownloadRate(), pe.UploadRate()
		down += d
		up += u
		if d > 0 {
			s.PeersSendingToUs++
		}
		if u > 0 {
			s.PeersGettingFromUs++
		}
		if pe.Bitfield() != nil && pe.Bitfield().All() {
			s.SeedersConnected++
		} else {
			s.LeechersConnected++
		}
	}
	s.DownloadSpeed = down
	s.UploadSpeed = up
	return s
}

func (t *torrent) trackerStats() []TrackerStats {
	out := make([]TrackerStats, 0, len(t.trackers))
	for _, tr := range t.trackers {
		out = append(out, TrackerStats{URL: tr.URL()})
	}
	return out
}

func (t *torrent) peerStats() []PeerStats {
	out := make([]PeerStats, 0, len(t.peers))
	for pe := range t.peers {
		out = append(out, peerStatsFor(pe))
	}
	return out
}

func peerStatsFor(pe *peer.Peer) PeerStats {
	ps := PeerStats{
		RateToClient:  pe.DownloadRate(),
		RateToPeer:    pe.UploadRate(),
		IsDownloading: pe.AmInterested() && !pe.PeerChoking(),
		IsUploading:   pe.PeerInterested() && !pe.AmChoking(),
	}
	if addr := pe.Addr(); addr != nil {
		ps.Address = addr.String()
	} else {
		ps.Address = pe.IP()
	}
	bf := pe.Bitfield()
	if bf != nil && bf.Len() > 0 {
		ps.Progress = float64(bf.Count()) / float64(bf.Len())
	}
	return ps
}
