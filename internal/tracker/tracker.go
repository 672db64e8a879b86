// Package tracker defines the client-side contract every tracker
// transport (HTTP, UDP) implements: given this torrent's current
// stats, announce to the tracker and return the peers it offers.
package tracker

import "net"

// Torrent carries the per-announce stats a tracker needs, pre-named
// directly from the teacher's own tracker.Torrent struct.
type Torrent struct {
	BytesUploaded   int64
	BytesDownloaded int64
	BytesLeft       int64
	InfoHash        [20]byte
	PeerID          [20]byte
	Port            int
}

// Event is the announce event parameter (BEP 3).
type Event int

const (
	EventNone Event = iota
	EventCompleted
	EventStarted
	EventStopped
)

func (e Event) String() string {
	switch e {
	case EventCompleted:
		return "completed"
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	default:
		return ""
	}
}

// AnnounceResponse is what every Tracker implementation normalizes its
// wire response into.
type AnnounceResponse struct {
	Interval   int
	MinInterval int
	Leechers   int
	Seeders    int
	Peers      []*net.TCPAddr
	WarningMessage string
}

// Tracker is the client-side contract: given an announce request,
// return peers and re-announce timing.
type Tracker interface {
	// Announce performs one announce round trip.
	Announce(transfer Torrent, event Event, numWant int) (*AnnounceResponse, error)
	// URL returns the tracker's announce URL, used for logging and the
	// torrent-get "trackerStats" field.
	URL() string
}
