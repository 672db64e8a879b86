// Package announcer drives the tracker announce loop for one torrent:
// periodic re-announces at the tracker's requested interval, a one-shot
// "stopped" announce on shutdown, and a DHT announcer wrapping
// nictuku/dht's get_peers/announce_peer cycle. Field names
// (PeriodicalAnnouncer, StopAnnouncer, DHTAnnouncer, Request/Response)
// are pre-named directly from the teacher's torrent struct.
package announcer

import (
	"net"
	"time"

	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/tracker"
)

// Request asks the torrent's event loop for up-to-date stats to
// announce, since the announcer goroutine must not touch torrent state
// directly.
type Request struct {
	Response chan Response
}

// Response answers a Request with the torrent's current stats.
type Response struct {
	Torrent tracker.Torrent
}

// PeriodicalAnnouncer re-announces to one tracker at the interval the
// tracker requests, forwarding newly discovered peers and pulling fresh
// stats from the torrent for each announce.
type PeriodicalAnnouncer struct {
	Tracker  tracker.Tracker
	PeersC   chan []*net.TCPAddr
	requestC chan *Request
	closeC   chan struct{}
	doneC    chan struct{}
	log      logger.Logger
}

// NewPeriodicalAnnouncer starts the announce loop in its own goroutine.
func NewPeriodicalAnnouncer(t tracker.Tracker, requestC chan *Request, l logger.Logger) *PeriodicalAnnouncer {
	a := &PeriodicalAnnouncer{
		Tracker:  t,
		PeersC:   make(chan []*net.TCPAddr),
		requestC: requestC,
		closeC:   make(chan struct{}),
		doneC:    make(chan struct{}),
		log:      l,
	}
	go a.run()
	return a
}

func (a *PeriodicalAnnouncer) run() {
	defer close(a.doneC)
	interval := time.Second
	for {
		select {
		case <-time.After(interval):
		case <-a.closeC:
			return
		}

		resp := make(chan Response, 1)
		select {
		case a.requestC <- &Request{Response: resp}:
		case <-a.closeC:
			return
		}
		var stats tracker.Torrent
		select {
		case r := <-resp:
			stats = r.Torrent
		case <-a.closeC:
			return
		}

		ar, err := a.Tracker.Announce(stats, tracker.EventNone, 50)
		if err != nil {
			a.log.Debugln("announce error:", err)
			interval = 5 * time.Minute
			continue
		}
		if ar.Interval > 0 {
			interval = time.Duration(ar.Interval) * time.Second
		} else {
			interval = 30 * time.Minute
		}
		select {
		case a.PeersC <- ar.Peers:
		case <-a.closeC:
			return
		}
	}
}

// Close stops the announce loop.
func (a *PeriodicalAnnouncer) Close() {
	close(a.closeC)
	<-a.doneC
}

// StopAnnouncer sends a single "stopped" event announce, used during
// graceful torrent shutdown so the tracker's peer count stays accurate.
type StopAnnouncer struct {
	doneC chan struct{}
}

// NewStopAnnouncer fires the stopped announce in the background, up to
// timeout, against every tracker in trackers.
func NewStopAnnouncer(trackers []tracker.Tracker, stats tracker.Torrent, timeout time.Duration) *StopAnnouncer {
	s := &StopAnnouncer{doneC: make(chan struct{})}
	go func() {
		defer close(s.doneC)
		done := make(chan struct{})
		go func() {
			for _, t := range trackers {
				_, _ = t.Announce(stats, tracker.EventStopped, 0)
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
		}
	}()
	return s
}

// Close blocks until the stopped announce(s) finish or their timeout
// elapses.
func (s *StopAnnouncer) Close() { <-s.doneC }
