// Package addrlist keeps the queue of candidate peer addresses for a
// torrent, deduplicated across the sources that can supply them.
package addrlist

import "net"

// PeerSource identifies where a candidate peer address came from.
type PeerSource int

const (
	Tracker PeerSource = iota
	DHT
	PEX
	Manual
	Incoming
)

func (s PeerSource) String() string {
	switch s {
	case Tracker:
		return "tracker"
	case DHT:
		return "dht"
	case PEX:
		return "pex"
	case Manual:
		return "manual"
	case Incoming:
		return "incoming"
	default:
		return "unknown"
	}
}

type entry struct {
	addr   *net.TCPAddr
	source PeerSource
}

// AddrList is a FIFO queue of not-yet-dialed peer addresses, deduplicated
// by address string across the whole queue.
type AddrList struct {
	q    []entry
	seen map[string]struct{}
	// maxLen bounds memory use against a swarm that floods us with peers;
	// 0 means unbounded.
	maxLen int
}

// New returns an empty address list. maxLen of 0 means unbounded.
func New(maxLen int) *AddrList {
	return &AddrList{seen: make(map[string]struct{}), maxLen: maxLen}
}

// Push enqueues addrs from source, skipping ones already seen.
func (l *AddrList) Push(addrs []*net.TCPAddr, source PeerSource) {
	for _, a := range addrs {
		key := a.String()
		if _, ok := l.seen[key]; ok {
			continue
		}
		if l.maxLen > 0 && len(l.q) >= l.maxLen {
			break
		}
		l.seen[key] = struct{}{}
		l.q = append(l.q, entry{addr: a, source: source})
	}
}

// Pop removes and returns the next address to dial, or nil if the queue
// is empty.
func (l *AddrList) Pop() *net.TCPAddr {
	if len(l.q) == 0 {
		return nil
	}
	e := l.q[0]
	l.q = l.q[1:]
	delete(l.seen, e.addr.String())
	return e.addr
}

// Len returns the number of queued, not-yet-dialed addresses.
func (l *AddrList) Len() int {
	return len(l.q)
}

// Reset drops every queued address, e.g. once a torrent completes and no
// longer needs new peers.
func (l *AddrList) Reset() {
	l.q = nil
	l.seen = make(map[string]struct{})
}
