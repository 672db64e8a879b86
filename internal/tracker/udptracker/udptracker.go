// Package udptracker implements the UDP tracker protocol (BEP 15): a
// connect handshake establishing a short-lived connection id, followed
// by an announce request keyed off that id. No library in the retrieved
// example pack implements this wire format, so it is built directly on
// net.UDPConn and encoding/binary, the same primitives the HTTP tracker
// decoder falls back to for its compact peer list.
package udptracker

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"time"

	"github.com/tearfur/transmission/internal/peerprotocol"
	"github.com/tearfur/transmission/internal/tracker"
)

const (
	actionConnect  uint32 = 0
	actionAnnounce uint32 = 1
	actionError    uint32 = 3

	protocolID uint64 = 0x41727101980 // fixed magic for the connect request
)

var errBadResponse = errors.New("udptracker: malformed response")

// UDPTracker announces to one UDP tracker endpoint.
type UDPTracker struct {
	addr    string
	url     string
	timeout time.Duration
}

// New returns a UDPTracker for addr ("host:port"); url is retained only
// for display purposes (torrent-get's trackerStats field).
func New(url, addr string, timeout time.Duration) *UDPTracker {
	return &UDPTracker{addr: addr, url: url, timeout: timeout}
}

// URL implements tracker.Tracker.
func (t *UDPTracker) URL() string { return t.url }

// Announce implements tracker.Tracker.
func (t *UDPTracker) Announce(transfer tracker.Torrent, event tracker.Event, numWant int) (*tracker.AnnounceResponse, error) {
	conn, err := net.DialTimeout("udp", t.addr, t.timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(t.timeout))

	connID, err := t.connect(conn)
	if err != nil {
		return nil, err
	}
	return t.announce(conn, connID, transfer, event, numWant)
}

func (t *UDPTracker) connect(conn net.Conn) (uint64, error) {
	txID := randomTxID()
	req := make([]byte, 16)
	binary.BigEndian.PutUint64(req[0:8], protocolID)
	binary.BigEndian.PutUint32(req[8:12], actionConnect)
	binary.BigEndian.PutUint32(req[12:16], txID)
	if _, err := conn.Write(req); err != nil {
		return 0, err
	}

	resp := make([]byte, 16)
	n, err := conn.Read(resp)
	if err != nil {
		return 0, err
	}
	if n < 16 {
		return 0, errBadResponse
	}
	if action := binary.BigEndian.Uint32(resp[0:4]); action != actionConnect {
		return 0, errBadResponse
	}
	if binary.BigEndian.Uint32(resp[4:8]) != txID {
		return 0, errBadResponse
	}
	return binary.BigEndian.Uint64(resp[8:16]), nil
}

func (t *UDPTracker) announce(conn net.Conn, connID uint64, transfer tracker.Torrent, event tracker.Event, numWant int) (*tracker.AnnounceResponse, error) {
	txID := randomTxID()
	req := make([]byte, 98)
	binary.BigEndian.PutUint64(req[0:8], connID)
	binary.BigEndian.PutUint32(req[8:12], actionAnnounce)
	binary.BigEndian.PutUint32(req[12:16], txID)
	copy(req[16:36], transfer.InfoHash[:])
	copy(req[36:56], transfer.PeerID[:])
	binary.BigEndian.PutUint64(req[56:64], uint64(transfer.BytesDownloaded))
	binary.BigEndian.PutUint64(req[64:72], uint64(transfer.BytesLeft))
	binary.BigEndian.PutUint64(req[72:80], uint64(transfer.BytesUploaded))
	binary.BigEndian.PutUint32(req[80:84], uint32(eventCode(event)))
	// IP address (0 = let the tracker use the source address), key, and
	// num_want.
	binary.BigEndian.PutUint32(req[84:88], 0)
	binary.BigEndian.PutUint32(req[88:92], txID) // key: reuse the transaction id as a stable-enough value
	if numWant <= 0 {
		numWant = -1
	}
	binary.BigEndian.PutUint32(req[92:96], uint32(int32(numWant)))
	binary.BigEndian.PutUint16(req[96:98], uint16(transfer.Port))

	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	resp := make([]byte, 20+6*(numWant+1))
	n, err := conn.Read(resp)
	if err != nil {
		return nil, err
	}
	if n < 20 {
		return nil, errBadResponse
	}
	if binary.BigEndian.Uint32(resp[4:8]) != txID {
		return nil, errBadResponse
	}
	if action := binary.BigEndian.Uint32(resp[0:4]); action == actionError {
		return nil, errors.New("udptracker: " + string(resp[8:n]))
	} else if action != actionAnnounce {
		return nil, errBadResponse
	}

	r := &tracker.AnnounceResponse{
		Interval: int(binary.BigEndian.Uint32(resp[8:12])),
		Leechers: int(binary.BigEndian.Uint32(resp[12:16])),
		Seeders:  int(binary.BigEndian.Uint32(resp[16:20])),
	}
	for i := 20; i+6 <= n; i += 6 {
		r.Peers = append(r.Peers, peerprotocol.AddrFromCompact(resp[i:i+6]))
	}
	return r, nil
}

func eventCode(e tracker.Event) int {
	switch e {
	case tracker.EventCompleted:
		return 1
	case tracker.EventStarted:
		return 2
	case tracker.EventStopped:
		return 3
	default:
		return 0
	}
}

func randomTxID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
