// Package httptracker implements the HTTP/HTTPS tracker protocol (BEP
// 3): a GET request with the announce parameters in the query string,
// answered with a bencoded dict. Decoding uses chihaya/bencode, the same
// library the tracker-server side of the retrieved example pack uses to
// encode these responses, so this client decodes exactly what that
// encoder (and every other interoperating tracker) produces.
package httptracker

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/chihaya/bencode"

	"github.com/tearfur/transmission/internal/peerprotocol"
	"github.com/tearfur/transmission/internal/tracker"
)

// HTTPTracker announces to one HTTP(S) tracker URL.
type HTTPTracker struct {
	announceURL string
	userAgent   string
	client      *http.Client
}

// New returns an HTTPTracker for announceURL.
func New(announceURL string, timeout time.Duration, userAgent string) *HTTPTracker {
	return &HTTPTracker{
		announceURL: announceURL,
		userAgent:   userAgent,
		client:      &http.Client{Timeout: timeout},
	}
}

// URL implements tracker.Tracker.
func (t *HTTPTracker) URL() string { return t.announceURL }

type rawResponse struct {
	FailureReason string      `bencode:"failure reason"`
	WarningMessage string     `bencode:"warning message"`
	Interval      int         `bencode:"interval"`
	MinInterval   int         `bencode:"min interval"`
	Complete      int         `bencode:"complete"`
	Incomplete    int         `bencode:"incomplete"`
	Peers         bencode.RawMessage `bencode:"peers"`
}

// Announce implements tracker.Tracker.
func (t *HTTPTracker) Announce(transfer tracker.Torrent, event tracker.Event, numWant int) (*tracker.AnnounceResponse, error) {
	u, err := url.Parse(t.announceURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("info_hash", string(transfer.InfoHash[:]))
	q.Set("peer_id", string(transfer.PeerID[:]))
	q.Set("port", strconv.Itoa(transfer.Port))
	q.Set("uploaded", strconv.FormatInt(transfer.BytesUploaded, 10))
	q.Set("downloaded", strconv.FormatInt(transfer.BytesDownloaded, 10))
	q.Set("left", strconv.FormatInt(transfer.BytesLeft, 10))
	q.Set("compact", "1")
	q.Set("numwant", strconv.Itoa(numWant))
	if s := event.String(); s != "" {
		q.Set("event", s)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var raw rawResponse
	if err := bencode.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.FailureReason != "" {
		return nil, fmt.Errorf("httptracker: tracker returned failure: %s", raw.FailureReason)
	}

	var peersRaw []byte
	if err := bencode.Unmarshal(raw.Peers, &peersRaw); err != nil {
		// Some trackers return a bencoded list of dicts instead of the
		// compact form; that variant is not supported, matching this
		// engine's compact=1 request.
		return nil, fmt.Errorf("httptracker: non-compact peers field unsupported: %w", err)
	}

	peers := make([]*net.TCPAddr, 0, len(peersRaw)/6)
	for i := 0; i+6 <= len(peersRaw); i += 6 {
		peers = append(peers, peerprotocol.AddrFromCompact(peersRaw[i:i+6]))
	}

	return &tracker.AnnounceResponse{
		Interval:       raw.Interval,
		MinInterval:    raw.MinInterval,
		Seeders:        raw.Complete,
		Leechers:       raw.Incomplete,
		Peers:          peers,
		WarningMessage: raw.WarningMessage,
	}, nil
}
