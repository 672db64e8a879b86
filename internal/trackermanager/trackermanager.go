// Package trackermanager caches one tracker.Tracker instance per
// announce URL so multiple torrents sharing a tracker (or repeated
// announces to the same one) reuse its HTTP client / UDP connection
// state instead of re-resolving it every time. Pre-named from the
// teacher's own trackerManager field and Get(url, timeout, userAgent)
// call convention.
package trackermanager

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tearfur/transmission/internal/blocklist"
	"github.com/tearfur/transmission/internal/tracker"
	"github.com/tearfur/transmission/internal/tracker/httptracker"
	"github.com/tearfur/transmission/internal/tracker/udptracker"
)

// TrackerManager hands out (and caches) tracker.Tracker instances by URL.
type TrackerManager struct {
	blocklist *blocklist.Blocklist

	mu       sync.Mutex
	trackers map[string]tracker.Tracker
}

// New returns a manager that skips peers in bl (nil disables filtering;
// the filtering itself happens where peers are added, this field is
// retained so future transports can consult it directly).
func New(bl *blocklist.Blocklist) *TrackerManager {
	return &TrackerManager{blocklist: bl, trackers: make(map[string]tracker.Tracker)}
}

// Get returns the cached tracker.Tracker for rawURL, constructing one on
// first use.
func (m *TrackerManager) Get(rawURL string, timeout time.Duration, userAgent string) (tracker.Tracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.trackers[rawURL]; ok {
		return t, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	var t tracker.Tracker
	switch {
	case strings.HasPrefix(u.Scheme, "http"):
		t = httptracker.New(rawURL, timeout, userAgent)
	case u.Scheme == "udp":
		t = udptracker.New(rawURL, u.Host, timeout)
	default:
		return nil, unsupportedSchemeError{scheme: u.Scheme}
	}

	m.trackers[rawURL] = t
	return t, nil
}

type unsupportedSchemeError struct{ scheme string }

func (e unsupportedSchemeError) Error() string {
	return "trackermanager: unsupported tracker scheme: " + e.scheme
}
