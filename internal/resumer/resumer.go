// Package resumer defines the contract a torrent's persistence backend
// satisfies: durably recording enough state (bitfield, transfer stats)
// that a restarted session can pick a torrent back up without
// re-verifying every piece or losing its lifetime counters.
package resumer

import "time"

// Stats is the subset of a torrent's lifetime counters that survive a
// restart; re-verified-on-restart values like the current bitfield are
// recorded separately via WriteBitfield.
type Stats struct {
	BytesDownloaded int64
	BytesUploaded   int64
	BytesWasted     int64
	SeededFor       time.Duration
}

// Resumer persists one torrent's resume state. The concrete Spec a
// backend writes on AddTorrent is backend-specific (e.g.
// boltdbresumer.Spec), so session code makes that one call on the
// concrete *boltdbresumer.Resumer it constructed; every other interaction
// goes through this interface.
type Resumer interface {
	WriteStats(Stats) error
	WriteBitfield(b []byte) error
	WriteStarted(started bool) error
	Close() error
}
