// Package boltdbresumer implements internal/resumer.Resumer on top of
// boltdb/bolt, storing one sub-bucket per torrent keyed by the torrent's
// session-assigned id, mirroring the teacher's own resume database
// layout (session.go's torrentsBucket / per-torrent sub-bucket).
package boltdbresumer

import (
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"

	"github.com/tearfur/transmission/internal/resumer"
)

var (
	keySpec      = []byte("spec")
	keyStats     = []byte("stats")
	keyBitfield  = []byte("bitfield")
	keyStarted   = []byte("started")
)

// Spec is everything needed to reconstruct a torrent on session start:
// its metainfo (or enough of it to start metadata download), the
// destination directory, and the port it was assigned.
type Spec struct {
	InfoHash  []byte     `json:"info_hash"`
	Port      int        `json:"port"`
	Name      string     `json:"name"`
	Trackers  [][]string `json:"trackers"`
	Info      []byte     `json:"info,omitempty"`
	Bitfield  []byte     `json:"bitfield,omitempty"`
	Dest      string     `json:"dest"`
	CreatedAt time.Time  `json:"created_at"`
}

// Resumer persists one torrent's resume state in its own bucket, nested
// under the session's shared torrents bucket.
type Resumer struct {
	db     *bolt.DB
	bucket []byte
	key    []byte
}

// New returns a Resumer for the sub-bucket named key inside bucket,
// creating it if missing.
func New(db *bolt.DB, bucket, key []byte) (*Resumer, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		parent, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		_, err = parent.CreateBucketIfNotExists(key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Resumer{db: db, bucket: bucket, key: key}, nil
}

// Write persists spec, overwriting any previous value.
func (r *Resumer) Write(spec *Spec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return r.update(keySpec, data)
}

// Read reconstructs the Spec previously written, or nil if none exists.
func (r *Resumer) Read() (*Spec, error) {
	var spec *Spec
	err := r.db.View(func(tx *bolt.Tx) error {
		data := r.sub(tx).Get(keySpec)
		if data == nil {
			return nil
		}
		spec = new(Spec)
		return json.Unmarshal(data, spec)
	})
	return spec, err
}

// WriteStats implements resumer.Resumer.
func (r *Resumer) WriteStats(s resumer.Stats) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.update(keyStats, data)
}

// ReadStats returns the last persisted stats, or the zero value if none.
func (r *Resumer) ReadStats() (resumer.Stats, error) {
	var s resumer.Stats
	err := r.db.View(func(tx *bolt.Tx) error {
		data := r.sub(tx).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &s)
	})
	return s, err
}

// WriteBitfield implements resumer.Resumer.
func (r *Resumer) WriteBitfield(b []byte) error {
	return r.update(keyBitfield, b)
}

// ReadBitfield returns the last persisted bitfield bytes.
func (r *Resumer) ReadBitfield() ([]byte, error) {
	var b []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		data := r.sub(tx).Get(keyBitfield)
		if data != nil {
			b = append([]byte(nil), data...)
		}
		return nil
	})
	return b, err
}

// WriteStarted implements resumer.Resumer, recording whether the
// torrent should auto-start on the next session launch.
func (r *Resumer) WriteStarted(started bool) error {
	v := []byte{0}
	if started {
		v[0] = 1
	}
	return r.update(keyStarted, v)
}

// ReadStarted returns the last persisted started flag.
func (r *Resumer) ReadStarted() (bool, error) {
	started := false
	err := r.db.View(func(tx *bolt.Tx) error {
		data := r.sub(tx).Get(keyStarted)
		started = len(data) == 1 && data[0] == 1
		return nil
	})
	return started, err
}

func (r *Resumer) update(key, value []byte) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return r.sub(tx).Put(key, value)
	})
}

func (r *Resumer) sub(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(r.bucket).Bucket(r.key)
}

// Close is a no-op; the *bolt.DB handle is owned and closed by the
// session.
func (r *Resumer) Close() error { return nil }
