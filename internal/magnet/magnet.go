// Package magnet parses magnet URIs (BEP 9 / BEP 53).
package magnet

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

// Magnet holds the fields extracted from a magnet: URI.
type Magnet struct {
	InfoHash [20]byte
	Name     string
	Trackers []string
}

// New parses a magnet link of the form
// "magnet:?xt=urn:btih:<hash>&dn=<name>&tr=<tracker>&tr=<tracker>...".
func New(link string) (*Magnet, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "magnet" {
		return nil, errors.New("magnet: not a magnet uri")
	}
	q := u.Query()

	var hash [20]byte
	found := false
	for _, xt := range q["xt"] {
		const prefix = "urn:btih:"
		if !strings.HasPrefix(xt, prefix) {
			continue
		}
		h, err := decodeInfoHash(xt[len(prefix):])
		if err != nil {
			return nil, err
		}
		hash = h
		found = true
		break
	}
	if !found {
		return nil, errors.New("magnet: no urn:btih exact topic found")
	}

	m := &Magnet{
		InfoHash: hash,
		Name:     q.Get("dn"),
		Trackers: q["tr"],
	}
	return m, nil
}

func decodeInfoHash(s string) ([20]byte, error) {
	var hash [20]byte
	switch len(s) {
	case 40:
		b, err := hex.DecodeString(s)
		if err != nil {
			return hash, err
		}
		copy(hash[:], b)
		return hash, nil
	case 32:
		b, err := base32.StdEncoding.DecodeString(strings.ToUpper(s))
		if err != nil {
			return hash, err
		}
		copy(hash[:], b)
		return hash, nil
	default:
		return hash, errors.New("magnet: invalid info hash length in urn:btih")
	}
}

// String renders m back into a magnet URI.
func (m *Magnet) String() string {
	v := url.Values{}
	v.Add("xt", "urn:btih:"+hex.EncodeToString(m.InfoHash[:]))
	if m.Name != "" {
		v.Add("dn", m.Name)
	}
	for _, tr := range m.Trackers {
		v.Add("tr", tr)
	}
	return "magnet:?" + v.Encode()
}
