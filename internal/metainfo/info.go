package metainfo

import (
	"crypto/sha1"
	"errors"
	"path/filepath"

	"github.com/zeebo/bencode"
)

// File describes one file inside a (possibly multi-file) torrent.
type File struct {
	Path   []string
	Length int64
	// Offset is the file's starting byte offset within the concatenated
	// payload of all files, in the order they appear in the info dict.
	Offset int64
}

// FullPath joins Path with the OS separator.
func (f File) FullPath() string {
	return filepath.Join(f.Path...)
}

// Info is the parsed "info" dictionary: piece layout, file list, and the
// attributes that make up the torrent's identity.
type Info struct {
	Bytes       []byte // the raw, undecoded info dict; hashed to get Hash
	Hash        [20]byte
	Name        string
	PieceLength uint32
	NumPieces   uint32
	pieceHashes []byte // concatenated 20-byte SHA-1 hashes, len == NumPieces*20
	Files       []File
	// MultiFile reports whether the info dict had a "files" list (even a
	// single-entry one lives under a Name-named directory) versus a bare
	// "length" (the file IS Name, with no wrapping directory).
	MultiFile   bool
	TotalLength int64
	Private     int64
	InfoSize    uint32 // len(Bytes), used to answer ut_metadata requests
}

type rawInfo struct {
	Name        string `bencode:"name"`
	PieceLength int64  `bencode:"piece length"`
	Pieces      string `bencode:"pieces"`
	Length      int64  `bencode:"length,omitempty"`
	Private     int64  `bencode:"private,omitempty"`
	Files       []struct {
		Length int64    `bencode:"length"`
		Path   []string `bencode:"path"`
	} `bencode:"files,omitempty"`
}

// NewInfo parses the raw bytes of an info dictionary.
func NewInfo(raw []byte) (*Info, error) {
	var ri rawInfo
	if err := bencode.DecodeBytes(raw, &ri); err != nil {
		return nil, err
	}
	if ri.Name == "" {
		return nil, errors.New("info dict missing name")
	}
	if ri.PieceLength <= 0 {
		return nil, errors.New("info dict has invalid piece length")
	}
	if len(ri.Pieces)%20 != 0 {
		return nil, errors.New("info dict pieces length is not a multiple of 20")
	}

	info := &Info{
		Bytes:       append([]byte(nil), raw...),
		Hash:        sha1.Sum(raw),
		Name:        ri.Name,
		PieceLength: uint32(ri.PieceLength),
		NumPieces:   uint32(len(ri.Pieces) / 20),
		pieceHashes: []byte(ri.Pieces),
		Private:     ri.Private,
		InfoSize:    uint32(len(raw)),
	}

	if len(ri.Files) == 0 {
		info.Files = []File{{Path: []string{ri.Name}, Length: ri.Length}}
		info.TotalLength = ri.Length
	} else {
		info.MultiFile = true
		var offset int64
		for _, f := range ri.Files {
			info.Files = append(info.Files, File{Path: f.Path, Length: f.Length, Offset: offset})
			offset += f.Length
		}
		info.TotalLength = offset
	}

	wantPieces := (info.TotalLength + int64(info.PieceLength) - 1) / int64(info.PieceLength)
	if wantPieces != int64(info.NumPieces) {
		return nil, errors.New("info dict piece count does not match total length")
	}
	return info, nil
}

// PieceHash returns the expected SHA-1 hash of piece i.
func (info *Info) PieceHash(i uint32) [20]byte {
	var h [20]byte
	copy(h[:], info.pieceHashes[i*20:i*20+20])
	return h
}

// DiskPath returns the path f should live at under dir: for a
// single-file torrent that's dir/Name; for a multi-file torrent it's
// dir/Name/<f.Path...>.
func (info *Info) DiskPath(dir string, f File) string {
	if !info.MultiFile {
		return filepath.Join(dir, f.FullPath())
	}
	parts := append([]string{dir, info.Name}, f.Path...)
	return filepath.Join(parts...)
}

// PieceLengthFor returns the length in bytes of piece i, which for the
// last piece may be shorter than PieceLength.
func (info *Info) PieceLengthFor(i uint32) uint32 {
	if i == info.NumPieces-1 {
		rem := info.TotalLength - int64(i)*int64(info.PieceLength)
		return uint32(rem)
	}
	return info.PieceLength
}
