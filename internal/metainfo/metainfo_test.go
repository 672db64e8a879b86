package metainfo

import (
	"bytes"
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

// buildTorrent bencodes a minimal single-file torrent of totalLength bytes
// split into pieceLength-sized pieces (the last one possibly short), the
// shape NewInfo/New must parse.
func buildTorrent(t *testing.T, pieceLength, totalLength int64) []byte {
	t.Helper()
	numPieces := (totalLength + pieceLength - 1) / pieceLength
	pieces := make([]byte, 0, numPieces*20)
	for i := int64(0); i < numPieces; i++ {
		h := sha1.Sum([]byte{byte(i)})
		pieces = append(pieces, h[:]...)
	}

	info := map[string]interface{}{
		"name":         "file.bin",
		"piece length": pieceLength,
		"pieces":       string(pieces),
		"length":       totalLength,
	}
	infoBytes, err := bencode.EncodeBytes(info)
	require.NoError(t, err)

	top := map[string]interface{}{
		"announce": "http://tracker.example/announce",
		"info":     bencode.RawMessage(infoBytes),
	}
	out, err := bencode.EncodeBytes(top)
	require.NoError(t, err)
	return out
}

func TestNewParsesSingleFileTorrent(t *testing.T) {
	raw := buildTorrent(t, 16*1024, 16*1024+100)
	mi, err := New(bytes.NewReader(raw))
	require.NoError(t, err)

	require.Equal(t, "http://tracker.example/announce", mi.Announce)
	require.Equal(t, uint32(2), mi.Info.NumPieces)
	require.False(t, mi.Info.MultiFile)
	require.Equal(t, int64(16*1024+100), mi.Info.TotalLength)
	require.Equal(t, uint32(100), mi.Info.PieceLengthFor(1))
	require.Equal(t, uint32(16*1024), mi.Info.PieceLengthFor(0))
}

func TestNewRejectsMissingInfoDict(t *testing.T) {
	out, err := bencode.EncodeBytes(map[string]interface{}{"announce": "x"})
	require.NoError(t, err)
	_, err = New(bytes.NewReader(out))
	require.Error(t, err)
}

func TestInfoHashIsSHA1OfRawInfoDict(t *testing.T) {
	raw := buildTorrent(t, 16*1024, 16*1024)
	mi, err := New(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, sha1.Sum(mi.Info.Bytes), mi.Info.Hash)
}

func TestGetTrackersDedupesAndOrdersAnnounceFirst(t *testing.T) {
	mi := &MetaInfo{
		Announce: "http://a/announce",
		AnnounceList: [][]string{
			{"http://a/announce", "http://b/announce"},
			{"http://c/announce"},
		},
	}
	require.Equal(t, []string{"http://a/announce", "http://b/announce", "http://c/announce"}, mi.GetTrackers())
}

func TestPieceCountMismatchIsRejected(t *testing.T) {
	info := map[string]interface{}{
		"name":         "f",
		"piece length": int64(16 * 1024),
		"pieces":       string(make([]byte, 20)), // claims 1 piece
		"length":       int64(16*1024*3 + 1),     // needs 4 pieces
	}
	infoBytes, err := bencode.EncodeBytes(info)
	require.NoError(t, err)
	_, err = NewInfo(infoBytes)
	require.Error(t, err)
}
