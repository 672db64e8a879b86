package magnet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHexInfoHash(t *testing.T) {
	hash := strings.Repeat("ab", 20)
	m, err := New("magnet:?xt=urn:btih:" + hash + "&dn=ubuntu.iso&tr=http://tracker.example/announce")
	require.NoError(t, err)
	require.Equal(t, "ubuntu.iso", m.Name)
	require.Equal(t, []string{"http://tracker.example/announce"}, m.Trackers)
	require.Equal(t, strings.ToLower(hash), hexEncode(m.InfoHash))
}

func TestParseBase32InfoHash(t *testing.T) {
	hash := strings.Repeat("ab", 20)
	hex40, err := New("magnet:?xt=urn:btih:" + hash)
	require.NoError(t, err)

	b32 := base32Encode(hex40.InfoHash)
	m, err := New("magnet:?xt=urn:btih:" + b32)
	require.NoError(t, err)
	require.Equal(t, hex40.InfoHash, m.InfoHash)
}

func TestRejectsNonMagnetScheme(t *testing.T) {
	_, err := New("http://example.com")
	require.Error(t, err)
}

func TestRejectsMissingBTIH(t *testing.T) {
	_, err := New("magnet:?dn=no-hash-here")
	require.Error(t, err)
}

func TestStringRoundTrips(t *testing.T) {
	hash := strings.Repeat("cd", 20)
	m, err := New("magnet:?xt=urn:btih:" + hash + "&dn=name&tr=http://t/a")
	require.NoError(t, err)

	again, err := New(m.String())
	require.NoError(t, err)
	require.Equal(t, m.InfoHash, again.InfoHash)
	require.Equal(t, m.Name, again.Name)
	require.Equal(t, m.Trackers, again.Trackers)
}

func hexEncode(b [20]byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 40)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}

func base32Encode(b [20]byte) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	var sb strings.Builder
	var buf uint64
	var bits uint
	for _, c := range b {
		buf = buf<<8 | uint64(c)
		bits += 8
		for bits >= 5 {
			bits -= 5
			sb.WriteByte(alphabet[(buf>>bits)&0x1f])
		}
	}
	if bits > 0 {
		sb.WriteByte(alphabet[(buf<<(5-bits))&0x1f])
	}
	return sb.String()
}
