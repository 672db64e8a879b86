package blocklist

import (
	"bytes"
	"compress/gzip"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPlainTextAndBlocked(t *testing.T) {
	b := New()
	n, err := b.Load([]byte("some range:1.2.3.4-1.2.3.10\n# comment\n\n"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, b.Len())

	require.True(t, b.Blocked(net.ParseIP("1.2.3.5")))
	require.False(t, b.Blocked(net.ParseIP("1.2.3.11")))
}

func TestLoadGzipTransparently(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("10.0.0.1-10.0.0.5\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	b := New()
	n, err := b.Load(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, b.Blocked(net.ParseIP("10.0.0.3")))
}

func TestLoadNonGzipBytesFallBackToPlainText(t *testing.T) {
	b := New()
	n, err := b.Load([]byte("192.168.0.1-192.168.0.2\n"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBlockedIgnoresIPv6(t *testing.T) {
	b := New()
	_, err := b.Load([]byte("1.2.3.4-1.2.3.10\n"))
	require.NoError(t, err)
	require.False(t, b.Blocked(net.ParseIP("::1")))
}

func TestLoadReplacesPreviousContents(t *testing.T) {
	b := New()
	_, err := b.Load([]byte("1.2.3.4-1.2.3.10\n"))
	require.NoError(t, err)
	n, err := b.Load([]byte("5.6.7.8-5.6.7.9\n"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, b.Blocked(net.ParseIP("1.2.3.5")))
	require.True(t, b.Blocked(net.ParseIP("5.6.7.8")))
}
