package peerprotocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	infoHash := [20]byte{1, 2, 3}
	peerID := [20]byte{9, 9, 9}
	h := NewHandshake(infoHash, peerID)

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))
	require.Equal(t, HandshakeLength, buf.Len())

	got, err := ReadHandshake(&buf)
	require.NoError(t, err)
	require.Equal(t, infoHash, got.InfoHash)
	require.Equal(t, peerID, got.PeerID)
	require.True(t, got.FastExtension())
	require.True(t, got.ExtensionProtocol())
}

func TestHandshakeRejectsBadPstrlen(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(5)
	buf.Write(make([]byte, 5+8+20+20))
	_, err := ReadHandshake(&buf)
	require.Error(t, err)
}

func TestHandshakeRejectsWrongPstr(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(len(Pstr)))
	buf.WriteString("not the right protocol str")
	buf.Write(make([]byte, 8+20+20))
	_, err := ReadHandshake(&buf)
	require.Error(t, err)
}

func TestHandshakeWithoutExtensionBitsReportsFalse(t *testing.T) {
	h := Handshake{}
	require.False(t, h.FastExtension())
	require.False(t, h.ExtensionProtocol())
}
