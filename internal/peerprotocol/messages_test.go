package peerprotocol

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, RequestMessage{Index: 3, Begin: 16384, Length: 16384}))

	id, payload, ok, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Request, id)
	require.Equal(t, RequestMessage{Index: 3, Begin: 16384, Length: 16384}.Encode(), payload)
}

func TestReadMessageKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteKeepAlive(&buf))
	_, _, ok, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	bigLen := uint32(MaxMessageLength + 1)
	lenBuf[0] = byte(bigLen >> 24)
	lenBuf[1] = byte(bigLen >> 16)
	lenBuf[2] = byte(bigLen >> 8)
	lenBuf[3] = byte(bigLen)
	buf.Write(lenBuf[:])

	_, _, _, err := ReadMessage(&buf)
	require.Error(t, err)
}

func TestSimpleMessagesHaveNoPayload(t *testing.T) {
	require.Empty(t, NewChokeMessage().Encode())
	require.Equal(t, Choke, NewChokeMessage().ID())
	require.Equal(t, Unchoke, NewUnchokeMessage().ID())
	require.Equal(t, Interested, NewInterestedMessage().ID())
	require.Equal(t, NotInterested, NewNotInterestedMessage().ID())
	require.Equal(t, HaveAll, NewHaveAllMessage().ID())
	require.Equal(t, HaveNone, NewHaveNoneMessage().ID())
}

func TestCompactAddrRoundTrip(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("1.2.3.4").To4(), Port: 6881}
	compact := CompactFromAddr(addr)
	require.Len(t, compact, 6)

	decoded := AddrFromCompact(compact)
	require.Equal(t, addr.IP.String(), decoded.IP.String())
	require.Equal(t, addr.Port, decoded.Port)
}

func TestAddrFromCompactRejectsWrongLength(t *testing.T) {
	require.Nil(t, AddrFromCompact([]byte{1, 2, 3}))
}

func TestHaveMessageEncodesBigEndianIndex(t *testing.T) {
	m := HaveMessage{Index: 0x01020304}
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, m.Encode())
}

func TestCancelMirrorsRequestEncoding(t *testing.T) {
	req := RequestMessage{Index: 1, Begin: 2, Length: 3}
	cancel := CancelMessage{Index: 1, Begin: 2, Length: 3}
	require.Equal(t, req.Encode(), cancel.Encode())
	require.Equal(t, Cancel, cancel.ID())
}
