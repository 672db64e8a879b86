package addrlist

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func addr(s string) *net.TCPAddr {
	a, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestPushDedupesAcrossSources(t *testing.T) {
	l := New(0)
	l.Push([]*net.TCPAddr{addr("1.2.3.4:6881")}, Tracker)
	l.Push([]*net.TCPAddr{addr("1.2.3.4:6881")}, DHT)
	require.Equal(t, 1, l.Len())
}

func TestPopIsFIFO(t *testing.T) {
	l := New(0)
	l.Push([]*net.TCPAddr{addr("1.1.1.1:1"), addr("2.2.2.2:2")}, Tracker)
	require.Equal(t, "1.1.1.1:1", l.Pop().String())
	require.Equal(t, "2.2.2.2:2", l.Pop().String())
	require.Nil(t, l.Pop())
}

func TestMaxLenBoundsQueue(t *testing.T) {
	l := New(1)
	l.Push([]*net.TCPAddr{addr("1.1.1.1:1"), addr("2.2.2.2:2")}, Tracker)
	require.Equal(t, 1, l.Len())
}

func TestResetClearsQueueAndSeen(t *testing.T) {
	l := New(0)
	l.Push([]*net.TCPAddr{addr("1.1.1.1:1")}, Tracker)
	l.Reset()
	require.Equal(t, 0, l.Len())
	l.Push([]*net.TCPAddr{addr("1.1.1.1:1")}, Tracker)
	require.Equal(t, 1, l.Len())
}

func TestPeerSourceString(t *testing.T) {
	require.Equal(t, "tracker", Tracker.String())
	require.Equal(t, "dht", DHT.String())
	require.Equal(t, "pex", PEX.String())
	require.Equal(t, "manual", Manual.String())
	require.Equal(t, "incoming", Incoming.String())
}
