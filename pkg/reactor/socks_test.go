package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSocks4aRequestLayout(t *testing.T) {
	req := socks4aRequest("abcdefghijklmnop.onion", 11009, "TorChat")

	want := []byte{
		0x04, 0x01, // version, CONNECT
		0x2B, 0x01, // port 11009, big-endian
		0x00, 0x00, 0x00, 0x01, // invalid IP, triggers 4a resolution
		0x54, 0x6F, 0x72, 0x43, 0x68, 0x61, 0x74, 0x00, // "TorChat\0"
		0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
		0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F, 0x70,
		0x2E, 0x6F, 0x6E, 0x69, 0x6F, 0x6E, 0x00, // "abcdefghijklmnop.onion\0"
	}
	require.Equal(t, want, req)
}

func TestOutboundQueueOrdering(t *testing.T) {
	var q outboundQueue
	require.True(t, q.empty())
	require.Nil(t, q.head())

	q.push([]byte("first"))
	q.push([]byte("second"))
	require.False(t, q.empty())

	// Partial consumption keeps the head in place with its read
	// position advanced.
	require.Equal(t, []byte("first"), q.head())
	q.advance(3)
	require.Equal(t, []byte("st"), q.head())
	q.advance(2)

	require.Equal(t, []byte("second"), q.head())
	q.advance(6)
	require.True(t, q.empty())

	q.push([]byte("third"))
	q.clear()
	require.True(t, q.empty())
}

func TestOutboundQueueEmptySends(t *testing.T) {
	var q outboundQueue

	// Zero-length buffers must not stall the buffers queued behind them.
	q.push(nil)
	q.push([]byte{})
	q.push([]byte("data"))

	require.Equal(t, []byte("data"), q.head())
	q.advance(4)
	require.Nil(t, q.head())
	require.True(t, q.empty())
}

func TestEventMapping(t *testing.T) {
	require.Equal(t, epollEvents(EventRead), epollEvents(EventAccept))
	require.Equal(t, epollEvents(EventWrite), epollEvents(EventConnect))
	require.NotEqual(t, epollEvents(EventRead), epollEvents(EventWrite))
	require.Zero(t, epollEvents(0))

	ready := readyEvents(epollEvents(EventRead | EventWrite))
	require.Equal(t, EventRead|EventAccept|EventWrite|EventConnect, ready)
}
