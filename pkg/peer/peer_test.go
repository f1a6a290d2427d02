package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fakeConn(t *testing.T, dir Direction) (*Connection, *fakeTransport) {
	tr := &fakeTransport{}
	conn := newConnection(dir, &recordingDispatcher{}, zaptest.NewLogger(t))
	conn.attach(tr)
	return conn, tr
}

func TestDisplacedConnectionsAreClosed(t *testing.T) {
	p := &Peer{Onion: "abcdefghijklmnop"}

	in1, tr1 := fakeConn(t, Incoming)
	in2, tr2 := fakeConn(t, Incoming)
	p.setIncoming(in1)
	require.Empty(t, tr1.closed)
	p.setIncoming(in2)
	require.Len(t, tr1.closed, 1)
	require.Empty(t, tr2.closed)
	require.Same(t, in2, p.in)

	out1, tr3 := fakeConn(t, Outgoing)
	out2, tr4 := fakeConn(t, Outgoing)
	p.setOutgoing(out1)
	p.pingSent = true
	p.handshaken = true
	p.setOutgoing(out2)
	require.Len(t, tr3.closed, 1)
	require.Empty(t, tr4.closed)

	// The handshake belonged to the displaced connection.
	require.False(t, p.pingSent)
	require.False(t, p.handshaken)
}

func TestReady(t *testing.T) {
	p := &Peer{Onion: "abcdefghijklmnop"}
	require.False(t, p.Ready())

	in, _ := fakeConn(t, Incoming)
	out, _ := fakeConn(t, Outgoing)
	p.setIncoming(in)
	require.False(t, p.Ready())
	p.setOutgoing(out)
	require.False(t, p.Ready())
	p.handshaken = true
	require.True(t, p.Ready())

	require.True(t, p.dropConnection(out))
	require.False(t, p.Ready())
	require.False(t, p.dropConnection(in))
}
