package reactor

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testTimeout = 5 * time.Second

type testCallback struct {
	connected    chan struct{}
	disconnected chan error
	received     chan []byte
}

func newTestCallback() *testCallback {
	return &testCallback{
		connected:    make(chan struct{}, 16),
		disconnected: make(chan error, 16),
		received:     make(chan []byte, 64),
	}
}

func (c *testCallback) OnConnect() {
	c.connected <- struct{}{}
}

func (c *testCallback) OnDisconnect(reason error) {
	c.disconnected <- reason
}

func (c *testCallback) OnReceive(p []byte) {
	b := make([]byte, len(p))
	copy(b, p)
	c.received <- b
}

func startReactor(t *testing.T) *Reactor {
	r, err := New(zaptest.NewLogger(t))
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run()
	}()
	t.Cleanup(func() {
		r.Stop()
		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Error("reactor did not stop")
		}
	})
	return r
}

// onReactor runs f on the reactor goroutine and waits for it.
func onReactor(t *testing.T, r *Reactor, f func()) {
	done := make(chan struct{})
	r.InvokeLater(func() {
		defer close(done)
		f()
	})
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("reactor task did not run")
	}
}

func recvAll(t *testing.T, cb *testCallback, n int) []byte {
	var got []byte
	deadline := time.After(testTimeout)
	for len(got) < n {
		select {
		case b := <-cb.received:
			got = append(got, b...)
		case <-deadline:
			t.Fatalf("timed out with %d of %d bytes", len(got), n)
		}
	}
	return got
}

func TestDialListenRoundTrip(t *testing.T) {
	r := startReactor(t)

	serverCB := newTestCallback()
	var port uint16
	onReactor(t, r, func() {
		l, err := r.Listen("127.0.0.1", 0, func(conn *TCP) {
			conn.SetCallback(serverCB)
		})
		require.NoError(t, err)
		port = l.Port()
	})

	clientCB := newTestCallback()
	onReactor(t, r, func() {
		conn, err := r.Dial("127.0.0.1", port, clientCB)
		require.NoError(t, err)
		// Queued before the connect event fires; must still arrive
		// first and in order.
		conn.Send([]byte("alpha "))
		conn.Send([]byte("beta "))
		conn.Send([]byte("gamma"))
	})

	select {
	case <-clientCB.connected:
	case <-time.After(testTimeout):
		t.Fatal("no connect upcall")
	}

	got := recvAll(t, serverCB, len("alpha beta gamma"))
	require.Equal(t, []byte("alpha beta gamma"), got)
}

func TestRemoteCloseReported(t *testing.T) {
	r := startReactor(t)

	serverCB := newTestCallback()
	var port uint16
	onReactor(t, r, func() {
		l, err := r.Listen("127.0.0.1", 0, func(conn *TCP) {
			conn.SetCallback(serverCB)
		})
		require.NoError(t, err)
		port = l.Port()
	})

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	select {
	case reason := <-serverCB.disconnected:
		require.ErrorIs(t, reason, ErrClosedByRemote)
	case <-time.After(testTimeout):
		t.Fatal("no disconnect upcall")
	}
}

func TestStopClosesHandles(t *testing.T) {
	r, err := New(zaptest.NewLogger(t))
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run()
	}()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			_, _ = io.Copy(io.Discard, c)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)

	cb := newTestCallback()
	onReactor(t, r, func() {
		_, err := r.Dial("127.0.0.1", uint16(addr.Port), cb)
		require.NoError(t, err)
	})
	select {
	case <-cb.connected:
	case <-time.After(testTimeout):
		t.Fatal("no connect upcall")
	}

	r.Stop()
	select {
	case reason := <-cb.disconnected:
		require.ErrorIs(t, reason, ErrShuttingDown)
	case <-time.After(testTimeout):
		t.Fatal("no disconnect upcall")
	}
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("reactor did not stop")
	}
}

// fakeProxy implements just enough of a SOCKS4a server to script replies.
type fakeProxy struct {
	ln      net.Listener
	request chan []byte
	data    chan []byte
}

func newFakeProxy(t *testing.T, reply []byte) *fakeProxy {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	p := &fakeProxy{ln: ln, request: make(chan []byte, 1), data: make(chan []byte, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Fixed 8-byte header, then two NUL-terminated strings.
		req := make([]byte, 0, 64)
		nuls := 0
		one := make([]byte, 1)
		for nuls < 2 {
			if _, err := conn.Read(one); err != nil {
				return
			}
			req = append(req, one[0])
			if len(req) > 8 && one[0] == 0x00 {
				nuls++
			}
		}
		p.request <- req
		if _, err := conn.Write(reply); err != nil {
			return
		}
		buf, _ := io.ReadAll(conn)
		p.data <- buf
	}()
	return p
}

func (p *fakeProxy) port() uint16 {
	return uint16(p.ln.Addr().(*net.TCPAddr).Port)
}

func TestSocksHandshakeSuccess(t *testing.T) {
	reply := []byte{0x00, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	proxy := newFakeProxy(t, reply)
	r := startReactor(t)

	cb := newTestCallback()
	var conn *TCP
	onReactor(t, r, func() {
		var err error
		conn, err = r.DialSocks(
			Proxy{Address: "127.0.0.1", Port: proxy.port(), UserID: "TorChat"},
			"abcdefghijklmnop.onion", 11009, cb)
		require.NoError(t, err)
		// Queued mid-handshake: must reach the proxy only after the
		// reply has been consumed.
		conn.Send([]byte("ping abcdefghijklmnop 123\n"))
	})

	select {
	case req := <-proxy.request:
		require.Equal(t, socks4aRequest("abcdefghijklmnop.onion", 11009, "TorChat"), req)
	case <-time.After(testTimeout):
		t.Fatal("proxy saw no request")
	}

	select {
	case <-cb.connected:
	case <-time.After(testTimeout):
		t.Fatal("no connect upcall after proxy grant")
	}
	require.Empty(t, cb.connected, "connect upcall must fire exactly once")

	// Wait for the queue to drain; once it has, WRITE interest must be
	// gone too.
	require.Eventually(t, func() bool {
		var empty bool
		onReactor(t, r, func() { empty = conn.out.empty() })
		return empty
	}, testTimeout, 10*time.Millisecond)
	onReactor(t, r, func() {
		require.Zero(t, conn.Subscribed()&EventWrite)
		conn.Close(errors.New("test done"))
	})
	select {
	case data := <-proxy.data:
		require.Equal(t, []byte("ping abcdefghijklmnop 123\n"), data)
	case <-time.After(testTimeout):
		t.Fatal("proxy saw no application data")
	}
}

func TestSocksHandshakeRejected(t *testing.T) {
	reply := []byte{0x00, 0x5B, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	proxy := newFakeProxy(t, reply)
	r := startReactor(t)

	cb := newTestCallback()
	onReactor(t, r, func() {
		_, err := r.DialSocks(
			Proxy{Address: "127.0.0.1", Port: proxy.port(), UserID: "TorChat"},
			"abcdefghijklmnop.onion", 11009, cb)
		require.NoError(t, err)
	})

	select {
	case reason := <-cb.disconnected:
		var serr *SocksError
		require.ErrorAs(t, reason, &serr)
		require.EqualValues(t, 0x5B, serr.Status)
		require.Contains(t, serr.Target, "abcdefghijklmnop.onion")
	case <-time.After(testTimeout):
		t.Fatal("no disconnect upcall")
	}
	require.Empty(t, cb.connected, "no connect upcall on rejection")
}

func TestSendIsContiguous(t *testing.T) {
	r := startReactor(t)

	serverCB := newTestCallback()
	var port uint16
	onReactor(t, r, func() {
		l, err := r.Listen("127.0.0.1", 0, func(conn *TCP) {
			conn.SetCallback(serverCB)
		})
		require.NoError(t, err)
		port = l.Port()
	})

	cb := newTestCallback()
	var conn *TCP
	onReactor(t, r, func() {
		var err error
		conn, err = r.Dial("127.0.0.1", port, cb)
		require.NoError(t, err)
	})
	select {
	case <-cb.connected:
	case <-time.After(testTimeout):
		t.Fatal("no connect upcall")
	}

	var want bytes.Buffer
	for i := 0; i < 200; i++ {
		msg := bytes.Repeat([]byte{byte('a' + i%26)}, 100)
		want.Write(msg)
		conn.Send(msg)
	}
	got := recvAll(t, serverCB, want.Len())
	require.Equal(t, want.Bytes(), got)
}
