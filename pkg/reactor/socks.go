package reactor

import (
	"fmt"
	"net"
	"strconv"
)

// Proxy describes the SOCKS4a endpoint outgoing connections go through.
// The user id is an arbitrary non-empty identifier the proxy may log.
type Proxy struct {
	Address string
	Port    uint16
	UserID  string
}

const (
	socksVersion4      = 0x04
	socksCmdConnect    = 0x01
	socksReplyLen      = 8
	socksStatusGranted = 0x5A
)

// socksShim decorates the application callback of one outgoing TCP
// handle for the duration of the SOCKS4a handshake. It intercepts the
// first connect and receive, performs the proxy request, then swaps the
// saved application callback back in and replays the connect event.
type socksShim struct {
	tcp  *TCP
	app  Callback
	host string
	port uint16
	user string
}

// OnConnect implements the Callback interface. The TCP handle has just
// reached the proxy; the request goes out through sendNow so it cannot
// interleave with application bytes queued before the handshake
// finished.
func (s *socksShim) OnConnect() {
	if err := s.tcp.sendNow(socks4aRequest(s.host, s.port, s.user)); err != nil {
		s.tcp.r.closeHandle(s.tcp, fmt.Errorf("sending SOCKS request for %s: %w", s.target(), err))
	}
}

// OnReceive implements the Callback interface. The proxy answers with
// exactly 8 bytes; anything else is a protocol error. Byte 1 carries the
// status, 0x5A meaning granted.
func (s *socksShim) OnReceive(p []byte) {
	if len(p) != socksReplyLen {
		s.tcp.r.closeHandle(s.tcp, &SocksError{Target: s.target()})
		return
	}
	if p[1] != socksStatusGranted {
		s.tcp.r.closeHandle(s.tcp, &SocksError{Status: p[1], Target: s.target()})
		return
	}
	t := s.tcp
	t.cb = s.app
	t.inSocks = false
	// Replaying the connect event recomputes WRITE interest for bytes
	// queued during the handshake and gives the application its
	// OnConnect.
	if err := t.EventConnect(); err != nil {
		t.r.closeHandle(t, err)
	}
}

// OnDisconnect implements the Callback interface, propagating the cause
// to the application untouched.
func (s *socksShim) OnDisconnect(reason error) {
	s.app.OnDisconnect(reason)
}

func (s *socksShim) target() string {
	return net.JoinHostPort(s.host, strconv.Itoa(int(s.port)))
}

// socks4aRequest assembles the CONNECT request. The deliberately invalid
// destination IP 0.0.0.1 switches the proxy into 4a mode, making it
// resolve the hostname appended after the user id.
func socks4aRequest(host string, port uint16, user string) []byte {
	req := make([]byte, 0, 10+len(user)+len(host))
	req = append(req, socksVersion4, socksCmdConnect, byte(port>>8), byte(port))
	req = append(req, 0x00, 0x00, 0x00, 0x01)
	req = append(req, user...)
	req = append(req, 0x00)
	req = append(req, host...)
	req = append(req, 0x00)
	return req
}
