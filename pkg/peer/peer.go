package peer

import "fmt"

// Peer is the record of one buddy. The protocol requires two live TCP
// connections per peer: the one the peer opened to us and the one we
// opened to the peer. Chat is possible only when both exist, the onion
// address is known and the ping/pong handshake completed.
type Peer struct {
	Onion string

	in  *Connection
	out *Connection

	// peerCookie is the cookie from the peer's last ping, echoed back
	// in our pong.
	peerCookie string
	// pingSent tells whether our own ping already went out on the
	// current outgoing connection.
	pingSent   bool
	handshaken bool
	// announced tells whether the chat-established upcall already
	// fired for the current handshake.
	announced bool

	status     string
	version    string
	clientName string
}

// Ready reports whether the peer is ready for chat.
func (p *Peer) Ready() bool {
	return p.in != nil && p.out != nil && p.Onion != "" && p.handshaken
}

// Status returns the last availability state the peer advertised.
func (p *Peer) Status() string {
	return p.status
}

// Version returns the software version the peer advertised.
func (p *Peer) Version() string {
	return p.version
}

// ClientName returns the software name the peer advertised.
func (p *Peer) ClientName() string {
	return p.clientName
}

// setIncoming stores the connection the peer opened to us. A displaced
// connection is closed explicitly; the slot is reassigned first so its
// disconnect upcall cannot tear down the peer record.
func (p *Peer) setIncoming(c *Connection) {
	old := p.in
	p.in = c
	if old != nil && old != c {
		old.Close(fmt.Errorf("replaced by a newer incoming connection from %s", p.Onion))
	}
}

// setOutgoing stores the connection we opened to the peer, closing a
// displaced one. The handshake state belongs to the connection being
// replaced, so it resets.
func (p *Peer) setOutgoing(c *Connection) {
	old := p.out
	p.out = c
	p.pingSent = false
	p.handshaken = false
	p.announced = false
	if old != nil && old != c {
		old.Close(fmt.Errorf("replaced by a newer outgoing connection to %s", p.Onion))
	}
}

// dropConnection clears whichever slot holds c, reporting whether the
// peer has any connection left.
func (p *Peer) dropConnection(c *Connection) bool {
	if p.in == c {
		p.in = nil
	}
	if p.out == c {
		p.out = nil
		p.pingSent = false
		p.handshaken = false
		p.announced = false
	}
	return p.in != nil || p.out != nil
}
