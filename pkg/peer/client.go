package peer

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torchat/torchat-go/internal/random"
	"github.com/torchat/torchat-go/pkg/reactor"
	"github.com/torchat/torchat-go/pkg/wire/payload"
)

// DefaultPort is the well-known hidden service port of the chat
// protocol.
const DefaultPort uint16 = 11009

// keepaliveInterval paces the periodic status re-send on ready peers.
const keepaliveInterval = 2 * time.Minute

// ErrPeerNotReady is returned when a chat line is submitted for a peer
// whose handshake has not completed.
var ErrPeerNotReady = errors.New("peer is not ready for chat")

// Config carries the identity and collaborator surface of a Client. The
// event funcs are optional; they fire on the reactor goroutine and must
// not block.
type Config struct {
	// Onion is our own service address, without the .onion suffix.
	Onion string
	// ListenAddress and ListenPort accept inbound connections,
	// typically forwarded from the hidden service by the proxy host.
	ListenAddress string
	ListenPort    uint16
	// Proxy is the SOCKS4a endpoint all outgoing connections use.
	Proxy reactor.Proxy
	// ConnectPort is the hidden service port peers listen on.
	ConnectPort uint16
	// Status is the initial availability state to advertise.
	Status string
	// ClientName and ClientVersion identify the software during the
	// handshake.
	ClientName    string
	ClientVersion string

	OnChatEstablished func(onion string)
	OnChatMessage     func(onion, text string)
	OnStatusChange    func(onion, state string)
	OnPeerGone        func(onion string, reason error)
}

// Client maintains the peer table and drives the application-level
// handshake. All of its methods run on the reactor goroutine; other
// goroutines reach it through Reactor.InvokeLater.
type Client struct {
	r   *reactor.Reactor
	cfg Config
	log *zap.Logger

	// cookie is our ping cookie, regenerated per process start.
	cookie string
	status string

	peers    map[string]*Peer
	pending  map[*Connection]struct{}
	listener *reactor.Listener

	stopKeepalive chan struct{}
}

// NewClient returns a Client for the given identity.
func NewClient(r *reactor.Reactor, cfg Config, log *zap.Logger) *Client {
	if cfg.ConnectPort == 0 {
		cfg.ConnectPort = DefaultPort
	}
	status := cfg.Status
	if status == "" {
		status = payload.StatusAvailable
	}
	return &Client{
		r:       r,
		cfg:     cfg,
		log:     log,
		cookie:  random.Cookie(),
		status:  status,
		peers:   make(map[string]*Peer),
		pending: make(map[*Connection]struct{}),
	}
}

// Start binds the listener and begins accepting peers. Reactor goroutine
// only.
func (c *Client) Start() error {
	l, err := c.r.Listen(c.cfg.ListenAddress, c.cfg.ListenPort, c.onAccept)
	if err != nil {
		return fmt.Errorf("starting peer listener: %w", err)
	}
	c.listener = l
	c.stopKeepalive = make(chan struct{})
	go c.keepaliveLoop(c.stopKeepalive)
	c.log.Info("accepting peers",
		zap.String("address", c.cfg.ListenAddress),
		zap.Uint16("port", l.Port()),
		zap.String("onion", c.cfg.Onion))
	return nil
}

// Stop closes the listener and every peer connection. Reactor goroutine
// only.
func (c *Client) Stop() {
	if c.stopKeepalive != nil {
		close(c.stopKeepalive)
		c.stopKeepalive = nil
	}
	if c.listener != nil {
		c.listener.Shutdown(nil)
		c.listener = nil
	}
	for conn := range c.pending {
		conn.Close(reactor.ErrShuttingDown)
	}
	for _, p := range c.peers {
		if p.in != nil {
			p.in.Close(reactor.ErrShuttingDown)
		}
		if p.out != nil {
			p.out.Close(reactor.ErrShuttingDown)
		}
	}
}

// ListenPort returns the port the peer listener is bound to, useful
// when the configuration asked for an ephemeral one.
func (c *Client) ListenPort() uint16 {
	if c.listener == nil {
		return 0
	}
	return c.listener.Port()
}

// Peer returns the record for the given onion address, nil if unknown.
func (c *Client) Peer(onion string) *Peer {
	return c.peers[onion]
}

// AddContact dials the given peer and opens the handshake with our own
// ping. Reactor goroutine only.
func (c *Client) AddContact(onion string) error {
	if !payload.ValidOnion(onion) {
		return fmt.Errorf("invalid onion address %q", onion)
	}
	p, ok := c.peers[onion]
	if !ok {
		p = &Peer{Onion: onion}
		c.peers[onion] = p
	}
	if p.out == nil {
		return c.dialPeer(p)
	}
	return nil
}

// SendMessage queues one chat line to a ready peer. Reactor goroutine
// only.
func (c *Client) SendMessage(onion, text string) error {
	p := c.peers[onion]
	if p == nil || !p.Ready() {
		return fmt.Errorf("%w: %s", ErrPeerNotReady, onion)
	}
	p.out.SendMessage(payload.NewChat(text))
	return nil
}

// SetStatus changes our advertised availability and pushes it to every
// ready peer. Reactor goroutine only.
func (c *Client) SetStatus(state string) {
	c.status = state
	c.broadcastStatus()
}

func (c *Client) onAccept(t *reactor.TCP) {
	conn := newConnection(Incoming, c, c.log)
	conn.attach(t)
	conn.established = true
	t.SetCallback(conn)
	c.pending[conn] = struct{}{}
	connectionsAccepted.Inc()
	c.log.Debug("inbound connection", zap.String("from", t.RemoteAddr()))
}

// dialPeer opens the outgoing connection through the proxy. The
// handshake messages go out from the Connected upcall once the proxy
// grants the request.
func (c *Client) dialPeer(p *Peer) error {
	conn := newConnection(Outgoing, c, c.log)
	conn.bindOnion(p.Onion)
	t, err := c.r.DialSocks(c.cfg.Proxy, p.Onion+".onion", c.cfg.ConnectPort, conn)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", p.Onion, err)
	}
	conn.attach(t)
	p.setOutgoing(conn)
	connectionsDialed.Inc()
	return nil
}

// Connected implements the Dispatcher interface. Outgoing connections
// open the handshake here: our own ping first, then, if the peer has
// already pinged us, the answering pong, status, version and client.
func (c *Client) Connected(conn *Connection) {
	p := c.peerFor(conn)
	if p == nil || p.out != conn {
		return
	}
	c.sendHandshake(p)
}

func (c *Client) sendHandshake(p *Peer) {
	if !p.pingSent {
		p.out.SendMessage(payload.NewPing(c.cfg.Onion, c.cookie))
		p.pingSent = true
	}
	if p.peerCookie == "" {
		return
	}
	p.out.SendMessage(payload.NewPong(p.peerCookie))
	p.out.SendMessage(payload.NewStatus(c.status))
	p.out.SendMessage(payload.NewVersion(c.cfg.ClientVersion))
	p.out.SendMessage(payload.NewClient(c.cfg.ClientName))
}

// Dispatch implements the Dispatcher interface.
func (c *Client) Dispatch(conn *Connection, m payload.Message) error {
	switch msg := m.(type) {
	case *payload.Ping:
		c.onPing(conn, msg)
	case *payload.Pong:
		c.onPong(conn, msg)
	case *payload.Status:
		c.onStatus(conn, msg)
	case *payload.Version:
		if p := c.peerFor(conn); p != nil {
			p.version = msg.Version
		}
	case *payload.Client:
		if p := c.peerFor(conn); p != nil {
			p.clientName = msg.Name
		}
	case *payload.Chat:
		c.onChat(conn, msg)
	case *payload.RemoveMe:
		c.onRemoveMe(conn)
	case *payload.NotImplemented:
		c.log.Debug("peer lacks a command we sent", zap.String("command", msg.Offender))
	case *payload.Unknown:
		c.onUnknown(conn, msg)
	default:
		return fmt.Errorf("no handler for %q", m.Command())
	}
	return nil
}

// Disconnected implements the Dispatcher interface.
func (c *Client) Disconnected(conn *Connection, reason error) {
	delete(c.pending, conn)
	p := c.peerFor(conn)
	if p == nil {
		return
	}
	wasReady := p.Ready()
	if p.dropConnection(conn) {
		return
	}
	delete(c.peers, p.Onion)
	if wasReady && c.cfg.OnPeerGone != nil {
		c.cfg.OnPeerGone(p.Onion, reason)
	}
}

// onPing locates or creates the peer record for the advertised address,
// claims the connection for it and answers per the handshake: a missing
// outgoing connection is dialed first; an established one answers
// straight away with pong, status, version and client.
func (c *Client) onPing(conn *Connection, ping *payload.Ping) {
	if !payload.ValidOnion(ping.Onion) {
		conn.Close(fmt.Errorf("%w: bad onion address in ping", ErrMalformedMessage))
		return
	}
	if ping.Onion == c.cfg.Onion {
		// Someone replaying our own ping back at us.
		conn.Close(fmt.Errorf("%w: ping with our own address", ErrMalformedMessage))
		return
	}
	if conn.Onion() != "" && conn.Onion() != ping.Onion {
		conn.Close(fmt.Errorf("%w: ping address differs from the one the connection is bound to", ErrMalformedMessage))
		return
	}

	p, ok := c.peers[ping.Onion]
	if !ok {
		p = &Peer{Onion: ping.Onion}
		c.peers[ping.Onion] = p
	}
	if conn.Onion() == "" {
		conn.bindOnion(ping.Onion)
		delete(c.pending, conn)
		p.setIncoming(conn)
		c.maybeEstablished(p)
	}
	p.peerCookie = ping.Cookie

	switch {
	case p.out == nil:
		if err := c.dialPeer(p); err != nil {
			c.log.Warn("cannot dial back", zap.String("peer", p.Onion), zap.Error(err))
		}
	case p.out.Established():
		c.sendHandshake(p)
	default:
		// Still connecting; Connected flushes the handshake.
	}
}

// onPong completes the handshake when the echoed cookie is the one our
// ping carried.
func (c *Client) onPong(conn *Connection, pong *payload.Pong) {
	p := c.peerFor(conn)
	if p == nil {
		conn.Close(fmt.Errorf("%w: pong on an unclaimed connection", ErrMalformedMessage))
		return
	}
	if pong.Cookie != c.cookie {
		// A stale cookie from an earlier run of ours, or a spoof.
		conn.Close(fmt.Errorf("%w: pong with unknown cookie", ErrMalformedMessage))
		return
	}
	p.handshaken = true
	c.maybeEstablished(p)
}

// maybeEstablished fires the chat-established upcall once per completed
// handshake, whichever of readiness's parts arrived last.
func (c *Client) maybeEstablished(p *Peer) {
	if p.announced || !p.Ready() {
		return
	}
	p.announced = true
	c.log.Info("chat established", zap.String("peer", p.Onion))
	if c.cfg.OnChatEstablished != nil {
		c.cfg.OnChatEstablished(p.Onion)
	}
}

func (c *Client) onStatus(conn *Connection, msg *payload.Status) {
	p := c.peerFor(conn)
	if p == nil {
		return
	}
	changed := p.status != msg.State
	p.status = msg.State
	if changed && c.cfg.OnStatusChange != nil {
		c.cfg.OnStatusChange(p.Onion, msg.State)
	}
}

func (c *Client) onChat(conn *Connection, msg *payload.Chat) {
	p := c.peerFor(conn)
	if p == nil || !p.handshaken {
		conn.Close(fmt.Errorf("%w: chat message before handshake", ErrMalformedMessage))
		return
	}
	if c.cfg.OnChatMessage != nil {
		c.cfg.OnChatMessage(p.Onion, msg.Text)
	}
}

func (c *Client) onRemoveMe(conn *Connection) {
	p := c.peerFor(conn)
	if p == nil {
		return
	}
	c.log.Info("peer asked to be removed", zap.String("peer", p.Onion))
	delete(c.peers, p.Onion)
	reason := fmt.Errorf("peer %s asked to be removed", p.Onion)
	if p.in != nil {
		p.in.Close(reason)
	}
	if p.out != nil {
		p.out.Close(reason)
	}
}

// onUnknown answers an unrecognized command without closing anything.
// The reply travels on our outgoing connection when one exists.
func (c *Client) onUnknown(conn *Connection, msg *payload.Unknown) {
	c.log.Debug("unknown command", zap.String("command", msg.Command()))
	p := c.peerFor(conn)
	if p != nil && p.out != nil && p.out.Established() {
		p.out.SendMessage(payload.NewNotImplemented(msg.Command()))
	}
}

func (c *Client) peerFor(conn *Connection) *Peer {
	if conn.Onion() == "" {
		return nil
	}
	return c.peers[conn.Onion()]
}

func (c *Client) broadcastStatus() {
	for _, p := range c.peers {
		if p.Ready() {
			p.out.SendMessage(payload.NewStatus(c.status))
		}
	}
}

func (c *Client) keepaliveLoop(stop <-chan struct{}) {
	t := time.NewTicker(keepaliveInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.r.InvokeLater(c.broadcastStatus)
		}
	}
}
