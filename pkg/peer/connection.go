package peer

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/torchat/torchat-go/pkg/reactor"
	"github.com/torchat/torchat-go/pkg/wire"
	"github.com/torchat/torchat-go/pkg/wire/payload"
)

// Disconnect reasons for protocol violations by the remote side.
var (
	ErrEmptyMessage     = errors.New("peer has sent empty message")
	ErrMalformedMessage = errors.New("peer has sent malformed message")
	ErrInternal         = errors.New("internal protocol error")
)

// Direction tells which side opened a connection.
type Direction uint8

// The two directions of a peer connection.
const (
	Incoming Direction = iota
	Outgoing
)

// String implements the Stringer interface.
func (d Direction) String() string {
	if d == Incoming {
		return "in"
	}
	return "out"
}

// Dispatcher receives the decoded traffic of a Connection. All calls run
// on the reactor goroutine.
type Dispatcher interface {
	// Connected fires when an outgoing connection becomes usable.
	Connected(c *Connection)
	// Dispatch handles one decoded message. A non-nil error is treated
	// as a bug, not a peer problem, and closes the connection.
	Dispatch(c *Connection, m payload.Message) error
	// Disconnected fires exactly once when the connection dies.
	Disconnected(c *Connection, reason error)
}

// connCounter numbers connections across the process for log
// correlation.
var connCounter uint64

// transport is the slice of a TCP handle a Connection drives.
type transport interface {
	Send(p []byte)
	Close(reason error)
}

// Connection owns one TCP handle and turns its byte stream into typed
// messages: it reassembles terminator-delimited frames across read
// boundaries, decodes them and hands them to the Dispatcher.
type Connection struct {
	link        transport
	dir         Direction
	onion       string
	incomplete  []byte
	disp        Dispatcher
	log         *zap.Logger
	id          uint64
	established bool
}

func newConnection(dir Direction, disp Dispatcher, log *zap.Logger) *Connection {
	id := atomic.AddUint64(&connCounter, 1)
	return &Connection{
		dir:  dir,
		disp: disp,
		id:   id,
		log:  log.With(zap.Uint64("conn", id), zap.Stringer("dir", dir)),
	}
}

// Direction tells which side opened the connection.
func (c *Connection) Direction() Direction {
	return c.dir
}

// Onion returns the peer address this connection is bound to, empty
// until the first ping names it (incoming) or the dial sets it
// (outgoing).
func (c *Connection) Onion() string {
	return c.onion
}

// Established reports whether the connection is usable: adopted, or past
// connect and SOCKS handshake.
func (c *Connection) Established() bool {
	return c.established
}

func (c *Connection) bindOnion(onion string) {
	c.onion = onion
	c.log = c.log.With(zap.String("peer", onion))
}

func (c *Connection) attach(link transport) {
	c.link = link
}

// Send queues the encoded form of the message buffer.
func (c *Connection) Send(b *wire.Buffer) {
	c.link.Send(b.EncodeForSending())
	messagesSent.Inc()
}

// SendMessage encodes and queues one typed message.
func (c *Connection) SendMessage(m payload.Message) {
	c.log.Debug("sending", zap.String("command", m.Command()))
	c.Send(payload.Encode(m))
}

// Close tears the connection down with the given reason. Reactor
// goroutine only.
func (c *Connection) Close(reason error) {
	c.link.Close(reason)
}

// OnConnect implements the reactor.Callback interface.
func (c *Connection) OnConnect() {
	c.established = true
	c.log.Debug("connected")
	c.disp.Connected(c)
}

// OnDisconnect implements the reactor.Callback interface.
func (c *Connection) OnDisconnect(reason error) {
	c.log.Debug("disconnected", zap.Error(reason))
	connectionsClosed.Inc()
	var serr *reactor.SocksError
	if errors.As(reason, &serr) {
		socksFailures.Inc()
	}
	c.disp.Disconnected(c, reason)
}

// OnReceive implements the reactor.Callback interface. Reads are
// arbitrary fragments; frames are complete only at a terminator, so the
// unterminated tail is carried to the next read.
func (c *Connection) OnReceive(p []byte) {
	data := append(c.incomplete, p...)
	for {
		i := bytes.IndexByte(data, wire.Terminator)
		if i < 0 {
			break
		}
		frame := data[:i]
		data = data[i+1:]
		if !c.handleFrame(frame) {
			return
		}
	}
	c.incomplete = append([]byte(nil), data...)
}

// handleFrame decodes and dispatches one complete frame, reporting
// whether the connection is still usable afterwards.
func (c *Connection) handleFrame(frame []byte) bool {
	m, err := payload.Decode(wire.NewBufferFrom(frame))
	if err != nil {
		// An unwrapped end-of-input comes from the command read: the
		// message had no content at all.
		if err == wire.ErrEndOfInput {
			c.Close(ErrEmptyMessage)
		} else {
			c.Close(fmt.Errorf("%w: %s", ErrMalformedMessage, err))
		}
		return false
	}
	messagesReceived.Inc()
	c.log.Debug("received", zap.String("command", m.Command()))
	if err := c.disp.Dispatch(c, m); err != nil {
		c.log.Error("dispatch failed", zap.String("command", m.Command()), zap.Error(err))
		c.Close(fmt.Errorf("%w: %s", ErrInternal, err))
		return false
	}
	return true
}
