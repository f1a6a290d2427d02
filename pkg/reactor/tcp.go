package reactor

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// readBufSize is the size of the scratch buffer a read event fills.
const readBufSize = 2048

// Callback receives the three connection upcalls of a TCP handle. All of
// them originate on the reactor goroutine.
type Callback interface {
	// OnConnect fires once the connection is usable by the application.
	// For SOCKS connections that is after the proxy granted the request.
	OnConnect()
	// OnDisconnect fires exactly once when the handle dies, with the
	// reason it died.
	OnDisconnect(reason error)
	// OnReceive delivers one read's worth of bytes. The slice is owned
	// by the callee.
	OnReceive(p []byte)
}

// TCP is a non-blocking stream connection registered with a Reactor. Its
// outbound queue preserves Send order; the head buffer may be partially
// written when the socket is congested.
type TCP struct {
	handleBase
	cb        Callback
	out       outboundQueue
	connected bool
	inSocks   bool
	dest      string
}

// Dial opens an outgoing connection to an IP address. Loopback connects
// can complete synchronously, in which case the connect event is
// synthesized through the task queue rather than the multiplexer.
// Reactor goroutine only.
func (r *Reactor) Dial(host string, port uint16, cb Callback) (*TCP, error) {
	fd, completed, err := connectSocket(host, port)
	if err != nil {
		return nil, err
	}
	t := &TCP{
		handleBase: handleBase{r: r, fd: fd},
		cb:         cb,
		dest:       net.JoinHostPort(host, strconv.Itoa(int(port))),
	}
	ev := Event(0)
	if !completed {
		ev = EventConnect
	}
	t.events = ev
	if err := r.attach(t, ev); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if completed {
		r.InvokeLater(func() {
			if err := t.EventConnect(); err != nil {
				r.closeHandle(t, err)
			}
		})
	}
	return t, nil
}

// DialSocks opens an outgoing connection to host:port through a SOCKS4a
// proxy. The name in host is resolved by the proxy, never locally. The
// given callback sees OnConnect only after the proxy granted the
// request; bytes passed to Send while the handshake is in flight stay
// queued until then. Reactor goroutine only.
func (r *Reactor) DialSocks(p Proxy, host string, port uint16, cb Callback) (*TCP, error) {
	shim := &socksShim{app: cb, host: host, port: port, user: p.UserID}
	t, err := r.Dial(p.Address, p.Port, shim)
	if err != nil {
		return nil, err
	}
	t.inSocks = true
	t.dest = shim.target()
	shim.tcp = t
	return t, nil
}

// adoptTCP wraps an accepted, already-connected socket. No connect event
// fires for adopted handles; the acceptor installs the callback itself.
func adoptTCP(r *Reactor, fd int) (*TCP, error) {
	t := &TCP{
		handleBase: handleBase{r: r, fd: fd, events: EventRead},
		connected:  true,
	}
	if err := r.attach(t, EventRead); err != nil {
		return nil, err
	}
	return t, nil
}

// SetCallback installs the application callback. Adopted connections get
// theirs from the accept upcall; outgoing ones pass it to Dial.
func (t *TCP) SetCallback(cb Callback) {
	t.cb = cb
}

// RemoteAddr returns the address of the other end, or the dial target
// for outgoing connections.
func (t *TCP) RemoteAddr() string {
	if t.dest != "" {
		return t.dest
	}
	sa, err := unix.Getpeername(t.fd)
	if err != nil {
		return "?"
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.JoinHostPort(net.IP(sa4.Addr[:]).String(), strconv.Itoa(sa4.Port))
	}
	return "?"
}

// Send queues p for transmission after anything already queued. It never
// blocks and is safe before the connect event and from any goroutine;
// the WRITE subscription is reconciled on the reactor goroutine.
func (t *TCP) Send(p []byte) {
	t.out.push(p)
	t.r.InvokeLater(t.updateWriteInterest)
}

// Close shuts the connection down with the given reason. Reactor
// goroutine only; use InvokeLater from elsewhere.
func (t *TCP) Close(reason error) {
	t.Shutdown(reason)
}

// EventConnect implements the Handle interface. It fires a second time
// on SOCKS connections, when the shim hands control to the application;
// only then is WRITE interest allowed to materialize.
func (t *TCP) EventConnect() error {
	if t.closed {
		return nil
	}
	if !t.connected {
		if err := connectResult(t.fd); err != nil {
			return fmt.Errorf("connect to %s: %w", t.dest, err)
		}
		t.connected = true
	}
	ev := EventRead
	if !t.inSocks && !t.out.empty() {
		ev |= EventWrite
	}
	if err := t.registerEvents(ev); err != nil {
		return err
	}
	if t.cb != nil {
		t.cb.OnConnect()
	}
	return nil
}

// EventRead implements the Handle interface.
func (t *TCP) EventRead() error {
	if t.closed {
		return nil
	}
	buf := make([]byte, readBufSize)
	n, err := unix.Read(t.fd, buf)
	switch {
	case err == unix.EAGAIN:
		return nil
	case err != nil:
		return os.NewSyscallError("read", err)
	case n == 0:
		return ErrClosedByRemote
	}
	t.cb.OnReceive(buf[:n])
	return nil
}

// EventWrite implements the Handle interface. It drains the outbound
// queue head by head until the socket pushes back, dropping the WRITE
// subscription once the queue runs empty.
func (t *TCP) EventWrite() error {
	if t.closed {
		return nil
	}
	for {
		head := t.out.head()
		if head == nil {
			break
		}
		n, err := unix.Write(t.fd, head)
		if err == unix.EAGAIN {
			return nil
		}
		if err != nil {
			return os.NewSyscallError("write", err)
		}
		t.out.advance(n)
		if n < len(head) {
			return nil
		}
	}
	return t.registerEvents(t.events &^ EventWrite)
}

// Shutdown implements the Handle interface.
func (t *TCP) Shutdown(reason error) {
	if t.closed {
		return
	}
	t.closed = true
	t.r.detach(t)
	_ = unix.Close(t.fd)
	t.out.clear()
	if t.cb != nil {
		t.cb.OnDisconnect(reason)
	}
}

// updateWriteInterest reconciles the WRITE subscription with the queue
// state: subscribed iff the queue is non-empty, the socket is connected
// and no SOCKS handshake is in flight.
func (t *TCP) updateWriteInterest() {
	if t.closed || !t.connected || t.inSocks {
		return
	}
	ev := t.events &^ EventWrite
	if !t.out.empty() {
		ev |= EventWrite
	}
	if ev == t.events {
		return
	}
	if err := t.registerEvents(ev); err != nil {
		t.r.closeHandle(t, err)
	}
}

// sendNow writes p synchronously, bypassing the queue. Only the SOCKS
// shim uses it: the proxy request must hit the wire as one contiguous
// run before any application bytes queued during the handshake. The
// request is small and the socket freshly connected, so spinning on a
// full send buffer is not a concern.
func (t *TCP) sendNow(p []byte) error {
	for len(p) > 0 {
		n, err := unix.Write(t.fd, p)
		if err == unix.EAGAIN || err == unix.EINTR {
			continue
		}
		if err != nil {
			return os.NewSyscallError("write", err)
		}
		p = p[n:]
	}
	return nil
}

// outboundQueue is the ordered FIFO of buffers awaiting transmission.
// Send may push from any goroutine; the reactor goroutine is the only
// consumer.
type outboundQueue struct {
	mu   sync.Mutex
	bufs [][]byte
	off  int
}

func (q *outboundQueue) push(p []byte) {
	q.mu.Lock()
	q.bufs = append(q.bufs, p)
	q.mu.Unlock()
}

func (q *outboundQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bufs) == 0
}

// head returns the unwritten remainder of the oldest buffer, nil when
// the queue is empty. Fully-consumed and zero-length buffers are dropped
// on the way so a stray empty send cannot stall the drain.
func (q *outboundQueue) head() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.bufs) > 0 && q.off >= len(q.bufs[0]) {
		q.bufs[0] = nil
		q.bufs = q.bufs[1:]
		q.off = 0
	}
	if len(q.bufs) == 0 {
		return nil
	}
	return q.bufs[0][q.off:]
}

// advance moves the head read position forward by n, dropping the head
// once fully consumed.
func (q *outboundQueue) advance(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.off += n
	if len(q.bufs) > 0 && q.off >= len(q.bufs[0]) {
		q.bufs[0] = nil
		q.bufs = q.bufs[1:]
		q.off = 0
	}
}

func (q *outboundQueue) clear() {
	q.mu.Lock()
	q.bufs = nil
	q.off = 0
	q.mu.Unlock()
}

func connectSocket(host string, port uint16) (int, bool, error) {
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return 0, false, fmt.Errorf("dial %s: not an IPv4 address, name resolution is delegated to the proxy", host)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, false, os.NewSyscallError("socket", err)
	}
	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], ip.To4())
	switch err := unix.Connect(fd, sa); err {
	case nil:
		return fd, true, nil
	case unix.EINPROGRESS:
		return fd, false, nil
	default:
		_ = unix.Close(fd)
		return 0, false, os.NewSyscallError("connect", err)
	}
}

// connectResult resolves a pending non-blocking connect.
func connectResult(fd int) error {
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}
