package reactor

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listener accepts inbound TCP connections and hands each one, wrapped
// in an adopted TCP handle, to the accept upcall. The upcall must
// install the application callback before returning.
type Listener struct {
	handleBase
	accept func(*TCP)
}

// Listen binds host:port and registers for accept readiness. Reactor
// goroutine only.
func (r *Reactor) Listen(host string, port uint16, accept func(*TCP)) (*Listener, error) {
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("listen on %s: not an IPv4 address", host)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], ip.To4())
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	l := &Listener{
		handleBase: handleBase{r: r, fd: fd, events: EventAccept},
		accept:     accept,
	}
	if err := r.attach(l, EventAccept); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return l, nil
}

// Port returns the port the listener is bound to, useful when it was
// created with port 0.
func (l *Listener) Port() uint16 {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		return uint16(sa4.Port)
	}
	return 0
}

// EventAccept implements the Handle interface. It drains the accept
// backlog completely; readiness is edge-agnostic but a single accept per
// event would starve bursty peers.
func (l *Listener) EventAccept() error {
	for {
		nfd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
		case unix.EAGAIN:
			return nil
		case unix.ECONNABORTED, unix.EINTR:
			continue
		default:
			return os.NewSyscallError("accept", err)
		}
		t, err := adoptTCP(l.r, nfd)
		if err != nil {
			_ = unix.Close(nfd)
			continue
		}
		l.accept(t)
	}
}

// Shutdown implements the Handle interface.
func (l *Listener) Shutdown(reason error) {
	if l.closed {
		return
	}
	l.closed = true
	l.r.detach(l)
	_ = unix.Close(l.fd)
}
