package reactor

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// poller wraps the epoll descriptor together with an eventfd used to
// interrupt the wait from other goroutines.
type poller struct {
	fd  int
	wfd int
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	p := &poller{fd: epfd, wfd: wfd}
	if err := p.add(wfd, unix.EPOLLIN); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func (p *poller) close() {
	_ = unix.Close(p.wfd)
	_ = unix.Close(p.fd)
}

// wake interrupts a blocked wait. Safe from any goroutine; EAGAIN means
// an earlier wakeup has not been consumed yet, which is just as good.
func (p *poller) wake() {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	for {
		_, err := unix.Write(p.wfd, one[:])
		if err != unix.EINTR {
			return
		}
	}
}

func (p *poller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wfd, buf[:])
}

func (p *poller) wait(events []unix.EpollEvent) (int, error) {
	n, err := unix.EpollWait(p.fd, events, -1)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	return n, nil
}

func (p *poller) add(fd int, events uint32) error {
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
	return os.NewSyscallError("epoll_ctl add", err)
}

func (p *poller) mod(fd int, events uint32) error {
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
	return os.NewSyscallError("epoll_ctl mod", err)
}

func (p *poller) del(fd int) error {
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	return os.NewSyscallError("epoll_ctl del", err)
}

// epollEvents maps the subscription bitset to epoll interest flags.
func epollEvents(ev Event) uint32 {
	var out uint32
	if ev&(EventRead|EventAccept) != 0 {
		out |= unix.EPOLLIN
	}
	if ev&(EventWrite|EventConnect) != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

// readyEvents maps reported epoll flags back to the handle event kinds.
// Error and hangup conditions make every subscribed direction ready so
// the handle's own I/O call surfaces the failure.
func readyEvents(epollEv uint32) Event {
	var out Event
	if epollEv&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		out |= EventRead | EventAccept
	}
	if epollEv&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		out |= EventWrite | EventConnect
	}
	return out
}
