/*
Package reactor implements a single-goroutine readiness reactor over
non-blocking sockets: an epoll multiplexer dispatching accept, connect,
read and write events to registered handles, a cross-goroutine task
queue, TCP handles with ordered outbound queueing and a transparent
SOCKS4a client handshake for outgoing connections.

Everything except Reactor.Stop, Reactor.InvokeLater and TCP.Send must run
on the goroutine that called Run. Event handlers must not block: the
reactor suspends only inside the multiplexer wait, so a blocking handler
stalls every connection.
*/
package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const waitBatch = 128

// Reactor owns the multiplexer and the handles registered with it.
type Reactor struct {
	poller  *poller
	handles map[int]Handle
	log     *zap.Logger

	running int32

	taskMtx sync.Mutex
	tasks   []func()
}

// New returns a Reactor ready to Run.
func New(log *zap.Logger) (*Reactor, error) {
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("creating multiplexer: %w", err)
	}
	return &Reactor{
		poller:  p,
		handles: make(map[int]Handle),
		log:     log,
	}, nil
}

// Run blocks the calling goroutine dispatching readiness events until
// Stop is called. On return every still-registered handle has been shut
// down with ErrShuttingDown and the multiplexer is closed.
func (r *Reactor) Run() error {
	atomic.StoreInt32(&r.running, 1)
	events := make([]unix.EpollEvent, waitBatch)
	for atomic.LoadInt32(&r.running) == 1 {
		n, err := r.poller.wait(events)
		if err != nil {
			r.shutdownAll()
			return err
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.poller.wfd {
				r.poller.drainWake()
				continue
			}
			h, ok := r.handles[fd]
			if !ok {
				// Closed by an earlier event of the same batch.
				continue
			}
			r.dispatch(h, events[i].Events)
		}
		r.runTasks()
	}
	r.shutdownAll()
	return nil
}

// Stop makes Run return at the next cycle. Safe from any goroutine.
func (r *Reactor) Stop() {
	atomic.StoreInt32(&r.running, 0)
	r.poller.wake()
}

// InvokeLater enqueues a task to run on the reactor goroutine after the
// current dispatch cycle. Safe from any goroutine.
func (r *Reactor) InvokeLater(task func()) {
	r.taskMtx.Lock()
	r.tasks = append(r.tasks, task)
	r.taskMtx.Unlock()
	r.poller.wake()
}

// dispatch maps readiness flags to handle events, in the fixed order
// accept, connect, read, write. The first failing event shuts the handle
// down; a panicking handler is contained the same way.
func (r *Reactor) dispatch(h Handle, epollEv uint32) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in event handler",
				zap.Int("fd", h.FD()),
				zap.Any("panic", p))
			r.closeHandle(h, fmt.Errorf("internal error: %v", p))
		}
	}()
	ready := readyEvents(epollEv) & h.Subscribed()
	for _, step := range []struct {
		ev   Event
		call func() error
	}{
		{EventAccept, h.EventAccept},
		{EventConnect, h.EventConnect},
		{EventRead, h.EventRead},
		{EventWrite, h.EventWrite},
	} {
		if ready&step.ev == 0 {
			continue
		}
		if err := step.call(); err != nil {
			r.closeHandle(h, err)
			return
		}
		if r.handles[h.FD()] != h {
			// The handler closed its own handle.
			return
		}
	}
}

// closeHandle is the single funnel for everything fatal to a handle.
func (r *Reactor) closeHandle(h Handle, cause error) {
	h.Shutdown(cause)
}

func (r *Reactor) runTasks() {
	r.taskMtx.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.taskMtx.Unlock()
	for _, task := range tasks {
		task()
	}
}

func (r *Reactor) shutdownAll() {
	for _, h := range r.copyHandles() {
		r.closeHandle(h, ErrShuttingDown)
	}
	r.runTasks()
	r.poller.close()
}

func (r *Reactor) copyHandles() []Handle {
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// attach performs the initial multiplexer registration of a handle with
// the subscription its constructor chose.
func (r *Reactor) attach(h Handle, ev Event) error {
	if err := r.poller.add(h.FD(), epollEvents(ev)); err != nil {
		return err
	}
	r.handles[h.FD()] = h
	return nil
}

// update re-registers the interest set of an attached descriptor.
func (r *Reactor) update(fd int, ev Event) error {
	return r.poller.mod(fd, epollEvents(ev))
}

// detach removes a handle from the multiplexer mapping.
func (r *Reactor) detach(h Handle) {
	if _, ok := r.handles[h.FD()]; !ok {
		return
	}
	delete(r.handles, h.FD())
	if err := r.poller.del(h.FD()); err != nil {
		r.log.Debug("unregistering handle", zap.Int("fd", h.FD()), zap.Error(err))
	}
}
