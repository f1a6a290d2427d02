package reactor

// Event is a readiness-interest bitset. READ and ACCEPT map to inbound
// readiness of the multiplexer, WRITE and CONNECT to outbound readiness.
type Event uint8

// Readiness events a Handle can subscribe to.
const (
	EventRead Event = 1 << iota
	EventWrite
	EventConnect
	EventAccept
)

// Handle is anything registered with a Reactor: a non-blocking channel
// identified by its file descriptor plus readiness-event callbacks. All
// event methods run on the reactor goroutine; a non-nil error from any of
// them is fatal to the handle and funnels into Shutdown.
type Handle interface {
	// FD returns the descriptor the handle is registered under.
	FD() int
	// Subscribed returns the events currently mirrored into the
	// multiplexer.
	Subscribed() Event

	EventAccept() error
	EventConnect() error
	EventRead() error
	EventWrite() error

	// Shutdown unregisters the handle, closes the descriptor and fires
	// the disconnect upcall exactly once. Reactor goroutine only.
	Shutdown(reason error)
}

// handleBase carries the state every registered handle shares: the
// non-owning back reference to its reactor, the descriptor it is keyed by
// and the subscribed-events bitset.
type handleBase struct {
	r      *Reactor
	fd     int
	events Event
	closed bool
}

// FD implements the Handle interface.
func (b *handleBase) FD() int {
	return b.fd
}

// Subscribed implements the Handle interface.
func (b *handleBase) Subscribed() Event {
	return b.events
}

// registerEvents is the single mutation point for the subscription
// bitset, keeping it in sync with what the multiplexer has been told.
func (b *handleBase) registerEvents(ev Event) error {
	if b.closed {
		return nil
	}
	b.events = ev
	return b.r.update(b.fd, ev)
}

// Default no-op events for the readiness kinds a concrete handle does not
// subscribe to.

// EventAccept implements the Handle interface.
func (b *handleBase) EventAccept() error { return nil }

// EventConnect implements the Handle interface.
func (b *handleBase) EventConnect() error { return nil }

// EventRead implements the Handle interface.
func (b *handleBase) EventRead() error { return nil }

// EventWrite implements the Handle interface.
func (b *handleBase) EventWrite() error { return nil }
