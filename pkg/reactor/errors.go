package reactor

import (
	"errors"
	"fmt"
)

var (
	// ErrClosedByRemote is the disconnect reason after EOF on read.
	ErrClosedByRemote = errors.New("connection closed by remote")
	// ErrShuttingDown is the disconnect reason for handles still
	// registered when the reactor stops.
	ErrShuttingDown = errors.New("reactor is shutting down")
)

// SocksError is the disconnect reason for a failed SOCKS4a handshake. A
// zero Status means the proxy reply was malformed, otherwise Status holds
// the reply code the proxy returned instead of the grant.
type SocksError struct {
	Status byte
	Target string
}

// Error implements the error interface.
func (e *SocksError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("malformed SOCKS reply connecting to %s", e.Target)
	}
	return fmt.Sprintf("SOCKS request for %s rejected with status 0x%02X", e.Target, e.Status)
}
