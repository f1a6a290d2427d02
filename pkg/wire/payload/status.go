package payload

import "github.com/torchat/torchat-go/pkg/wire"

// Availability states carried by Status.
const (
	StatusAvailable = "available"
	StatusAway      = "away"
	StatusXA        = "xa"
)

// Status advertises the sender's availability. It doubles as the
// keepalive: peers re-send it periodically on their outgoing connection.
type Status struct {
	State string
}

// NewStatus returns a Status for the given availability state.
func NewStatus(state string) *Status {
	return &Status{State: state}
}

// Command implements the Message interface.
func (s *Status) Command() string {
	return CmdStatus
}

// DecodePayload implements the Message interface.
func (s *Status) DecodePayload(b *wire.Buffer) error {
	s.State = b.ReadStringUntilEnd()
	return nil
}

// EncodePayload implements the Message interface.
func (s *Status) EncodePayload(b *wire.Buffer) {
	b.WriteString(s.State)
}
