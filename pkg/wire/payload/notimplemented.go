package payload

import "github.com/torchat/torchat-go/pkg/wire"

// NotImplemented is the reply to a command the receiver does not know.
// The offending command rides along for diagnostics; older clients send
// it bare, so an empty field is accepted.
type NotImplemented struct {
	Offender string
}

// NewNotImplemented returns a NotImplemented naming the unknown command.
func NewNotImplemented(offender string) *NotImplemented {
	return &NotImplemented{Offender: offender}
}

// Command implements the Message interface.
func (n *NotImplemented) Command() string {
	return CmdNotImplemented
}

// DecodePayload implements the Message interface.
func (n *NotImplemented) DecodePayload(b *wire.Buffer) error {
	n.Offender = b.ReadStringUntilEnd()
	return nil
}

// EncodePayload implements the Message interface.
func (n *NotImplemented) EncodePayload(b *wire.Buffer) {
	if n.Offender != "" {
		b.WriteString(n.Offender)
	}
}
