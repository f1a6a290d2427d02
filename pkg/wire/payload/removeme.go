package payload

import "github.com/torchat/torchat-go/pkg/wire"

// RemoveMe asks the receiver to forget the sending peer and drop its
// connections.
type RemoveMe struct{}

// Command implements the Message interface.
func (r *RemoveMe) Command() string {
	return CmdRemoveMe
}

// DecodePayload implements the Message interface.
func (r *RemoveMe) DecodePayload(b *wire.Buffer) error {
	return nil
}

// EncodePayload implements the Message interface.
func (r *RemoveMe) EncodePayload(b *wire.Buffer) {}
