package payload

import "github.com/torchat/torchat-go/pkg/wire"

// Unknown stands in for any command without a registered constructor.
// Receivers answer it with NotImplemented and keep the connection open.
type Unknown struct {
	Cmd string
	Raw []byte
}

// Command implements the Message interface.
func (u *Unknown) Command() string {
	return u.Cmd
}

// DecodePayload implements the Message interface.
func (u *Unknown) DecodePayload(b *wire.Buffer) error {
	u.Raw = b.ReadBytesUntilEnd()
	return nil
}

// EncodePayload implements the Message interface.
func (u *Unknown) EncodePayload(b *wire.Buffer) {
	if len(u.Raw) > 0 {
		b.WriteBytes(u.Raw)
	}
}
