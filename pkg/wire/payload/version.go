package payload

import "github.com/torchat/torchat-go/pkg/wire"

// Version carries the sender's software version string.
type Version struct {
	Version string
}

// NewVersion returns a Version message for the given version string.
func NewVersion(v string) *Version {
	return &Version{Version: v}
}

// Command implements the Message interface.
func (v *Version) Command() string {
	return CmdVersion
}

// DecodePayload implements the Message interface.
func (v *Version) DecodePayload(b *wire.Buffer) error {
	v.Version = b.ReadStringUntilEnd()
	return nil
}

// EncodePayload implements the Message interface.
func (v *Version) EncodePayload(b *wire.Buffer) {
	b.WriteString(v.Version)
}
