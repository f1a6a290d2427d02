package payload

import (
	"errors"

	"github.com/torchat/torchat-go/pkg/wire"
)

// Ping opens the handshake. It carries the sender's onion address and a
// random cookie the sender expects echoed back in a Pong.
type Ping struct {
	Onion  string
	Cookie string
}

// NewPing returns a Ping for the given address and cookie.
func NewPing(onion, cookie string) *Ping {
	return &Ping{Onion: onion, Cookie: cookie}
}

// Command implements the Message interface.
func (p *Ping) Command() string {
	return CmdPing
}

// DecodePayload implements the Message interface.
func (p *Ping) DecodePayload(b *wire.Buffer) error {
	var err error
	if p.Onion, err = b.ReadString(); err != nil {
		return err
	}
	p.Cookie = b.ReadStringUntilEnd()
	if p.Onion == "" || p.Cookie == "" {
		return errors.New("ping without address or cookie")
	}
	return nil
}

// EncodePayload implements the Message interface.
func (p *Ping) EncodePayload(b *wire.Buffer) {
	b.WriteString(p.Onion)
	b.WriteString(p.Cookie)
}

// ValidOnion reports whether s looks like an onion service identifier:
// non-empty lowercase base32 without the .onion suffix.
func ValidOnion(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
