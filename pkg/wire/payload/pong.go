package payload

import (
	"errors"

	"github.com/torchat/torchat-go/pkg/wire"
)

// Pong answers a Ping by echoing its cookie, proving the answering side
// really is reachable at the address the Ping advertised.
type Pong struct {
	Cookie string
}

// NewPong returns a Pong echoing the given cookie.
func NewPong(cookie string) *Pong {
	return &Pong{Cookie: cookie}
}

// Command implements the Message interface.
func (p *Pong) Command() string {
	return CmdPong
}

// DecodePayload implements the Message interface.
func (p *Pong) DecodePayload(b *wire.Buffer) error {
	p.Cookie = b.ReadStringUntilEnd()
	if p.Cookie == "" {
		return errors.New("pong without cookie")
	}
	return nil
}

// EncodePayload implements the Message interface.
func (p *Pong) EncodePayload(b *wire.Buffer) {
	b.WriteString(p.Cookie)
}
