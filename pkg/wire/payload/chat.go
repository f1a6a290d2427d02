package payload

import "github.com/torchat/torchat-go/pkg/wire"

// Chat is a chat line addressed to the receiving user. The body runs to
// the end of the message; embedded newlines survive the transfer
// encoding.
type Chat struct {
	Text string
}

// NewChat returns a Chat message with the given body.
func NewChat(text string) *Chat {
	return &Chat{Text: text}
}

// Command implements the Message interface.
func (c *Chat) Command() string {
	return CmdMessage
}

// DecodePayload implements the Message interface.
func (c *Chat) DecodePayload(b *wire.Buffer) error {
	c.Text = b.ReadStringUntilEnd()
	return nil
}

// EncodePayload implements the Message interface.
func (c *Chat) EncodePayload(b *wire.Buffer) {
	b.WriteString(c.Text)
}
