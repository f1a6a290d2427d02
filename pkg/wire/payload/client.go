package payload

import "github.com/torchat/torchat-go/pkg/wire"

// Client carries the sender's software name, sent alongside Version
// during the handshake.
type Client struct {
	Name string
}

// NewClient returns a Client message for the given software name.
func NewClient(name string) *Client {
	return &Client{Name: name}
}

// Command implements the Message interface.
func (c *Client) Command() string {
	return CmdClient
}

// DecodePayload implements the Message interface.
func (c *Client) DecodePayload(b *wire.Buffer) error {
	c.Name = b.ReadStringUntilEnd()
	return nil
}

// EncodePayload implements the Message interface.
func (c *Client) EncodePayload(b *wire.Buffer) {
	b.WriteString(c.Name)
}
