// Package payload holds the typed protocol messages exchanged between
// chat peers and the mapping from command names to message constructors.
package payload

import (
	"fmt"

	"github.com/torchat/torchat-go/pkg/wire"
)

// Command names of the protocol messages.
const (
	CmdPing           = "ping"
	CmdPong           = "pong"
	CmdStatus         = "status"
	CmdVersion        = "version"
	CmdClient         = "client"
	CmdMessage        = "message"
	CmdRemoveMe       = "remove_me"
	CmdNotImplemented = "not_implemented"
)

// Message is implemented by every protocol message.
type Message interface {
	// Command returns the command name, the first field on the wire.
	Command() string
	// DecodePayload parses the fields following the command.
	DecodePayload(b *wire.Buffer) error
	// EncodePayload appends the fields following the command.
	EncodePayload(b *wire.Buffer)
}

var constructors = map[string]func() Message{
	CmdPing:           func() Message { return &Ping{} },
	CmdPong:           func() Message { return &Pong{} },
	CmdStatus:         func() Message { return &Status{} },
	CmdVersion:        func() Message { return &Version{} },
	CmdClient:         func() Message { return &Client{} },
	CmdMessage:        func() Message { return &Chat{} },
	CmdRemoveMe:       func() Message { return &RemoveMe{} },
	CmdNotImplemented: func() Message { return &NotImplemented{} },
}

// Decode reads the command field and parses the matching message type.
// Commands without a constructor decode into *Unknown. An empty command
// fails with wire.ErrEndOfInput, a field parse failure wraps the cause.
func Decode(b *wire.Buffer) (Message, error) {
	cmd, err := b.ReadCommand()
	if err != nil {
		return nil, err
	}
	ctor, ok := constructors[cmd]
	var m Message
	if ok {
		m = ctor()
	} else {
		m = &Unknown{Cmd: cmd}
	}
	if err := m.DecodePayload(b); err != nil {
		return nil, fmt.Errorf("decoding %q payload: %w", cmd, err)
	}
	return m, nil
}

// Encode produces a message buffer holding the command field followed by
// the message payload, ready for Buffer.EncodeForSending.
func Encode(m Message) *wire.Buffer {
	b := wire.NewBuffer()
	b.WriteString(m.Command())
	m.EncodePayload(b)
	return b
}
