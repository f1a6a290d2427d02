package config

import "errors"

// Defaults for the chat configuration: the protocol's well-known hidden
// service port and a Tor client on its usual loopback SOCKS port.
const (
	DefaultListenAddress = "127.0.0.1"
	DefaultPort          = uint16(11009)
	DefaultProxyAddress  = "127.0.0.1"
	DefaultProxyPort     = uint16(9050)
	DefaultProxyUserID   = "TorChat"
)

// Proxy holds the SOCKS4a endpoint settings.
type Proxy struct {
	Address string `yaml:"Address"`
	Port    uint16 `yaml:"Port"`
	// UserID is an arbitrary non-empty identifier sent in every SOCKS
	// request.
	UserID string `yaml:"UserID"`
}

// ChatConfiguration holds the peer-facing node settings.
type ChatConfiguration struct {
	// OnionAddress is our own service address without the .onion
	// suffix. The proxy host publishes it; we only advertise it in
	// pings.
	OnionAddress string `yaml:"OnionAddress"`
	// ListenAddress and ListenPort take the inbound connections the
	// hidden service forwards to us.
	ListenAddress string `yaml:"ListenAddress"`
	ListenPort    uint16 `yaml:"ListenPort"`
	// ConnectPort is the hidden service port peers are dialed on.
	ConnectPort uint16 `yaml:"ConnectPort"`
	Proxy       Proxy  `yaml:"Proxy"`
	// Status is the initial availability state to advertise.
	Status string `yaml:"Status"`
}

// Validate returns an error if the chat configuration is not usable.
func (c ChatConfiguration) Validate() error {
	if c.OnionAddress == "" {
		return errors.New("OnionAddress is mandatory")
	}
	if c.Proxy.Address == "" || c.Proxy.Port == 0 {
		return errors.New("proxy address and port are mandatory")
	}
	if c.Proxy.UserID == "" {
		return errors.New("proxy UserID must not be empty")
	}
	return nil
}
