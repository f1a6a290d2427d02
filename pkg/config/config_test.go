package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalDefaults(t *testing.T) {
	cfg, err := Unmarshal([]byte(`
ChatConfiguration:
  OnionAddress: abcdefghijklmnop
`))
	require.NoError(t, err)
	require.Equal(t, "abcdefghijklmnop", cfg.ChatConfiguration.OnionAddress)
	require.Equal(t, DefaultListenAddress, cfg.ChatConfiguration.ListenAddress)
	require.Equal(t, DefaultPort, cfg.ChatConfiguration.ListenPort)
	require.Equal(t, DefaultPort, cfg.ChatConfiguration.ConnectPort)
	require.Equal(t, DefaultProxyAddress, cfg.ChatConfiguration.Proxy.Address)
	require.Equal(t, DefaultProxyPort, cfg.ChatConfiguration.Proxy.Port)
	require.Equal(t, DefaultProxyUserID, cfg.ChatConfiguration.Proxy.UserID)
}

func TestUnmarshalOverrides(t *testing.T) {
	cfg, err := Unmarshal([]byte(`
ChatConfiguration:
  OnionAddress: abcdefghijklmnop
  ListenPort: 11010
  Proxy:
    Address: 127.0.0.2
    Port: 9150
    UserID: test
ApplicationConfiguration:
  LogLevel: debug
  Prometheus:
    Enabled: true
    Addresses:
      - ":2112"
`))
	require.NoError(t, err)
	require.Equal(t, uint16(11010), cfg.ChatConfiguration.ListenPort)
	require.Equal(t, uint16(9150), cfg.ChatConfiguration.Proxy.Port)
	require.Equal(t, "test", cfg.ChatConfiguration.Proxy.UserID)
	require.Equal(t, "debug", cfg.ApplicationConfiguration.LogLevel)
	require.True(t, cfg.ApplicationConfiguration.Prometheus.Enabled)
	require.Equal(t, []string{":2112"}, cfg.ApplicationConfiguration.Prometheus.Addresses)
}

func TestValidateRejects(t *testing.T) {
	validate := func(y string) error {
		cfg, err := Unmarshal([]byte(y))
		require.NoError(t, err)
		return cfg.Validate()
	}

	require.ErrorContains(t, validate(`ChatConfiguration: {}`), "OnionAddress")

	require.ErrorContains(t, validate(`
ChatConfiguration:
  OnionAddress: abcdefghijklmnop
  Proxy:
    UserID: ""
`), "UserID")

	require.ErrorContains(t, validate(`
ChatConfiguration:
  OnionAddress: abcdefghijklmnop
ApplicationConfiguration:
  LogEncoding: xml
`), "LogEncoding")
}
