package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torchat/torchat-go/pkg/wire"
)

func TestPingEncodeDecode(t *testing.T) {
	p := NewPing("abcdefghijklmnop", "4343452345")

	b := Encode(p)
	m, err := Decode(b)
	require.NoError(t, err)

	decoded, ok := m.(*Ping)
	require.True(t, ok)
	assert.Equal(t, "abcdefghijklmnop", decoded.Onion)
	assert.Equal(t, "4343452345", decoded.Cookie)
}

func TestPingMissingFields(t *testing.T) {
	for _, frame := range []string{"ping", "ping abcdefghijklmnop", "ping  cookie"} {
		_, err := Decode(wire.NewBufferFrom([]byte(frame)))
		require.Error(t, err, frame)
	}
}

func TestValidOnion(t *testing.T) {
	assert.True(t, ValidOnion("abcdefghijklmnop"))
	assert.True(t, ValidOnion("q2w3e4r5t6y7u2o3"))
	assert.False(t, ValidOnion(""))
	assert.False(t, ValidOnion("ABCDEFGHIJKLMNOP"))
	assert.False(t, ValidOnion("abc.onion"))
	assert.False(t, ValidOnion("abcdefgh ijklmno"))
}
