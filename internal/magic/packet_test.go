package magic

import (
	"bytes"
	"testing"

	"github.com/mdlayher/wol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacket_Shape(t *testing.T) {
	mac, err := ParseMAC("00:1B:63:84:45:E6")
	require.NoError(t, err)

	p := NewPacket(mac)

	assert.Len(t, p.Bytes(), PacketSize)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 6), p.Bytes()[:6])
	for k := 0; k < 16; k++ {
		assert.Equal(t, mac[:], p.Bytes()[6+6*k:12+6*k], "repetition %d", k)
	}
}

func TestNewPacket_Deterministic(t *testing.T) {
	mac, err := ParseMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	assert.Equal(t, NewPacket(mac), NewPacket(mac))
}

// The builder must agree byte-for-byte with the reference encoder.
func TestNewPacket_MatchesReferenceEncoder(t *testing.T) {
	for _, input := range []string{
		"00:1B:63:84:45:E6",
		"AA:BB:CC:DD:EE:FF",
		"00:00:00:00:00:01",
	} {
		mac, err := ParseMAC(input)
		require.NoError(t, err)

		ref := &wol.MagicPacket{Target: mac.HardwareAddr()}
		want, err := ref.MarshalBinary()
		require.NoError(t, err)

		assert.Equal(t, want, NewPacket(mac).Bytes(), "input %q", input)
	}
}
