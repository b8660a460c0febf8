package frame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsvpn/client/internal/frame"
)

func TestDataFrameRoundTrip(t *testing.T) {
	packet := []byte{0x45, 0x00, 0x00, 0x1c, 0x01, 0x02}
	msg := frame.NewData(packet, 7, 12345.0)

	raw, err := frame.Encode(msg)
	require.NoError(t, err)

	decoded, err := frame.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, frame.TypeData, decoded.Type)

	out, err := frame.DecodePacket(decoded)
	require.NoError(t, err)
	assert.Equal(t, packet, out)
}

func TestDecodeRejectsOversizeFrame(t *testing.T) {
	raw := make([]byte, 100)
	_, err := frame.Decode(raw, 10)
	assert.Error(t, err)
}

func TestDecodeUnknownTypeIsNonFatal(t *testing.T) {
	msg, err := frame.Decode([]byte(`{"type":"something_new"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, frame.TypeUnknown, msg.Type)
}

func TestPongEchoesPingTimestamp(t *testing.T) {
	ping := frame.NewPing(100.5, map[string]int64{"packets_out": 3})
	pong := frame.NewPong(ping, 101.0)
	assert.Equal(t, frame.TypePong, pong.Type)
	assert.Equal(t, 100.5, pong.ClientTimestamp)
}
