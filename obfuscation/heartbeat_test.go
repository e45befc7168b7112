package obfuscation

import (
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatEmptyPayload(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatEmpty}
	require.Nil(t, p.HeartbeatPayload(0, time.Unix(0, 0)))
}

func TestHeartbeatTimestampPayload(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatTimestampOnly}
	now := time.Unix(12345, 0)
	payload := p.HeartbeatPayload(0, now)
	require.Len(t, payload, 8)
	require.Equal(t, uint64(now.UnixMilli()), binary.BigEndian.Uint64(payload))
}

func TestHeartbeatIoTMimicIsValidJSON(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatIoTMimic}
	payload := p.HeartbeatPayload(7, time.Unix(0, 0))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Contains(t, decoded, "device_id")
	require.Contains(t, decoded, "temperature_c")
}

func TestHeartbeatTelemetryMimicIsValidJSON(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatTelemetryMimic}
	payload := p.HeartbeatPayload(7, time.Unix(0, 0))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Contains(t, decoded, "metric")
}

func TestHeartbeatDNSMimicParsesAsDNSResponse(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatDNSMimic}
	payload := p.HeartbeatPayload(1, time.Unix(0, 0))

	require.GreaterOrEqual(t, len(payload), 12)
	flags := binary.BigEndian.Uint16(payload[2:4])
	require.NotZero(t, flags&0x8000, "QR bit must be set on a response")
	qdcount := binary.BigEndian.Uint16(payload[4:6])
	ancount := binary.BigEndian.Uint16(payload[6:8])
	require.Equal(t, uint16(1), qdcount)
	require.Equal(t, uint16(1), ancount)
}

func TestHeartbeatSTUNMimicHasMagicCookie(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatSTUNMimic}
	payload := p.HeartbeatPayload(1, time.Unix(0, 0))

	require.Len(t, payload, 20)
	require.Equal(t, uint32(0x2112A442), binary.BigEndian.Uint32(payload[4:8]))
}

func TestHeartbeatRTPMimicHasVersion2(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatRTPMimic}
	payload := p.HeartbeatPayload(1, time.Unix(0, 0))

	require.GreaterOrEqual(t, len(payload), 12)
	require.Equal(t, byte(0x80), payload[0]&0xC0)
}

func TestHeartbeatRandomSizeDeterministic(t *testing.T) {
	p := &Profile{Seed: testSeed(), HeartbeatPayloadMode: HeartbeatRandomSize}
	a := p.HeartbeatPayload(4, time.Unix(0, 0))
	b := p.HeartbeatPayload(4, time.Unix(0, 0))
	require.Equal(t, a, b)
}
