package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUID = "7f3a1c9e-02bd-4a61-9d25-8c40f1b6e7aa"

func TestDecodeHandshake(t *testing.T) {
	f, err := Decode("CONN#" + testUID)
	require.NoError(t, err)

	h, ok := f.(Handshake)
	require.True(t, ok)
	assert.Equal(t, testUID, h.UID)
}

func TestDecodeHandshakeShortUID(t *testing.T) {
	_, err := Decode("CONN#short-uid")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDecodeHandshakeLongUID(t *testing.T) {
	_, err := Decode("CONN#" + testUID + "x")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDecodeHandshakeWrongArity(t *testing.T) {
	_, err := Decode("CONN")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode("CONN#" + testUID + "#extra")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDecodeSensor(t *testing.T) {
	f, err := Decode("SENSOR#" + testUID + "#1700000000#23.5")
	require.NoError(t, err)

	s, ok := f.(Sensor)
	require.True(t, ok)
	assert.Equal(t, testUID, s.UID)
	assert.Equal(t, int64(1700000000), s.Timestamp)
	assert.Equal(t, 23.5, s.Value)
}

func TestSensorRoundTrip(t *testing.T) {
	raw := "SENSOR#" + testUID + "#1700000000#23.5"

	f, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, f.Encode())
}

func TestDecodeSensorWrongArity(t *testing.T) {
	// 3 fields
	_, err := Decode("SENSOR#" + testUID + "#1700000000")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	// 5 fields
	_, err = Decode("SENSOR#" + testUID + "#1700000000#23.5#extra")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDecodeSensorBadNumbers(t *testing.T) {
	_, err := Decode("SENSOR#" + testUID + "#not-a-ts#23.5")
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = Decode("SENSOR#" + testUID + "#1700000000#not-a-value")
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestDecodeSensorBadUID(t *testing.T) {
	_, err := Decode("SENSOR#nope#1700000000#23.5")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDecodeDisconnect(t *testing.T) {
	f, err := Decode("DISCONN#" + testUID)
	require.NoError(t, err)

	d, ok := f.(Disconnect)
	require.True(t, ok)
	assert.Equal(t, testUID, d.UID)
}

func TestDecodeAverage(t *testing.T) {
	f, err := Decode("AVG#1700000000#21.25")
	require.NoError(t, err)

	a, ok := f.(Average)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), a.Timestamp)
	assert.Equal(t, 21.25, a.Value)
}

func TestEncodeAverage(t *testing.T) {
	a := Average{Timestamp: 1700000000, Value: 2.0}
	assert.Equal(t, "AVG#1700000000#2", a.Encode())
}

func TestEncodeHandshakeAndDisconnect(t *testing.T) {
	assert.Equal(t, "CONN#"+testUID, Handshake{UID: testUID}.Encode())
	assert.Equal(t, "DISCONN#"+testUID, Disconnect{UID: testUID}.Encode())
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode("PING#" + testUID)
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode("")
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestDecodeHandshakeRejectsOtherFrames(t *testing.T) {
	// A well-formed SENSOR frame is still not a handshake.
	_, err := DecodeHandshake("SENSOR#" + testUID + "#1700000000#23.5")
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestDecodeHandshakePropagatesDecodeErrors(t *testing.T) {
	_, err := DecodeHandshake("CONN#bad")
	assert.ErrorIs(t, err, ErrInvalidID)
}
