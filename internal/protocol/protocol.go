// Package protocol implements the '#'-delimited text frame codec spoken
// between sensor clients and the relay.
//
// Frames are positional: the first token is the type tag, the remaining
// tokens are fields. Recognized frames:
//
//	CONN#<uid>                      handshake
//	SENSOR#<uid>#<timestamp>#<value> reading
//	DISCONN#<uid>                   graceful close
//	AVG#<timestamp>#<value>         broadcast (outbound only)
//
// Payloads must not contain '#'; there is no escaping.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UIDLength is the required length of a client identifier. The uid is
// otherwise opaque; it is not validated as a structured UUID.
const UIDLength = 36

// Decode errors. Every one of them is fatal to the session that received
// the frame.
var (
	ErrInvalidMessage  = errors.New("invalid message")  // wrong field count
	ErrInvalidProtocol = errors.New("invalid protocol") // unknown or unexpected tag
	ErrInvalidID       = errors.New("invalid id")       // uid not exactly 36 characters
	ErrInvalidNumber   = errors.New("invalid number")   // unparsable timestamp or value
)

// Frame is one decoded protocol message.
type Frame interface {
	// Encode renders the frame back to its wire form.
	Encode() string
	frame()
}

// Handshake is the CONN frame that opens a session.
type Handshake struct {
	UID string
}

// Sensor is a SENSOR reading frame.
type Sensor struct {
	UID       string
	Timestamp int64
	Value     float64
}

// Disconnect is the DISCONN frame requesting a graceful close.
type Disconnect struct {
	UID string
}

// Average is the AVG broadcast frame produced by the aggregator.
type Average struct {
	Timestamp int64
	Value     float64
}

func (Handshake) frame()  {}
func (Sensor) frame()     {}
func (Disconnect) frame() {}
func (Average) frame()    {}

func (h Handshake) Encode() string { return "CONN#" + h.UID }

func (d Disconnect) Encode() string { return "DISCONN#" + d.UID }

func (s Sensor) Encode() string {
	return fmt.Sprintf("SENSOR#%s#%d#%s", s.UID, s.Timestamp, formatValue(s.Value))
}

func (a Average) Encode() string {
	return fmt.Sprintf("AVG#%d#%s", a.Timestamp, formatValue(a.Value))
}

// formatValue renders a float with the shortest representation that
// round-trips through ParseFloat.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Decode parses a raw wire frame into its typed form.
func Decode(raw string) (Frame, error) {
	parts := strings.Split(raw, "#")

	switch parts[0] {
	case "CONN":
		uid, err := uidField(parts, 2)
		if err != nil {
			return nil, err
		}
		return Handshake{UID: uid}, nil

	case "DISCONN":
		uid, err := uidField(parts, 2)
		if err != nil {
			return nil, err
		}
		return Disconnect{UID: uid}, nil

	case "SENSOR":
		if len(parts) != 4 {
			return nil, fmt.Errorf("%w: SENSOR has %d fields, want 4", ErrInvalidMessage, len(parts))
		}
		uid := parts[1]
		if len(uid) != UIDLength {
			return nil, fmt.Errorf("%w: %q", ErrInvalidID, uid)
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp %q", ErrInvalidNumber, parts[2])
		}
		val, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %q", ErrInvalidNumber, parts[3])
		}
		return Sensor{UID: uid, Timestamp: ts, Value: val}, nil

	case "AVG":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: AVG has %d fields, want 3", ErrInvalidMessage, len(parts))
		}
		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp %q", ErrInvalidNumber, parts[1])
		}
		val, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %q", ErrInvalidNumber, parts[2])
		}
		return Average{Timestamp: ts, Value: val}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tag %q", ErrInvalidProtocol, parts[0])
	}
}

// DecodeHandshake decodes raw and requires it to be a CONN frame. A
// session uses it for the first inbound frame; any other frame type,
// valid or not, rejects the handshake.
func DecodeHandshake(raw string) (Handshake, error) {
	f, err := Decode(raw)
	if err != nil {
		return Handshake{}, err
	}
	h, ok := f.(Handshake)
	if !ok {
		return Handshake{}, fmt.Errorf("%w: expected CONN frame", ErrInvalidProtocol)
	}
	return h, nil
}

func uidField(parts []string, arity int) (string, error) {
	if len(parts) != arity {
		return "", fmt.Errorf("%w: %s has %d fields, want %d", ErrInvalidMessage, parts[0], len(parts), arity)
	}
	uid := parts[1]
	if len(uid) != UIDLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, uid)
	}
	return uid, nil
}
