// Package domain defines the persistent record types shared by the relay
// core and its storage layer.
package domain

// Connection is one registered client, keyed by its opaque 36-character
// uid. The uid is the stable identity of a client across reconnects.
type Connection struct {
	ID       int64
	UID      string
	LastSeen int64 // epoch seconds, bumped on every accepted reading
}

// Reading is one ingested sensor value. The reading log is append-only.
type Reading struct {
	ID        int64
	UID       string
	Value     float64
	CreatedAt int64 // epoch seconds, taken from the SENSOR frame
}

// QueuedMessage is one broadcast payload awaiting delivery. The payload
// is itself a wire frame. Rows are immutable once written.
type QueuedMessage struct {
	ID        int64
	Payload   string
	CreatedAt int64
}

// DeliveryMark records that a client has received a broadcast. At most
// one mark exists per (uid, message) pair.
type DeliveryMark struct {
	UID       string
	MessageID int64
}
