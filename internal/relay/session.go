// Package relay implements the per-connection session protocol, the
// bounded ingestion pool, and the broadcast aggregator.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peppasd/fog-relay/internal/protocol"
	"github.com/peppasd/fog-relay/internal/storage"
)

// DefaultWriteInterval is the writer task's tick period.
const DefaultWriteInterval = 10 * time.Second

// closeGraceTimeout bounds the best-effort close frame write.
const closeGraceTimeout = time.Second

// Session is one client connection: a single handshake followed by a
// concurrent reader/writer pair bound to the socket and the handshaken
// uid. The reader ingests frames; the writer fans out queued broadcasts.
// The two tasks share a cancellation context: whichever side terminates
// first cancels it, and the other side exits on its next suspension
// point.
type Session struct {
	conn     *websocket.Conn
	store    storage.Store
	ingest   *IngestPool
	log      *slog.Logger
	interval time.Duration

	uid string // set after a successful handshake
}

// NewSession binds a session to an upgraded websocket connection. The
// interval is the writer's tick period; non-positive values use
// DefaultWriteInterval.
func NewSession(conn *websocket.Conn, store storage.Store, ingest *IngestPool, log *slog.Logger, interval time.Duration) *Session {
	if interval <= 0 {
		interval = DefaultWriteInterval
	}
	return &Session{
		conn:     conn,
		store:    store,
		ingest:   ingest,
		log:      log,
		interval: interval,
	}
}

// Run drives the session to completion: handshake, then reader and
// writer until both have exited. The websocket is closed by the time Run
// returns. A handshake failure closes the socket without registering a
// connection.
func (s *Session) Run(ctx context.Context) error {
	if err := s.handshake(ctx); err != nil {
		s.conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.reader(ctx, cancel)
	}()
	go func() {
		defer wg.Done()
		s.writer(ctx, cancel)
	}()
	wg.Wait()

	s.log.Info("session closed", "uid", s.uid)
	return nil
}

// handshake blocks for exactly one inbound frame, which must be CONN.
// An unknown uid is registered; a known one is left untouched.
func (s *Session) handshake(ctx context.Context) error {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading initial frame: %w", err)
	}

	h, err := protocol.DecodeHandshake(string(data))
	if err != nil {
		return err
	}

	if _, err := s.store.GetConnection(ctx, h.UID); err != nil {
		if !storage.IsNotFound(err) {
			return fmt.Errorf("looking up connection: %w", err)
		}
		if _, err := s.store.CreateConnection(ctx, h.UID); err != nil {
			return fmt.Errorf("registering connection: %w", err)
		}
	}

	s.uid = h.UID
	s.log.Info("session established", "uid", s.uid)
	return nil
}

// reader consumes inbound frames until the transport fails, a frame is
// malformed, a frame carries a foreign uid, or the client disconnects.
// All of those end the session.
func (s *Session) reader(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug("read loop ended", "uid", s.uid, "error", err)
			return
		}

		frame, err := protocol.Decode(string(data))
		if err != nil {
			s.log.Warn("malformed frame, closing session", "uid", s.uid, "error", err)
			return
		}

		switch f := frame.(type) {
		case protocol.Sensor:
			if f.UID != s.uid {
				s.log.Warn("sensor frame for foreign uid, closing session", "uid", s.uid, "frame_uid", f.UID)
				return
			}
			s.ingest.Submit(f)

		case protocol.Disconnect:
			if f.UID != s.uid {
				s.log.Warn("disconnect for foreign uid, closing session", "uid", s.uid, "frame_uid", f.UID)
				return
			}
			// A retained row with no writer draining it would be
			// indistinguishable from a connected client.
			if err := s.store.DeleteConnection(ctx, s.uid); err != nil {
				s.log.Error("failed to delete connection", "uid", s.uid, "error", err)
			}
			s.log.Info("client disconnected", "uid", s.uid)
			return

		default:
			s.log.Warn("unexpected frame mid-session, closing", "uid", s.uid, "frame", string(data))
			return
		}
	}
}

// writer delivers pending broadcasts on a fixed tick. On cancellation it
// sends a best-effort close frame; its exit closes the socket, which
// also unblocks a reader still parked in ReadMessage.
func (s *Session) writer(ctx context.Context, cancel context.CancelFunc) {
	defer s.conn.Close()
	defer cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGraceTimeout))
			return
		case <-ticker.C:
			if err := s.deliverPending(ctx); err != nil {
				return
			}
		}
	}
}

// deliverPending sends every broadcast not yet marked for this uid,
// oldest first. A send failure is fatal; a failed mark is logged and the
// batch continues, accepting one possible redelivery on a later tick.
func (s *Session) deliverPending(ctx context.Context) error {
	msgs, err := s.store.PendingMessages(ctx, s.uid)
	if err != nil {
		// Skip this tick; the next one retries.
		s.log.Error("failed to query pending broadcasts", "uid", s.uid, "error", err)
		return nil
	}

	for _, m := range msgs {
		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(m.Payload)); err != nil {
			s.log.Warn("send failed, closing session", "uid", s.uid, "error", err)
			return err
		}
		if err := s.store.MarkDelivered(ctx, s.uid, m.ID); err != nil {
			s.log.Error("failed to mark delivery", "uid", s.uid, "message_id", m.ID, "error", err)
		}
	}
	return nil
}
