// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/peppasd/fog-relay/internal/domain"
	"github.com/peppasd/fog-relay/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection makes SQLite serialize the concurrent writes
	// coming from sessions and the aggregator, and keeps an in-memory
	// database on one handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Connection methods

func (s *Store) CreateConnection(ctx context.Context, uid string) (*domain.Connection, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (uid, last_seen) VALUES (?, ?)
	`, uid, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Connection{ID: id, UID: uid, LastSeen: now}, nil
}

func (s *Store) GetConnection(ctx context.Context, uid string) (*domain.Connection, error) {
	var conn domain.Connection
	err := s.db.QueryRowContext(ctx, `
		SELECT id, uid, last_seen FROM connections WHERE uid = ?
	`, uid).Scan(&conn.ID, &conn.UID, &conn.LastSeen)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "connection", ID: uid}
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *Store) TouchConnection(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE connections SET last_seen = ? WHERE uid = ?
	`, time.Now().Unix(), uid)
	return err
}

func (s *Store) DeleteConnection(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM connections WHERE uid = ?", uid)
	return err
}

func (s *Store) ConnectionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM connections").Scan(&count)
	return count, err
}

// Reading methods

func (s *Store) AddReading(ctx context.Context, uid string, value float64, createdAt int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (uid, value, created_at) VALUES (?, ?, ?)
	`, uid, value, createdAt)
	return err
}

func (s *Store) RecentReadings(ctx context.Context, n int) ([]*domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uid, value, created_at FROM readings
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*domain.Reading
	for rows.Next() {
		var r domain.Reading
		if err := rows.Scan(&r.ID, &r.UID, &r.Value, &r.CreatedAt); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}
	return readings, rows.Err()
}

func (s *Store) ReadingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings").Scan(&count)
	return count, err
}

// Broadcast queue methods

func (s *Store) EnqueueMessage(ctx context.Context, payload string) (*domain.QueuedMessage, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queued_messages (payload, created_at) VALUES (?, ?)
	`, payload, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.QueuedMessage{ID: id, Payload: payload, CreatedAt: now}, nil
}

func (s *Store) PendingMessages(ctx context.Context, uid string) ([]*domain.QueuedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.payload, m.created_at FROM queued_messages m
		WHERE NOT EXISTS (
			SELECT 1 FROM delivery_marks d
			WHERE d.uid = ? AND d.queued_message_id = m.id
		)
		ORDER BY m.created_at ASC, m.id ASC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.QueuedMessage
	for rows.Next() {
		var m domain.QueuedMessage
		if err := rows.Scan(&m.ID, &m.Payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (s *Store) MarkDelivered(ctx context.Context, uid string, messageID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO delivery_marks (uid, queued_message_id) VALUES (?, ?)
	`, uid, messageID)
	return err
}

func (s *Store) QueuedMessageCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM queued_messages").Scan(&count)
	return count, err
}

func (s *Store) DeliveredCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM delivery_marks").Scan(&count)
	return count, err
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
