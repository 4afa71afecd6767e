// Package record keeps a ledger of forwarded messages so a message is forwarded once.
package record

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Forward is one ledger row.
type Forward struct {
	ChatID      int64
	MessageID   int
	TargetID    int64
	ForwardedAt time.Time
}

func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "record")

	if path == "" {
		return nil, errors.New("open record store: empty path")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init record schema: %w", err)
	}

	log.Info("Record store opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// Forwarded reports whether the message was already forwarded.
func (s *Store) Forwarded(ctx context.Context, chatID int64, messageID int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forwards WHERE chat_id = ? AND message_id = ?`,
		chatID, messageID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query forward: %w", err)
	}
	return n > 0, nil
}

// Record stores a forward. Recording the same message twice keeps the first row.
func (s *Store) Record(ctx context.Context, chatID int64, messageID int, targetID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO forwards (chat_id, message_id, target_id, forwarded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id, message_id) DO NOTHING`,
		chatID, messageID, targetID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record forward: %w", err)
	}
	return nil
}

// Recent returns up to limit forwards, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Forward, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, message_id, target_id, forwarded_at FROM forwards
		 ORDER BY forwarded_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list forwards: %w", err)
	}
	defer rows.Close()

	var forwards []Forward
	for rows.Next() {
		var f Forward
		if err := rows.Scan(&f.ChatID, &f.MessageID, &f.TargetID, &f.ForwardedAt); err != nil {
			return nil, fmt.Errorf("scan forward: %w", err)
		}
		forwards = append(forwards, f)
	}
	return forwards, rows.Err()
}

func (s *Store) Close() error {
	s.log.Debug("Record store closed")
	return s.db.Close()
}
