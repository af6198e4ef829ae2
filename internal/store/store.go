package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists chat messages in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the messages table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id              UUID PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_name     TEXT NOT NULL DEFAULT '',
			body            TEXT NOT NULL DEFAULT '',
			message_type    TEXT NOT NULL DEFAULT 'text',
			created_at      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation_created
			ON chat_messages (conversation_id, created_at)`)
	if err != nil {
		return fmt.Errorf("migrate chat_messages: %w", err)
	}
	return nil
}
