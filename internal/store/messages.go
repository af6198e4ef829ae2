// Package store keeps chat messages for the backend, in memory or in
// PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TypeText is the message_type of everything the send endpoint stores.
const TypeText = "text"

// Message is a stored chat message. SenderName is a snapshot taken at send
// time so history survives renames.
type Message struct {
	ID             uuid.UUID
	ConversationID string
	SenderName     string
	Body           string
	MessageType    string
	CreatedAt      time.Time
}

// MessageStore is implemented by MemoryStore and Store.
type MessageStore interface {
	// Append stores m and returns it with ID and CreatedAt assigned.
	// CreatedAt strictly increases within a conversation.
	Append(ctx context.Context, m Message) (Message, error)

	// Since returns the conversation's messages oldest first. A non-nil since
	// keeps only messages created strictly after it.
	Since(ctx context.Context, conversationID string, since *time.Time) ([]Message, error)

	// Conversations lists every conversation with at least one message, most
	// recently active first.
	Conversations(ctx context.Context) ([]Conversation, error)
}

// Conversation summarizes one conversation's history.
type Conversation struct {
	ID           string
	UpdatedAt    time.Time
	MessageCount int
}

// Append inserts a message. Inserts into one conversation are serialized by a
// transaction-scoped advisory lock, so created_at order is also commit order:
// a reader that has seen a row can never later find an older one appear.
// created_at is bumped past the newest row so two sends in the same
// microsecond still order.
func (s *Store) Append(ctx context.Context, m Message) (Message, error) {
	m.ID = uuid.New()
	if m.MessageType == "" {
		m.MessageType = TypeText
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, m.ConversationID); err != nil {
		return Message{}, fmt.Errorf("lock conversation: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO chat_messages (id, conversation_id, sender_name, body, message_type, created_at)
		VALUES ($1, $2, $3, $4, $5, GREATEST(
			clock_timestamp(),
			(SELECT max(created_at) + interval '1 microsecond' FROM chat_messages WHERE conversation_id = $2)
		))
		RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderName, m.Body, m.MessageType,
	).Scan(&m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

func (s *Store) Since(ctx context.Context, conversationID string, since *time.Time) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_name, body, message_type, created_at
		FROM chat_messages
		WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR created_at > $2)
		ORDER BY created_at`,
		conversationID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderName, &m.Body, &m.MessageType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (s *Store) Conversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, max(created_at), count(*)
		FROM chat_messages
		GROUP BY conversation_id
		ORDER BY max(created_at) DESC, conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}
