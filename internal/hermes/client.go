package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectMessageSent is published once per message accepted by the send
// endpoint.
const SubjectMessageSent = "chat.message.sent"

// MessageSentEvent lets other services follow conversations without polling
// the fetch endpoint.
type MessageSentEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderName     string `json:"sender_name"`
	MessageType    string `json:"message_type"`
	CreatedAt      string `json:"created_at"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("chatd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// PublishMessageSent announces a stored message.
func (c *Client) PublishMessageSent(ev MessageSentEvent) error {
	if err := c.Publish(SubjectMessageSent, ev); err != nil {
		return err
	}
	c.logger.Debug("event published", "subject", SubjectMessageSent, "message_id", ev.MessageID)
	return nil
}

func (c *Client) Close() {
	c.conn.Close()
}
