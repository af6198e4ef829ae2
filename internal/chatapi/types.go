package chatapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	SendPath  = "/chat/api/send_message/"
	FetchPath = "/chat/api/fetch_messages/"

	ConversationsPath = "/chat/api/conversations/"

	// CSRFCookie is the cookie the backend issues the token in; CSRFHeader is
	// where state-changing requests must echo it.
	CSRFCookie = "csrftoken"
	CSRFHeader = "X-CSRFToken"

	// SenderHeader names the author for backends that trust a fronting proxy.
	SenderHeader = "X-Chat-Sender"
)

var (
	// ErrMalformedResponse means the server answered 2xx but the body did not
	// decode or lacked a required field.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrSendRejected means the server answered with ok=false.
	ErrSendRejected = errors.New("send rejected")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Message is one chat message as returned by the fetch endpoint.
type Message struct {
	ID          string
	SenderName  string
	Body        string
	CreatedAt   string
	MessageType string
}

// SendResult is the send endpoint's success payload.
type SendResult struct {
	OK         bool
	MessageID  string
	SenderName string
	CreatedAt  string
}

// Conversation is one entry of the conversation list, most recently active
// first.
type Conversation struct {
	ID           string
	UpdatedAt    string
	MessageCount int
}

// wire shapes with pointer fields so absent keys can be told apart from
// zero values.
type sendWire struct {
	OK         *bool           `json:"ok"`
	MessageID  json.RawMessage `json:"message_id"`
	SenderName *string         `json:"sender_name"`
	CreatedAt  *string         `json:"created_at"`
}

type messageWire struct {
	ID          json.RawMessage `json:"id"`
	SenderName  *string         `json:"sender_name"`
	Body        *string         `json:"body"`
	CreatedAt   *string         `json:"created_at"`
	MessageType string          `json:"message_type"`
}

type fetchWire struct {
	Messages *[]messageWire `json:"messages"`
}

type conversationWire struct {
	ID           json.RawMessage `json:"id"`
	UpdatedAt    string          `json:"updated_at"`
	MessageCount int             `json:"message_count"`
}

type conversationsWire struct {
	Conversations *[]conversationWire `json:"conversations"`
}

// idString flattens a string or numeric JSON id into a string.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
