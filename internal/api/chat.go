package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/chatpopup/internal/hermes"
	"github.com/MikeSquared-Agency/chatpopup/internal/store"
)

// TimeLayout renders created_at with fixed microsecond precision so string
// order and time order agree.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

const (
	senderHeader  = "X-Chat-Sender"
	defaultSender = "anonymous"
)

type sendResponse struct {
	OK         bool   `json:"ok"`
	MessageID  string `json:"message_id"`
	CreatedAt  string `json:"created_at"`
	SenderName string `json:"sender_name"`
}

type messageJSON struct {
	ID          string `json:"id"`
	SenderName  string `json:"sender_name"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
	MessageType string `json:"message_type"`
}

type fetchResponse struct {
	Messages []messageJSON `json:"messages"`
}

type conversationJSON struct {
	ID           string `json:"id"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

type conversationsResponse struct {
	Conversations []conversationJSON `json:"conversations"`
}

// sendMessage handles POST /chat/api/send_message/
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid data", http.StatusBadRequest)
		return
	}
	conversationID := strings.TrimSpace(r.PostForm.Get("conversation"))
	if conversationID == "" {
		http.Error(w, "Invalid data", http.StatusBadRequest)
		return
	}
	body := strings.TrimSpace(r.PostForm.Get("body"))
	if body == "" {
		http.Error(w, "Empty message", http.StatusBadRequest)
		return
	}
	sender := strings.TrimSpace(r.Header.Get(senderHeader))
	if sender == "" {
		sender = defaultSender
	}

	msg, err := s.store.Append(r.Context(), store.Message{
		ConversationID: conversationID,
		SenderName:     sender,
		Body:           body,
		MessageType:    store.TypeText,
	})
	if err != nil {
		s.logger.Error("store message failed", "conversation", conversationID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	createdAt := msg.CreatedAt.UTC().Format(TimeLayout)
	if s.events != nil {
		if err := s.events.PublishMessageSent(hermes.MessageSentEvent{
			MessageID:      msg.ID.String(),
			ConversationID: msg.ConversationID,
			SenderName:     msg.SenderName,
			MessageType:    msg.MessageType,
			CreatedAt:      createdAt,
		}); err != nil {
			s.logger.Warn("failed to publish message event", "message_id", msg.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, sendResponse{
		OK:         true,
		MessageID:  msg.ID.String(),
		CreatedAt:  createdAt,
		SenderName: msg.SenderName,
	})
}

// fetchMessages handles GET /chat/api/fetch_messages/
func (s *Server) fetchMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation"))
	if conversationID == "" {
		http.Error(w, "Invalid params", http.StatusBadRequest)
		return
	}

	// an unparsable since is ignored and the full history returned
	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			since = &t
		} else {
			s.logger.Debug("ignoring invalid since", "since", raw, "error", err)
		}
	}

	msgs, err := s.store.Since(r.Context(), conversationID, since)
	if err != nil {
		s.logger.Error("load messages failed", "conversation", conversationID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := fetchResponse{Messages: make([]messageJSON, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, messageJSON{
			ID:          m.ID.String(),
			SenderName:  m.SenderName,
			Body:        m.Body,
			CreatedAt:   m.CreatedAt.UTC().Format(TimeLayout),
			MessageType: m.MessageType,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// listConversations handles GET /chat/api/conversations/
func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.Conversations(r.Context())
	if err != nil {
		s.logger.Error("list conversations failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := conversationsResponse{Conversations: make([]conversationJSON, 0, len(convs))}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, conversationJSON{
			ID:           c.ID,
			UpdatedAt:    c.UpdatedAt.UTC().Format(TimeLayout),
			MessageCount: c.MessageCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
