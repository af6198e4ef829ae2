package hermes

import (
	"encoding/json"
	"testing"
)

func TestMessageSentEventWireNames(t *testing.T) {
	ev := MessageSentEvent{
		MessageID:      "8c1f",
		ConversationID: "42",
		SenderName:     "Alice",
		MessageType:    "text",
		CreatedAt:      "2024-05-01T10:00:00.000001Z",
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for key, want := range map[string]string{
		"message_id":      "8c1f",
		"conversation_id": "42",
		"sender_name":     "Alice",
		"message_type":    "text",
		"created_at":      "2024-05-01T10:00:00.000001Z",
	} {
		if raw[key] != want {
			t.Errorf("expected %s %q, got %q", key, want, raw[key])
		}
	}
}

func TestSubjectMessageSentConstant(t *testing.T) {
	if SubjectMessageSent != "chat.message.sent" {
		t.Errorf("expected SubjectMessageSent 'chat.message.sent', got '%s'", SubjectMessageSent)
	}
}
