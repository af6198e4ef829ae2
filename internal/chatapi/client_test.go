package chatapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	c, err := New(server.URL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	if _, err := New("/chat"); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestFetchURL(t *testing.T) {
	c, err := New("http://chat.example.com/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	got := c.FetchURL("42", nil)
	if got != "http://chat.example.com/chat/api/fetch_messages/?conversation=42" {
		t.Errorf("unexpected url without since: %s", got)
	}
	if strings.Contains(got, "since") {
		t.Errorf("since must be omitted when nil: %s", got)
	}

	since := "2024-05-01T10:00:00.123456+00:00"
	got = c.FetchURL("42", &since)
	want := "http://chat.example.com/chat/api/fetch_messages/?conversation=42&since=2024-05-01T10%3A00%3A00.123456%2B00%3A00"
	if got != want {
		t.Errorf("got %s\nwant %s", got, want)
	}
}

func TestSendMessage_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != SendPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(CSRFHeader) != "tok123" {
			t.Errorf("expected csrf header tok123, got %q", r.Header.Get(CSRFHeader))
		}
		if r.Header.Get(SenderHeader) != "alice" {
			t.Errorf("expected sender header alice, got %q", r.Header.Get(SenderHeader))
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("body") != "Hello <b>" || r.PostForm.Get("conversation") != "7" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "message_id": 99, "sender_name": "Alice", "created_at": "T1"}`))
	}, WithCSRFToken("tok123"), WithSender("alice"))

	res, err := c.SendMessage(context.Background(), url.Values{"body": {"Hello <b>"}, "conversation": {"7"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || res.SenderName != "Alice" || res.CreatedAt != "T1" || res.MessageID != "99" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSendMessage_CSRFFromServerCookie(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case FetchPath:
			http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: "issued", Path: "/"})
			w.Write([]byte(`{"messages": []}`))
		case SendPath:
			if r.Header.Get(CSRFHeader) != "issued" {
				t.Errorf("expected issued token, got %q", r.Header.Get(CSRFHeader))
			}
			w.Write([]byte(`{"ok": true, "sender_name": "A", "created_at": "T"}`))
		}
	})

	if c.CSRFToken() != "" {
		t.Fatal("expected no token before first request")
	}
	if _, err := c.FetchMessages(context.Background(), "1", nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if c.CSRFToken() != "issued" {
		t.Fatalf("expected token from cookie, got %q", c.CSRFToken())
	}
	if _, err := c.SendMessage(context.Background(), url.Values{"body": {"x"}}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not ok", http.StatusOK, `{"ok": false}`, ErrSendRejected},
		{"missing ok", http.StatusOK, `{"sender_name": "A", "created_at": "T"}`, ErrMalformedResponse},
		{"missing created_at", http.StatusOK, `{"ok": true, "sender_name": "A"}`, ErrMalformedResponse},
		{"missing sender", http.StatusOK, `{"ok": true, "created_at": "T"}`, ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>oops</html>`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.SendMessage(context.Background(), url.Values{"body": {"x"}})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSendMessage_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Empty message", http.StatusBadRequest)
	})

	_, err := c.SendMessage(context.Background(), url.Values{"body": {""}})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusBadRequest || se.Body != "Empty message" {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestSendMessage_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	server.Close()

	if _, err := c.SendMessage(context.Background(), url.Values{"body": {"x"}}); err == nil {
		t.Fatal("expected error from closed server")
	}
}

func TestFetchMessages_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("conversation") != "5" {
			t.Errorf("unexpected conversation %q", r.URL.Query().Get("conversation"))
		}
		if r.URL.Query().Get("since") != "T1" {
			t.Errorf("unexpected since %q", r.URL.Query().Get("since"))
		}
		w.Write([]byte(`{"messages": [
			{"id": "a", "sender_name": "Bob", "body": "Hi", "created_at": "T2", "message_type": "text"},
			{"id": 3, "sender_name": "", "body": null, "created_at": "T3"}
		]}`))
	})

	since := "T1"
	msgs, err := c.FetchMessages(context.Background(), "5", &since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0] != (Message{ID: "a", SenderName: "Bob", Body: "Hi", CreatedAt: "T2", MessageType: "text"}) {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].ID != "3" || msgs[1].Body != "" || msgs[1].CreatedAt != "T3" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestFetchMessages_Malformed(t *testing.T) {
	bodies := map[string]string{
		"missing messages":   `{}`,
		"missing created_at": `{"messages": [{"sender_name": "Bob", "body": "Hi"}]}`,
		"missing sender":     `{"messages": [{"body": "Hi", "created_at": "T"}]}`,
		"wrong type":         `{"messages": "nope"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.FetchMessages(context.Background(), "1", nil)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestCSRFToken_KeepsPlusSign(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(CSRFHeader); got != "ab+cd/ef==" {
			t.Errorf("expected header %q, got %q", "ab+cd/ef==", got)
		}
		w.Write([]byte(`{"ok": true, "sender_name": "A", "created_at": "T"}`))
	}, WithCSRFToken("ab+cd/ef=="))

	if _, err := c.SendMessage(context.Background(), url.Values{"body": {"x"}}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestCSRFToken_PercentEncodedCookie(t *testing.T) {
	c, err := New("http://chat.example.com", WithCSRFToken("a%2Bb"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := c.CSRFToken(); got != "a+b" {
		t.Errorf("expected percent-decoded token a+b, got %q", got)
	}
}

func TestWithHTTPClient_DoesNotModifyCallerClient(t *testing.T) {
	hc := &http.Client{Timeout: 3 * time.Second}
	c, err := New("http://chat.example.com", WithHTTPClient(hc), WithCSRFToken("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if hc.Jar != nil {
		t.Error("caller's http.Client must not get a cookie jar")
	}
	if c.client == hc {
		t.Error("expected the client to be copied")
	}
	if c.client.Timeout != 3*time.Second {
		t.Errorf("expected copied timeout 3s, got %v", c.client.Timeout)
	}
	if c.CSRFToken() != "tok" {
		t.Errorf("expected token in the copy's jar, got %q", c.CSRFToken())
	}
}

func TestListConversations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ConversationsPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"conversations": [
			{"id": "room-2", "updated_at": "T9", "message_count": 4},
			{"id": 7, "updated_at": "T1", "message_count": 1}
		]}`))
	})

	convs, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Conversation{{ID: "room-2", UpdatedAt: "T9", MessageCount: 4}, {ID: "7", UpdatedAt: "T1", MessageCount: 1}}
	if len(convs) != len(want) {
		t.Fatalf("expected %d conversations, got %d", len(want), len(convs))
	}
	for i := range want {
		if convs[i] != want[i] {
			t.Errorf("conversation %d: got %+v, want %+v", i, convs[i], want[i])
		}
	}
}

func TestListConversations_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"missing list": `{}`,
		"missing id":   `{"conversations": [{"updated_at": "T"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			if _, err := c.ListConversations(context.Background()); !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}
