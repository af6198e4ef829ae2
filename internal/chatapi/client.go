// Package chatapi is a client for the chat backend's send and fetch
// endpoints.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL *url.URL
	client  *http.Client
	sender  string
}

type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. The copy gets the client's
// own cookie jar if hc has none; hc itself is not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		if cp.Jar == nil {
			cp.Jar = c.client.Jar
		}
		c.client = &cp
	}
}

// WithCSRFToken seeds the csrftoken cookie, for pages that were handed a
// token out of band.
func WithCSRFToken(token string) Option {
	return func(c *Client) {
		if token == "" {
			return
		}
		c.client.Jar.SetCookies(c.baseURL, []*http.Cookie{{Name: CSRFCookie, Value: token, Path: "/"}})
	}
}

// WithSender sets the sender header sent with every request.
func WithSender(name string) Option {
	return func(c *Client) {
		c.sender = name
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c := &Client{
		baseURL: u,
		client:  &http.Client{Timeout: defaultTimeout, Jar: jar},
	}
	// Options run in order: pass WithHTTPClient before WithCSRFToken.
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// CSRFToken returns the current csrftoken cookie value, or "" when the
// backend has not issued one yet.
func (c *Client) CSRFToken() string {
	for _, ck := range c.client.Jar.Cookies(c.baseURL) {
		if ck.Name != CSRFCookie {
			continue
		}
		// decodeURIComponent semantics: "+" stays a plus
		if v, err := url.PathUnescape(ck.Value); err == nil {
			return v
		}
		return ck.Value
	}
	return ""
}

// SendMessage posts the form fields to the send endpoint.
func (c *Client) SendMessage(ctx context.Context, fields url.Values) (SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(SendPath), strings.NewReader(fields.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token := c.CSRFToken(); token != "" {
		req.Header.Set(CSRFHeader, token)
	}

	body, err := c.do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: %w", err)
	}

	var w sendWire
	if err := json.Unmarshal(body, &w); err != nil {
		return SendResult{}, fmt.Errorf("send message: %w: %v", ErrMalformedResponse, err)
	}
	if w.OK == nil {
		return SendResult{}, fmt.Errorf("send message: %w: missing ok", ErrMalformedResponse)
	}
	if !*w.OK {
		return SendResult{}, fmt.Errorf("send message: %w", ErrSendRejected)
	}
	if w.CreatedAt == nil || *w.CreatedAt == "" {
		return SendResult{}, fmt.Errorf("send message: %w: missing created_at", ErrMalformedResponse)
	}
	if w.SenderName == nil {
		return SendResult{}, fmt.Errorf("send message: %w: missing sender_name", ErrMalformedResponse)
	}

	return SendResult{
		OK:         true,
		MessageID:  idString(w.MessageID),
		SenderName: *w.SenderName,
		CreatedAt:  *w.CreatedAt,
	}, nil
}

// FetchMessages returns messages of a conversation, oldest first. A nil since
// asks for the whole history.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, since *string) ([]Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FetchURL(conversationID, since), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var w fetchWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("fetch messages: %w: %v", ErrMalformedResponse, err)
	}
	if w.Messages == nil {
		return nil, fmt.Errorf("fetch messages: %w: missing messages", ErrMalformedResponse)
	}

	out := make([]Message, 0, len(*w.Messages))
	for i, m := range *w.Messages {
		if m.CreatedAt == nil || *m.CreatedAt == "" {
			return nil, fmt.Errorf("fetch messages: %w: message %d missing created_at", ErrMalformedResponse, i)
		}
		if m.SenderName == nil {
			return nil, fmt.Errorf("fetch messages: %w: message %d missing sender_name", ErrMalformedResponse, i)
		}
		msg := Message{
			ID:          idString(m.ID),
			SenderName:  *m.SenderName,
			CreatedAt:   *m.CreatedAt,
			MessageType: m.MessageType,
		}
		// null bodies exist for system messages
		if m.Body != nil {
			msg.Body = *m.Body
		}
		out = append(out, msg)
	}
	return out, nil
}

// ListConversations returns the conversations the backend knows about,
// most recently active first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(ConversationsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	var w conversationsWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("list conversations: %w: %v", ErrMalformedResponse, err)
	}
	if w.Conversations == nil {
		return nil, fmt.Errorf("list conversations: %w: missing conversations", ErrMalformedResponse)
	}

	out := make([]Conversation, 0, len(*w.Conversations))
	for i, cv := range *w.Conversations {
		id := idString(cv.ID)
		if id == "" {
			return nil, fmt.Errorf("list conversations: %w: conversation %d missing id", ErrMalformedResponse, i)
		}
		out = append(out, Conversation{ID: id, UpdatedAt: cv.UpdatedAt, MessageCount: cv.MessageCount})
	}
	return out, nil
}

// FetchURL builds the poll URL. since is omitted when nil.
func (c *Client) FetchURL(conversationID string, since *string) string {
	q := url.Values{}
	q.Set("conversation", conversationID)
	if since != nil {
		q.Set("since", *since)
	}
	return c.endpoint(FetchPath) + "?" + q.Encode()
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.sender != "" {
		req.Header.Set(SenderHeader, c.sender)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
