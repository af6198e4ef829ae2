// Package popup binds a chat conversation to a page: it submits the page's
// form to the backend and polls the backend for new messages on a timer.
package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/chatpopup/internal/chatapi"
	"github.com/MikeSquared-Agency/chatpopup/internal/page"
)

const DefaultInterval = 3000 * time.Millisecond

var (
	ErrTargetNotFound   = errors.New("target element not found")
	ErrBodyInputMissing = errors.New(`form has no "body" input`)
	ErrAlreadyStarted   = errors.New("poller already started")
)

// API is the subset of the backend client the popup needs.
type API interface {
	SendMessage(ctx context.Context, fields url.Values) (chatapi.SendResult, error)
	FetchMessages(ctx context.Context, conversationID string, since *string) ([]chatapi.Message, error)
}

type Option func(*Client)

func WithInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type Client struct {
	conversationID string
	panel          *page.Panel
	form           *page.Form
	api            API
	logger         *slog.Logger
	interval       time.Duration

	// mu guards lastSeen and serializes applying poll results.
	mu       sync.Mutex
	lastSeen *string

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	polls  sync.WaitGroup
}

// Init resolves the panel and form selectors and takes over the form's
// submission. The poll timer is not running until Start is called.
func Init(doc *page.Document, conversationID, windowSelector, formSelector string, api API, opts ...Option) (*Client, error) {
	panel := doc.Panel(windowSelector)
	if panel == nil {
		return nil, fmt.Errorf("init popup: %s: %w", windowSelector, ErrTargetNotFound)
	}
	form := doc.Form(formSelector)
	if form == nil {
		return nil, fmt.Errorf("init popup: %s: %w", formSelector, ErrTargetNotFound)
	}
	if !form.HasInput(page.BodyField) {
		return nil, fmt.Errorf("init popup: %s: %w", formSelector, ErrBodyInputMissing)
	}

	c := &Client{
		conversationID: conversationID,
		panel:          panel,
		form:           form,
		api:            api,
		logger:         slog.Default(),
		interval:       DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("conversation", conversationID)

	form.OnSubmit(c.Submit)
	return c, nil
}

// LastSeen returns the poll cursor, if any message has been polled yet.
func (c *Client) LastSeen() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSeen == nil {
		return "", false
	}
	return *c.lastSeen, true
}

// Submit sends the form contents. On success the message is echoed into the
// panel and the body input is cleared; on failure the input is left alone.
func (c *Client) Submit(ctx context.Context) error {
	body := c.form.Value(page.BodyField)

	res, err := c.api.SendMessage(ctx, c.form.Values())
	if err != nil {
		c.logger.Error("send message failed", "error", err)
		return err
	}

	c.Append(res.SenderName, body, res.CreatedAt)
	c.form.Set(page.BodyField, "")
	c.logger.Debug("message sent", "message_id", res.MessageID, "created_at", res.CreatedAt)
	return nil
}

// Poll performs one fetch of messages newer than the cursor.
func (c *Client) Poll(ctx context.Context) error {
	c.mu.Lock()
	var since *string
	if c.lastSeen != nil {
		s := *c.lastSeen
		since = &s
	}
	c.mu.Unlock()

	msgs, err := c.api.FetchMessages(ctx, c.conversationID, since)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("poll aborted", "error", err)
		} else {
			c.logger.Error("fetch messages failed", "error", err)
		}
		return err
	}

	c.apply(since, msgs)
	return nil
}

func (c *Client) apply(since *string, msgs []chatapi.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another poll advanced the cursor while this one was in flight; anything
	// not newer than the cursor is already on screen.
	if c.lastSeen != nil && (since == nil || *since != *c.lastSeen) {
		cursor := *c.lastSeen
		fresh := msgs[:0:0]
		for _, m := range msgs {
			if timestampAfter(m.CreatedAt, cursor) {
				fresh = append(fresh, m)
			}
		}
		if dropped := len(msgs) - len(fresh); dropped > 0 {
			c.logger.Debug("dropped stale poll results", "count", dropped, "cursor", cursor)
		}
		msgs = fresh
	}
	if len(msgs) == 0 {
		return
	}

	for _, m := range msgs {
		c.Append(m.SenderName, m.Body, m.CreatedAt)
	}
	last := msgs[len(msgs)-1].CreatedAt
	c.lastSeen = &last
	c.panel.ScrollToBottom()
}

// Append renders one message into the panel.
func (c *Client) Append(sender, body, ts string) page.Node {
	return c.panel.Append(sender, body, ts)
}

// Start runs Poll every interval until ctx is cancelled or Stop is called.
// Each tick polls on its own goroutine, so a slow request does not delay the
// next tick.
func (c *Client) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.polls.Add(1)
				go func() {
					defer c.polls.Done()
					_ = c.Poll(ctx)
				}()
			}
		}
	}()

	c.logger.Info("polling started", "interval", c.interval)
	return nil
}

// Stop halts the timer and waits for in-flight polls. It is safe to call
// more than once, and a stopped client can be started again.
func (c *Client) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.polls.Wait()
	c.cancel = nil
	c.done = nil
	c.logger.Info("polling stopped")
}

// timestampAfter reports whether a is later than b. RFC 3339 values are
// compared as instants; anything else falls back to string order.
func timestampAfter(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.After(tb)
	}
	return a > b
}
