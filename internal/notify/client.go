package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

// ClientOptions configures a reconnecting notification consumer.
type ClientOptions struct {
	URL         string
	Token       string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Dialer      *websocket.Dialer
	Logger      zerolog.Logger
	Buffer      int
}

// Client maintains a notification connection on behalf of an application,
// reconnecting with exponential backoff and feeding received events into a
// single inbound queue instead of nested handlers.
type Client struct {
	opts   ClientOptions
	dialer *websocket.Dialer
	events chan domain.JobEvent
}

// NewClient builds a client with defaults applied.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 6
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Client{
		opts:   opts,
		dialer: dialer,
		events: make(chan domain.JobEvent, opts.Buffer),
	}
}

// Events is the inbound queue consumed by application logic.
func (c *Client) Events() <-chan domain.JobEvent {
	return c.events
}

// Run connects and reads until ctx is cancelled. Dropped connections are
// re-dialed with exponential backoff; once the attempt budget is exhausted
// Run returns the last dial error. The events channel is closed on return.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	attempt := 0
	var lastErr error
	for {
		if attempt >= c.opts.MaxAttempts {
			return fmt.Errorf("notify: giving up after %d attempts: %w", attempt, lastErr)
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			attempt++
			c.opts.Logger.Warn().Err(err).Int("attempt", attempt).Msg("notify: dial failed")
			continue
		}
		attempt = 0
		if err := c.read(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			attempt++
			c.opts.Logger.Warn().Err(err).Msg("notify: connection lost")
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	for {
		var ev domain.JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// backoff returns base * 2^attempt capped at the configured maximum.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.opts.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.opts.MaxDelay {
			return c.opts.MaxDelay
		}
	}
	if delay > c.opts.MaxDelay {
		return c.opts.MaxDelay
	}
	return delay
}
