// Package transport delivers signed collector messages to the validator
// over a persistent WebSocket channel.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collector-node/internal/domain"
	"collector-node/internal/payload"
)

// Default client configuration values.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultAckTimeout       = 10 * time.Second
)

// Ack statuses the validator responds with.
const (
	ackStatusOK       = "ack"
	ackStatusRejected = "rejected"
)

// Client maintains a connection to the validator endpoint and delivers
// collector messages with bounded retry. The connection is reused across
// invocations and re-established after any protocol error. It is accessed
// only from the single active invocation, so the mutex guards nothing more
// than Close racing a delivery.
type Client struct {
	endpoint         string
	policy           RetryPolicy
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	ackTimeout       time.Duration
	userAgent        string
	logger           *log.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithAckTimeout sets how long one attempt waits for the validator ack.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.ackTimeout = d
	}
}

// WithHandshakeTimeout sets the WebSocket dial handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.handshakeTimeout = d
	}
}

// WithUserAgent sets the User-Agent header sent on the handshake.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a validator transport client. No connection is opened
// until the first delivery.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:         endpoint,
		policy:           DefaultRetryPolicy(),
		handshakeTimeout: DefaultHandshakeTimeout,
		writeTimeout:     DefaultWriteTimeout,
		ackTimeout:       DefaultAckTimeout,
		logger:           log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ackResponse is the validator's application-level reply to a delivery.
type ackResponse struct {
	Status   string `json:"status"`
	DedupKey string `json:"dedup_key,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Deliver sends the envelope and waits for an application-level ack.
// Transient failures are retried with the configured backoff until the
// attempt cap or the context deadline, whichever comes first. A validator
// rejection short-circuits retries. Deliver never returns nil.
func (c *Client) Deliver(ctx context.Context, env *payload.Envelope) *domain.DeliveryOutcome {
	outcome := &domain.DeliveryOutcome{
		Status:       domain.StatusFailed,
		Attestations: len(env.Message.Attestations),
	}

	body, err := json.Marshal(env)
	if err != nil {
		outcome.LastError = fmt.Errorf("marshal envelope: %w", err)
		return outcome
	}

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.policy.Delay(attempt - 1)
			c.logger.Printf("delivery attempt %d/%d in %v (dedup_key %s)",
				attempt, c.policy.MaxAttempts, delay, env.Message.DedupKey)
			select {
			case <-ctx.Done():
				outcome.LastError = fmt.Errorf("retry budget cut short: %w", ctx.Err())
				return outcome
			case <-time.After(delay):
			}
		}
		outcome.Attempts = attempt

		ack, err := c.sendAndAwaitAck(ctx, body)
		if err != nil {
			outcome.LastError = err
			c.dropConn()
			if ctx.Err() != nil {
				outcome.LastError = fmt.Errorf("%v: %w", err, ctx.Err())
				return outcome
			}
			continue
		}

		switch ack.Status {
		case ackStatusOK:
			outcome.Status = domain.StatusDelivered
			outcome.LastError = nil
			return outcome
		case ackStatusRejected:
			outcome.Status = domain.StatusRejected
			outcome.LastError = fmt.Errorf("%w: %s", ErrRejected, ack.Reason)
			return outcome
		default:
			// Unknown reply is a protocol error: the connection can no
			// longer be trusted.
			outcome.LastError = fmt.Errorf("unexpected ack status %q", ack.Status)
			c.dropConn()
		}
	}

	return outcome
}

// sendAndAwaitAck performs one delivery attempt on the (re)used connection.
func (c *Client) sendAndAwaitAck(ctx context.Context, body []byte) (*ackResponse, error) {
	conn, err := c.ensureConn(ctx)
	if err != nil {
		return nil, err
	}

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}

	ackDeadline := time.Now().Add(c.ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(ackDeadline) {
		ackDeadline = d
	}
	conn.SetReadDeadline(ackDeadline)

	_, reply, err := conn.ReadMessage()
	if err != nil {
		if netTimeout(err) {
			return nil, ErrAckTimeout
		}
		return nil, fmt.Errorf("read ack: %w", err)
	}

	var ack ackResponse
	if err := json.Unmarshal(reply, &ack); err != nil {
		return nil, fmt.Errorf("decode ack: %w", err)
	}
	return &ack, nil
}

// ensureConn returns the open connection, dialing if none exists.
func (c *Client) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.handshakeTimeout,
	}

	var header http.Header
	if c.userAgent != "" {
		header = http.Header{"User-Agent": []string{c.userAgent}}
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c.logger.Printf("connected to validator: %s", c.endpoint)
	c.conn = conn
	return conn, nil
}

// dropConn discards the current connection so the next attempt re-dials.
func (c *Client) dropConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close closes the reused connection if one is open.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// netTimeout reports whether err is a network timeout.
func netTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
