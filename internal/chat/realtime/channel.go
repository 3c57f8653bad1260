package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/pkg/logger"
	"estate_chat_service/pkg/middlewares"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State channel connection state
type State string

const (
	// StateDisconnected no live connection
	StateDisconnected State = "disconnected"
	// StateConnecting dial in progress
	StateConnecting State = "connecting"
	// StateConnected live connection, joins are delivered immediately
	StateConnected State = "connected"
)

var (
	// ErrMissingIdentity Connect was called without a user identity.
	// An explicit failure instead of the silent no-op that hides bugs.
	ErrMissingIdentity = errors.New("realtime: missing user identity")
	// ErrClosed the channel was shut down
	ErrClosed = errors.New("realtime: channel closed")
)

// Conn the subset of *websocket.Conn the channel uses, substitutable in tests
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// DialFunc opens a websocket connection to the given URL.
type DialFunc func(ctx context.Context, rawURL string) (Conn, error)

func gorillaDial(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Channel persistent realtime delivery connection, scoped to one
// authenticated user. Delivers raw message events for explicitly joined
// rooms; it never persists or dedupes — the message store does.
//
// Join/leave issued before the connection completes are queued and
// flushed on transition to connected.
type Channel struct {
	baseURL    string
	token      string
	dial       DialFunc
	log        *logger.LogInfo
	backoff    time.Duration
	maxBackoff time.Duration

	mu     sync.Mutex
	state  State
	userID string
	conn   Conn
	joined map[string]bool
	closed bool

	events chan domain.MessageEvent
	errs   chan error
	done   chan struct{}
}

// NewChannel create a Channel. A nil dial uses the gorilla dialer.
func NewChannel(baseURL, token string, dial DialFunc, log *logger.LogInfo) *Channel {
	if dial == nil {
		dial = gorillaDial
	}
	return &Channel{
		baseURL:    baseURL,
		token:      token,
		dial:       dial,
		log:        log,
		backoff:    time.Second,
		maxBackoff: 30 * time.Second,
		state:      StateDisconnected,
		joined:     make(map[string]bool),
		events:     make(chan domain.MessageEvent, 64),
		errs:       make(chan error, 8),
		done:       make(chan struct{}),
	}
}

// SetBackoff override the reconnect backoff bounds.
func (c *Channel) SetBackoff(initial, max time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoff = initial
	c.maxBackoff = max
}

// Events raw message events pushed by the server.
func (c *Channel) Events() <-chan domain.MessageEvent { return c.events }

// Errors user-actionable channel failures (auth/dial). Unexpected
// disconnects self-heal silently and never appear here.
func (c *Channel) Errors() <-chan error { return c.errs }

// State current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect start the connection for the given user. Idempotent: calling
// while connecting or connected is a no-op. An empty userID is a
// precondition failure, not a silent no-op.
func (c *Channel) Connect(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingIdentity
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.userID = userID
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// JoinRoom scope delivery to the room. Queued until connected; flushed
// in order once the connection completes.
func (c *Channel) JoinRoom(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.joined[roomID] = true
	if c.state == StateConnected && c.conn != nil {
		return c.conn.WriteJSON(domain.WSRequest{Action: string(domain.JoinRoom), RoomID: roomID})
	}
	return nil
}

// LeaveRoom stop delivery for the room. A leave issued before the
// connection completes simply unqueues the pending join.
func (c *Channel) LeaveRoom(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	delete(c.joined, roomID)
	if c.state == StateConnected && c.conn != nil {
		return c.conn.WriteJSON(domain.WSRequest{Action: string(domain.LeaveRoom), RoomID: roomID})
	}
	return nil
}

// Close shut the channel down for good.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Channel) endpoint() string {
	return fmt.Sprintf("%s/ws?%s=%s&user_id=%s", c.baseURL, middlewares.QueryToken, c.token, c.userID)
}

func (c *Channel) run(ctx context.Context) {
	first := true
	wait := time.Duration(0)

	for {
		if c.isClosed() || ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-c.done:
				return
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			}
		}

		conn, err := c.dial(ctx, c.endpoint())
		if err != nil {
			if first {
				// initial connect failure is surfaced; the caller retries
				// on the next foreground or room-open
				c.setState(StateDisconnected)
				c.emitErr(fmt.Errorf("realtime connect: %w", err))
				return
			}
			// reconnect failure self-heals silently
			c.log.Warn("realtime redial failed", zap.Error(err))
			wait = c.nextBackoff(wait)
			continue
		}

		first = false
		wait = 0
		if !c.attach(conn) {
			conn.Close()
			return
		}
		c.readLoop(conn)

		// connection dropped unexpectedly; retry with backoff
		c.setState(StateConnecting)
		wait = c.backoffFloor()
	}
}

// attach install the live connection and replay joins for every room the
// session still has open.
func (c *Channel) attach(conn Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = StateConnected
	rooms := make([]string, 0, len(c.joined))
	for roomID := range c.joined {
		rooms = append(rooms, roomID)
	}
	c.mu.Unlock()

	for _, roomID := range rooms {
		if err := conn.WriteJSON(domain.WSRequest{Action: string(domain.JoinRoom), RoomID: roomID}); err != nil {
			c.log.Warn("join replay failed", zap.String("roomID", roomID), zap.Error(err))
		}
	}
	return true
}

func (c *Channel) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		var resp domain.WSResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.Warn("undecodable realtime frame", zap.Error(err))
			continue
		}

		switch {
		case resp.Action == string(domain.NotifyMessage) && resp.Event != nil:
			select {
			case c.events <- *resp.Event:
			case <-c.done:
				return
			}
		case resp.Error != "":
			c.emitErr(errors.New(resp.Error))
		}
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.state = s
	}
}

func (c *Channel) backoffFloor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff
}

func (c *Channel) nextBackoff(cur time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur <= 0 {
		return c.backoff
	}
	next := cur * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	return next
}

func (c *Channel) emitErr(err error) {
	select {
	case c.errs <- err:
	default:
		c.log.Warn("error stream full, dropping", zap.Error(err))
	}
}
