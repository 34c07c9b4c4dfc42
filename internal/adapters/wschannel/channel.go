// Package wschannel implements a reconnecting realtime channel to the backend's
// websocket topics.
package wschannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// StatusNormalClosure is the close code for a deliberate disconnect.
	StatusNormalClosure = 1000
	// StatusAbnormalClosure is reported when the connection dropped or never opened.
	StatusAbnormalClosure = 1006

	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 3 * time.Second
)

// ErrReconnectExhausted is the terminal error once reconnect attempts run out.
var ErrReconnectExhausted = errors.New("realtime channel: maximum reconnect attempts reached")

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// CloseError carries the close code a connection ended with.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed: %d %s", e.Code, e.Reason)
}

// Conn is an open message-oriented connection.
type Conn interface {
	// Read blocks for the next message. A close by the peer is reported as *CloseError.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int, reason string) error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error)
}

// Endpoint derives the topic URL from the websocket base, mapping http(s) to ws(s).
func Endpoint(base, topic string) (string, error) {
	topic = strings.Trim(strings.TrimSpace(topic), "/")
	if topic == "" {
		return "", errors.New("topic is required")
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil {
		return "", fmt.Errorf("parse websocket base: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	return u.String() + "/ws/" + url.PathEscape(topic), nil
}

// Options configures a Channel.
type Options struct {
	Endpoint string
	// Token supplies the bearer token sent on every dial.
	Token  func(ctx context.Context) string
	Dialer Dialer

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// OnMessage receives every message that parses as JSON.
	OnMessage func(msg any)
	// OnState observes state transitions.
	OnState func(State)
	Logger  *slog.Logger
}

// Channel is a websocket connection that reconnects after abnormal closures,
// a bounded number of times with a fixed delay.
type Channel struct {
	endpoint  string
	token     func(ctx context.Context) string
	dialer    Dialer
	maxTries  int
	delay     time.Duration
	onMessage func(msg any)
	onState   func(State)
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	attempts int
	err      error
	conn     Conn
	timer    *time.Timer
	started  bool
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
	stopHook func() bool

	wg sync.WaitGroup
}

// New constructs a Channel. Nothing is dialled until Connect.
func New(opts Options) (*Channel, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("endpoint is required")
	}
	c := &Channel{
		endpoint:  opts.Endpoint,
		token:     opts.Token,
		dialer:    opts.Dialer,
		maxTries:  opts.MaxReconnectAttempts,
		delay:     opts.ReconnectDelay,
		onMessage: opts.OnMessage,
		onState:   opts.OnState,
		logger:    opts.Logger,
	}
	if c.dialer == nil {
		c.dialer = NewDialer()
	}
	if c.maxTries <= 0 {
		c.maxTries = DefaultMaxReconnectAttempts
	}
	if c.delay <= 0 {
		c.delay = DefaultReconnectDelay
	}
	if c.token == nil {
		c.token = func(context.Context) string { return "" }
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("endpoint", c.endpoint)
	return c, nil
}

// Connect opens the channel. Cancelling ctx has the same effect as Disconnect.
// A Channel connects once; later calls are no-ops.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.stopHook = context.AfterFunc(ctx, c.Disconnect)
	c.mu.Unlock()

	c.dial()
}

// Disconnect cancels any pending reconnect, then closes the connection with
// the normal closure code. Safe to call repeatedly.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.timer != nil {
		if c.timer.Stop() {
			c.wg.Done()
		}
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	stopHook := c.stopHook
	changed := c.transition(Disconnected)
	c.mu.Unlock()

	if stopHook != nil {
		stopHook()
	}
	if conn != nil {
		if err := conn.Close(StatusNormalClosure, "client disconnect"); err != nil {
			c.logger.Debug("close websocket", "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	c.notify(Disconnected, changed)
}

// Wait blocks until background dial and read goroutines have exited.
func (c *Channel) Wait() { c.wg.Wait() }

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the terminal error, if reconnection gave up.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Attempts returns the reconnect attempts made since the last successful open.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Send writes v as JSON. When the channel is not connected the message is
// dropped with a warning and Send returns nil.
func (c *Channel) Send(ctx context.Context, v any) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != Connected || conn == nil {
		c.logger.WarnContext(ctx, "websocket not connected; message dropped", "state", state.String())
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err = conn.Write(ctx, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (c *Channel) dial() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.timer = nil
	changed := c.transition(Connecting)
	c.mu.Unlock()
	c.notify(Connecting, changed)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		header := http.Header{}
		if tok := c.token(ctx); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
		conn, err := c.dialer.Dial(ctx, c.endpoint, header)
		if err != nil {
			c.logger.Debug("websocket dial failed", "error", err)
			c.closed(StatusAbnormalClosure)
			return
		}

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			_ = conn.Close(StatusNormalClosure, "client disconnect")
			return
		}
		c.conn = conn
		c.attempts = 0
		c.err = nil
		changed := c.transition(Connected)
		c.mu.Unlock()
		c.notify(Connected, changed)
		c.logger.Debug("websocket connected")

		c.read(ctx, conn)
	}()
}

func (c *Channel) read(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			code := StatusAbnormalClosure
			var ce *CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}
			c.logger.Debug("websocket closed", "code", code, "error", err)
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			c.closed(code)
			return
		}

		var msg any
		if err = json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("discarding unparseable websocket message", "error", err, "bytes", len(data))
			continue
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

// closed applies the reconnect policy after a connection ended with code.
func (c *Channel) closed(code int) {
	c.mu.Lock()
	changed := c.transition(Disconnected)
	if c.stopped {
		c.mu.Unlock()
		c.notify(Disconnected, changed)
		return
	}
	var scheduled bool
	switch {
	case code == StatusNormalClosure:
	case c.attempts < c.maxTries:
		c.attempts++
		c.wg.Add(1)
		c.timer = time.AfterFunc(c.delay, func() {
			defer c.wg.Done()
			c.dial()
		})
		scheduled = true
	default:
		c.err = ErrReconnectExhausted
	}
	attempts, terminal := c.attempts, c.err
	c.mu.Unlock()

	c.notify(Disconnected, changed)
	switch {
	case scheduled:
		c.logger.Debug("websocket reconnect scheduled", "attempt", attempts, "delay", c.delay)
	case terminal != nil:
		c.logger.Warn("websocket reconnect attempts exhausted", "attempts", attempts)
	}
}

// transition records s as the current state. Callers hold mu and pass the
// result to notify after unlocking.
func (c *Channel) transition(s State) bool {
	changed := c.state != s
	c.state = s
	return changed
}

// notify reports s unless a later transition has already replaced it.
func (c *Channel) notify(s State, changed bool) {
	if !changed || c.onState == nil || c.State() != s {
		return
	}
	c.onState(s)
}
