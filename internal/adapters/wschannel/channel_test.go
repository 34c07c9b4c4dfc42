package wschannel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a scripted connection. Messages pushed to inbound are returned
// by Read; closing with a code ends Read with a *CloseError.
type fakeConn struct {
	inbound chan []byte
	closeCh chan *CloseError
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
	closed  *CloseError
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), closeCh: make(chan *CloseError, 1)}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-c.inbound:
		return msg, nil
	case ce := <-c.closeCh:
		return nil, ce
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	c.closed = &CloseError{Code: code, Reason: reason}
	c.mu.Unlock()
	c.serverClose(code)
	return nil
}

// serverClose simulates the peer closing the connection with code.
func (c *fakeConn) serverClose(code int) {
	c.once.Do(func() { c.closeCh <- &CloseError{Code: code} })
}

func (c *fakeConn) closedWith() *CloseError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out scripted results in order; once exhausted, every dial fails.
type fakeDialer struct {
	mu      sync.Mutex
	results []func() (Conn, error)
	dials   int
	headers []http.Header
}

func (d *fakeDialer) Dial(_ context.Context, _ string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.headers = append(d.headers, header)
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	next := d.results[0]
	d.results = d.results[1:]
	return next()
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func succeed(conn *fakeConn) func() (Conn, error) {
	return func() (Conn, error) { return conn, nil }
}

func newTestChannel(t *testing.T, dialer Dialer, opts Options) *Channel {
	t.Helper()
	opts.Dialer = dialer
	if opts.Endpoint == "" {
		opts.Endpoint = "ws://backend.test/ws/uploads"
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = time.Millisecond
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Disconnect()
		c.Wait()
	})
	return c
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base, topic, want string
		wantErr           bool
	}{
		{base: "http://localhost:8000", topic: "uploads", want: "ws://localhost:8000/ws/uploads"},
		{base: "https://api.example.com/", topic: "/notifications/", want: "wss://api.example.com/ws/notifications"},
		{base: "ws://localhost:8000", topic: "a b", want: "ws://localhost:8000/ws/a%20b"},
		{base: "ftp://localhost", topic: "x", wantErr: true},
		{base: "http://localhost", topic: " ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Endpoint(tt.base, tt.topic)
		if tt.wantErr {
			assert.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNew_Defaults(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	c, err := New(Options{Endpoint: "ws://x/ws/t"})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxReconnectAttempts, c.maxTries)
	assert.Equal(t, DefaultReconnectDelay, c.delay)
	assert.Equal(t, Disconnected, c.State())
}

func TestChannel_StopsAfterMaxReconnects(t *testing.T) {
	dialer := &fakeDialer{}
	c := newTestChannel(t, dialer, Options{MaxReconnectAttempts: 5})

	c.Connect(context.Background())

	require.Eventually(t, func() bool { return c.Err() != nil }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Err(), ErrReconnectExhausted)
	// The initial dial plus five reconnects, all closing abnormally.
	assert.Equal(t, 6, dialer.Dials())
	assert.Equal(t, 5, c.Attempts())
	assert.Equal(t, Disconnected, c.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 6, dialer.Dials(), "no reconnect after the terminal error")
}

func TestChannel_DisconnectCancelsReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	c := newTestChannel(t, dialer, Options{ReconnectDelay: 50 * time.Millisecond})

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.Attempts() == 1 }, time.Second, time.Millisecond)

	c.Disconnect()
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, Disconnected, c.State())
	assert.NoError(t, c.Err())
}

func TestChannel_ContextCancelActsAsDisconnect(t *testing.T) {
	dialer := &fakeDialer{}
	c := newTestChannel(t, dialer, Options{ReconnectDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	c.Connect(ctx)
	require.Eventually(t, func() bool { return c.Attempts() == 1 }, time.Second, time.Millisecond)

	cancel()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, dialer.Dials())
}

func TestChannel_ConnectedDeliversMessagesAndSwallowsGarbage(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []func() (Conn, error){succeed(conn)}}

	var (
		mu   sync.Mutex
		msgs []any
	)
	c := newTestChannel(t, dialer, Options{
		Token: func(context.Context) string { return "tok" },
		OnMessage: func(msg any) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, msg)
		},
	})
	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, time.Millisecond)
	assert.Equal(t, "Bearer tok", dialer.headers[0].Get("Authorization"))

	conn.inbound <- []byte(`{"type":"upload","status":"processing"}`)
	conn.inbound <- []byte(`not json`)
	conn.inbound <- []byte(`{"type":"upload","status":"completed"}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(msgs) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, Connected, c.State(), "a parse failure does not close the channel")
}

func TestChannel_SendOnlyWhenConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []func() (Conn, error){succeed(conn)}}
	c := newTestChannel(t, dialer, Options{})

	// Not connected yet: dropped without error.
	require.NoError(t, c.Send(context.Background(), map[string]string{"ping": "1"}))

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, time.Millisecond)
	require.NoError(t, c.Send(context.Background(), map[string]string{"ping": "2"}))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.written, 1)
	assert.JSONEq(t, `{"ping":"2"}`, string(conn.written[0]))
}

func TestChannel_AbnormalCloseReconnectsAndResetsCounter(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{results: []func() (Conn, error){
		succeed(first),
		func() (Conn, error) { return nil, errors.New("refused") },
		succeed(second),
	}}
	c := newTestChannel(t, dialer, Options{})

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, time.Millisecond)

	first.serverClose(StatusAbnormalClosure)

	require.Eventually(t, func() bool { return dialer.Dials() == 3 && c.State() == Connected }, time.Second, time.Millisecond)
	assert.Equal(t, 0, c.Attempts())
	assert.NoError(t, c.Err())
}

func TestChannel_FastReconnectEndsConnected(t *testing.T) {
	const cycles = 50
	conns := make([]*fakeConn, cycles+1)
	results := make([]func() (Conn, error), 0, len(conns))
	for i := range conns {
		conns[i] = newFakeConn()
		results = append(results, succeed(conns[i]))
	}
	dialer := &fakeDialer{results: results}
	c := newTestChannel(t, dialer, Options{ReconnectDelay: time.Nanosecond})

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, time.Millisecond)

	for i := range cycles {
		conns[i].serverClose(StatusAbnormalClosure)
		require.Eventually(t, func() bool {
			return dialer.Dials() == i+2 && c.State() == Connected
		}, time.Second, time.Millisecond, "cycle %d", i)

		require.NoError(t, c.Send(context.Background(), map[string]int{"cycle": i}))
		next := conns[i+1]
		next.mu.Lock()
		written := len(next.written)
		next.mu.Unlock()
		require.Equal(t, 1, written, "cycle %d: message dropped on a live connection", i)
	}
	assert.NoError(t, c.Err())
}

func TestChannel_NormalClosureDoesNotReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []func() (Conn, error){succeed(conn)}}
	c := newTestChannel(t, dialer, Options{})

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, time.Millisecond)

	conn.serverClose(StatusNormalClosure)
	require.Eventually(t, func() bool { return c.State() == Disconnected }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dialer.Dials())
}

func TestChannel_DisconnectClosesWithNormalCode(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []func() (Conn, error){succeed(conn)}}
	c := newTestChannel(t, dialer, Options{})

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, time.Millisecond)

	c.Disconnect()
	c.Wait()

	require.NotNil(t, conn.closedWith())
	assert.Equal(t, StatusNormalClosure, conn.closedWith().Code)
	assert.Equal(t, 1, dialer.Dials())
}

func TestChannel_RealWebsocketServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"topic":"uploads","count":3}`))
		// Echo until the client goes away.
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			_ = conn.Write(r.Context(), typ, data)
		}
	}))
	defer srv.Close()

	endpoint, err := Endpoint(srv.URL, "uploads")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(endpoint, "ws://"))

	got := make(chan any, 4)
	c := newTestChannel(t, NewDialer(), Options{
		Endpoint:  endpoint,
		Token:     func(context.Context) string { return "tok" },
		OnMessage: func(msg any) { got <- msg },
	})
	c.Connect(context.Background())

	select {
	case msg := <-got:
		assert.Equal(t, map[string]any{"topic": "uploads", "count": float64(3)}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no message from websocket server")
	}

	require.NoError(t, c.Send(context.Background(), map[string]string{"echo": "hi"}))
	select {
	case msg := <-got:
		assert.Equal(t, map[string]any{"echo": "hi"}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no echo from websocket server")
	}
}
