package wschannel

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
)

// readLimit bounds a single inbound message.
const readLimit = 1 << 20

// NewDialer returns the default Dialer backed by github.com/coder/websocket.
func NewDialer() Dialer { return wsDialer{} }

type wsDialer struct {
	client *http.Client
}

func (d wsDialer) Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: d.client,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseError{Code: int(ce.Code), Reason: ce.Reason}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(code int, reason string) error {
	return c.conn.Close(websocket.StatusCode(code), reason)
}
