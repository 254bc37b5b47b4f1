package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer is the production Dialer backed by gorilla/websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
}

// NewWSDialer returns a dialer with gorilla defaults and a 10s
// handshake timeout.
func NewWSDialer() *WSDialer {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = 10 * time.Second
	return &WSDialer{Dialer: &d}
}

func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, resp, err := d.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, b, err := w.c.ReadMessage()
	return b, err
}

func (w *wsConn) WriteJSON(v interface{}) error {
	w.c.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return w.c.WriteJSON(v)
}

func (w *wsConn) Close() error {
	w.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.c.Close()
}
