package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

// WSDialer dials the gateway's websocket endpoint with a bearer token.
type WSDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

// Dial performs the websocket handshake. A 401/403 response maps to
// domain.ErrInvalidToken so the manager can trigger its one refresh
// attempt.
func (d WSDialer) Dial(ctx context.Context, token string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake rejected with %d", domain.ErrInvalidToken, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	conn.SetReadLimit(domain.MaxFrameBytes)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadFrame() (domain.Frame, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.DecodeFrame(data)
}

func (c *wsConn) WriteFrame(f domain.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
