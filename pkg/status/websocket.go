package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minishop-go/minishop/pkg/api"
)

// WSPath is the WebSocket variant of the status push endpoint.
const WSPath = "/store/status/ws"

// WSTransport streams status documents over a WebSocket. Some host WebViews
// terminate SSE responses at a proxy while passing WebSocket upgrades
// through; this transport is the drop-in alternative for those hosts.
type WSTransport struct {
	t    *api.Transport
	path string
}

// NewWSTransport creates the WebSocket transport over the shared API
// transport.
func NewWSTransport(t *api.Transport) *WSTransport {
	return &WSTransport{t: t, path: WSPath}
}

// Connect dials the WebSocket endpoint with the caller's identity headers.
func (w *WSTransport) Connect(ctx context.Context) (StreamConn, error) {
	headers, err := w.t.AuthHeaders(ctx)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL(w.t.BaseURL())+w.path, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("status ws dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("status ws dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

// Next reads the next status document.
func (c *wsConn) Next() (api.StoreStatus, error) {
	var st api.StoreStatus
	if err := c.conn.ReadJSON(&st); err != nil {
		return api.StoreStatus{}, err
	}
	return st, nil
}

// Close sends a close frame and drops the connection.
func (c *wsConn) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// wsURL rewrites an http(s) origin to its ws(s) equivalent.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https"):
		return "wss" + strings.TrimPrefix(base, "https")
	case strings.HasPrefix(base, "http"):
		return "ws" + strings.TrimPrefix(base, "http")
	default:
		return base
	}
}
