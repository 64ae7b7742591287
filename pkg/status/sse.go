package status

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minishop-go/minishop/pkg/api"
)

// StreamPath is the backend's status push endpoint.
const StreamPath = "/store/status/stream"

// SSETransport streams status events over Server-Sent Events. This is the
// default push transport.
type SSETransport struct {
	t    *api.Transport
	path string
}

// NewSSETransport creates the SSE transport over the shared API transport.
func NewSSETransport(t *api.Transport) *SSETransport {
	return &SSETransport{t: t, path: StreamPath}
}

// Connect opens the event stream. The connection lives until the context is
// cancelled or the server drops it.
func (s *SSETransport) Connect(ctx context.Context) (StreamConn, error) {
	req, err := s.t.StreamRequest(ctx, s.path)
	if err != nil {
		return nil, err
	}
	resp, err := s.t.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("status stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status stream: unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("status stream: unexpected content type %q", ct)
	}
	return &sseConn{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

type sseConn struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Next reads frames until a well-formed status event arrives. Comment lines
// and unrelated events are skipped.
func (c *sseConn) Next() (api.StoreStatus, error) {
	event := ""
	var data strings.Builder
	for c.scanner.Scan() {
		line := c.scanner.Text()
		switch {
		case line == "":
			// Frame boundary.
			if (event == "status" || event == "") && data.Len() > 0 {
				var st api.StoreStatus
				if err := json.Unmarshal([]byte(data.String()), &st); err == nil {
					return st, nil
				}
				// Malformed payload: skip the frame, keep the stream alive.
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := c.scanner.Err(); err != nil {
		return api.StoreStatus{}, err
	}
	return api.StoreStatus{}, io.EOF
}

// Close closes the underlying response body, unblocking Next.
func (c *sseConn) Close() error {
	return c.body.Close()
}
