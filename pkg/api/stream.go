package api

import (
	"context"
	"net/http"
)

// Streaming endpoints bypass the JSON/deadline handling of Do: a push stream
// is expected to stay open indefinitely and is cancelled through its context.

// BaseURL returns the configured backend origin.
func (t *Transport) BaseURL() string { return t.baseURL }

// HTTPClient returns the underlying client, for callers that manage their own
// request lifecycle (the status stream).
func (t *Transport) HTTPClient() *http.Client { return t.client }

// StreamRequest builds an authenticated GET request for a long-lived stream.
// No deadline is attached; cancel the context to tear the stream down.
func (t *Transport) StreamRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t.auth != nil {
		headers, err := t.auth.AuthHeaders(ctx)
		if err != nil {
			return nil, &Error{Kind: KindUnauthenticated, Message: "identity could not be resolved", Wrapped: err}
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	return req, nil
}

// AuthHeaders resolves the identity headers for transports that dial outside
// net/http (the WebSocket stream).
func (t *Transport) AuthHeaders(ctx context.Context) (http.Header, error) {
	if t.auth == nil {
		return http.Header{}, nil
	}
	return t.auth.AuthHeaders(ctx)
}
