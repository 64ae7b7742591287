package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout is the per-request deadline applied when the caller's
// context has none.
const DefaultTimeout = 10 * time.Second

const tracerName = "minishop/api"

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// AuthProvider supplies the identity headers attached to every request.
// Implementations live at the host boundary (pkg/host).
type AuthProvider interface {
	// AuthHeaders returns headers identifying the current user, or an error
	// when no identity can be resolved.
	AuthHeaders(ctx context.Context) (http.Header, error)
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	// BaseURL is the backend origin, e.g. "https://shop.example.com/api".
	BaseURL string

	// Timeout is the per-request deadline. Default: DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the underlying client. Its Timeout field is left
	// untouched; deadlines are enforced through context.
	HTTPClient *http.Client

	// Auth supplies identity headers. Optional.
	Auth AuthProvider

	// Logger receives request-level debug logging. Optional.
	Logger *slog.Logger
}

// Transport performs one network call and returns a typed result or a
// classified failure. It does not cache and it does not retry; retry policy
// belongs to callers.
type Transport struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	auth    AuthProvider
	log     *slog.Logger
	tracer  trace.Tracer
}

// NewTransport creates a Transport.
func NewTransport(cfg TransportConfig) *Transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		client:  client,
		auth:    cfg.Auth,
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
}

// multipartBody marks a request body as a multipart form instead of JSON.
type multipartBody struct {
	contentType string
	buf         *bytes.Buffer
}

// FormFile is a file field in a multipart request.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Reader      io.Reader
}

// NewMultipart assembles a multipart form body from string fields and files.
func NewMultipart(fields map[string]string, files ...FormFile) (any, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %q: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, fmt.Errorf("create form file %q: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("copy form file %q: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &multipartBody{contentType: w.FormDataContentType(), buf: buf}, nil
}

// Do performs one request and decodes a JSON response into out.
//
// body may be nil, a JSON-serializable value, or the result of NewMultipart.
// out may be nil when the response body is irrelevant. A 204 response is
// success with an empty value. A non-JSON response where JSON is expected
// fails with KindProtocolMismatch.
func (t *Transport) Do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()

	ctx, span := t.tracer.Start(ctx, method+" "+routeOnly(path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", routeOnly(path)),
		))
	defer span.End()

	err := t.do(ctx, method, path, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	return err
}

func (t *Transport) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case *multipartBody:
		reader = b.buf
		contentType = b.contentType
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if t.auth != nil {
		headers, err := t.auth.AuthHeaders(ctx)
		if err != nil {
			return &Error{Kind: KindUnauthenticated, Message: "identity could not be resolved", Wrapped: err}
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return t.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	t.log.Debug("api request",
		"method", method,
		"path", routeOnly(path),
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return t.classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newRejected(resp.StatusCode, extractDetail(raw))
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 || out == nil {
		return nil
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return &Error{
			Kind:    KindProtocolMismatch,
			Message: fmt.Sprintf("expected JSON, got %q", ct),
			Status:  resp.StatusCode,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{
			Kind:    KindProtocolMismatch,
			Message: "response is not valid JSON",
			Status:  resp.StatusCode,
			Wrapped: err,
		}
	}
	return nil
}

// withDeadline attaches the transport deadline unless the caller already set
// an earlier one.
func (t *Transport) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= t.timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *Transport) classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Wrapped: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Kind: KindNetworkUnavailable, Message: "backend unreachable", Wrapped: err}
}

// extractDetail pulls the server error message out of an error body. The
// backend reports errors as {"detail": "..."}; plain-text bodies are used
// as-is.
func extractDetail(raw []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 0 && len(text) <= 256 && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "<") {
		return text
	}
	return ""
}

// routeOnly strips the query string so span names and logs stay low-cardinality.
func routeOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
