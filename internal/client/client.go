// Package client talks to the external CMS REST API. Every request carries the
// header set built by authheader, so callers never attach credentials by hand.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/cms-front/internal/authheader"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dgellow/cms-front/internal/client"

// maxErrorBody caps how much of an error response is read into an APIError
const maxErrorBody = 4 << 10

// ErrInvalidResponse is returned when a success response cannot be decoded
var ErrInvalidResponse = errors.New("invalid API response")

// APIError is a non-2xx answer from the CMS API
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("failed to %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("failed to %s: status %d", e.Op, e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the API
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is a CMS API client
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	tokens   authheader.TokenGetter
	tracer   trace.Tracer
	requests *prometheus.CounterVec
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokens sets where the bearer token is read from on every request
func WithTokens(tokens authheader.TokenGetter) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithCookieJar sends the jar's cookies along with each request, the
// equivalent of a credentialed browser fetch
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Jar = jar
		c.http = &hc
	}
}

// WithRequestCounter counts calls by resource, operation and outcome
func WithRequestCounter(counter *prometheus.CounterVec) Option {
	return func(c *Client) {
		c.requests = counter
	}
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing API base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// endpoint joins path segments onto the base URL, escaping each segment
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.JoinPath(escaped...).String()
}

// call describes one API round trip
type call struct {
	resource string
	op       string // verb phrase used in errors, e.g. "fetch blogs"
	method   string
	url      string
	body     any
	out      any
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	ctx, span := c.tracer.Start(ctx, "cms."+cl.resource+"."+strings.ReplaceAll(cl.op, " ", "_"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("cms.resource", cl.resource),
		))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if IsUnauthorized(err) {
				outcome = "unauthorized"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.requests != nil {
			c.requests.WithLabelValues(cl.resource, cl.op, outcome).Inc()
		}
		span.End()
	}()

	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	authheader.AuthHeaders(c.tokens, authheader.Pairs{{"Accept", "application/json"}}).Apply(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", cl.op, err)
	}
	defer resp.Body.Close()

	log.LogTraceCtx(ctx, "client", "API call", map[string]any{
		"method":      cl.method,
		"url":         cl.url,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Op:         cl.op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return fmt.Errorf("failed to %s: %w: content type %q", cl.op, ErrInvalidResponse, resp.Header.Get("Content-Type"))
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return fmt.Errorf("failed to %s: %w: %v", cl.op, ErrInvalidResponse, err)
	}
	return nil
}

// errorMessage extracts {"message": ...} from an error body, falling back to
// the trimmed body text
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}

	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && len(payload.Message) > 0 {
		var s string
		if json.Unmarshal(payload.Message, &s) == nil {
			return s
		}
		// NestJS validation errors carry a list of messages
		var list []string
		if json.Unmarshal(payload.Message, &list) == nil {
			return strings.Join(list, "; ")
		}
	}
	return strings.TrimSpace(string(data))
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
