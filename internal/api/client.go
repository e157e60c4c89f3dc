package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/openlyhq/openly/internal/engine/cache"
	"github.com/openlyhq/openly/internal/logging"
)

// Header names exchanged with the backend.
const (
	HeaderAPIVersion     = "X-Openly-Api-Version"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderTraceID        = "X-Trace-Id"
)

// SupportedAPIVersions is the backend version range this client speaks.
const SupportedAPIVersions = ">= 1.0.0, < 2.0.0"

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "openly-cli"
	maxBodyBytes     = 4 << 20
	protectedPrefix  = "/protected/"
)

// Envelope is the response wrapper shared by every endpoint.
type Envelope[T any] struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	Data      T      `json:"data"`
	RequestID string `json:"requestId"`
}

// Client calls the Openly REST API. The token is fixed at construction so
// every request of a batch is sent with the same credentials.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	cache      *cache.Store
	supported  *semver.Constraints

	versionOnce   sync.Once
	mu            sync.Mutex
	serverVersion string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// HTTP client, whichever option supplied it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache enables response caching of GET endpoints.
func WithCache(store *cache.Store) Option {
	return func(c *Client) { c.cache = store }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	supported, err := semver.NewConstraint(SupportedAPIVersions)
	if err != nil {
		return nil, fmt.Errorf("parsing supported API versions: %w", err)
	}

	c := &Client{
		baseURL:    u,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		supported:  supported,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// ServerVersion returns the backend version seen on the first response, if
// the backend reported one.
func (c *Client) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverVersion
}

// requestOptions carry per-call settings.
type requestOptions struct {
	query          url.Values
	body           any
	idempotencyKey string
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, requestOptions{query: query}, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any, out any) error {
	return c.do(ctx, method, path, requestOptions{body: body}, out)
}

// do performs one request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, ro requestOptions, out any) error {
	log := logging.FromContext(ctx)

	if strings.HasPrefix(path, protectedPrefix) && c.token == "" {
		return ErrMissingToken
	}

	cacheKey := ""
	if method == http.MethodGet && c.cache.Enabled() {
		cacheKey = cache.RequestKey(method, path, ro.query, c.token)
		if entry, err := c.cache.Lookup(cacheKey); err == nil {
			log.Debug().Ctx(ctx).Str("component", "api").Str("path", path).Msg("cache hit")
			return c.decode(method, path, http.StatusOK, entry.Body, out)
		}
	}

	req, err := c.newRequest(ctx, method, path, ro)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	log.Debug().Ctx(ctx).
		Str("component", "api").
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	c.checkVersion(ctx, resp.Header.Get(HeaderAPIVersion))

	if err = c.decode(method, path, resp.StatusCode, raw, out); err != nil {
		return err
	}

	if cacheKey != "" {
		if putErr := c.cache.Put(cacheKey, method, path, raw); putErr != nil {
			log.Warn().Ctx(ctx).Err(putErr).Str("component", "api").Msg("failed to cache response")
		}
	}
	if method != http.MethodGet && c.cache.Enabled() {
		prefix := resourcePrefix(path)
		if n, invErr := c.cache.InvalidatePrefix(prefix); invErr != nil {
			log.Warn().Ctx(ctx).Err(invErr).Str("component", "api").Str("prefix", prefix).
				Msg("failed to invalidate cached responses")
		} else if n > 0 {
			log.Debug().Ctx(ctx).Str("component", "api").Str("prefix", prefix).Int("removed", n).
				Msg("invalidated cached responses")
		}
	}
	return nil
}

// resourcePrefix returns the first two path segments of path, so a write to
// /protected/wallet/withdraw/single maps to /protected/wallet/.
func resourcePrefix(path string) string {
	segs := strings.SplitN(strings.Trim(path, "/"), "/", 3)
	if len(segs) < 2 {
		return "/" + segs[0] + "/"
	}
	return "/" + segs[0] + "/" + segs[1] + "/"
}

func (c *Client) newRequest(ctx context.Context, method, path string, ro requestOptions) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if len(ro.query) > 0 {
		u.RawQuery = ro.query.Encode()
	}

	var body io.Reader
	if ro.body != nil {
		payload, err := json.Marshal(ro.body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encoding request: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if ro.idempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, ro.idempotencyKey)
	}
	if traceID := logging.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set(HeaderTraceID, traceID)
	}
	return req, nil
}

// decode unwraps the envelope. Non-2xx statuses and "ok": false both become
// *Error; a 2xx body that is not an envelope is ErrMalformedResponse.
func (c *Client) decode(method, path string, status int, raw []byte, out any) error {
	var env Envelope[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &env)

	if status < 200 || status > 299 {
		apiErr := &Error{StatusCode: status, Method: method, Path: path}
		if decodeErr == nil {
			apiErr.Message = env.Message
			apiErr.RequestID = env.RequestID
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrMalformedResponse, decodeErr)
	}
	if !env.OK {
		return &Error{
			StatusCode: status,
			Message:    env.Message,
			RequestID:  env.RequestID,
			Method:     method,
			Path:       path,
		}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: %w: decoding data: %w", method, path, ErrMalformedResponse, err)
	}
	return nil
}

// checkVersion warns once when the backend reports a version outside
// SupportedAPIVersions.
func (c *Client) checkVersion(ctx context.Context, header string) {
	if header == "" {
		return
	}
	c.versionOnce.Do(func() {
		c.mu.Lock()
		c.serverVersion = header
		c.mu.Unlock()
		log := logging.FromContext(ctx)

		v, err := semver.NewVersion(header)
		if err != nil {
			log.Warn().Ctx(ctx).Str("component", "api").Str("api_version", header).
				Msg("backend sent an unparseable API version")
			return
		}
		if !c.supported.Check(v) {
			log.Warn().Ctx(ctx).Str("component", "api").
				Str("api_version", v.String()).
				Str("supported", SupportedAPIVersions).
				Msg("backend API version is outside the supported range; results may be incomplete")
		}
	})
}
