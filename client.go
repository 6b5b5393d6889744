package factordb

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the public FactorDB API.
	DefaultEndpoint = "http://factordb.com/api"

	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes int64 = 8 << 20
)

// Client queries the FactorDB API. It holds only configuration fixed at
// construction and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	maxBytes   int64
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint. The number is added as the
// "query" parameter.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets the http.Client used for requests. Timeouts, proxies
// and connection reuse are whatever that client does.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodyBytes caps the response size. Larger bodies fail with a
// ParseError.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client against DefaultEndpoint unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		endpoint:   DefaultEndpoint,
		maxBytes:   DefaultMaxBodyBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Debug("created factordb client", zap.String("endpoint", c.endpoint))
	return c
}

// Endpoint returns the API endpoint the client queries.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// URL returns the request URL for n.
func (c *Client) URL(n *big.Int) (string, error) {
	if err := checkNumber(n); err != nil {
		return "", err
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", n.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Get looks up n.
func (c *Client) Get(ctx context.Context, n *big.Int) (*Result, error) {
	body, err := c.fetch(ctx, n)
	if err != nil {
		return nil, err
	}
	res, err := ParseResult(n.String(), body)
	if err != nil {
		c.logger.Debug("undecodable response", zap.Stringer("number", n), zap.Error(err))
		return nil, err
	}
	c.logger.Debug("lookup done",
		zap.Stringer("number", n),
		zap.Stringer("status", res.Status()),
		zap.Int("pairs", len(res.factors)))
	return res, nil
}

// GetUint64 looks up a machine-width number.
func (c *Client) GetUint64(ctx context.Context, n uint64) (*Result, error) {
	return c.Get(ctx, new(big.Int).SetUint64(n))
}

// GetString validates s as a non-negative decimal integer and looks it up.
// Invalid input fails with ErrInvalidNumber without a request.
func (c *Client) GetString(ctx context.Context, s string) (*Result, error) {
	n, err := ParseNumber(s)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, n)
}

// GetJSON returns the raw response body for n without decoding it.
func (c *Client) GetJSON(ctx context.Context, n *big.Int) ([]byte, error) {
	return c.fetch(ctx, n)
}

// fetch performs the single GET for n and returns the body.
func (c *Client) fetch(ctx context.Context, n *big.Int) ([]byte, error) {
	if err := checkNumber(n); err != nil {
		return nil, err
	}
	rawURL, err := c.URL(n)
	if err != nil {
		return nil, &HTTPError{URL: c.endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &HTTPError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("fetching factorization", zap.String("url", rawURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &HTTPError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, &ParseError{Err: fmt.Errorf("response body exceeds %d bytes", c.maxBytes)}
	}
	return body, nil
}
