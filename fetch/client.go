// Package fetch retrieves remote stylesheets over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

const (
	// DefaultUserAgent is sent when caller did not provide one.
	DefaultUserAgent = "cssimp"
	// ModernBrowserUserAgent makes font services return woff2 sources.
	ModernBrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 8 << 20

	acceptCSS = "text/css,*/*;q=0.1"
)

var (
	ErrScheme   = errors.New("url must use http or https")
	ErrTooLarge = errors.New("response body is too large")
	ErrBinary   = errors.New("response body is not text")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Status)
}

// Client is HTTP transport for stylesheet fetching. Zero value is not
// usable, use New.
type Client struct {
	log     *zap.Logger
	client  *http.Client
	maxBody int64
	header  http.Header
}

// Option configures Client.
type Option func(*Client)

// WithTimeout limits time of a single request including body download.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithMaxBodySize limits size of accepted response.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithTransport replaces default HTTP round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.client.Transport = rt
	}
}

// WithHeader adds headers sent with every request unless request itself
// carries the same header.
func WithHeader(h http.Header) Option {
	return func(c *Client) {
		for k, v := range h {
			c.header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}
}

// New returns ready to use client.
func New(log *zap.Logger, options ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		log:     log.Named("fetch"),
		client:  &http.Client{Timeout: DefaultTimeout},
		maxBody: DefaultMaxBodySize,
		header: http.Header{
			"User-Agent": {DefaultUserAgent},
			"Accept":     {acceptCSS},
		},
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Fetch downloads stylesheet at rawURL and returns its text converted to
// UTF-8.
func (c *Client) Fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrScheme, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so connection could be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBody)
	}
	if kind, _ := filetype.Match(body); kind != filetype.Unknown {
		return nil, fmt.Errorf("%w: looks like %s", ErrBinary, kind.MIME.Value)
	}

	cs, err := Detect(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	text, err := cs.Decode(body)
	if err != nil {
		return nil, err
	}

	c.log.Debug("Fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.String("content-type", resp.Header.Get("Content-Type")),
		zap.Bool("converted", cs.Transcoded()),
		zap.Int("size", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}
