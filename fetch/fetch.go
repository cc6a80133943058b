// Package fetch is the single remote-call layer: one HTTP attempt, JSON
// in and out, failures raised as typed errors. Retry policy is the
// caller's business and the callers deliberately have none; a failed
// fetch falls back to the cache instead.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
)

// maxErrBody bounds how much of an error response is kept for logging.
const maxErrBody = 2048

// Validatable is implemented by response types that check their own
// shape after decoding. A validation failure is reported as *ParseError.
type Validatable interface {
	Validate() error
}

// Client issues JSON requests against one base URL.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// GetJSON issues a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, p string, query map[string]string, out any) error {
	req, err := c.newReq(ctx, http.MethodGet, p, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, p, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into
// out.
func (c *Client) PostJSON(ctx context.Context, p string, body any, out any) error {
	blob, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := c.newReq(ctx, http.MethodPost, p, nil, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, p, out)
}

func (c *Client) newReq(ctx context.Context, method, p string, query map[string]string, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do performs the single attempt and maps the outcome onto the error
// taxonomy. No retries, no explicit deadline beyond the HTTP client's
// own defaults.
func (c *Client) do(req *http.Request, p string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Method: req.Method, Path: p, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return &RemoteError{
			Method:     req.Method,
			Path:       p,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	if out == nil {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: req.Method, Path: p, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{Path: p, Err: err}
	}

	if v, ok := out.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return &ParseError{Path: p, Err: err}
		}
	}

	return nil
}
