package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
)

// Transport sends one request and returns its response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Client is the resty backed Transport.
type Client struct {
	resty          *resty.Client
	baseURL        string
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	limiter        *rate.Limiter
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	rc := resty.New().
		SetTimeout(c.timeout).
		SetHeaders(c.defaultHeaders).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if !c.followRedirect || len(via) >= c.maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		}))

	if !c.validateSSL {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	if c.proxyURL != "" {
		rc.SetProxy(c.proxyURL)
	}

	c.resty = rc
	return c
}

func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send executes req once.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	url := ResolveURL(c.baseURL, req.Path)
	if err := ValidateURL(url); err != nil {
		return nil, err
	}

	body, err := req.EncodeBody()
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	r := c.resty.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetQueryParams(req.Query)
	if body != nil {
		if req.Header("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/json")
		}
		r.SetBody(body)
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, url)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header()))
	for k := range resp.Header() {
		headers[k] = resp.Header().Get(k)
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Headers:    headers,
		Body:       resp.Body(),
		Duration:   time.Since(start),
	}, nil
}
