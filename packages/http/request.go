package http

import (
	"encoding/json"
	"fmt"
	neturl "net/url"
	"strings"
)

// Request is a fully resolved exchange ready to be sent.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body is any JSON encodable value; nil sends no body.
	Body any
}

// Header returns a header value, matching the name case-insensitively.
func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// EncodeBody returns the JSON encoding of Body, or nil when there is none.
func (r *Request) EncodeBody() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	if raw, ok := r.Body.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(r.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return b, nil
}

// ResolveURL joins path onto baseURL unless path is already absolute.
func ResolveURL(baseURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || baseURL == "" {
		return path
	}
	if path == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
