package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request represents a single HTTP request issued by the fetcher.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. GET unless a body is present.
	Method string

	// Headers are extra HTTP headers layered over the fixed browser headers.
	Headers http.Header

	// Body is sent as JSON with a POST when non-empty.
	Body []byte

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a GET request, or a POST when body is non-empty.
func NewRequest(rawURL string, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	method := http.MethodGet
	if len(body) > 0 {
		method = http.MethodPost
	}

	return &Request{
		URL:       u,
		Method:    method,
		Headers:   make(http.Header),
		Body:      body,
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
