package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownSite     = errors.New("unknown site")
	ErrNoSiteStore     = errors.New("no site store available")
	ErrInvalidSelector = errors.New("invalid selector")
)

// HTTPError is returned for any non-2xx response. Every status collapses to
// the same kind: errors.Is(err, ErrNotFound) is true.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, ErrNotFound)
}

func (e *HTTPError) Unwrap() error { return ErrNotFound }

// TransportError wraps network-level failures (DNS, TLS, timeouts, refused
// connections) that happen before any HTTP status is received.
type TransportError struct {
	URL       string
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while decoding a response body.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractionError reports a structural assumption about a document that
// failed for the whole aggregate. Per-post failures never produce one.
type ExtractionError struct {
	Site string
	ID   string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error (%s/%s): %v", e.Site, e.ID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur in the persistence layer or exporters.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
