package fetcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// Fetcher is the interface for request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL. Any non-2xx
	// status is returned as a *types.HTTPError.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// FetchText issues a GET and returns the body as text.
func FetchText(ctx context.Context, f Fetcher, rawURL string) (string, error) {
	resp, err := get(ctx, f, rawURL)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// FetchJSON issues a GET and decodes the JSON body into v.
func FetchJSON(ctx context.Context, f Fetcher, rawURL string, v any) error {
	resp, err := get(ctx, f, rawURL)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

// PostJSON marshals body, POSTs it as JSON and decodes the JSON reply into v.
// A nil v discards the reply.
func PostJSON(ctx context.Context, f Fetcher, rawURL string, body, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := types.NewRequest(rawURL, payload)
	if err != nil {
		return err
	}

	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

// DoJSON sends a prepared request and decodes the JSON reply into v. Use it
// when a backend needs extra headers.
func DoJSON(ctx context.Context, f Fetcher, req *types.Request, v any) error {
	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

// FetchHTML issues a GET and parses the body as an HTML document. Parsing is
// lenient; malformed markup still yields a document.
func FetchHTML(ctx context.Context, f Fetcher, rawURL string) (*goquery.Document, error) {
	resp, err := get(ctx, f, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: rawURL, Err: err}
	}
	return doc, nil
}

func get(ctx context.Context, f Fetcher, rawURL string) (*types.Response, error) {
	req, err := types.NewRequest(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, req)
}

func decodeJSON(resp *types.Response, v any) error {
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &types.ParseError{URL: resp.Request.URLString(), Err: err}
	}
	return nil
}
