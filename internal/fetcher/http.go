package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/observability"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// errorBodyExcerpt bounds how much of a failed response is logged.
const errorBodyExcerpt = 2048

var (
	errTooManyRedirects = errors.New("too many redirects")
	errMissingHost      = errors.New("missing scheme or host")
)

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client   *http.Client
	cfg      *config.FetcherConfig
	proxyMgr *ProxyManager
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher. A nil metrics gets a private
// instance.
func NewHTTPFetcher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *HTTPFetcher {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // decoded below, brotli included
	}

	proxyMgr := NewProxyManager(&cfg.Proxy, logger)
	transport.Proxy = proxyMgr.ProxyFunc(metrics)

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("%w (%d)", errTooManyRedirects, cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Timeout:       cfg.Fetcher.RequestTimeout,
		CheckRedirect: redirectPolicy,
	}

	return &HTTPFetcher{
		client:   client,
		cfg:      &cfg.Fetcher,
		proxyMgr: proxyMgr,
		metrics:  metrics,
		logger:   logger.With("component", "http_fetcher"),
	}
}

// Fetch executes an HTTP request and returns the response.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URLString(), body)
	if err != nil {
		return nil, &types.TransportError{URL: req.URLString(), Err: err}
	}

	httpReq.Header.Set("User-Agent", f.cfg.UserAgent)
	httpReq.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "*/*")
	}

	for key, values := range req.Headers {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	f.metrics.FetchesTotal.Add(1)

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		// A rejected redirect still carries the last response.
		if errors.Is(err, errTooManyRedirects) {
			status := 0
			if httpResp != nil {
				status = httpResp.StatusCode
				httpResp.Body.Close()
			}
			f.metrics.RecordStatus(status)
			f.logger.Error("fetch failed",
				"url", req.URLString(),
				"status", status,
				"error", err,
			)
			return nil, &types.HTTPError{URL: req.URLString(), StatusCode: status}
		}

		f.metrics.TransportErrors.Add(1)
		f.logger.Warn("transport error", "url", req.URLString(), "error", err)
		return nil, &types.TransportError{
			URL:       req.URLString(),
			Err:       err,
			Retryable: isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()

	f.metrics.RecordStatus(httpResp.StatusCode)

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if decoded, derr := decompressReader(httpResp, reader); derr == nil {
			reader = decoded
		}
		excerpt, _ := io.ReadAll(io.LimitReader(reader, errorBodyExcerpt))
		f.logger.Error("fetch failed",
			"url", req.URLString(),
			"method", req.Method,
			"status", httpResp.StatusCode,
			"headers", httpResp.Header,
			"body", string(excerpt),
		)
		return nil, &types.HTTPError{URL: req.URLString(), StatusCode: httpResp.StatusCode}
	}

	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.TransportError{URL: req.URLString(), Err: err}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		f.metrics.TransportErrors.Add(1)
		return nil, &types.TransportError{URL: req.URLString(), Err: err, Retryable: isRetryableError(err)}
	}
	f.metrics.BytesDownloaded.Add(int64(len(data)))

	resp := types.NewResponse(req, httpResp, data, duration)

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(data),
		"duration", duration,
	)

	return resp, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// decompressReader wraps a reader with the decoder for the response's
// Content-Encoding: gzip, deflate or br.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError reports whether a network error is transient. The fetcher
// never retries; callers can use it through TransportError.IsRetryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}
