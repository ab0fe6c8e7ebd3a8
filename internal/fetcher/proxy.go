package fetcher

import (
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/observability"
)

// ProxyManager picks the proxy for each outgoing request. A configured pool
// takes precedence; otherwise http_proxy/https_proxy are read from the
// environment on every request.
type ProxyManager struct {
	proxies  []*url.URL
	rotation string
	index    atomic.Int64
	logger   *slog.Logger
}

// NewProxyManager creates a ProxyManager from configuration. Unparsable pool
// entries are dropped with a warning.
func NewProxyManager(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyManager {
	pm := &ProxyManager{
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_manager"),
	}

	if !cfg.Enabled {
		return pm
	}

	for _, rawURL := range cfg.URLs {
		u, err := parseProxy(rawURL)
		if err != nil {
			pm.logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, u)
	}

	pm.logger.Info("proxy pool initialized", "count", len(pm.proxies), "rotation", cfg.Rotation)
	return pm
}

// ProxyFunc returns an http.Transport-compatible proxy function.
func (pm *ProxyManager) ProxyFunc(metrics *observability.Metrics) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		proxy := pm.Next()
		if proxy == nil {
			proxy = EnvProxy(req)
		}
		if proxy != nil && metrics != nil {
			metrics.ProxyRotations.Add(1)
		}
		return proxy, nil
	}
}

// Next returns the next pool proxy, or nil when the pool is empty.
func (pm *ProxyManager) Next() *url.URL {
	if len(pm.proxies) == 0 {
		return nil
	}

	switch pm.rotation {
	case "random":
		return pm.proxies[rand.Intn(len(pm.proxies))]
	default: // round_robin
		idx := (pm.index.Add(1) - 1) % int64(len(pm.proxies))
		return pm.proxies[idx]
	}
}

// Count returns the number of pool proxies.
func (pm *ProxyManager) Count() int {
	return len(pm.proxies)
}

// EnvProxy returns the proxy named by http_proxy or https_proxy for the
// request's scheme. The variable is read at call time. A missing or
// unparsable value means a direct connection.
func EnvProxy(req *http.Request) *url.URL {
	key := "http_proxy"
	if req.URL.Scheme == "https" {
		key = "https_proxy"
	}

	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	u, err := parseProxy(raw)
	if err != nil {
		return nil
	}
	return u
}

func parseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errMissingHost}
	}
	return u, nil
}
