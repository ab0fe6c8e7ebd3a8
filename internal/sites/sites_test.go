package sites

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/observability"
	"github.com/IshaanNene/feedstalk/internal/parser"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testNow    = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
)

// testDates is the default normalizer pinned to testNow.
func testDates() *parser.DateNormalizer {
	n := parser.NewDateNormalizer()
	n.Now = func() time.Time { return testNow }
	return n
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	t.Setenv("http_proxy", "")
	t.Setenv("https_proxy", "")

	cfg := config.DefaultConfig()
	cfg.Fetcher.RequestTimeout = 5 * time.Second
	metrics := observability.NewMetrics(testLogger)
	f := fetcher.NewHTTPFetcher(cfg, metrics, testLogger)
	t.Cleanup(func() { f.Close() })

	return Deps{
		Fetcher: f,
		Cache:   parser.NewSelectorCache(),
		Dates:   testDates(),
		Metrics: metrics,
		Logger:  testLogger,
	}
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func serveBody(t *testing.T, contentType, body string) *httptest.Server {
	return serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		io.WriteString(w, body)
	})
}
