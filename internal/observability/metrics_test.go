package observability

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.FetchesTotal.Add(3)
	m.RecordStatus(200)
	m.RecordStatus(503)
	m.PostsSkipped.Add(2)
	m.TrackCache(func() (int64, int64) { return 7, 2 })

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, body, "feedstalk_fetches_total 3\n")
	assert.Contains(t, body, "feedstalk_responses_2xx_total 1\n")
	assert.Contains(t, body, "feedstalk_responses_5xx_total 1\n")
	assert.Contains(t, body, "feedstalk_posts_skipped_total 2\n")
	assert.Contains(t, body, "feedstalk_selector_cache_hits_total 7\n")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap["selector_cache_misses"])
}
