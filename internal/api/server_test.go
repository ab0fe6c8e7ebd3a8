package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/sites"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubSite owns "stub:<id>" inputs and answers from a fixed table.
type stubSite struct {
	users map[string]*types.Aggregate
	err   error
}

func (s *stubSite) Name() string { return "stub" }

func (s *stubSite) ID(input string) (string, bool) {
	id, ok := strings.CutPrefix(input, "stub:")
	return id, ok && id != ""
}

func (s *stubSite) User(_ context.Context, _ storage.Store, id string) (*types.Aggregate, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, &types.HTTPError{URL: "http://stub/" + id, StatusCode: http.StatusNotFound}
	}
	return u, nil
}

func newTestServer(t *testing.T, site *stubSite) *httptest.Server {
	t.Helper()
	registry := sites.New(nil, testLogger)
	require.NoError(t, registry.Register(site))

	srv := httptest.NewServer(NewServer(config.DefaultConfig(), registry, nil, testLogger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealthAndSites(t *testing.T) {
	srv := newTestServer(t, &stubSite{})

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/health", &health))
	assert.Equal(t, "ok", health["status"])

	var list map[string][]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sites", &list))
	assert.Equal(t, []string{"stub"}, list["sites"])
}

func TestFind(t *testing.T) {
	srv := newTestServer(t, &stubSite{})

	var found map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/find?input=stub:42", &found))
	assert.Equal(t, map[string]string{"site": "stub", "id": "42"}, found)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/find?input=https://example.com", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/find", &body))
}

func TestUser(t *testing.T) {
	agg := types.NewAggregate("42", "Answer", "http://stub/42")
	agg.Posts = append(agg.Posts, types.Post{ID: "p1", Name: "first", URL: "http://stub/42/p1"})
	srv := newTestServer(t, &stubSite{users: map[string]*types.Aggregate{"42": agg}})

	var got types.Aggregate
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sites/stub/42", &got))
	assert.Equal(t, "Answer", got.Name)
	require.Len(t, got.Posts, 1)
	assert.Equal(t, "p1", got.Posts[0].ID)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/sites/stub/missing", &body))
	assert.Contains(t, body["error"], "status 404")

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/sites/nope/42", &body))
	assert.Contains(t, body["error"], "unknown site")
}

func TestUserUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, &stubSite{err: &types.TransportError{URL: "http://stub", Err: io.ErrUnexpectedEOF}})

	var body map[string]string
	assert.Equal(t, http.StatusBadGateway, getJSON(t, srv.URL+"/api/sites/stub/42", &body))
}

func TestPreviewWithoutCustomSite(t *testing.T) {
	srv := newTestServer(t, &stubSite{})

	resp, err := http.Post(srv.URL+"/api/preview", "application/json",
		strings.NewReader(`{"id":"x","url":"https://x.test","item":"li","title":"h2","message":"p","date":"time","link":"a"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/api/preview", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubSite{users: map[string]*types.Aggregate{"1": types.NewAggregate("1", "one", "http://stub/1")}})

	var got types.Aggregate
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sites/stub/1", &got))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "feedstalk_aggregates_fetched_total 1")
}
