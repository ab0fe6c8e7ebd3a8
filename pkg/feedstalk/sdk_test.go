package feedstalk

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/types"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
 <title>SDK Channel</title>
 <link rel="alternate" href="https://www.youtube.com/channel/UCsdk"/>
 <entry>
  <id>yt:video:v1</id>
  <yt:videoId>v1</yt:videoId>
  <title>Hello</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=v1"/>
  <published>2024-05-10T12:00:00+00:00</published>
 </entry>
</feed>`

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	t.Setenv("http_proxy", "")
	t.Setenv("https_proxy", "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		io.WriteString(w, feed)
	}))
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSiteURL("youtube", srv.URL),
	}, opts...)
	c := New(opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientFetch(t *testing.T) {
	c := newTestClient(t)

	site, id, ok := c.Find("https://www.youtube.com/channel/UCsdk")
	require.True(t, ok)
	assert.Equal(t, "youtube", site)
	assert.Equal(t, "UCsdk", id)

	a, err := c.Fetch(context.Background(), "https://www.youtube.com/channel/UCsdk")
	require.NoError(t, err)
	assert.Equal(t, "SDK Channel", a.Name)
	require.Len(t, a.Posts, 1)
	assert.Equal(t, "v1", a.Posts[0].ID)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats["aggregates_fetched"])
	assert.EqualValues(t, 1, stats["posts_extracted"])
}

func TestClientUnknownInput(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Fetch(context.Background(), "https://example.com/somewhere")
	assert.ErrorIs(t, err, ErrUnknownSite)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.User(context.Background(), "myspace", "tom")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientWithoutStore(t *testing.T) {
	c := newTestClient(t)

	assert.Nil(t, c.Store())
	assert.ErrorIs(t, c.SaveSite(context.Background(), &SiteDefinition{ID: "x"}), types.ErrNoSiteStore)
	assert.ErrorIs(t, c.Save(context.Background(), "youtube", types.NewAggregate("x", "x", "x")), types.ErrNoSiteStore)

	_, err := c.Fetch(context.Background(), "custom:blog")
	assert.ErrorIs(t, err, types.ErrNoSiteStore)
}

func TestClientSites(t *testing.T) {
	c := newTestClient(t)
	assert.Equal(t, []string{"facebook", "leboncoin", "instagram", "youtube", "custom"}, c.Sites())
}

func TestOptions(t *testing.T) {
	o := &options{cfg: config.DefaultConfig()}
	WithProxy("http://p1:8080")(o)
	WithUserAgent("agent/1.0")(o)
	WithSiteURL("facebook", "http://mirror.test")(o)
	WithSiteURL("myspace", "http://ignored.test")(o)
	WithVerbose()(o)

	assert.True(t, o.cfg.Proxy.Enabled)
	assert.Equal(t, []string{"http://p1:8080"}, o.cfg.Proxy.URLs)
	assert.Equal(t, "agent/1.0", o.cfg.Fetcher.UserAgent)
	assert.Equal(t, "http://mirror.test", o.cfg.Sites.FacebookURL)
	assert.Equal(t, "debug", o.cfg.Logging.Level)
}
