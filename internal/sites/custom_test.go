package sites

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

const blogPage = `<html>
<head><meta property="og:title" content="Dev Blog"></head>
<body>
  <article class="post">
    <h2><a href="/posts/first">First</a></h2>
    <p class="body">Hello from the <a href="/tags/go">go</a> tag</p>
    <time>3 hrs</time>
    <a class="permalink" href="posts/first?pid=7">#</a>
  </article>
  <article class="post">
    <h2>Draft</h2>
    <p class="body">No permalink</p>
    <time>3 hrs</time>
  </article>
  <article class="post">
    <h2>Second</h2>
    <p class="body">Absolute link</p>
    <time>2024-05-01</time>
    <a class="permalink" href="https://cdn.test/p?pid=8">#</a>
  </article>
</body>
</html>`

func blogDefinition(url string) *types.SiteDefinition {
	return &types.SiteDefinition{
		ID:        "blog",
		Name:      "Blog",
		URL:       url + "/blog/",
		Item:      "article.post",
		Title:     "h2",
		Message:   "p.body",
		Date:      "time",
		Link:      "a.permalink",
		IDPattern: `pid=(\d+)`,
	}
}

func TestCustomCSSDefinitionFromStore(t *testing.T) {
	deps := newTestDeps(t)
	srv := serveBody(t, "text/html", blogPage)
	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveSite(context.Background(), blogDefinition(srv.URL)))

	user, err := NewCustom(deps).User(context.Background(), store, "blog")
	require.NoError(t, err)

	assert.Equal(t, "Dev Blog", user.Name)
	assert.Equal(t, srv.URL+"/blog/", user.URL)
	require.Len(t, user.Posts, 2)

	assert.Equal(t, "7", user.Posts[0].ID)
	assert.Equal(t, srv.URL+"/blog/posts/first?pid=7", user.Posts[0].URL)
	assert.Equal(t, `<a href="`+srv.URL+`/posts/first">First</a>`, user.Posts[0].Name)
	assert.Equal(t, "2024-05-10T12:00:00Z", user.Posts[0].CreatedTime)
	assert.Empty(t, user.Posts[0].PermalinkURL)

	assert.Equal(t, "8", user.Posts[1].ID)
	assert.Equal(t, "https://cdn.test/p?pid=8", user.Posts[1].URL)
	assert.Equal(t, "2024-05-01T00:00:00Z", user.Posts[1].CreatedTime)
}

func TestCustomXPathDefinition(t *testing.T) {
	deps := newTestDeps(t)
	srv := serveBody(t, "text/html", blogPage)

	def := blogDefinition(srv.URL)
	def.Engine = types.EngineXPath
	def.Item = "//article[@class='post']"
	def.Title = ".//h2"
	def.Message = ".//p[@class='body']"
	def.Date = ".//time"
	def.Link = ".//a[@class='permalink']"

	s := NewDefault(&config.DefaultConfig().Sites, deps)
	user, err := s.Preview(context.Background(), def)
	require.NoError(t, err)

	require.Len(t, user.Posts, 2)
	assert.Equal(t, "7", user.Posts[0].ID)
	assert.Equal(t, "8", user.Posts[1].ID)
}

func TestCustomInvalidSelectorIsExtractionError(t *testing.T) {
	deps := newTestDeps(t)
	var requests atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(blogPage))
	})

	def := blogDefinition(srv.URL)
	def.Title = "h2[unclosed"

	_, err := NewCustom(deps).Preview(context.Background(), def)

	var exErr *types.ExtractionError
	require.True(t, errors.As(err, &exErr), "got %T: %v", err, err)
	assert.Equal(t, "custom", exErr.Site)
	assert.Equal(t, "blog", exErr.ID)
	assert.True(t, errors.Is(err, types.ErrInvalidSelector))
	assert.Zero(t, requests.Load(), "selectors are validated before fetching")

	def = blogDefinition(srv.URL)
	def.IDPattern = `pid=(\d+`
	_, err = NewCustom(deps).Preview(context.Background(), def)
	assert.True(t, errors.As(err, &exErr))
}

func TestCustomWithoutStore(t *testing.T) {
	_, err := NewCustom(Deps{Logger: testLogger}).User(context.Background(), nil, "blog")
	assert.ErrorIs(t, err, types.ErrNoSiteStore)

	var exErr *types.ExtractionError
	assert.True(t, errors.As(err, &exErr))
}

func TestCustomUnknownDefinition(t *testing.T) {
	_, err := NewCustom(Deps{Logger: testLogger}).User(context.Background(), storage.NewMemoryStore(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCustomIncompleteDefinition(t *testing.T) {
	def := &types.SiteDefinition{ID: "half", URL: "https://half.test", Item: "li"}
	_, err := NewCustom(Deps{Logger: testLogger}).Preview(context.Background(), def)

	var exErr *types.ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Contains(t, err.Error(), "title selector is required")
}
