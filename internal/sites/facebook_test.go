package sites

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/feedstalk/internal/types"
)

const groupPage = `<!DOCTYPE html>
<html>
<head>
  <title>Gophers | Facebook</title>
  <meta property="og:title" content="Gophers">
  <meta property="og:description" content="Go programmers">
  <meta property="og:url" content="https://www.facebook.com/groups/gophers/">
  <meta property="og:image" content="https://img.test/cover.jpg">
</head>
<body>
<div id="m_group_stories_container">
  <div data-ft='{"tn":"-R"}'>
    <header><h3><a href="/alice">Alice</a> shared a link</h3></header>
    <div><div><span>Hello <a href="/hashtag/go">#go</a></span></div></div>
    <div>
      <div><abbr>3 hrs</abbr></div>
      <div><a href="/like">Like</a><a href="/story.php?story_fbid=100&amp;id=42">Full Story</a></div>
    </div>
  </div>
  <div data-ft='{"tn":"-R"}'>
    <header><h3>Bob</h3></header>
    <div><div><span>No date on this one</span></div></div>
    <div>
      <div><span>Public</span></div>
      <div><a href="/story.php?story_fbid=101&amp;id=43">Full Story</a></div>
    </div>
  </div>
  <div data-ft='{"tn":"-R"}'>
    <header><h3>Carol</h3></header>
    <div><div><span>Permalink has no id</span></div></div>
    <div>
      <div><abbr>Yesterday at 10:00</abbr></div>
      <div><a href="/groups/gophers/">Group</a></div>
    </div>
  </div>
  <div data-ft='{"tn":"-R"}'>
    <header><h3>Dave</h3></header>
    <div><div><span>Second full post</span></div></div>
    <div>
      <div><abbr>Yesterday at 10:00</abbr></div>
      <div><a href="/story.php?story_fbid=102&amp;id=44&amp;ref=x">Full Story</a></div>
    </div>
  </div>
  <div data-ft='{"tn":"-R"}'>
    <div><div><span>No title at all</span></div></div>
  </div>
</div>
</body>
</html>`

func TestFacebookExtractsCompletePostsOnly(t *testing.T) {
	deps := newTestDeps(t)
	var path string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(groupPage))
	})

	fb := NewFacebook(deps, srv.URL)
	group, err := fb.User(context.Background(), nil, "gophers")
	require.NoError(t, err)

	assert.Equal(t, "/groups/gophers", path)
	assert.Equal(t, "gophers", group.ID)
	assert.Equal(t, "Gophers", group.Name)
	assert.Equal(t, "Go programmers", group.Description)
	assert.Equal(t, "https://www.facebook.com/groups/gophers/", group.URL)
	assert.Equal(t, "https://img.test/cover.jpg", group.Image)

	require.Len(t, group.Posts, 2)

	first := group.Posts[0]
	assert.Equal(t, "42", first.ID)
	assert.Equal(t, `<a href="`+srv.URL+`/alice">Alice</a> shared a link`, first.Name)
	assert.Equal(t, `Hello <a href="`+srv.URL+`/hashtag/go">#go</a>`, first.Message)
	assert.Equal(t, "2024-05-10T12:00:00Z", first.CreatedTime)
	assert.Equal(t, srv.URL+"/story.php?story_fbid=100&id=42", first.PermalinkURL)
	assert.Equal(t, first.PermalinkURL, first.URL)

	second := group.Posts[1]
	assert.Equal(t, "44", second.ID)
	assert.Equal(t, "Dave", second.Name)
	assert.Equal(t, "2024-05-09T10:00:00Z", second.CreatedTime)

	assert.Equal(t, int64(2), deps.Metrics.PostsExtracted.Load())
	assert.Equal(t, int64(3), deps.Metrics.PostsSkipped.Load())
}

func TestFacebookDates(t *testing.T) {
	deps := newTestDeps(t)
	srv := serveBody(t, "text/html", `<html><body>
<div data-ft="1"><h3>A</h3><div><div><span>calendar</span></div></div>
  <div><div><abbr>March 3 at 2:14 PM</abbr></div><div><a href="/story.php?story_fbid=1&amp;id=1">Full Story</a></div></div></div>
<div data-ft="2"><h3>B</h3><div><div><span>unresolvable</span></div></div>
  <div><div><abbr>Shared with Public</abbr></div><div><a href="/story.php?story_fbid=2&amp;id=2">Full Story</a></div></div></div>
<div data-ft="3"><h3>C</h3><div><div><span>relative</span></div></div>
  <div><div><abbr>3 hrs ago</abbr></div><div><a href="/story.php?story_fbid=3&amp;id=3">Full Story</a></div></div></div>
</body></html>`)

	group, err := NewFacebook(deps, srv.URL).User(context.Background(), nil, "dates")
	require.NoError(t, err)
	require.Len(t, group.Posts, 3)

	assert.Equal(t, "2024-03-03T14:14:00Z", group.Posts[0].CreatedTime)
	assert.Equal(t, "Shared with Public", group.Posts[1].CreatedTime, "unresolvable dates are kept verbatim")
	assert.Equal(t, "2024-05-10T12:00:00Z", group.Posts[2].CreatedTime)
}

func TestFacebookEmptyPageKeepsTopLevelFields(t *testing.T) {
	deps := newTestDeps(t)
	srv := serveBody(t, "text/html", `<html><head><meta property="og:title" content="Quiet group"></head><body><p>nothing here</p></body></html>`)

	group, err := NewFacebook(deps, srv.URL).User(context.Background(), nil, "quiet")
	require.NoError(t, err)

	assert.Equal(t, "Quiet group", group.Name)
	assert.Equal(t, srv.URL+"/groups/quiet", group.URL, "url falls back to the fetched page")
	assert.Empty(t, group.Description)
	assert.NotNil(t, group.Posts)
	assert.Empty(t, group.Posts)
}

func TestFacebookNoMetadataFallsBackToID(t *testing.T) {
	deps := newTestDeps(t)
	srv := serveBody(t, "text/html", `<p>broken <div unclosed`)

	group, err := NewFacebook(deps, srv.URL).User(context.Background(), nil, "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", group.Name)
	assert.Equal(t, srv.URL+"/groups/12345", group.URL)
	assert.Empty(t, group.Posts)
}

func TestFacebookServerErrorIsNotFound(t *testing.T) {
	deps := newTestDeps(t)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})

	_, err := NewFacebook(deps, srv.URL).User(context.Background(), nil, "gophers")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.True(t, strings.Contains(err.Error(), "facebook group gophers"))
}
