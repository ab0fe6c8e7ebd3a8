package sites

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/feedstalk/internal/types"
)

const channelFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <id>yt:channel:UCgopher</id>
 <yt:channelId>UCgopher</yt:channelId>
 <title>Gopher Talks</title>
 <link rel="alternate" href="https://www.youtube.com/channel/UCgopher"/>
 <published>2015-01-01T00:00:00+00:00</published>
 <entry>
  <id>yt:video:vid001</id>
  <yt:videoId>vid001</yt:videoId>
  <title>Generics in practice</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=vid001"/>
  <published>2024-05-10T12:00:00+00:00</published>
  <updated>2024-05-10T13:00:00+00:00</updated>
  <media:group>
   <media:title>Generics in practice</media:title>
   <media:description>Type parameters, one year on.</media:description>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:vid002</id>
  <title>No link</title>
  <published>2024-05-09T12:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:vid003</id>
  <title>Fallback id</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=vid003"/>
  <updated>2024-05-08T09:30:00+02:00</updated>
 </entry>
</feed>`

func TestYoutubeID(t *testing.T) {
	yt := NewYoutube(Deps{Logger: testLogger}, "")

	id, ok := yt.ID("https://www.youtube.com/channel/UCgopher/videos")
	require.True(t, ok)
	assert.Equal(t, "UCgopher", id)

	_, ok = yt.ID("https://www.youtube.com/watch?v=vid001")
	assert.False(t, ok)
}

func TestYoutubeChannel(t *testing.T) {
	deps := newTestDeps(t)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feeds/videos.xml" || r.URL.Query().Get("channel_id") != "UCgopher" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(channelFeed))
	})

	user, err := NewYoutube(deps, srv.URL).User(context.Background(), nil, "UCgopher")
	require.NoError(t, err)

	assert.Equal(t, "UCgopher", user.ID)
	assert.Equal(t, "Gopher Talks", user.Name)
	assert.Equal(t, "https://www.youtube.com/channel/UCgopher", user.URL)

	require.Len(t, user.Posts, 2)
	assert.Equal(t, "vid001", user.Posts[0].ID)
	assert.Equal(t, "Generics in practice", user.Posts[0].Name)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid001", user.Posts[0].URL)
	assert.Equal(t, "Type parameters, one year on.", user.Posts[0].Message)
	assert.Equal(t, "2024-05-10T12:00:00Z", user.Posts[0].CreatedTime)

	assert.Equal(t, "vid003", user.Posts[1].ID)
	assert.Equal(t, "2024-05-08T07:30:00Z", user.Posts[1].CreatedTime)

	assert.EqualValues(t, 1, deps.Metrics.PostsSkipped.Load())
	assert.EqualValues(t, 2, deps.Metrics.PostsExtracted.Load())
}

func TestYoutubeInvalidFeed(t *testing.T) {
	deps := newTestDeps(t)
	srv := serveBody(t, "text/plain", "this is not a feed")

	_, err := NewYoutube(deps, srv.URL).User(context.Background(), nil, "UCgopher")

	var parseErr *types.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.URL, "channel_id=UCgopher")
}
