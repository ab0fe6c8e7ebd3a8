package sites

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// DefaultYoutubeURL hosts the channel Atom feeds.
const DefaultYoutubeURL = "https://www.youtube.com"

var youtubeChannelRe = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?youtube\.com/channel/([A-Za-z0-9_-]+)`)

// Youtube reads a channel's uploads from its Atom feed.
type Youtube struct {
	deps    Deps
	baseURL string
	logger  *slog.Logger
}

// NewYoutube creates the youtube backend.
func NewYoutube(deps Deps, baseURL string) *Youtube {
	deps = deps.withDefaults()
	if baseURL == "" {
		baseURL = DefaultYoutubeURL
	}
	return &Youtube{
		deps:    deps,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  deps.Logger.With("component", "youtube"),
	}
}

func (y *Youtube) Name() string { return "youtube" }

// ID returns the channel id of a channel URL.
func (y *Youtube) ID(input string) (string, bool) {
	m := youtubeChannelRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// User fetches and parses the channel feed.
func (y *Youtube) User(ctx context.Context, _ storage.Store, id string) (*types.Aggregate, error) {
	feedURL := fmt.Sprintf("%s/feeds/videos.xml?channel_id=%s", y.baseURL, url.QueryEscape(id))

	body, err := fetcher.FetchText(ctx, y.deps.Fetcher, feedURL)
	if err != nil {
		return nil, fmt.Errorf("youtube channel %s: %w", id, err)
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, &types.ParseError{URL: feedURL, Err: err}
	}

	name := feed.Title
	if name == "" {
		name = id
	}
	channelURL := feed.Link
	if channelURL == "" {
		channelURL = fmt.Sprintf("%s/channel/%s", DefaultYoutubeURL, id)
	}
	user := types.NewAggregate(id, name, channelURL)
	user.Description = feed.Description
	if feed.Image != nil {
		user.Image = feed.Image.URL
	}

	for _, item := range feed.Items {
		videoID := youtubeVideoID(item)
		if videoID == "" || item.Link == "" {
			y.deps.Metrics.PostsSkipped.Add(1)
			y.logger.Debug("entry skipped", "channel", id, "title", item.Title)
			continue
		}
		user.Posts = append(user.Posts, types.Post{
			ID:          videoID,
			Name:        item.Title,
			URL:         item.Link,
			Message:     youtubeDescription(item),
			CreatedTime: itemPublished(item),
		})
	}
	y.deps.Metrics.PostsExtracted.Add(int64(user.Len()))

	return user, nil
}

// youtubeVideoID reads yt:videoId, falling back to the entry id.
func youtubeVideoID(item *gofeed.Item) string {
	if v := extensionValue(item, "yt", "videoId"); v != "" {
		return v
	}
	return strings.TrimPrefix(item.GUID, "yt:video:")
}

// youtubeDescription reads media:group/media:description, which the Atom
// translator does not map onto Description.
func youtubeDescription(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	for _, group := range item.Extensions["media"]["group"] {
		for _, d := range group.Children["description"] {
			if d.Value != "" {
				return d.Value
			}
		}
	}
	return ""
}

func extensionValue(item *gofeed.Item, ns, name string) string {
	for _, ext := range item.Extensions[ns][name] {
		if ext.Value != "" {
			return ext.Value
		}
	}
	return ""
}

func itemPublished(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}
