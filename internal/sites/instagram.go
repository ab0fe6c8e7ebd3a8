package sites

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// DefaultInstagramURL is the web front end serving profile JSON.
const DefaultInstagramURL = "https://www.instagram.com"

// instagramAppID is the public id the web client sends with API calls.
const instagramAppID = "936619743392459"

var instagramProfileRe = regexp.MustCompile(`^(?:https?://)?(?:www\.)?instagram\.com/([A-Za-z0-9._]+)/?(?:\?.*)?$`)

// Paths under instagram.com that are not profiles.
var instagramReserved = map[string]bool{
	"p": true, "reel": true, "reels": true, "explore": true,
	"accounts": true, "stories": true, "direct": true, "tv": true,
}

// Instagram reads a public profile and its latest media.
type Instagram struct {
	deps    Deps
	baseURL string
	logger  *slog.Logger
}

// NewInstagram creates the instagram backend.
func NewInstagram(deps Deps, baseURL string) *Instagram {
	deps = deps.withDefaults()
	if baseURL == "" {
		baseURL = DefaultInstagramURL
	}
	return &Instagram{
		deps:    deps,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  deps.Logger.With("component", "instagram"),
	}
}

func (i *Instagram) Name() string { return "instagram" }

// ID returns the username of a profile URL.
func (i *Instagram) ID(input string) (string, bool) {
	m := instagramProfileRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil || instagramReserved[m[1]] {
		return "", false
	}
	return m[1], true
}

type instagramProfile struct {
	Data struct {
		User *instagramUser `json:"user"`
	} `json:"data"`
}

type instagramUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Biography     string `json:"biography"`
	ProfilePicURL string `json:"profile_pic_url_hd"`
	Timeline      struct {
		Edges []struct {
			Node instagramMedia `json:"node"`
		} `json:"edges"`
	} `json:"edge_owner_to_timeline_media"`
}

type instagramMedia struct {
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
	TakenAt   int64  `json:"taken_at_timestamp"`
	Caption   struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
}

func (m instagramMedia) caption() string {
	if len(m.Caption.Edges) == 0 {
		return ""
	}
	return m.Caption.Edges[0].Node.Text
}

// User fetches the profile JSON and maps timeline media to posts.
func (i *Instagram) User(ctx context.Context, _ storage.Store, id string) (*types.Aggregate, error) {
	req, err := types.NewRequest(fmt.Sprintf("%s/api/v1/users/web_profile_info/?username=%s", i.baseURL, url.QueryEscape(id)), nil)
	if err != nil {
		return nil, err
	}
	req.Headers.Set("X-IG-App-ID", instagramAppID)

	var profile instagramProfile
	if err := fetcher.DoJSON(ctx, i.deps.Fetcher, req, &profile); err != nil {
		return nil, fmt.Errorf("instagram profile %s: %w", id, err)
	}

	u := profile.Data.User
	if u == nil {
		return nil, &types.ExtractionError{Site: i.Name(), ID: id, Err: fmt.Errorf("profile: %w", types.ErrNotFound)}
	}

	name := u.FullName
	if name == "" {
		name = id
	}
	user := types.NewAggregate(id, name, fmt.Sprintf("%s/%s/", DefaultInstagramURL, id))
	user.Description = u.Biography
	user.Image = u.ProfilePicURL

	for _, edge := range u.Timeline.Edges {
		media := edge.Node
		if media.Shortcode == "" || media.TakenAt == 0 {
			i.deps.Metrics.PostsSkipped.Add(1)
			i.logger.Debug("media skipped", "user", id, "media", media.ID)
			continue
		}
		postID := media.ID
		if postID == "" {
			postID = media.Shortcode
		}
		user.Posts = append(user.Posts, types.Post{
			ID:          postID,
			Name:        name,
			URL:         fmt.Sprintf("%s/p/%s/", DefaultInstagramURL, media.Shortcode),
			Message:     media.caption(),
			CreatedTime: time.Unix(media.TakenAt, 0).UTC().Format(time.RFC3339),
		})
	}
	i.deps.Metrics.PostsExtracted.Add(int64(user.Len()))

	return user, nil
}
