package sites

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/parser"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// DefaultFacebookURL is the mobile front end scraped for groups.
const DefaultFacebookURL = "https://mobile.facebook.com"

var facebookGroupRe = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.|mobile\.)?facebook\.com/groups/([^/?#]+)`)

// Facebook scrapes public groups from the mobile HTML front end.
type Facebook struct {
	deps    Deps
	baseURL string
	rules   postRules
	logger  *slog.Logger
}

// NewFacebook creates the facebook backend. An empty baseURL uses
// DefaultFacebookURL. Its selectors are compiled here and a defect in them
// panics.
func NewFacebook(deps Deps, baseURL string) *Facebook {
	deps = deps.withDefaults()
	if baseURL == "" {
		baseURL = DefaultFacebookURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := deps.Cache
	return &Facebook{
		deps:    deps,
		baseURL: baseURL,
		rules: postRules{
			item:      c.MustCSS("div[data-ft]"),
			title:     c.MustCSS("h3"),
			message:   c.MustCSS("div > div > span"),
			date:      c.MustCSS("abbr"),
			link:      c.MustCSS("div:last-child > div:last-child > a:last-child"),
			idPattern: c.MustRegex(`&id=([^&]+)`),
			fragment: func(s string) string {
				return parser.RewriteRelativeHref(s, baseURL)
			},
			permalink: func(href string) string {
				return parser.RewriteBarePath(href, baseURL)
			},
			group: true,
		},
		logger: deps.Logger.With("component", "facebook"),
	}
}

func (f *Facebook) Name() string { return "facebook" }

// ID accepts group links on any facebook host.
func (f *Facebook) ID(input string) (string, bool) {
	m := facebookGroupRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// User fetches the group page and extracts its posts.
func (f *Facebook) User(ctx context.Context, _ storage.Store, id string) (*types.Aggregate, error) {
	pageURL := fmt.Sprintf("%s/groups/%s", f.baseURL, id)

	doc, err := fetcher.FetchHTML(ctx, f.deps.Fetcher, pageURL)
	if err != nil {
		return nil, fmt.Errorf("facebook group %s: %w", id, err)
	}

	group := ogAggregate(f.deps.Cache, doc, id, id, pageURL)
	group.Posts = f.deps.extractPosts(doc, f.rules, f.logger.With("group", id))

	f.logger.Debug("group extracted", "id", id, "posts", group.Len())
	return group, nil
}
