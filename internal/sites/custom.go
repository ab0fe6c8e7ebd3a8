package sites

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/parser"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// CustomPrefix marks inputs naming a stored site definition.
const CustomPrefix = "custom:"

// Custom scrapes any site described by a stored SiteDefinition.
type Custom struct {
	deps   Deps
	logger *slog.Logger
}

// NewCustom creates the custom backend.
func NewCustom(deps Deps) *Custom {
	deps = deps.withDefaults()
	return &Custom{
		deps:   deps,
		logger: deps.Logger.With("component", "custom"),
	}
}

func (c *Custom) Name() string { return "custom" }

// ID accepts "custom:<definition id>".
func (c *Custom) ID(input string) (string, bool) {
	id, ok := strings.CutPrefix(strings.TrimSpace(input), CustomPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// User loads the definition from store and runs it.
func (c *Custom) User(ctx context.Context, store storage.Store, id string) (*types.Aggregate, error) {
	if store == nil {
		return nil, &types.ExtractionError{Site: c.Name(), ID: id, Err: types.ErrNoSiteStore}
	}

	def, err := store.Site(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Preview(ctx, def)
}

// Preview runs a definition without touching the store.
func (c *Custom) Preview(ctx context.Context, def *types.SiteDefinition) (*types.Aggregate, error) {
	if err := def.Validate(); err != nil {
		return nil, &types.ExtractionError{Site: c.Name(), ID: def.ID, Err: err}
	}

	pageURL, err := url.Parse(def.URL)
	if err != nil || pageURL.Host == "" {
		return nil, &types.ExtractionError{Site: c.Name(), ID: def.ID, Err: fmt.Errorf("invalid url %q", def.URL)}
	}

	rules, err := c.compile(def, pageURL)
	if err != nil {
		return nil, &types.ExtractionError{Site: c.Name(), ID: def.ID, Err: err}
	}

	doc, err := fetcher.FetchHTML(ctx, c.deps.Fetcher, def.URL)
	if err != nil {
		return nil, fmt.Errorf("custom site %s: %w", def.ID, err)
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}
	user := ogAggregate(c.deps.Cache, doc, def.ID, name, def.URL)
	if user.Description == "" {
		user.Description = def.Description
	}
	user.Posts = c.deps.extractPosts(doc, rules, c.logger.With("site", def.ID))

	c.logger.Debug("custom site extracted", "id", def.ID, "engine", def.EngineOrDefault(), "posts", user.Len())
	return user, nil
}

// compile validates every dynamic selector of def through the cache.
func (c *Custom) compile(def *types.SiteDefinition, pageURL *url.URL) (postRules, error) {
	engine := def.EngineOrDefault()
	rules := postRules{
		fragment: func(s string) string {
			return parser.RewriteRelativeHref(s, pageURL.Scheme+"://"+pageURL.Host)
		},
		permalink: func(href string) string {
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				return href
			}
			return pageURL.ResolveReference(ref).String()
		},
	}

	fields := []struct {
		dst *parser.Query
		sel string
	}{
		{&rules.item, def.Item},
		{&rules.title, def.Title},
		{&rules.message, def.Message},
		{&rules.date, def.Date},
		{&rules.link, def.Link},
	}
	for _, f := range fields {
		q, err := c.deps.Cache.Query(engine, f.sel)
		if err != nil {
			return postRules{}, err
		}
		*f.dst = q
	}

	pattern := def.IDPattern
	if pattern == "" {
		pattern = `^.+$`
	}
	re, err := c.deps.Cache.Regex(pattern)
	if err != nil {
		return postRules{}, err
	}
	rules.idPattern = re

	return rules, nil
}
