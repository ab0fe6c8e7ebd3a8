// Package feedstalk provides a public SDK for embedding feedstalk as a library.
//
// Example usage:
//
//	client := feedstalk.New(
//	    feedstalk.WithTimeout(10 * time.Second),
//	    feedstalk.WithProxy("http://127.0.0.1:3128"),
//	)
//	defer client.Close()
//
//	feed, err := client.Fetch(ctx, "https://www.youtube.com/channel/UC_x5XG1OV2P6uZZ5FSM9Ttw")
//	if err != nil {
//	    return err
//	}
//	for _, post := range feed.Posts {
//	    fmt.Println(post.CreatedTime, post.Name)
//	}
package feedstalk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/observability"
	"github.com/IshaanNene/feedstalk/internal/parser"
	"github.com/IshaanNene/feedstalk/internal/sites"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

type (
	Aggregate      = types.Aggregate
	Post           = types.Post
	SiteDefinition = types.SiteDefinition
)

var (
	ErrNotFound    = types.ErrNotFound
	ErrUnknownSite = types.ErrUnknownSite
)

// Client is the high-level API for using feedstalk as a library.
type Client struct {
	metrics *observability.Metrics
	fetcher *fetcher.HTTPFetcher
	sites   *sites.Sites
	store   storage.Store
}

// Option configures a Client.
type Option func(*options)

type options struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *mongo.Database
	store  storage.Store
}

// WithConfig replaces the default configuration. Later options still apply
// on top of it.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.Fetcher.RequestTimeout = d }
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.cfg.Fetcher.UserAgent = ua }
}

// WithProxy enables a static proxy pool, which takes precedence over
// http_proxy/https_proxy.
func WithProxy(urls ...string) Option {
	return func(o *options) {
		o.cfg.Proxy.Enabled = true
		o.cfg.Proxy.URLs = urls
	}
}

// WithSiteURL points a built-in backend at another base URL, such as a
// mirror or a test server. Unknown names are ignored.
func WithSiteURL(site, baseURL string) Option {
	return func(o *options) {
		switch site {
		case "facebook":
			o.cfg.Sites.FacebookURL = baseURL
		case "leboncoin":
			o.cfg.Sites.LeboncoinURL = baseURL
		case "instagram":
			o.cfg.Sites.InstagramURL = baseURL
		case "youtube":
			o.cfg.Sites.YoutubeURL = baseURL
		}
	}
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(o *options) { o.cfg.Logging.Level = "debug" }
}

// WithMongo stores custom site definitions and cached aggregates in db.
// The caller owns the underlying client.
func WithMongo(db *mongo.Database) Option {
	return func(o *options) { o.db = db }
}

// WithStore sets any storage.Store implementation. It wins over WithMongo.
func WithStore(store storage.Store) Option {
	return func(o *options) { o.store = store }
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	o := &options{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		level := slog.LevelInfo
		if o.cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	metrics := observability.NewMetrics(logger)
	cache := parser.NewSelectorCache()
	metrics.TrackCache(func() (int64, int64) {
		s := cache.Stats()
		return s.Hits, s.Misses
	})

	httpFetcher := fetcher.NewHTTPFetcher(o.cfg, metrics, logger)

	store := o.store
	if store == nil && o.db != nil {
		store = storage.NewMongoStore(o.db, metrics, logger)
	}

	return &Client{
		metrics: metrics,
		fetcher: httpFetcher,
		store:   store,
		sites: sites.NewDefault(&o.cfg.Sites, sites.Deps{
			Fetcher: httpFetcher,
			Cache:   cache,
			Dates:   parser.NewDateNormalizer(),
			Metrics: metrics,
			Logger:  logger,
		}),
	}
}

// Find reports which site owns input and the id within that site.
func (c *Client) Find(input string) (site, id string, ok bool) {
	return c.sites.Find(input)
}

// User fetches the aggregate id from the named site.
func (c *Client) User(ctx context.Context, site, id string) (*Aggregate, error) {
	return c.sites.User(ctx, c.store, site, id)
}

// Fetch finds the site owning input and fetches its aggregate.
func (c *Client) Fetch(ctx context.Context, input string) (*Aggregate, error) {
	site, id, ok := c.sites.Find(input)
	if !ok {
		return nil, fmt.Errorf("%w for %q: %w", ErrUnknownSite, input, ErrNotFound)
	}
	return c.User(ctx, site, id)
}

// Preview runs a custom site definition without saving it.
func (c *Client) Preview(ctx context.Context, def *SiteDefinition) (*Aggregate, error) {
	return c.sites.Preview(ctx, def)
}

// SaveSite stores a custom site definition, making "custom:<id>" fetchable.
func (c *Client) SaveSite(ctx context.Context, def *SiteDefinition) error {
	if c.store == nil {
		return types.ErrNoSiteStore
	}
	return c.store.SaveSite(ctx, def)
}

// Save caches an aggregate fetched from site.
func (c *Client) Save(ctx context.Context, site string, a *Aggregate) error {
	if c.store == nil {
		return types.ErrNoSiteStore
	}
	return c.store.SaveUser(ctx, site, a)
}

// Sites lists the registered backends in lookup order.
func (c *Client) Sites() []string {
	return c.sites.Names()
}

// Registry exposes the underlying registry, for serving it over HTTP.
func (c *Client) Registry() *sites.Sites {
	return c.sites
}

// Store returns the configured store, or nil.
func (c *Client) Store() storage.Store {
	return c.store
}

// Stats returns fetch and extraction counters.
func (c *Client) Stats() map[string]int64 {
	return c.metrics.Snapshot()
}

// LogSummary logs the counters at Info level.
func (c *Client) LogSummary() {
	c.metrics.LogSummary()
}

// Close releases idle connections. It does not disconnect a Mongo client
// passed through WithMongo.
func (c *Client) Close() error {
	return c.fetcher.Close()
}
