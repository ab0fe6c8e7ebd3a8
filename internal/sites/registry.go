package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/observability"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// Previewer runs a site definition that is not in the store.
type Previewer interface {
	Preview(ctx context.Context, def *types.SiteDefinition) (*types.Aggregate, error)
}

// Sites owns one backend per name. It is populated at startup and only read
// afterwards, so lookups take no lock.
type Sites struct {
	sites   map[string]Site
	order   []string // registration order, used by Find
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates an empty registry.
func New(metrics *observability.Metrics, logger *slog.Logger) *Sites {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Sites{
		sites:   make(map[string]Site),
		metrics: metrics,
		logger:  logger.With("component", "sites"),
	}
}

// NewDefault registers the built-in backends in their fixed order:
// facebook, leboncoin, instagram, youtube, custom.
func NewDefault(cfg *config.SitesConfig, deps Deps) *Sites {
	deps = deps.withDefaults()
	s := New(deps.Metrics, deps.Logger)

	for _, site := range []Site{
		NewFacebook(deps, cfg.FacebookURL),
		NewLeboncoin(deps, cfg.LeboncoinURL),
		NewInstagram(deps, cfg.InstagramURL),
		NewYoutube(deps, cfg.YoutubeURL),
		NewCustom(deps),
	} {
		// Names are distinct literals.
		_ = s.Register(site)
	}
	return s
}

// Register adds a backend. Names must be unique.
func (s *Sites) Register(site Site) error {
	name := site.Name()
	if _, exists := s.sites[name]; exists {
		return fmt.Errorf("site %q already registered", name)
	}
	s.sites[name] = site
	s.order = append(s.order, name)
	s.logger.Debug("site registered", "name", name)
	return nil
}

// Find asks each backend in registration order whether it owns input. The
// first to claim it wins, even if a later backend would also match.
func (s *Sites) Find(input string) (name, id string, ok bool) {
	for _, n := range s.order {
		if siteID, owned := s.sites[n].ID(input); owned {
			return n, siteID, true
		}
	}
	return "", "", false
}

// User delegates to the named backend. An unregistered name yields an
// error matching both types.ErrUnknownSite and types.ErrNotFound.
func (s *Sites) User(ctx context.Context, store storage.Store, name, id string) (*types.Aggregate, error) {
	site, ok := s.sites[name]
	if !ok {
		return nil, fmt.Errorf("%w %q: %w", types.ErrUnknownSite, name, types.ErrNotFound)
	}

	user, err := site.User(ctx, store, id)
	if err != nil {
		s.recordFailure(name, id, err)
		return nil, err
	}

	s.metrics.AggregatesFetched.Add(1)
	s.logger.Info("aggregate fetched", "site", name, "id", id, "posts", user.Len())
	return user, nil
}

// Preview runs def through the custom backend.
func (s *Sites) Preview(ctx context.Context, def *types.SiteDefinition) (*types.Aggregate, error) {
	for _, name := range s.order {
		if p, ok := s.sites[name].(Previewer); ok {
			user, err := p.Preview(ctx, def)
			if err != nil {
				s.recordFailure(name, def.ID, err)
				return nil, err
			}
			return user, nil
		}
	}
	return nil, fmt.Errorf("preview: %w", types.ErrUnknownSite)
}

// Names lists backends in registration order.
func (s *Sites) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Metrics returns the counters shared with the backends.
func (s *Sites) Metrics() *observability.Metrics {
	return s.metrics
}

func (s *Sites) recordFailure(name, id string, err error) {
	s.metrics.AggregatesFailed.Add(1)

	var pErr *types.ParseError
	if errors.As(err, &pErr) {
		s.metrics.ParseErrors.Add(1)
	}
	s.logger.Warn("aggregate fetch failed", "site", name, "id", id, "error", err)
}
