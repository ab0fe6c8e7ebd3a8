// Package sites holds the site backends and the registry that routes an
// input string to the backend that understands it.
package sites

import (
	"context"
	"io"
	"log/slog"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/observability"
	"github.com/IshaanNene/feedstalk/internal/parser"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// Site is one backend.
type Site interface {
	// Name is the stable registry key, e.g. "facebook".
	Name() string

	// ID reports whether the backend owns input and, if so, returns the
	// site-scoped id. It must not have side effects.
	ID(input string) (string, bool)

	// User fetches and assembles the aggregate for id. store is the
	// caller's persistence handle and may be nil for backends that do not
	// need it.
	User(ctx context.Context, store storage.Store, id string) (*types.Aggregate, error)
}

// Deps are the collaborators shared by every backend.
type Deps struct {
	Fetcher fetcher.Fetcher
	Cache   *parser.SelectorCache
	Dates   *parser.DateNormalizer
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// withDefaults fills nil collaborators other than the fetcher.
func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Cache == nil {
		d.Cache = parser.NewSelectorCache()
	}
	if d.Dates == nil {
		d.Dates = parser.NewDateNormalizer()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics(d.Logger)
	}
	return d
}
