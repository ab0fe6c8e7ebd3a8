package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// Middleware processes a post and returns the (possibly modified) post.
// Return nil to drop the post from the aggregate.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a post. Return nil to drop it.
	Process(post *types.Post) (*types.Post, error)
}

// resetter is implemented by middleware holding per-aggregate state.
type resetter interface {
	Reset()
}

// Pipeline chains middleware processors together. It is applied to whole
// aggregates after extraction and is not safe for concurrent Apply calls.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the post through all middleware in order.
func (p *Pipeline) Process(post *types.Post) (*types.Post, error) {
	current := post

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %s: post %s: %w", mw.Name(), current.ID, err)
		}
		if result == nil {
			p.logger.Debug("post dropped", "stage", mw.Name(), "id", post.ID)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Apply returns a copy of a with every post run through the pipeline. a is
// not modified.
func (p *Pipeline) Apply(a *types.Aggregate) (*types.Aggregate, error) {
	for _, mw := range p.middlewares {
		if r, ok := mw.(resetter); ok {
			r.Reset()
		}
	}

	out := *a
	out.Posts = make([]types.Post, 0, len(a.Posts))
	for _, post := range a.Posts {
		result, err := p.Process(&post)
		if err != nil {
			return nil, err
		}
		if result != nil {
			out.Posts = append(out.Posts, *result)
		}
	}
	return &out, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware trims whitespace from the text fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(post *types.Post) (*types.Post, error) {
	post.Name = strings.TrimSpace(post.Name)
	post.Message = strings.TrimSpace(post.Message)
	return post, nil
}

// DedupMiddleware drops posts whose id was already seen in the same
// aggregate.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]struct{})}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.seen)
}

func (m *DedupMiddleware) Process(post *types.Post) (*types.Post, error) {
	key := post.ID
	if key == "" {
		key = post.URL // Fallback to URL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return post, nil
}
