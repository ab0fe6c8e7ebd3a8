package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// MemoryStore is a process-local Store, used when no database is
// configured.
type MemoryStore struct {
	mu    sync.RWMutex
	sites map[string]*types.SiteDefinition
	users map[string]*types.CachedAggregate
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sites: make(map[string]*types.SiteDefinition),
		users: make(map[string]*types.CachedAggregate),
	}
}

func (s *MemoryStore) Site(_ context.Context, id string) (*types.SiteDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.sites[id]
	if !ok {
		return nil, fmt.Errorf("site %q: %w", id, types.ErrNotFound)
	}
	return def, nil
}

func (s *MemoryStore) SaveSite(_ context.Context, def *types.SiteDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[def.ID] = def
	return nil
}

func (s *MemoryStore) SaveUser(_ context.Context, site string, user *types.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[site+"/"+user.ID] = &types.CachedAggregate{
		Site:      site,
		Aggregate: user,
		FetchedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) CachedUser(_ context.Context, site, id string) (*types.CachedAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.users[site+"/"+id]
	if !ok {
		return nil, fmt.Errorf("cached user %s/%s: %w", site, id, types.ErrNotFound)
	}
	return c, nil
}
