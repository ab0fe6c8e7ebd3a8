package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// ChangeType identifies what kind of change occurred.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is one difference between the cached and the fresh timeline.
type Change struct {
	Site        string     `json:"site"`
	AggregateID string     `json:"aggregate_id"`
	PostID      string     `json:"post_id"`
	Type        ChangeType `json:"type"`
	Field       string     `json:"field,omitempty"`
	OldValue    string     `json:"old_value,omitempty"`
	NewValue    string     `json:"new_value,omitempty"`
	URL         string     `json:"url,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ChangeDetector compares fetched aggregates against the copy cached in a
// store and replaces the cached copy afterwards.
type ChangeDetector struct {
	store  storage.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewChangeDetector creates a new change detector.
func NewChangeDetector(store storage.Store, logger *slog.Logger) *ChangeDetector {
	return &ChangeDetector{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "change_detector"),
	}
}

// Detect diffs fresh against the cached aggregate for site. On the first
// sight of an aggregate every post is reported as added.
func (cd *ChangeDetector) Detect(ctx context.Context, site string, fresh *types.Aggregate) ([]Change, error) {
	var old []types.Post
	cached, err := cd.store.CachedUser(ctx, site, fresh.ID)
	switch {
	case err == nil:
		old = cached.Aggregate.Posts
	case errors.Is(err, types.ErrNotFound):
		cd.logger.Debug("no cached copy", "site", site, "id", fresh.ID)
	default:
		return nil, fmt.Errorf("load cached %s/%s: %w", site, fresh.ID, err)
	}

	changes := diffPosts(old, fresh.Posts)
	ts := cd.now()
	for i := range changes {
		changes[i].Site = site
		changes[i].AggregateID = fresh.ID
		changes[i].Timestamp = ts
	}

	if err := cd.store.SaveUser(ctx, site, fresh); err != nil {
		return changes, fmt.Errorf("cache %s/%s: %w", site, fresh.ID, err)
	}
	return changes, nil
}

// diffPosts matches posts by id. Added and modified posts follow the fresh
// order; removed posts follow the old order.
func diffPosts(old, fresh []types.Post) []Change {
	byID := make(map[string]types.Post, len(old))
	for _, p := range old {
		byID[p.ID] = p
	}

	var changes []Change
	seen := make(map[string]bool, len(fresh))
	for _, p := range fresh {
		seen[p.ID] = true
		prev, ok := byID[p.ID]
		if !ok {
			changes = append(changes, Change{PostID: p.ID, Type: ChangeAdded, NewValue: truncateStr(p.Name, 200), URL: p.URL})
			continue
		}
		for _, f := range []struct{ name, before, after string }{
			{"name", prev.Name, p.Name},
			{"message", prev.Message, p.Message},
			{"url", prev.URL, p.URL},
			{"created_time", prev.CreatedTime, p.CreatedTime},
		} {
			if f.before != f.after {
				changes = append(changes, Change{
					PostID:   p.ID,
					Type:     ChangeModified,
					Field:    f.name,
					OldValue: truncateStr(f.before, 200),
					NewValue: truncateStr(f.after, 200),
					URL:      p.URL,
				})
			}
		}
	}

	for _, p := range old {
		if !seen[p.ID] {
			changes = append(changes, Change{PostID: p.ID, Type: ChangeRemoved, OldValue: truncateStr(p.Name, 200), URL: p.URL})
		}
	}
	return changes
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
