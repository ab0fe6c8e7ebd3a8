package monitor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// --- Scheduled Re-Fetching ---

// Schedule re-fetches one aggregate at a fixed interval.
type Schedule struct {
	Site     string        `json:"site"`
	ID       string        `json:"id"`
	Interval time.Duration `json:"interval"`
}

// FetchFunc fetches the aggregate id from site.
type FetchFunc func(ctx context.Context, site, id string) (*types.Aggregate, error)

// Scheduler runs schedules and feeds the results through a ChangeDetector.
type Scheduler struct {
	schedules []*Schedule
	detector  *ChangeDetector
	notifier  *Notifier
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewScheduler creates a new scheduler.
func NewScheduler(detector *ChangeDetector, notifier *Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		detector: detector,
		notifier: notifier,
		logger:   logger.With("component", "watch_scheduler"),
	}
}

// Add adds a schedule.
func (s *Scheduler) Add(sched *Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, sched)
	s.logger.Info("schedule added", "site", sched.Site, "id", sched.ID, "interval", sched.Interval)
}

// Run executes every schedule once immediately and then on its interval.
// It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, fetch FetchFunc) {
	s.mu.Lock()
	schedules := append([]*Schedule(nil), s.schedules...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sched := range schedules {
		wg.Add(1)
		go func(sched *Schedule) {
			defer wg.Done()
			ticker := time.NewTicker(sched.Interval)
			defer ticker.Stop()

			s.runOnce(ctx, sched, fetch)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runOnce(ctx, sched, fetch)
				}
			}
		}(sched)
	}
	wg.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context, sched *Schedule, fetch FetchFunc) {
	user, err := fetch(ctx, sched.Site, sched.ID)
	if err != nil {
		s.logger.Error("scheduled fetch failed", "site", sched.Site, "id", sched.ID, "error", err)
		return
	}

	changes, err := s.detector.Detect(ctx, sched.Site, user)
	if err != nil {
		s.logger.Error("change detection failed", "site", sched.Site, "id", sched.ID, "error", err)
	}
	s.logger.Info("checked", "site", sched.Site, "id", sched.ID, "posts", user.Len(), "changes", len(changes))
	s.notifier.Notify(ctx, changes)
}

// --- Notification System ---

// NotificationChannel delivers a batch of changes.
type NotificationChannel interface {
	Send(ctx context.Context, changes []Change) error
	Type() string
}

// Notifier sends changes to every registered channel.
type Notifier struct {
	channels []NotificationChannel
	logger   *slog.Logger
}

// NewNotifier creates a new change notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger.With("component", "notifier"),
	}
}

// AddChannel registers a notification channel.
func (n *Notifier) AddChannel(ch NotificationChannel) {
	n.channels = append(n.channels, ch)
}

// Notify sends changes to all registered channels. Empty batches are
// dropped.
func (n *Notifier) Notify(ctx context.Context, changes []Change) {
	if len(changes) == 0 {
		return
	}
	for _, ch := range n.channels {
		if err := ch.Send(ctx, changes); err != nil {
			n.logger.Error("notification failed", "channel", ch.Type(), "error", err)
		}
	}
}

// WriterChannel writes each change as one JSON line.
type WriterChannel struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterChannel creates a channel writing to w.
func NewWriterChannel(w io.Writer) *WriterChannel {
	return &WriterChannel{w: w}
}

func (c *WriterChannel) Type() string { return "writer" }

func (c *WriterChannel) Send(_ context.Context, changes []Change) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	enc := json.NewEncoder(c.w)
	for _, ch := range changes {
		if err := enc.Encode(ch); err != nil {
			return err
		}
	}
	return nil
}

// WebhookChannel POSTs each batch as JSON to a URL.
type WebhookChannel struct {
	URL     string
	Fetcher fetcher.Fetcher
}

func (c *WebhookChannel) Type() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, changes []Change) error {
	return fetcher.PostJSON(ctx, c.Fetcher, c.URL, map[string]any{
		"changes": changes,
		"count":   len(changes),
	}, nil)
}
