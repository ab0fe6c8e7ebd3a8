package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// Store is the persistence collaborator handed to site backends. The caller
// owns the underlying connection; a Store never opens or closes it.
type Store interface {
	// Site loads a custom site definition by id.
	Site(ctx context.Context, id string) (*types.SiteDefinition, error)

	// SaveSite creates or replaces a site definition.
	SaveSite(ctx context.Context, def *types.SiteDefinition) error

	// SaveUser caches an aggregate fetched from the named site.
	SaveUser(ctx context.Context, site string, user *types.Aggregate) error

	// CachedUser returns the last cached aggregate for site/id.
	CachedUser(ctx context.Context, site, id string) (*types.CachedAggregate, error)
}

// Exporter writes aggregates to an output sink.
type Exporter interface {
	// Export writes one aggregate fetched from site.
	Export(site string, a *types.Aggregate) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the exporter identifier.
	Name() string
}

// OpenExporter creates a file exporter for format ("json", "jsonl" or "csv").
// A path of "-" or "" writes to stdout.
func OpenExporter(format, path string, logger *slog.Logger) (Exporter, error) {
	w, err := openOutput(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case "json":
		return NewJSONExporter(w, logger), nil
	case "jsonl":
		return NewJSONLExporter(w, logger), nil
	case "csv":
		return NewCSVExporter(w, logger), nil
	default:
		w.Close()
		return nil, &types.StorageError{Backend: format, Err: fmt.Errorf("unsupported export format %q", format)}
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("create output dir: %w", err)}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("create output file: %w", err)}
	}
	return f, nil
}

// --- Multi-Exporter Fan-Out ---

// MultiExporter writes aggregates to several exporters.
type MultiExporter struct {
	backends []Exporter
	logger   *slog.Logger
}

// NewMultiExporter creates an exporter that fans out to multiple backends.
func NewMultiExporter(backends []Exporter, logger *slog.Logger) *MultiExporter {
	return &MultiExporter{
		backends: backends,
		logger:   logger.With("component", "multi_exporter"),
	}
}

func (m *MultiExporter) Name() string { return "multi" }

func (m *MultiExporter) Export(site string, a *types.Aggregate) error {
	var firstErr error
	for _, backend := range m.backends {
		if err := backend.Export(site, a); err != nil {
			m.logger.Error("export failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *MultiExporter) Close() error {
	var firstErr error
	for _, backend := range m.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
