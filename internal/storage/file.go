package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// --- JSON Exporter ---

// JSONExporter buffers aggregates and writes them on Close: a single
// aggregate as an object, several as an array.
type JSONExporter struct {
	w          io.WriteCloser
	aggregates []*types.Aggregate
	mu         sync.Mutex
	logger     *slog.Logger
}

// NewJSONExporter creates a JSON exporter writing to w.
func NewJSONExporter(w io.WriteCloser, logger *slog.Logger) *JSONExporter {
	return &JSONExporter{
		w:      w,
		logger: logger.With("component", "json_exporter"),
	}
}

func (e *JSONExporter) Name() string { return "json" }

func (e *JSONExporter) Export(site string, a *types.Aggregate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aggregates = append(e.aggregates, a)
	return nil
}

func (e *JSONExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.w.Close()

	var output any = e.aggregates
	if len(e.aggregates) == 1 {
		output = e.aggregates[0]
	}

	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return &types.StorageError{Backend: "json", Err: fmt.Errorf("encode JSON: %w", err)}
	}

	e.logger.Debug("JSON written", "aggregates", len(e.aggregates))
	return nil
}

// --- JSONL Exporter ---

// jsonlRecord is one line of JSONL output: a post tagged with its aggregate.
type jsonlRecord struct {
	Site        string `json:"_site"`
	AggregateID string `json:"_aggregate_id"`
	types.Post
}

// JSONLExporter streams one post per line.
type JSONLExporter struct {
	w      io.WriteCloser
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLExporter creates a streaming JSONL exporter.
func NewJSONLExporter(w io.WriteCloser, logger *slog.Logger) *JSONLExporter {
	return &JSONLExporter{
		w:      w,
		enc:    json.NewEncoder(w),
		logger: logger.With("component", "jsonl_exporter"),
	}
}

func (e *JSONLExporter) Name() string { return "jsonl" }

func (e *JSONLExporter) Export(site string, a *types.Aggregate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range a.Posts {
		if err := e.enc.Encode(jsonlRecord{Site: site, AggregateID: a.ID, Post: p}); err != nil {
			return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		e.count++
	}
	return nil
}

func (e *JSONLExporter) Close() error {
	e.logger.Debug("JSONL written", "posts", e.count)
	return e.w.Close()
}

// --- CSV Exporter ---

// CSVExporter writes posts as CSV rows under a fixed header.
type CSVExporter struct {
	w       io.WriteCloser
	writer  *csv.Writer
	started bool
	mu      sync.Mutex
	count   int
	logger  *slog.Logger
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(w io.WriteCloser, logger *slog.Logger) *CSVExporter {
	return &CSVExporter{
		w:      w,
		writer: csv.NewWriter(w),
		logger: logger.With("component", "csv_exporter"),
	}
}

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Export(site string, a *types.Aggregate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		if err := e.writer.Write(types.PostColumns); err != nil {
			return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write CSV header: %w", err)}
		}
		e.started = true
	}

	for _, row := range a.ToFlatRows() {
		if err := e.writer.Write(row); err != nil {
			return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write CSV row: %w", err)}
		}
		e.count++
	}
	return nil
}

func (e *CSVExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		e.w.Close()
		return &types.StorageError{Backend: "csv", Err: err}
	}
	e.logger.Debug("CSV written", "rows", e.count)
	return e.w.Close()
}
