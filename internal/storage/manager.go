// Package storage persists logbook readings to a tabular backing file.
//
// Every mutation reads the whole table, changes it in memory and writes it
// back. LogStore serialises those cycles within one process; separate
// processes sharing a file are last-writer-wins.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bina-refinery/logbook/internal/models"
	"github.com/bina-refinery/logbook/internal/observe"
)

// ErrStoreEmpty is returned by RemoveLast and ExportCSV when the log has no
// rows or does not exist yet.
var ErrStoreEmpty = errors.New("log is empty")

// IOError reports an unexpected failure reading or writing the backing table.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Store defines the operations on the readings log.
type Store interface {
	EnsureInitialized(ctx context.Context) error
	Append(ctx context.Context, r models.Reading) error
	ReadAll(ctx context.Context) ([]models.Reading, error)
	RemoveLast(ctx context.Context) (models.Reading, error)
	ExportCSV(ctx context.Context) ([]byte, error)
	Schema() Schema
}

// LogStore implements Store over a Table.
type LogStore struct {
	mu      sync.Mutex
	table   Table
	schema  Schema
	metrics *observe.Metrics
	logger  *slog.Logger
}

// Option configures a LogStore.
type Option func(*LogStore)

// WithMetrics records operation latency into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *LogStore) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *LogStore) { s.logger = l }
}

// NewLogStore creates a LogStore writing schema rows into table.
func NewLogStore(table Table, schema Schema, opts ...Option) *LogStore {
	s := &LogStore{table: table, schema: schema, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schema returns the column layout of the log.
func (s *LogStore) Schema() Schema { return s.schema }

// EnsureInitialized creates the table with only the header row when it does
// not exist. An existing table is left untouched.
func (s *LogStore) EnsureInitialized(ctx context.Context) (err error) {
	defer s.observe(ctx, "ensure_initialized", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.table.Exists(ctx)
	if err != nil {
		return &IOError{Op: "ensure_initialized", Err: err}
	}
	if ok {
		if _, err := s.load(ctx); err != nil {
			return &IOError{Op: "ensure_initialized", Err: err}
		}
		return nil
	}
	if err := s.table.Write(ctx, [][]string{s.schema.Columns()}); err != nil {
		return &IOError{Op: "ensure_initialized", Err: err}
	}
	s.logger.Info("created log", "columns", s.schema.Columns())
	return nil
}

// Append adds r as the last row. It performs no validation; range gating is
// the caller's decision.
func (s *LogStore) Append(ctx context.Context, r models.Reading) (err error) {
	defer s.observe(ctx, "append", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(ctx)
	if err != nil {
		return &IOError{Op: "append", Err: err}
	}
	rows = append(rows, s.schema.Row(r))
	if err := s.table.Write(ctx, rows); err != nil {
		return &IOError{Op: "append", Err: err}
	}
	return nil
}

// ReadAll returns every reading in stored order. A missing table yields an
// empty slice.
func (s *LogStore) ReadAll(ctx context.Context) (_ []models.Reading, err error) {
	defer s.observe(ctx, "read_all", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.readings(ctx)
	if err != nil {
		return nil, &IOError{Op: "read_all", Err: err}
	}
	return readings, nil
}

// RemoveLast drops the final row and returns it. It returns ErrStoreEmpty,
// leaving the table as it was, when there is nothing to remove.
func (s *LogStore) RemoveLast(ctx context.Context) (_ models.Reading, err error) {
	defer s.observe(ctx, "remove_last", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(ctx)
	if err != nil {
		return models.Reading{}, &IOError{Op: "remove_last", Err: err}
	}
	if len(rows) <= 1 {
		return models.Reading{}, ErrStoreEmpty
	}

	last, err := s.schema.Parse(rows[len(rows)-1])
	if err != nil {
		return models.Reading{}, &IOError{Op: "remove_last", Err: fmt.Errorf("row %d: %w", len(rows)-1, err)}
	}
	if err := s.table.Write(ctx, rows[:len(rows)-1]); err != nil {
		return models.Reading{}, &IOError{Op: "remove_last", Err: err}
	}
	return last, nil
}

// ExportCSV renders the log as CSV with a header row.
func (s *LogStore) ExportCSV(ctx context.Context) (_ []byte, err error) {
	defer s.observe(ctx, "export_csv", time.Now(), &err)
	s.mu.Lock()
	readings, err := s.readings(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, &IOError{Op: "export_csv", Err: err}
	}
	if len(readings) == 0 {
		return nil, ErrStoreEmpty
	}
	data, err := EncodeCSV(s.schema, readings)
	if err != nil {
		return nil, &IOError{Op: "export_csv", Err: err}
	}
	return data, nil
}

// Close releases the backing table.
func (s *LogStore) Close() error {
	return s.table.Close()
}

// load returns the raw rows, header first. A missing table is returned as a
// bare header.
func (s *LogStore) load(ctx context.Context) ([][]string, error) {
	rows, err := s.table.Read(ctx)
	if errors.Is(err, os.ErrNotExist) {
		return [][]string{s.schema.Columns()}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return [][]string{s.schema.Columns()}, nil
	}
	if err := s.schema.CheckHeader(rows[0]); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LogStore) readings(ctx context.Context) ([]models.Reading, error) {
	rows, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Reading, 0, len(rows)-1)
	for i, row := range rows[1:] {
		r, err := s.schema.Parse(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *LogStore) observe(ctx context.Context, op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, ErrStoreEmpty) {
		err = nil
	}
	s.metrics.RecordStoreOp(ctx, op, time.Since(start), err)
	if err != nil {
		s.logger.Error("store operation failed", "op", op, "error", err)
	}
}
