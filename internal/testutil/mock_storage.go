// mock_storage.go - In-memory doubles for the storage and publish layers
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bina-refinery/logbook/internal/models"
)

// MemoryTable implements storage.Table in memory.
type MemoryTable struct {
	mu     sync.RWMutex
	rows   [][]string
	exists bool
	writes int

	FailErr error // returned by Write when set
}

// NewMemoryTable creates an absent table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{}
}

func (m *MemoryTable) Exists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exists, nil
}

func (m *MemoryTable) Read(ctx context.Context) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.exists {
		return nil, fmt.Errorf("memory table: %w", os.ErrNotExist)
	}
	return cloneRows(m.rows), nil
}

func (m *MemoryTable) Write(ctx context.Context, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailErr != nil {
		return m.FailErr
	}
	m.rows = cloneRows(rows)
	m.exists = true
	m.writes++
	return nil
}

func (m *MemoryTable) Close() error { return nil }

// Rows returns a copy of the stored rows, header included.
func (m *MemoryTable) Rows() [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRows(m.rows)
}

// Writes returns how many times Write succeeded.
func (m *MemoryTable) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// ErrPublishFailed is a canned publish failure.
var ErrPublishFailed = errors.New("broker unavailable")

// RecordingPublisher implements reading.Publisher and keeps what it was given.
type RecordingPublisher struct {
	mu       sync.Mutex
	readings []models.Reading
	Fail     bool
}

func (p *RecordingPublisher) Publish(ctx context.Context, r models.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail {
		return ErrPublishFailed
	}
	p.readings = append(p.readings, r)
	return nil
}

// Published returns the readings published so far.
func (p *RecordingPublisher) Published() []models.Reading {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Reading(nil), p.readings...)
}
