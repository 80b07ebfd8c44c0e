package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Table is a tabular backing file. Rows include the header as row 0.
// Implementations do not interpret cell contents beyond the numeric
// Value column.
type Table interface {
	// Exists reports whether the backing file has been created.
	Exists(ctx context.Context) (bool, error)
	// Read returns every row in stored order. It returns an error wrapping
	// os.ErrNotExist when the backing file is absent.
	Read(ctx context.Context) ([][]string, error)
	// Write replaces the whole contents with rows.
	Write(ctx context.Context, rows [][]string) error
	// Close releases any handle held on the backing file.
	Close() error
}

// Backend names a Table implementation.
type Backend string

const (
	BackendXLSX   Backend = "xlsx"
	BackendCSV    Backend = "csv"
	BackendDuckDB Backend = "duckdb"
)

// ParseBackend validates a backend name from configuration.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendXLSX, BackendCSV, BackendDuckDB:
		return b, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q; valid values: xlsx, csv, duckdb", name)
	}
}

// OpenTable returns the Table for backend at path.
func OpenTable(backend Backend, path string) (Table, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	switch backend {
	case BackendXLSX:
		return NewXLSXTable(path, ValueColumn), nil
	case BackendCSV:
		return NewCSVTable(path), nil
	case BackendDuckDB:
		return NewDuckDBTable(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// writeFileAtomic streams into a temporary file beside path and renames it
// into place, so readers see either the old or the new contents.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", base, err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}
