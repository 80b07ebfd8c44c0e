package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/bina-refinery/logbook/internal/models"
)

// CSVTable keeps the log as a plain CSV file.
type CSVTable struct {
	path string
}

// NewCSVTable returns a table at path.
func NewCSVTable(path string) *CSVTable {
	return &CSVTable{path: path}
}

func (t *CSVTable) Exists(ctx context.Context) (bool, error) {
	return fileExists(t.path)
}

func (t *CSVTable) Read(ctx context.Context) ([][]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	return rows, nil
}

func (t *CSVTable) Write(ctx context.Context, rows [][]string) error {
	return writeFileAtomic(t.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		return nil
	})
}

func (t *CSVTable) Close() error { return nil }

// EncodeCSV renders readings as UTF-8, comma-delimited CSV with the
// schema's header row.
func EncodeCSV(schema Schema, readings []models.Reading) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema.Columns()); err != nil {
		return nil, err
	}
	for _, r := range readings {
		if err := w.Write(schema.Row(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
