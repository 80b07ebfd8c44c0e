package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSXTable keeps the log in the first worksheet of an .xlsx workbook, the
// format operators open in a spreadsheet.
type XLSXTable struct {
	path    string
	numeric map[string]bool
}

// NewXLSXTable returns a table at path. Cells under the named header
// columns are written as numbers when they parse as one.
func NewXLSXTable(path string, numericColumns ...string) *XLSXTable {
	numeric := make(map[string]bool, len(numericColumns))
	for _, c := range numericColumns {
		numeric[c] = true
	}
	return &XLSXTable{path: path, numeric: numeric}
}

func (t *XLSXTable) Exists(ctx context.Context) (bool, error) {
	return fileExists(t.path)
}

func (t *XLSXTable) Read(ctx context.Context) ([][]string, error) {
	if ok, err := fileExists(t.path); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%s: %w", t.path, os.ErrNotExist)
	}

	f, err := excelize.OpenFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", t.path)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func (t *XLSXTable) Write(ctx context.Context, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	var numericIdx []bool
	for i, row := range rows {
		if i == 0 {
			numericIdx = make([]bool, len(row))
			for j, col := range row {
				numericIdx[j] = t.numeric[col]
			}
		}
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = cell
			if i > 0 && j < len(numericIdx) && numericIdx[j] {
				if v, err := strconv.ParseFloat(cell, 64); err == nil {
					values[j] = v
				}
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	return writeFileAtomic(t.path, func(w io.Writer) error {
		if err := f.Write(w); err != nil {
			return fmt.Errorf("encoding workbook: %w", err)
		}
		return nil
	})
}

func (t *XLSXTable) Close() error { return nil }
