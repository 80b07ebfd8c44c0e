package storage

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bina-refinery/logbook/internal/models"
)

// ValueColumn is the header of the numeric value column in every schema.
const ValueColumn = "Value"

// Schema is the fixed column layout of the log for one variant.
type Schema struct {
	variant models.Variant
	columns []string
}

// SchemaFor returns the column layout of variant. The area log carries a
// Status column; the equipment log does not.
func SchemaFor(variant models.Variant) Schema {
	if variant == models.VariantEquipment {
		return Schema{variant: variant, columns: []string{"Equipment", "Parameter", ValueColumn, "Unit", "Timestamp"}}
	}
	return Schema{variant: models.VariantArea, columns: []string{"Area", "Parameter", ValueColumn, "Unit", "Timestamp", "Status"}}
}

// Variant returns the variant the schema belongs to.
func (s Schema) Variant() models.Variant { return s.variant }

// Columns returns a copy of the header row.
func (s Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// HasStatus reports whether the schema persists the range status.
func (s Schema) HasStatus() bool {
	return len(s.columns) == 6
}

// CheckHeader verifies that header matches the schema exactly.
func (s Schema) CheckHeader(header []string) error {
	if len(header) != len(s.columns) {
		return fmt.Errorf("header has %d columns, want %d (%v)", len(header), len(s.columns), s.columns)
	}
	for i, col := range s.columns {
		if header[i] != col {
			return fmt.Errorf("header column %d is %q, want %q", i+1, header[i], col)
		}
	}
	return nil
}

// Row renders r as one table row.
func (s Schema) Row(r models.Reading) []string {
	row := []string{
		r.Location,
		r.Parameter,
		strconv.FormatFloat(r.Value, 'f', -1, 64),
		r.Unit,
		r.FormattedTimestamp(),
	}
	if s.HasStatus() {
		row = append(row, string(r.Status))
	}
	return row
}

// Parse converts a stored row back into a Reading. Missing trailing cells
// are read as empty, since spreadsheet readers drop them.
func (s Schema) Parse(row []string) (models.Reading, error) {
	if len(row) > len(s.columns) {
		return models.Reading{}, fmt.Errorf("row has %d cells, want at most %d", len(row), len(s.columns))
	}
	cells := make([]string, len(s.columns))
	copy(cells, row)

	value, err := strconv.ParseFloat(cells[2], 64)
	if err != nil {
		return models.Reading{}, fmt.Errorf("invalid %s %q: %w", ValueColumn, cells[2], err)
	}
	ts, err := time.ParseInLocation(models.TimestampLayout, cells[4], time.Local)
	if err != nil {
		return models.Reading{}, fmt.Errorf("invalid Timestamp %q: %w", cells[4], err)
	}

	r := models.Reading{
		Location:  cells[0],
		Parameter: cells[1],
		Value:     value,
		Unit:      cells[3],
		Timestamp: ts,
	}
	if s.HasStatus() {
		switch st := models.Status(cells[5]); st {
		case "", models.StatusNormal, models.StatusBelowRange, models.StatusAboveRange:
			r.Status = st
		default:
			return models.Reading{}, fmt.Errorf("invalid Status %q", cells[5])
		}
	}
	return r, nil
}
