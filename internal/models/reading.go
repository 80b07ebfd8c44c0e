// Package models contains domain types for the refinery operations logbook.
package models

import "time"

// TimestampLayout is the fixed layout of the Timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// Status is the range classification of a reading.
type Status string

const (
	StatusNormal     Status = "Normal"
	StatusBelowRange Status = "Below Range"
	StatusAboveRange Status = "Above Range"
)

// Variant selects the location kind, interaction flow and log schema.
type Variant string

const (
	// VariantArea logs per plant area through a two-step wizard.
	VariantArea Variant = "area"
	// VariantEquipment logs per equipment item with both selectors visible.
	VariantEquipment Variant = "equipment"
)

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	return v == VariantArea || v == VariantEquipment
}

// LocationLabel is the column and UI label for the location kind.
func (v Variant) LocationLabel() string {
	if v == VariantEquipment {
		return "Equipment"
	}
	return "Area"
}

// Reading is one logged observation. Status is empty when the parameter
// declares no range.
type Reading struct {
	Location  string    `json:"location" msgpack:"location"`
	Parameter string    `json:"parameter" msgpack:"parameter"`
	Value     float64   `json:"value" msgpack:"value"`
	Unit      string    `json:"unit" msgpack:"unit"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Status    Status    `json:"status,omitempty" msgpack:"status,omitempty"`
}

// FormattedTimestamp renders the timestamp in the log's fixed layout.
func (r Reading) FormattedTimestamp() string {
	return r.Timestamp.Format(TimestampLayout)
}
