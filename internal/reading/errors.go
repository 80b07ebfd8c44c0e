package reading

import (
	"fmt"
	"strconv"

	"github.com/bina-refinery/logbook/internal/models"
)

// SpeakHint is shown after a failed extraction.
const SpeakHint = "Try speaking the number clearly, for example: 'one hundred twenty three point five'"

// ExtractionError is returned when a transcript holds no numeric token.
type ExtractionError struct {
	Transcript string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract a numeric value from the voice input %q", e.Transcript)
}

// RangeViolationError is returned when range gating refuses a reading.
type RangeViolationError struct {
	Location  string        `json:"location"`
	Parameter string        `json:"parameter"`
	Value     float64       `json:"value"`
	Min       float64       `json:"min"`
	Max       float64       `json:"max"`
	Unit      string        `json:"unit"`
	Status    models.Status `json:"status"`
}

func (e *RangeViolationError) Error() string {
	return fmt.Sprintf("ALERT: %s value %s %s is %s! Must be between %s and %s %s",
		e.Parameter, formatNumber(e.Value), e.Unit, e.Status,
		formatNumber(e.Min), formatNumber(e.Max), e.Unit)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
