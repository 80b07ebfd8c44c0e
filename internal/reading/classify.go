package reading

import "github.com/bina-refinery/logbook/internal/models"

// Classify places value against the inclusive range [min, max].
func Classify(value, min, max float64) models.Status {
	switch {
	case value < min:
		return models.StatusBelowRange
	case value > max:
		return models.StatusAboveRange
	default:
		return models.StatusNormal
	}
}
