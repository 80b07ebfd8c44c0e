package session

import (
	"errors"
	"fmt"

	"github.com/bina-refinery/logbook/internal/models"
)

// ErrInvalidTransition is returned when an event is not allowed in the
// current step.
var ErrInvalidTransition = errors.New("invalid transition")

// Event drives the interaction flow.
type Event string

const (
	EventSelectLocation  Event = "select_location"
	EventSelectParameter Event = "select_parameter"
	EventNext            Event = "next"
	EventBack            Event = "back"
	EventCapture         Event = "capture"
	EventCaptured        Event = "captured"
)

// InitialStep is where a new session of variant starts. The direct flow has
// both selectors live at once, so it starts on the parameter step.
func InitialStep(variant models.Variant) models.Step {
	if variant == models.VariantEquipment {
		return models.StepSelectParameter
	}
	return models.StepSelectLocation
}

// Transition returns the step after event. Wizard sessions move between the
// location and parameter steps with next/back; direct sessions never leave
// the parameter step except to capture.
func Transition(variant models.Variant, current models.Step, event Event) (models.Step, error) {
	if variant == models.VariantEquipment {
		return directTransition(current, event)
	}
	return wizardTransition(current, event)
}

func wizardTransition(current models.Step, event Event) (models.Step, error) {
	switch current {
	case models.StepSelectLocation:
		switch event {
		case EventSelectLocation:
			return current, nil
		case EventNext:
			return models.StepSelectParameter, nil
		default:
			return current, invalidTransition(current, event)
		}
	case models.StepSelectParameter:
		switch event {
		case EventSelectParameter:
			return current, nil
		case EventBack:
			return models.StepSelectLocation, nil
		case EventCapture:
			return models.StepCaptureValue, nil
		default:
			return current, invalidTransition(current, event)
		}
	case models.StepCaptureValue:
		switch event {
		case EventCaptured:
			return models.StepSelectParameter, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown step %q", current)
	}
}

func directTransition(current models.Step, event Event) (models.Step, error) {
	switch current {
	case models.StepSelectParameter:
		switch event {
		case EventSelectLocation, EventSelectParameter:
			return current, nil
		case EventCapture:
			return models.StepCaptureValue, nil
		default:
			return current, invalidTransition(current, event)
		}
	case models.StepCaptureValue:
		switch event {
		case EventCaptured:
			return models.StepSelectParameter, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown step %q", current)
	}
}

func invalidTransition(step models.Step, event Event) error {
	return fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, step, event)
}
