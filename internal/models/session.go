package models

import "time"

// Step is a state of the interaction flow.
type Step string

const (
	StepSelectLocation  Step = "select_location"
	StepSelectParameter Step = "select_parameter"
	StepCaptureValue    Step = "capture_value"
)

// SessionView is the externally visible snapshot of one operator session.
type SessionView struct {
	ID             string    `json:"id"`
	Variant        Variant   `json:"variant"`
	Step           Step      `json:"step"`
	StepNumber     int       `json:"stepNumber"`
	TotalSteps     int       `json:"totalSteps"`
	Location       string    `json:"location"`
	Parameter      string    `json:"parameter"`
	LastTranscript string    `json:"lastTranscript,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessed   time.Time `json:"lastAccessed"`
}
