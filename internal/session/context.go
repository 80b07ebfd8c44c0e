package session

import (
	"sync"
	"time"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/models"
)

// Context is one operator's selection state. All methods are safe for
// concurrent use; a second capture on the same session is refused while one
// is in progress.
type Context struct {
	mu sync.Mutex

	id             string
	variant        models.Variant
	catalog        *catalog.Catalog
	step           models.Step
	location       string
	parameter      string
	lastTranscript string
	createdAt      time.Time
	lastAccessed   time.Time
}

func newContext(id string, cat *catalog.Catalog, now time.Time) *Context {
	loc, param := cat.Default()
	return &Context{
		id:           id,
		variant:      cat.Variant(),
		catalog:      cat,
		step:         InitialStep(cat.Variant()),
		location:     loc,
		parameter:    param,
		createdAt:    now,
		lastAccessed: now,
	}
}

// ID returns the session identifier.
func (c *Context) ID() string { return c.id }

// SelectLocation switches location and resets the parameter to the
// location's first one.
func (c *Context) SelectLocation(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := Transition(c.variant, c.step, EventSelectLocation)
	if err != nil {
		return err
	}
	first, err := c.catalog.FirstParameter(name)
	if err != nil {
		return err
	}
	c.step = next
	c.location = name
	c.parameter = first
	return nil
}

// SelectParameter switches to a parameter of the current location.
func (c *Context) SelectParameter(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := Transition(c.variant, c.step, EventSelectParameter)
	if err != nil {
		return err
	}
	if _, err := c.catalog.Parameter(c.location, name); err != nil {
		return err
	}
	c.step = next
	c.parameter = name
	return nil
}

// Next advances the wizard to the parameter step.
func (c *Context) Next() error {
	return c.fire(EventNext)
}

// Back returns the wizard to the location step.
func (c *Context) Back() error {
	return c.fire(EventBack)
}

func (c *Context) fire(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := Transition(c.variant, c.step, event)
	if err != nil {
		return err
	}
	c.step = next
	return nil
}

// BeginCapture enters the capture step and returns the selection the value
// belongs to. Every successful call must be paired with FinishCapture.
func (c *Context) BeginCapture() (location, parameter string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := Transition(c.variant, c.step, EventCapture)
	if err != nil {
		return "", "", err
	}
	c.step = next
	return c.location, c.parameter, nil
}

// FinishCapture leaves the capture step, whether the value was persisted or
// rejected. transcript is kept for display when non-empty.
func (c *Context) FinishCapture(transcript string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if next, err := Transition(c.variant, c.step, EventCaptured); err == nil {
		c.step = next
	}
	if transcript != "" {
		c.lastTranscript = transcript
	}
}

// View returns a snapshot of the session.
func (c *Context) View() models.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := models.SessionView{
		ID:             c.id,
		Variant:        c.variant,
		Step:           c.step,
		StepNumber:     1,
		TotalSteps:     1,
		Location:       c.location,
		Parameter:      c.parameter,
		LastTranscript: c.lastTranscript,
		CreatedAt:      c.createdAt,
		LastAccessed:   c.lastAccessed,
	}
	if c.variant == models.VariantArea {
		v.TotalSteps = 2
		if c.step != models.StepSelectLocation {
			v.StepNumber = 2
		}
	}
	return v
}

func (c *Context) touch(now time.Time) {
	c.mu.Lock()
	c.lastAccessed = now
	c.mu.Unlock()
}

func (c *Context) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccessed, c.step != models.StepCaptureValue
}
