package session

import (
	"testing"
	"time"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtin(t *testing.T, v models.Variant) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Builtin(v, catalog.Options{})
	require.NoError(t, err)
	return c
}

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestCreateSelectsDefaults(t *testing.T) {
	m := NewManager(builtin(t, models.VariantArea))

	c, err := m.Create()
	require.NoError(t, err)

	v := c.View()
	assert.Equal(t, models.StepSelectLocation, v.Step)
	assert.Equal(t, 1, v.StepNumber)
	assert.Equal(t, 2, v.TotalSteps)
	assert.Equal(t, "Area 1 - Crude Processing", v.Location)
	assert.Equal(t, "Top Temperature", v.Parameter)

	got, ok := m.Get(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, m.Len())
}

func TestWizardFlow(t *testing.T) {
	m := NewManager(builtin(t, models.VariantArea))
	c, err := m.Create()
	require.NoError(t, err)

	require.NoError(t, c.SelectLocation("Area 3 - Power Generation"))
	assert.Equal(t, "Steam Pressure", c.View().Parameter, "parameter resets to the location's first")

	err = c.SelectParameter("Steam Temperature")
	assert.ErrorIs(t, err, ErrInvalidTransition, "parameters live on step 2")

	_, _, err = c.BeginCapture()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, c.Next())
	assert.Equal(t, 2, c.View().StepNumber)
	require.NoError(t, c.SelectParameter("Steam Temperature"))

	err = c.SelectLocation("Area 1 - Crude Processing")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	loc, param, err := c.BeginCapture()
	require.NoError(t, err)
	assert.Equal(t, "Area 3 - Power Generation", loc)
	assert.Equal(t, "Steam Temperature", param)

	_, _, err = c.BeginCapture()
	assert.ErrorIs(t, err, ErrInvalidTransition, "one capture at a time")

	c.FinishCapture("steam is 430")
	v := c.View()
	assert.Equal(t, models.StepSelectParameter, v.Step)
	assert.Equal(t, "steam is 430", v.LastTranscript)

	require.NoError(t, c.Back())
	assert.Equal(t, models.StepSelectLocation, c.View().Step)
}

func TestDirectFlow(t *testing.T) {
	m := NewManager(builtin(t, models.VariantEquipment))
	c, err := m.Create()
	require.NoError(t, err)

	v := c.View()
	assert.Equal(t, models.StepSelectParameter, v.Step)
	assert.Equal(t, 1, v.TotalSteps)
	assert.Equal(t, "Pump P-101", v.Location)

	require.NoError(t, c.SelectLocation("Furnace F-301"))
	require.NoError(t, c.SelectParameter("Stack Temperature"))
	require.NoError(t, c.SelectLocation("Compressor K-401"))
	assert.Equal(t, "Inlet Pressure", c.View().Parameter)

	assert.ErrorIs(t, c.Next(), ErrInvalidTransition)
	assert.ErrorIs(t, c.Back(), ErrInvalidTransition)

	_, _, err = c.BeginCapture()
	require.NoError(t, err)
	c.FinishCapture("")
	assert.Equal(t, models.StepSelectParameter, c.View().Step)
}

func TestSelectionErrors(t *testing.T) {
	m := NewManager(builtin(t, models.VariantEquipment))
	c, err := m.Create()
	require.NoError(t, err)

	assert.ErrorIs(t, c.SelectLocation("Tank T-9"), catalog.ErrUnknownLocation)
	assert.ErrorIs(t, c.SelectParameter("Stack Temperature"), catalog.ErrUnknownParameter, "belongs to another location")
	assert.Equal(t, "Pump P-101", c.View().Location, "failed selection leaves state unchanged")
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		variant models.Variant
		step    models.Step
		event   Event
		want    models.Step
		wantErr bool
	}{
		{name: "wizard next", variant: models.VariantArea, step: models.StepSelectLocation, event: EventNext, want: models.StepSelectParameter},
		{name: "wizard back from location", variant: models.VariantArea, step: models.StepSelectLocation, event: EventBack, want: models.StepSelectLocation, wantErr: true},
		{name: "wizard next from parameter", variant: models.VariantArea, step: models.StepSelectParameter, event: EventNext, want: models.StepSelectParameter, wantErr: true},
		{name: "wizard capture", variant: models.VariantArea, step: models.StepSelectParameter, event: EventCapture, want: models.StepCaptureValue},
		{name: "wizard back during capture", variant: models.VariantArea, step: models.StepCaptureValue, event: EventBack, want: models.StepCaptureValue, wantErr: true},
		{name: "direct location", variant: models.VariantEquipment, step: models.StepSelectParameter, event: EventSelectLocation, want: models.StepSelectParameter},
		{name: "direct captured", variant: models.VariantEquipment, step: models.StepCaptureValue, event: EventCaptured, want: models.StepSelectParameter},
		{name: "direct select during capture", variant: models.VariantEquipment, step: models.StepCaptureValue, event: EventSelectParameter, want: models.StepCaptureValue, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.variant, tt.step, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid transition: ")
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := Transition(models.VariantEquipment, models.StepSelectLocation, EventNext)
	assert.EqualError(t, err, `unknown step "select_location"`)
}

func TestCleanupOldSessions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	m := NewManager(builtin(t, models.VariantArea), WithClock(clock.now))

	stale, err := m.Create()
	require.NoError(t, err)
	capturing, err := m.Create()
	require.NoError(t, err)
	require.NoError(t, capturing.Next())
	_, _, err = capturing.BeginCapture()
	require.NoError(t, err)

	clock.advance(20 * time.Minute)
	fresh, err := m.Create()
	require.NoError(t, err)

	clock.advance(15 * time.Minute)
	removed := m.CleanupOldSessions(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, ok := m.Get(stale.ID())
	assert.False(t, ok)
	_, ok = m.Get(capturing.ID())
	assert.True(t, ok, "capturing sessions are kept")
	_, ok = m.Get(fresh.ID())
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	m := NewManager(builtin(t, models.VariantArea))
	c, err := m.Create()
	require.NoError(t, err)

	assert.True(t, m.Delete(c.ID()))
	assert.False(t, m.Delete(c.ID()))
	_, ok := m.Get(c.ID())
	assert.False(t, ok)
}

func TestCreateEvictsOldestAtCapacity(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	m := NewManager(builtin(t, models.VariantArea), WithClock(clock.now))

	first, err := m.Create()
	require.NoError(t, err)
	for i := 1; i < MaxSessions; i++ {
		clock.advance(time.Second)
		_, err := m.Create()
		require.NoError(t, err)
	}
	assert.Equal(t, MaxSessions, m.Len())

	clock.advance(time.Second)
	_, err = m.Create()
	require.NoError(t, err)
	assert.Equal(t, MaxSessions, m.Len())
	_, ok := m.Get(first.ID())
	assert.False(t, ok)
}
