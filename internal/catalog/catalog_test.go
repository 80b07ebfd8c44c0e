package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/bina-refinery/logbook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinAreas(t *testing.T) {
	c, err := Builtin(models.VariantArea, Options{RequireRanges: true})
	require.NoError(t, err)

	assert.Equal(t, models.VariantArea, c.Variant())
	assert.Equal(t, []string{
		"Area 1 - Crude Processing",
		"Area 2 - Vacuum Processing",
		"Area 3 - Power Generation",
		"Area 4 - Water Treatment",
	}, c.LocationNames())

	loc, err := c.Location("Area 1 - Crude Processing")
	require.NoError(t, err)
	names := make([]string, 0, len(loc.Parameters))
	for _, p := range loc.Parameters {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Top Temperature", "Bottom Temperature", "Feed Rate", "Pressure"}, names)

	p, err := c.Parameter("Area 1 - Crude Processing", "Pressure")
	require.NoError(t, err)
	lo, hi := p.Bounds()
	assert.Equal(t, "bar", p.Unit)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)

	loc4, _ := c.Location("Area 4 - Water Treatment")
	assert.Equal(t, "m³/hr", loc4.Parameters[3].Unit)
}

func TestBuiltinEquipment(t *testing.T) {
	c, err := Builtin(models.VariantEquipment, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.VariantEquipment, c.Variant())

	loc, param := c.Default()
	assert.Equal(t, "Pump P-101", loc)
	assert.Equal(t, "Discharge Pressure", param)
}

func TestParameterLookupErrors(t *testing.T) {
	c, err := Builtin(models.VariantArea, Options{})
	require.NoError(t, err)

	_, err = c.Parameter("Area 9", "Pressure")
	assert.True(t, errors.Is(err, ErrUnknownLocation))

	_, err = c.Parameter("Area 1 - Crude Processing", "Steam Rate")
	assert.True(t, errors.Is(err, ErrUnknownParameter))
}

func TestConvert(t *testing.T) {
	c, err := Builtin(models.VariantArea, Options{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		location string
		param    string
		value    float64
		unit     string
		want     float64
		wantErr  error
	}{
		{name: "canonical unit passes through", location: "Area 1 - Crude Processing", param: "Pressure", value: 2.5, unit: "bar", want: 2.5},
		{name: "empty unit means canonical", location: "Area 1 - Crude Processing", param: "Pressure", value: 2.5, want: 2.5},
		{name: "kPa to bar", location: "Area 1 - Crude Processing", param: "Pressure", value: 250, unit: "kPa", want: 2.5},
		{name: "fahrenheit to celsius", location: "Area 1 - Crude Processing", param: "Top Temperature", value: 212, unit: "°F", want: 100},
		{name: "kelvin to celsius", location: "Area 3 - Power Generation", param: "Steam Temperature", value: 700.15, unit: "K", want: 427},
		{name: "tonnes to kg", location: "Area 2 - Vacuum Processing", param: "Steam Rate", value: 0.75, unit: "t/hr", want: 750},
		{name: "unmapped parameter rejects other units", location: "Area 1 - Crude Processing", param: "Bottom Temperature", value: 400, unit: "°F", wantErr: ErrUnsupportedUnit},
		{name: "unit of another type", location: "Area 1 - Crude Processing", param: "Pressure", value: 1, unit: "°F", wantErr: ErrUnsupportedUnit},
		{name: "unknown parameter", location: "Area 1 - Crude Processing", param: "Nope", value: 1, wantErr: ErrUnknownParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Convert(tt.location, tt.param, tt.value, tt.unit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestUnitOptions(t *testing.T) {
	c, err := Builtin(models.VariantArea, Options{})
	require.NoError(t, err)

	opts, err := c.UnitOptions("Area 1 - Crude Processing", "Pressure")
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "kPa", "MPa", "psi"}, opts)

	opts, err = c.UnitOptions("Area 1 - Crude Processing", "Bottom Temperature")
	require.NoError(t, err)
	assert.Equal(t, []string{"°C"}, opts)
}

func TestLoadFromReaderValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		opts    Options
		wantErr string
	}{
		{
			name: "unit type references missing parameter",
			yaml: `
variant: equipment
locations:
  - name: Pump
    parameters:
      - { name: Flow, unit: "m³/hr" }
unit_types:
  Head: length
units:
  length:
    - { unit: m, factor: 1 }
`,
			wantErr: "unit_types.Head references a parameter no location declares",
		},
		{
			name: "unit type references parameter in two locations",
			yaml: `
variant: equipment
locations:
  - name: Pump A
    parameters:
      - { name: Pressure, unit: bar }
  - name: Pump B
    parameters:
      - { name: Pressure, unit: bar }
unit_types:
  Pressure: pressure
units:
  pressure:
    - { unit: bar, factor: 1 }
`,
			wantErr: "unit_types.Pressure is ambiguous",
		},
		{
			name: "min above max",
			yaml: `
variant: area
locations:
  - name: Area
    parameters:
      - { name: Level, unit: "%", min: 90, max: 10 }
`,
			wantErr: "min 90 exceeds max 10",
		},
		{
			name: "range required when gating",
			yaml: `
variant: area
locations:
  - name: Area
    parameters:
      - { name: Level, unit: "%" }
`,
			opts:    Options{RequireRanges: true},
			wantErr: "has no range but range gating is enabled",
		},
		{
			name: "duplicate location",
			yaml: `
variant: area
locations:
  - name: Area
    parameters:
      - { name: Level, unit: "%" }
  - name: Area
    parameters:
      - { name: Flow, unit: "m³/hr" }
`,
			wantErr: "is a duplicate of locations[0]",
		},
		{
			name: "variant mismatch",
			yaml: `
variant: area
locations:
  - name: Area
    parameters:
      - { name: Level, unit: "%" }
`,
			opts:    Options{Variant: models.VariantEquipment},
			wantErr: "does not match configured variant",
		},
		{
			name: "unknown field",
			yaml: `
variant: area
colour: red
locations: []
`,
			wantErr: "decode yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tt.yaml), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLocationsReturnsCopy(t *testing.T) {
	c, err := Builtin(models.VariantArea, Options{})
	require.NoError(t, err)

	locs := c.Locations()
	locs[0].Parameters[0].Name = "mutated"

	p, err := c.Parameter("Area 1 - Crude Processing", "Top Temperature")
	require.NoError(t, err)
	assert.Equal(t, "Top Temperature", p.Name)
}
