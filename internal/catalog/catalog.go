// Package catalog holds the static location/parameter/unit metadata that
// drives the logbook forms and range checks.
//
// A Catalog is built once at startup by [LoadFromReader] (or [Builtin]) and
// never mutated afterwards; accessors return copies.
package catalog

import (
	"errors"
	"fmt"

	"github.com/bina-refinery/logbook/internal/models"
)

var (
	// ErrUnknownLocation is returned for an area or equipment name not in the catalog.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrUnknownParameter is returned for a parameter the location does not declare.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrUnsupportedUnit is returned when a value cannot be converted to the parameter's unit.
	ErrUnsupportedUnit = errors.New("unsupported unit")
)

// ParameterSpec describes one loggable parameter.
type ParameterSpec struct {
	Name string   `json:"name" yaml:"name"`
	Unit string   `json:"unit" yaml:"unit"`
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// HasRange reports whether both bounds are declared.
func (p ParameterSpec) HasRange() bool {
	return p.Min != nil && p.Max != nil
}

// Bounds returns the declared bounds. Only meaningful when HasRange is true.
func (p ParameterSpec) Bounds() (float64, float64) {
	if !p.HasRange() {
		return 0, 0
	}
	return *p.Min, *p.Max
}

// Location is an area or equipment item with its parameters in display order.
type Location struct {
	Name       string          `json:"name" yaml:"name"`
	Parameters []ParameterSpec `json:"parameters" yaml:"parameters"`
}

// UnitOption is one selectable unit of a unit type. A value v in this unit
// equals v*Factor+Offset in the unit type's base.
type UnitOption struct {
	Unit   string  `json:"unit" yaml:"unit"`
	Factor float64 `json:"factor" yaml:"factor"`
	Offset float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Catalog is the immutable location/parameter/unit table.
type Catalog struct {
	variant   models.Variant
	locations []Location
	unitTypes map[string]string
	units     map[string][]UnitOption

	locIndex map[string]int
}

// Variant returns the variant the catalog was written for.
func (c *Catalog) Variant() models.Variant {
	return c.variant
}

// Locations returns all locations in display order.
func (c *Catalog) Locations() []Location {
	out := make([]Location, len(c.locations))
	for i, loc := range c.locations {
		out[i] = Location{Name: loc.Name, Parameters: append([]ParameterSpec(nil), loc.Parameters...)}
	}
	return out
}

// LocationNames returns the location names in display order.
func (c *Catalog) LocationNames() []string {
	names := make([]string, len(c.locations))
	for i, loc := range c.locations {
		names[i] = loc.Name
	}
	return names
}

// Location looks up a location by name.
func (c *Catalog) Location(name string) (Location, error) {
	i, ok := c.locIndex[name]
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}
	loc := c.locations[i]
	return Location{Name: loc.Name, Parameters: append([]ParameterSpec(nil), loc.Parameters...)}, nil
}

// Parameter looks up one parameter of a location.
func (c *Catalog) Parameter(location, parameter string) (ParameterSpec, error) {
	i, ok := c.locIndex[location]
	if !ok {
		return ParameterSpec{}, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}
	for _, p := range c.locations[i].Parameters {
		if p.Name == parameter {
			return p, nil
		}
	}
	return ParameterSpec{}, fmt.Errorf("%w: %q in %q", ErrUnknownParameter, parameter, location)
}

// Default returns the first location and its first parameter, the initial
// selection of every selector.
func (c *Catalog) Default() (string, string) {
	if len(c.locations) == 0 {
		return "", ""
	}
	first := c.locations[0]
	if len(first.Parameters) == 0 {
		return first.Name, ""
	}
	return first.Name, first.Parameters[0].Name
}

// FirstParameter returns the first parameter of a location.
func (c *Catalog) FirstParameter(location string) (string, error) {
	loc, err := c.Location(location)
	if err != nil {
		return "", err
	}
	if len(loc.Parameters) == 0 {
		return "", fmt.Errorf("%w: %q has no parameters", ErrUnknownParameter, location)
	}
	return loc.Parameters[0].Name, nil
}

// UnitOptions lists the units a value for the parameter may be entered in,
// canonical unit first.
func (c *Catalog) UnitOptions(location, parameter string) ([]string, error) {
	spec, err := c.Parameter(location, parameter)
	if err != nil {
		return nil, err
	}
	opts := []string{spec.Unit}
	for _, o := range c.units[c.unitTypes[spec.Name]] {
		if o.Unit != spec.Unit {
			opts = append(opts, o.Unit)
		}
	}
	return opts, nil
}

// Convert expresses value, given in unit, in the parameter's canonical unit.
// An empty unit means the canonical unit.
func (c *Catalog) Convert(location, parameter string, value float64, unit string) (float64, error) {
	spec, err := c.Parameter(location, parameter)
	if err != nil {
		return 0, err
	}
	if unit == "" || unit == spec.Unit {
		return value, nil
	}

	unitType, ok := c.unitTypes[spec.Name]
	if !ok {
		return 0, fmt.Errorf("%w: %s only accepts %s", ErrUnsupportedUnit, spec.Name, spec.Unit)
	}
	from, okFrom := findUnit(c.units[unitType], unit)
	to, okTo := findUnit(c.units[unitType], spec.Unit)
	if !okFrom || !okTo {
		return 0, fmt.Errorf("%w: cannot convert %s to %s", ErrUnsupportedUnit, unit, spec.Unit)
	}

	base := value*from.Factor + from.Offset
	return (base - to.Offset) / to.Factor, nil
}

func findUnit(opts []UnitOption, unit string) (UnitOption, bool) {
	for _, o := range opts {
		if o.Unit == unit {
			return o, true
		}
	}
	return UnitOption{}, false
}
