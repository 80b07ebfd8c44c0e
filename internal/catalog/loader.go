package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bina-refinery/logbook/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultFiles embed.FS

// Options controls load-time validation.
type Options struct {
	// Variant, when set, must match the catalog's declared variant.
	Variant models.Variant
	// RequireRanges rejects parameters without both bounds. Set when range
	// gating is enabled.
	RequireRanges bool
}

// file is the on-disk YAML shape.
type file struct {
	Variant   models.Variant          `yaml:"variant"`
	Locations []Location              `yaml:"locations"`
	UnitTypes map[string]string       `yaml:"unit_types"`
	Units     map[string][]UnitOption `yaml:"units"`
}

// Load reads and validates the catalog file at path.
func Load(path string, opts Options) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f, opts)
	if err != nil {
		return nil, fmt.Errorf("catalog: %q: %w", path, err)
	}
	return c, nil
}

// Builtin returns the catalog compiled into the binary for variant.
func Builtin(variant models.Variant, opts Options) (*Catalog, error) {
	var name string
	switch variant {
	case models.VariantArea:
		name = "defaults/areas.yaml"
	case models.VariantEquipment:
		name = "defaults/equipment.yaml"
	default:
		return nil, fmt.Errorf("catalog: no built-in catalog for variant %q", variant)
	}
	data, err := defaultFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", name, err)
	}
	if opts.Variant == "" {
		opts.Variant = variant
	}
	return LoadFromReader(bytes.NewReader(data), opts)
}

// LoadFromReader decodes a YAML catalog from r and validates it.
func LoadFromReader(r io.Reader, opts Options) (*Catalog, error) {
	var raw file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if err := validate(&raw, opts); err != nil {
		return nil, err
	}

	c := &Catalog{
		variant:   raw.Variant,
		locations: raw.Locations,
		unitTypes: raw.UnitTypes,
		units:     raw.Units,
		locIndex:  make(map[string]int, len(raw.Locations)),
	}
	if c.unitTypes == nil {
		c.unitTypes = map[string]string{}
	}
	if c.units == nil {
		c.units = map[string][]UnitOption{}
	}
	for i, loc := range raw.Locations {
		c.locIndex[loc.Name] = i
	}
	return c, nil
}

// validate returns every structural problem found, joined.
func validate(raw *file, opts Options) error {
	var errs []error

	if !raw.Variant.IsValid() {
		errs = append(errs, fmt.Errorf("variant %q is invalid; valid values: area, equipment", raw.Variant))
	} else if opts.Variant != "" && raw.Variant != opts.Variant {
		errs = append(errs, fmt.Errorf("variant %q does not match configured variant %q", raw.Variant, opts.Variant))
	}
	if len(raw.Locations) == 0 {
		errs = append(errs, errors.New("locations: at least one location is required"))
	}

	// parameter name -> number of locations declaring it
	occurrences := make(map[string]int)
	seenLoc := make(map[string]int, len(raw.Locations))
	for i, loc := range raw.Locations {
		prefix := fmt.Sprintf("locations[%d]", i)
		if loc.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if prev, ok := seenLoc[loc.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of locations[%d]", prefix, loc.Name, prev))
		} else {
			seenLoc[loc.Name] = i
		}
		if len(loc.Parameters) == 0 {
			errs = append(errs, fmt.Errorf("%s (%q) declares no parameters", prefix, loc.Name))
		}

		seenParam := make(map[string]bool, len(loc.Parameters))
		for j, p := range loc.Parameters {
			pp := fmt.Sprintf("%s.parameters[%d]", prefix, j)
			if p.Name == "" {
				errs = append(errs, fmt.Errorf("%s.name is required", pp))
				continue
			}
			if seenParam[p.Name] {
				errs = append(errs, fmt.Errorf("%s.name %q is duplicated within %q", pp, p.Name, loc.Name))
				continue
			}
			seenParam[p.Name] = true
			occurrences[p.Name]++

			if p.Unit == "" {
				errs = append(errs, fmt.Errorf("%s (%q).unit is required", pp, p.Name))
			}
			if (p.Min == nil) != (p.Max == nil) {
				errs = append(errs, fmt.Errorf("%s (%q) must declare both min and max or neither", pp, p.Name))
			}
			if p.HasRange() && *p.Min > *p.Max {
				errs = append(errs, fmt.Errorf("%s (%q) min %v exceeds max %v", pp, p.Name, *p.Min, *p.Max))
			}
			if opts.RequireRanges && !p.HasRange() {
				errs = append(errs, fmt.Errorf("%s (%q) has no range but range gating is enabled", pp, p.Name))
			}
		}
	}

	for unitType, options := range raw.Units {
		if len(options) == 0 {
			errs = append(errs, fmt.Errorf("units.%s declares no units", unitType))
		}
		for k, o := range options {
			if o.Unit == "" {
				errs = append(errs, fmt.Errorf("units.%s[%d].unit is required", unitType, k))
			}
			if o.Factor == 0 {
				errs = append(errs, fmt.Errorf("units.%s[%d] (%q) factor must be non-zero", unitType, k, o.Unit))
			}
		}
	}

	// Sorted so the joined error is stable.
	params := make([]string, 0, len(raw.UnitTypes))
	for p := range raw.UnitTypes {
		params = append(params, p)
	}
	sort.Strings(params)
	for _, param := range params {
		unitType := raw.UnitTypes[param]
		switch n := occurrences[param]; {
		case n == 0:
			errs = append(errs, fmt.Errorf("unit_types.%s references a parameter no location declares", param))
		case n > 1:
			errs = append(errs, fmt.Errorf("unit_types.%s is ambiguous: declared by %d locations", param, n))
		}
		options, ok := raw.Units[unitType]
		if !ok {
			errs = append(errs, fmt.Errorf("unit_types.%s references unknown unit type %q", param, unitType))
			continue
		}
		for _, loc := range raw.Locations {
			for _, p := range loc.Parameters {
				if p.Name == param {
					if _, found := findUnit(options, p.Unit); !found {
						errs = append(errs, fmt.Errorf("unit_types.%s: canonical unit %q is not listed under units.%s", param, p.Unit, unitType))
					}
				}
			}
		}
	}

	return errors.Join(errs...)
}
