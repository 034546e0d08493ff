// Package catalogue holds the static list of indicator types a chart can display,
// with their parameter schemas, default colors and value components.
package catalogue

import (
	"fmt"
	"maps"
	"math"
	"regexp"

	"LiveChart/internal/domain/models"
)

// ParamSpec describes one numeric parameter of an indicator.
type ParamSpec struct {
	Name    string  `json:"name" yaml:"name"`
	Default float64 `json:"default" yaml:"default"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
}

// Entry is one indicator type in the catalogue.
type Entry struct {
	Type       models.IndicatorType `json:"type" yaml:"type"`
	Label      string               `json:"label" yaml:"label"`
	Params     []ParamSpec          `json:"params" yaml:"params"`
	Color      string               `json:"color" yaml:"color"`
	Components []string             `json:"components" yaml:"components"`
	// Primary is the index into Components plotted by the single line overlay.
	Primary int `json:"primary" yaml:"primary"`
}

// Catalogue indexes entries by type while keeping their display order.
type Catalogue struct {
	order   []models.IndicatorType
	entries map[models.IndicatorType]Entry
}

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// New builds a catalogue, rejecting duplicate types and inconsistent schemas.
func New(entries ...Entry) (*Catalogue, error) {
	c := &Catalogue{entries: make(map[models.IndicatorType]Entry, len(entries))}
	for _, e := range entries {
		if e.Type == "" {
			return nil, fmt.Errorf("catalogue: entry with empty type")
		}
		if _, ok := c.entries[e.Type]; ok {
			return nil, fmt.Errorf("catalogue: %w: %s", models.ErrDuplicateType, e.Type)
		}
		if len(e.Components) == 0 {
			e.Components = []string{"value"}
		}
		if e.Primary < 0 || e.Primary >= len(e.Components) {
			return nil, fmt.Errorf("catalogue: %s primary component %d out of range", e.Type, e.Primary)
		}
		for _, p := range e.Params {
			if p.Min > p.Max || p.Default < p.Min || p.Default > p.Max {
				return nil, fmt.Errorf("catalogue: %s param %s default %v outside [%v, %v]", e.Type, p.Name, p.Default, p.Min, p.Max)
			}
		}
		c.entries[e.Type] = e
		c.order = append(c.order, e.Type)
	}
	return c, nil
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	c, err := New(defaultEntries...)
	if err != nil {
		panic(err)
	}
	return c
}

// Entries returns entries in display order.
func (c *Catalogue) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.entries[t])
	}
	return out
}

// Lookup finds an entry by type.
func (c *Catalogue) Lookup(t models.IndicatorType) (Entry, bool) {
	e, ok := c.entries[t]
	return e, ok
}

// Primary returns the plotted component index for t (0 for unknown types).
func (c *Catalogue) Primary(t models.IndicatorType) int {
	return c.entries[t].Primary
}

// NewConfig seeds an enabled config for t with catalogue defaults.
func (c *Catalogue) NewConfig(t models.IndicatorType) (models.IndicatorConfig, error) {
	e, ok := c.entries[t]
	if !ok {
		return models.IndicatorConfig{}, fmt.Errorf("%w: %s", models.ErrUnknownIndicator, t)
	}
	params := make(map[string]float64, len(e.Params))
	for _, p := range e.Params {
		params[p.Name] = p.Default
	}
	return models.IndicatorConfig{Type: t, Enabled: true, Params: params, Color: e.Color}, nil
}

// Complete fills missing params and color from the catalogue without touching set values.
func (c *Catalogue) Complete(cfg models.IndicatorConfig) models.IndicatorConfig {
	e, ok := c.entries[cfg.Type]
	if !ok {
		return cfg
	}
	cfg = cfg.Clone()
	if cfg.Params == nil {
		cfg.Params = make(map[string]float64, len(e.Params))
	}
	for _, p := range e.Params {
		if _, set := cfg.Params[p.Name]; !set {
			cfg.Params[p.Name] = p.Default
		}
	}
	if cfg.Color == "" {
		cfg.Color = e.Color
	}
	return cfg
}

// Validate checks the type, every param against its bounds, and the color.
func (c *Catalogue) Validate(cfg models.IndicatorConfig) error {
	e, ok := c.entries[cfg.Type]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownIndicator, cfg.Type)
	}
	known := make(map[string]ParamSpec, len(e.Params))
	for _, p := range e.Params {
		known[p.Name] = p
	}
	for name, v := range cfg.Params {
		p, ok := known[name]
		if !ok {
			return fmt.Errorf("%w: %s has no param %q", models.ErrParamOutOfRange, cfg.Type, name)
		}
		if math.IsNaN(v) || v < p.Min || v > p.Max {
			return fmt.Errorf("%w: %s.%s=%v not in [%v, %v]", models.ErrParamOutOfRange, cfg.Type, name, v, p.Min, p.Max)
		}
	}
	if cfg.Color != "" && !colorRe.MatchString(cfg.Color) {
		return fmt.Errorf("%w: %s color %q", models.ErrInvalidColor, cfg.Type, cfg.Color)
	}
	return nil
}

// Merge applies a partial edit onto cfg and validates the result.
func (c *Catalogue) Merge(cfg models.IndicatorConfig, params map[string]float64, color *string, enabled *bool) (models.IndicatorConfig, error) {
	out := cfg.Clone()
	if out.Params == nil {
		out.Params = map[string]float64{}
	}
	maps.Copy(out.Params, params)
	if color != nil {
		out.Color = *color
	}
	if enabled != nil {
		out.Enabled = *enabled
	}
	if err := c.Validate(out); err != nil {
		return cfg, err
	}
	return out, nil
}
