package usecase

import (
	"fmt"
	"slices"
	"time"

	"LiveChart/internal/domain/catalogue"
	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	"LiveChart/pkg/logger"
)

// OverlayPlan is the set difference between live overlays and the desired configs.
type OverlayPlan struct {
	Remove  []models.IndicatorType
	Create  []models.IndicatorConfig
	Recolor []models.IndicatorConfig
}

// Empty reports whether applying the plan would change nothing.
func (p OverlayPlan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Create) == 0 && len(p.Recolor) == 0
}

// PlanOverlays compares live overlays (type to applied color) with configs. Overlays whose
// config is gone or disabled are removed, enabled configs without an overlay are created and
// overlays whose color changed are recolored in place. Param changes alone keep the overlay.
func PlanOverlays(live map[models.IndicatorType]string, configs []models.IndicatorConfig) OverlayPlan {
	var plan OverlayPlan
	wanted := make(map[models.IndicatorType]bool, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled || wanted[cfg.Type] {
			continue
		}
		wanted[cfg.Type] = true
		color, ok := live[cfg.Type]
		switch {
		case !ok:
			plan.Create = append(plan.Create, cfg)
		case color != cfg.Color:
			plan.Recolor = append(plan.Recolor, cfg)
		}
	}
	for t := range live {
		if !wanted[t] {
			plan.Remove = append(plan.Remove, t)
		}
	}
	slices.Sort(plan.Remove)
	return plan
}

type overlay struct {
	line  drepo.Line
	color string
}

// OverlayManager owns the indicator configs of one chart and keeps exactly one line overlay
// per enabled config. Not safe for concurrent use; Chart serializes access.
type OverlayManager struct {
	surface drepo.Surface
	cat     *catalogue.Catalogue
	log     *logger.Logger

	configs []models.IndicatorConfig
	live    map[models.IndicatorType]*overlay
}

func NewOverlayManager(surface drepo.Surface, cat *catalogue.Catalogue, log *logger.Logger) *OverlayManager {
	if cat == nil {
		cat = catalogue.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OverlayManager{
		surface: surface,
		cat:     cat,
		log:     log,
		live:    make(map[models.IndicatorType]*overlay),
	}
}

// SetIndicators replaces the config list and reconciles overlays against it. Invalid or
// duplicate configs reject the whole list and leave the current state untouched.
func (m *OverlayManager) SetIndicators(configs []models.IndicatorConfig) error {
	next := make([]models.IndicatorConfig, 0, len(configs))
	seen := make(map[models.IndicatorType]bool, len(configs))
	for _, cfg := range configs {
		cfg = m.cat.Complete(cfg)
		if err := m.cat.Validate(cfg); err != nil {
			return err
		}
		if seen[cfg.Type] {
			return fmt.Errorf("%w: %s", models.ErrDuplicateType, cfg.Type)
		}
		seen[cfg.Type] = true
		next = append(next, cfg)
	}
	m.configs = next
	m.reconcile()
	return nil
}

func (m *OverlayManager) reconcile() {
	applied := make(map[models.IndicatorType]string, len(m.live))
	for t, o := range m.live {
		applied[t] = o.color
	}
	plan := PlanOverlays(applied, m.configs)
	if plan.Empty() {
		return
	}
	for _, t := range plan.Remove {
		m.surface.RemoveLine(m.live[t].line)
		delete(m.live, t)
		m.log.Debug("overlay removed", logger.String("indicator", string(t)))
	}
	for _, cfg := range plan.Recolor {
		o := m.live[cfg.Type]
		o.line.SetColor(cfg.Color)
		o.color = cfg.Color
	}
	for _, cfg := range plan.Create {
		line, err := m.surface.AddLine(string(cfg.Type), cfg.Color)
		if err != nil {
			// retried on the next reconcile
			m.log.Warn("overlay create failed", logger.String("indicator", string(cfg.Type)), logger.Error(err))
			continue
		}
		m.live[cfg.Type] = &overlay{line: line, color: cfg.Color}
		m.log.Debug("overlay created", logger.String("indicator", string(cfg.Type)))
	}
}

// Rebuild tears down every overlay and recreates empty ones for the enabled configs.
// Used when the chart session changes.
func (m *OverlayManager) Rebuild() {
	m.TeardownAll()
	m.reconcile()
}

// TeardownAll removes every live overlay, keeping the configs.
func (m *OverlayManager) TeardownAll() {
	for t, o := range m.live {
		m.surface.RemoveLine(o.line)
		delete(m.live, t)
	}
}

// RouteIndicatorValue plots the catalogue primary component of v on the overlay of t.
// It reports false when no overlay is live for t; the value is then discarded.
func (m *OverlayManager) RouteIndicatorValue(t models.IndicatorType, v models.IndicatorValue, at time.Time) (bool, error) {
	o, ok := m.live[t]
	if !ok {
		return false, nil
	}
	if at.IsZero() {
		return false, fmt.Errorf("%w: indicator %s without timestamp", models.ErrMalformedEvent, t)
	}
	x, err := v.Component(m.cat.Primary(t))
	if err != nil {
		return false, fmt.Errorf("indicator %s: %w", t, err)
	}
	o.line.Update(at, x)
	return true, nil
}

// Configs returns copies of the current configs in insertion order.
func (m *OverlayManager) Configs() []models.IndicatorConfig {
	out := make([]models.IndicatorConfig, len(m.configs))
	for i, cfg := range m.configs {
		out[i] = cfg.Clone()
	}
	return out
}

// Config returns the config of t.
func (m *OverlayManager) Config(t models.IndicatorType) (models.IndicatorConfig, bool) {
	for _, cfg := range m.configs {
		if cfg.Type == t {
			return cfg.Clone(), true
		}
	}
	return models.IndicatorConfig{}, false
}

// Live lists the types with a live overlay, sorted.
func (m *OverlayManager) Live() []models.IndicatorType {
	out := make([]models.IndicatorType, 0, len(m.live))
	for t := range m.live {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (m *OverlayManager) Count() int { return len(m.live) }

func (m *OverlayManager) Catalogue() *catalogue.Catalogue { return m.cat }
