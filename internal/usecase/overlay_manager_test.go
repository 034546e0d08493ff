package usecase

import (
	"errors"
	"testing"

	"LiveChart/internal/domain/catalogue"
	"LiveChart/internal/domain/models"
)

func sma(enabled bool, period float64, color string) models.IndicatorConfig {
	return models.IndicatorConfig{Type: "SMA", Enabled: enabled, Params: map[string]float64{"period": period}, Color: color}
}

func TestPlanOverlays(t *testing.T) {
	tests := []struct {
		name        string
		live        map[models.IndicatorType]string
		configs     []models.IndicatorConfig
		wantRemove  int
		wantCreate  int
		wantRecolor int
	}{
		{name: "empty", live: nil, configs: nil},
		{name: "create enabled", configs: []models.IndicatorConfig{sma(true, 20, "#fff")}, wantCreate: 1},
		{name: "skip disabled", configs: []models.IndicatorConfig{sma(false, 20, "#fff")}},
		{name: "remove disabled", live: map[models.IndicatorType]string{"SMA": "#fff"}, configs: []models.IndicatorConfig{sma(false, 20, "#fff")}, wantRemove: 1},
		{name: "remove absent", live: map[models.IndicatorType]string{"SMA": "#fff", "RSI": "#000"}, configs: []models.IndicatorConfig{sma(true, 20, "#fff")}, wantRemove: 1},
		{name: "param change keeps", live: map[models.IndicatorType]string{"SMA": "#fff"}, configs: []models.IndicatorConfig{sma(true, 50, "#fff")}},
		{name: "color change recolors", live: map[models.IndicatorType]string{"SMA": "#fff"}, configs: []models.IndicatorConfig{sma(true, 20, "#000")}, wantRecolor: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PlanOverlays(tt.live, tt.configs)
			if len(p.Remove) != tt.wantRemove || len(p.Create) != tt.wantCreate || len(p.Recolor) != tt.wantRecolor {
				t.Fatalf("plan = %+v", p)
			}
		})
	}
}

func TestSetIndicatorsIdempotent(t *testing.T) {
	surface := newFakeSurface()
	m := NewOverlayManager(surface, catalogue.Default(), nil)
	configs := []models.IndicatorConfig{sma(true, 20, "#2962FF"), {Type: "RSI", Enabled: true}}

	if err := m.SetIndicators(configs); err != nil {
		t.Fatalf("set: %v", err)
	}
	if surface.added != 2 {
		t.Fatalf("expected 2 overlays, got %d", surface.added)
	}
	if err := m.SetIndicators(configs); err != nil {
		t.Fatalf("set again: %v", err)
	}
	if surface.added != 2 || surface.removed != 0 {
		t.Fatalf("second set churned overlays: added=%d removed=%d", surface.added, surface.removed)
	}
}

func TestDisabledIndicatorIgnoresValues(t *testing.T) {
	surface := newFakeSurface()
	m := NewOverlayManager(surface, catalogue.Default(), nil)
	if err := m.SetIndicators([]models.IndicatorConfig{sma(false, 20, "")}); err != nil {
		t.Fatalf("set: %v", err)
	}
	plotted, err := m.RouteIndicatorValue("SMA", models.Scalar(1.5), ts(100))
	if err != nil || plotted {
		t.Fatalf("value routed to disabled indicator: %v %v", plotted, err)
	}
	if len(surface.lines) != 0 {
		t.Fatalf("overlay exists for disabled indicator")
	}
}

func TestToggleIndicatorRecreatesEmptyOverlay(t *testing.T) {
	surface := newFakeSurface()
	m := NewOverlayManager(surface, catalogue.Default(), nil)

	if err := m.SetIndicators([]models.IndicatorConfig{sma(true, 20, "")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("expected one overlay, got %d", m.Count())
	}
	if _, err := m.RouteIndicatorValue("SMA", models.Scalar(10), ts(100)); err != nil {
		t.Fatalf("route: %v", err)
	}
	first := surface.lines["SMA"]
	if len(first.points) != 1 {
		t.Fatalf("expected one point")
	}

	if err := m.SetIndicators([]models.IndicatorConfig{sma(false, 20, "")}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if m.Count() != 0 || surface.removed != 1 {
		t.Fatalf("overlay not torn down")
	}

	if err := m.SetIndicators([]models.IndicatorConfig{sma(true, 20, "")}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	second := surface.lines["SMA"]
	if second == nil || second == first {
		t.Fatalf("expected a new overlay")
	}
	if len(second.points) != 0 {
		t.Fatalf("new overlay carries old points")
	}
}

func TestRecolorKeepsPoints(t *testing.T) {
	surface := newFakeSurface()
	m := NewOverlayManager(surface, catalogue.Default(), nil)
	_ = m.SetIndicators([]models.IndicatorConfig{sma(true, 20, "#111111")})
	_, _ = m.RouteIndicatorValue("SMA", models.Scalar(10), ts(100))

	if err := m.SetIndicators([]models.IndicatorConfig{sma(true, 30, "#222222")}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	line := surface.lines["SMA"]
	if surface.added != 1 || line.color != "#222222" || len(line.points) != 1 {
		t.Fatalf("unexpected overlay after edit: added=%d color=%s points=%d", surface.added, line.color, len(line.points))
	}
}

func TestMultiComponentPlotsPrimary(t *testing.T) {
	surface := newFakeSurface()
	cat := catalogue.Default()
	m := NewOverlayManager(surface, cat, nil)
	if err := m.SetIndicators([]models.IndicatorConfig{{Type: "BOLL", Enabled: true}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	v := models.IndicatorValue{110, 100, 90}
	if _, err := m.RouteIndicatorValue("BOLL", v, ts(60)); err != nil {
		t.Fatalf("route: %v", err)
	}
	want := v[cat.Primary("BOLL")]
	if got := surface.lines["BOLL"].points[ts(60)]; got != want {
		t.Fatalf("plotted %v, want %v", got, want)
	}
	if _, err := m.RouteIndicatorValue("BOLL", models.IndicatorValue{}, ts(120)); !errors.Is(err, models.ErrMalformedEvent) {
		t.Fatalf("expected malformed error for empty value, got %v", err)
	}
}

func TestSetIndicatorsRejectsInvalidList(t *testing.T) {
	surface := newFakeSurface()
	m := NewOverlayManager(surface, catalogue.Default(), nil)
	_ = m.SetIndicators([]models.IndicatorConfig{sma(true, 20, "")})

	err := m.SetIndicators([]models.IndicatorConfig{sma(true, 20, ""), sma(true, 30, "")})
	if !errors.Is(err, models.ErrDuplicateType) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	err = m.SetIndicators([]models.IndicatorConfig{sma(true, 10000, "")})
	if !errors.Is(err, models.ErrParamOutOfRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	err = m.SetIndicators([]models.IndicatorConfig{{Type: "NOPE", Enabled: true}})
	if !errors.Is(err, models.ErrUnknownIndicator) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	if m.Count() != 1 || len(m.Configs()) != 1 {
		t.Fatalf("rejected list changed state")
	}
}

func TestFailedOverlayRetriedOnNextReconcile(t *testing.T) {
	surface := newFakeSurface()
	surface.addLineErr = errBoom
	m := NewOverlayManager(surface, catalogue.Default(), nil)
	if err := m.SetIndicators([]models.IndicatorConfig{sma(true, 20, "")}); err != nil {
		t.Fatalf("surface failure must not fail reconcile: %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("overlay recorded despite failure")
	}
	surface.addLineErr = nil
	_ = m.SetIndicators(m.Configs())
	if m.Count() != 1 {
		t.Fatalf("overlay not created on retry")
	}
}
