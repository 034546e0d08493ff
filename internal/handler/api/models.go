package api

import (
	"time"

	"LiveChart/internal/domain/models"
)

type SessionRequest struct {
	Symbol    string `json:"symbol" validate:"required,max=32"`
	Timeframe string `json:"timeframe" default:"1m" validate:"required,oneof=1m 5m 15m 30m 1h 4h 1d"`
}

// IndicatorDTO is the JSON form of an indicator config.
type IndicatorDTO struct {
	Type    string             `json:"type" validate:"required"`
	Enabled *bool              `json:"enabled,omitempty"`
	Params  map[string]float64 `json:"params,omitempty"`
	Color   string             `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

func (d IndicatorDTO) config() models.IndicatorConfig {
	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}
	return models.IndicatorConfig{
		Type:    models.IndicatorType(d.Type),
		Enabled: enabled,
		Params:  d.Params,
		Color:   d.Color,
	}
}

func toIndicatorDTO(c models.IndicatorConfig) IndicatorDTO {
	enabled := c.Enabled
	return IndicatorDTO{Type: string(c.Type), Enabled: &enabled, Params: c.Params, Color: c.Color}
}

func toIndicatorDTOs(cs []models.IndicatorConfig) []IndicatorDTO {
	out := make([]IndicatorDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, toIndicatorDTO(c))
	}
	return out
}

type SetIndicatorsRequest struct {
	Indicators []IndicatorDTO `json:"indicators" validate:"dive"`
}

type AddIndicatorRequest struct {
	Type string `json:"type" validate:"required"`
}

type UpdateIndicatorRequest struct {
	Type    string             `param:"type" json:"-" validate:"required"`
	Params  map[string]float64 `json:"params"`
	Color   *string            `json:"color" validate:"omitempty,hexcolor"`
	Enabled *bool              `json:"enabled"`
}

type PositionDTO struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Side       string  `json:"side" validate:"required,oneof=long short"`
	EntryPrice float64 `json:"entryPrice" validate:"gt=0"`
	OpenedAt   string  `json:"openedAt" validate:"required"`
}

type SetPositionsRequest struct {
	Positions []PositionDTO `json:"positions" validate:"dive"`
}

type MarkerDTO struct {
	Time  time.Time `json:"time"`
	Side  string    `json:"side"`
	Price float64   `json:"price"`
}

func toMarkerDTOs(ms []models.PositionMarker) []MarkerDTO {
	out := make([]MarkerDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, MarkerDTO{Time: m.Time, Side: string(m.Side), Price: m.Price})
	}
	return out
}
