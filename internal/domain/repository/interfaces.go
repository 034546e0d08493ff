package repository

import (
	"context"
	"time"

	"LiveChart/internal/domain/models"
)

// StreamTransport is the multiplexed market-data connection a chart subscribes through.
type StreamTransport interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, s models.ChartSession) error
	Unsubscribe(ctx context.Context, s models.ChartSession) error
	Read(ctx context.Context) (<-chan models.Event, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Line is a drawable series handle owned by the rendering surface.
type Line interface {
	Update(t time.Time, value float64)
	SetColor(color string)
}

// Surface is the rendering surface a chart draws into.
type Surface interface {
	SetBars(s models.ChartSession, bars []models.Candle)
	UpdateBar(bar models.Candle)
	AddLine(key string, color string) (Line, error)
	RemoveLine(l Line)
	SetMarkers(markers []models.PositionMarker) error
}

// SeedSource provides the initial candle list for a session.
type SeedSource interface {
	GetCandles(ctx context.Context, s models.ChartSession, limit int) ([]models.Candle, error)
}

// PositionFeed returns the current open positions.
type PositionFeed interface {
	Positions(ctx context.Context) ([]models.Position, error)
}

type Metrics interface {
	RecordEvent(kind, outcome string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetOverlays(n int)
	SetLive(live bool)
}
