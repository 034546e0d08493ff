package usecase

import "LiveChart/internal/domain/models"

// ProjectMarkers maps the positions of symbol to chart markers, keeping input order.
func ProjectMarkers(positions []models.Position, symbol string) []models.PositionMarker {
	markers := make([]models.PositionMarker, 0, len(positions))
	if symbol == "" {
		return markers
	}
	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		markers = append(markers, models.PositionMarker{
			Time:  p.OpenedAt,
			Side:  p.Side,
			Price: p.EntryPrice,
		})
	}
	return markers
}
