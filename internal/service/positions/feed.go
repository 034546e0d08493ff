// Package positions polls an external position feed and hands the open positions to a chart.
package positions

import (
	"context"
	"fmt"
	"strings"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	pkghttp "LiveChart/pkg/http"
	"LiveChart/pkg/util"
)

type restPosition struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entryPrice"`
	OpenedAt   string  `json:"openedAt"`
}

// RESTFeed reads open positions from GET <url> -> [{"symbol","side","entryPrice","openedAt"}].
// openedAt is RFC3339 or a unix timestamp in seconds or milliseconds.
type RESTFeed struct {
	client *pkghttp.Client
	url    string
}

var _ drepo.PositionFeed = (*RESTFeed)(nil)

func NewRESTFeed(client *pkghttp.Client, url string) *RESTFeed {
	return &RESTFeed{client: client, url: url}
}

// Positions fetches and converts the feed. Rows with an unknown side or an unparseable time
// fail the whole fetch.
func (f *RESTFeed) Positions(ctx context.Context) ([]models.Position, error) {
	var rows []restPosition
	if err := f.client.GetJSON(ctx, f.url, nil, &rows); err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	out := make([]models.Position, 0, len(rows))
	for i, r := range rows {
		side := models.Side(strings.ToLower(r.Side))
		if side != models.SideLong && side != models.SideShort {
			return nil, fmt.Errorf("positions[%d]: unknown side %q", i, r.Side)
		}
		openedAt, ok := util.ParseTime(r.OpenedAt)
		if !ok {
			return nil, fmt.Errorf("positions[%d]: bad openedAt %q", i, r.OpenedAt)
		}
		out = append(out, models.Position{
			Symbol:     r.Symbol,
			Side:       side,
			EntryPrice: r.EntryPrice,
			OpenedAt:   openedAt.UTC(),
		})
	}
	return out, nil
}
