package repository

import (
	"context"
	"fmt"
	"strconv"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	pkghttp "LiveChart/pkg/http"
	"LiveChart/pkg/util"
)

type restCandle struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type restCandlesResponse struct {
	Candles []restCandle `json:"candles"`
}

// RESTSeedSource fetches seed candles from an HTTP endpoint:
// GET <url>?symbol=..&timeframe=..&limit=.. -> {"candles":[{"t","o","h","l","c","v"}]}.
// Open times are aligned to the session's bucket start.
type RESTSeedSource struct {
	client *pkghttp.Client
	url    string
}

var _ drepo.SeedSource = (*RESTSeedSource)(nil)

func NewRESTSeedSource(client *pkghttp.Client, url string) *RESTSeedSource {
	return &RESTSeedSource{client: client, url: url}
}

func (s *RESTSeedSource) GetCandles(ctx context.Context, sess models.ChartSession, limit int) ([]models.Candle, error) {
	query := map[string][]string{
		"symbol":    {sess.Symbol},
		"timeframe": {string(sess.Timeframe)},
		"limit":     {strconv.Itoa(limit)},
	}
	var resp restCandlesResponse
	if err := s.client.GetJSON(ctx, s.url, query, &resp); err != nil {
		return nil, fmt.Errorf("seed %s: %w", sess.Key(), err)
	}
	out := make([]models.Candle, 0, len(resp.Candles))
	for _, rc := range resp.Candles {
		out = append(out, models.Candle{
			OpenTime: sess.Timeframe.BucketStart(util.UnixAuto(rc.T)),
			Open:     rc.O,
			High:     rc.H,
			Low:      rc.L,
			Close:    rc.C,
			Volume:   rc.V,
		})
	}
	return out, nil
}
