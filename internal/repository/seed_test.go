package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"LiveChart/internal/domain/models"
	"LiveChart/pkg/cache"
	pkghttp "LiveChart/pkg/http"
)

var aapl1m = models.ChartSession{Symbol: "AAPL", Timeframe: models.TF1m}

func TestRESTSeedSource_GetCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "AAPL" || q.Get("timeframe") != "1m" || q.Get("limit") != "2" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"candles": []map[string]any{
			{"t": 1700000000, "o": 1, "h": 2, "l": 0.5, "c": 1.5, "v": 10},
			{"t": 1700000060000, "o": 1.5, "h": 2, "l": 1, "c": 1.8, "v": 4},
		}})
	}))
	defer srv.Close()

	src := NewRESTSeedSource(pkghttp.NewClient(pkghttp.WithTimeout(time.Second)), srv.URL)
	got, err := src.GetCandles(context.Background(), aapl1m, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 candles, got %d", len(got))
	}
	// 1700000000 is 20s into its minute
	if !got[0].OpenTime.Equal(time.Unix(1699999980, 0)) {
		t.Fatalf("open time not aligned to the minute: %v", got[0].OpenTime)
	}
	if !got[1].OpenTime.Equal(time.Unix(1700000040, 0)) || got[1].Close != 1.8 {
		t.Fatalf("unexpected candle %+v", got[1])
	}
}

func TestRESTSeedSource_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewRESTSeedSource(pkghttp.NewClient(), srv.URL)
	if _, err := src.GetCandles(context.Background(), aapl1m, 10); err == nil {
		t.Fatalf("want error on 502")
	}
}

type countingSeed struct {
	calls   int
	candles []models.Candle
	err     error
}

func (c *countingSeed) GetCandles(ctx context.Context, s models.ChartSession, limit int) ([]models.Candle, error) {
	c.calls++
	return c.candles, c.err
}

func TestCachedSeedSource(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	base := time.Unix(1700000000, 0).UTC()
	inner := &countingSeed{candles: []models.Candle{{OpenTime: base, Open: 1, High: 2, Low: 1, Close: 2, Volume: 3}}}
	src := NewCachedSeedSource(inner, mc, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := src.GetCandles(ctx, aapl1m, 100)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got) != 1 || !got[0].OpenTime.Equal(base) || got[0].Close != 2 {
			t.Fatalf("unexpected candles %+v", got)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times", inner.calls)
	}

	// a different limit is a different key
	if _, err := src.GetCandles(ctx, aapl1m, 50); err != nil {
		t.Fatalf("get: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner called %d times", inner.calls)
	}
}

func TestCachedSeedSource_ErrorNotCached(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	boom := errors.New("boom")
	inner := &countingSeed{err: boom}
	src := NewCachedSeedSource(inner, mc, time.Minute, nil)

	if _, err := src.GetCandles(context.Background(), aapl1m, 10); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if mc.Len() != 0 {
		t.Fatalf("error result was cached")
	}
}

func TestCHSeedSource_TableAndQuery(t *testing.T) {
	s := &CHSeedSource{database: "market", prefix: "candles_"}
	if got := s.tableFor(models.TF15m); got != "market.candles_15m" {
		t.Fatalf("table %s", got)
	}
	s.database = ""
	if got := s.tableFor(models.TF1d); got != "candles_1d" {
		t.Fatalf("table %s", got)
	}
	want := "SELECT bucket, open, high, low, close, vol FROM market.candles_1m WHERE symbol = ? ORDER BY bucket DESC LIMIT ?"
	if got := latestCandlesQuery("market.candles_1m"); got != want {
		t.Fatalf("query %s", got)
	}
}
