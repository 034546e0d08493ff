package repository

import (
	"context"
	"strconv"
	"time"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	"LiveChart/pkg/cache"
	applogger "LiveChart/pkg/logger"
)

// CachedSeedSource serves seed candles from a cache, falling back to the wrapped source.
// Cache failures are logged and never fail the seed.
type CachedSeedSource struct {
	next drepo.SeedSource
	c    cache.Service
	ttl  time.Duration
	l    *applogger.Logger
}

var _ drepo.SeedSource = (*CachedSeedSource)(nil)

func NewCachedSeedSource(next drepo.SeedSource, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedSeedSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedSeedSource{next: next, c: c, ttl: ttl, l: l}
}

func (s *CachedSeedSource) GetCandles(ctx context.Context, sess models.ChartSession, limit int) ([]models.Candle, error) {
	key := cache.Key("seed", sess.Symbol, string(sess.Timeframe), strconv.Itoa(limit))
	cached, err := cache.GetJSON[[]models.Candle](ctx, s.c, key)
	if err == nil {
		return cached, nil
	}
	if !cache.IsMiss(err) {
		s.l.Warn("seed cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	candles, err := s.next.GetCandles(ctx, sess, limit)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.c, key, candles, s.ttl); err != nil {
		s.l.Warn("seed cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return candles, nil
}
