package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	pkgch "LiveChart/pkg/clickhouse"
	applogger "LiveChart/pkg/logger"
)

// CHSeedSource implements SeedSource backed by per-timeframe ClickHouse candle tables.
type CHSeedSource struct {
	db       *sql.DB
	database string
	prefix   string
	l        *applogger.Logger
}

var _ drepo.SeedSource = (*CHSeedSource)(nil)

// NewCHSeedSource reads from <database>.<prefix><timeframe>, e.g. market.candles_1m.
func NewCHSeedSource(ch *pkgch.Client, database, prefix string) *CHSeedSource {
	if prefix == "" {
		prefix = "candles_"
	}
	return &CHSeedSource{db: ch.DB(), database: database, prefix: prefix, l: ch.Logger()}
}

// GetCandles returns the latest limit candles of s in ascending time order.
func (s *CHSeedSource) GetCandles(ctx context.Context, sess models.ChartSession, limit int) ([]models.Candle, error) {
	start := time.Now()
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	table := s.tableFor(sess.Timeframe)
	q := latestCandlesQuery(table)
	rows, err := s.db.QueryContext(ctx, q, sess.Symbol, limit)
	if err != nil {
		s.l.Error("clickhouse seed query error",
			applogger.String("table", table),
			applogger.String("session", sess.Key()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("seed candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, limit)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.OpenTime = sess.Timeframe.BucketStart(c.OpenTime)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	slices.Reverse(out)
	s.l.Debug("clickhouse seed ok",
		applogger.String("table", table),
		applogger.String("session", sess.Key()),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHSeedSource) tableFor(tf models.Timeframe) string {
	name := s.prefix + string(tf)
	if s.database == "" {
		return name
	}
	return s.database + "." + name
}

func latestCandlesQuery(table string) string {
	var b strings.Builder
	b.WriteString("SELECT bucket, open, high, low, close, vol FROM ")
	b.WriteString(table)
	b.WriteString(" WHERE symbol = ? ORDER BY bucket DESC LIMIT ?")
	return b.String()
}
