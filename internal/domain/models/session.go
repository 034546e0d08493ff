package models

import "fmt"

// ChartSession identifies one live view: a symbol at a timeframe.
type ChartSession struct {
	Symbol    string
	Timeframe Timeframe
}

// NewSession validates and builds a session.
func NewSession(symbol string, tf Timeframe) (ChartSession, error) {
	s := ChartSession{Symbol: symbol, Timeframe: tf}
	if err := s.Validate(); err != nil {
		return ChartSession{}, err
	}
	return s, nil
}

// Validate checks symbol and timeframe.
func (s ChartSession) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("%w: symbol empty", ErrInvalidSession)
	}
	if !IsValidTimeframe(s.Timeframe) {
		return fmt.Errorf("%w: unsupported timeframe %q", ErrInvalidSession, s.Timeframe)
	}
	return nil
}

// IsZero reports whether no session is set.
func (s ChartSession) IsZero() bool { return s.Symbol == "" && s.Timeframe == "" }

// Key renders the session as "SYMBOL@tf", used for logs, metrics and cache keys.
func (s ChartSession) Key() string { return s.Symbol + "@" + string(s.Timeframe) }

func (s ChartSession) String() string { return s.Key() }
