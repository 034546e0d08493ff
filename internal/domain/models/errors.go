package models

import "errors"

var (
	ErrInvalidSession    = errors.New("invalid chart session")
	ErrMalformedEvent    = errors.New("malformed event")
	ErrStaleEvent        = errors.New("event for inactive session")
	ErrOutOfOrder        = errors.New("candle older than history")
	ErrUnknownIndicator  = errors.New("unknown indicator type")
	ErrParamOutOfRange   = errors.New("indicator parameter out of range")
	ErrDuplicateType     = errors.New("duplicate indicator type")
	ErrInvalidColor      = errors.New("invalid indicator color")
	ErrIndicatorNotFound = errors.New("indicator not configured")
	ErrChartClosed       = errors.New("chart closed")
)
