package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses s (surrounding spaces allowed) or returns def when it is empty or
// not an integer.
func ParseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
