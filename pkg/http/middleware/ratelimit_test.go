package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type countLimiter struct{ left int }

func (l *countLimiter) Allow(string) bool {
	if l.left == 0 {
		return false
	}
	l.left--
	return true
}

func TestRateLimitWrites(t *testing.T) {
	e := echo.New()
	e.Use(RateLimitWrites(&countLimiter{left: 1}))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/x", ok)
	e.PUT("/x", ok)

	do := func(method string) int {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(method, "/x", nil))
		return rec.Code
	}

	if code := do(http.MethodPut); code != http.StatusNoContent {
		t.Fatalf("first write = %d", code)
	}
	if code := do(http.MethodPut); code != http.StatusTooManyRequests {
		t.Fatalf("second write = %d, want 429", code)
	}
	if code := do(http.MethodGet); code != http.StatusNoContent {
		t.Fatalf("reads must not be limited, got %d", code)
	}
}
