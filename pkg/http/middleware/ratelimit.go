package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Limiter decides whether a request from key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// RateLimitWrites throttles mutating requests per client IP. Reads pass through.
func RateLimitWrites(l Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			if !l.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": "Too Many Requests",
				})
			}
			return next(c)
		}
	}
}
