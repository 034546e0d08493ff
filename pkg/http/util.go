package http

import (
	"github.com/labstack/echo/v4"

	xutil "LiveChart/pkg/util"
)

// QueryInt reads an integer query parameter, returning def if empty/invalid.
func QueryInt(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}
