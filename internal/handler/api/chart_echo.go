package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"LiveChart/internal/domain/catalogue"
	"LiveChart/internal/domain/models"
	"LiveChart/internal/service/surface"
	"LiveChart/internal/usecase"
	xhttp "LiveChart/pkg/http"
	xlogger "LiveChart/pkg/logger"
	"LiveChart/pkg/util"

	"github.com/labstack/echo/v4"
)

// ChartService is the chart surface the HTTP API drives.
type ChartService interface {
	Status() usecase.ChartStatus
	SetSession(ctx context.Context, s models.ChartSession) error
	Indicators() []models.IndicatorConfig
	SetIndicators(configs []models.IndicatorConfig) error
	AddIndicator(t models.IndicatorType) (models.IndicatorConfig, error)
	UpdateIndicator(t models.IndicatorType, params map[string]float64, color *string, enabled *bool) (models.IndicatorConfig, error)
	RemoveIndicator(t models.IndicatorType) error
	SetPositions(positions []models.Position)
	Markers() []models.PositionMarker
}

// ChartHandler serves the chart control and read API.
type ChartHandler struct {
	logger   *xlogger.Logger
	chart    ChartService
	cat      *catalogue.Catalogue
	snapshot func() surface.Snapshot
}

func NewChartHandler(logger *xlogger.Logger, chart ChartService, cat *catalogue.Catalogue, snapshot func() surface.Snapshot) *ChartHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if cat == nil {
		cat = catalogue.Default()
	}
	return &ChartHandler{logger: logger, chart: chart, cat: cat, snapshot: snapshot}
}

func (h *ChartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/chart", h.Chart)
	g.GET("/status", h.Status)
	g.PUT("/session", h.SetSession)
	g.GET("/catalogue", h.Catalogue)
	g.GET("/indicators", h.ListIndicators)
	g.PUT("/indicators", h.SetIndicators)
	g.POST("/indicators", h.AddIndicator)
	g.PATCH("/indicators/:type", h.UpdateIndicator)
	g.DELETE("/indicators/:type", h.RemoveIndicator)
	g.PUT("/positions", h.SetPositions)
}

// Chart returns the visual model. ?bars=N keeps the last N bars and the line points from the
// first kept bar on.
func (h *ChartHandler) Chart(c echo.Context) error {
	return xhttp.SuccessResponse(c, tailSnapshot(h.snapshot(), xhttp.QueryInt(c, "bars", 0)))
}

func tailSnapshot(s surface.Snapshot, n int) surface.Snapshot {
	if n <= 0 || len(s.Bars) <= n {
		return s
	}
	s.Bars = s.Bars[len(s.Bars)-n:]
	from := s.Bars[0].Time
	lines := make([]surface.LineSnapshot, len(s.Lines))
	for i, l := range s.Lines {
		k := 0
		for k < len(l.Points) && l.Points[k].Time < from {
			k++
		}
		l.Points = l.Points[k:]
		lines[i] = l
	}
	s.Lines = lines
	return s
}

func (h *ChartHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.chart.Status())
}

func (h *ChartHandler) SetSession(c echo.Context) error {
	req := &SessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s := models.ChartSession{Symbol: req.Symbol, Timeframe: models.Timeframe(req.Timeframe)}
	if err := h.chart.SetSession(c.Request().Context(), s); err != nil {
		return h.fail(c, "set session", err)
	}
	return xhttp.SuccessResponse(c, h.chart.Status())
}

func (h *ChartHandler) Catalogue(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.cat.Entries())
}

func (h *ChartHandler) ListIndicators(c echo.Context) error {
	return xhttp.SuccessResponse(c, toIndicatorDTOs(h.chart.Indicators()))
}

func (h *ChartHandler) SetIndicators(c echo.Context) error {
	req := &SetIndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	configs := make([]models.IndicatorConfig, 0, len(req.Indicators))
	for _, d := range req.Indicators {
		configs = append(configs, d.config())
	}
	if err := h.chart.SetIndicators(configs); err != nil {
		return h.fail(c, "set indicators", err)
	}
	return xhttp.SuccessResponse(c, toIndicatorDTOs(h.chart.Indicators()))
}

func (h *ChartHandler) AddIndicator(c echo.Context) error {
	req := &AddIndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cfg, err := h.chart.AddIndicator(models.IndicatorType(req.Type))
	if err != nil {
		return h.fail(c, "add indicator", err)
	}
	return xhttp.CreatedResponse(c, toIndicatorDTO(cfg))
}

func (h *ChartHandler) UpdateIndicator(c echo.Context) error {
	req := &UpdateIndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cfg, err := h.chart.UpdateIndicator(models.IndicatorType(req.Type), req.Params, req.Color, req.Enabled)
	if err != nil {
		return h.fail(c, "update indicator", err)
	}
	return xhttp.SuccessResponse(c, toIndicatorDTO(cfg))
}

func (h *ChartHandler) RemoveIndicator(c echo.Context) error {
	if err := h.chart.RemoveIndicator(models.IndicatorType(c.Param("type"))); err != nil {
		return h.fail(c, "remove indicator", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *ChartHandler) SetPositions(c echo.Context) error {
	req := &SetPositionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	positions := make([]models.Position, 0, len(req.Positions))
	for i, p := range req.Positions {
		openedAt, ok := util.ParseTime(p.OpenedAt)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_BAD_REQUEST", fmt.Sprintf("positions[%d].openedAt", i), "openedAt must be RFC3339 or a unix timestamp", http.StatusBadRequest))
		}
		positions = append(positions, models.Position{
			Symbol:     p.Symbol,
			Side:       models.Side(p.Side),
			EntryPrice: p.EntryPrice,
			OpenedAt:   openedAt.UTC(),
		})
	}
	h.chart.SetPositions(positions)
	return xhttp.SuccessResponse(c, toMarkerDTOs(h.chart.Markers()))
}

func (h *ChartHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInvalidSession):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUnknownIndicator),
		errors.Is(err, models.ErrParamOutOfRange),
		errors.Is(err, models.ErrInvalidColor):
		return xhttp.NewAppError("ERR_INVALID_INDICATOR", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrIndicatorNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrDuplicateType):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrChartClosed):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	default:
		return xhttp.InternalErrorf("unexpected error").WithError(err)
	}
}
