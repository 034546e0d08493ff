package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"LiveChart/internal/domain/catalogue"
	"LiveChart/internal/domain/models"
	"LiveChart/internal/service/surface"
	"LiveChart/internal/usecase"

	"github.com/labstack/echo/v4"
)

// idleTransport never connects, so session changes only record the active session.
type idleTransport struct{}

func (idleTransport) Connect(context.Context) error                            { return nil }
func (idleTransport) Subscribe(context.Context, models.ChartSession) error     { return nil }
func (idleTransport) Unsubscribe(context.Context, models.ChartSession) error   { return nil }
func (idleTransport) Reconnect(context.Context) error                          { return nil }
func (idleTransport) Close() error                                             { return nil }
func (idleTransport) IsConnected() bool                                        { return false }
func (idleTransport) Read(context.Context) (<-chan models.Event, <-chan error) { return nil, nil }

func newTestServer(t *testing.T) (*echo.Echo, *usecase.Chart) {
	t.Helper()
	model := surface.NewModel()
	chart := usecase.NewChart(idleTransport{}, model)
	t.Cleanup(func() { _ = chart.Close(context.Background()) })
	e := echo.New()
	NewChartHandler(nil, chart, catalogue.Default(), model.Snapshot).RegisterRoutes(e)
	return e, chart
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestChartHandler_Session(t *testing.T) {
	e, chart := newTestServer(t)

	rec := do(e, http.MethodPut, "/api/session", `{"symbol":"AAPL"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var st usecase.ChartStatus
	decodeData(t, rec, &st)
	if st.Symbol != "AAPL" || st.Timeframe != "1m" || !st.NeedsResubscribe {
		t.Fatalf("unexpected status %+v", st)
	}
	if chart.Session().Key() != "AAPL@1m" {
		t.Fatalf("session %s", chart.Session().Key())
	}

	if rec := do(e, http.MethodPut, "/api/session", `{"symbol":"AAPL","timeframe":"7m"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad timeframe: status %d", rec.Code)
	}
	if rec := do(e, http.MethodPut, "/api/session", `{"timeframe":"5m"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing symbol: status %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/chart", "")
	var snap surface.Snapshot
	decodeData(t, rec, &snap)
	if snap.Symbol != "AAPL" || snap.Timeframe != "1m" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestChartHandler_IndicatorLifecycle(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/indicators", `{"type":"SMA"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status %d %s", rec.Code, rec.Body.String())
	}
	var added IndicatorDTO
	decodeData(t, rec, &added)
	if added.Type != "SMA" || added.Params["period"] != 20 || added.Enabled == nil || !*added.Enabled {
		t.Fatalf("unexpected config %+v", added)
	}

	if rec := do(e, http.MethodPost, "/api/indicators", `{"type":"SMA"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/indicators", `{"type":"NOPE"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown: status %d", rec.Code)
	}

	rec = do(e, http.MethodPatch, "/api/indicators/SMA", `{"params":{"period":50},"color":"#123456"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d %s", rec.Code, rec.Body.String())
	}
	var updated IndicatorDTO
	decodeData(t, rec, &updated)
	if updated.Params["period"] != 50 || updated.Color != "#123456" {
		t.Fatalf("unexpected update %+v", updated)
	}

	if rec := do(e, http.MethodPatch, "/api/indicators/SMA", `{"params":{"period":1}}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range: status %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, "/api/indicators/EMA", `{"params":{"period":10}}`); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: status %d", rec.Code)
	}

	if rec := do(e, http.MethodDelete, "/api/indicators/SMA", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/api/indicators/SMA", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status %d", rec.Code)
	}
}

func TestChartHandler_SetIndicatorsAtomic(t *testing.T) {
	e, chart := newTestServer(t)

	rec := do(e, http.MethodPut, "/api/indicators", `{"indicators":[{"type":"EMA"},{"type":"BOLL","color":"#ff0000"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set: status %d %s", rec.Code, rec.Body.String())
	}
	if n := len(chart.Indicators()); n != 2 {
		t.Fatalf("want 2 indicators, got %d", n)
	}

	rec = do(e, http.MethodPut, "/api/indicators", `{"indicators":[{"type":"RSI"},{"type":"RSI"}]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate list: status %d", rec.Code)
	}
	if n := len(chart.Indicators()); n != 2 {
		t.Fatalf("rejected list must not apply, got %d configs", n)
	}

	var list []IndicatorDTO
	decodeData(t, do(e, http.MethodGet, "/api/indicators", ""), &list)
	if len(list) != 2 || list[0].Type != "EMA" || list[1].Type != "BOLL" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestChartHandler_Positions(t *testing.T) {
	e, _ := newTestServer(t)
	do(e, http.MethodPut, "/api/session", `{"symbol":"AAPL","timeframe":"5m"}`)

	body := `{"positions":[
		{"symbol":"AAPL","side":"long","entryPrice":180,"openedAt":"2024-01-02T15:04:05Z"},
		{"symbol":"MSFT","side":"short","entryPrice":410,"openedAt":"1704207845"}]}`
	rec := do(e, http.MethodPut, "/api/positions", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("positions: status %d %s", rec.Code, rec.Body.String())
	}
	var markers []MarkerDTO
	decodeData(t, rec, &markers)
	if len(markers) != 1 || markers[0].Side != "long" || markers[0].Price != 180 {
		t.Fatalf("unexpected markers %+v", markers)
	}

	if rec := do(e, http.MethodPut, "/api/positions", `{"positions":[{"symbol":"AAPL","side":"flat","entryPrice":1,"openedAt":"1"}]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad side: status %d", rec.Code)
	}
	if rec := do(e, http.MethodPut, "/api/positions", `{"positions":[{"symbol":"AAPL","side":"long","entryPrice":1,"openedAt":"yesterday"}]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad time: status %d", rec.Code)
	}
}

func TestChartHandler_Catalogue(t *testing.T) {
	e, _ := newTestServer(t)
	var entries []catalogue.Entry
	decodeData(t, do(e, http.MethodGet, "/api/catalogue", ""), &entries)
	if len(entries) != len(catalogue.Default().Entries()) || entries[0].Type != "SMA" {
		t.Fatalf("unexpected catalogue %+v", entries)
	}
}

func TestChartHandler_ClosedChart(t *testing.T) {
	e, chart := newTestServer(t)
	_ = chart.Close(context.Background())
	if rec := do(e, http.MethodPost, "/api/indicators", `{"type":"SMA"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("closed: status %d", rec.Code)
	}
}

func TestChartHandler_ChartBarsLimit(t *testing.T) {
	snap := surface.Snapshot{
		Version: 9,
		Symbol:  "AAPL",
		Bars:    []surface.Bar{{Time: 60}, {Time: 120}, {Time: 180}, {Time: 240}},
		Lines: []surface.LineSnapshot{{
			Key:    "SMA",
			Points: []surface.Point{{Time: 60, Value: 1}, {Time: 180, Value: 2}, {Time: 240, Value: 3}},
		}},
	}
	e := echo.New()
	NewChartHandler(nil, nil, nil, func() surface.Snapshot { return snap }).RegisterRoutes(e)

	var got surface.Snapshot
	decodeData(t, do(e, http.MethodGet, "/api/chart?bars=2", ""), &got)
	if len(got.Bars) != 2 || got.Bars[0].Time != 180 {
		t.Fatalf("bars = %+v, want last two", got.Bars)
	}
	if pts := got.Lines[0].Points; len(pts) != 2 || pts[0].Time != 180 {
		t.Fatalf("points = %+v, want from t=180", pts)
	}
	if len(snap.Lines[0].Points) != 3 {
		t.Fatalf("source snapshot mutated")
	}

	for _, q := range []string{"", "?bars=abc", "?bars=0", "?bars=10"} {
		var all surface.Snapshot
		decodeData(t, do(e, http.MethodGet, "/api/chart"+q, ""), &all)
		if len(all.Bars) != 4 || len(all.Lines[0].Points) != 3 {
			t.Fatalf("%q: got %d bars, %d points", q, len(all.Bars), len(all.Lines[0].Points))
		}
	}
}
