package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"LiveChart/internal/domain/models"
	"LiveChart/internal/service/surface"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func TestHubSendsSnapshotThenUpdates(t *testing.T) {
	model := surface.NewModel()
	hub := NewHub(nil, model.Snapshot)
	model.Subscribe(hub)
	model.SetBars(models.ChartSession{Symbol: "AAPL", Timeframe: models.TF1m}, nil)

	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Type string           `json:"type"`
		Data surface.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || first.Data.Symbol != "AAPL" {
		t.Fatalf("unexpected first message %+v", first)
	}

	model.UpdateBar(models.Candle{OpenTime: time.Unix(60, 0), Open: 1, High: 1, Low: 1, Close: 1})

	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read update: %v", err)
	}
	var u surface.Update
	if err := json.Unmarshal(b, &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Type != surface.UpdateBar || u.Bar == nil || u.Bar.Time != 60 {
		t.Fatalf("unexpected update %+v", u)
	}
}

type wsMessage struct {
	Type    string           `json:"type"`
	Version uint64           `json:"version"`
	Bar     *surface.Bar     `json:"bar"`
	Data    surface.Snapshot `json:"data"`
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestHubUpdateDuringSnapshotFollowsSnapshot(t *testing.T) {
	model := surface.NewModel()
	bar := models.Candle{OpenTime: time.Unix(60, 0), Open: 1, High: 2, Low: 1, Close: 2}
	hub := NewHub(nil, func() surface.Snapshot {
		s := model.Snapshot()
		model.UpdateBar(bar)
		return s
	})
	model.Subscribe(hub)
	model.SetBars(models.ChartSession{Symbol: "AAPL", Timeframe: models.TF1m}, nil)

	conn := dialHub(t, hub)

	var first, second wsMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if first.Type != "snapshot" || first.Data.Version != 1 {
		t.Fatalf("first message = %s v%d, want snapshot v1", first.Type, first.Data.Version)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if second.Type != surface.UpdateBar || second.Version != 2 || second.Bar == nil || second.Bar.Time != 60 {
		t.Fatalf("second message = %+v, want bar v2 at t=60", second)
	}
}

func TestHubDropsUpdatesCoveredBySnapshot(t *testing.T) {
	model := surface.NewModel()
	hub := NewHub(nil, func() surface.Snapshot {
		model.UpdateBar(models.Candle{OpenTime: time.Unix(60, 0), Open: 1, High: 1, Low: 1, Close: 1})
		return model.Snapshot()
	})
	model.Subscribe(hub)
	model.SetBars(models.ChartSession{Symbol: "AAPL", Timeframe: models.TF1m}, nil)

	conn := dialHub(t, hub)

	var first wsMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || len(first.Data.Bars) != 1 {
		t.Fatalf("snapshot = %+v, want one bar", first)
	}

	model.UpdateBar(models.Candle{OpenTime: time.Unix(120, 0), Open: 1, High: 1, Low: 1, Close: 1})

	var next wsMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if next.Type != surface.UpdateBar || next.Bar == nil || next.Bar.Time != 120 {
		t.Fatalf("next message = %+v, want bar at t=120", next)
	}
}
