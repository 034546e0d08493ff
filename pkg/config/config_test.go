package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimal = `
transport:
  websocket:
    url: ws://upstream/stream
chart:
  symbol: AAPL
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 || c.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("server defaults not applied: %+v", c.Server)
	}
	if c.Transport.Type != "websocket" || c.Transport.WebSocket.PingInterval != 30*time.Second {
		t.Fatalf("transport defaults not applied: %+v", c.Transport)
	}
	if c.Chart.Timeframe != "1m" || c.Seed.Type != "none" || c.Seed.Limit != 500 {
		t.Fatalf("chart/seed defaults not applied: %+v %+v", c.Chart, c.Seed)
	}
	if c.Positions.Schedule != "@every 15s" || c.Transport.Kafka.EventsTopic != "chart.events" {
		t.Fatalf("unexpected defaults %+v %+v", c.Positions, c.Transport.Kafka)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	c, err := Load(writeConfig(t, minimal+`
server:
  port: 9090
chart_extra: ignored
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9090 {
		t.Fatalf("port %d", c.Server.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing symbol":    "transport:\n  websocket:\n    url: ws://x\n",
		"bad timeframe":     minimal + "  timeframe: 7m\n",
		"missing ws url":    "chart:\n  symbol: AAPL\n",
		"kafka no brokers":  "transport:\n  type: kafka\nchart:\n  symbol: AAPL\n",
		"rest seed no url":  minimal + "seed:\n  type: rest\n",
		"bad indicator hex": minimal + "  indicators:\n    - type: SMA\n      color: blue\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("want validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := parse([]byte(minimal))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	env := map[string]string{
		"LIVECHART_TRANSPORT":     "kafka",
		"LIVECHART_KAFKA_BROKERS": "k1:9092, k2:9092,",
		"LIVECHART_PORT":          "7000",
		"LIVECHART_SYMBOL":        "MSFT",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	if err := c.applyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.Transport.Type != "kafka" || strings.Join(c.Transport.Kafka.Brokers, "|") != "k1:9092|k2:9092" {
		t.Fatalf("kafka env not applied: %+v", c.Transport)
	}
	if c.Server.Port != 7000 || c.Chart.Symbol != "MSFT" {
		t.Fatalf("env not applied: port=%d symbol=%s", c.Server.Port, c.Chart.Symbol)
	}

	env["LIVECHART_PORT"] = "x"
	if err := c.applyEnv(lookup); err == nil {
		t.Fatalf("want error for bad port")
	}
}
