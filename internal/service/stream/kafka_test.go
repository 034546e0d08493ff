package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"LiveChart/internal/domain/models"
	"LiveChart/pkg/kafka"
)

type published struct {
	topic string
	key   string
	value Intent
}

type fakeProducer struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, key: string(key), value: value.(Intent)})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeConsumer struct {
	handler kafka.MessageHandler
	starts  int
	stopped bool
}

func (c *fakeConsumer) RegisterHandler(h kafka.MessageHandler) { c.handler = h }
func (c *fakeConsumer) Start() error                           { c.starts++; return nil }
func (c *fakeConsumer) Stop(ctx context.Context) error         { c.stopped = true; return nil }

func TestKafkaTransport_IntentsAndFilter(t *testing.T) {
	cons, prod := &fakeConsumer{}, &fakeProducer{}
	tr := NewKafkaTransport(cons, prod, "chart.events", "chart.intents", nil)
	if cons.handler == nil || cons.handler.Topic() != "chart.events" {
		t.Fatalf("transport not registered as handler")
	}
	ctx := context.Background()
	aapl := models.ChartSession{Symbol: "AAPL", Timeframe: models.TF5m}

	if err := tr.Subscribe(ctx, aapl); err == nil {
		t.Fatalf("want error before connect")
	}
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Subscribe(ctx, aapl); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(prod.msgs) != 1 || prod.msgs[0].topic != "chart.intents" || prod.msgs[0].key != "AAPL@5m" || prod.msgs[0].value.Type != IntentSubscribe {
		t.Fatalf("unexpected publish %+v", prod.msgs)
	}

	events, _ := tr.Read(ctx)
	msft, _ := json.Marshal(map[string]any{"type": "candle_complete", "symbol": "MSFT", "timeframe": "5m",
		"candle": map[string]float64{"t": 300, "o": 1, "h": 1, "l": 1, "c": 1, "v": 1}})
	if err := cons.handler.Handle(ctx, msft); err != nil {
		t.Fatalf("handle: %v", err)
	}
	own, _ := json.Marshal(map[string]any{"type": "candle_complete", "symbol": "AAPL", "timeframe": "5m",
		"candle": map[string]float64{"t": 300, "o": 1, "h": 1, "l": 1, "c": 1, "v": 1}})
	if err := cons.handler.Handle(ctx, own); err != nil {
		t.Fatalf("handle: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Session() != aapl {
			t.Fatalf("unexpected session %v", ev.Session())
		}
	case <-time.After(time.Second):
		t.Fatalf("no event")
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %v", ev)
	default:
	}

	if err := cons.handler.Handle(ctx, []byte(`{"type":"x"}`)); !errors.Is(err, models.ErrMalformedEvent) {
		t.Fatalf("want malformed, got %v", err)
	}
}

func TestKafkaTransport_ReconnectAndClose(t *testing.T) {
	cons, prod := &fakeConsumer{}, &fakeProducer{}
	tr := NewKafkaTransport(cons, prod, "e", "i", nil)
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	s := models.ChartSession{Symbol: "AAPL", Timeframe: models.TF1m}
	_ = tr.Subscribe(ctx, s)
	if err := tr.Reconnect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if cons.starts != 1 {
		t.Fatalf("consumer started %d times", cons.starts)
	}
	if tr.subscribed(s) {
		t.Fatalf("subscriptions should be cleared by reconnect")
	}

	_, errs := tr.Read(ctx)
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-errs; ok {
		t.Fatalf("error channel should be closed")
	}
	if !cons.stopped || tr.IsConnected() {
		t.Fatalf("close did not stop the consumer")
	}
	if err := tr.Reconnect(ctx); !errors.Is(err, errTransportClosed) {
		t.Fatalf("want closed error, got %v", err)
	}
}
