package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	"LiveChart/pkg/kafka"
	"LiveChart/pkg/logger"
)

var errTransportClosed = errors.New("stream transport closed")

type intentPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

type eventConsumer interface {
	RegisterHandler(handler kafka.MessageHandler)
	Start() error
	Stop(ctx context.Context) error
}

// KafkaTransport reads market-data events from a Kafka topic and publishes
// subscribe/unsubscribe intents, keyed by session, to another.
type KafkaTransport struct {
	eventsTopic  string
	intentsTopic string
	consumer     eventConsumer
	producer     intentPublisher
	log          *logger.Logger

	startOnce sync.Once
	startErr  error
	connected atomic.Bool

	subsMu sync.RWMutex
	subs   map[models.ChartSession]struct{}

	events    chan models.Event
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

var (
	_ drepo.StreamTransport = (*KafkaTransport)(nil)
	_ kafka.MessageHandler  = (*KafkaTransport)(nil)
)

// NewKafkaTransport wires a transport over an existing consumer and producer. The transport
// registers itself as the consumer's handler for eventsTopic.
func NewKafkaTransport(consumer eventConsumer, producer intentPublisher, eventsTopic, intentsTopic string, log *logger.Logger) *KafkaTransport {
	if log == nil {
		log = logger.Nop()
	}
	t := &KafkaTransport{
		eventsTopic:  eventsTopic,
		intentsTopic: intentsTopic,
		consumer:     consumer,
		producer:     producer,
		log:          log.With(logger.String("transport", "kafka")),
		subs:         make(map[models.ChartSession]struct{}),
		events:       make(chan models.Event, 1024),
		errs:         make(chan error, 1),
		closed:       make(chan struct{}),
	}
	consumer.RegisterHandler(t)
	return t
}

// Topic implements kafka.MessageHandler.
func (t *KafkaTransport) Topic() string { return t.eventsTopic }

// Handle decodes one message and forwards it when its session is subscribed. Decode errors
// are returned so the consumer can dead-letter the message.
func (t *KafkaTransport) Handle(ctx context.Context, b []byte) error {
	ev, err := DecodeEvent(b)
	if err != nil {
		return err
	}
	if !t.subscribed(ev.Session()) {
		return nil
	}
	select {
	case t.events <- ev:
		return nil
	case <-t.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect starts the consumer.
func (t *KafkaTransport) Connect(ctx context.Context) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}
	t.startOnce.Do(func() {
		t.startErr = t.consumer.Start()
	})
	if t.startErr != nil {
		return fmt.Errorf("stream connect: %w", t.startErr)
	}
	t.connected.Store(true)
	return nil
}

func (t *KafkaTransport) Subscribe(ctx context.Context, s models.ChartSession) error {
	t.subsMu.Lock()
	t.subs[s] = struct{}{}
	t.subsMu.Unlock()
	return t.publish(ctx, NewIntent(IntentSubscribe, s))
}

func (t *KafkaTransport) Unsubscribe(ctx context.Context, s models.ChartSession) error {
	t.subsMu.Lock()
	delete(t.subs, s)
	t.subsMu.Unlock()
	return t.publish(ctx, NewIntent(IntentUnsubscribe, s))
}

func (t *KafkaTransport) publish(ctx context.Context, in Intent) error {
	if !t.connected.Load() {
		return errors.New("stream not connected")
	}
	key := in.Symbol + "@" + in.Timeframe
	if err := t.producer.Publish(ctx, t.intentsTopic, []byte(key), in); err != nil {
		return fmt.Errorf("%s %s: %w", in.Type, key, err)
	}
	return nil
}

func (t *KafkaTransport) subscribed(s models.ChartSession) bool {
	t.subsMu.RLock()
	defer t.subsMu.RUnlock()
	_, ok := t.subs[s]
	return ok
}

// Read returns the shared event channel. The error channel closes when the transport does.
func (t *KafkaTransport) Read(ctx context.Context) (<-chan models.Event, <-chan error) {
	return t.events, t.errs
}

// Reconnect forgets subscriptions and makes sure the consumer is running. The kafka reader
// reconnects to brokers on its own.
func (t *KafkaTransport) Reconnect(ctx context.Context) error {
	t.connected.Store(false)
	t.subsMu.Lock()
	clear(t.subs)
	t.subsMu.Unlock()
	return t.Connect(ctx)
}

// Close stops the consumer and the producer.
func (t *KafkaTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.connected.Store(false)
		close(t.closed)
		if stopErr := t.consumer.Stop(context.Background()); stopErr != nil {
			err = stopErr
		}
		if cerr := t.producer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		close(t.errs)
		t.log.Info("kafka transport closed")
	})
	return err
}

func (t *KafkaTransport) IsConnected() bool { return t.connected.Load() }
