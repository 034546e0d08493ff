package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"LiveChart/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics and hands each message to its handler. Messages of one
// topic are handled one at a time in fetch order.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer
	hook     ConsumerHook

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "livechart",
		StartOffset: "latest",
		RetryMax:    0,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		hook:     NoopHook{},
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	initConsumerMetricsOnce()

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	return c, nil
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start creates one reader per registered topic. Calling it twice is a no-op.
func (c *Consumer) Start() error {
	if c.started {
		return nil
	}
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	c.started = true

	start := kafka.LastOffset
	if c.cfg.StartOffset == "earliest" {
		start = kafka.FirstOffset
	}
	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			StartOffset: start,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			MaxWait:     c.cfg.MaxWait,
		})
		c.readers[topic] = reader
		c.wg.Add(1)
		go c.consume(topic, reader)
		c.log.Info("kafka consumer started", logger.String("topic", topic), logger.String("group", c.cfg.GroupID))
	}
	return nil
}

// Stop stops reading and closes readers, waiting for in-flight messages up to ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("close kafka reader failed", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer failed", logger.Error(err))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return stopErr
}

func (c *Consumer) consume(topic string, reader *kafka.Reader) {
	defer c.wg.Done()
	handler := c.handlers[topic]

	for {
		msg, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			if !sleepCtx(c.ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}

		start := time.Now()
		err = c.handle(handler, msg)
		if err != nil {
			c.deadLetter(topic, msg, err)
		}
		// failed messages are committed as well
		if c.cfg.GroupID != "" {
			if cerr := reader.CommitMessages(c.ctx, msg); cerr != nil && c.ctx.Err() == nil {
				c.log.Warn("kafka commit failed", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}
}

// handle runs the handler with retries; panics are reported as errors.
func (c *Consumer) handle(handler MessageHandler, msg kafka.Message) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(handler, msg)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		safeHook(func() { c.hook.OnError(c.ctx, msg.Topic, msg, err) })
		if !sleepCtx(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return err
		}
	}
}

func (c *Consumer) handleOnce(handler MessageHandler, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	ctx := c.ctx
	safeHook(func() { ctx, err = c.hook.BeforeHandle(c.ctx, msg.Topic, msg) })
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = c.ctx
	}
	err = handler.Handle(ctx, msg.Value)
	safeHook(func() { c.hook.AfterHandle(ctx, msg.Topic, msg, err) })
	return err
}

func (c *Consumer) deadLetter(topic string, msg kafka.Message, err error) {
	safeHook(func() { c.hook.OnError(c.ctx, topic, msg, err) })
	consumerErrors.WithLabelValues(topic).Inc()
	if c.dlq == nil {
		c.log.Debug("kafka message dropped", logger.String("topic", topic), logger.Error(err))
		return
	}
	dlqErr := c.dlq.WriteMessages(c.ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}, {Key: "error", Value: []byte(err.Error())}},
	})
	if dlqErr != nil && !errors.Is(dlqErr, context.Canceled) {
		c.log.Warn("write to dlq failed", logger.String("topic", c.cfg.DLQTopic), logger.Error(dlqErr))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerHandleLatency *prometheus.HistogramVec
	consumerErrors        *prometheus.CounterVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "livechart_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
		consumerErrors = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "livechart_kafka_consumer_errors_total", Help: "Messages that failed handling"},
			[]string{"topic"},
		)
	})
}
