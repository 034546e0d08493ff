package di

import (
	"context"
	"fmt"
	"os"

	"LiveChart/internal/domain/catalogue"
	"LiveChart/internal/domain/models"
	"LiveChart/internal/domain/repository"
	"LiveChart/internal/handler/api"
	"LiveChart/internal/handler/ws"
	internalrepo "LiveChart/internal/repository"
	"LiveChart/internal/service/positions"
	"LiveChart/internal/service/ratelimit"
	"LiveChart/internal/service/stream"
	"LiveChart/internal/service/surface"
	"LiveChart/internal/usecase"
	"LiveChart/pkg/cache"
	pkgch "LiveChart/pkg/clickhouse"
	"LiveChart/pkg/config"
	xhttp "LiveChart/pkg/http"
	pkgkafka "LiveChart/pkg/kafka"
	"LiveChart/pkg/logger"
	"LiveChart/pkg/metrics"
	"LiveChart/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideCatalogue() *catalogue.Catalogue {
	return catalogue.Default()
}

func ProvideSurface() *surface.Model {
	return surface.NewModel()
}

// ProvideHub creates the browser push hub and subscribes it to the surface.
func ProvideHub(l *logger.Logger, model *surface.Model) *ws.Hub {
	hub := ws.NewHub(l.With(logger.String("component", "hub")), model.Snapshot)
	model.Subscribe(hub)
	return hub
}

// ProvideTransport builds the configured stream transport. The cleanup closes it.
func ProvideTransport(cfg *config.Config, l *logger.Logger) (repository.StreamTransport, func(), error) {
	tc := cfg.Transport
	switch tc.Type {
	case "kafka":
		groupID := tc.Kafka.Consumer.GroupID
		if groupID == "" {
			host, _ := os.Hostname()
			groupID = "livechart-" + host
		}
		consumer, err := pkgkafka.NewConsumer(l,
			pkgkafka.WithConsumerBrokers(tc.Kafka.Brokers),
			pkgkafka.WithConsumerGroupID(groupID),
			pkgkafka.WithConsumerStartOffset(tc.Kafka.Consumer.StartOffset),
			pkgkafka.WithConsumerRetry(tc.Kafka.Consumer.RetryMax, tc.Kafka.Consumer.BackoffMin, tc.Kafka.Consumer.BackoffMax),
			pkgkafka.WithConsumerDLQ(tc.Kafka.Consumer.DLQTopic),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka consumer: %w", err)
		}
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(tc.Kafka.Brokers),
			pkgkafka.WithCompression(tc.Kafka.Compression),
			pkgkafka.WithRequiredAcks(tc.Kafka.RequiredAcks),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		t := stream.NewKafkaTransport(consumer, producer, tc.Kafka.EventsTopic, tc.Kafka.IntentsTopic, l)
		return t, closeTransport(t, l), nil
	default:
		t := stream.NewWSTransport(tc.WebSocket.URL,
			stream.WithWSHeader(tc.WebSocket.APIKeyHeader, tc.WebSocket.APIKey),
			stream.WithPingInterval(tc.WebSocket.PingInterval),
			stream.WithReconnectDelay(tc.WebSocket.ReconnectDelay),
			stream.WithWSLogger(l.With(logger.String("transport", "websocket"))),
		)
		return t, closeTransport(t, l), nil
	}
}

func closeTransport(t repository.StreamTransport, l *logger.Logger) func() {
	return func() {
		if err := t.Close(); err != nil {
			l.Warn("transport close error", logger.Error(err))
		}
	}
}

// ProvideClickHouseClient connects to ClickHouse when it backs seeding; otherwise nil.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Seed.Type != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(context.Background(), l,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", logger.Error(err))
		}
	}, nil
}

// ProvideSeedCache builds the seed cache; nil when caching is off.
func ProvideSeedCache(cfg *config.Config, l *logger.Logger) (cache.Service, func(), error) {
	cc := cfg.Seed.Cache
	if cfg.Seed.Type == "none" || cc.Type == "none" {
		return nil, func() {}, nil
	}
	var svc cache.Service
	switch cc.Type {
	case "memory":
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(cc.Size), cache.WithMemoryDefaultTTL(cc.TTL))
	case "redis", "layered":
		rc, err := cache.NewRedisCache(context.Background(),
			cache.WithRedisHost(cc.Redis.Host),
			cache.WithRedisPort(cc.Redis.Port),
			cache.WithRedisPassword(cc.Redis.Password),
			cache.WithRedisDB(cc.Redis.DB),
			cache.WithRedisPrefix(cc.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("seed cache: %w", err)
		}
		svc = rc
		if cc.Type == "layered" {
			svc = cache.NewLayeredCache(cache.NewMemoryCache(cache.WithMemoryMaxSize(cc.Size)), rc)
		}
	default:
		return nil, nil, fmt.Errorf("seed cache: unknown type %q", cc.Type)
	}
	l.Info("seed cache ready", logger.String("type", cc.Type))
	return svc, func() {
		if err := svc.Close(); err != nil {
			l.Warn("seed cache close error", logger.Error(err))
		}
	}, nil
}

// ProvideSeedSource assembles the configured seed source, wrapped by the cache when present.
// It returns nil when seeding is off.
func ProvideSeedSource(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *logger.Logger) repository.SeedSource {
	var src repository.SeedSource
	switch cfg.Seed.Type {
	case "rest":
		src = internalrepo.NewRESTSeedSource(xhttp.NewClient(xhttp.WithTimeout(cfg.Seed.Timeout)), cfg.Seed.URL)
	case "clickhouse":
		src = internalrepo.NewCHSeedSource(ch, cfg.ClickHouse.Database, cfg.Seed.Table)
	default:
		return nil
	}
	if c != nil {
		src = internalrepo.NewCachedSeedSource(src, c, cfg.Seed.Cache.TTL, l)
	}
	return src
}

// ProvideChart creates the chart runtime.
func ProvideChart(
	cfg *config.Config,
	transport repository.StreamTransport,
	model *surface.Model,
	m repository.Metrics,
	cat *catalogue.Catalogue,
	seed repository.SeedSource,
	l *logger.Logger,
) *usecase.Chart {
	return usecase.NewChart(transport, model,
		usecase.WithLogger(l),
		usecase.WithMetrics(m),
		usecase.WithCatalogue(cat),
		usecase.WithSeedSource(seed, cfg.Seed.Limit, cfg.Seed.Timeout),
		usecase.WithRetryDelay(cfg.Transport.RetryDelay),
	)
}

// ProvidePositionPoller polls the position feed into the chart; nil without a feed URL.
func ProvidePositionPoller(cfg *config.Config, chart *usecase.Chart, l *logger.Logger) (*positions.Poller, error) {
	if cfg.Positions.URL == "" {
		return nil, nil
	}
	feed := positions.NewRESTFeed(xhttp.NewClient(), cfg.Positions.URL)
	return positions.NewPoller(feed, chart, cfg.Positions.Schedule, l)
}

// ProvideHTTPServer creates the API server with the chart API and the websocket hub.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	chart *usecase.Chart,
	cat *catalogue.Catalogue,
	model *surface.Model,
	hub *ws.Hub,
) *xhttp.Server {
	handlers := xhttp.Handlers{
		api.NewChartHandler(l, chart, cat, model.Snapshot),
		hub,
	}
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.CORSOrigins...),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
	}
	if rl := cfg.Server.RateLimit; rl.Burst > 0 {
		opts = append(opts, xhttp.WithWriteLimiter(ratelimit.New(rl.Burst, rl.PerSecond)))
	}
	return xhttp.NewServer(handlers, l, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	chart *usecase.Chart,
	hub *ws.Hub,
	poller *positions.Poller,
	httpServer *xhttp.Server,
) (*server.App, error) {
	session, err := models.NewSession(cfg.Chart.Symbol, models.Timeframe(cfg.Chart.Timeframe))
	if err != nil {
		return nil, err
	}
	indicators := make([]models.IndicatorConfig, 0, len(cfg.Chart.Indicators))
	for _, ic := range cfg.Chart.Indicators {
		enabled := true
		if ic.Enabled != nil {
			enabled = *ic.Enabled
		}
		indicators = append(indicators, models.IndicatorConfig{
			Type:    models.IndicatorType(ic.Type),
			Enabled: enabled,
			Params:  ic.Params,
			Color:   ic.Color,
		})
	}
	return server.New(l, chart, hub, poller, httpServer, server.Options{
		Session:         session,
		Indicators:      indicators,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}), nil
}
