// Package server runs the chart service: the chart runtime, the position poller, the
// websocket hub and the HTTP server, with ordered shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LiveChart/internal/domain/models"
	"LiveChart/internal/handler/ws"
	"LiveChart/internal/service/positions"
	"LiveChart/internal/usecase"
	xhttp "LiveChart/pkg/http"
	applogger "LiveChart/pkg/logger"

	"github.com/hashicorp/go-multierror"
)

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	chart      *usecase.Chart
	hub        *ws.Hub
	poller     *positions.Poller
	httpServer *xhttp.Server

	initial         models.ChartSession
	indicators      []models.IndicatorConfig
	shutdownTimeout time.Duration
}

// Options are the startup settings of an App.
type Options struct {
	Session         models.ChartSession
	Indicators      []models.IndicatorConfig
	ShutdownTimeout time.Duration
}

// New creates a new App. poller may be nil.
func New(
	log *applogger.Logger,
	chart *usecase.Chart,
	hub *ws.Hub,
	poller *positions.Poller,
	httpServer *xhttp.Server,
	opts Options,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &App{
		log:             log,
		chart:           chart,
		hub:             hub,
		poller:          poller,
		httpServer:      httpServer,
		initial:         opts.Session,
		indicators:      opts.Indicators,
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// Start applies the configured indicators, starts the chart on the initial session and then
// the poller and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if len(a.indicators) > 0 {
		if err := a.chart.SetIndicators(a.indicators); err != nil {
			return fmt.Errorf("initial indicators: %w", err)
		}
	}
	if err := a.chart.Start(ctx, a.initial); err != nil {
		return fmt.Errorf("start chart: %w", err)
	}
	a.log.Info("chart started",
		applogger.String("chart", a.chart.ID()),
		applogger.String("session", a.initial.Key()),
		applogger.Int("indicators", len(a.indicators)),
	)
	if a.poller != nil {
		a.poller.Start()
	}
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("start http: %w", err)
		}
	}
	return nil
}

// Run starts the application and blocks until ctx is done or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return multierror.Append(err, a.Shutdown(context.Background())).ErrorOrNil()
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops components in reverse start order and collects every failure.
func (a *App) Shutdown(ctx context.Context) error {
	var result error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.poller != nil {
		if err := a.poller.Stop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("positions poller: %w", err))
		}
	}
	if err := a.chart.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("chart: %w", err))
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if result != nil {
		a.log.Warn("shutdown finished with errors", applogger.Error(result))
		return result
	}
	a.log.Info("shutdown complete")
	return nil
}
