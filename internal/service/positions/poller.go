package positions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	"LiveChart/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Sink receives the latest position list.
type Sink interface {
	SetPositions(positions []models.Position)
}

// Poller fetches positions on a cron schedule and pushes them to a Sink. A failed fetch keeps
// the previous positions on the chart.
type Poller struct {
	feed    drepo.PositionFeed
	sink    Sink
	log     *logger.Logger
	timeout time.Duration

	cron *cron.Cron
	mu   sync.Mutex
	runs int
}

// NewPoller registers the poll job. schedule accepts six-field cron specs and descriptors
// such as "@every 15s".
func NewPoller(feed drepo.PositionFeed, sink Sink, schedule string, log *logger.Logger) (*Poller, error) {
	if log == nil {
		log = logger.Nop()
	}
	p := &Poller{
		feed:    feed,
		sink:    sink,
		log:     log.With(logger.String("component", "positions")),
		timeout: 10 * time.Second,
		cron:    cron.New(cron.WithSeconds()),
	}
	if _, err := p.cron.AddFunc(schedule, p.Poll); err != nil {
		return nil, fmt.Errorf("register positions poll %q: %w", schedule, err)
	}
	return p, nil
}

// Start polls once, then follows the schedule.
func (p *Poller) Start() {
	p.Poll()
	p.cron.Start()
	p.log.Info("positions poller started")
}

// Stop halts the schedule and waits for a running poll.
func (p *Poller) Stop(ctx context.Context) error {
	done := p.cron.Stop()
	select {
	case <-done.Done():
		p.log.Info("positions poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll fetches once.
func (p *Poller) Poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	p.mu.Lock()
	p.runs++
	p.mu.Unlock()

	positions, err := p.feed.Positions(ctx)
	if err != nil {
		p.log.Warn("positions poll failed", logger.Error(err))
		return
	}
	p.sink.SetPositions(positions)
	p.log.Debug("positions updated", logger.Int("count", len(positions)))
}

// Runs returns how many polls were attempted.
func (p *Poller) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}
