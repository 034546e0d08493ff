package usecase

import (
	"context"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	"LiveChart/pkg/logger"
)

// SubscriptionManager owns the active session of one chart and the subscribe/unsubscribe
// intents sent for it. It is not safe for concurrent use; Chart serializes access.
type SubscriptionManager struct {
	transport drepo.StreamTransport
	log       *logger.Logger

	active           models.ChartSession
	live             bool
	needsResubscribe bool
}

// NewSubscriptionManager creates a manager with no active session.
func NewSubscriptionManager(transport drepo.StreamTransport, log *logger.Logger) *SubscriptionManager {
	if log == nil {
		log = logger.Nop()
	}
	return &SubscriptionManager{transport: transport, log: log}
}

// SetSession supersedes the active session. The old session is unsubscribed before the new one
// is subscribed. When the transport is down the session is only recorded and flagged for
// Resubscribe. Intent failures are logged, never returned.
func (m *SubscriptionManager) SetSession(ctx context.Context, s models.ChartSession) error {
	if err := s.Validate(); err != nil {
		return err
	}
	prev := m.active
	m.active = s

	if !m.transport.IsConnected() {
		m.needsResubscribe = true
		m.log.Info("transport disconnected, session recorded for resubscribe",
			logger.String("session", s.Key()))
		return nil
	}

	if !prev.IsZero() {
		if err := m.transport.Unsubscribe(ctx, prev); err != nil {
			m.log.Warn("unsubscribe failed", logger.String("session", prev.Key()), logger.Error(err))
		}
	}
	m.subscribe(ctx)
	return nil
}

// Resubscribe re-sends the subscribe intent for the active session. Callers invoke it after the
// transport has reconnected.
func (m *SubscriptionManager) Resubscribe(ctx context.Context) error {
	if m.active.IsZero() {
		m.needsResubscribe = false
		return nil
	}
	if !m.transport.IsConnected() {
		m.needsResubscribe = true
		return nil
	}
	if err := m.transport.Subscribe(ctx, m.active); err != nil {
		m.needsResubscribe = true
		return err
	}
	m.needsResubscribe = false
	m.log.Info("resubscribed", logger.String("session", m.active.Key()))
	return nil
}

func (m *SubscriptionManager) subscribe(ctx context.Context) {
	if err := m.transport.Subscribe(ctx, m.active); err != nil {
		m.needsResubscribe = true
		m.log.Warn("subscribe failed", logger.String("session", m.active.Key()), logger.Error(err))
		return
	}
	m.needsResubscribe = false
	m.log.Debug("subscribed", logger.String("session", m.active.Key()))
}

// Close unsubscribes the active session and forgets it.
func (m *SubscriptionManager) Close(ctx context.Context) {
	if m.active.IsZero() {
		return
	}
	if m.transport.IsConnected() {
		if err := m.transport.Unsubscribe(ctx, m.active); err != nil {
			m.log.Warn("unsubscribe on close failed", logger.String("session", m.active.Key()), logger.Error(err))
		}
	}
	m.active = models.ChartSession{}
	m.needsResubscribe = false
}

// Accepts reports whether an event tagged with s belongs to the active session.
func (m *SubscriptionManager) Accepts(s models.ChartSession) bool {
	return !m.active.IsZero() && s == m.active
}

func (m *SubscriptionManager) Active() models.ChartSession { return m.active }

func (m *SubscriptionManager) NeedsResubscribe() bool { return m.needsResubscribe }

// SetLive records transport connectivity. Observational only.
func (m *SubscriptionManager) SetLive(live bool) { m.live = live }

func (m *SubscriptionManager) IsLive() bool { return m.live }
