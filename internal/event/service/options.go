package service

import (
	"log/slog"
	"time"

	eventmetrics "agenda/internal/event/metrics"
)

// Option configures the service.
type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *eventmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the transactional boundary. Defaults to an in-memory lock.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithLifecyclePublisher(p LifecyclePublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}
