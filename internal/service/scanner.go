package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"care-relay/internal/domain"
	"care-relay/internal/metrics"
	"care-relay/internal/repository"
)

// Publisher es el destino de las notificaciones sintetizadas por el escáner.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) PublishResult
}

// ScannerOptions configura el período y el límite de cada consulta.
type ScannerOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Scanner detecta periódicamente recordatorios vencidos y sin confirmar.
// No marca nada como tomado: mientras el recordatorio siga pendiente, cada tick
// vuelve a alertar salvo que la política de dedup lo suprima.
type Scanner struct {
	logger     *zap.Logger
	store      repository.ReminderRepository
	normalizer *Normalizer
	publisher  Publisher
	dedup      DedupPolicy
	metrics    *metrics.Relay
	opts       ScannerOptions
	now        func() time.Time
}

func NewScanner(
	logger *zap.Logger,
	store repository.ReminderRepository,
	normalizer *Normalizer,
	publisher Publisher,
	dedup DedupPolicy,
	m *metrics.Relay,
	opts ScannerOptions,
) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dedup == nil {
		dedup = NewNoDedup()
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Scanner{
		logger:     logger,
		store:      store,
		normalizer: normalizer,
		publisher:  publisher,
		dedup:      dedup,
		metrics:    m,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start ejecuta un tick por período hasta que ctx se cancele. Un tick fallido
// se registra y no detiene los siguientes.
func (s *Scanner) Start(ctx context.Context) error {
	s.logger.Info("missed-reminder scanner started",
		zap.Duration("interval", s.opts.Interval),
		zap.Duration("timeout", s.opts.Timeout),
	)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("missed-reminder scanner stopped")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("scan tick failed", zap.Error(err))
			}
		}
	}
}

// RunOnce ejecuta un tick y devuelve las notificaciones publicadas.
func (s *Scanner) RunOnce(ctx context.Context) ([]domain.Notification, error) {
	started := time.Now()
	due, err := s.findDue(ctx, s.now())
	if err != nil {
		s.metrics.ScanTick("error", time.Since(started).Seconds())
		return nil, &domain.StoreUnavailable{Err: err}
	}

	var published []domain.Notification
	for _, r := range due {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.dedup.ShouldAlert(ctx, r)
		if err != nil {
			s.logger.Warn("dedup check failed, alerting anyway", zap.String("reminder_id", r.ID), zap.Error(err))
		}
		if !ok {
			s.metrics.Suppressed()
			continue
		}

		n, err := s.normalizer.NormalizeReminder(r)
		if err != nil {
			s.metrics.Rejected(string(domain.RawReminderMissed))
			s.logger.Warn("skipping malformed reminder", zap.String("reminder_id", r.ID), zap.Error(err))
			continue
		}
		res := s.publisher.Publish(ctx, n)
		s.metrics.Published(string(n.Kind), "scanner")
		s.logger.Debug("missed reminder published",
			zap.String("reminder_id", r.ID),
			zap.String("patient_id", n.PatientID),
			zap.Int("enqueued", res.Enqueued),
			zap.Int("dropped", res.Dropped),
		)
		published = append(published, n)
	}
	s.dedup.Settle(ctx, due)

	s.metrics.ScanTick("ok", time.Since(started).Seconds())
	s.logger.Debug("scan tick finished", zap.Int("due", len(due)), zap.Int("published", len(published)))
	return published, nil
}

// findDue consulta el store con un límite de tiempo aunque el store ignore ctx.
func (s *Scanner) findDue(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	qctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	type result struct {
		due []domain.Reminder
		err error
	}
	ch := make(chan result, 1)
	go func() {
		due, err := s.store.FindDueUnacknowledged(qctx, now)
		ch <- result{due: due, err: err}
	}()

	select {
	case r := <-ch:
		return r.due, r.err
	case <-qctx.Done():
		return nil, qctx.Err()
	}
}
