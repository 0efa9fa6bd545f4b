package digest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/stocknews/internal/metrics"
	"github.com/finsight/stocknews/internal/news"
)

// Service sends the hourly digest batch. Notification hours are matched in
// a fixed reference timezone so recipients get a stable local schedule.
type Service struct {
	registry news.Registry
	store    news.Store
	mailer   news.Mailer
	audit    news.AuditLog
	builder  *Builder
	ids      news.IDGenerator
	clock    news.Clock
	retry    news.RetryPolicy
	lookback time.Duration
	loc      *time.Location
	logger   *zap.Logger
}

// NewService wires a digest service.
func NewService(
	registry news.Registry,
	store news.Store,
	mailer news.Mailer,
	audit news.AuditLog,
	ids news.IDGenerator,
	clock news.Clock,
	retry news.RetryPolicy,
	lookback time.Duration,
	loc *time.Location,
	logger *zap.Logger,
) (*Service, error) {
	builder, err := NewBuilder()
	if err != nil {
		return nil, err
	}
	if lookback <= 0 {
		lookback = 48 * time.Hour
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		store:    store,
		mailer:   mailer,
		audit:    audit,
		builder:  builder,
		ids:      ids,
		clock:    clock,
		retry:    retry,
		lookback: lookback,
		loc:      loc,
		logger:   logger,
	}, nil
}

// RunHourly delivers digests to every recipient whose notification hour
// matches the current hour in the reference timezone. Per-recipient
// failures are logged and recorded, never propagated.
func (s *Service) RunHourly(ctx context.Context) error {
	now := s.clock.Now().In(s.loc)
	users, err := s.registry.UsersForHour(ctx, now.Hour())
	if err != nil {
		return fmt.Errorf("users for hour %d: %w", now.Hour(), err)
	}
	if len(users) == 0 {
		return nil
	}

	s.logger.Info("digest batch started",
		zap.Int("hour", now.Hour()),
		zap.Int("recipients", len(users)))

	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.sendToUser(ctx, user, now)
	}
	return nil
}

func (s *Service) sendToUser(ctx context.Context, user news.User, now time.Time) {
	var docs []news.Document
	if len(user.Watchlist) > 0 {
		var err error
		docs, err = s.store.Recent(ctx, now.Add(-s.lookback), user.Watchlist)
		if err != nil {
			s.logger.Error("load recent articles",
				zap.String("email", user.Email),
				zap.Error(err))
			s.record(ctx, user, "", 0, err)
			return
		}
	}

	email, err := s.builder.Build(user, docs, now)
	if err != nil {
		s.logger.Error("render digest",
			zap.String("email", user.Email),
			zap.Error(err))
		s.record(ctx, user, "", 0, err)
		return
	}

	err = s.sendWithRetry(ctx, user.Email, email)
	s.record(ctx, user, email.Subject, email.Articles, err)
}

func (s *Service) sendWithRetry(ctx context.Context, to string, email Email) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = s.mailer.Send(ctx, to, email.Subject, email.HTML)
		if lastErr == nil {
			return nil
		}
		if s.retry == nil || !s.retry.ShouldRetry(lastErr, attempt) {
			return lastErr
		}
		s.logger.Warn("digest send failed, retrying",
			zap.String("to", to),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		select {
		case <-time.After(s.retry.Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// record writes one email log row per recipient per digest run.
func (s *Service) record(ctx context.Context, user news.User, subject string, articles int, sendErr error) {
	entry := news.EmailLog{
		Email:    user.Email,
		Subject:  subject,
		Status:   news.EmailSent,
		Articles: articles,
		SentAt:   s.clock.Now(),
	}
	if sendErr != nil {
		entry.Status = news.EmailFailed
		entry.Error = sendErr.Error()
	}
	metrics.ObserveDigestEmail(string(entry.Status))

	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Error("new email log id", zap.Error(err))
		return
	}
	entry.ID = id

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.audit.RecordEmail(recordCtx, entry); err != nil {
		s.logger.Error("record email log",
			zap.String("email", user.Email),
			zap.Error(err))
	}
}
