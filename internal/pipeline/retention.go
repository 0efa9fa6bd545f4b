package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/finsight/stocknews/internal/metrics"
	"github.com/finsight/stocknews/internal/news"
)

// Retention removes documents and audit rows older than their configured
// windows. Only rows strictly older than the cutoff are removed.
type Retention struct {
	store     news.Store
	audit     news.AuditLog
	newsDays  int
	auditDays int
	clock     news.Clock
	logger    *zap.Logger
}

// NewRetention builds a retention job. Day counts at or below zero fall
// back to two years for news and one year for audit rows.
func NewRetention(store news.Store, audit news.AuditLog, newsDays, auditDays int, clock news.Clock, logger *zap.Logger) *Retention {
	if newsDays <= 0 {
		newsDays = 730
	}
	if auditDays <= 0 {
		auditDays = 365
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retention{
		store:     store,
		audit:     audit,
		newsDays:  newsDays,
		auditDays: auditDays,
		clock:     clock,
		logger:    logger,
	}
}

// Run performs one retention sweep. A failure on one target does not stop
// the other; the first error is returned.
func (r *Retention) Run(ctx context.Context) (docsDeleted, auditDeleted int64, err error) {
	now := r.clock.Now()

	docsDeleted, docErr := r.store.DeleteOlderThan(ctx, now.AddDate(0, 0, -r.newsDays))
	if docErr != nil {
		r.logger.Error("delete expired documents", zap.Error(docErr))
		err = docErr
	}
	metrics.ObserveRetention("documents", docsDeleted)

	auditDeleted, auditErr := r.audit.DeleteOlderThan(ctx, now.AddDate(0, 0, -r.auditDays))
	if auditErr != nil {
		r.logger.Error("delete expired audit rows", zap.Error(auditErr))
		if err == nil {
			err = auditErr
		}
	}
	metrics.ObserveRetention("audit", auditDeleted)

	r.logger.Info("retention sweep finished",
		zap.Int64("documents_deleted", docsDeleted),
		zap.Int64("audit_deleted", auditDeleted))
	return docsDeleted, auditDeleted, err
}
