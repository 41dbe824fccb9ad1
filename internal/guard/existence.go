package guard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
)

type ExistenceChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type ExistenceConfig struct {
	Policy  Policy
	Timeout time.Duration
	Entity  string
}

// ExistenceGuard confirms a remote entity exists before a local row links to it.
// The default policy is FailClosed.
type ExistenceGuard struct {
	checker ExistenceChecker
	cfg     ExistenceConfig
	log     *zap.Logger
}

func NewExistenceGuard(checker ExistenceChecker, cfg ExistenceConfig, log *zap.Logger) *ExistenceGuard {
	if cfg.Policy == 0 {
		cfg.Policy = FailClosed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Entity == "" {
		cfg.Entity = "employee"
	}
	return &ExistenceGuard{checker: checker, cfg: cfg, log: log}
}

// Check returns a *apperrors.ReferenceNotFoundError unless id is confirmed.
func (g *ExistenceGuard) Check(ctx context.Context, id int64) error {
	const name = "existence"

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	ok, err := g.checker.Exists(ctx, id)
	if err != nil {
		if g.cfg.Policy.proceed(name) {
			g.log.Warn("existence check unavailable, proceeding",
				zap.String("entity", g.cfg.Entity),
				zap.Int64("id", id),
				zap.Error(err),
			)
			checksTotal.WithLabelValues(name, "skipped").Inc()
			return nil
		}
		g.log.Warn("existence check unavailable, rejecting",
			zap.String("entity", g.cfg.Entity),
			zap.Int64("id", id),
			zap.Error(err),
		)
		checksTotal.WithLabelValues(name, "rejected").Inc()
		return &apperrors.ReferenceNotFoundError{Entity: g.cfg.Entity, ID: id, Cause: err}
	}

	if !ok {
		checksTotal.WithLabelValues(name, "not_found").Inc()
		return &apperrors.ReferenceNotFoundError{Entity: g.cfg.Entity, ID: id}
	}

	checksTotal.WithLabelValues(name, "passed").Inc()
	return nil
}
