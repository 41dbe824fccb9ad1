package guard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
)

const DefaultTimeout = 3 * time.Second

// ReferenceCounter counts dependents of a parent owned by another service.
type ReferenceCounter interface {
	CountByDepartment(ctx context.Context, departmentID int64) (int64, error)
}

type ReferenceCountConfig struct {
	Policy    Policy
	Timeout   time.Duration
	Dependent string
	Parent    string
}

// ReferenceCountGuard blocks deleting a parent that still has dependents.
// The default policy is FailOpen: an unreachable counter never blocks a delete.
type ReferenceCountGuard struct {
	counter ReferenceCounter
	cfg     ReferenceCountConfig
	log     *zap.Logger
}

func NewReferenceCountGuard(counter ReferenceCounter, cfg ReferenceCountConfig, log *zap.Logger) *ReferenceCountGuard {
	if cfg.Policy == 0 {
		cfg.Policy = FailOpen
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dependent == "" {
		cfg.Dependent = "employee"
	}
	if cfg.Parent == "" {
		cfg.Parent = "department"
	}
	return &ReferenceCountGuard{counter: counter, cfg: cfg, log: log}
}

// Check returns a *apperrors.ConflictError when parentID still has dependents.
func (g *ReferenceCountGuard) Check(ctx context.Context, parentID int64) error {
	const name = "reference_count"

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	count, err := g.counter.CountByDepartment(ctx, parentID)
	if err != nil {
		if g.cfg.Policy.proceed(name) {
			g.log.Warn("reference count unavailable, proceeding",
				zap.Int64("parent_id", parentID),
				zap.String("policy", g.cfg.Policy.String()),
				zap.Error(err),
			)
			checksTotal.WithLabelValues(name, "skipped").Inc()
			return nil
		}
		g.log.Warn("reference count unavailable, rejecting",
			zap.Int64("parent_id", parentID),
			zap.String("policy", g.cfg.Policy.String()),
			zap.Error(err),
		)
		checksTotal.WithLabelValues(name, "rejected").Inc()
		return err
	}

	if count > 0 {
		checksTotal.WithLabelValues(name, "conflict").Inc()
		return &apperrors.ConflictError{Count: count, Dependent: g.cfg.Dependent, Parent: g.cfg.Parent}
	}

	checksTotal.WithLabelValues(name, "passed").Inc()
	return nil
}
