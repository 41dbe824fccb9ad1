package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/employee"
	"staffsync/internal/domain/inbox"
	"staffsync/internal/domain/project"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/pkg/clock"
)

// IncomingEvent is an employee event as received from the relay, over HTTP or Kafka.
type IncomingEvent struct {
	ID      string
	Type    string
	Payload []byte
}

// ApplyEmployeeEvent is the subscriber side of the employee outbox. Delivery is
// at least once, so each event id is applied at most once per consumer.
type ApplyEmployeeEvent struct {
	consumer  string
	txManager postgres.Transactor
	inbox     inbox.Repository
	members   project.MemberRepository // nil outside the project service
	clock     clock.Clock
	log       *zap.Logger
}

func NewApplyEmployeeEvent(
	consumer string,
	txManager postgres.Transactor,
	inboxRepo inbox.Repository,
	members project.MemberRepository,
	clk clock.Clock,
	log *zap.Logger,
) *ApplyEmployeeEvent {
	return &ApplyEmployeeEvent{
		consumer:  consumer,
		txManager: txManager,
		inbox:     inboxRepo,
		members:   members,
		clock:     clk,
		log:       log,
	}
}

// Execute reports applied=false for a duplicate delivery.
func (uc *ApplyEmployeeEvent) Execute(ctx context.Context, evt IncomingEvent) (applied bool, err error) {
	if evt.ID == "" || evt.Type == "" {
		return false, apperrors.Invalid("event id and type are required")
	}

	var payload employee.Employee
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return false, apperrors.Invalid("malformed %s payload: %v", evt.Type, err)
	}

	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		saved, err := uc.inbox.SaveIfNotExists(txCtx, &inbox.Event{
			Consumer:   uc.consumer,
			EventID:    evt.ID,
			EventType:  evt.Type,
			ReceivedAt: uc.clock.Now(),
		})
		if err != nil {
			return err
		}
		if !saved {
			return nil
		}
		applied = true

		if evt.Type != employee.EventDeleted || uc.members == nil {
			return nil
		}
		removed, err := uc.members.RemoveByEmployee(txCtx, payload.ID)
		if err != nil {
			return fmt.Errorf("remove memberships of employee %d: %w", payload.ID, err)
		}
		uc.log.Info("memberships removed for deleted employee",
			zap.Int64("employee_id", payload.ID),
			zap.Int64("removed", removed),
		)
		return nil
	})
	if err != nil {
		return false, err
	}

	if !applied {
		uc.log.Debug("duplicate event ignored", zap.String("event_id", evt.ID), zap.String("consumer", uc.consumer))
	}
	return applied, nil
}
