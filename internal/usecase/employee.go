package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/department"
	"staffsync/internal/domain/employee"
	"staffsync/internal/domain/idempotency"
	"staffsync/internal/domain/outbox"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/pkg/clock"
)

type CreateEmployee struct {
	txManager   postgres.Transactor
	employees   employee.Repository
	outbox      outbox.Store
	idempotency idempotency.Store
	clock       clock.Clock
	log         *zap.Logger
}

func NewCreateEmployee(
	txManager postgres.Transactor,
	employees employee.Repository,
	outboxStore outbox.Store,
	idem idempotency.Store,
	clk clock.Clock,
	log *zap.Logger,
) *CreateEmployee {
	return &CreateEmployee{
		txManager:   txManager,
		employees:   employees,
		outbox:      outboxStore,
		idempotency: idem,
		clock:       clk,
		log:         log,
	}
}

type CreateEmployeeParams struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	DepartmentID *int64 `json:"departmentId"`
}

// Execute creates an employee unless idempotencyKey is already bound, in which
// case the bound employee is returned as it is now and created is false.
func (uc *CreateEmployee) Execute(ctx context.Context, idempotencyKey string, params CreateEmployeeParams) (*employee.Employee, bool, error) {
	if existing, ok, err := uc.replay(ctx, idempotencyKey); err != nil || ok {
		return existing, false, err
	}

	params.Email = strings.TrimSpace(params.Email)
	if params.FirstName == "" || params.LastName == "" || params.Email == "" {
		return nil, false, apperrors.Invalid("firstName, lastName and email are required")
	}

	exists, err := uc.employees.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return uc.duplicate(ctx, idempotencyKey, params.Email)
	}

	newEmployee := &employee.Employee{
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Email:        params.Email,
		DepartmentID: params.DepartmentID,
		CreatedAt:    uc.clock.Now(),
	}

	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.employees.Create(txCtx, newEmployee); err != nil {
			return err
		}

		evt, err := newOutboxEvent(employee.EventCreated, strconv.FormatInt(newEmployee.ID, 10), newEmployee, newEmployee.CreatedAt)
		if err != nil {
			return err
		}
		return uc.outbox.Enqueue(txCtx, evt)
	})
	if errors.Is(err, apperrors.ErrDuplicateResource) {
		// Lost a race on the email index; a concurrent request may hold our key.
		return uc.duplicate(ctx, idempotencyKey, params.Email)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create employee: %w", err)
	}

	if err := uc.idempotency.Remember(ctx, idempotencyKey, newEmployee.ID); err != nil {
		uc.log.Error("failed to remember idempotency key",
			zap.String("key", idempotencyKey),
			zap.Int64("employee_id", newEmployee.ID),
			zap.Error(err),
		)
	}

	uc.log.Info("employee created", zap.Int64("employee_id", newEmployee.ID))
	return newEmployee, true, nil
}

// replay returns the employee bound to key, if it still exists.
func (uc *CreateEmployee) replay(ctx context.Context, key string) (*employee.Employee, bool, error) {
	id, found, err := uc.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	e, err := uc.employees.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		uc.log.Info("idempotency key bound to a deleted employee, creating anew",
			zap.String("key", key), zap.Int64("employee_id", id))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (uc *CreateEmployee) duplicate(ctx context.Context, key, email string) (*employee.Employee, bool, error) {
	if existing, ok, err := uc.replay(ctx, key); err != nil || ok {
		return existing, false, err
	}
	return nil, false, apperrors.Duplicate("email %s already exists", email)
}

// DepartmentReader resolves department details for display. Failures degrade
// to an employee without department details.
type DepartmentReader interface {
	Get(ctx context.Context, id int64) (*department.Department, error)
}

type EmployeeView struct {
	*employee.Employee
	Department *department.Department `json:"department,omitempty"`
}

type GetEmployee struct {
	employees   employee.Repository
	departments DepartmentReader
	log         *zap.Logger
}

func NewGetEmployee(employees employee.Repository, departments DepartmentReader, log *zap.Logger) *GetEmployee {
	return &GetEmployee{employees: employees, departments: departments, log: log}
}

func (uc *GetEmployee) Execute(ctx context.Context, id int64) (*EmployeeView, error) {
	e, err := uc.employees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &EmployeeView{Employee: e}
	if e.DepartmentID == nil || uc.departments == nil {
		return view, nil
	}

	d, err := uc.departments.Get(ctx, *e.DepartmentID)
	if err != nil {
		uc.log.Warn("department enrichment skipped",
			zap.Int64("employee_id", id),
			zap.Int64("department_id", *e.DepartmentID),
			zap.Error(err),
		)
		return view, nil
	}
	view.Department = d
	return view, nil
}

type DeleteEmployee struct {
	txManager postgres.Transactor
	employees employee.Repository
	outbox    outbox.Store
	clock     clock.Clock
}

func NewDeleteEmployee(txManager postgres.Transactor, employees employee.Repository, outboxStore outbox.Store, clk clock.Clock) *DeleteEmployee {
	return &DeleteEmployee{txManager: txManager, employees: employees, outbox: outboxStore, clock: clk}
}

// Execute deletes the employee and emits employee.deleted in the same transaction.
func (uc *DeleteEmployee) Execute(ctx context.Context, id int64) error {
	return uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		e, err := uc.employees.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := uc.employees.Delete(txCtx, id); err != nil {
			return err
		}

		evt, err := newOutboxEvent(employee.EventDeleted, strconv.FormatInt(id, 10), e, uc.clock.Now())
		if err != nil {
			return err
		}
		return uc.outbox.Enqueue(txCtx, evt)
	})
}

type CountEmployees struct {
	employees employee.Repository
}

func NewCountEmployees(employees employee.Repository) *CountEmployees {
	return &CountEmployees{employees: employees}
}

func (uc *CountEmployees) ByDepartment(ctx context.Context, departmentID int64) (int64, error) {
	return uc.employees.CountByDepartment(ctx, departmentID)
}

type ListEmployees struct {
	employees employee.Repository
}

func NewListEmployees(employees employee.Repository) *ListEmployees {
	return &ListEmployees{employees: employees}
}

func (uc *ListEmployees) ByDepartment(ctx context.Context, departmentID int64) ([]*employee.Employee, error) {
	list, err := uc.employees.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*employee.Employee{}
	}
	return list, nil
}

type UpdateEmployee struct {
	txManager postgres.Transactor
	employees employee.Repository
	outbox    outbox.Store
	clock     clock.Clock
	log       *zap.Logger
}

func NewUpdateEmployee(txManager postgres.Transactor, employees employee.Repository, outboxStore outbox.Store, clk clock.Clock, log *zap.Logger) *UpdateEmployee {
	return &UpdateEmployee{txManager: txManager, employees: employees, outbox: outboxStore, clock: clk, log: log}
}

type ReplaceEmployeeParams struct {
	FirstName    string
	LastName     string
	Email        string
	DepartmentID *int64
}

// PatchEmployeeParams applies only the non-nil fields.
type PatchEmployeeParams struct {
	FirstName    *string
	LastName     *string
	Email        *string
	DepartmentID *int64
}

// Replace overwrites every field; a nil DepartmentID detaches the employee.
func (uc *UpdateEmployee) Replace(ctx context.Context, id int64, params ReplaceEmployeeParams) (*employee.Employee, error) {
	params.Email = strings.TrimSpace(params.Email)
	if params.FirstName == "" || params.LastName == "" || params.Email == "" {
		return nil, apperrors.Invalid("firstName, lastName and email are required")
	}

	return uc.apply(ctx, id, func(e *employee.Employee) {
		e.FirstName = params.FirstName
		e.LastName = params.LastName
		e.Email = params.Email
		e.DepartmentID = params.DepartmentID
	})
}

func (uc *UpdateEmployee) Patch(ctx context.Context, id int64, params PatchEmployeeParams) (*employee.Employee, error) {
	if params.Email != nil {
		email := strings.TrimSpace(*params.Email)
		if email == "" {
			return nil, apperrors.Invalid("email must not be blank")
		}
		params.Email = &email
	}

	return uc.apply(ctx, id, func(e *employee.Employee) {
		if params.FirstName != nil {
			e.FirstName = *params.FirstName
		}
		if params.LastName != nil {
			e.LastName = *params.LastName
		}
		if params.Email != nil {
			e.Email = *params.Email
		}
		if params.DepartmentID != nil {
			e.DepartmentID = params.DepartmentID
		}
	})
}

// apply mutates the stored employee and emits employee.updated in one
// transaction. An email held by another employee is a conflict; the unique
// index catches a concurrent writer that slips past the lookup.
func (uc *UpdateEmployee) apply(ctx context.Context, id int64, mutate func(*employee.Employee)) (*employee.Employee, error) {
	var updated *employee.Employee
	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		e, err := uc.employees.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		oldEmail := e.Email
		mutate(e)

		if !strings.EqualFold(oldEmail, e.Email) {
			other, err := uc.employees.GetByEmail(txCtx, e.Email)
			switch {
			case err == nil && other.ID != id:
				return apperrors.Duplicate("email %s already exists", e.Email)
			case err != nil && !errors.Is(err, apperrors.ErrNotFound):
				return err
			}
		}

		if err := uc.employees.Update(txCtx, e); err != nil {
			return err
		}

		evt, err := newOutboxEvent(employee.EventUpdated, strconv.FormatInt(id, 10), e, uc.clock.Now())
		if err != nil {
			return err
		}
		if err := uc.outbox.Enqueue(txCtx, evt); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("employee updated", zap.Int64("employee_id", id))
	return updated, nil
}
