package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/department"
	"staffsync/internal/domain/employee"
)

type CreateDepartment struct {
	departments department.Repository
}

func NewCreateDepartment(departments department.Repository) *CreateDepartment {
	return &CreateDepartment{departments: departments}
}

type CreateDepartmentParams struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	Description  string `json:"description"`
	ManagerEmail string `json:"managerEmail"`
}

func (uc *CreateDepartment) Execute(ctx context.Context, params CreateDepartmentParams) (*department.Department, error) {
	code := strings.ToUpper(strings.TrimSpace(params.Code))
	if strings.TrimSpace(params.Name) == "" || code == "" {
		return nil, apperrors.Invalid("name and code are required")
	}

	exists, err := uc.departments.ExistsByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Duplicate("department with code %s already exists", code)
	}

	d := &department.Department{
		Name:         strings.TrimSpace(params.Name),
		Code:         code,
		Description:  params.Description,
		ManagerEmail: params.ManagerEmail,
	}
	if err := uc.departments.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

type GetDepartment struct {
	departments department.Repository
}

func NewGetDepartment(departments department.Repository) *GetDepartment {
	return &GetDepartment{departments: departments}
}

func (uc *GetDepartment) Execute(ctx context.Context, id int64) (*department.Department, error) {
	return uc.departments.GetByID(ctx, id)
}

// EmployeeLister reads the employees another service holds for a department.
type EmployeeLister interface {
	ListByDepartment(ctx context.Context, departmentID int64) ([]*employee.Employee, error)
}

type ListDepartmentEmployees struct {
	departments department.Repository
	employees   EmployeeLister
}

func NewListDepartmentEmployees(departments department.Repository, employees EmployeeLister) *ListDepartmentEmployees {
	return &ListDepartmentEmployees{departments: departments, employees: employees}
}

// Execute answers not found for an unknown department before asking the
// employee service. A remote failure is returned as is.
func (uc *ListDepartmentEmployees) Execute(ctx context.Context, id int64) ([]*employee.Employee, error) {
	if _, err := uc.departments.GetByID(ctx, id); err != nil {
		return nil, err
	}

	list, err := uc.employees.ListByDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*employee.Employee{}
	}
	return list, nil
}

type DeleteDepartment struct {
	departments department.Repository
	guard       DeleteGuard
	log         *zap.Logger
}

func NewDeleteDepartment(departments department.Repository, guard DeleteGuard, log *zap.Logger) *DeleteDepartment {
	return &DeleteDepartment{departments: departments, guard: guard, log: log}
}

// Execute refuses while employees still reference the department. The guard
// decides what happens when the employee service cannot answer.
func (uc *DeleteDepartment) Execute(ctx context.Context, id int64) error {
	if _, err := uc.departments.GetByID(ctx, id); err != nil {
		return err
	}

	if err := uc.guard.Check(ctx, id); err != nil {
		return err
	}

	if err := uc.departments.Delete(ctx, id); err != nil {
		return err
	}
	uc.log.Info("department deleted", zap.Int64("department_id", id))
	return nil
}
