package project

import (
	"context"
	"time"
)

type Status string

const (
	StatusPlanned   Status = "PLANNED"
	StatusActive    Status = "ACTIVE"
	StatusOnHold    Status = "ON_HOLD"
	StatusCompleted Status = "COMPLETED"
)

type Project struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

// Member links an employee owned by the employee service to a project.
type Member struct {
	ID                int64     `json:"id"`
	ProjectID         int64     `json:"projectId"`
	EmployeeID        int64     `json:"employeeId"`
	Role              string    `json:"role"`
	AllocationPercent int       `json:"allocationPercent"`
	AssignedAt        time.Time `json:"assignedAt"`
}

type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id int64) (*Project, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

type MemberRepository interface {
	Add(ctx context.Context, m *Member) error
	Exists(ctx context.Context, projectID, employeeID int64) (bool, error)
	ListByProject(ctx context.Context, projectID int64) ([]*Member, error)
	Remove(ctx context.Context, projectID, employeeID int64) error
	RemoveByEmployee(ctx context.Context, employeeID int64) (int64, error)
}
