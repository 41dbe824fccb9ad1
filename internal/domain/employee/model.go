package employee

import (
	"context"
	"time"
)

const (
	EventCreated = "employee.created"
	EventUpdated = "employee.updated"
	EventDeleted = "employee.deleted"
)

type Employee struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	DepartmentID *int64    `json:"departmentId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Repository persists employees. Email is unique case-insensitively.
type Repository interface {
	Create(ctx context.Context, e *Employee) error
	GetByID(ctx context.Context, id int64) (*Employee, error)
	GetByEmail(ctx context.Context, email string) (*Employee, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ListByDepartment(ctx context.Context, departmentID int64) ([]*Employee, error)
	Update(ctx context.Context, e *Employee) error
	Delete(ctx context.Context, id int64) error
	CountByDepartment(ctx context.Context, departmentID int64) (int64, error)
}
