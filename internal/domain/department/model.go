package department

import "context"

type Department struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	Description  string `json:"description,omitempty"`
	ManagerEmail string `json:"managerEmail,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id int64) (*Department, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Delete(ctx context.Context, id int64) error
}
