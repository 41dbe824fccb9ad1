package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/department"
)

type DepartmentRepository struct {
	pool *pgxpool.Pool
}

var _ department.Repository = (*DepartmentRepository)(nil)

func NewDepartmentRepository(pool *pgxpool.Pool) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

func (r *DepartmentRepository) Create(ctx context.Context, d *department.Department) error {
	const sql = `
		INSERT INTO departments (name, code, description, manager_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := executor(ctx, r.pool).QueryRow(ctx, sql,
		d.Name, d.Code, nullIfEmptyText(d.Description), nullIfEmptyText(d.ManagerEmail)).Scan(&d.ID)
	if isUniqueViolation(err) {
		return apperrors.Duplicate("department with code %s already exists", d.Code)
	}
	if err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*department.Department, error) {
	const sql = `
		SELECT id, name, code, COALESCE(description, ''), COALESCE(manager_email, '')
		FROM departments
		WHERE id = $1
	`

	d := &department.Department{}
	err := executor(ctx, r.pool).QueryRow(ctx, sql, id).
		Scan(&d.ID, &d.Name, &d.Code, &d.Description, &d.ManagerEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("department %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	return d, nil
}

func (r *DepartmentRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := executor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM departments WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check department code: %w", err)
	}
	return exists, nil
}

func (r *DepartmentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := executor(ctx, r.pool).Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("department %d", id)
	}
	return nil
}
