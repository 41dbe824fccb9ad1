package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/employee"
)

type EmployeeRepository struct {
	pool *pgxpool.Pool
}

var _ employee.Repository = (*EmployeeRepository)(nil)

func NewEmployeeRepository(pool *pgxpool.Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create assigns e.ID. The unique index on lower(email) is the last line of
// defence against two racing creates with the same email.
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) error {
	const sql = `
		INSERT INTO employees (first_name, last_name, email, department_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := executor(ctx, r.pool).QueryRow(ctx, sql,
		e.FirstName, e.LastName, e.Email, e.DepartmentID, e.CreatedAt).Scan(&e.ID)
	if isUniqueViolation(err) {
		return apperrors.Duplicate("employee with email %s already exists", e.Email)
	}
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, first_name, last_name, email, department_id, created_at`

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	e := &employee.Employee{}
	if err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.DepartmentID, &e.CreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*employee.Employee, error) {
	e, err := scanEmployee(executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("employee %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*employee.Employee, error) {
	e, err := scanEmployee(executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("employee with email %s", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get employee by email: %w", err)
	}
	return e, nil
}

// Update writes every mutable column. created_at is read back into e.
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) error {
	const sql = `
		UPDATE employees
		SET first_name = $2, last_name = $3, email = $4, department_id = $5
		WHERE id = $1
		RETURNING created_at
	`

	err := executor(ctx, r.pool).QueryRow(ctx, sql,
		e.ID, e.FirstName, e.LastName, e.Email, e.DepartmentID).Scan(&e.CreatedAt)
	if isUniqueViolation(err) {
		return apperrors.Duplicate("employee with email %s already exists", e.Email)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("employee %d", e.ID)
	}
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}

func (r *EmployeeRepository) ListByDepartment(ctx context.Context, departmentID int64) ([]*employee.Employee, error) {
	rows, err := executor(ctx, r.pool).Query(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE department_id = $1 ORDER BY id`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("query employees by department: %w", err)
	}
	defer rows.Close()

	var out []*employee.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := executor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM employees WHERE lower(email) = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check employee email: %w", err)
	}
	return exists, nil
}

func (r *EmployeeRepository) Delete(ctx context.Context, id int64) error {
	tag, err := executor(ctx, r.pool).Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("employee %d", id)
	}
	return nil
}

func (r *EmployeeRepository) CountByDepartment(ctx context.Context, departmentID int64) (int64, error) {
	var n int64
	err := executor(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM employees WHERE department_id = $1`, departmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count employees by department: %w", err)
	}
	return n, nil
}
