package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/project"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

var _ project.Repository = (*ProjectRepository)(nil)

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	const sql = `
		INSERT INTO projects (code, name, description, status, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := executor(ctx, r.pool).QueryRow(ctx, sql,
		p.Code, p.Name, nullIfEmptyText(p.Description), p.Status, p.StartDate, p.EndDate).Scan(&p.ID)
	if isUniqueViolation(err) {
		return apperrors.Duplicate("project with code %s already exists", p.Code)
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*project.Project, error) {
	const sql = `
		SELECT id, code, name, COALESCE(description, ''), status, start_date, end_date
		FROM projects
		WHERE id = $1
	`

	p := &project.Project{}
	err := executor(ctx, r.pool).QueryRow(ctx, sql, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Status, &p.StartDate, &p.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("project %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := executor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check project code: %w", err)
	}
	return exists, nil
}

type MemberRepository struct {
	pool *pgxpool.Pool
}

var _ project.MemberRepository = (*MemberRepository)(nil)

func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

func (r *MemberRepository) Add(ctx context.Context, m *project.Member) error {
	const sql = `
		INSERT INTO project_members (project_id, employee_id, role, allocation_percent, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := executor(ctx, r.pool).QueryRow(ctx, sql,
		m.ProjectID, m.EmployeeID, m.Role, m.AllocationPercent, m.AssignedAt).Scan(&m.ID)
	if isUniqueViolation(err) {
		return apperrors.Duplicate("employee %d is already a member of project %d", m.EmployeeID, m.ProjectID)
	}
	if err != nil {
		return fmt.Errorf("insert project member: %w", err)
	}
	return nil
}

func (r *MemberRepository) Exists(ctx context.Context, projectID, employeeID int64) (bool, error) {
	var exists bool
	err := executor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM project_members WHERE project_id = $1 AND employee_id = $2)`,
		projectID, employeeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check project member: %w", err)
	}
	return exists, nil
}

func (r *MemberRepository) ListByProject(ctx context.Context, projectID int64) ([]*project.Member, error) {
	const sql = `
		SELECT id, project_id, employee_id, role, allocation_percent, assigned_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY assigned_at ASC
	`

	rows, err := executor(ctx, r.pool).Query(ctx, sql, projectID)
	if err != nil {
		return nil, fmt.Errorf("query project members: %w", err)
	}
	defer rows.Close()

	var members []*project.Member
	for rows.Next() {
		m := &project.Member{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.EmployeeID, &m.Role, &m.AllocationPercent, &m.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *MemberRepository) Remove(ctx context.Context, projectID, employeeID int64) error {
	tag, err := executor(ctx, r.pool).Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND employee_id = $2`, projectID, employeeID)
	if err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("employee %d in project %d", employeeID, projectID)
	}
	return nil
}

func (r *MemberRepository) RemoveByEmployee(ctx context.Context, employeeID int64) (int64, error) {
	tag, err := executor(ctx, r.pool).Exec(ctx, `DELETE FROM project_members WHERE employee_id = $1`, employeeID)
	if err != nil {
		return 0, fmt.Errorf("remove employee memberships: %w", err)
	}
	return tag.RowsAffected(), nil
}
