package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/employee"
	"staffsync/internal/domain/project"
	"staffsync/internal/pkg/clock"
)

type CreateProject struct {
	projects project.Repository
}

func NewCreateProject(projects project.Repository) *CreateProject {
	return &CreateProject{projects: projects}
}

type CreateProjectParams struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

func (uc *CreateProject) Execute(ctx context.Context, params CreateProjectParams) (*project.Project, error) {
	code := strings.ToUpper(strings.TrimSpace(params.Code))
	if code == "" || strings.TrimSpace(params.Name) == "" {
		return nil, apperrors.Invalid("code and name are required")
	}
	if params.StartDate.IsZero() {
		return nil, apperrors.Invalid("startDate is required")
	}
	if params.EndDate != nil && params.EndDate.Before(params.StartDate) {
		return nil, apperrors.Invalid("endDate must not be before startDate")
	}

	status := project.Status(strings.ToUpper(params.Status))
	switch status {
	case "":
		status = project.StatusPlanned
	case project.StatusPlanned, project.StatusActive, project.StatusOnHold, project.StatusCompleted:
	default:
		return nil, apperrors.Invalid("unknown status %q", params.Status)
	}

	exists, err := uc.projects.ExistsByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Duplicate("project with code %s already exists", code)
	}

	p := &project.Project{
		Code:        code,
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
		Status:      status,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
	}
	if err := uc.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

const maxRoleLength = 50

type AddMember struct {
	projects project.Repository
	members  project.MemberRepository
	guard    LinkGuard
	clock    clock.Clock
	log      *zap.Logger
}

func NewAddMember(projects project.Repository, members project.MemberRepository, guard LinkGuard, clk clock.Clock, log *zap.Logger) *AddMember {
	return &AddMember{projects: projects, members: members, guard: guard, clock: clk, log: log}
}

type AddMemberParams struct {
	EmployeeID        int64  `json:"employeeId"`
	Role              string `json:"role"`
	AllocationPercent int    `json:"allocationPercent"`
}

// Execute links an employee to a project. Nothing is written unless the
// employee service confirms the employee exists.
func (uc *AddMember) Execute(ctx context.Context, projectID int64, params AddMemberParams) (*project.Member, error) {
	if params.EmployeeID <= 0 {
		return nil, apperrors.Invalid("employeeId is required")
	}
	if params.AllocationPercent == 0 {
		params.AllocationPercent = 100
	}
	if params.AllocationPercent < 1 || params.AllocationPercent > 100 {
		return nil, apperrors.Invalid("allocationPercent must be between 1 and 100")
	}
	role := strings.ToUpper(strings.TrimSpace(params.Role))
	if role == "" {
		return nil, apperrors.Invalid("role is required")
	}
	if len(role) > maxRoleLength {
		return nil, apperrors.Invalid("role must be at most %d characters", maxRoleLength)
	}

	if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	if err := uc.guard.Check(ctx, params.EmployeeID); err != nil {
		return nil, err
	}

	exists, err := uc.members.Exists(ctx, projectID, params.EmployeeID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Duplicate("employee %d is already a member of project %d", params.EmployeeID, projectID)
	}

	m := &project.Member{
		ProjectID:         projectID,
		EmployeeID:        params.EmployeeID,
		Role:              role,
		AllocationPercent: params.AllocationPercent,
		AssignedAt:        uc.clock.Now(),
	}
	if err := uc.members.Add(ctx, m); err != nil {
		return nil, err
	}

	uc.log.Info("project member added",
		zap.Int64("project_id", projectID),
		zap.Int64("employee_id", params.EmployeeID),
	)
	return m, nil
}

// MemberResult is the outcome of one item of a batch add. Exactly one of
// Member and Err is set.
type MemberResult struct {
	EmployeeID int64
	Member     *project.Member
	Err        error
}

// ExecuteBatch adds each item independently, so one rejected employee does
// not undo the others. An unknown project fails the whole batch.
func (uc *AddMember) ExecuteBatch(ctx context.Context, projectID int64, items []AddMemberParams) ([]MemberResult, error) {
	if len(items) == 0 {
		return nil, apperrors.Invalid("at least one member is required")
	}
	if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	results := make([]MemberResult, len(items))
	for i, params := range items {
		m, err := uc.Execute(ctx, projectID, params)
		results[i] = MemberResult{EmployeeID: params.EmployeeID, Member: m, Err: err}
	}
	return results, nil
}

// EmployeeReader fetches one employee from the employee service. It returns
// nil, nil when the employee does not exist.
type EmployeeReader interface {
	Get(ctx context.Context, id int64) (*employee.Employee, error)
}

const enrichConcurrency = 8

// EmployeeSnapshot is what a member listing shows of a remote employee.
// Error is set instead of the names when the lookup did not succeed.
type EmployeeSnapshot struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MemberView struct {
	EmployeeID        int64             `json:"employeeId"`
	Employee          *EmployeeSnapshot `json:"employee,omitempty"`
	Role              string            `json:"role"`
	AllocationPercent int               `json:"allocationPercent"`
	AssignedAt        time.Time         `json:"assignedAt"`
}

type ListMembers struct {
	projects  project.Repository
	members   project.MemberRepository
	employees EmployeeReader
	log       *zap.Logger
}

func NewListMembers(projects project.Repository, members project.MemberRepository, employees EmployeeReader, log *zap.Logger) *ListMembers {
	return &ListMembers{projects: projects, members: members, employees: employees, log: log}
}

// Execute lists the members of a project. With enrich, each member carries a
// snapshot from the employee service; a failed lookup degrades that member
// to an error marker and never fails the listing.
func (uc *ListMembers) Execute(ctx context.Context, projectID int64, enrich bool) ([]MemberView, error) {
	if _, err := uc.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	members, err := uc.members.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	views := make([]MemberView, len(members))
	for i, m := range members {
		views[i] = MemberView{
			EmployeeID:        m.EmployeeID,
			Role:              m.Role,
			AllocationPercent: m.AllocationPercent,
			AssignedAt:        m.AssignedAt,
		}
	}
	if !enrich || uc.employees == nil {
		return views, nil
	}

	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i := range views {
		g.Go(func() error {
			views[i].Employee = uc.snapshot(ctx, views[i].EmployeeID)
			return nil
		})
	}
	_ = g.Wait()

	return views, nil
}

func (uc *ListMembers) snapshot(ctx context.Context, id int64) *EmployeeSnapshot {
	e, err := uc.employees.Get(ctx, id)
	if err != nil {
		uc.log.Warn("member enrichment skipped", zap.Int64("employee_id", id), zap.Error(err))
	}
	if err != nil || e == nil {
		return &EmployeeSnapshot{ID: id, Error: "not found"}
	}
	return &EmployeeSnapshot{ID: e.ID, FirstName: e.FirstName, LastName: e.LastName, Email: e.Email}
}

type RemoveMember struct {
	members project.MemberRepository
	log     *zap.Logger
}

func NewRemoveMember(members project.MemberRepository, log *zap.Logger) *RemoveMember {
	return &RemoveMember{members: members, log: log}
}

func (uc *RemoveMember) Execute(ctx context.Context, projectID, employeeID int64) error {
	if err := uc.members.Remove(ctx, projectID, employeeID); err != nil {
		return err
	}
	uc.log.Info("project member removed",
		zap.Int64("project_id", projectID),
		zap.Int64("employee_id", employeeID),
	)
	return nil
}
