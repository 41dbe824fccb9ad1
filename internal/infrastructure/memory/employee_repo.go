package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/employee"
)

type EmployeeRepository struct {
	mu     sync.RWMutex
	seq    int64
	byID   map[int64]employee.Employee
	emails map[string]int64
}

var _ employee.Repository = (*EmployeeRepository)(nil)

func NewEmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{
		byID:   make(map[int64]employee.Employee),
		emails: make(map[string]int64),
	}
}

func (r *EmployeeRepository) Create(_ context.Context, e *employee.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(e.Email)
	if _, ok := r.emails[email]; ok {
		return apperrors.Duplicate("employee with email %s already exists", e.Email)
	}
	r.seq++
	e.ID = r.seq
	r.byID[e.ID] = *e
	r.emails[email] = e.ID
	return nil
}

func (r *EmployeeRepository) GetByID(_ context.Context, id int64) (*employee.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("employee %d", id)
	}
	return &e, nil
}

func (r *EmployeeRepository) GetByEmail(_ context.Context, email string) (*employee.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.emails[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.NotFound("employee with email %s", email)
	}
	e := r.byID[id]
	return &e, nil
}

func (r *EmployeeRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.emails[strings.ToLower(email)]
	return ok, nil
}

// Update replaces every mutable field of the stored employee with e's.
func (r *EmployeeRepository) Update(_ context.Context, e *employee.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[e.ID]
	if !ok {
		return apperrors.NotFound("employee %d", e.ID)
	}
	email := strings.ToLower(e.Email)
	if owner, taken := r.emails[email]; taken && owner != e.ID {
		return apperrors.Duplicate("employee with email %s already exists", e.Email)
	}

	delete(r.emails, strings.ToLower(old.Email))
	e.CreatedAt = old.CreatedAt
	r.byID[e.ID] = *e
	r.emails[email] = e.ID
	return nil
}

func (r *EmployeeRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return apperrors.NotFound("employee %d", id)
	}
	delete(r.byID, id)
	delete(r.emails, strings.ToLower(e.Email))
	return nil
}

func (r *EmployeeRepository) CountByDepartment(_ context.Context, departmentID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, e := range r.byID {
		if e.DepartmentID != nil && *e.DepartmentID == departmentID {
			n++
		}
	}
	return n, nil
}

func (r *EmployeeRepository) ListByDepartment(_ context.Context, departmentID int64) ([]*employee.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*employee.Employee
	for _, e := range r.byID {
		if e.DepartmentID != nil && *e.DepartmentID == departmentID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
