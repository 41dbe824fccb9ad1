package memory

import (
	"context"
	"sync"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/department"
)

type DepartmentRepository struct {
	mu   sync.RWMutex
	seq  int64
	byID map[int64]department.Department
}

var _ department.Repository = (*DepartmentRepository)(nil)

func NewDepartmentRepository() *DepartmentRepository {
	return &DepartmentRepository{byID: make(map[int64]department.Department)}
}

func (r *DepartmentRepository) Create(_ context.Context, d *department.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.byID {
		if other.Code == d.Code {
			return apperrors.Duplicate("department with code %s already exists", d.Code)
		}
	}
	r.seq++
	d.ID = r.seq
	r.byID[d.ID] = *d
	return nil
}

func (r *DepartmentRepository) GetByID(_ context.Context, id int64) (*department.Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("department %d", id)
	}
	return &d, nil
}

func (r *DepartmentRepository) ExistsByCode(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.byID {
		if d.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *DepartmentRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return apperrors.NotFound("department %d", id)
	}
	delete(r.byID, id)
	return nil
}
