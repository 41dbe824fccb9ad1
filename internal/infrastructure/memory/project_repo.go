package memory

import (
	"context"
	"sort"
	"sync"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/project"
)

type ProjectRepository struct {
	mu   sync.RWMutex
	seq  int64
	byID map[int64]project.Project
}

var _ project.Repository = (*ProjectRepository)(nil)

func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{byID: make(map[int64]project.Project)}
}

func (r *ProjectRepository) Create(_ context.Context, p *project.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.byID {
		if other.Code == p.Code {
			return apperrors.Duplicate("project with code %s already exists", p.Code)
		}
	}
	r.seq++
	p.ID = r.seq
	r.byID[p.ID] = *p
	return nil
}

func (r *ProjectRepository) GetByID(_ context.Context, id int64) (*project.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("project %d", id)
	}
	return &p, nil
}

func (r *ProjectRepository) ExistsByCode(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.byID {
		if p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

type memberKey struct{ projectID, employeeID int64 }

type MemberRepository struct {
	mu      sync.RWMutex
	seq     int64
	members map[memberKey]project.Member
}

var _ project.MemberRepository = (*MemberRepository)(nil)

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{members: make(map[memberKey]project.Member)}
}

func (r *MemberRepository) Add(_ context.Context, m *project.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := memberKey{m.ProjectID, m.EmployeeID}
	if _, ok := r.members[k]; ok {
		return apperrors.Duplicate("employee %d is already a member of project %d", m.EmployeeID, m.ProjectID)
	}
	r.seq++
	m.ID = r.seq
	r.members[k] = *m
	return nil
}

func (r *MemberRepository) Exists(_ context.Context, projectID, employeeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[memberKey{projectID, employeeID}]
	return ok, nil
}

func (r *MemberRepository) ListByProject(_ context.Context, projectID int64) ([]*project.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*project.Member
	for k, m := range r.members {
		if k.projectID == projectID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemberRepository) Remove(_ context.Context, projectID, employeeID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := memberKey{projectID, employeeID}
	if _, ok := r.members[k]; !ok {
		return apperrors.NotFound("employee %d in project %d", employeeID, projectID)
	}
	delete(r.members, k)
	return nil
}

func (r *MemberRepository) RemoveByEmployee(_ context.Context, employeeID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k := range r.members {
		if k.employeeID == employeeID {
			delete(r.members, k)
			n++
		}
	}
	return n, nil
}
