package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/department"
	"staffsync/internal/domain/employee"
	"staffsync/internal/domain/outbox"
	"staffsync/internal/infrastructure/memory"
	"staffsync/internal/pkg/clock"
)

var t0 = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type employeeFixture struct {
	employees *memory.EmployeeRepository
	outbox    *memory.OutboxStore
	idem      *memory.IdempotencyStore
	clock     *clock.MockClock
	create    *CreateEmployee
}

func newEmployeeFixture() *employeeFixture {
	f := &employeeFixture{
		employees: memory.NewEmployeeRepository(),
		outbox:    memory.NewOutboxStore(),
		idem:      memory.NewIdempotencyStore(),
		clock:     clock.NewMockClock(t0),
	}
	f.create = NewCreateEmployee(memory.Transactor{}, f.employees, f.outbox, f.idem, f.clock, zap.NewNop())
	return f
}

func fakeEmployee() CreateEmployeeParams {
	return CreateEmployeeParams{
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Email:     gofakeit.Email(),
	}
}

func (f *employeeFixture) events(t *testing.T) []*outbox.Event {
	t.Helper()
	events, err := f.outbox.List(context.Background(), 0)
	require.NoError(t, err)
	return events
}

func TestCreateEmployee_SameKeyReturnsFirstResource(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	first, created, err := f.create.Execute(ctx, "abc", fakeEmployee())
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.create.Execute(ctx, "abc", fakeEmployee())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	events := f.events(t)
	require.Len(t, events, 1, "a replay emits no event")
	assert.Equal(t, employee.EventCreated, events[0].Type)
	assert.Equal(t, outbox.StatusPending, events[0].Status)
	assert.JSONEq(t, `"`+first.Email+`"`, mustField(t, events[0].Payload, "email"))
}

func TestCreateEmployee_BlankKeyIsNotIdempotent(t *testing.T) {
	f := newEmployeeFixture()

	a, _, err := f.create.Execute(context.Background(), "", fakeEmployee())
	require.NoError(t, err)
	b, _, err := f.create.Execute(context.Background(), "  ", fakeEmployee())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Zero(t, f.idem.Len())
}

func TestCreateEmployee_DuplicateEmail(t *testing.T) {
	f := newEmployeeFixture()
	p := fakeEmployee()

	_, _, err := f.create.Execute(context.Background(), "k1", p)
	require.NoError(t, err)

	_, _, err = f.create.Execute(context.Background(), "k2", p)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateResource)
}

func TestCreateEmployee_Validation(t *testing.T) {
	f := newEmployeeFixture()

	_, _, err := f.create.Execute(context.Background(), "", CreateEmployeeParams{FirstName: "A"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, f.events(t))
}

func TestCreateEmployee_ConcurrentSameKeyCreatesOnce(t *testing.T) {
	f := newEmployeeFixture()
	p := fakeEmployee()

	const n = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _, err := f.create.Execute(context.Background(), "same-key", p)
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrDuplicateResource)
				return
			}
			mu.Lock()
			ids[e.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Len(t, f.events(t), 1)
}

func TestCreateEmployee_BoundResourceGoneCreatesAnew(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	first, _, err := f.create.Execute(ctx, "abc", fakeEmployee())
	require.NoError(t, err)
	require.NoError(t, f.employees.Delete(ctx, first.ID))

	second, created, err := f.create.Execute(ctx, "abc", fakeEmployee())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	bound, _, err := f.idem.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, bound, "first writer keeps the key")
}

type brokenIdempotency struct {
	lookupErr, rememberErr error
}

func (b brokenIdempotency) Lookup(context.Context, string) (int64, bool, error) {
	return 0, false, b.lookupErr
}

func (b brokenIdempotency) Remember(context.Context, string, int64) error { return b.rememberErr }

func TestCreateEmployee_LookupFailureAborts(t *testing.T) {
	f := newEmployeeFixture()
	uc := NewCreateEmployee(memory.Transactor{}, f.employees, f.outbox, brokenIdempotency{lookupErr: errors.New("redis down")}, f.clock, zap.NewNop())

	_, _, err := uc.Execute(context.Background(), "abc", fakeEmployee())
	assert.ErrorContains(t, err, "redis down")
	assert.Empty(t, f.events(t))
}

func TestCreateEmployee_RememberFailureStillReturnsEmployee(t *testing.T) {
	f := newEmployeeFixture()
	uc := NewCreateEmployee(memory.Transactor{}, f.employees, f.outbox, brokenIdempotency{rememberErr: errors.New("redis down")}, f.clock, zap.NewNop())

	e, created, err := uc.Execute(context.Background(), "abc", fakeEmployee())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, e.ID)
}

type failingOutbox struct {
	*memory.OutboxStore
}

func (failingOutbox) Enqueue(context.Context, *outbox.Event) error { return errors.New("outbox full") }

func TestCreateEmployee_EnqueueFailureFailsCreate(t *testing.T) {
	f := newEmployeeFixture()
	uc := NewCreateEmployee(memory.Transactor{}, f.employees, failingOutbox{f.outbox}, f.idem, f.clock, zap.NewNop())

	_, _, err := uc.Execute(context.Background(), "abc", fakeEmployee())
	assert.ErrorContains(t, err, "outbox full")

	_, found, _ := f.idem.Lookup(context.Background(), "abc")
	assert.False(t, found)
}

type stubDepartments struct {
	dept *department.Department
	err  error
}

func (s stubDepartments) Get(context.Context, int64) (*department.Department, error) {
	return s.dept, s.err
}

func TestGetEmployee_EnrichesAndDegrades(t *testing.T) {
	f := newEmployeeFixture()
	dept := int64(4)
	p := fakeEmployee()
	p.DepartmentID = &dept
	e, _, err := f.create.Execute(context.Background(), "", p)
	require.NoError(t, err)

	view, err := NewGetEmployee(f.employees, stubDepartments{dept: &department.Department{ID: 4, Code: "ENG"}}, zap.NewNop()).
		Execute(context.Background(), e.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Department)
	assert.Equal(t, "ENG", view.Department.Code)

	view, err = NewGetEmployee(f.employees, stubDepartments{err: apperrors.ErrRemoteCheckUnavailable}, zap.NewNop()).
		Execute(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Department)
	assert.Equal(t, e.ID, view.ID)

	_, err = NewGetEmployee(f.employees, nil, zap.NewNop()).Execute(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteEmployee_EmitsDeletedEvent(t *testing.T) {
	f := newEmployeeFixture()
	e, _, err := f.create.Execute(context.Background(), "", fakeEmployee())
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	uc := NewDeleteEmployee(memory.Transactor{}, f.employees, f.outbox, f.clock)
	require.NoError(t, uc.Execute(context.Background(), e.ID))

	events := f.events(t)
	require.Len(t, events, 2)
	deleted := events[1]
	assert.Equal(t, employee.EventDeleted, deleted.Type)
	assert.Equal(t, mustField(t, events[0].Payload, "id"), mustField(t, deleted.Payload, "id"))
	assert.Equal(t, e.ID, mustInt(t, deleted.AggregateID))

	assert.ErrorIs(t, uc.Execute(context.Background(), e.ID), apperrors.ErrNotFound)
}

func TestCountEmployees_ByDepartment(t *testing.T) {
	f := newEmployeeFixture()
	dept := int64(2)
	for i := 0; i < 3; i++ {
		p := fakeEmployee()
		p.DepartmentID = &dept
		_, _, err := f.create.Execute(context.Background(), "", p)
		require.NoError(t, err)
	}

	n, err := NewCountEmployees(f.employees).ByDepartment(context.Background(), dept)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestListEmployees_ByDepartmentIsNeverNil(t *testing.T) {
	f := newEmployeeFixture()

	list, err := NewListEmployees(f.employees).ByDepartment(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func (f *employeeFixture) update() *UpdateEmployee {
	return NewUpdateEmployee(memory.Transactor{}, f.employees, f.outbox, f.clock, zap.NewNop())
}

func TestUpdateEmployee_ReplaceAndPatch(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()
	dept := int64(4)
	p := fakeEmployee()
	p.DepartmentID = &dept
	e, _, err := f.create.Execute(ctx, "", p)
	require.NoError(t, err)

	name := "Grace"
	patched, err := f.update().Patch(ctx, e.ID, PatchEmployeeParams{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Grace", patched.FirstName)
	assert.Equal(t, p.Email, patched.Email)
	assert.Equal(t, &dept, patched.DepartmentID)

	replaced, err := f.update().Replace(ctx, e.ID, ReplaceEmployeeParams{FirstName: "Grace", LastName: "Hopper", Email: " grace@example.com "})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", replaced.Email)
	assert.Nil(t, replaced.DepartmentID)
	assert.Equal(t, t0, replaced.CreatedAt)

	stored, err := f.employees.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, replaced, stored)

	events := f.events(t)
	require.Len(t, events, 3)
	assert.Equal(t, employee.EventUpdated, events[2].Type)
	assert.Equal(t, `"grace@example.com"`, mustField(t, events[2].Payload, "email"))
}

func TestUpdateEmployee_EmailOfAnotherEmployeeConflicts(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()
	a, _, err := f.create.Execute(ctx, "", fakeEmployee())
	require.NoError(t, err)
	b, _, err := f.create.Execute(ctx, "", fakeEmployee())
	require.NoError(t, err)

	upper := strings.ToUpper(a.Email)
	_, err = f.update().Patch(ctx, b.ID, PatchEmployeeParams{Email: &upper})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateResource)

	// Changing only the case of one's own email is not a conflict.
	_, err = f.update().Patch(ctx, a.ID, PatchEmployeeParams{Email: &upper})
	require.NoError(t, err)

	assert.Len(t, f.events(t), 3, "a rejected update emits nothing")
}

// lookupMissRepo hides other employees from the email lookup, as a
// concurrent writer that commits after the lookup would.
type lookupMissRepo struct {
	*memory.EmployeeRepository
}

func (lookupMissRepo) GetByEmail(_ context.Context, email string) (*employee.Employee, error) {
	return nil, apperrors.NotFound("employee with email %s", email)
}

func TestUpdateEmployee_StoreBackstopsRacingEmail(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()
	a, _, err := f.create.Execute(ctx, "", fakeEmployee())
	require.NoError(t, err)
	b, _, err := f.create.Execute(ctx, "", fakeEmployee())
	require.NoError(t, err)

	uc := NewUpdateEmployee(memory.Transactor{}, lookupMissRepo{f.employees}, f.outbox, f.clock, zap.NewNop())
	_, err = uc.Replace(ctx, b.ID, ReplaceEmployeeParams{FirstName: "X", LastName: "Y", Email: a.Email})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateResource)

	stored, err := f.employees.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Email, stored.Email)
}

func TestUpdateEmployee_Validation(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	_, err := f.update().Replace(ctx, 1, ReplaceEmployeeParams{FirstName: "A", Email: "a@b.io"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	blank := "  "
	_, err = f.update().Patch(ctx, 1, PatchEmployeeParams{Email: &blank})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.update().Patch(ctx, 99, PatchEmployeeParams{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
