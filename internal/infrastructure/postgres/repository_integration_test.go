//go:build integration

package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	"staffsync/internal/domain/employee"
	"staffsync/internal/domain/inbox"
	"staffsync/internal/domain/outbox"
	"staffsync/internal/domain/project"
)

// setupServiceDB starts a throwaway container and applies the migrations of service.
func setupServiceDB(t *testing.T, service string) *pgxpool.Pool {
	t.Helper()

	pool := startDB(t)
	require.NoError(t, Migrate(pool, service, zap.NewNop()))
	// A second run is a no-op.
	require.NoError(t, Migrate(pool, service, zap.NewNop()))

	return pool
}

func startDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestIntegration_Migrate_ServicesShareOneDatabase(t *testing.T) {
	pool := startDB(t)
	ctx := context.Background()

	for _, service := range Services {
		require.NoError(t, Migrate(pool, service, zap.NewNop()), service)
	}

	for _, table := range []string{"employees", "outbox_events", "idempotency_records", "departments", "projects", "project_members", "inbox_events"} {
		var exists bool
		require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('public.' || $1) IS NOT NULL`, table).Scan(&exists))
		assert.True(t, exists, "table %s", table)
	}

	var claimColumn bool
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM information_schema.columns
		WHERE table_name = 'outbox_events' AND column_name = 'claim_token')`).Scan(&claimColumn))
	assert.True(t, claimColumn)
}

func TestIntegration_Outbox_ClaimLeaseAndTerminalSent(t *testing.T) {
	pool := setupServiceDB(t, "employee")
	repo := NewOutboxRepository(pool)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	first := outbox.NewEvent(uuid.NewString(), employee.EventCreated, "1", []byte(`{"id":1}`), t0)
	second := outbox.NewEvent(uuid.NewString(), employee.EventCreated, "2", []byte(`{"id":2}`), t0.Add(time.Millisecond))
	require.NoError(t, repo.Enqueue(ctx, first))
	require.NoError(t, repo.Enqueue(ctx, second))

	claimed, err := repo.ClaimDue(ctx, t0.Add(time.Second), 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, first.ID, claimed[0].ID)
	token := claimed[0].ClaimToken
	require.NotEmpty(t, token)
	assert.Equal(t, token, claimed[1].ClaimToken)
	assert.Nil(t, claimed[0].NextAttemptAt, "claim returns the schedule before leasing")
	assert.JSONEq(t, `{"id":1}`, string(claimed[0].Payload))

	again, err := repo.ClaimDue(ctx, t0.Add(time.Second), 10, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, again, "leased events are not claimable")

	require.NoError(t, repo.MarkSent(ctx, first.ID, token, t0.Add(time.Second)))
	err = repo.MarkFailed(ctx, first.ID, token, 1, t0.Add(2*time.Second), t0.Add(4*time.Second), "late")
	assert.ErrorIs(t, err, outbox.ErrClaimLost)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusSent, got.Status)
	assert.Nil(t, got.NextAttemptAt)
	assert.Zero(t, got.AttemptCount)

	require.NoError(t, repo.MarkFailed(ctx, second.ID, token, 1, t0.Add(time.Second), t0.Add(3*time.Second), "boom"))
	got, err = repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusFailed, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, "boom", got.LastError)

	_, err = repo.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, outbox.ErrEventNotFound)
	assert.ErrorIs(t, repo.MarkSent(ctx, uuid.NewString(), token, t0), outbox.ErrEventNotFound)

	all, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestIntegration_Outbox_ReclaimFencesStaleClaim(t *testing.T) {
	pool := setupServiceDB(t, "employee")
	repo := NewOutboxRepository(pool)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	evt := outbox.NewEvent(uuid.NewString(), employee.EventCreated, "1", []byte(`{"id":1}`), t0)
	require.NoError(t, repo.Enqueue(ctx, evt))

	stale, err := repo.ClaimDue(ctx, t0, 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	fresh, err := repo.ClaimDue(ctx, t0.Add(31*time.Second), 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.NotEqual(t, stale[0].ClaimToken, fresh[0].ClaimToken)

	assert.ErrorIs(t, repo.ExtendClaim(ctx, evt.ID, stale[0].ClaimToken, t0.Add(time.Hour)), outbox.ErrClaimLost)
	assert.ErrorIs(t, repo.MarkFailed(ctx, evt.ID, stale[0].ClaimToken, 1, t0, t0, "late"), outbox.ErrClaimLost)

	require.NoError(t, repo.ExtendClaim(ctx, evt.ID, fresh[0].ClaimToken, t0.Add(2*time.Minute)))
	again, err := repo.ClaimDue(ctx, t0.Add(time.Minute), 1, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, again, "an extended claim stays leased")

	require.NoError(t, repo.MarkFailed(ctx, evt.ID, fresh[0].ClaimToken, fresh[0].AttemptCount+1, t0.Add(time.Minute), t0.Add(62*time.Second), "boom"))
	got, err := repo.Get(ctx, evt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Empty(t, got.ClaimToken)
}

func TestIntegration_Outbox_ConcurrentClaimsDoNotOverlap(t *testing.T) {
	pool := setupServiceDB(t, "employee")
	repo := NewOutboxRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 50; i++ {
		require.NoError(t, repo.Enqueue(ctx, outbox.NewEvent(uuid.NewString(), employee.EventCreated, fmt.Sprint(i), []byte(`{}`), now)))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := repo.ClaimDue(ctx, now.Add(time.Second), 20, time.Minute)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, e := range events {
				seen[e.ID]++
			}
		}()
	}
	wg.Wait()

	for id, n := range seen {
		assert.Equal(t, 1, n, "event %s claimed more than once", id)
	}
}

func TestIntegration_TxManager_RollbackDropsOutboxEvent(t *testing.T) {
	pool := setupServiceDB(t, "employee")
	tm := NewTxManager(pool)
	employees := NewEmployeeRepository(pool)
	events := NewOutboxRepository(pool)
	ctx := context.Background()

	evtID := uuid.NewString()
	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		e := &employee.Employee{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", CreatedAt: time.Now().UTC()}
		if err := employees.Create(ctx, e); err != nil {
			return err
		}
		if err := events.Enqueue(ctx, outbox.NewEvent(evtID, employee.EventCreated, fmt.Sprint(e.ID), []byte(`{}`), e.CreatedAt)); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = events.Get(ctx, evtID)
	assert.ErrorIs(t, err, outbox.ErrEventNotFound)
	exists, err := employees.ExistsByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIntegration_Employee_EmailUniqueCaseInsensitive(t *testing.T) {
	pool := setupServiceDB(t, "employee")
	repo := NewEmployeeRepository(pool)
	ctx := context.Background()
	dept := int64(7)

	a := &employee.Employee{FirstName: "A", LastName: "B", Email: "a@example.com", DepartmentID: &dept, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, a))
	assert.NotZero(t, a.ID)

	dup := &employee.Employee{FirstName: "C", LastName: "D", Email: strings.ToUpper("a@example.com"), CreatedAt: time.Now().UTC()}
	assert.ErrorIs(t, repo.Create(ctx, dup), apperrors.ErrDuplicateResource)

	n, err := repo.CountByDepartment(ctx, dept)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.Delete(ctx, a.ID))
	_, err = repo.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), apperrors.ErrNotFound)
}

func TestIntegration_Employee_UpdateHitsUniqueIndex(t *testing.T) {
	pool := setupServiceDB(t, "employee")
	repo := NewEmployeeRepository(pool)
	ctx := context.Background()
	dept := int64(3)
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	a := &employee.Employee{FirstName: "Ada", LastName: "L", Email: "ada@example.com", DepartmentID: &dept, CreatedAt: created}
	b := &employee.Employee{FirstName: "Alan", LastName: "T", Email: "alan@example.com", CreatedAt: created}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	clash := *b
	clash.Email = "ADA@example.com"
	assert.ErrorIs(t, repo.Update(ctx, &clash), apperrors.ErrDuplicateResource)

	moved := &employee.Employee{ID: b.ID, FirstName: "Alan", LastName: "Turing", Email: "turing@example.com", DepartmentID: &dept}
	require.NoError(t, repo.Update(ctx, moved))
	assert.True(t, moved.CreatedAt.Equal(created), "created_at is read back")

	got, err := repo.GetByEmail(ctx, "TURING@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Turing", got.LastName)

	list, err := repo.ListByDepartment(ctx, dept)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)

	assert.ErrorIs(t, repo.Update(ctx, &employee.Employee{ID: 999, Email: "x@example.com"}), apperrors.ErrNotFound)
}

func TestIntegration_Idempotency_FirstWriterWins(t *testing.T) {
	pool := setupServiceDB(t, "employee")
	repo := NewIdempotencyRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Remember(ctx, "k1", 10))
	require.NoError(t, repo.Remember(ctx, "k1", 20))
	require.NoError(t, repo.Remember(ctx, "", 30))

	id, found, err := repo.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 10, id)

	_, found, err = repo.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIntegration_ProjectMembersAndInbox(t *testing.T) {
	pool := setupServiceDB(t, "project")
	projects := NewProjectRepository(pool)
	members := NewMemberRepository(pool)
	inboxRepo := NewInboxRepository(pool)
	ctx := context.Background()

	p := &project.Project{Code: "APOLLO", Name: "Apollo", Status: project.StatusActive, StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, projects.Create(ctx, p))
	assert.ErrorIs(t, projects.Create(ctx, &project.Project{Code: "APOLLO", Name: "x", Status: project.StatusPlanned, StartDate: p.StartDate}), apperrors.ErrDuplicateResource)

	m := &project.Member{ProjectID: p.ID, EmployeeID: 42, Role: "DEV", AllocationPercent: 50, AssignedAt: time.Now().UTC()}
	require.NoError(t, members.Add(ctx, m))
	assert.ErrorIs(t, members.Add(ctx, &project.Member{ProjectID: p.ID, EmployeeID: 42, Role: "QA", AllocationPercent: 10, AssignedAt: time.Now().UTC()}), apperrors.ErrDuplicateResource)

	exists, err := members.Exists(ctx, p.ID, 42)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, members.Add(ctx, &project.Member{ProjectID: p.ID, EmployeeID: 43, Role: "QA", AllocationPercent: 20, AssignedAt: time.Now().UTC()}))
	require.NoError(t, members.Remove(ctx, p.ID, 43))
	assert.ErrorIs(t, members.Remove(ctx, p.ID, 43), apperrors.ErrNotFound)

	removed, err := members.RemoveByEmployee(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	list, err := members.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	evt := &inbox.Event{Consumer: "project-service", EventID: uuid.NewString(), EventType: employee.EventDeleted, ReceivedAt: time.Now().UTC()}
	saved, err := inboxRepo.SaveIfNotExists(ctx, evt)
	require.NoError(t, err)
	assert.True(t, saved)
	saved, err = inboxRepo.SaveIfNotExists(ctx, evt)
	require.NoError(t, err)
	assert.False(t, saved)
}
