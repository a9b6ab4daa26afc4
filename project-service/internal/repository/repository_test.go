package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

var at = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func march(d int) models.Date {
	return models.NewDate(time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC))
}

var resourceCols = []string{"id", "organization_id", "name", "role", "hourly_rate", "max_hours_per_week", "status", "availability", "created_at"}
var allocationCols = []string{"id", "organization_id", "project_id", "resource_id", "start_date", "end_date", "hours_per_day", "status", "created_at"}

func allocation() *models.ResourceAllocation {
	return &models.ResourceAllocation{
		ID:             "alc-1",
		OrganizationID: "org-001",
		ProjectID:      "prj-1",
		ResourceID:     "res-1",
		StartDate:      march(2),
		EndDate:        march(6),
		HoursPerDay:    4,
		Status:         models.AllocationPlanned,
		CreatedAt:      at,
	}
}

func TestCreateBudgetDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_budgets")).
		WillReturnError(&pq.Error{Code: "23505"})

	err = NewProjectRepository(db).CreateBudget(context.Background(), &models.ProjectBudget{
		ID: "bud-1", ProjectID: "prj-1", Phase: "design", Category: "labor", BudgetedAmount: 100,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteTaskTwice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE project_tasks SET completed_at = $3")).
		WithArgs("tsk-1", "prj-1", march(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewProjectRepository(db).CompleteTask(context.Background(), "prj-1", "tsk-1", march(5))
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenAssignedTasks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "project_id", "name", "phase", "budgeted_cost", "planned_start", "planned_end", "assignee_resource_id", "completed_at"}).
		AddRow("tsk-1", "prj-1", "Wiring", "build", 500.0, march(2).Time, march(9).Time, "res-1", nil)
	mock.ExpectQuery(regexp.QuoteMeta("t.completed_at IS NULL AND t.assignee_resource_id IS NOT NULL")).
		WithArgs("org-001").
		WillReturnRows(rows)

	tasks, err := NewProjectRepository(db).OpenAssignedTasks(context.Background(), "org-001")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "res-1", tasks[0].AssigneeResourceID)
	assert.Equal(t, march(9), tasks[0].PlannedEnd)
	assert.Nil(t, tasks[0].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResourceDecodesAvailability(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = $1 AND organization_id = $2")).
		WithArgs("res-1", "org-001").
		WillReturnRows(sqlmock.NewRows(resourceCols).AddRow(
			"res-1", "org-001", "Dana", "engineer", 90.0, 40.0, models.ResourceAvailable,
			[]byte(`{"monday":{"available":true,"start":"09:00","end":"17:00"}}`), at))

	res, err := NewResourceRepository(db).GetResource(context.Background(), "org-001", "res-1")
	require.NoError(t, err)
	assert.Equal(t, "17:00", res.Availability["monday"].End)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocate(t *testing.T) {
	rejected := errors.New("rejected")

	tests := []struct {
		name    string
		checkFn AllocationCheck
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:    "accepted allocation is inserted",
			checkFn: func(*models.Resource, []models.ResourceAllocation) error { return nil },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resource_allocations")).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:    "rejected allocation rolls back",
			checkFn: func(*models.Resource, []models.ResourceAllocation) error { return rejected },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectRollback()
			},
			wantErr: rejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
				WithArgs("res-1", "org-001").
				WillReturnRows(sqlmock.NewRows(resourceCols).AddRow(
					"res-1", "org-001", "Dana", "engineer", 90.0, 40.0, models.ResourceAvailable, []byte(`{}`), at))
			mock.ExpectQuery(regexp.QuoteMeta("status IN ('planned', 'confirmed', 'in_progress')")).
				WithArgs("res-1", march(2), march(6)).
				WillReturnRows(sqlmock.NewRows(allocationCols).AddRow(
					"alc-0", "org-001", "prj-0", "res-1", march(2).Time, march(4).Time, 8.0, models.AllocationConfirmed, at))
			tt.setup(mock)

			var seen []models.ResourceAllocation
			check := func(res *models.Resource, existing []models.ResourceAllocation) error {
				seen = existing
				return tt.checkFn(res, existing)
			}
			err = NewResourceRepository(db).Allocate(context.Background(), allocation(), check)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, seen, 1)
			assert.Equal(t, "alc-0", seen[0].ID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAllocateUnknownResource(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(sqlmock.NewRows(resourceCols))
	mock.ExpectRollback()

	err = NewResourceRepository(db).Allocate(context.Background(), allocation(), func(*models.Resource, []models.ResourceAllocation) error {
		t.Fatal("check must not run")
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAllocationStatusRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resource_allocations SET status = $4")).
		WithArgs("alc-1", "org-001", models.AllocationPlanned, models.AllocationConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewResourceRepository(db).SetAllocationStatus(context.Background(), "org-001", "alc-1", models.AllocationPlanned, models.AllocationConfirmed)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
