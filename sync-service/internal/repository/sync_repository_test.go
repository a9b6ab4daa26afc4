package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

var at = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var itemCols = []string{"id", "organization_id", "user_id", "device_id", "entity_type", "entity_id", "action", "method",
	"path", "payload", "base_version", "conflict_strategy", "status", "retry_count", "last_error", "resolution",
	"response_status", "client_timestamp", "created_at", "updated_at", "completed_at"}

func itemRow(id string, clientTS time.Time) []driver.Value {
	return []driver.Value{id, "org-001", "usr-001", "dev-1", "invoice", nil, "create", "POST", "/v1/invoices",
		[]byte(`{"amount":10}`), nil, "merge", "syncing", 0, nil, nil, nil, clientTS, at, at, nil}
}

func TestEnqueueCountsInsertedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO sync_items"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	item := models.SyncItem{
		ID: "itm-1", OrganizationID: "org-001", UserID: "usr-001", DeviceID: "dev-1", EntityType: "invoice",
		Action: "create", Method: "POST", Path: "/v1/invoices", Payload: json.RawMessage(`{"amount":10}`),
		ConflictStrategy: "merge", Status: "pending", ClientTimestamp: at, CreatedAt: at, UpdatedAt: at,
	}
	dup := item
	dup.ID = "itm-0"

	accepted, err := NewSyncRepository(db).Enqueue(context.Background(), []models.SyncItem{item, dup})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimFiltersAndOrders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(itemCols).
		AddRow(itemRow("itm-late", at.Add(time.Minute))...).
		AddRow(itemRow("itm-early", at)...)
	mock.ExpectQuery(regexp.QuoteMeta("entity_type = ANY($5) AND entity_id = $6")).WillReturnRows(rows)

	items, err := NewSyncRepository(db).Claim(context.Background(), ClaimFilter{
		OrganizationID: "org-001", UserID: "usr-001", DeviceID: "dev-1",
		Statuses: []string{"pending", "failed"}, EntityTypes: []string{"invoice"}, EntityID: "inv-1",
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "itm-early", items[0].ID)
	assert.Equal(t, "itm-late", items[1].ID)
	assert.JSONEq(t, `{"amount":10}`, string(items[0].Payload))
	assert.Nil(t, items[0].BaseVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	last := at.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("org-001", "usr-001", "dev-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "max"}).
			AddRow("completed", 4, last).
			AddRow("failed", 1, nil))

	status, err := NewSyncRepository(db).Status(context.Background(), cqrs.SyncStatusQuery{
		OrganizationID: "org-001", UserID: "usr-001", DeviceID: "dev-1",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pending": 0, "syncing": 0, "completed": 4, "failed": 1, "conflict": 0}, status.Counts)
	require.NotNil(t, status.LastSyncAt)
	assert.Equal(t, last, *status.LastSyncAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeueRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'pending', retry_count = 0")).
		WithArgs("itm-1", "org-001", "usr-001").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSyncRepository(db).Requeue(context.Background(), "org-001", "usr-001", "itm-1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_items WHERE id = $1")).WillReturnRows(sqlmock.NewRows(itemCols))

	_, err = NewSyncRepository(db).Get(context.Background(), "org-001", "usr-001", "itm-9")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
