package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// SyncRepository stores the offline write queues pushed by devices.
type SyncRepository struct {
	db *sql.DB
}

func NewSyncRepository(db *sql.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

const itemColumns = `id, organization_id, user_id, device_id, entity_type, entity_id, action, method, path, payload,
	base_version, conflict_strategy, status, retry_count, last_error, resolution, response_status,
	client_timestamp, created_at, updated_at, completed_at`

// Enqueue inserts the items and skips any whose ID is already queued. It
// returns how many were inserted.
func (r *SyncRepository) Enqueue(ctx context.Context, items []models.SyncItem) (int, error) {
	accepted := 0
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sync_items (id, organization_id, user_id, device_id, entity_type, entity_id, action, method,
				path, payload, base_version, conflict_strategy, status, retry_count, client_timestamp, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, $14, $15, $15)
			ON CONFLICT (id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare enqueue: %w", err)
		}
		defer stmt.Close()

		for _, it := range items {
			result, err := stmt.ExecContext(ctx, it.ID, it.OrganizationID, it.UserID, it.DeviceID, it.EntityType,
				database.NullString(it.EntityID), it.Action, it.Method, it.Path, nullPayload(it.Payload),
				database.NullTime(it.BaseVersion), it.ConflictStrategy, it.Status, it.ClientTimestamp, it.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to enqueue sync item: %w", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check rows affected: %w", err)
			}
			accepted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return accepted, nil
}

func nullPayload(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}

// ClaimFilter selects which queued items of a device a process run takes.
type ClaimFilter struct {
	OrganizationID string
	UserID         string
	DeviceID       string
	Statuses       []string
	EntityTypes    []string
	EntityID       string
}

// Claim moves the matching items to syncing and returns them oldest first.
// Rows claimed by a concurrent run are skipped.
func (r *SyncRepository) Claim(ctx context.Context, f ClaimFilter) ([]models.SyncItem, error) {
	args := []any{f.OrganizationID, f.UserID, f.DeviceID, pq.Array(f.Statuses)}
	where := []string{"organization_id = $1", "user_id = $2", "device_id = $3", "status = ANY($4)"}
	if len(f.EntityTypes) > 0 {
		args = append(args, pq.Array(f.EntityTypes))
		where = append(where, "entity_type = ANY($"+strconv.Itoa(len(args))+")")
	}
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		where = append(where, "entity_id = $"+strconv.Itoa(len(args)))
	}

	query := `
		UPDATE sync_items SET status = 'syncing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM sync_items
			WHERE ` + strings.Join(where, " AND ") + `
			ORDER BY client_timestamp
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + itemColumns
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to claim sync items: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not keep the subquery order.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ClientTimestamp.Equal(items[j].ClientTimestamp) {
			return items[i].ID < items[j].ID
		}
		return items[i].ClientTimestamp.Before(items[j].ClientTimestamp)
	})
	return items, nil
}

// Save writes back the outcome of a replay.
func (r *SyncRepository) Save(ctx context.Context, it *models.SyncItem) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_items
		SET status = $2, retry_count = $3, last_error = $4, resolution = $5, response_status = $6,
			completed_at = $7, updated_at = $8
		WHERE id = $1
	`, it.ID, it.Status, it.RetryCount, database.NullString(it.LastError), database.NullString(it.Resolution),
		nullInt(it.ResponseStatus), database.NullTime(it.CompletedAt), it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save sync item: %w", err)
	}
	return nil
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func (r *SyncRepository) Get(ctx context.Context, orgID, userID, id string) (*models.SyncItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM sync_items WHERE id = $1 AND organization_id = $2 AND user_id = $3`, id, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync item: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("sync item")
	}
	return &items[0], nil
}

func (r *SyncRepository) List(ctx context.Context, q cqrs.SyncItemsQuery) ([]models.SyncItem, error) {
	query := `SELECT ` + itemColumns + ` FROM sync_items WHERE organization_id = $1 AND user_id = $2 AND device_id = $3`
	args := []any{q.OrganizationID, q.UserID, q.DeviceID}
	if q.Status != "" {
		args = append(args, q.Status)
		query += ` AND status = $4`
	}
	query += ` ORDER BY client_timestamp, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync items: %w", err)
	}
	return collectItems(rows)
}

// Status counts a device's items per status. Statuses with no items are
// reported as zero.
func (r *SyncRepository) Status(ctx context.Context, q cqrs.SyncStatusQuery) (*models.SyncStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), MAX(completed_at)
		FROM sync_items
		WHERE organization_id = $1 AND user_id = $2 AND device_id = $3
		GROUP BY status
	`, q.OrganizationID, q.UserID, q.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync items: %w", err)
	}
	defer rows.Close()

	status := &models.SyncStatus{
		DeviceID: q.DeviceID,
		Counts: map[string]int{
			models.SyncPending: 0, models.SyncSyncing: 0, models.SyncCompleted: 0,
			models.SyncFailed: 0, models.SyncConflict: 0,
		},
	}
	for rows.Next() {
		var (
			s         string
			n         int
			completed sql.NullTime
		)
		if err := rows.Scan(&s, &n, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan sync status: %w", err)
		}
		status.Counts[s] = n
		if completed.Valid && (status.LastSyncAt == nil || completed.Time.After(*status.LastSyncAt)) {
			status.LastSyncAt = database.TimePtr(completed)
		}
	}
	return status, rows.Err()
}

// Requeue puts a failed or conflicting item back in the queue with a fresh
// retry budget.
func (r *SyncRepository) Requeue(ctx context.Context, orgID, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sync_items
		SET status = 'pending', retry_count = 0, last_error = NULL, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND user_id = $3 AND status IN ('failed', 'conflict')
	`, id, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to requeue sync item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.Conflict("sync item status changed concurrently")
	}
	return nil
}

func (r *SyncRepository) DeleteCompleted(ctx context.Context, orgID, userID, deviceID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_items WHERE organization_id = $1 AND user_id = $2 AND device_id = $3 AND status = 'completed'`,
		orgID, userID, deviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed sync items: %w", err)
	}
	return result.RowsAffected()
}

// DeleteCompletedBefore drops completed items of every device finished
// before cutoff.
func (r *SyncRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_items WHERE status = 'completed' AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sync items: %w", err)
	}
	return result.RowsAffected()
}

// ReleaseStale returns items left in syncing since before cutoff, for
// example by a crashed process run, to the queue.
func (r *SyncRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_items SET status = 'pending', updated_at = NOW() WHERE status = 'syncing' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale sync items: %w", err)
	}
	return result.RowsAffected()
}

func collectItems(rows *sql.Rows) ([]models.SyncItem, error) {
	defer rows.Close()
	items := []models.SyncItem{}
	for rows.Next() {
		var (
			it                              models.SyncItem
			entityID, lastError, resolution sql.NullString
			payload                         []byte
			baseVersion, completedAt        sql.NullTime
			responseStatus                  sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.OrganizationID, &it.UserID, &it.DeviceID, &it.EntityType, &entityID,
			&it.Action, &it.Method, &it.Path, &payload, &baseVersion, &it.ConflictStrategy, &it.Status,
			&it.RetryCount, &lastError, &resolution, &responseStatus, &it.ClientTimestamp, &it.CreatedAt,
			&it.UpdatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync item: %w", err)
		}
		it.EntityID = entityID.String
		it.LastError = lastError.String
		it.Resolution = resolution.String
		it.ResponseStatus = int(responseStatus.Int64)
		it.BaseVersion = database.TimePtr(baseVersion)
		it.CompletedAt = database.TimePtr(completedAt)
		if len(payload) > 0 {
			it.Payload = payload
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
