package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, organization_id, item_id, sku, on_hand, reorder_point, status, created_at, acknowledged_at`

// Open raises the alert unless the item already has an open one. It reports
// whether a new alert was stored.
func (r *AlertRepository) Open(ctx context.Context, a *models.StockAlert) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id) WHERE status = 'open' DO NOTHING
	`, a.ID, a.OrganizationID, a.ItemID, a.SKU, a.OnHand, a.ReorderPoint, a.Status, a.CreatedAt, database.NullTime(a.AcknowledgedAt))
	if err != nil {
		return false, fmt.Errorf("failed to open stock alert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *AlertRepository) Get(ctx context.Context, id string) (*models.StockAlert, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM stock_alerts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("stock alert")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock alert: %w", err)
	}
	return a, nil
}

// Acknowledge closes an open alert. Acknowledging twice is a conflict.
func (r *AlertRepository) Acknowledge(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE stock_alerts SET status = 'acknowledged', acknowledged_at = $2 WHERE id = $1 AND status = 'open'`, id, at)
	if err != nil {
		return fmt.Errorf("failed to acknowledge stock alert: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.Conflict("stock alert already acknowledged")
	}
	return nil
}

func (r *AlertRepository) List(ctx context.Context, orgID, status string) ([]models.StockAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM stock_alerts WHERE organization_id = $1`
	args := []any{orgID}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.StockAlert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func scanAlert(row interface{ Scan(...any) error }) (*models.StockAlert, error) {
	var (
		a   models.StockAlert
		ack sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.OrganizationID, &a.ItemID, &a.SKU, &a.OnHand, &a.ReorderPoint, &a.Status, &a.CreatedAt, &ack); err != nil {
		return nil, err
	}
	a.AcknowledgedAt = database.TimePtr(ack)
	return &a, nil
}
