package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// LedgerRepository is the analytics copy of ledger transactions, fed by
// transaction events.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Upsert ignores entries it already holds, so redelivered events are harmless.
func (r *LedgerRepository) Upsert(ctx context.Context, e *models.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (transaction_id, organization_id, type, category, amount, customer_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`, e.TransactionID, e.OrganizationID, e.Type, e.Category, e.Amount, database.NullString(e.CustomerID), e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Delete(ctx context.Context, transactionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	return nil
}

// Entries returns the organization's entries in [from, to).
func (r *LedgerRepository) Entries(ctx context.Context, orgID string, from, to time.Time) ([]models.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, organization_id, type, category, amount, customer_id, occurred_at
		FROM ledger_entries
		WHERE organization_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at
	`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e        models.LedgerEntry
			customer sql.NullString
		)
		if err := rows.Scan(&e.TransactionID, &e.OrganizationID, &e.Type, &e.Category, &e.Amount, &customer, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.CustomerID = customer.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NetCash is all income minus all expenses recorded before t.
func (r *LedgerRepository) NetCash(ctx context.Context, orgID string, t time.Time) (float64, error) {
	var net float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE organization_id = $1 AND occurred_at < $2
	`, orgID, t).Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("failed to sum net cash: %w", err)
	}
	return net, nil
}
