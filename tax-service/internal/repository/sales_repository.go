package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/globaltax"
)

// SalesRepository is the tax projection of income transactions that carry a
// jurisdiction.
type SalesRepository struct {
	db *sql.DB
}

func NewSalesRepository(db *sql.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

func (r *SalesRepository) Upsert(ctx context.Context, s *models.SalesRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sales_records (transaction_id, organization_id, jurisdiction, amount, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO NOTHING
	`, s.TransactionID, s.OrganizationID, s.Jurisdiction, s.Amount, s.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sales record: %w", err)
	}
	return nil
}

func (r *SalesRepository) Delete(ctx context.Context, transactionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sales_records WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("failed to delete sales record: %w", err)
	}
	return nil
}

// ByJurisdiction totals revenue and transaction count per jurisdiction in
// [from, to).
func (r *SalesRepository) ByJurisdiction(ctx context.Context, orgID string, from, to time.Time) ([]globaltax.JurisdictionSales, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT jurisdiction, SUM(amount), COUNT(*)
		FROM sales_records
		WHERE organization_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY jurisdiction
		ORDER BY jurisdiction
	`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	defer rows.Close()

	var sales []globaltax.JurisdictionSales
	for rows.Next() {
		var s globaltax.JurisdictionSales
		if err := rows.Scan(&s.Jurisdiction, &s.Revenue, &s.Transactions); err != nil {
			return nil, fmt.Errorf("failed to scan sales aggregate: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
