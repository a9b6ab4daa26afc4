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

// TransactionWriteRepository handles all state-mutating operations for transactions.
// It operates exclusively against the PostgreSQL write store (source of truth).
type TransactionWriteRepository struct {
	db *sql.DB
}

func NewTransactionWriteRepository(db *sql.DB) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db}
}

const transactionColumns = `id, organization_id, account_number, user_id, amount, currency, type, category,
	description, reference, customer_id, jurisdiction, occurred_at, voided_at, created_at`

func (r *TransactionWriteRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.OrganizationID, t.AccountNumber, t.UserID,
		t.Amount, t.Currency, t.Type, t.Category,
		database.NullString(t.Description), database.NullString(t.Reference),
		database.NullString(t.CustomerID), database.NullString(t.Jurisdiction),
		t.OccurredAt, database.NullTime(t.VoidedAt), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionWriteRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	view, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return viewToTransaction(view), nil
}

// MarkVoided stamps voided_at once. A second void of the same transaction is
// a conflict.
func (r *TransactionWriteRepository) MarkVoided(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET voided_at = $2 WHERE id = $1 AND voided_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("failed to void transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.Conflict("transaction %s is already voided", id)
	}
	return nil
}

func scanTransaction(row interface{ Scan(...any) error }) (*models.TransactionView, error) {
	var (
		view                                           models.TransactionView
		description, reference, customer, jurisdiction sql.NullString
		voidedAt                                       sql.NullTime
	)
	err := row.Scan(
		&view.ID, &view.OrganizationID, &view.AccountNumber, &view.UserID,
		&view.Amount, &view.Currency, &view.Type, &view.Category,
		&description, &reference, &customer, &jurisdiction,
		&view.OccurredAt, &voidedAt, &view.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	view.Description = description.String
	view.Reference = reference.String
	view.CustomerID = customer.String
	view.Jurisdiction = jurisdiction.String
	view.VoidedAt = database.TimePtr(voidedAt)
	return &view, nil
}

func viewToTransaction(v *models.TransactionView) *models.Transaction {
	return &models.Transaction{
		ID:             v.ID,
		OrganizationID: v.OrganizationID,
		AccountNumber:  v.AccountNumber,
		UserID:         v.UserID,
		Amount:         v.Amount,
		Currency:       v.Currency,
		Type:           v.Type,
		Category:       v.Category,
		Description:    v.Description,
		Reference:      v.Reference,
		CustomerID:     v.CustomerID,
		Jurisdiction:   v.Jurisdiction,
		OccurredAt:     v.OccurredAt,
		VoidedAt:       v.VoidedAt,
		CreatedAt:      v.CreatedAt,
	}
}
