package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// AccountWriteRepository handles all state-mutating operations for accounts.
// It operates exclusively against the PostgreSQL write store (source of truth).
type AccountWriteRepository struct {
	db *sql.DB
}

func NewAccountWriteRepository(db *sql.DB) *AccountWriteRepository {
	return &AccountWriteRepository{db: db}
}

const accountColumns = `account_number, organization_id, code, name, account_type, balance, currency, created_at, updated_at`

func (r *AccountWriteRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.AccountNumber, account.OrganizationID, account.Code, account.Name,
		account.AccountType, account.Balance, account.Currency,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("account code %s already exists", account.Code)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByAccountNumber fetches the full write model including OrganizationID for tenancy checks.
func (r *AccountWriteRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 AND deleted_at IS NULL`
	var account models.Account
	err := r.db.QueryRowContext(ctx, query, accountNumber).Scan(
		&account.AccountNumber, &account.OrganizationID, &account.Code, &account.Name,
		&account.AccountType, &account.Balance, &account.Currency,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("account")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *AccountWriteRepository) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, code = $3, account_type = $4, updated_at = $5
		WHERE account_number = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, account.AccountNumber, account.Name, account.Code, account.AccountType, account.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("account code %s already exists", account.Code)
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	return expectOneRow(result)
}

// ApplyBalanceChange adds delta to the balance in a single statement and
// returns the new balance, so concurrent consumers cannot lose updates.
func (r *AccountWriteRepository) ApplyBalanceChange(ctx context.Context, accountNumber string, delta float64) (float64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE account_number = $1 AND deleted_at IS NULL
		RETURNING balance
	`
	var balance float64
	err := r.db.QueryRowContext(ctx, query, accountNumber, delta).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("account")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	return balance, nil
}

func (r *AccountWriteRepository) Delete(ctx context.Context, accountNumber string) error {
	query := `UPDATE accounts SET deleted_at = NOW() WHERE account_number = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, accountNumber)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("account")
	}
	return nil
}
