package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	sharedredis "github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/redis"
)

const accountViewKeyPrefix = "account:view:"

// accountCacheEntry is the internal Redis representation of an account.
// Unlike models.AccountView, it serialises OrganizationID so that downstream
// services (e.g. transaction-service) can perform tenancy checks from the cache.
type accountCacheEntry struct {
	AccountNumber  string    `json:"accountNumber"`
	OrganizationID string    `json:"organizationId"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	AccountType    string    `json:"accountType"`
	Balance        float64   `json:"balance"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"createdTimestamp"`
	UpdatedAt      time.Time `json:"updatedTimestamp"`
}

// AccountReadRepository handles all read operations for accounts.
// It treats Redis as the primary read store (the CQRS read model) and falls
// back to PostgreSQL transparently, warming the cache on every cold read.
type AccountReadRepository struct {
	db        *sql.DB
	cache     *sharedredis.ViewCache[accountCacheEntry]
	processed *sharedredis.ProcessedStore
	voided    *sharedredis.ProcessedStore
}

func NewAccountReadRepository(db *sql.DB, redisClient *goredis.Client) *AccountReadRepository {
	return &AccountReadRepository{
		db:        db,
		cache:     sharedredis.NewViewCache[accountCacheEntry](redisClient, 0),
		processed: sharedredis.NewProcessedStore(redisClient, "txn"),
		voided:    sharedredis.NewProcessedStore(redisClient, "void"),
	}
}

func cacheEntryToView(e *accountCacheEntry) *models.AccountView {
	return &models.AccountView{
		AccountNumber:  e.AccountNumber,
		OrganizationID: e.OrganizationID,
		Code:           e.Code,
		Name:           e.Name,
		AccountType:    e.AccountType,
		Balance:        e.Balance,
		Currency:       e.Currency,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

const accountViewColumns = `account_number, organization_id, code, name, account_type, balance, currency, created_at, updated_at`

func scanAccountView(row interface{ Scan(...any) error }) (*models.AccountView, error) {
	var view models.AccountView
	err := row.Scan(
		&view.AccountNumber, &view.OrganizationID, &view.Code, &view.Name,
		&view.AccountType, &view.Balance, &view.Currency,
		&view.CreatedAt, &view.UpdatedAt,
	)
	return &view, err
}

// GetByAccountNumber returns an AccountView, trying Redis first then PostgreSQL.
func (r *AccountReadRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.AccountView, error) {
	if entry, ok := r.cache.Get(ctx, accountViewKeyPrefix+accountNumber); ok {
		return cacheEntryToView(entry), nil
	}

	query := `SELECT ` + accountViewColumns + ` FROM accounts WHERE account_number = $1 AND deleted_at IS NULL`
	view, err := scanAccountView(r.db.QueryRowContext(ctx, query, accountNumber))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("account")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	// Warm the cache
	r.CacheAccountView(ctx, view)
	return view, nil
}

// ListByOrganization returns the organization's chart of accounts ordered by
// code, optionally filtered by account type.
func (r *AccountReadRepository) ListByOrganization(ctx context.Context, orgID, accountType string) ([]models.AccountView, error) {
	query := `
		SELECT ` + accountViewColumns + `
		FROM accounts
		WHERE organization_id = $1 AND deleted_at IS NULL AND ($2 = '' OR account_type = $2)
		ORDER BY code
	`
	rows, err := r.db.QueryContext(ctx, query, orgID, accountType)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	views := []models.AccountView{}
	for rows.Next() {
		view, err := scanAccountView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		views = append(views, *view)
	}
	return views, rows.Err()
}

// CacheAccountView stores or refreshes the Redis read model for an account.
// Called by the command service after every mutation to keep the read model current.
func (r *AccountReadRepository) CacheAccountView(ctx context.Context, view *models.AccountView) {
	entry := &accountCacheEntry{
		AccountNumber:  view.AccountNumber,
		OrganizationID: view.OrganizationID,
		Code:           view.Code,
		Name:           view.Name,
		AccountType:    view.AccountType,
		Balance:        view.Balance,
		Currency:       view.Currency,
		CreatedAt:      view.CreatedAt,
		UpdatedAt:      view.UpdatedAt,
	}
	r.cache.Set(ctx, accountViewKeyPrefix+view.AccountNumber, entry)
}

// InvalidateAccountView removes the Redis read model entry for a deleted account.
func (r *AccountReadRepository) InvalidateAccountView(ctx context.Context, accountNumber string) {
	r.cache.Delete(ctx, accountViewKeyPrefix+accountNumber)
}

// IsApplied reports whether the transaction's effect (or, with void set, its
// reversal) has already reached the balance.
func (r *AccountReadRepository) IsApplied(ctx context.Context, transactionID string, void bool) bool {
	if void {
		return r.voided.IsProcessed(ctx, transactionID)
	}
	return r.processed.IsProcessed(ctx, transactionID)
}

func (r *AccountReadRepository) MarkApplied(ctx context.Context, transactionID string, void bool) {
	if void {
		r.voided.MarkProcessed(ctx, transactionID)
		return
	}
	r.processed.MarkProcessed(ctx, transactionID)
}
