package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	sharedredis "github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/redis"
)

const transactionViewKeyPrefix = "transaction:view:"

// TransactionReadRepository handles all read operations for transactions.
// It uses Redis as the primary read store, falling back to PostgreSQL on a miss.
// It also owns the idempotency markers for invoice payments.
type TransactionReadRepository struct {
	db       *sql.DB
	cache    *sharedredis.ViewCache[models.TransactionView]
	invoices *sharedredis.ProcessedStore
}

func NewTransactionReadRepository(db *sql.DB, redisClient *goredis.Client) *TransactionReadRepository {
	return &TransactionReadRepository{
		db:       db,
		cache:    sharedredis.NewViewCache[models.TransactionView](redisClient, 0),
		invoices: sharedredis.NewProcessedStore(redisClient, "invoice"),
	}
}

func transactionKey(accountNumber, id string) string {
	return fmt.Sprintf("%s%s:%s", transactionViewKeyPrefix, accountNumber, id)
}

// GetByID returns a TransactionView by attempting Redis first, then PostgreSQL.
func (r *TransactionReadRepository) GetByID(ctx context.Context, id, accountNumber string) (*models.TransactionView, error) {
	if view, ok := r.cache.Get(ctx, transactionKey(accountNumber, id)); ok {
		return view, nil
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND account_number = $2`
	view, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, accountNumber))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	r.CacheTransactionView(ctx, view)
	return view, nil
}

// List returns the account's transactions, newest first. Zero-valued filters
// are left out of the WHERE clause.
func (r *TransactionReadRepository) List(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	clauses := []string{"account_number = $1"}
	args := []any{q.AccountNumber}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !q.From.IsZero() {
		add("occurred_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("occurred_at < $%d", q.To)
	}
	if q.Type != "" {
		add("type = $%d", q.Type)
	}
	if q.Category != "" {
		add("category = $%d", q.Category)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY occurred_at DESC, created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	views := []models.TransactionView{}
	for rows.Next() {
		view, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		views = append(views, *view)
	}
	return views, rows.Err()
}

// CacheTransactionView stores the read model for a transaction in Redis.
func (r *TransactionReadRepository) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	r.cache.Set(ctx, transactionKey(view.AccountNumber, view.ID), view)
}

func (r *TransactionReadRepository) IsInvoiceRecorded(ctx context.Context, invoiceID string) bool {
	return r.invoices.IsProcessed(ctx, invoiceID)
}

func (r *TransactionReadRepository) MarkInvoiceRecorded(ctx context.Context, invoiceID string) {
	r.invoices.MarkProcessed(ctx, invoiceID)
}
