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

const invoiceViewKeyPrefix = "invoice:view:"

// InvoiceReadRepository caches single invoices in Redis and runs list and
// aggregate queries directly against PostgreSQL.
type InvoiceReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[cachedInvoice]
}

func NewInvoiceReadRepository(db *sql.DB, redisClient *goredis.Client) *InvoiceReadRepository {
	return &InvoiceReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[cachedInvoice](redisClient, 0),
	}
}

// cachedInvoice keeps OrganizationID, which the public JSON shape hides.
type cachedInvoice struct {
	models.Invoice
	OrganizationID string `json:"organizationId"`
}

func (r *InvoiceReadRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	if entry, ok := r.cache.Get(ctx, invoiceViewKeyPrefix+id); ok {
		inv := entry.Invoice
		inv.OrganizationID = entry.OrganizationID
		return &inv, nil
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("invoice")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	r.CacheInvoice(ctx, inv)
	return inv, nil
}

// List returns one page of matching invoices and the total match count.
func (r *InvoiceReadRepository) List(ctx context.Context, q cqrs.ListInvoicesQuery) ([]models.Invoice, int, error) {
	clauses := []string{"organization_id = $1", "deleted_at IS NULL"}
	args := []any{q.OrganizationID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(args))))
	}
	if q.Status != "" {
		add("status = ?", q.Status)
	}
	if q.Search != "" {
		add("(invoice_number ILIKE ? OR client_name ILIKE ? OR client_email ILIKE ?)", "%"+q.Search+"%")
	}
	if !q.From.IsZero() {
		add("issue_date >= ?", q.From)
	}
	if !q.To.IsZero() {
		add("issue_date <= ?", q.To)
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY issue_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

// StatusTotals returns count and summed total per status for the organization.
func (r *InvoiceReadRepository) StatusTotals(ctx context.Context, orgID string) (map[string]models.InvoiceStatusSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM invoices
		WHERE organization_id = $1 AND deleted_at IS NULL
		GROUP BY status
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate invoices: %w", err)
	}
	defer rows.Close()

	totals := map[string]models.InvoiceStatusSummary{}
	for rows.Next() {
		var status string
		var s models.InvoiceStatusSummary
		if err := rows.Scan(&status, &s.Count, &s.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice totals: %w", err)
		}
		totals[status] = s
	}
	return totals, rows.Err()
}

func (r *InvoiceReadRepository) CacheInvoice(ctx context.Context, inv *models.Invoice) {
	r.cache.Set(ctx, invoiceViewKeyPrefix+inv.ID, &cachedInvoice{Invoice: *inv, OrganizationID: inv.OrganizationID})
}

func (r *InvoiceReadRepository) InvalidateInvoice(ctx context.Context, id string) {
	r.cache.Delete(ctx, invoiceViewKeyPrefix+id)
}
