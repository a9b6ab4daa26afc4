package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// InvoiceWriteRepository persists invoices to PostgreSQL, the source of truth.
type InvoiceWriteRepository struct {
	db *sql.DB
}

func NewInvoiceWriteRepository(db *sql.DB) *InvoiceWriteRepository {
	return &InvoiceWriteRepository{db: db}
}

const invoiceColumns = `id, organization_id, user_id, invoice_number, client_name, client_email,
	client_country, client_state, items, subtotal, discount_rate, discount_amount, tax_rate,
	tax_amount, total, currency, status, issue_date, due_date, paid_at, deposit_account_number,
	notes, created_at, updated_at`

func (r *InvoiceWriteRepository) Create(ctx context.Context, inv *models.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice items: %w", err)
	}
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err = r.db.ExecContext(ctx, query,
		inv.ID, inv.OrganizationID, inv.UserID, inv.InvoiceNumber, inv.ClientName,
		database.NullString(inv.ClientEmail), database.NullString(inv.ClientCountry), database.NullString(inv.ClientState),
		items, inv.Subtotal, inv.DiscountRate, inv.DiscountAmount, inv.TaxRate, inv.TaxAmount, inv.Total,
		inv.Currency, inv.Status, inv.IssueDate, inv.DueDate, database.NullTime(inv.PaidAt),
		database.NullString(inv.DepositAccountNumber), database.NullString(inv.Notes),
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("invoice number %s already exists", inv.InvoiceNumber)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *InvoiceWriteRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("invoice")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// Update rewrites the editable fields of a draft. The status guard makes a
// concurrent send lose the race instead of silently changing a sent invoice.
func (r *InvoiceWriteRepository) Update(ctx context.Context, inv *models.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice items: %w", err)
	}
	query := `
		UPDATE invoices
		SET client_name = $2, client_email = $3, client_country = $4, client_state = $5, items = $6,
			subtotal = $7, discount_rate = $8, discount_amount = $9, tax_rate = $10, tax_amount = $11,
			total = $12, issue_date = $13, due_date = $14, notes = $15, updated_at = $16
		WHERE id = $1 AND status = 'draft' AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.ClientName, database.NullString(inv.ClientEmail), database.NullString(inv.ClientCountry),
		database.NullString(inv.ClientState), items, inv.Subtotal, inv.DiscountRate, inv.DiscountAmount,
		inv.TaxRate, inv.TaxAmount, inv.Total, inv.IssueDate, inv.DueDate, database.NullString(inv.Notes),
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return expectTransition(result, "only draft invoices can be edited")
}

// Transition moves an invoice from one status to another, failing if another
// writer changed the status first.
func (r *InvoiceWriteRepository) Transition(ctx context.Context, inv *models.Invoice, from string) error {
	query := `
		UPDATE invoices
		SET status = $3, paid_at = $4, deposit_account_number = $5, updated_at = $6
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		inv.ID, from, inv.Status, database.NullTime(inv.PaidAt),
		database.NullString(inv.DepositAccountNumber), inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return expectTransition(result, "invoice is no longer %s", from)
}

func (r *InvoiceWriteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET deleted_at = NOW() WHERE id = $1 AND status IN ('draft', 'cancelled') AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return expectTransition(result, "only draft or cancelled invoices can be deleted")
}

// MarkOverdue flips every sent invoice due before asOf to overdue and returns
// the invoices it changed.
func (r *InvoiceWriteRepository) MarkOverdue(ctx context.Context, asOf models.Date) ([]models.Invoice, error) {
	query := `
		UPDATE invoices
		SET status = 'overdue', updated_at = $2
		WHERE status = 'sent' AND due_date < $1 AND deleted_at IS NULL
		RETURNING ` + invoiceColumns
	rows, err := r.db.QueryContext(ctx, query, asOf, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func expectTransition(result sql.Result, format string, args ...any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.Unprocessable(format, args...)
	}
	return nil
}

func scanInvoice(row interface{ Scan(...any) error }) (*models.Invoice, error) {
	var (
		inv                                   models.Invoice
		items                                 []byte
		email, country, state, deposit, notes sql.NullString
		paidAt                                sql.NullTime
	)
	err := row.Scan(
		&inv.ID, &inv.OrganizationID, &inv.UserID, &inv.InvoiceNumber, &inv.ClientName, &email,
		&country, &state, &items, &inv.Subtotal, &inv.DiscountRate, &inv.DiscountAmount, &inv.TaxRate,
		&inv.TaxAmount, &inv.Total, &inv.Currency, &inv.Status, &inv.IssueDate, &inv.DueDate, &paidAt,
		&deposit, &notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &inv.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invoice items: %w", err)
		}
	}
	inv.ClientEmail = email.String
	inv.ClientCountry = country.String
	inv.ClientState = state.String
	inv.DepositAccountNumber = deposit.String
	inv.Notes = notes.String
	inv.PaidAt = database.TimePtr(paidAt)
	return &inv, nil
}
