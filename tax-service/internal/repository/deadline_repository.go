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

type DeadlineRepository struct {
	db *sql.DB
}

func NewDeadlineRepository(db *sql.DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

const deadlineColumns = `id, organization_id, jurisdiction, tax_type, description, due_date, completed_at, created_at`

func (r *DeadlineRepository) Create(ctx context.Context, d *models.TaxDeadline) error {
	query := `INSERT INTO tax_deadlines (` + deadlineColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.OrganizationID, d.Jurisdiction, d.TaxType, database.NullString(d.Description),
		d.DueDate, database.NullTime(d.CompletedAt), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tax deadline: %w", err)
	}
	return nil
}

func (r *DeadlineRepository) Get(ctx context.Context, id string) (*models.TaxDeadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM tax_deadlines WHERE id = $1`
	d, err := scanDeadline(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("tax deadline")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tax deadline: %w", err)
	}
	return d, nil
}

func (r *DeadlineRepository) List(ctx context.Context, orgID string) ([]models.TaxDeadline, error) {
	return r.list(ctx, `SELECT `+deadlineColumns+` FROM tax_deadlines WHERE organization_id = $1 ORDER BY due_date`, orgID)
}

// Complete stamps an open deadline. Completing it twice is a conflict.
func (r *DeadlineRepository) Complete(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tax_deadlines SET completed_at = $2 WHERE id = $1 AND completed_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("failed to complete tax deadline: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return apperr.Conflict("tax deadline already completed")
	}
	return nil
}

// DueForAlert returns open deadlines of every organization due in
// [today, until] that have not been alerted today.
func (r *DeadlineRepository) DueForAlert(ctx context.Context, today, until models.Date) ([]models.TaxDeadline, error) {
	return r.list(ctx, `SELECT `+deadlineColumns+`
		FROM tax_deadlines
		WHERE completed_at IS NULL AND due_date >= $1 AND due_date <= $2
			AND (last_alerted_on IS NULL OR last_alerted_on < $1)
		ORDER BY due_date`, today, until)
}

func (r *DeadlineRepository) MarkAlerted(ctx context.Context, id string, day models.Date) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE tax_deadlines SET last_alerted_on = $2 WHERE id = $1`, id, day); err != nil {
		return fmt.Errorf("failed to mark tax deadline alerted: %w", err)
	}
	return nil
}

func (r *DeadlineRepository) list(ctx context.Context, query string, args ...any) ([]models.TaxDeadline, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax deadlines: %w", err)
	}
	defer rows.Close()

	deadlines := []models.TaxDeadline{}
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax deadline: %w", err)
		}
		deadlines = append(deadlines, *d)
	}
	return deadlines, rows.Err()
}

func scanDeadline(row interface{ Scan(...any) error }) (*models.TaxDeadline, error) {
	var (
		d           models.TaxDeadline
		description sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.OrganizationID, &d.Jurisdiction, &d.TaxType, &description, &d.DueDate, &completedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Description = description.String
	d.CompletedAt = database.TimePtr(completedAt)
	return &d, nil
}
