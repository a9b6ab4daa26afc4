package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// SubscriptionRepository stores customers, subscriptions and the MRR movement
// log. A subscription change and its movement are written in one transaction.
type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (id, organization_id, name, email, acquisition_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.OrganizationID, c.Name, database.NullString(c.Email), c.AcquisitionCost, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetCustomer(ctx context.Context, orgID, id string) (*models.Customer, error) {
	query := `SELECT id, organization_id, name, email, acquisition_cost, created_at FROM customers WHERE id = $1 AND organization_id = $2`
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("customer")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (r *SubscriptionRepository) ListCustomers(ctx context.Context, orgID string) ([]models.Customer, error) {
	query := `
		SELECT id, organization_id, name, email, acquisition_cost, created_at
		FROM customers WHERE organization_id = $1 ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func scanCustomer(row interface{ Scan(...any) error }) (*models.Customer, error) {
	var (
		c     models.Customer
		email sql.NullString
	)
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &email, &c.AcquisitionCost, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Email = email.String
	return &c, nil
}

const subscriptionColumns = `id, organization_id, customer_id, plan_name, mrr, status, started_at, cancelled_at, created_at, updated_at`

// CreateSubscription inserts the subscription together with its opening
// movement.
func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *models.Subscription, movement *models.MRRMovement) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `INSERT INTO subscriptions (` + subscriptionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		_, err := tx.ExecContext(ctx, query,
			sub.ID, sub.OrganizationID, sub.CustomerID, sub.PlanName, sub.MRR, sub.Status,
			sub.StartedAt, database.NullTime(sub.CancelledAt), sub.CreatedAt, sub.UpdatedAt,
		)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return apperr.NotFound("customer")
			}
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return insertMovement(ctx, tx, movement)
	})
}

func (r *SubscriptionRepository) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("subscription")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (r *SubscriptionRepository) ListSubscriptions(ctx context.Context, q cqrs.ListSubscriptionsQuery) ([]models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE organization_id = $1`
	args := []any{q.OrganizationID}
	if q.Status != "" {
		args = append(args, q.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if q.CustomerID != "" {
		args = append(args, q.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	query += " ORDER BY started_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []models.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// ChangeMRR stores the new MRR of an active subscription and logs the delta.
func (r *SubscriptionRepository) ChangeMRR(ctx context.Context, sub *models.Subscription, movement *models.MRRMovement) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET mrr = $2, updated_at = $3 WHERE id = $1 AND status = 'active'`,
			sub.ID, sub.MRR, sub.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return apperr.Unprocessable("subscription is no longer active")
		}
		return insertMovement(ctx, tx, movement)
	})
}

// Cancel marks the subscription cancelled and logs the churn. Cancelling an
// already cancelled subscription is a conflict.
func (r *SubscriptionRepository) Cancel(ctx context.Context, sub *models.Subscription, movement *models.MRRMovement) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET status = 'cancelled', cancelled_at = $2, updated_at = $3 WHERE id = $1 AND status = 'active'`,
			sub.ID, database.NullTime(sub.CancelledAt), sub.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return apperr.Conflict("subscription already cancelled")
		}
		return insertMovement(ctx, tx, movement)
	})
}

func insertMovement(ctx context.Context, tx *sql.Tx, m *models.MRRMovement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO mrr_movements (id, organization_id, subscription_id, customer_id, kind, amount, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.OrganizationID, m.SubscriptionID, m.CustomerID, m.Kind, m.Amount, m.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record mrr movement: %w", err)
	}
	return nil
}

// MovementsBefore returns every movement of the organization before t, oldest
// first.
func (r *SubscriptionRepository) MovementsBefore(ctx context.Context, orgID string, t time.Time) ([]models.MRRMovement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, subscription_id, customer_id, kind, amount, occurred_at
		FROM mrr_movements
		WHERE organization_id = $1 AND occurred_at < $2
		ORDER BY occurred_at
	`, orgID, t)
	if err != nil {
		return nil, fmt.Errorf("failed to list mrr movements: %w", err)
	}
	defer rows.Close()

	var movements []models.MRRMovement
	for rows.Next() {
		var m models.MRRMovement
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.SubscriptionID, &m.CustomerID, &m.Kind, &m.Amount, &m.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan mrr movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		cancelledAt sql.NullTime
	)
	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.CustomerID, &sub.PlanName, &sub.MRR, &sub.Status,
		&sub.StartedAt, &cancelledAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.CancelledAt = database.TimePtr(cancelledAt)
	return &sub, nil
}
