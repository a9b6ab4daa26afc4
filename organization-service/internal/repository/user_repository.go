package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// UserWriteRepository handles all state-mutating operations for users.
// It operates exclusively against the PostgreSQL write store (source of truth).
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

const userColumns = `id, name, email, password_hash, phone_number,
	address_line1, address_line2, address_line3, address_town, address_county, address_postcode,
	created_at, updated_at`

// Create inserts the user and, when org is non-nil, the organization with the
// user as its owner, all in one transaction.
func (r *UserWriteRepository) Create(ctx context.Context, user *models.User, org *models.Organization) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			user.ID, user.Name, user.Email, user.PasswordHash, user.PhoneNumber,
			user.Address.Line1, database.NullString(user.Address.Line2), database.NullString(user.Address.Line3),
			user.Address.Town, user.Address.County, user.Address.Postcode,
			user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("email already exists")
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		if org == nil {
			return nil
		}
		return insertOrganization(ctx, tx, org, user.ID)
	})
}

// GetByID fetches the full write model (including PasswordHash) for internal operations.
func (r *UserWriteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanUser(row)
}

func (r *UserWriteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`, email)
	return scanUser(row)
}

func (r *UserWriteRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, phone_number = $4,
			address_line1 = $5, address_line2 = $6, address_line3 = $7,
			address_town = $8, address_county = $9, address_postcode = $10,
			updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PhoneNumber,
		user.Address.Line1, database.NullString(user.Address.Line2), database.NullString(user.Address.Line3),
		user.Address.Town, user.Address.County, user.Address.Postcode,
		user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("email already exists")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOneRow(result, "user")
}

// Delete soft-deletes the user and drops their memberships.
func (r *UserWriteRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if err := expectOneRow(result, "user"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete memberships: %w", err)
		}
		return nil
	})
}

// SoleOwnerOrganizations returns the live organizations in which userID is
// the only owner.
func (r *UserWriteRepository) SoleOwnerOrganizations(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT m.organization_id
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id AND o.deleted_at IS NULL
		WHERE m.user_id = $1 AND m.role = 'owner'
		  AND NOT EXISTS (
			SELECT 1 FROM memberships other
			WHERE other.organization_id = m.organization_id
			  AND other.role = 'owner' AND other.user_id <> m.user_id
		  )
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var line2, line3 sql.NullString
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.PhoneNumber,
		&user.Address.Line1, &line2, &line3, &user.Address.Town, &user.Address.County, &user.Address.Postcode,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Address.Line2 = line2.String
	user.Address.Line3 = line3.String
	return &user, nil
}

func expectOneRow(result sql.Result, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}
