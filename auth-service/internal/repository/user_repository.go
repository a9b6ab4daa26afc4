package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// UserRepository reads credentials and memberships from the core database
// owned by organization-service.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, name, email, password_hash
		FROM users
		WHERE lower(email) = lower($1) AND deleted_at IS NULL
	`
	return r.getUser(ctx, query, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, email, password_hash
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.getUser(ctx, query, id)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

const membershipQuery = `
	SELECT m.organization_id, m.user_id, m.role, m.created_at
	FROM memberships m
	JOIN organizations o ON o.id = m.organization_id AND o.deleted_at IS NULL
	WHERE m.user_id = $1
`

// GetMembership returns the user's membership in orgID.
func (r *UserRepository) GetMembership(ctx context.Context, userID, orgID string) (*models.Membership, error) {
	return r.scanMembership(r.db.QueryRowContext(ctx, membershipQuery+` AND m.organization_id = $2`, userID, orgID))
}

// GetDefaultMembership returns the user's oldest membership.
func (r *UserRepository) GetDefaultMembership(ctx context.Context, userID string) (*models.Membership, error) {
	return r.scanMembership(r.db.QueryRowContext(ctx, membershipQuery+` ORDER BY m.created_at ASC LIMIT 1`, userID))
}

func (r *UserRepository) scanMembership(row *sql.Row) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(&m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("membership")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}
