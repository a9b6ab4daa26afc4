package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// OrganizationWriteRepository owns organizations and their memberships.
type OrganizationWriteRepository struct {
	db *sql.DB
}

func NewOrganizationWriteRepository(db *sql.DB) *OrganizationWriteRepository {
	return &OrganizationWriteRepository{db: db}
}

const organizationColumns = `id, name, slug, country, state, currency, fiscal_year_start_month, created_by, created_at, updated_at`

// CreateWithOwner inserts the organization and makes ownerID its owner.
func (r *OrganizationWriteRepository) CreateWithOwner(ctx context.Context, org *models.Organization, ownerID string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertOrganization(ctx, tx, org, ownerID)
	})
}

func insertOrganization(ctx context.Context, tx *sql.Tx, org *models.Organization, ownerID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO organizations (`+organizationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		org.ID, org.Name, org.Slug, org.Country, database.NullString(org.State), org.Currency,
		org.FiscalYearStartMonth, ownerID, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memberships (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)`,
		org.ID, ownerID, middleware.RoleOwner, org.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}
	return nil
}

func (r *OrganizationWriteRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1 AND deleted_at IS NULL`, id)
	var org models.Organization
	var state sql.NullString
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.Country, &state, &org.Currency,
		&org.FiscalYearStartMonth, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.State = state.String
	return &org, nil
}

func (r *OrganizationWriteRepository) Update(ctx context.Context, org *models.Organization) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE organizations
		SET name = $2, slug = $3, country = $4, state = $5, currency = $6, fiscal_year_start_month = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL`,
		org.ID, org.Name, org.Slug, org.Country, database.NullString(org.State), org.Currency,
		org.FiscalYearStartMonth, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return expectOneRow(result, "organization")
}

// Delete soft-deletes the organization. Memberships are kept for audit.
func (r *OrganizationWriteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE organizations SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	return expectOneRow(result, "organization")
}

// GetMembership returns the caller's membership, or a not-found error that
// deliberately does not distinguish "no such organization" from "not a member".
func (r *OrganizationWriteRepository) GetMembership(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	var m models.Membership
	err := r.db.QueryRowContext(ctx, `
		SELECT m.organization_id, m.user_id, m.role, m.created_at
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id AND o.deleted_at IS NULL
		WHERE m.organization_id = $1 AND m.user_id = $2`,
		orgID, userID,
	).Scan(&m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (r *OrganizationWriteRepository) AddMember(ctx context.Context, m *models.Membership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memberships (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)`,
		m.OrganizationID, m.UserID, m.Role, m.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("user is already a member")
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *OrganizationWriteRepository) UpdateMemberRole(ctx context.Context, orgID, userID, role string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE memberships SET role = $3 WHERE organization_id = $1 AND user_id = $2`, orgID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return expectOneRow(result, "member")
}

func (r *OrganizationWriteRepository) RemoveMember(ctx context.Context, orgID, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return expectOneRow(result, "member")
}

func (r *OrganizationWriteRepository) CountOwners(ctx context.Context, orgID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = 'owner'`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}
