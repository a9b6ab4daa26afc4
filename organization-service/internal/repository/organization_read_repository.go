package repository

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	sharedredis "github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/redis"
)

const organizationViewKeyPrefix = "organization:view:"

// OrganizationReadRepository serves organization views (with member counts)
// from Redis and rebuilds them from PostgreSQL on a miss. The cached view
// never carries a caller role; that is filled in per request.
type OrganizationReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.OrganizationView]
}

func NewOrganizationReadRepository(db *sql.DB, redisClient *goredis.Client) *OrganizationReadRepository {
	return &OrganizationReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.OrganizationView](redisClient, 0),
	}
}

const organizationViewQuery = `
	SELECT o.id, o.name, o.slug, o.country, COALESCE(o.state, ''), o.currency, o.fiscal_year_start_month,
		   (SELECT COUNT(*) FROM memberships m WHERE m.organization_id = o.id),
		   o.created_at, o.updated_at
	FROM organizations o
`

func (r *OrganizationReadRepository) GetByID(ctx context.Context, id string) (*models.OrganizationView, error) {
	if view, ok := r.cache.Get(ctx, organizationViewKeyPrefix+id); ok {
		return view, nil
	}
	view, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	r.CacheOrganizationView(ctx, view)
	return view, nil
}

// Refresh rebuilds the cached view from PostgreSQL after a change to the
// organization or its memberships. On failure the cached entry is dropped
// and nil is returned.
func (r *OrganizationReadRepository) Refresh(ctx context.Context, id string) *models.OrganizationView {
	view, err := r.load(ctx, id)
	if err != nil {
		r.InvalidateOrganizationView(ctx, id)
		return nil
	}
	r.CacheOrganizationView(ctx, view)
	return view
}

func (r *OrganizationReadRepository) load(ctx context.Context, id string) (*models.OrganizationView, error) {
	var view models.OrganizationView
	err := r.db.QueryRowContext(ctx, organizationViewQuery+` WHERE o.id = $1 AND o.deleted_at IS NULL`, id).Scan(
		&view.ID, &view.Name, &view.Slug, &view.Country, &view.State, &view.Currency, &view.FiscalYearStartMonth,
		&view.MemberCount, &view.CreatedAt, &view.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("organization")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &view, nil
}

// ListByUserID returns the user's organizations with their role in each.
func (r *OrganizationReadRepository) ListByUserID(ctx context.Context, userID string) ([]models.OrganizationView, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.country, COALESCE(o.state, ''), o.currency, o.fiscal_year_start_month,
			   (SELECT COUNT(*) FROM memberships c WHERE c.organization_id = o.id),
			   m.role, o.created_at, o.updated_at
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND o.deleted_at IS NULL
		ORDER BY m.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	views := []models.OrganizationView{}
	for rows.Next() {
		var v models.OrganizationView
		if err := rows.Scan(&v.ID, &v.Name, &v.Slug, &v.Country, &v.State, &v.Currency, &v.FiscalYearStartMonth,
			&v.MemberCount, &v.Role, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *OrganizationReadRepository) ListMembers(ctx context.Context, orgID string) ([]models.MemberView, error) {
	query := `
		SELECT u.id, u.name, u.email, m.role, m.created_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id AND u.deleted_at IS NULL
		WHERE m.organization_id = $1
		ORDER BY m.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.MemberView{}
	for rows.Next() {
		var m models.MemberView
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *OrganizationReadRepository) CacheOrganizationView(ctx context.Context, view *models.OrganizationView) {
	cached := *view
	cached.Role = ""
	r.cache.Set(ctx, organizationViewKeyPrefix+view.ID, &cached)
}

func (r *OrganizationReadRepository) InvalidateOrganizationView(ctx context.Context, id string) {
	r.cache.Delete(ctx, organizationViewKeyPrefix+id)
}
