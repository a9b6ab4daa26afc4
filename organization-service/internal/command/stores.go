package command

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// UserStore is the write side for users, implemented by
// repository.UserWriteRepository.
type UserStore interface {
	Create(ctx context.Context, user *models.User, org *models.Organization) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	SoleOwnerOrganizations(ctx context.Context, userID string) ([]string, error)
}

// UserViews is the Redis read model for users.
type UserViews interface {
	CacheUserView(ctx context.Context, view *models.UserView)
	InvalidateUserView(ctx context.Context, userID string)
}

// OrganizationStore is the write side for organizations and memberships.
type OrganizationStore interface {
	CreateWithOwner(ctx context.Context, org *models.Organization, ownerID string) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id string) error
	GetMembership(ctx context.Context, orgID, userID string) (*models.Membership, error)
	AddMember(ctx context.Context, m *models.Membership) error
	UpdateMemberRole(ctx context.Context, orgID, userID, role string) error
	RemoveMember(ctx context.Context, orgID, userID string) error
	CountOwners(ctx context.Context, orgID string) (int, error)
}

// OrganizationViews is the Redis read model for organizations.
type OrganizationViews interface {
	CacheOrganizationView(ctx context.Context, view *models.OrganizationView)
	InvalidateOrganizationView(ctx context.Context, id string)
	Refresh(ctx context.Context, id string) *models.OrganizationView
}
