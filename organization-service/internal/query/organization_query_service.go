package query

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/organization-service/internal/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// OrganizationQueryService serves organization and member reads. Membership
// is checked against the write store so that a removed member loses access
// immediately, regardless of what the cache holds.
type OrganizationQueryService struct {
	readRepo  *repository.OrganizationReadRepository
	writeRepo *repository.OrganizationWriteRepository
}

func NewOrganizationQueryService(
	readRepo *repository.OrganizationReadRepository,
	writeRepo *repository.OrganizationWriteRepository,
) *OrganizationQueryService {
	return &OrganizationQueryService{readRepo: readRepo, writeRepo: writeRepo}
}

func (s *OrganizationQueryService) GetOrganization(ctx context.Context, q cqrs.GetOrganizationQuery) (*models.OrganizationView, error) {
	membership, err := s.writeRepo.GetMembership(ctx, q.OrganizationID, q.RequestingUserID)
	if err != nil {
		return nil, err
	}
	view, err := s.readRepo.GetByID(ctx, q.OrganizationID)
	if err != nil {
		return nil, err
	}
	view.Role = membership.Role
	return view, nil
}

func (s *OrganizationQueryService) ListOrganizations(ctx context.Context, q cqrs.ListOrganizationsQuery) ([]models.OrganizationView, error) {
	return s.readRepo.ListByUserID(ctx, q.UserID)
}

func (s *OrganizationQueryService) ListMembers(ctx context.Context, q cqrs.ListMembersQuery) ([]models.MemberView, error) {
	if _, err := s.writeRepo.GetMembership(ctx, q.OrganizationID, q.RequestingUserID); err != nil {
		return nil, err
	}
	return s.readRepo.ListMembers(ctx, q.OrganizationID)
}
