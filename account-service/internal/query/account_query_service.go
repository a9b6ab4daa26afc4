package query

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/account-service/internal/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type AccountQueryService struct {
	readRepo *repository.AccountReadRepository
}

func NewAccountQueryService(readRepo *repository.AccountReadRepository) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo}
}

// GetAccount fetches a single account view. Accounts of other organizations
// are reported as missing.
func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	view, err := s.readRepo.GetByAccountNumber(ctx, q.AccountNumber)
	if err != nil {
		return nil, err
	}
	if view.OrganizationID != q.OrganizationID {
		return nil, apperr.NotFound("account")
	}
	return view, nil
}

func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	return s.readRepo.ListByOrganization(ctx, q.OrganizationID, q.AccountType)
}
