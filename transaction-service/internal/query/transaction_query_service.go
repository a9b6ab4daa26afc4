package query

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/transaction-service/internal/repository"
)

type transactionReader interface {
	GetByID(ctx context.Context, id, accountNumber string) (*models.TransactionView, error)
	List(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
}

type accountReader interface {
	GetAccount(ctx context.Context, accountNumber string) (*repository.Account, error)
}

// TransactionQueryService serves transaction reads. Accounts of other
// organizations look the same as missing ones.
type TransactionQueryService struct {
	readRepo    transactionReader
	accountRepo accountReader
}

func NewTransactionQueryService(readRepo transactionReader, accountRepo accountReader) *TransactionQueryService {
	return &TransactionQueryService{readRepo: readRepo, accountRepo: accountRepo}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if err := s.checkAccount(ctx, q.AccountNumber, q.OrganizationID); err != nil {
		return nil, err
	}
	return s.readRepo.GetByID(ctx, q.TransactionID, q.AccountNumber)
}

func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	if err := s.checkAccount(ctx, q.AccountNumber, q.OrganizationID); err != nil {
		return nil, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, apperr.Invalid("to must not be before from")
	}
	return s.readRepo.List(ctx, q)
}

func (s *TransactionQueryService) checkAccount(ctx context.Context, accountNumber, orgID string) error {
	account, err := s.accountRepo.GetAccount(ctx, accountNumber)
	if err != nil {
		return err
	}
	if account.OrganizationID != orgID {
		return apperr.NotFound("account")
	}
	return nil
}
