package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// AccountStore is the PostgreSQL write side (repository.AccountWriteRepository).
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	ApplyBalanceChange(ctx context.Context, accountNumber string, delta float64) (float64, error)
	Delete(ctx context.Context, accountNumber string) error
}

// AccountViews is the Redis read model plus the idempotency markers for
// transaction events (repository.AccountReadRepository).
type AccountViews interface {
	CacheAccountView(ctx context.Context, view *models.AccountView)
	InvalidateAccountView(ctx context.Context, accountNumber string)
	IsApplied(ctx context.Context, transactionID string, void bool) bool
	MarkApplied(ctx context.Context, transactionID string, void bool)
}

// AccountCommandService writes account state and keeps the read model in sync.
type AccountCommandService struct {
	writeRepo AccountStore
	readRepo  AccountViews
	publisher events.Emitter
	logger    *zap.Logger
}

func NewAccountCommandService(
	writeRepo AccountStore,
	readRepo AccountViews,
	publisher events.Emitter,
	logger *zap.Logger,
) *AccountCommandService {
	return &AccountCommandService{
		writeRepo: writeRepo,
		readRepo:  readRepo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	currency := strings.ToUpper(cmd.Currency)
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	account := &models.Account{
		AccountNumber:  utils.GenerateAccountNumber(),
		OrganizationID: cmd.OrganizationID,
		Code:           cmd.Code,
		Name:           cmd.Name,
		AccountType:    cmd.AccountType,
		Balance:        0.00,
		Currency:       currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.writeRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	s.readRepo.CacheAccountView(ctx, accountToView(account))
	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountNumber:  account.AccountNumber,
		OrganizationID: account.OrganizationID,
		Name:           account.Name,
		AccountType:    account.AccountType,
	})
	return account, nil
}

func (s *AccountCommandService) UpdateAccount(ctx context.Context, cmd cqrs.UpdateAccountCommand) (*models.AccountView, error) {
	account, err := s.owned(ctx, cmd.AccountNumber, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != "" {
		account.Name = cmd.Name
	}
	if cmd.Code != "" {
		account.Code = cmd.Code
	}
	if cmd.AccountType != "" {
		account.AccountType = cmd.AccountType
	}
	account.UpdatedAt = time.Now().UTC()
	if err := s.writeRepo.Update(ctx, account); err != nil {
		return nil, err
	}
	view := accountToView(account)
	s.readRepo.CacheAccountView(ctx, view)
	s.publish(ctx, events.AccountUpdated, events.AccountUpdatedEvent{
		AccountNumber:  account.AccountNumber,
		OrganizationID: account.OrganizationID,
		Name:           account.Name,
	})
	return view, nil
}

// DeleteAccount refuses to remove an account that still carries a balance.
func (s *AccountCommandService) DeleteAccount(ctx context.Context, cmd cqrs.DeleteAccountCommand) error {
	account, err := s.owned(ctx, cmd.AccountNumber, cmd.OrganizationID)
	if err != nil {
		return err
	}
	if utils.RoundMoney(account.Balance) != 0 {
		return apperr.Conflict("account %s has a non-zero balance", account.AccountNumber)
	}
	if err := s.writeRepo.Delete(ctx, cmd.AccountNumber); err != nil {
		return err
	}
	s.readRepo.InvalidateAccountView(ctx, cmd.AccountNumber)
	s.publish(ctx, events.AccountDeleted, events.AccountDeletedEvent{
		AccountNumber:  account.AccountNumber,
		OrganizationID: account.OrganizationID,
	})
	return nil
}

// HandleTransactionEvent is the subscriber entry point for transaction.events.
func (s *AccountCommandService) HandleTransactionEvent(ctx context.Context, event events.Event) error {
	return events.Dispatch(map[string]events.Handler{
		events.TransactionCreated: func(ctx context.Context, e events.Event) error { return s.applyTransaction(ctx, e, false) },
		events.TransactionVoided:  func(ctx context.Context, e events.Event) error { return s.applyTransaction(ctx, e, true) },
	})(ctx, event)
}

// applyTransaction moves the balance by the transaction amount, or reverses it
// for a void. Idempotent: duplicate delivery of the same transaction ID is
// detected via Redis and skipped without modifying the balance.
func (s *AccountCommandService) applyTransaction(ctx context.Context, event events.Event, void bool) error {
	data, err := events.Decode[events.TransactionCreatedEvent](event)
	if err != nil {
		return err
	}
	if s.readRepo.IsApplied(ctx, data.TransactionID, void) {
		s.logger.Info("transaction already applied, skipping duplicate event",
			zap.String("transactionId", data.TransactionID), zap.Bool("void", void))
		return nil
	}

	delta := balanceEffect(data.Type, data.Amount)
	if void {
		delta = -delta
	}
	newBalance, err := s.writeRepo.ApplyBalanceChange(ctx, data.AccountNumber, delta)
	if err != nil {
		return fmt.Errorf("failed to apply transaction %s: %w", data.TransactionID, err)
	}
	// Record the transaction ID before updating the cache, so that any
	// redelivery after this point is detected and skipped.
	s.readRepo.MarkApplied(ctx, data.TransactionID, void)

	if account, err := s.writeRepo.GetByAccountNumber(ctx, data.AccountNumber); err == nil {
		s.readRepo.CacheAccountView(ctx, accountToView(account))
	} else {
		s.readRepo.InvalidateAccountView(ctx, data.AccountNumber)
	}
	s.publish(ctx, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountNumber: data.AccountNumber,
		NewBalance:    newBalance,
		Change:        delta,
	})
	s.logger.Info("balance updated",
		zap.String("accountNumber", data.AccountNumber),
		zap.Float64("change", delta),
		zap.Float64("balance", newBalance))
	return nil
}

// balanceEffect is the signed change a transaction makes to its account.
func balanceEffect(txnType string, amount float64) float64 {
	if txnType == models.TransactionTypeExpense {
		return -amount
	}
	return amount
}

// owned loads the account and hides accounts of other organizations behind
// a forbidden error.
func (s *AccountCommandService) owned(ctx context.Context, accountNumber, orgID string) (*models.Account, error) {
	account, err := s.writeRepo.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.OrganizationID != orgID {
		return nil, apperr.Forbidden("account belongs to another organization")
	}
	return account, nil
}

func (s *AccountCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

// accountToView converts the PostgreSQL write model to the Redis read view model.
func accountToView(a *models.Account) *models.AccountView {
	return &models.AccountView{
		AccountNumber:  a.AccountNumber,
		OrganizationID: a.OrganizationID,
		Code:           a.Code,
		Name:           a.Name,
		AccountType:    a.AccountType,
		Balance:        a.Balance,
		Currency:       a.Currency,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
