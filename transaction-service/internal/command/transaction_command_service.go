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
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/transaction-service/internal/repository"
)

// TransactionStore is the PostgreSQL write side.
type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	MarkVoided(ctx context.Context, id string, at time.Time) error
}

// TransactionViews is the Redis read model plus invoice payment markers.
type TransactionViews interface {
	CacheTransactionView(ctx context.Context, view *models.TransactionView)
	IsInvoiceRecorded(ctx context.Context, invoiceID string) bool
	MarkInvoiceRecorded(ctx context.Context, invoiceID string)
}

// AccountLookup resolves accounts from account-service's read model.
type AccountLookup interface {
	GetAccount(ctx context.Context, accountNumber string) (*repository.Account, error)
}

// TransactionCommandService records and voids ledger transactions. Account
// ownership is checked against the Redis account projection before any write.
type TransactionCommandService struct {
	writeRepo   TransactionStore
	readRepo    TransactionViews
	accountRepo AccountLookup
	publisher   events.Emitter
	logger      *zap.Logger
}

func NewTransactionCommandService(
	writeRepo TransactionStore,
	readRepo TransactionViews,
	accountRepo AccountLookup,
	publisher events.Emitter,
	logger *zap.Logger,
) *TransactionCommandService {
	return &TransactionCommandService{
		writeRepo:   writeRepo,
		readRepo:    readRepo,
		accountRepo: accountRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

func (s *TransactionCommandService) CreateTransaction(ctx context.Context, cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
	if cmd.Amount <= 0 {
		return nil, apperr.Invalid("amount must be greater than zero")
	}
	if cmd.Type != models.TransactionTypeIncome && cmd.Type != models.TransactionTypeExpense {
		return nil, apperr.Invalid("type must be income or expense")
	}
	account, err := s.ownedAccount(ctx, cmd.AccountNumber, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(cmd.Currency)
	if currency == "" {
		currency = account.Currency
	}
	occurredAt := cmd.OccurredAt.UTC()
	now := time.Now().UTC()
	if cmd.OccurredAt.IsZero() {
		occurredAt = now
	}
	transaction := &models.Transaction{
		ID:             utils.GenerateID("txn"),
		OrganizationID: account.OrganizationID,
		AccountNumber:  account.AccountNumber,
		UserID:         cmd.UserID,
		Amount:         utils.RoundMoney(cmd.Amount),
		Currency:       currency,
		Type:           cmd.Type,
		Category:       strings.ToLower(strings.TrimSpace(cmd.Category)),
		Description:    cmd.Description,
		Reference:      cmd.Reference,
		CustomerID:     cmd.CustomerID,
		Jurisdiction:   strings.ToUpper(cmd.Jurisdiction),
		OccurredAt:     occurredAt,
		CreatedAt:      now,
	}
	if err := s.writeRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}
	s.readRepo.CacheTransactionView(ctx, txToView(transaction))
	s.publish(ctx, events.TransactionCreated, txToEvent(transaction))
	return transaction, nil
}

// VoidTransaction marks the transaction void and announces it so balances
// are reversed downstream.
func (s *TransactionCommandService) VoidTransaction(ctx context.Context, cmd cqrs.VoidTransactionCommand) (*models.TransactionView, error) {
	if _, err := s.ownedAccount(ctx, cmd.AccountNumber, cmd.OrganizationID); err != nil {
		return nil, err
	}
	transaction, err := s.writeRepo.GetByID(ctx, cmd.TransactionID)
	if err != nil {
		return nil, err
	}
	if transaction.AccountNumber != cmd.AccountNumber {
		return nil, apperr.NotFound("transaction")
	}
	if transaction.VoidedAt != nil {
		return nil, apperr.Conflict("transaction %s is already voided", transaction.ID)
	}

	voidedAt := time.Now().UTC()
	if err := s.writeRepo.MarkVoided(ctx, transaction.ID, voidedAt); err != nil {
		return nil, err
	}
	transaction.VoidedAt = &voidedAt
	view := txToView(transaction)
	s.readRepo.CacheTransactionView(ctx, view)
	s.publish(ctx, events.TransactionVoided, txToEvent(transaction))
	return view, nil
}

// HandleInvoiceEvent is the subscriber entry point for invoice.events.
func (s *TransactionCommandService) HandleInvoiceEvent(ctx context.Context, event events.Event) error {
	return events.Dispatch(map[string]events.Handler{
		events.InvoicePaid: s.recordInvoicePayment,
	})(ctx, event)
}

// recordInvoicePayment books a paid invoice as sales income on its deposit
// account. Each invoice is recorded at most once.
func (s *TransactionCommandService) recordInvoicePayment(ctx context.Context, event events.Event) error {
	data, err := events.Decode[events.InvoiceEvent](event)
	if err != nil {
		return err
	}
	if data.DepositAccountNumber == "" {
		return nil
	}
	if s.readRepo.IsInvoiceRecorded(ctx, data.InvoiceID) {
		s.logger.Info("invoice payment already recorded, skipping duplicate event", zap.String("invoiceId", data.InvoiceID))
		return nil
	}

	occurredAt := time.Time{}
	if data.PaidAt != nil {
		occurredAt = *data.PaidAt
	}
	_, err = s.CreateTransaction(ctx, cqrs.CreateTransactionCommand{
		AccountNumber:  data.DepositAccountNumber,
		OrganizationID: data.OrganizationID,
		UserID:         data.UserID,
		Amount:         data.Total,
		Currency:       data.Currency,
		Type:           models.TransactionTypeIncome,
		Category:       "sales",
		Description:    fmt.Sprintf("Payment for invoice %s", data.InvoiceNumber),
		Reference:      data.InvoiceNumber,
		CustomerID:     data.ClientName,
		Jurisdiction:   Jurisdiction(data.ClientCountry, data.ClientState),
		OccurredAt:     occurredAt,
	})
	switch {
	case err == nil:
	case apperr.IsKind(err, apperr.ErrNotFound, apperr.ErrForbidden, apperr.ErrInvalid):
		// Redelivery cannot fix these; drop the event.
		s.logger.Warn("invoice payment not recorded",
			zap.String("invoiceId", data.InvoiceID),
			zap.String("accountNumber", data.DepositAccountNumber),
			zap.Error(err))
		return nil
	default:
		return fmt.Errorf("failed to record payment for invoice %s: %w", data.InvoiceID, err)
	}
	s.readRepo.MarkInvoiceRecorded(ctx, data.InvoiceID)
	return nil
}

// Jurisdiction formats a client location as used by the tax reports:
// "US-CA" for US states, the bare country code otherwise.
func Jurisdiction(country, state string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	state = strings.ToUpper(strings.TrimSpace(state))
	if country == "" {
		return ""
	}
	if country == "US" && state != "" {
		return country + "-" + state
	}
	return country
}

func (s *TransactionCommandService) ownedAccount(ctx context.Context, accountNumber, orgID string) (*repository.Account, error) {
	account, err := s.accountRepo.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.OrganizationID != orgID {
		return nil, apperr.Forbidden("account belongs to another organization")
	}
	return account, nil
}

func (s *TransactionCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.TransactionEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func txToEvent(t *models.Transaction) events.TransactionCreatedEvent {
	return events.TransactionCreatedEvent{
		TransactionID:  t.ID,
		OrganizationID: t.OrganizationID,
		AccountNumber:  t.AccountNumber,
		UserID:         t.UserID,
		Amount:         t.Amount,
		Type:           t.Type,
		Currency:       t.Currency,
		Category:       t.Category,
		CustomerID:     t.CustomerID,
		Jurisdiction:   t.Jurisdiction,
		OccurredAt:     t.OccurredAt,
	}
}

// txToView converts the write model to a read view model.
func txToView(t *models.Transaction) *models.TransactionView {
	return &models.TransactionView{
		ID:             t.ID,
		AccountNumber:  t.AccountNumber,
		OrganizationID: t.OrganizationID,
		UserID:         t.UserID,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Type:           t.Type,
		Category:       t.Category,
		Description:    t.Description,
		Reference:      t.Reference,
		CustomerID:     t.CustomerID,
		Jurisdiction:   t.Jurisdiction,
		OccurredAt:     t.OccurredAt,
		VoidedAt:       t.VoidedAt,
		CreatedAt:      t.CreatedAt,
	}
}
