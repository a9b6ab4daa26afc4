package command

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// InvoiceStore is the PostgreSQL write side (repository.InvoiceWriteRepository).
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	Update(ctx context.Context, inv *models.Invoice) error
	Transition(ctx context.Context, inv *models.Invoice, from string) error
	Delete(ctx context.Context, id string) error
	MarkOverdue(ctx context.Context, asOf models.Date) ([]models.Invoice, error)
}

// InvoiceViews is the Redis read model.
type InvoiceViews interface {
	CacheInvoice(ctx context.Context, inv *models.Invoice)
	InvalidateInvoice(ctx context.Context, id string)
}

type InvoiceCommandService struct {
	store     InvoiceStore
	views     InvoiceViews
	publisher events.Emitter
	logger    *zap.Logger
	now       func() time.Time
}

func NewInvoiceCommandService(store InvoiceStore, views InvoiceViews, publisher events.Emitter, logger *zap.Logger) *InvoiceCommandService {
	return &InvoiceCommandService{
		store:     store,
		views:     views,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *InvoiceCommandService) CreateInvoice(ctx context.Context, cmd cqrs.CreateInvoiceCommand) (*models.Invoice, error) {
	if len(cmd.Items) == 0 {
		return nil, apperr.Invalid("an invoice needs at least one item")
	}
	now := s.now().UTC()
	issue := cmd.IssueDate
	if issue.IsZero() {
		issue = models.NewDate(now)
	}
	due := cmd.DueDate
	if due.IsZero() {
		due = models.NewDate(issue.AddDate(0, 0, 30))
	}
	if due.Before(issue.Time) {
		return nil, apperr.Invalid("dueDate must not be before issueDate")
	}
	currency := strings.ToUpper(cmd.Currency)
	if currency == "" {
		currency = "USD"
	}

	inv := &models.Invoice{
		ID:             utils.GenerateID("inv"),
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
		InvoiceNumber:  utils.GenerateInvoiceNumber(issue.Time),
		ClientName:     cmd.ClientName,
		ClientEmail:    strings.ToLower(cmd.ClientEmail),
		ClientCountry:  strings.ToUpper(cmd.ClientCountry),
		ClientState:    strings.ToUpper(cmd.ClientState),
		Items:          BuildItems(cmd.Items),
		DiscountRate:   cmd.DiscountRate,
		TaxRate:        cmd.TaxRate,
		Currency:       currency,
		Status:         models.InvoiceStatusDraft,
		IssueDate:      issue,
		DueDate:        due,
		Notes:          cmd.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	ApplyTotals(inv)

	if err := s.store.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.views.CacheInvoice(ctx, inv)
	s.publish(ctx, events.InvoiceCreated, inv)
	return inv, nil
}

// UpdateInvoice edits a draft and recomputes its totals.
func (s *InvoiceCommandService) UpdateInvoice(ctx context.Context, cmd cqrs.UpdateInvoiceCommand) (*models.Invoice, error) {
	inv, err := s.owned(ctx, cmd.InvoiceID, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvoiceStatusDraft {
		return nil, apperr.Unprocessable("only draft invoices can be edited")
	}

	if cmd.ClientName != "" {
		inv.ClientName = cmd.ClientName
	}
	if cmd.ClientEmail != "" {
		inv.ClientEmail = strings.ToLower(cmd.ClientEmail)
	}
	if cmd.ClientCountry != "" {
		inv.ClientCountry = strings.ToUpper(cmd.ClientCountry)
	}
	if cmd.ClientState != "" {
		inv.ClientState = strings.ToUpper(cmd.ClientState)
	}
	if cmd.Items != nil {
		if len(cmd.Items) == 0 {
			return nil, apperr.Invalid("an invoice needs at least one item")
		}
		inv.Items = BuildItems(cmd.Items)
	}
	if cmd.DiscountRate != nil {
		inv.DiscountRate = *cmd.DiscountRate
	}
	if cmd.TaxRate != nil {
		inv.TaxRate = *cmd.TaxRate
	}
	if !cmd.IssueDate.IsZero() {
		inv.IssueDate = cmd.IssueDate
	}
	if !cmd.DueDate.IsZero() {
		inv.DueDate = cmd.DueDate
	}
	if inv.DueDate.Before(inv.IssueDate.Time) {
		return nil, apperr.Invalid("dueDate must not be before issueDate")
	}
	if cmd.Notes != nil {
		inv.Notes = *cmd.Notes
	}
	ApplyTotals(inv)
	inv.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.views.CacheInvoice(ctx, inv)
	return inv, nil
}

func (s *InvoiceCommandService) SendInvoice(ctx context.Context, cmd cqrs.InvoiceTransitionCommand) (*models.Invoice, error) {
	return s.transition(ctx, cmd.InvoiceID, cmd.OrganizationID, models.InvoiceStatusSent, events.InvoiceSent, nil)
}

func (s *InvoiceCommandService) CancelInvoice(ctx context.Context, cmd cqrs.InvoiceTransitionCommand) (*models.Invoice, error) {
	return s.transition(ctx, cmd.InvoiceID, cmd.OrganizationID, models.InvoiceStatusCancelled, events.InvoiceCancelled, nil)
}

// PayInvoice settles a sent or overdue invoice. With a deposit account the
// payment is booked as income by the ledger.
func (s *InvoiceCommandService) PayInvoice(ctx context.Context, cmd cqrs.PayInvoiceCommand) (*models.Invoice, error) {
	if cmd.DepositAccountNumber != "" && !utils.ValidateAccountNumber(cmd.DepositAccountNumber) {
		return nil, apperr.Invalid("depositAccountNumber %q is not a ledger account number", cmd.DepositAccountNumber)
	}
	return s.transition(ctx, cmd.InvoiceID, cmd.OrganizationID, models.InvoiceStatusPaid, events.InvoicePaid, func(inv *models.Invoice) {
		paidAt := s.now().UTC()
		if cmd.PaidAt != nil {
			paidAt = cmd.PaidAt.UTC()
		}
		inv.PaidAt = &paidAt
		inv.DepositAccountNumber = cmd.DepositAccountNumber
	})
}

func (s *InvoiceCommandService) DeleteInvoice(ctx context.Context, cmd cqrs.DeleteInvoiceCommand) error {
	inv, err := s.owned(ctx, cmd.InvoiceID, cmd.OrganizationID)
	if err != nil {
		return err
	}
	if inv.Status != models.InvoiceStatusDraft && inv.Status != models.InvoiceStatusCancelled {
		return apperr.Unprocessable("only draft or cancelled invoices can be deleted")
	}
	if err := s.store.Delete(ctx, inv.ID); err != nil {
		return err
	}
	s.views.InvalidateInvoice(ctx, inv.ID)
	return nil
}

// MarkOverdue is the scheduled sweep moving sent invoices past their due date
// to overdue.
func (s *InvoiceCommandService) MarkOverdue(ctx context.Context) error {
	invoices, err := s.store.MarkOverdue(ctx, models.NewDate(s.now()))
	if err != nil {
		return err
	}
	for i := range invoices {
		inv := &invoices[i]
		s.views.CacheInvoice(ctx, inv)
		s.publish(ctx, events.InvoiceOverdue, inv)
	}
	if len(invoices) > 0 {
		s.logger.Info("invoices marked overdue", zap.Int("count", len(invoices)))
	}
	return nil
}

func (s *InvoiceCommandService) transition(ctx context.Context, id, orgID, to, eventType string, mutate func(*models.Invoice)) (*models.Invoice, error) {
	inv, err := s.owned(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	from := inv.Status
	if !CanTransition(from, to) {
		return nil, apperr.Unprocessable("cannot move invoice from %s to %s", from, to)
	}
	inv.Status = to
	inv.UpdatedAt = s.now().UTC()
	if mutate != nil {
		mutate(inv)
	}
	if err := s.store.Transition(ctx, inv, from); err != nil {
		return nil, err
	}
	s.views.CacheInvoice(ctx, inv)
	s.publish(ctx, eventType, inv)
	return inv, nil
}

func (s *InvoiceCommandService) owned(ctx context.Context, id, orgID string) (*models.Invoice, error) {
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.OrganizationID != orgID {
		return nil, apperr.Forbidden("invoice belongs to another organization")
	}
	return inv, nil
}

func (s *InvoiceCommandService) publish(ctx context.Context, eventType string, inv *models.Invoice) {
	if err := s.publisher.Publish(ctx, events.InvoiceEventsStream, eventType, invoiceEvent(inv)); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.String("invoiceId", inv.ID), zap.Error(err))
	}
}

func invoiceEvent(inv *models.Invoice) events.InvoiceEvent {
	return events.InvoiceEvent{
		InvoiceID:            inv.ID,
		OrganizationID:       inv.OrganizationID,
		UserID:               inv.UserID,
		InvoiceNumber:        inv.InvoiceNumber,
		ClientName:           inv.ClientName,
		ClientCountry:        inv.ClientCountry,
		ClientState:          inv.ClientState,
		Total:                inv.Total,
		Currency:             inv.Currency,
		Status:               inv.Status,
		DueDate:              inv.DueDate.Time,
		PaidAt:               inv.PaidAt,
		DepositAccountNumber: inv.DepositAccountNumber,
	}
}
