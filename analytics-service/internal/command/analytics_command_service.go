package command

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/analytics-service/internal/scenario"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// SubscriptionStore is the PostgreSQL write side for customers and
// subscriptions (repository.SubscriptionRepository).
type SubscriptionStore interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, orgID, id string) (*models.Customer, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription, movement *models.MRRMovement) error
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ChangeMRR(ctx context.Context, sub *models.Subscription, movement *models.MRRMovement) error
	Cancel(ctx context.Context, sub *models.Subscription, movement *models.MRRMovement) error
}

// LedgerProjection receives ledger transactions from transaction events.
type LedgerProjection interface {
	Upsert(ctx context.Context, e *models.LedgerEntry) error
	Delete(ctx context.Context, transactionID string) error
}

type ScenarioStore interface {
	Save(ctx context.Context, s *models.Scenario) error
}

type AnalyticsCommandService struct {
	subscriptions SubscriptionStore
	ledger        LedgerProjection
	scenarios     ScenarioStore
	logger        *zap.Logger
	now           func() time.Time
}

func NewAnalyticsCommandService(subscriptions SubscriptionStore, ledger LedgerProjection, scenarios ScenarioStore, logger *zap.Logger) *AnalyticsCommandService {
	return &AnalyticsCommandService{
		subscriptions: subscriptions,
		ledger:        ledger,
		scenarios:     scenarios,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *AnalyticsCommandService) at(t *time.Time) time.Time {
	if t != nil {
		return t.UTC()
	}
	return s.now().UTC()
}

func (s *AnalyticsCommandService) CreateCustomer(ctx context.Context, cmd cqrs.CreateCustomerCommand) (*models.Customer, error) {
	if cmd.AcquisitionCost < 0 {
		return nil, apperr.Invalid("acquisitionCost must not be negative")
	}
	c := &models.Customer{
		ID:              utils.GenerateID("cus"),
		OrganizationID:  cmd.OrganizationID,
		Name:            strings.TrimSpace(cmd.Name),
		Email:           strings.ToLower(cmd.Email),
		AcquisitionCost: utils.RoundMoney(cmd.AcquisitionCost),
		CreatedAt:       s.at(cmd.AcquiredAt),
	}
	if err := s.subscriptions.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateSubscription starts a subscription and records its MRR as new.
func (s *AnalyticsCommandService) CreateSubscription(ctx context.Context, cmd cqrs.CreateSubscriptionCommand) (*models.Subscription, error) {
	if cmd.MRR <= 0 {
		return nil, apperr.Invalid("mrr must be greater than 0")
	}
	if _, err := s.subscriptions.GetCustomer(ctx, cmd.OrganizationID, cmd.CustomerID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	started := s.at(cmd.StartedAt)
	sub := &models.Subscription{
		ID:             utils.GenerateID("sub"),
		OrganizationID: cmd.OrganizationID,
		CustomerID:     cmd.CustomerID,
		PlanName:       cmd.PlanName,
		MRR:            utils.RoundMoney(cmd.MRR),
		Status:         models.SubscriptionActive,
		StartedAt:      started,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	movement := newMovement(sub, models.MovementNew, sub.MRR, started)
	if err := s.subscriptions.CreateSubscription(ctx, sub, movement); err != nil {
		return nil, err
	}
	return sub, nil
}

// ChangeSubscription moves an active subscription to a new MRR, recording the
// difference as expansion or contraction. An unchanged amount records nothing.
func (s *AnalyticsCommandService) ChangeSubscription(ctx context.Context, cmd cqrs.ChangeSubscriptionCommand) (*models.Subscription, error) {
	if cmd.MRR <= 0 {
		return nil, apperr.Invalid("mrr must be greater than 0; cancel the subscription instead")
	}
	sub, err := s.owned(ctx, cmd.SubscriptionID, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionActive {
		return nil, apperr.Unprocessable("subscription is cancelled")
	}

	newMRR := utils.RoundMoney(cmd.MRR)
	delta := utils.RoundMoney(newMRR - sub.MRR)
	if delta == 0 {
		return sub, nil
	}
	effective := s.at(cmd.EffectiveAt)
	if effective.Before(sub.StartedAt) {
		return nil, apperr.Invalid("effectiveAt must not be before the subscription started")
	}

	kind := models.MovementExpansion
	if delta < 0 {
		kind = models.MovementContraction
	}
	sub.MRR = newMRR
	sub.UpdatedAt = s.now().UTC()
	if err := s.subscriptions.ChangeMRR(ctx, sub, newMovement(sub, kind, delta, effective)); err != nil {
		return nil, err
	}
	return sub, nil
}

// CancelSubscription churns the subscription's full MRR.
func (s *AnalyticsCommandService) CancelSubscription(ctx context.Context, cmd cqrs.CancelSubscriptionCommand) (*models.Subscription, error) {
	sub, err := s.owned(ctx, cmd.SubscriptionID, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	if sub.Status == models.SubscriptionCancelled {
		return nil, apperr.Conflict("subscription already cancelled")
	}
	cancelled := s.at(cmd.CancelledAt)
	if cancelled.Before(sub.StartedAt) {
		return nil, apperr.Invalid("cancelledAt must not be before the subscription started")
	}

	sub.Status = models.SubscriptionCancelled
	sub.CancelledAt = &cancelled
	sub.UpdatedAt = s.now().UTC()
	if err := s.subscriptions.Cancel(ctx, sub, newMovement(sub, models.MovementChurn, -sub.MRR, cancelled)); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *AnalyticsCommandService) owned(ctx context.Context, id, orgID string) (*models.Subscription, error) {
	sub, err := s.subscriptions.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.OrganizationID != orgID {
		return nil, apperr.Forbidden("subscription belongs to another organization")
	}
	return sub, nil
}

func newMovement(sub *models.Subscription, kind string, amount float64, at time.Time) *models.MRRMovement {
	return &models.MRRMovement{
		ID:             utils.GenerateID("mrr"),
		OrganizationID: sub.OrganizationID,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Kind:           kind,
		Amount:         utils.RoundMoney(amount),
		OccurredAt:     at,
	}
}

var scenarioTypes = map[string]bool{
	scenario.TypeRunway:              true,
	scenario.TypePriceIncrease:       true,
	scenario.TypeChurnReduction:      true,
	scenario.TypeHiring:              true,
	scenario.TypeExpenseOptimization: true,
	scenario.TypeGrowth:              true,
	scenario.TypeBreakEven:           true,
}

func (s *AnalyticsCommandService) SaveScenario(ctx context.Context, cmd cqrs.SaveScenarioCommand) (*models.Scenario, error) {
	if !scenarioTypes[cmd.Type] {
		return nil, apperr.Invalid("unknown scenario type %q", cmd.Type)
	}
	if !json.Valid(cmd.Inputs) || !json.Valid(cmd.Results) {
		return nil, apperr.Invalid("inputs and results must be JSON documents")
	}
	sc := &models.Scenario{
		ID:             utils.GenerateID("scn"),
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
		Name:           strings.TrimSpace(cmd.Name),
		Type:           cmd.Type,
		Inputs:         cmd.Inputs,
		Results:        cmd.Results,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.scenarios.Save(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// HandleTransactionEvent keeps the ledger projection in step with the ledger.
func (s *AnalyticsCommandService) HandleTransactionEvent(ctx context.Context, event events.Event) error {
	return events.Dispatch(map[string]events.Handler{
		events.TransactionCreated: s.projectTransaction,
		events.TransactionVoided:  s.removeTransaction,
	})(ctx, event)
}

func (s *AnalyticsCommandService) projectTransaction(ctx context.Context, event events.Event) error {
	data, err := events.Decode[events.TransactionCreatedEvent](event)
	if err != nil {
		return err
	}
	return s.ledger.Upsert(ctx, &models.LedgerEntry{
		TransactionID:  data.TransactionID,
		OrganizationID: data.OrganizationID,
		Type:           data.Type,
		Category:       strings.ToLower(data.Category),
		Amount:         data.Amount,
		CustomerID:     data.CustomerID,
		OccurredAt:     data.OccurredAt.UTC(),
	})
}

func (s *AnalyticsCommandService) removeTransaction(ctx context.Context, event events.Event) error {
	data, err := events.Decode[events.TransactionVoidedEvent](event)
	if err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, data.TransactionID); err != nil {
		return err
	}
	s.logger.Debug("ledger entry removed", zap.String("transactionId", data.TransactionID))
	return nil
}
