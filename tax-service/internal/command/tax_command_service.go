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
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/globaltax"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/payroll"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/rules"
)

// PayrollStore is repository.PayrollRepository.
type PayrollStore interface {
	CreateEmployee(ctx context.Context, e *models.Employee) error
	GetEmployee(ctx context.Context, orgID, id string) (*models.Employee, error)
	YTDGross(ctx context.Context, employeeID string, payDate models.Date) (float64, error)
	SaveCalculation(ctx context.Context, c *models.PayrollCalculation) error
}

type DeadlineStore interface {
	Create(ctx context.Context, d *models.TaxDeadline) error
	Get(ctx context.Context, id string) (*models.TaxDeadline, error)
	Complete(ctx context.Context, id string, at time.Time) error
	DueForAlert(ctx context.Context, today, until models.Date) ([]models.TaxDeadline, error)
	MarkAlerted(ctx context.Context, id string, day models.Date) error
}

// SalesProjection receives income transactions that name a jurisdiction.
type SalesProjection interface {
	Upsert(ctx context.Context, s *models.SalesRecord) error
	Delete(ctx context.Context, transactionID string) error
}

type TaxCommandService struct {
	rules     *rules.Rules
	payroll   PayrollStore
	deadlines DeadlineStore
	sales     SalesProjection
	publisher events.Emitter
	logger    *zap.Logger
	now       func() time.Time
}

func NewTaxCommandService(r *rules.Rules, payroll PayrollStore, deadlines DeadlineStore, sales SalesProjection, publisher events.Emitter, logger *zap.Logger) *TaxCommandService {
	return &TaxCommandService{
		rules:     r,
		payroll:   payroll,
		deadlines: deadlines,
		sales:     sales,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

var filingStatuses = map[string]bool{
	payroll.FilingSingle:          true,
	payroll.FilingMarriedJoint:    true,
	payroll.FilingMarriedSeparate: true,
}

func (s *TaxCommandService) CreateEmployee(ctx context.Context, cmd cqrs.CreateEmployeeCommand) (*models.Employee, error) {
	if cmd.AnnualSalary <= 0 {
		return nil, apperr.Invalid("annualSalary must be greater than 0")
	}
	if _, ok := models.PayPeriodsPerYear[cmd.PayFrequency]; !ok {
		return nil, apperr.Invalid("unknown pay frequency %q", cmd.PayFrequency)
	}
	if !filingStatuses[cmd.FilingStatus] {
		return nil, apperr.Invalid("unknown filing status %q", cmd.FilingStatus)
	}
	state := strings.ToUpper(strings.TrimSpace(cmd.State))
	if len(state) != 2 {
		return nil, apperr.Invalid("state must be a two-letter code")
	}

	e := &models.Employee{
		ID:             utils.GenerateID("emp"),
		OrganizationID: cmd.OrganizationID,
		Name:           strings.TrimSpace(cmd.Name),
		Email:          strings.ToLower(strings.TrimSpace(cmd.Email)),
		State:          state,
		City:           strings.TrimSpace(cmd.City),
		County:         strings.TrimSpace(cmd.County),
		AnnualSalary:   utils.RoundMoney(cmd.AnnualSalary),
		PayFrequency:   cmd.PayFrequency,
		FilingStatus:   cmd.FilingStatus,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.payroll.CreateEmployee(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CalculatePayroll computes and stores one paycheck. Year-to-date wages come
// from earlier stored pay runs of the same calendar year.
func (s *TaxCommandService) CalculatePayroll(ctx context.Context, cmd cqrs.CalculatePayrollCommand) (*models.PayrollCalculation, error) {
	e, err := s.payroll.GetEmployee(ctx, cmd.OrganizationID, cmd.EmployeeID)
	if err != nil {
		return nil, err
	}
	gross := payroll.GrossPay(*e)
	if cmd.GrossPay != nil {
		if *cmd.GrossPay <= 0 {
			return nil, apperr.Invalid("grossPay must be greater than 0")
		}
		gross = *cmd.GrossPay
	}
	payDate := cmd.PayDate
	if payDate.IsZero() {
		payDate = models.NewDate(s.now())
	}
	ytd, err := s.payroll.YTDGross(ctx, e.ID, payDate)
	if err != nil {
		return nil, err
	}

	c := payroll.Calculate(&s.rules.Payroll, *e, gross, ytd)
	c.ID = utils.GenerateID("pay")
	c.PayDate = payDate
	c.CreatedAt = s.now().UTC()
	if err := s.payroll.SaveCalculation(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *TaxCommandService) CreateDeadline(ctx context.Context, cmd cqrs.CreateDeadlineCommand) (*models.TaxDeadline, error) {
	if cmd.DueDate.IsZero() {
		return nil, apperr.Invalid("dueDate is required")
	}
	d := &models.TaxDeadline{
		ID:             utils.GenerateID("tdl"),
		OrganizationID: cmd.OrganizationID,
		Jurisdiction:   strings.ToUpper(strings.TrimSpace(cmd.Jurisdiction)),
		TaxType:        strings.TrimSpace(cmd.TaxType),
		Description:    strings.TrimSpace(cmd.Description),
		DueDate:        cmd.DueDate,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.deadlines.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *TaxCommandService) CompleteDeadline(ctx context.Context, cmd cqrs.CompleteDeadlineCommand) (*models.TaxDeadline, error) {
	d, err := s.deadlines.Get(ctx, cmd.DeadlineID)
	if err != nil {
		return nil, err
	}
	if d.OrganizationID != cmd.OrganizationID {
		return nil, apperr.Forbidden("tax deadline belongs to another organization")
	}
	if d.CompletedAt != nil {
		return nil, apperr.Conflict("tax deadline already completed")
	}
	at := s.now().UTC()
	if err := s.deadlines.Complete(ctx, d.ID, at); err != nil {
		return nil, err
	}
	d.CompletedAt = &at
	return d, nil
}

// AlertDeadlines is the daily job announcing open deadlines due within the
// alert horizon. Each deadline is announced at most once per day.
func (s *TaxCommandService) AlertDeadlines(ctx context.Context) error {
	today := models.NewDate(s.now())
	until := models.NewDate(today.AddDate(0, 0, globaltax.AlertDays))
	due, err := s.deadlines.DueForAlert(ctx, today, until)
	if err != nil {
		return err
	}
	sent := 0
	for _, d := range due {
		alert := events.TaxDeadlineAlertEvent{
			OrganizationID: d.OrganizationID,
			DeadlineID:     d.ID,
			Jurisdiction:   d.Jurisdiction,
			TaxType:        d.TaxType,
			DueDate:        d.DueDate.Time,
			DaysRemaining:  today.DaysUntil(d.DueDate),
		}
		if err := s.publisher.Publish(ctx, events.TaxEventsStream, events.TaxDeadlineAlert, alert); err != nil {
			s.logger.Warn("failed to publish event", zap.String("type", events.TaxDeadlineAlert), zap.String("deadlineId", d.ID), zap.Error(err))
			continue
		}
		if err := s.deadlines.MarkAlerted(ctx, d.ID, today); err != nil {
			return err
		}
		sent++
	}
	if sent > 0 {
		s.logger.Info("tax deadline alerts published", zap.Int("count", sent))
	}
	return nil
}

// HandleTransactionEvent keeps the sales projection in step with the ledger.
func (s *TaxCommandService) HandleTransactionEvent(ctx context.Context, event events.Event) error {
	return events.Dispatch(map[string]events.Handler{
		events.TransactionCreated: s.projectSale,
		events.TransactionVoided:  s.removeSale,
	})(ctx, event)
}

func (s *TaxCommandService) projectSale(ctx context.Context, event events.Event) error {
	data, err := events.Decode[events.TransactionCreatedEvent](event)
	if err != nil {
		return err
	}
	if data.Type != models.TransactionTypeIncome || data.Jurisdiction == "" {
		return nil
	}
	return s.sales.Upsert(ctx, &models.SalesRecord{
		TransactionID:  data.TransactionID,
		OrganizationID: data.OrganizationID,
		Jurisdiction:   strings.ToUpper(data.Jurisdiction),
		Amount:         data.Amount,
		OccurredAt:     data.OccurredAt.UTC(),
	})
}

func (s *TaxCommandService) removeSale(ctx context.Context, event events.Event) error {
	data, err := events.Decode[events.TransactionVoidedEvent](event)
	if err != nil {
		return err
	}
	return s.sales.Delete(ctx, data.TransactionID)
}
