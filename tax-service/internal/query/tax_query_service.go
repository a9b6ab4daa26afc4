package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/globaltax"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/payroll"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/rules"
)

type payrollReader interface {
	GetEmployee(ctx context.Context, orgID, id string) (*models.Employee, error)
	ListEmployees(ctx context.Context, orgID, state string) ([]models.Employee, error)
	Calculations(ctx context.Context, orgID string, from, to time.Time) ([]models.PayrollCalculation, error)
}

type salesReader interface {
	ByJurisdiction(ctx context.Context, orgID string, from, to time.Time) ([]globaltax.JurisdictionSales, error)
}

type deadlineReader interface {
	List(ctx context.Context, orgID string) ([]models.TaxDeadline, error)
}

type exposureCache interface {
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (*globaltax.Exposure, error)) (*globaltax.Exposure, error)
}

type TaxQueryService struct {
	rules     *rules.Rules
	payroll   payrollReader
	sales     salesReader
	deadlines deadlineReader
	cache     exposureCache
	now       func() time.Time
}

func NewTaxQueryService(r *rules.Rules, payroll payrollReader, sales salesReader, deadlines deadlineReader, cache exposureCache) *TaxQueryService {
	return &TaxQueryService{
		rules:     r,
		payroll:   payroll,
		sales:     sales,
		deadlines: deadlines,
		cache:     cache,
		now:       time.Now,
	}
}

func (s *TaxQueryService) ListEmployees(ctx context.Context, orgID string) ([]models.Employee, error) {
	return s.payroll.ListEmployees(ctx, orgID, "")
}

func (s *TaxQueryService) GetEmployee(ctx context.Context, orgID, id string) (*models.Employee, error) {
	return s.payroll.GetEmployee(ctx, orgID, id)
}

func (s *TaxQueryService) year(y int) (int, error) {
	if y == 0 {
		return s.now().UTC().Year(), nil
	}
	if y < 1900 || y > 9999 {
		return 0, apperr.Invalid("year %d is out of range", y)
	}
	return y, nil
}

func yearBounds(y int) (time.Time, time.Time) {
	start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// Quarterly builds the Form 941 summary for the quarter.
func (s *TaxQueryService) Quarterly(ctx context.Context, q cqrs.QuarterlyPayrollQuery) (*payroll.Form941, error) {
	year, err := s.year(q.Year)
	if err != nil {
		return nil, err
	}
	if q.Quarter < 1 || q.Quarter > 4 {
		return nil, apperr.Invalid("quarter must be between 1 and 4")
	}
	due, err := s.rules.Payroll.QuarterDeadline(year, q.Quarter)
	if err != nil {
		return nil, err
	}
	from := time.Date(year, time.Month((q.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	calcs, err := s.payroll.Calculations(ctx, q.OrganizationID, from, from.AddDate(0, 3, 0))
	if err != nil {
		return nil, err
	}
	f := payroll.Quarterly(year, q.Quarter, due, calcs)
	return &f, nil
}

// Annual builds the Form 940 summary for the year.
func (s *TaxQueryService) Annual(ctx context.Context, q cqrs.AnnualPayrollQuery) (*payroll.Form940, error) {
	year, err := s.year(q.Year)
	if err != nil {
		return nil, err
	}
	from, to := yearBounds(year)
	calcs, err := s.payroll.Calculations(ctx, q.OrganizationID, from, to)
	if err != nil {
		return nil, err
	}
	f := payroll.Annual(&s.rules.Payroll, year, calcs)
	return &f, nil
}

func (s *TaxQueryService) WageStatements(ctx context.Context, q cqrs.AnnualPayrollQuery) (*payroll.WageStatements, error) {
	year, err := s.year(q.Year)
	if err != nil {
		return nil, err
	}
	from, to := yearBounds(year)

	var (
		employees []models.Employee
		calcs     []models.PayrollCalculation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		employees, err = s.payroll.ListEmployees(gctx, q.OrganizationID, "")
		return err
	})
	g.Go(func() (err error) {
		calcs, err = s.payroll.Calculations(gctx, q.OrganizationID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	w := payroll.WageStatementsFor(&s.rules.Payroll, year, employees, calcs)
	return &w, nil
}

func (s *TaxQueryService) StateCompliance(ctx context.Context, q cqrs.StateComplianceQuery) (*payroll.Compliance, error) {
	state := strings.ToUpper(strings.TrimSpace(q.State))
	if len(state) != 2 {
		return nil, apperr.Invalid("state must be a two-letter code")
	}
	employees, err := s.payroll.ListEmployees(ctx, q.OrganizationID, state)
	if err != nil {
		return nil, err
	}
	c := payroll.StateCompliance(&s.rules.Payroll, state, len(employees))
	return &c, nil
}

// exposure loads sales per jurisdiction over the lookback window, cached per
// organization and day.
func (s *TaxQueryService) exposure(ctx context.Context, orgID string) (*globaltax.Exposure, error) {
	window := globaltax.LookbackWindow(&s.rules.Global, s.now())
	key := fmt.Sprintf("tax:exposure:%s:%s", orgID, window.End.Format("2006-01-02"))
	return s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (*globaltax.Exposure, error) {
		sales, err := s.sales.ByJurisdiction(ctx, orgID, window.Start, window.End)
		if err != nil {
			return nil, err
		}
		return &globaltax.Exposure{Window: window, Sales: sales}, nil
	})
}

func (s *TaxQueryService) Nexus(ctx context.Context, orgID string) (*globaltax.NexusReport, error) {
	e, err := s.exposure(ctx, orgID)
	if err != nil {
		return nil, err
	}
	r := globaltax.Nexus(&s.rules.Global, e.Window, e.Sales)
	return &r, nil
}

func (s *TaxQueryService) DigitalServicesTax(ctx context.Context, orgID string) (*globaltax.DSTReport, error) {
	e, err := s.exposure(ctx, orgID)
	if err != nil {
		return nil, err
	}
	r := globaltax.DigitalServicesTax(&s.rules.Global, e.Window, e.Sales)
	return &r, nil
}

func (s *TaxQueryService) Optimization(ctx context.Context, orgID string) (*globaltax.OptimizationPlan, error) {
	e, err := s.exposure(ctx, orgID)
	if err != nil {
		return nil, err
	}
	g := &s.rules.Global
	plan := globaltax.Optimize(g, globaltax.Nexus(g, e.Window, e.Sales), globaltax.DigitalServicesTax(g, e.Window, e.Sales), e.Sales)
	return &plan, nil
}

func (s *TaxQueryService) VAT(in globaltax.VATInput) (*globaltax.VATResult, error) {
	r, err := globaltax.VAT(&s.rules.Global, in)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *TaxQueryService) SalesTax(in globaltax.SalesTaxInput) (*globaltax.SalesTaxResult, error) {
	r, err := globaltax.SalesTax(&s.rules.Global, in)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *TaxQueryService) Deadlines(ctx context.Context, orgID string) (*globaltax.DeadlineBoard, error) {
	deadlines, err := s.deadlines.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	b := globaltax.Board(deadlines, s.now())
	return &b, nil
}
