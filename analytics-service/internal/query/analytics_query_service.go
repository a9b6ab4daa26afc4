package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/analytics-service/internal/saas"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/analytics-service/internal/scenario"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

type subscriptionReader interface {
	ListCustomers(ctx context.Context, orgID string) ([]models.Customer, error)
	ListSubscriptions(ctx context.Context, q cqrs.ListSubscriptionsQuery) ([]models.Subscription, error)
	MovementsBefore(ctx context.Context, orgID string, t time.Time) ([]models.MRRMovement, error)
}

type ledgerReader interface {
	Entries(ctx context.Context, orgID string, from, to time.Time) ([]models.LedgerEntry, error)
	NetCash(ctx context.Context, orgID string, t time.Time) (float64, error)
}

type scenarioReader interface {
	List(ctx context.Context, q cqrs.ListScenariosQuery) ([]models.Scenario, error)
	Count(ctx context.Context, orgID string) (int, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string) (*saas.Dashboard, bool)
	Set(ctx context.Context, key string, value *saas.Dashboard)
}

type AnalyticsQueryService struct {
	subscriptions subscriptionReader
	ledger        ledgerReader
	scenarios     scenarioReader
	cache         dashboardCache
	now           func() time.Time
}

func NewAnalyticsQueryService(subscriptions subscriptionReader, ledger ledgerReader, scenarios scenarioReader, cache dashboardCache) *AnalyticsQueryService {
	return &AnalyticsQueryService{
		subscriptions: subscriptions,
		ledger:        ledger,
		scenarios:     scenarios,
		cache:         cache,
		now:           time.Now,
	}
}

func (s *AnalyticsQueryService) ListCustomers(ctx context.Context, q cqrs.ListCustomersQuery) ([]models.Customer, error) {
	return s.subscriptions.ListCustomers(ctx, q.OrganizationID)
}

func (s *AnalyticsQueryService) ListSubscriptions(ctx context.Context, q cqrs.ListSubscriptionsQuery) ([]models.Subscription, error) {
	return s.subscriptions.ListSubscriptions(ctx, q)
}

func (s *AnalyticsQueryService) ListScenarios(ctx context.Context, q cqrs.ListScenariosQuery) ([]models.Scenario, error) {
	return s.scenarios.List(ctx, q)
}

// Snapshot loads the customers, movements and ledger entries one metrics
// window needs.
func (s *AnalyticsQueryService) Snapshot(ctx context.Context, q cqrs.MetricsQuery) (saas.Snapshot, error) {
	window, err := s.window(q)
	if err != nil {
		return saas.Snapshot{}, err
	}
	snap := saas.Snapshot{Window: window, Previous: window.Previous()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Customers, err = s.subscriptions.ListCustomers(gctx, q.OrganizationID)
		return err
	})
	g.Go(func() (err error) {
		snap.Movements, err = s.subscriptions.MovementsBefore(gctx, q.OrganizationID, window.End)
		return err
	})
	g.Go(func() (err error) {
		snap.Entries, err = s.ledger.Entries(gctx, q.OrganizationID, snap.Previous.Start, window.End)
		return err
	})
	if err := g.Wait(); err != nil {
		return saas.Snapshot{}, err
	}
	return snap, nil
}

func (s *AnalyticsQueryService) window(q cqrs.MetricsQuery) (utils.Window, error) {
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	window, err := utils.PeriodWindow(q.Period, asOf)
	if err != nil {
		return utils.Window{}, apperr.Invalid("%s", err.Error())
	}
	return window, nil
}

func compute[T any](ctx context.Context, s *AnalyticsQueryService, q cqrs.MetricsQuery, fn func(saas.Snapshot) T) (*T, error) {
	snap, err := s.Snapshot(ctx, q)
	if err != nil {
		return nil, err
	}
	out := fn(snap)
	return &out, nil
}

func (s *AnalyticsQueryService) MRR(ctx context.Context, q cqrs.MetricsQuery) (*saas.MRRReport, error) {
	return compute(ctx, s, q, saas.MRR)
}

func (s *AnalyticsQueryService) ARR(ctx context.Context, q cqrs.MetricsQuery) (*saas.ARRReport, error) {
	return compute(ctx, s, q, saas.ARR)
}

func (s *AnalyticsQueryService) Retention(ctx context.Context, q cqrs.MetricsQuery) (*saas.RetentionReport, error) {
	return compute(ctx, s, q, saas.Retention)
}

func (s *AnalyticsQueryService) QuickRatio(ctx context.Context, q cqrs.MetricsQuery) (*saas.QuickRatioReport, error) {
	return compute(ctx, s, q, saas.QuickRatio)
}

func (s *AnalyticsQueryService) RuleOf40(ctx context.Context, q cqrs.MetricsQuery) (*saas.RuleOf40Report, error) {
	return compute(ctx, s, q, saas.RuleOf40)
}

func (s *AnalyticsQueryService) MagicNumber(ctx context.Context, q cqrs.MetricsQuery) (*saas.MagicNumberReport, error) {
	return compute(ctx, s, q, saas.MagicNumber)
}

func (s *AnalyticsQueryService) BurnMultiple(ctx context.Context, q cqrs.MetricsQuery) (*saas.BurnMultipleReport, error) {
	return compute(ctx, s, q, saas.BurnMultiple)
}

func (s *AnalyticsQueryService) CACPayback(ctx context.Context, q cqrs.MetricsQuery) (*saas.CACPaybackReport, error) {
	return compute(ctx, s, q, saas.CACPayback)
}

func (s *AnalyticsQueryService) LTVCAC(ctx context.Context, q cqrs.MetricsQuery) (*saas.LTVCACReport, error) {
	return compute(ctx, s, q, saas.LTVCAC)
}

// Dashboard computes every metric for the window concurrently. Results are
// cached per organization and window for a short TTL.
func (s *AnalyticsQueryService) Dashboard(ctx context.Context, q cqrs.MetricsQuery) (*saas.Dashboard, error) {
	window, err := s.window(q)
	if err != nil {
		return nil, err
	}
	period := q.Period
	if period == "" {
		period = utils.PeriodMonth
	}
	key := fmt.Sprintf("analytics:dashboard:%s:%s:%s", q.OrganizationID, period, window.Start.Format("2006-01-02"))
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}
	snap, err := s.Snapshot(ctx, q)
	if err != nil {
		return nil, err
	}

	d := &saas.Dashboard{Period: period, GeneratedAt: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	run := func(fn func()) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}
	run(func() { d.MRR = saas.MRR(snap) })
	run(func() { d.ARR = saas.ARR(snap) })
	run(func() { d.Retention = saas.Retention(snap) })
	run(func() { d.QuickRatio = saas.QuickRatio(snap) })
	run(func() { d.RuleOf40 = saas.RuleOf40(snap) })
	run(func() { d.MagicNumber = saas.MagicNumber(snap) })
	run(func() { d.BurnMultiple = saas.BurnMultiple(snap) })
	run(func() { d.CACPayback = saas.CACPayback(snap) })
	run(func() { d.LTVCAC = saas.LTVCAC(snap) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, d)
	return d, nil
}

// Baseline derives the organization's current position. Burn, churn and
// category spend are monthly averages over the complete months before asOf.
func (s *AnalyticsQueryService) Baseline(ctx context.Context, orgID string, asOf time.Time) (scenario.Baseline, error) {
	asOf = asOf.UTC()
	until := utils.DayStart(asOf).AddDate(0, 0, 1)
	trailing := utils.Window{End: utils.MonthStart(asOf)}
	trailing.Start = trailing.End.AddDate(0, -scenario.TrailingMonths, 0)

	var (
		movements []models.MRRMovement
		entries   []models.LedgerEntry
		netCash   float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		movements, err = s.subscriptions.MovementsBefore(gctx, orgID, until)
		return err
	})
	g.Go(func() (err error) {
		entries, err = s.ledger.Entries(gctx, orgID, trailing.Start, trailing.End)
		return err
	})
	g.Go(func() (err error) {
		netCash, err = s.ledger.NetCash(gctx, orgID, until)
		return err
	})
	if err := g.Wait(); err != nil {
		return scenario.Baseline{}, err
	}
	return BuildBaseline(asOf, until, trailing, movements, entries, netCash), nil
}

// BuildBaseline is the pure part of Baseline.
func BuildBaseline(asOf, until time.Time, trailing utils.Window, movements []models.MRRMovement, entries []models.LedgerEntry, netCash float64) scenario.Baseline {
	months := float64(trailing.Months())
	b := scenario.Baseline{
		AsOf:             asOf,
		NetCash:          utils.RoundMoney(netCash),
		CategoryExpenses: map[string]float64{},
	}

	for _, v := range saas.CustomerMRR(movements, until) {
		if v > 0 {
			b.MRR += v
		}
	}
	b.MRR = utils.RoundMoney(b.MRR)

	var revenue, expenses float64
	for _, e := range entries {
		switch e.Type {
		case models.TransactionTypeIncome:
			revenue += e.Amount
		case models.TransactionTypeExpense:
			expenses += e.Amount
			b.CategoryExpenses[strings.ToLower(e.Category)] += e.Amount
		}
	}
	b.MonthlyBurn = utils.RoundMoney((expenses - revenue) / months)
	for category, total := range b.CategoryExpenses {
		b.CategoryExpenses[category] = utils.RoundMoney(total / months)
	}

	var startMRR, churned float64
	for _, v := range saas.CustomerMRR(movements, trailing.Start) {
		if v > 0 {
			startMRR += v
		}
	}
	for _, m := range movements {
		if m.Kind == models.MovementChurn && trailing.Contains(m.OccurredAt) {
			churned -= m.Amount
		}
	}
	b.MonthlyChurnRate = utils.Round(utils.SafeDiv(churned, startMRR)/months, 4)
	return b
}

func withBaseline[In, Out any](ctx context.Context, s *AnalyticsQueryService, orgID string, in In, fn func(scenario.Baseline, In) Out) (*Out, error) {
	b, err := s.Baseline(ctx, orgID, s.now())
	if err != nil {
		return nil, err
	}
	out := fn(b, in)
	return &out, nil
}

func (s *AnalyticsQueryService) Runway(ctx context.Context, orgID string, in scenario.RunwayInput) (*scenario.RunwayResult, error) {
	return withBaseline(ctx, s, orgID, in, scenario.Runway)
}

func (s *AnalyticsQueryService) PriceIncrease(ctx context.Context, orgID string, in scenario.PriceIncreaseInput) (*scenario.PriceIncreaseResult, error) {
	return withBaseline(ctx, s, orgID, in, scenario.PriceIncrease)
}

func (s *AnalyticsQueryService) ChurnReduction(ctx context.Context, orgID string, in scenario.ChurnReductionInput) (*scenario.ChurnReductionResult, error) {
	b, err := s.Baseline(ctx, orgID, s.now())
	if err != nil {
		return nil, err
	}
	return scenario.ChurnReduction(b, in)
}

func (s *AnalyticsQueryService) Hiring(ctx context.Context, orgID string, in scenario.HiringInput) (*scenario.HiringResult, error) {
	return withBaseline(ctx, s, orgID, in, scenario.Hiring)
}

func (s *AnalyticsQueryService) ExpenseOptimization(ctx context.Context, orgID string, in scenario.ExpenseOptimizationInput) (*scenario.ExpenseOptimizationResult, error) {
	return withBaseline(ctx, s, orgID, in, scenario.ExpenseOptimization)
}

func (s *AnalyticsQueryService) Growth(ctx context.Context, orgID string, in scenario.GrowthInput) (*scenario.GrowthResult, error) {
	return withBaseline(ctx, s, orgID, in, scenario.Growth)
}

func (s *AnalyticsQueryService) BreakEven(ctx context.Context, orgID string, in scenario.BreakEvenInput) (*scenario.BreakEvenResult, error) {
	b, err := s.Baseline(ctx, orgID, s.now())
	if err != nil {
		return nil, err
	}
	return scenario.BreakEven(b, in)
}

func (s *AnalyticsQueryService) ScenarioDashboard(ctx context.Context, orgID string) (*scenario.Dashboard, error) {
	b, err := s.Baseline(ctx, orgID, s.now())
	if err != nil {
		return nil, err
	}
	saved, err := s.scenarios.Count(ctx, orgID)
	if err != nil {
		return nil, err
	}
	d := scenario.BuildDashboard(b, saved)
	return &d, nil
}
