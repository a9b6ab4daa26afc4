package query

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/inventory-service/internal/forecast"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/inventory-service/internal/valuation"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

type catalogReader interface {
	GetItem(ctx context.Context, orgID, id string) (*models.InventoryItem, error)
	ListItems(ctx context.Context, orgID string) ([]models.InventoryItem, error)
	ListLocations(ctx context.Context, orgID string) ([]models.Location, error)
}

type stockReader interface {
	Stock(ctx context.Context, q cqrs.StockQuery) ([]models.StockLevel, error)
	OnHandByItem(ctx context.Context, orgID string) (map[string]float64, error)
	Serial(ctx context.Context, orgID, serial string) (*models.SerialNumber, error)
	Batches(ctx context.Context, orgID, itemID string, expiringBy *models.Date) ([]models.Batch, error)
	Movements(ctx context.Context, q cqrs.MovementsQuery) ([]models.InventoryTransaction, error)
}

type alertReader interface {
	List(ctx context.Context, orgID, status string) ([]models.StockAlert, error)
}

type abcCache interface {
	Get(ctx context.Context, key string) (*forecast.ABCReport, bool)
	Set(ctx context.Context, key string, value *forecast.ABCReport)
}

// Forecast defaults and bounds.
const (
	DefaultPeriods      = 3
	MaxPeriods          = 24
	DefaultWindow       = 3
	DefaultAlpha        = 0.3
	DefaultServiceLevel = 0.95
	// HistoryMonths caps how far back demand history reaches.
	HistoryMonths = 36
)

type InventoryQueryService struct {
	catalog catalogReader
	stock   stockReader
	alerts  alertReader
	cache   abcCache
	now     func() time.Time
}

func NewInventoryQueryService(catalog catalogReader, stock stockReader, alerts alertReader, cache abcCache) *InventoryQueryService {
	return &InventoryQueryService{catalog: catalog, stock: stock, alerts: alerts, cache: cache, now: time.Now}
}

func (s *InventoryQueryService) ListItems(ctx context.Context, orgID string) ([]models.InventoryItem, error) {
	return s.catalog.ListItems(ctx, orgID)
}

func (s *InventoryQueryService) GetItem(ctx context.Context, orgID, id string) (*models.InventoryItem, error) {
	return s.catalog.GetItem(ctx, orgID, id)
}

func (s *InventoryQueryService) ListLocations(ctx context.Context, orgID string) ([]models.Location, error) {
	return s.catalog.ListLocations(ctx, orgID)
}

func (s *InventoryQueryService) Stock(ctx context.Context, q cqrs.StockQuery) ([]models.StockLevel, error) {
	return s.stock.Stock(ctx, q)
}

func (s *InventoryQueryService) Serial(ctx context.Context, orgID, serial string) (*models.SerialNumber, error) {
	return s.stock.Serial(ctx, orgID, serial)
}

// Batches lists batches with stock, optionally only those expiring within the
// given number of days from today.
func (s *InventoryQueryService) Batches(ctx context.Context, q cqrs.BatchesQuery) ([]models.Batch, error) {
	var by *models.Date
	if q.ExpiringWithinDays != nil {
		if *q.ExpiringWithinDays < 0 {
			return nil, apperr.Invalid("expiringWithinDays must not be negative")
		}
		d := models.NewDate(s.now().AddDate(0, 0, *q.ExpiringWithinDays))
		by = &d
	}
	return s.stock.Batches(ctx, q.OrganizationID, q.ItemID, by)
}

func (s *InventoryQueryService) Alerts(ctx context.Context, orgID, status string) ([]models.StockAlert, error) {
	switch status {
	case "", models.AlertOpen, models.AlertAcknowledged:
		return s.alerts.List(ctx, orgID, status)
	default:
		return nil, apperr.Invalid("unknown alert status %q", status)
	}
}

// Valuation prices on-hand stock of one item, or every item when itemID is
// empty, by each item's valuation method.
func (s *InventoryQueryService) Valuation(ctx context.Context, orgID, itemID string) (*valuation.Report, error) {
	var (
		items    []models.InventoryItem
		onHand   map[string]float64
		receipts []models.InventoryTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if itemID == "" {
			var err error
			items, err = s.catalog.ListItems(gctx, orgID)
			return err
		}
		it, err := s.catalog.GetItem(gctx, orgID, itemID)
		if err != nil {
			return err
		}
		items = []models.InventoryItem{*it}
		return nil
	})
	g.Go(func() (err error) {
		onHand, err = s.stock.OnHandByItem(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		receipts, err = s.stock.Movements(gctx, cqrs.MovementsQuery{
			OrganizationID: orgID,
			ItemID:         itemID,
			Types:          []string{models.MovementIn},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	layers := map[string][]valuation.Receipt{}
	for _, r := range receipts {
		layers[r.ItemID] = append(layers[r.ItemID], valuation.Receipt{Quantity: r.Quantity, UnitCost: r.UnitCost, At: r.CreatedAt})
	}
	values := make([]valuation.ItemValue, 0, len(items))
	for _, it := range items {
		values = append(values, valuation.Value(it, onHand[it.ID], layers[it.ID]))
	}
	report := valuation.Summarize(s.now().UTC(), values)
	return &report, nil
}

// demand builds the item's monthly OUT history over complete months, starting
// at the month it was created and reaching back at most HistoryMonths.
func (s *InventoryQueryService) demand(ctx context.Context, it *models.InventoryItem) (forecast.Series, error) {
	to := utils.MonthStart(s.now())
	from := utils.MonthStart(it.CreatedAt)
	if earliest := to.AddDate(0, -HistoryMonths, 0); from.Before(earliest) {
		from = earliest
	}
	if from.After(to) {
		from = to
	}
	outs, err := s.stock.Movements(ctx, cqrs.MovementsQuery{
		OrganizationID: it.OrganizationID,
		ItemID:         it.ID,
		Types:          []string{models.MovementOut},
		From:           from,
		To:             to,
	})
	if err != nil {
		return forecast.Series{}, err
	}
	demand := make([]forecast.Demand, len(outs))
	for i, m := range outs {
		demand[i] = forecast.Demand{Quantity: m.Quantity, At: m.CreatedAt}
	}
	return forecast.MonthlyDemand(demand, from, to), nil
}

func (s *InventoryQueryService) Forecast(ctx context.Context, q cqrs.ForecastQuery) (*forecast.Result, error) {
	periods := q.Periods
	if periods == 0 {
		periods = DefaultPeriods
	}
	if periods < 1 || periods > MaxPeriods {
		return nil, apperr.Invalid("periods must be between 1 and %d", MaxPeriods)
	}
	method := q.Method
	if method == "" {
		method = forecast.MethodMovingAverage
	}
	switch method {
	case forecast.MethodMovingAverage, forecast.MethodExponentialSmoothing, forecast.MethodSeasonal:
	default:
		return nil, apperr.Invalid("unknown forecast method %q", q.Method)
	}

	it, err := s.catalog.GetItem(ctx, q.OrganizationID, q.ItemID)
	if err != nil {
		return nil, err
	}
	series, err := s.demand(ctx, it)
	if err != nil {
		return nil, err
	}
	switch method {
	case forecast.MethodExponentialSmoothing:
		alpha := q.Alpha
		if alpha == 0 {
			alpha = DefaultAlpha
		}
		return forecast.ExponentialSmoothing(series, alpha, periods)
	case forecast.MethodSeasonal:
		return forecast.Seasonal(series, periods)
	default:
		window := q.Window
		if window == 0 {
			window = DefaultWindow
		}
		return forecast.MovingAverage(series, window, periods)
	}
}

type ReorderRecommendation struct {
	ItemID string `json:"itemId"`
	SKU    string `json:"sku"`
	forecast.ReorderPlan
	MonthsOfHistory int `json:"monthsOfHistory"`
}

// Reorder derives reorder parameters from the last twelve complete months of
// demand.
func (s *InventoryQueryService) Reorder(ctx context.Context, q cqrs.ReorderQuery) (*ReorderRecommendation, error) {
	level := q.ServiceLevel
	if level == 0 {
		level = DefaultServiceLevel
	}
	if level <= 0 || level >= 1 {
		return nil, apperr.Invalid("serviceLevel must be between 0 and 1")
	}
	it, err := s.catalog.GetItem(ctx, q.OrganizationID, q.ItemID)
	if err != nil {
		return nil, err
	}
	series, err := s.demand(ctx, it)
	if err != nil {
		return nil, err
	}
	monthly := series.Values
	if len(monthly) > 12 {
		monthly = monthly[len(monthly)-12:]
	}
	plan := forecast.Reorder(forecast.ReorderInput{
		Monthly:        monthly,
		LeadTimeDays:   it.LeadTimeDays,
		LeadTimeStdDev: it.LeadTimeStdDev,
		UnitCost:       it.UnitCost,
		OrderingCost:   it.OrderingCost,
		ServiceLevel:   level,
	})
	plan.CurrentReorderPoint = it.ReorderPoint
	plan.CurrentReorderQty = it.ReorderQuantity
	return &ReorderRecommendation{ItemID: it.ID, SKU: it.SKU, ReorderPlan: plan, MonthsOfHistory: len(monthly)}, nil
}

// ABC classifies every item by the value of its issues over the last year.
// Reports are cached per organization and day.
func (s *InventoryQueryService) ABC(ctx context.Context, orgID string) (*forecast.ABCReport, error) {
	now := s.now().UTC()
	key := "inventory:abc:" + orgID + ":" + now.Format("2006-01-02")
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, nil
	}
	var (
		items []models.InventoryItem
		outs  []models.InventoryTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = s.catalog.ListItems(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		outs, err = s.stock.Movements(gctx, cqrs.MovementsQuery{
			OrganizationID: orgID,
			Types:          []string{models.MovementOut},
			From:           now.AddDate(-1, 0, 0),
			To:             now,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	units := map[string]float64{}
	for _, m := range outs {
		units[m.ItemID] += m.Quantity
	}
	consumption := make([]forecast.Consumption, 0, len(items))
	for _, it := range items {
		consumption = append(consumption, forecast.Consumption{
			ItemID:      it.ID,
			SKU:         it.SKU,
			Name:        it.Name,
			AnnualUnits: units[it.ID],
			UnitCost:    it.UnitCost,
		})
	}
	report := forecast.ABC(consumption)
	s.cache.Set(ctx, key, &report)
	return &report, nil
}

func (s *InventoryQueryService) Accuracy(ctx context.Context, orgID, itemID string, window int) (*forecast.Accuracy, error) {
	if window == 0 {
		window = DefaultWindow
	}
	it, err := s.catalog.GetItem(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}
	series, err := s.demand(ctx, it)
	if err != nil {
		return nil, err
	}
	return forecast.Backtest(series, window)
}
