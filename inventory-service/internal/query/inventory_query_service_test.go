package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/inventory-service/internal/forecast"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/inventory-service/internal/valuation"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

const org = "org-001"

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 12, 0, 0, 0, time.UTC)
}

type stubStore struct {
	items     []models.InventoryItem
	levels    []models.StockLevel
	movements []models.InventoryTransaction
	alerts    []models.StockAlert
	batchesBy *models.Date
}

func (s *stubStore) GetItem(_ context.Context, orgID, id string) (*models.InventoryItem, error) {
	for _, it := range s.items {
		if it.ID == id && it.OrganizationID == orgID {
			cp := it
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("inventory item")
}

func (s *stubStore) ListItems(context.Context, string) ([]models.InventoryItem, error) {
	return s.items, nil
}

func (s *stubStore) ListLocations(context.Context, string) ([]models.Location, error) {
	return []models.Location{}, nil
}

func (s *stubStore) Stock(_ context.Context, q cqrs.StockQuery) ([]models.StockLevel, error) {
	return s.levels, nil
}

func (s *stubStore) OnHandByItem(context.Context, string) (map[string]float64, error) {
	totals := map[string]float64{}
	for _, l := range s.levels {
		totals[l.ItemID] += l.Quantity
	}
	return totals, nil
}

func (s *stubStore) Serial(_ context.Context, _, serial string) (*models.SerialNumber, error) {
	return nil, apperr.NotFound("serial number")
}

func (s *stubStore) Batches(_ context.Context, _, _ string, by *models.Date) ([]models.Batch, error) {
	s.batchesBy = by
	return []models.Batch{}, nil
}

func (s *stubStore) Movements(_ context.Context, q cqrs.MovementsQuery) ([]models.InventoryTransaction, error) {
	var out []models.InventoryTransaction
	for _, m := range s.movements {
		if q.ItemID != "" && m.ItemID != q.ItemID {
			continue
		}
		if len(q.Types) > 0 && m.Type != q.Types[0] {
			continue
		}
		if (!q.From.IsZero() && m.CreatedAt.Before(q.From)) || (!q.To.IsZero() && !m.CreatedAt.Before(q.To)) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *stubStore) List(_ context.Context, _, status string) ([]models.StockAlert, error) {
	return s.alerts, nil
}

func mv(itemID, typ string, qty, cost float64, at time.Time) models.InventoryTransaction {
	return models.InventoryTransaction{ItemID: itemID, Type: typ, Quantity: qty, UnitCost: cost, CreatedAt: at}
}

type mapCache map[string]*forecast.ABCReport

func (m mapCache) Get(_ context.Context, key string) (*forecast.ABCReport, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapCache) Set(_ context.Context, key string, v *forecast.ABCReport) { m[key] = v }

func newService(store *stubStore) *InventoryQueryService {
	svc := NewInventoryQueryService(store, store, store, mapCache{})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func demandStore() *stubStore {
	return &stubStore{
		items: []models.InventoryItem{{
			ID: "itm-1", OrganizationID: org, SKU: "WID", ValuationMethod: models.ValuationFIFO, UnitCost: 5,
			LeadTimeDays: 10, OrderingCost: 50, ReorderPoint: 12, CreatedAt: day(time.January, 10),
		}},
		movements: []models.InventoryTransaction{
			mv("itm-1", models.MovementOut, 10, 5, day(time.January, 15)),
			mv("itm-1", models.MovementOut, 20, 5, day(time.February, 15)),
			mv("itm-1", models.MovementOut, 30, 5, day(time.March, 15)),
			mv("itm-1", models.MovementOut, 40, 5, day(time.April, 15)),
			mv("itm-1", models.MovementOut, 99, 5, day(time.May, 2)),
			mv("itm-1", models.MovementIn, 200, 5, day(time.January, 12)),
		},
	}
}

func TestForecastMovingAverage(t *testing.T) {
	svc := newService(demandStore())
	res, err := svc.Forecast(context.Background(), cqrs.ForecastQuery{OrganizationID: org, ItemID: "itm-1", Periods: 1})
	require.NoError(t, err)
	assert.Equal(t, forecast.MethodMovingAverage, res.Method)
	require.Len(t, res.History, 4, "current month excluded")
	assert.Equal(t, 10.0, res.History[0].Demand)
	require.Len(t, res.Forecast, 1)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), res.Forecast[0].Month)
	assert.Equal(t, 40.0, res.Forecast[0].Demand)
	assert.Equal(t, 75.0, res.Confidence)
}

func TestForecastErrors(t *testing.T) {
	svc := newService(demandStore())
	tests := []struct {
		name string
		q    cqrs.ForecastQuery
		want error
	}{
		{"seasonal without two years", cqrs.ForecastQuery{Method: forecast.MethodSeasonal}, apperr.ErrUnprocessable},
		{"unknown method", cqrs.ForecastQuery{Method: "arima"}, apperr.ErrInvalid},
		{"too many periods", cqrs.ForecastQuery{Periods: 30}, apperr.ErrInvalid},
		{"bad alpha", cqrs.ForecastQuery{Method: forecast.MethodExponentialSmoothing, Alpha: 2}, apperr.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.q
			q.OrganizationID, q.ItemID = org, "itm-1"
			_, err := svc.Forecast(context.Background(), q)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.Forecast(context.Background(), cqrs.ForecastQuery{OrganizationID: "org-002", ItemID: "itm-1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReorder(t *testing.T) {
	svc := newService(demandStore())
	rec, err := svc.Reorder(context.Background(), cqrs.ReorderQuery{OrganizationID: org, ItemID: "itm-1"})
	require.NoError(t, err)
	assert.Equal(t, 0.95, rec.ServiceLevel)
	assert.Equal(t, 4, rec.MonthsOfHistory)
	assert.Equal(t, 300.0, rec.AnnualDemand)
	assert.Equal(t, 12.0, rec.CurrentReorderPoint)
	assert.Greater(t, rec.ReorderPoint, rec.SafetyStock)

	_, err = svc.Reorder(context.Background(), cqrs.ReorderQuery{OrganizationID: org, ItemID: "itm-1", ServiceLevel: 1.5})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestAccuracy(t *testing.T) {
	svc := newService(demandStore())
	acc, err := svc.Accuracy(context.Background(), org, "itm-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, acc.Samples)
	assert.Equal(t, 15.0, acc.MAE)

	_, err = svc.Accuracy(context.Background(), org, "itm-1", 4)
	assert.ErrorIs(t, err, apperr.ErrUnprocessable)
}

func TestValuation(t *testing.T) {
	store := &stubStore{
		items: []models.InventoryItem{
			{ID: "itm-1", OrganizationID: org, SKU: "A", ValuationMethod: models.ValuationFIFO, UnitCost: 5},
			{ID: "itm-2", OrganizationID: org, SKU: "B", ValuationMethod: models.ValuationWeightedAverage, UnitCost: 5},
		},
		levels: []models.StockLevel{
			{ItemID: "itm-1", LocationID: "loc-1", Quantity: 10},
			{ItemID: "itm-1", LocationID: "loc-2", Quantity: 5},
			{ItemID: "itm-2", LocationID: "loc-1", Quantity: 4},
		},
		movements: []models.InventoryTransaction{
			mv("itm-1", models.MovementIn, 10, 1, day(time.January, 1)),
			mv("itm-1", models.MovementIn, 10, 2, day(time.February, 1)),
			mv("itm-1", models.MovementIn, 10, 3, day(time.March, 1)),
			mv("itm-1", models.MovementOut, 15, 5, day(time.April, 1)),
		},
	}
	report, err := newService(store).Valuation(context.Background(), org, "")
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, valuation.ItemValue{
		ItemID: "itm-1", SKU: "A", Method: models.ValuationFIFO, Quantity: 15, UnitCost: 5, TotalValue: 40, AverageCost: 2.67,
	}, report.Items[0])
	assert.Equal(t, 20.0, report.Items[1].TotalValue)
	assert.Equal(t, 60.0, report.TotalValue)

	single, err := newService(store).Valuation(context.Background(), org, "itm-2")
	require.NoError(t, err)
	assert.Len(t, single.Items, 1)
}

func TestABC(t *testing.T) {
	store := demandStore()
	store.items = append(store.items, models.InventoryItem{ID: "itm-2", OrganizationID: org, SKU: "IDLE", UnitCost: 100})
	report, err := newService(store).ABC(context.Background(), org)
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, "itm-1", report.Items[0].ItemID)
	assert.Equal(t, 199.0, report.Items[0].AnnualUnits)
	assert.Equal(t, forecast.ClassA, report.Items[0].Class)
	assert.Equal(t, forecast.ClassC, report.Items[1].Class)
}

func TestABCCachedPerDay(t *testing.T) {
	store := demandStore()
	cache := mapCache{}
	svc := NewInventoryQueryService(store, store, store, cache)
	svc.now = func() time.Time { return fixedNow }

	first, err := svc.ABC(context.Background(), org)
	require.NoError(t, err)
	assert.Contains(t, cache, "inventory:abc:org-001:2026-05-04")

	store.items = nil
	second, err := svc.ABC(context.Background(), org)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestBatchesExpiringWithin(t *testing.T) {
	store := &stubStore{}
	svc := newService(store)
	days := 10
	_, err := svc.Batches(context.Background(), cqrs.BatchesQuery{OrganizationID: org, ExpiringWithinDays: &days})
	require.NoError(t, err)
	require.NotNil(t, store.batchesBy)
	assert.Equal(t, "2026-05-14", store.batchesBy.String())

	neg := -1
	_, err = svc.Batches(context.Background(), cqrs.BatchesQuery{OrganizationID: org, ExpiringWithinDays: &neg})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestAlertsStatus(t *testing.T) {
	svc := newService(&stubStore{})
	_, err := svc.Alerts(context.Background(), org, models.AlertOpen)
	assert.NoError(t, err)
	_, err = svc.Alerts(context.Background(), org, "closed")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestReports(t *testing.T) {
	store := demandStore()
	store.levels = []models.StockLevel{{ItemID: "itm-1", LocationID: "loc-1", Quantity: 11}}
	store.alerts = []models.StockAlert{{ID: "alr-1", Status: models.AlertOpen}, {ID: "alr-2", Status: models.AlertAcknowledged}}
	svc := newService(store)
	ctx := context.Background()

	levels, err := svc.Report(ctx, org, ReportStockLevels, time.Time{}, time.Time{})
	require.NoError(t, err)
	stock := levels.(*StockLevelsReport)
	assert.Equal(t, 1, stock.BelowCount)
	assert.Equal(t, 11.0, stock.Items[0].OnHand)

	moves, err := svc.Report(ctx, org, ReportMovements, day(time.April, 1), time.Time{})
	require.NoError(t, err)
	mr := moves.(*MovementsReport)
	assert.Equal(t, 2, mr.Counts[models.MovementOut])
	assert.Equal(t, 139.0, mr.Quantity[models.MovementOut])

	alerts, err := svc.Report(ctx, org, ReportAlerts, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, alerts.(*AlertsReport).Open)

	_, err = svc.Report(ctx, org, ReportValuation, time.Time{}, time.Time{})
	require.NoError(t, err)

	_, err = svc.Report(ctx, org, "aging", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = svc.Report(ctx, org, ReportMovements, fixedNow, fixedNow)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
