package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type memCatalog struct {
	items     map[string]*models.InventoryItem
	locations map[string]*models.Location
}

func (m *memCatalog) CreateItem(_ context.Context, it *models.InventoryItem) error {
	for _, existing := range m.items {
		if existing.OrganizationID == it.OrganizationID && existing.SKU == it.SKU {
			return apperr.Conflict("sku %q already exists", it.SKU)
		}
	}
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *memCatalog) GetItem(_ context.Context, orgID, id string) (*models.InventoryItem, error) {
	it, ok := m.items[id]
	if !ok || it.OrganizationID != orgID {
		return nil, apperr.NotFound("inventory item")
	}
	cp := *it
	return &cp, nil
}

func (m *memCatalog) UpdateItem(_ context.Context, it *models.InventoryItem) error {
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *memCatalog) CreateLocation(_ context.Context, loc *models.Location) error {
	if len(m.locations) == 0 {
		loc.IsDefault = true
	}
	if loc.IsDefault {
		for _, l := range m.locations {
			l.IsDefault = false
		}
	}
	cp := *loc
	m.locations[loc.ID] = &cp
	return nil
}

func (m *memCatalog) SetDefaultLocation(_ context.Context, orgID, id string) error {
	if _, ok := m.locations[id]; !ok {
		return apperr.NotFound("location")
	}
	for _, l := range m.locations {
		l.IsDefault = l.ID == id
	}
	return nil
}

func (m *memCatalog) GetLocation(_ context.Context, orgID, id string) (*models.Location, error) {
	l, ok := m.locations[id]
	if !ok || l.OrganizationID != orgID {
		return nil, apperr.NotFound("location")
	}
	cp := *l
	return &cp, nil
}

func (m *memCatalog) DefaultLocation(_ context.Context, orgID string) (*models.Location, error) {
	for _, l := range m.locations {
		if l.OrganizationID == orgID && l.IsDefault {
			cp := *l
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("location")
}

type stockKey struct{ item, location string }

type memStock struct {
	levels    map[stockKey]float64
	movements []models.InventoryTransaction
}

func (m *memStock) Apply(_ context.Context, movements ...*models.InventoryTransaction) error {
	next := map[stockKey]float64{}
	for k, v := range m.levels {
		next[k] = v
	}
	for _, mv := range movements {
		delta := mv.Quantity
		if mv.Type == models.MovementOut || mv.Type == models.MovementTransferOut {
			delta = -mv.Quantity
		}
		k := stockKey{mv.ItemID, mv.LocationID}
		if next[k]+delta < 0 {
			return apperr.Unprocessable("insufficient stock at location %s", mv.LocationID)
		}
		next[k] += delta
	}
	m.levels = next
	for _, mv := range movements {
		m.movements = append(m.movements, *mv)
	}
	return nil
}

func (m *memStock) OnHand(_ context.Context, itemID string) (float64, error) {
	var total float64
	for k, v := range m.levels {
		if k.item == itemID {
			total += v
		}
	}
	return total, nil
}

type memAlerts struct {
	alerts map[string]*models.StockAlert
}

func (m *memAlerts) Open(_ context.Context, a *models.StockAlert) (bool, error) {
	for _, existing := range m.alerts {
		if existing.ItemID == a.ItemID && existing.Status == models.AlertOpen {
			return false, nil
		}
	}
	cp := *a
	m.alerts[a.ID] = &cp
	return true, nil
}

func (m *memAlerts) Get(_ context.Context, id string) (*models.StockAlert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, apperr.NotFound("stock alert")
	}
	cp := *a
	return &cp, nil
}

func (m *memAlerts) Acknowledge(_ context.Context, id string, at time.Time) error {
	m.alerts[id].Status = models.AlertAcknowledged
	m.alerts[id].AcknowledgedAt = &at
	return nil
}

type recordingEmitter struct {
	lowStock []events.LowStockEvent
	fail     bool
}

func (r *recordingEmitter) Publish(_ context.Context, stream, eventType string, data any) error {
	if r.fail {
		return errors.New("redis unavailable")
	}
	if stream == events.InventoryEventsStream && eventType == events.InventoryLowStock {
		r.lowStock = append(r.lowStock, data.(events.LowStockEvent))
	}
	return nil
}

type fixture struct {
	svc     *InventoryCommandService
	catalog *memCatalog
	stock   *memStock
	alerts  *memAlerts
	emitter *recordingEmitter
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

const org = "org-001"

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		catalog: &memCatalog{items: map[string]*models.InventoryItem{}, locations: map[string]*models.Location{}},
		stock:   &memStock{levels: map[stockKey]float64{}},
		alerts:  &memAlerts{alerts: map[string]*models.StockAlert{}},
		emitter: &recordingEmitter{},
	}
	f.svc = NewInventoryCommandService(f.catalog, f.stock, f.alerts, f.emitter, zap.NewNop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f fixture) item(t *testing.T, tracking string, reorderPoint float64) *models.InventoryItem {
	t.Helper()
	it, err := f.svc.CreateItem(context.Background(), cqrs.CreateItemCommand{
		OrganizationID: org, SKU: " wid-" + tracking + " ", Name: "Widget", TrackingType: tracking,
		UnitCost: 4, ReorderPoint: reorderPoint, ReorderQuantity: 50,
	})
	require.NoError(t, err)
	return it
}

func (f fixture) location(t *testing.T, code string) *models.Location {
	t.Helper()
	loc, err := f.svc.CreateLocation(context.Background(), cqrs.CreateLocationCommand{OrganizationID: org, Name: code, Code: code})
	require.NoError(t, err)
	return loc
}

func (f fixture) move(typ, itemID, locationID string, qty float64) (*models.InventoryTransaction, error) {
	return f.svc.RecordMovement(context.Background(), cqrs.RecordMovementCommand{
		OrganizationID: org, ItemID: itemID, LocationID: locationID, Type: typ, Quantity: qty,
	})
}

func TestCreateItemDefaults(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, "", 0)
	assert.Equal(t, "WID-", it.SKU)
	assert.Equal(t, models.TrackingNone, it.TrackingType)
	assert.Equal(t, models.ValuationFIFO, it.ValuationMethod)
	assert.Equal(t, 50.0, it.OrderingCost)
	assert.Equal(t, fixedNow, it.CreatedAt)
}

func TestCreateItemValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  cqrs.CreateItemCommand
	}{
		{"unknown tracking", cqrs.CreateItemCommand{SKU: "A", Name: "A", TrackingType: "RFID"}},
		{"unknown valuation", cqrs.CreateItemCommand{SKU: "A", Name: "A", ValuationMethod: "HIFO"}},
		{"negative cost", cqrs.CreateItemCommand{SKU: "A", Name: "A", UnitCost: -1}},
		{"missing sku", cqrs.CreateItemCommand{Name: "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newFixture(t).svc.CreateItem(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, models.TrackingNone, 0)
	method, cost := "lifo", 6.5
	updated, err := f.svc.UpdateItem(context.Background(), cqrs.UpdateItemCommand{
		OrganizationID: org, ItemID: it.ID, ValuationMethod: &method, UnitCost: &cost,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ValuationLIFO, updated.ValuationMethod)
	assert.Equal(t, 6.5, updated.UnitCost)
	assert.Equal(t, "Widget", updated.Name)

	_, err = f.svc.UpdateItem(context.Background(), cqrs.UpdateItemCommand{OrganizationID: "org-002", ItemID: it.ID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDefaultLocationSwap(t *testing.T) {
	f := newFixture(t)
	main := f.location(t, "main")
	annex := f.location(t, "anx")
	assert.True(t, f.catalog.locations[main.ID].IsDefault)
	assert.Equal(t, "ANX", annex.Code)

	loc, err := f.svc.SetDefaultLocation(context.Background(), cqrs.SetDefaultLocationCommand{OrganizationID: org, LocationID: annex.ID})
	require.NoError(t, err)
	assert.True(t, loc.IsDefault)
	assert.False(t, f.catalog.locations[main.ID].IsDefault)
}

func TestRecordMovementUsesDefaultLocation(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, models.TrackingNone, 0)

	_, err := f.move(models.MovementIn, it.ID, "", 10)
	assert.ErrorIs(t, err, apperr.ErrUnprocessable, "no locations yet")

	loc := f.location(t, "main")
	m, err := f.move("in", it.ID, "", 10)
	require.NoError(t, err)
	assert.Equal(t, loc.ID, m.LocationID)
	assert.Equal(t, models.MovementIn, m.Type)
	assert.Equal(t, 4.0, m.UnitCost, "receipt cost defaults to item cost")
}

func TestRecordMovementQuantities(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, models.TrackingNone, 0)
	loc := f.location(t, "main")

	_, err := f.move(models.MovementOut, it.ID, loc.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = f.move(models.MovementAdjustment, it.ID, loc.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = f.move("SCRAP", it.ID, loc.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = f.move(models.MovementOut, it.ID, loc.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrUnprocessable)

	_, err = f.move(models.MovementIn, it.ID, loc.ID, 5)
	require.NoError(t, err)
	_, err = f.move(models.MovementAdjustment, it.ID, loc.ID, -2)
	require.NoError(t, err)
	onHand, _ := f.stock.OnHand(context.Background(), it.ID)
	assert.Equal(t, 3.0, onHand)
}

func TestRecordMovementTracking(t *testing.T) {
	f := newFixture(t)
	serial := f.item(t, models.TrackingSerial, 0)
	batch := f.item(t, models.TrackingBatch, 0)
	plain := f.item(t, models.TrackingNone, 0)
	loc := f.location(t, "main")

	tests := []struct {
		name   string
		cmd    cqrs.RecordMovementCommand
		wantOK bool
	}{
		{"serial count matches", cqrs.RecordMovementCommand{ItemID: serial.ID, Quantity: 2, SerialNumbers: []string{"S1", " S2 "}}, true},
		{"serial count short", cqrs.RecordMovementCommand{ItemID: serial.ID, Quantity: 2, SerialNumbers: []string{"S3"}}, false},
		{"duplicate serials", cqrs.RecordMovementCommand{ItemID: serial.ID, Quantity: 2, SerialNumbers: []string{"S4", "S4"}}, false},
		{"fractional serial quantity", cqrs.RecordMovementCommand{ItemID: serial.ID, Quantity: 1.5, SerialNumbers: []string{"S5"}}, false},
		{"batch required", cqrs.RecordMovementCommand{ItemID: batch.ID, Quantity: 2}, false},
		{"batch given", cqrs.RecordMovementCommand{ItemID: batch.ID, Quantity: 2, BatchNumber: "B-1"}, true},
		{"untracked serials rejected", cqrs.RecordMovementCommand{ItemID: plain.ID, Quantity: 1, SerialNumbers: []string{"S6"}}, false},
		{"untracked batch rejected", cqrs.RecordMovementCommand{ItemID: plain.ID, Quantity: 1, BatchNumber: "B-2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.cmd
			cmd.OrganizationID, cmd.LocationID, cmd.Type = org, loc.ID, models.MovementIn
			m, err := f.svc.RecordMovement(context.Background(), cmd)
			if tt.wantOK {
				require.NoError(t, err)
				assert.NotEmpty(t, m.ID)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}
	assert.Equal(t, []string{"S1", "S2"}, f.stock.movements[0].SerialNumbers)
}

func TestLowStockAlertRaisedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	it := f.item(t, models.TrackingNone, 10)
	main := f.location(t, "main")
	annex := f.location(t, "anx")

	_, err := f.move(models.MovementIn, it.ID, main.ID, 12)
	require.NoError(t, err)
	_, err = f.move(models.MovementIn, it.ID, annex.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, f.emitter.lowStock)

	_, err = f.move(models.MovementOut, it.ID, main.ID, 5)
	require.NoError(t, err)
	require.Len(t, f.emitter.lowStock, 1)
	ev := f.emitter.lowStock[0]
	assert.Equal(t, 10.0, ev.OnHand, "counted across locations")
	assert.Equal(t, 50.0, ev.ReorderQty)

	_, err = f.move(models.MovementOut, it.ID, main.ID, 1)
	require.NoError(t, err)
	assert.Len(t, f.emitter.lowStock, 1, "one open alert per item")
	assert.Len(t, f.alerts.alerts, 1)

	var alertID string
	for id := range f.alerts.alerts {
		alertID = id
	}
	a, err := f.svc.AcknowledgeAlert(ctx, cqrs.AcknowledgeAlertCommand{OrganizationID: org, AlertID: alertID})
	require.NoError(t, err)
	assert.Equal(t, models.AlertAcknowledged, a.Status)

	_, err = f.svc.AcknowledgeAlert(ctx, cqrs.AcknowledgeAlertCommand{OrganizationID: org, AlertID: alertID})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.AcknowledgeAlert(ctx, cqrs.AcknowledgeAlertCommand{OrganizationID: "org-002", AlertID: alertID})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.move(models.MovementOut, it.ID, main.ID, 1)
	require.NoError(t, err)
	assert.Len(t, f.emitter.lowStock, 2, "a new alert after acknowledgement")
}

func TestLowStockPublishFailureKeepsMovement(t *testing.T) {
	f := newFixture(t)
	it := f.item(t, models.TrackingNone, 10)
	loc := f.location(t, "main")
	f.emitter.fail = true

	m, err := f.move(models.MovementIn, it.ID, loc.ID, 4)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Len(t, f.alerts.alerts, 1)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	it := f.item(t, models.TrackingNone, 0)
	main := f.location(t, "main")
	annex := f.location(t, "anx")
	_, err := f.move(models.MovementIn, it.ID, main.ID, 5)
	require.NoError(t, err)

	legs, err := f.svc.Transfer(ctx, cqrs.TransferStockCommand{
		OrganizationID: org, ItemID: it.ID, FromLocationID: main.ID, ToLocationID: annex.ID, Quantity: 3,
	})
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, models.MovementTransferOut, legs[0].Type)
	assert.Equal(t, models.MovementTransferIn, legs[1].Type)
	assert.Equal(t, legs[0].TransferID, legs[1].TransferID)
	assert.Equal(t, 2.0, f.stock.levels[stockKey{it.ID, main.ID}])
	assert.Equal(t, 3.0, f.stock.levels[stockKey{it.ID, annex.ID}])

	_, err = f.svc.Transfer(ctx, cqrs.TransferStockCommand{
		OrganizationID: org, ItemID: it.ID, FromLocationID: main.ID, ToLocationID: annex.ID, Quantity: 3,
	})
	assert.ErrorIs(t, err, apperr.ErrUnprocessable)
	assert.Equal(t, 2.0, f.stock.levels[stockKey{it.ID, main.ID}], "nothing moved")

	_, err = f.svc.Transfer(ctx, cqrs.TransferStockCommand{
		OrganizationID: org, ItemID: it.ID, FromLocationID: main.ID, ToLocationID: main.ID, Quantity: 1,
	})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = f.svc.Transfer(ctx, cqrs.TransferStockCommand{
		OrganizationID: org, ItemID: it.ID, FromLocationID: main.ID, ToLocationID: "loc-missing", Quantity: 1,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
