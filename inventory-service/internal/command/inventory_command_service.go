package command

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// DefaultOrderingCost is the per-order cost used when an item names none.
const DefaultOrderingCost = 50

// CatalogStore is repository.ItemRepository.
type CatalogStore interface {
	CreateItem(ctx context.Context, it *models.InventoryItem) error
	GetItem(ctx context.Context, orgID, id string) (*models.InventoryItem, error)
	UpdateItem(ctx context.Context, it *models.InventoryItem) error
	CreateLocation(ctx context.Context, loc *models.Location) error
	SetDefaultLocation(ctx context.Context, orgID, id string) error
	GetLocation(ctx context.Context, orgID, id string) (*models.Location, error)
	DefaultLocation(ctx context.Context, orgID string) (*models.Location, error)
}

// StockStore is repository.StockRepository.
type StockStore interface {
	Apply(ctx context.Context, movements ...*models.InventoryTransaction) error
	OnHand(ctx context.Context, itemID string) (float64, error)
}

type AlertStore interface {
	Open(ctx context.Context, a *models.StockAlert) (bool, error)
	Get(ctx context.Context, id string) (*models.StockAlert, error)
	Acknowledge(ctx context.Context, id string, at time.Time) error
}

type InventoryCommandService struct {
	catalog   CatalogStore
	stock     StockStore
	alerts    AlertStore
	publisher events.Emitter
	logger    *zap.Logger
	now       func() time.Time
}

func NewInventoryCommandService(catalog CatalogStore, stock StockStore, alerts AlertStore, publisher events.Emitter, logger *zap.Logger) *InventoryCommandService {
	return &InventoryCommandService{
		catalog:   catalog,
		stock:     stock,
		alerts:    alerts,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

var (
	trackingTypes = map[string]bool{
		models.TrackingNone:   true,
		models.TrackingSerial: true,
		models.TrackingBatch:  true,
		models.TrackingBoth:   true,
	}
	valuationMethods = map[string]bool{
		models.ValuationFIFO:            true,
		models.ValuationLIFO:            true,
		models.ValuationWeightedAverage: true,
	}
)

func (s *InventoryCommandService) CreateItem(ctx context.Context, cmd cqrs.CreateItemCommand) (*models.InventoryItem, error) {
	tracking := strings.ToUpper(cmd.TrackingType)
	if tracking == "" {
		tracking = models.TrackingNone
	}
	if !trackingTypes[tracking] {
		return nil, apperr.Invalid("unknown tracking type %q", cmd.TrackingType)
	}
	method := strings.ToUpper(cmd.ValuationMethod)
	if method == "" {
		method = models.ValuationFIFO
	}
	if !valuationMethods[method] {
		return nil, apperr.Invalid("unknown valuation method %q", cmd.ValuationMethod)
	}
	ordering := float64(DefaultOrderingCost)
	if cmd.OrderingCost != nil {
		ordering = *cmd.OrderingCost
	}

	now := s.now().UTC()
	it := &models.InventoryItem{
		ID:              utils.GenerateID("itm"),
		OrganizationID:  cmd.OrganizationID,
		SKU:             strings.ToUpper(strings.TrimSpace(cmd.SKU)),
		Name:            strings.TrimSpace(cmd.Name),
		TrackingType:    tracking,
		ValuationMethod: method,
		UnitCost:        cmd.UnitCost,
		ReorderPoint:    cmd.ReorderPoint,
		ReorderQuantity: cmd.ReorderQuantity,
		LeadTimeDays:    cmd.LeadTimeDays,
		LeadTimeStdDev:  cmd.LeadTimeStdDev,
		OrderingCost:    ordering,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := validateItem(it); err != nil {
		return nil, err
	}
	if err := s.catalog.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func validateItem(it *models.InventoryItem) error {
	if it.SKU == "" || it.Name == "" {
		return apperr.Invalid("sku and name are required")
	}
	for field, v := range map[string]float64{
		"unitCost":        it.UnitCost,
		"reorderPoint":    it.ReorderPoint,
		"reorderQuantity": it.ReorderQuantity,
		"leadTimeDays":    it.LeadTimeDays,
		"leadTimeStdDev":  it.LeadTimeStdDev,
		"orderingCost":    it.OrderingCost,
	} {
		if v < 0 {
			return apperr.Invalid("%s must not be negative", field)
		}
	}
	return nil
}

// UpdateItem applies the fields set on the command.
func (s *InventoryCommandService) UpdateItem(ctx context.Context, cmd cqrs.UpdateItemCommand) (*models.InventoryItem, error) {
	it, err := s.catalog.GetItem(ctx, cmd.OrganizationID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		it.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.ValuationMethod != nil {
		method := strings.ToUpper(*cmd.ValuationMethod)
		if !valuationMethods[method] {
			return nil, apperr.Invalid("unknown valuation method %q", *cmd.ValuationMethod)
		}
		it.ValuationMethod = method
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&it.UnitCost, cmd.UnitCost)
	set(&it.ReorderPoint, cmd.ReorderPoint)
	set(&it.ReorderQuantity, cmd.ReorderQuantity)
	set(&it.LeadTimeDays, cmd.LeadTimeDays)
	set(&it.LeadTimeStdDev, cmd.LeadTimeStdDev)
	set(&it.OrderingCost, cmd.OrderingCost)
	if err := validateItem(it); err != nil {
		return nil, err
	}
	it.UpdatedAt = s.now().UTC()
	if err := s.catalog.UpdateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *InventoryCommandService) CreateLocation(ctx context.Context, cmd cqrs.CreateLocationCommand) (*models.Location, error) {
	loc := &models.Location{
		ID:             utils.GenerateID("loc"),
		OrganizationID: cmd.OrganizationID,
		Name:           strings.TrimSpace(cmd.Name),
		Code:           strings.ToUpper(strings.TrimSpace(cmd.Code)),
		IsDefault:      cmd.IsDefault,
		CreatedAt:      s.now().UTC(),
	}
	if loc.Name == "" || loc.Code == "" {
		return nil, apperr.Invalid("name and code are required")
	}
	if err := s.catalog.CreateLocation(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

func (s *InventoryCommandService) SetDefaultLocation(ctx context.Context, cmd cqrs.SetDefaultLocationCommand) (*models.Location, error) {
	if err := s.catalog.SetDefaultLocation(ctx, cmd.OrganizationID, cmd.LocationID); err != nil {
		return nil, err
	}
	return s.catalog.GetLocation(ctx, cmd.OrganizationID, cmd.LocationID)
}

// RecordMovement books a receipt, issue or adjustment and then checks the
// item against its reorder point.
func (s *InventoryCommandService) RecordMovement(ctx context.Context, cmd cqrs.RecordMovementCommand) (*models.InventoryTransaction, error) {
	typ := strings.ToUpper(cmd.Type)
	switch typ {
	case models.MovementIn, models.MovementOut:
		if cmd.Quantity <= 0 {
			return nil, apperr.Invalid("quantity must be greater than 0")
		}
	case models.MovementAdjustment:
		if cmd.Quantity == 0 {
			return nil, apperr.Invalid("adjustment quantity must not be 0")
		}
	default:
		return nil, apperr.Invalid("unknown movement type %q", cmd.Type)
	}

	it, err := s.catalog.GetItem(ctx, cmd.OrganizationID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	loc, err := s.location(ctx, cmd.OrganizationID, cmd.LocationID)
	if err != nil {
		return nil, err
	}
	serials, err := checkTracking(it, math.Abs(cmd.Quantity), cmd.SerialNumbers, cmd.BatchNumber)
	if err != nil {
		return nil, err
	}

	inbound := typ == models.MovementIn || (typ == models.MovementAdjustment && cmd.Quantity > 0)
	m := &models.InventoryTransaction{
		ID:             utils.GenerateID("itx"),
		OrganizationID: cmd.OrganizationID,
		ItemID:         it.ID,
		LocationID:     loc.ID,
		Type:           typ,
		Quantity:       cmd.Quantity,
		UnitCost:       it.UnitCost,
		SerialNumbers:  serials,
		BatchNumber:    strings.TrimSpace(cmd.BatchNumber),
		Reference:      strings.TrimSpace(cmd.Reference),
		CreatedAt:      s.now().UTC(),
	}
	if typ == models.MovementIn && cmd.UnitCost != nil {
		if *cmd.UnitCost < 0 {
			return nil, apperr.Invalid("unitCost must not be negative")
		}
		m.UnitCost = *cmd.UnitCost
	}
	if cmd.UnitPrice != nil {
		m.UnitPrice = *cmd.UnitPrice
	}
	if inbound {
		m.ExpiryDate = cmd.ExpiryDate
	}

	if err := s.stock.Apply(ctx, m); err != nil {
		return nil, err
	}
	s.checkReorder(ctx, it)
	return m, nil
}

// Transfer moves stock between two locations as a paired out and in
// movement.
func (s *InventoryCommandService) Transfer(ctx context.Context, cmd cqrs.TransferStockCommand) ([]*models.InventoryTransaction, error) {
	if cmd.Quantity <= 0 {
		return nil, apperr.Invalid("quantity must be greater than 0")
	}
	if cmd.FromLocationID == cmd.ToLocationID {
		return nil, apperr.Invalid("source and destination locations must differ")
	}
	it, err := s.catalog.GetItem(ctx, cmd.OrganizationID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{cmd.FromLocationID, cmd.ToLocationID} {
		if _, err := s.catalog.GetLocation(ctx, cmd.OrganizationID, id); err != nil {
			return nil, err
		}
	}
	serials, err := checkTracking(it, cmd.Quantity, cmd.SerialNumbers, cmd.BatchNumber)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	transferID := utils.GenerateID("trf")
	leg := func(typ, locationID string) *models.InventoryTransaction {
		return &models.InventoryTransaction{
			ID:             utils.GenerateID("itx"),
			OrganizationID: cmd.OrganizationID,
			ItemID:         it.ID,
			LocationID:     locationID,
			Type:           typ,
			Quantity:       cmd.Quantity,
			UnitCost:       it.UnitCost,
			SerialNumbers:  serials,
			BatchNumber:    strings.TrimSpace(cmd.BatchNumber),
			Reference:      strings.TrimSpace(cmd.Reference),
			TransferID:     transferID,
			CreatedAt:      now,
		}
	}
	out := leg(models.MovementTransferOut, cmd.FromLocationID)
	in := leg(models.MovementTransferIn, cmd.ToLocationID)
	if err := s.stock.Apply(ctx, out, in); err != nil {
		return nil, err
	}
	return []*models.InventoryTransaction{out, in}, nil
}

func (s *InventoryCommandService) location(ctx context.Context, orgID, id string) (*models.Location, error) {
	if id != "" {
		return s.catalog.GetLocation(ctx, orgID, id)
	}
	loc, err := s.catalog.DefaultLocation(ctx, orgID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unprocessable("no default location; pass locationId")
	}
	return loc, err
}

// checkTracking enforces the item's serial and batch requirements and returns
// the cleaned serial numbers.
func checkTracking(it *models.InventoryItem, qty float64, serials []string, batch string) ([]string, error) {
	if !it.TracksSerials() {
		if len(serials) > 0 {
			return nil, apperr.Invalid("item %s does not track serial numbers", it.SKU)
		}
	} else {
		if qty != math.Trunc(qty) {
			return nil, apperr.Invalid("serial-tracked quantities must be whole units")
		}
		seen := make(map[string]bool, len(serials))
		cleaned := make([]string, 0, len(serials))
		for _, sn := range serials {
			sn = strings.TrimSpace(sn)
			if sn == "" || seen[sn] {
				return nil, apperr.Invalid("serial numbers must be distinct and non-empty")
			}
			seen[sn] = true
			cleaned = append(cleaned, sn)
		}
		if float64(len(cleaned)) != qty {
			return nil, apperr.Invalid("expected %d serial numbers, got %d", int(qty), len(cleaned))
		}
		serials = cleaned
	}
	if it.TracksBatches() && strings.TrimSpace(batch) == "" {
		return nil, apperr.Invalid("item %s requires a batch number", it.SKU)
	}
	if !it.TracksBatches() && batch != "" {
		return nil, apperr.Invalid("item %s does not track batches", it.SKU)
	}
	return serials, nil
}

// checkReorder opens a low-stock alert once on-hand stock across all
// locations falls to the reorder point. The movement is already committed, so
// failures here are logged rather than returned.
func (s *InventoryCommandService) checkReorder(ctx context.Context, it *models.InventoryItem) {
	if it.ReorderPoint <= 0 {
		return
	}
	onHand, err := s.stock.OnHand(ctx, it.ID)
	if err != nil {
		s.logger.Warn("failed to read on-hand stock", zap.String("itemId", it.ID), zap.Error(err))
		return
	}
	if onHand > it.ReorderPoint {
		return
	}
	alert := &models.StockAlert{
		ID:             utils.GenerateID("alr"),
		OrganizationID: it.OrganizationID,
		ItemID:         it.ID,
		SKU:            it.SKU,
		OnHand:         onHand,
		ReorderPoint:   it.ReorderPoint,
		Status:         models.AlertOpen,
		CreatedAt:      s.now().UTC(),
	}
	created, err := s.alerts.Open(ctx, alert)
	if err != nil {
		s.logger.Warn("failed to open stock alert", zap.String("itemId", it.ID), zap.Error(err))
		return
	}
	if !created {
		return
	}
	event := events.LowStockEvent{
		OrganizationID: it.OrganizationID,
		ItemID:         it.ID,
		SKU:            it.SKU,
		OnHand:         onHand,
		ReorderPoint:   it.ReorderPoint,
		ReorderQty:     it.ReorderQuantity,
	}
	if err := s.publisher.Publish(ctx, events.InventoryEventsStream, events.InventoryLowStock, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", events.InventoryLowStock), zap.String("itemId", it.ID), zap.Error(err))
		return
	}
	s.logger.Info("low stock alert raised", zap.String("sku", it.SKU), zap.Float64("onHand", onHand))
}

func (s *InventoryCommandService) AcknowledgeAlert(ctx context.Context, cmd cqrs.AcknowledgeAlertCommand) (*models.StockAlert, error) {
	a, err := s.alerts.Get(ctx, cmd.AlertID)
	if err != nil {
		return nil, err
	}
	if a.OrganizationID != cmd.OrganizationID {
		return nil, apperr.Forbidden("stock alert belongs to another organization")
	}
	if a.Status == models.AlertAcknowledged {
		return nil, apperr.Conflict("stock alert already acknowledged")
	}
	at := s.now().UTC()
	if err := s.alerts.Acknowledge(ctx, a.ID, at); err != nil {
		return nil, err
	}
	a.Status = models.AlertAcknowledged
	a.AcknowledgedAt = &at
	return a, nil
}
