package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/inventory-service/internal/valuation"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

type InventoryCommander interface {
	CreateItem(context.Context, cqrs.CreateItemCommand) (*models.InventoryItem, error)
	UpdateItem(context.Context, cqrs.UpdateItemCommand) (*models.InventoryItem, error)
	CreateLocation(context.Context, cqrs.CreateLocationCommand) (*models.Location, error)
	SetDefaultLocation(context.Context, cqrs.SetDefaultLocationCommand) (*models.Location, error)
	RecordMovement(context.Context, cqrs.RecordMovementCommand) (*models.InventoryTransaction, error)
	Transfer(context.Context, cqrs.TransferStockCommand) ([]*models.InventoryTransaction, error)
	AcknowledgeAlert(context.Context, cqrs.AcknowledgeAlertCommand) (*models.StockAlert, error)
}

type InventoryQuerier interface {
	ListItems(ctx context.Context, orgID string) ([]models.InventoryItem, error)
	GetItem(ctx context.Context, orgID, id string) (*models.InventoryItem, error)
	ListLocations(ctx context.Context, orgID string) ([]models.Location, error)
	Stock(context.Context, cqrs.StockQuery) ([]models.StockLevel, error)
	Serial(ctx context.Context, orgID, serial string) (*models.SerialNumber, error)
	Batches(context.Context, cqrs.BatchesQuery) ([]models.Batch, error)
	Alerts(ctx context.Context, orgID, status string) ([]models.StockAlert, error)
	Valuation(ctx context.Context, orgID, itemID string) (*valuation.Report, error)
	Report(ctx context.Context, orgID, kind string, from, to time.Time) (any, error)
}

type InventoryHandler struct {
	commands InventoryCommander
	queries  InventoryQuerier
}

func NewInventoryHandler(commands InventoryCommander, queries InventoryQuerier) *InventoryHandler {
	return &InventoryHandler{commands: commands, queries: queries}
}

type CreateItemRequest struct {
	SKU             string   `json:"sku" validate:"required,max=64"`
	Name            string   `json:"name" validate:"required,max=200"`
	TrackingType    string   `json:"trackingType" validate:"omitempty,oneof=NONE SERIAL BATCH BOTH"`
	ValuationMethod string   `json:"valuationMethod" validate:"omitempty,oneof=FIFO LIFO WEIGHTED_AVERAGE"`
	UnitCost        float64  `json:"unitCost" validate:"gte=0"`
	ReorderPoint    float64  `json:"reorderPoint" validate:"gte=0"`
	ReorderQuantity float64  `json:"reorderQuantity" validate:"gte=0"`
	LeadTimeDays    float64  `json:"leadTimeDays" validate:"gte=0"`
	LeadTimeStdDev  float64  `json:"leadTimeStdDev" validate:"gte=0"`
	OrderingCost    *float64 `json:"orderingCost" validate:"omitempty,gte=0"`
}

type UpdateItemRequest struct {
	Name            *string  `json:"name" validate:"omitempty,min=1,max=200"`
	ValuationMethod *string  `json:"valuationMethod" validate:"omitempty,oneof=FIFO LIFO WEIGHTED_AVERAGE"`
	UnitCost        *float64 `json:"unitCost" validate:"omitempty,gte=0"`
	ReorderPoint    *float64 `json:"reorderPoint" validate:"omitempty,gte=0"`
	ReorderQuantity *float64 `json:"reorderQuantity" validate:"omitempty,gte=0"`
	LeadTimeDays    *float64 `json:"leadTimeDays" validate:"omitempty,gte=0"`
	LeadTimeStdDev  *float64 `json:"leadTimeStdDev" validate:"omitempty,gte=0"`
	OrderingCost    *float64 `json:"orderingCost" validate:"omitempty,gte=0"`
}

type CreateLocationRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Code      string `json:"code" validate:"required,max=32"`
	IsDefault bool   `json:"isDefault"`
}

type MovementRequest struct {
	ItemID        string       `json:"itemId" validate:"required"`
	LocationID    string       `json:"locationId"`
	Type          string       `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	Quantity      float64      `json:"quantity" validate:"ne=0"`
	UnitCost      *float64     `json:"unitCost" validate:"omitempty,gte=0"`
	UnitPrice     *float64     `json:"unitPrice" validate:"omitempty,gte=0"`
	SerialNumbers []string     `json:"serialNumbers" validate:"omitempty,dive,required,max=100"`
	BatchNumber   string       `json:"batchNumber" validate:"omitempty,max=100"`
	ExpiryDate    *models.Date `json:"expiryDate"`
	Reference     string       `json:"reference" validate:"omitempty,max=200"`
}

type TransferRequest struct {
	ItemID         string   `json:"itemId" validate:"required"`
	FromLocationID string   `json:"fromLocationId" validate:"required"`
	ToLocationID   string   `json:"toLocationId" validate:"required,nefield=FromLocationID"`
	Quantity       float64  `json:"quantity" validate:"gt=0"`
	SerialNumbers  []string `json:"serialNumbers" validate:"omitempty,dive,required,max=100"`
	BatchNumber    string   `json:"batchNumber" validate:"omitempty,max=100"`
	Reference      string   `json:"reference" validate:"omitempty,max=200"`
}

func (h *InventoryHandler) CreateItem(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateItemRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	it, err := h.commands.CreateItem(c.Request.Context(), cqrs.CreateItemCommand{
		OrganizationID:  orgID,
		SKU:             req.SKU,
		Name:            req.Name,
		TrackingType:    req.TrackingType,
		ValuationMethod: req.ValuationMethod,
		UnitCost:        req.UnitCost,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		LeadTimeDays:    req.LeadTimeDays,
		LeadTimeStdDev:  req.LeadTimeStdDev,
		OrderingCost:    req.OrderingCost,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create item")
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req UpdateItemRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	it, err := h.commands.UpdateItem(c.Request.Context(), cqrs.UpdateItemCommand{
		OrganizationID:  orgID,
		ItemID:          c.Param("itemId"),
		Name:            req.Name,
		ValuationMethod: req.ValuationMethod,
		UnitCost:        req.UnitCost,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		LeadTimeDays:    req.LeadTimeDays,
		LeadTimeStdDev:  req.LeadTimeStdDev,
		OrderingCost:    req.OrderingCost,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update item")
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *InventoryHandler) ListItems(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	items, err := h.queries.ListItems(c.Request.Context(), orgID)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *InventoryHandler) GetItem(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	it, err := h.queries.GetItem(c.Request.Context(), orgID, c.Param("itemId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get item")
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *InventoryHandler) CreateLocation(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateLocationRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	loc, err := h.commands.CreateLocation(c.Request.Context(), cqrs.CreateLocationCommand{
		OrganizationID: orgID,
		Name:           req.Name,
		Code:           req.Code,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create location")
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (h *InventoryHandler) SetDefaultLocation(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	loc, err := h.commands.SetDefaultLocation(c.Request.Context(), cqrs.SetDefaultLocationCommand{
		OrganizationID: orgID,
		LocationID:     c.Param("locationId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to set default location")
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *InventoryHandler) ListLocations(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	locations, err := h.queries.ListLocations(c.Request.Context(), orgID)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list locations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

func (h *InventoryHandler) RecordMovement(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req MovementRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	m, err := h.commands.RecordMovement(c.Request.Context(), cqrs.RecordMovementCommand{
		OrganizationID: orgID,
		ItemID:         req.ItemID,
		LocationID:     req.LocationID,
		Type:           req.Type,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		UnitPrice:      req.UnitPrice,
		SerialNumbers:  req.SerialNumbers,
		BatchNumber:    req.BatchNumber,
		ExpiryDate:     req.ExpiryDate,
		Reference:      req.Reference,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to record inventory transaction")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *InventoryHandler) Transfer(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req TransferRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	legs, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferStockCommand{
		OrganizationID: orgID,
		ItemID:         req.ItemID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		Quantity:       req.Quantity,
		SerialNumbers:  req.SerialNumbers,
		BatchNumber:    req.BatchNumber,
		Reference:      req.Reference,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to transfer stock")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transferId": legs[0].TransferID, "transactions": legs})
}

func (h *InventoryHandler) Stock(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	levels, err := h.queries.Stock(c.Request.Context(), cqrs.StockQuery{
		OrganizationID: orgID,
		ItemID:         c.Query("itemId"),
		LocationID:     c.Query("locationId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get stock levels")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock": levels})
}

func (h *InventoryHandler) Serial(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	sn, err := h.queries.Serial(c.Request.Context(), orgID, c.Param("serialNumber"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get serial number")
		return
	}
	c.JSON(http.StatusOK, sn)
}

func (h *InventoryHandler) Batches(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	q := cqrs.BatchesQuery{OrganizationID: orgID, ItemID: c.Query("itemId")}
	if raw := c.Query("expiringWithinDays"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid expiringWithinDays")
			return
		}
		q.ExpiringWithinDays = &days
	}
	batches, err := h.queries.Batches(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list batches")
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *InventoryHandler) Alerts(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	alerts, err := h.queries.Alerts(c.Request.Context(), orgID, c.Query("status"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list alerts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *InventoryHandler) AcknowledgeAlert(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	a, err := h.commands.AcknowledgeAlert(c.Request.Context(), cqrs.AcknowledgeAlertCommand{
		OrganizationID: orgID,
		AlertID:        c.Param("alertId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to acknowledge alert")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *InventoryHandler) Valuation(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	report, err := h.queries.Valuation(c.Request.Context(), orgID, c.Query("itemId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to value inventory")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *InventoryHandler) Report(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	from, err := utils.ParseDate(c.Query("from"), time.Time{})
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid from date")
		return
	}
	to, err := utils.ParseDate(c.Query("to"), time.Time{})
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid to date")
		return
	}
	report, err := h.queries.Report(c.Request.Context(), orgID, c.Param("type"), from, to)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to build report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// Register mounts the stock-keeping routes. Mutations go on writes.
func (h *InventoryHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("/items", h.ListItems)
	g.GET("/items/:itemId", h.GetItem)
	writes.POST("/items", h.CreateItem)
	writes.PATCH("/items/:itemId", h.UpdateItem)

	g.GET("/locations", h.ListLocations)
	writes.POST("/locations", h.CreateLocation)
	writes.POST("/locations/:locationId/default", h.SetDefaultLocation)

	writes.POST("/transactions", h.RecordMovement)
	writes.POST("/transfers", h.Transfer)

	g.GET("/stock", h.Stock)
	g.GET("/serials/:serialNumber", h.Serial)
	g.GET("/batches", h.Batches)
	g.GET("/alerts", h.Alerts)
	writes.POST("/alerts/:alertId/acknowledge", h.AcknowledgeAlert)
	g.GET("/valuation", h.Valuation)
	g.GET("/reports/:type", h.Report)
}
