package models

import "time"

// Tracking types.
const (
	TrackingNone   = "NONE"
	TrackingSerial = "SERIAL"
	TrackingBatch  = "BATCH"
	TrackingBoth   = "BOTH"
)

// Valuation methods.
const (
	ValuationFIFO            = "FIFO"
	ValuationLIFO            = "LIFO"
	ValuationWeightedAverage = "WEIGHTED_AVERAGE"
)

// Movement types. Transfers are stored as an OUT/IN pair.
const (
	MovementIn          = "IN"
	MovementOut         = "OUT"
	MovementAdjustment  = "ADJUSTMENT"
	MovementTransferOut = "TRANSFER_OUT"
	MovementTransferIn  = "TRANSFER_IN"
)

type InventoryItem struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"-"`
	SKU             string    `json:"sku"`
	Name            string    `json:"name"`
	TrackingType    string    `json:"trackingType"`
	ValuationMethod string    `json:"valuationMethod"`
	UnitCost        float64   `json:"unitCost"`
	ReorderPoint    float64   `json:"reorderPoint"`
	ReorderQuantity float64   `json:"reorderQuantity"`
	LeadTimeDays    float64   `json:"leadTimeDays"`
	LeadTimeStdDev  float64   `json:"leadTimeStdDev"`
	OrderingCost    float64   `json:"orderingCost"`
	CreatedAt       time.Time `json:"createdTimestamp"`
	UpdatedAt       time.Time `json:"updatedTimestamp"`
}

func (i InventoryItem) TracksSerials() bool {
	return i.TrackingType == TrackingSerial || i.TrackingType == TrackingBoth
}

func (i InventoryItem) TracksBatches() bool {
	return i.TrackingType == TrackingBatch || i.TrackingType == TrackingBoth
}

type Location struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"-"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	IsDefault      bool      `json:"isDefault"`
	CreatedAt      time.Time `json:"createdTimestamp"`
}

type StockLevel struct {
	ItemID     string    `json:"itemId"`
	LocationID string    `json:"locationId"`
	Quantity   float64   `json:"quantity"`
	UpdatedAt  time.Time `json:"updatedTimestamp"`
}

type InventoryTransaction struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"-"`
	ItemID         string    `json:"itemId"`
	LocationID     string    `json:"locationId"`
	Type           string    `json:"type"`
	Quantity       float64   `json:"quantity"`
	UnitCost       float64   `json:"unitCost"`
	UnitPrice      float64   `json:"unitPrice,omitempty"`
	SerialNumbers  []string  `json:"serialNumbers,omitempty"`
	BatchNumber    string    `json:"batchNumber,omitempty"`
	ExpiryDate     *Date     `json:"expiryDate,omitempty"`
	Reference      string    `json:"reference,omitempty"`
	TransferID     string    `json:"transferId,omitempty"`
	CreatedAt      time.Time `json:"createdTimestamp"`
}

// Serial statuses.
const (
	SerialInStock = "in_stock"
	SerialSold    = "sold"
)

type SerialNumber struct {
	SerialNumber string    `json:"serialNumber"`
	ItemID       string    `json:"itemId"`
	LocationID   string    `json:"locationId"`
	Status       string    `json:"status"`
	BatchNumber  string    `json:"batchNumber,omitempty"`
	UpdatedAt    time.Time `json:"updatedTimestamp"`
}

type Batch struct {
	ItemID      string  `json:"itemId"`
	LocationID  string  `json:"locationId"`
	BatchNumber string  `json:"batchNumber"`
	Quantity    float64 `json:"quantity"`
	ExpiryDate  *Date   `json:"expiryDate,omitempty"`
}

// Alert statuses.
const (
	AlertOpen         = "open"
	AlertAcknowledged = "acknowledged"
)

type StockAlert struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"-"`
	ItemID         string     `json:"itemId"`
	SKU            string     `json:"sku"`
	OnHand         float64    `json:"onHand"`
	ReorderPoint   float64    `json:"reorderPoint"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdTimestamp"`
	AcknowledgedAt *time.Time `json:"acknowledgedTimestamp,omitempty"`
}
