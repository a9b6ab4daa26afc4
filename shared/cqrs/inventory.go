package cqrs

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---------- Inventory commands ----------

type CreateItemCommand struct {
	OrganizationID  string
	SKU             string
	Name            string
	TrackingType    string
	ValuationMethod string
	UnitCost        float64
	ReorderPoint    float64
	ReorderQuantity float64
	LeadTimeDays    float64
	LeadTimeStdDev  float64
	// OrderingCost defaults to 50 when nil.
	OrderingCost *float64
}

// UpdateItemCommand changes only the fields that are set. SKU and tracking
// type are fixed once an item exists.
type UpdateItemCommand struct {
	OrganizationID  string
	ItemID          string
	Name            *string
	ValuationMethod *string
	UnitCost        *float64
	ReorderPoint    *float64
	ReorderQuantity *float64
	LeadTimeDays    *float64
	LeadTimeStdDev  *float64
	OrderingCost    *float64
}

type CreateLocationCommand struct {
	OrganizationID string
	Name           string
	Code           string
	IsDefault      bool
}

type SetDefaultLocationCommand struct {
	OrganizationID string
	LocationID     string
}

type RecordMovementCommand struct {
	OrganizationID string
	ItemID         string
	LocationID     string
	Type           string
	Quantity       float64
	UnitCost       *float64
	UnitPrice      *float64
	SerialNumbers  []string
	BatchNumber    string
	ExpiryDate     *models.Date
	Reference      string
}

type TransferStockCommand struct {
	OrganizationID string
	ItemID         string
	FromLocationID string
	ToLocationID   string
	Quantity       float64
	SerialNumbers  []string
	BatchNumber    string
	Reference      string
}

type AcknowledgeAlertCommand struct {
	OrganizationID string
	AlertID        string
}

// ---------- Inventory queries ----------

type StockQuery struct {
	OrganizationID string
	ItemID         string
	LocationID     string
}

type BatchesQuery struct {
	OrganizationID     string
	ItemID             string
	ExpiringWithinDays *int
}

type MovementsQuery struct {
	OrganizationID string
	ItemID         string
	Types          []string
	From           time.Time
	To             time.Time
}

type ForecastQuery struct {
	OrganizationID string
	ItemID         string
	Method         string
	Periods        int
	Window         int
	Alpha          float64
}

type ReorderQuery struct {
	OrganizationID string
	ItemID         string
	ServiceLevel   float64
}
