package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"

	OrganizationCreated = "organization.created"
	OrganizationUpdated = "organization.updated"
	OrganizationDeleted = "organization.deleted"
	MemberAdded         = "member.added"
	MemberRemoved       = "member.removed"
	MemberRoleChanged   = "member.role_changed"

	AccountCreated = "account.created"
	AccountUpdated = "account.updated"
	AccountDeleted = "account.deleted"
	BalanceUpdated = "balance.updated"

	TransactionCreated = "transaction.created"
	TransactionVoided  = "transaction.voided"

	InvoiceCreated   = "invoice.created"
	InvoiceSent      = "invoice.sent"
	InvoicePaid      = "invoice.paid"
	InvoiceOverdue   = "invoice.overdue"
	InvoiceCancelled = "invoice.cancelled"

	InventoryLowStock = "inventory.low_stock"

	TaxDeadlineAlert = "tax.deadline_alert"

	SyncCompleted = "sync.completed"

	DocumentUploaded        = "document.uploaded"
	DocumentUpdated         = "document.updated"
	DocumentVersionRestored = "document.version_restored"
	DocumentDeleted         = "document.deleted"
)

// Stream names
const (
	OrganizationEventsStream = "organization.events"
	AccountEventsStream      = "account.events"
	TransactionEventsStream  = "transaction.events"
	InvoiceEventsStream      = "invoice.events"
	InventoryEventsStream    = "inventory.events"
	TaxEventsStream          = "tax.events"
	SyncEventsStream         = "sync.events"
	DocumentEventsStream     = "document.events"
)

// Event is the envelope written to every stream.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Decode converts the loosely typed Data of a received event into T.
func Decode[T any](event Event) (T, error) {
	var out T
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return out, fmt.Errorf("failed to marshal %s payload: %w", event.Type, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal %s event: %w", event.Type, err)
	}
	return out, nil
}

// User and organization events
type UserCreatedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type UserUpdatedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type UserDeletedEvent struct {
	UserID string `json:"userId"`
}

type OrganizationEvent struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	UserID         string `json:"userId"`
}

type MemberEvent struct {
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Role           string `json:"role"`
}

// Account events
type AccountCreatedEvent struct {
	AccountNumber  string `json:"accountNumber"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	AccountType    string `json:"accountType"`
}

type AccountUpdatedEvent struct {
	AccountNumber  string `json:"accountNumber"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
}

type AccountDeletedEvent struct {
	AccountNumber  string `json:"accountNumber"`
	OrganizationID string `json:"organizationId"`
}

type BalanceUpdatedEvent struct {
	AccountNumber string  `json:"accountNumber"`
	NewBalance    float64 `json:"newBalance"`
	Change        float64 `json:"change"`
}

// Transaction events. Voided events repeat the original payload so consumers
// can reverse it without a lookup.
type TransactionCreatedEvent struct {
	TransactionID  string    `json:"transactionId"`
	OrganizationID string    `json:"organizationId"`
	AccountNumber  string    `json:"accountNumber"`
	UserID         string    `json:"userId"`
	Amount         float64   `json:"amount"`
	Type           string    `json:"type"`
	Currency       string    `json:"currency"`
	Category       string    `json:"category"`
	CustomerID     string    `json:"customerId,omitempty"`
	Jurisdiction   string    `json:"jurisdiction,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type TransactionVoidedEvent = TransactionCreatedEvent

// Invoice events
type InvoiceEvent struct {
	InvoiceID            string     `json:"invoiceId"`
	OrganizationID       string     `json:"organizationId"`
	UserID               string     `json:"userId"`
	InvoiceNumber        string     `json:"invoiceNumber"`
	ClientName           string     `json:"clientName"`
	ClientCountry        string     `json:"clientCountry,omitempty"`
	ClientState          string     `json:"clientState,omitempty"`
	Total                float64    `json:"total"`
	Currency             string     `json:"currency"`
	Status               string     `json:"status"`
	DueDate              time.Time  `json:"dueDate"`
	PaidAt               *time.Time `json:"paidAt,omitempty"`
	DepositAccountNumber string     `json:"depositAccountNumber,omitempty"`
}

type LowStockEvent struct {
	OrganizationID string  `json:"organizationId"`
	ItemID         string  `json:"itemId"`
	SKU            string  `json:"sku"`
	OnHand         float64 `json:"onHand"`
	ReorderPoint   float64 `json:"reorderPoint"`
	ReorderQty     float64 `json:"reorderQuantity"`
}

type TaxDeadlineAlertEvent struct {
	OrganizationID string    `json:"organizationId"`
	DeadlineID     string    `json:"deadlineId"`
	Jurisdiction   string    `json:"jurisdiction"`
	TaxType        string    `json:"taxType"`
	DueDate        time.Time `json:"dueDate"`
	DaysRemaining  int       `json:"daysRemaining"`
}

type SyncCompletedEvent struct {
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	DeviceID       string `json:"deviceId"`
	Completed      int    `json:"completed"`
	Failed         int    `json:"failed"`
	Retrying       int    `json:"retrying"`
	Conflicts      int    `json:"conflicts"`
}

type DocumentEvent struct {
	DocumentID     string   `json:"documentId"`
	OrganizationID string   `json:"organizationId"`
	UserID         string   `json:"userId"`
	Name           string   `json:"name"`
	Folder         string   `json:"folder"`
	Tags           []string `json:"tags"`
	Version        int      `json:"version"`
	Size           int64    `json:"size"`
	ContentType    string   `json:"contentType"`
}
