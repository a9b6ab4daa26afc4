package cqrs

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---------- Invoice commands ----------

type InvoiceItemInput struct {
	Description string
	Quantity    float64
	UnitPrice   float64
}

type CreateInvoiceCommand struct {
	OrganizationID string
	UserID         string
	ClientName     string
	ClientEmail    string
	ClientCountry  string
	ClientState    string
	Items          []InvoiceItemInput
	DiscountRate   float64
	TaxRate        float64
	Currency       string
	IssueDate      models.Date
	DueDate        models.Date
	Notes          string
}

// UpdateInvoiceCommand is partial: nil and empty fields keep their value.
type UpdateInvoiceCommand struct {
	InvoiceID      string
	OrganizationID string
	ClientName     string
	ClientEmail    string
	ClientCountry  string
	ClientState    string
	Items          []InvoiceItemInput
	DiscountRate   *float64
	TaxRate        *float64
	IssueDate      models.Date
	DueDate        models.Date
	Notes          *string
}

// InvoiceTransitionCommand drives send and cancel.
type InvoiceTransitionCommand struct {
	InvoiceID      string
	OrganizationID string
}

type PayInvoiceCommand struct {
	InvoiceID            string
	OrganizationID       string
	PaidAt               *time.Time
	DepositAccountNumber string
}

type DeleteInvoiceCommand struct {
	InvoiceID      string
	OrganizationID string
}

// ---------- Invoice queries ----------

type GetInvoiceQuery struct {
	InvoiceID      string
	OrganizationID string
}

type ListInvoicesQuery struct {
	OrganizationID string
	Status         string
	Search         string
	From           time.Time
	To             time.Time
	Page           int
	Limit          int
}

type InvoiceStatsQuery struct {
	OrganizationID string
}
