package models

import "time"

// Invoice statuses.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSent      = "sent"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

type Invoice struct {
	ID                   string        `json:"id"`
	OrganizationID       string        `json:"-"`
	UserID               string        `json:"userId"`
	InvoiceNumber        string        `json:"invoiceNumber"`
	ClientName           string        `json:"clientName"`
	ClientEmail          string        `json:"clientEmail,omitempty"`
	ClientCountry        string        `json:"clientCountry,omitempty"`
	ClientState          string        `json:"clientState,omitempty"`
	Items                []InvoiceItem `json:"items"`
	Subtotal             float64       `json:"subtotal"`
	DiscountRate         float64       `json:"discountRate"`
	DiscountAmount       float64       `json:"discountAmount"`
	TaxRate              float64       `json:"taxRate"`
	TaxAmount            float64       `json:"taxAmount"`
	Total                float64       `json:"total"`
	Currency             string        `json:"currency"`
	Status               string        `json:"status"`
	IssueDate            Date          `json:"issueDate"`
	DueDate              Date          `json:"dueDate"`
	PaidAt               *time.Time    `json:"paidTimestamp,omitempty"`
	DepositAccountNumber string        `json:"depositAccountNumber,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	CreatedAt            time.Time     `json:"createdTimestamp"`
	UpdatedAt            time.Time     `json:"updatedTimestamp"`
}

type InvoiceStatusSummary struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type InvoiceStats struct {
	TotalInvoices     int                             `json:"totalInvoices"`
	TotalAmount       float64                         `json:"totalAmount"`
	PaidAmount        float64                         `json:"paidAmount"`
	OverdueAmount     float64                         `json:"overdueAmount"`
	OutstandingAmount float64                         `json:"outstandingAmount"`
	ByStatus          map[string]InvoiceStatusSummary `json:"byStatus"`
}
