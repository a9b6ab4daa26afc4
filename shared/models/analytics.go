package models

import (
	"encoding/json"
	"time"
)

type Customer struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"-"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	AcquisitionCost float64   `json:"acquisitionCost"`
	CreatedAt       time.Time `json:"createdTimestamp"`
}

// Subscription statuses.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

type Subscription struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"-"`
	CustomerID     string     `json:"customerId"`
	PlanName       string     `json:"planName"`
	MRR            float64    `json:"mrr"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"startedTimestamp"`
	CancelledAt    *time.Time `json:"cancelledTimestamp,omitempty"`
	CreatedAt      time.Time  `json:"createdTimestamp"`
	UpdatedAt      time.Time  `json:"updatedTimestamp"`
}

// MRR movement kinds.
const (
	MovementNew         = "new"
	MovementExpansion   = "expansion"
	MovementContraction = "contraction"
	MovementChurn       = "churn"
)

// MRRMovement is one signed change to recurring revenue. Summing the amounts
// of a customer's movements up to a point in time gives their MRR then.
type MRRMovement struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"-"`
	SubscriptionID string    `json:"subscriptionId"`
	CustomerID     string    `json:"customerId"`
	Kind           string    `json:"kind"`
	Amount         float64   `json:"amount"`
	OccurredAt     time.Time `json:"occurredTimestamp"`
}

// LedgerEntry is the analytics projection of a ledger transaction.
type LedgerEntry struct {
	TransactionID  string    `json:"transactionId"`
	OrganizationID string    `json:"-"`
	Type           string    `json:"type"`
	Category       string    `json:"category"`
	Amount         float64   `json:"amount"`
	CustomerID     string    `json:"customerId,omitempty"`
	OccurredAt     time.Time `json:"occurredTimestamp"`
}

type Scenario struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"-"`
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Inputs         json.RawMessage `json:"inputs"`
	Results        json.RawMessage `json:"results"`
	CreatedAt      time.Time       `json:"createdTimestamp"`
}
