package cqrs

import (
	"encoding/json"
	"time"
)

// ---------- Analytics commands ----------

type CreateCustomerCommand struct {
	OrganizationID  string
	Name            string
	Email           string
	AcquisitionCost float64
	// AcquiredAt backdates the customer when importing history.
	AcquiredAt *time.Time
}

type CreateSubscriptionCommand struct {
	OrganizationID string
	CustomerID     string
	PlanName       string
	MRR            float64
	StartedAt      *time.Time
}

type ChangeSubscriptionCommand struct {
	OrganizationID string
	SubscriptionID string
	MRR            float64
	EffectiveAt    *time.Time
}

type CancelSubscriptionCommand struct {
	OrganizationID string
	SubscriptionID string
	CancelledAt    *time.Time
}

type SaveScenarioCommand struct {
	OrganizationID string
	UserID         string
	Name           string
	Type           string
	Inputs         json.RawMessage
	Results        json.RawMessage
}

// ---------- Analytics queries ----------

type ListCustomersQuery struct {
	OrganizationID string
}

type ListSubscriptionsQuery struct {
	OrganizationID string
	Status         string
	CustomerID     string
}

// MetricsQuery selects the calendar period containing AsOf.
type MetricsQuery struct {
	OrganizationID string
	Period         string
	AsOf           time.Time
}

type ListScenariosQuery struct {
	OrganizationID string
	Type           string
}
