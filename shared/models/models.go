package models

import "time"

type Address struct {
	Line1    string `json:"line1" validate:"required"`
	Line2    string `json:"line2,omitempty"`
	Line3    string `json:"line3,omitempty"`
	Town     string `json:"town" validate:"required"`
	County   string `json:"county" validate:"required"`
	Postcode string `json:"postcode" validate:"required"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PhoneNumber  string    `json:"phoneNumber"`
	Address      Address   `json:"address"`
	CreatedAt    time.Time `json:"createdTimestamp"`
	UpdatedAt    time.Time `json:"updatedTimestamp"`
}

// Organization is the tenant. Every business record belongs to exactly one.
type Organization struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Slug                 string    `json:"slug"`
	Country              string    `json:"country"`
	State                string    `json:"state,omitempty"`
	Currency             string    `json:"currency"`
	FiscalYearStartMonth int       `json:"fiscalYearStartMonth"`
	CreatedBy            string    `json:"-"`
	CreatedAt            time.Time `json:"createdTimestamp"`
	UpdatedAt            time.Time `json:"updatedTimestamp"`
}

type Membership struct {
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"joinedTimestamp"`
}

// Ledger account types.
const (
	AccountTypeAsset     = "asset"
	AccountTypeLiability = "liability"
	AccountTypeEquity    = "equity"
	AccountTypeIncome    = "income"
	AccountTypeExpense   = "expense"
)

type Account struct {
	AccountNumber  string    `json:"accountNumber"`
	OrganizationID string    `json:"-"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	AccountType    string    `json:"accountType"`
	Balance        float64   `json:"balance"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"createdTimestamp"`
	UpdatedAt      time.Time `json:"updatedTimestamp"`
}

// Ledger transaction types.
const (
	TransactionTypeIncome  = "income"
	TransactionTypeExpense = "expense"
)

type Transaction struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"-"`
	AccountNumber  string     `json:"accountNumber"`
	UserID         string     `json:"userId"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"currency"`
	Type           string     `json:"type"`
	Category       string     `json:"category"`
	Description    string     `json:"description,omitempty"`
	Reference      string     `json:"reference,omitempty"`
	CustomerID     string     `json:"customerId,omitempty"`
	Jurisdiction   string     `json:"jurisdiction,omitempty"`
	OccurredAt     time.Time  `json:"occurredTimestamp"`
	VoidedAt       *time.Time `json:"voidedTimestamp,omitempty"`
	CreatedAt      time.Time  `json:"createdTimestamp"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// AuthToken is what auth-service hands back on login, refresh and switch.
type AuthToken struct {
	Token          string    `json:"token"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Role           string    `json:"role,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt"`
}
