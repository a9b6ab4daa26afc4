package models

import "time"

// UserView is the read-optimised projection of a user.
// It never exposes PasswordHash.
type UserView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Address     Address   `json:"address"`
	CreatedAt   time.Time `json:"createdTimestamp"`
	UpdatedAt   time.Time `json:"updatedTimestamp"`
}

// OrganizationView adds the member count and, when known, the caller's role.
type OrganizationView struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Slug                 string    `json:"slug"`
	Country              string    `json:"country"`
	State                string    `json:"state,omitempty"`
	Currency             string    `json:"currency"`
	FiscalYearStartMonth int       `json:"fiscalYearStartMonth"`
	MemberCount          int       `json:"memberCount"`
	Role                 string    `json:"role,omitempty"`
	CreatedAt            time.Time `json:"createdTimestamp"`
	UpdatedAt            time.Time `json:"updatedTimestamp"`
}

type MemberView struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedTimestamp"`
}

// AccountView is the read-optimised projection of a ledger account.
// OrganizationID is populated for tenancy checks but never serialised.
type AccountView struct {
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

// TransactionView is the read-optimised projection of a ledger transaction.
type TransactionView struct {
	ID             string     `json:"id"`
	AccountNumber  string     `json:"accountNumber"`
	OrganizationID string     `json:"-"`
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
