package cqrs

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---------- User and organization commands ----------

type CreateUserCommand struct {
	Name             string
	Email            string
	Password         string
	PhoneNumber      string
	Address          models.Address
	OrganizationName string
}

type UpdateUserCommand struct {
	UserID           string
	RequestingUserID string
	Name             string
	Email            string
	PhoneNumber      string
	Address          models.Address
}

type DeleteUserCommand struct {
	UserID           string
	RequestingUserID string
}

type CreateOrganizationCommand struct {
	UserID               string
	Name                 string
	Country              string
	State                string
	Currency             string
	FiscalYearStartMonth int
}

type UpdateOrganizationCommand struct {
	OrganizationID       string
	RequestingUserID     string
	Name                 string
	Country              string
	State                string
	Currency             string
	FiscalYearStartMonth int
}

type DeleteOrganizationCommand struct {
	OrganizationID   string
	RequestingUserID string
}

type AddMemberCommand struct {
	OrganizationID   string
	RequestingUserID string
	Email            string
	Role             string
}

type ChangeMemberRoleCommand struct {
	OrganizationID   string
	RequestingUserID string
	UserID           string
	Role             string
}

type RemoveMemberCommand struct {
	OrganizationID   string
	RequestingUserID string
	UserID           string
}

// ---------- Auth commands ----------

type LoginCommand struct {
	Email          string
	Password       string
	OrganizationID string
}

type RefreshTokenCommand struct {
	Token string
}

type SwitchOrganizationCommand struct {
	UserID         string
	Email          string
	OrganizationID string
}

// ---------- Ledger commands ----------

type CreateAccountCommand struct {
	OrganizationID string
	Name           string
	Code           string
	AccountType    string
	Currency       string
}

type UpdateAccountCommand struct {
	AccountNumber  string
	OrganizationID string
	Name           string
	Code           string
	AccountType    string
}

type DeleteAccountCommand struct {
	AccountNumber  string
	OrganizationID string
}

type CreateTransactionCommand struct {
	AccountNumber  string
	OrganizationID string
	UserID         string
	Amount         float64
	Currency       string
	Type           string
	Category       string
	Description    string
	Reference      string
	CustomerID     string
	Jurisdiction   string
	OccurredAt     time.Time
}

type VoidTransactionCommand struct {
	AccountNumber  string
	TransactionID  string
	OrganizationID string
}
