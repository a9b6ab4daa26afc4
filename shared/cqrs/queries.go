package cqrs

import "time"

// ---------- User and organization queries ----------

type GetUserQuery struct {
	UserID           string
	RequestingUserID string
}

type GetOrganizationQuery struct {
	OrganizationID   string
	RequestingUserID string
}

type ListOrganizationsQuery struct {
	UserID string
}

type ListMembersQuery struct {
	OrganizationID   string
	RequestingUserID string
}

// ---------- Ledger queries ----------

type GetAccountQuery struct {
	AccountNumber  string
	OrganizationID string
}

type ListAccountsQuery struct {
	OrganizationID string
	AccountType    string
}

type GetTransactionQuery struct {
	AccountNumber  string
	TransactionID  string
	OrganizationID string
}

// ListTransactionsQuery filters are optional; zero values mean "any".
type ListTransactionsQuery struct {
	AccountNumber  string
	OrganizationID string
	From           time.Time
	To             time.Time
	Type           string
	Category       string
}
