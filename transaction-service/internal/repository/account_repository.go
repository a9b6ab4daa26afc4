package repository

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	sharedredis "github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/redis"
)

// Account is the slice of account-service's cached projection that
// transactions need for tenancy and currency checks.
type Account struct {
	AccountNumber  string  `json:"accountNumber"`
	OrganizationID string  `json:"organizationId"`
	AccountType    string  `json:"accountType"`
	Balance        float64 `json:"balance"`
	Currency       string  `json:"currency"`
}

// AccountRepository reads the account read model that account-service
// maintains under "account:view:<accountNumber>".
type AccountRepository struct {
	cache *sharedredis.ViewCache[Account]
}

func NewAccountRepository(redisClient *goredis.Client) *AccountRepository {
	return &AccountRepository{cache: sharedredis.NewViewCache[Account](redisClient, 0)}
}

func (r *AccountRepository) GetAccount(ctx context.Context, accountNumber string) (*Account, error) {
	account, ok := r.cache.Get(ctx, "account:view:"+accountNumber)
	if !ok {
		return nil, apperr.NotFound("account")
	}
	return account, nil
}
