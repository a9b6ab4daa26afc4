package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.Account, error)
	UpdateAccount(context.Context, cqrs.UpdateAccountCommand) (*models.AccountView, error)
	DeleteAccount(context.Context, cqrs.DeleteAccountCommand) error
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountView, error)
}

// AccountHandler handles chart-of-accounts HTTP requests. Every route is
// scoped to the organization in the caller's token.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type CreateAccountRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Code        string `json:"code" validate:"required,max=20"`
	AccountType string `json:"accountType" validate:"required,oneof=asset liability equity income expense"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

type UpdateAccountRequest struct {
	Name        string `json:"name" validate:"omitempty,max=120"`
	Code        string `json:"code" validate:"omitempty,max=20"`
	AccountType string `json:"accountType" validate:"omitempty,oneof=asset liability equity income expense"`
}

type ListAccountsResponse struct {
	Accounts []models.AccountView `json:"accounts"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateAccountRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		OrganizationID: orgID,
		Name:           req.Name,
		Code:           req.Code,
		AccountType:    req.AccountType,
		Currency:       req.Currency,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create account")
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	accountType := c.Query("accountType")
	if accountType != "" && !validAccountType(accountType) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid accountType filter")
		return
	}

	views, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{
		OrganizationID: orgID,
		AccountType:    accountType,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list accounts")
		return
	}

	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: views})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{
		AccountNumber:  c.Param("accountNumber"),
		OrganizationID: orgID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to fetch account")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req UpdateAccountRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.UpdateAccount(c.Request.Context(), cqrs.UpdateAccountCommand{
		AccountNumber:  c.Param("accountNumber"),
		OrganizationID: orgID,
		Name:           req.Name,
		Code:           req.Code,
		AccountType:    req.AccountType,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update account")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	err := h.commands.DeleteAccount(c.Request.Context(), cqrs.DeleteAccountCommand{
		AccountNumber:  c.Param("accountNumber"),
		OrganizationID: orgID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to delete account")
		return
	}

	c.Status(http.StatusNoContent)
}

func validAccountType(t string) bool {
	switch t {
	case models.AccountTypeAsset, models.AccountTypeLiability, models.AccountTypeEquity,
		models.AccountTypeIncome, models.AccountTypeExpense:
		return true
	}
	return false
}

// Register mounts the account routes. Chart-of-accounts changes go on admin.
func (h *AccountHandler) Register(g, admin *gin.RouterGroup) {
	g.GET("", h.ListAccounts)
	g.GET("/:accountNumber", h.GetAccount)
	admin.POST("", h.CreateAccount)
	admin.PATCH("/:accountNumber", h.UpdateAccount)
	admin.DELETE("/:accountNumber", h.DeleteAccount)
}
