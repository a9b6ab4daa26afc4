package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	CreateTransaction(context.Context, cqrs.CreateTransactionCommand) (*models.Transaction, error)
	VoidTransaction(context.Context, cqrs.VoidTransactionCommand) (*models.TransactionView, error)
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

type CreateTransactionRequest struct {
	Amount       float64    `json:"amount" validate:"required,gt=0"`
	Currency     string     `json:"currency" validate:"omitempty,len=3"`
	Type         string     `json:"type" validate:"required,oneof=income expense"`
	Category     string     `json:"category" validate:"required,max=60"`
	Description  string     `json:"description" validate:"max=500"`
	Reference    string     `json:"reference" validate:"max=120"`
	CustomerID   string     `json:"customerId" validate:"max=120"`
	Jurisdiction string     `json:"jurisdiction" validate:"omitempty,min=2,max=6"`
	OccurredAt   *time.Time `json:"occurredAt"`
}

type ListTransactionsResponse struct {
	Transactions []models.TransactionView `json:"transactions"`
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req CreateTransactionRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	cmd := cqrs.CreateTransactionCommand{
		AccountNumber:  c.Param("accountNumber"),
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Type:           req.Type,
		Category:       req.Category,
		Description:    req.Description,
		Reference:      req.Reference,
		CustomerID:     req.CustomerID,
		Jurisdiction:   req.Jurisdiction,
	}
	if req.OccurredAt != nil {
		cmd.OccurredAt = *req.OccurredAt
	}

	transaction, err := h.commands.CreateTransaction(c.Request.Context(), cmd)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create transaction")
		return
	}

	c.JSON(http.StatusCreated, transaction)
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	from, err := utils.ParseDate(c.Query("from"), time.Time{})
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid from date")
		return
	}
	to, err := utils.ParseDate(c.Query("to"), time.Time{})
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid to date")
		return
	}
	// A bare date in "to" includes that whole day.
	if len(c.Query("to")) == len("2006-01-02") {
		to = to.AddDate(0, 0, 1)
	}
	txnType := c.Query("type")
	if txnType != "" && txnType != models.TransactionTypeIncome && txnType != models.TransactionTypeExpense {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid type filter")
		return
	}

	views, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{
		AccountNumber:  c.Param("accountNumber"),
		OrganizationID: orgID,
		From:           from,
		To:             to,
		Type:           txnType,
		Category:       c.Query("category"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: views})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID:  c.Param("transactionId"),
		AccountNumber:  c.Param("accountNumber"),
		OrganizationID: orgID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get transaction")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *TransactionHandler) VoidTransaction(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	view, err := h.commands.VoidTransaction(c.Request.Context(), cqrs.VoidTransactionCommand{
		AccountNumber:  c.Param("accountNumber"),
		TransactionID:  c.Param("transactionId"),
		OrganizationID: orgID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to void transaction")
		return
	}

	c.JSON(http.StatusOK, view)
}

// Register mounts the ledger routes. Posting needs writes, voiding needs admin.
func (h *TransactionHandler) Register(g, writes, admin *gin.RouterGroup) {
	g.GET("", h.ListTransactions)
	g.GET("/:transactionId", h.GetTransaction)
	writes.POST("", h.CreateTransaction)
	admin.POST("/:transactionId/void", h.VoidTransaction)
}
