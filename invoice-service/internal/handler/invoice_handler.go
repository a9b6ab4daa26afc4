package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/invoice-service/internal/query"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

type InvoiceCommander interface {
	CreateInvoice(context.Context, cqrs.CreateInvoiceCommand) (*models.Invoice, error)
	UpdateInvoice(context.Context, cqrs.UpdateInvoiceCommand) (*models.Invoice, error)
	SendInvoice(context.Context, cqrs.InvoiceTransitionCommand) (*models.Invoice, error)
	PayInvoice(context.Context, cqrs.PayInvoiceCommand) (*models.Invoice, error)
	CancelInvoice(context.Context, cqrs.InvoiceTransitionCommand) (*models.Invoice, error)
	DeleteInvoice(context.Context, cqrs.DeleteInvoiceCommand) error
}

type InvoiceQuerier interface {
	GetInvoice(context.Context, cqrs.GetInvoiceQuery) (*models.Invoice, error)
	ListInvoices(context.Context, cqrs.ListInvoicesQuery) (*query.InvoicePage, error)
	GetStats(context.Context, cqrs.InvoiceStatsQuery) (*models.InvoiceStats, error)
}

type InvoiceHandler struct {
	commands InvoiceCommander
	queries  InvoiceQuerier
}

func NewInvoiceHandler(commands InvoiceCommander, queries InvoiceQuerier) *InvoiceHandler {
	return &InvoiceHandler{commands: commands, queries: queries}
}

type InvoiceItemRequest struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

type CreateInvoiceRequest struct {
	ClientName    string               `json:"clientName" validate:"required,max=200"`
	ClientEmail   string               `json:"clientEmail" validate:"omitempty,email"`
	ClientCountry string               `json:"clientCountry" validate:"omitempty,len=2"`
	ClientState   string               `json:"clientState" validate:"omitempty,max=3"`
	Items         []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountRate  float64              `json:"discountRate" validate:"gte=0,lte=100"`
	TaxRate       float64              `json:"taxRate" validate:"gte=0,lte=100"`
	Currency      string               `json:"currency" validate:"omitempty,len=3"`
	IssueDate     models.Date          `json:"issueDate"`
	DueDate       models.Date          `json:"dueDate"`
	Notes         string               `json:"notes" validate:"max=2000"`
}

type UpdateInvoiceRequest struct {
	ClientName    string               `json:"clientName" validate:"max=200"`
	ClientEmail   string               `json:"clientEmail" validate:"omitempty,email"`
	ClientCountry string               `json:"clientCountry" validate:"omitempty,len=2"`
	ClientState   string               `json:"clientState" validate:"omitempty,max=3"`
	Items         []InvoiceItemRequest `json:"items" validate:"omitempty,min=1,dive"`
	DiscountRate  *float64             `json:"discountRate" validate:"omitempty,gte=0,lte=100"`
	TaxRate       *float64             `json:"taxRate" validate:"omitempty,gte=0,lte=100"`
	IssueDate     models.Date          `json:"issueDate"`
	DueDate       models.Date          `json:"dueDate"`
	Notes         *string              `json:"notes" validate:"omitempty,max=2000"`
}

type PayInvoiceRequest struct {
	PaidAt               *time.Time `json:"paidAt"`
	DepositAccountNumber string     `json:"depositAccountNumber" validate:"omitempty,len=8,numeric"`
}

func itemInputs(reqs []InvoiceItemRequest) []cqrs.InvoiceItemInput {
	if reqs == nil {
		return nil
	}
	items := make([]cqrs.InvoiceItemInput, len(reqs))
	for i, r := range reqs {
		items[i] = cqrs.InvoiceItemInput{Description: r.Description, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
	}
	return items
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req CreateInvoiceRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	if !req.IssueDate.IsZero() && !req.DueDate.IsZero() && req.DueDate.Before(req.IssueDate.Time) {
		middleware.RespondWithError(c, http.StatusBadRequest, "dueDate must not be before issueDate")
		return
	}

	inv, err := h.commands.CreateInvoice(c.Request.Context(), cqrs.CreateInvoiceCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientCountry:  req.ClientCountry,
		ClientState:    req.ClientState,
		Items:          itemInputs(req.Items),
		DiscountRate:   req.DiscountRate,
		TaxRate:        req.TaxRate,
		Currency:       req.Currency,
		IssueDate:      req.IssueDate,
		DueDate:        req.DueDate,
		Notes:          req.Notes,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create invoice")
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	status := c.Query("status")
	if status != "" && !validStatus(status) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid status filter")
		return
	}
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
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(query.DefaultPageLimit)))

	result, err := h.queries.ListInvoices(c.Request.Context(), cqrs.ListInvoicesQuery{
		OrganizationID: orgID,
		Status:         status,
		Search:         c.Query("search"),
		From:           from,
		To:             to,
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list invoices")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *InvoiceHandler) GetStats(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	stats, err := h.queries.GetStats(c.Request.Context(), cqrs.InvoiceStatsQuery{OrganizationID: orgID})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to compute invoice stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	inv, err := h.queries.GetInvoice(c.Request.Context(), cqrs.GetInvoiceQuery{InvoiceID: c.Param("invoiceId"), OrganizationID: orgID})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to fetch invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req UpdateInvoiceRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	inv, err := h.commands.UpdateInvoice(c.Request.Context(), cqrs.UpdateInvoiceCommand{
		InvoiceID:      c.Param("invoiceId"),
		OrganizationID: orgID,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientCountry:  req.ClientCountry,
		ClientState:    req.ClientState,
		Items:          itemInputs(req.Items),
		DiscountRate:   req.DiscountRate,
		TaxRate:        req.TaxRate,
		IssueDate:      req.IssueDate,
		DueDate:        req.DueDate,
		Notes:          req.Notes,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) SendInvoice(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	inv, err := h.commands.SendInvoice(c.Request.Context(), cqrs.InvoiceTransitionCommand{InvoiceID: c.Param("invoiceId"), OrganizationID: orgID})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to send invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) PayInvoice(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	// The body is optional.
	var req PayInvoiceRequest
	if c.Request.ContentLength > 0 && !middleware.BindAndValidate(c, &req) {
		return
	}

	inv, err := h.commands.PayInvoice(c.Request.Context(), cqrs.PayInvoiceCommand{
		InvoiceID:            c.Param("invoiceId"),
		OrganizationID:       orgID,
		PaidAt:               req.PaidAt,
		DepositAccountNumber: req.DepositAccountNumber,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to record payment")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	inv, err := h.commands.CancelInvoice(c.Request.Context(), cqrs.InvoiceTransitionCommand{InvoiceID: c.Param("invoiceId"), OrganizationID: orgID})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to cancel invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	err := h.commands.DeleteInvoice(c.Request.Context(), cqrs.DeleteInvoiceCommand{InvoiceID: c.Param("invoiceId"), OrganizationID: orgID})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to delete invoice")
		return
	}
	c.Status(http.StatusNoContent)
}

func validStatus(s string) bool {
	switch s {
	case models.InvoiceStatusDraft, models.InvoiceStatusSent, models.InvoiceStatusPaid,
		models.InvoiceStatusOverdue, models.InvoiceStatusCancelled:
		return true
	}
	return false
}

// Register mounts the invoice routes. Mutations go on writes.
func (h *InvoiceHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("", h.ListInvoices)
	g.GET("/stats", h.GetStats)
	g.GET("/:invoiceId", h.GetInvoice)

	writes.POST("", h.CreateInvoice)
	writes.PATCH("/:invoiceId", h.UpdateInvoice)
	writes.POST("/:invoiceId/send", h.SendInvoice)
	writes.POST("/:invoiceId/pay", h.PayInvoice)
	writes.POST("/:invoiceId/cancel", h.CancelInvoice)
	writes.DELETE("/:invoiceId", h.DeleteInvoice)
}
