package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/globaltax"
)

type DeadlineCommander interface {
	CreateDeadline(context.Context, cqrs.CreateDeadlineCommand) (*models.TaxDeadline, error)
	CompleteDeadline(context.Context, cqrs.CompleteDeadlineCommand) (*models.TaxDeadline, error)
}

type TaxQuerier interface {
	Nexus(ctx context.Context, orgID string) (*globaltax.NexusReport, error)
	DigitalServicesTax(ctx context.Context, orgID string) (*globaltax.DSTReport, error)
	Optimization(ctx context.Context, orgID string) (*globaltax.OptimizationPlan, error)
	Deadlines(ctx context.Context, orgID string) (*globaltax.DeadlineBoard, error)
	VAT(globaltax.VATInput) (*globaltax.VATResult, error)
	SalesTax(globaltax.SalesTaxInput) (*globaltax.SalesTaxResult, error)
}

type TaxHandler struct {
	commands DeadlineCommander
	queries  TaxQuerier
}

func NewTaxHandler(commands DeadlineCommander, queries TaxQuerier) *TaxHandler {
	return &TaxHandler{commands: commands, queries: queries}
}

type VATRequest struct {
	Amount        float64 `json:"amount" validate:"gte=0"`
	SellerCountry string  `json:"sellerCountry" validate:"required,len=2"`
	BuyerCountry  string  `json:"buyerCountry" validate:"required,len=2"`
	B2B           bool    `json:"b2b"`
}

type SalesTaxRequest struct {
	Amount float64 `json:"amount" validate:"gte=0"`
	State  string  `json:"state" validate:"required,max=5"`
	County string  `json:"county" validate:"omitempty,max=100"`
	City   string  `json:"city" validate:"omitempty,max=100"`
}

type CreateDeadlineRequest struct {
	Jurisdiction string      `json:"jurisdiction" validate:"required,max=10"`
	TaxType      string      `json:"taxType" validate:"required,max=50"`
	DueDate      models.Date `json:"dueDate"`
	Description  string      `json:"description" validate:"omitempty,max=500"`
}

func orgReport[T any](fn func(context.Context, string) (*T, error), fallback string) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, _ := middleware.GetOrganizationID(c)
		report, err := fn(c.Request.Context(), orgID)
		if err != nil {
			middleware.RespondWithDomainError(c, err, fallback)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (h *TaxHandler) CalculateVAT(c *gin.Context) {
	var req VATRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	r, err := h.queries.VAT(globaltax.VATInput{
		Amount:        req.Amount,
		SellerCountry: req.SellerCountry,
		BuyerCountry:  req.BuyerCountry,
		B2B:           req.B2B,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to calculate VAT")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *TaxHandler) CalculateSalesTax(c *gin.Context) {
	var req SalesTaxRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	r, err := h.queries.SalesTax(globaltax.SalesTaxInput{
		Amount: req.Amount,
		State:  req.State,
		County: req.County,
		City:   req.City,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to calculate sales tax")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *TaxHandler) CreateDeadline(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateDeadlineRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	if req.DueDate.IsZero() {
		middleware.RespondWithError(c, http.StatusBadRequest, "dueDate is required")
		return
	}
	d, err := h.commands.CreateDeadline(c.Request.Context(), cqrs.CreateDeadlineCommand{
		OrganizationID: orgID,
		Jurisdiction:   req.Jurisdiction,
		TaxType:        req.TaxType,
		Description:    req.Description,
		DueDate:        req.DueDate,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create tax deadline")
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *TaxHandler) CompleteDeadline(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	d, err := h.commands.CompleteDeadline(c.Request.Context(), cqrs.CompleteDeadlineCommand{
		OrganizationID: orgID,
		DeadlineID:     c.Param("deadlineId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to complete tax deadline")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Register mounts the cross-border tax routes under /tax. The calculators
// persist nothing and stay on g.
func (h *TaxHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("/nexus", orgReport(h.queries.Nexus, "Failed to analyze nexus"))
	g.GET("/dst", orgReport(h.queries.DigitalServicesTax, "Failed to analyze digital services tax"))
	g.GET("/optimization", orgReport(h.queries.Optimization, "Failed to build optimization plan"))
	g.GET("/deadlines", orgReport(h.queries.Deadlines, "Failed to list tax deadlines"))
	g.POST("/vat/calculate", h.CalculateVAT)
	g.POST("/sales-tax/calculate", h.CalculateSalesTax)
	writes.POST("/deadlines", h.CreateDeadline)
	writes.POST("/deadlines/:deadlineId/complete", h.CompleteDeadline)
}
