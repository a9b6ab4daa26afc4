package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type SubscriptionCommander interface {
	CreateCustomer(context.Context, cqrs.CreateCustomerCommand) (*models.Customer, error)
	CreateSubscription(context.Context, cqrs.CreateSubscriptionCommand) (*models.Subscription, error)
	ChangeSubscription(context.Context, cqrs.ChangeSubscriptionCommand) (*models.Subscription, error)
	CancelSubscription(context.Context, cqrs.CancelSubscriptionCommand) (*models.Subscription, error)
}

type SubscriptionQuerier interface {
	ListCustomers(context.Context, cqrs.ListCustomersQuery) ([]models.Customer, error)
	ListSubscriptions(context.Context, cqrs.ListSubscriptionsQuery) ([]models.Subscription, error)
}

type SubscriptionHandler struct {
	commands SubscriptionCommander
	queries  SubscriptionQuerier
}

func NewSubscriptionHandler(commands SubscriptionCommander, queries SubscriptionQuerier) *SubscriptionHandler {
	return &SubscriptionHandler{commands: commands, queries: queries}
}

type CreateCustomerRequest struct {
	Name            string     `json:"name" validate:"required,max=200"`
	Email           string     `json:"email" validate:"omitempty,email"`
	AcquisitionCost float64    `json:"acquisitionCost" validate:"gte=0"`
	AcquiredAt      *time.Time `json:"acquiredAt"`
}

type CreateSubscriptionRequest struct {
	CustomerID string     `json:"customerId" validate:"required"`
	PlanName   string     `json:"planName" validate:"required,max=100"`
	MRR        float64    `json:"mrr" validate:"gt=0"`
	StartedAt  *time.Time `json:"startedAt"`
}

type ChangeSubscriptionRequest struct {
	MRR         float64    `json:"mrr" validate:"gt=0"`
	EffectiveAt *time.Time `json:"effectiveAt"`
}

type CancelSubscriptionRequest struct {
	CancelledAt *time.Time `json:"cancelledAt"`
}

func (h *SubscriptionHandler) CreateCustomer(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateCustomerRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	customer, err := h.commands.CreateCustomer(c.Request.Context(), cqrs.CreateCustomerCommand{
		OrganizationID:  orgID,
		Name:            req.Name,
		Email:           req.Email,
		AcquisitionCost: req.AcquisitionCost,
		AcquiredAt:      req.AcquiredAt,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create customer")
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *SubscriptionHandler) ListCustomers(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	customers, err := h.queries.ListCustomers(c.Request.Context(), cqrs.ListCustomersQuery{OrganizationID: orgID})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list customers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateSubscriptionRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	sub, err := h.commands.CreateSubscription(c.Request.Context(), cqrs.CreateSubscriptionCommand{
		OrganizationID: orgID,
		CustomerID:     req.CustomerID,
		PlanName:       req.PlanName,
		MRR:            req.MRR,
		StartedAt:      req.StartedAt,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create subscription")
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	status := c.Query("status")
	if status != "" && status != models.SubscriptionActive && status != models.SubscriptionCancelled {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid status filter")
		return
	}
	subs, err := h.queries.ListSubscriptions(c.Request.Context(), cqrs.ListSubscriptionsQuery{
		OrganizationID: orgID,
		Status:         status,
		CustomerID:     c.Query("customerId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list subscriptions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

func (h *SubscriptionHandler) ChangeSubscription(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req ChangeSubscriptionRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	sub, err := h.commands.ChangeSubscription(c.Request.Context(), cqrs.ChangeSubscriptionCommand{
		OrganizationID: orgID,
		SubscriptionID: c.Param("subscriptionId"),
		MRR:            req.MRR,
		EffectiveAt:    req.EffectiveAt,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update subscription")
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CancelSubscriptionRequest
	if c.Request.ContentLength > 0 && !middleware.BindAndValidate(c, &req) {
		return
	}
	sub, err := h.commands.CancelSubscription(c.Request.Context(), cqrs.CancelSubscriptionCommand{
		OrganizationID: orgID,
		SubscriptionID: c.Param("subscriptionId"),
		CancelledAt:    req.CancelledAt,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to cancel subscription")
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("/customers", h.ListCustomers)
	writes.POST("/customers", h.CreateCustomer)

	g.GET("/subscriptions", h.ListSubscriptions)
	writes.POST("/subscriptions", h.CreateSubscription)
	writes.PATCH("/subscriptions/:subscriptionId", h.ChangeSubscription)
	writes.POST("/subscriptions/:subscriptionId/cancel", h.CancelSubscription)
}
