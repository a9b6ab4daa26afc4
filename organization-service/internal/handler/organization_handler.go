package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type OrganizationCommander interface {
	CreateOrganization(context.Context, cqrs.CreateOrganizationCommand) (*models.OrganizationView, error)
	UpdateOrganization(context.Context, cqrs.UpdateOrganizationCommand) (*models.OrganizationView, error)
	DeleteOrganization(context.Context, cqrs.DeleteOrganizationCommand) error
	AddMember(context.Context, cqrs.AddMemberCommand) (*models.Membership, error)
	ChangeMemberRole(context.Context, cqrs.ChangeMemberRoleCommand) (*models.Membership, error)
	RemoveMember(context.Context, cqrs.RemoveMemberCommand) error
}

type OrganizationQuerier interface {
	GetOrganization(context.Context, cqrs.GetOrganizationQuery) (*models.OrganizationView, error)
	ListOrganizations(context.Context, cqrs.ListOrganizationsQuery) ([]models.OrganizationView, error)
	ListMembers(context.Context, cqrs.ListMembersQuery) ([]models.MemberView, error)
}

// OrganizationHandler serves /v1/organizations and its member sub-resource.
// Authorisation by role happens in the command service, since the caller's
// role depends on the organization in the path rather than the token.
type OrganizationHandler struct {
	commands OrganizationCommander
	queries  OrganizationQuerier
}

type CreateOrganizationRequest struct {
	Name                 string `json:"name" validate:"required,max=120"`
	Country              string `json:"country" validate:"required,len=2"`
	State                string `json:"state" validate:"omitempty,len=2"`
	Currency             string `json:"currency" validate:"omitempty,len=3"`
	FiscalYearStartMonth int    `json:"fiscalYearStartMonth" validate:"omitempty,min=1,max=12"`
}

type UpdateOrganizationRequest struct {
	Name                 string `json:"name" validate:"omitempty,max=120"`
	Country              string `json:"country" validate:"omitempty,len=2"`
	State                string `json:"state" validate:"omitempty,len=2"`
	Currency             string `json:"currency" validate:"omitempty,len=3"`
	FiscalYearStartMonth int    `json:"fiscalYearStartMonth" validate:"omitempty,min=1,max=12"`
}

type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=owner admin member viewer"`
}

type ChangeMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner admin member viewer"`
}

func NewOrganizationHandler(commands OrganizationCommander, queries OrganizationQuerier) *OrganizationHandler {
	return &OrganizationHandler{commands: commands, queries: queries}
}

func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	var req CreateOrganizationRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	userID, _ := middleware.GetUserID(c)

	view, err := h.commands.CreateOrganization(c.Request.Context(), cqrs.CreateOrganizationCommand{
		UserID:               userID,
		Name:                 req.Name,
		Country:              req.Country,
		State:                req.State,
		Currency:             req.Currency,
		FiscalYearStartMonth: req.FiscalYearStartMonth,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create organization")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	views, err := h.queries.ListOrganizations(c.Request.Context(), cqrs.ListOrganizationsQuery{UserID: userID})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list organizations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": views})
}

func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	view, err := h.queries.GetOrganization(c.Request.Context(), cqrs.GetOrganizationQuery{
		OrganizationID:   c.Param("organizationId"),
		RequestingUserID: userID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to fetch organization")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	var req UpdateOrganizationRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	userID, _ := middleware.GetUserID(c)

	view, err := h.commands.UpdateOrganization(c.Request.Context(), cqrs.UpdateOrganizationCommand{
		OrganizationID:       c.Param("organizationId"),
		RequestingUserID:     userID,
		Name:                 req.Name,
		Country:              req.Country,
		State:                req.State,
		Currency:             req.Currency,
		FiscalYearStartMonth: req.FiscalYearStartMonth,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update organization")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrganizationHandler) DeleteOrganization(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	err := h.commands.DeleteOrganization(c.Request.Context(), cqrs.DeleteOrganizationCommand{
		OrganizationID:   c.Param("organizationId"),
		RequestingUserID: userID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to delete organization")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	members, err := h.queries.ListMembers(c.Request.Context(), cqrs.ListMembersQuery{
		OrganizationID:   c.Param("organizationId"),
		RequestingUserID: userID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *OrganizationHandler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	userID, _ := middleware.GetUserID(c)

	membership, err := h.commands.AddMember(c.Request.Context(), cqrs.AddMemberCommand{
		OrganizationID:   c.Param("organizationId"),
		RequestingUserID: userID,
		Email:            req.Email,
		Role:             req.Role,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to add member")
		return
	}
	c.JSON(http.StatusCreated, membership)
}

func (h *OrganizationHandler) ChangeMemberRole(c *gin.Context) {
	var req ChangeMemberRoleRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	userID, _ := middleware.GetUserID(c)

	membership, err := h.commands.ChangeMemberRole(c.Request.Context(), cqrs.ChangeMemberRoleCommand{
		OrganizationID:   c.Param("organizationId"),
		RequestingUserID: userID,
		UserID:           c.Param("userId"),
		Role:             req.Role,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to change member role")
		return
	}
	c.JSON(http.StatusOK, membership)
}

func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	err := h.commands.RemoveMember(c.Request.Context(), cqrs.RemoveMemberCommand{
		OrganizationID:   c.Param("organizationId"),
		RequestingUserID: userID,
		UserID:           c.Param("userId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to remove member")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrganizationHandler) Register(g *gin.RouterGroup) {
	g.POST("", h.CreateOrganization)
	g.GET("", h.ListOrganizations)
	g.GET("/:organizationId", h.GetOrganization)
	g.PATCH("/:organizationId", h.UpdateOrganization)
	g.DELETE("/:organizationId", h.DeleteOrganization)
	g.GET("/:organizationId/members", h.ListMembers)
	g.POST("/:organizationId/members", h.AddMember)
	g.PATCH("/:organizationId/members/:userId", h.ChangeMemberRole)
	g.DELETE("/:organizationId/members/:userId", h.RemoveMember)
}
