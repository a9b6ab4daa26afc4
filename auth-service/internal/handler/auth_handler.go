package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// AuthQuerier defines the read-side operations used by AuthHandler.
type AuthQuerier interface {
	Login(context.Context, cqrs.LoginCommand) (*models.AuthToken, error)
	RefreshToken(context.Context, cqrs.RefreshTokenCommand) (*models.AuthToken, error)
	SwitchOrganization(context.Context, cqrs.SwitchOrganizationCommand) (*models.AuthToken, error)
}

// AuthHandler handles login, token refresh and organization switching.
// No command service needed.
type AuthHandler struct {
	queries AuthQuerier
}

type LoginRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required"`
	OrganizationID string `json:"organizationId"`
}

type RefreshTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type SwitchOrganizationRequest struct {
	OrganizationID string `json:"organizationId" validate:"required"`
}

func NewAuthHandler(queries AuthQuerier) *AuthHandler {
	return &AuthHandler{queries: queries}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	token, err := h.queries.Login(c.Request.Context(), cqrs.LoginCommand{
		Email:          req.Email,
		Password:       req.Password,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, token)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	token, err := h.queries.RefreshToken(c.Request.Context(), cqrs.RefreshTokenCommand{
		Token: req.Token,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, token)
}

func (h *AuthHandler) SwitchOrganization(c *gin.Context) {
	var req SwitchOrganizationRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	identity := middleware.CurrentIdentity(c)

	token, err := h.queries.SwitchOrganization(c.Request.Context(), cqrs.SwitchOrganizationCommand{
		UserID:         identity.UserID,
		Email:          identity.Email,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to switch organization")
		return
	}

	c.JSON(http.StatusOK, token)
}

// Register mounts login and refresh on public; switching organizations needs
// a signed-in user.
func (h *AuthHandler) Register(public, authed *gin.RouterGroup) {
	public.POST("/login", h.Login)
	public.POST("/refresh", h.RefreshToken)
	authed.POST("/switch", h.SwitchOrganization)
}
