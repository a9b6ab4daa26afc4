package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.User, error)
	UpdateUser(context.Context, cqrs.UpdateUserCommand) (*models.UserView, error)
	DeleteUser(context.Context, cqrs.DeleteUserCommand) error
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(context.Context, cqrs.GetUserQuery) (*models.UserView, error)
}

// UserHandler routes requests to the command or query service as appropriate.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

type CreateUserRequest struct {
	Name             string         `json:"name" validate:"required"`
	Email            string         `json:"email" validate:"required,email"`
	Password         string         `json:"password" validate:"required,min=8"`
	PhoneNumber      string         `json:"phoneNumber" validate:"required"`
	Address          models.Address `json:"address" validate:"required"`
	OrganizationName string         `json:"organizationName" validate:"omitempty,max=120"`
}

type UpdateUserRequest struct {
	Name        string         `json:"name" validate:"required"`
	Email       string         `json:"email" validate:"required,email"`
	PhoneNumber string         `json:"phoneNumber" validate:"required"`
	Address     models.Address `json:"address" validate:"required"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	user, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		PhoneNumber:      req.PhoneNumber,
		Address:          req.Address,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	requestingUserID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{
		UserID:           c.Param("userId"),
		RequestingUserID: requestingUserID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID := c.Param("userId")
	requestingUserID, _ := middleware.GetUserID(c)

	if userID != requestingUserID {
		middleware.RespondWithError(c, http.StatusForbidden, "You can only update your own user details")
		return
	}

	var req UpdateUserRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.UpdateUser(c.Request.Context(), cqrs.UpdateUserCommand{
		UserID:           userID,
		RequestingUserID: requestingUserID,
		Name:             req.Name,
		Email:            req.Email,
		PhoneNumber:      req.PhoneNumber,
		Address:          req.Address,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("userId")
	requestingUserID, _ := middleware.GetUserID(c)

	if userID != requestingUserID {
		middleware.RespondWithError(c, http.StatusForbidden, "You can only delete your own user")
		return
	}

	err := h.commands.DeleteUser(c.Request.Context(), cqrs.DeleteUserCommand{
		UserID:           userID,
		RequestingUserID: requestingUserID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to delete user")
		return
	}

	c.Status(http.StatusNoContent)
}

// Register mounts signup on public and the profile routes on authed.
func (h *UserHandler) Register(public, authed *gin.RouterGroup) {
	public.POST("", h.CreateUser)
	authed.GET("/:userId", h.GetUser)
	authed.PATCH("/:userId", h.UpdateUser)
	authed.DELETE("/:userId", h.DeleteUser)
}
