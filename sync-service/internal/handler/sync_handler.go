package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/sync-service/internal/command"
)

type SyncCommander interface {
	Enqueue(context.Context, cqrs.EnqueueSyncCommand) (*command.EnqueueResult, error)
	Process(context.Context, cqrs.ProcessSyncCommand) (*command.ProcessResult, error)
	Retry(context.Context, cqrs.RetrySyncItemCommand) (*models.SyncItem, error)
	ClearCompleted(context.Context, cqrs.ClearCompletedCommand) (int64, error)
}

type SyncQuerier interface {
	Status(context.Context, cqrs.SyncStatusQuery) (*models.SyncStatus, error)
	Items(context.Context, cqrs.SyncItemsQuery) ([]models.SyncItem, error)
}

type SyncHandler struct {
	commands SyncCommander
	queries  SyncQuerier
}

func NewSyncHandler(commands SyncCommander, queries SyncQuerier) *SyncHandler {
	return &SyncHandler{commands: commands, queries: queries}
}

type QueueItemRequest struct {
	ID               string          `json:"id" validate:"required,uuid"`
	EntityType       string          `json:"entityType" validate:"required,max=64"`
	EntityID         string          `json:"entityId" validate:"omitempty,max=64"`
	Action           string          `json:"action" validate:"required,oneof=create update delete"`
	Method           string          `json:"method" validate:"omitempty,oneof=POST PUT PATCH DELETE"`
	Path             string          `json:"path" validate:"required,startswith=/v1/,max=512"`
	Payload          json.RawMessage `json:"payload"`
	BaseVersion      *time.Time      `json:"baseVersion"`
	ConflictStrategy string          `json:"conflictStrategy" validate:"omitempty,oneof=local server merge"`
	ClientTimestamp  time.Time       `json:"clientTimestamp"`
}

type QueueRequest struct {
	DeviceID string             `json:"deviceId" validate:"required,max=128"`
	Items    []QueueItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

type ProcessRequest struct {
	DeviceID    string   `json:"deviceId" validate:"required,max=128"`
	EntityTypes []string `json:"entityTypes" validate:"omitempty,dive,required"`
	EntityID    string   `json:"entityId" validate:"omitempty,max=64"`
}

// bearerToken returns the caller's token so replays run with the same
// identity. AuthMiddleware has already checked the header's shape.
func bearerToken(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func (h *SyncHandler) Queue(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req QueueRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	items := make([]cqrs.SyncItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, cqrs.SyncItemInput{
			ID:               it.ID,
			EntityType:       it.EntityType,
			EntityID:         it.EntityID,
			Action:           it.Action,
			Method:           it.Method,
			Path:             it.Path,
			Payload:          it.Payload,
			BaseVersion:      it.BaseVersion,
			ConflictStrategy: it.ConflictStrategy,
			ClientTimestamp:  it.ClientTimestamp,
		})
	}
	res, err := h.commands.Enqueue(c.Request.Context(), cqrs.EnqueueSyncCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DeviceID:       req.DeviceID,
		Items:          items,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to queue sync items")
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *SyncHandler) Process(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req ProcessRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	res, err := h.commands.Process(c.Request.Context(), cqrs.ProcessSyncCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DeviceID:       req.DeviceID,
		Token:          bearerToken(c),
		EntityTypes:    req.EntityTypes,
		EntityID:       req.EntityID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to process sync queue")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SyncHandler) Status(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	status, err := h.queries.Status(c.Request.Context(), cqrs.SyncStatusQuery{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DeviceID:       c.Query("deviceId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get sync status")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SyncHandler) Items(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	items, err := h.queries.Items(c.Request.Context(), cqrs.SyncItemsQuery{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DeviceID:       c.Query("deviceId"),
		Status:         c.Query("status"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list sync items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *SyncHandler) Retry(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	item, err := h.commands.Retry(c.Request.Context(), cqrs.RetrySyncItemCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		ItemID:         c.Param("itemId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to retry sync item")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *SyncHandler) ClearCompleted(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	deleted, err := h.commands.ClearCompleted(c.Request.Context(), cqrs.ClearCompletedCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		DeviceID:       c.Query("deviceId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to clear completed items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *SyncHandler) Register(g *gin.RouterGroup) {
	g.POST("/queue", h.Queue)
	g.POST("/process", h.Process)
	g.GET("/status", h.Status)
	g.GET("/items", h.Items)
	g.POST("/items/:itemId/retry", h.Retry)
	g.DELETE("/completed", h.ClearCompleted)
}
