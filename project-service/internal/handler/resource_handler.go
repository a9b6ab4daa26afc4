package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/query"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type ResourceCommander interface {
	CreateResource(context.Context, cqrs.CreateResourceCommand) (*models.Resource, error)
	UpdateResource(context.Context, cqrs.UpdateResourceCommand) (*models.Resource, error)
	UpdateAllocationStatus(context.Context, cqrs.UpdateAllocationStatusCommand) (*models.ResourceAllocation, error)
}

type ResourceQuerier interface {
	ListResources(ctx context.Context, orgID string) ([]models.Resource, error)
	GetResource(ctx context.Context, orgID, id string) (*models.Resource, error)
	Capacity(context.Context, cqrs.ResourceRangeQuery) (*query.CapacityReport, error)
	Workload(context.Context, cqrs.ResourceRangeQuery) (*query.WorkloadReport, error)
}

type ResourceHandler struct {
	commands ResourceCommander
	queries  ResourceQuerier
}

func NewResourceHandler(commands ResourceCommander, queries ResourceQuerier) *ResourceHandler {
	return &ResourceHandler{commands: commands, queries: queries}
}

type CreateResourceRequest struct {
	Name            string                    `json:"name" validate:"required,max=200"`
	Role            string                    `json:"role" validate:"required,max=100"`
	HourlyRate      float64                   `json:"hourlyRate" validate:"gte=0"`
	MaxHoursPerWeek float64                   `json:"maxHoursPerWeek" validate:"gt=0,lte=168"`
	Status          string                    `json:"status" validate:"omitempty,oneof=available unavailable on_leave"`
	Availability    models.WeeklyAvailability `json:"availability"`
}

type UpdateResourceRequest struct {
	Name            *string                   `json:"name" validate:"omitempty,min=1,max=200"`
	Role            *string                   `json:"role" validate:"omitempty,min=1,max=100"`
	HourlyRate      *float64                  `json:"hourlyRate" validate:"omitempty,gte=0"`
	MaxHoursPerWeek *float64                  `json:"maxHoursPerWeek" validate:"omitempty,gt=0,lte=168"`
	Status          *string                   `json:"status" validate:"omitempty,oneof=available unavailable on_leave"`
	Availability    models.WeeklyAvailability `json:"availability"`
}

type AllocationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=planned confirmed in_progress completed cancelled"`
}

func (h *ResourceHandler) CreateResource(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateResourceRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	res, err := h.commands.CreateResource(c.Request.Context(), cqrs.CreateResourceCommand{
		OrganizationID:  orgID,
		Name:            req.Name,
		Role:            req.Role,
		HourlyRate:      req.HourlyRate,
		MaxHoursPerWeek: req.MaxHoursPerWeek,
		Status:          req.Status,
		Availability:    req.Availability,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create resource")
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req UpdateResourceRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	res, err := h.commands.UpdateResource(c.Request.Context(), cqrs.UpdateResourceCommand{
		OrganizationID:  orgID,
		ResourceID:      c.Param("resourceId"),
		Name:            req.Name,
		Role:            req.Role,
		HourlyRate:      req.HourlyRate,
		MaxHoursPerWeek: req.MaxHoursPerWeek,
		Status:          req.Status,
		Availability:    req.Availability,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update resource")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ResourceHandler) ListResources(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	resources, err := h.queries.ListResources(c.Request.Context(), orgID)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list resources")
		return
	}
	c.JSON(http.StatusOK, gin.H{"resources": resources})
}

func (h *ResourceHandler) GetResource(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	res, err := h.queries.GetResource(c.Request.Context(), orgID, c.Param("resourceId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get resource")
		return
	}
	c.JSON(http.StatusOK, res)
}

func rangeQuery(c *gin.Context) (cqrs.ResourceRangeQuery, bool) {
	orgID, _ := middleware.GetOrganizationID(c)
	q := cqrs.ResourceRangeQuery{OrganizationID: orgID}
	params := []struct {
		name string
		dst  *models.Date
	}{{"from", &q.From}, {"to", &q.To}}
	for _, p := range params {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+p.name+" date")
			return q, false
		}
		*p.dst = d
	}
	return q, true
}

func (h *ResourceHandler) Capacity(c *gin.Context) {
	q, ok := rangeQuery(c)
	if !ok {
		return
	}
	report, err := h.queries.Capacity(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to build capacity report")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ResourceHandler) Workload(c *gin.Context) {
	q, ok := rangeQuery(c)
	if !ok {
		return
	}
	report, err := h.queries.Workload(c.Request.Context(), q)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to build workload report")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ResourceHandler) UpdateAllocationStatus(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req AllocationStatusRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	a, err := h.commands.UpdateAllocationStatus(c.Request.Context(), cqrs.UpdateAllocationStatusCommand{
		OrganizationID: orgID,
		AllocationID:   c.Param("allocationId"),
		Status:         req.Status,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update allocation")
		return
	}
	c.JSON(http.StatusOK, a)
}

// Register mounts /resources on g and writes, and allocation status changes
// on allocations.
func (h *ResourceHandler) Register(g, writes, allocations *gin.RouterGroup) {
	g.GET("", h.ListResources)
	g.GET("/capacity", h.Capacity)
	g.GET("/workload", h.Workload)
	g.GET("/:resourceId", h.GetResource)
	writes.POST("", h.CreateResource)
	writes.PATCH("/:resourceId", h.UpdateResource)

	allocations.PATCH("/:allocationId", h.UpdateAllocationStatus)
}
