package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/command"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/costing"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type ProjectCommander interface {
	CreateProject(context.Context, cqrs.CreateProjectCommand) (*models.Project, error)
	UpdateProject(context.Context, cqrs.UpdateProjectCommand) (*models.Project, error)
	CreateBudget(context.Context, cqrs.CreateBudgetCommand) (*models.ProjectBudget, error)
	RecordCost(context.Context, cqrs.RecordCostCommand) (*models.ProjectCost, error)
	CreateTask(context.Context, cqrs.CreateTaskCommand) (*models.ProjectTask, error)
	CompleteTask(context.Context, cqrs.CompleteTaskCommand) (*models.ProjectTask, error)
	Allocate(context.Context, cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error)
}

type ProjectQuerier interface {
	ListProjects(context.Context, cqrs.ListProjectsQuery) ([]models.Project, error)
	GetProject(ctx context.Context, orgID, id string) (*models.Project, error)
	ListCosts(ctx context.Context, orgID, projectID string) ([]models.ProjectCost, error)
	ListTasks(ctx context.Context, orgID, projectID string) ([]models.ProjectTask, error)
	ProjectAllocations(ctx context.Context, orgID, projectID string) ([]models.ResourceAllocation, error)
	BudgetStatus(ctx context.Context, orgID, projectID string) ([]costing.BudgetLine, error)
	EarnedValue(ctx context.Context, orgID, projectID string, asOf models.Date) (*costing.EarnedValue, error)
	CostAnalysis(ctx context.Context, orgID, projectID string, asOf models.Date) (*costing.Analysis, error)
}

type ProjectHandler struct {
	commands ProjectCommander
	queries  ProjectQuerier
}

func NewProjectHandler(commands ProjectCommander, queries ProjectQuerier) *ProjectHandler {
	return &ProjectHandler{commands: commands, queries: queries}
}

type CreateProjectRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Code        string      `json:"code" validate:"omitempty,max=32"`
	StartDate   models.Date `json:"startDate"`
	EndDate     models.Date `json:"endDate"`
	TotalBudget float64     `json:"totalBudget" validate:"gte=0"`
	Status      string      `json:"status" validate:"omitempty,oneof=planning active on_hold completed"`
}

type UpdateProjectRequest struct {
	Name        *string      `json:"name" validate:"omitempty,min=1,max=200"`
	StartDate   *models.Date `json:"startDate"`
	EndDate     *models.Date `json:"endDate"`
	TotalBudget *float64     `json:"totalBudget" validate:"omitempty,gte=0"`
	Status      *string      `json:"status" validate:"omitempty,oneof=planning active on_hold completed"`
}

type CreateBudgetRequest struct {
	Phase          string  `json:"phase" validate:"required,max=100"`
	Category       string  `json:"category" validate:"required,max=100"`
	BudgetedAmount float64 `json:"budgetedAmount" validate:"gte=0"`
}

type RecordCostRequest struct {
	Phase       string       `json:"phase" validate:"required,max=100"`
	Category    string       `json:"category" validate:"required,max=100"`
	Amount      float64      `json:"amount" validate:"gt=0"`
	Kind        string       `json:"kind" validate:"omitempty,oneof=committed actual"`
	IncurredAt  *models.Date `json:"incurredAt"`
	Description string       `json:"description" validate:"omitempty,max=500"`
}

type CreateTaskRequest struct {
	Name               string      `json:"name" validate:"required,max=200"`
	Phase              string      `json:"phase" validate:"omitempty,max=100"`
	BudgetedCost       float64     `json:"budgetedCost" validate:"gte=0"`
	PlannedStart       models.Date `json:"plannedStart"`
	PlannedEnd         models.Date `json:"plannedEnd"`
	AssigneeResourceID string      `json:"assigneeResourceId"`
}

type CompleteTaskRequest struct {
	CompletedAt *models.Date `json:"completedAt"`
}

type AllocateRequest struct {
	ResourceID  string      `json:"resourceId" validate:"required"`
	StartDate   models.Date `json:"startDate"`
	EndDate     models.Date `json:"endDate"`
	HoursPerDay float64     `json:"hoursPerDay" validate:"gt=0,lte=24"`
	Status      string      `json:"status" validate:"omitempty,oneof=planned confirmed"`
}

// asOfQuery reads the optional asOf date; a zero date means today.
func asOfQuery(c *gin.Context) (models.Date, bool) {
	raw := c.Query("asOf")
	if raw == "" {
		return models.Date{}, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid asOf date")
		return models.Date{}, false
	}
	return d, true
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateProjectRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	p, err := h.commands.CreateProject(c.Request.Context(), cqrs.CreateProjectCommand{
		OrganizationID: orgID,
		Name:           req.Name,
		Code:           req.Code,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TotalBudget:    req.TotalBudget,
		Status:         req.Status,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create project")
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req UpdateProjectRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	p, err := h.commands.UpdateProject(c.Request.Context(), cqrs.UpdateProjectCommand{
		OrganizationID: orgID,
		ProjectID:      c.Param("projectId"),
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TotalBudget:    req.TotalBudget,
		Status:         req.Status,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to update project")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	projects, err := h.queries.ListProjects(c.Request.Context(), cqrs.ListProjectsQuery{
		OrganizationID: orgID,
		Status:         c.Query("status"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	p, err := h.queries.GetProject(c.Request.Context(), orgID, c.Param("projectId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get project")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) CreateBudget(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateBudgetRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	b, err := h.commands.CreateBudget(c.Request.Context(), cqrs.CreateBudgetCommand{
		OrganizationID: orgID,
		ProjectID:      c.Param("projectId"),
		Phase:          req.Phase,
		Category:       req.Category,
		BudgetedAmount: req.BudgetedAmount,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create budget")
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *ProjectHandler) BudgetStatus(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	lines, err := h.queries.BudgetStatus(c.Request.Context(), orgID, c.Param("projectId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get budget status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"budgets": lines})
}

func (h *ProjectHandler) RecordCost(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req RecordCostRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	cost, err := h.commands.RecordCost(c.Request.Context(), cqrs.RecordCostCommand{
		OrganizationID: orgID,
		ProjectID:      c.Param("projectId"),
		Phase:          req.Phase,
		Category:       req.Category,
		Amount:         req.Amount,
		Kind:           req.Kind,
		IncurredAt:     req.IncurredAt,
		Description:    req.Description,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to record cost")
		return
	}
	c.JSON(http.StatusCreated, cost)
}

func (h *ProjectHandler) ListCosts(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	costs, err := h.queries.ListCosts(c.Request.Context(), orgID, c.Param("projectId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list costs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"costs": costs})
}

func (h *ProjectHandler) CreateTask(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateTaskRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	t, err := h.commands.CreateTask(c.Request.Context(), cqrs.CreateTaskCommand{
		OrganizationID:     orgID,
		ProjectID:          c.Param("projectId"),
		Name:               req.Name,
		Phase:              req.Phase,
		BudgetedCost:       req.BudgetedCost,
		PlannedStart:       req.PlannedStart,
		PlannedEnd:         req.PlannedEnd,
		AssigneeResourceID: req.AssigneeResourceID,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create task")
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *ProjectHandler) ListTasks(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	tasks, err := h.queries.ListTasks(c.Request.Context(), orgID, c.Param("projectId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list tasks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *ProjectHandler) CompleteTask(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	// The body is optional.
	var req CompleteTaskRequest
	if c.Request.ContentLength > 0 && !middleware.BindAndValidate(c, &req) {
		return
	}
	t, err := h.commands.CompleteTask(c.Request.Context(), cqrs.CompleteTaskCommand{
		OrganizationID: orgID,
		ProjectID:      c.Param("projectId"),
		TaskID:         c.Param("taskId"),
		CompletedAt:    req.CompletedAt,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to complete task")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *ProjectHandler) EarnedValue(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	asOf, ok := asOfQuery(c)
	if !ok {
		return
	}
	ev, err := h.queries.EarnedValue(c.Request.Context(), orgID, c.Param("projectId"), asOf)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to calculate earned value")
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *ProjectHandler) CostAnalysis(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	asOf, ok := asOfQuery(c)
	if !ok {
		return
	}
	a, err := h.queries.CostAnalysis(c.Request.Context(), orgID, c.Param("projectId"), asOf)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to analyze project costs")
		return
	}
	c.JSON(http.StatusOK, a)
}

// Allocate answers 409 with the full conflict list when the resource cannot
// take the allocation.
func (h *ProjectHandler) Allocate(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req AllocateRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	a, err := h.commands.Allocate(c.Request.Context(), cqrs.AllocateResourceCommand{
		OrganizationID: orgID,
		ProjectID:      c.Param("projectId"),
		ResourceID:     req.ResourceID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		HoursPerDay:    req.HoursPerDay,
		Status:         req.Status,
	})
	var conflict *command.AllocationConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"message":   "Resource is not available for the requested allocation",
			"conflicts": conflict.Conflicts,
		})
		return
	}
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to allocate resource")
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *ProjectHandler) ListAllocations(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	allocations, err := h.queries.ProjectAllocations(c.Request.Context(), orgID, c.Param("projectId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list allocations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": allocations})
}

// Register mounts the project routes. Mutations go on writes.
func (h *ProjectHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("", h.ListProjects)
	g.GET("/:projectId", h.GetProject)
	writes.POST("", h.CreateProject)
	writes.PATCH("/:projectId", h.UpdateProject)

	g.GET("/:projectId/budgets", h.BudgetStatus)
	writes.POST("/:projectId/budgets", h.CreateBudget)
	g.GET("/:projectId/costs", h.ListCosts)
	writes.POST("/:projectId/costs", h.RecordCost)
	g.GET("/:projectId/tasks", h.ListTasks)
	writes.POST("/:projectId/tasks", h.CreateTask)
	writes.POST("/:projectId/tasks/:taskId/complete", h.CompleteTask)

	g.GET("/:projectId/earned-value", h.EarnedValue)
	g.GET("/:projectId/cost-analysis", h.CostAnalysis)

	g.GET("/:projectId/allocations", h.ListAllocations)
	writes.POST("/:projectId/allocations", h.Allocate)
}
