package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/analytics-service/internal/scenario"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type ScenarioCommander interface {
	SaveScenario(context.Context, cqrs.SaveScenarioCommand) (*models.Scenario, error)
}

type ScenarioQuerier interface {
	ListScenarios(context.Context, cqrs.ListScenariosQuery) ([]models.Scenario, error)
	ScenarioDashboard(ctx context.Context, orgID string) (*scenario.Dashboard, error)
	Runway(ctx context.Context, orgID string, in scenario.RunwayInput) (*scenario.RunwayResult, error)
	PriceIncrease(ctx context.Context, orgID string, in scenario.PriceIncreaseInput) (*scenario.PriceIncreaseResult, error)
	ChurnReduction(ctx context.Context, orgID string, in scenario.ChurnReductionInput) (*scenario.ChurnReductionResult, error)
	Hiring(ctx context.Context, orgID string, in scenario.HiringInput) (*scenario.HiringResult, error)
	ExpenseOptimization(ctx context.Context, orgID string, in scenario.ExpenseOptimizationInput) (*scenario.ExpenseOptimizationResult, error)
	Growth(ctx context.Context, orgID string, in scenario.GrowthInput) (*scenario.GrowthResult, error)
	BreakEven(ctx context.Context, orgID string, in scenario.BreakEvenInput) (*scenario.BreakEvenResult, error)
}

type ScenarioHandler struct {
	commands ScenarioCommander
	queries  ScenarioQuerier
}

func NewScenarioHandler(commands ScenarioCommander, queries ScenarioQuerier) *ScenarioHandler {
	return &ScenarioHandler{commands: commands, queries: queries}
}

type SaveScenarioRequest struct {
	Name    string          `json:"name" validate:"required,max=200"`
	Type    string          `json:"type" validate:"required,oneof=runway price_increase churn_reduction hiring expense_optimization growth break_even"`
	Inputs  json.RawMessage `json:"inputs" validate:"required"`
	Results json.RawMessage `json:"results" validate:"required"`
}

func runScenario[In, Out any](fn func(context.Context, string, In) (*Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, _ := middleware.GetOrganizationID(c)

		var in In
		if !middleware.BindAndValidate(c, &in) {
			return
		}
		result, err := fn(c.Request.Context(), orgID, in)
		if err != nil {
			middleware.RespondWithDomainError(c, err, "Failed to run scenario")
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *ScenarioHandler) SaveScenario(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	var req SaveScenarioRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	sc, err := h.commands.SaveScenario(c.Request.Context(), cqrs.SaveScenarioCommand{
		OrganizationID: id.OrganizationID,
		UserID:         id.UserID,
		Name:           req.Name,
		Type:           req.Type,
		Inputs:         req.Inputs,
		Results:        req.Results,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to save scenario")
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (h *ScenarioHandler) ListScenarios(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	scenarios, err := h.queries.ListScenarios(c.Request.Context(), cqrs.ListScenariosQuery{OrganizationID: orgID, Type: c.Query("type")})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list scenarios")
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (h *ScenarioHandler) Dashboard(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	d, err := h.queries.ScenarioDashboard(c.Request.Context(), orgID)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to build scenario dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Register mounts the scenario routes. Runs persist nothing and go on g;
// saving goes on writes.
func (h *ScenarioHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("", h.ListScenarios)
	writes.POST("", h.SaveScenario)
	g.GET("/dashboard", h.Dashboard)
	g.POST("/runway", runScenario(h.queries.Runway))
	g.POST("/price-increase", runScenario(h.queries.PriceIncrease))
	g.POST("/churn-reduction", runScenario(h.queries.ChurnReduction))
	g.POST("/hiring", runScenario(h.queries.Hiring))
	g.POST("/expense-optimization", runScenario(h.queries.ExpenseOptimization))
	g.POST("/growth", runScenario(h.queries.Growth))
	g.POST("/break-even", runScenario(h.queries.BreakEven))
}
