package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/inventory-service/internal/forecast"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/inventory-service/internal/query"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
)

type ForecastQuerier interface {
	Forecast(context.Context, cqrs.ForecastQuery) (*forecast.Result, error)
	Reorder(context.Context, cqrs.ReorderQuery) (*query.ReorderRecommendation, error)
	ABC(ctx context.Context, orgID string) (*forecast.ABCReport, error)
	Accuracy(ctx context.Context, orgID, itemID string, window int) (*forecast.Accuracy, error)
}

type ForecastHandler struct {
	queries ForecastQuerier
}

func NewForecastHandler(queries ForecastQuerier) *ForecastHandler {
	return &ForecastHandler{queries: queries}
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func floatQuery(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func (h *ForecastHandler) Forecast(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	periods, ok := intQuery(c, "periods")
	if !ok {
		return
	}
	window, ok := intQuery(c, "window")
	if !ok {
		return
	}
	alpha, ok := floatQuery(c, "alpha")
	if !ok {
		return
	}
	res, err := h.queries.Forecast(c.Request.Context(), cqrs.ForecastQuery{
		OrganizationID: orgID,
		ItemID:         c.Param("itemId"),
		Method:         c.Query("method"),
		Periods:        periods,
		Window:         window,
		Alpha:          alpha,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to forecast demand")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ForecastHandler) Reorder(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	level, ok := floatQuery(c, "serviceLevel")
	if !ok {
		return
	}
	rec, err := h.queries.Reorder(c.Request.Context(), cqrs.ReorderQuery{
		OrganizationID: orgID,
		ItemID:         c.Param("itemId"),
		ServiceLevel:   level,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to compute reorder point")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *ForecastHandler) ABC(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	report, err := h.queries.ABC(c.Request.Context(), orgID)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to classify items")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ForecastHandler) Accuracy(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	window, ok := intQuery(c, "window")
	if !ok {
		return
	}
	acc, err := h.queries.Accuracy(c.Request.Context(), orgID, c.Param("itemId"), window)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to measure forecast accuracy")
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *ForecastHandler) Register(g *gin.RouterGroup) {
	g.GET("/forecast/:itemId", h.Forecast)
	g.GET("/forecast/:itemId/accuracy", h.Accuracy)
	g.GET("/reorder/:itemId", h.Reorder)
	g.GET("/abc", h.ABC)
}
