package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/analytics-service/internal/saas"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

type MetricsQuerier interface {
	MRR(context.Context, cqrs.MetricsQuery) (*saas.MRRReport, error)
	ARR(context.Context, cqrs.MetricsQuery) (*saas.ARRReport, error)
	Retention(context.Context, cqrs.MetricsQuery) (*saas.RetentionReport, error)
	QuickRatio(context.Context, cqrs.MetricsQuery) (*saas.QuickRatioReport, error)
	RuleOf40(context.Context, cqrs.MetricsQuery) (*saas.RuleOf40Report, error)
	MagicNumber(context.Context, cqrs.MetricsQuery) (*saas.MagicNumberReport, error)
	BurnMultiple(context.Context, cqrs.MetricsQuery) (*saas.BurnMultipleReport, error)
	CACPayback(context.Context, cqrs.MetricsQuery) (*saas.CACPaybackReport, error)
	LTVCAC(context.Context, cqrs.MetricsQuery) (*saas.LTVCACReport, error)
	Dashboard(context.Context, cqrs.MetricsQuery) (*saas.Dashboard, error)
}

type MetricsHandler struct {
	queries MetricsQuerier
}

func NewMetricsHandler(queries MetricsQuerier) *MetricsHandler {
	return &MetricsHandler{queries: queries}
}

func metricsQuery(c *gin.Context) (cqrs.MetricsQuery, bool) {
	orgID, _ := middleware.GetOrganizationID(c)
	period := c.DefaultQuery("period", utils.PeriodMonth)
	switch period {
	case utils.PeriodMonth, utils.PeriodQuarter, utils.PeriodYear:
	default:
		middleware.RespondWithError(c, http.StatusBadRequest, "period must be one of: month quarter year")
		return cqrs.MetricsQuery{}, false
	}
	asOf, err := utils.ParseDate(c.Query("asOf"), time.Now().UTC())
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid asOf date")
		return cqrs.MetricsQuery{}, false
	}
	return cqrs.MetricsQuery{OrganizationID: orgID, Period: period, AsOf: asOf}, true
}

func serveMetric[T any](fn func(context.Context, cqrs.MetricsQuery) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, ok := metricsQuery(c)
		if !ok {
			return
		}
		report, err := fn(c.Request.Context(), q)
		if err != nil {
			middleware.RespondWithDomainError(c, err, "Failed to compute metric")
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// Register mounts every metric under the group.
func (h *MetricsHandler) Register(g *gin.RouterGroup) {
	g.GET("/mrr", serveMetric(h.queries.MRR))
	g.GET("/arr", serveMetric(h.queries.ARR))
	g.GET("/retention", serveMetric(h.queries.Retention))
	g.GET("/quick-ratio", serveMetric(h.queries.QuickRatio))
	g.GET("/rule-of-40", serveMetric(h.queries.RuleOf40))
	g.GET("/magic-number", serveMetric(h.queries.MagicNumber))
	g.GET("/burn-multiple", serveMetric(h.queries.BurnMultiple))
	g.GET("/cac-payback", serveMetric(h.queries.CACPayback))
	g.GET("/ltv-cac", serveMetric(h.queries.LTVCAC))
	g.GET("/dashboard", serveMetric(h.queries.Dashboard))
}
