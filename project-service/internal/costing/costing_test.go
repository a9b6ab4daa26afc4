package costing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

func day(y int, m time.Month, d int) models.Date {
	return models.NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func datePtr(d models.Date) *models.Date { return &d }

func TestStatus(t *testing.T) {
	tests := []struct {
		name                        string
		budgeted, actual, committed float64
		want                        string
	}{
		{"well within budget", 1000, 500, 0, StatusOnTrack},
		{"little budget left", 1000, 800, 150, StatusAtRisk},
		{"actual above budget", 1000, 1010, 0, StatusOverBudget},
		{"far above budget", 1000, 1200, 0, StatusOverBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := Totals{Budgeted: tt.budgeted, Actual: tt.actual, Committed: tt.committed}
			totals.settle()
			assert.Equal(t, tt.want, totals.Status)
		})
	}
}

func TestBudgetStatus(t *testing.T) {
	budgets := []models.ProjectBudget{{ID: "bud_1", Phase: "design", Category: "labor", BudgetedAmount: 1000}}
	costs := []models.ProjectCost{
		{Phase: "design", Category: "labor", Amount: 800, Kind: models.CostActual},
		{Phase: "design", Category: "labor", Amount: 150, Kind: models.CostCommitted},
		{Phase: "design", Category: "materials", Amount: 99, Kind: models.CostActual},
	}

	lines := BudgetStatus(budgets, costs)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, 800.0, line.Actual)
	assert.Equal(t, 150.0, line.Committed)
	assert.Equal(t, 50.0, line.Remaining)
	assert.Equal(t, 200.0, line.Variance)
	assert.Equal(t, 20.0, line.VariancePercent)
	assert.Equal(t, StatusAtRisk, line.Status)
}

func TestEarnedValueAt(t *testing.T) {
	project := models.Project{
		ID:          "prj_1",
		StartDate:   day(2026, 1, 1),
		EndDate:     day(2026, 1, 11),
		TotalBudget: 1000,
	}
	tasks := []models.ProjectTask{
		{BudgetedCost: 300, CompletedAt: datePtr(day(2026, 1, 3))},
		{BudgetedCost: 200, CompletedAt: datePtr(day(2026, 1, 8))},
		{BudgetedCost: 100},
	}
	costs := []models.ProjectCost{
		{Amount: 400, Kind: models.CostActual, IncurredAt: day(2026, 1, 2)},
		{Amount: 100, Kind: models.CostActual, IncurredAt: day(2026, 1, 10)},
		{Amount: 50, Kind: models.CostCommitted, IncurredAt: day(2026, 1, 2)},
	}

	ev := EarnedValueAt(project, tasks, costs, day(2026, 1, 6))

	assert.Equal(t, 1000.0, ev.BudgetAtCompletion)
	assert.Equal(t, 500.0, ev.PlannedValue)
	assert.Equal(t, 300.0, ev.EarnedValue)
	assert.Equal(t, 400.0, ev.ActualCost)
	assert.Equal(t, -200.0, ev.ScheduleVariance)
	assert.Equal(t, -100.0, ev.CostVariance)
	assert.Equal(t, 0.6, ev.SchedulePerformanceIndex)
	assert.Equal(t, 0.75, ev.CostPerformanceIndex)
	assert.Equal(t, 1333.33, ev.EstimateAtCompletion)
	assert.Equal(t, 933.33, ev.EstimateToComplete)
	assert.Equal(t, -333.33, ev.VarianceAtCompletion)
	assert.Equal(t, 1.1667, ev.ToCompletePerformanceIndex)
	assert.Equal(t, 50.0, ev.PercentScheduleElapsed)
	assert.Equal(t, HealthCritical, ev.Health)
}

func TestEarnedValueBeforeStart(t *testing.T) {
	project := models.Project{StartDate: day(2026, 6, 1), EndDate: day(2026, 12, 1), TotalBudget: 1000}

	ev := EarnedValueAt(project, nil, nil, day(2026, 5, 1))

	assert.Zero(t, ev.PlannedValue)
	assert.Zero(t, ev.SchedulePerformanceIndex)
	assert.Zero(t, ev.CostPerformanceIndex)
	assert.Equal(t, 1000.0, ev.EstimateAtCompletion)
	assert.Equal(t, HealthOnTrack, ev.Health)
}

func TestHealth(t *testing.T) {
	assert.Equal(t, HealthOnTrack, Health(1, 1, true, true))
	assert.Equal(t, HealthAtRisk, Health(0.9, 1, true, true))
	assert.Equal(t, HealthCritical, Health(0.96, 0.8, true, true))
	assert.Equal(t, HealthOnTrack, Health(0, 0, false, false))
}

func TestAnalyze(t *testing.T) {
	project := models.Project{
		ID:          "prj_1",
		Name:        "Warehouse",
		StartDate:   day(2026, 1, 1),
		EndDate:     day(2026, 12, 31),
		TotalBudget: 1000,
	}
	budgets := []models.ProjectBudget{
		{Phase: "design", Category: "labor", BudgetedAmount: 400},
		{Phase: "build", Category: "labor", BudgetedAmount: 600},
	}
	costs := []models.ProjectCost{
		{Phase: "design", Category: "labor", Amount: 500, Kind: models.CostActual, IncurredAt: day(2026, 2, 10)},
		{Phase: "build", Category: "labor", Amount: 200, Kind: models.CostActual, IncurredAt: day(2026, 3, 5)},
		{Phase: "build", Category: "labor", Amount: 999, Kind: models.CostActual, IncurredAt: day(2026, 4, 5)},
	}

	a := Analyze(project, budgets, costs, nil, day(2026, 3, 31))

	assert.Equal(t, 700.0, a.Totals.Actual)
	assert.Equal(t, 300.0, a.Totals.Remaining)
	assert.Equal(t, StatusOnTrack, a.Totals.Status)

	require.Len(t, a.Phases, 2)
	assert.Equal(t, "build", a.Phases[0].Name)
	assert.Equal(t, "design", a.Phases[1].Name)
	assert.Equal(t, -25.0, a.Phases[1].VariancePercent)
	assert.Equal(t, StatusOverBudget, a.Phases[1].Status)

	require.Len(t, a.Categories, 1)
	assert.Equal(t, 1000.0, a.Categories[0].Budgeted)
	assert.Equal(t, 700.0, a.Categories[0].Actual)

	require.Len(t, a.Trend, TrendMonths)
	assert.Equal(t, "2025-04", a.Trend[0].Month)
	assert.Equal(t, "2026-02", a.Trend[10].Month)
	assert.Equal(t, 500.0, a.Trend[10].Actual)
	assert.Equal(t, 200.0, a.Trend[11].Actual)
	assert.Equal(t, 700.0, a.Trend[11].CumulativeActual)

	require.Len(t, a.Recommendations, 2)
	assert.Contains(t, a.Recommendations[0], `"design"`)
	assert.Contains(t, a.Recommendations[1], "Cost performance index")
}

func TestAnalyzeLowRemainingBudget(t *testing.T) {
	project := models.Project{StartDate: day(2026, 1, 1), EndDate: day(2026, 12, 31), TotalBudget: 1000}
	costs := []models.ProjectCost{
		{Phase: "build", Category: "labor", Amount: 850, Kind: models.CostActual, IncurredAt: day(2026, 2, 1)},
		{Phase: "build", Category: "labor", Amount: 100, Kind: models.CostCommitted, IncurredAt: day(2026, 2, 1)},
	}
	tasks := []models.ProjectTask{{BudgetedCost: 850, CompletedAt: datePtr(day(2026, 2, 1))}}

	a := Analyze(project, nil, costs, tasks, day(2026, 3, 1))

	assert.Equal(t, StatusAtRisk, a.Totals.Status)
	assert.Contains(t, a.Recommendations, "Less than 10% of the budget remains. Consider additional funding or scope reduction.")
	assert.Equal(t, 1.0, a.EarnedValue.CostPerformanceIndex)
}
