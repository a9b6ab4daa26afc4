// Package costing computes budget status, earned value and cost analysis for
// a project from its budget lines, recorded costs and tasks.
package costing

import (
	"fmt"
	"sort"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// Budget and project statuses.
const (
	StatusOnTrack    = "on_track"
	StatusAtRisk     = "at_risk"
	StatusOverBudget = "over_budget"
)

// Earned value health.
const (
	HealthOnTrack  = "on_track"
	HealthAtRisk   = "at_risk"
	HealthCritical = "critical"
)

// TrendMonths is the length of the monthly cost trend.
const TrendMonths = 12

// Totals is the budget arithmetic shared by budget lines, phases and
// categories.
type Totals struct {
	Budgeted        float64 `json:"budgeted"`
	Actual          float64 `json:"actual"`
	Committed       float64 `json:"committed"`
	Remaining       float64 `json:"remaining"`
	Variance        float64 `json:"variance"`
	VariancePercent float64 `json:"variancePercentage"`
	Status          string  `json:"status"`
}

func (t *Totals) add(c models.ProjectCost) {
	switch c.Kind {
	case models.CostActual:
		t.Actual += c.Amount
	case models.CostCommitted:
		t.Committed += c.Amount
	}
}

// settle derives remaining, variance and status from the running sums.
func (t *Totals) settle() {
	t.Budgeted = utils.RoundMoney(t.Budgeted)
	t.Actual = utils.RoundMoney(t.Actual)
	t.Committed = utils.RoundMoney(t.Committed)
	t.Remaining = utils.RoundMoney(t.Budgeted - t.Actual - t.Committed)
	t.Variance = utils.RoundMoney(t.Budgeted - t.Actual)
	t.VariancePercent = utils.Round(utils.SafeDiv(t.Variance, t.Budgeted)*100, 2)
	t.Status = Status(t.Budgeted, t.Actual, t.Remaining, t.VariancePercent)
}

// Status classifies spending against a budget.
func Status(budgeted, actual, remaining, variancePercent float64) string {
	switch {
	case actual > budgeted || variancePercent < -10:
		return StatusOverBudget
	case variancePercent < -5 || remaining < budgeted*0.1:
		return StatusAtRisk
	default:
		return StatusOnTrack
	}
}

type BudgetLine struct {
	ID       string `json:"id"`
	Phase    string `json:"phase"`
	Category string `json:"category"`
	Totals
}

// BudgetStatus pairs each budget line with the costs booked to the same phase
// and category.
func BudgetStatus(budgets []models.ProjectBudget, costs []models.ProjectCost) []BudgetLine {
	lines := make([]BudgetLine, 0, len(budgets))
	for _, b := range budgets {
		line := BudgetLine{ID: b.ID, Phase: b.Phase, Category: b.Category}
		line.Budgeted = b.BudgetedAmount
		for _, c := range costs {
			if c.Phase == b.Phase && c.Category == b.Category {
				line.add(c)
			}
		}
		line.settle()
		lines = append(lines, line)
	}
	return lines
}

type EarnedValue struct {
	AsOf                       models.Date `json:"asOf"`
	BudgetAtCompletion         float64     `json:"budgetAtCompletion"`
	PlannedValue               float64     `json:"plannedValue"`
	EarnedValue                float64     `json:"earnedValue"`
	ActualCost                 float64     `json:"actualCost"`
	ScheduleVariance           float64     `json:"scheduleVariance"`
	CostVariance               float64     `json:"costVariance"`
	SchedulePerformanceIndex   float64     `json:"schedulePerformanceIndex"`
	CostPerformanceIndex       float64     `json:"costPerformanceIndex"`
	EstimateAtCompletion       float64     `json:"estimateAtCompletion"`
	EstimateToComplete         float64     `json:"estimateToComplete"`
	VarianceAtCompletion       float64     `json:"varianceAtCompletion"`
	ToCompletePerformanceIndex float64     `json:"toCompletePerformanceIndex"`
	PercentScheduleElapsed     float64     `json:"percentScheduleElapsed"`
	Health                     string      `json:"health"`
}

// ScheduleElapsed is the share of the project's duration that has passed at
// asOf, clamped to [0, 1].
func ScheduleElapsed(p models.Project, asOf models.Date) float64 {
	total := p.EndDate.Sub(p.StartDate.Time)
	if total <= 0 {
		return 1
	}
	return utils.Clamp(float64(asOf.Sub(p.StartDate.Time))/float64(total), 0, 1)
}

// EarnedValueAt measures the project at asOf. Earned value counts the budgeted
// cost of tasks completed on or before asOf; actual cost counts actual costs
// incurred on or before asOf.
func EarnedValueAt(p models.Project, tasks []models.ProjectTask, costs []models.ProjectCost, asOf models.Date) EarnedValue {
	bac := p.TotalBudget
	elapsed := ScheduleElapsed(p, asOf)
	pv := bac * elapsed

	var ev, ac float64
	for _, t := range tasks {
		if t.CompletedAt != nil && !t.CompletedAt.After(asOf.Time) {
			ev += t.BudgetedCost
		}
	}
	for _, c := range costs {
		if c.Kind == models.CostActual && !c.IncurredAt.After(asOf.Time) {
			ac += c.Amount
		}
	}

	spi := utils.SafeDiv(ev, pv)
	cpi := utils.SafeDiv(ev, ac)
	eac := bac
	if cpi != 0 {
		eac = bac / cpi
	}

	return EarnedValue{
		AsOf:                       asOf,
		BudgetAtCompletion:         utils.RoundMoney(bac),
		PlannedValue:               utils.RoundMoney(pv),
		EarnedValue:                utils.RoundMoney(ev),
		ActualCost:                 utils.RoundMoney(ac),
		ScheduleVariance:           utils.RoundMoney(ev - pv),
		CostVariance:               utils.RoundMoney(ev - ac),
		SchedulePerformanceIndex:   utils.Round(spi, 4),
		CostPerformanceIndex:       utils.Round(cpi, 4),
		EstimateAtCompletion:       utils.RoundMoney(eac),
		EstimateToComplete:         utils.RoundMoney(eac - ac),
		VarianceAtCompletion:       utils.RoundMoney(bac - eac),
		ToCompletePerformanceIndex: utils.Round(utils.SafeDiv(bac-ev, bac-ac), 4),
		PercentScheduleElapsed:     utils.Round(elapsed*100, 2),
		Health:                     Health(spi, cpi, pv > 0, ac > 0),
	}
}

// Health grades the performance indices. An index whose denominator is zero
// is not measurable yet and does not count against the project.
func Health(spi, cpi float64, spiMeasured, cpiMeasured bool) string {
	var indices []float64
	if spiMeasured {
		indices = append(indices, spi)
	}
	if cpiMeasured {
		indices = append(indices, cpi)
	}
	health := HealthOnTrack
	for _, idx := range indices {
		switch {
		case idx < 0.85:
			return HealthCritical
		case idx < 0.95:
			health = HealthAtRisk
		}
	}
	return health
}

type Group struct {
	Name string `json:"name"`
	Totals
}

type TrendPoint struct {
	Month            string  `json:"month"`
	Planned          float64 `json:"planned"`
	Earned           float64 `json:"earned"`
	Actual           float64 `json:"actual"`
	CumulativeActual float64 `json:"cumulativeActual"`
}

type Analysis struct {
	ProjectID       string       `json:"projectId"`
	ProjectName     string       `json:"projectName"`
	AsOf            models.Date  `json:"asOf"`
	Totals          Totals       `json:"totals"`
	Phases          []Group      `json:"phases"`
	Categories      []Group      `json:"categories"`
	Trend           []TrendPoint `json:"trend"`
	EarnedValue     EarnedValue  `json:"earnedValue"`
	Recommendations []string     `json:"recommendations"`
}

// Analyze groups costs by phase and category, builds the monthly trend ending
// at asOf and derives recommendations. Project totals are measured against
// the project's total budget; phases and categories against their budget
// lines.
func Analyze(p models.Project, budgets []models.ProjectBudget, costs []models.ProjectCost, tasks []models.ProjectTask, asOf models.Date) Analysis {
	var booked []models.ProjectCost
	for _, c := range costs {
		if !c.IncurredAt.After(asOf.Time) {
			booked = append(booked, c)
		}
	}

	totals := Totals{Budgeted: p.TotalBudget}
	for _, c := range booked {
		totals.add(c)
	}
	totals.settle()

	a := Analysis{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		AsOf:        asOf,
		Totals:      totals,
		Phases:      group(budgets, booked, func(phase, _ string) string { return phase }),
		Categories:  group(budgets, booked, func(_, category string) string { return category }),
		Trend:       trend(p, tasks, booked, asOf),
		EarnedValue: EarnedValueAt(p, tasks, costs, asOf),
	}
	a.Recommendations = recommend(a)
	return a
}

func group(budgets []models.ProjectBudget, costs []models.ProjectCost, key func(phase, category string) string) []Group {
	byName := map[string]*Group{}
	get := func(name string) *Group {
		g, ok := byName[name]
		if !ok {
			g = &Group{Name: name}
			byName[name] = g
		}
		return g
	}
	for _, b := range budgets {
		get(key(b.Phase, b.Category)).Budgeted += b.BudgetedAmount
	}
	for _, c := range costs {
		get(key(c.Phase, c.Category)).add(c)
	}

	groups := make([]Group, 0, len(byName))
	for _, g := range byName {
		g.settle()
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

func trend(p models.Project, tasks []models.ProjectTask, costs []models.ProjectCost, asOf models.Date) []TrendPoint {
	first := utils.MonthStart(asOf.Time).AddDate(0, -(TrendMonths - 1), 0)
	points := make([]TrendPoint, TrendMonths)
	var cumulative float64
	for _, c := range costs {
		if c.Kind == models.CostActual && c.IncurredAt.Before(first) {
			cumulative += c.Amount
		}
	}
	for i := range points {
		start := first.AddDate(0, i, 0)
		end := start.AddDate(0, 1, 0)
		// The last point is measured at asOf, earlier ones at month end.
		at := models.NewDate(end.Add(-time.Nanosecond))
		if i == TrendMonths-1 {
			at = asOf
		}
		var actual float64
		for _, c := range costs {
			if c.Kind == models.CostActual && !c.IncurredAt.Before(start) && c.IncurredAt.Before(end) {
				actual += c.Amount
			}
		}
		cumulative += actual
		ev := EarnedValueAt(p, tasks, nil, at)
		points[i] = TrendPoint{
			Month:            start.Format("2006-01"),
			Planned:          ev.PlannedValue,
			Earned:           ev.EarnedValue,
			Actual:           utils.RoundMoney(actual),
			CumulativeActual: utils.RoundMoney(cumulative),
		}
	}
	return points
}

func recommend(a Analysis) []string {
	recs := []string{}
	switch a.Totals.Status {
	case StatusOverBudget:
		recs = append(recs, "Project is over budget. Review costs and consider reducing scope.")
	case StatusAtRisk:
		recs = append(recs, "Project is at risk of exceeding its budget. Monitor costs closely.")
	}
	if a.Totals.Budgeted > 0 && a.Totals.Remaining < a.Totals.Budgeted*0.1 {
		recs = append(recs, "Less than 10% of the budget remains. Consider additional funding or scope reduction.")
	}
	for _, ph := range a.Phases {
		if ph.Budgeted > 0 && ph.VariancePercent < -20 {
			recs = append(recs, fmt.Sprintf("Phase %q is more than 20%% over budget. Review phase planning.", ph.Name))
		}
	}
	if a.EarnedValue.ActualCost > 0 && a.EarnedValue.CostPerformanceIndex < 0.9 {
		recs = append(recs, fmt.Sprintf("Cost performance index is %.2f. Work is costing more than planned.", a.EarnedValue.CostPerformanceIndex))
	}
	return recs
}
