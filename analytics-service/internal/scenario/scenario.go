// Package scenario projects what-if outcomes from an organization's current
// baseline. Rates named "...Rate" are fractions (0.05 is 5%); fields named
// "...Percent" are percentages.
package scenario

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// Scenario types accepted when saving.
const (
	TypeRunway              = "runway"
	TypePriceIncrease       = "price_increase"
	TypeChurnReduction      = "churn_reduction"
	TypeHiring              = "hiring"
	TypeExpenseOptimization = "expense_optimization"
	TypeGrowth              = "growth"
	TypeBreakEven           = "break_even"
)

const (
	// MaxHorizonMonths bounds every month-by-month projection.
	MaxHorizonMonths    = 120
	DefaultBenefitsRate = 0.25
	TrailingMonths      = 3
	averageDaysPerMonth = 30.44
)

// Baseline is the organization's current position, derived from the ledger
// projection and MRR movements.
type Baseline struct {
	AsOf        time.Time `json:"asOf"`
	MRR         float64   `json:"mrr"`
	MonthlyBurn float64   `json:"monthlyBurn"`
	// MonthlyChurnRate is the trailing MRR churn rate.
	MonthlyChurnRate float64            `json:"monthlyChurnRate"`
	NetCash          float64            `json:"netCash"`
	CategoryExpenses map[string]float64 `json:"categoryExpenses,omitempty"`
}

func addMonths(t time.Time, months float64) time.Time {
	whole := int(months)
	days := int(math.Round((months - float64(whole)) * averageDaysPerMonth))
	return t.AddDate(0, whole, days)
}

type RunwayInput struct {
	CashOnHand        float64  `json:"cashOnHand" validate:"gte=0"`
	MonthlyBurn       *float64 `json:"monthlyBurn"`
	AdditionalFunding float64  `json:"additionalFunding" validate:"gte=0"`
}

type RunwayResult struct {
	CashOnHand        float64    `json:"cashOnHand"`
	AdditionalFunding float64    `json:"additionalFunding"`
	MonthlyBurn       float64    `json:"monthlyBurn"`
	RunwayMonths      *float64   `json:"runwayMonths"`
	CashOutDate       *time.Time `json:"cashOutDate"`
	Sustainable       bool       `json:"sustainable"`
}

// Runway is months of cash left at the given burn. A burn of zero or less
// never runs out.
func Runway(b Baseline, in RunwayInput) RunwayResult {
	burn := b.MonthlyBurn
	if in.MonthlyBurn != nil {
		burn = *in.MonthlyBurn
	}
	r := RunwayResult{
		CashOnHand:        utils.RoundMoney(in.CashOnHand),
		AdditionalFunding: utils.RoundMoney(in.AdditionalFunding),
		MonthlyBurn:       utils.RoundMoney(burn),
	}
	if burn <= 0 {
		r.Sustainable = true
		return r
	}
	months := utils.Round((in.CashOnHand+in.AdditionalFunding)/burn, 1)
	out := addMonths(b.AsOf, months)
	r.RunwayMonths = &months
	r.CashOutDate = &out
	return r
}

type PriceIncreaseInput struct {
	IncreasePercent      float64 `json:"increasePercent" validate:"gt=0,lte=500"`
	ExpectedChurnPercent float64 `json:"expectedChurnPercent" validate:"gte=0,lt=100"`
}

type PriceIncreaseResult struct {
	CurrentMRR            float64 `json:"currentMrr"`
	NewMRR                float64 `json:"newMrr"`
	MRRChange             float64 `json:"mrrChange"`
	ARRChange             float64 `json:"arrChange"`
	BreakEvenChurnPercent float64 `json:"breakEvenChurnPercent"`
	Worthwhile            bool    `json:"worthwhile"`
}

func PriceIncrease(b Baseline, in PriceIncreaseInput) PriceIncreaseResult {
	inc := in.IncreasePercent / 100
	churn := in.ExpectedChurnPercent / 100
	newMRR := utils.RoundMoney(b.MRR * (1 + inc) * (1 - churn))
	change := utils.RoundMoney(newMRR - b.MRR)
	breakEven := utils.Round(inc/(1+inc)*100, 2)
	return PriceIncreaseResult{
		CurrentMRR:            utils.RoundMoney(b.MRR),
		NewMRR:                newMRR,
		MRRChange:             change,
		ARRChange:             utils.RoundMoney(change * 12),
		BreakEvenChurnPercent: breakEven,
		Worthwhile:            in.ExpectedChurnPercent < breakEven,
	}
}

type ChurnReductionInput struct {
	CurrentChurnRate *float64 `json:"currentChurnRate" validate:"omitempty,gte=0,lt=1"`
	TargetChurnRate  float64  `json:"targetChurnRate" validate:"gte=0,lt=1"`
	Months           int      `json:"months" validate:"gte=1,lte=120"`
}

type ChurnProjectionPoint struct {
	Month      int     `json:"month"`
	CurrentMRR float64 `json:"currentPathMrr"`
	TargetMRR  float64 `json:"targetPathMrr"`
}

type ChurnReductionResult struct {
	CurrentChurnRate   float64                `json:"currentChurnRate"`
	TargetChurnRate    float64                `json:"targetChurnRate"`
	Projection         []ChurnProjectionPoint `json:"projection"`
	EndingMRRDelta     float64                `json:"endingMrrDelta"`
	RetainedRevenue    float64                `json:"retainedRevenue"`
	AnnualizedRetained float64                `json:"annualizedRetainedArr"`
}

// ChurnReduction compares the MRR decay under the current and target churn
// rates month by month. RetainedRevenue is the cumulative difference.
func ChurnReduction(b Baseline, in ChurnReductionInput) (*ChurnReductionResult, error) {
	current := b.MonthlyChurnRate
	if in.CurrentChurnRate != nil {
		current = *in.CurrentChurnRate
	}
	if in.TargetChurnRate >= current {
		return nil, apperr.Invalid("targetChurnRate must be below the current churn rate of %.4f", current)
	}

	r := &ChurnReductionResult{CurrentChurnRate: current, TargetChurnRate: in.TargetChurnRate}
	cur, tgt := b.MRR, b.MRR
	var retained float64
	for m := 1; m <= in.Months; m++ {
		cur *= 1 - current
		tgt *= 1 - in.TargetChurnRate
		retained += tgt - cur
		r.Projection = append(r.Projection, ChurnProjectionPoint{Month: m, CurrentMRR: utils.RoundMoney(cur), TargetMRR: utils.RoundMoney(tgt)})
	}
	r.EndingMRRDelta = utils.RoundMoney(tgt - cur)
	r.RetainedRevenue = utils.RoundMoney(retained)
	r.AnnualizedRetained = utils.RoundMoney(r.EndingMRRDelta * 12)
	return r, nil
}

type Hire struct {
	Role         string  `json:"role" validate:"required,max=100"`
	AnnualSalary float64 `json:"annualSalary" validate:"gt=0"`
	Count        int     `json:"count" validate:"gte=1"`
	StartMonth   int     `json:"startMonth" validate:"gte=1,lte=120"`
}

type HiringInput struct {
	Hires        []Hire   `json:"hires" validate:"required,min=1,dive"`
	BenefitsRate *float64 `json:"benefitsRate" validate:"omitempty,gte=0,lte=2"`
	Months       int      `json:"months" validate:"gte=1,lte=120"`
	CashOnHand   float64  `json:"cashOnHand" validate:"gte=0"`
}

type HiringMonth struct {
	Month     int     `json:"month"`
	Headcount int     `json:"headcount"`
	AddedCost float64 `json:"addedCost"`
}

type HiringResult struct {
	BenefitsRate       float64       `json:"benefitsRate"`
	FullMonthlyCost    float64       `json:"fullMonthlyCost"`
	TotalCost          float64       `json:"totalCost"`
	Schedule           []HiringMonth `json:"schedule"`
	RunwayBeforeMonths *float64      `json:"runwayBeforeMonths"`
	RunwayAfterMonths  *float64      `json:"runwayAfterMonths"`
	RunwayImpactMonths *float64      `json:"runwayImpactMonths"`
}

func (h Hire) monthlyCost(benefits float64) float64 {
	return h.AnnualSalary / 12 * float64(h.Count) * (1 + benefits)
}

// Hiring adds each hire's loaded cost from its start month and re-runs the
// cash position month by month against the baseline burn.
func Hiring(b Baseline, in HiringInput) HiringResult {
	benefits := DefaultBenefitsRate
	if in.BenefitsRate != nil {
		benefits = *in.BenefitsRate
	}
	costIn := func(month int) (cost float64, headcount int) {
		for _, h := range in.Hires {
			if h.StartMonth <= month {
				cost += h.monthlyCost(benefits)
				headcount += h.Count
			}
		}
		return cost, headcount
	}

	r := HiringResult{BenefitsRate: benefits}
	var full, total float64
	for _, h := range in.Hires {
		full += h.monthlyCost(benefits)
	}
	for m := 1; m <= in.Months; m++ {
		cost, heads := costIn(m)
		total += cost
		r.Schedule = append(r.Schedule, HiringMonth{Month: m, Headcount: heads, AddedCost: utils.RoundMoney(cost)})
	}
	r.FullMonthlyCost = utils.RoundMoney(full)
	r.TotalCost = utils.RoundMoney(total)

	if in.CashOnHand > 0 {
		r.RunwayBeforeMonths = cashRunway(in.CashOnHand, func(int) float64 { return b.MonthlyBurn })
		r.RunwayAfterMonths = cashRunway(in.CashOnHand, func(m int) float64 {
			cost, _ := costIn(m)
			return b.MonthlyBurn + cost
		})
		if r.RunwayBeforeMonths != nil && r.RunwayAfterMonths != nil {
			impact := utils.Round(*r.RunwayAfterMonths-*r.RunwayBeforeMonths, 1)
			r.RunwayImpactMonths = &impact
		}
	}
	return r
}

// cashRunway spends cash month by month and returns the fractional month it
// runs out, or nil if it lasts the whole horizon.
func cashRunway(cash float64, burnIn func(month int) float64) *float64 {
	for m := 1; m <= MaxHorizonMonths; m++ {
		burn := burnIn(m)
		if burn > 0 && cash < burn {
			months := utils.Round(float64(m-1)+cash/burn, 1)
			return &months
		}
		cash -= burn
	}
	return nil
}

type ExpenseCut struct {
	Category string  `json:"category" validate:"required"`
	Percent  float64 `json:"percent" validate:"gt=0,lte=100"`
}

type ExpenseOptimizationInput struct {
	Cuts []ExpenseCut `json:"cuts" validate:"required,min=1,dive"`
}

type ExpenseSaving struct {
	Category       string  `json:"category"`
	CurrentMonthly float64 `json:"currentMonthly"`
	Percent        float64 `json:"percent"`
	MonthlySaving  float64 `json:"monthlySaving"`
}

type ExpenseOptimizationResult struct {
	Savings                []ExpenseSaving `json:"savings"`
	CurrentMonthlyExpenses float64         `json:"currentMonthlyExpenses"`
	MonthlySavings         float64         `json:"monthlySavings"`
	AnnualSavings          float64         `json:"annualSavings"`
	OptimizedMonthly       float64         `json:"optimizedMonthlyExpenses"`
}

// ExpenseOptimization applies percentage cuts to the trailing monthly average
// of each category. Categories without spend save nothing.
func ExpenseOptimization(b Baseline, in ExpenseOptimizationInput) ExpenseOptimizationResult {
	var current float64
	for _, v := range b.CategoryExpenses {
		current += v
	}
	var r ExpenseOptimizationResult
	var monthly float64
	for _, cut := range in.Cuts {
		category := strings.ToLower(strings.TrimSpace(cut.Category))
		spend := b.CategoryExpenses[category]
		saving := utils.RoundMoney(spend * cut.Percent / 100)
		monthly += saving
		r.Savings = append(r.Savings, ExpenseSaving{
			Category:       category,
			CurrentMonthly: utils.RoundMoney(spend),
			Percent:        cut.Percent,
			MonthlySaving:  saving,
		})
	}
	sort.Slice(r.Savings, func(i, j int) bool { return r.Savings[i].MonthlySaving > r.Savings[j].MonthlySaving })
	r.CurrentMonthlyExpenses = utils.RoundMoney(current)
	r.MonthlySavings = utils.RoundMoney(monthly)
	r.AnnualSavings = utils.RoundMoney(monthly * 12)
	r.OptimizedMonthly = utils.RoundMoney(current - monthly)
	return r
}

type GrowthInput struct {
	MonthlyGrowthRate float64 `json:"monthlyGrowthRate" validate:"gte=-1,lte=5"`
	MonthlyChurnRate  float64 `json:"monthlyChurnRate" validate:"gte=0,lt=1"`
	Months            int     `json:"months" validate:"gte=1,lte=120"`
}

type GrowthPoint struct {
	Month int     `json:"month"`
	MRR   float64 `json:"mrr"`
}

type GrowthResult struct {
	StartingMRR float64       `json:"startingMrr"`
	EndingMRR   float64       `json:"endingMrr"`
	EndingARR   float64       `json:"endingArr"`
	Multiple    float64       `json:"growthMultiple"`
	Projection  []GrowthPoint `json:"projection"`
}

// Growth compounds MRR at the net monthly rate (growth minus churn).
func Growth(b Baseline, in GrowthInput) GrowthResult {
	net := in.MonthlyGrowthRate - in.MonthlyChurnRate
	mrr := b.MRR
	r := GrowthResult{StartingMRR: utils.RoundMoney(b.MRR)}
	for m := 1; m <= in.Months; m++ {
		mrr *= 1 + net
		r.Projection = append(r.Projection, GrowthPoint{Month: m, MRR: utils.RoundMoney(mrr)})
	}
	r.EndingMRR = utils.RoundMoney(mrr)
	r.EndingARR = utils.RoundMoney(mrr * 12)
	r.Multiple = utils.Round(utils.SafeDiv(mrr, b.MRR), 2)
	return r
}

type BreakEvenInput struct {
	FixedCosts        float64 `json:"fixedCosts" validate:"gte=0"`
	VariableCostRate  float64 `json:"variableCostRate" validate:"gte=0"`
	MonthlyGrowthRate float64 `json:"monthlyGrowthRate" validate:"gte=0,lte=5"`
}

type BreakEvenResult struct {
	BreakEvenRevenue float64 `json:"breakEvenRevenue"`
	CurrentMRR       float64 `json:"currentMrr"`
	Gap              float64 `json:"gap"`
	// MonthsToBreakEven is nil when break-even is not reached within the horizon.
	MonthsToBreakEven *int `json:"monthsToBreakEven"`
}

func BreakEven(b Baseline, in BreakEvenInput) (*BreakEvenResult, error) {
	if in.VariableCostRate >= 1 {
		return nil, apperr.Unprocessable("variableCostRate must be below 1; revenue never covers costs")
	}
	target := utils.RoundMoney(in.FixedCosts / (1 - in.VariableCostRate))
	r := &BreakEvenResult{
		BreakEvenRevenue: target,
		CurrentMRR:       utils.RoundMoney(b.MRR),
		Gap:              utils.RoundMoney(math.Max(0, target-b.MRR)),
	}
	mrr := b.MRR
	for m := 0; m <= MaxHorizonMonths; m++ {
		if mrr >= target {
			months := m
			r.MonthsToBreakEven = &months
			break
		}
		if in.MonthlyGrowthRate <= 0 || mrr <= 0 {
			break
		}
		mrr *= 1 + in.MonthlyGrowthRate
	}
	return r, nil
}

// Dashboard is the baseline shown before any scenario is run.
type Dashboard struct {
	Baseline       Baseline   `json:"baseline"`
	RunwayMonths   *float64   `json:"runwayMonths"`
	CashOutDate    *time.Time `json:"cashOutDate"`
	SavedScenarios int        `json:"savedScenarios"`
}

func BuildDashboard(b Baseline, saved int) Dashboard {
	cash := math.Max(0, b.NetCash)
	runway := Runway(b, RunwayInput{CashOnHand: cash})
	return Dashboard{
		Baseline:       b,
		RunwayMonths:   runway.RunwayMonths,
		CashOutDate:    runway.CashOutDate,
		SavedScenarios: saved,
	}
}
