// Package saas computes subscription metrics from MRR movements, customers
// and the ledger projection. Every function is pure over a Snapshot.
package saas

import (
	"math"
	"strings"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

const (
	// DefaultLifetimeMonths is assumed when no customer churned in the window.
	DefaultLifetimeMonths = 24
	MaxLifetimeMonths     = 60
	// HealthyRuleOf40 is the score at or above which a company passes.
	HealthyRuleOf40 = 40
	// EfficientBurnMultiple is the highest burn multiple still reported as efficient.
	EfficientBurnMultiple = 2
)

var salesMarketingCategories = map[string]bool{
	"sales":       true,
	"marketing":   true,
	"advertising": true,
}

// IsSalesMarketing reports whether a ledger category counts as S&M spend.
func IsSalesMarketing(category string) bool {
	return salesMarketingCategories[strings.ToLower(strings.TrimSpace(category))]
}

// Snapshot is everything the calculators read for one reporting window.
// Movements must include every movement before Window.End; Entries must cover
// at least [Previous.Start, Window.End).
type Snapshot struct {
	Window    utils.Window
	Previous  utils.Window
	Customers []models.Customer
	Movements []models.MRRMovement
	Entries   []models.LedgerEntry
}

// CustomerMRR sums each customer's movements strictly before at.
func CustomerMRR(movements []models.MRRMovement, at time.Time) map[string]float64 {
	mrr := make(map[string]float64)
	for _, m := range movements {
		if m.OccurredAt.Before(at) {
			mrr[m.CustomerID] += m.Amount
		}
	}
	return mrr
}

func totalMRR(byCustomer map[string]float64) (total float64, active int) {
	for _, v := range byCustomer {
		if v > 0.005 {
			total += v
			active++
		}
	}
	return utils.RoundMoney(total), active
}

// Movements holds magnitudes per kind; contraction and churn are positive.
type Movements struct {
	New         float64 `json:"newMrr"`
	Expansion   float64 `json:"expansionMrr"`
	Contraction float64 `json:"contractionMrr"`
	Churn       float64 `json:"churnMrr"`
}

func (m Movements) NetNew() float64 {
	return utils.RoundMoney(m.New + m.Expansion - m.Contraction - m.Churn)
}

func sumMovements(movements []models.MRRMovement, w utils.Window, include func(customerID string) bool) Movements {
	var out Movements
	for _, m := range movements {
		if !w.Contains(m.OccurredAt) || (include != nil && !include(m.CustomerID)) {
			continue
		}
		switch m.Kind {
		case models.MovementNew:
			out.New += m.Amount
		case models.MovementExpansion:
			out.Expansion += m.Amount
		case models.MovementContraction:
			out.Contraction += math.Abs(m.Amount)
		case models.MovementChurn:
			out.Churn += math.Abs(m.Amount)
		}
	}
	out.New = utils.RoundMoney(out.New)
	out.Expansion = utils.RoundMoney(out.Expansion)
	out.Contraction = utils.RoundMoney(out.Contraction)
	out.Churn = utils.RoundMoney(out.Churn)
	return out
}

type ledgerTotals struct {
	revenue        float64
	expenses       float64
	salesMarketing float64
}

func sumLedger(entries []models.LedgerEntry, w utils.Window) ledgerTotals {
	var t ledgerTotals
	for _, e := range entries {
		if !w.Contains(e.OccurredAt) {
			continue
		}
		switch e.Type {
		case models.TransactionTypeIncome:
			t.revenue += e.Amount
		case models.TransactionTypeExpense:
			t.expenses += e.Amount
			if IsSalesMarketing(e.Category) {
				t.salesMarketing += e.Amount
			}
		}
	}
	t.revenue = utils.RoundMoney(t.revenue)
	t.expenses = utils.RoundMoney(t.expenses)
	t.salesMarketing = utils.RoundMoney(t.salesMarketing)
	return t
}

type MRRReport struct {
	Window      utils.Window `json:"window"`
	StartingMRR float64      `json:"startingMrr"`
	MRR         float64      `json:"mrr"`
	Movements
	NetNewMRR       float64 `json:"netNewMrr"`
	ActiveCustomers int     `json:"activeCustomers"`
}

// MRR reports recurring revenue at the end of the window and what moved it.
func MRR(s Snapshot) MRRReport {
	start, _ := totalMRR(CustomerMRR(s.Movements, s.Window.Start))
	end, active := totalMRR(CustomerMRR(s.Movements, s.Window.End))
	moves := sumMovements(s.Movements, s.Window, nil)
	return MRRReport{
		Window:          s.Window,
		StartingMRR:     start,
		MRR:             end,
		Movements:       moves,
		NetNewMRR:       moves.NetNew(),
		ActiveCustomers: active,
	}
}

type ARRReport struct {
	Window utils.Window `json:"window"`
	MRR    float64      `json:"mrr"`
	ARR    float64      `json:"arr"`
}

func ARR(s Snapshot) ARRReport {
	mrr, _ := totalMRR(CustomerMRR(s.Movements, s.Window.End))
	return ARRReport{Window: s.Window, MRR: mrr, ARR: utils.RoundMoney(mrr * 12)}
}

// cohort is the set of customers paying at the start of the window.
type cohort struct {
	startMRR map[string]float64
	members  map[string]bool
}

func startCohort(s Snapshot) cohort {
	c := cohort{startMRR: CustomerMRR(s.Movements, s.Window.Start), members: map[string]bool{}}
	for id, v := range c.startMRR {
		if v > 0.005 {
			c.members[id] = true
		}
	}
	return c
}

func (c cohort) churnedBy(movements []models.MRRMovement, at time.Time) int {
	endMRR := CustomerMRR(movements, at)
	churned := 0
	for id := range c.members {
		if endMRR[id] <= 0.005 {
			churned++
		}
	}
	return churned
}

type RetentionReport struct {
	Window           utils.Window `json:"window"`
	CohortCustomers  int          `json:"cohortCustomers"`
	ChurnedCustomers int          `json:"churnedCustomers"`
	StartingMRR      float64      `json:"startingMrr"`
	ExpansionMRR     float64      `json:"expansionMrr"`
	ContractionMRR   float64      `json:"contractionMrr"`
	ChurnMRR         float64      `json:"churnMrr"`
	NRR              float64      `json:"netRevenueRetention"`
	GRR              float64      `json:"grossRevenueRetention"`
}

// Retention follows the cohort paying at window start. New subscriptions
// those customers add during the window count as expansion.
func Retention(s Snapshot) RetentionReport {
	c := startCohort(s)
	var start float64
	for id := range c.members {
		start += c.startMRR[id]
	}
	start = utils.RoundMoney(start)

	moves := sumMovements(s.Movements, s.Window, func(id string) bool { return c.members[id] })
	expansion := utils.RoundMoney(moves.New + moves.Expansion)

	r := RetentionReport{
		Window:           s.Window,
		CohortCustomers:  len(c.members),
		ChurnedCustomers: c.churnedBy(s.Movements, s.Window.End),
		StartingMRR:      start,
		ExpansionMRR:     expansion,
		ContractionMRR:   moves.Contraction,
		ChurnMRR:         moves.Churn,
	}
	if start > 0 {
		r.NRR = utils.Round((start+expansion-moves.Contraction-moves.Churn)/start*100, 2)
		r.GRR = utils.Round(math.Min(100, (start-moves.Contraction-moves.Churn)/start*100), 2)
	}
	return r
}

type QuickRatioReport struct {
	Window utils.Window `json:"window"`
	Movements
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
	QuickRatio  float64 `json:"quickRatio"`
}

// QuickRatio is gained over lost MRR. With nothing lost the ratio is the
// gained amount itself.
func QuickRatio(s Snapshot) QuickRatioReport {
	moves := sumMovements(s.Movements, s.Window, nil)
	num := utils.RoundMoney(moves.New + moves.Expansion)
	den := utils.RoundMoney(moves.Contraction + moves.Churn)
	ratio := num
	if den > 0 {
		ratio = num / den
	}
	return QuickRatioReport{
		Window:      s.Window,
		Movements:   moves,
		Numerator:   num,
		Denominator: den,
		QuickRatio:  utils.Round(ratio, 2),
	}
}

type RuleOf40Report struct {
	Window          utils.Window `json:"window"`
	Revenue         float64      `json:"revenue"`
	PreviousRevenue float64      `json:"previousRevenue"`
	Expenses        float64      `json:"expenses"`
	GrowthRate      float64      `json:"growthRate"`
	ProfitMargin    float64      `json:"profitMargin"`
	Score           float64      `json:"score"`
	Healthy         bool         `json:"healthy"`
}

func RuleOf40(s Snapshot) RuleOf40Report {
	cur := sumLedger(s.Entries, s.Window)
	prev := sumLedger(s.Entries, s.Previous)
	growth := utils.Round(utils.SafeDiv(cur.revenue-prev.revenue, prev.revenue)*100, 2)
	margin := utils.Round(utils.SafeDiv(cur.revenue-cur.expenses, cur.revenue)*100, 2)
	score := utils.Round(growth+margin, 2)
	return RuleOf40Report{
		Window:          s.Window,
		Revenue:         cur.revenue,
		PreviousRevenue: prev.revenue,
		Expenses:        cur.expenses,
		GrowthRate:      growth,
		ProfitMargin:    margin,
		Score:           score,
		Healthy:         score >= HealthyRuleOf40,
	}
}

type MagicNumberReport struct {
	Window              utils.Window `json:"window"`
	NewARR              float64      `json:"newArr"`
	SalesMarketingSpend float64      `json:"salesMarketingSpend"`
	MagicNumber         float64      `json:"magicNumber"`
}

func MagicNumber(s Snapshot) MagicNumberReport {
	moves := sumMovements(s.Movements, s.Window, nil)
	newARR := utils.RoundMoney((moves.New + moves.Expansion) * 12)
	spend := sumLedger(s.Entries, s.Window).salesMarketing
	return MagicNumberReport{
		Window:              s.Window,
		NewARR:              newARR,
		SalesMarketingSpend: spend,
		MagicNumber:         utils.Round(utils.SafeDiv(newARR, spend), 2),
	}
}

type BurnMultipleReport struct {
	Window     utils.Window `json:"window"`
	Revenue    float64      `json:"revenue"`
	Expenses   float64      `json:"expenses"`
	CashBurned float64      `json:"cashBurned"`
	NetNewARR  float64      `json:"netNewArr"`
	// BurnMultiple is nil when cash was burned without adding ARR.
	BurnMultiple *float64 `json:"burnMultiple"`
	Efficient    bool     `json:"efficient"`
}

func BurnMultiple(s Snapshot) BurnMultipleReport {
	t := sumLedger(s.Entries, s.Window)
	burned := utils.RoundMoney(math.Max(0, t.expenses-t.revenue))
	netNewARR := utils.RoundMoney(sumMovements(s.Movements, s.Window, nil).NetNew() * 12)

	r := BurnMultipleReport{
		Window:     s.Window,
		Revenue:    t.revenue,
		Expenses:   t.expenses,
		CashBurned: burned,
		NetNewARR:  netNewARR,
	}
	switch {
	case burned == 0:
		zero := 0.0
		r.BurnMultiple = &zero
		r.Efficient = true
	case netNewARR > 0:
		multiple := utils.Round(burned/netNewARR, 2)
		r.BurnMultiple = &multiple
		r.Efficient = multiple <= EfficientBurnMultiple
	}
	return r
}

type CACPaybackReport struct {
	Window              utils.Window `json:"window"`
	NewCustomers        int          `json:"newCustomers"`
	SalesMarketingSpend float64      `json:"salesMarketingSpend"`
	CAC                 float64      `json:"cac"`
	ARPA                float64      `json:"arpa"`
	PaybackMonths       float64      `json:"paybackMonths"`
}

// cac divides S&M spend over the customers acquired in the window, falling
// back to their recorded acquisition costs when the ledger shows no spend.
func cac(s Snapshot) (value, spend float64, newCustomers int) {
	var recorded float64
	for _, c := range s.Customers {
		if s.Window.Contains(c.CreatedAt) {
			newCustomers++
			recorded += c.AcquisitionCost
		}
	}
	spend = sumLedger(s.Entries, s.Window).salesMarketing
	if newCustomers == 0 {
		return 0, spend, 0
	}
	if spend > 0 {
		return utils.RoundMoney(spend / float64(newCustomers)), spend, newCustomers
	}
	return utils.RoundMoney(recorded / float64(newCustomers)), spend, newCustomers
}

func arpa(s Snapshot) float64 {
	mrr, active := totalMRR(CustomerMRR(s.Movements, s.Window.End))
	return utils.RoundMoney(utils.SafeDiv(mrr, float64(active)))
}

func CACPayback(s Snapshot) CACPaybackReport {
	value, spend, n := cac(s)
	a := arpa(s)
	return CACPaybackReport{
		Window:              s.Window,
		NewCustomers:        n,
		SalesMarketingSpend: spend,
		CAC:                 value,
		ARPA:                a,
		PaybackMonths:       utils.Round(utils.SafeDiv(value, a), 1),
	}
}

type LTVCACReport struct {
	Window           utils.Window `json:"window"`
	CustomersAtStart int          `json:"customersAtStart"`
	ChurnedCustomers int          `json:"churnedCustomers"`
	MonthlyChurnRate float64      `json:"monthlyChurnRate"`
	LifetimeMonths   float64      `json:"lifetimeMonths"`
	ARPA             float64      `json:"arpa"`
	LTV              float64      `json:"ltv"`
	CAC              float64      `json:"cac"`
	Ratio            float64      `json:"ltvCacRatio"`
}

func LTVCAC(s Snapshot) LTVCACReport {
	c := startCohort(s)
	churned := c.churnedBy(s.Movements, s.Window.End)
	months := s.Window.Months()
	if months < 1 {
		months = 1
	}
	churnRate := utils.SafeDiv(float64(churned), float64(len(c.members))) / float64(months)

	lifetime := float64(DefaultLifetimeMonths)
	if churnRate > 0 {
		lifetime = math.Min(1/churnRate, MaxLifetimeMonths)
	}
	a := arpa(s)
	ltv := utils.RoundMoney(a * lifetime)
	value, _, _ := cac(s)
	return LTVCACReport{
		Window:           s.Window,
		CustomersAtStart: len(c.members),
		ChurnedCustomers: churned,
		MonthlyChurnRate: utils.Round(churnRate, 4),
		LifetimeMonths:   utils.Round(lifetime, 1),
		ARPA:             a,
		LTV:              ltv,
		CAC:              value,
		Ratio:            utils.Round(utils.SafeDiv(ltv, value), 2),
	}
}

// Dashboard bundles every metric for one window.
type Dashboard struct {
	Period       string             `json:"period"`
	MRR          MRRReport          `json:"mrr"`
	ARR          ARRReport          `json:"arr"`
	Retention    RetentionReport    `json:"retention"`
	QuickRatio   QuickRatioReport   `json:"quickRatio"`
	RuleOf40     RuleOf40Report     `json:"ruleOf40"`
	MagicNumber  MagicNumberReport  `json:"magicNumber"`
	BurnMultiple BurnMultipleReport `json:"burnMultiple"`
	CACPayback   CACPaybackReport   `json:"cacPayback"`
	LTVCAC       LTVCACReport       `json:"ltvCac"`
	GeneratedAt  time.Time          `json:"generatedTimestamp"`
}
