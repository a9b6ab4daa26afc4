// Package globaltax evaluates cross-border tax exposure from the sales
// projection: US economic nexus, digital services taxes, VAT and sales tax,
// plus the filing deadline board and optimization suggestions.
package globaltax

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/rules"
)

// JurisdictionSales aggregates sales records over the lookback window.
type JurisdictionSales struct {
	Jurisdiction string  `json:"jurisdiction"`
	Revenue      float64 `json:"revenue"`
	Transactions int     `json:"transactions"`
}

type NexusStatus struct {
	Jurisdiction         string  `json:"jurisdiction"`
	Revenue              float64 `json:"revenue"`
	Transactions         int     `json:"transactions"`
	RevenueThreshold     float64 `json:"revenueThreshold"`
	TransactionThreshold int     `json:"transactionThreshold,omitempty"`
	HasNexus             bool    `json:"hasNexus"`
	Approaching          bool    `json:"approaching"`
	Recommendation       string  `json:"recommendation,omitempty"`
}

type NexusReport struct {
	Window       utils.Window  `json:"window"`
	States       []NexusStatus `json:"states"`
	NexusCount   int           `json:"nexusCount"`
	Approaching  int           `json:"approachingCount"`
	TotalRevenue float64       `json:"totalRevenue"`
}

// Nexus checks every US jurisdiction with sales against its economic nexus
// thresholds. States are ordered by revenue, highest first.
func Nexus(g *rules.Global, window utils.Window, sales []JurisdictionSales) NexusReport {
	report := NexusReport{Window: window, States: []NexusStatus{}}
	for _, s := range sales {
		if !rules.IsUS(s.Jurisdiction) {
			continue
		}
		t := g.Nexus.Threshold(s.Jurisdiction)
		st := NexusStatus{
			Jurisdiction:         s.Jurisdiction,
			Revenue:              utils.RoundMoney(s.Revenue),
			Transactions:         s.Transactions,
			RevenueThreshold:     t.Revenue,
			TransactionThreshold: t.Transactions,
		}
		byCount := t.Transactions > 0 && s.Transactions >= t.Transactions
		st.HasNexus = s.Revenue >= t.Revenue || byCount
		if st.HasNexus {
			st.Recommendation = fmt.Sprintf("Register for sales tax in %s and start collecting", s.Jurisdiction)
			report.NexusCount++
		} else {
			ratio := g.Nexus.ApproachingRatio
			near := s.Revenue >= t.Revenue*ratio ||
				(t.Transactions > 0 && float64(s.Transactions) >= float64(t.Transactions)*ratio)
			if near {
				st.Approaching = true
				st.Recommendation = fmt.Sprintf("Sales in %s are close to the nexus threshold; prepare to register", s.Jurisdiction)
				report.Approaching++
			}
		}
		report.TotalRevenue += s.Revenue
		report.States = append(report.States, st)
	}
	report.TotalRevenue = utils.RoundMoney(report.TotalRevenue)
	sort.SliceStable(report.States, func(i, j int) bool { return report.States[i].Revenue > report.States[j].Revenue })
	return report
}

type DSTExposure struct {
	Country         string  `json:"country"`
	Revenue         float64 `json:"revenue"`
	Rate            float64 `json:"rate"`
	Threshold       float64 `json:"threshold"`
	Applies         bool    `json:"applies"`
	Liability       float64 `json:"liability"`
	FilingFrequency string  `json:"filingFrequency"`
}

type DSTReport struct {
	Window         utils.Window  `json:"window"`
	Countries      []DSTExposure `json:"countries"`
	TotalLiability float64       `json:"totalLiability"`
}

// DigitalServicesTax reports revenue in every non-US country that levies a
// digital services tax. Liability is due only above the country's threshold.
func DigitalServicesTax(g *rules.Global, window utils.Window, sales []JurisdictionSales) DSTReport {
	report := DSTReport{Window: window, Countries: []DSTExposure{}}
	for _, s := range sales {
		if rules.IsUS(s.Jurisdiction) {
			continue
		}
		country := strings.ToUpper(s.Jurisdiction)
		d, ok := g.DST[country]
		if !ok {
			continue
		}
		e := DSTExposure{
			Country:         country,
			Revenue:         utils.RoundMoney(s.Revenue),
			Rate:            d.Rate,
			Threshold:       d.Threshold,
			FilingFrequency: d.FilingFrequency,
		}
		if s.Revenue > d.Threshold {
			e.Applies = true
			e.Liability = utils.RoundMoney(s.Revenue * d.Rate)
			report.TotalLiability += e.Liability
		}
		report.Countries = append(report.Countries, e)
	}
	report.TotalLiability = utils.RoundMoney(report.TotalLiability)
	sort.Slice(report.Countries, func(i, j int) bool { return report.Countries[i].Country < report.Countries[j].Country })
	return report
}

type VATInput struct {
	Amount        float64
	SellerCountry string
	BuyerCountry  string
	B2B           bool
}

type VATResult struct {
	Amount        float64 `json:"amount"`
	SellerCountry string  `json:"sellerCountry"`
	BuyerCountry  string  `json:"buyerCountry"`
	B2B           bool    `json:"b2b"`
	PlaceOfSupply string  `json:"placeOfSupply"`
	Rate          float64 `json:"rate"`
	VAT           float64 `json:"vat"`
	Total         float64 `json:"total"`
	ReverseCharge bool    `json:"reverseCharge"`
}

// VAT resolves the place of supply and the VAT due on one sale. B2B sales
// between two VAT countries are reverse charged: the buyer self-assesses at
// the reported rate.
func VAT(g *rules.Global, in VATInput) (VATResult, error) {
	if in.Amount < 0 {
		return VATResult{}, apperr.Invalid("amount must not be negative")
	}
	seller := strings.ToUpper(strings.TrimSpace(in.SellerCountry))
	buyer := strings.ToUpper(strings.TrimSpace(in.BuyerCountry))
	sellerRate, sellerVAT := g.VAT[seller]
	buyerRate, buyerVAT := g.VAT[buyer]

	r := VATResult{
		Amount:        utils.RoundMoney(in.Amount),
		SellerCountry: seller,
		BuyerCountry:  buyer,
		B2B:           in.B2B,
		PlaceOfSupply: seller,
		Rate:          sellerRate,
	}
	crossBorder := seller != buyer && sellerVAT && buyerVAT
	switch {
	case crossBorder && in.B2B:
		r.PlaceOfSupply = buyer
		r.Rate = buyerRate
		r.ReverseCharge = true
	case crossBorder:
		r.PlaceOfSupply = buyer
		r.Rate = buyerRate
		r.VAT = utils.RoundMoney(in.Amount * buyerRate)
	default:
		r.VAT = utils.RoundMoney(in.Amount * sellerRate)
	}
	r.Total = utils.RoundMoney(r.Amount + r.VAT)
	return r, nil
}

type SalesTaxInput struct {
	Amount float64
	State  string
	County string
	City   string
}

type SalesTaxResult struct {
	Amount       float64 `json:"amount"`
	Jurisdiction string  `json:"jurisdiction"`
	StateRate    float64 `json:"stateRate"`
	CountyRate   float64 `json:"countyRate"`
	CityRate     float64 `json:"cityRate"`
	SpecialRate  float64 `json:"specialRate"`
	TotalRate    float64 `json:"totalRate"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`
}

// SalesTax applies the combined state, county, city and special district
// rate. County and city rates apply only when the sale names them.
func SalesTax(g *rules.Global, in SalesTaxInput) (SalesTaxResult, error) {
	if in.Amount < 0 {
		return SalesTaxResult{}, apperr.Invalid("amount must not be negative")
	}
	if strings.TrimSpace(in.State) == "" {
		return SalesTaxResult{}, apperr.Invalid("state is required")
	}
	j := rules.USState(in.State)
	rates := g.SalesTax.For(j)
	r := SalesTaxResult{
		Amount:       utils.RoundMoney(in.Amount),
		Jurisdiction: j,
		StateRate:    rates.State,
		SpecialRate:  rates.Special,
	}
	if in.County != "" {
		r.CountyRate = rates.County
	}
	if in.City != "" {
		r.CityRate = rates.City
	}
	r.TotalRate = utils.Round(r.StateRate+r.CountyRate+r.CityRate+r.SpecialRate, 6)
	r.Tax = utils.RoundMoney(in.Amount * r.TotalRate)
	r.Total = utils.RoundMoney(r.Amount + r.Tax)
	return r, nil
}

// Deadline board horizons, in days.
const (
	UpcomingDays = 30
	AlertDays    = 7
)

type DeadlineView struct {
	models.TaxDeadline
	DaysRemaining int `json:"daysRemaining"`
}

type DeadlineBoard struct {
	Overdue  []DeadlineView `json:"overdue"`
	Upcoming []DeadlineView `json:"upcoming"`
	Alerts   []DeadlineView `json:"alerts"`
}

// Board sorts open deadlines relative to today. Alerts are a subset of
// upcoming; completed deadlines never appear.
func Board(deadlines []models.TaxDeadline, today time.Time) DeadlineBoard {
	day := models.NewDate(today)
	b := DeadlineBoard{Overdue: []DeadlineView{}, Upcoming: []DeadlineView{}, Alerts: []DeadlineView{}}
	for _, d := range deadlines {
		if d.CompletedAt != nil {
			continue
		}
		v := DeadlineView{TaxDeadline: d, DaysRemaining: day.DaysUntil(d.DueDate)}
		switch {
		case v.DaysRemaining < 0:
			b.Overdue = append(b.Overdue, v)
		case v.DaysRemaining <= UpcomingDays:
			b.Upcoming = append(b.Upcoming, v)
			if v.DaysRemaining <= AlertDays {
				b.Alerts = append(b.Alerts, v)
			}
		}
	}
	for _, list := range [][]DeadlineView{b.Overdue, b.Upcoming, b.Alerts} {
		sort.SliceStable(list, func(i, j int) bool { return list[i].DueDate.Before(list[j].DueDate.Time) })
	}
	return b
}

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

type Suggestion struct {
	Type             string  `json:"type"`
	Jurisdiction     string  `json:"jurisdiction,omitempty"`
	Description      string  `json:"description"`
	EstimatedSavings float64 `json:"estimatedSavings"`
	Risk             string  `json:"risk"`
}

type OptimizationPlan struct {
	Suggestions  []Suggestion `json:"suggestions"`
	TotalSavings float64      `json:"totalSavings"`
	RiskLevel    string       `json:"riskLevel"`
}

// Optimize turns nexus, DST and EU VAT exposure into suggestions ordered by
// estimated savings. Savings are penalties avoided or filing costs saved.
func Optimize(g *rules.Global, nexus NexusReport, dst DSTReport, sales []JurisdictionSales) OptimizationPlan {
	o := g.Optimization
	plan := OptimizationPlan{Suggestions: []Suggestion{}}

	for _, st := range nexus.States {
		switch {
		case st.HasNexus:
			rate := g.SalesTax.For(st.Jurisdiction).State
			plan.Suggestions = append(plan.Suggestions, Suggestion{
				Type:             "nexus_registration",
				Jurisdiction:     st.Jurisdiction,
				Description:      fmt.Sprintf("Economic nexus established in %s; register and collect sales tax", st.Jurisdiction),
				EstimatedSavings: utils.RoundMoney(st.Revenue * rate * o.NexusPenaltyRate),
				Risk:             RiskHigh,
			})
		case st.Approaching:
			plan.Suggestions = append(plan.Suggestions, Suggestion{
				Type:         "nexus_monitoring",
				Jurisdiction: st.Jurisdiction,
				Description:  fmt.Sprintf("Approaching the nexus threshold in %s; monitor monthly sales", st.Jurisdiction),
				Risk:         RiskMedium,
			})
		}
	}

	for _, c := range dst.Countries {
		if !c.Applies {
			continue
		}
		plan.Suggestions = append(plan.Suggestions, Suggestion{
			Type:             "dst_compliance",
			Jurisdiction:     c.Country,
			Description:      fmt.Sprintf("Digital services tax of %.0f%% applies in %s; file %s", c.Rate*100, c.Country, c.FilingFrequency),
			EstimatedSavings: utils.RoundMoney(c.Liability * o.DSTPenaltyRate),
			Risk:             RiskHigh,
		})
	}

	var euRevenue float64
	euCountries := 0
	for _, s := range sales {
		country := strings.ToUpper(s.Jurisdiction)
		if _, ok := g.VAT[country]; ok && country != "GB" {
			euRevenue += s.Revenue
			euCountries++
		}
	}
	if euCountries >= 2 {
		plan.Suggestions = append(plan.Suggestions, Suggestion{
			Type:             "vat_oss",
			Jurisdiction:     "EU",
			Description:      fmt.Sprintf("Sales in %d EU countries; register for the VAT One-Stop-Shop", euCountries),
			EstimatedSavings: utils.RoundMoney(euRevenue * o.OSSSavingsRate),
			Risk:             RiskLow,
		})
	}

	sort.SliceStable(plan.Suggestions, func(i, j int) bool {
		return plan.Suggestions[i].EstimatedSavings > plan.Suggestions[j].EstimatedSavings
	})
	plan.RiskLevel = RiskLow
	if len(plan.Suggestions) > 3 {
		plan.RiskLevel = RiskMedium
	}
	for _, s := range plan.Suggestions {
		plan.TotalSavings += s.EstimatedSavings
		if s.Risk == RiskHigh {
			plan.RiskLevel = RiskHigh
		}
	}
	plan.TotalSavings = utils.RoundMoney(plan.TotalSavings)
	return plan
}

// Exposure is an organization's sales per jurisdiction over the nexus
// lookback window.
type Exposure struct {
	Window utils.Window        `json:"window"`
	Sales  []JurisdictionSales `json:"sales"`
}

// LookbackWindow is the trailing window ending with the day of now.
func LookbackWindow(g *rules.Global, now time.Time) utils.Window {
	end := utils.DayStart(now).AddDate(0, 0, 1)
	return utils.Window{Start: end.AddDate(0, -g.Nexus.LookbackMonths, 0), End: end}
}
