// Package rules holds the payroll and cross-border tax tables. The tables are
// YAML files embedded at build time.
package rules

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed payroll.yaml
var payrollYAML []byte

//go:embed global.yaml
var globalYAML []byte

type Federal struct {
	IncomeTaxRate               float64            `yaml:"incomeTaxRate"`
	SocialSecurityRate          float64            `yaml:"socialSecurityRate"`
	SocialSecurityWageBase      float64            `yaml:"socialSecurityWageBase"`
	MedicareRate                float64            `yaml:"medicareRate"`
	AdditionalMedicareRate      float64            `yaml:"additionalMedicareRate"`
	AdditionalMedicareThreshold map[string]float64 `yaml:"additionalMedicareThresholds"`
	FUTARate                    float64            `yaml:"futaRate"`
	UnemploymentWageBase        float64            `yaml:"unemploymentWageBase"`
}

type Local struct {
	CityRate   float64 `yaml:"cityRate"`
	CountyRate float64 `yaml:"countyRate"`
}

// Deadline is a month/day, optionally in the year after the period.
type Deadline struct {
	Quarter  int  `yaml:"quarter"`
	Month    int  `yaml:"month"`
	Day      int  `yaml:"day"`
	NextYear bool `yaml:"nextYear"`
}

func (d Deadline) In(year int) time.Time {
	if d.NextYear {
		year++
	}
	return time.Date(year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// StateEntry overrides the defaults. Nil rates fall back.
type StateEntry struct {
	IncomeTaxRate   *float64 `yaml:"incomeTaxRate"`
	SUTARate        *float64 `yaml:"sutaRate"`
	DisabilityRate  float64  `yaml:"disabilityRate"`
	FilingFrequency string   `yaml:"filingFrequency"`
}

type StateDefaults struct {
	IncomeTaxRate   float64 `yaml:"incomeTaxRate"`
	SUTARate        float64 `yaml:"sutaRate"`
	FilingFrequency string  `yaml:"filingFrequency"`
}

// StateRates is the resolved table entry for one state.
type StateRates struct {
	State           string
	IncomeTaxRate   float64
	SUTARate        float64
	DisabilityRate  float64
	FilingFrequency string
}

type Payroll struct {
	Federal            Federal               `yaml:"federal"`
	Local              Local                 `yaml:"local"`
	QuarterlyDeadlines []Deadline            `yaml:"quarterlyDeadlines"`
	AnnualDeadline     Deadline              `yaml:"annualDeadline"`
	StateDefaults      StateDefaults         `yaml:"stateDefaults"`
	States             map[string]StateEntry `yaml:"states"`
}

// State resolves the rates for a two-letter state code.
func (p *Payroll) State(code string) StateRates {
	code = strings.ToUpper(strings.TrimSpace(code))
	r := StateRates{
		State:           code,
		IncomeTaxRate:   p.StateDefaults.IncomeTaxRate,
		SUTARate:        p.StateDefaults.SUTARate,
		FilingFrequency: p.StateDefaults.FilingFrequency,
	}
	e, ok := p.States[code]
	if !ok {
		return r
	}
	if e.IncomeTaxRate != nil {
		r.IncomeTaxRate = *e.IncomeTaxRate
	}
	if e.SUTARate != nil {
		r.SUTARate = *e.SUTARate
	}
	if e.FilingFrequency != "" {
		r.FilingFrequency = e.FilingFrequency
	}
	r.DisabilityRate = e.DisabilityRate
	return r
}

// QuarterDeadline is the Form 941 due date for the quarter.
func (p *Payroll) QuarterDeadline(year, quarter int) (time.Time, error) {
	for _, d := range p.QuarterlyDeadlines {
		if d.Quarter == quarter {
			return d.In(year), nil
		}
	}
	return time.Time{}, fmt.Errorf("no deadline for quarter %d", quarter)
}

type Threshold struct {
	Revenue float64 `yaml:"revenue"`
	// Transactions of 0 means the jurisdiction has no count threshold.
	Transactions int `yaml:"transactions"`
}

type Nexus struct {
	LookbackMonths   int                  `yaml:"lookbackMonths"`
	ApproachingRatio float64              `yaml:"approachingRatio"`
	Default          Threshold            `yaml:"default"`
	States           map[string]Threshold `yaml:"states"`
}

func (n Nexus) Threshold(jurisdiction string) Threshold {
	if t, ok := n.States[jurisdiction]; ok {
		return t
	}
	return n.Default
}

type DST struct {
	Rate            float64 `yaml:"rate"`
	Threshold       float64 `yaml:"threshold"`
	FilingFrequency string  `yaml:"filingFrequency"`
}

type SalesTaxRates struct {
	State   float64 `yaml:"state"`
	County  float64 `yaml:"county"`
	City    float64 `yaml:"city"`
	Special float64 `yaml:"special"`
}

type SalesTax struct {
	Default SalesTaxRates            `yaml:"default"`
	States  map[string]SalesTaxRates `yaml:"states"`
}

func (s SalesTax) For(jurisdiction string) SalesTaxRates {
	if r, ok := s.States[jurisdiction]; ok {
		return r
	}
	return s.Default
}

type Optimization struct {
	NexusPenaltyRate float64 `yaml:"nexusPenaltyRate"`
	DSTPenaltyRate   float64 `yaml:"dstPenaltyRate"`
	OSSSavingsRate   float64 `yaml:"ossSavingsRate"`
}

type Global struct {
	Nexus        Nexus              `yaml:"nexus"`
	DST          map[string]DST     `yaml:"dst"`
	VAT          map[string]float64 `yaml:"vat"`
	SalesTax     SalesTax           `yaml:"salesTax"`
	Optimization Optimization       `yaml:"optimization"`
}

// USState returns "US-XX" for "XX", "us-xx" or "US-XX".
func USState(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if strings.HasPrefix(code, "US-") {
		return code
	}
	return "US-" + code
}

// IsUS reports whether a jurisdiction is a US state.
func IsUS(jurisdiction string) bool {
	return strings.HasPrefix(strings.ToUpper(jurisdiction), "US-")
}

type Rules struct {
	Payroll Payroll
	Global  Global
}

// Load parses the embedded tables.
func Load() (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(payrollYAML, &r.Payroll); err != nil {
		return nil, fmt.Errorf("failed to parse payroll rules: %w", err)
	}
	if err := yaml.Unmarshal(globalYAML, &r.Global); err != nil {
		return nil, fmt.Errorf("failed to parse global tax rules: %w", err)
	}
	if len(r.Payroll.QuarterlyDeadlines) != 4 {
		return nil, fmt.Errorf("payroll rules must define 4 quarterly deadlines, got %d", len(r.Payroll.QuarterlyDeadlines))
	}
	if r.Payroll.Federal.SocialSecurityWageBase <= 0 || r.Payroll.Federal.UnemploymentWageBase <= 0 {
		return nil, fmt.Errorf("payroll rules must define positive wage bases")
	}
	return &r, nil
}

// MustLoad panics when the embedded tables are malformed.
func MustLoad() *Rules {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}
