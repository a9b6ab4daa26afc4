// Package payroll computes per-paycheck withholding and employer taxes and
// the quarterly and annual federal summaries built from stored pay runs.
package payroll

import (
	"math"
	"sort"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/rules"
)

// Filing statuses.
const (
	FilingSingle          = "single"
	FilingMarriedJoint    = "married_joint"
	FilingMarriedSeparate = "married_separate"
)

// GrossPay is the regular paycheck for a salaried employee.
func GrossPay(e models.Employee) float64 {
	periods := models.PayPeriodsPerYear[e.PayFrequency]
	if periods == 0 {
		periods = models.PayPeriodsPerYear[models.PayBiweekly]
	}
	return utils.RoundMoney(e.AnnualSalary / float64(periods))
}

// cappedWages is the part of gross still under a wage base given ytd wages.
func cappedWages(gross, ytd, base float64) float64 {
	return math.Min(gross, math.Max(0, base-ytd))
}

// Calculate fills in every tax of one paycheck. ytd is the employee's gross
// already paid this calendar year.
func Calculate(r *rules.Payroll, e models.Employee, gross, ytd float64) models.PayrollCalculation {
	f := r.Federal
	state := r.State(e.State)

	threshold, ok := f.AdditionalMedicareThreshold[e.FilingStatus]
	if !ok {
		threshold = f.AdditionalMedicareThreshold[FilingSingle]
	}
	excess := math.Max(0, ytd+gross-threshold)

	c := models.PayrollCalculation{
		EmployeeID:            e.ID,
		OrganizationID:        e.OrganizationID,
		GrossPay:              utils.RoundMoney(gross),
		YTDGrossBefore:        utils.RoundMoney(ytd),
		FederalIncomeTax:      utils.RoundMoney(gross * f.IncomeTaxRate),
		SocialSecurityTax:     utils.RoundMoney(cappedWages(gross, ytd, f.SocialSecurityWageBase) * f.SocialSecurityRate),
		MedicareTax:           utils.RoundMoney(gross * f.MedicareRate),
		AdditionalMedicareTax: utils.RoundMoney(math.Min(gross, excess) * f.AdditionalMedicareRate),
		StateIncomeTax:        utils.RoundMoney(gross * state.IncomeTaxRate),
		StateDisabilityTax:    utils.RoundMoney(gross * state.DisabilityRate),
	}
	if e.City != "" {
		c.CityTax = utils.RoundMoney(gross * r.Local.CityRate)
	}
	if e.County != "" {
		c.CountyTax = utils.RoundMoney(gross * r.Local.CountyRate)
	}
	c.TotalEmployeeTaxes = utils.RoundMoney(c.FederalIncomeTax + c.SocialSecurityTax + c.MedicareTax +
		c.AdditionalMedicareTax + c.StateIncomeTax + c.StateDisabilityTax + c.CityTax + c.CountyTax)
	c.NetPay = utils.RoundMoney(c.GrossPay - c.TotalEmployeeTaxes)

	unemploymentWages := cappedWages(gross, ytd, f.UnemploymentWageBase)
	c.EmployerSocialSecurity = c.SocialSecurityTax
	c.EmployerMedicare = c.MedicareTax
	c.FUTATax = utils.RoundMoney(unemploymentWages * f.FUTARate)
	c.SUTATax = utils.RoundMoney(unemploymentWages * state.SUTARate)
	c.TotalEmployerTaxes = utils.RoundMoney(c.EmployerSocialSecurity + c.EmployerMedicare + c.FUTATax + c.SUTATax)
	return c
}

// Form941 is the quarterly federal payroll summary.
type Form941 struct {
	Year               int       `json:"year"`
	Quarter            int       `json:"quarter"`
	Employees          int       `json:"employees"`
	Wages              float64   `json:"wages"`
	FederalWithholding float64   `json:"federalWithholding"`
	SocialSecurityTax  float64   `json:"socialSecurityTax"`
	MedicareTax        float64   `json:"medicareTax"`
	TotalLiability     float64   `json:"totalLiability"`
	DueDate            time.Time `json:"dueDate"`
}

// Quarterly sums the quarter's pay runs. Social Security and Medicare include
// both the employee and employer shares.
func Quarterly(year, quarter int, due time.Time, calcs []models.PayrollCalculation) Form941 {
	f := Form941{Year: year, Quarter: quarter, DueDate: due}
	employees := map[string]bool{}
	for _, c := range calcs {
		employees[c.EmployeeID] = true
		f.Wages += c.GrossPay
		f.FederalWithholding += c.FederalIncomeTax
		f.SocialSecurityTax += c.SocialSecurityTax + c.EmployerSocialSecurity
		f.MedicareTax += c.MedicareTax + c.AdditionalMedicareTax + c.EmployerMedicare
	}
	f.Employees = len(employees)
	f.Wages = utils.RoundMoney(f.Wages)
	f.FederalWithholding = utils.RoundMoney(f.FederalWithholding)
	f.SocialSecurityTax = utils.RoundMoney(f.SocialSecurityTax)
	f.MedicareTax = utils.RoundMoney(f.MedicareTax)
	f.TotalLiability = utils.RoundMoney(f.FederalWithholding + f.SocialSecurityTax + f.MedicareTax)
	return f
}

// Form940 is the annual federal unemployment summary.
type Form940 struct {
	Year       int       `json:"year"`
	TotalWages float64   `json:"totalWages"`
	FUTAWages  float64   `json:"futaWages"`
	FUTATax    float64   `json:"futaTax"`
	DueDate    time.Time `json:"dueDate"`
}

func Annual(r *rules.Payroll, year int, calcs []models.PayrollCalculation) Form940 {
	f := Form940{Year: year, DueDate: r.AnnualDeadline.In(year)}
	perEmployee := map[string]float64{}
	for _, c := range calcs {
		f.TotalWages += c.GrossPay
		f.FUTATax += c.FUTATax
		perEmployee[c.EmployeeID] += c.GrossPay
	}
	for _, wages := range perEmployee {
		f.FUTAWages += math.Min(wages, r.Federal.UnemploymentWageBase)
	}
	f.TotalWages = utils.RoundMoney(f.TotalWages)
	f.FUTAWages = utils.RoundMoney(f.FUTAWages)
	f.FUTATax = utils.RoundMoney(f.FUTATax)
	return f
}

// W2 carries the boxes of one employee's wage statement.
type W2 struct {
	EmployeeID          string  `json:"employeeId"`
	EmployeeName        string  `json:"employeeName"`
	State               string  `json:"state"`
	Wages               float64 `json:"box1Wages"`
	FederalIncomeTax    float64 `json:"box2FederalIncomeTax"`
	SocialSecurityWages float64 `json:"box3SocialSecurityWages"`
	SocialSecurityTax   float64 `json:"box4SocialSecurityTax"`
	MedicareWages       float64 `json:"box5MedicareWages"`
	MedicareTax         float64 `json:"box6MedicareTax"`
	StateWages          float64 `json:"box16StateWages"`
	StateIncomeTax      float64 `json:"box17StateIncomeTax"`
}

// W3 is the transmittal total of every W-2.
type W3 struct {
	Year                int     `json:"year"`
	Forms               int     `json:"forms"`
	Wages               float64 `json:"wages"`
	FederalIncomeTax    float64 `json:"federalIncomeTax"`
	SocialSecurityWages float64 `json:"socialSecurityWages"`
	SocialSecurityTax   float64 `json:"socialSecurityTax"`
	MedicareWages       float64 `json:"medicareWages"`
	MedicareTax         float64 `json:"medicareTax"`
	StateWages          float64 `json:"stateWages"`
	StateIncomeTax      float64 `json:"stateIncomeTax"`
}

type WageStatements struct {
	Year int  `json:"year"`
	W2s  []W2 `json:"w2"`
	W3   W3   `json:"w3"`
}

// WageStatementsFor builds a W-2 for every employee paid in the year, ordered
// by name.
func WageStatementsFor(r *rules.Payroll, year int, employees []models.Employee, calcs []models.PayrollCalculation) WageStatements {
	byID := map[string]*W2{}
	for _, e := range employees {
		byID[e.ID] = &W2{EmployeeID: e.ID, EmployeeName: e.Name, State: e.State}
	}
	for _, c := range calcs {
		w, ok := byID[c.EmployeeID]
		if !ok {
			w = &W2{EmployeeID: c.EmployeeID}
			byID[c.EmployeeID] = w
		}
		w.Wages += c.GrossPay
		w.FederalIncomeTax += c.FederalIncomeTax
		w.SocialSecurityTax += c.SocialSecurityTax
		w.MedicareTax += c.MedicareTax + c.AdditionalMedicareTax
		w.StateIncomeTax += c.StateIncomeTax
	}

	out := WageStatements{Year: year, W2s: []W2{}, W3: W3{Year: year}}
	for _, w := range byID {
		if w.Wages == 0 {
			continue
		}
		w.Wages = utils.RoundMoney(w.Wages)
		w.FederalIncomeTax = utils.RoundMoney(w.FederalIncomeTax)
		w.SocialSecurityWages = utils.RoundMoney(math.Min(w.Wages, r.Federal.SocialSecurityWageBase))
		w.SocialSecurityTax = utils.RoundMoney(w.SocialSecurityTax)
		w.MedicareWages = w.Wages
		w.MedicareTax = utils.RoundMoney(w.MedicareTax)
		w.StateWages = w.Wages
		w.StateIncomeTax = utils.RoundMoney(w.StateIncomeTax)
		out.W2s = append(out.W2s, *w)

		out.W3.Wages += w.Wages
		out.W3.FederalIncomeTax += w.FederalIncomeTax
		out.W3.SocialSecurityWages += w.SocialSecurityWages
		out.W3.SocialSecurityTax += w.SocialSecurityTax
		out.W3.MedicareWages += w.MedicareWages
		out.W3.MedicareTax += w.MedicareTax
		out.W3.StateWages += w.StateWages
		out.W3.StateIncomeTax += w.StateIncomeTax
	}
	sort.Slice(out.W2s, func(i, j int) bool { return out.W2s[i].EmployeeName < out.W2s[j].EmployeeName })

	out.W3.Forms = len(out.W2s)
	out.W3.Wages = utils.RoundMoney(out.W3.Wages)
	out.W3.FederalIncomeTax = utils.RoundMoney(out.W3.FederalIncomeTax)
	out.W3.SocialSecurityWages = utils.RoundMoney(out.W3.SocialSecurityWages)
	out.W3.SocialSecurityTax = utils.RoundMoney(out.W3.SocialSecurityTax)
	out.W3.MedicareWages = utils.RoundMoney(out.W3.MedicareWages)
	out.W3.MedicareTax = utils.RoundMoney(out.W3.MedicareTax)
	out.W3.StateWages = utils.RoundMoney(out.W3.StateWages)
	out.W3.StateIncomeTax = utils.RoundMoney(out.W3.StateIncomeTax)
	return out
}

type ApplicableTax struct {
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	PaidBy string  `json:"paidBy"`
}

type Compliance struct {
	State           string          `json:"state"`
	FilingFrequency string          `json:"filingFrequency"`
	Taxes           []ApplicableTax `json:"taxes"`
	Registrations   []string        `json:"registrations"`
	Employees       int             `json:"employeesInState"`
}

// StateCompliance lists what an employer with staff in the state must
// withhold, pay and register for.
func StateCompliance(r *rules.Payroll, state string, employees int) Compliance {
	s := r.State(state)
	c := Compliance{
		State:           s.State,
		FilingFrequency: s.FilingFrequency,
		Employees:       employees,
		Taxes: []ApplicableTax{
			{Name: "federal_income_tax", Rate: r.Federal.IncomeTaxRate, PaidBy: "employee"},
			{Name: "social_security", Rate: r.Federal.SocialSecurityRate, PaidBy: "employee_and_employer"},
			{Name: "medicare", Rate: r.Federal.MedicareRate, PaidBy: "employee_and_employer"},
			{Name: "futa", Rate: r.Federal.FUTARate, PaidBy: "employer"},
			{Name: "suta", Rate: s.SUTARate, PaidBy: "employer"},
		},
		Registrations: []string{"federal_ein", "state_unemployment_insurance_account"},
	}
	if s.IncomeTaxRate > 0 {
		c.Taxes = append(c.Taxes, ApplicableTax{Name: "state_income_tax", Rate: s.IncomeTaxRate, PaidBy: "employee"})
		c.Registrations = append(c.Registrations, "state_withholding_account")
	}
	if s.DisabilityRate > 0 {
		c.Taxes = append(c.Taxes, ApplicableTax{Name: "state_disability_insurance", Rate: s.DisabilityRate, PaidBy: "employee"})
		c.Registrations = append(c.Registrations, "state_disability_insurance")
	}
	return c
}
