package models

import "time"

// Pay frequencies.
const (
	PayWeekly      = "weekly"
	PayBiweekly    = "biweekly"
	PaySemimonthly = "semimonthly"
	PayMonthly     = "monthly"
)

// PayPeriodsPerYear maps a pay frequency to the number of pay dates per year.
var PayPeriodsPerYear = map[string]int{
	PayWeekly:      52,
	PayBiweekly:    26,
	PaySemimonthly: 24,
	PayMonthly:     12,
}

type Employee struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"-"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	State          string    `json:"state"`
	City           string    `json:"city,omitempty"`
	County         string    `json:"county,omitempty"`
	AnnualSalary   float64   `json:"annualSalary"`
	PayFrequency   string    `json:"payFrequency"`
	FilingStatus   string    `json:"filingStatus"`
	CreatedAt      time.Time `json:"createdTimestamp"`
}

// PayrollCalculation is one persisted pay run for one employee.
type PayrollCalculation struct {
	ID             string  `json:"id"`
	OrganizationID string  `json:"-"`
	EmployeeID     string  `json:"employeeId"`
	PayDate        Date    `json:"payDate"`
	GrossPay       float64 `json:"grossPay"`
	YTDGrossBefore float64 `json:"ytdGrossBefore"`

	FederalIncomeTax      float64 `json:"federalIncomeTax"`
	SocialSecurityTax     float64 `json:"socialSecurityTax"`
	MedicareTax           float64 `json:"medicareTax"`
	AdditionalMedicareTax float64 `json:"additionalMedicareTax"`
	StateIncomeTax        float64 `json:"stateIncomeTax"`
	StateDisabilityTax    float64 `json:"stateDisabilityTax"`
	CityTax               float64 `json:"cityTax"`
	CountyTax             float64 `json:"countyTax"`
	TotalEmployeeTaxes    float64 `json:"totalEmployeeTaxes"`
	NetPay                float64 `json:"netPay"`

	EmployerSocialSecurity float64 `json:"employerSocialSecurity"`
	EmployerMedicare       float64 `json:"employerMedicare"`
	FUTATax                float64 `json:"futaTax"`
	SUTATax                float64 `json:"sutaTax"`
	TotalEmployerTaxes     float64 `json:"totalEmployerTaxes"`

	CreatedAt time.Time `json:"createdTimestamp"`
}

type TaxDeadline struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"-"`
	Jurisdiction   string     `json:"jurisdiction"`
	TaxType        string     `json:"taxType"`
	Description    string     `json:"description,omitempty"`
	DueDate        Date       `json:"dueDate"`
	CompletedAt    *time.Time `json:"completedTimestamp,omitempty"`
	CreatedAt      time.Time  `json:"createdTimestamp"`
}

// SalesRecord is the tax projection of an income transaction with a jurisdiction.
type SalesRecord struct {
	TransactionID  string    `json:"transactionId"`
	OrganizationID string    `json:"-"`
	Jurisdiction   string    `json:"jurisdiction"`
	Amount         float64   `json:"amount"`
	OccurredAt     time.Time `json:"occurredTimestamp"`
}
