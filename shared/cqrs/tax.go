package cqrs

import (
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---------- Payroll and tax commands ----------

type CreateEmployeeCommand struct {
	OrganizationID string
	Name           string
	Email          string
	State          string
	City           string
	County         string
	AnnualSalary   float64
	PayFrequency   string
	FilingStatus   string
}

type CalculatePayrollCommand struct {
	OrganizationID string
	EmployeeID     string
	// GrossPay overrides the salaried paycheck when set.
	GrossPay *float64
	PayDate  models.Date
}

type CreateDeadlineCommand struct {
	OrganizationID string
	Jurisdiction   string
	TaxType        string
	Description    string
	DueDate        models.Date
}

type CompleteDeadlineCommand struct {
	OrganizationID string
	DeadlineID     string
}

// ---------- Payroll and tax queries ----------

type QuarterlyPayrollQuery struct {
	OrganizationID string
	Year           int
	Quarter        int
}

type AnnualPayrollQuery struct {
	OrganizationID string
	Year           int
}

type StateComplianceQuery struct {
	OrganizationID string
	State          string
}
