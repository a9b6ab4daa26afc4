package cqrs

import (
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---------- Project commands ----------

type CreateProjectCommand struct {
	OrganizationID string
	Name           string
	Code           string
	StartDate      models.Date
	EndDate        models.Date
	TotalBudget    float64
	Status         string
}

type UpdateProjectCommand struct {
	OrganizationID string
	ProjectID      string
	Name           *string
	StartDate      *models.Date
	EndDate        *models.Date
	TotalBudget    *float64
	Status         *string
}

type CreateBudgetCommand struct {
	OrganizationID string
	ProjectID      string
	Phase          string
	Category       string
	BudgetedAmount float64
}

type RecordCostCommand struct {
	OrganizationID string
	ProjectID      string
	Phase          string
	Category       string
	Amount         float64
	Kind           string
	// IncurredAt defaults to today.
	IncurredAt  *models.Date
	Description string
}

type CreateTaskCommand struct {
	OrganizationID     string
	ProjectID          string
	Name               string
	Phase              string
	BudgetedCost       float64
	PlannedStart       models.Date
	PlannedEnd         models.Date
	AssigneeResourceID string
}

type CompleteTaskCommand struct {
	OrganizationID string
	ProjectID      string
	TaskID         string
	CompletedAt    *models.Date
}

// ---------- Resource commands ----------

type CreateResourceCommand struct {
	OrganizationID  string
	Name            string
	Role            string
	HourlyRate      float64
	MaxHoursPerWeek float64
	Status          string
	Availability    models.WeeklyAvailability
}

type UpdateResourceCommand struct {
	OrganizationID  string
	ResourceID      string
	Name            *string
	Role            *string
	HourlyRate      *float64
	MaxHoursPerWeek *float64
	Status          *string
	Availability    models.WeeklyAvailability
}

type AllocateResourceCommand struct {
	OrganizationID string
	ProjectID      string
	ResourceID     string
	StartDate      models.Date
	EndDate        models.Date
	HoursPerDay    float64
	Status         string
}

type UpdateAllocationStatusCommand struct {
	OrganizationID string
	AllocationID   string
	Status         string
}

// ---------- Project and resource queries ----------

type ListProjectsQuery struct {
	OrganizationID string
	Status         string
}

// ResourceRangeQuery covers the inclusive day range [From, To].
type ResourceRangeQuery struct {
	OrganizationID string
	From           models.Date
	To             models.Date
}
