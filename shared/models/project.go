package models

import "time"

// Project statuses.
const (
	ProjectPlanning  = "planning"
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
)

type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"-"`
	Name           string    `json:"name"`
	Code           string    `json:"code,omitempty"`
	StartDate      Date      `json:"startDate"`
	EndDate        Date      `json:"endDate"`
	TotalBudget    float64   `json:"totalBudget"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdTimestamp"`
	UpdatedAt      time.Time `json:"updatedTimestamp"`
}

type ProjectBudget struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"projectId"`
	Phase          string  `json:"phase"`
	Category       string  `json:"category"`
	BudgetedAmount float64 `json:"budgetedAmount"`
}

// Cost kinds.
const (
	CostCommitted = "committed"
	CostActual    = "actual"
)

type ProjectCost struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Phase       string    `json:"phase"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Kind        string    `json:"kind"`
	IncurredAt  Date      `json:"incurredAt"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdTimestamp"`
}

type ProjectTask struct {
	ID                 string  `json:"id"`
	ProjectID          string  `json:"projectId"`
	Name               string  `json:"name"`
	Phase              string  `json:"phase"`
	BudgetedCost       float64 `json:"budgetedCost"`
	PlannedStart       Date    `json:"plannedStart"`
	PlannedEnd         Date    `json:"plannedEnd"`
	AssigneeResourceID string  `json:"assigneeResourceId,omitempty"`
	CompletedAt        *Date   `json:"completedAt,omitempty"`
}

// Resource statuses.
const (
	ResourceAvailable   = "available"
	ResourceUnavailable = "unavailable"
	ResourceOnLeave     = "on_leave"
)

// DayAvailability is a working window such as 09:00-17:00.
type DayAvailability struct {
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// WeeklyAvailability is keyed by lowercase weekday name ("monday").
type WeeklyAvailability map[string]DayAvailability

type Resource struct {
	ID              string             `json:"id"`
	OrganizationID  string             `json:"-"`
	Name            string             `json:"name"`
	Role            string             `json:"role"`
	HourlyRate      float64            `json:"hourlyRate"`
	MaxHoursPerWeek float64            `json:"maxHoursPerWeek"`
	Status          string             `json:"status"`
	Availability    WeeklyAvailability `json:"availability"`
	CreatedAt       time.Time          `json:"createdTimestamp"`
}

// Allocation statuses. Planned, confirmed and in-progress allocations count
// against capacity.
const (
	AllocationPlanned    = "planned"
	AllocationConfirmed  = "confirmed"
	AllocationInProgress = "in_progress"
	AllocationCompleted  = "completed"
	AllocationCancelled  = "cancelled"
)

type ResourceAllocation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"-"`
	ProjectID      string    `json:"projectId"`
	ResourceID     string    `json:"resourceId"`
	StartDate      Date      `json:"startDate"`
	EndDate        Date      `json:"endDate"`
	HoursPerDay    float64   `json:"hoursPerDay"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdTimestamp"`
}

func (a ResourceAllocation) Active() bool {
	switch a.Status {
	case AllocationPlanned, AllocationConfirmed, AllocationInProgress:
		return true
	}
	return false
}
