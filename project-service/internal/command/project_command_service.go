package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/scheduling"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// ProjectStore is repository.ProjectRepository.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, orgID, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	CreateBudget(ctx context.Context, b *models.ProjectBudget) error
	CreateCost(ctx context.Context, c *models.ProjectCost) error
	CreateTask(ctx context.Context, t *models.ProjectTask) error
	GetTask(ctx context.Context, projectID, id string) (*models.ProjectTask, error)
	CompleteTask(ctx context.Context, projectID, id string, completedAt models.Date) error
}

// ResourceStore is repository.ResourceRepository.
type ResourceStore interface {
	CreateResource(ctx context.Context, res *models.Resource) error
	GetResource(ctx context.Context, orgID, id string) (*models.Resource, error)
	UpdateResource(ctx context.Context, res *models.Resource) error
	Allocate(ctx context.Context, a *models.ResourceAllocation, check repository.AllocationCheck) error
	GetAllocation(ctx context.Context, orgID, id string) (*models.ResourceAllocation, error)
	SetAllocationStatus(ctx context.Context, orgID, id, from, to string) error
}

// AllocationConflictError carries the reasons a resource cannot take an
// allocation. It matches apperr.ErrConflict.
type AllocationConflictError struct {
	Conflicts []scheduling.Conflict
}

func (e *AllocationConflictError) Error() string {
	return fmt.Sprintf("resource is not available (%d conflicts)", len(e.Conflicts))
}

func (e *AllocationConflictError) Unwrap() error { return apperr.ErrConflict }

type ProjectCommandService struct {
	projects  ProjectStore
	resources ResourceStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewProjectCommandService(projects ProjectStore, resources ResourceStore, logger *zap.Logger) *ProjectCommandService {
	return &ProjectCommandService{projects: projects, resources: resources, logger: logger, now: time.Now}
}

func (s *ProjectCommandService) today() models.Date {
	return models.NewDate(s.now())
}

var projectStatuses = map[string]bool{
	models.ProjectPlanning:  true,
	models.ProjectActive:    true,
	models.ProjectOnHold:    true,
	models.ProjectCompleted: true,
}

func (s *ProjectCommandService) CreateProject(ctx context.Context, cmd cqrs.CreateProjectCommand) (*models.Project, error) {
	status := cmd.Status
	if status == "" {
		status = models.ProjectPlanning
	}
	if !projectStatuses[status] {
		return nil, apperr.Invalid("unknown project status %q", status)
	}
	if cmd.StartDate.IsZero() || cmd.EndDate.IsZero() {
		return nil, apperr.Invalid("startDate and endDate are required")
	}
	if !cmd.EndDate.After(cmd.StartDate.Time) {
		return nil, apperr.Invalid("endDate must be after startDate")
	}
	if cmd.TotalBudget < 0 {
		return nil, apperr.Invalid("totalBudget must not be negative")
	}

	now := s.now().UTC()
	p := &models.Project{
		ID:             utils.GenerateID("prj"),
		OrganizationID: cmd.OrganizationID,
		Name:           strings.TrimSpace(cmd.Name),
		Code:           strings.ToUpper(strings.TrimSpace(cmd.Code)),
		StartDate:      cmd.StartDate,
		EndDate:        cmd.EndDate,
		TotalBudget:    utils.RoundMoney(cmd.TotalBudget),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("project created", zap.String("projectId", p.ID), zap.String("organizationId", p.OrganizationID))
	return p, nil
}

func (s *ProjectCommandService) UpdateProject(ctx context.Context, cmd cqrs.UpdateProjectCommand) (*models.Project, error) {
	p, err := s.projects.GetProject(ctx, cmd.OrganizationID, cmd.ProjectID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		p.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.StartDate != nil {
		p.StartDate = *cmd.StartDate
	}
	if cmd.EndDate != nil {
		p.EndDate = *cmd.EndDate
	}
	if cmd.TotalBudget != nil {
		if *cmd.TotalBudget < 0 {
			return nil, apperr.Invalid("totalBudget must not be negative")
		}
		p.TotalBudget = utils.RoundMoney(*cmd.TotalBudget)
	}
	if cmd.Status != nil {
		if !projectStatuses[*cmd.Status] {
			return nil, apperr.Invalid("unknown project status %q", *cmd.Status)
		}
		p.Status = *cmd.Status
	}
	if !p.EndDate.After(p.StartDate.Time) {
		return nil, apperr.Invalid("endDate must be after startDate")
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProjectCommandService) CreateBudget(ctx context.Context, cmd cqrs.CreateBudgetCommand) (*models.ProjectBudget, error) {
	if cmd.BudgetedAmount < 0 {
		return nil, apperr.Invalid("budgetedAmount must not be negative")
	}
	if _, err := s.projects.GetProject(ctx, cmd.OrganizationID, cmd.ProjectID); err != nil {
		return nil, err
	}
	b := &models.ProjectBudget{
		ID:             utils.GenerateID("bud"),
		ProjectID:      cmd.ProjectID,
		Phase:          normalize(cmd.Phase),
		Category:       normalize(cmd.Category),
		BudgetedAmount: utils.RoundMoney(cmd.BudgetedAmount),
	}
	if err := s.projects.CreateBudget(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

var costKinds = map[string]bool{models.CostActual: true, models.CostCommitted: true}

func (s *ProjectCommandService) RecordCost(ctx context.Context, cmd cqrs.RecordCostCommand) (*models.ProjectCost, error) {
	if cmd.Amount <= 0 {
		return nil, apperr.Invalid("amount must be greater than 0")
	}
	kind := cmd.Kind
	if kind == "" {
		kind = models.CostActual
	}
	if !costKinds[kind] {
		return nil, apperr.Invalid("unknown cost kind %q", kind)
	}
	if _, err := s.projects.GetProject(ctx, cmd.OrganizationID, cmd.ProjectID); err != nil {
		return nil, err
	}

	incurred := s.today()
	if cmd.IncurredAt != nil {
		incurred = *cmd.IncurredAt
	}
	c := &models.ProjectCost{
		ID:          utils.GenerateID("pcs"),
		ProjectID:   cmd.ProjectID,
		Phase:       normalize(cmd.Phase),
		Category:    normalize(cmd.Category),
		Amount:      utils.RoundMoney(cmd.Amount),
		Kind:        kind,
		IncurredAt:  incurred,
		Description: strings.TrimSpace(cmd.Description),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.projects.CreateCost(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ProjectCommandService) CreateTask(ctx context.Context, cmd cqrs.CreateTaskCommand) (*models.ProjectTask, error) {
	if cmd.BudgetedCost < 0 {
		return nil, apperr.Invalid("budgetedCost must not be negative")
	}
	if !cmd.PlannedStart.IsZero() && !cmd.PlannedEnd.IsZero() && cmd.PlannedEnd.Before(cmd.PlannedStart.Time) {
		return nil, apperr.Invalid("plannedEnd must not be before plannedStart")
	}
	if _, err := s.projects.GetProject(ctx, cmd.OrganizationID, cmd.ProjectID); err != nil {
		return nil, err
	}
	if cmd.AssigneeResourceID != "" {
		if _, err := s.resources.GetResource(ctx, cmd.OrganizationID, cmd.AssigneeResourceID); err != nil {
			return nil, err
		}
	}
	t := &models.ProjectTask{
		ID:                 utils.GenerateID("tsk"),
		ProjectID:          cmd.ProjectID,
		Name:               strings.TrimSpace(cmd.Name),
		Phase:              normalize(cmd.Phase),
		BudgetedCost:       utils.RoundMoney(cmd.BudgetedCost),
		PlannedStart:       cmd.PlannedStart,
		PlannedEnd:         cmd.PlannedEnd,
		AssigneeResourceID: cmd.AssigneeResourceID,
	}
	if err := s.projects.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CompleteTask marks a task done, which earns its budgeted cost from the
// completion date onwards.
func (s *ProjectCommandService) CompleteTask(ctx context.Context, cmd cqrs.CompleteTaskCommand) (*models.ProjectTask, error) {
	if _, err := s.projects.GetProject(ctx, cmd.OrganizationID, cmd.ProjectID); err != nil {
		return nil, err
	}
	t, err := s.projects.GetTask(ctx, cmd.ProjectID, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if t.CompletedAt != nil {
		return nil, apperr.Conflict("task already completed")
	}
	completed := s.today()
	if cmd.CompletedAt != nil {
		completed = *cmd.CompletedAt
	}
	if completed.After(s.today().Time) {
		return nil, apperr.Invalid("completedAt must not be in the future")
	}
	if err := s.projects.CompleteTask(ctx, cmd.ProjectID, cmd.TaskID, completed); err != nil {
		return nil, err
	}
	t.CompletedAt = &completed
	return t, nil
}

var resourceStatuses = map[string]bool{
	models.ResourceAvailable:   true,
	models.ResourceUnavailable: true,
	models.ResourceOnLeave:     true,
}

func (s *ProjectCommandService) CreateResource(ctx context.Context, cmd cqrs.CreateResourceCommand) (*models.Resource, error) {
	status := cmd.Status
	if status == "" {
		status = models.ResourceAvailable
	}
	if !resourceStatuses[status] {
		return nil, apperr.Invalid("unknown resource status %q", status)
	}
	if cmd.MaxHoursPerWeek <= 0 || cmd.MaxHoursPerWeek > 168 {
		return nil, apperr.Invalid("maxHoursPerWeek must be between 0 and 168")
	}
	if cmd.HourlyRate < 0 {
		return nil, apperr.Invalid("hourlyRate must not be negative")
	}
	availability := cmd.Availability
	if availability == nil {
		availability = DefaultAvailability()
	}
	if err := scheduling.ValidateAvailability(availability); err != nil {
		return nil, apperr.Invalid("%s", err.Error())
	}

	res := &models.Resource{
		ID:              utils.GenerateID("res"),
		OrganizationID:  cmd.OrganizationID,
		Name:            strings.TrimSpace(cmd.Name),
		Role:            strings.TrimSpace(cmd.Role),
		HourlyRate:      utils.RoundMoney(cmd.HourlyRate),
		MaxHoursPerWeek: cmd.MaxHoursPerWeek,
		Status:          status,
		Availability:    availability,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.resources.CreateResource(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// DefaultAvailability is Monday to Friday, 09:00 to 17:00.
func DefaultAvailability() models.WeeklyAvailability {
	w := models.WeeklyAvailability{}
	for i, day := range scheduling.Weekdays {
		if i < 5 {
			w[day] = models.DayAvailability{Available: true, Start: "09:00", End: "17:00"}
		} else {
			w[day] = models.DayAvailability{Available: false}
		}
	}
	return w
}

func (s *ProjectCommandService) UpdateResource(ctx context.Context, cmd cqrs.UpdateResourceCommand) (*models.Resource, error) {
	res, err := s.resources.GetResource(ctx, cmd.OrganizationID, cmd.ResourceID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		res.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Role != nil {
		res.Role = strings.TrimSpace(*cmd.Role)
	}
	if cmd.HourlyRate != nil {
		if *cmd.HourlyRate < 0 {
			return nil, apperr.Invalid("hourlyRate must not be negative")
		}
		res.HourlyRate = utils.RoundMoney(*cmd.HourlyRate)
	}
	if cmd.MaxHoursPerWeek != nil {
		if *cmd.MaxHoursPerWeek <= 0 || *cmd.MaxHoursPerWeek > 168 {
			return nil, apperr.Invalid("maxHoursPerWeek must be between 0 and 168")
		}
		res.MaxHoursPerWeek = *cmd.MaxHoursPerWeek
	}
	if cmd.Status != nil {
		if !resourceStatuses[*cmd.Status] {
			return nil, apperr.Invalid("unknown resource status %q", *cmd.Status)
		}
		res.Status = *cmd.Status
	}
	if cmd.Availability != nil {
		if err := scheduling.ValidateAvailability(cmd.Availability); err != nil {
			return nil, apperr.Invalid("%s", err.Error())
		}
		res.Availability = cmd.Availability
	}
	if err := s.resources.UpdateResource(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Allocate books a resource onto a project after the availability check.
// The check runs inside the repository transaction that holds the resource
// lock, so two requests cannot both take the last free hours.
func (s *ProjectCommandService) Allocate(ctx context.Context, cmd cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error) {
	status := cmd.Status
	if status == "" {
		status = models.AllocationPlanned
	}
	if status != models.AllocationPlanned && status != models.AllocationConfirmed {
		return nil, apperr.Invalid("new allocations must be planned or confirmed")
	}
	if cmd.HoursPerDay <= 0 || cmd.HoursPerDay > 24 {
		return nil, apperr.Invalid("hoursPerDay must be between 0 and 24")
	}
	if cmd.StartDate.IsZero() || cmd.EndDate.IsZero() {
		return nil, apperr.Invalid("startDate and endDate are required")
	}
	if cmd.EndDate.Before(cmd.StartDate.Time) {
		return nil, apperr.Invalid("endDate must not be before startDate")
	}
	if _, err := s.projects.GetProject(ctx, cmd.OrganizationID, cmd.ProjectID); err != nil {
		return nil, err
	}

	a := &models.ResourceAllocation{
		ID:             utils.GenerateID("alc"),
		OrganizationID: cmd.OrganizationID,
		ProjectID:      cmd.ProjectID,
		ResourceID:     cmd.ResourceID,
		StartDate:      cmd.StartDate,
		EndDate:        cmd.EndDate,
		HoursPerDay:    cmd.HoursPerDay,
		Status:         status,
		CreatedAt:      s.now().UTC(),
	}
	req := scheduling.Request{Start: a.StartDate, End: a.EndDate, HoursPerDay: a.HoursPerDay}
	err := s.resources.Allocate(ctx, a, func(res *models.Resource, existing []models.ResourceAllocation) error {
		if conflicts := scheduling.Check(*res, existing, req); len(conflicts) > 0 {
			return &AllocationConflictError{Conflicts: conflicts}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource allocated",
		zap.String("allocationId", a.ID),
		zap.String("resourceId", a.ResourceID),
		zap.String("projectId", a.ProjectID),
	)
	return a, nil
}

var allocationTransitions = map[string][]string{
	models.AllocationPlanned:    {models.AllocationConfirmed, models.AllocationInProgress, models.AllocationCancelled},
	models.AllocationConfirmed:  {models.AllocationInProgress, models.AllocationCancelled},
	models.AllocationInProgress: {models.AllocationCompleted, models.AllocationCancelled},
}

func (s *ProjectCommandService) UpdateAllocationStatus(ctx context.Context, cmd cqrs.UpdateAllocationStatusCommand) (*models.ResourceAllocation, error) {
	a, err := s.resources.GetAllocation(ctx, cmd.OrganizationID, cmd.AllocationID)
	if err != nil {
		return nil, err
	}
	if a.Status == cmd.Status {
		return a, nil
	}
	allowed := false
	for _, next := range allocationTransitions[a.Status] {
		if next == cmd.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperr.Unprocessable("allocation cannot move from %s to %s", a.Status, cmd.Status)
	}
	if err := s.resources.SetAllocationStatus(ctx, cmd.OrganizationID, a.ID, a.Status, cmd.Status); err != nil {
		return nil, err
	}
	a.Status = cmd.Status
	return a, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
