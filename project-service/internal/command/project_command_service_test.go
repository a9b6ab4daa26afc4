package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/repository"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/scheduling"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type memProjects struct {
	projects map[string]*models.Project
	budgets  []*models.ProjectBudget
	costs    []*models.ProjectCost
	tasks    map[string]*models.ProjectTask
}

func (m *memProjects) CreateProject(_ context.Context, p *models.Project) error {
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) GetProject(_ context.Context, orgID, id string) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok || p.OrganizationID != orgID {
		return nil, apperr.NotFound("project")
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) UpdateProject(_ context.Context, p *models.Project) error {
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) CreateBudget(_ context.Context, b *models.ProjectBudget) error {
	for _, existing := range m.budgets {
		if existing.ProjectID == b.ProjectID && existing.Phase == b.Phase && existing.Category == b.Category {
			return apperr.Conflict("budget exists")
		}
	}
	m.budgets = append(m.budgets, b)
	return nil
}

func (m *memProjects) CreateCost(_ context.Context, c *models.ProjectCost) error {
	m.costs = append(m.costs, c)
	return nil
}

func (m *memProjects) CreateTask(_ context.Context, t *models.ProjectTask) error {
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memProjects) GetTask(_ context.Context, projectID, id string) (*models.ProjectTask, error) {
	t, ok := m.tasks[id]
	if !ok || t.ProjectID != projectID {
		return nil, apperr.NotFound("task")
	}
	cp := *t
	return &cp, nil
}

func (m *memProjects) CompleteTask(_ context.Context, _, id string, completedAt models.Date) error {
	m.tasks[id].CompletedAt = &completedAt
	return nil
}

type memResources struct {
	resources   map[string]*models.Resource
	allocations map[string]*models.ResourceAllocation
}

func (m *memResources) CreateResource(_ context.Context, res *models.Resource) error {
	cp := *res
	m.resources[res.ID] = &cp
	return nil
}

func (m *memResources) GetResource(_ context.Context, orgID, id string) (*models.Resource, error) {
	res, ok := m.resources[id]
	if !ok || res.OrganizationID != orgID {
		return nil, apperr.NotFound("resource")
	}
	cp := *res
	return &cp, nil
}

func (m *memResources) UpdateResource(_ context.Context, res *models.Resource) error {
	cp := *res
	m.resources[res.ID] = &cp
	return nil
}

func (m *memResources) Allocate(ctx context.Context, a *models.ResourceAllocation, check repository.AllocationCheck) error {
	res, err := m.GetResource(ctx, a.OrganizationID, a.ResourceID)
	if err != nil {
		return err
	}
	var existing []models.ResourceAllocation
	for _, other := range m.allocations {
		if other.ResourceID == a.ResourceID && other.Active() {
			existing = append(existing, *other)
		}
	}
	if err := check(res, existing); err != nil {
		return err
	}
	cp := *a
	m.allocations[a.ID] = &cp
	return nil
}

func (m *memResources) GetAllocation(_ context.Context, orgID, id string) (*models.ResourceAllocation, error) {
	a, ok := m.allocations[id]
	if !ok || a.OrganizationID != orgID {
		return nil, apperr.NotFound("allocation")
	}
	cp := *a
	return &cp, nil
}

func (m *memResources) SetAllocationStatus(_ context.Context, _, id, _, to string) error {
	m.allocations[id].Status = to
	return nil
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func march(d int) models.Date {
	return models.NewDate(time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC))
}

func newService() (*ProjectCommandService, *memProjects, *memResources) {
	projects := &memProjects{
		projects: map[string]*models.Project{
			"prj-1": {ID: "prj-1", OrganizationID: "org-001", Name: "Warehouse", StartDate: march(1), EndDate: march(31), TotalBudget: 1000, Status: models.ProjectActive},
		},
		tasks: map[string]*models.ProjectTask{
			"tsk-1": {ID: "tsk-1", ProjectID: "prj-1", Name: "Wiring", BudgetedCost: 300},
		},
	}
	resources := &memResources{
		resources: map[string]*models.Resource{
			"res-1": {ID: "res-1", OrganizationID: "org-001", Name: "Dana", MaxHoursPerWeek: 40, Status: models.ResourceAvailable, Availability: DefaultAvailability()},
		},
		allocations: map[string]*models.ResourceAllocation{},
	}
	svc := NewProjectCommandService(projects, resources, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, projects, resources
}

func TestCreateProject(t *testing.T) {
	svc, projects, _ := newService()

	p, err := svc.CreateProject(context.Background(), cqrs.CreateProjectCommand{
		OrganizationID: "org-001", Name: " Office fit-out ", Code: "ofo-1",
		StartDate: march(1), EndDate: march(20), TotalBudget: 5000.456,
	})
	require.NoError(t, err)
	assert.Equal(t, "Office fit-out", p.Name)
	assert.Equal(t, "OFO-1", p.Code)
	assert.Equal(t, models.ProjectPlanning, p.Status)
	assert.Equal(t, 5000.46, p.TotalBudget)
	assert.Contains(t, projects.projects, p.ID)

	_, err = svc.CreateProject(context.Background(), cqrs.CreateProjectCommand{
		OrganizationID: "org-001", Name: "Backwards", StartDate: march(20), EndDate: march(20),
	})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestUpdateProjectKeepsDatesOrdered(t *testing.T) {
	svc, _, _ := newService()
	end := march(1)

	_, err := svc.UpdateProject(context.Background(), cqrs.UpdateProjectCommand{OrganizationID: "org-001", ProjectID: "prj-1", EndDate: &end})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	status := models.ProjectOnHold
	p, err := svc.UpdateProject(context.Background(), cqrs.UpdateProjectCommand{OrganizationID: "org-001", ProjectID: "prj-1", Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectOnHold, p.Status)
}

func TestCreateBudget(t *testing.T) {
	svc, _, _ := newService()
	cmd := cqrs.CreateBudgetCommand{OrganizationID: "org-001", ProjectID: "prj-1", Phase: "Design", Category: " Labor", BudgetedAmount: 400}

	b, err := svc.CreateBudget(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "design", b.Phase)
	assert.Equal(t, "labor", b.Category)

	_, err = svc.CreateBudget(context.Background(), cmd)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	cmd.OrganizationID = "org-999"
	_, err = svc.CreateBudget(context.Background(), cmd)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordCost(t *testing.T) {
	svc, projects, _ := newService()

	c, err := svc.RecordCost(context.Background(), cqrs.RecordCostCommand{
		OrganizationID: "org-001", ProjectID: "prj-1", Phase: "build", Category: "materials", Amount: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CostActual, c.Kind)
	assert.Equal(t, march(10), c.IncurredAt)
	assert.Len(t, projects.costs, 1)

	_, err = svc.RecordCost(context.Background(), cqrs.RecordCostCommand{OrganizationID: "org-001", ProjectID: "prj-1", Amount: 0})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.RecordCost(context.Background(), cqrs.RecordCostCommand{OrganizationID: "org-001", ProjectID: "prj-1", Amount: 5, Kind: "invoiced"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCreateTaskChecksAssignee(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.CreateTask(context.Background(), cqrs.CreateTaskCommand{
		OrganizationID: "org-001", ProjectID: "prj-1", Name: "Paint", AssigneeResourceID: "res-404",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	task, err := svc.CreateTask(context.Background(), cqrs.CreateTaskCommand{
		OrganizationID: "org-001", ProjectID: "prj-1", Name: "Paint", AssigneeResourceID: "res-1",
		PlannedStart: march(2), PlannedEnd: march(6), BudgetedCost: 250,
	})
	require.NoError(t, err)
	assert.Equal(t, "res-1", task.AssigneeResourceID)
}

func TestCompleteTask(t *testing.T) {
	svc, projects, _ := newService()
	future := march(11)

	_, err := svc.CompleteTask(context.Background(), cqrs.CompleteTaskCommand{OrganizationID: "org-001", ProjectID: "prj-1", TaskID: "tsk-1", CompletedAt: &future})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	task, err := svc.CompleteTask(context.Background(), cqrs.CompleteTaskCommand{OrganizationID: "org-001", ProjectID: "prj-1", TaskID: "tsk-1"})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, march(10), *task.CompletedAt)
	assert.NotNil(t, projects.tasks["tsk-1"].CompletedAt)

	_, err = svc.CompleteTask(context.Background(), cqrs.CompleteTaskCommand{OrganizationID: "org-001", ProjectID: "prj-1", TaskID: "tsk-1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateResource(t *testing.T) {
	svc, _, _ := newService()

	res, err := svc.CreateResource(context.Background(), cqrs.CreateResourceCommand{
		OrganizationID: "org-001", Name: "Sam", Role: "designer", HourlyRate: 80, MaxHoursPerWeek: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ResourceAvailable, res.Status)
	assert.True(t, res.Availability["friday"].Available)
	assert.False(t, res.Availability["sunday"].Available)

	_, err = svc.CreateResource(context.Background(), cqrs.CreateResourceCommand{
		OrganizationID: "org-001", Name: "Sam", MaxHoursPerWeek: 30,
		Availability: models.WeeklyAvailability{"monday": {Available: true, Start: "17:00", End: "09:00"}},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.CreateResource(context.Background(), cqrs.CreateResourceCommand{OrganizationID: "org-001", Name: "Sam"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestAllocate(t *testing.T) {
	svc, _, resources := newService()
	cmd := cqrs.AllocateResourceCommand{
		OrganizationID: "org-001", ProjectID: "prj-1", ResourceID: "res-1",
		StartDate: march(2), EndDate: march(6), HoursPerDay: 6,
	}

	a, err := svc.Allocate(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationPlanned, a.Status)
	assert.Len(t, resources.allocations, 1)

	// 30h already booked that week; another 3h a day breaks the 40h limit.
	cmd.HoursPerDay = 3
	_, err = svc.Allocate(context.Background(), cmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	var conflict *AllocationConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, scheduling.ConflictWeeklyHours, conflict.Conflicts[0].Type)
	assert.Len(t, resources.allocations, 1)
}

func TestAllocateValidation(t *testing.T) {
	svc, _, _ := newService()
	base := cqrs.AllocateResourceCommand{
		OrganizationID: "org-001", ProjectID: "prj-1", ResourceID: "res-1",
		StartDate: march(2), EndDate: march(6), HoursPerDay: 4,
	}

	tests := []struct {
		name    string
		mutate  func(*cqrs.AllocateResourceCommand)
		wantErr error
	}{
		{"in progress is not a starting status", func(c *cqrs.AllocateResourceCommand) { c.Status = models.AllocationInProgress }, apperr.ErrInvalid},
		{"zero hours", func(c *cqrs.AllocateResourceCommand) { c.HoursPerDay = 0 }, apperr.ErrInvalid},
		{"end before start", func(c *cqrs.AllocateResourceCommand) { c.EndDate = march(1) }, apperr.ErrInvalid},
		{"unknown project", func(c *cqrs.AllocateResourceCommand) { c.ProjectID = "prj-404" }, apperr.ErrNotFound},
		{"unknown resource", func(c *cqrs.AllocateResourceCommand) { c.ResourceID = "res-404" }, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := base
			tt.mutate(&cmd)
			_, err := svc.Allocate(context.Background(), cmd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateAllocationStatus(t *testing.T) {
	svc, _, resources := newService()
	resources.allocations["alc-1"] = &models.ResourceAllocation{ID: "alc-1", OrganizationID: "org-001", ResourceID: "res-1", Status: models.AllocationPlanned}

	a, err := svc.UpdateAllocationStatus(context.Background(), cqrs.UpdateAllocationStatusCommand{OrganizationID: "org-001", AllocationID: "alc-1", Status: models.AllocationConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.AllocationConfirmed, a.Status)

	_, err = svc.UpdateAllocationStatus(context.Background(), cqrs.UpdateAllocationStatusCommand{OrganizationID: "org-001", AllocationID: "alc-1", Status: models.AllocationCompleted})
	assert.ErrorIs(t, err, apperr.ErrUnprocessable)

	_, err = svc.UpdateAllocationStatus(context.Background(), cqrs.UpdateAllocationStatusCommand{OrganizationID: "org-001", AllocationID: "alc-1", Status: models.AllocationCancelled})
	require.NoError(t, err)

	_, err = svc.UpdateAllocationStatus(context.Background(), cqrs.UpdateAllocationStatusCommand{OrganizationID: "org-001", AllocationID: "alc-1", Status: models.AllocationConfirmed})
	assert.ErrorIs(t, err, apperr.ErrUnprocessable)
}
