package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/command"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/costing"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/query"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/scheduling"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---- mock implementations ----

type mockCommander struct {
	createProjectFn func(cqrs.CreateProjectCommand) (*models.Project, error)
	completeTaskFn  func(cqrs.CompleteTaskCommand) (*models.ProjectTask, error)
	allocateFn      func(cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error)
	statusFn        func(cqrs.UpdateAllocationStatusCommand) (*models.ResourceAllocation, error)
	lastCost        cqrs.RecordCostCommand
}

func (m *mockCommander) CreateProject(_ context.Context, cmd cqrs.CreateProjectCommand) (*models.Project, error) {
	if m.createProjectFn != nil {
		return m.createProjectFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCommander) UpdateProject(_ context.Context, cmd cqrs.UpdateProjectCommand) (*models.Project, error) {
	if cmd.ProjectID != "prj-001" {
		return nil, apperr.NotFound("project")
	}
	return &models.Project{ID: cmd.ProjectID}, nil
}
func (m *mockCommander) CreateBudget(_ context.Context, cmd cqrs.CreateBudgetCommand) (*models.ProjectBudget, error) {
	if cmd.Phase == "build" && cmd.Category == "labor" {
		return nil, apperr.Conflict("budget for build/labor already exists")
	}
	return &models.ProjectBudget{ID: "bud-001", Phase: cmd.Phase, Category: cmd.Category}, nil
}
func (m *mockCommander) RecordCost(_ context.Context, cmd cqrs.RecordCostCommand) (*models.ProjectCost, error) {
	m.lastCost = cmd
	return &models.ProjectCost{ID: "cst-001", Amount: cmd.Amount}, nil
}
func (m *mockCommander) CreateTask(_ context.Context, cmd cqrs.CreateTaskCommand) (*models.ProjectTask, error) {
	if cmd.AssigneeResourceID == "res-404" {
		return nil, apperr.NotFound("resource")
	}
	return &models.ProjectTask{ID: "tsk-001", Name: cmd.Name}, nil
}
func (m *mockCommander) CompleteTask(_ context.Context, cmd cqrs.CompleteTaskCommand) (*models.ProjectTask, error) {
	if m.completeTaskFn != nil {
		return m.completeTaskFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCommander) Allocate(_ context.Context, cmd cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error) {
	if m.allocateFn != nil {
		return m.allocateFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCommander) CreateResource(_ context.Context, cmd cqrs.CreateResourceCommand) (*models.Resource, error) {
	return &models.Resource{ID: "res-001", Name: cmd.Name, MaxHoursPerWeek: cmd.MaxHoursPerWeek}, nil
}
func (m *mockCommander) UpdateResource(_ context.Context, cmd cqrs.UpdateResourceCommand) (*models.Resource, error) {
	return &models.Resource{ID: cmd.ResourceID}, nil
}
func (m *mockCommander) UpdateAllocationStatus(_ context.Context, cmd cqrs.UpdateAllocationStatusCommand) (*models.ResourceAllocation, error) {
	if m.statusFn != nil {
		return m.statusFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockQuerier struct {
	lastList  cqrs.ListProjectsQuery
	lastAsOf  models.Date
	lastRange cqrs.ResourceRangeQuery
}

func (m *mockQuerier) ListProjects(_ context.Context, q cqrs.ListProjectsQuery) ([]models.Project, error) {
	m.lastList = q
	return []models.Project{{ID: "prj-001"}}, nil
}
func (m *mockQuerier) GetProject(_ context.Context, _, id string) (*models.Project, error) {
	if id != "prj-001" {
		return nil, apperr.NotFound("project")
	}
	return &models.Project{ID: id}, nil
}
func (m *mockQuerier) ListCosts(context.Context, string, string) ([]models.ProjectCost, error) {
	return []models.ProjectCost{{ID: "cst-001"}}, nil
}
func (m *mockQuerier) ListTasks(context.Context, string, string) ([]models.ProjectTask, error) {
	return []models.ProjectTask{{ID: "tsk-001"}}, nil
}
func (m *mockQuerier) ProjectAllocations(context.Context, string, string) ([]models.ResourceAllocation, error) {
	return []models.ResourceAllocation{{ID: "alc-001"}}, nil
}
func (m *mockQuerier) BudgetStatus(context.Context, string, string) ([]costing.BudgetLine, error) {
	return []costing.BudgetLine{{ID: "bud-001", Phase: "build"}}, nil
}
func (m *mockQuerier) EarnedValue(_ context.Context, _, _ string, asOf models.Date) (*costing.EarnedValue, error) {
	m.lastAsOf = asOf
	return &costing.EarnedValue{AsOf: asOf, Health: costing.HealthOnTrack}, nil
}
func (m *mockQuerier) CostAnalysis(_ context.Context, _, _ string, asOf models.Date) (*costing.Analysis, error) {
	m.lastAsOf = asOf
	return &costing.Analysis{ProjectID: "prj-001", AsOf: asOf}, nil
}
func (m *mockQuerier) ListResources(context.Context, string) ([]models.Resource, error) {
	return []models.Resource{{ID: "res-001"}}, nil
}
func (m *mockQuerier) GetResource(_ context.Context, _, id string) (*models.Resource, error) {
	if id != "res-001" {
		return nil, apperr.NotFound("resource")
	}
	return &models.Resource{ID: id}, nil
}
func (m *mockQuerier) Capacity(_ context.Context, q cqrs.ResourceRangeQuery) (*query.CapacityReport, error) {
	m.lastRange = q
	return &query.CapacityReport{From: q.From, To: q.To}, nil
}
func (m *mockQuerier) Workload(_ context.Context, q cqrs.ResourceRangeQuery) (*query.WorkloadReport, error) {
	m.lastRange = q
	if !q.From.IsZero() && q.To.Before(q.From.Time) {
		return nil, apperr.Invalid("to must not be before from")
	}
	return &query.WorkloadReport{From: q.From, To: q.To}, nil
}

// ---- helpers ----

func fakeAuth(c *gin.Context) {
	c.Set("userId", "usr-001")
	c.Set("organizationId", "org-001")
	c.Set("role", "member")
	c.Next()
}

func newTestRouter(cmds *mockCommander, q *mockQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth)
	projects := r.Group("/v1/projects")
	NewProjectHandler(cmds, q).Register(projects, projects)
	resources := r.Group("/v1/resources")
	NewResourceHandler(cmds, q).Register(resources, resources, r.Group("/v1/allocations"))
	return r
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func date(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ---- tests ----

func TestCreateProject(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		createFn       func(cqrs.CreateProjectCommand) (*models.Project, error)
		expectedStatus int
	}{
		{
			name: "created",
			body: map[string]any{"name": "Warehouse", "startDate": "2026-03-01", "endDate": "2026-06-30", "totalBudget": 50000},
			createFn: func(cmd cqrs.CreateProjectCommand) (*models.Project, error) {
				if cmd.OrganizationID != "org-001" || !cmd.StartDate.Equal(date("2026-03-01").Time) {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return &models.Project{ID: "prj-001", Name: cmd.Name}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{name: "name required", body: map[string]any{"startDate": "2026-03-01", "endDate": "2026-06-30"}, expectedStatus: http.StatusBadRequest},
		{name: "negative budget", body: map[string]any{"name": "W", "totalBudget": -1}, expectedStatus: http.StatusBadRequest},
		{name: "unknown status", body: map[string]any{"name": "W", "status": "archived"}, expectedStatus: http.StatusBadRequest},
		{name: "malformed date", body: map[string]any{"name": "W", "startDate": "03/01/2026"}, expectedStatus: http.StatusBadRequest},
		{
			name: "end before start",
			body: map[string]any{"name": "W", "startDate": "2026-06-30", "endDate": "2026-03-01"},
			createFn: func(cqrs.CreateProjectCommand) (*models.Project, error) {
				return nil, apperr.Invalid("endDate must be after startDate")
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate code",
			body: map[string]any{"name": "W", "code": "WH-1", "startDate": "2026-03-01", "endDate": "2026-06-30"},
			createFn: func(cqrs.CreateProjectCommand) (*models.Project, error) {
				return nil, apperr.Conflict("project code %q already exists", "WH-1")
			},
			expectedStatus: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockCommander{createProjectFn: tt.createFn}, &mockQuerier{})
			w := doRequest(router, http.MethodPost, "/v1/projects", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestProjectReads(t *testing.T) {
	q := &mockQuerier{}
	router := newTestRouter(&mockCommander{}, q)

	w := doRequest(router, http.MethodGet, "/v1/projects?status=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cqrs.ListProjectsQuery{OrganizationID: "org-001", Status: "active"}, q.lastList)
	assert.Contains(t, w.Body.String(), `"projects"`)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/v1/projects/prj-001", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/projects/prj-404", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPatch, "/v1/projects/prj-001", map[string]any{"status": "active"}).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodPatch, "/v1/projects/prj-404", map[string]any{"status": "active"}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPatch, "/v1/projects/prj-001", map[string]any{"totalBudget": -5}).Code)

	for _, path := range []string{"budgets", "costs", "tasks", "allocations"} {
		w := doRequest(router, http.MethodGet, "/v1/projects/prj-001/"+path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"`+path+`"`)
	}
}

func TestBudgetsAndCosts(t *testing.T) {
	cmds := &mockCommander{}
	router := newTestRouter(cmds, &mockQuerier{})

	assert.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/v1/projects/prj-001/budgets",
		map[string]any{"phase": "design", "category": "labor", "budgetedAmount": 1000}).Code)
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/v1/projects/prj-001/budgets",
		map[string]any{"phase": "build", "category": "labor", "budgetedAmount": 1000}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPost, "/v1/projects/prj-001/budgets",
		map[string]any{"phase": "build"}).Code)

	w := doRequest(router, http.MethodPost, "/v1/projects/prj-001/costs",
		map[string]any{"phase": "build", "category": "labor", "amount": 250.5, "incurredAt": "2026-03-04"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "prj-001", cmds.lastCost.ProjectID)
	require.NotNil(t, cmds.lastCost.IncurredAt)
	assert.Equal(t, date("2026-03-04"), *cmds.lastCost.IncurredAt)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPost, "/v1/projects/prj-001/costs",
		map[string]any{"phase": "build", "category": "labor", "amount": 0}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPost, "/v1/projects/prj-001/costs",
		map[string]any{"phase": "build", "category": "labor", "amount": 10, "kind": "estimated"}).Code)
}

func TestTasks(t *testing.T) {
	var got cqrs.CompleteTaskCommand
	cmds := &mockCommander{completeTaskFn: func(cmd cqrs.CompleteTaskCommand) (*models.ProjectTask, error) {
		got = cmd
		if cmd.TaskID == "tsk-done" {
			return nil, apperr.Conflict("task is already completed")
		}
		return &models.ProjectTask{ID: cmd.TaskID}, nil
	}}
	router := newTestRouter(cmds, &mockQuerier{})

	assert.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/v1/projects/prj-001/tasks",
		map[string]any{"name": "Survey", "budgetedCost": 600}).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodPost, "/v1/projects/prj-001/tasks",
		map[string]any{"name": "Survey", "assigneeResourceId": "res-404"}).Code)

	w := doRequest(router, http.MethodPost, "/v1/projects/prj-001/tasks/tsk-001/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, got.CompletedAt)

	w = doRequest(router, http.MethodPost, "/v1/projects/prj-001/tasks/tsk-001/complete", map[string]any{"completedAt": "2026-03-05"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, date("2026-03-05"), *got.CompletedAt)

	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/v1/projects/prj-001/tasks/tsk-done/complete", nil).Code)
}

func TestEarnedValueAndAnalysis(t *testing.T) {
	q := &mockQuerier{}
	router := newTestRouter(&mockCommander{}, q)

	w := doRequest(router, http.MethodGet, "/v1/projects/prj-001/earned-value?asOf=2026-03-15", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, date("2026-03-15"), q.lastAsOf)
	assert.Contains(t, w.Body.String(), `"asOf":"2026-03-15"`)

	w = doRequest(router, http.MethodGet, "/v1/projects/prj-001/cost-analysis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, q.lastAsOf.IsZero())

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/projects/prj-001/earned-value?asOf=yesterday", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/projects/prj-001/cost-analysis?asOf=2026-13-01", nil).Code)
}

func TestAllocate(t *testing.T) {
	week := date("2026-03-09")
	conflicts := []scheduling.Conflict{{
		Type:         scheduling.ConflictWeeklyHours,
		WeekStarting: &week,
		Message:      "Week of 2026-03-09 would reach 45.0h, over the 40.0h limit",
	}}
	tests := []struct {
		name           string
		body           any
		allocateFn     func(cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "allocated",
			body: map[string]any{"resourceId": "res-001", "startDate": "2026-03-09", "endDate": "2026-03-13", "hoursPerDay": 4},
			allocateFn: func(cmd cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error) {
				if cmd.ProjectID != "prj-001" || cmd.HoursPerDay != 4 {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return &models.ResourceAllocation{ID: "alc-001", Status: models.AllocationPlanned}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "conflicts",
			body: map[string]any{"resourceId": "res-001", "startDate": "2026-03-09", "endDate": "2026-03-13", "hoursPerDay": 8},
			allocateFn: func(cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error) {
				return nil, &command.AllocationConflictError{Conflicts: conflicts}
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"type":"overallocation"`,
		},
		{name: "resource required", body: map[string]any{"hoursPerDay": 4}, expectedStatus: http.StatusBadRequest},
		{name: "too many hours", body: map[string]any{"resourceId": "res-001", "hoursPerDay": 25}, expectedStatus: http.StatusBadRequest},
		{name: "bad status", body: map[string]any{"resourceId": "res-001", "hoursPerDay": 4, "status": "completed"}, expectedStatus: http.StatusBadRequest},
		{
			name: "unknown resource",
			body: map[string]any{"resourceId": "res-404", "startDate": "2026-03-09", "endDate": "2026-03-13", "hoursPerDay": 4},
			allocateFn: func(cqrs.AllocateResourceCommand) (*models.ResourceAllocation, error) {
				return nil, apperr.NotFound("resource")
			},
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockCommander{allocateFn: tt.allocateFn}, &mockQuerier{})
			w := doRequest(router, http.MethodPost, "/v1/projects/prj-001/allocations", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
		})
	}
}

func TestResources(t *testing.T) {
	q := &mockQuerier{}
	router := newTestRouter(&mockCommander{}, q)

	assert.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/v1/resources",
		map[string]any{"name": "Dana", "role": "engineer", "maxHoursPerWeek": 40}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPost, "/v1/resources",
		map[string]any{"name": "Dana", "role": "engineer", "maxHoursPerWeek": 200}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPost, "/v1/resources",
		map[string]any{"name": "Dana", "maxHoursPerWeek": 40}).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPatch, "/v1/resources/res-001",
		map[string]any{"status": "on_leave"}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPatch, "/v1/resources/res-001",
		map[string]any{"status": "retired"}).Code)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/v1/resources", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/v1/resources/res-001", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/resources/res-404", nil).Code)
}

func TestCapacityAndWorkload(t *testing.T) {
	q := &mockQuerier{}
	router := newTestRouter(&mockCommander{}, q)

	w := doRequest(router, http.MethodGet, "/v1/resources/capacity?from=2026-03-09&to=2026-03-22", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cqrs.ResourceRangeQuery{OrganizationID: "org-001", From: date("2026-03-09"), To: date("2026-03-22")}, q.lastRange)

	w = doRequest(router, http.MethodGet, "/v1/resources/workload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, q.lastRange.From.IsZero())
	assert.True(t, q.lastRange.To.IsZero())

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/resources/capacity?from=soon", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/resources/workload?from=2026-03-22&to=2026-03-09", nil).Code)
}

func TestUpdateAllocationStatus(t *testing.T) {
	cmds := &mockCommander{statusFn: func(cmd cqrs.UpdateAllocationStatusCommand) (*models.ResourceAllocation, error) {
		if cmd.Status == models.AllocationPlanned {
			return nil, apperr.Unprocessable("cannot move allocation from %s to %s", "confirmed", cmd.Status)
		}
		return &models.ResourceAllocation{ID: cmd.AllocationID, Status: cmd.Status, CreatedAt: time.Now()}, nil
	}}
	router := newTestRouter(cmds, &mockQuerier{})

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPatch, "/v1/allocations/alc-001", map[string]any{"status": "confirmed"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, doRequest(router, http.MethodPatch, "/v1/allocations/alc-001", map[string]any{"status": "planned"}).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPatch, "/v1/allocations/alc-001", map[string]any{"status": "paused"}).Code)
}
