package query

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/costing"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/project-service/internal/scheduling"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type projectReader interface {
	GetProject(ctx context.Context, orgID, id string) (*models.Project, error)
	ListProjects(ctx context.Context, q cqrs.ListProjectsQuery) ([]models.Project, error)
	ListBudgets(ctx context.Context, projectID string) ([]models.ProjectBudget, error)
	ListCosts(ctx context.Context, projectID string) ([]models.ProjectCost, error)
	ListTasks(ctx context.Context, projectID string) ([]models.ProjectTask, error)
	OpenAssignedTasks(ctx context.Context, orgID string) ([]models.ProjectTask, error)
}

type resourceReader interface {
	GetResource(ctx context.Context, orgID, id string) (*models.Resource, error)
	ListResources(ctx context.Context, orgID string) ([]models.Resource, error)
	Allocations(ctx context.Context, orgID string, from, to models.Date) ([]models.ResourceAllocation, error)
	ProjectAllocations(ctx context.Context, projectID string) ([]models.ResourceAllocation, error)
}

// Range defaults and bounds for capacity and workload reports.
const (
	DefaultRangeDays = 28
	MaxRangeDays     = 366
)

var projectStatuses = map[string]bool{
	"":                      true,
	models.ProjectPlanning:  true,
	models.ProjectActive:    true,
	models.ProjectOnHold:    true,
	models.ProjectCompleted: true,
}

type ProjectQueryService struct {
	projects  projectReader
	resources resourceReader
	now       func() time.Time
}

func NewProjectQueryService(projects projectReader, resources resourceReader) *ProjectQueryService {
	return &ProjectQueryService{projects: projects, resources: resources, now: time.Now}
}

func (s *ProjectQueryService) today() models.Date {
	return models.NewDate(s.now())
}

func (s *ProjectQueryService) ListProjects(ctx context.Context, q cqrs.ListProjectsQuery) ([]models.Project, error) {
	if !projectStatuses[q.Status] {
		return nil, apperr.Invalid("unknown project status %q", q.Status)
	}
	return s.projects.ListProjects(ctx, q)
}

func (s *ProjectQueryService) GetProject(ctx context.Context, orgID, id string) (*models.Project, error) {
	return s.projects.GetProject(ctx, orgID, id)
}

func (s *ProjectQueryService) ListCosts(ctx context.Context, orgID, projectID string) ([]models.ProjectCost, error) {
	if _, err := s.projects.GetProject(ctx, orgID, projectID); err != nil {
		return nil, err
	}
	return s.projects.ListCosts(ctx, projectID)
}

func (s *ProjectQueryService) ListTasks(ctx context.Context, orgID, projectID string) ([]models.ProjectTask, error) {
	if _, err := s.projects.GetProject(ctx, orgID, projectID); err != nil {
		return nil, err
	}
	return s.projects.ListTasks(ctx, projectID)
}

func (s *ProjectQueryService) ProjectAllocations(ctx context.Context, orgID, projectID string) ([]models.ResourceAllocation, error) {
	if _, err := s.projects.GetProject(ctx, orgID, projectID); err != nil {
		return nil, err
	}
	return s.resources.ProjectAllocations(ctx, projectID)
}

// ledger is everything the costing calculators need about one project.
type ledger struct {
	project *models.Project
	budgets []models.ProjectBudget
	costs   []models.ProjectCost
	tasks   []models.ProjectTask
}

func (s *ProjectQueryService) load(ctx context.Context, orgID, projectID string, withBudgets, withTasks bool) (*ledger, error) {
	p, err := s.projects.GetProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	l := &ledger{project: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		l.costs, err = s.projects.ListCosts(gctx, projectID)
		return err
	})
	if withBudgets {
		g.Go(func() error {
			var err error
			l.budgets, err = s.projects.ListBudgets(gctx, projectID)
			return err
		})
	}
	if withTasks {
		g.Go(func() error {
			var err error
			l.tasks, err = s.projects.ListTasks(gctx, projectID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return l, nil
}

// BudgetStatus reports every budget line of the project with its spending.
func (s *ProjectQueryService) BudgetStatus(ctx context.Context, orgID, projectID string) ([]costing.BudgetLine, error) {
	l, err := s.load(ctx, orgID, projectID, true, false)
	if err != nil {
		return nil, err
	}
	return costing.BudgetStatus(l.budgets, l.costs), nil
}

// EarnedValue measures the project at asOf, or today when asOf is zero.
func (s *ProjectQueryService) EarnedValue(ctx context.Context, orgID, projectID string, asOf models.Date) (*costing.EarnedValue, error) {
	l, err := s.load(ctx, orgID, projectID, false, true)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	ev := costing.EarnedValueAt(*l.project, l.tasks, l.costs, asOf)
	return &ev, nil
}

func (s *ProjectQueryService) CostAnalysis(ctx context.Context, orgID, projectID string, asOf models.Date) (*costing.Analysis, error) {
	l, err := s.load(ctx, orgID, projectID, true, true)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	a := costing.Analyze(*l.project, l.budgets, l.costs, l.tasks, asOf)
	return &a, nil
}

func (s *ProjectQueryService) ListResources(ctx context.Context, orgID string) ([]models.Resource, error) {
	return s.resources.ListResources(ctx, orgID)
}

func (s *ProjectQueryService) GetResource(ctx context.Context, orgID, id string) (*models.Resource, error) {
	return s.resources.GetResource(ctx, orgID, id)
}

// window fills in a missing range: from defaults to the Monday of this week
// and to covers four weeks from there.
func (s *ProjectQueryService) window(q cqrs.ResourceRangeQuery) (models.Date, models.Date, error) {
	from, to := q.From, q.To
	if from.IsZero() {
		from = scheduling.WeekStart(s.now())
	}
	if to.IsZero() {
		to = models.NewDate(from.AddDate(0, 0, DefaultRangeDays-1))
	}
	if to.Before(from.Time) {
		return from, to, apperr.Invalid("to must not be before from")
	}
	if from.DaysUntil(to) >= MaxRangeDays {
		return from, to, apperr.Invalid("range must not exceed %d days", MaxRangeDays)
	}
	return from, to, nil
}

func (s *ProjectQueryService) resourcesAndAllocations(ctx context.Context, orgID string, from, to models.Date) ([]models.Resource, []models.ResourceAllocation, error) {
	var (
		resources   []models.Resource
		allocations []models.ResourceAllocation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = s.resources.ListResources(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		allocations, err = s.resources.Allocations(gctx, orgID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return resources, allocations, nil
}

type CapacityReport struct {
	From      models.Date           `json:"from"`
	To        models.Date           `json:"to"`
	Resources []scheduling.Capacity `json:"resources"`
}

func (s *ProjectQueryService) Capacity(ctx context.Context, q cqrs.ResourceRangeQuery) (*CapacityReport, error) {
	from, to, err := s.window(q)
	if err != nil {
		return nil, err
	}
	resources, allocations, err := s.resourcesAndAllocations(ctx, q.OrganizationID, from, to)
	if err != nil {
		return nil, err
	}
	report := &CapacityReport{From: from, To: to, Resources: make([]scheduling.Capacity, 0, len(resources))}
	for _, res := range resources {
		report.Resources = append(report.Resources, scheduling.CapacityOf(res, allocations, from, to))
	}
	return report, nil
}

type WorkloadReport struct {
	From      models.Date           `json:"from"`
	To        models.Date           `json:"to"`
	AsOf      models.Date           `json:"asOf"`
	Resources []scheduling.Workload `json:"resources"`
}

func (s *ProjectQueryService) Workload(ctx context.Context, q cqrs.ResourceRangeQuery) (*WorkloadReport, error) {
	from, to, err := s.window(q)
	if err != nil {
		return nil, err
	}
	resources, allocations, err := s.resourcesAndAllocations(ctx, q.OrganizationID, from, to)
	if err != nil {
		return nil, err
	}
	tasks, err := s.projects.OpenAssignedTasks(ctx, q.OrganizationID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	report := &WorkloadReport{From: from, To: to, AsOf: today, Resources: make([]scheduling.Workload, 0, len(resources))}
	for _, res := range resources {
		report.Resources = append(report.Resources, scheduling.WorkloadOf(res, allocations, tasks, from, to, today))
	}
	return report, nil
}
