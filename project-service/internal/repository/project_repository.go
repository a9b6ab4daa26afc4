package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ProjectRepository stores projects with their budget lines, costs and tasks.
// Child rows are addressed through their project, which carries the tenant.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, organization_id, name, code, start_date, end_date, total_budget, status, created_at, updated_at`

func (r *ProjectRepository) CreateProject(ctx context.Context, p *models.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.OrganizationID, p.Name, database.NullString(p.Code), p.StartDate, p.EndDate,
		p.TotalBudget, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("project code %q already exists", p.Code)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetProject(ctx context.Context, orgID, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND organization_id = $2`
	p, err := scanProject(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("project")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context, q cqrs.ListProjectsQuery) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE organization_id = $1`
	args := []any{q.OrganizationID}
	if q.Status != "" {
		args = append(args, q.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY start_date, name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) UpdateProject(ctx context.Context, p *models.Project) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $3, start_date = $4, end_date = $5, total_budget = $6, status = $7, updated_at = $8
		WHERE id = $1 AND organization_id = $2
	`, p.ID, p.OrganizationID, p.Name, p.StartDate, p.EndDate, p.TotalBudget, p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.NotFound("project")
	}
	return nil
}

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var (
		p    models.Project
		code sql.NullString
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &code, &p.StartDate, &p.EndDate,
		&p.TotalBudget, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Code = code.String
	return &p, nil
}

// CreateBudget adds a budget line. A second line for the same phase and
// category is a conflict.
func (r *ProjectRepository) CreateBudget(ctx context.Context, b *models.ProjectBudget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_budgets (id, project_id, phase, category, budgeted_amount)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, b.ProjectID, b.Phase, b.Category, b.BudgetedAmount)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("a budget for phase %q and category %q already exists", b.Phase, b.Category)
		}
		if database.IsForeignKeyViolation(err) {
			return apperr.NotFound("project")
		}
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

func (r *ProjectRepository) ListBudgets(ctx context.Context, projectID string) ([]models.ProjectBudget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, phase, category, budgeted_amount
		FROM project_budgets WHERE project_id = $1 ORDER BY phase, category
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []models.ProjectBudget{}
	for rows.Next() {
		var b models.ProjectBudget
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Phase, &b.Category, &b.BudgetedAmount); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *ProjectRepository) CreateCost(ctx context.Context, c *models.ProjectCost) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_costs (id, project_id, phase, category, amount, kind, incurred_at, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.ProjectID, c.Phase, c.Category, c.Amount, c.Kind, c.IncurredAt, database.NullString(c.Description), c.CreatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperr.NotFound("project")
		}
		return fmt.Errorf("failed to record cost: %w", err)
	}
	return nil
}

func (r *ProjectRepository) ListCosts(ctx context.Context, projectID string) ([]models.ProjectCost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, phase, category, amount, kind, incurred_at, description, created_at
		FROM project_costs WHERE project_id = $1 ORDER BY incurred_at, created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list costs: %w", err)
	}
	defer rows.Close()

	costs := []models.ProjectCost{}
	for rows.Next() {
		var (
			c    models.ProjectCost
			desc sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Phase, &c.Category, &c.Amount, &c.Kind, &c.IncurredAt, &desc, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost: %w", err)
		}
		c.Description = desc.String
		costs = append(costs, c)
	}
	return costs, rows.Err()
}

const taskColumns = `t.id, t.project_id, t.name, t.phase, t.budgeted_cost, t.planned_start, t.planned_end, t.assignee_resource_id, t.completed_at`

func (r *ProjectRepository) CreateTask(ctx context.Context, t *models.ProjectTask) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_tasks (id, project_id, name, phase, budgeted_cost, planned_start, planned_end, assignee_resource_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.ProjectID, t.Name, t.Phase, t.BudgetedCost, t.PlannedStart, t.PlannedEnd,
		database.NullString(t.AssigneeResourceID), optionalDate(t.CompletedAt))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperr.NotFound("project or assignee")
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetTask(ctx context.Context, projectID, id string) (*models.ProjectTask, error) {
	query := `SELECT ` + taskColumns + ` FROM project_tasks t WHERE t.id = $1 AND t.project_id = $2`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id, projectID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("task")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func (r *ProjectRepository) ListTasks(ctx context.Context, projectID string) ([]models.ProjectTask, error) {
	query := `SELECT ` + taskColumns + ` FROM project_tasks t WHERE t.project_id = $1 ORDER BY t.planned_start, t.name`
	return r.queryTasks(ctx, "failed to list tasks", query, projectID)
}

// OpenAssignedTasks returns every incomplete task of the organization that has
// an assignee.
func (r *ProjectRepository) OpenAssignedTasks(ctx context.Context, orgID string) ([]models.ProjectTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM project_tasks t JOIN projects p ON p.id = t.project_id
		WHERE p.organization_id = $1 AND t.completed_at IS NULL AND t.assignee_resource_id IS NOT NULL
		ORDER BY t.planned_end
	`
	return r.queryTasks(ctx, "failed to list open tasks", query, orgID)
}

func (r *ProjectRepository) queryTasks(ctx context.Context, msg, query string, args ...any) ([]models.ProjectTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	defer rows.Close()

	tasks := []models.ProjectTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CompleteTask stamps the completion date once. Completing a finished task is
// a conflict.
func (r *ProjectRepository) CompleteTask(ctx context.Context, projectID, id string, completedAt models.Date) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE project_tasks SET completed_at = $3 WHERE id = $1 AND project_id = $2 AND completed_at IS NULL`,
		id, projectID, completedAt)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.Conflict("task already completed")
	}
	return nil
}

func scanTask(row interface{ Scan(...any) error }) (*models.ProjectTask, error) {
	var (
		t         models.ProjectTask
		assignee  sql.NullString
		completed models.Date
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Phase, &t.BudgetedCost, &t.PlannedStart, &t.PlannedEnd, &assignee, &completed)
	if err != nil {
		return nil, err
	}
	t.AssigneeResourceID = assignee.String
	if !completed.IsZero() {
		t.CompletedAt = &completed
	}
	return &t, nil
}

func optionalDate(d *models.Date) any {
	if d == nil {
		return nil
	}
	return *d
}
