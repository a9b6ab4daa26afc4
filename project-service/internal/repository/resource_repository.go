package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ResourceRepository stores resources and their allocations to projects.
type ResourceRepository struct {
	db *sql.DB
}

func NewResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `id, organization_id, name, role, hourly_rate, max_hours_per_week, status, availability, created_at`

func (r *ResourceRepository) CreateResource(ctx context.Context, res *models.Resource) error {
	availability, err := json.Marshal(res.Availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO resources (`+resourceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.ID, res.OrganizationID, res.Name, res.Role, res.HourlyRate, res.MaxHoursPerWeek, res.Status, availability, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (r *ResourceRepository) GetResource(ctx context.Context, orgID, id string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1 AND organization_id = $2`
	res, err := scanResource(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("resource")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

func (r *ResourceRepository) ListResources(ctx context.Context, orgID string) ([]models.Resource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	resources := []models.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, *res)
	}
	return resources, rows.Err()
}

func (r *ResourceRepository) UpdateResource(ctx context.Context, res *models.Resource) error {
	availability, err := json.Marshal(res.Availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE resources
		SET name = $3, role = $4, hourly_rate = $5, max_hours_per_week = $6, status = $7, availability = $8
		WHERE id = $1 AND organization_id = $2
	`, res.ID, res.OrganizationID, res.Name, res.Role, res.HourlyRate, res.MaxHoursPerWeek, res.Status, availability)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.NotFound("resource")
	}
	return nil
}

func scanResource(row interface{ Scan(...any) error }) (*models.Resource, error) {
	var (
		res          models.Resource
		availability []byte
	)
	err := row.Scan(&res.ID, &res.OrganizationID, &res.Name, &res.Role, &res.HourlyRate, &res.MaxHoursPerWeek,
		&res.Status, &availability, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	res.Availability = models.WeeklyAvailability{}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &res.Availability); err != nil {
			return nil, fmt.Errorf("failed to decode availability: %w", err)
		}
	}
	return &res, nil
}

// AllocationCheck decides whether a new allocation fits next to the
// resource's existing active allocations.
type AllocationCheck func(res *models.Resource, existing []models.ResourceAllocation) error

// Allocate locks the resource row, loads its active allocations around the
// requested range and inserts the allocation only when check accepts it.
// Concurrent allocations of the same resource are serialized by the lock.
func (r *ResourceRepository) Allocate(ctx context.Context, a *models.ResourceAllocation, check AllocationCheck) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1 AND organization_id = $2 FOR UPDATE`
		res, err := scanResource(tx.QueryRowContext(ctx, query, a.ResourceID, a.OrganizationID))
		if err == sql.ErrNoRows {
			return apperr.NotFound("resource")
		}
		if err != nil {
			return fmt.Errorf("failed to lock resource: %w", err)
		}

		// Weekly limits look at whole weeks, so widen the range by six days.
		rows, err := tx.QueryContext(ctx, `
			SELECT `+allocationColumns+`
			FROM resource_allocations
			WHERE resource_id = $1 AND status IN ('planned', 'confirmed', 'in_progress')
			  AND start_date <= $3::date + 6 AND end_date >= $2::date - 6
			ORDER BY start_date
		`, a.ResourceID, a.StartDate, a.EndDate)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}
		existing, err := collectAllocations(rows)
		if err != nil {
			return err
		}
		if err := check(res, existing); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO resource_allocations (`+allocationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, a.OrganizationID, a.ProjectID, a.ResourceID, a.StartDate, a.EndDate, a.HoursPerDay, a.Status, a.CreatedAt)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return apperr.NotFound("project")
			}
			return fmt.Errorf("failed to create allocation: %w", err)
		}
		return nil
	})
}

const allocationColumns = `id, organization_id, project_id, resource_id, start_date, end_date, hours_per_day, status, created_at`

func (r *ResourceRepository) GetAllocation(ctx context.Context, orgID, id string) (*models.ResourceAllocation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+allocationColumns+` FROM resource_allocations WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}
	allocations, err := collectAllocations(rows)
	if err != nil {
		return nil, err
	}
	if len(allocations) == 0 {
		return nil, apperr.NotFound("allocation")
	}
	return &allocations[0], nil
}

// Allocations returns the organization's allocations overlapping the
// inclusive range [from, to], in any status.
func (r *ResourceRepository) Allocations(ctx context.Context, orgID string, from, to models.Date) ([]models.ResourceAllocation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+allocationColumns+`
		FROM resource_allocations
		WHERE organization_id = $1 AND start_date <= $3 AND end_date >= $2
		ORDER BY start_date
	`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	return collectAllocations(rows)
}

func (r *ResourceRepository) ProjectAllocations(ctx context.Context, projectID string) ([]models.ResourceAllocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+allocationColumns+` FROM resource_allocations WHERE project_id = $1 ORDER BY start_date`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project allocations: %w", err)
	}
	return collectAllocations(rows)
}

// SetAllocationStatus moves an allocation from one status to another. A
// concurrent change in between is reported as a conflict.
func (r *ResourceRepository) SetAllocationStatus(ctx context.Context, orgID, id, from, to string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE resource_allocations SET status = $4 WHERE id = $1 AND organization_id = $2 AND status = $3`,
		id, orgID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.Conflict("allocation status changed concurrently")
	}
	return nil
}

func collectAllocations(rows *sql.Rows) ([]models.ResourceAllocation, error) {
	defer rows.Close()
	allocations := []models.ResourceAllocation{}
	for rows.Next() {
		var a models.ResourceAllocation
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.ProjectID, &a.ResourceID, &a.StartDate, &a.EndDate,
			&a.HoursPerDay, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}
