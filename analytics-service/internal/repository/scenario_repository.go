package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type ScenarioRepository struct {
	db *sql.DB
}

func NewScenarioRepository(db *sql.DB) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

func (r *ScenarioRepository) Save(ctx context.Context, s *models.Scenario) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, organization_id, user_id, name, type, inputs, results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.OrganizationID, s.UserID, s.Name, s.Type, []byte(s.Inputs), []byte(s.Results), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	return nil
}

// List returns saved scenarios, newest first.
func (r *ScenarioRepository) List(ctx context.Context, q cqrs.ListScenariosQuery) ([]models.Scenario, error) {
	query := `
		SELECT id, organization_id, user_id, name, type, inputs, results, created_at
		FROM scenarios WHERE organization_id = $1`
	args := []any{q.OrganizationID}
	if q.Type != "" {
		args = append(args, q.Type)
		query += " AND type = $2"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	scenarios := []models.Scenario{}
	for rows.Next() {
		var (
			s               models.Scenario
			inputs, results []byte
		)
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.UserID, &s.Name, &s.Type, &inputs, &results, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		s.Inputs = inputs
		s.Results = results
		scenarios = append(scenarios, s)
	}
	return scenarios, rows.Err()
}

func (r *ScenarioRepository) Count(ctx context.Context, orgID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenarios WHERE organization_id = $1`, orgID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count scenarios: %w", err)
	}
	return n, nil
}
