package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ItemRepository stores the item catalogue and stock locations.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, organization_id, sku, name, tracking_type, valuation_method, unit_cost, reorder_point,
	reorder_quantity, lead_time_days, lead_time_stddev, ordering_cost, created_at, updated_at`

func (r *ItemRepository) CreateItem(ctx context.Context, it *models.InventoryItem) error {
	query := `INSERT INTO inventory_items (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(ctx, query,
		it.ID, it.OrganizationID, it.SKU, it.Name, it.TrackingType, it.ValuationMethod, it.UnitCost, it.ReorderPoint,
		it.ReorderQuantity, it.LeadTimeDays, it.LeadTimeStdDev, it.OrderingCost, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("sku %q already exists", it.SKU)
		}
		return fmt.Errorf("failed to create inventory item: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetItem(ctx context.Context, orgID, id string) (*models.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = $1 AND organization_id = $2`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("inventory item")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}
	return it, nil
}

func (r *ItemRepository) ListItems(ctx context.Context, orgID string) ([]models.InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE organization_id = $1 ORDER BY sku`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	defer rows.Close()

	items := []models.InventoryItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *ItemRepository) UpdateItem(ctx context.Context, it *models.InventoryItem) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET name = $3, valuation_method = $4, unit_cost = $5, reorder_point = $6, reorder_quantity = $7,
			lead_time_days = $8, lead_time_stddev = $9, ordering_cost = $10, updated_at = $11
		WHERE id = $1 AND organization_id = $2
	`, it.ID, it.OrganizationID, it.Name, it.ValuationMethod, it.UnitCost, it.ReorderPoint, it.ReorderQuantity,
		it.LeadTimeDays, it.LeadTimeStdDev, it.OrderingCost, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update inventory item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.NotFound("inventory item")
	}
	return nil
}

func scanItem(row interface{ Scan(...any) error }) (*models.InventoryItem, error) {
	var it models.InventoryItem
	err := row.Scan(&it.ID, &it.OrganizationID, &it.SKU, &it.Name, &it.TrackingType, &it.ValuationMethod, &it.UnitCost,
		&it.ReorderPoint, &it.ReorderQuantity, &it.LeadTimeDays, &it.LeadTimeStdDev, &it.OrderingCost, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

const locationColumns = `id, organization_id, name, code, is_default, created_at`

// CreateLocation inserts a location. The first location of an organization
// becomes its default; a new default replaces the previous one.
func (r *ItemRepository) CreateLocation(ctx context.Context, loc *models.Location) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var first bool
		err := tx.QueryRowContext(ctx,
			`SELECT NOT EXISTS (SELECT 1 FROM inventory_locations WHERE organization_id = $1)`, loc.OrganizationID).Scan(&first)
		if err != nil {
			return fmt.Errorf("failed to check locations: %w", err)
		}
		if first {
			loc.IsDefault = true
		} else if loc.IsDefault {
			if err := clearDefault(ctx, tx, loc.OrganizationID); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO inventory_locations (`+locationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			loc.ID, loc.OrganizationID, loc.Name, loc.Code, loc.IsDefault, loc.CreatedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("location code %q already exists", loc.Code)
			}
			return fmt.Errorf("failed to create location: %w", err)
		}
		return nil
	})
}

// SetDefaultLocation moves the organization's default to the location.
func (r *ItemRepository) SetDefaultLocation(ctx context.Context, orgID, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := clearDefault(ctx, tx, orgID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE inventory_locations SET is_default = TRUE WHERE id = $1 AND organization_id = $2`, id, orgID)
		if err != nil {
			return fmt.Errorf("failed to set default location: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return apperr.NotFound("location")
		}
		return nil
	})
}

func clearDefault(ctx context.Context, tx *sql.Tx, orgID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE inventory_locations SET is_default = FALSE WHERE organization_id = $1 AND is_default`, orgID)
	if err != nil {
		return fmt.Errorf("failed to clear default location: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetLocation(ctx context.Context, orgID, id string) (*models.Location, error) {
	return r.location(ctx, `SELECT `+locationColumns+` FROM inventory_locations WHERE id = $1 AND organization_id = $2`, id, orgID)
}

func (r *ItemRepository) DefaultLocation(ctx context.Context, orgID string) (*models.Location, error) {
	return r.location(ctx, `SELECT `+locationColumns+` FROM inventory_locations WHERE organization_id = $1 AND is_default`, orgID)
}

func (r *ItemRepository) location(ctx context.Context, query string, args ...any) (*models.Location, error) {
	var loc models.Location
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&loc.ID, &loc.OrganizationID, &loc.Name, &loc.Code, &loc.IsDefault, &loc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("location")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &loc, nil
}

func (r *ItemRepository) ListLocations(ctx context.Context, orgID string) ([]models.Location, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+locationColumns+` FROM inventory_locations WHERE organization_id = $1 ORDER BY code`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.OrganizationID, &loc.Name, &loc.Code, &loc.IsDefault, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}
