package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// StockRepository owns stock levels, serial numbers, batches and the movement
// log. Every stock change goes through Apply.
type StockRepository struct {
	db *sql.DB
}

func NewStockRepository(db *sql.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Delta is the signed stock change of a movement.
func Delta(m *models.InventoryTransaction) float64 {
	switch m.Type {
	case models.MovementOut, models.MovementTransferOut:
		return -m.Quantity
	default:
		return m.Quantity
	}
}

// Apply records the movements and their stock, serial and batch effects in
// one transaction. Stock never goes negative: a decrement that would is
// rejected as unprocessable, as is an outbound serial not in stock at the
// location. Receiving a serial that is already in stock is a conflict.
func (r *StockRepository) Apply(ctx context.Context, movements ...*models.InventoryTransaction) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var carried models.Date
		for _, m := range movements {
			delta := Delta(m)
			if err := insertTransaction(ctx, tx, m); err != nil {
				return err
			}
			if err := adjustStock(ctx, tx, m, delta); err != nil {
				return err
			}
			for _, serial := range m.SerialNumbers {
				if err := moveSerial(ctx, tx, m, serial, delta > 0); err != nil {
					return err
				}
			}
			if m.BatchNumber == "" {
				continue
			}
			if delta < 0 {
				expiry, err := drawBatch(ctx, tx, m, -delta)
				if err != nil {
					return err
				}
				carried = expiry
				continue
			}
			expiry := optionalDate(m.ExpiryDate)
			if expiry.IsZero() && m.Type == models.MovementTransferIn {
				expiry = carried
			}
			if err := fillBatch(ctx, tx, m, delta, expiry); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTransaction(ctx context.Context, tx *sql.Tx, m *models.InventoryTransaction) error {
	var unitPrice sql.NullFloat64
	if m.UnitPrice != 0 {
		unitPrice = sql.NullFloat64{Float64: m.UnitPrice, Valid: true}
	}
	serials := m.SerialNumbers
	if serials == nil {
		serials = []string{}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, m.ID, m.OrganizationID, m.ItemID, m.LocationID, m.Type, m.Quantity, m.UnitCost, unitPrice,
		pq.Array(serials), database.NullString(m.BatchNumber), optionalDate(m.ExpiryDate),
		database.NullString(m.Reference), database.NullString(m.TransferID), m.CreatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperr.NotFound("item or location")
		}
		return fmt.Errorf("failed to record inventory transaction: %w", err)
	}
	return nil
}

func adjustStock(ctx context.Context, tx *sql.Tx, m *models.InventoryTransaction, delta float64) error {
	if delta >= 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_levels (item_id, location_id, organization_id, quantity, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (item_id, location_id)
			DO UPDATE SET quantity = stock_levels.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		`, m.ItemID, m.LocationID, m.OrganizationID, delta, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to increase stock: %w", err)
		}
		return nil
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE stock_levels SET quantity = quantity - $3, updated_at = $4
		WHERE item_id = $1 AND location_id = $2 AND quantity >= $3
	`, m.ItemID, m.LocationID, -delta, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to decrease stock: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.Unprocessable("insufficient stock at location %s", m.LocationID)
	}
	return nil
}

func moveSerial(ctx context.Context, tx *sql.Tx, m *models.InventoryTransaction, serial string, inbound bool) error {
	if inbound {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO serial_numbers (organization_id, serial_number, item_id, location_id, status, batch_number, updated_at)
			VALUES ($1, $2, $3, $4, 'in_stock', $5, $6)
			ON CONFLICT (organization_id, serial_number) DO UPDATE
			SET item_id = EXCLUDED.item_id, location_id = EXCLUDED.location_id, status = 'in_stock',
				batch_number = EXCLUDED.batch_number, updated_at = EXCLUDED.updated_at
			WHERE serial_numbers.status <> 'in_stock'
		`, m.OrganizationID, serial, m.ItemID, m.LocationID, database.NullString(m.BatchNumber), m.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to receive serial number: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		} else if n == 0 {
			return apperr.Conflict("serial number %s is already in stock", serial)
		}
		return nil
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE serial_numbers SET status = 'sold', updated_at = $5
		WHERE organization_id = $1 AND serial_number = $2 AND item_id = $3 AND location_id = $4 AND status = 'in_stock'
	`, m.OrganizationID, serial, m.ItemID, m.LocationID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to release serial number: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if n == 0 {
		return apperr.Unprocessable("serial number %s is not in stock at location %s", serial, m.LocationID)
	}
	return nil
}

func drawBatch(ctx context.Context, tx *sql.Tx, m *models.InventoryTransaction, qty float64) (models.Date, error) {
	var expiry models.Date
	err := tx.QueryRowContext(ctx, `
		UPDATE batches SET quantity = quantity - $4
		WHERE item_id = $1 AND location_id = $2 AND batch_number = $3 AND quantity >= $4
		RETURNING expiry_date
	`, m.ItemID, m.LocationID, m.BatchNumber, qty).Scan(&expiry)
	if err == sql.ErrNoRows {
		return models.Date{}, apperr.Unprocessable("insufficient quantity in batch %s", m.BatchNumber)
	}
	if err != nil {
		return models.Date{}, fmt.Errorf("failed to draw from batch: %w", err)
	}
	return expiry, nil
}

func fillBatch(ctx context.Context, tx *sql.Tx, m *models.InventoryTransaction, qty float64, expiry models.Date) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO batches (organization_id, item_id, location_id, batch_number, quantity, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id, location_id, batch_number)
		DO UPDATE SET quantity = batches.quantity + EXCLUDED.quantity,
			expiry_date = COALESCE(EXCLUDED.expiry_date, batches.expiry_date)
	`, m.OrganizationID, m.ItemID, m.LocationID, m.BatchNumber, qty, expiry)
	if err != nil {
		return fmt.Errorf("failed to fill batch: %w", err)
	}
	return nil
}

func optionalDate(d *models.Date) models.Date {
	if d == nil {
		return models.Date{}
	}
	return *d
}

func datePtr(d models.Date) *models.Date {
	if d.IsZero() {
		return nil
	}
	return &d
}

// OnHand is the item's stock summed over every location.
func (r *StockRepository) OnHand(ctx context.Context, itemID string) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_levels WHERE item_id = $1`, itemID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum stock: %w", err)
	}
	return total, nil
}

// OnHandByItem sums stock per item for the organization.
func (r *StockRepository) OnHandByItem(ctx context.Context, orgID string) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, SUM(quantity) FROM stock_levels WHERE organization_id = $1 GROUP BY item_id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum stock: %w", err)
	}
	defer rows.Close()

	totals := map[string]float64{}
	for rows.Next() {
		var (
			itemID string
			qty    float64
		)
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan stock total: %w", err)
		}
		totals[itemID] = qty
	}
	return totals, rows.Err()
}

func (r *StockRepository) Stock(ctx context.Context, q cqrs.StockQuery) ([]models.StockLevel, error) {
	query := `SELECT item_id, location_id, quantity, updated_at FROM stock_levels WHERE organization_id = $1`
	args := []any{q.OrganizationID}
	if q.ItemID != "" {
		args = append(args, q.ItemID)
		query += fmt.Sprintf(" AND item_id = $%d", len(args))
	}
	if q.LocationID != "" {
		args = append(args, q.LocationID)
		query += fmt.Sprintf(" AND location_id = $%d", len(args))
	}
	query += " ORDER BY item_id, location_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock levels: %w", err)
	}
	defer rows.Close()

	levels := []models.StockLevel{}
	for rows.Next() {
		var l models.StockLevel
		if err := rows.Scan(&l.ItemID, &l.LocationID, &l.Quantity, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func (r *StockRepository) Serial(ctx context.Context, orgID, serial string) (*models.SerialNumber, error) {
	var (
		s     models.SerialNumber
		batch sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT serial_number, item_id, location_id, status, batch_number, updated_at
		FROM serial_numbers WHERE organization_id = $1 AND serial_number = $2
	`, orgID, serial).Scan(&s.SerialNumber, &s.ItemID, &s.LocationID, &s.Status, &batch, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("serial number")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get serial number: %w", err)
	}
	s.BatchNumber = batch.String
	return &s, nil
}

// Batches lists batches with stock left. A non-nil expiringBy keeps only
// batches that expire on or before it.
func (r *StockRepository) Batches(ctx context.Context, orgID, itemID string, expiringBy *models.Date) ([]models.Batch, error) {
	query := `SELECT item_id, location_id, batch_number, quantity, expiry_date FROM batches WHERE organization_id = $1 AND quantity > 0`
	args := []any{orgID}
	if itemID != "" {
		args = append(args, itemID)
		query += fmt.Sprintf(" AND item_id = $%d", len(args))
	}
	if expiringBy != nil {
		args = append(args, *expiringBy)
		query += fmt.Sprintf(" AND expiry_date <= $%d", len(args))
	}
	query += " ORDER BY expiry_date NULLS LAST, batch_number"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := []models.Batch{}
	for rows.Next() {
		var (
			b      models.Batch
			expiry models.Date
		)
		if err := rows.Scan(&b.ItemID, &b.LocationID, &b.BatchNumber, &b.Quantity, &expiry); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.ExpiryDate = datePtr(expiry)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

const transactionColumns = `id, organization_id, item_id, location_id, type, quantity, unit_cost, unit_price,
	serial_numbers, batch_number, expiry_date, reference, transfer_id, created_at`

// Movements lists movements oldest first. Zero From or To leaves that side
// open.
func (r *StockRepository) Movements(ctx context.Context, q cqrs.MovementsQuery) ([]models.InventoryTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM inventory_transactions WHERE organization_id = $1`
	args := []any{q.OrganizationID}
	if q.ItemID != "" {
		args = append(args, q.ItemID)
		query += fmt.Sprintf(" AND item_id = $%d", len(args))
	}
	if len(q.Types) > 0 {
		args = append(args, pq.Array(q.Types))
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory transactions: %w", err)
	}
	defer rows.Close()

	movements := []models.InventoryTransaction{}
	for rows.Next() {
		m, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory transaction: %w", err)
		}
		movements = append(movements, *m)
	}
	return movements, rows.Err()
}

func scanTransaction(row interface{ Scan(...any) error }) (*models.InventoryTransaction, error) {
	var (
		m                            models.InventoryTransaction
		unitPrice                    sql.NullFloat64
		batch, reference, transferID sql.NullString
		expiry                       models.Date
		serials                      []string
	)
	err := row.Scan(&m.ID, &m.OrganizationID, &m.ItemID, &m.LocationID, &m.Type, &m.Quantity, &m.UnitCost, &unitPrice,
		pq.Array(&serials), &batch, &expiry, &reference, &transferID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.UnitPrice = unitPrice.Float64
	m.SerialNumbers = serials
	m.BatchNumber = batch.String
	m.ExpiryDate = datePtr(expiry)
	m.Reference = reference.String
	m.TransferID = transferID.String
	return &m, nil
}
