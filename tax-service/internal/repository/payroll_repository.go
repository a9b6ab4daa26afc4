package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/database"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// PayrollRepository stores employees and their persisted pay runs.
type PayrollRepository struct {
	db *sql.DB
}

func NewPayrollRepository(db *sql.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

const employeeColumns = `id, organization_id, name, email, state, city, county, annual_salary, pay_frequency, filing_status, created_at`

func (r *PayrollRepository) CreateEmployee(ctx context.Context, e *models.Employee) error {
	query := `INSERT INTO employees (` + employeeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.OrganizationID, e.Name, e.Email, e.State, database.NullString(e.City), database.NullString(e.County),
		e.AnnualSalary, e.PayFrequency, e.FilingStatus, e.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("employee with email %s already exists", e.Email)
		}
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

func (r *PayrollRepository) GetEmployee(ctx context.Context, orgID, id string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 AND organization_id = $2`
	e, err := scanEmployee(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("employee")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns the organization's employees, optionally limited to
// one state.
func (r *PayrollRepository) ListEmployees(ctx context.Context, orgID, state string) ([]models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE organization_id = $1`
	args := []any{orgID}
	if state != "" {
		args = append(args, state)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []models.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

func scanEmployee(row interface{ Scan(...any) error }) (*models.Employee, error) {
	var (
		e            models.Employee
		city, county sql.NullString
	)
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.Email, &e.State, &city, &county,
		&e.AnnualSalary, &e.PayFrequency, &e.FilingStatus, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.City, e.County = city.String, county.String
	return &e, nil
}

// YTDGross sums the employee's gross pay from the start of the pay date's
// year up to, but excluding, the pay date.
func (r *PayrollRepository) YTDGross(ctx context.Context, employeeID string, payDate models.Date) (float64, error) {
	yearStart := time.Date(payDate.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	var ytd float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(gross_pay), 0)
		FROM payroll_calculations
		WHERE employee_id = $1 AND pay_date >= $2 AND pay_date < $3
	`, employeeID, yearStart, payDate.Time).Scan(&ytd)
	if err != nil {
		return 0, fmt.Errorf("failed to sum year-to-date gross: %w", err)
	}
	return ytd, nil
}

const calculationColumns = `id, organization_id, employee_id, pay_date, gross_pay, ytd_gross_before,
	federal_income_tax, social_security_tax, medicare_tax, additional_medicare_tax, state_income_tax,
	state_disability_tax, city_tax, county_tax, total_employee_taxes, net_pay,
	employer_social_security, employer_medicare, futa_tax, suta_tax, total_employer_taxes, created_at`

func (r *PayrollRepository) SaveCalculation(ctx context.Context, c *models.PayrollCalculation) error {
	query := `INSERT INTO payroll_calculations (` + calculationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OrganizationID, c.EmployeeID, c.PayDate, c.GrossPay, c.YTDGrossBefore,
		c.FederalIncomeTax, c.SocialSecurityTax, c.MedicareTax, c.AdditionalMedicareTax, c.StateIncomeTax,
		c.StateDisabilityTax, c.CityTax, c.CountyTax, c.TotalEmployeeTaxes, c.NetPay,
		c.EmployerSocialSecurity, c.EmployerMedicare, c.FUTATax, c.SUTATax, c.TotalEmployerTaxes, c.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperr.NotFound("employee")
		}
		return fmt.Errorf("failed to save payroll calculation: %w", err)
	}
	return nil
}

// Calculations returns the organization's pay runs with pay dates in [from, to).
func (r *PayrollRepository) Calculations(ctx context.Context, orgID string, from, to time.Time) ([]models.PayrollCalculation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+calculationColumns+`
		FROM payroll_calculations
		WHERE organization_id = $1 AND pay_date >= $2 AND pay_date < $3
		ORDER BY pay_date, created_at`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll calculations: %w", err)
	}
	defer rows.Close()

	calcs := []models.PayrollCalculation{}
	for rows.Next() {
		var c models.PayrollCalculation
		err := rows.Scan(&c.ID, &c.OrganizationID, &c.EmployeeID, &c.PayDate, &c.GrossPay, &c.YTDGrossBefore,
			&c.FederalIncomeTax, &c.SocialSecurityTax, &c.MedicareTax, &c.AdditionalMedicareTax, &c.StateIncomeTax,
			&c.StateDisabilityTax, &c.CityTax, &c.CountyTax, &c.TotalEmployeeTaxes, &c.NetPay,
			&c.EmployerSocialSecurity, &c.EmployerMedicare, &c.FUTATax, &c.SUTATax, &c.TotalEmployerTaxes, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll calculation: %w", err)
		}
		calcs = append(calcs, c)
	}
	return calcs, rows.Err()
}
