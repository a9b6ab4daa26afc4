package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/globaltax"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/payroll"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/rules"
)

// ---- mock implementations ----

type mockPayrollCommander struct {
	createFn    func(cqrs.CreateEmployeeCommand) (*models.Employee, error)
	calculateFn func(cqrs.CalculatePayrollCommand) (*models.PayrollCalculation, error)
}

func (m *mockPayrollCommander) CreateEmployee(_ context.Context, cmd cqrs.CreateEmployeeCommand) (*models.Employee, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockPayrollCommander) CalculatePayroll(_ context.Context, cmd cqrs.CalculatePayrollCommand) (*models.PayrollCalculation, error) {
	if m.calculateFn != nil {
		return m.calculateFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockPayrollQuerier struct {
	lastQuarterly cqrs.QuarterlyPayrollQuery
	lastAnnual    cqrs.AnnualPayrollQuery
	lastState     string
}

func (m *mockPayrollQuerier) ListEmployees(context.Context, string) ([]models.Employee, error) {
	return []models.Employee{}, nil
}
func (m *mockPayrollQuerier) GetEmployee(_ context.Context, _ string, id string) (*models.Employee, error) {
	if id != "emp-001" {
		return nil, apperr.NotFound("employee")
	}
	return &models.Employee{ID: id}, nil
}
func (m *mockPayrollQuerier) Quarterly(_ context.Context, q cqrs.QuarterlyPayrollQuery) (*payroll.Form941, error) {
	m.lastQuarterly = q
	if q.Quarter < 1 || q.Quarter > 4 {
		return nil, apperr.Invalid("quarter must be between 1 and 4")
	}
	return &payroll.Form941{Year: q.Year, Quarter: q.Quarter}, nil
}
func (m *mockPayrollQuerier) Annual(_ context.Context, q cqrs.AnnualPayrollQuery) (*payroll.Form940, error) {
	m.lastAnnual = q
	return &payroll.Form940{Year: q.Year}, nil
}
func (m *mockPayrollQuerier) WageStatements(_ context.Context, q cqrs.AnnualPayrollQuery) (*payroll.WageStatements, error) {
	m.lastAnnual = q
	return &payroll.WageStatements{Year: q.Year, W2s: []payroll.W2{}}, nil
}
func (m *mockPayrollQuerier) StateCompliance(_ context.Context, q cqrs.StateComplianceQuery) (*payroll.Compliance, error) {
	m.lastState = q.State
	return &payroll.Compliance{State: q.State}, nil
}

type mockDeadlineCommander struct {
	createFn   func(cqrs.CreateDeadlineCommand) (*models.TaxDeadline, error)
	completeFn func(cqrs.CompleteDeadlineCommand) (*models.TaxDeadline, error)
}

func (m *mockDeadlineCommander) CreateDeadline(_ context.Context, cmd cqrs.CreateDeadlineCommand) (*models.TaxDeadline, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockDeadlineCommander) CompleteDeadline(_ context.Context, cmd cqrs.CompleteDeadlineCommand) (*models.TaxDeadline, error) {
	if m.completeFn != nil {
		return m.completeFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

// tableQuerier runs the real calculators against the embedded tables and
// returns empty organization reports.
type tableQuerier struct {
	global *rules.Global
	err    error
}

func (q *tableQuerier) Nexus(context.Context, string) (*globaltax.NexusReport, error) {
	return &globaltax.NexusReport{States: []globaltax.NexusStatus{}}, q.err
}
func (q *tableQuerier) DigitalServicesTax(context.Context, string) (*globaltax.DSTReport, error) {
	return &globaltax.DSTReport{Countries: []globaltax.DSTExposure{}}, q.err
}
func (q *tableQuerier) Optimization(context.Context, string) (*globaltax.OptimizationPlan, error) {
	return &globaltax.OptimizationPlan{RiskLevel: globaltax.RiskLow}, q.err
}
func (q *tableQuerier) Deadlines(context.Context, string) (*globaltax.DeadlineBoard, error) {
	return &globaltax.DeadlineBoard{}, q.err
}
func (q *tableQuerier) VAT(in globaltax.VATInput) (*globaltax.VATResult, error) {
	r, err := globaltax.VAT(q.global, in)
	return &r, err
}
func (q *tableQuerier) SalesTax(in globaltax.SalesTaxInput) (*globaltax.SalesTaxResult, error) {
	r, err := globaltax.SalesTax(q.global, in)
	return &r, err
}

// ---- test helpers ----

func fakeAuth(c *gin.Context) {
	c.Set("userId", "usr-001")
	c.Set("organizationId", "org-001")
	c.Set("role", "member")
	c.Next()
}

func newTaxTestRouter(pc PayrollCommander, pq PayrollQuerier, dc DeadlineCommander, tq TaxQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth)
	v1 := r.Group("/v1")
	NewPayrollHandler(pc, pq).Register(v1, v1)
	tax := v1.Group("/tax")
	NewTaxHandler(dc, tq).Register(tax, tax)
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

func defaultRouter() (*gin.Engine, *mockPayrollQuerier) {
	pq := &mockPayrollQuerier{}
	tq := &tableQuerier{global: &rules.MustLoad().Global}
	return newTaxTestRouter(&mockPayrollCommander{}, pq, &mockDeadlineCommander{}, tq), pq
}

// ---- tests ----

func TestCreateEmployee(t *testing.T) {
	valid := map[string]any{
		"name": "Ada", "email": "ada@example.com", "state": "CA",
		"annualSalary": 130000, "payFrequency": "biweekly", "filingStatus": "single",
	}
	with := func(k string, v any) map[string]any {
		body := map[string]any{}
		for key, val := range valid {
			body[key] = val
		}
		body[k] = v
		return body
	}
	tests := []struct {
		name           string
		body           any
		createFn       func(cqrs.CreateEmployeeCommand) (*models.Employee, error)
		expectedStatus int
	}{
		{
			name: "created",
			body: valid,
			createFn: func(cmd cqrs.CreateEmployeeCommand) (*models.Employee, error) {
				if cmd.OrganizationID != "org-001" {
					return nil, fmt.Errorf("unexpected org %s", cmd.OrganizationID)
				}
				return &models.Employee{ID: "emp-001", Name: cmd.Name}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{name: "bad frequency", body: with("payFrequency", "daily"), expectedStatus: http.StatusBadRequest},
		{name: "bad filing status", body: with("filingStatus", "widowed"), expectedStatus: http.StatusBadRequest},
		{name: "state must be a code", body: with("state", "California"), expectedStatus: http.StatusBadRequest},
		{name: "salary required", body: with("annualSalary", 0), expectedStatus: http.StatusBadRequest},
		{
			name: "duplicate email",
			body: valid,
			createFn: func(cqrs.CreateEmployeeCommand) (*models.Employee, error) {
				return nil, apperr.Conflict("employee with email ada@example.com already exists")
			},
			expectedStatus: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTaxTestRouter(&mockPayrollCommander{createFn: tt.createFn}, &mockPayrollQuerier{}, &mockDeadlineCommander{}, &tableQuerier{})
			w := doRequest(router, http.MethodPost, "/v1/employees", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestGetEmployee(t *testing.T) {
	router, _ := defaultRouter()
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/v1/employees/emp-001", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/employees/emp-404", nil).Code)
}

func TestCalculatePayroll(t *testing.T) {
	var got cqrs.CalculatePayrollCommand
	cmds := &mockPayrollCommander{calculateFn: func(cmd cqrs.CalculatePayrollCommand) (*models.PayrollCalculation, error) {
		got = cmd
		return &models.PayrollCalculation{ID: "pay-001", EmployeeID: cmd.EmployeeID, PayDate: cmd.PayDate}, nil
	}}
	router := newTaxTestRouter(cmds, &mockPayrollQuerier{}, &mockDeadlineCommander{}, &tableQuerier{})

	w := doRequest(router, http.MethodPost, "/v1/payroll/calculate", map[string]any{"employeeId": "emp-001", "grossPay": 4200, "payDate": "2026-03-13"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, got.GrossPay)
	assert.Equal(t, 4200.0, *got.GrossPay)
	assert.Equal(t, "2026-03-13", got.PayDate.String())

	w = doRequest(router, http.MethodPost, "/v1/payroll/calculate", map[string]any{"employeeId": "emp-001", "grossPay": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(router, http.MethodPost, "/v1/payroll/calculate", map[string]any{"employeeId": "emp-001", "payDate": "13/03/2026"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayrollReports(t *testing.T) {
	router, pq := defaultRouter()

	w := doRequest(router, http.MethodGet, "/v1/payroll/quarterly?year=2026&quarter=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cqrs.QuarterlyPayrollQuery{OrganizationID: "org-001", Year: 2026, Quarter: 2}, pq.lastQuarterly)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/payroll/quarterly?year=2026&quarter=7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/payroll/quarterly?year=twenty", nil).Code)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/v1/payroll/futa?year=2025", nil).Code)
	assert.Equal(t, 2025, pq.lastAnnual.Year)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/v1/payroll/w2", nil).Code)
	assert.Zero(t, pq.lastAnnual.Year, "year is left to the service when absent")

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/payroll/compliance", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/v1/payroll/compliance?state=NY", nil).Code)
	assert.Equal(t, "NY", pq.lastState)
}

func TestCalculators(t *testing.T) {
	router, _ := defaultRouter()

	w := doRequest(router, http.MethodPost, "/v1/tax/vat/calculate", map[string]any{"amount": 1000, "sellerCountry": "DE", "buyerCountry": "FR", "b2b": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var vat globaltax.VATResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vat))
	assert.True(t, vat.ReverseCharge)
	assert.Zero(t, vat.VAT)

	w = doRequest(router, http.MethodPost, "/v1/tax/vat/calculate", map[string]any{"amount": 1000, "sellerCountry": "Germany", "buyerCountry": "FR"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/v1/tax/sales-tax/calculate", map[string]any{"amount": 200, "state": "CA", "city": "Los Angeles"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st globaltax.SalesTaxResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "US-CA", st.Jurisdiction)
	assert.Equal(t, 0.0875, st.TotalRate)
	assert.Equal(t, 17.5, st.Tax)
}

func TestOrganizationReports(t *testing.T) {
	router, _ := defaultRouter()
	for _, path := range []string{"/v1/tax/nexus", "/v1/tax/dst", "/v1/tax/optimization", "/v1/tax/deadlines"} {
		t.Run(path, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}

	failing := newTaxTestRouter(&mockPayrollCommander{}, &mockPayrollQuerier{}, &mockDeadlineCommander{}, &tableQuerier{err: fmt.Errorf("db down")})
	assert.Equal(t, http.StatusInternalServerError, doRequest(failing, http.MethodGet, "/v1/tax/nexus", nil).Code)
}

func TestDeadlineRoutes(t *testing.T) {
	cmds := &mockDeadlineCommander{
		createFn: func(cmd cqrs.CreateDeadlineCommand) (*models.TaxDeadline, error) {
			return &models.TaxDeadline{ID: "tdl-001", Jurisdiction: cmd.Jurisdiction, DueDate: cmd.DueDate}, nil
		},
		completeFn: func(cmd cqrs.CompleteDeadlineCommand) (*models.TaxDeadline, error) {
			switch cmd.DeadlineID {
			case "tdl-done":
				return nil, apperr.Conflict("tax deadline already completed")
			case "tdl-other":
				return nil, apperr.Forbidden("tax deadline belongs to another organization")
			}
			return &models.TaxDeadline{ID: cmd.DeadlineID}, nil
		},
	}
	router := newTaxTestRouter(&mockPayrollCommander{}, &mockPayrollQuerier{}, cmds, &tableQuerier{})

	w := doRequest(router, http.MethodPost, "/v1/tax/deadlines", map[string]any{"jurisdiction": "US-CA", "taxType": "sales_tax", "dueDate": "2026-04-30"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = doRequest(router, http.MethodPost, "/v1/tax/deadlines", map[string]any{"jurisdiction": "US-CA", "taxType": "sales_tax"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/v1/tax/deadlines/tdl-001/complete", nil).Code)
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/v1/tax/deadlines/tdl-done/complete", nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(router, http.MethodPost, "/v1/tax/deadlines/tdl-other/complete", nil).Code)
}
