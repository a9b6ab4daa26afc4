package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/tax-service/internal/payroll"
)

type PayrollCommander interface {
	CreateEmployee(context.Context, cqrs.CreateEmployeeCommand) (*models.Employee, error)
	CalculatePayroll(context.Context, cqrs.CalculatePayrollCommand) (*models.PayrollCalculation, error)
}

type PayrollQuerier interface {
	ListEmployees(ctx context.Context, orgID string) ([]models.Employee, error)
	GetEmployee(ctx context.Context, orgID, id string) (*models.Employee, error)
	Quarterly(context.Context, cqrs.QuarterlyPayrollQuery) (*payroll.Form941, error)
	Annual(context.Context, cqrs.AnnualPayrollQuery) (*payroll.Form940, error)
	WageStatements(context.Context, cqrs.AnnualPayrollQuery) (*payroll.WageStatements, error)
	StateCompliance(context.Context, cqrs.StateComplianceQuery) (*payroll.Compliance, error)
}

type PayrollHandler struct {
	commands PayrollCommander
	queries  PayrollQuerier
}

func NewPayrollHandler(commands PayrollCommander, queries PayrollQuerier) *PayrollHandler {
	return &PayrollHandler{commands: commands, queries: queries}
}

type CreateEmployeeRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Email        string  `json:"email" validate:"required,email"`
	State        string  `json:"state" validate:"required,len=2"`
	City         string  `json:"city" validate:"omitempty,max=100"`
	County       string  `json:"county" validate:"omitempty,max=100"`
	AnnualSalary float64 `json:"annualSalary" validate:"gt=0"`
	PayFrequency string  `json:"payFrequency" validate:"required,oneof=weekly biweekly semimonthly monthly"`
	FilingStatus string  `json:"filingStatus" validate:"required,oneof=single married_joint married_separate"`
}

type CalculatePayrollRequest struct {
	EmployeeID string      `json:"employeeId" validate:"required"`
	GrossPay   *float64    `json:"grossPay" validate:"omitempty,gt=0"`
	PayDate    models.Date `json:"payDate"`
}

func (h *PayrollHandler) CreateEmployee(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CreateEmployeeRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	e, err := h.commands.CreateEmployee(c.Request.Context(), cqrs.CreateEmployeeCommand{
		OrganizationID: orgID,
		Name:           req.Name,
		Email:          req.Email,
		State:          req.State,
		City:           req.City,
		County:         req.County,
		AnnualSalary:   req.AnnualSalary,
		PayFrequency:   req.PayFrequency,
		FilingStatus:   req.FilingStatus,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to create employee")
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *PayrollHandler) ListEmployees(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	employees, err := h.queries.ListEmployees(c.Request.Context(), orgID)
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to list employees")
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees})
}

func (h *PayrollHandler) GetEmployee(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	e, err := h.queries.GetEmployee(c.Request.Context(), orgID, c.Param("employeeId"))
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to get employee")
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *PayrollHandler) Calculate(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)

	var req CalculatePayrollRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	calc, err := h.commands.CalculatePayroll(c.Request.Context(), cqrs.CalculatePayrollCommand{
		OrganizationID: orgID,
		EmployeeID:     req.EmployeeID,
		GrossPay:       req.GrossPay,
		PayDate:        req.PayDate,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to calculate payroll")
		return
	}
	c.JSON(http.StatusCreated, calc)
}

// intQuery reads an optional integer query parameter; absent means 0.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func (h *PayrollHandler) Quarterly(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	year, ok := intQuery(c, "year")
	if !ok {
		return
	}
	quarter, ok := intQuery(c, "quarter")
	if !ok {
		return
	}
	f, err := h.queries.Quarterly(c.Request.Context(), cqrs.QuarterlyPayrollQuery{OrganizationID: orgID, Year: year, Quarter: quarter})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to build quarterly summary")
		return
	}
	c.JSON(http.StatusOK, f)
}

func annual[T any](fn func(context.Context, cqrs.AnnualPayrollQuery) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, _ := middleware.GetOrganizationID(c)
		year, ok := intQuery(c, "year")
		if !ok {
			return
		}
		report, err := fn(c.Request.Context(), cqrs.AnnualPayrollQuery{OrganizationID: orgID, Year: year})
		if err != nil {
			middleware.RespondWithDomainError(c, err, "Failed to build annual summary")
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (h *PayrollHandler) Compliance(c *gin.Context) {
	orgID, _ := middleware.GetOrganizationID(c)
	state := c.Query("state")
	if state == "" {
		middleware.RespondWithError(c, http.StatusBadRequest, "state is required")
		return
	}
	report, err := h.queries.StateCompliance(c.Request.Context(), cqrs.StateComplianceQuery{OrganizationID: orgID, State: state})
	if err != nil {
		middleware.RespondWithDomainError(c, err, "Failed to build compliance report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// Register mounts employee and payroll routes. Mutations go on writes.
func (h *PayrollHandler) Register(g, writes *gin.RouterGroup) {
	g.GET("/employees", h.ListEmployees)
	g.GET("/employees/:employeeId", h.GetEmployee)
	writes.POST("/employees", h.CreateEmployee)
	writes.POST("/payroll/calculate", h.Calculate)
	g.GET("/payroll/quarterly", h.Quarterly)
	g.GET("/payroll/futa", annual(h.queries.Annual))
	g.GET("/payroll/w2", annual(h.queries.WageStatements))
	g.GET("/payroll/compliance", h.Compliance)
}
