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

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

// ---- mock implementations ----

type mockTransactionCommander struct {
	createFn func(cqrs.CreateTransactionCommand) (*models.Transaction, error)
	voidFn   func(cqrs.VoidTransactionCommand) (*models.TransactionView, error)
}

func (m *mockTransactionCommander) CreateTransaction(_ context.Context, cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockTransactionCommander) VoidTransaction(_ context.Context, cmd cqrs.VoidTransactionCommand) (*models.TransactionView, error) {
	if m.voidFn != nil {
		return m.voidFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockTransactionQuerier struct {
	getFn  func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
	listFn func(cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
}

func (m *mockTransactionQuerier) GetTransaction(_ context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockTransactionQuerier) ListTransactions(_ context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func fakeAuthTx(orgID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", "usr-001")
		c.Set("organizationId", orgID)
		c.Set("role", "member")
		c.Next()
	}
}

func newTxTestRouter(cmds TransactionCommander, qrys TransactionQuerier, authOrgID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuthTx(authOrgID))
	h := NewTransactionHandler(cmds, qrys)
	v1 := r.Group("/v1/accounts/:accountNumber/transactions")
	h.Register(v1, v1, v1)
	return r
}

func txDoRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
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

// ---- test data ----

var txTestTransaction = &models.Transaction{
	ID: "txn-001", AccountNumber: "01234567", OrganizationID: "org-001", UserID: "usr-001",
	Amount: 50.00, Currency: "USD", Type: "income", Category: "sales",
	OccurredAt: time.Now(), CreatedAt: time.Now(),
}

var txTestView = &models.TransactionView{
	ID: "txn-001", AccountNumber: "01234567", OrganizationID: "org-001", UserID: "usr-001",
	Amount: 50.00, Currency: "USD", Type: "income", Category: "sales",
	OccurredAt: time.Now(), CreatedAt: time.Now(),
}

func txIncomeBody() map[string]any {
	return map[string]any{"amount": 50.0, "currency": "USD", "type": "income", "category": "sales", "reference": "INV-202601-ABC123"}
}

func txExpenseBody() map[string]any {
	return map[string]any{"amount": 25.0, "type": "expense", "category": "software", "jurisdiction": "US-CA"}
}

// ---- tests ----

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		accountNum     string
		body           any
		createFn       func(cqrs.CreateTransactionCommand) (*models.Transaction, error)
		expectedStatus int
	}{
		{
			name:           "success - record income",
			accountNum:     "01234567",
			body:           txIncomeBody(),
			createFn:       func(cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) { return txTestTransaction, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:       "success - record expense with caller identity",
			accountNum: "01234567",
			body:       txExpenseBody(),
			createFn: func(cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
				if cmd.OrganizationID != "org-001" || cmd.UserID != "usr-001" || cmd.Jurisdiction != "US-CA" {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return txTestTransaction, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:       "success - explicit occurrence time is passed through",
			accountNum: "01234567",
			body:       map[string]any{"amount": 10.0, "type": "expense", "category": "meals", "occurredAt": "2026-01-15T12:00:00Z"},
			createFn: func(cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
				if !cmd.OccurredAt.Equal(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)) {
					return nil, fmt.Errorf("unexpected occurredAt %v", cmd.OccurredAt)
				}
				return txTestTransaction, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:       "forbidden - account of another organization",
			accountNum: "09999999",
			body:       txIncomeBody(),
			createFn: func(cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
				return nil, apperr.Forbidden("account belongs to another organization")
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:       "not found - account does not exist",
			accountNum: "00000000",
			body:       txIncomeBody(),
			createFn: func(cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
				return nil, apperr.NotFound("account")
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - missing required fields",
			accountNum:     "01234567",
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - amount is zero",
			accountNum:     "01234567",
			body:           map[string]any{"amount": 0, "type": "income", "category": "sales"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - legacy deposit type",
			accountNum:     "01234567",
			body:           map[string]any{"amount": 10, "type": "deposit", "category": "sales"},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockTransactionCommander{createFn: tt.createFn}
			router := newTxTestRouter(cmds, &mockTransactionQuerier{}, "org-001")
			url := "/v1/accounts/" + tt.accountNum + "/transactions"
			w := txDoRequest(router, http.MethodPost, url, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListTransactions(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		listFn         func(cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
		expectedStatus int
	}{
		{
			name: "success - list transactions",
			url:  "/v1/accounts/01234567/transactions",
			listFn: func(q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
				return []models.TransactionView{*txTestView}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "success - filters are parsed",
			url:  "/v1/accounts/01234567/transactions?from=2026-01-01&to=2026-01-31&type=expense&category=software",
			listFn: func(q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
				wantTo := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
				if !q.From.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) || !q.To.Equal(wantTo) ||
					q.Type != "expense" || q.Category != "software" || q.OrganizationID != "org-001" {
					return nil, fmt.Errorf("unexpected query %+v", q)
				}
				return []models.TransactionView{}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - malformed from",
			url:            "/v1/accounts/01234567/transactions?from=yesterday",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - unknown type",
			url:            "/v1/accounts/01234567/transactions?type=transfer",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "not found - account of another organization",
			url:  "/v1/accounts/09999999/transactions",
			listFn: func(q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
				return nil, apperr.NotFound("account")
			},
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{listFn: tt.listFn}, "org-001")
			w := txDoRequest(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetTransaction(t *testing.T) {
	tests := []struct {
		name           string
		accountNum     string
		transactionID  string
		getFn          func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
		expectedStatus int
	}{
		{
			name:       "success - fetch transaction",
			accountNum: "01234567", transactionID: "txn-001",
			getFn:          func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) { return txTestView, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:       "not found - transaction does not exist",
			accountNum: "01234567", transactionID: "txn-999",
			getFn: func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
				return nil, apperr.NotFound("transaction")
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:       "not found - account of another organization",
			accountNum: "09999999", transactionID: "txn-001",
			getFn: func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
				return nil, apperr.NotFound("account")
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:       "internal error - store failure",
			accountNum: "01234567", transactionID: "txn-001",
			getFn: func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
				return nil, fmt.Errorf("connection reset")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{getFn: tt.getFn}, "org-001")
			url := "/v1/accounts/" + tt.accountNum + "/transactions/" + tt.transactionID
			w := txDoRequest(router, http.MethodGet, url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestVoidTransaction(t *testing.T) {
	voided := time.Now()
	tests := []struct {
		name           string
		voidFn         func(cqrs.VoidTransactionCommand) (*models.TransactionView, error)
		expectedStatus int
	}{
		{
			name: "success - void transaction",
			voidFn: func(cmd cqrs.VoidTransactionCommand) (*models.TransactionView, error) {
				v := *txTestView
				v.VoidedAt = &voided
				return &v, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "conflict - already voided",
			voidFn: func(cmd cqrs.VoidTransactionCommand) (*models.TransactionView, error) {
				return nil, apperr.Conflict("transaction txn-001 is already voided")
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "forbidden - account of another organization",
			voidFn: func(cmd cqrs.VoidTransactionCommand) (*models.TransactionView, error) {
				return nil, apperr.Forbidden("account belongs to another organization")
			},
			expectedStatus: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{voidFn: tt.voidFn}, &mockTransactionQuerier{}, "org-001")
			w := txDoRequest(router, http.MethodPost, "/v1/accounts/01234567/transactions/txn-001/void", nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
