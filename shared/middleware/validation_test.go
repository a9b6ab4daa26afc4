package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
)

type sampleRequest struct {
	Name   string  `json:"name" validate:"required"`
	Email  string  `json:"email" validate:"required,email"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Kind   string  `json:"kind" validate:"omitempty,oneof=income expense"`
}

func TestValidateRequest(t *testing.T) {
	assert.Nil(t, ValidateRequest(sampleRequest{Name: "a", Email: "a@b.co", Amount: 1}))

	errs := ValidateRequest(sampleRequest{Email: "nope", Kind: "gift"})
	require.Len(t, errs, 4)
	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "required", byField["Name"].Type)
	assert.Equal(t, "Invalid email format", byField["Email"].Message)
	assert.Equal(t, "Value must be greater than 0", byField["Amount"].Message)
	assert.Equal(t, "Value must be one of: income expense", byField["Kind"].Message)
}

func TestBindAndValidate(t *testing.T) {
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var req sampleRequest
		if !BindAndValidate(c, &req) {
			return
		}
		c.Status(http.StatusCreated)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"fails validation", `{"name":"a"}`, http.StatusBadRequest},
		{"ok", `{"name":"a","email":"a@b.co","amount":3}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRespondWithDomainError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", apperr.NotFound("invoice"), http.StatusNotFound, "Invoice not found"},
		{"forbidden", apperr.Forbidden("you can only access your own organization"), http.StatusForbidden, "You can only access your own organization"},
		{"conflict", fmt.Errorf("create: %w", apperr.Conflict("sku already exists")), http.StatusConflict, "Create: sku already exists"},
		{"invalid", apperr.Invalid("dueDate before issueDate"), http.StatusBadRequest, "DueDate before issueDate"},
		{"unprocessable", apperr.Unprocessable("insufficient stock"), http.StatusUnprocessableEntity, "Insufficient stock"},
		{"unauthorized", apperr.Unauthorized("invalid credentials"), http.StatusUnauthorized, "Invalid credentials"},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, "Failed to do thing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondWithDomainError(c, tt.err, "Failed to do thing")
			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["message"])
		})
	}
}
