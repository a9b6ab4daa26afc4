package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
)

var validate = validator.New()

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type BadRequestErrorResponse struct {
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

func ValidateRequest(obj any) []ValidationError {
	var validationErrors []ValidationError

	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Field: "", Message: err.Error(), Type: "invalid"}}
	}
	for _, err := range fieldErrs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: getErrorMsg(err),
			Type:    err.Tag(),
		})
	}

	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "gte":
		return "Value must be greater than or equal to " + err.Param()
	case "lt":
		return "Value must be less than " + err.Param()
	case "lte":
		return "Value must be less than or equal to " + err.Param()
	case "oneof":
		return "Value must be one of: " + err.Param()
	case "len":
		return "Value must have length " + err.Param()
	case "gtfield", "gtefield":
		return "Value must be after " + err.Param()
	case "uuid", "uuid4":
		return "Value must be a UUID"
	case "dive":
		return "Invalid list entry"
	default:
		return "Invalid value"
	}
}

// BindAndValidate decodes the JSON body into req and runs struct validation,
// writing the 400 response itself when either step fails.
func BindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := ValidateRequest(req); validationErrors != nil {
		RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Invalid request data",
		Details: validationErrors,
	})
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"message": message,
	})
}

// RespondWithDomainError maps apperr kinds onto HTTP statuses. Anything
// unrecognised becomes a 500 carrying fallback, never the raw error text.
func RespondWithDomainError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		RespondWithError(c, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, apperr.ErrForbidden):
		RespondWithError(c, http.StatusForbidden, capitalize(apperr.Message(err)))
	case errors.Is(err, apperr.ErrConflict):
		RespondWithError(c, http.StatusConflict, capitalize(apperr.Message(err)))
	case errors.Is(err, apperr.ErrInvalid):
		RespondWithError(c, http.StatusBadRequest, capitalize(apperr.Message(err)))
	case errors.Is(err, apperr.ErrUnauthorized):
		RespondWithError(c, http.StatusUnauthorized, capitalize(apperr.Message(err)))
	case errors.Is(err, apperr.ErrUnprocessable):
		RespondWithError(c, http.StatusUnprocessableEntity, capitalize(apperr.Message(err)))
	default:
		if logger := requestLogger(c); logger != nil {
			logger.Error(fallback, zap.Error(err))
		}
		RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-32) + s[1:]
}
