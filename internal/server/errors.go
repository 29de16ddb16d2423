package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/taxledger/internal/document/domain"
	ledgerdomain "github.com/smallbiznis/taxledger/internal/ledger/domain"
	taxdomain "github.com/smallbiznis/taxledger/internal/tax/domain"
	"github.com/smallbiznis/taxledger/pkg/db/pagination"
	"github.com/smallbiznis/taxledger/pkg/money"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrSeedInProgress = errors.New("seed_in_progress")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client receives.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var docErrs documentdomain.ValidationErrors
	if errors.As(err, &docErrs) && len(docErrs) > 0 {
		out := make([]ValidationError, 0, len(docErrs))
		for _, e := range docErrs {
			out = append(out, ValidationError{Field: e.Field, Code: e.Code, Message: e.Message})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  out,
		}
	}
	var docErr *documentdomain.ValidationError
	if errors.As(err, &docErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Field: docErr.Field, Code: docErr.Code, Message: docErr.Message}},
		}
	}

	if field, ok := validationField(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Field: field, Code: err.Error(), Message: err.Error()}},
		}
	}

	var notConfigured *ledgerdomain.AccountNotConfiguredError
	switch {
	case errors.As(err, &notConfigured):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "account_not_configured",
			Code:    string(notConfigured.Role),
			Message: notConfigured.Error(),
		}
	case errors.Is(err, ledgerdomain.ErrAccountNotConfigured):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "account_not_configured",
			Message: err.Error(),
		}
	case errors.Is(err, ledgerdomain.ErrUnbalancedPosting):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "unbalanced_posting",
			Message: "internal server error",
		}
	case errors.Is(err, documentdomain.ErrDuplicateNumber),
		errors.Is(err, taxdomain.ErrDuplicateTaxCode),
		errors.Is(err, ledgerdomain.ErrDuplicateAccount):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: "conflict",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, documentdomain.ErrNotFound),
		errors.Is(err, taxdomain.ErrNotFound),
		errors.Is(err, ledgerdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrSeedInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: "chart seeding already in progress",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "timeout",
			Message: "request timed out",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// validationField maps sentinel input errors to the request field they
// describe.
func validationField(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "request", true
	case errors.Is(err, documentdomain.ErrInvalidOrganization),
		errors.Is(err, taxdomain.ErrInvalidOrganization),
		errors.Is(err, ledgerdomain.ErrInvalidOrganization):
		return "org_id", true
	case errors.Is(err, documentdomain.ErrInvalidID),
		errors.Is(err, taxdomain.ErrInvalidID):
		return "id", true
	case errors.Is(err, documentdomain.ErrInvalidDirection):
		return "direction", true
	case errors.Is(err, documentdomain.ErrInvalidCurrency),
		errors.Is(err, ledgerdomain.ErrInvalidCurrency):
		return "currency", true
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrNegativeAmount):
		return "amount", true
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "page_token", true
	case errors.Is(err, taxdomain.ErrInvalidName),
		errors.Is(err, ledgerdomain.ErrInvalidName):
		return "name", true
	case errors.Is(err, taxdomain.ErrInvalidTaxCode),
		errors.Is(err, ledgerdomain.ErrInvalidCode):
		return "code", true
	case errors.Is(err, taxdomain.ErrInvalidTaxType):
		return "tax_type", true
	case errors.Is(err, taxdomain.ErrInvalidTaxRate):
		return "rate", true
	case errors.Is(err, taxdomain.ErrInvalidWithholdingBase):
		return "withholding_base", true
	case errors.Is(err, taxdomain.ErrCompoundWithholding):
		return "is_compound", true
	case errors.Is(err, taxdomain.ErrUnknownTaxRule),
		errors.Is(err, taxdomain.ErrTaxRuleDisabled):
		return "tax_codes", true
	case errors.Is(err, ledgerdomain.ErrInvalidRole):
		return "role", true
	case errors.Is(err, ledgerdomain.ErrInvalidAccountType):
		return "type", true
	case errors.Is(err, ledgerdomain.ErrInvalidAccount):
		return "account_code", true
	case errors.Is(err, ledgerdomain.ErrInvalidWindow):
		return "effective_to", true
	case errors.Is(err, ledgerdomain.ErrEmptyPosting):
		return "items", true
	default:
		return "", false
	}
}
