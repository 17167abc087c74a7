package handlers

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/domain/models"
)

// APIError is the body of every failed request.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: message, Code: code}})
}

// respondError maps domain errors to HTTP statuses. Unknown errors are logged
// and hidden behind a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var recomputeErr *models.RecomputeError
	switch {
	case errors.Is(err, models.ErrValidation):
		abortWithError(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, models.ErrDuplicateRecord):
		abortWithError(c, http.StatusBadRequest, "duplicate_record", err.Error())
	case errors.Is(err, models.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		abortWithError(c, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.As(err, &recomputeErr):
		logger.Error("aggregate recompute failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "recompute_failed", "aggregates could not be rebuilt, retry later")
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// bindOptionalJSON binds like ShouldBindJSON but accepts an empty body.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bindError turns a binding failure into a ValidationError naming the first
// offending field.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewValidationError("", "invalid request body")
	}

	fe := fieldErrs[0]
	field := jsonPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(field, "is required")
	case "min":
		if fe.Kind() == reflect.Slice {
			return models.NewValidationError(field, "must contain at least %s item(s)", fe.Param())
		}
		return models.NewValidationError(field, "must be at least %s", fe.Param())
	case "max":
		return models.NewValidationError(field, "must be at most %s", fe.Param())
	case tagCalendarDate:
		return models.NewValidationError(field, "must be a calendar date in YYYY-MM-DD format")
	case tagMilkingSession:
		return models.NewValidationError(field, "must be %q or %q", models.SessionMorning, models.SessionEvening)
	default:
		return models.NewValidationError(field, "failed %s validation", fe.Tag())
	}
}

// queryError is bindError for query strings. Values that do not parse as
// numbers never reach the validator.
func queryError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return bindError(err)
	}
	return models.NewValidationError("", "invalid query parameters")
}

// jsonPath drops the struct name from a validator namespace, turning
// "BulkYieldRecordRequest.records[1].amount" into "records[1].amount".
func jsonPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func queryDate(c *gin.Context) string {
	return strings.TrimSpace(c.Query("date"))
}

func sessionParam(raw string) (models.Session, error) {
	session := models.Session(strings.ToLower(strings.TrimSpace(raw)))
	if session != "" && !session.Valid() {
		return "", models.NewValidationError("session", "must be %q or %q, got %q", models.SessionMorning, models.SessionEvening, raw)
	}
	return session, nil
}
