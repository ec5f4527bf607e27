package scout

import (
	"fmt"
	"net/http"
	"scoutgate/internal/models"
	"scoutgate/internal/quota"
)

// ServiceError represents errors from the scout service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// QuotaError is returned when a gated scan is denied by the quota limiter.
type QuotaError struct {
	Decision quota.Decision
	Limits   quota.Limits
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s (hourly %d/%d, daily %d/%d)", e.Decision.Message,
		e.Decision.HourlyCount, e.Limits.Hourly, e.Decision.DailyCount, e.Limits.Daily)
}

// Error constructors for common service errors

func NewInvalidRequestError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUpstreamError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUpstreamFailure,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}
