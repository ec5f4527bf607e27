// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Expiry instants are epoch milliseconds, matching browser clients
// - Helper methods for easy response construction
package models

import (
	"time"
)

// TokenResponse is returned after a successful password verification.
type TokenResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // epoch milliseconds
}

// ScanResponse carries the report of a gated scan.
type ScanResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Report  *Report `json:"report"`
}

// QuotaExceededResponse is the 429 body for a denied scan.
//
// Error and Message carry the same fixed user-facing text so clients reading
// either field see it.
type QuotaExceededResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Code        string `json:"code"`
	HourlyCount int    `json:"hourlyCount"`
	DailyCount  int    `json:"dailyCount"`
	HourlyLimit int    `json:"hourlyLimit"`
	DailyLimit  int    `json:"dailyLimit"`
}

// QuotaStatusResponse reports current usage without consuming quota.
type QuotaStatusResponse struct {
	HourlyCount int  `json:"hourlyCount"`
	DailyCount  int  `json:"dailyCount"`
	HourlyLimit int  `json:"hourlyLimit"`
	DailyLimit  int  `json:"dailyLimit"`
	Durable     bool `json:"durable"`
}

// ScheduledRunResponse is returned by the scheduled-caller endpoint.
type ScheduledRunResponse struct {
	Success      bool       `json:"success"`
	Skipped      bool       `json:"skipped"`
	Message      string     `json:"message"`
	ProductCount int        `json:"productCount"`
	Date         string     `json:"date,omitempty"`
	LastRun      *time.Time `json:"lastRun,omitempty"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: missing or malformed input
// - Authorization errors: bad password, missing or expired credential
// - Quota errors: see QuotaExceededResponse
// - Internal errors: server-side issues
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Running on in-process fallback state
	StatusUnknown   = "unknown"   // Status indeterminate
)

// Standard HTTP Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Maps to standard HTTP status codes
// - Machine-readable for client error handling
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"     // 400: Invalid request data
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Authentication required
	ErrorCodeForbidden          = "FORBIDDEN"           // 403: Permission denied
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED" // 429: Quota or throttle exhausted
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
	ErrorCodeUpstreamFailure    = "UPSTREAM_FAILURE"    // 502: Scanner or notifier failed
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// NewTokenResponse converts an expiry instant to epoch milliseconds.
func NewTokenResponse(token string, expiresAt time.Time) *TokenResponse {
	return &TokenResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.UnixMilli(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
