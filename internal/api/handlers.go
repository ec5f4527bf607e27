package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"scoutgate/internal/models"
	"scoutgate/internal/scout"
	"scoutgate/internal/version"
	"time"
)

// Handlers contains HTTP handlers for the scoutgate API
type Handlers struct {
	service scout.ServiceInterface
	version version.Info
	started time.Time
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithVersion sets the build info reported by the health endpoint.
func WithVersion(info version.Info) HandlerOption {
	return func(h *Handlers) {
		h.version = info
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(service scout.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		service: service,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// VerifyPassword exchanges the admin password for a session credential
// POST /api/v1/auth/verify
func (h *Handlers) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	cred, err := h.service.IssueCredential(r.Context(), req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.NewTokenResponse(cred.Token, cred.ExpiresAt))
}

// RevokeToken invalidates the caller's credential
// DELETE /api/v1/auth/token
func (h *Handlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	h.service.RevokeCredential(r.Context(), tokenFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// RunScan runs a quota-gated scan for a credential holder
// POST /api/v1/scan
func (h *Handlers) RunScan(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RunGated(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, &models.ScanResponse{
		Success: true,
		Message: fmt.Sprintf("Scan completed, %d new products", len(report.Products)),
		Report:  report,
	})
}

// ScanStatus reports quota usage without consuming any
// GET /api/v1/scan/status
func (h *Handlers) ScanStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.QuotaStatus(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, &models.QuotaStatusResponse{
		HourlyCount: status.HourlyCount,
		DailyCount:  status.DailyCount,
		HourlyLimit: status.Limits.Hourly,
		DailyLimit:  status.Limits.Daily,
		Durable:     status.Durable,
	})
}

// RunWeekly runs the scheduled scan unless one ran recently
// POST /api/v1/cron/weekly
func (h *Handlers) RunWeekly(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunScheduled(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := &models.ScheduledRunResponse{Success: true, Skipped: result.Skipped}
	if !result.LastRun.IsZero() {
		lastRun := result.LastRun
		resp.LastRun = &lastRun
	}
	if result.Skipped {
		resp.Message = "Skipped: a scheduled scan already ran recently"
	} else {
		resp.Message = "Scheduled scan completed"
		resp.ProductCount = len(result.Report.Products)
		resp.Date = result.Report.Date
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// HealthCheck reports service health
// GET /health
// The service stays up without its store, so an unreachable store reports
// degraded with a 200 rather than failing the health check.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version
	response.Uptime = time.Since(h.started).Round(time.Second).String()
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	if err := h.service.CheckStore(r.Context()); err != nil {
		response.Status = models.StatusDegraded
		response.AddComponent("store", models.StatusDegraded, "Store unavailable, using in-process fallback: "+err.Error())
		response.AddMetric("durable", false)
	} else {
		response.AddComponent("store", models.StatusHealthy, "Store is operational")
		response.AddMetric("durable", true)
	}

	if h.version.InstanceID != "" {
		response.AddMetric("instance_id", h.version.InstanceID)
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeServiceError maps service errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var quotaErr *scout.QuotaError
	if errors.As(err, &quotaErr) {
		h.writeJSONResponse(w, http.StatusTooManyRequests, &models.QuotaExceededResponse{
			Error:       quotaErr.Decision.Message,
			Message:     quotaErr.Decision.Message,
			Code:        models.ErrorCodeRateLimitExceeded,
			HourlyCount: quotaErr.Decision.HourlyCount,
			DailyCount:  quotaErr.Decision.DailyCount,
			HourlyLimit: quotaErr.Limits.Hourly,
			DailyLimit:  quotaErr.Limits.Daily,
		})
		return
	}

	var svcErr *scout.ServiceError
	if errors.As(err, &svcErr) {
		// Wrapped causes stay in the log; clients only see the message.
		h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	slog.Error("Unexpected service error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSON(w, statusCode, models.NewErrorResponse(message, errorCode))
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; log and give up.
		slog.Error("Error encoding JSON response", "error", err)
	}
}
