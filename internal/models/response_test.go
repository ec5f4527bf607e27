package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResponse(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse("Credential expired", ErrorCodeUnauthorized)

	assert.Equal(t, "error", resp.Error)
	assert.Equal(t, "Credential expired", resp.Message)
	assert.Equal(t, ErrorCodeUnauthorized, resp.Code)
	assert.False(t, resp.Timestamp.Before(before))
}

func TestNewTokenResponse(t *testing.T) {
	expiresAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	resp := NewTokenResponse("tok", expiresAt)

	assert.True(t, resp.Success)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, expiresAt.UnixMilli(), resp.ExpiresAt)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"expiresAt":1767323045000`)
}

func TestHealthCheckResponse(t *testing.T) {
	resp := NewHealthCheckResponse(StatusHealthy)
	resp.AddComponent("store", StatusDegraded, "store unavailable")
	resp.AddMetric("durable_store", false)

	assert.Equal(t, StatusHealthy, resp.Status)
	require.Contains(t, resp.Components, "store")
	assert.Equal(t, StatusDegraded, resp.Components["store"].Status)
	assert.Equal(t, "store unavailable", resp.Components["store"].Message)
	assert.Equal(t, false, resp.Metrics["durable_store"])
}

func TestQuotaExceededResponse_JSON(t *testing.T) {
	resp := QuotaExceededResponse{
		Error:       "limit",
		Message:     "limit",
		Code:        ErrorCodeRateLimitExceeded,
		HourlyCount: 10,
		DailyCount:  12,
		HourlyLimit: 10,
		DailyLimit:  20,
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(10), decoded["hourlyCount"])
	assert.Equal(t, float64(12), decoded["dailyCount"])
	assert.Equal(t, float64(20), decoded["dailyLimit"])
}
