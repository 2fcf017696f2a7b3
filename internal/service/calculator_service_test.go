package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaguard/aquaguard/internal/calculator"
)

func TestCalculateUsageEndpoint(t *testing.T) {
	env := setupTestServer(t)

	var result calculator.UsageResult
	status := env.doJSON(t, http.MethodPost, "/api/calculator/usage", "", map[string]int{
		"showerMinutesPerDay": 10,
		"toiletFlushesPerDay": 5,
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 125, result.Daily)
	assert.Equal(t, 45625, result.Yearly)
	assert.Equal(t, "good", result.Rating.Level)

	var body errorBody
	status = env.doJSON(t, http.MethodPost, "/api/calculator/usage", "", map[string]int{"toiletFlushesPerDay": 21}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Len(t, body.Errors, 1)
}

func TestPreviewSavingsEndpoint(t *testing.T) {
	env := setupTestServer(t)

	var resp struct {
		Commitments           []string `json:"commitments"`
		DailyWaterSavedLiters int      `json:"dailyWaterSavedLiters"`
	}
	status := env.doJSON(t, http.MethodPost, "/api/calculator/savings", "", map[string]any{
		"commitments": []string{"rainwater", "spread-awareness", "rainwater"},
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 14, resp.DailyWaterSavedLiters)
	assert.Equal(t, []string{"rainwater", "spread-awareness"}, resp.Commitments)

	status, _ = env.do(t, http.MethodPost, "/api/calculator/savings", "", map[string]any{"commitments": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)

	n, err := env.store.CountPledges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
