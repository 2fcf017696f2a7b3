package service

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/stats"
)

func TestPublicStatistics_EmptyCatalog(t *testing.T) {
	env := setupTestServer(t)
	status, _ := env.do(t, http.MethodPost, "/api/pledges", "", pledgeBody("Ada", "ada@example.com", false, "fix-leaks"))
	require.Equal(t, http.StatusCreated, status)

	var entries []models.StatisticEntry
	status = env.doJSON(t, http.MethodGet, "/api/statistics", "", nil, &entries)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, entries, 6)

	assert.Equal(t, stats.DefaultStatistics(), entries[:4])
	assert.Equal(t, models.KindTotalPledges, entries[4].Kind)
	assert.Equal(t, 1.0, entries[4].Value)
	assert.Equal(t, models.KindTotalWaterSavedMonthly, entries[5].Kind)
	assert.Equal(t, 750.0*30, entries[5].Value)
}

func TestStatisticsRequireAdmin(t *testing.T) {
	env := setupTestServer(t)
	userToken, _ := env.register(t, "user@example.com", "User")
	body := map[string]any{"kind": "communities_reached", "value": 12, "description": "Communities reached"}

	status, _ := env.do(t, http.MethodPost, "/api/statistics", "", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/api/statistics", userToken, body)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPut, "/api/statistics/kinds/communities_reached/value", userToken, map[string]any{"value": 3})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestStatisticCatalogLifecycle(t *testing.T) {
	env := setupTestServer(t)
	admin, _ := env.register(t, adminEmail, "Admin")

	var created models.ReferenceStatistic
	status := env.doJSON(t, http.MethodPost, "/api/statistics", admin, map[string]any{
		"kind":        "countries_represented",
		"value":       42,
		"description": "Countries with at least one pledge",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.UnitCountries, created.Unit)
	assert.True(t, created.IsActive)

	t.Run("duplicate kind conflicts", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/statistics", admin, map[string]any{
			"kind": "countries_represented", "value": 1, "description": "again",
		})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("invalid fields rejected", func(t *testing.T) {
		var body errorBody
		status := env.doJSON(t, http.MethodPost, "/api/statistics", admin, map[string]any{
			"kind": "rainfall", "value": -1, "description": "x", "unit": "gallons",
		}, &body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.ElementsMatch(t, []string{"kind", "value", "unit"}, body.fields())
	})

	t.Run("update", func(t *testing.T) {
		var updated models.ReferenceStatistic
		status := env.doJSON(t, http.MethodPut, "/api/statistics/"+created.ID, admin, map[string]any{
			"value": 44, "updateFrequency": "monthly",
		}, &updated)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 44.0, updated.Value)
		assert.Equal(t, models.FrequencyMonthly, updated.UpdateFrequency)
		assert.Equal(t, "Countries with at least one pledge", updated.Description)
	})

	t.Run("set value creates absent kind", func(t *testing.T) {
		var stat models.ReferenceStatistic
		status := env.doJSON(t, http.MethodPut, "/api/statistics/kinds/communities_reached/value", admin,
			map[string]any{"value": 7}, &stat)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 7.0, stat.Value)
		assert.Equal(t, models.UnitCommunities, stat.Unit)
		assert.Equal(t, models.PlatformSource, stat.Source)
	})

	t.Run("increment", func(t *testing.T) {
		var stat models.ReferenceStatistic
		status := env.doJSON(t, http.MethodPost, "/api/statistics/kinds/communities_reached/increment", admin, nil, &stat)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 8.0, stat.Value)

		status = env.doJSON(t, http.MethodPost, "/api/statistics/kinds/communities_reached/increment", admin,
			map[string]any{"delta": 2.5}, &stat)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 10.5, stat.Value)

		status, _ = env.do(t, http.MethodPost, "/api/statistics/kinds/communities_reached/increment", admin,
			map[string]any{"delta": -20})
		assert.Equal(t, http.StatusConflict, status)

		status, _ = env.do(t, http.MethodPost, "/api/statistics/kinds/total_pledges/increment", admin, nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = env.do(t, http.MethodPost, "/api/statistics/kinds/rainfall/increment", admin, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("global lists active by kind", func(t *testing.T) {
		var list []models.ReferenceStatistic
		status := env.doJSON(t, http.MethodGet, "/api/statistics/global", "", nil, &list)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, list, 2)
		assert.Equal(t, models.KindCommunitiesReached, list[0].Kind)
		assert.Equal(t, models.KindCountriesRepresented, list[1].Kind)
	})

	t.Run("public payload uses catalog", func(t *testing.T) {
		var entries []models.StatisticEntry
		status := env.doJSON(t, http.MethodGet, "/api/statistics", "", nil, &entries)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, entries, 4)
		assert.Equal(t, models.KindTotalPledges, entries[2].Kind)
	})

	t.Run("delete", func(t *testing.T) {
		status, _ := env.do(t, http.MethodDelete, "/api/statistics/"+created.ID, admin, nil)
		assert.Equal(t, http.StatusOK, status)

		status, _ = env.do(t, http.MethodDelete, "/api/statistics/"+created.ID, admin, nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = env.do(t, http.MethodPut, "/api/statistics/"+created.ID, admin, map[string]any{"value": 1})
		assert.Equal(t, http.StatusNotFound, status)
	})
}
