package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaguard/aquaguard/internal/middleware"
	"github.com/aquaguard/aquaguard/internal/models"
)

func pledgeBody(name, email string, anonymous bool, commitments ...string) map[string]any {
	return map[string]any{
		"displayName": name,
		"email":       email,
		"commitments": commitments,
		"isAnonymous": anonymous,
	}
}

func TestCreatePledge(t *testing.T) {
	env := setupTestServer(t)

	var pledge models.Pledge
	status := env.doJSON(t, http.MethodPost, "/api/pledges", "",
		pledgeBody("Jane Doe", "Jane.Doe@Example.COM", true,
			"shorter-showers", "fix-leaks", "full-loads", "turn-off-tap", "fix-leaks"),
		&pledge)

	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, pledge.ID)
	assert.Equal(t, models.AnonymousName, pledge.DisplayName)
	assert.Equal(t, "jane.doe@example.com", pledge.Email)
	assert.Len(t, pledge.Commitments, 4, "duplicates removed")
	assert.Equal(t, 834, pledge.DailyWaterSavedLiters)
	assert.Empty(t, pledge.SubmitterID)
	assert.False(t, pledge.CreatedAt.IsZero())

	stored, err := env.store.GetPledge(context.Background(), pledge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousName, stored.DisplayName)
}

func TestCreatePledge_Validation(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantFields []string
	}{
		{
			name:       "empty commitments",
			body:       pledgeBody("Ada", "ada@example.com", false),
			wantFields: []string{"commitments"},
		},
		{
			name:       "email without at sign",
			body:       pledgeBody("Ada", "ada.example.com", false, "fix-leaks"),
			wantFields: []string{"email"},
		},
		{
			name:       "unknown commitment",
			body:       pledgeBody("Ada", "ada@example.com", false, "fix-leaks", "bathe-less"),
			wantFields: []string{"commitments[1]"},
		},
		{
			name:       "every field invalid",
			body:       pledgeBody("", "", false),
			wantFields: []string{"displayName", "email", "commitments"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			status := env.doJSON(t, http.MethodPost, "/api/pledges", "", tt.body, &body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.ElementsMatch(t, tt.wantFields, body.fields())
		})
	}

	n, err := env.store.CountPledges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "rejected pledges are not stored")
}

func TestMyPledges(t *testing.T) {
	env := setupTestServer(t)
	aliceToken, aliceID := env.register(t, "alice@example.com", "Alice")
	bobToken, _ := env.register(t, "bob@example.com", "Bob")

	var created models.Pledge
	status := env.doJSON(t, http.MethodPost, "/api/pledges", aliceToken,
		pledgeBody("Alice", "alice@example.com", false, "rainwater"), &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, aliceID, created.SubmitterID)

	status, _ = env.do(t, http.MethodPost, "/api/pledges", "", pledgeBody("Guest", "guest@example.com", false, "fix-leaks"))
	require.Equal(t, http.StatusCreated, status)

	var mine struct {
		Pledges []models.Pledge `json:"pledges"`
	}
	status = env.doJSON(t, http.MethodGet, "/api/pledges/my-pledges", aliceToken, nil, &mine)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, mine.Pledges, 1)
	assert.Equal(t, created.ID, mine.Pledges[0].ID)
	assert.Equal(t, 14, mine.Pledges[0].DailyWaterSavedLiters)

	status = env.doJSON(t, http.MethodGet, "/api/pledges/my-pledges", bobToken, nil, &mine)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, mine.Pledges)

	status, _ = env.do(t, http.MethodGet, "/api/pledges/my-pledges", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestListPledges(t *testing.T) {
	env := setupTestServer(t)
	for i := 0; i < 3; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/pledges", "",
			pledgeBody(fmt.Sprintf("Person %d", i), fmt.Sprintf("person%d@example.com", i), false, "fix-leaks"))
		require.Equal(t, http.StatusCreated, status)
	}

	var page struct {
		Pledges []models.Pledge `json:"pledges"`
		Total   int64           `json:"total"`
	}
	status, data := env.do(t, http.MethodGet, "/api/pledges?limit=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(data), "@example.com", "public listings never include emails")

	status = env.doJSON(t, http.MethodGet, "/api/pledges?limit=2&offset=2", "", nil, &page)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, page.Pledges, 1)
	assert.Equal(t, int64(3), page.Total)

	status, _ = env.do(t, http.MethodGet, "/api/pledges?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateAndDeletePledge(t *testing.T) {
	env := setupTestServer(t)
	ownerToken, _ := env.register(t, "owner@example.com", "Owner")
	otherToken, _ := env.register(t, "other@example.com", "Other")
	adminToken, _ := env.register(t, adminEmail, "Admin")

	var pledge models.Pledge
	status := env.doJSON(t, http.MethodPost, "/api/pledges", ownerToken,
		pledgeBody("Owner", "owner@example.com", false, "fix-leaks"), &pledge)
	require.Equal(t, http.StatusCreated, status)
	path := "/api/pledges/" + pledge.ID

	t.Run("other user is forbidden", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPut, path, otherToken,
			pledgeBody("Other", "other@example.com", false, "rainwater"))
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("owner update recomputes savings", func(t *testing.T) {
		var updated models.Pledge
		status := env.doJSON(t, http.MethodPut, path, ownerToken,
			pledgeBody("Owner", "owner@example.com", true, "shorter-showers", "turn-off-tap"), &updated)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 64, updated.DailyWaterSavedLiters)
		assert.Equal(t, models.AnonymousName, updated.DisplayName)
		assert.True(t, !updated.UpdatedAt.Before(updated.CreatedAt))

		stored, err := env.store.GetPledge(context.Background(), pledge.ID)
		require.NoError(t, err)
		assert.Equal(t, 64, stored.DailyWaterSavedLiters)
	})

	t.Run("invalid update leaves pledge unchanged", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPut, path, ownerToken, pledgeBody("Owner", "owner@example.com", false))
		assert.Equal(t, http.StatusBadRequest, status)

		stored, err := env.store.GetPledge(context.Background(), pledge.ID)
		require.NoError(t, err)
		assert.Equal(t, 64, stored.DailyWaterSavedLiters)
	})

	t.Run("unauthenticated delete", func(t *testing.T) {
		status, _ := env.do(t, http.MethodDelete, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("admin delete", func(t *testing.T) {
		status, _ := env.do(t, http.MethodDelete, path, adminToken, nil)
		assert.Equal(t, http.StatusOK, status)

		status, _ = env.do(t, http.MethodDelete, path, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestAnonymousSubmissionHasNoOwner(t *testing.T) {
	env := setupTestServer(t)
	token, _ := env.register(t, "someone@example.com", "Someone")

	var pledge models.Pledge
	status := env.doJSON(t, http.MethodPost, "/api/pledges", "",
		pledgeBody("Guest", "guest@example.com", false, "fix-leaks"), &pledge)
	require.Equal(t, http.StatusCreated, status)

	status, _ = env.do(t, http.MethodDelete, "/api/pledges/"+pledge.ID, token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestPledgeSummary(t *testing.T) {
	env := setupTestServer(t)
	for _, c := range [][]string{{"shorter-showers", "fix-leaks"}, {"fix-leaks"}} {
		status, _ := env.do(t, http.MethodPost, "/api/pledges", "", pledgeBody("Ada", "ada@example.com", false, c...))
		require.Equal(t, http.StatusCreated, status)
	}

	for _, path := range []string{"/api/pledges/stats/summary", "/api/statistics/pledges"} {
		var summary models.PledgeSummary
		status := env.doJSON(t, http.MethodGet, path, "", nil, &summary)
		require.Equal(t, http.StatusOK, status, path)

		assert.Equal(t, int64(2), summary.TotalPledges)
		assert.Equal(t, int64(790+750), summary.TotalWaterSavedDaily)
		require.Len(t, summary.MonthlyPledges, 1)
		now := time.Now().UTC()
		assert.Equal(t, now.Year(), summary.MonthlyPledges[0].Year)
		assert.Equal(t, int64(2), summary.MonthlyPledges[0].Count)
		assert.Equal(t, []models.CommitmentCount{
			{Commitment: "fix-leaks", Count: 2},
			{Commitment: "shorter-showers", Count: 1},
		}, summary.PledgeBreakdown)
	}
}

func TestConcurrentPledges(t *testing.T) {
	env := setupTestServer(t)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			var p models.Pledge
			status := env.doJSON(t, http.MethodPost, "/api/pledges", "",
				pledgeBody(fmt.Sprintf("P%d", i), fmt.Sprintf("p%d@example.com", i), false, "full-loads"), &p)
			assert.Equal(t, http.StatusCreated, status)
			ids[i] = p.ID
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.NotEmpty(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestPledgeRateLimit(t *testing.T) {
	env := setupTestServer(t, func(c *Config) {
		c.RateLimiter = middleware.NewRateLimiter(1, time.Hour)
	})

	body := pledgeBody("Ada", "ada@example.com", false, "fix-leaks")
	status, _ := env.do(t, http.MethodPost, "/api/pledges", "", body)
	require.Equal(t, http.StatusCreated, status)

	var errBody errorBody
	status = env.doJSON(t, http.MethodPost, "/api/pledges", "", body, &errBody)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.NotEmpty(t, errBody.Message)

	status, _ = env.do(t, http.MethodGet, "/api/pledges", "", nil)
	assert.Equal(t, http.StatusOK, status, "reads are not limited")
}

func TestPledgeRateLimitIgnoresForwardedHeaders(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		want       []int
	}{
		{name: "direct clients", trustProxy: false, want: []int{201, 429, 429}},
		{name: "behind trusted proxy", trustProxy: true, want: []int{201, 201, 201}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, func(c *Config) {
				c.RateLimiter = middleware.NewRateLimiter(1, time.Hour)
				c.TrustProxy = tt.trustProxy
			})

			body, err := json.Marshal(pledgeBody("Ada", "ada@example.com", false, "fix-leaks"))
			require.NoError(t, err)

			var got []int
			for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
				req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/pledges", bytes.NewReader(body))
				require.NoError(t, err)
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-Forwarded-For", ip)

				resp, err := env.srv.Client().Do(req)
				require.NoError(t, err)
				resp.Body.Close()
				got = append(got, resp.StatusCode)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
