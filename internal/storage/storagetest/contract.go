// Package storagetest holds behaviour checks shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaguard/aquaguard/internal/calculator"
	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// Run exercises store against the storage.Store contract. newStore must
// return an empty store; it is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("PledgeLifecycle", func(t *testing.T) { testPledgeLifecycle(t, newStore(t)) })
	t.Run("PledgeListing", func(t *testing.T) { testPledgeListing(t, newStore(t)) })
	t.Run("PledgeAggregates", func(t *testing.T) { testPledgeAggregates(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("StatisticCatalog", func(t *testing.T) { testStatisticCatalog(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func pledge(t *testing.T, name string, at time.Time, commitments ...string) *models.Pledge {
	t.Helper()
	p, err := models.NewPledge(models.PledgeInput{
		DisplayName: name,
		Email:       "pledger@example.com",
		Commitments: commitments,
	}, "", at)
	require.NoError(t, err)
	return p
}

func testPledgeLifecycle(t *testing.T, store storage.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	p := pledge(t, "Alice", now, "turn-off-tap", "fix-leaks")
	require.NoError(t, store.CreatePledge(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := store.GetPledge(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, p.Apply(models.PledgeInput{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Commitments: []string{"rainwater"},
	}, now.Add(time.Minute)))
	require.NoError(t, store.UpdatePledge(ctx, p))

	got, err = store.GetPledge(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Commitment{calculator.CommitmentRainwater}, got.Commitments)
	assert.Equal(t, 14, got.DailyWaterSavedLiters)
	assert.Equal(t, now.Add(time.Minute), got.UpdatedAt)

	require.NoError(t, store.DeletePledge(ctx, p.ID))
	_, err = store.GetPledge(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeletePledge(ctx, p.ID), storage.ErrNotFound)
	assert.ErrorIs(t, store.UpdatePledge(ctx, p), storage.ErrNotFound)
}

func testPledgeListing(t *testing.T, store storage.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		p := pledge(t, fmt.Sprintf("P%d", i), base.Add(time.Duration(i)*time.Hour), "fix-leaks")
		if i%2 == 1 {
			p.SubmitterID = "owner"
		}
		require.NoError(t, store.CreatePledge(ctx, p))
	}

	page, err := store.ListPledges(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "P2", page[0].DisplayName)
	assert.Equal(t, "P1", page[1].DisplayName)

	mine, err := store.ListPledgesBySubmitter(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "P3", mine[0].DisplayName)
	assert.Equal(t, "P1", mine[1].DisplayName)
}

func testPledgeAggregates(t *testing.T, store storage.Store) {
	ctx := context.Background()

	sum, err := store.SumWaterSaved(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum)

	seed := []struct {
		at          time.Time
		commitments []string
	}{
		{time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC), []string{"shorter-showers", "fix-leaks"}},
		{time.Date(2024, 2, 1, 0, 30, 0, 0, time.UTC), []string{"fix-leaks"}},
		{time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), []string{"rainwater", "full-loads"}},
	}
	for _, s := range seed {
		require.NoError(t, store.CreatePledge(ctx, pledge(t, "Agg", s.at, s.commitments...)))
	}

	n, err := store.CountPledges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	sum, err = store.SumWaterSaved(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1574), sum)

	months, err := store.MonthlyBreakdown(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.MonthlyPledges{
		{Year: 2024, Month: 2, Count: 2, WaterSaved: 784},
		{Year: 2024, Month: 1, Count: 1, WaterSaved: 790},
	}, months)

	popularity, err := store.CommitmentPopularity(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CommitmentCount{
		{Commitment: calculator.CommitmentFixLeaks, Count: 2},
		{Commitment: calculator.CommitmentFullLoads, Count: 1},
		{Commitment: calculator.CommitmentRainwater, Count: 1},
		{Commitment: calculator.CommitmentShorterShowers, Count: 1},
	}, popularity)
}

func testConcurrentCreate(t *testing.T, store storage.Store) {
	ctx := context.Background()
	const n = 8

	pledges := make([]*models.Pledge, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range pledges {
		pledges[i] = pledge(t, fmt.Sprintf("C%d", i), time.Now().UTC(), "full-loads")
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CreatePledge(ctx, pledges[i])
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i := range pledges {
		require.NoError(t, errs[i])
		ids[pledges[i].ID] = true
	}
	assert.Len(t, ids, n)

	count, err := store.CountPledges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}

func testStatisticCatalog(t *testing.T, store storage.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	water, err := models.DefaultStatistic(models.KindPopulationWithoutWater, 2200, now)
	require.NoError(t, err)
	require.NoError(t, store.CreateStatistic(ctx, water))

	dup, err := models.DefaultStatistic(models.KindPopulationWithoutWater, 1, now)
	require.NoError(t, err)
	assert.ErrorIs(t, store.CreateStatistic(ctx, dup), storage.ErrConflict)

	deaths, err := models.DefaultStatistic(models.KindDeathsFromWaterSanitation, 1000, now)
	require.NoError(t, err)
	deaths.IsActive = false
	require.NoError(t, store.CreateStatistic(ctx, deaths))

	active, err := store.ListStatistics(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, water.ID, active[0].ID)

	all, err := store.ListStatistics(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.KindDeathsFromWaterSanitation, all[0].Kind)

	next, err := models.DefaultStatistic(models.KindPopulationWithoutWater, 2100, now.Add(time.Minute))
	require.NoError(t, err)
	stored, err := store.SetStatisticValue(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, water.ID, stored.ID)
	assert.Equal(t, 2100.0, stored.Value)
	assert.Equal(t, now.Add(time.Minute), stored.LastUpdated)

	created, err := models.DefaultStatistic(models.KindTotalPledges, 7, now)
	require.NoError(t, err)
	stored, err = store.SetStatisticValue(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, 7.0, stored.Value)
	assert.Equal(t, models.KindTotalPledges, stored.Kind)

	stored, err = store.IncrementStatistic(ctx, models.KindTotalPledges, 1)
	require.NoError(t, err)
	assert.Equal(t, 8.0, stored.Value)

	_, err = store.IncrementStatistic(ctx, models.KindTotalPledges, -9)
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = store.IncrementStatistic(ctx, models.KindCommunitiesReached, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stored.Kind = models.KindPopulationWithoutWater
	assert.ErrorIs(t, store.UpdateStatistic(ctx, stored), storage.ErrConflict)

	require.NoError(t, store.DeleteStatistic(ctx, water.ID))
	_, err = store.GetStatistic(ctx, water.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUsers(t *testing.T, store storage.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	user := models.NewUser("sam@example.com", "Sam", "hash", models.RoleUser, now)
	require.NoError(t, store.CreateUser(ctx, user))

	dup := models.NewUser("sam@example.com", "Other", "hash", models.RoleUser, now)
	assert.ErrorIs(t, store.CreateUser(ctx, dup), storage.ErrConflict)

	got, err := store.GetUserByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = store.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got.Email = "samuel@example.com"
	got.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.UpdateUser(ctx, got))

	_, err = store.GetUserByEmail(ctx, "sam@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "samuel@example.com", byID.Email)
}
