package stats

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaguard/aquaguard/internal/calculator"
	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
	"github.com/aquaguard/aquaguard/internal/storage/sqlite"
)

func newStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createPledge(t *testing.T, store storage.PledgeStore, commitments ...string) *models.Pledge {
	t.Helper()
	p, err := models.NewPledge(models.PledgeInput{
		DisplayName: "Pledger",
		Email:       "pledger@example.com",
		Commitments: commitments,
	}, "", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.CreatePledge(context.Background(), p))
	return p
}

func TestBuildSummary(t *testing.T) {
	store := newStore(t)
	agg := NewAggregator(store, store)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		summary, err := agg.BuildSummary(ctx)
		require.NoError(t, err)
		assert.Zero(t, summary.TotalPledges)
		assert.Zero(t, summary.TotalWaterSavedDaily)
		assert.Empty(t, summary.MonthlyPledges)
		assert.NotNil(t, summary.PledgeBreakdown)
	})

	a := createPledge(t, store, "shorter-showers", "fix-leaks")
	b := createPledge(t, store, "fix-leaks")
	c := createPledge(t, store, "rainwater")

	summary, err := agg.BuildSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalPledges)
	want := int64(a.DailyWaterSavedLiters + b.DailyWaterSavedLiters + c.DailyWaterSavedLiters)
	assert.Equal(t, want, summary.TotalWaterSavedDaily)
	require.Len(t, summary.MonthlyPledges, 1)
	assert.Equal(t, int64(3), summary.MonthlyPledges[0].Count)
	assert.Equal(t, want, summary.MonthlyPledges[0].WaterSaved)
	assert.Equal(t, models.CommitmentCount{Commitment: calculator.CommitmentFixLeaks, Count: 2}, summary.PledgeBreakdown[0])

	t.Run("idempotent without writes", func(t *testing.T) {
		again, err := agg.BuildSummary(ctx)
		require.NoError(t, err)
		if diff := cmp.Diff(summary, again); diff != "" {
			t.Errorf("summary changed between calls (-first +second):\n%s", diff)
		}
	})
}

func TestBuildPublicStatsPayload(t *testing.T) {
	ctx := context.Background()

	t.Run("empty catalog uses defaults plus derived entries", func(t *testing.T) {
		store := newStore(t)
		createPledge(t, store, "shorter-showers", "fix-leaks", "full-loads", "turn-off-tap")
		createPledge(t, store, "rainwater")

		payload, err := NewAggregator(store, store).BuildPublicStatsPayload(ctx)
		require.NoError(t, err)
		require.Len(t, payload, 6)

		assert.Equal(t, DefaultStatistics(), payload[:4])
		assert.Equal(t, models.KindTotalPledges, payload[4].Kind)
		assert.Equal(t, 2.0, payload[4].Value)
		assert.Equal(t, models.KindTotalWaterSavedMonthly, payload[5].Kind)
		assert.Equal(t, float64((834+14)*DaysPerMonth), payload[5].Value)
		assert.Equal(t, models.PlatformSource, payload[5].Source)
	})

	t.Run("seeded catalog replaces defaults newest first", func(t *testing.T) {
		store := newStore(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		older, err := models.DefaultStatistic(models.KindPopulationWithoutWater, 2100000000, base)
		require.NoError(t, err)
		require.NoError(t, store.CreateStatistic(ctx, older))

		newer, err := models.DefaultStatistic(models.KindCountriesRepresented, 12, base.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, store.CreateStatistic(ctx, newer))

		inactive, err := models.DefaultStatistic(models.KindCommunitiesReached, 4, base.Add(2*time.Hour))
		require.NoError(t, err)
		inactive.IsActive = false
		require.NoError(t, store.CreateStatistic(ctx, inactive))

		payload, err := NewAggregator(store, store).BuildPublicStatsPayload(ctx)
		require.NoError(t, err)
		require.Len(t, payload, 4)
		assert.Equal(t, models.KindCountriesRepresented, payload[0].Kind)
		assert.Equal(t, newer.ID, payload[0].ID)
		assert.Equal(t, models.KindPopulationWithoutWater, payload[1].Kind)
		assert.Zero(t, payload[3].Value)
	})
}

func TestListActive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, kind := range []models.StatisticKind{models.KindTotalPledges, models.KindCommunitiesReached} {
		s, err := models.DefaultStatistic(kind, 1, now)
		require.NoError(t, err)
		require.NoError(t, store.CreateStatistic(ctx, s))
	}

	active, err := NewAggregator(store, store).ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, models.KindCommunitiesReached, active[0].Kind)
	assert.Equal(t, models.KindTotalPledges, active[1].Kind)
}

// unavailableStore fails every aggregate the way an unreachable backend does.
type unavailableStore struct {
	storage.Store
}

var errDown = storage.Unavailable("reach store", errors.New("connection refused"))

func (unavailableStore) CountPledges(context.Context) (int64, error) { return 0, errDown }
func (unavailableStore) SumWaterSaved(context.Context) (int64, error) { return 0, errDown }
func (unavailableStore) MonthlyBreakdown(context.Context) ([]models.MonthlyPledges, error) {
	return nil, errDown
}
func (unavailableStore) CommitmentPopularity(context.Context) ([]models.CommitmentCount, error) {
	return nil, errDown
}
func (unavailableStore) ListStatistics(context.Context, bool) ([]*models.ReferenceStatistic, error) {
	return nil, errDown
}

func TestStoreUnavailable(t *testing.T) {
	agg := NewAggregator(unavailableStore{}, unavailableStore{})
	ctx := context.Background()

	summary, err := agg.BuildSummary(ctx)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	payload, err := agg.BuildPublicStatsPayload(ctx)
	assert.Nil(t, payload)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestSeedDefaults(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	n, err := SeedDefaults(ctx, store, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = SeedDefaults(ctx, store, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)

	active, err := store.ListStatistics(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 4)
	assert.Equal(t, models.KindDeathsFromWaterSanitation, active[0].Kind)
	assert.Equal(t, 829000.0, active[0].Value)
}

func TestSeedFromFile(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	existing, err := models.DefaultStatistic(models.KindPopulationWithoutWater, 1, now)
	require.NoError(t, err)
	require.NoError(t, store.CreateStatistic(ctx, existing))

	path := filepath.Join(t.TempDir(), "statistics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
statistics:
  - kind: global_population_without_water
    value: 2200000000
  - kind: countries_represented
    value: 42
    updateFrequency: monthly
`), 0o644))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seed.Statistics, 2)

	result, err := Seed(ctx, store, seed.Statistics, now)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 1, Updated: 1}, result)

	water, err := store.GetStatistic(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, 2200000000.0, water.Value)

	all, err := store.ListStatistics(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.KindCountriesRepresented, all[0].Kind)
	assert.Equal(t, models.FrequencyMonthly, all[0].UpdateFrequency)
	assert.Equal(t, models.UnitCountries, all[0].Unit)
}

func TestSeedRejectsInvalidEntries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := Seed(ctx, store, []SeedStatistic{
		{Kind: models.KindTotalPledges, Value: 1},
		{Kind: "rain_dances", Value: 1},
	}, time.Now().UTC())
	assert.True(t, models.IsValidationError(err))

	all, err := store.ListStatistics(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLoadSeedFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("statistics:\n  - kind: total_pledges\n    colour: blue\n"), 0o644))

	_, err := LoadSeedFile(path)
	assert.Error(t, err)
}
