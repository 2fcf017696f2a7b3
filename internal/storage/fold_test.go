package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aquaguard/aquaguard/internal/calculator"
	"github.com/aquaguard/aquaguard/internal/models"
)

func pledgeAt(t time.Time, saved int, commitments ...models.Commitment) *models.Pledge {
	return &models.Pledge{CreatedAt: t, DailyWaterSavedLiters: saved, Commitments: commitments}
}

func TestFoldMonthly(t *testing.T) {
	pledges := []*models.Pledge{
		pledgeAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 10),
		pledgeAt(time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC), 5),
		pledgeAt(time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), 40),
		// 2024-04-01 00:30 in UTC+2 is still March in UTC.
		pledgeAt(time.Date(2024, 4, 1, 0, 30, 0, 0, time.FixedZone("UTC+2", 2*3600)), 1),
	}

	got := FoldMonthly(pledges)

	assert.Equal(t, []models.MonthlyPledges{
		{Year: 2024, Month: 3, Count: 3, WaterSaved: 16},
		{Year: 2023, Month: 12, Count: 1, WaterSaved: 40},
	}, got)
}

func TestFoldMonthlyKeepsTwelveMostRecent(t *testing.T) {
	var pledges []*models.Pledge
	start := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		pledges = append(pledges, pledgeAt(start.AddDate(0, i, 0), 1))
	}

	got := FoldMonthly(pledges)

	assert.Len(t, got, MaxMonthlyPeriods)
	assert.Equal(t, models.MonthlyPledges{Year: 2024, Month: 3, Count: 1, WaterSaved: 1}, got[0])
	assert.Equal(t, models.MonthlyPledges{Year: 2023, Month: 4, Count: 1, WaterSaved: 1}, got[len(got)-1])
}

func TestFoldPopularity(t *testing.T) {
	now := time.Now()
	pledges := []*models.Pledge{
		pledgeAt(now, 0, calculator.CommitmentShorterShowers, calculator.CommitmentFixLeaks),
		pledgeAt(now, 0, calculator.CommitmentFixLeaks),
	}

	got := FoldPopularity(pledges)

	assert.Equal(t, []models.CommitmentCount{
		{Commitment: calculator.CommitmentFixLeaks, Count: 2},
		{Commitment: calculator.CommitmentShorterShowers, Count: 1},
	}, got)
}

func TestFoldPopularityTiesAndDuplicates(t *testing.T) {
	now := time.Now()
	pledges := []*models.Pledge{
		pledgeAt(now, 0, calculator.CommitmentTurnOffTap, calculator.CommitmentTurnOffTap),
		pledgeAt(now, 0, calculator.CommitmentFullLoads),
	}

	got := FoldPopularity(pledges)

	assert.Equal(t, []models.CommitmentCount{
		{Commitment: calculator.CommitmentFullLoads, Count: 1},
		{Commitment: calculator.CommitmentTurnOffTap, Count: 1},
	}, got)
}

func TestFoldEmpty(t *testing.T) {
	assert.Empty(t, FoldMonthly(nil))
	assert.Empty(t, FoldPopularity(nil))
}
