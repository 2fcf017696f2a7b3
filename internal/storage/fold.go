package storage

import (
	"sort"

	"github.com/aquaguard/aquaguard/internal/models"
)

// FoldMonthly groups pledges by UTC creation year and month, newest first,
// keeping at most MaxMonthlyPeriods periods. Back-ends that cannot aggregate
// server-side use it over a full scan.
func FoldMonthly(pledges []*models.Pledge) []models.MonthlyPledges {
	type key struct{ year, month int }
	buckets := make(map[key]*models.MonthlyPledges)
	for _, p := range pledges {
		t := p.CreatedAt.UTC()
		k := key{t.Year(), int(t.Month())}
		b, ok := buckets[k]
		if !ok {
			b = &models.MonthlyPledges{Year: k.year, Month: k.month}
			buckets[k] = b
		}
		b.Count++
		b.WaterSaved += int64(p.DailyWaterSavedLiters)
	}

	out := make([]models.MonthlyPledges, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	if len(out) > MaxMonthlyPeriods {
		out = out[:MaxMonthlyPeriods]
	}
	return out
}

// FoldPopularity counts each commitment once per pledge that contains it.
func FoldPopularity(pledges []*models.Pledge) []models.CommitmentCount {
	counts := make(map[models.Commitment]int64)
	for _, p := range pledges {
		seen := make(map[models.Commitment]bool, len(p.Commitments))
		for _, c := range p.Commitments {
			if seen[c] {
				continue
			}
			seen[c] = true
			counts[c]++
		}
	}

	out := make([]models.CommitmentCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, models.CommitmentCount{Commitment: c, Count: n})
	}
	SortPopularity(out)
	return out
}

// SortPopularity orders counts by count descending, then commitment ascending.
func SortPopularity(counts []models.CommitmentCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Commitment < counts[j].Commitment
	})
}

// SortNewestFirst orders pledges by creation time descending, then ID.
func SortNewestFirst(pledges []*models.Pledge) {
	sort.Slice(pledges, func(i, j int) bool {
		if !pledges[i].CreatedAt.Equal(pledges[j].CreatedAt) {
			return pledges[i].CreatedAt.After(pledges[j].CreatedAt)
		}
		return pledges[i].ID > pledges[j].ID
	})
}

// SortByKind orders statistics by kind ascending.
func SortByKind(stats []*models.ReferenceStatistic) {
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Kind < stats[j].Kind
	})
}
