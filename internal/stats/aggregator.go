// Package stats derives platform-wide metrics from stored pledges and merges
// them with the reference statistic catalog.
package stats

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// DaysPerMonth extrapolates a daily total to a month. It is a flat
// approximation, not calendar-aware.
const DaysPerMonth = 30

// Aggregator computes pledge summaries and the public statistics payload on
// demand. Nothing is cached.
type Aggregator struct {
	pledges storage.PledgeStore
	catalog storage.StatisticStore
}

// NewAggregator creates an Aggregator over the given stores.
func NewAggregator(pledges storage.PledgeStore, catalog storage.StatisticStore) *Aggregator {
	return &Aggregator{pledges: pledges, catalog: catalog}
}

// BuildSummary runs the four pledge aggregates concurrently. If any of them
// fails the whole summary fails; there are no partial results.
func (a *Aggregator) BuildSummary(ctx context.Context) (*models.PledgeSummary, error) {
	summary := &models.PledgeSummary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := a.pledges.CountPledges(gctx)
		summary.TotalPledges = n
		return err
	})
	g.Go(func() error {
		n, err := a.pledges.SumWaterSaved(gctx)
		summary.TotalWaterSavedDaily = n
		return err
	})
	g.Go(func() error {
		months, err := a.pledges.MonthlyBreakdown(gctx)
		summary.MonthlyPledges = months
		return err
	})
	g.Go(func() error {
		counts, err := a.pledges.CommitmentPopularity(gctx)
		summary.PledgeBreakdown = counts
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build pledge summary: %w", err)
	}

	if summary.MonthlyPledges == nil {
		summary.MonthlyPledges = []models.MonthlyPledges{}
	}
	if summary.PledgeBreakdown == nil {
		summary.PledgeBreakdown = []models.CommitmentCount{}
	}
	return summary, nil
}

// BuildPublicStatsPayload returns the active catalog entries, newest first,
// followed by the total pledge count and the monthly water-saved projection.
// An empty catalog is replaced by DefaultStatistics.
func (a *Aggregator) BuildPublicStatsPayload(ctx context.Context) ([]models.StatisticEntry, error) {
	var (
		catalog []*models.ReferenceStatistic
		total   int64
		saved   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = a.catalog.ListStatistics(gctx, true)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = a.pledges.CountPledges(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		saved, err = a.pledges.SumWaterSaved(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build statistics payload: %w", err)
	}

	entries := make([]models.StatisticEntry, 0, len(catalog)+2)
	if len(catalog) == 0 {
		entries = append(entries, DefaultStatistics()...)
	} else {
		sort.SliceStable(catalog, func(i, j int) bool {
			return catalog[i].CreatedAt.After(catalog[j].CreatedAt)
		})
		for _, s := range catalog {
			entries = append(entries, s.Entry())
		}
	}

	entries = append(entries,
		models.StatisticEntry{
			Kind:        models.KindTotalPledges,
			Value:       float64(total),
			Unit:        models.UnitNone,
			Description: "Total pledges made on AquaGuard platform",
			Source:      models.PlatformSource,
		},
		models.StatisticEntry{
			Kind:        models.KindTotalWaterSavedMonthly,
			Value:       float64(saved * DaysPerMonth),
			Unit:        models.UnitNone,
			Description: "Liters of water saved monthly through pledges",
			Source:      models.PlatformSource,
		},
	)
	return entries, nil
}

// ListActive returns the active catalog entries sorted by kind.
func (a *Aggregator) ListActive(ctx context.Context) ([]*models.ReferenceStatistic, error) {
	stats, err := a.catalog.ListStatistics(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active statistics: %w", err)
	}
	return stats, nil
}
