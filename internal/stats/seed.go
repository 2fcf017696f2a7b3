package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// SeedStatistic is one catalog entry in a seed file.
type SeedStatistic struct {
	Kind            models.StatisticKind    `yaml:"kind"`
	Value           float64                 `yaml:"value"`
	Unit            *models.StatisticUnit   `yaml:"unit"`
	Description     *string                 `yaml:"description"`
	Source          *string                 `yaml:"source"`
	IsActive        *bool                   `yaml:"isActive"`
	UpdateFrequency *models.UpdateFrequency `yaml:"updateFrequency"`
}

// SeedFile is the YAML document read by LoadSeedFile:
//
//	statistics:
//	  - kind: global_population_without_water
//	    value: 2200000000
//	    unit: million
type SeedFile struct {
	Statistics []SeedStatistic `yaml:"statistics"`
}

// LoadSeedFile reads and decodes a seed file. Unknown keys are rejected.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var seed SeedFile
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	return &seed, nil
}

// SeedResult counts what a seeding run changed.
type SeedResult struct {
	Created int
	Updated int
}

// SeedDefaults creates the default global statistics when the catalog holds
// no records at all. It reports how many were created.
func SeedDefaults(ctx context.Context, catalog storage.StatisticStore, now time.Time) (int, error) {
	existing, err := catalog.ListStatistics(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to check catalog: %w", err)
	}
	if len(existing) > 0 {
		slog.Debug("Catalog already seeded", "statistics", len(existing))
		return 0, nil
	}

	created := 0
	for _, d := range defaultStatistics {
		stat, err := models.DefaultStatistic(d.Kind, d.Value, now)
		if err != nil {
			return created, err
		}
		stat.Unit = d.Unit
		stat.Description = d.Description
		stat.Source = d.Source
		if err := catalog.CreateStatistic(ctx, stat); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("failed to seed %s: %w", d.Kind, err)
		}
		created++
	}
	slog.Info("Seeded default statistics", "created", created)
	return created, nil
}

// Seed validates every entry before writing any, then creates absent kinds
// and sets the value of kinds that already exist.
func Seed(ctx context.Context, catalog storage.StatisticStore, entries []SeedStatistic, now time.Time) (SeedResult, error) {
	var result SeedResult

	stats := make([]*models.ReferenceStatistic, 0, len(entries))
	for i, e := range entries {
		value := e.Value
		in := models.StatisticInput{
			Kind:            e.Kind,
			Value:           &value,
			Unit:            e.Unit,
			Description:     e.Description,
			Source:          e.Source,
			IsActive:        e.IsActive,
			UpdateFrequency: e.UpdateFrequency,
		}
		if in.Description == nil && e.Kind.Valid() {
			d, _ := models.DefaultStatistic(e.Kind, 0, now)
			in.Description = &d.Description
		}
		stat, err := models.NewStatistic(in, now)
		if err != nil {
			return result, fmt.Errorf("seed entry %d (%s): %w", i, e.Kind, err)
		}
		stats = append(stats, stat)
	}

	for _, stat := range stats {
		err := catalog.CreateStatistic(ctx, stat)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, storage.ErrConflict):
			stat.ID = ""
			if _, err := catalog.SetStatisticValue(ctx, stat); err != nil {
				return result, fmt.Errorf("failed to update %s: %w", stat.Kind, err)
			}
			result.Updated++
		default:
			return result, fmt.Errorf("failed to create %s: %w", stat.Kind, err)
		}
	}

	slog.Info("Seeded statistics", "created", result.Created, "updated", result.Updated)
	return result, nil
}
