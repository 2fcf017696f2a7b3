package stats

import (
	"github.com/aquaguard/aquaguard/internal/models"
)

// defaultStatistics is shown until the catalog is seeded.
var defaultStatistics = []models.StatisticEntry{
	{
		Kind:        models.KindPopulationWithoutWater,
		Value:       2200000000,
		Unit:        models.UnitMillion,
		Description: "People worldwide lack access to safe drinking water",
		Source:      models.DefaultStatisticSource,
	},
	{
		Kind:        models.KindPopulationWithoutSanitation,
		Value:       4200000000,
		Unit:        models.UnitMillion,
		Description: "People worldwide lack access to safely managed sanitation",
		Source:      models.DefaultStatisticSource,
	},
	{
		Kind:        models.KindPopulationWithoutHandwashing,
		Value:       3000000000,
		Unit:        models.UnitMillion,
		Description: "People worldwide lack basic handwashing facilities",
		Source:      models.DefaultStatisticSource,
	},
	{
		Kind:        models.KindDeathsFromWaterSanitation,
		Value:       829000,
		Unit:        models.UnitNone,
		Description: "Daily deaths from water, sanitation and hygiene-related causes",
		Source:      models.DefaultStatisticSource,
	},
}

// DefaultStatistics returns a copy of the four global-crisis statistics used
// when the catalog is empty.
func DefaultStatistics() []models.StatisticEntry {
	return append([]models.StatisticEntry(nil), defaultStatistics...)
}
