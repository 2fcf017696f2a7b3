package models

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNewStatistic(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("defaults from kind", func(t *testing.T) {
		s, err := NewStatistic(StatisticInput{
			Kind:        KindPopulationWithoutSanitation,
			Value:       ptr(3500.0),
			Description: ptr("People without sanitation"),
		}, now)
		require.NoError(t, err)
		assert.Equal(t, UnitMillion, s.Unit)
		assert.Equal(t, DefaultStatisticSource, s.Source)
		assert.Equal(t, FrequencyStatic, s.UpdateFrequency)
		assert.True(t, s.IsActive)
		assert.Equal(t, now, s.CreatedAt)
		assert.Equal(t, now, s.LastUpdated)
	})

	t.Run("platform kinds are attributed to the platform", func(t *testing.T) {
		s, err := DefaultStatistic(KindCountriesRepresented, 12, now)
		require.NoError(t, err)
		assert.Equal(t, PlatformSource, s.Source)
		assert.Equal(t, UnitCountries, s.Unit)
	})

	tests := []struct {
		name       string
		input      StatisticInput
		wantFields []string
	}{
		{
			name:       "value and description required",
			input:      StatisticInput{Kind: KindTotalPledges},
			wantFields: []string{"value", "description"},
		},
		{
			name:       "unknown kind",
			input:      StatisticInput{Kind: "rain_dances", Value: ptr(1.0), Description: ptr("x")},
			wantFields: []string{"kind"},
		},
		{
			name:       "negative value",
			input:      StatisticInput{Kind: KindTotalPledges, Value: ptr(-1.0), Description: ptr("x")},
			wantFields: []string{"value"},
		},
		{
			name:       "non-finite value",
			input:      StatisticInput{Kind: KindTotalPledges, Value: ptr(math.Inf(1)), Description: ptr("x")},
			wantFields: []string{"value"},
		},
		{
			name: "bounded text and closed enums",
			input: StatisticInput{
				Kind:            KindTotalPledges,
				Value:           ptr(1.0),
				Unit:            ptr(StatisticUnit("gallons")),
				Description:     ptr(strings.Repeat("d", MaxDescriptionLength+1)),
				Source:          ptr(strings.Repeat("s", MaxSourceLength+1)),
				UpdateFrequency: ptr(UpdateFrequency("hourly")),
			},
			wantFields: []string{"unit", "description", "source", "updateFrequency"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStatistic(tt.input, now)
			assert.Nil(t, s)
			assert.Equal(t, tt.wantFields, fieldsOf(t, err))
		})
	}
}

func TestStatisticApply(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s, err := DefaultStatistic(KindPopulationWithoutWater, 2200, now)
	require.NoError(t, err)

	later := now.Add(time.Hour)
	require.NoError(t, s.Apply(StatisticInput{Value: ptr(2100.0), IsActive: ptr(false)}, later))
	assert.Equal(t, 2100.0, s.Value)
	assert.False(t, s.IsActive)
	assert.Equal(t, KindPopulationWithoutWater, s.Kind)
	assert.Equal(t, later, s.LastUpdated)
	assert.Equal(t, now, s.CreatedAt)

	before := *s
	err = s.Apply(StatisticInput{Value: ptr(5.0), Description: ptr("")}, later.Add(time.Hour))
	assert.True(t, IsValidationError(err))
	assert.Equal(t, before, *s)
}

func TestValidateKindAndValue(t *testing.T) {
	assert.NoError(t, ValidateKind(KindCommunitiesReached))
	assert.True(t, IsValidationError(ValidateKind("nope")))

	assert.NoError(t, ValidateStatisticValue(0))
	assert.True(t, IsValidationError(ValidateStatisticValue(-0.5)))
	assert.True(t, IsValidationError(ValidateStatisticValue(math.NaN())))
}
