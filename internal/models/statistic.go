package models

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// StatisticKind identifies what a reference statistic measures.
type StatisticKind string

// Externally sourced kinds.
const (
	KindPopulationWithoutWater       StatisticKind = "global_population_without_water"
	KindPopulationWithoutSanitation  StatisticKind = "global_population_without_sanitation"
	KindPopulationWithoutHandwashing StatisticKind = "global_population_without_handwashing"
	KindDeathsFromWaterSanitation    StatisticKind = "deaths_from_water_sanitation"
)

// Platform-derived kinds.
const (
	KindTotalPledges           StatisticKind = "total_pledges"
	KindTotalWaterSavedMonthly StatisticKind = "total_water_saved_monthly"
	KindCountriesRepresented   StatisticKind = "countries_represented"
	KindCommunitiesReached     StatisticKind = "communities_reached"
)

// StatisticUnit is the unit a statistic value is expressed in.
type StatisticUnit string

const (
	UnitNone        StatisticUnit = ""
	UnitMillion     StatisticUnit = "million"
	UnitDeathsYear  StatisticUnit = "deaths/year"
	UnitLiters      StatisticUnit = "liters"
	UnitCountries   StatisticUnit = "countries"
	UnitCommunities StatisticUnit = "communities"
)

// UpdateFrequency says how often an external updater is expected to refresh
// a statistic. It is informational only.
type UpdateFrequency string

const (
	FrequencyStatic  UpdateFrequency = "static"
	FrequencyDaily   UpdateFrequency = "daily"
	FrequencyWeekly  UpdateFrequency = "weekly"
	FrequencyMonthly UpdateFrequency = "monthly"
	FrequencyYearly  UpdateFrequency = "yearly"
)

const (
	// DefaultStatisticSource attributes statistics created without a source.
	DefaultStatisticSource = "UN/World Health Organization"
	// PlatformSource attributes statistics derived from pledges.
	PlatformSource = "AquaGuard Platform"

	MaxDescriptionLength = 200
	MaxSourceLength      = 100
)

// kindDefaults is the closed kind vocabulary with the unit and description
// used when a statistic is created from a bare value.
var kindDefaults = map[StatisticKind]struct {
	unit        StatisticUnit
	description string
	source      string
}{
	KindPopulationWithoutWater:       {UnitMillion, "People worldwide lack access to safe drinking water", DefaultStatisticSource},
	KindPopulationWithoutSanitation:  {UnitMillion, "People worldwide lack access to safely managed sanitation", DefaultStatisticSource},
	KindPopulationWithoutHandwashing: {UnitMillion, "People worldwide lack basic handwashing facilities", DefaultStatisticSource},
	KindDeathsFromWaterSanitation:    {UnitNone, "Daily deaths from water, sanitation and hygiene-related causes", DefaultStatisticSource},
	KindTotalPledges:                 {UnitNone, "Total pledges made on AquaGuard platform", PlatformSource},
	KindTotalWaterSavedMonthly:       {UnitNone, "Liters of water saved monthly through pledges", PlatformSource},
	KindCountriesRepresented:         {UnitCountries, "Countries represented by AquaGuard pledgers", PlatformSource},
	KindCommunitiesReached:           {UnitCommunities, "Communities reached through AquaGuard outreach", PlatformSource},
}

var validUnits = map[StatisticUnit]bool{
	UnitNone: true, UnitMillion: true, UnitDeathsYear: true,
	UnitLiters: true, UnitCountries: true, UnitCommunities: true,
}

var validFrequencies = map[UpdateFrequency]bool{
	FrequencyStatic: true, FrequencyDaily: true, FrequencyWeekly: true,
	FrequencyMonthly: true, FrequencyYearly: true,
}

// Valid reports whether k is part of the kind vocabulary.
func (k StatisticKind) Valid() bool {
	_, ok := kindDefaults[k]
	return ok
}

// Valid reports whether u is a known unit.
func (u StatisticUnit) Valid() bool { return validUnits[u] }

// Valid reports whether f is a known update frequency.
func (f UpdateFrequency) Valid() bool { return validFrequencies[f] }

// ReferenceStatistic is an admin-maintained global metric. At most one
// record exists per Kind.
type ReferenceStatistic struct {
	ID              string          `json:"id"`
	Kind            StatisticKind   `json:"kind"`
	Value           float64         `json:"value"`
	Unit            StatisticUnit   `json:"unit"`
	Description     string          `json:"description"`
	Source          string          `json:"source"`
	IsActive        bool            `json:"isActive"`
	UpdateFrequency UpdateFrequency `json:"updateFrequency"`
	CreatedAt       time.Time       `json:"createdAt"`
	LastUpdated     time.Time       `json:"lastUpdated"`
}

// StatisticInput is the admin-supplied part of a reference statistic.
// Nil pointers take defaults on create and keep the current value on update.
type StatisticInput struct {
	Kind            StatisticKind    `json:"kind"`
	Value           *float64         `json:"value"`
	Unit            *StatisticUnit   `json:"unit"`
	Description     *string          `json:"description"`
	Source          *string          `json:"source"`
	IsActive        *bool            `json:"isActive"`
	UpdateFrequency *UpdateFrequency `json:"updateFrequency"`
}

// NewStatistic validates in and builds a statistic. Kind and Value are
// required; other fields fall back to the kind's defaults.
func NewStatistic(in StatisticInput, now time.Time) (*ReferenceStatistic, error) {
	s := &ReferenceStatistic{
		Kind:            in.Kind,
		IsActive:        true,
		UpdateFrequency: FrequencyStatic,
		Source:          DefaultStatisticSource,
		CreatedAt:       now,
	}
	if d, ok := kindDefaults[in.Kind]; ok {
		s.Unit = d.unit
		s.Source = d.source
	}
	verr := &ValidationError{}
	if in.Value == nil {
		verr.Add("value", "Value is required")
	}
	if in.Description == nil {
		verr.Add("description", "Description is required")
	}
	if err := s.apply(in, now, verr); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultStatistic builds a statistic of kind with the kind's default unit,
// description and source.
func DefaultStatistic(kind StatisticKind, value float64, now time.Time) (*ReferenceStatistic, error) {
	d, ok := kindDefaults[kind]
	if !ok {
		return nil, invalidKind(kind)
	}
	return NewStatistic(StatisticInput{
		Kind:        kind,
		Value:       &value,
		Unit:        &d.unit,
		Description: &d.description,
		Source:      &d.source,
	}, now)
}

// Apply validates in and, only if every field is valid, overwrites the
// fields it sets and refreshes LastUpdated. An empty Kind keeps the current
// kind.
func (s *ReferenceStatistic) Apply(in StatisticInput, now time.Time) error {
	return s.apply(in, now, &ValidationError{})
}

func (s *ReferenceStatistic) apply(in StatisticInput, now time.Time, verr *ValidationError) error {
	next := *s
	if in.Kind != "" {
		next.Kind = in.Kind
	}
	if !next.Kind.Valid() {
		verr.Add("kind", "Invalid statistic type")
	}
	if in.Value != nil {
		next.Value = *in.Value
		if msg := checkStatisticValue(next.Value); msg != "" {
			verr.Add("value", msg)
		}
	}
	if in.Unit != nil {
		next.Unit = *in.Unit
		if !next.Unit.Valid() {
			verr.Add("unit", "Invalid unit")
		}
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
		switch n := utf8.RuneCountInString(next.Description); {
		case n == 0:
			verr.Add("description", "Description is required")
		case n > MaxDescriptionLength:
			verr.Add("description", fmt.Sprintf("Description cannot be more than %d characters", MaxDescriptionLength))
		}
	}
	if in.Source != nil {
		next.Source = strings.TrimSpace(*in.Source)
		if utf8.RuneCountInString(next.Source) > MaxSourceLength {
			verr.Add("source", fmt.Sprintf("Source cannot be more than %d characters", MaxSourceLength))
		}
	}
	if in.IsActive != nil {
		next.IsActive = *in.IsActive
	}
	if in.UpdateFrequency != nil {
		next.UpdateFrequency = *in.UpdateFrequency
		if !next.UpdateFrequency.Valid() {
			verr.Add("updateFrequency", "Invalid update frequency")
		}
	}

	if err := verr.OrNil(); err != nil {
		return err
	}
	next.LastUpdated = now
	*s = next
	return nil
}

// ValidateStatisticValue returns a *ValidationError for negative or
// non-finite values.
func ValidateStatisticValue(v float64) error {
	verr := &ValidationError{}
	if msg := checkStatisticValue(v); msg != "" {
		verr.Add("value", msg)
	}
	return verr.OrNil()
}

func checkStatisticValue(v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "Statistic value must be a finite number"
	case v < 0:
		return "Statistic value cannot be negative"
	}
	return ""
}

// ValidateKind returns a *ValidationError when kind is not in the vocabulary.
func ValidateKind(kind StatisticKind) error {
	if !kind.Valid() {
		return invalidKind(kind)
	}
	return nil
}

func invalidKind(kind StatisticKind) error {
	verr := &ValidationError{}
	verr.Add("kind", fmt.Sprintf("Invalid statistic type %q", kind))
	return verr
}
