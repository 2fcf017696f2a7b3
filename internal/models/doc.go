// Package models defines the core domain models for AquaGuard.
//
// # Models
//
//   - Pledge: a person's chosen conservation commitments with the derived
//     daily water-savings estimate
//   - ReferenceStatistic: an externally sourced global metric, one per kind
//   - User: a registered account that can own pledges
//   - PledgeSummary, MonthlyPledges, CommitmentCount, StatisticEntry:
//     aggregate results computed on demand
//
// # Validation
//
// Inputs enter through constructors (NewPledge, NewStatistic) or Apply
// methods. They check every field against the closed vocabularies and
// bounds and report all violations in one *ValidationError before anything
// is mutated. Pledge.Apply is the only code path that writes Commitments and
// it always recomputes DailyWaterSavedLiters in the same step.
//
// Relationships use ID strings instead of pointers.
package models
