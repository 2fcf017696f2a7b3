package calculator

import "math"

// Commitment identifies one water-conservation action a person can pledge.
type Commitment string

const (
	CommitmentShorterShowers  Commitment = "shorter-showers"
	CommitmentFixLeaks        Commitment = "fix-leaks"
	CommitmentFullLoads       Commitment = "full-loads"
	CommitmentTurnOffTap      Commitment = "turn-off-tap"
	CommitmentRainwater       Commitment = "rainwater"
	CommitmentSpreadAwareness Commitment = "spread-awareness"
)

// Commitments lists the closed vocabulary in display order.
var Commitments = []Commitment{
	CommitmentShorterShowers,
	CommitmentFixLeaks,
	CommitmentFullLoads,
	CommitmentTurnOffTap,
	CommitmentRainwater,
	CommitmentSpreadAwareness,
}

// dailyRates holds the liters saved per day for each commitment.
// Rainwater collection is quoted per year and converted here.
var dailyRates = map[Commitment]float64{
	CommitmentShorterShowers:  40,
	CommitmentFixLeaks:        750,
	CommitmentFullLoads:       20,
	CommitmentTurnOffTap:      24,
	CommitmentRainwater:       5000.0 / 365.0,
	CommitmentSpreadAwareness: 0,
}

// ParseCommitment returns the commitment named by s and whether s is part of
// the vocabulary.
func ParseCommitment(s string) (Commitment, bool) {
	c := Commitment(s)
	_, ok := dailyRates[c]
	return c, ok
}

// DailyRate returns the liters per day saved by a single commitment.
// Unknown commitments save nothing.
func DailyRate(c Commitment) float64 {
	return dailyRates[c]
}

// DailySavings computes the estimated liters saved per day for a set of
// commitments, rounded to the nearest liter.
//
// The input is treated as a set: repeated commitments are counted once and
// ordering does not matter. Unknown commitments contribute zero.
func DailySavings(commitments []Commitment) int {
	seen := make(map[Commitment]bool, len(commitments))
	var total float64
	for _, c := range commitments {
		if seen[c] {
			continue
		}
		seen[c] = true
		total += dailyRates[c]
	}
	return int(math.Round(total))
}
