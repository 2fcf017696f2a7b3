package models

// MonthlyPledges aggregates the pledges created in one calendar month (UTC).
type MonthlyPledges struct {
	Year       int   `json:"year"`
	Month      int   `json:"month"`
	Count      int64 `json:"count"`
	WaterSaved int64 `json:"waterSaved"`
}

// CommitmentCount is how many pledges include a commitment.
type CommitmentCount struct {
	Commitment Commitment `json:"commitment"`
	Count      int64      `json:"count"`
}

// PledgeSummary holds platform-wide pledge metrics.
type PledgeSummary struct {
	TotalPledges         int64             `json:"totalPledges"`
	TotalWaterSavedDaily int64             `json:"totalWaterSavedDaily"`
	MonthlyPledges       []MonthlyPledges  `json:"monthlyPledges"`
	PledgeBreakdown      []CommitmentCount `json:"pledgeBreakdown"`
}

// StatisticEntry is one item of the public statistics payload. Entries
// derived from pledges have no ID.
type StatisticEntry struct {
	ID          string        `json:"id,omitempty"`
	Kind        StatisticKind `json:"kind"`
	Value       float64       `json:"value"`
	Unit        StatisticUnit `json:"unit"`
	Description string        `json:"description"`
	Source      string        `json:"source"`
}

// Entry converts a catalog record to a payload entry.
func (s *ReferenceStatistic) Entry() StatisticEntry {
	return StatisticEntry{
		ID:          s.ID,
		Kind:        s.Kind,
		Value:       s.Value,
		Unit:        s.Unit,
		Description: s.Description,
		Source:      s.Source,
	}
}
