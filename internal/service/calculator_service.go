package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquaguard/aquaguard/internal/calculator"
	"github.com/aquaguard/aquaguard/internal/models"
)

// CalculatorService serves the stateless /api/calculator routes.
type CalculatorService struct{}

// NewCalculatorService creates a CalculatorService.
func NewCalculatorService() *CalculatorService {
	return &CalculatorService{}
}

// Routes registers the calculator routes on r.
func (s *CalculatorService) Routes(r chi.Router) {
	r.Post("/usage", s.CalculateUsage)
	r.Post("/savings", s.PreviewSavings)
}

// CalculateUsage estimates household water use from activity inputs.
func (s *CalculatorService) CalculateUsage(w http.ResponseWriter, r *http.Request) {
	var in calculator.UsageInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := calculator.CalculateUsage(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type savingsRequest struct {
	Commitments []string `json:"commitments"`
}

type savingsResponse struct {
	Commitments           []models.Commitment `json:"commitments"`
	DailyWaterSavedLiters int                 `json:"dailyWaterSavedLiters"`
}

// PreviewSavings returns the daily savings of a commitment list without
// storing anything.
func (s *CalculatorService) PreviewSavings(w http.ResponseWriter, r *http.Request) {
	var req savingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	commitments, err := models.ParseCommitments(req.Commitments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, savingsResponse{
		Commitments:           commitments,
		DailyWaterSavedLiters: calculator.DailySavings(commitments),
	})
}
