package service

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aquaguard/aquaguard/internal/auth"
	"github.com/aquaguard/aquaguard/internal/middleware"
	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/stats"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// StatisticService serves the /api/statistics routes. Reads are public;
// catalog writes require an admin token.
type StatisticService struct {
	catalog    storage.StatisticStore
	aggregator *stats.Aggregator
	jwtManager *auth.JWTManager
	now        func() time.Time
}

// NewStatisticService creates a StatisticService.
func NewStatisticService(catalog storage.StatisticStore, aggregator *stats.Aggregator, jwtManager *auth.JWTManager) *StatisticService {
	return &StatisticService{
		catalog:    catalog,
		aggregator: aggregator,
		jwtManager: jwtManager,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers the statistic routes on r.
func (s *StatisticService) Routes(r chi.Router) {
	r.Get("/", s.GetPublicStatistics)
	r.Get("/global", s.ListGlobalStatistics)
	r.Get("/pledges", s.GetPledgeStatistics)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.jwtManager), middleware.RequireAdmin)
		r.Post("/", s.CreateStatistic)
		r.Put("/{id}", s.UpdateStatistic)
		r.Delete("/{id}", s.DeleteStatistic)
		r.Put("/kinds/{kind}/value", s.SetStatisticValue)
		r.Post("/kinds/{kind}/increment", s.IncrementStatistic)
	})
}

// GetPublicStatistics returns the catalog merged with the derived entries.
func (s *StatisticService) GetPublicStatistics(w http.ResponseWriter, r *http.Request) {
	entries, err := s.aggregator.BuildPublicStatsPayload(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListGlobalStatistics returns the active catalog entries sorted by kind.
func (s *StatisticService) ListGlobalStatistics(w http.ResponseWriter, r *http.Request) {
	list, err := s.aggregator.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.ReferenceStatistic{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetPledgeStatistics returns the pledge summary.
func (s *StatisticService) GetPledgeStatistics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.aggregator.BuildSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *StatisticService) CreateStatistic(w http.ResponseWriter, r *http.Request) {
	var in models.StatisticInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	stat, err := models.NewStatistic(in, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.catalog.CreateStatistic(r.Context(), stat); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Statistic created", "statistic_id", stat.ID, "kind", stat.Kind, "value", stat.Value)
	writeJSON(w, http.StatusCreated, stat)
}

func (s *StatisticService) UpdateStatistic(w http.ResponseWriter, r *http.Request) {
	stat, err := s.catalog.GetStatistic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in models.StatisticInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := stat.Apply(in, s.now()); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.catalog.UpdateStatistic(r.Context(), stat); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Statistic updated", "statistic_id", stat.ID, "kind", stat.Kind)
	writeJSON(w, http.StatusOK, stat)
}

func (s *StatisticService) DeleteStatistic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.DeleteStatistic(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Statistic deleted", "statistic_id", id)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Statistic deleted successfully"})
}

type setValueRequest struct {
	Value *float64 `json:"value"`
}

// SetStatisticValue overwrites the value of a kind, creating the record with
// the kind's defaults when it does not exist.
func (s *StatisticService) SetStatisticValue(w http.ResponseWriter, r *http.Request) {
	kind := models.StatisticKind(chi.URLParam(r, "kind"))
	if err := models.ValidateKind(kind); err != nil {
		writeError(w, r, err)
		return
	}

	var req setValueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Value == nil {
		verr := &models.ValidationError{}
		verr.Add("value", "Value is required")
		writeError(w, r, verr)
		return
	}

	stat, err := models.DefaultStatistic(kind, *req.Value, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	stored, err := s.catalog.SetStatisticValue(r.Context(), stat)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Statistic value set", "kind", kind, "value", stored.Value)
	writeJSON(w, http.StatusOK, stored)
}

type incrementRequest struct {
	Delta *float64 `json:"delta"`
}

// IncrementStatistic adds delta (default 1) to the value of a kind.
func (s *StatisticService) IncrementStatistic(w http.ResponseWriter, r *http.Request) {
	kind := models.StatisticKind(chi.URLParam(r, "kind"))
	if err := models.ValidateKind(kind); err != nil {
		writeError(w, r, err)
		return
	}

	var req incrementRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, err)
		return
	}
	delta := 1.0
	if req.Delta != nil {
		delta = *req.Delta
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		verr := &models.ValidationError{}
		verr.Add("delta", "Delta must be a finite number")
		writeError(w, r, verr)
		return
	}

	stat, err := s.catalog.IncrementStatistic(r.Context(), kind, delta)
	if errors.Is(err, storage.ErrConflict) {
		writeJSON(w, http.StatusConflict, errorResponse{Message: "Statistic value cannot become negative"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Statistic incremented", "kind", kind, "delta", delta, "value", stat.Value)
	writeJSON(w, http.StatusOK, stat)
}
