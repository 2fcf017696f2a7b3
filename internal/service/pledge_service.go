package service

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aquaguard/aquaguard/internal/auth"
	"github.com/aquaguard/aquaguard/internal/metrics"
	"github.com/aquaguard/aquaguard/internal/middleware"
	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/stats"
	"github.com/aquaguard/aquaguard/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PledgeService serves the /api/pledges routes.
type PledgeService struct {
	store      storage.PledgeStore
	aggregator *stats.Aggregator
	jwtManager *auth.JWTManager
	limiter    *middleware.RateLimiter
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewPledgeService creates a PledgeService. limiter and m may be nil.
func NewPledgeService(store storage.PledgeStore, aggregator *stats.Aggregator, jwtManager *auth.JWTManager, limiter *middleware.RateLimiter, m *metrics.Metrics) *PledgeService {
	return &PledgeService{
		store:      store,
		aggregator: aggregator,
		jwtManager: jwtManager,
		limiter:    limiter,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers the pledge routes on r.
func (s *PledgeService) Routes(r chi.Router) {
	r.Get("/", s.ListPledges)
	r.Get("/stats/summary", s.GetSummary)

	create := []func(http.Handler) http.Handler{middleware.OptionalAuth(s.jwtManager)}
	if s.limiter != nil {
		create = append(create, s.limiter.Limit)
	}
	r.With(create...).Post("/", s.CreatePledge)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.jwtManager))
		r.Get("/my-pledges", s.ListMyPledges)
		r.Put("/{id}", s.UpdatePledge)
		r.Delete("/{id}", s.DeletePledge)
	})
}

type pledgePageResponse struct {
	Pledges []*models.Pledge `json:"pledges"`
	Total   int64            `json:"total"`
}

type pledgeListResponse struct {
	Pledges []*models.Pledge `json:"pledges"`
}

// ListPledges returns one page of pledges, newest first, without emails.
func (s *PledgeService) ListPledges(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case limit == 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}

	pledges, err := s.store.ListPledges(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := s.store.CountPledges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	public := make([]*models.Pledge, len(pledges))
	for i, p := range pledges {
		public[i] = p.PublicView()
	}
	writeJSON(w, http.StatusOK, pledgePageResponse{Pledges: public, Total: total})
}

// CreatePledge validates and stores a pledge. A signed-in caller becomes
// its submitter.
func (s *PledgeService) CreatePledge(w http.ResponseWriter, r *http.Request) {
	var in models.PledgeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	submitterID := middleware.GetUserID(r.Context())
	pledge, err := models.NewPledge(in, submitterID, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.store.CreatePledge(r.Context(), pledge); err != nil {
		writeError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.PledgeCreated(pledge.DailyWaterSavedLiters)
	}

	slog.Info("Pledge created",
		"pledge_id", pledge.ID,
		"submitter_id", submitterID,
		"commitments", len(pledge.Commitments),
		"daily_liters", pledge.DailyWaterSavedLiters,
	)
	writeJSON(w, http.StatusCreated, pledge)
}

// ListMyPledges returns the caller's own pledges, newest first.
func (s *PledgeService) ListMyPledges(w http.ResponseWriter, r *http.Request) {
	pledges, err := s.store.ListPledgesBySubmitter(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if pledges == nil {
		pledges = []*models.Pledge{}
	}
	writeJSON(w, http.StatusOK, pledgeListResponse{Pledges: pledges})
}

// GetSummary returns the platform-wide pledge summary.
func (s *PledgeService) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.aggregator.BuildSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// UpdatePledge replaces the user-supplied fields of a pledge. Only its
// submitter or an admin may do so.
func (s *PledgeService) UpdatePledge(w http.ResponseWriter, r *http.Request) {
	pledge, err := s.ownedPledge(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in models.PledgeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := pledge.Apply(in, s.now()); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.UpdatePledge(r.Context(), pledge); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Pledge updated", "pledge_id", pledge.ID, "daily_liters", pledge.DailyWaterSavedLiters)
	writeJSON(w, http.StatusOK, pledge)
}

// DeletePledge removes a pledge. Only its submitter or an admin may do so.
func (s *PledgeService) DeletePledge(w http.ResponseWriter, r *http.Request) {
	pledge, err := s.ownedPledge(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeletePledge(r.Context(), pledge.ID); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Pledge deleted", "pledge_id", pledge.ID, "user_id", middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Pledge deleted successfully"})
}

// ownedPledge loads the pledge named in the path and checks that the caller
// submitted it or is an admin.
func (s *PledgeService) ownedPledge(r *http.Request) (*models.Pledge, error) {
	pledge, err := s.store.GetPledge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	userID := middleware.GetUserID(r.Context())
	if middleware.IsAdmin(r.Context()) || (pledge.SubmitterID != "" && pledge.SubmitterID == userID) {
		return pledge, nil
	}
	return nil, ErrForbidden
}
