// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquaguard/aquaguard/internal/models"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a store constraint, such
	// as a second statistic of the same kind, a reused email or a negative
	// value.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned when the underlying store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// Unavailable wraps a driver failure for op so that it matches both
// ErrUnavailable and err with errors.Is.
func Unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrUnavailable, err)
}

// MaxMonthlyPeriods bounds the result of PledgeStore.MonthlyBreakdown.
const MaxMonthlyPeriods = 12

// PledgeStore persists pledge records.
type PledgeStore interface {
	// CreatePledge persists a new pledge. The store assigns pledge.ID and
	// fills zero timestamps.
	CreatePledge(ctx context.Context, pledge *models.Pledge) error

	// GetPledge retrieves a pledge by ID. Returns ErrNotFound if absent.
	GetPledge(ctx context.Context, id string) (*models.Pledge, error)

	// UpdatePledge replaces the stored pledge with the same ID.
	// Returns ErrNotFound if absent.
	UpdatePledge(ctx context.Context, pledge *models.Pledge) error

	// DeletePledge removes a pledge. Returns ErrNotFound if absent.
	DeletePledge(ctx context.Context, id string) error

	// ListPledges returns one page of pledges, newest first.
	ListPledges(ctx context.Context, limit, offset int) ([]*models.Pledge, error)

	// ListPledgesBySubmitter returns the submitter's pledges, newest first.
	ListPledgesBySubmitter(ctx context.Context, submitterID string) ([]*models.Pledge, error)

	CountPledges(ctx context.Context) (int64, error)
	SumWaterSaved(ctx context.Context) (int64, error)

	// MonthlyBreakdown groups pledges by UTC creation year and month, newest
	// first, limited to MaxMonthlyPeriods periods.
	MonthlyBreakdown(ctx context.Context) ([]models.MonthlyPledges, error)

	// CommitmentPopularity counts each commitment once per pledge that
	// contains it, sorted by count descending then commitment ascending.
	CommitmentPopularity(ctx context.Context) ([]models.CommitmentCount, error)
}

// StatisticStore persists the reference statistic catalog.
// At most one record exists per kind.
type StatisticStore interface {
	// CreateStatistic persists a new statistic. Returns ErrConflict if a
	// statistic of the same kind exists.
	CreateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error

	GetStatistic(ctx context.Context, id string) (*models.ReferenceStatistic, error)

	// UpdateStatistic replaces the stored statistic with the same ID.
	// Returns ErrConflict if the new kind is taken by another record.
	UpdateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error

	DeleteStatistic(ctx context.Context, id string) error

	// ListStatistics returns statistics sorted by kind ascending.
	ListStatistics(ctx context.Context, activeOnly bool) ([]*models.ReferenceStatistic, error)

	// SetStatisticValue overwrites the value of kind, or creates it from
	// stat when absent. It returns the stored record.
	SetStatisticValue(ctx context.Context, stat *models.ReferenceStatistic) (*models.ReferenceStatistic, error)

	// IncrementStatistic atomically adds delta to the value of kind.
	// Returns ErrNotFound if kind has no record and ErrConflict if the
	// result would be negative.
	IncrementStatistic(ctx context.Context, kind models.StatisticKind, delta float64) (*models.ReferenceStatistic, error)
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser persists a new user. Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateUser replaces display name, email and role.
	UpdateUser(ctx context.Context, user *models.User) error
}

// Store defines the full set of storage operations.
// This abstraction allows swapping storage backends (SQLite, MongoDB,
// DynamoDB) without changing the service layer.
type Store interface {
	PledgeStore
	StatisticStore
	UserStore

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
