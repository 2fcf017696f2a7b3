package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

const statisticColumns = `id, kind, value, unit, description, source, is_active, update_frequency, created_at, last_updated`

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CreateStatistic persists a new reference statistic.
func (s *SQLiteStore) CreateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error {
	prepareStatistic(stat)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statistics (`+statisticColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stat.ID, string(stat.Kind), stat.Value, string(stat.Unit), stat.Description, stat.Source,
		boolToInt(stat.IsActive), string(stat.UpdateFrequency),
		toMillis(stat.CreatedAt), toMillis(stat.LastUpdated),
	)
	if err != nil {
		return classify("insert statistic", err)
	}
	return nil
}

// GetStatistic retrieves a statistic by ID.
func (s *SQLiteStore) GetStatistic(ctx context.Context, id string) (*models.ReferenceStatistic, error) {
	return getStatistic(ctx, s.db, "id", id)
}

// UpdateStatistic replaces every field of the statistic with the same ID.
func (s *SQLiteStore) UpdateStatistic(ctx context.Context, stat *models.ReferenceStatistic) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE statistics
		 SET kind = ?, value = ?, unit = ?, description = ?, source = ?, is_active = ?, update_frequency = ?, last_updated = ?
		 WHERE id = ?`,
		string(stat.Kind), stat.Value, string(stat.Unit), stat.Description, stat.Source,
		boolToInt(stat.IsActive), string(stat.UpdateFrequency), toMillis(stat.LastUpdated),
		stat.ID,
	)
	if err != nil {
		return classify("update statistic", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("update statistic", err)
	}
	if n == 0 {
		return fmt.Errorf("statistic %s: %w", stat.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteStatistic removes a statistic by ID.
func (s *SQLiteStore) DeleteStatistic(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM statistics WHERE id = ?", id)
	if err != nil {
		return storage.Unavailable("delete statistic", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("delete statistic", err)
	}
	if n == 0 {
		return fmt.Errorf("statistic %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// ListStatistics returns statistics sorted by kind.
func (s *SQLiteStore) ListStatistics(ctx context.Context, activeOnly bool) ([]*models.ReferenceStatistic, error) {
	query := `SELECT ` + statisticColumns + ` FROM statistics`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY kind ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("list statistics", err)
	}
	defer rows.Close()

	stats := []*models.ReferenceStatistic{}
	for rows.Next() {
		stat, err := scanStatistic(rows.Scan)
		if err != nil {
			return nil, storage.Unavailable("scan statistic", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("iterate statistics", err)
	}
	return stats, nil
}

// SetStatisticValue upserts by kind. An existing record keeps everything
// but its value and last-updated time.
func (s *SQLiteStore) SetStatisticValue(ctx context.Context, stat *models.ReferenceStatistic) (*models.ReferenceStatistic, error) {
	prepareStatistic(stat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.Unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO statistics (`+statisticColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET value = excluded.value, last_updated = excluded.last_updated`,
		stat.ID, string(stat.Kind), stat.Value, string(stat.Unit), stat.Description, stat.Source,
		boolToInt(stat.IsActive), string(stat.UpdateFrequency),
		toMillis(stat.CreatedAt), toMillis(stat.LastUpdated),
	)
	if err != nil {
		return nil, classify("upsert statistic", err)
	}

	stored, err := getStatistic(ctx, tx, "kind", string(stat.Kind))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storage.Unavailable("commit transaction", err)
	}
	return stored, nil
}

// IncrementStatistic adds delta to the value of kind in a single statement.
func (s *SQLiteStore) IncrementStatistic(ctx context.Context, kind models.StatisticKind, delta float64) (*models.ReferenceStatistic, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.Unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE statistics SET value = value + ?, last_updated = ?
		 WHERE kind = ? AND value + ? >= 0`,
		delta, toMillis(time.Now()), string(kind), delta,
	)
	if err != nil {
		return nil, classify("increment statistic", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storage.Unavailable("increment statistic", err)
	}

	stored, err := getStatistic(ctx, tx, "kind", string(kind))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("statistic %s would become negative: %w", kind, storage.ErrConflict)
	}
	if err := tx.Commit(); err != nil {
		return nil, storage.Unavailable("commit transaction", err)
	}
	return stored, nil
}

func prepareStatistic(stat *models.ReferenceStatistic) {
	if stat.ID == "" {
		stat.ID = uuid.New().String()
	}
	if stat.CreatedAt.IsZero() {
		stat.CreatedAt = time.Now().UTC()
	}
	if stat.LastUpdated.IsZero() {
		stat.LastUpdated = stat.CreatedAt
	}
}

// getStatistic looks a statistic up by the id or kind column.
func getStatistic(ctx context.Context, q rowQuerier, column, key string) (*models.ReferenceStatistic, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+statisticColumns+` FROM statistics WHERE `+column+` = ?`, key)
	stat, err := scanStatistic(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("statistic %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.Unavailable("get statistic", err)
	}
	return stat, nil
}

func scanStatistic(scan func(dest ...interface{}) error) (*models.ReferenceStatistic, error) {
	stat := &models.ReferenceStatistic{}
	var active int
	var created, updated int64
	if err := scan(&stat.ID, &stat.Kind, &stat.Value, &stat.Unit, &stat.Description, &stat.Source,
		&active, &stat.UpdateFrequency, &created, &updated); err != nil {
		return nil, err
	}
	stat.IsActive = active != 0
	stat.CreatedAt = fromMillis(created)
	stat.LastUpdated = fromMillis(updated)
	return stat, nil
}
