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

const pledgeColumns = `id, submitter_id, display_name, email, daily_water_saved, is_anonymous, created_at, updated_at`

// CreatePledge persists a new pledge and its commitments.
func (s *SQLiteStore) CreatePledge(ctx context.Context, pledge *models.Pledge) error {
	// Generate IDs if not set
	if pledge.ID == "" {
		pledge.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if pledge.CreatedAt.IsZero() {
		pledge.CreatedAt = now
	}
	if pledge.UpdatedAt.IsZero() {
		pledge.UpdatedAt = pledge.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pledges (`+pledgeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pledge.ID, nullString(pledge.SubmitterID), pledge.DisplayName, pledge.Email,
		pledge.DailyWaterSavedLiters, boolToInt(pledge.IsAnonymous),
		toMillis(pledge.CreatedAt), toMillis(pledge.UpdatedAt),
	)
	if err != nil {
		return classify("insert pledge", err)
	}

	if err := insertCommitments(ctx, tx, pledge); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storage.Unavailable("commit transaction", err)
	}
	return nil
}

// GetPledge retrieves a pledge by ID, including its commitments.
func (s *SQLiteStore) GetPledge(ctx context.Context, id string) (*models.Pledge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pledgeColumns+` FROM pledges WHERE id = ?`, id)
	if err != nil {
		return nil, storage.Unavailable("get pledge", err)
	}
	pledges, err := scanPledges(rows)
	if err != nil {
		return nil, err
	}
	if len(pledges) == 0 {
		return nil, fmt.Errorf("pledge %s: %w", id, storage.ErrNotFound)
	}
	if err := s.attachCommitments(ctx, pledges); err != nil {
		return nil, err
	}
	return pledges[0], nil
}

// UpdatePledge replaces a pledge's fields and commitments.
func (s *SQLiteStore) UpdatePledge(ctx context.Context, pledge *models.Pledge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE pledges
		 SET submitter_id = ?, display_name = ?, email = ?, daily_water_saved = ?, is_anonymous = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(pledge.SubmitterID), pledge.DisplayName, pledge.Email,
		pledge.DailyWaterSavedLiters, boolToInt(pledge.IsAnonymous), toMillis(pledge.UpdatedAt),
		pledge.ID,
	)
	if err != nil {
		return classify("update pledge", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storage.Unavailable("update pledge", err)
	} else if n == 0 {
		return fmt.Errorf("pledge %s: %w", pledge.ID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pledge_commitments WHERE pledge_id = ?", pledge.ID); err != nil {
		return storage.Unavailable("clear pledge commitments", err)
	}
	if err := insertCommitments(ctx, tx, pledge); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storage.Unavailable("commit transaction", err)
	}
	return nil
}

// DeletePledge removes a pledge by ID. Its commitments cascade.
func (s *SQLiteStore) DeletePledge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pledges WHERE id = ?", id)
	if err != nil {
		return storage.Unavailable("delete pledge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("delete pledge", err)
	}
	if n == 0 {
		return fmt.Errorf("pledge %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// ListPledges returns one page of pledges, newest first.
func (s *SQLiteStore) ListPledges(ctx context.Context, limit, offset int) ([]*models.Pledge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pledgeColumns+` FROM pledges ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, storage.Unavailable("list pledges", err)
	}
	pledges, err := scanPledges(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachCommitments(ctx, pledges); err != nil {
		return nil, err
	}
	return pledges, nil
}

// ListPledgesBySubmitter returns every pledge owned by submitterID, newest first.
func (s *SQLiteStore) ListPledgesBySubmitter(ctx context.Context, submitterID string) ([]*models.Pledge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pledgeColumns+` FROM pledges WHERE submitter_id = ? ORDER BY created_at DESC, id DESC`,
		submitterID,
	)
	if err != nil {
		return nil, storage.Unavailable("list pledges by submitter", err)
	}
	pledges, err := scanPledges(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachCommitments(ctx, pledges); err != nil {
		return nil, err
	}
	return pledges, nil
}

// CountPledges returns the number of stored pledges.
func (s *SQLiteStore) CountPledges(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pledges").Scan(&n); err != nil {
		return 0, storage.Unavailable("count pledges", err)
	}
	return n, nil
}

// SumWaterSaved returns the total daily liters saved across all pledges.
func (s *SQLiteStore) SumWaterSaved(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(daily_water_saved), 0) FROM pledges").Scan(&n)
	if err != nil {
		return 0, storage.Unavailable("sum water saved", err)
	}
	return n, nil
}

// MonthlyBreakdown groups pledges by UTC creation month, newest first.
func (s *SQLiteStore) MonthlyBreakdown(ctx context.Context) ([]models.MonthlyPledges, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', created_at / 1000, 'unixepoch') AS INTEGER) AS year,
		        CAST(strftime('%m', created_at / 1000, 'unixepoch') AS INTEGER) AS month,
		        COUNT(*), COALESCE(SUM(daily_water_saved), 0)
		 FROM pledges
		 GROUP BY year, month
		 ORDER BY year DESC, month DESC
		 LIMIT ?`,
		storage.MaxMonthlyPeriods,
	)
	if err != nil {
		return nil, storage.Unavailable("aggregate monthly pledges", err)
	}
	defer rows.Close()

	months := []models.MonthlyPledges{}
	for rows.Next() {
		var m models.MonthlyPledges
		if err := rows.Scan(&m.Year, &m.Month, &m.Count, &m.WaterSaved); err != nil {
			return nil, storage.Unavailable("scan monthly pledges", err)
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("iterate monthly pledges", err)
	}
	return months, nil
}

// CommitmentPopularity counts how many pledges include each commitment.
func (s *SQLiteStore) CommitmentPopularity(ctx context.Context) ([]models.CommitmentCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT commitment, COUNT(DISTINCT pledge_id) AS n
		 FROM pledge_commitments
		 GROUP BY commitment
		 ORDER BY n DESC, commitment ASC`)
	if err != nil {
		return nil, storage.Unavailable("aggregate commitment popularity", err)
	}
	defer rows.Close()

	counts := []models.CommitmentCount{}
	for rows.Next() {
		var c models.CommitmentCount
		if err := rows.Scan(&c.Commitment, &c.Count); err != nil {
			return nil, storage.Unavailable("scan commitment popularity", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("iterate commitment popularity", err)
	}
	return counts, nil
}

func insertCommitments(ctx context.Context, tx *sql.Tx, pledge *models.Pledge) error {
	for i, c := range pledge.Commitments {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO pledge_commitments (pledge_id, position, commitment) VALUES (?, ?, ?)",
			pledge.ID, i, string(c),
		)
		if err != nil {
			return classify("insert pledge commitment", err)
		}
	}
	return nil
}

// scanPledges reads every row and closes rows before returning, so the
// single pooled connection is free for follow-up queries.
func scanPledges(rows *sql.Rows) ([]*models.Pledge, error) {
	defer rows.Close()

	pledges := []*models.Pledge{}
	for rows.Next() {
		p := &models.Pledge{}
		var submitter sql.NullString
		var anonymous int
		var created, updated int64
		if err := rows.Scan(&p.ID, &submitter, &p.DisplayName, &p.Email,
			&p.DailyWaterSavedLiters, &anonymous, &created, &updated); err != nil {
			return nil, storage.Unavailable("scan pledge", err)
		}
		p.SubmitterID = submitter.String
		p.IsAnonymous = anonymous != 0
		p.CreatedAt = fromMillis(created)
		p.UpdatedAt = fromMillis(updated)
		p.Commitments = []models.Commitment{}
		pledges = append(pledges, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("iterate pledges", err)
	}
	return pledges, nil
}

// attachCommitments loads the commitments of every pledge in one query.
func (s *SQLiteStore) attachCommitments(ctx context.Context, pledges []*models.Pledge) error {
	if len(pledges) == 0 {
		return nil
	}

	byID := make(map[string]*models.Pledge, len(pledges))
	args := make([]interface{}, len(pledges))
	for i, p := range pledges {
		byID[p.ID] = p
		args[i] = p.ID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT pledge_id, commitment FROM pledge_commitments
		 WHERE pledge_id IN (?`+repeatPlaceholder(len(pledges)-1)+`)
		 ORDER BY pledge_id, position`,
		args...,
	)
	if err != nil {
		return storage.Unavailable("get pledge commitments", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var c models.Commitment
		if err := rows.Scan(&id, &c); err != nil {
			return storage.Unavailable("scan pledge commitment", err)
		}
		if p, ok := byID[id]; ok {
			p.Commitments = append(p.Commitments, c)
		}
	}
	if err := rows.Err(); err != nil {
		return storage.Unavailable("iterate pledge commitments", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
