package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/experiments"
	"github.com/ewhitford/labsite/internal/models"
)

// SQLiteStore persists experiment sessions and responses. Deduplication is
// enforced by the UNIQUE (session_id, experiment_slug) constraint, not in
// application logic, so concurrent duplicate submissions cannot race past it.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

func NewSQLiteStore(db *sql.DB, log *zap.SugaredLogger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// UpsertSession creates the session row for tokenHash or refreshes its
// last-seen timestamp, and returns the stored session either way.
func (s *SQLiteStore) UpsertSession(ctx context.Context, tokenHash string) (*models.ExperimentSession, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO experiment_sessions (session_token_hash) VALUES (?)
		ON CONFLICT (session_token_hash)
		DO UPDATE SET last_seen_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		tokenHash,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert experiment session: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_token_hash, created_at, last_seen_at
		FROM experiment_sessions
		WHERE session_token_hash = ?`,
		tokenHash,
	)
	var (
		sess              models.ExperimentSession
		created, lastSeen string
	)
	if err := row.Scan(&sess.ID, &sess.SessionTokenHash, &created, &lastSeen); err != nil {
		return nil, fmt.Errorf("read experiment session: %w", err)
	}
	if sess.CreatedAt, err = parseStoredTime(created); err != nil {
		return nil, err
	}
	if sess.LastSeenAt, err = parseStoredTime(lastSeen); err != nil {
		return nil, err
	}
	return &sess, nil
}

// InsertResponse inserts one response row. A uniqueness violation on
// (session_id, experiment_slug) is reported as experiments.ErrDuplicateResponse.
func (s *SQLiteStore) InsertResponse(ctx context.Context, r *models.ExperimentResponse) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO experiment_responses (
			session_id, experiment_slug,
			amount_given, amount_kept, donation_timing,
			age_range, gender_identity, country_or_region,
			education_level, employment_status, income_range,
			browser_language, timezone_offset_minutes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.ExperimentSlug,
		r.AmountGiven, r.AmountKept, r.DonationTiming,
		r.AgeRange, r.GenderIdentity, r.CountryOrRegion,
		r.EducationLevel, r.EmploymentStatus, r.IncomeRange,
		r.BrowserLanguage, r.TimezoneOffsetMinutes,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, experiments.ErrDuplicateResponse
		}
		return 0, fmt.Errorf("insert experiment response: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted response id: %w", err)
	}
	return id, nil
}

// ListResponses returns every response for the experiment slug, most recent
// first.
func (s *SQLiteStore) ListResponses(ctx context.Context, experimentSlug string) ([]*models.ExperimentResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, experiment_slug,
			amount_given, amount_kept, donation_timing,
			age_range, gender_identity, country_or_region,
			education_level, employment_status, income_range,
			browser_language, timezone_offset_minutes, created_at
		FROM experiment_responses
		WHERE experiment_slug = ?
		ORDER BY created_at DESC, id DESC`,
		experimentSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("list experiment responses: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Warnw("close response rows", "error", cerr)
		}
	}()

	var out []*models.ExperimentResponse
	for rows.Next() {
		var (
			r       models.ExperimentResponse
			created string
		)
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.ExperimentSlug,
			&r.AmountGiven, &r.AmountKept, &r.DonationTiming,
			&r.AgeRange, &r.GenderIdentity, &r.CountryOrRegion,
			&r.EducationLevel, &r.EmploymentStatus, &r.IncomeRange,
			&r.BrowserLanguage, &r.TimezoneOffsetMinutes, &created,
		); err != nil {
			return nil, fmt.Errorf("scan experiment response: %w", err)
		}
		if r.CreatedAt, err = parseStoredTime(created); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiment responses: %w", err)
	}
	return out, nil
}

func parseStoredTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse stored timestamp %q", value)
}
