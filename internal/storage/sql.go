package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vocadrill/vocadrill/internal/domain"
	"github.com/vocadrill/vocadrill/internal/sm2"

	_ "github.com/jackc/pgx/v5/stdlib" // Registers the pgx driver
	_ "modernc.org/sqlite"             // Registers the sqlite driver
)

// SQLStore persists schedules in a relational database. It serves both the
// sqlite and pgx drivers; queries are written with ? placeholders and rebound
// per driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	logger *slog.Logger
}

var _ Store = (*SQLStore)(nil)

// OpenSQL connects to the database, applies the schema, and returns the
// store. driver must be "sqlite" or "pgx".
func OpenSQL(driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite allows a single writer; one connection serializes all
		// read-modify-write cycles.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLStore{db: db, driver: driver, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (s *SQLStore) Get(ctx context.Context, userID, cardID string) (*domain.Schedule, error) {
	var sched domain.Schedule
	q := s.db.Rebind(`
		SELECT card_id, repetitions, interval_days, ef, due_at, last_answer
		FROM reviews WHERE user_id = ? AND card_id = ?
	`)
	err := s.db.GetContext(ctx, &sched, q, userID, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get schedule", err)
	}
	return &sched, nil
}

const upsertQuery = `
	INSERT INTO reviews (user_id, card_id, repetitions, interval_days, ef, due_at, last_answer)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, card_id) DO UPDATE SET
		repetitions = excluded.repetitions,
		interval_days = excluded.interval_days,
		ef = excluded.ef,
		due_at = excluded.due_at,
		last_answer = excluded.last_answer
`

func (s *SQLStore) Upsert(ctx context.Context, userID string, sched domain.Schedule) error {
	q := s.db.Rebind(upsertQuery)
	_, err := s.db.ExecContext(ctx, q, userID, sched.CardID, sched.Repetitions,
		sched.Interval, sched.EF, sched.DueAt.UTC(), sched.LastAnswer)
	if err != nil {
		return storeErr("upsert schedule", err)
	}
	return nil
}

const insertIgnoreQuery = `
	INSERT INTO reviews (user_id, card_id, repetitions, interval_days, ef, due_at, last_answer)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, card_id) DO NOTHING
`

func (s *SQLStore) Add(ctx context.Context, userID string, sched domain.Schedule) (bool, error) {
	q := s.db.Rebind(insertIgnoreQuery)
	res, err := s.db.ExecContext(ctx, q, userID, sched.CardID, sched.Repetitions,
		sched.Interval, sched.EF, sched.DueAt.UTC(), sched.LastAnswer)
	if err != nil {
		return false, storeErr("add schedule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("add schedule", err)
	}
	return n > 0, nil
}

// Submit reads the current row, applies compute, and writes the new schedule
// plus the log entry in one transaction. On postgres the row is locked with
// FOR UPDATE; the sqlite backend serializes through its single connection.
//
// FOR UPDATE locks nothing when the row does not exist yet, so a first rating
// inserts the initial row before computing. Two concurrent first ratings then
// contend on that row instead of both computing from an empty read.
func (s *SQLStore) Submit(ctx context.Context, userID, cardID string, compute ComputeFunc) (domain.Schedule, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Schedule{}, storeErr("begin submit", err)
	}
	defer tx.Rollback()

	sel := `
		SELECT card_id, repetitions, interval_days, ef, due_at, last_answer
		FROM reviews WHERE user_id = ? AND card_id = ?
	`
	if s.driver == "pgx" {
		sel += " FOR UPDATE"
	}

	var current *domain.Schedule
	var cur domain.Schedule
	err = tx.GetContext(ctx, &cur, tx.Rebind(sel), userID, cardID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		seed := sm2.NewSchedule(cardID, time.Now().UTC())
		res, err := tx.ExecContext(ctx, tx.Rebind(insertIgnoreQuery), userID, seed.CardID,
			seed.Repetitions, seed.Interval, seed.EF, seed.DueAt, seed.LastAnswer)
		if err != nil {
			return domain.Schedule{}, storeErr("seed schedule", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.Schedule{}, storeErr("seed schedule", err)
		}
		if n == 0 {
			// Another transaction inserted the row after our first read;
			// re-read it, this time with something to lock.
			err := tx.GetContext(ctx, &cur, tx.Rebind(sel), userID, cardID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				current = nil
			case err != nil:
				return domain.Schedule{}, storeErr("read schedule", err)
			default:
				current = &cur
			}
		}
	case err != nil:
		return domain.Schedule{}, storeErr("read schedule", err)
	default:
		current = &cur
	}

	next, entry, err := compute(current)
	if err != nil {
		return domain.Schedule{}, err
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(upsertQuery), userID, next.CardID,
		next.Repetitions, next.Interval, next.EF, next.DueAt.UTC(), next.LastAnswer); err != nil {
		return domain.Schedule{}, storeErr("write schedule", err)
	}

	logQ := tx.Rebind(`
		INSERT INTO review_logs (user_id, card_id, rating, reviewed_at)
		VALUES (?, ?, ?, ?)
	`)
	if _, err := tx.ExecContext(ctx, logQ, entry.UserID, entry.CardID, entry.Rating, entry.Timestamp.UTC()); err != nil {
		return domain.Schedule{}, storeErr("append review log", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Schedule{}, storeErr("commit submit", err)
	}
	return next, nil
}

func (s *SQLStore) DueBefore(ctx context.Context, userID string, at time.Time, limit int) ([]domain.Schedule, error) {
	q := `
		SELECT card_id, repetitions, interval_days, ef, due_at, last_answer
		FROM reviews WHERE user_id = ? AND due_at <= ?
		ORDER BY due_at ASC
	`
	args := []any{userID, at.UTC()}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var due []domain.Schedule
	if err := s.db.SelectContext(ctx, &due, s.db.Rebind(q), args...); err != nil {
		return nil, storeErr("query due schedules", err)
	}
	return due, nil
}

func (s *SQLStore) Delete(ctx context.Context, userID, cardID string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, storeErr("begin delete", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM reviews WHERE user_id = ? AND card_id = ?`), userID, cardID)
	if err != nil {
		return false, storeErr("delete schedule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("delete schedule", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM review_logs WHERE user_id = ? AND card_id = ?`), userID, cardID); err != nil {
		return false, storeErr("delete review logs", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit delete", err)
	}
	return n > 0, nil
}

func (s *SQLStore) SetAllDueNow(ctx context.Context, userID string, now time.Time) error {
	q := s.db.Rebind(`UPDATE reviews SET due_at = ? WHERE user_id = ?`)
	if _, err := s.db.ExecContext(ctx, q, now.UTC(), userID); err != nil {
		return storeErr("reset due dates", err)
	}
	return nil
}

func (s *SQLStore) CollectionIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	q := s.db.Rebind(`SELECT card_id FROM reviews WHERE user_id = ? ORDER BY card_id`)
	if err := s.db.SelectContext(ctx, &ids, q, userID); err != nil {
		return nil, storeErr("list collection", err)
	}
	return ids, nil
}

func (s *SQLStore) Stats(ctx context.Context, userID string, now time.Time) (domain.Stats, error) {
	// A single query keeps the counts a consistent snapshot of one moment.
	q := s.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN due_at <= ? THEN 1 ELSE 0 END), 0) AS due,
			COALESCE(SUM(CASE WHEN repetitions >= ? AND interval_days >= ? THEN 1 ELSE 0 END), 0) AS mastered
		FROM reviews WHERE user_id = ?
	`)

	var st domain.Stats
	err := s.db.GetContext(ctx, &st, q, now.UTC(), sm2.MasteredRepetitions, sm2.MasteredInterval, userID)
	if err != nil {
		return domain.Stats{}, storeErr("aggregate stats", err)
	}

	st.Learning = st.Total - st.Mastered
	if st.Learning < 0 {
		st.Learning = 0
	}
	return st, nil
}

func (s *SQLStore) History(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	var stamps []time.Time
	q := s.db.Rebind(`SELECT reviewed_at FROM review_logs WHERE user_id = ? AND reviewed_at >= ?`)
	if err := s.db.SelectContext(ctx, &stamps, q, userID, since.UTC()); err != nil {
		return nil, storeErr("query review history", err)
	}

	// Bucketing happens here rather than in SQL so both drivers share one
	// query shape.
	byDay := make(map[string]int, len(stamps))
	for _, ts := range stamps {
		byDay[ts.UTC().Format("2006-01-02")]++
	}
	return byDay, nil
}
