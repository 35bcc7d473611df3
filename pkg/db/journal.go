package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const journalLogPrefix = "db:journal"

// DefaultRecentLimit bounds Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 20

// Journal records the outcome of every dispatched request.
type Journal struct {
	pool *pgxpool.Pool
}

// NewJournal creates a Journal with the given connection pool.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Record inserts entry. Empty ID and zero Created are filled in.
func (j *Journal) Record(ctx context.Context, entry *JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Created.IsZero() {
		entry.Created = time.Now().UTC()
	}

	_, err := j.pool.Exec(ctx,
		`INSERT INTO dispatch_journal (id, request_id, action, ok, code, duration_ms, created)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		entry.ID, entry.RequestID, entry.Action, entry.OK, entry.Code, entry.DurationMs, entry.Created)
	if err != nil {
		return fmt.Errorf("%s - failed to record %s: %w", journalLogPrefix, entry.Action, err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	slog.Debug(fmt.Sprintf("%s - Recent limit=%d", journalLogPrefix, limit))

	rows, err := j.pool.Query(ctx,
		`SELECT id::text, request_id, action, ok, COALESCE(code, ''), duration_ms, created
		 FROM dispatch_journal
		 ORDER BY created DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to query recent entries: %w", journalLogPrefix, err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (JournalEntry, error) {
		var e JournalEntry
		err := row.Scan(&e.ID, &e.RequestID, &e.Action, &e.OK, &e.Code, &e.DurationMs, &e.Created)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to scan entries: %w", journalLogPrefix, err)
	}
	return entries, nil
}

// Summary aggregates entries created at or after since, per action.
func (j *Journal) Summary(ctx context.Context, since time.Time) ([]ActionSummary, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT action, count(*), count(*) FILTER (WHERE NOT ok), COALESCE(avg(duration_ms), 0)::float8
		 FROM dispatch_journal
		 WHERE created >= $1
		 GROUP BY action
		 ORDER BY action`, since)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to query summary: %w", journalLogPrefix, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ActionSummary, error) {
		var s ActionSummary
		err := row.Scan(&s.Action, &s.Total, &s.Failed, &s.AvgMs)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to scan summary: %w", journalLogPrefix, err)
	}
	return out, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := j.pool.Exec(ctx, `DELETE FROM dispatch_journal WHERE created < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("%s - failed to prune: %w", journalLogPrefix, err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info(fmt.Sprintf("%s - Pruned %d entries older than %s", journalLogPrefix, n, before.Format(time.RFC3339)))
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}
