package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/riftlens/riftlens/internal/core"
)

// BackoffEntry is the persisted quota state of one limiter key.
type BackoffEntry struct {
	Key   string              `json:"key"`
	State core.RateLimitState `json:"state"`
}

// BackoffQuery selects limiter keys. Exactly one of All, Key or Prefix is
// expected; Key wins over Prefix.
type BackoffQuery struct {
	All    bool
	Key    string
	Prefix string
}

// Validate rejects an empty selection.
func (q BackoffQuery) Validate() error {
	if q.All || strings.TrimSpace(q.Key) != "" || strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --key, or --prefix")
}

func (q BackoffQuery) where() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	switch {
	case q.All:
		return "", nil, nil
	case strings.TrimSpace(q.Key) != "":
		return " WHERE limiter_key = ?", []any{strings.TrimSpace(q.Key)}, nil
	default:
		return " WHERE limiter_key LIKE ?", []any{strings.TrimSpace(q.Prefix) + "%"}, nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func scanBackoff(row rowScanner) (BackoffEntry, error) {
	var (
		entry        BackoffEntry
		windowStart  int64
		backoffUntil sql.NullInt64
		last429At    sql.NullInt64
	)
	if err := row.Scan(&entry.Key, &entry.State.RequestCount, &windowStart, &backoffUntil, &last429At); err != nil {
		return BackoffEntry{}, err
	}
	entry.State.WindowStart = time.UnixMilli(windowStart).UTC()
	entry.State.BackoffUntil = fromMillis(backoffUntil)
	entry.State.Last429At = fromMillis(last429At)
	return entry, nil
}

const backoffColumns = `limiter_key, request_count, window_start, backoff_until, last_429_at`

// LoadBackoff returns the persisted state for key, or nil when none exists.
func (s *Store) LoadBackoff(ctx context.Context, key string) (*core.RateLimitState, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("limiter key is required")
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+backoffColumns+` FROM upstream_backoff WHERE limiter_key = ?`, key)
	entry, err := scanBackoff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load backoff", err)
	}
	return &entry.State, nil
}

// SaveBackoff upserts the state for key. Times are stored as unix milliseconds.
func (s *Store) SaveBackoff(ctx context.Context, key string, state *core.RateLimitState) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("limiter key is required")
	}
	if state == nil {
		return errors.New("backoff state is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO upstream_backoff (`+backoffColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(limiter_key) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			backoff_until = excluded.backoff_until,
			last_429_at = excluded.last_429_at
	`, key, state.RequestCount, state.WindowStart.UTC().UnixMilli(),
		nullMillis(state.BackoffUntil), nullMillis(state.Last429At))
	if err != nil {
		return storeErr("save backoff", err)
	}
	return nil
}

// ListBackoff returns matching entries ordered by key.
func (s *Store) ListBackoff(ctx context.Context, q BackoffQuery) ([]BackoffEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	where, args, err := q.where()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+backoffColumns+` FROM upstream_backoff`+where+` ORDER BY limiter_key`, args...)
	if err != nil {
		return nil, storeErr("list backoff", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	entries := []BackoffEntry{}
	for rows.Next() {
		entry, err := scanBackoff(rows)
		if err != nil {
			return nil, storeErr("scan backoff", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list backoff", err)
	}
	return entries, nil
}

// CountBackoff counts matching entries.
func (s *Store) CountBackoff(ctx context.Context, q BackoffQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM upstream_backoff`+where, args...).Scan(&count); err != nil {
		return 0, storeErr("count backoff", err)
	}
	return count, nil
}

// ClearBackoff deletes matching entries. A running server keeps its
// in-memory backoff until restart.
func (s *Store) ClearBackoff(ctx context.Context, q BackoffQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM upstream_backoff`+where, args...)
	if err != nil {
		return 0, storeErr("clear backoff", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("clear backoff", err)
	}
	return affected, nil
}
