package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/riftlens/riftlens/internal/core"
)

const metaVersion = "version"

// ReplaceChampions stores the static champion catalog and its version.
func (s *Store) ReplaceChampions(ctx context.Context, version string, champions []core.Champion, at time.Time) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin champion catalog", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM champions`); err != nil {
		return storeErr("clear champions", err)
	}
	for _, c := range champions {
		image, err := json.Marshal(c.Image)
		if err != nil {
			return storeErr("encode champion image", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO champions (id, key, name, title, image, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, c.Key, c.Name, c.Title, string(image), at.UTC().UnixMilli()); err != nil {
			return storeErr("insert champion", err)
		}
	}
	if version != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO static_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, metaVersion, version); err != nil {
			return storeErr("store version", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit champion catalog", err)
	}
	return nil
}

// Champions returns the stored catalog and version. An empty catalog is not
// an error.
func (s *Store) Champions(ctx context.Context) ([]core.Champion, string, error) {
	if s == nil || s.DB == nil {
		return nil, "", errNotInitialized
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, key, name, title, image FROM champions ORDER BY id`)
	if err != nil {
		return nil, "", storeErr("champions", err)
	}

	var out []core.Champion
	for rows.Next() {
		var (
			c     core.Champion
			image string
		)
		if err := rows.Scan(&c.ID, &c.Key, &c.Name, &c.Title, &image); err != nil {
			_ = rows.Close()
			return nil, "", storeErr("scan champions", err)
		}
		if err := json.Unmarshal([]byte(image), &c.Image); err != nil {
			_ = rows.Close()
			return nil, "", storeErr("decode champion image", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, "", storeErr("champions", err)
	}
	_ = rows.Close()

	var version string
	err = s.DB.QueryRowContext(ctx, `SELECT value FROM static_meta WHERE key = ?`, metaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", storeErr("version", err)
	}
	return out, version, nil
}
