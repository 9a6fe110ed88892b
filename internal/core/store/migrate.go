package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS league_entries (
		summoner_id INTEGER NOT NULL,
		queue TEXT NOT NULL,
		tier TEXT NOT NULL,
		division TEXT NOT NULL,
		league_points INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (summoner_id, queue)
	);`,
	`CREATE TABLE IF NOT EXISTS champion_stats (
		summoner_id INTEGER NOT NULL,
		champion_id INTEGER NOT NULL,
		games INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		assists INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (summoner_id, champion_id)
	);`,
	`CREATE TABLE IF NOT EXISTS matches (
		match_id INTEGER NOT NULL,
		summoner_id INTEGER NOT NULL,
		champion_id INTEGER NOT NULL,
		lane TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		queue TEXT NOT NULL DEFAULT '',
		season TEXT NOT NULL DEFAULT '',
		played_at INTEGER NOT NULL,
		PRIMARY KEY (match_id, summoner_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_matches_summoner ON matches(summoner_id);`,
	`CREATE TABLE IF NOT EXISTS detailed_matches (
		match_id INTEGER PRIMARY KEY,
		region TEXT NOT NULL,
		map_id INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		queue TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		duration_s INTEGER NOT NULL DEFAULT 0,
		played_at INTEGER NOT NULL,
		stored_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS match_participants (
		match_id INTEGER NOT NULL,
		participant_id INTEGER NOT NULL,
		summoner_id INTEGER NOT NULL DEFAULT 0,
		champion_id INTEGER NOT NULL,
		team_id INTEGER NOT NULL,
		winner INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		assists INTEGER NOT NULL DEFAULT 0,
		spell1_id INTEGER NOT NULL DEFAULT 0,
		spell2_id INTEGER NOT NULL DEFAULT 0,
		lane TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (match_id, participant_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_match_participants_champion ON match_participants(champion_id);`,
	`CREATE TABLE IF NOT EXISTS participant_stats (
		match_id INTEGER NOT NULL,
		participant_id INTEGER NOT NULL,
		champ_level INTEGER NOT NULL DEFAULT 0,
		double_kills INTEGER NOT NULL DEFAULT 0,
		triple_kills INTEGER NOT NULL DEFAULT 0,
		quadra_kills INTEGER NOT NULL DEFAULT 0,
		penta_kills INTEGER NOT NULL DEFAULT 0,
		largest_killing_spree INTEGER NOT NULL DEFAULT 0,
		damage_to_champions INTEGER NOT NULL DEFAULT 0,
		damage_taken INTEGER NOT NULL DEFAULT 0,
		total_heal INTEGER NOT NULL DEFAULT 0,
		wards_placed INTEGER NOT NULL DEFAULT 0,
		wards_killed INTEGER NOT NULL DEFAULT 0,
		minions_killed INTEGER NOT NULL DEFAULT 0,
		neutral_minions_killed INTEGER NOT NULL DEFAULT 0,
		gold_earned INTEGER NOT NULL DEFAULT 0,
		tower_kills INTEGER NOT NULL DEFAULT 0,
		inhibitor_kills INTEGER NOT NULL DEFAULT 0,
		first_blood_kill INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, participant_id)
	);`,
	`CREATE TABLE IF NOT EXISTS refresh_log (
		summoner_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (summoner_id, kind)
	);`,
	`CREATE TABLE IF NOT EXISTS champions (
		id INTEGER PRIMARY KEY,
		key TEXT NOT NULL,
		name TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS static_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS upstream_backoff (
		limiter_key TEXT PRIMARY KEY,
		request_count INTEGER NOT NULL DEFAULT 0,
		window_start INTEGER NOT NULL,
		backoff_until INTEGER,
		last_429_at INTEGER
	);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	// champion_stats.games is not in every existing database.
	if err := s.ensureColumn(ctx, "champion_stats", "games", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}

	return nil
}

func (s *Store) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnDef)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}

	return nil
}
