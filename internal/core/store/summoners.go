package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/riftlens/riftlens/internal/core"
)

var errNotInitialized = errors.New("store is not initialized")

func storeErr(op string, err error) error {
	return &core.StoreError{Op: op, Err: err}
}

// inClause returns "(?, ?, ...)" and the matching args for ids.
func inClause(ids []int64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}

// LeagueEntries returns stored standings in queue for the given summoners.
func (s *Store) LeagueEntries(ctx context.Context, summonerIDs []int64, queue string) ([]core.LeagueEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if len(summonerIDs) == 0 {
		return nil, nil
	}

	in, args := inClause(summonerIDs)
	args = append(args, queue)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT summoner_id, queue, tier, division, league_points, wins, losses, updated_at
		FROM league_entries
		WHERE summoner_id IN `+in+` AND queue = ?
		ORDER BY summoner_id
	`, args...)
	if err != nil {
		return nil, storeErr("league entries", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []core.LeagueEntry
	for rows.Next() {
		var (
			entry   core.LeagueEntry
			updated int64
		)
		if err := rows.Scan(&entry.SummonerID, &entry.Queue, &entry.Tier, &entry.Division,
			&entry.LeaguePoints, &entry.Wins, &entry.Losses, &updated); err != nil {
			return nil, storeErr("scan league entries", err)
		}
		entry.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("league entries", err)
	}
	return out, nil
}

// UpsertLeagueEntries replaces standings keyed by summoner and queue.
func (s *Store) UpsertLeagueEntries(ctx context.Context, entries []core.LeagueEntry) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin league upsert", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO league_entries (summoner_id, queue, tier, division, league_points, wins, losses, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(summoner_id, queue) DO UPDATE SET
				tier = excluded.tier,
				division = excluded.division,
				league_points = excluded.league_points,
				wins = excluded.wins,
				losses = excluded.losses,
				updated_at = excluded.updated_at
		`, e.SummonerID, e.Queue, e.Tier, e.Division, e.LeaguePoints, e.Wins, e.Losses, e.UpdatedAt.UTC().UnixMilli()); err != nil {
			return storeErr("upsert league entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit league upsert", err)
	}
	return nil
}

// ChampionStats returns every stored ranked aggregate for the summoners.
func (s *Store) ChampionStats(ctx context.Context, summonerIDs []int64) ([]core.ChampionStat, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if len(summonerIDs) == 0 {
		return nil, nil
	}

	in, args := inClause(summonerIDs)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT cs.summoner_id, cs.champion_id, COALESCE(c.name, ''), cs.games, cs.wins, cs.losses,
			cs.kills, cs.deaths, cs.assists, cs.updated_at
		FROM champion_stats cs
		LEFT JOIN champions c ON c.id = cs.champion_id
		WHERE cs.summoner_id IN `+in+`
		ORDER BY cs.summoner_id, cs.champion_id
	`, args...)
	if err != nil {
		return nil, storeErr("champion stats", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []core.ChampionStat
	for rows.Next() {
		var (
			stat    core.ChampionStat
			updated int64
		)
		if err := rows.Scan(&stat.SummonerID, &stat.ChampionID, &stat.ChampionName, &stat.Games,
			&stat.Wins, &stat.Losses, &stat.Kills, &stat.Deaths, &stat.Assists, &updated); err != nil {
			return nil, storeErr("scan champion stats", err)
		}
		stat.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("champion stats", err)
	}
	return out, nil
}

// UpsertChampionStats replaces aggregates keyed by summoner and champion.
func (s *Store) UpsertChampionStats(ctx context.Context, stats []core.ChampionStat) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin champion upsert", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, st := range stats {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO champion_stats (summoner_id, champion_id, games, wins, losses, kills, deaths, assists, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(summoner_id, champion_id) DO UPDATE SET
				games = excluded.games,
				wins = excluded.wins,
				losses = excluded.losses,
				kills = excluded.kills,
				deaths = excluded.deaths,
				assists = excluded.assists,
				updated_at = excluded.updated_at
		`, st.SummonerID, st.ChampionID, st.Games, st.Wins, st.Losses, st.Kills, st.Deaths, st.Assists,
			st.UpdatedAt.UTC().UnixMilli()); err != nil {
			return storeErr("upsert champion stat", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit champion upsert", err)
	}
	return nil
}

// MostPlayed returns up to limit champions per summoner ranked by games
// played. The aggregate row (champion 0) is excluded.
func (s *Store) MostPlayed(ctx context.Context, summonerIDs []int64, limit int) ([]core.MostPlayedRow, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if len(summonerIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	in, args := inClause(summonerIDs)
	args = append(args, limit)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT summoner_id, champion_id, games, wins, losses FROM (
			SELECT summoner_id, champion_id, games, wins, losses,
				ROW_NUMBER() OVER (PARTITION BY summoner_id ORDER BY games DESC, champion_id) AS rn
			FROM champion_stats
			WHERE champion_id != 0 AND summoner_id IN `+in+`
		)
		WHERE rn <= ?
		ORDER BY summoner_id, rn
	`, args...)
	if err != nil {
		return nil, storeErr("most played", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []core.MostPlayedRow
	for rows.Next() {
		var row core.MostPlayedRow
		if err := rows.Scan(&row.SummonerID, &row.ChampionID, &row.Games, &row.Wins, &row.Losses); err != nil {
			return nil, storeErr("scan most played", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("most played", err)
	}
	return out, nil
}

// InsertMatches stores match references for a summoner, ignoring ones
// already known.
func (s *Store) InsertMatches(ctx context.Context, summonerID int64, matches []core.MatchRef) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}
	if len(matches) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin match insert", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	inserted := 0
	for _, m := range matches {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO matches (match_id, summoner_id, champion_id, lane, role, queue, season, played_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.MatchID, summonerID, m.ChampionID, m.Lane, m.Role, m.Queue, m.Season, m.PlayedAt.UTC().UnixMilli())
		if err != nil {
			return 0, storeErr("insert match", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit match insert", err)
	}
	return inserted, nil
}

// RoleCounts groups stored matches by raw lane and role per summoner.
func (s *Store) RoleCounts(ctx context.Context, summonerIDs []int64) ([]core.RoleCount, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if len(summonerIDs) == 0 {
		return nil, nil
	}

	in, args := inClause(summonerIDs)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT summoner_id, lane, role, COUNT(*) AS games
		FROM matches
		WHERE summoner_id IN `+in+`
		GROUP BY summoner_id, lane, role
		ORDER BY summoner_id, games DESC, lane, role
	`, args...)
	if err != nil {
		return nil, storeErr("role counts", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []core.RoleCount
	for rows.Next() {
		var rc core.RoleCount
		if err := rows.Scan(&rc.SummonerID, &rc.Lane, &rc.Role, &rc.Games); err != nil {
			return nil, storeErr("scan role counts", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("role counts", err)
	}
	return out, nil
}

// RefreshTimes returns when each summoner's data of kind was last refreshed.
// Summoners never refreshed are absent.
func (s *Store) RefreshTimes(ctx context.Context, summonerIDs []int64, kind core.Stage) (map[int64]time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	out := make(map[int64]time.Time, len(summonerIDs))
	if len(summonerIDs) == 0 {
		return out, nil
	}

	in, args := inClause(summonerIDs)
	args = append(args, string(kind))
	rows, err := s.DB.QueryContext(ctx, `
		SELECT summoner_id, updated_at FROM refresh_log
		WHERE summoner_id IN `+in+` AND kind = ?
	`, args...)
	if err != nil {
		return nil, storeErr("refresh times", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			id      int64
			updated int64
		)
		if err := rows.Scan(&id, &updated); err != nil {
			return nil, storeErr("scan refresh times", err)
		}
		out[id] = time.UnixMilli(updated).UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("refresh times", err)
	}
	return out, nil
}

// MarkRefreshed records that kind was refreshed for the summoners at at,
// including summoners the provider had no data for.
func (s *Store) MarkRefreshed(ctx context.Context, summonerIDs []int64, kind core.Stage, at time.Time) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if len(summonerIDs) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin refresh log", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, id := range summonerIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO refresh_log (summoner_id, kind, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(summoner_id, kind) DO UPDATE SET updated_at = excluded.updated_at
		`, id, string(kind), at.UTC().UnixMilli()); err != nil {
			return storeErr("mark refreshed", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit refresh log", err)
	}
	return nil
}
