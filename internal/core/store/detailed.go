package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/riftlens/riftlens/internal/core"
)

// HasDetailedMatch reports whether the statistics of matchID are stored.
func (s *Store) HasDetailedMatch(ctx context.Context, matchID int64) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errNotInitialized
	}

	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM detailed_matches WHERE match_id = ?`, matchID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("detailed match lookup", err)
	}
	return true, nil
}

// InsertDetailedMatch stores a match with its participants and their
// statistics in one transaction. Storing a match again refreshes the match
// and participant rows and keeps the first statistics seen.
func (s *Store) InsertDetailedMatch(ctx context.Context, m *core.DetailedMatch) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if m == nil {
		return errors.New("detailed match is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin detailed match insert", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO detailed_matches (match_id, region, map_id, mode, type, queue, version, duration_s, played_at, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET
			map_id = excluded.map_id,
			mode = excluded.mode,
			type = excluded.type,
			queue = excluded.queue,
			version = excluded.version,
			duration_s = excluded.duration_s
	`, m.MatchID, m.Region, m.MapID, m.Mode, m.Type, m.Queue, m.Version,
		int64(m.Duration/time.Second), m.PlayedAt.UTC().UnixMilli(), time.Now().UTC().UnixMilli()); err != nil {
		return storeErr("insert detailed match", err)
	}

	for _, p := range m.Participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO match_participants (match_id, participant_id, summoner_id, champion_id, team_id,
				winner, kills, deaths, assists, spell1_id, spell2_id, lane, role)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(match_id, participant_id) DO UPDATE SET
				team_id = excluded.team_id,
				winner = excluded.winner,
				kills = excluded.kills,
				deaths = excluded.deaths,
				assists = excluded.assists,
				spell1_id = excluded.spell1_id,
				spell2_id = excluded.spell2_id
		`, m.MatchID, p.ParticipantID, p.SummonerID, p.ChampionID, p.TeamID,
			boolInt(p.Winner), p.Kills, p.Deaths, p.Assists, p.Spell1ID, p.Spell2ID, p.Lane, p.Role); err != nil {
			return storeErr("insert match participant", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO participant_stats (match_id, participant_id, champ_level,
				double_kills, triple_kills, quadra_kills, penta_kills, largest_killing_spree,
				damage_to_champions, damage_taken, total_heal, wards_placed, wards_killed,
				minions_killed, neutral_minions_killed, gold_earned, tower_kills, inhibitor_kills, first_blood_kill)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.MatchID, p.ParticipantID, p.ChampLevel,
			p.DoubleKills, p.TripleKills, p.QuadraKills, p.PentaKills, p.LargestKillingSpree,
			p.DamageToChampions, p.DamageTaken, p.TotalHeal, p.WardsPlaced, p.WardsKilled,
			p.MinionsKilled, p.NeutralMinionsKilled, p.GoldEarned, p.TowerKills, p.InhibitorKills,
			boolInt(p.FirstBloodKill)); err != nil {
			return storeErr("insert participant stats", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit detailed match insert", err)
	}
	return nil
}

// ChampionAverages aggregates stored detailed matches per champion. Champions
// with no stored games are absent from the result.
func (s *Store) ChampionAverages(ctx context.Context, championIDs []int64) ([]core.ChampionAverage, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if len(championIDs) == 0 {
		return nil, nil
	}

	in, args := inClause(championIDs)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.champion_id, COUNT(*),
			AVG(p.winner), AVG(p.kills), AVG(p.deaths), AVG(p.assists),
			AVG(st.damage_to_champions), AVG(st.gold_earned),
			AVG(st.minions_killed + st.neutral_minions_killed)
		FROM match_participants p
		JOIN participant_stats st ON st.match_id = p.match_id AND st.participant_id = p.participant_id
		WHERE p.champion_id IN `+in+`
		GROUP BY p.champion_id
		ORDER BY p.champion_id
	`, args...)
	if err != nil {
		return nil, storeErr("champion averages", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var out []core.ChampionAverage
	for rows.Next() {
		var avg core.ChampionAverage
		if err := rows.Scan(&avg.ChampionID, &avg.Games, &avg.WinRate, &avg.Kills, &avg.Deaths,
			&avg.Assists, &avg.DamageToChampions, &avg.GoldEarned, &avg.CreepScore); err != nil {
			return nil, storeErr("scan champion averages", err)
		}
		out = append(out, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("champion averages", err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
