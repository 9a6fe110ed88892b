package riot

import (
	"time"

	"github.com/riftlens/riftlens/internal/core"
)

// Summoner is a player account.
type Summoner struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int64  `json:"summonerLevel"`
	RevisionDate  int64  `json:"revisionDate"`
}

// CurrentGame is the spectator view of a live match.
type CurrentGame struct {
	GameID            int64                    `json:"gameId"`
	MapID             int                      `json:"mapId"`
	GameMode          string                   `json:"gameMode"`
	GameType          string                   `json:"gameType"`
	GameQueueConfigID int                      `json:"gameQueueConfigId"`
	GameStartTime     int64                    `json:"gameStartTime"`
	GameLength        int64                    `json:"gameLength"`
	PlatformID        string                   `json:"platformId"`
	Participants      []CurrentGameParticipant `json:"participants"`
}

// CurrentGameParticipant is one player in a live match.
type CurrentGameParticipant struct {
	SummonerID   int64  `json:"summonerId"`
	SummonerName string `json:"summonerName"`
	ChampionID   int64  `json:"championId"`
	TeamID       int    `json:"teamId"`
	Spell1ID     int64  `json:"spell1Id"`
	Spell2ID     int64  `json:"spell2Id"`
	Bot          bool   `json:"bot"`
}

// FeaturedGames lists matches the provider currently promotes.
type FeaturedGames struct {
	GameList              []FeaturedGame `json:"gameList"`
	ClientRefreshInterval int64          `json:"clientRefreshInterval"`
}

// FeaturedGame is one promoted match. Participants carry names only.
type FeaturedGame struct {
	GameID       int64                 `json:"gameId"`
	PlatformID   string                `json:"platformId"`
	GameMode     string                `json:"gameMode"`
	Participants []FeaturedParticipant `json:"participants"`
}

// FeaturedParticipant is a player in a featured match.
type FeaturedParticipant struct {
	SummonerName string `json:"summonerName"`
	ChampionID   int64  `json:"championId"`
	TeamID       int    `json:"teamId"`
	Bot          bool   `json:"bot"`
}

// League is a summoner's standing in one queue.
type League struct {
	Queue   string        `json:"queue"`
	Tier    string        `json:"tier"`
	Name    string        `json:"name"`
	Entries []LeagueEntry `json:"entries"`
}

// LeagueEntry is the summoner's own row inside a League.
type LeagueEntry struct {
	PlayerOrTeamID string `json:"playerOrTeamId"`
	Division       string `json:"division"`
	LeaguePoints   int    `json:"leaguePoints"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
}

// RankedStats holds per-champion ranked aggregates. Champion id 0 is the
// summoner's total across champions.
type RankedStats struct {
	SummonerID int64           `json:"summonerId"`
	Champions  []ChampionStats `json:"champions"`
}

// ChampionStats is one champion's ranked aggregate.
type ChampionStats struct {
	ID    int64           `json:"id"`
	Stats AggregatedStats `json:"stats"`
}

// AggregatedStats are the counters the ranked stats endpoint reports.
type AggregatedStats struct {
	TotalSessionsPlayed   int `json:"totalSessionsPlayed"`
	TotalSessionsWon      int `json:"totalSessionsWon"`
	TotalSessionsLost     int `json:"totalSessionsLost"`
	TotalChampionKills    int `json:"totalChampionKills"`
	TotalDeathsPerSession int `json:"totalDeathsPerSession"`
	TotalAssists          int `json:"totalAssists"`
}

// RecentGames is a summoner's last games of any type.
type RecentGames struct {
	SummonerID int64  `json:"summonerId"`
	Games      []Game `json:"games"`
}

// Game is one recent game.
type Game struct {
	GameID     int64     `json:"gameId"`
	ChampionID int64     `json:"championId"`
	CreateDate int64     `json:"createDate"`
	GameMode   string    `json:"gameMode"`
	Stats      GameStats `json:"stats"`
}

// GameStats is the subset of recent game stats in use.
type GameStats struct {
	Win bool `json:"win"`
}

// MatchList is a page of a summoner's ranked match references.
type MatchList struct {
	Matches    []MatchReference `json:"matches"`
	TotalGames int              `json:"totalGames"`
	StartIndex int              `json:"startIndex"`
	EndIndex   int              `json:"endIndex"`
}

// MatchReference is one ranked game with its lane and role.
type MatchReference struct {
	MatchID    int64  `json:"matchId"`
	Champion   int64  `json:"champion"`
	Lane       string `json:"lane"`
	Role       string `json:"role"`
	Queue      string `json:"queue"`
	Season     string `json:"season"`
	PlatformID string `json:"platformId"`
	Timestamp  int64  `json:"timestamp"`
}

// ChampionList is the static champion catalog.
type ChampionList struct {
	Type    string                 `json:"type"`
	Version string                 `json:"version"`
	Data    map[string]ChampionDTO `json:"data"`
}

// ChampionDTO is one static champion entry.
type ChampionDTO struct {
	ID    int64      `json:"id"`
	Key   string     `json:"key"`
	Name  string     `json:"name"`
	Title string     `json:"title"`
	Image core.Image `json:"image"`
}

// MatchDetail is a finished match with participant statistics.
type MatchDetail struct {
	MatchID               int64                 `json:"matchId"`
	Region                string                `json:"region"`
	PlatformID            string                `json:"platformId"`
	MapID                 int                   `json:"mapId"`
	MatchMode             string                `json:"matchMode"`
	MatchType             string                `json:"matchType"`
	QueueType             string                `json:"queueType"`
	MatchVersion          string                `json:"matchVersion"`
	MatchCreation         int64                 `json:"matchCreation"`
	MatchDuration         int64                 `json:"matchDuration"`
	Participants          []MatchParticipant    `json:"participants"`
	ParticipantIdentities []ParticipantIdentity `json:"participantIdentities"`
}

// MatchParticipant is one participant of a MatchDetail.
type MatchParticipant struct {
	ParticipantID int                 `json:"participantId"`
	TeamID        int                 `json:"teamId"`
	ChampionID    int64               `json:"championId"`
	Spell1ID      int64               `json:"spell1Id"`
	Spell2ID      int64               `json:"spell2Id"`
	Stats         ParticipantStats    `json:"stats"`
	Timeline      ParticipantTimeline `json:"timeline"`
}

// ParticipantStats are end-of-game statistics.
type ParticipantStats struct {
	Winner                      bool  `json:"winner"`
	ChampLevel                  int   `json:"champLevel"`
	Kills                       int   `json:"kills"`
	Deaths                      int   `json:"deaths"`
	Assists                     int   `json:"assists"`
	DoubleKills                 int   `json:"doubleKills"`
	TripleKills                 int   `json:"tripleKills"`
	QuadraKills                 int   `json:"quadraKills"`
	PentaKills                  int   `json:"pentaKills"`
	LargestKillingSpree         int   `json:"largestKillingSpree"`
	TotalDamageDealtToChampions int64 `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            int64 `json:"totalDamageTaken"`
	TotalHeal                   int64 `json:"totalHeal"`
	WardsPlaced                 int   `json:"wardsPlaced"`
	WardsKilled                 int   `json:"wardsKilled"`
	MinionsKilled               int   `json:"minionsKilled"`
	NeutralMinionsKilled        int   `json:"neutralMinionsKilled"`
	GoldEarned                  int   `json:"goldEarned"`
	TowerKills                  int   `json:"towerKills"`
	InhibitorKills              int   `json:"inhibitorKills"`
	FirstBloodKill              bool  `json:"firstBloodKill"`
}

// ParticipantTimeline carries the lane and role the provider inferred.
type ParticipantTimeline struct {
	Lane string `json:"lane"`
	Role string `json:"role"`
}

// ParticipantIdentity links a participant id to a player.
type ParticipantIdentity struct {
	ParticipantID int `json:"participantId"`
	Player        struct {
		SummonerID   int64  `json:"summonerId"`
		SummonerName string `json:"summonerName"`
	} `json:"player"`
}

// Detailed converts the provider reply for storage. Participants are paired
// with identities by participant id.
func (m *MatchDetail) Detailed(region string) *core.DetailedMatch {
	summoners := make(map[int]int64, len(m.ParticipantIdentities))
	for _, identity := range m.ParticipantIdentities {
		summoners[identity.ParticipantID] = identity.Player.SummonerID
	}

	out := &core.DetailedMatch{
		MatchID:      m.MatchID,
		Region:       region,
		MapID:        m.MapID,
		Mode:         m.MatchMode,
		Type:         m.MatchType,
		Queue:        m.QueueType,
		Version:      m.MatchVersion,
		Duration:     time.Duration(m.MatchDuration) * time.Second,
		PlayedAt:     time.UnixMilli(m.MatchCreation).UTC(),
		Participants: make([]core.MatchParticipant, 0, len(m.Participants)),
	}
	for _, p := range m.Participants {
		st := p.Stats
		out.Participants = append(out.Participants, core.MatchParticipant{
			ParticipantID:        p.ParticipantID,
			SummonerID:           summoners[p.ParticipantID],
			ChampionID:           p.ChampionID,
			TeamID:               p.TeamID,
			Winner:               st.Winner,
			Kills:                st.Kills,
			Deaths:               st.Deaths,
			Assists:              st.Assists,
			Spell1ID:             p.Spell1ID,
			Spell2ID:             p.Spell2ID,
			Lane:                 p.Timeline.Lane,
			Role:                 p.Timeline.Role,
			ChampLevel:           st.ChampLevel,
			DoubleKills:          st.DoubleKills,
			TripleKills:          st.TripleKills,
			QuadraKills:          st.QuadraKills,
			PentaKills:           st.PentaKills,
			LargestKillingSpree:  st.LargestKillingSpree,
			DamageToChampions:    st.TotalDamageDealtToChampions,
			DamageTaken:          st.TotalDamageTaken,
			TotalHeal:            st.TotalHeal,
			WardsPlaced:          st.WardsPlaced,
			WardsKilled:          st.WardsKilled,
			MinionsKilled:        st.MinionsKilled,
			NeutralMinionsKilled: st.NeutralMinionsKilled,
			GoldEarned:           st.GoldEarned,
			TowerKills:           st.TowerKills,
			InhibitorKills:       st.InhibitorKills,
			FirstBloodKill:       st.FirstBloodKill,
		})
	}
	return out
}
