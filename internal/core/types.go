package core

import "time"

// Stage identifies one named unit of enrichment work in a match pipeline.
type Stage string

const (
	StageCore         Stage = "core"
	StageLeague       Stage = "league"
	StageChampion     Stage = "champion"
	StageMatchHistory Stage = "matchhistory"
	StageMostPlayed   Stage = "mostplayed"
	StageRoles        Stage = "roles"
)

// EventError is the event name used for stage and crucial error markers.
const EventError = "error"

// DefaultPipeline lists the stages of a match session in execution order.
var DefaultPipeline = []Stage{
	StageCore,
	StageLeague,
	StageChampion,
	StageMatchHistory,
	StageMostPlayed,
	StageRoles,
}

// Team identifiers used by the provider.
const (
	TeamBlue = 100
	TeamRed  = 200
)

// Image describes a sprite reference in the provider's static data.
type Image struct {
	Full   string `json:"full"`
	Sprite string `json:"sprite,omitempty"`
	Group  string `json:"group,omitempty"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	W      int    `json:"w,omitempty"`
	H      int    `json:"h,omitempty"`
}

// Champion is one entry of the static champion catalog.
type Champion struct {
	ID    int64  `json:"id"`
	Key   string `json:"key"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Image Image  `json:"image"`
}

// Participant is a player in a live match, numbered per team.
type Participant struct {
	SummonerID    int64  `json:"summonerId"`
	SummonerName  string `json:"summonerName"`
	ParticipantNo int    `json:"participantNo"`
	ChampionID    int64  `json:"championId"`
	ChampionName  string `json:"championName,omitempty"`
	ChampionImage *Image `json:"championImage,omitempty"`
	TeamID        int    `json:"teamId"`
	Spell1ID      int64  `json:"spell1Id,omitempty"`
	Spell2ID      int64  `json:"spell2Id,omitempty"`
	Region        string `json:"region"`
}

// CoreData is the formatted roster payload of the core stage.
type CoreData struct {
	Type          string        `json:"type"`
	MatchID       int64         `json:"matchId"`
	BlueTeam      []Participant `json:"blueTeam"`
	RedTeam       []Participant `json:"redTeam"`
	Version       string        `json:"version"`
	Queue         string        `json:"queue"`
	Map           string        `json:"map"`
	Region        string        `json:"region"`
	GameStartTime int64         `json:"gameStartTime"`
	GameLength    int64         `json:"gameLength"`
}

// Participants returns both teams, red first, as the roster is consumed by later stages.
func (c *CoreData) Participants() []Participant {
	if c == nil {
		return nil
	}
	out := make([]Participant, 0, len(c.RedTeam)+len(c.BlueTeam))
	out = append(out, c.RedTeam...)
	out = append(out, c.BlueTeam...)
	return out
}

// SummonerIDs returns the summoner ids of every participant.
func (c *CoreData) SummonerIDs() []int64 {
	participants := c.Participants()
	ids := make([]int64, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.SummonerID)
	}
	return ids
}

// LeagueEntry is a stored ranked standing for one summoner and queue.
type LeagueEntry struct {
	SummonerID   int64     `json:"summonerId"`
	Queue        string    `json:"queue"`
	Tier         string    `json:"tier"`
	Division     string    `json:"division"`
	LeaguePoints int       `json:"leaguePoints"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LeagueRow is the per-participant league payload.
type LeagueRow struct {
	ParticipantNo int    `json:"participantNo"`
	League        string `json:"league"`
	Division      string `json:"division"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
}

// ChampionStat is a stored ranked aggregate for one summoner and champion.
type ChampionStat struct {
	SummonerID   int64     `json:"summonerId"`
	ChampionID   int64     `json:"championId"`
	ChampionName string    `json:"championName,omitempty"`
	Games        int       `json:"games"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Kills        int       `json:"kills"`
	Deaths       int       `json:"deaths"`
	Assists      int       `json:"assists"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ChampionRow is the per-participant champion payload.
type ChampionRow struct {
	ParticipantNo   int    `json:"participantNo"`
	ChampionName    string `json:"championName"`
	ChampionWins    int    `json:"championWins"`
	ChampionLosses  int    `json:"championLosses"`
	ChampionKills   int    `json:"championKills"`
	ChampionDeaths  int    `json:"championDeaths"`
	ChampionAssists int    `json:"championAssists"`
}

// HistoryGame is one recent game in a participant's match history.
type HistoryGame struct {
	ChampionID int64  `json:"championId"`
	Win        bool   `json:"win"`
	Image      *Image `json:"image,omitempty"`
}

// HistoryEntry holds the recent games of one participant.
type HistoryEntry struct {
	SummonerID    int64         `json:"summonerId"`
	ParticipantNo int           `json:"participantNo"`
	Games         []HistoryGame `json:"games"`
}

// MatchHistory is the matchhistory stage payload.
type MatchHistory struct {
	Data    []HistoryEntry `json:"data"`
	Version string         `json:"version"`
}

// MostPlayedRow is one of a participant's most played champions.
type MostPlayedRow struct {
	SummonerID    int64  `json:"summonerId"`
	ChampionID    int64  `json:"championId"`
	ChampionName  string `json:"championName,omitempty"`
	ChampionImage *Image `json:"championImage,omitempty"`
	Games         int    `json:"games"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
}

// MostPlayed maps participant numbers to their top champions.
type MostPlayed map[int][]MostPlayedRow

// MatchRef is one entry from a summoner's match list.
type MatchRef struct {
	MatchID    int64     `json:"matchId"`
	ChampionID int64     `json:"championId"`
	Lane       string    `json:"lane"`
	Role       string    `json:"role"`
	Queue      string    `json:"queue"`
	Season     string    `json:"season"`
	PlayedAt   time.Time `json:"playedAt"`
}

// RoleCount aggregates stored games by raw lane and role.
type RoleCount struct {
	SummonerID int64  `json:"summonerId"`
	Lane       string `json:"lane"`
	Role       string `json:"role"`
	Games      int    `json:"games"`
}

// RoleShare is one role in a participant's role mix.
type RoleShare struct {
	Role    string `json:"role"`
	Games   int    `json:"games"`
	Percent string `json:"percent"`
}

// RoleMix is the per-participant roles payload.
type RoleMix struct {
	ParticipantNo int         `json:"participantNo"`
	Roles         []RoleShare `json:"roles"`
}

// DetailedMatch is a finished match with per-participant statistics, kept
// for champion averages.
type DetailedMatch struct {
	MatchID      int64              `json:"matchId"`
	Region       string             `json:"region"`
	MapID        int                `json:"mapId"`
	Mode         string             `json:"mode"`
	Type         string             `json:"type"`
	Queue        string             `json:"queue"`
	Version      string             `json:"version"`
	Duration     time.Duration      `json:"duration"`
	PlayedAt     time.Time          `json:"playedAt"`
	Participants []MatchParticipant `json:"participants"`
}

// MatchParticipant is one player's line in a detailed match.
type MatchParticipant struct {
	ParticipantID int    `json:"participantId"`
	SummonerID    int64  `json:"summonerId"`
	ChampionID    int64  `json:"championId"`
	TeamID        int    `json:"teamId"`
	Winner        bool   `json:"winner"`
	Kills         int    `json:"kills"`
	Deaths        int    `json:"deaths"`
	Assists       int    `json:"assists"`
	Spell1ID      int64  `json:"spell1Id"`
	Spell2ID      int64  `json:"spell2Id"`
	Lane          string `json:"lane"`
	Role          string `json:"role"`

	ChampLevel           int   `json:"champLevel"`
	DoubleKills          int   `json:"doubleKills"`
	TripleKills          int   `json:"tripleKills"`
	QuadraKills          int   `json:"quadraKills"`
	PentaKills           int   `json:"pentaKills"`
	LargestKillingSpree  int   `json:"largestKillingSpree"`
	DamageToChampions    int64 `json:"damageToChampions"`
	DamageTaken          int64 `json:"damageTaken"`
	TotalHeal            int64 `json:"totalHeal"`
	WardsPlaced          int   `json:"wardsPlaced"`
	WardsKilled          int   `json:"wardsKilled"`
	MinionsKilled        int   `json:"minionsKilled"`
	NeutralMinionsKilled int   `json:"neutralMinionsKilled"`
	GoldEarned           int   `json:"goldEarned"`
	TowerKills           int   `json:"towerKills"`
	InhibitorKills       int   `json:"inhibitorKills"`
	FirstBloodKill       bool  `json:"firstBloodKill"`
}

// ChampionAverage aggregates stored detailed matches for one champion.
type ChampionAverage struct {
	ChampionID        int64   `json:"championId"`
	Games             int     `json:"games"`
	WinRate           float64 `json:"winRate"`
	Kills             float64 `json:"kills"`
	Deaths            float64 `json:"deaths"`
	Assists           float64 `json:"assists"`
	DamageToChampions float64 `json:"damageToChampions"`
	GoldEarned        float64 `json:"goldEarned"`
	CreepScore        float64 `json:"creepScore"`
}
