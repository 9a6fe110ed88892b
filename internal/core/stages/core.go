package stages

import (
	"context"
	"strings"

	"github.com/riftlens/riftlens/internal/core"
)

var readableMaps = map[int]string{
	1:  "Original Summoner's Rift",
	10: "Twisted Treeline",
	11: "Summoner's Rift",
	12: "Howling Abyss",
}

var readableQueues = map[int]string{
	2:  "Normal 5v5 Blind Pick",
	4:  "Ranked Solo 5v5",
	7:  "Coop vs AI 5v5",
	8:  "Normal 3v3",
	14: "Normal 5v5 Draft Pick",
	16: "Dominion 5v5 Blind Pick",
	17: "Dominion 5v5 Draft Pick",
	25: "Dominion Coop vs AI",
	41: "Ranked Team 3v3",
	42: "Ranked Team 5v5",
	52: "Twisted Treeline Coop vs AI",
	65: "ARAM",
	67: "ARAM Coop vs AI",
	72: "Snowdown Showdown 1v1",
	73: "Snowdown Showdown 2v2",
}

// MapName returns the display name of a map id, or "" when unknown.
func MapName(id int) string { return readableMaps[id] }

// QueueName returns the display name of a queue config id, or "" when unknown.
func QueueName(id int) string { return readableQueues[id] }

type coreStage struct{ *deps }

func (s *coreStage) Name() core.Stage { return core.StageCore }

// Run formats the live game roster. Without a roster or champion data no
// later stage can be trusted, so every failure here is hard.
func (s *coreStage) Run(ctx context.Context, sc *Context) (any, error) {
	if sc == nil || sc.Game == nil || len(sc.Game.Participants) == 0 {
		return nil, core.HardFailure(core.StageCore, "could not find the match", nil)
	}
	if s.catalog == nil || !s.catalog.Loaded() {
		return nil, core.HardFailure(core.StageCore, "champion data unavailable", nil)
	}

	game := sc.Game
	region := strings.ToLower(sc.Region)
	data := &core.CoreData{
		Type:          string(core.StageCore),
		MatchID:       game.GameID,
		BlueTeam:      []core.Participant{},
		RedTeam:       []core.Participant{},
		Version:       s.catalog.Version(),
		Queue:         QueueName(game.GameQueueConfigID),
		Map:           MapName(game.MapID),
		Region:        region,
		GameStartTime: game.GameStartTime,
		GameLength:    game.GameLength,
	}

	for _, p := range game.Participants {
		participant := core.Participant{
			SummonerID:   p.SummonerID,
			SummonerName: p.SummonerName,
			ChampionID:   p.ChampionID,
			TeamID:       p.TeamID,
			Spell1ID:     p.Spell1ID,
			Spell2ID:     p.Spell2ID,
			Region:       region,
		}
		if champion, ok := s.catalog.Champion(p.ChampionID); ok {
			participant.ChampionName = champion.Name
			image := champion.Image
			participant.ChampionImage = &image
		}

		if p.TeamID == core.TeamBlue {
			participant.ParticipantNo = p.TeamID + len(data.BlueTeam) + 1
			data.BlueTeam = append(data.BlueTeam, participant)
		} else {
			participant.ParticipantNo = p.TeamID + len(data.RedTeam) + 1
			data.RedTeam = append(data.RedTeam, participant)
		}
	}

	sc.Core = data
	return data, nil
}
