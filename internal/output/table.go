package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/session"
)

// TableFormatter renders stage payloads as ASCII tables.
type TableFormatter struct{}

// FormatEvent renders one event. Payloads it does not know are printed as
// compact JSON under the event name.
func (f *TableFormatter) FormatEvent(ev session.Event) (string, error) {
	switch data := ev.Data.(type) {
	case session.ErrorPayload:
		return formatError(data), nil
	case *core.CoreData:
		return formatRoster(data), nil
	case []core.LeagueRow:
		return formatLeague(data), nil
	case []core.ChampionRow:
		return formatChampions(data), nil
	case *core.MatchHistory:
		return formatHistory(data), nil
	case core.MostPlayed:
		return formatMostPlayed(data), nil
	case []core.RoleMix:
		return formatRoles(data), nil
	default:
		raw, err := json.Marshal(data)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s", ev.Name, raw), nil
	}
}

func newTable(title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	t.AppendHeader(header)
	return t
}

func formatError(p session.ErrorPayload) string {
	switch p.Type {
	case session.ErrorTypeCrucial:
		return fmt.Sprintf("crucial error (%s): %s", p.Stage, p.Message)
	case session.ErrorTypeRequest:
		return fmt.Sprintf("request failed [%s]: %s", p.Code, p.Message)
	default:
		return fmt.Sprintf("%s unavailable: %s", p.Stage, p.Message)
	}
}

func formatRoster(data *core.CoreData) string {
	title := fmt.Sprintf("Match %d  %s  %s  %s", data.MatchID, data.Queue, data.Map, strings.ToUpper(data.Region))
	t := newTable(title, table.Row{"Team", "#", "Summoner", "Champion"})
	for _, p := range data.BlueTeam {
		t.AppendRow(table.Row{"blue", p.ParticipantNo, p.SummonerName, championLabel(p)})
	}
	t.AppendSeparator()
	for _, p := range data.RedTeam {
		t.AppendRow(table.Row{"red", p.ParticipantNo, p.SummonerName, championLabel(p)})
	}
	return t.Render()
}

func championLabel(p core.Participant) string {
	if p.ChampionName != "" {
		return p.ChampionName
	}
	return fmt.Sprintf("#%d", p.ChampionID)
}

func formatLeague(rows []core.LeagueRow) string {
	t := newTable("League", table.Row{"#", "Tier", "Division", "W/L"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.ParticipantNo, r.League, r.Division, record(r.Wins, r.Losses)})
	}
	return t.Render()
}

func formatChampions(rows []core.ChampionRow) string {
	t := newTable("Champion", table.Row{"#", "Champion", "W/L", "K/D/A"})
	for _, r := range rows {
		kda := fmt.Sprintf("%d/%d/%d", r.ChampionKills, r.ChampionDeaths, r.ChampionAssists)
		t.AppendRow(table.Row{r.ParticipantNo, r.ChampionName, record(r.ChampionWins, r.ChampionLosses), kda})
	}
	return t.Render()
}

func formatHistory(history *core.MatchHistory) string {
	t := newTable("Recent games", table.Row{"#", "Results"})
	for _, entry := range history.Data {
		var b strings.Builder
		for _, g := range entry.Games {
			if g.Win {
				b.WriteByte('W')
			} else {
				b.WriteByte('L')
			}
		}
		t.AppendRow(table.Row{entry.ParticipantNo, b.String()})
	}
	return t.Render()
}

func formatMostPlayed(mp core.MostPlayed) string {
	t := newTable("Most played", table.Row{"#", "Champion", "Games", "W/L"})
	for _, no := range sortedKeys(mp) {
		for _, row := range mp[no] {
			name := row.ChampionName
			if name == "" {
				name = fmt.Sprintf("#%d", row.ChampionID)
			}
			t.AppendRow(table.Row{no, name, row.Games, record(row.Wins, row.Losses)})
		}
	}
	return t.Render()
}

func formatRoles(mixes []core.RoleMix) string {
	t := newTable("Roles", table.Row{"#", "Roles"})
	for _, mix := range mixes {
		parts := make([]string, 0, len(mix.Roles))
		for _, share := range mix.Roles {
			parts = append(parts, fmt.Sprintf("%s %s", share.Role, share.Percent))
		}
		t.AppendRow(table.Row{mix.ParticipantNo, strings.Join(parts, ", ")})
	}
	return t.Render()
}

func record(wins, losses int) string {
	return fmt.Sprintf("%d/%d", wins, losses)
}

func sortedKeys(mp core.MostPlayed) []int {
	keys := make([]int, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
