package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riftlens/riftlens/internal/core"
)

// Default provider hosts. {region} is substituted per call.
const (
	DefaultBaseURL       = "https://{region}.api.pvp.net"
	DefaultStaticBaseURL = "https://global.api.pvp.net"
)

// ErrUnknownRegion is returned before any call is enqueued for a region
// without a platform mapping.
var ErrUnknownRegion = errors.New("unknown region")

var platforms = map[string]string{
	"br":   "BR1",
	"eune": "EUN1",
	"euw":  "EUW1",
	"kr":   "KR",
	"lan":  "LA1",
	"las":  "LA2",
	"na":   "NA1",
	"oce":  "OC1",
	"tr":   "TR1",
	"ru":   "RU",
	"pbe":  "PBE1",
}

// Platform returns the spectator platform id for region.
func Platform(region string) (string, bool) {
	p, ok := platforms[strings.ToLower(region)]
	return p, ok
}

// Regions returns the supported region codes, sorted.
func Regions() []string {
	out := make([]string, 0, len(platforms))
	for region := range platforms {
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}

// NormalizeName reduces a summoner name to the provider's lookup key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
}

// Dispatcher sends a request through the rate-limited queue.
type Dispatcher interface {
	Do(ctx context.Context, req core.UpstreamRequest) (*core.UpstreamResponse, error)
}

// Config selects provider hosts.
type Config struct {
	BaseURL       string
	StaticBaseURL string
	Locale        string
}

// API builds typed provider requests and decodes their responses.
type API struct {
	dispatcher    Dispatcher
	baseURL       string
	staticBaseURL string
	locale        string
}

// New returns an API that sends every call through dispatcher.
func New(dispatcher Dispatcher, cfg Config) *API {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	static := strings.TrimRight(cfg.StaticBaseURL, "/")
	if static == "" {
		static = DefaultStaticBaseURL
	}
	locale := cfg.Locale
	if locale == "" {
		locale = "en_GB"
	}
	return &API{dispatcher: dispatcher, baseURL: base, staticBaseURL: static, locale: locale}
}

// SummonerByName looks up a summoner. A name absent from the reply is a 404.
func (a *API) SummonerByName(ctx context.Context, region, name string) (*Summoner, error) {
	key := NormalizeName(name)
	if key == "" {
		return nil, errors.New("summoner name is required")
	}

	var out map[string]Summoner
	if err := a.get(ctx, region, "summoner-by-name", "/api/lol/{region}/v1.4/summoner/by-name/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	summoner, ok := out[key]
	if !ok {
		return nil, &core.StatusError{StatusCode: http.StatusNotFound, Label: "summoner-by-name"}
	}
	return &summoner, nil
}

// CurrentGame returns the live match of summonerID.
func (a *API) CurrentGame(ctx context.Context, region string, summonerID int64) (*CurrentGame, error) {
	platform, ok := Platform(region)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	var out CurrentGame
	path := "/observer-mode/rest/consumer/getSpectatorGameInfo/" + platform + "/" + strconv.FormatInt(summonerID, 10)
	if err := a.get(ctx, region, "current-game", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FeaturedGames returns the promoted live matches in region.
func (a *API) FeaturedGames(ctx context.Context, region string) (*FeaturedGames, error) {
	var out FeaturedGames
	if err := a.get(ctx, region, "featured-games", "/observer-mode/rest/featured", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LeagueEntries returns league standings for up to ten summoners in one call.
// Summoners without ranked data are absent from the result.
func (a *API) LeagueEntries(ctx context.Context, region string, summonerIDs []int64) (map[int64][]League, error) {
	if len(summonerIDs) == 0 {
		return map[int64][]League{}, nil
	}
	ids := make([]string, 0, len(summonerIDs))
	for _, id := range summonerIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	var raw map[string][]League
	path := "/api/lol/{region}/v2.5/league/by-summoner/" + strings.Join(ids, ",") + "/entry"
	if err := a.get(ctx, region, "league-entries", path, nil, &raw); err != nil {
		return nil, err
	}

	out := make(map[int64][]League, len(raw))
	for key, leagues := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = leagues
	}
	return out, nil
}

// RankedStats returns per-champion ranked aggregates for a season.
func (a *API) RankedStats(ctx context.Context, region string, summonerID int64, season string) (*RankedStats, error) {
	query := url.Values{}
	if season != "" {
		query.Set("season", season)
	}
	var out RankedStats
	path := "/api/lol/{region}/v1.3/stats/by-summoner/" + strconv.FormatInt(summonerID, 10) + "/ranked"
	if err := a.get(ctx, region, "ranked-stats", path, query, &out); err != nil {
		return nil, err
	}
	if out.SummonerID == 0 {
		out.SummonerID = summonerID
	}
	return &out, nil
}

// RecentGames returns a summoner's recent games.
func (a *API) RecentGames(ctx context.Context, region string, summonerID int64) (*RecentGames, error) {
	var out RecentGames
	path := "/api/lol/{region}/v1.3/game/by-summoner/" + strconv.FormatInt(summonerID, 10) + "/recent"
	if err := a.get(ctx, region, "recent-games", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MatchList returns ranked match references for a season, optionally only
// those after since.
func (a *API) MatchList(ctx context.Context, region string, summonerID int64, season string, since time.Time) (*MatchList, error) {
	query := url.Values{}
	if season != "" {
		query.Set("seasons", season)
	}
	if !since.IsZero() {
		query.Set("beginTime", strconv.FormatInt(since.UnixMilli(), 10))
	}
	var out MatchList
	path := "/api/lol/{region}/v2.2/matchlist/by-summoner/" + strconv.FormatInt(summonerID, 10)
	if err := a.get(ctx, region, "match-list", path, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Match returns the full statistics of a finished match.
func (a *API) Match(ctx context.Context, region string, matchID int64) (*MatchDetail, error) {
	query := url.Values{}
	query.Set("includeTimeline", "false")

	var out MatchDetail
	path := "/api/lol/{region}/v2.2/match/" + strconv.FormatInt(matchID, 10)
	if err := a.get(ctx, region, "match", path, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StaticChampions returns the champion catalog keyed by id.
func (a *API) StaticChampions(ctx context.Context, region string) (*ChampionList, error) {
	query := url.Values{}
	query.Set("champData", "image")
	query.Set("dataById", "true")
	query.Set("locale", a.locale)

	var out ChampionList
	if err := a.getStatic(ctx, region, "static-champions", "/v1.2/champion", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Versions returns game versions, newest first.
func (a *API) Versions(ctx context.Context, region string) ([]string, error) {
	var out []string
	if err := a.getStatic(ctx, region, "static-versions", "/v1.2/versions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) get(ctx context.Context, region, label, path string, query url.Values, out any) error {
	region = strings.ToLower(region)
	if _, ok := platforms[region]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	base := strings.ReplaceAll(a.baseURL, "{region}", region)
	return a.send(ctx, label, base+strings.ReplaceAll(path, "{region}", region), query, out)
}

func (a *API) getStatic(ctx context.Context, region, label, path string, query url.Values, out any) error {
	region = strings.ToLower(region)
	if _, ok := platforms[region]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	target := a.staticBaseURL + "/api/lol/static-data/" + region + path
	return a.send(ctx, label, target, query, out)
}

func (a *API) send(ctx context.Context, label, target string, query url.Values, out any) error {
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := a.dispatcher.Do(ctx, core.UpstreamRequest{URL: target, Label: label})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", label, err)
	}
	return nil
}
