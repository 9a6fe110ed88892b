package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/engine"
	"github.com/riftlens/riftlens/internal/core/session"
	apperrors "github.com/riftlens/riftlens/internal/errors"
)

// SessionsResponse lists live sessions.
type SessionsResponse struct {
	Sessions []session.Snapshot `json:"sessions"`
	Count    int                `json:"count"`
}

// QuotaResponse reports upstream quota use.
type QuotaResponse struct {
	Limiter    engine.LimiterSnapshot `json:"limiter"`
	QueueDepth int                    `json:"queue_depth"`
	QueueOpen  bool                   `json:"queue_open"`
}

// AveragesResponse lists champion averages over analyzed matches.
type AveragesResponse struct {
	Champions []core.ChampionAverage `json:"champions"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Session registry not configured"))
		return
	}
	list := s.deps.Sessions.List()
	if list == nil {
		list = []session.Snapshot{}
	}
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: list, Count: len(list)})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Session registry not configured"))
		return
	}
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeInvalidInput, err, "Match id must be an integer"))
		return
	}
	sess, ok := s.deps.Sessions.Get(matchID)
	if !ok {
		apperrors.RespondWithError(w, r, apperrors.NewNotFoundError("No live session for that match"))
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) getQuota(w http.ResponseWriter, r *http.Request) {
	if s.deps.Limiter == nil || s.deps.Queue == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Upstream quota not configured"))
		return
	}
	writeJSON(w, http.StatusOK, QuotaResponse{
		Limiter:    s.deps.Limiter.Snapshot(),
		QueueDepth: s.deps.Queue.Len(),
		QueueOpen:  !s.deps.Queue.Closed(),
	})
}

func (s *Server) getChampionAverages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Averages == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Match analysis not configured"))
		return
	}
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeInvalidInput, err, "ids must be comma-separated integers"))
		return
	}
	if len(ids) == 0 {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("At least one champion id is required"))
		return
	}
	averages, err := s.deps.Averages.ChampionAverages(r.Context(), ids)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "Failed to load champion averages"))
		return
	}
	if averages == nil {
		averages = []core.ChampionAverage{}
	}
	writeJSON(w, http.StatusOK, AveragesResponse{Champions: averages})
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
