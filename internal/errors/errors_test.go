package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/engine"
	"github.com/riftlens/riftlens/internal/core/match"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/core/session"
)

func TestFromResolveError(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{"summoner", match.ErrSummonerNotFound, CodeSummonerNotFound, "No summoner by that name"},
		{"game", fmt.Errorf("lookup: %w", match.ErrNoActiveGame), CodeNoActiveGame, "Summoner is not currently in a game"},
		{"region", riot.ErrUnknownRegion, CodeUnknownRegion, "Unknown region"},
		{"throttled", &core.StatusError{StatusCode: http.StatusTooManyRequests}, CodeRateLimited, ""},
		{"closed", engine.ErrQueueClosed, CodeServiceUnavailable, ""},
		{"registry", session.ErrRegistryClosed, CodeServiceUnavailable, ""},
		{"expired", session.ErrExpired, CodeServiceUnavailable, ""},
		{"deadline", &core.TransportError{Err: context.DeadlineExceeded}, CodeTimeout, ""},
		{"store", &core.StoreError{Op: "read", Err: stderrors.New("locked")}, CodeDatabase, ""},
		{"transport", &core.TransportError{Err: stderrors.New("reset")}, CodeExternalService, ""},
		{"status", &core.StatusError{StatusCode: http.StatusBadGateway}, CodeExternalService, ""},
		{"other", stderrors.New("boom"), CodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := FromResolveError(ctx, tt.err)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.CorrelationID)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
			}
		})
	}
}

func TestHTTPStatusFromCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatusFromCode(CodeSummonerNotFound))
	assert.Equal(t, http.StatusNotFound, HTTPStatusFromCode(CodeNoActiveGame))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(CodeRateLimited))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromCode(CodeServiceUnavailable))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromCode(CodeUnknownRegion))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_ELSE"))
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/1", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, NewNotFoundError("no such session"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeNotFound, body.Error.Code)
	assert.Equal(t, "no such session", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	env := EnsureEnvelope(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, "boom", env.Context["wrapped_error"])

	original := NewRateLimitedError("slow down")
	assert.Same(t, original, EnsureEnvelope(original))
}

func TestResponseDetailsHidesInternals(t *testing.T) {
	env := Wrap(context.Background(), CodeDatabase, stderrors.New("disk I/O error at /var/lib/riftlens.db"), "Could not read cached game data")
	env, err := env.WithContext(map[string]interface{}{"match_id": int64(42)})
	require.NoError(t, err)

	details := ResponseDetails(env)
	assert.Equal(t, int64(42), details["match_id"])
	assert.NotContains(t, details, "wrapped_error")

	assert.Nil(t, ResponseDetails(Wrap(context.Background(), CodeInternal, stderrors.New("boom"), "x")))
}
