package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusNotFound, Label: "summoner-by-name"}
	assert.Equal(t, "upstream status 404 (summoner-by-name)", err.Error())
	assert.NotContains(t, err.Error(), "api_key")

	assert.Equal(t, "upstream status 503", (&StatusError{StatusCode: http.StatusServiceUnavailable}).Error())
}

func TestStatusHelpers(t *testing.T) {
	wrapped := fmt.Errorf("league: %w", &StatusError{StatusCode: http.StatusTooManyRequests})
	assert.True(t, IsRateLimited(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsTransient(wrapped))

	assert.True(t, IsNotFound(&StatusError{StatusCode: http.StatusNotFound}))
	assert.False(t, IsTransient(&StatusError{StatusCode: http.StatusNotFound}))
	assert.True(t, IsTransient(&TransportError{Op: "game", Err: errors.New("reset")}))
	assert.Zero(t, StatusCodeOf(errors.New("plain")))
}
