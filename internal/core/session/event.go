// Package session runs the enrichment pipeline of one live match and fans its
// results out to viewers. A Session caches each stage result once and replays
// the cache to viewers who join late; a Registry maps match ids to sessions
// and expires them a fixed time after creation.
package session

import (
	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
)

// Event is one message pushed to a viewer.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Error payload types.
const (
	ErrorTypeStage   = "stage"
	ErrorTypeCrucial = "crucial"
	ErrorTypeRequest = "request"
)

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Type    string     `json:"type"`
	Stage   core.Stage `json:"stage,omitempty"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message"`
}

// Conn is a viewer connection. Send must not block; an error drops the
// viewer from the session.
type Conn interface {
	ID() string
	Send(Event) error
}

// Match identifies a resolved live match.
type Match struct {
	ID     int64
	Region string
	Game   *riot.CurrentGame
}

func stageEvent(stage core.Stage, payload any) Event {
	return Event{Name: string(stage), Data: payload}
}

func errorEvent(stageErr *core.StageError) Event {
	kind := ErrorTypeStage
	if stageErr.Hard {
		kind = ErrorTypeCrucial
	}
	return Event{Name: core.EventError, Data: ErrorPayload{
		Type:    kind,
		Stage:   stageErr.Stage,
		Message: stageErr.Message,
	}}
}

// RequestError builds the error event sent when a viewer request could not
// be resolved to a session.
func RequestError(code, message string) Event {
	return Event{Name: core.EventError, Data: ErrorPayload{
		Type:    ErrorTypeRequest,
		Code:    code,
		Message: message,
	}}
}
