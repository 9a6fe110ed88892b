package output

import (
	"encoding/json"

	"github.com/riftlens/riftlens/internal/core/session"
)

// JSONFormatter renders each event as one JSON document, the same shape a
// websocket viewer receives.
type JSONFormatter struct {
	Indent bool
}

// FormatEvent renders ev as JSON.
func (f *JSONFormatter) FormatEvent(ev session.Event) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(ev, "", "  ")
	} else {
		data, err = json.Marshal(ev)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
