package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/stair-sensor/internal/eventlog"
)

// EventsJSON is the /events.json envelope. Events are newest first.
type EventsJSON struct {
	Events []eventJSON `json:"events"`
}

type eventJSON struct {
	Time string `json:"time"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

func toEventJSON(e eventlog.Entry) eventJSON {
	return eventJSON{
		Time: e.Time.UTC().Format(time.RFC3339Nano),
		Kind: string(e.Kind),
		Text: e.Text,
	}
}

// newestFirst reverses the log's oldest-first order for display.
func newestFirst(entries []eventlog.Entry) []eventlog.Entry {
	out := make([]eventlog.Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func formatEvents(entries []eventlog.Entry) []byte {
	ej := EventsJSON{Events: make([]eventJSON, 0, len(entries))}
	for _, e := range newestFirst(entries) {
		ej.Events = append(ej.Events, toEventJSON(e))
	}
	data, _ := json.MarshalIndent(ej, "", "  ")
	return data
}
