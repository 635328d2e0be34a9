package serialmux

import "strings"

const (
	EventTypeSnapshotHeader = "snapshot"
	EventTypeReadings       = "readings"
	EventTypeUnknown        = "unknown"
)

// ClassifyPayload inspects a line from the skin and returns a simple event
// type token. It only looks at the shape of the line; the frame parser in
// package skin does the validation.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	if strings.HasPrefix(p, "Snapshot:") {
		return EventTypeSnapshotHeader
	}
	if p != "" && strings.Trim(p, "0123456789, ") == "" {
		return EventTypeReadings
	}
	return EventTypeUnknown
}
