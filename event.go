// Package cehttp implements the CloudEvents HTTP protocol binding in
// binary content mode: event attributes travel as ce-* headers and the
// payload is the raw HTTP body.
package cehttp

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SpecVersion is the CloudEvents specification version this package speaks.
const SpecVersion = "1.0"

// attrPrefix marks HTTP headers that carry event attributes.
const attrPrefix = "ce-"

// Event is a single CloudEvent.
//
// ID, Source, SpecVersion and Type are required and non-empty on any
// event produced by [Decode]; an event that fails [Event.Validate] is
// never returned to a handler. A decoded event is owned by the request
// that produced it and must be treated as read-only.
type Event struct {
	ID          string
	Source      string
	SpecVersion string
	Type        string

	// Time is the producer timestamp, zero if the event carried none.
	Time       time.Time
	Subject    string
	DataSchema string

	// DataContentType describes Data, taken from the plain Content-Type
	// header rather than a ce-* attribute.
	DataContentType string

	// Extensions holds non-standard attributes keyed by lowercased name.
	Extensions map[string]string

	// Data is the raw payload. nil means the event has no payload, which
	// encodes as 204 No Content.
	Data []byte
}

// NewEvent creates an event of the given type and source with a generated
// ID and the current UTC time.
func NewEvent(eventType, source string, data []byte) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Source:      source,
		SpecVersion: SpecVersion,
		Type:        eventType,
		Time:        time.Now().UTC(),
		Data:        data,
	}
}

// SetExtension sets an extension attribute. Names are lowercased so that
// lookups match the case-insensitive header they came from.
func (e *Event) SetExtension(name, value string) {
	if e.Extensions == nil {
		e.Extensions = map[string]string{}
	}
	e.Extensions[strings.ToLower(name)] = value
}

// Extension returns the named extension attribute, or "" if unset.
func (e *Event) Extension(name string) string {
	return e.Extensions[strings.ToLower(name)]
}

// Validate reports the first missing required attribute as a
// [MissingAttributeError], or nil if the event is well formed.
func (e *Event) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"id", e.ID},
		{"source", e.Source},
		{"specversion", e.SpecVersion},
		{"type", e.Type},
	}
	for _, attr := range required {
		if attr.value == "" {
			return MissingAttributeError{Name: attr.name}
		}
	}
	return nil
}
