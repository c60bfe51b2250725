package cehttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alecthomas/errors"
)

// Encode writes an event to an HTTP response in binary content mode.
//
// Attribute headers use the same ce-* convention as [Decode], so an
// encoded event decodes back to an equal value. An event with a payload
// is written with an exact Content-Length and status 200, even when the
// payload is zero bytes long; an event with nil Data becomes a bare 204
// No Content. Write failures are returned as [EncodeError].
func Encode(event *Event, w http.ResponseWriter) error {
	if err := event.Validate(); err != nil {
		return errors.WithStack(err)
	}
	writeAttributes(event, w.Header())
	if event.Data == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(event.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(event.Data); err != nil {
		return errors.WithStack(EncodeError{err: err})
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// writeAttributes emits one ce-* header per present attribute. Shared by
// [Encode] and [NewRequest] so both directions of the binding agree.
func writeAttributes(event *Event, h http.Header) {
	h.Set(attrPrefix+"id", event.ID)
	h.Set(attrPrefix+"source", event.Source)
	h.Set(attrPrefix+"specversion", event.SpecVersion)
	h.Set(attrPrefix+"type", event.Type)
	if !event.Time.IsZero() {
		h.Set(attrPrefix+"time", event.Time.Format(time.RFC3339))
	}
	if event.Subject != "" {
		h.Set(attrPrefix+"subject", event.Subject)
	}
	if event.DataSchema != "" {
		h.Set(attrPrefix+"dataschema", event.DataSchema)
	}
	for name, value := range event.Extensions {
		h.Set(attrPrefix+name, value)
	}
	if event.DataContentType != "" {
		h.Set("Content-Type", event.DataContentType)
	}
}
