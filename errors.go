package cehttp

import (
	"fmt"

	"github.com/alecthomas/errors"
)

// ErrUnsupportedMode is returned by [Decode] for requests in structured
// content mode (application/cloudevents+json), which this package does
// not implement.
var ErrUnsupportedMode = errors.New("structured content mode is not supported")

// MissingAttributeError reports a required attribute that is absent or empty.
type MissingAttributeError struct {
	Name string
}

func (m MissingAttributeError) Error() string {
	return fmt.Sprintf("missing required attribute %q", m.Name)
}

// MalformedTimestampError reports a ce-time header that is not RFC3339.
type MalformedTimestampError struct {
	Value string
	err   error
}

func (m MalformedTimestampError) Error() string {
	return fmt.Sprintf("malformed timestamp %q: %s", m.Value, m.err)
}

func (m MalformedTimestampError) Unwrap() error { return m.err }

// MalformedLengthError reports a Content-Length header that is not a
// non-negative integer.
type MalformedLengthError struct {
	Value string
}

func (m MalformedLengthError) Error() string {
	return fmt.Sprintf("malformed Content-Length %q", m.Value)
}

// BodyReadError wraps an I/O failure while reading the request body.
type BodyReadError struct {
	err error
}

func (b BodyReadError) Error() string { return fmt.Sprintf("failed to read body: %s", b.err) }
func (b BodyReadError) Unwrap() error { return b.err }

// EncodeError wraps a write failure while emitting an event.
type EncodeError struct {
	err error
}

func (e EncodeError) Error() string { return fmt.Sprintf("failed to write event: %s", e.err) }
func (e EncodeError) Unwrap() error { return e.err }

// DeliveryError reports a terminal non-2xx response from an event receiver.
type DeliveryError struct {
	Status int
}

func (d DeliveryError) Error() string {
	return fmt.Sprintf("event delivery failed with status %d", d.Status)
}
