package cehttp

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/errors"
)

// MediaTypeStructured is the media type of structured content mode
// requests, which [Decode] rejects with [ErrUnsupportedMode].
const MediaTypeStructured = "application/cloudevents+json"

// Decode reconstructs an event from a binary content mode HTTP request.
//
// Header names are matched case-insensitively. Every ce-* header becomes
// either a standard attribute or an extension attribute stored under its
// lowercased name; a plain Content-Type header becomes DataContentType.
// The body is read according to Content-Length (see [readBody]) and an
// empty body leaves Data nil.
//
// Decode never returns a partially constructed event: on any failure the
// event is nil and the error is one of [ErrUnsupportedMode],
// [MalformedTimestampError], [MalformedLengthError], [BodyReadError] or
// [MissingAttributeError].
func Decode(header http.Header, body io.Reader) (*Event, error) {
	contentType := headerValue(header, "Content-Type")
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), MediaTypeStructured) {
		return nil, errors.WithStack(ErrUnsupportedMode)
	}

	event := &Event{}
	for name, values := range header {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, attrPrefix) || len(values) == 0 {
			continue
		}
		value := values[0]
		switch attr := strings.TrimPrefix(lower, attrPrefix); attr {
		case "id":
			event.ID = value
		case "source":
			event.Source = value
		case "specversion":
			event.SpecVersion = value
		case "type":
			event.Type = value
		case "subject":
			event.Subject = value
		case "dataschema":
			event.DataSchema = value
		case "time":
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, errors.WithStack(MalformedTimestampError{Value: value, err: err})
			}
			event.Time = t
		default:
			event.SetExtension(attr, value)
		}
	}
	event.DataContentType = contentType

	data, err := readBody(headerValue(header, "Content-Length"), body)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		event.Data = data
	}

	if err := event.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	return event, nil
}

// headerValue is a case-insensitive header.Get. Decoder inputs are not
// guaranteed to use canonical MIME keys, so a miss on the canonical key
// falls back to scanning the raw map.
func headerValue(header http.Header, name string) string {
	if value := header.Get(name); value != "" {
		return value
	}
	lower := strings.ToLower(name)
	for key, values := range header {
		if len(values) > 0 && strings.ToLower(key) == lower {
			return values[0]
		}
	}
	return ""
}

// readBody reads the request payload.
//
// With a declared Content-Length the size is allocated up front and
// filled by a single read; a short read truncates to the bytes actually
// received rather than retrying. Without one the stream is read to EOF
// with no size cap.
func readBody(declared string, body io.Reader) ([]byte, error) {
	if declared == "" {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, errors.WithStack(BodyReadError{err: err})
		}
		return data, nil
	}
	size, err := strconv.Atoi(strings.TrimSpace(declared))
	if err != nil || size < 0 {
		return nil, errors.WithStack(MalformedLengthError{Value: declared})
	}
	buf := make([]byte, size)
	n, err := body.Read(buf)
	if err != nil && err != io.EOF {
		return nil, errors.WithStack(BodyReadError{err: err})
	}
	return buf[:n], nil
}
