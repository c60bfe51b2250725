package cehttp_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/errors"
	"github.com/cehttp/cehttp"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func binaryHeaders() http.Header {
	h := http.Header{}
	h.Set("ce-id", "abc-1")
	h.Set("ce-source", "/test")
	h.Set("ce-specversion", "1.0")
	h.Set("ce-type", "example.event")
	return h
}

func TestDecodeBinaryMode(t *testing.T) {
	h := binaryHeaders()
	h.Set("ce-myext", "42")
	event, err := cehttp.Decode(h, strings.NewReader(`{"k":1}`))
	assert.NoError(t, err)
	assert.Equal(t, "abc-1", event.ID)
	assert.Equal(t, "/test", event.Source)
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, "example.event", event.Type)
	assert.Equal(t, map[string]string{"myext": "42"}, event.Extensions)
	assert.Equal(t, []byte(`{"k":1}`), event.Data)
}

func TestDecodeOptionalAttributes(t *testing.T) {
	h := binaryHeaders()
	h.Set("ce-time", "2026-08-23T10:30:00Z")
	h.Set("ce-subject", "orders/42")
	h.Set("ce-dataschema", "https://example.com/schema")
	h.Set("Content-Type", "application/json")
	event, err := cehttp.Decode(h, strings.NewReader("{}"))
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC), event.Time)
	assert.Equal(t, "orders/42", event.Subject)
	assert.Equal(t, "https://example.com/schema", event.DataSchema)
	assert.Equal(t, "application/json", event.DataContentType)
}

func TestDecodeHeaderCaseInsensitive(t *testing.T) {
	// Raw map keys bypass http.Header canonicalisation.
	h := http.Header{
		"CE-ID":          {"abc-1"},
		"Ce-Source":      {"/test"},
		"cE-SpEcVeRsIoN": {"1.0"},
		"ce-type":        {"example.event"},
		"CE-MyExt":       {"42"},
		"content-type":   {"application/json"},
	}
	event, err := cehttp.Decode(h, strings.NewReader(""))
	assert.NoError(t, err)
	assert.Equal(t, "abc-1", event.ID)
	assert.Equal(t, "42", event.Extension("myext"))
	assert.Equal(t, "application/json", event.DataContentType)
}

func TestDecodeContentLengthCaseInsensitive(t *testing.T) {
	// A non-canonical content-length key still selects the
	// length-delimited read policy: only 3 of the 6 available bytes are
	// consumed.
	h := binaryHeaders()
	h["content-length"] = []string{"3"}
	event, err := cehttp.Decode(h, strings.NewReader("abcdef"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), event.Data)
}

func TestDecodeMissingRequired(t *testing.T) {
	for _, attr := range []string{"id", "source", "specversion", "type"} {
		t.Run(attr, func(t *testing.T) {
			h := binaryHeaders()
			h.Del("ce-" + attr)
			_, err := cehttp.Decode(h, strings.NewReader("body"))
			var missing cehttp.MissingAttributeError
			assert.True(t, errors.As(err, &missing))
			assert.Equal(t, attr, missing.Name)
		})
	}
}

func TestDecodeStructuredModeUnsupported(t *testing.T) {
	for _, contentType := range []string{
		"application/cloudevents+json",
		"application/cloudevents+json; charset=utf-8",
		"Application/CloudEvents+JSON",
	} {
		t.Run(contentType, func(t *testing.T) {
			h := binaryHeaders()
			h.Set("Content-Type", contentType)
			event, err := cehttp.Decode(h, strings.NewReader(`{"specversion":"1.0"}`))
			assert.True(t, errors.Is(err, cehttp.ErrUnsupportedMode))
			assert.Zero(t, event)
		})
	}

	t.Run("NonCanonicalKey", func(t *testing.T) {
		h := binaryHeaders()
		h["content-type"] = []string{"application/cloudevents+json"}
		event, err := cehttp.Decode(h, strings.NewReader(`{"specversion":"1.0"}`))
		assert.True(t, errors.Is(err, cehttp.ErrUnsupportedMode))
		assert.Zero(t, event)
	})
}

func TestDecodeMalformedTimestamp(t *testing.T) {
	h := binaryHeaders()
	h.Set("ce-time", "yesterday")
	_, err := cehttp.Decode(h, strings.NewReader(""))
	var malformed cehttp.MalformedTimestampError
	assert.True(t, errors.As(err, &malformed))
	assert.Equal(t, "yesterday", malformed.Value)
}

func TestDecodeEmptyBody(t *testing.T) {
	t.Run("NoContentLength", func(t *testing.T) {
		event, err := cehttp.Decode(binaryHeaders(), strings.NewReader(""))
		assert.NoError(t, err)
		assert.Zero(t, event.Data)
	})
	t.Run("ZeroContentLength", func(t *testing.T) {
		h := binaryHeaders()
		h.Set("Content-Length", "0")
		event, err := cehttp.Decode(h, strings.NewReader(""))
		assert.NoError(t, err)
		assert.Zero(t, event.Data)
	})
}

func TestDecodeShortRead(t *testing.T) {
	// A body shorter than the declared length is truncated, not retried.
	h := binaryHeaders()
	h.Set("Content-Length", "5")
	event, err := cehttp.Decode(h, strings.NewReader("abc"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), event.Data)
}

func TestDecodeContentLength(t *testing.T) {
	h := binaryHeaders()
	h.Set("Content-Length", "3")
	event, err := cehttp.Decode(h, strings.NewReader("abc"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), event.Data)
}

func TestDecodeMalformedContentLength(t *testing.T) {
	for _, length := range []string{"five", "-1", "1.5"} {
		t.Run(length, func(t *testing.T) {
			h := binaryHeaders()
			h.Set("Content-Length", length)
			_, err := cehttp.Decode(h, strings.NewReader("abc"))
			var malformed cehttp.MalformedLengthError
			assert.True(t, errors.As(err, &malformed))
			assert.Equal(t, length, malformed.Value)
		})
	}
}

func TestDecodeBodyReadError(t *testing.T) {
	_, err := cehttp.Decode(binaryHeaders(), errReader{})
	var bodyErr cehttp.BodyReadError
	assert.True(t, errors.As(err, &bodyErr))
}

func TestDecodeUnboundedRead(t *testing.T) {
	body := strings.Repeat("x", 64*1024)
	event, err := cehttp.Decode(binaryHeaders(), strings.NewReader(body))
	assert.NoError(t, err)
	assert.Equal(t, len(body), len(event.Data))
}
