package cehttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/alecthomas/errors"
)

// Handler consumes one successfully decoded event.
//
// The response writer and original request are passed through so the
// handler can reply, typically by calling [Encode] with a response event.
// A handler that writes nothing gets a 204 on its behalf; a handler
// error after nothing was written becomes a 500.
type Handler func(ctx context.Context, event *Event, w http.ResponseWriter, r *http.Request) error

// Listener dispatches HTTP requests carrying binary content mode
// CloudEvents to a [Handler]. It is an [http.Handler], stateless across
// requests, and safe for concurrent use.
//
// Status mapping: a method outside the allow-list is answered with 501
// before the decoder runs, a structured mode request with 415, a body
// read failure with 400 "Empty body in request", and any other decode
// failure with 400 carrying the decode error message.
type Listener struct {
	handler Handler
	logger  *slog.Logger
	methods map[string]bool
}

// ListenerOption configures a [Listener].
type ListenerOption func(*Listener)

// WithLogger sets the logger used for decode and handler failures.
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

// WithMethods replaces the allowed HTTP method set. The default is POST
// only.
func WithMethods(methods ...string) ListenerOption {
	return func(l *Listener) {
		l.methods = make(map[string]bool, len(methods))
		for _, method := range methods {
			l.methods[method] = true
		}
	}
}

// NewListener creates a listener dispatching to handler.
func NewListener(handler Handler, options ...ListenerOption) *Listener {
	l := &Listener{
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		methods: map[string]bool{http.MethodPost: true},
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !l.methods[r.Method] {
		http.Error(w, "Method not implemented", http.StatusNotImplemented)
		return
	}
	event, err := Decode(r.Header, r.Body)
	if err != nil {
		l.logger.Error("Failed to decode event", "error", err, "method", r.Method, "remote", r.RemoteAddr)
		var bodyErr BodyReadError
		switch {
		case errors.Is(err, ErrUnsupportedMode):
			http.Error(w, ErrUnsupportedMode.Error(), http.StatusUnsupportedMediaType)
		case errors.As(err, &bodyErr):
			http.Error(w, "Empty body in request", http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	tracked := &trackingWriter{ResponseWriter: w}
	if err := l.handler(r.Context(), event, tracked, r); err != nil {
		l.logger.Error("Event handler failed", "error", err, "id", event.ID, "type", event.Type)
		if !tracked.wrote {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if !tracked.wrote {
		w.WriteHeader(http.StatusNoContent)
	}
}

// trackingWriter records whether the handler has started a response, so
// the listener knows when it is still allowed to set a status itself.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(status int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(status)
}

func (t *trackingWriter) Write(data []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(data)
}

func (t *trackingWriter) Flush() {
	if flusher, ok := t.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
