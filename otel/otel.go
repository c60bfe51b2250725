// Package otel instruments cehttp handlers with OpenTelemetry tracing.
package otel

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cehttp/cehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/cehttp/cehttp"

// Semantic attribute keys for consumed events.
const (
	AttrEventID     = attribute.Key("cloudevents.event_id")
	AttrEventType   = attribute.Key("cloudevents.event_type")
	AttrEventSource = attribute.Key("cloudevents.event_source")
	AttrEventSize   = attribute.Key("cloudevents.event_data_bytes")
)

var tracer = otel.Tracer(instrumentationName)

// WithTelemetry wraps a handler in a span per consumed event, recording
// the handler error, if any, as the span status.
func WithTelemetry(next cehttp.Handler) cehttp.Handler {
	return func(ctx context.Context, event *cehttp.Event, w http.ResponseWriter, r *http.Request) error {
		ctx, span := tracer.Start(ctx, fmt.Sprintf("cloudevents.consume %s", event.Type),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				AttrEventID.String(event.ID),
				AttrEventType.String(event.Type),
				AttrEventSource.String(event.Source),
				AttrEventSize.Int(len(event.Data)),
			),
		)
		defer span.End()

		err := next(ctx, event, w, r)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
}
