package cehttp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecthomas/errors"
	"github.com/hashicorp/go-retryablehttp"
)

// NewRequest builds a POST request delivering event to target in binary
// content mode, using the same attribute header convention as [Encode].
func NewRequest(ctx context.Context, target string, event *Event) (*http.Request, error) {
	if err := event.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	var body io.Reader
	if len(event.Data) > 0 {
		body = bytes.NewReader(event.Data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, errors.Errorf("failed to build event request: %w", err)
	}
	writeAttributes(event, req.Header)
	req.ContentLength = int64(len(event.Data))
	return req, nil
}

// SenderConfig controls delivery retries and the request timeout.
type SenderConfig struct {
	Retries int           `help:"Maximum number of delivery retries." default:"3"`
	MinWait time.Duration `help:"Minimum wait between retries." default:"500ms"`
	MaxWait time.Duration `help:"Maximum wait between retries." default:"10s"`
	Timeout time.Duration `help:"Timeout for a single delivery attempt." default:"30s"`
}

// Sender delivers events to HTTP receivers in binary content mode,
// retrying transient failures. Safe for concurrent use.
type Sender struct {
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewSender creates a sender. A nil logger disables logging.
func NewSender(config SenderConfig, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := retryablehttp.NewClient()
	client.RetryMax = config.Retries
	client.RetryWaitMin = config.MinWait
	client.RetryWaitMax = config.MaxWait
	client.HTTPClient.Timeout = config.Timeout
	client.Logger = nil
	return &Sender{client: client, logger: logger}
}

// Send delivers event to target and returns the reply event, if the
// receiver answered with one. A terminal non-2xx response is reported as
// [DeliveryError]; a 204 or an event-free 2xx returns (nil, nil).
func (s *Sender) Send(ctx context.Context, target string, event *Event) (*Event, error) {
	req, err := NewRequest(ctx, target, event)
	if err != nil {
		return nil, err
	}
	retryable, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, errors.Errorf("failed to build retryable request: %w", err)
	}
	resp, err := s.client.Do(retryable)
	if err != nil {
		return nil, errors.Errorf("failed to deliver event %q: %w", event.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.WithStack(DeliveryError{Status: resp.StatusCode})
	}
	if resp.Header.Get(attrPrefix+"id") == "" {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	reply, err := Decode(resp.Header, resp.Body)
	if err != nil {
		return nil, errors.Errorf("failed to decode reply event: %w", err)
	}
	s.logger.Debug("Received reply event", "id", reply.ID, "type", reply.Type)
	return reply, nil
}
