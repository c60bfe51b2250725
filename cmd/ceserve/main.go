// ceserve receives CloudEvents over HTTP in binary content mode, logs
// them, and optionally relays them to a downstream receiver.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	"github.com/jpillora/backoff"

	"github.com/cehttp/cehttp"
	"github.com/cehttp/cehttp/logging"
	ceotel "github.com/cehttp/cehttp/otel"
)

var cli struct {
	Config  kong.ConfigFlag     `help:"Load configuration from a TOML file." placeholder:"FILE"`
	Bind    string              `help:"Address to listen on." default:"127.0.0.1:8080"`
	Methods []string            `help:"HTTP methods to accept." default:"POST"`
	Forward string              `help:"Relay received events to this URL." placeholder:"URL"`
	Queue   int                 `help:"Relay queue depth." default:"128"`
	Log     logging.Config      `embed:"" prefix:"log-"`
	Send    cehttp.SenderConfig `embed:"" prefix:"send-"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Description("Receive CloudEvents over HTTP in binary content mode."),
		kong.Configuration(kongtoml.Loader, "/etc/ceserve.toml", "~/.config/ceserve.toml"),
	)
	logger := logging.New(os.Stdout, cli.Log)
	kctx.FatalIfErrorf(run(logger))
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rel *relay
	if cli.Forward != "" {
		rel = &relay{
			sender: cehttp.NewSender(cli.Send, logger),
			target: cli.Forward,
			logger: logger,
			queue:  make(chan *cehttp.Event, cli.Queue),
		}
		go rel.run(ctx)
	}

	handler := func(ctx context.Context, event *cehttp.Event, w http.ResponseWriter, r *http.Request) error {
		logger.Info("Received event",
			"id", event.ID, "type", event.Type, "source", event.Source, "bytes", len(event.Data))
		if rel != nil {
			if err := rel.enqueue(event); err != nil {
				return err
			}
		}
		w.WriteHeader(http.StatusAccepted)
		return nil
	}

	listener := cehttp.NewListener(ceotel.WithTelemetry(handler),
		cehttp.WithLogger(logger),
		cehttp.WithMethods(cli.Methods...),
	)
	server := &http.Server{Addr: cli.Bind, Handler: listener}

	errs := make(chan error, 1)
	go func() { errs <- server.ListenAndServe() }()
	logger.Info("Listening", "bind", cli.Bind, "methods", cli.Methods)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Errorf("failed to shut down server: %w", err)
		}
		<-errs
		return nil
	case err := <-errs:
		return errors.Errorf("server failed: %w", err)
	}
}

// relay forwards received events to the configured downstream receiver,
// backing off between failed attempts so a flapping receiver is not
// hammered.
type relay struct {
	sender *cehttp.Sender
	target string
	logger *slog.Logger
	queue  chan *cehttp.Event
}

// maxAttempts bounds how often one event is retried before being dropped.
const maxAttempts = 5

func (r *relay) enqueue(event *cehttp.Event) error {
	select {
	case r.queue <- event:
		return nil
	default:
		return errors.Errorf("relay queue full, dropping event %q", event.ID)
	}
}

func (r *relay) run(ctx context.Context) {
	retry := &backoff.Backoff{Min: time.Second, Max: time.Second * 30, Jitter: true}
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.queue:
			for attempt := 1; ; attempt++ {
				_, err := r.sender.Send(ctx, r.target, event)
				if err == nil {
					retry.Reset()
					break
				}
				r.logger.Error("Failed to relay event", "error", err, "id", event.ID, "attempt", attempt)
				if attempt >= maxAttempts {
					r.logger.Warn("Dropping event after repeated relay failures", "id", event.ID)
					break
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(retry.Duration()):
				}
			}
		}
	}
}
