package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const sseKeepaliveInterval = 10 * time.Second

// DashboardStream delivers dashboard events for one wallet until ctx is done.
type DashboardStream interface {
	Subscribe(ctx context.Context, address string) (<-chan *natspkg.DashboardEvent, error)
}

// SSEPublisher consumes dashboard events from JetStream for SSE clients.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	nc, err := natspkg.Connect(natsURL, "walletlens-sse-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Subscribe creates an ephemeral consumer for the wallet's subject. Only
// events published after the call are delivered.
func (p *SSEPublisher) Subscribe(ctx context.Context, address string) (<-chan *natspkg.DashboardEvent, error) {
	cons, err := p.js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
		FilterSubject:     natspkg.Subject(address),
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	events := make(chan *natspkg.DashboardEvent, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event natspkg.DashboardEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			p.logger.WarnContext(ctx, "failed to unmarshal dashboard event", "error", err)
			msg.Ack()
			return
		}
		select {
		case events <- &event:
			msg.Ack()
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()

	return events, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// handleStreamDashboards streams refreshed dashboards of one wallet as SSE.
// GET /api/v1/stream/dashboards/{address}
func handleStreamDashboards(stream DashboardStream, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		events, err := stream.Subscribe(ctx, address)
		if err != nil {
			logger.ErrorContext(ctx, "failed to subscribe to dashboard events",
				"wallet", address,
				"error", err,
			)
			writeError(w, "failed to subscribe", http.StatusServiceUnavailable)
			return
		}

		// Streams outlive the server's write timeout.
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if m != nil {
			m.RecordSSEConnectionChange(address, 1)
			defer m.RecordSSEConnectionChange(address, -1)
		}

		logger.DebugContext(ctx, "SSE client connected",
			"wallet", address,
			"remote_addr", r.RemoteAddr,
		)

		fmt.Fprintf(w, "event: connected\ndata: {\"wallet\":%q}\n\n", address)
		rc.Flush()

		keepalive := time.NewTicker(sseKeepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				rc.Flush()

			case event, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal dashboard event", "error", err)
					continue
				}

				fmt.Fprintf(w, "event: dashboard\ndata: %s\n\n", data)
				rc.Flush()

				if m != nil {
					m.RecordSSEEventSent(address, "dashboard")
				}
				logger.DebugContext(ctx, "sent dashboard event",
					"wallet", address,
					"event_id", event.EventID,
				)

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected",
					"wallet", address,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
