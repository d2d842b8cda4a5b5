package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes bus events as JSON on <prefix>.<event type>.
type NATSForwarder struct {
	publisher Publisher
	prefix    string
}

func NewNATSForwarder(publisher Publisher, prefix string) *NATSForwarder {
	return &NATSForwarder{publisher: publisher, prefix: prefix}
}

func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("go-user-api"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

func (f *NATSForwarder) Subject(t Type) string {
	return f.prefix + "." + string(t)
}

// Run forwards events until ctx is done or the subscription closes.
func (f *NATSForwarder) Run(ctx context.Context, bus Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "error", err)
				continue
			}
			if err := f.publisher.Publish(f.Subject(e.Type), data); err != nil {
				slog.Warn("failed to forward event to NATS", "type", e.Type, "error", err)
			}
		}
	}
}
