package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/updraft/internal/logfields"
)

// subjectPrefix is the root of the build event subject hierarchy. Events are
// published on updraft.builds.<build-id>.status.
const subjectPrefix = "updraft.builds"

// NATSPublisher publishes build status events to a NATS subject hierarchy.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to NATS at the given URL.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("updraft"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS event publisher initialized", "url", url)
	return &NATSPublisher{conn: conn}, nil
}

// PublishStatus publishes a status event. Failures are logged and dropped;
// the build lifecycle never depends on event delivery.
func (p *NATSPublisher) PublishStatus(event StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal status event", logfields.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.%s.status", subjectPrefix, event.BuildID)
	if err := p.conn.Publish(subject, payload); err != nil {
		slog.Warn("failed to publish status event",
			logfields.BuildID(event.BuildID),
			logfields.Error(err))
	}
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		slog.Warn("failed to drain NATS connection", logfields.Error(err))
	}
}
