package coordinator

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// EventKind enumerates the coordinator lifecycle events an out-of-process
// supervisor (the CLI or GUI, both external per spec.md §6) can observe
// on the NATS subject instead of polling. EventDayBoundary is defined but
// the coordinator does not publish it.
type EventKind string

const (
	EventStarted     EventKind = "started"
	EventDayBoundary EventKind = "day_boundary"
	EventStopped     EventKind = "stopped"
	EventPanicked    EventKind = "panicked"
)

// Event is one lifecycle notification, published as JSON on EventsSubject.
type Event struct {
	Kind          EventKind `json:"kind"`
	RunID         string    `json:"run_id"`
	StrategyIndex int       `json:"strategy_index"`
	Instrument    string    `json:"instrument,omitempty"`
	Day           string    `json:"day,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventPublisher publishes Events to a NATS subject via a Watermill
// publisher. A nil-URL EventPublisher (NewNoopEventPublisher) is used
// when the coordinator runs without NATS configured; Publish is then a
// no-op so the coordinator never blocks on a connection it doesn't have.
type EventPublisher struct {
	publisher message.Publisher
	subject   string
	logger    *zap.Logger
}

// NewEventPublisher connects to natsURL and builds a Watermill publisher
// over it, publishing to subject. Grounded on the teacher's
// eventbus_adapters.go NATS+Watermill wiring.
func NewEventPublisher(natsURL, subject string, logger *zap.Logger) (*EventPublisher, error) {
	wmLogger := watermill.NewStdLoggerWithOut(nopWriter{}, false, false)

	publisher, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: []natsgo.Option{natsgo.Name("hftbt-coordinator"), natsgo.Timeout(5 * time.Second)},
		Marshaler:   &nats.GobMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	return &EventPublisher{publisher: publisher, subject: subject, logger: logger}, nil
}

// NewNoopEventPublisher builds a publisher that drops every event,
// used when no NATS URL is configured.
func NewNoopEventPublisher(logger *zap.Logger) *EventPublisher {
	return &EventPublisher{logger: logger}
}

// Publish sends ev on the configured subject. Errors are logged and
// swallowed: a lifecycle-event delivery failure must never affect the
// backtest itself.
func (p *EventPublisher) Publish(ev Event) {
	if p.publisher == nil {
		return
	}
	ev.Timestamp = ev.Timestamp.UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("marshal coordinator event failed", zap.Error(err))
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(p.subject, msg); err != nil {
		p.logger.Warn("publish coordinator event failed", zap.String("subject", p.subject), zap.Error(err))
	}
}

func (p *EventPublisher) Close() error {
	if p.publisher == nil {
		return nil
	}
	return p.publisher.Close()
}

type nopWriter struct{}

func (nopWriter) Write(b []byte) (int, error) { return len(b), nil }
