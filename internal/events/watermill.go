package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const metadataType = "event_type"

// WatermillPublisher sends events as JSON messages, one topic per event type.
type WatermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewWatermillPublisher(publisher message.Publisher, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, logger: logger}
}

// NewGoChannelPublisher keeps events in process. The returned GoChannel can
// also be used to subscribe.
func NewGoChannelPublisher(logger *slog.Logger) (*WatermillPublisher, *gochannel.GoChannel) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger))
	return NewWatermillPublisher(ch, logger), ch
}

func NewKafkaPublisher(brokers []string, logger *slog.Logger) (*WatermillPublisher, error) {
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return NewWatermillPublisher(pub, logger), nil
}

func (p *WatermillPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set(metadataType, event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(event.Type, msg); err != nil {
		p.logger.Error("Failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("Event published", "event_type", event.Type, "event_id", event.ID, "subject", event.Subject)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// Decode reads an event back from a message payload.
func Decode(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return e, nil
}
