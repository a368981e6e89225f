package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"survey-assistant-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one event. A returned error naks the message for redelivery.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber reads survey events back from JetStream.
type Subscriber struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// Decode parses the wire form written by Publisher.
func Decode(data []byte) (events.BaseEvent, error) {
	var evt events.BaseEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return events.BaseEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if evt.Type == "" {
		return events.BaseEvent{}, fmt.Errorf("failed to decode event: missing type")
	}
	return evt, nil
}

// Subscribe consumes events matching eventType ("" or "*" for all) until ctx is done.
// An empty durable name creates an ephemeral consumer.
func (s *Subscriber) Subscribe(ctx context.Context, eventType, durable string, handler EventHandler) error {
	filter := subjectPrefix + ">"
	if eventType != "" && eventType != "*" {
		filter = Subject(eventType)
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: filter,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		evt, err := Decode(msg.Data())
		if err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, evt); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	<-ctx.Done()
	cc.Stop()
	return nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
